package acquisition

import (
	"errors"
	"fmt"
)

// MinBufferSlots is the smallest ring buffer the controller accepts.
const MinBufferSlots = 3

// ErrBufferTooSmall is returned for ring buffers below MinBufferSlots.
var ErrBufferTooSmall = errors.New("ring buffer too small")

// CapacityFor returns the notification queue capacity for a ring buffer with
// the given slot count. It keeps a reserve of max(2, slots/4) slots between
// the oldest queued frame and the slot the camera writes next.
func CapacityFor(slots int) (int, error) {
	if slots < MinBufferSlots {
		return 0, fmt.Errorf("%w: %d slots, need at least %d", ErrBufferTooSmall, slots, MinBufferSlots)
	}
	return slots - max(2, slots/4), nil
}

// ValidateSlots reports whether slots is a usable ring buffer size.
func ValidateSlots(slots int) error {
	_, err := CapacityFor(slots)
	return err
}
