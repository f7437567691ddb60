// Package ringbuf provides the fixed-size circular frame buffer that a
// capture driver fills, and the borrowed View type that lets downstream code
// reference a slot without owning it.
//
// Every slot carries a generation counter. The producer makes the counter odd
// while it writes a slot and even again once the frame is complete, so a View
// captured at commit time can tell whether its slot was overwritten since.
// Slot contents are stored as atomic 64-bit words, so a reader racing the
// producer sees a mix of old and new words and the generation check rejects
// it, rather than performing an unsynchronized read.
package ringbuf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	// ErrOverwritten is returned when a View's slot was reused by the producer.
	ErrOverwritten = errors.New("ring buffer slot overwritten")
	// ErrEmptyView is returned when reading through a zero View.
	ErrEmptyView = errors.New("empty view")
	// ErrFrameTooLarge is returned when a frame does not fit a slot.
	ErrFrameTooLarge = errors.New("frame larger than slot")
)

// ring is one allocation of slots. Resize swaps in a new ring and retires the
// old one so views into it stop validating.
type ring struct {
	words     []atomic.Uint64
	slotWords int
	frameSize int
	gens      []atomic.Uint64
	retired   atomic.Bool
}

const wordSize = 8

func newRing(slots, frameSize int) *ring {
	slotWords := (frameSize + wordSize - 1) / wordSize
	return &ring{
		words:     make([]atomic.Uint64, slots*slotWords),
		slotWords: slotWords,
		frameSize: frameSize,
		gens:      make([]atomic.Uint64, slots),
	}
}

func (r *ring) slot(i int) []atomic.Uint64 {
	off := i * r.slotWords
	return r.words[off : off+r.slotWords : off+r.slotWords]
}

// store packs src into dst little-endian, zero padding the last word.
func store(dst []atomic.Uint64, src []byte) {
	var tail [wordSize]byte
	for w := 0; len(src) > 0; w++ {
		if len(src) >= wordSize {
			dst[w].Store(binary.LittleEndian.Uint64(src))
			src = src[wordSize:]
			continue
		}
		clear(tail[:])
		copy(tail[:], src)
		dst[w].Store(binary.LittleEndian.Uint64(tail[:]))
		src = nil
	}
}

// load unpacks the first len(dst) bytes of src.
func load(dst []byte, src []atomic.Uint64) {
	var tail [wordSize]byte
	for w := 0; len(dst) > 0; w++ {
		if len(dst) >= wordSize {
			binary.LittleEndian.PutUint64(dst, src[w].Load())
			dst = dst[wordSize:]
			continue
		}
		binary.LittleEndian.PutUint64(tail[:], src[w].Load())
		copy(dst, tail[:])
		dst = nil
	}
}

// Buffer is a circular buffer of equally sized frame slots with a single
// producer.
type Buffer struct {
	mu      sync.Mutex // serializes the producer against Resize
	cur     atomic.Pointer[ring]
	next    int
	scratch []byte // producer-side frame staging, guarded by mu
}

// New allocates a buffer with the given slot count and frame size.
func New(slots, frameSize int) (*Buffer, error) {
	if slots < 1 || frameSize < 1 {
		return nil, fmt.Errorf("invalid ring buffer geometry %dx%d", slots, frameSize)
	}
	b := &Buffer{}
	b.cur.Store(newRing(slots, frameSize))
	return b, nil
}

// Resize replaces the slot storage. Views taken before the call become
// invalid. It must not run while a producer is active.
func (b *Buffer) Resize(slots, frameSize int) error {
	if slots < 1 || frameSize < 1 {
		return fmt.Errorf("invalid ring buffer geometry %dx%d", slots, frameSize)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	old := b.cur.Load()
	if len(old.gens) == slots && old.frameSize == frameSize {
		return nil
	}
	b.cur.Store(newRing(slots, frameSize))
	b.next = 0
	old.retired.Store(true)
	return nil
}

// Slots returns the number of frame slots.
func (b *Buffer) Slots() int {
	return len(b.cur.Load().gens)
}

// FrameSize returns the size of one slot in bytes.
func (b *Buffer) FrameSize() int {
	return b.cur.Load().frameSize
}

// Fill hands a frame-sized staging slice to fn, the way a driver DMA fills a
// frame, publishes it into the next slot and returns a View of the completed
// slot. fn returns the number of bytes it wrote. The staging slice must not
// be retained after fn returns.
func (b *Buffer) Fill(fn func(dst []byte) int) View {
	b.mu.Lock()
	defer b.mu.Unlock()

	r := b.cur.Load()
	i := b.next
	b.next = (i + 1) % len(r.gens)

	if len(b.scratch) != r.frameSize {
		b.scratch = make([]byte, r.frameSize)
	}
	n := fn(b.scratch)
	if n < 0 {
		n = 0
	} else if n > r.frameSize {
		n = r.frameSize
	}

	gen := &r.gens[i]
	gen.Add(1) // odd: slot being written
	store(r.slot(i), b.scratch[:n])
	g := gen.Add(1)

	return View{r: r, slot: i, gen: g, n: n}
}

// Write copies p into the next slot.
func (b *Buffer) Write(p []byte) (View, error) {
	if len(p) > b.FrameSize() {
		return View{}, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(p), b.FrameSize())
	}
	return b.Fill(func(dst []byte) int { return copy(dst, p) }), nil
}

// View is a borrowed reference to one ring buffer slot at one generation.
// Views are comparable; two views are equal only if they reference the same
// write of the same slot.
type View struct {
	r    *ring
	slot int
	gen  uint64
	n    int
}

// IsZero reports whether v references nothing.
func (v View) IsZero() bool {
	return v.r == nil
}

// Slot returns the slot index.
func (v View) Slot() int { return v.slot }

// Generation returns the slot generation captured when the frame completed.
func (v View) Generation() uint64 { return v.gen }

// Len returns the number of frame bytes in the slot.
func (v View) Len() int { return v.n }

// Valid reports whether the slot still holds the frame this view refers to.
func (v View) Valid() bool {
	if v.r == nil || v.r.retired.Load() {
		return false
	}
	return v.r.gens[v.slot].Load() == v.gen
}

// Bytes returns a copy of the frame. It fails like CopyTo.
func (v View) Bytes() ([]byte, error) {
	if v.r == nil {
		return nil, ErrEmptyView
	}
	if !v.Valid() {
		return nil, ErrOverwritten
	}
	out := make([]byte, v.n)
	if _, err := v.CopyTo(out); err != nil {
		return nil, err
	}
	return out, nil
}

// CopyTo copies the frame into dst and reports ErrOverwritten if the slot was
// reused before or during the copy.
func (v View) CopyTo(dst []byte) (int, error) {
	if v.r == nil {
		return 0, ErrEmptyView
	}
	if !v.Valid() {
		return 0, ErrOverwritten
	}
	n := min(len(dst), v.n)
	load(dst[:n], v.r.slot(v.slot))
	if !v.Valid() {
		return n, ErrOverwritten
	}
	return n, nil
}
