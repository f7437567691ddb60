// Package property holds observable device settings.
//
// A Value keeps the current setting plus a registry of observer callbacks.
// Attach returns a Handle that Detach uses to remove the observer again, so
// subscribers never need to embed or implement a vendor type.
package property

import (
	"fmt"
	"slices"
	"sync"
)

// Handle identifies an attached observer.
type Handle uint64

// Validator checks a candidate value before it is stored.
type Validator[T any] func(T) error

// Option configures a Value.
type Option[T comparable] func(*Value[T])

// WithValidator rejects values for which fn returns an error.
func WithValidator[T comparable](fn Validator[T]) Option[T] {
	return func(v *Value[T]) {
		v.validate = fn
	}
}

// Value is a named, observable setting.
type Value[T comparable] struct {
	name     string
	validate Validator[T]

	mu        sync.RWMutex
	value     T
	next      Handle
	observers map[Handle]func(T)
}

// New creates a value with an initial setting. The initial value is not
// validated.
func New[T comparable](name string, initial T, opts ...Option[T]) *Value[T] {
	v := &Value[T]{
		name:      name,
		value:     initial,
		observers: make(map[Handle]func(T)),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Name returns the property name.
func (v *Value[T]) Name() string {
	return v.name
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value
}

// Set stores x and, if it differs from the current value, calls every
// observer with the new value. Observers run on the caller's goroutine after
// the lock is released, in attach order.
func (v *Value[T]) Set(x T) error {
	if v.validate != nil {
		if err := v.validate(x); err != nil {
			return fmt.Errorf("property %s: %w", v.name, err)
		}
	}

	v.mu.Lock()
	if v.value == x {
		v.mu.Unlock()
		return nil
	}
	v.value = x

	handles := make([]Handle, 0, len(v.observers))
	for h := range v.observers {
		handles = append(handles, h)
	}
	slices.Sort(handles)
	callbacks := make([]func(T), 0, len(handles))
	for _, h := range handles {
		callbacks = append(callbacks, v.observers[h])
	}
	v.mu.Unlock()

	for _, fn := range callbacks {
		fn(x)
	}
	return nil
}

// Attach registers fn to be called on every change.
func (v *Value[T]) Attach(fn func(T)) Handle {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.next++
	v.observers[v.next] = fn
	return v.next
}

// Detach removes an observer. It reports whether the handle was attached.
func (v *Value[T]) Detach(h Handle) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.observers[h]; !ok {
		return false
	}
	delete(v.observers, h)
	return true
}
