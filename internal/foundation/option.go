// Package foundation holds small generic building blocks shared across the
// service.
package foundation

import "fmt"

// Option represents a value that may or may not be present. Lookups whose
// miss is an expected outcome (environment cache restore, public-grant
// fallback) return Option instead of driving control flow through errors.
type Option[T any] struct {
	value   T
	present bool
}

// Some creates an Option holding value.
func Some[T any](value T) Option[T] {
	return Option[T]{value: value, present: true}
}

// None creates an empty Option.
func None[T any]() Option[T] {
	return Option[T]{}
}

// IsSome returns true if the Option contains a value.
func (o Option[T]) IsSome() bool { return o.present }

// IsNone returns true if the Option is empty.
func (o Option[T]) IsNone() bool { return !o.present }

// Unwrap returns the value if present and panics if None. Callers must check
// IsSome first or use UnwrapOr.
func (o Option[T]) Unwrap() T {
	if !o.present {
		panic("called Unwrap on None option")
	}
	return o.value
}

// UnwrapOr returns the value if present, otherwise the fallback.
func (o Option[T]) UnwrapOr(fallback T) T {
	if o.present {
		return o.value
	}
	return fallback
}

// ToPointer returns a pointer to the value if present, nil if None.
func (o Option[T]) ToPointer() *T {
	if o.present {
		return &o.value
	}
	return nil
}

// FromPointer creates an Option from a pointer: Some for non-nil, None for nil.
func FromPointer[T any](ptr *T) Option[T] {
	if ptr != nil {
		return Some(*ptr)
	}
	return None[T]()
}

// String provides a string representation of the Option.
func (o Option[T]) String() string {
	if o.present {
		return fmt.Sprintf("Some(%v)", o.value)
	}
	return "None"
}
