// Package options implements the generic functional-option pattern shared by the
// configurable types of this module.
package options

// Option configures a target of type T.
type Option[T any] interface {
	apply(T) error
}

// Func adapts a function to the Option interface.
type Func[T any] struct {
	fn func(T) error
}

func (f *Func[T]) apply(target T) error {
	return f.fn(target)
}

// New creates an option from a function that may reject its input.
func New[T any](fn func(T) error) *Func[T] {
	return &Func[T]{fn: fn}
}

// NoError creates an option from a function that cannot fail.
func NoError[T any](fn func(T)) *Func[T] {
	return &Func[T]{
		fn: func(target T) error {
			fn(target)
			return nil
		},
	}
}

// Join bundles several options into one; they are applied in order and the first
// error stops the chain.
func Join[T any](opts ...Option[T]) *Func[T] {
	return &Func[T]{
		fn: func(target T) error {
			return Apply(target, opts...)
		},
	}
}

// Apply applies opts to target in order, skipping nil entries, and returns the
// first error.
func Apply[T any](target T, opts ...Option[T]) error {
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(target); err != nil {
			return err
		}
	}

	return nil
}
