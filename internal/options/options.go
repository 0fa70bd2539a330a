// Package options implements the functional option pattern generically, so
// each configurable type exports its own Option alias instead of restating
// the plumbing.
package options

// Option configures a target of type T and may reject an invalid value.
type Option[T any] interface {
	apply(T) error
}

// Func adapts a plain function into an Option for type T.
type Func[T any] struct {
	applyFunc func(T) error
}

func (f *Func[T]) apply(target T) error {
	return f.applyFunc(target)
}

// New wraps fn as an option.
func New[T any](fn func(T) error) *Func[T] {
	return &Func[T]{applyFunc: fn}
}

// Apply runs each option against target in order, stopping at the first
// error.
func Apply[T any](target T, opts ...Option[T]) error {
	for _, opt := range opts {
		if err := opt.apply(target); err != nil {
			return err
		}
	}

	return nil
}

// NoError wraps an option function that cannot fail.
func NoError[T any](fn func(T)) *Func[T] {
	return &Func[T]{
		applyFunc: func(target T) error {
			fn(target)
			return nil
		},
	}
}
