// Package pipeline provides an ordered chain-of-responsibility builder that
// can be instantiated over any context type
package pipeline

import "context"

type (
	// Handler processes a context value, usually by invoking the remainder
	// of a pipeline
	Handler[T any] func(ctx context.Context, c T) error

	// Middleware is one link of a pipeline. It may run code before and
	// after calling next, translate the error next returns, or not call
	// next at all
	Middleware[T any] interface {
		Invoke(ctx context.Context, c T, next Handler[T]) error
	}

	// Func adapts an ordinary function into a Middleware
	Func[T any] func(ctx context.Context, c T, next Handler[T]) error

	// Builder accumulates middleware in registration order
	Builder[T any] struct {
		middleware []Middleware[T]
	}
)

// NewBuilder creates a Builder with the given initial middleware
func NewBuilder[T any](mw ...Middleware[T]) *Builder[T] {
	return &Builder[T]{
		middleware: append([]Middleware[T]{}, mw...),
	}
}

// Invoke calls the function
func (f Func[T]) Invoke(ctx context.Context, c T, next Handler[T]) error {
	return f(ctx, c, next)
}

// Use appends middleware to the Builder
func (b *Builder[T]) Use(mw ...Middleware[T]) *Builder[T] {
	b.middleware = append(b.middleware, mw...)
	return b
}

// Len returns the number of registered middleware
func (b *Builder[T]) Len() int {
	return len(b.middleware)
}

// Build composes the registered middleware into a single Handler by
// right-folding: the last registered middleware wraps a no-op terminal and
// each earlier one wraps the next. The context is checked for cancellation
// before every middleware is entered
func (b *Builder[T]) Build() Handler[T] {
	res := Handler[T](func(context.Context, T) error {
		return nil
	})
	for i := len(b.middleware) - 1; i >= 0; i-- {
		res = wrap(b.middleware[i], res)
	}
	return res
}

func wrap[T any](mw Middleware[T], next Handler[T]) Handler[T] {
	return func(ctx context.Context, c T) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return mw.Invoke(ctx, c, next)
	}
}
