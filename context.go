package ioc

import "context"

type containerContextKey struct{}

// WithContainer returns a copy of ctx carrying c.
func WithContainer(ctx context.Context, c *Container) context.Context {
	return context.WithValue(ctx, containerContextKey{}, c)
}

// FromContext returns the container stored by WithContainer.
func FromContext(ctx context.Context) (*Container, error) {
	c, ok := ctx.Value(containerContextKey{}).(*Container)
	if !ok || c == nil {
		return nil, ErrContainerNotInContext
	}

	if c.IsDisposed() {
		return nil, ErrContainerDisposed
	}

	return c, nil
}
