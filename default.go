package ioc

import "sync/atomic"

var defaultContainer atomic.Pointer[Container]

// SetDefault sets the container returned by Default. This is similar to
// slog.SetDefault. Pass nil to remove it.
func SetDefault(c *Container) {
	defaultContainer.Store(c)
}

// Default returns the container set by SetDefault, or nil.
func Default() *Container {
	return defaultContainer.Load()
}

// ResolveDefault resolves T from the default container. It returns
// ErrContainerNil when no default container is set.
func ResolveDefault[T any]() (T, error) {
	c := Default()
	if c == nil {
		var zero T
		return zero, ErrContainerNil
	}
	return Resolve[T](c)
}
