package testutil

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junioryono/ioc"
)

// Build builds b and closes the container when the test ends.
func Build(t *testing.T, b *ioc.Builder) *ioc.Container {
	t.Helper()
	c, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// BuildModules builds a container from modules and closes it when the test ends.
func BuildModules(t *testing.T, modules ...ioc.Module) *ioc.Container {
	t.Helper()
	return Build(t, ioc.NewBuilder().AddModules(modules...))
}

// AssertResolvable checks that T resolves to a non-nil value.
func AssertResolvable[T any](t *testing.T, r ioc.Resolver) T {
	t.Helper()
	service, err := ioc.Resolve[T](r)
	require.NoError(t, err, "failed to resolve service of type %T", *new(T))
	require.NotNil(t, service, "resolved service is nil")
	return service
}

// AssertKeyedResolvable checks that T resolves under key.
func AssertKeyedResolvable[T any](t *testing.T, r ioc.Resolver, key string) T {
	t.Helper()
	service, err := ioc.ResolveKeyed[T](r, key)
	require.NoError(t, err, "failed to resolve service of type %T with key %s", *new(T), key)
	require.NotNil(t, service, "resolved keyed service is nil")
	return service
}

// AssertNotFound checks that resolving T fails with ErrServiceNotFound.
func AssertNotFound[T any](t *testing.T, r ioc.Resolver) {
	t.Helper()
	_, err := ioc.Resolve[T](r)
	require.Error(t, err)
	assert.ErrorIs(t, err, ioc.ErrServiceNotFound)
	AssertRegistrationError(t, err)
}

// AssertRegistrationError checks that err is, or wraps, a RegistrationError
// and returns it.
func AssertRegistrationError(t *testing.T, err error) ioc.RegistrationError {
	t.Helper()
	var re ioc.RegistrationError
	require.True(t, errors.As(err, &re), "expected RegistrationError, got %T: %v", err, err)
	return re
}

// AssertErrorType checks that err matches the error type E and returns it.
func AssertErrorType[E error](t *testing.T, err error) E {
	t.Helper()
	var target E
	require.True(t, errors.As(err, &target), "expected %T, got %T: %v", target, err, err)
	return target
}

// AssertSameInstance verifies two services are the same instance
func AssertSameInstance(t *testing.T, expected, actual any, msgAndArgs ...any) {
	t.Helper()
	assert.Same(t, expected, actual, msgAndArgs...)
}

// AssertDifferentInstances verifies two services are different instances
func AssertDifferentInstances(t *testing.T, first, second any, msgAndArgs ...any) {
	t.Helper()
	assert.NotSame(t, first, second, msgAndArgs...)
}

// AssertDisposed checks that a closed container refuses to resolve.
func AssertDisposed(t *testing.T, c *ioc.Container) {
	t.Helper()
	assert.True(t, c.IsDisposed(), "container should be disposed")

	_, err := c.Get(ioc.TypeOf[any]())
	assert.ErrorIs(t, err, ioc.ErrContainerDisposed)

	_, err = c.CreateScope()
	assert.ErrorIs(t, err, ioc.ErrContainerDisposed)
}
