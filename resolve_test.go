package ioc_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junioryono/ioc"
	"github.com/junioryono/ioc/internal/testutil"
)

func TestResolve(t *testing.T) {
	b := ioc.NewBuilder()
	ioc.Bind[*Clock](b).ToConstructor(NewClock).InSingletonScope()
	ioc.Bind[Greeter](b).WithKey("fr").To(ioc.TypeOf[FrenchGreeter]())
	c := testutil.Build(t, b)

	t.Run("nil resolver", func(t *testing.T) {
		_, err := ioc.Resolve[*Clock](nil)
		assert.ErrorIs(t, err, ioc.ErrContainerNil)

		_, err = ioc.ResolveKeyed[*Clock](nil, "k")
		assert.ErrorIs(t, err, ioc.ErrContainerNil)

		_, err = ioc.ResolveAll[*Clock](nil)
		assert.ErrorIs(t, err, ioc.ErrContainerNil)

		_, err = ioc.ResolveAllKeyed[*Clock](nil, "k")
		assert.ErrorIs(t, err, ioc.ErrContainerNil)
	})

	t.Run("must resolve", func(t *testing.T) {
		assert.NotNil(t, ioc.MustResolve[*Clock](c))
		assert.Equal(t, "bonjour", ioc.MustResolveKeyed[Greeter](c, "fr").Greet())

		assert.Panics(t, func() { ioc.MustResolve[*Config](c) })
		assert.Panics(t, func() { ioc.MustResolveKeyed[Greeter](c, "de") })
	})

	t.Run("untyped access", func(t *testing.T) {
		v, err := c.Get(ioc.TypeOf[*Clock]())
		require.NoError(t, err)
		assert.IsType(t, &Clock{}, v)

		v, err = c.GetKeyed(ioc.TypeOf[Greeter](), "fr")
		require.NoError(t, err)
		assert.Equal(t, FrenchGreeter{}, v)

		all, err := c.GetAllKeyed(ioc.TypeOf[Greeter](), "fr")
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("disposed container", func(t *testing.T) {
		closed, err := ioc.NewBuilder().Build()
		require.NoError(t, err)
		require.NoError(t, closed.Close())

		_, err = ioc.Resolve[*Clock](closed)
		assert.ErrorIs(t, err, ioc.ErrContainerDisposed)

		_, err = ioc.ResolveAll[*Clock](closed)
		assert.ErrorIs(t, err, ioc.ErrContainerDisposed)

		assert.ErrorIs(t, closed.BuildUp(&Handler{}), ioc.ErrContainerDisposed)
	})
}

func TestContext(t *testing.T) {
	c := testutil.Build(t, ioc.NewBuilder())

	t.Run("round trip", func(t *testing.T) {
		ctx := ioc.WithContainer(context.Background(), c)
		got, err := ioc.FromContext(ctx)
		require.NoError(t, err)
		assert.Same(t, c, got)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := ioc.FromContext(context.Background())
		assert.ErrorIs(t, err, ioc.ErrContainerNotInContext)

		_, err = ioc.FromContext(ioc.WithContainer(context.Background(), nil))
		assert.ErrorIs(t, err, ioc.ErrContainerNotInContext)
	})

	t.Run("disposed", func(t *testing.T) {
		scope, err := c.CreateScope()
		require.NoError(t, err)
		ctx := ioc.WithContainer(context.Background(), scope)
		require.NoError(t, scope.Close())

		_, err = ioc.FromContext(ctx)
		assert.ErrorIs(t, err, ioc.ErrContainerDisposed)
	})
}

func TestDefault(t *testing.T) {
	t.Cleanup(func() { ioc.SetDefault(nil) })

	_, err := ioc.ResolveDefault[*Clock]()
	assert.ErrorIs(t, err, ioc.ErrContainerNil)

	b := ioc.NewBuilder()
	ioc.Bind[*Clock](b).ToConstructor(NewClock).InSingletonScope()
	c := testutil.Build(t, b)

	ioc.SetDefault(c)
	assert.Same(t, c, ioc.Default())

	clock, err := ioc.ResolveDefault[*Clock]()
	require.NoError(t, err)
	assert.Same(t, ioc.MustResolve[*Clock](c), clock)
}
