package ioc

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closeFunc func() error

func (f closeFunc) Close() error { return f() }

func TestLifecycleManager(t *testing.T) {
	t.Run("ignores values that are not disposable", func(t *testing.T) {
		m := newLifecycleManager()
		assert.False(t, m.track(42))
		assert.False(t, m.track(&struct{}{}))
		assert.Equal(t, 0, m.count())
	})

	t.Run("disposes in reverse order", func(t *testing.T) {
		var order []int
		m := newLifecycleManager()
		for i := range 3 {
			require.True(t, m.track(closeFunc(func() error {
				order = append(order, i)
				return nil
			})))
		}
		assert.Equal(t, 3, m.count())

		assert.Empty(t, m.dispose())
		assert.Equal(t, []int{2, 1, 0}, order)
		assert.Equal(t, 0, m.count())
	})

	t.Run("collects failures and panics", func(t *testing.T) {
		failure := errors.New("failure")
		closed := false

		m := newLifecycleManager()
		m.track(closeFunc(func() error { closed = true; return nil }))
		m.track(closeFunc(func() error { return failure }))
		m.track(closeFunc(func() error { panic("oops") }))

		errs := m.dispose()
		require.Len(t, errs, 2)
		assert.Contains(t, errs[0].Error(), "panic during close: oops")
		assert.ErrorIs(t, errs[1], failure)
		assert.True(t, closed)
	})

	t.Run("dispose twice", func(t *testing.T) {
		calls := 0
		m := newLifecycleManager()
		m.track(closeFunc(func() error { calls++; return nil }))

		m.dispose()
		m.dispose()
		assert.Equal(t, 1, calls)
	})
}

func TestInstanceCache(t *testing.T) {
	c := newInstanceCache()
	reg := &registration{}

	_, ok := c.get(reg)
	assert.False(t, ok)

	slot := c.slot(reg)
	assert.Same(t, slot, c.slot(reg))

	_, ok = c.get(reg)
	assert.False(t, ok, "an empty slot holds no instance")

	v := reflect.ValueOf(7)
	slot.value.Store(&v)

	got, ok := c.get(reg)
	require.True(t, ok)
	assert.Equal(t, 7, got.Interface())

	c.clear()
	_, ok = c.get(reg)
	assert.False(t, ok)
	assert.NotSame(t, slot, c.slot(reg))
}
