package ioc

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collectionTestA struct{}
type collectionTestB struct{}

func testRegistration(t *testing.T, v any, key ServiceKey) *registration {
	t.Helper()
	cr, err := newInstanceCreator(v)
	require.NoError(t, err)
	return newRegistration(nil, cr, Singleton, []ServiceKey{key})
}

func TestCollection(t *testing.T) {
	key := ServiceKey{Type: reflect.TypeFor[any]()}

	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, 0, emptyCollection.len())
		assert.Empty(t, emptyCollection.getAll())

		_, err := emptyCollection.getSingle(key)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrServiceNotFound))
		assert.Equal(t, "service interface {}: no registrations found for service interface {}", err.Error())
	})

	t.Run("add does not modify the receiver", func(t *testing.T) {
		a := testRegistration(t, &collectionTestA{}, key)
		b := testRegistration(t, &collectionTestB{}, key)

		one := emptyCollection.add(a)
		two := one.add(b)

		assert.Equal(t, 0, emptyCollection.len())
		assert.Equal(t, 1, one.len())
		assert.Equal(t, []*registration{a, b}, two.getAll())
	})

	t.Run("single", func(t *testing.T) {
		a := testRegistration(t, &collectionTestA{}, key)
		got, err := emptyCollection.add(a).getSingle(key)
		require.NoError(t, err)
		assert.Same(t, a, got)
	})

	t.Run("ambiguous", func(t *testing.T) {
		coll := emptyCollection.
			add(testRegistration(t, &collectionTestA{}, key)).
			add(testRegistration(t, &collectionTestB{}, key))

		_, err := coll.getSingle(key)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrAmbiguousRegistration)
		assert.Contains(t, err.Error(), "2 candidates (*collectionTestA, *collectionTestB)")
	})

	t.Run("keyed message", func(t *testing.T) {
		keyed := ServiceKey{Type: reflect.TypeFor[*collectionTestA](), Key: "primary"}
		_, err := emptyCollection.getSingle(keyed)

		var re RegistrationError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, "primary", re.Key)
		assert.Contains(t, err.Error(), "*collectionTestA[primary]")
	})
}
