package ioc

import (
	"fmt"
	"reflect"
)

// collection is the immutable, ordered set of registrations filed under one
// ServiceKey. add returns a new collection, so readers holding the old one
// never observe a partial update.
type collection struct {
	registrations []*registration
}

// emptyCollection answers every key that has no registrations.
var emptyCollection = &collection{registrations: []*registration{}}

// add returns a collection holding the existing registrations followed by reg.
func (c *collection) add(reg *registration) *collection {
	next := make([]*registration, len(c.registrations), len(c.registrations)+1)
	copy(next, c.registrations)
	return &collection{registrations: append(next, reg)}
}

// getSingle returns the only registration, or a RegistrationError when the
// collection is empty or holds more than one.
func (c *collection) getSingle(key ServiceKey) (*registration, error) {
	switch len(c.registrations) {
	case 1:
		return c.registrations[0], nil
	case 0:
		return nil, RegistrationError{
			ServiceType: key.Type,
			Key:         key.Key,
			Cause:       fmt.Errorf("%w for service %s", ErrServiceNotFound, key),
		}
	default:
		candidates := make([]reflect.Type, len(c.registrations))
		for i, reg := range c.registrations {
			candidates[i] = reg.creator.Implementation()
		}
		return nil, RegistrationError{
			ServiceType: key.Type,
			Key:         key.Key,
			Cause: fmt.Errorf("%w: %d candidates (%s); use a key to tell them apart",
				ErrAmbiguousRegistration, len(candidates), formatTypes(candidates)),
		}
	}
}

// getAll returns the registrations in insertion order. The returned slice
// must not be modified.
func (c *collection) getAll() []*registration {
	return c.registrations
}

func (c *collection) len() int {
	return len(c.registrations)
}
