package ioc

import (
	"fmt"
	"reflect"
	"strings"
)

// openBinding is a generic service family bound to a set of instantiated
// constructors. The first request for a closed member of the family picks
// the constructor whose type arguments match and files a registration for
// it under the exact closed key.
type openBinding struct {
	family     string
	service    reflect.Type
	key        string
	lifetime   Lifetime
	candidates []genericCandidate
}

type genericCandidate struct {
	creator *TypeCreator
	args    string
}

// genericFamily splits an instantiated generic type into its family
// (package path and base name, with any pointer prefix) and the text of its
// type arguments.
func genericFamily(t reflect.Type) (family, args string, ok bool) {
	var stars strings.Builder
	for t.Kind() == reflect.Pointer {
		stars.WriteByte('*')
		t = t.Elem()
	}

	name := t.Name()
	open := strings.IndexByte(name, '[')
	if open < 0 || !strings.HasSuffix(name, "]") {
		return "", "", false
	}

	return stars.String() + t.PkgPath() + "." + name[:open], name[open+1 : len(name)-1], true
}

// closeOver returns the creator for the closed type t, or nil when no
// candidate fits. A candidate with identical type arguments wins; otherwise
// a single assignable candidate is used.
func (ob *openBinding) closeOver(t reflect.Type, args string) *TypeCreator {
	var assignable []*TypeCreator
	for _, cand := range ob.candidates {
		if !cand.creator.impl.AssignableTo(t) {
			continue
		}
		if cand.args == args {
			return cand.creator
		}
		assignable = append(assignable, cand.creator)
	}

	if len(assignable) == 1 {
		return assignable[0]
	}
	return nil
}

// closeGeneric binds key from the open generic bindings of this container.
// It returns the empty collection when no open binding covers key's family.
func (c *Container) closeGeneric(key ServiceKey) (*collection, error) {
	if len(c.generics) == 0 {
		return emptyCollection, nil
	}

	family, args, ok := genericFamily(key.Type)
	if !ok {
		return emptyCollection, nil
	}

	var matching []*openBinding
	for _, ob := range c.generics {
		if ob.family == family && ob.key == key.Key {
			matching = append(matching, ob)
		}
	}
	if len(matching) == 0 {
		return emptyCollection, nil
	}

	v, err, _ := c.closing.Do(family+"["+args+"]\x00"+key.Key, func() (any, error) {
		if coll := c.collection(key); coll.len() > 0 {
			return coll, nil
		}

		var bound []*registration
		for _, ob := range matching {
			creator := ob.closeOver(key.Type, args)
			if creator == nil {
				continue
			}
			reg := newRegistration(c, creator, ob.lifetime, []ServiceKey{key})
			c.file(reg, reg.services)
			bound = append(bound, reg)
		}

		if len(bound) == 0 {
			return nil, RegistrationError{
				ServiceType: key.Type,
				Key:         key.Key,
				Cause:       fmt.Errorf("%w: %s has no constructor for [%s]", ErrNoClosedImplementation, family, args),
			}
		}

		c.logger.Debug("bound closed generic",
			"service", key.String(),
			"implementation", formatType(bound[0].creator.Implementation()),
			"container", c.id)

		return c.collection(key), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*collection), nil
}
