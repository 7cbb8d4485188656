package ioc

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/junioryono/ioc/internal/reflection"
)

// Creator knows how to produce instances of one implementation. The set of
// creators is closed: *TypeCreator, *FactoryCreator, *AbstractFactoryCreator
// and *InstanceCreator.
type Creator interface {
	// Implementation returns the type of the values the creator produces.
	Implementation() reflect.Type

	// Kind returns a short description used in diagnostics.
	Kind() string

	isCreator()
}

var (
	_ Creator = (*TypeCreator)(nil)
	_ Creator = (*FactoryCreator)(nil)
	_ Creator = (*AbstractFactoryCreator)(nil)
	_ Creator = (*InstanceCreator)(nil)
)

var (
	resolverType = reflect.TypeFor[Resolver]()
	errorType    = reflect.TypeFor[error]()
)

// TypeCreator builds an implementation from a constructor function, or by
// allocating a struct and populating its inject-tagged fields.
type TypeCreator struct {
	impl   reflect.Type
	ctor   *reflection.ConstructorInfo // nil when built from a struct type
	fields *reflection.StructInfo      // nil when the result has no injectable fields
}

func newTypeCreator(a *reflection.Analyzer, impl reflect.Type) (*TypeCreator, error) {
	if impl == nil {
		return nil, ErrServiceTypeNil
	}

	fields, err := a.Injectable(impl)
	if err != nil {
		if errors.Is(err, reflection.ErrNotStruct) {
			return nil, fmt.Errorf("%w: %s is not a struct or pointer to struct; bind a constructor or factory instead",
				ErrNotConstructible, formatType(impl))
		}
		return nil, fmt.Errorf("%w: %w", ErrNotConstructible, err)
	}

	return &TypeCreator{impl: impl, fields: fields}, nil
}

func newConstructorCreator(a *reflection.Analyzer, fn any) (*TypeCreator, error) {
	info, err := a.Analyze(fn)
	if err != nil {
		if errors.Is(err, reflection.ErrMultipleResults) {
			return nil, fmt.Errorf("%w: %T: %w", ErrAmbiguousConstructor, fn, err)
		}
		return nil, fmt.Errorf("%w: %T: %w", ErrNotConstructible, fn, err)
	}

	cr := &TypeCreator{impl: info.ResultType, ctor: info}

	if t := info.ResultType; t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct {
		fields, err := a.Injectable(t)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNotConstructible, err)
		}
		if len(fields.Fields) > 0 {
			cr.fields = fields
		}
	}

	return cr, nil
}

func (c *TypeCreator) Implementation() reflect.Type { return c.impl }

func (c *TypeCreator) Kind() string {
	if c.ctor != nil {
		return "constructor"
	}
	return "type"
}

func (*TypeCreator) isCreator() {}

// FactoryCreator invokes a user-supplied delegate.
type FactoryCreator struct {
	fn            reflect.Value
	result        reflect.Type
	takesResolver bool
	hasError      bool
}

func newFactoryCreator(fn any) (*FactoryCreator, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: factory cannot be nil", ErrNotFactory)
	}

	v := reflect.ValueOf(fn)
	t := v.Type()
	if t.Kind() != reflect.Func || v.IsNil() {
		return nil, fmt.Errorf("%w: %T is not a function", ErrNotFactory, fn)
	}

	cr := &FactoryCreator{fn: v}

	switch {
	case t.NumIn() == 0:
	case t.NumIn() == 1 && t.In(0) == resolverType:
		cr.takesResolver = true
	default:
		return nil, fmt.Errorf("%w: %s must take no arguments or a single ioc.Resolver", ErrNotFactory, t)
	}

	switch {
	case t.NumOut() == 1 && t.Out(0) != errorType:
	case t.NumOut() == 2 && t.Out(0) != errorType && t.Out(1) == errorType:
		cr.hasError = true
	default:
		return nil, fmt.Errorf("%w: %s must return T or (T, error)", ErrNotFactory, t)
	}
	cr.result = t.Out(0)

	return cr, nil
}

func (c *FactoryCreator) Implementation() reflect.Type { return c.result }
func (*FactoryCreator) Kind() string                   { return "factory" }
func (*FactoryCreator) isCreator()                     {}

// AbstractFactoryCreator produces an implementation of a factory type whose
// methods resolve their results through the container that created it.
type AbstractFactoryCreator struct {
	factory reflect.Type
	info    *reflection.FactoryInfo
}

func newAbstractFactoryCreator(a *reflection.Analyzer, t reflect.Type) (*AbstractFactoryCreator, error) {
	info, err := a.Factory(t)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFactory, err)
	}
	return &AbstractFactoryCreator{factory: t, info: info}, nil
}

func (c *AbstractFactoryCreator) Implementation() reflect.Type { return c.factory }
func (*AbstractFactoryCreator) Kind() string                   { return "abstract-factory" }
func (*AbstractFactoryCreator) isCreator()                     {}

// InstanceCreator returns a value supplied at binding time.
type InstanceCreator struct {
	value reflect.Value
}

func newInstanceCreator(v any) (*InstanceCreator, error) {
	if v == nil {
		return nil, ErrNilInstance
	}
	rv := reflect.ValueOf(v)
	if isNil(rv) {
		return nil, fmt.Errorf("%w: %T", ErrNilInstance, v)
	}
	return &InstanceCreator{value: rv}, nil
}

func (c *InstanceCreator) Implementation() reflect.Type { return c.value.Type() }
func (*InstanceCreator) Kind() string                   { return "instance" }
func (*InstanceCreator) isCreator()                     {}

// isNil reports whether v holds a nil value of a nillable kind.
func isNil(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}
