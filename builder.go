package ioc

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/junioryono/ioc/internal/reflection"
)

// Builder accumulates bindings and turns them into a Container.
// Bindings may be declared in any order; they are validated together by
// Build. A Builder is not safe for concurrent use.
//
// Example:
//
//	b := ioc.NewBuilder()
//	b.Bind(ioc.TypeOf[Logger]()).ToConstructor(NewConsoleLogger).InSingletonScope()
//	ioc.Bind[*UserService](b).ToSelf()
//
//	c, err := b.Build()
type Builder struct {
	bindings []*binding
	errs     []error
	parent   *Container
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

type strategy int

const (
	strategyNone strategy = iota
	strategyType
	strategySelf
	strategyConstructor
	strategyFactory
	strategyAbstractFactory
	strategyInstance
	strategyGeneric
)

type binding struct {
	services []reflect.Type
	key      string
	lifetime Lifetime
	weak     bool
	dispose  bool

	strategy strategy
	impl     reflect.Type
	fn       any
	ctors    []any
	extra    int // implementation strategies set after the first
}

// Bind starts a binding for one or more service types.
func (b *Builder) Bind(serviceTypes ...reflect.Type) *BindTo {
	bd := &binding{
		services: serviceTypes,
		lifetime: Transient,
		dispose:  true,
	}
	b.bindings = append(b.bindings, bd)
	return &BindTo{binding: bd}
}

// Bind starts a binding for the service type T.
func Bind[T any](b *Builder) *BindTo {
	return b.Bind(TypeOf[T]())
}

// BindTo selects the implementation of a binding.
type BindTo struct {
	binding *binding
}

// And adds another service type served by the same registration.
func (bt *BindTo) And(serviceType reflect.Type) *BindTo {
	bt.binding.services = append(bt.binding.services, serviceType)
	return bt
}

// WithKey sets the discriminator key of the binding.
func (bt *BindTo) WithKey(key string) *BindTo {
	bt.binding.key = key
	return bt
}

// To binds the services to a struct or pointer-to-struct type. The type is
// allocated and its inject-tagged fields are populated.
func (bt *BindTo) To(implementation reflect.Type) *InScope {
	bt.set(strategyType)
	bt.binding.impl = implementation
	return &InScope{binding: bt.binding}
}

// ToSelf binds a single struct or pointer-to-struct service type to itself.
func (bt *BindTo) ToSelf() *InScope {
	bt.set(strategySelf)
	return &InScope{binding: bt.binding}
}

// ToConstructor binds the services to a constructor function. Its
// parameters, or the fields of an ioc.In parameter object, are resolved
// from the container.
func (bt *BindTo) ToConstructor(constructor any) *InScope {
	bt.set(strategyConstructor)
	bt.binding.fn = constructor
	return &InScope{binding: bt.binding}
}

// ToFactory binds the services to a delegate of the form func() T,
// func() (T, error), func(ioc.Resolver) T or func(ioc.Resolver) (T, error).
func (bt *BindTo) ToFactory(factory any) *InScope {
	bt.set(strategyFactory)
	bt.binding.fn = factory
	return &InScope{binding: bt.binding}
}

// ToAbstractFactory implements the single service type, a struct of func
// fields or a func type, with methods that resolve their results. The
// binding defaults to Singleton.
func (bt *BindTo) ToAbstractFactory() *InScope {
	bt.set(strategyAbstractFactory)
	bt.binding.lifetime = Singleton
	return &InScope{binding: bt.binding}
}

// ToInstance binds the services to an existing value.
func (bt *BindTo) ToInstance(instance any) *InstanceBinding {
	bt.set(strategyInstance)
	bt.binding.fn = instance
	bt.binding.lifetime = Singleton
	return &InstanceBinding{binding: bt.binding}
}

// ToGeneric binds a generic service family to instantiated constructors.
// The service type names the family; any instantiation will do.
//
// Example:
//
//	ioc.Bind[Repository[any]](b).ToGeneric(NewRepository[Customer], NewRepository[Order])
func (bt *BindTo) ToGeneric(constructors ...any) *InScope {
	bt.set(strategyGeneric)
	bt.binding.ctors = constructors
	return &InScope{binding: bt.binding}
}

func (bt *BindTo) set(s strategy) {
	if bt.binding.strategy != strategyNone {
		bt.binding.extra++
	}
	bt.binding.strategy = s
}

// InScope sets the lifetime and other options of a binding.
type InScope struct {
	binding *binding
}

// InTransientScope creates a new instance on every resolution.
func (s *InScope) InTransientScope() *InScope {
	return s.WithLifetime(Transient)
}

// InSingletonScope creates one instance shared by the container tree.
func (s *InScope) InSingletonScope() *InScope {
	return s.WithLifetime(Singleton)
}

// InPerContainerScope creates one instance per requesting container.
func (s *InScope) InPerContainerScope() *InScope {
	return s.WithLifetime(PerContainer)
}

// WithLifetime sets the lifetime of the binding.
func (s *InScope) WithLifetime(lifetime Lifetime) *InScope {
	s.binding.lifetime = lifetime
	return s
}

// WithKey sets the discriminator key of the binding.
func (s *InScope) WithKey(key string) *InScope {
	s.binding.key = key
	return s
}

// AsWeakBinding marks the binding as a default that is dropped for every
// service key that also has a regular binding.
func (s *InScope) AsWeakBinding() *InScope {
	s.binding.weak = true
	return s
}

// InstanceBinding sets the options of an instance binding.
type InstanceBinding struct {
	binding *binding
}

// WithKey sets the discriminator key of the binding.
func (ib *InstanceBinding) WithKey(key string) *InstanceBinding {
	ib.binding.key = key
	return ib
}

// AsWeakBinding marks the binding as a default that is dropped for every
// service key that also has a regular binding.
func (ib *InstanceBinding) AsWeakBinding() *InstanceBinding {
	ib.binding.weak = true
	return ib
}

// DisposeWithContainer controls whether a Disposable instance is closed
// with the container. It defaults to true.
func (ib *InstanceBinding) DisposeWithContainer(dispose bool) *InstanceBinding {
	ib.binding.dispose = dispose
	return ib
}

// Build validates every binding and returns the container. All problems
// are reported together, joined with errors.Join; each is a
// RegistrationError or a ModuleError.
func (b *Builder) Build() (*Container, error) {
	return b.BuildWithOptions(nil)
}

// BuildWithOptions is Build with explicit options.
func (b *Builder) BuildWithOptions(opts *Options) (*Container, error) {
	if b.parent != nil && b.parent.IsDisposed() {
		return nil, ErrContainerDisposed
	}

	c := newContainer(b.parent, opts)

	type pending struct {
		reg     *registration
		weak    bool
		dispose bool
	}

	errs := append([]error(nil), b.errs...)
	var regs []pending
	strong := make(map[ServiceKey]bool)

	for _, bd := range b.bindings {
		if err := bd.validate(); err != nil {
			errs = append(errs, bd.fail(err))
			continue
		}

		if bd.strategy == strategyGeneric {
			ob, err := bd.openBinding(c.analyzer)
			if err != nil {
				errs = append(errs, bd.fail(err))
				continue
			}
			c.generics = append(c.generics, ob)
			continue
		}

		creator, err := bd.creator(c.analyzer)
		if err != nil {
			errs = append(errs, bd.fail(err))
			continue
		}

		keys := make([]ServiceKey, len(bd.services))
		for i, t := range bd.services {
			keys[i] = ServiceKey{Type: t, Key: bd.key}
			if !bd.weak {
				strong[keys[i]] = true
			}
		}

		regs = append(regs, pending{
			reg:     newRegistration(c, creator, bd.lifetime, keys),
			weak:    bd.weak,
			dispose: bd.dispose,
		})
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	for _, p := range regs {
		keys := p.reg.services
		if p.weak {
			keys = nil
			for _, k := range p.reg.services {
				if !strong[k] {
					keys = append(keys, k)
				}
			}
			if len(keys) == 0 {
				continue
			}
		}

		c.file(p.reg, keys)

		if inst, ok := p.reg.creator.(*InstanceCreator); ok && p.dispose {
			c.lifecycle.track(inst.value.Interface())
		}
	}

	if b.parent != nil {
		b.parent.addChild(c)
	}

	c.logger.Debug("container built",
		"id", c.id,
		"registrations", len(c.registrations),
		"generics", len(c.generics),
		"child", b.parent != nil)

	if opts != nil && opts.Compile {
		if err := c.Compile(); err != nil {
			_ = c.Close()
			return nil, err
		}
	}

	return c, nil
}

func (bd *binding) fail(err error) error {
	var service reflect.Type
	if len(bd.services) > 0 {
		service = bd.services[0]
	}
	return RegistrationError{ServiceType: service, Key: bd.key, Cause: err}
}

func (bd *binding) validate() error {
	if len(bd.services) == 0 {
		return fmt.Errorf("%w: binding has no service types", ErrServiceTypeNil)
	}
	for _, t := range bd.services {
		if t == nil {
			return ErrServiceTypeNil
		}
	}
	if !bd.lifetime.IsValid() {
		return LifetimeError{Value: bd.lifetime}
	}
	if bd.strategy == strategyNone {
		return ErrNoImplementation
	}
	if bd.extra > 0 {
		return fmt.Errorf("binding has %d implementations; call exactly one To method", bd.extra+1)
	}
	if (bd.strategy == strategySelf || bd.strategy == strategyAbstractFactory) && len(bd.services) != 1 {
		return fmt.Errorf("%w: this binding needs exactly one service type, got %d", ErrTypeMismatch, len(bd.services))
	}
	return nil
}

func (bd *binding) creator(a *reflection.Analyzer) (Creator, error) {
	var creator Creator

	switch bd.strategy {
	case strategyType, strategySelf:
		impl := bd.impl
		if bd.strategy == strategySelf {
			impl = bd.services[0]
		}
		cr, err := newTypeCreator(a, impl)
		if err != nil {
			return nil, err
		}
		creator = cr

	case strategyConstructor:
		cr, err := newConstructorCreator(a, bd.fn)
		if err != nil {
			return nil, err
		}
		creator = cr

	case strategyFactory:
		cr, err := newFactoryCreator(bd.fn)
		if err != nil {
			return nil, err
		}
		creator = cr

	case strategyAbstractFactory:
		cr, err := newAbstractFactoryCreator(a, bd.services[0])
		if err != nil {
			return nil, err
		}
		return cr, nil

	case strategyInstance:
		cr, err := newInstanceCreator(bd.fn)
		if err != nil {
			return nil, err
		}
		creator = cr

	default:
		return nil, ErrNoImplementation
	}

	impl := creator.Implementation()
	for _, service := range bd.services {
		if !impl.AssignableTo(service) {
			return nil, TypeMismatchError{Expected: service, Actual: impl, Context: "binding"}
		}
	}
	return creator, nil
}

func (bd *binding) openBinding(a *reflection.Analyzer) (*openBinding, error) {
	if len(bd.services) != 1 {
		return nil, fmt.Errorf("%w: generic bindings take exactly one service type", ErrNotGeneric)
	}

	service := bd.services[0]
	family, _, ok := genericFamily(service)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotGeneric, formatType(service))
	}
	if len(bd.ctors) == 0 {
		return nil, ErrNoImplementation
	}

	ob := &openBinding{
		family:   family,
		service:  service,
		key:      bd.key,
		lifetime: bd.lifetime,
	}

	for _, ctor := range bd.ctors {
		cr, err := newConstructorCreator(a, ctor)
		if err != nil {
			return nil, err
		}
		_, args, ok := genericFamily(cr.impl)
		if !ok {
			return nil, fmt.Errorf("%w: constructor %T does not produce a generic type", ErrNotGeneric, ctor)
		}
		ob.candidates = append(ob.candidates, genericCandidate{creator: cr, args: args})
	}

	return ob, nil
}
