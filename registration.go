package ioc

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/junioryono/ioc/internal/graph"
)

// producer builds one instance for a resolution.
type producer func(*resolveContext) (reflect.Value, error)

// argsKey identifies an abstract factory method signature whose arguments
// override dependencies of the product.
type argsKey struct {
	method reflect.Type
	keyed  bool
}

// registration pairs a Creator with a lifetime. One registration is filed
// under every service key of its binding, so all of them share the same
// cached instance.
type registration struct {
	creator  Creator
	lifetime Lifetime
	owner    *Container
	services []ServiceKey
	node     graph.NodeKey

	producer atomic.Pointer[producer]
	withArgs sync.Map // argsKey -> producer

	// scoped is set when the registration needs a per-container instance,
	// directly or through Transient dependencies. Guarded by the compile mutex.
	scoped bool

	lock     constructLock
	instance atomic.Pointer[reflect.Value]
}

func newRegistration(owner *Container, creator Creator, lifetime Lifetime, services []ServiceKey) *registration {
	return &registration{
		creator:  creator,
		lifetime: lifetime,
		owner:    owner,
		services: services,
		node:     services[0].node(),
	}
}

// serves reports whether the registration is filed under a key of type t.
func (r *registration) serves(t reflect.Type) bool {
	for _, k := range r.services {
		if k.Type == t {
			return true
		}
	}
	return false
}

// producerFor returns the compiled producer, compiling it on first use.
func (r *registration) producerFor() (producer, error) {
	if p := r.producer.Load(); p != nil {
		return *p, nil
	}

	root := r.owner.root
	root.compileMu.Lock()
	defer root.compileMu.Unlock()

	return compile(r, &compileState{})
}

// producerWithArgs returns a producer that takes the given argument types
// from the resolution context instead of resolving them. When none of the
// creator's direct dependencies match an argument the regular producer is
// returned, and lifetime caching applies as usual. Otherwise every call
// constructs a new instance.
func (r *registration) producerWithArgs(key argsKey, args []reflect.Type) (producer, error) {
	if len(args) == 0 {
		return r.producerFor()
	}
	if _, ok := r.creator.(*TypeCreator); !ok {
		return r.producerFor()
	}
	if p, ok := r.withArgs.Load(key); ok {
		return p.(producer), nil
	}

	root := r.owner.root
	root.compileMu.Lock()
	defer root.compileMu.Unlock()

	if p, ok := r.withArgs.Load(key); ok {
		return p.(producer), nil
	}

	st := &compileState{}
	st.push(r)
	raw, info, err := compileCreator(r, st, args)
	if err != nil {
		return nil, err
	}

	p := raw
	if !info.argsUsed {
		if p, err = compile(r, &compileState{}); err != nil {
			return nil, err
		}
	}

	r.withArgs.Store(key, p)
	return p, nil
}

// wrap applies the lifetime policy to a raw producer.
func (r *registration) wrap(raw producer) producer {
	if _, ok := r.creator.(*InstanceCreator); ok {
		return raw
	}

	switch r.lifetime {
	case Singleton:
		return r.singleton(raw)
	case PerContainer:
		return r.perContainer(raw)
	default:
		if _, ok := r.creator.(*FactoryCreator); ok {
			return func(ctx *resolveContext) (reflect.Value, error) {
				inner, err := ctx.enter(r, ctx.container)
				if err != nil {
					return reflect.Value{}, err
				}
				defer inner.leave()
				return raw(inner)
			}
		}
		return raw
	}
}

func (r *registration) singleton(raw producer) producer {
	return func(ctx *resolveContext) (reflect.Value, error) {
		if v := r.instance.Load(); v != nil {
			return *v, nil
		}

		// Dependencies of a singleton resolve against the container that owns it.
		inner, err := ctx.enter(r, r.owner)
		if err != nil {
			return reflect.Value{}, err
		}
		defer inner.leave()

		if err := inner.acquire(&r.lock, r.node); err != nil {
			return reflect.Value{}, err
		}
		defer inner.release(&r.lock)

		if v := r.instance.Load(); v != nil {
			return *v, nil
		}

		v, err := raw(inner)
		if err != nil {
			return reflect.Value{}, err
		}

		r.owner.lifecycle.track(v.Interface())
		r.instance.Store(&v)
		return v, nil
	}
}

func (r *registration) perContainer(raw producer) producer {
	return func(ctx *resolveContext) (reflect.Value, error) {
		target := ctx.container
		if v, ok := target.instances.get(r); ok {
			return v, nil
		}

		inner, err := ctx.enter(r, target)
		if err != nil {
			return reflect.Value{}, err
		}
		defer inner.leave()

		slot := target.instances.slot(r)
		if err := inner.acquire(&slot.lock, r.node); err != nil {
			return reflect.Value{}, err
		}
		defer inner.release(&slot.lock)

		if v := slot.value.Load(); v != nil {
			return *v, nil
		}

		v, err := raw(inner)
		if err != nil {
			return reflect.Value{}, err
		}

		target.lifecycle.track(v.Interface())
		slot.value.Store(&v)
		return v, nil
	}
}
