package ioc

import (
	"fmt"
	"reflect"
	"runtime/debug"
	"slices"

	"github.com/junioryono/ioc/internal/graph"
	"github.com/junioryono/ioc/internal/reflection"
)

// compileState tracks the registrations whose producers are being built, so
// that a dependency cycle is reported instead of recursing forever.
type compileState struct {
	regs []*registration
	path graph.Path
}

func (st *compileState) push(r *registration) {
	st.regs = append(st.regs, r)
	st.path = st.path.Push(r.node)
}

func (st *compileState) pop() {
	st.regs = st.regs[:len(st.regs)-1]
	st.path = st.path[:len(st.path)-1]
}

// compileInfo reports what compiling a creator found out about it.
type compileInfo struct {
	argsUsed bool
	scoped   *registration // first dependency that needs a per-container instance
}

// compile builds and memoizes the producer of r. The caller holds the
// tree's compile mutex. Compiling never runs user code.
func compile(r *registration, st *compileState) (producer, error) {
	if p := r.producer.Load(); p != nil {
		return *p, nil
	}

	if i := slices.Index(st.regs, r); i >= 0 {
		return nil, RegistrationError{
			ServiceType: r.node.Type,
			Key:         r.node.Key,
			Cause:       st.path[i:].Cycle(r.node),
		}
	}

	st.push(r)
	defer st.pop()

	raw, info, err := compileCreator(r, st, nil)
	if err != nil {
		return nil, err
	}

	if r.lifetime == Singleton && info.scoped != nil {
		return nil, RegistrationError{
			ServiceType: r.node.Type,
			Key:         r.node.Key,
			Cause: LifetimeConflictError{
				ServiceType:        r.node.Type,
				ServiceLifetime:    r.lifetime,
				DependencyType:     info.scoped.node.Type,
				DependencyLifetime: info.scoped.lifetime,
			},
		}
	}
	r.scoped = r.lifetime == PerContainer || (r.lifetime == Transient && info.scoped != nil)

	p := r.wrap(raw)
	r.producer.Store(&p)
	return p, nil
}

// compileCreator builds the raw producer of r's creator. args lists the
// argument types an abstract factory method supplies for direct dependencies.
func compileCreator(r *registration, st *compileState, args []reflect.Type) (producer, compileInfo, error) {
	var info compileInfo

	switch cr := r.creator.(type) {
	case *TypeCreator:
		p, err := compileType(r, cr, st, args, &info)
		return p, info, err

	case *FactoryCreator:
		return compileFactory(r, cr), info, nil

	case *AbstractFactoryCreator:
		plan, err := r.owner.factoryPlan(cr.factory)
		if err != nil {
			return nil, info, RegistrationError{ServiceType: r.node.Type, Key: r.node.Key, Cause: err}
		}
		return func(ctx *resolveContext) (reflect.Value, error) {
			return plan.build(ctx), nil
		}, info, nil

	case *InstanceCreator:
		value := cr.value
		return func(*resolveContext) (reflect.Value, error) {
			return value, nil
		}, info, nil

	default:
		return nil, info, fmt.Errorf("unknown creator %T", cr)
	}
}

func compileType(r *registration, cr *TypeCreator, st *compileState, args []reflect.Type, info *compileInfo) (producer, error) {
	var params []producer
	if cr.ctor != nil {
		params = make([]producer, len(cr.ctor.Parameters))
		for i, p := range cr.ctor.Parameters {
			dep, err := compileDependency(r, st, p, args, info)
			if err != nil {
				return nil, err
			}
			params[i] = dep
		}
	}

	var fields []producer
	if cr.fields != nil {
		fields = make([]producer, len(cr.fields.Fields))
		for i, f := range cr.fields.Fields {
			dep, err := compileDependency(r, st, f, args, info)
			if err != nil {
				return nil, err
			}
			fields[i] = dep
		}
	}

	if cr.ctor == nil {
		return structProducer(cr, fields), nil
	}
	return constructorProducer(r, cr, params, fields), nil
}

func structProducer(cr *TypeCreator, fields []producer) producer {
	structType := cr.fields.Type
	byPointer := cr.impl.Kind() == reflect.Pointer

	return func(ctx *resolveContext) (reflect.Value, error) {
		ptr := reflect.New(structType)
		if err := injectFields(ctx, ptr.Elem(), cr.fields, fields); err != nil {
			return reflect.Value{}, err
		}

		v := ptr
		if !byPointer {
			v = ptr.Elem()
		}
		notifyInjected(v)
		return v, nil
	}
}

func constructorProducer(r *registration, cr *TypeCreator, params, fields []producer) producer {
	ctor := cr.ctor

	return func(ctx *resolveContext) (reflect.Value, error) {
		var in []reflect.Value
		if ctor.IsParamObject {
			obj := reflect.New(ctor.Type.In(0)).Elem()
			for i, p := range ctor.Parameters {
				v, err := params[i](ctx)
				if err != nil {
					return reflect.Value{}, err
				}
				obj.Field(p.Index).Set(v)
			}
			in = []reflect.Value{obj}
		} else {
			in = make([]reflect.Value, len(params))
			for i, p := range params {
				v, err := p(ctx)
				if err != nil {
					return reflect.Value{}, err
				}
				in[i] = v
			}
		}

		out, err := invoke(ctor.Value, in)
		if err != nil {
			return reflect.Value{}, err
		}
		if ctor.HasErrorReturn && !out[1].IsNil() {
			return reflect.Value{}, out[1].Interface().(error)
		}

		v := out[0]
		if isNil(v) {
			return reflect.Value{}, RegistrationError{
				ServiceType: r.node.Type,
				Key:         r.node.Key,
				Cause:       fmt.Errorf("%w: constructor %s returned nil", ErrNilInstance, ctor.Type),
			}
		}

		if cr.fields != nil {
			if err := injectFields(ctx, v.Elem(), cr.fields, fields); err != nil {
				return reflect.Value{}, err
			}
		}
		notifyInjected(v)
		return v, nil
	}
}

func compileFactory(r *registration, cr *FactoryCreator) producer {
	return func(ctx *resolveContext) (reflect.Value, error) {
		var in []reflect.Value
		if cr.takesResolver {
			in = []reflect.Value{reflect.ValueOf(Resolver(ctx.resolver()))}
		}

		out, err := invoke(cr.fn, in)
		if err != nil {
			return reflect.Value{}, err
		}
		if cr.hasError && !out[1].IsNil() {
			return reflect.Value{}, out[1].Interface().(error)
		}

		v := out[0]
		if isNil(v) {
			return reflect.Value{}, RegistrationError{
				ServiceType: r.node.Type,
				Key:         r.node.Key,
				Cause:       fmt.Errorf("%w: factory %s returned nil", ErrNilInstance, cr.fn.Type()),
			}
		}
		return v, nil
	}
}

// compileDependency builds the producer for one constructor parameter or
// injected field of dependent.
func compileDependency(dependent *registration, st *compileState, dep reflection.ParameterInfo, args []reflect.Type, info *compileInfo) (producer, error) {
	if slices.Contains(args, dep.Type) {
		info.argsUsed = true
		t := dep.Type
		return func(ctx *resolveContext) (reflect.Value, error) {
			if v, ok := ctx.args[t]; ok {
				return v, nil
			}
			return reflect.Zero(t), nil
		}, nil
	}

	owner := dependent.owner
	key := ServiceKey{Type: dep.Type, Key: dep.Key}

	coll, err := owner.lookup(key)
	if err != nil {
		return nil, withDependentType(err, dependent.node.Type)
	}

	if coll.len() == 0 {
		switch {
		case dep.Type.Kind() == reflect.Slice:
			return compileAll(dependent, st, ServiceKey{Type: dep.Type.Elem(), Key: dep.Key}, dep.Type, info)
		case dep.Optional:
			zero := reflect.Zero(dep.Type)
			return func(*resolveContext) (reflect.Value, error) {
				return zero, nil
			}, nil
		}
	}

	reg, err := coll.getSingle(key)
	if err != nil {
		return nil, withDependentType(err, dependent.node.Type)
	}

	p, err := compile(reg, st)
	if err != nil {
		return nil, err
	}
	if reg.scoped && info.scoped == nil {
		info.scoped = reg
	}
	return p, nil
}

// compileAll builds a producer for a slice of every registration of key.
func compileAll(dependent *registration, st *compileState, key ServiceKey, sliceType reflect.Type, info *compileInfo) (producer, error) {
	coll, err := dependent.owner.lookup(key)
	if err != nil {
		return nil, withDependentType(err, dependent.node.Type)
	}

	regs := coll.getAll()
	producers := make([]producer, len(regs))
	for i, reg := range regs {
		p, err := compile(reg, st)
		if err != nil {
			return nil, err
		}
		if reg.scoped && info.scoped == nil {
			info.scoped = reg
		}
		producers[i] = p
	}

	return func(ctx *resolveContext) (reflect.Value, error) {
		out := reflect.MakeSlice(sliceType, 0, len(producers))
		for _, p := range producers {
			v, err := p(ctx)
			if err != nil {
				return reflect.Value{}, err
			}
			out = reflect.Append(out, v)
		}
		return out, nil
	}, nil
}

// invoke calls fn, converting a panic into a ConstructorPanicError.
func invoke(fn reflect.Value, in []reflect.Value) (out []reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ConstructorPanicError{
				Constructor: fn.Type(),
				Panic:       r,
				Stack:       debug.Stack(),
			}
		}
	}()

	return fn.Call(in), nil
}

func injectFields(ctx *resolveContext, target reflect.Value, info *reflection.StructInfo, fields []producer) error {
	for i, f := range info.Fields {
		v, err := fields[i](ctx)
		if err != nil {
			return err
		}
		target.Field(f.Index).Set(v)
	}
	return nil
}

func notifyInjected(v reflect.Value) {
	if aware, ok := v.Interface().(InjectionAware); ok {
		aware.ParametersInjected()
	}
}
