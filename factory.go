package ioc

import (
	"reflect"

	"github.com/junioryono/ioc/internal/reflection"
)

// factoryPlan is the generated implementation of one abstract factory type.
// Plans are created once per type for the whole container tree.
type factoryPlan struct {
	info       *reflection.FactoryInfo
	structType reflect.Type
	byPointer  bool
}

// factoryPlan returns the plan for t, generating it on first use.
func (c *Container) factoryPlan(t reflect.Type) (*factoryPlan, error) {
	root := c.root
	if v, ok := root.factories.Load(t); ok {
		return v.(*factoryPlan), nil
	}

	v, err, _ := root.factoryGroup.Do(typeID(t), func() (any, error) {
		if v, ok := root.factories.Load(t); ok {
			return v, nil
		}

		info, err := root.analyzer.Factory(t)
		if err != nil {
			return nil, err
		}

		plan := &factoryPlan{info: info}
		if !info.IsFunc {
			plan.structType = t
			if t.Kind() == reflect.Pointer {
				plan.structType = t.Elem()
				plan.byPointer = true
			}
		}

		root.factories.Store(t, plan)
		root.logger.Debug("generated abstract factory", "type", formatType(t), "methods", len(info.Methods))
		return plan, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*factoryPlan), nil
}

// build returns a factory value whose methods resolve through the
// container that requested it.
func (p *factoryPlan) build(ctx *resolveContext) reflect.Value {
	if p.info.IsFunc {
		return reflect.MakeFunc(p.info.Type, factoryMethod(ctx, p.info.Methods[0]))
	}

	v := reflect.New(p.structType).Elem()
	for _, m := range p.info.Methods {
		v.Field(m.Index).Set(reflect.MakeFunc(m.Type, factoryMethod(ctx, m)))
	}

	if p.byPointer {
		return v.Addr()
	}
	return v
}

// factoryMethod implements one method. A keyed method uses its first
// argument as the discriminator key; the remaining arguments are supplied
// to the product's dependencies of the same types. Methods without an error
// result panic when resolution fails.
func factoryMethod(ctx *resolveContext, m reflection.FactoryMethod) func([]reflect.Value) []reflect.Value {
	resultType := m.Type.Out(0)
	sig := argsKey{method: m.Type, keyed: m.Keyed}

	return func(in []reflect.Value) []reflect.Value {
		key := ""
		if m.Keyed {
			key = in[0].String()
			in = in[1:]
		}

		call := ctx.live()
		target := ServiceKey{Type: m.Result, Key: key}

		var v reflect.Value
		var err error
		if m.All {
			v, err = call.container.resolveSlice(call, target, resultType)
		} else {
			v, err = call.container.resolveWithArgs(call, target, sig, m.Args, in)
		}

		out := reflect.New(resultType).Elem()
		if err == nil {
			out.Set(v)
		}

		if !m.HasErrorReturn {
			if err != nil {
				panic(err)
			}
			return []reflect.Value{out}
		}

		errOut := reflect.New(errorType).Elem()
		if err != nil {
			errOut.Set(reflect.ValueOf(err))
		}
		return []reflect.Value{out, errOut}
	}
}

// typeID returns a string that identifies t across packages.
func typeID(t reflect.Type) string {
	base := t
	for base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	return base.PkgPath() + "|" + t.String()
}
