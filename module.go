package ioc

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"
)

// Module groups bindings. It is applied to a Builder with AddModules.
type Module func(*Builder) error

// NewModule creates a new module with the given name and parts.
// Failures of any part are wrapped in a ModuleError naming the module.
//
// Example:
//
//	var DatabaseModule = ioc.NewModule("database",
//	    ioc.AddSingleton(NewDatabaseConnection),
//	    ioc.AddPerContainer(NewUserRepository, ioc.As(new(UserRepository))),
//	)
//
//	var AppModule = ioc.NewModule("app",
//	    DatabaseModule,
//	    ioc.AddTransient(NewHandler, ioc.Key("admin")),
//	)
func NewModule(name string, parts ...Module) Module {
	return func(b *Builder) error {
		for _, part := range parts {
			if part == nil {
				continue
			}

			if err := part(b); err != nil {
				return ModuleError{Module: name, Cause: err}
			}
		}

		return nil
	}
}

// AddModules applies modules to the builder. Module errors are reported by Build.
func (b *Builder) AddModules(modules ...Module) *Builder {
	for _, m := range modules {
		if m == nil {
			continue
		}
		if err := m(b); err != nil {
			b.errs = append(b.errs, err)
		}
	}
	return b
}

// AddSingleton creates a Module binding a constructor as a Singleton.
func AddSingleton(constructor any, opts ...AddOption) Module {
	return addConstructor(constructor, Singleton, opts)
}

// AddPerContainer creates a Module binding a constructor as PerContainer.
func AddPerContainer(constructor any, opts ...AddOption) Module {
	return addConstructor(constructor, PerContainer, opts)
}

// AddTransient creates a Module binding a constructor as Transient.
func AddTransient(constructor any, opts ...AddOption) Module {
	return addConstructor(constructor, Transient, opts)
}

// AddInstance creates a Module binding an existing value.
func AddInstance(instance any, opts ...AddOption) Module {
	return func(b *Builder) error {
		o, err := newAddOptions(opts)
		if err != nil {
			return err
		}

		services := o.services(reflect.TypeOf(instance))
		if len(services) == 0 {
			return fmt.Errorf("%w: cannot infer the service type of a nil instance", ErrNilInstance)
		}

		b.Bind(services...).WithKey(o.Key).ToInstance(instance)
		return nil
	}
}

func addConstructor(constructor any, lifetime Lifetime, opts []AddOption) Module {
	return func(b *Builder) error {
		o, err := newAddOptions(opts)
		if err != nil {
			return err
		}

		var result reflect.Type
		if t := reflect.TypeOf(constructor); t != nil && t.Kind() == reflect.Func && t.NumOut() > 0 {
			result = t.Out(0)
		}

		services := o.services(result)
		if len(services) == 0 {
			return fmt.Errorf("%w: cannot infer the service type of %T", ErrNotConstructible, constructor)
		}

		b.Bind(services...).WithKey(o.Key).ToConstructor(constructor).WithLifetime(lifetime)
		return nil
	}
}

// An AddOption modifies the bindings made by AddSingleton, AddPerContainer,
// AddTransient and AddInstance.
type AddOption interface {
	applyAddOption(*addOptions)
}

type addOptions struct {
	Key string
	As  []any
}

func newAddOptions(opts []AddOption) (*addOptions, error) {
	o := &addOptions{}
	for _, opt := range opts {
		opt.applyAddOption(o)
	}
	return o, o.Validate()
}

func (o *addOptions) Validate() error {
	if strings.ContainsRune(o.Key, '`') {
		return fmt.Errorf("invalid ioc.Key(%q): keys cannot contain backquotes", o.Key)
	}

	for _, i := range o.As {
		t := reflect.TypeOf(i)

		if t == nil {
			return fmt.Errorf("invalid ioc.As(nil): argument must be a pointer to an interface")
		}

		if t.Kind() != reflect.Pointer {
			return fmt.Errorf("invalid ioc.As(%v): argument must be a pointer to an interface", t)
		}

		pointingTo := t.Elem()
		if pointingTo.Kind() != reflect.Interface {
			return fmt.Errorf("invalid ioc.As(*%v): argument must be a pointer to an interface", pointingTo)
		}
	}
	return nil
}

// services returns the As interfaces, or the produced type when As is empty.
func (o *addOptions) services(produced reflect.Type) []reflect.Type {
	if len(o.As) == 0 {
		if produced == nil {
			return nil
		}
		return []reflect.Type{produced}
	}

	services := make([]reflect.Type, len(o.As))
	for i, iface := range o.As {
		services[i] = reflect.TypeOf(iface).Elem()
	}
	return services
}

// Key is an AddOption that files the binding under the given key.
//
//	ioc.AddSingleton(NewReadOnlyConnection, ioc.Key("ro"))
//	ioc.AddSingleton(NewReadWriteConnection, ioc.Key("rw"))
func Key(key string) AddOption {
	return addKeyOption(key)
}

type addKeyOption string

func (o addKeyOption) String() string {
	return fmt.Sprintf("Key(%q)", string(o))
}

func (o addKeyOption) applyAddOption(opt *addOptions) {
	opt.Key = string(o)
}

// As is an AddOption that binds the produced value as one or more
// interfaces instead of its own type. It expects pointers to the
// interfaces, and all of them share one registration.
//
//	ioc.AddSingleton(newBuffer, ioc.As(new(io.Reader), new(io.Writer)))
func As(i ...any) AddOption {
	return addAsOption(i)
}

type addAsOption []any

func (o addAsOption) String() string {
	buf := bytes.NewBufferString("As(")
	for i, iface := range o {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(reflect.TypeOf(iface).Elem().String())
	}
	buf.WriteString(")")
	return buf.String()
}

func (o addAsOption) applyAddOption(opts *addOptions) {
	opts.As = append(opts.As, o...)
}
