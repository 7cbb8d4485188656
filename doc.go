// Package ioc is a dependency injection container for Go applications.
//
// Services are bound on a Builder, which validates every binding at once
// and produces an immutable Container. The container builds object graphs
// on demand: the first resolution of a registration compiles a producer
// for it, which later resolutions reuse.
//
// # Basic Usage
//
//	b := ioc.NewBuilder()
//	b.Bind(ioc.TypeOf[Logger]()).ToConstructor(NewConsoleLogger).InSingletonScope()
//	ioc.Bind[*UserService](b).ToConstructor(NewUserService)
//
//	c, err := b.Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	users, err := ioc.Resolve[*UserService](c)
//
// # Binding Strategies
//
//   - To: allocate a struct and populate its fields tagged `inject:""`
//   - ToSelf: the same, with the service type as the implementation
//   - ToConstructor: call a constructor, resolving its parameters
//   - ToFactory: call a delegate, optionally handing it a Resolver
//   - ToAbstractFactory: generate a factory whose methods resolve their results
//   - ToInstance: return an existing value
//   - ToGeneric: close a generic service family on demand
//
// A binding may name several service types with And; they then share one
// registration, and so one Singleton instance.
//
// # Lifetimes
//
//   - Transient: a new instance on every resolution (the default)
//   - Singleton: one instance for the container tree
//   - PerContainer: one instance per requesting container
//
// # Keys
//
// WithKey files a binding under a discriminator. Constructor parameters
// select keyed services through ioc.In fields tagged `name:"key"`, and
// struct fields through `inject:"key"`.
//
// # Collections
//
// GetAll and ResolveAll return every registration of a type in
// registration order. A dependency of type []T with no registration of its
// own receives every registration of T.
//
// # Abstract Factories
//
// An abstract factory is a struct of func fields, or a func type. Each
// method resolves its result through the container that created the
// factory. A field tagged `ioc:"key"` takes the key as its first argument;
// any other argument is handed to the product's constructor parameters of
// the same type.
//
//	type WidgetFactory struct {
//	    Create func(name string) *Widget
//	    ByKey  func(key string) (Gadget, error) `ioc:"key"`
//	}
//
//	ioc.Bind[*WidgetFactory](b).ToAbstractFactory()
//
// # Open Generics
//
// Go cannot instantiate generic types at run time, so a generic family is
// bound to the instantiations the program uses:
//
//	ioc.Bind[Repository[any]](b).ToGeneric(NewRepository[Customer], NewRepository[Order])
//
// Resolving Repository[Customer] picks the matching constructor and files a
// registration for it; later requests reuse it.
//
// # Child Containers
//
// CreateScope returns an empty child, typically one per request.
// CreateChildBuilder adds registrations of its own. A child falls back to
// its parent for keys it does not register. Close closes the children
// first, then disposes the instances the container created, newest first.
//
// # Errors
//
// Configuration problems (missing, ambiguous, non-constructible or circular
// registrations) are reported as RegistrationError; match the cause with
// errors.Is against ErrServiceNotFound, ErrAmbiguousRegistration and the
// other sentinels. Errors returned by constructors and factories are passed
// through unchanged.
package ioc
