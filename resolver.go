package ioc

import (
	"reflect"
	"slices"
	"sync/atomic"

	"github.com/junioryono/ioc/internal/graph"
)

// Resolver resolves services. Both *Container and the resolver handed to
// factory delegates implement it.
type Resolver interface {
	// Get resolves the single unkeyed registration of serviceType.
	Get(serviceType reflect.Type) (any, error)

	// GetKeyed resolves the single registration of serviceType under key.
	GetKeyed(serviceType reflect.Type, key string) (any, error)

	// GetAll resolves every unkeyed registration of serviceType, in
	// registration order. It returns an empty slice when there are none.
	GetAll(serviceType reflect.Type) ([]any, error)

	// GetAllKeyed resolves every registration of serviceType under key.
	GetAllKeyed(serviceType reflect.Type, key string) ([]any, error)
}

var (
	_ Resolver = (*Container)(nil)
	_ Resolver = (*resolveContext)(nil)
)

// resolveContext carries one resolution: the requesting container, the
// registrations currently running user code, and the arguments of an
// abstract factory call.
type resolveContext struct {
	container *Container
	res       *resolution
	stack     []frame
	path      graph.Path
	args      map[reflect.Type]reflect.Value
}

// frame is one construction on the stack. done is set once it returns, so
// contexts captured by factory values can tell which of their frames are
// still running.
type frame struct {
	reg  *registration
	done *atomic.Bool
}

func newResolveContext(c *Container) *resolveContext {
	return &resolveContext{container: c, res: &resolution{}}
}

// enter returns the context used to construct r. It fails when r is
// already being constructed further up the stack.
func (ctx *resolveContext) enter(r *registration, target *Container) (*resolveContext, error) {
	if i := slices.IndexFunc(ctx.stack, func(f frame) bool { return f.reg == r }); i >= 0 {
		return nil, RegistrationError{
			ServiceType: r.node.Type,
			Key:         r.node.Key,
			Cause:       ctx.path[i:].Cycle(r.node),
		}
	}

	return &resolveContext{
		container: target,
		res:       ctx.res,
		stack:     append(slices.Clip(ctx.stack), frame{reg: r, done: new(atomic.Bool)}),
		path:      ctx.path.Push(r.node),
	}, nil
}

// leave marks the construction entered by ctx as finished.
func (ctx *resolveContext) leave() {
	ctx.stack[len(ctx.stack)-1].done.Store(true)
}

// resolver returns a view of ctx without factory arguments, safe to hand to
// user code.
func (ctx *resolveContext) resolver() *resolveContext {
	if ctx.args == nil {
		return ctx
	}
	return &resolveContext{container: ctx.container, res: ctx.res, stack: ctx.stack, path: ctx.path}
}

// call returns the context for one resolution requested by user code
// through ctx. It runs as a resolution of its own nested in ctx's, so calls
// made from different goroutines never share one.
func (ctx *resolveContext) call() *resolveContext {
	return &resolveContext{
		container: ctx.container,
		res:       &resolution{parent: ctx.res},
		stack:     ctx.stack,
		path:      ctx.path,
	}
}

// live returns a context for a call made through a value captured by ctx,
// such as a generated factory. Only the frames still under construction are
// kept; when none are, the call starts a resolution of its own.
func (ctx *resolveContext) live() *resolveContext {
	n := 0
	for n < len(ctx.stack) && !ctx.stack[n].done.Load() {
		n++
	}
	if n == 0 {
		return newResolveContext(ctx.container)
	}
	return &resolveContext{
		container: ctx.container,
		res:       &resolution{parent: ctx.res},
		stack:     ctx.stack[:n:n],
		path:      ctx.path[:n:n],
	}
}

func (ctx *resolveContext) Get(serviceType reflect.Type) (any, error) {
	return ctx.container.get(ctx.call(), serviceType, "")
}

func (ctx *resolveContext) GetKeyed(serviceType reflect.Type, key string) (any, error) {
	return ctx.container.get(ctx.call(), serviceType, key)
}

func (ctx *resolveContext) GetAll(serviceType reflect.Type) ([]any, error) {
	return ctx.container.getAll(ctx.call(), serviceType, "")
}

func (ctx *resolveContext) GetAllKeyed(serviceType reflect.Type, key string) ([]any, error) {
	return ctx.container.getAll(ctx.call(), serviceType, key)
}
