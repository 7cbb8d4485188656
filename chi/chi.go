// Package chi provides ioc integration for the Chi router.
//
// Every request gets a child container built by the net/http integration.
// Besides *http.Request, the child binds *chi.Context so services can read
// URL parameters.
//
// Example usage:
//
//	c, _ := b.Build()
//
//	r := iochi.NewRouter(c)
//	r.Post("/login", iochi.Handle((*AuthController).Login))
//	r.Get("/users/{id}", iochi.Handle((*UserController).GetByID))
package chi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/junioryono/ioc"
	iohttp "github.com/junioryono/ioc/http"
)

// ErrNoRouteContext is returned when *chi.Context is resolved for a request
// that was not routed by chi.
var ErrNoRouteContext = errors.New("request has no chi route context")

type (
	Config        = iohttp.Config
	Option        = iohttp.Option
	HandlerConfig = iohttp.HandlerConfig
	HandlerOption = iohttp.HandlerOption
)

var (
	WithErrorHandler      = iohttp.WithErrorHandler
	WithCloseErrorHandler = iohttp.WithCloseErrorHandler
	WithBindings          = iohttp.WithBindings
	WithMiddleware        = iohttp.WithMiddleware
	WithLogger            = iohttp.WithLogger

	WithPanicRecovery          = iohttp.WithPanicRecovery
	WithPanicHandler           = iohttp.WithPanicHandler
	WithContainerErrorHandler  = iohttp.WithContainerErrorHandler
	WithResolutionErrorHandler = iohttp.WithResolutionErrorHandler
	WithHandlerLogger          = iohttp.WithHandlerLogger
)

func bindRouteContext(b *ioc.Builder, _ *http.Request) {
	ioc.Bind[*chi.Context](b).ToFactory(func(r ioc.Resolver) (*chi.Context, error) {
		req, err := ioc.Resolve[*http.Request](r)
		if err != nil {
			return nil, err
		}
		rctx := chi.RouteContext(req.Context())
		if rctx == nil {
			return nil, ErrNoRouteContext
		}
		return rctx, nil
	})
}

// ScopeMiddleware returns Chi middleware that gives every request its own
// child container of c.
//
//	r := chi.NewRouter()
//	r.Use(iochi.ScopeMiddleware(c))
func ScopeMiddleware(c *ioc.Container, opts ...Option) func(http.Handler) http.Handler {
	return iohttp.ScopeMiddleware(c, append([]Option{WithBindings(bindRouteContext)}, opts...)...)
}

// NewRouter returns a chi.Router with ScopeMiddleware installed.
func NewRouter(c *ioc.Container, opts ...Option) chi.Router {
	r := chi.NewRouter()
	r.Use(ScopeMiddleware(c, opts...))
	return r
}

// Handle wraps a controller method; T is resolved from the request container.
func Handle[T any](method func(T, http.ResponseWriter, *http.Request), opts ...HandlerOption) http.HandlerFunc {
	return iohttp.Handle(method, opts...)
}

// URLParam resolves the route context from the request container and
// returns the named URL parameter.
func URLParam(r ioc.Resolver, key string) (string, error) {
	rctx, err := ioc.Resolve[*chi.Context](r)
	if err != nil {
		return "", err
	}
	return rctx.URLParam(key), nil
}
