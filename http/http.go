// Package http provides ioc integration for net/http.
//
// ScopeMiddleware builds a child container for every request. The child
// sees the application's bindings, adds the *http.Request itself plus any
// per-request bindings, and is closed when the request completes, so
// PerContainer services live exactly as long as the request.
//
// Example usage:
//
//	c, _ := b.Build()
//
//	mux := http.NewServeMux()
//	mux.Handle("POST /login", iohttp.Handle(AuthController.Login))
//	http.ListenAndServe(":8080", iohttp.ScopeMiddleware(c)(mux))
package http

import (
	"log/slog"
	"net/http"

	"github.com/junioryono/ioc"
)

// Config holds the configuration for the scope middleware.
type Config struct {
	// ErrorHandler is called when the request container cannot be built
	// or a middleware fails. Defaults to 500 Internal Server Error.
	ErrorHandler func(http.ResponseWriter, *http.Request, error)

	// CloseErrorHandler is called when closing the request container fails.
	// Defaults to logging the error.
	CloseErrorHandler func(error)

	// Bindings add per-request bindings to the child builder.
	Bindings []func(*ioc.Builder, *http.Request)

	// Middlewares run, in order, after the request container is built.
	Middlewares []func(*ioc.Container, *http.Request) error

	// Logger is used by the default handlers and by request containers.
	// Request containers inherit the parent's logger when unset.
	Logger *slog.Logger
}

// Option configures the scope middleware.
type Option func(*Config)

// WithErrorHandler sets the handler for build and middleware failures.
func WithErrorHandler(h func(http.ResponseWriter, *http.Request, error)) Option {
	return func(c *Config) {
		c.ErrorHandler = h
	}
}

// WithCloseErrorHandler sets the handler for close failures.
func WithCloseErrorHandler(h func(error)) Option {
	return func(c *Config) {
		c.CloseErrorHandler = h
	}
}

// WithBindings registers per-request bindings, such as the authenticated
// user or a request ID.
func WithBindings(bind func(*ioc.Builder, *http.Request)) Option {
	return func(c *Config) {
		c.Bindings = append(c.Bindings, bind)
	}
}

// WithMiddleware adds a function that runs once the request container exists.
func WithMiddleware(mw func(*ioc.Container, *http.Request) error) Option {
	return func(c *Config) {
		c.Middlewares = append(c.Middlewares, mw)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// NewConfig applies opts over the defaults. Router integrations built on
// this package use it to share option handling.
func NewConfig(opts ...Option) *Config {
	cfg := &Config{}
	for _, opt := range opts {
		opt(cfg)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error("request container failed", "path", r.URL.Path, "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}
	if cfg.CloseErrorHandler == nil {
		cfg.CloseErrorHandler = func(err error) {
			logger.Error("failed to close request container", "error", err)
		}
	}
	return cfg
}

// NewRequestContainer builds the child container for r. The returned
// request carries the container in its context and is the one bound as
// *http.Request.
func (cfg *Config) NewRequestContainer(parent *ioc.Container, r *http.Request) (*ioc.Container, *http.Request, error) {
	var req *http.Request

	b := parent.CreateChildBuilder()
	ioc.Bind[*http.Request](b).ToFactory(func() *http.Request { return req }).InPerContainerScope()
	for _, bind := range cfg.Bindings {
		bind(b, r)
	}

	var opts *ioc.Options
	if cfg.Logger != nil {
		opts = &ioc.Options{Logger: cfg.Logger}
	}

	child, err := b.BuildWithOptions(opts)
	if err != nil {
		return nil, r, err
	}

	req = r.WithContext(ioc.WithContainer(r.Context(), child))
	return child, req, nil
}

// ScopeMiddleware returns middleware that gives every request its own
// child container of c. Handlers retrieve it with ioc.FromContext.
func ScopeMiddleware(c *ioc.Container, opts ...Option) func(http.Handler) http.Handler {
	cfg := NewConfig(opts...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			child, r, err := cfg.NewRequestContainer(c, r)
			if err != nil {
				cfg.ErrorHandler(w, r, err)
				return
			}

			defer func() {
				if err := child.Close(); err != nil {
					cfg.CloseErrorHandler(err)
				}
			}()

			for _, mw := range cfg.Middlewares {
				if err := mw(child, r); err != nil {
					cfg.ErrorHandler(w, r, err)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// HandlerConfig holds configuration for the Handle wrapper.
type HandlerConfig struct {
	// PanicRecovery enables panic recovery in the handler.
	PanicRecovery bool

	// PanicHandler is called when a panic occurs (if PanicRecovery is true).
	PanicHandler func(http.ResponseWriter, *http.Request, any)

	// ContainerErrorHandler is called when the request has no container.
	ContainerErrorHandler func(http.ResponseWriter, *http.Request, error)

	// ResolutionErrorHandler is called when the controller cannot be resolved.
	ResolutionErrorHandler func(http.ResponseWriter, *http.Request, error)

	Logger *slog.Logger
}

// HandlerOption configures the Handle wrapper.
type HandlerOption func(*HandlerConfig)

// WithPanicRecovery enables or disables panic recovery in the handler.
func WithPanicRecovery(enabled bool) HandlerOption {
	return func(c *HandlerConfig) {
		c.PanicRecovery = enabled
	}
}

// WithPanicHandler sets the handler for panics.
func WithPanicHandler(h func(http.ResponseWriter, *http.Request, any)) HandlerOption {
	return func(c *HandlerConfig) {
		c.PanicHandler = h
	}
}

// WithContainerErrorHandler sets the handler for a missing or closed
// request container.
func WithContainerErrorHandler(h func(http.ResponseWriter, *http.Request, error)) HandlerOption {
	return func(c *HandlerConfig) {
		c.ContainerErrorHandler = h
	}
}

// WithResolutionErrorHandler sets the handler for resolution failures.
func WithResolutionErrorHandler(h func(http.ResponseWriter, *http.Request, error)) HandlerOption {
	return func(c *HandlerConfig) {
		c.ResolutionErrorHandler = h
	}
}

// WithHandlerLogger sets the logger used by the default handlers.
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(c *HandlerConfig) {
		c.Logger = logger
	}
}

// NewHandlerConfig applies opts over the defaults.
func NewHandlerConfig(opts ...HandlerOption) *HandlerConfig {
	cfg := &HandlerConfig{Logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	fail := func(msg string) func(http.ResponseWriter, *http.Request, error) {
		return func(w http.ResponseWriter, r *http.Request, err error) {
			cfg.Logger.Error(msg, "path", r.URL.Path, "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}

	if cfg.PanicHandler == nil {
		cfg.PanicHandler = func(w http.ResponseWriter, r *http.Request, v any) {
			cfg.Logger.Error("panic in handler", "path", r.URL.Path, "panic", v)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}
	if cfg.ContainerErrorHandler == nil {
		cfg.ContainerErrorHandler = fail("no request container")
	}
	if cfg.ResolutionErrorHandler == nil {
		cfg.ResolutionErrorHandler = fail("failed to resolve controller")
	}
	return cfg
}

// Handle wraps a controller method. The controller T is resolved from the
// request container on every call.
//
//	mux.Handle("GET /users/{id}", iohttp.Handle((*UserController).GetByID))
func Handle[T any](method func(T, http.ResponseWriter, *http.Request), opts ...HandlerOption) http.HandlerFunc {
	cfg := NewHandlerConfig(opts...)

	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.PanicRecovery {
			defer func() {
				if v := recover(); v != nil {
					cfg.PanicHandler(w, r, v)
				}
			}()
		}

		c, err := ioc.FromContext(r.Context())
		if err != nil {
			cfg.ContainerErrorHandler(w, r, err)
			return
		}

		controller, err := ioc.Resolve[T](c)
		if err != nil {
			cfg.ResolutionErrorHandler(w, r, err)
			return
		}

		method(controller, w, r)
	}
}
