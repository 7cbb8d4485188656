// Package echo provides ioc integration for the Echo web framework.
//
// ScopeMiddleware builds a child container for every request with the
// echo.Context and *http.Request bound into it, and closes the child when
// the handler returns.
//
// Example usage:
//
//	c, _ := b.Build()
//
//	e := echo.New()
//	e.Use(ioecho.ScopeMiddleware(c))
//
//	e.POST("/login", ioecho.Handle((*AuthController).Login))
//	e.GET("/users/:id", ioecho.Handle((*UserController).GetByID))
package echo

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/junioryono/ioc"
)

// ContainerKey is the echo.Context key holding the request container.
const ContainerKey = "ioc.container"

// Config holds the configuration for the scope middleware.
type Config struct {
	// ErrorHandler is called when the request container cannot be built
	// or a middleware fails. Its result is returned to Echo. Defaults to
	// a 500 *echo.HTTPError carrying the cause as its internal error.
	ErrorHandler func(echo.Context, error) error

	// CloseErrorHandler is called when closing the request container fails.
	CloseErrorHandler func(error)

	// Bindings add per-request bindings to the child builder.
	Bindings []func(*ioc.Builder, echo.Context)

	// Middlewares run, in order, after the request container is built.
	Middlewares []func(*ioc.Container, echo.Context) error

	// Logger is used by the default handlers and by request containers.
	Logger *slog.Logger
}

// Option configures the scope middleware.
type Option func(*Config)

// WithErrorHandler sets the handler for build and middleware failures.
func WithErrorHandler(h func(echo.Context, error) error) Option {
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

// WithBindings registers per-request bindings.
func WithBindings(bind func(*ioc.Builder, echo.Context)) Option {
	return func(c *Config) {
		c.Bindings = append(c.Bindings, bind)
	}
}

// WithMiddleware adds a function that runs once the request container exists.
func WithMiddleware(mw func(*ioc.Container, echo.Context) error) Option {
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

func internalError(err error) error {
	return echo.NewHTTPError(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)).SetInternal(err)
}

func newConfig(opts []Option) *Config {
	cfg := &Config{}
	for _, opt := range opts {
		opt(cfg)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c echo.Context, err error) error {
			return internalError(err)
		}
	}
	if cfg.CloseErrorHandler == nil {
		cfg.CloseErrorHandler = func(err error) {
			logger.Error("failed to close request container", "error", err)
		}
	}
	return cfg
}

func (cfg *Config) build(parent *ioc.Container, c echo.Context) (*ioc.Container, error) {
	b := parent.CreateChildBuilder()
	ioc.Bind[echo.Context](b).ToInstance(c).DisposeWithContainer(false)
	ioc.Bind[*http.Request](b).ToFactory(func() *http.Request { return c.Request() }).InPerContainerScope()
	for _, bind := range cfg.Bindings {
		bind(b, c)
	}

	var opts *ioc.Options
	if cfg.Logger != nil {
		opts = &ioc.Options{Logger: cfg.Logger}
	}
	return b.BuildWithOptions(opts)
}

// ScopeMiddleware returns Echo middleware that gives every request its own
// child container of parent. The container is stored on the request
// context and under ContainerKey.
func ScopeMiddleware(parent *ioc.Container, opts ...Option) echo.MiddlewareFunc {
	cfg := newConfig(opts)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			child, err := cfg.build(parent, c)
			if err != nil {
				return cfg.ErrorHandler(c, err)
			}

			defer func() {
				if err := child.Close(); err != nil {
					cfg.CloseErrorHandler(err)
				}
			}()

			c.SetRequest(c.Request().WithContext(ioc.WithContainer(c.Request().Context(), child)))
			c.Set(ContainerKey, child)

			for _, mw := range cfg.Middlewares {
				if err := mw(child, c); err != nil {
					return cfg.ErrorHandler(c, err)
				}
			}

			return next(c)
		}
	}
}

// FromEcho returns the request container stored by ScopeMiddleware.
func FromEcho(c echo.Context) (*ioc.Container, error) {
	if child, ok := c.Get(ContainerKey).(*ioc.Container); ok && child != nil {
		if child.IsDisposed() {
			return nil, ioc.ErrContainerDisposed
		}
		return child, nil
	}
	return ioc.FromContext(c.Request().Context())
}

// HandlerConfig holds configuration for the Handle wrapper.
type HandlerConfig struct {
	// PanicRecovery enables panic recovery in the handler.
	PanicRecovery bool

	// PanicHandler is called when a panic occurs (if PanicRecovery is true).
	PanicHandler func(echo.Context, any) error

	// ContainerErrorHandler is called when the request has no container.
	ContainerErrorHandler func(echo.Context, error) error

	// ResolutionErrorHandler is called when the controller cannot be resolved.
	ResolutionErrorHandler func(echo.Context, error) error

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
func WithPanicHandler(h func(echo.Context, any) error) HandlerOption {
	return func(c *HandlerConfig) {
		c.PanicHandler = h
	}
}

// WithContainerErrorHandler sets the handler for a missing or closed
// request container.
func WithContainerErrorHandler(h func(echo.Context, error) error) HandlerOption {
	return func(c *HandlerConfig) {
		c.ContainerErrorHandler = h
	}
}

// WithResolutionErrorHandler sets the handler for resolution failures.
func WithResolutionErrorHandler(h func(echo.Context, error) error) HandlerOption {
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

func newHandlerConfig(opts []HandlerOption) *HandlerConfig {
	cfg := &HandlerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.PanicHandler == nil {
		cfg.PanicHandler = func(c echo.Context, v any) error {
			logger.Error("panic in handler", "path", c.Path(), "panic", v)
			return echo.NewHTTPError(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		}
	}
	if cfg.ContainerErrorHandler == nil {
		cfg.ContainerErrorHandler = func(c echo.Context, err error) error {
			logger.Error("no request container", "path", c.Path(), "error", err)
			return internalError(err)
		}
	}
	if cfg.ResolutionErrorHandler == nil {
		cfg.ResolutionErrorHandler = func(c echo.Context, err error) error {
			logger.Error("failed to resolve controller", "path", c.Path(), "error", err)
			return internalError(err)
		}
	}
	return cfg
}

// Handle wraps a controller method; T is resolved from the request
// container on every call.
//
//	e.GET("/users/:id", ioecho.Handle((*UserController).GetByID))
func Handle[T any](method func(T, echo.Context) error, opts ...HandlerOption) echo.HandlerFunc {
	cfg := newHandlerConfig(opts)

	return func(c echo.Context) (err error) {
		if cfg.PanicRecovery {
			defer func() {
				if v := recover(); v != nil {
					err = cfg.PanicHandler(c, v)
				}
			}()
		}

		child, err := FromEcho(c)
		if err != nil {
			return cfg.ContainerErrorHandler(c, err)
		}

		controller, err := ioc.Resolve[T](child)
		if err != nil {
			return cfg.ResolutionErrorHandler(c, err)
		}

		return method(controller, c)
	}
}
