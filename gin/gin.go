// Package gin provides ioc integration for the Gin web framework.
//
// ScopeMiddleware builds a child container for every request, binding the
// *gin.Context and *http.Request into it, and closes the child once the
// handler chain returns.
//
// Example usage:
//
//	c, _ := b.Build()
//
//	g := gin.New()
//	g.Use(iogin.ScopeMiddleware(c))
//
//	g.POST("/login", iogin.Handle((*AuthController).Login))
//	g.GET("/users/:id", iogin.Handle((*UserController).GetByID))
package gin

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/junioryono/ioc"
)

// ContainerKey is the gin.Context key holding the request container.
const ContainerKey = "ioc.container"

// Config holds the configuration for the scope middleware.
type Config struct {
	// ErrorHandler is called when the request container cannot be built
	// or a middleware fails. Defaults to a JSON 500 response.
	ErrorHandler func(*gin.Context, error)

	// CloseErrorHandler is called when closing the request container fails.
	CloseErrorHandler func(error)

	// Bindings add per-request bindings to the child builder.
	Bindings []func(*ioc.Builder, *gin.Context)

	// Middlewares run, in order, after the request container is built.
	Middlewares []func(*ioc.Container, *gin.Context) error

	// Logger is used by the default handlers and by request containers.
	Logger *slog.Logger
}

// Option configures the scope middleware.
type Option func(*Config)

// WithErrorHandler sets the handler for build and middleware failures.
func WithErrorHandler(h func(*gin.Context, error)) Option {
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
//
// Example:
//
//	iogin.ScopeMiddleware(c,
//	    iogin.WithBindings(func(b *ioc.Builder, c *gin.Context) {
//	        ioc.Bind[*auth.Claims](b).ToInstance(claimsFrom(c))
//	    }),
//	)
func WithBindings(bind func(*ioc.Builder, *gin.Context)) Option {
	return func(c *Config) {
		c.Bindings = append(c.Bindings, bind)
	}
}

// WithMiddleware adds a function that runs once the request container exists.
func WithMiddleware(mw func(*ioc.Container, *gin.Context) error) Option {
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

func abortInternal(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"error": http.StatusText(http.StatusInternalServerError),
	})
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

func newConfig(opts []Option) *Config {
	cfg := &Config{}
	for _, opt := range opts {
		opt(cfg)
	}

	logger := orDefault(cfg.Logger)
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c *gin.Context, err error) {
			logger.Error("request container failed", "path", c.FullPath(), "error", err)
			abortInternal(c)
		}
	}
	if cfg.CloseErrorHandler == nil {
		cfg.CloseErrorHandler = func(err error) {
			logger.Error("failed to close request container", "error", err)
		}
	}
	return cfg
}

func (cfg *Config) build(parent *ioc.Container, c *gin.Context) (*ioc.Container, error) {
	b := parent.CreateChildBuilder()
	ioc.Bind[*gin.Context](b).ToInstance(c).DisposeWithContainer(false)
	ioc.Bind[*http.Request](b).ToFactory(func() *http.Request { return c.Request }).InPerContainerScope()
	for _, bind := range cfg.Bindings {
		bind(b, c)
	}

	var opts *ioc.Options
	if cfg.Logger != nil {
		opts = &ioc.Options{Logger: cfg.Logger}
	}
	return b.BuildWithOptions(opts)
}

// ScopeMiddleware returns a gin.HandlerFunc that gives every request its
// own child container of parent. The container is stored on the request
// context and under ContainerKey.
func ScopeMiddleware(parent *ioc.Container, opts ...Option) gin.HandlerFunc {
	cfg := newConfig(opts)

	return func(c *gin.Context) {
		child, err := cfg.build(parent, c)
		if err != nil {
			cfg.ErrorHandler(c, err)
			c.Abort()
			return
		}

		defer func() {
			if err := child.Close(); err != nil {
				cfg.CloseErrorHandler(err)
			}
		}()

		c.Request = c.Request.WithContext(ioc.WithContainer(c.Request.Context(), child))
		c.Set(ContainerKey, child)

		for _, mw := range cfg.Middlewares {
			if err := mw(child, c); err != nil {
				cfg.ErrorHandler(c, err)
				c.Abort()
				return
			}
		}

		c.Next()
	}
}

// FromGin returns the request container stored by ScopeMiddleware.
func FromGin(c *gin.Context) (*ioc.Container, error) {
	if v, ok := c.Get(ContainerKey); ok {
		if child, ok := v.(*ioc.Container); ok && child != nil {
			if child.IsDisposed() {
				return nil, ioc.ErrContainerDisposed
			}
			return child, nil
		}
	}
	return ioc.FromContext(c.Request.Context())
}

// HandlerConfig holds configuration for the Handle wrapper.
type HandlerConfig struct {
	// PanicRecovery enables panic recovery in the handler.
	PanicRecovery bool

	// PanicHandler is called when a panic occurs (if PanicRecovery is true).
	PanicHandler func(*gin.Context, any)

	// ContainerErrorHandler is called when the request has no container.
	ContainerErrorHandler func(*gin.Context, error)

	// ResolutionErrorHandler is called when the controller cannot be resolved.
	ResolutionErrorHandler func(*gin.Context, error)

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

// WithPanicHandler sets the handler for panics (requires WithPanicRecovery(true)).
func WithPanicHandler(h func(*gin.Context, any)) HandlerOption {
	return func(c *HandlerConfig) {
		c.PanicHandler = h
	}
}

// WithContainerErrorHandler sets the handler for a missing or closed
// request container.
func WithContainerErrorHandler(h func(*gin.Context, error)) HandlerOption {
	return func(c *HandlerConfig) {
		c.ContainerErrorHandler = h
	}
}

// WithResolutionErrorHandler sets the handler for resolution failures.
func WithResolutionErrorHandler(h func(*gin.Context, error)) HandlerOption {
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

	logger := orDefault(cfg.Logger)
	if cfg.PanicHandler == nil {
		cfg.PanicHandler = func(c *gin.Context, v any) {
			logger.Error("panic in handler", "path", c.FullPath(), "panic", v)
			abortInternal(c)
		}
	}
	if cfg.ContainerErrorHandler == nil {
		cfg.ContainerErrorHandler = func(c *gin.Context, err error) {
			logger.Error("no request container", "path", c.FullPath(), "error", err)
			abortInternal(c)
		}
	}
	if cfg.ResolutionErrorHandler == nil {
		cfg.ResolutionErrorHandler = func(c *gin.Context, err error) {
			logger.Error("failed to resolve controller", "path", c.FullPath(), "error", err)
			abortInternal(c)
		}
	}
	return cfg
}

// Handle wraps a controller method; T is resolved from the request
// container on every call.
//
//	g.GET("/users/:id", iogin.Handle((*UserController).GetByID))
func Handle[T any](method func(T, *gin.Context), opts ...HandlerOption) gin.HandlerFunc {
	cfg := newHandlerConfig(opts)

	return func(c *gin.Context) {
		if cfg.PanicRecovery {
			defer func() {
				if v := recover(); v != nil {
					cfg.PanicHandler(c, v)
				}
			}()
		}

		child, err := FromGin(c)
		if err != nil {
			cfg.ContainerErrorHandler(c, err)
			return
		}

		controller, err := ioc.Resolve[T](child)
		if err != nil {
			cfg.ResolutionErrorHandler(c, err)
			return
		}

		method(controller, c)
	}
}
