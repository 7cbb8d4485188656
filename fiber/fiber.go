// Package fiber provides ioc integration for the Fiber web framework.
//
// ScopeMiddleware builds a child container for every request with the
// *fiber.Ctx bound into it. The container is kept in Ctx.Locals and in the
// UserContext, and is closed once the handler chain returns.
//
// Example usage:
//
//	c, _ := b.Build()
//
//	app := fiber.New()
//	app.Use(iofiber.ScopeMiddleware(c))
//
//	app.Post("/login", iofiber.Handle((*AuthController).Login))
//	app.Get("/users/:id", iofiber.Handle((*UserController).GetByID))
package fiber

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/junioryono/ioc"
)

type localsKey struct{}

// Config holds the configuration for the scope middleware.
type Config struct {
	// ErrorHandler is called when the request container cannot be built
	// or a middleware fails. Defaults to a JSON 500 response.
	ErrorHandler func(*fiber.Ctx, error) error

	// CloseErrorHandler is called when closing the request container fails.
	CloseErrorHandler func(error)

	// Bindings add per-request bindings to the child builder.
	Bindings []func(*ioc.Builder, *fiber.Ctx)

	// Middlewares run, in order, after the request container is built.
	Middlewares []func(*ioc.Container, *fiber.Ctx) error

	// Logger is used by the default handlers and by request containers.
	Logger *slog.Logger
}

// Option configures the scope middleware.
type Option func(*Config)

// WithErrorHandler sets the handler for build and middleware failures.
func WithErrorHandler(h func(*fiber.Ctx, error) error) Option {
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
func WithBindings(bind func(*ioc.Builder, *fiber.Ctx)) Option {
	return func(c *Config) {
		c.Bindings = append(c.Bindings, bind)
	}
}

// WithMiddleware adds a function that runs once the request container exists.
func WithMiddleware(mw func(*ioc.Container, *fiber.Ctx) error) Option {
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

func internalError(c *fiber.Ctx) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Internal Server Error",
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
		cfg.ErrorHandler = func(c *fiber.Ctx, err error) error {
			logger.Error("request container failed", "path", c.Path(), "error", err)
			return internalError(c)
		}
	}
	if cfg.CloseErrorHandler == nil {
		cfg.CloseErrorHandler = func(err error) {
			logger.Error("failed to close request container", "error", err)
		}
	}
	return cfg
}

func (cfg *Config) build(parent *ioc.Container, c *fiber.Ctx) (*ioc.Container, error) {
	b := parent.CreateChildBuilder()
	ioc.Bind[*fiber.Ctx](b).ToInstance(c).DisposeWithContainer(false)
	for _, bind := range cfg.Bindings {
		bind(b, c)
	}

	var opts *ioc.Options
	if cfg.Logger != nil {
		opts = &ioc.Options{Logger: cfg.Logger}
	}
	return b.BuildWithOptions(opts)
}

// ScopeMiddleware returns a fiber.Handler that gives every request its own
// child container of parent.
func ScopeMiddleware(parent *ioc.Container, opts ...Option) fiber.Handler {
	cfg := newConfig(opts)

	return func(c *fiber.Ctx) error {
		child, err := cfg.build(parent, c)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		defer func() {
			c.Locals(localsKey{}, nil)
			if err := child.Close(); err != nil {
				cfg.CloseErrorHandler(err)
			}
		}()

		c.SetUserContext(ioc.WithContainer(c.UserContext(), child))
		c.Locals(localsKey{}, child)

		for _, mw := range cfg.Middlewares {
			if err := mw(child, c); err != nil {
				return cfg.ErrorHandler(c, err)
			}
		}

		return c.Next()
	}
}

// FromCtx returns the request container stored by ScopeMiddleware.
//
//	users := ioc.MustResolve[*UserService](iofiber.MustFromCtx(c))
func FromCtx(c *fiber.Ctx) (*ioc.Container, error) {
	if child, ok := c.Locals(localsKey{}).(*ioc.Container); ok && child != nil {
		if child.IsDisposed() {
			return nil, ioc.ErrContainerDisposed
		}
		return child, nil
	}
	return ioc.FromContext(c.UserContext())
}

// MustFromCtx is FromCtx that panics on error.
func MustFromCtx(c *fiber.Ctx) *ioc.Container {
	child, err := FromCtx(c)
	if err != nil {
		panic(err)
	}
	return child
}

// HandlerConfig holds configuration for the Handle wrapper.
type HandlerConfig struct {
	// PanicRecovery enables panic recovery in the handler.
	PanicRecovery bool

	// PanicHandler is called when a panic occurs (if PanicRecovery is true).
	PanicHandler func(*fiber.Ctx, any) error

	// ContainerErrorHandler is called when the request has no container.
	ContainerErrorHandler func(*fiber.Ctx, error) error

	// ResolutionErrorHandler is called when the controller cannot be resolved.
	ResolutionErrorHandler func(*fiber.Ctx, error) error

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
func WithPanicHandler(h func(*fiber.Ctx, any) error) HandlerOption {
	return func(c *HandlerConfig) {
		c.PanicHandler = h
	}
}

// WithContainerErrorHandler sets the handler for a missing or closed
// request container.
func WithContainerErrorHandler(h func(*fiber.Ctx, error) error) HandlerOption {
	return func(c *HandlerConfig) {
		c.ContainerErrorHandler = h
	}
}

// WithResolutionErrorHandler sets the handler for resolution failures.
func WithResolutionErrorHandler(h func(*fiber.Ctx, error) error) HandlerOption {
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
		cfg.PanicHandler = func(c *fiber.Ctx, v any) error {
			logger.Error("panic in handler", "path", c.Path(), "panic", v)
			return internalError(c)
		}
	}
	if cfg.ContainerErrorHandler == nil {
		cfg.ContainerErrorHandler = func(c *fiber.Ctx, err error) error {
			logger.Error("no request container", "path", c.Path(), "error", err)
			return internalError(c)
		}
	}
	if cfg.ResolutionErrorHandler == nil {
		cfg.ResolutionErrorHandler = func(c *fiber.Ctx, err error) error {
			logger.Error("failed to resolve controller", "path", c.Path(), "error", err)
			return internalError(c)
		}
	}
	return cfg
}

// Handle wraps a controller method; T is resolved from the request
// container on every call.
//
//	app.Get("/users/:id", iofiber.Handle((*UserController).GetByID))
func Handle[T any](method func(T, *fiber.Ctx) error, opts ...HandlerOption) fiber.Handler {
	cfg := newHandlerConfig(opts)

	return func(c *fiber.Ctx) (err error) {
		if cfg.PanicRecovery {
			defer func() {
				if v := recover(); v != nil {
					err = cfg.PanicHandler(c, v)
				}
			}()
		}

		child, err := FromCtx(c)
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
