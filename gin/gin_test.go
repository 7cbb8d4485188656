package gin

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junioryono/ioc"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// Test types
type session struct {
	closed bool
}

func (s *session) Close() error {
	s.closed = true
	return nil
}

type userController struct {
	Session *session
	Ctx     *gin.Context
}

func newUserController(s *session, c *gin.Context) *userController {
	return &userController{Session: s, Ctx: c}
}

func (u *userController) GetByID(c *gin.Context) {
	c.String(http.StatusOK, u.Ctx.Param("id"))
}

func (u *userController) Panic(c *gin.Context) {
	panic("test panic")
}

func buildContainer(t *testing.T) *ioc.Container {
	t.Helper()

	b := ioc.NewBuilder()
	ioc.Bind[*session](b).ToSelf().InPerContainerScope()
	ioc.Bind[*userController](b).ToConstructor(newUserController)

	c, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func get(g *gin.Engine, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	g.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestScopeMiddleware(t *testing.T) {
	t.Run("request container is reachable both ways", func(t *testing.T) {
		c := buildContainer(t)

		g := gin.New()
		g.Use(ScopeMiddleware(c))
		g.GET("/test", func(ctx *gin.Context) {
			fromCtx, err := ioc.FromContext(ctx.Request.Context())
			require.NoError(t, err)
			fromGin, err := FromGin(ctx)
			require.NoError(t, err)

			assert.Same(t, fromCtx, fromGin)
			assert.Same(t, c, fromGin.Parent())
			assert.Same(t, ctx, ioc.MustResolve[*gin.Context](fromGin))
			assert.Same(t, ctx.Request, ioc.MustResolve[*http.Request](fromGin))
			ctx.Status(http.StatusOK)
		})

		assert.Equal(t, http.StatusOK, get(g, "/test").Code)
	})

	t.Run("per-container services are disposed after the request", func(t *testing.T) {
		c := buildContainer(t)

		var s *session
		g := gin.New()
		g.Use(ScopeMiddleware(c))
		g.GET("/", func(ctx *gin.Context) {
			child, _ := FromGin(ctx)
			s = ioc.MustResolve[*session](child)
		})

		get(g, "/")

		require.NotNil(t, s)
		assert.True(t, s.closed)
	})

	t.Run("per-request bindings", func(t *testing.T) {
		type tenant string
		c := buildContainer(t)

		g := gin.New()
		g.Use(ScopeMiddleware(c, WithBindings(func(b *ioc.Builder, ctx *gin.Context) {
			ioc.Bind[tenant](b).ToInstance(tenant(ctx.GetHeader("X-Tenant")))
		})))
		g.GET("/", func(ctx *gin.Context) {
			child, _ := FromGin(ctx)
			ctx.String(http.StatusOK, string(ioc.MustResolve[tenant](child)))
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Tenant", "acme")
		rec := httptest.NewRecorder()
		g.ServeHTTP(rec, req)

		assert.Equal(t, "acme", rec.Body.String())
	})

	t.Run("calls error handler when the parent is closed", func(t *testing.T) {
		c, err := ioc.NewBuilder().Build()
		require.NoError(t, err)
		require.NoError(t, c.Close())

		var captured error
		reached := false

		g := gin.New()
		g.Use(ScopeMiddleware(c, WithErrorHandler(func(ctx *gin.Context, err error) {
			captured = err
			ctx.Status(http.StatusServiceUnavailable)
		})))
		g.GET("/", func(ctx *gin.Context) { reached = true })

		rec := get(g, "/")

		assert.ErrorIs(t, captured, ioc.ErrContainerDisposed)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.False(t, reached)
	})

	t.Run("runs middlewares in order", func(t *testing.T) {
		c := buildContainer(t)

		var order []int
		mw := func(i int) Option {
			return WithMiddleware(func(*ioc.Container, *gin.Context) error {
				order = append(order, i)
				return nil
			})
		}

		g := gin.New()
		g.Use(ScopeMiddleware(c, mw(1), mw(2), mw(3)))
		g.GET("/", func(ctx *gin.Context) { ctx.Status(http.StatusOK) })
		get(g, "/")

		assert.Equal(t, []int{1, 2, 3}, order)
	})

	t.Run("middleware error aborts the chain", func(t *testing.T) {
		c := buildContainer(t)
		expected := errors.New("middleware failed")
		reached := false

		g := gin.New()
		g.Use(ScopeMiddleware(c,
			WithMiddleware(func(*ioc.Container, *gin.Context) error { return expected }),
			WithErrorHandler(func(ctx *gin.Context, err error) {
				assert.Equal(t, expected, err)
				ctx.Status(http.StatusBadRequest)
			}),
		))
		g.GET("/", func(ctx *gin.Context) { reached = true })

		assert.Equal(t, http.StatusBadRequest, get(g, "/").Code)
		assert.False(t, reached)
	})

	t.Run("default error handler returns 500 JSON", func(t *testing.T) {
		c := buildContainer(t)

		g := gin.New()
		g.Use(ScopeMiddleware(c, WithMiddleware(func(*ioc.Container, *gin.Context) error {
			return errors.New("nope")
		})))
		g.GET("/", func(ctx *gin.Context) {})

		rec := get(g, "/")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error":"Internal Server Error"}`, rec.Body.String())
	})
}

func TestHandle(t *testing.T) {
	t.Run("resolves controller and calls method", func(t *testing.T) {
		g := gin.New()
		g.Use(ScopeMiddleware(buildContainer(t)))
		g.GET("/users/:id", Handle((*userController).GetByID))

		rec := get(g, "/users/9")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "9", rec.Body.String())
	})

	t.Run("calls container error handler when no container", func(t *testing.T) {
		var captured error

		g := gin.New()
		g.GET("/", Handle((*userController).GetByID, WithContainerErrorHandler(func(ctx *gin.Context, err error) {
			captured = err
			ctx.AbortWithStatus(http.StatusTeapot)
		})))

		assert.Equal(t, http.StatusTeapot, get(g, "/").Code)
		assert.ErrorIs(t, captured, ioc.ErrContainerNotInContext)
	})

	t.Run("calls resolution error handler when service not found", func(t *testing.T) {
		c, err := ioc.NewBuilder().Build()
		require.NoError(t, err)
		defer c.Close()

		var captured error
		g := gin.New()
		g.Use(ScopeMiddleware(c))
		g.GET("/", Handle((*userController).GetByID, WithResolutionErrorHandler(func(ctx *gin.Context, err error) {
			captured = err
			ctx.AbortWithStatus(http.StatusNotImplemented)
		})))

		assert.Equal(t, http.StatusNotImplemented, get(g, "/").Code)
		assert.ErrorIs(t, captured, ioc.ErrServiceNotFound)
	})

	t.Run("recovers from panic when enabled", func(t *testing.T) {
		var recovered any

		g := gin.New()
		g.Use(ScopeMiddleware(buildContainer(t)))
		g.GET("/", Handle((*userController).Panic,
			WithPanicRecovery(true),
			WithPanicHandler(func(ctx *gin.Context, v any) {
				recovered = v
				ctx.AbortWithStatus(http.StatusInternalServerError)
			}),
		))

		assert.Equal(t, http.StatusInternalServerError, get(g, "/").Code)
		assert.Equal(t, "test panic", recovered)
	})

	t.Run("does not recover from panic when disabled", func(t *testing.T) {
		g := gin.New()
		g.Use(ScopeMiddleware(buildContainer(t)))
		g.GET("/", Handle((*userController).Panic))

		assert.Panics(t, func() { get(g, "/") })
	})
}
