package chi

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junioryono/ioc"
)

// Test types
type requestCounter struct {
	N int64
}

type userController struct {
	Counter *requestCounter
	Route   *chi.Context
}

func newUserController(counter *requestCounter, route *chi.Context) *userController {
	return &userController{Counter: counter, Route: route}
}

func (c *userController) GetByID(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(c.Route.URLParam("id")))
}

func (c *userController) Panic(w http.ResponseWriter, r *http.Request) {
	panic("test panic")
}

func buildContainer(t *testing.T) *ioc.Container {
	t.Helper()

	var n atomic.Int64
	b := ioc.NewBuilder()
	ioc.Bind[*requestCounter](b).ToFactory(func() *requestCounter {
		return &requestCounter{N: n.Add(1)}
	}).InPerContainerScope()
	ioc.Bind[*userController](b).ToConstructor(newUserController)

	c, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestNewRouter(t *testing.T) {
	t.Run("controllers see URL parameters", func(t *testing.T) {
		r := NewRouter(buildContainer(t))
		r.Get("/users/{id}", Handle((*userController).GetByID))

		rec := get(r, "/users/42")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "42", rec.Body.String())
	})

	t.Run("each request gets a fresh container", func(t *testing.T) {
		var ids []int64
		r := NewRouter(buildContainer(t))
		r.Get("/", Handle(func(c *userController, w http.ResponseWriter, r *http.Request) {
			ids = append(ids, c.Counter.N)
		}))

		get(r, "/")
		get(r, "/")

		assert.Equal(t, []int64{1, 2}, ids)
	})

	t.Run("URLParam helper", func(t *testing.T) {
		r := NewRouter(buildContainer(t))
		r.Get("/orders/{order}", func(w http.ResponseWriter, r *http.Request) {
			c, err := ioc.FromContext(r.Context())
			require.NoError(t, err)

			order, err := URLParam(c, "order")
			require.NoError(t, err)
			assert.Equal(t, order, chi.URLParam(r, "order"))
			w.Write([]byte(order))
		})

		assert.Equal(t, "A-7", get(r, "/orders/A-7").Body.String())
	})

	t.Run("panic recovery", func(t *testing.T) {
		var recovered any
		r := NewRouter(buildContainer(t))
		r.Get("/", Handle((*userController).Panic,
			WithPanicRecovery(true),
			WithPanicHandler(func(w http.ResponseWriter, r *http.Request, v any) {
				recovered = v
				w.WriteHeader(http.StatusInternalServerError)
			}),
		))

		assert.Equal(t, http.StatusInternalServerError, get(r, "/").Code)
		assert.Equal(t, "test panic", recovered)
	})
}

func TestScopeMiddleware(t *testing.T) {
	t.Run("outside a chi router", func(t *testing.T) {
		handler := ScopeMiddleware(buildContainer(t))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := ioc.FromContext(r.Context())
			require.NoError(t, err)

			_, err = URLParam(c, "id")
			assert.ErrorIs(t, err, ErrNoRouteContext)
		}))

		get(handler, "/")
	})

	t.Run("user options still apply", func(t *testing.T) {
		var order []string
		r := chi.NewRouter()
		r.Use(ScopeMiddleware(buildContainer(t),
			WithMiddleware(func(c *ioc.Container, r *http.Request) error {
				order = append(order, "middleware")
				return nil
			}),
		))
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		})

		get(r, "/")

		assert.Equal(t, []string{"middleware", "handler"}, order)
	})
}
