package ioc_test

import (
	"errors"
	"sync/atomic"

	"github.com/junioryono/ioc"
	"github.com/junioryono/ioc/internal/testutil"
)

// ============================================================================
// Shared Test Types
// ============================================================================

type Greeter interface {
	Greet() string
}

type EnglishGreeter struct{}

func (EnglishGreeter) Greet() string { return "hello" }

type FrenchGreeter struct{}

func (FrenchGreeter) Greet() string { return "bonjour" }

type Clock struct {
	ID int64
}

var clockCount atomic.Int64

func NewClock() *Clock {
	return &Clock{ID: clockCount.Add(1)}
}

type Config struct {
	DSN string
}

func NewConfig() *Config {
	return &Config{DSN: "memory://"}
}

type Repository struct {
	Config *Config
	Logger testutil.Logger
}

func NewRepository(cfg *Config, logger testutil.Logger) *Repository {
	return &Repository{Config: cfg, Logger: logger}
}

type Service struct {
	Repo  *Repository
	Clock *Clock
}

func NewService(repo *Repository, clock *Clock) *Service {
	return &Service{Repo: repo, Clock: clock}
}

// Field injection.

type Handler struct {
	Greeter  Greeter         `inject:""`
	French   Greeter         `inject:"fr"`
	Logger   testutil.Logger `inject:"" optional:"true"`
	Ignored  *Clock
	injected bool
}

func (h *Handler) ParametersInjected() { h.injected = true }

// Parameter objects.

type ReportParams struct {
	ioc.In

	Greeters []Greeter
	French   Greeter `name:"fr"`
	Clock    *Clock  `optional:"true"`
}

type Report struct {
	Greeters []Greeter
	French   Greeter
	Clock    *Clock
}

func NewReport(p ReportParams) *Report {
	return &Report{Greeters: p.Greeters, French: p.French, Clock: p.Clock}
}

// Cycles.

type Egg struct{ Chicken *Chicken }
type Chicken struct{ Egg *Egg }

func NewEgg(c *Chicken) *Egg     { return &Egg{Chicken: c} }
func NewChicken(e *Egg) *Chicken { return &Chicken{Egg: e} }

// Generics.

type Store[T any] interface {
	Put(T)
	All() []T
}

type MemoryStore[T any] struct {
	items []T
}

func NewMemoryStore[T any]() *MemoryStore[T] { return &MemoryStore[T]{} }

func (s *MemoryStore[T]) Put(v T)  { s.items = append(s.items, v) }
func (s *MemoryStore[T]) All() []T { return s.items }

type Customer struct{ Name string }
type Order struct{ ID int }

// Errors.

var errBoom = errors.New("boom")

func NewFailingClock() (*Clock, error) {
	return nil, errBoom
}

func NewPanickingClock() *Clock {
	panic("clock stopped")
}

func NewNilClock() *Clock {
	return nil
}
