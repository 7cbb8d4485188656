package testutil

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/junioryono/ioc"
)

// Common test errors
var (
	ErrTest            = errors.New("test error")
	ErrConstructor     = errors.New("constructor error")
	ErrDisposal        = errors.New("disposal error")
	ErrAlreadyDisposed = errors.New("already disposed")
)

// Logger is a test logger interface
type Logger interface {
	Log(msg string)
	Logs() []string
}

// MemoryLogger implements Logger
type MemoryLogger struct {
	ID   string
	logs []string
	mu   sync.Mutex
}

func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{ID: uuid.NewString()}
}

func (l *MemoryLogger) Log(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logs = append(l.logs, msg)
}

func (l *MemoryLogger) Logs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	result := make([]string, len(l.logs))
	copy(result, l.logs)
	return result
}

// Database is a test database interface
type Database interface {
	Query(sql string) string
}

// MemoryDatabase implements Database and ioc.Disposable
type MemoryDatabase struct {
	Name   string
	Logger Logger
	closed atomic.Bool
}

func NewMemoryDatabase(logger Logger) *MemoryDatabase {
	return &MemoryDatabase{Name: "memory", Logger: logger}
}

func (d *MemoryDatabase) Query(sql string) string {
	if d.Logger != nil {
		d.Logger.Log(sql)
	}
	return fmt.Sprintf("%s: %s", d.Name, sql)
}

func (d *MemoryDatabase) Close() error {
	if d.closed.Swap(true) {
		return ErrAlreadyDisposed
	}
	return nil
}

func (d *MemoryDatabase) IsClosed() bool {
	return d.closed.Load()
}

// Counter counts constructor invocations.
type Counter struct {
	n atomic.Int64
}

func (c *Counter) Inc() int64  { return c.n.Add(1) }
func (c *Counter) Load() int64 { return c.n.Load() }

// CloseRecorder records the order in which Disposables are closed.
type CloseRecorder struct {
	mu     sync.Mutex
	closed []string
}

func (r *CloseRecorder) Record(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = append(r.closed, name)
}

func (r *CloseRecorder) Closed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.closed...)
}

// Disposable is a test type that implements ioc.Disposable
type Disposable struct {
	Name     string
	recorder *CloseRecorder
	err      error
	disposed atomic.Bool
}

var _ ioc.Disposable = (*Disposable)(nil)

func NewDisposable(name string, recorder *CloseRecorder) *Disposable {
	return &Disposable{Name: name, recorder: recorder}
}

func NewDisposableWithError(name string, err error) *Disposable {
	return &Disposable{Name: name, err: err}
}

func (d *Disposable) Close() error {
	if d.disposed.Swap(true) {
		return ErrAlreadyDisposed
	}
	if d.recorder != nil {
		d.recorder.Record(d.Name)
	}
	return d.err
}

func (d *Disposable) IsDisposed() bool {
	return d.disposed.Load()
}

// CloserFunc is a helper type to wrap a function as a Disposable
type CloserFunc func() error

func (f CloserFunc) Close() error {
	return f()
}

// CircularA and CircularB for testing circular dependencies
type CircularA struct {
	B *CircularB
}

type CircularB struct {
	A *CircularA
}

func NewCircularA(b *CircularB) *CircularA {
	return &CircularA{B: b}
}

func NewCircularB(a *CircularA) *CircularB {
	return &CircularB{A: a}
}
