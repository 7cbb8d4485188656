package ioc

import (
	"fmt"
	"sync"
)

// lifecycleManager manages the lifecycle of disposable instances
type lifecycleManager struct {
	disposables []Disposable
	mu          sync.Mutex
}

// newLifecycleManager creates a new lifecycle manager
func newLifecycleManager() *lifecycleManager {
	return &lifecycleManager{
		disposables: make([]Disposable, 0),
	}
}

// track adds a disposable instance to be managed. It reports whether the
// instance was tracked.
func (m *lifecycleManager) track(instance any) bool {
	d, ok := instance.(Disposable)
	if !ok {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.disposables = append(m.disposables, d)
	return true
}

// dispose disposes all tracked instances in reverse order and returns
// every failure.
func (m *lifecycleManager) dispose() []error {
	m.mu.Lock()
	disposables := m.disposables
	m.disposables = nil
	m.mu.Unlock()

	var errs []error

	// Dispose in reverse order (LIFO)
	for i := len(disposables) - 1; i >= 0; i-- {
		if err := closeSafely(disposables[i]); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", disposables[i], err))
		}
	}

	return errs
}

// count returns the number of tracked instances.
func (m *lifecycleManager) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.disposables)
}

func closeSafely(d Disposable) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during close: %v", r)
		}
	}()
	return d.Close()
}
