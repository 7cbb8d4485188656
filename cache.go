package ioc

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// instanceSlot holds one cached instance. value is published once
// construction succeeds; lock serializes construction.
type instanceSlot struct {
	lock  constructLock
	value atomic.Pointer[reflect.Value]
}

// instanceCache provides thread-safe per-container slots for PerContainer
// registrations.
type instanceCache struct {
	slots map[*registration]*instanceSlot
	mu    sync.RWMutex
}

// newInstanceCache creates a new instance cache
func newInstanceCache() *instanceCache {
	return &instanceCache{
		slots: make(map[*registration]*instanceSlot),
	}
}

// slot returns the slot for reg, creating it if necessary.
func (c *instanceCache) slot(reg *registration) *instanceSlot {
	c.mu.RLock()
	s, ok := c.slots[reg]
	c.mu.RUnlock()
	if ok {
		return s
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok = c.slots[reg]; !ok {
		s = &instanceSlot{}
		c.slots[reg] = s
	}
	return s
}

// get retrieves a constructed instance from the cache
func (c *instanceCache) get(reg *registration) (reflect.Value, bool) {
	c.mu.RLock()
	s, ok := c.slots[reg]
	c.mu.RUnlock()
	if !ok {
		return reflect.Value{}, false
	}

	v := s.value.Load()
	if v == nil {
		return reflect.Value{}, false
	}
	return *v, true
}

// clear removes all slots from the cache
func (c *instanceCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slots = make(map[*registration]*instanceSlot)
}
