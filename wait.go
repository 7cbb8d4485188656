package ioc

import (
	"sync"

	"github.com/junioryono/ioc/internal/graph"
)

// resolution identifies one chain of nested constructions. Every call user
// code makes through a Resolver starts a resolution nested in its caller's.
type resolution struct {
	parent *resolution
}

// within reports whether r is other or nested in it.
func (r *resolution) within(other *resolution) bool {
	for cur := r; cur != nil; cur = cur.parent {
		if cur == other {
			return true
		}
	}
	return false
}

// constructLock serializes construction of one cached instance. It records
// which resolution holds it so a blocking acquire that would never return
// can be reported instead.
type constructLock struct {
	mu     sync.Mutex
	node   graph.NodeKey
	holder *resolution // guarded by the root's waitMu
}

// acquire locks l on behalf of ctx's resolution. It fails with a cycle error
// when the holder of l is ctx's own chain, or is waiting, directly or through
// other resolutions, on a lock that chain holds.
func (ctx *resolveContext) acquire(l *constructLock, node graph.NodeKey) error {
	root := ctx.container.root
	me := ctx.res

	root.waitMu.Lock()
	if path, ok := root.closesCycle(l, me, graph.Path{node}, make(map[*constructLock]bool)); ok {
		root.waitMu.Unlock()
		return RegistrationError{
			ServiceType: node.Type,
			Key:         node.Key,
			Cause:       ctx.waitCycle(node, path),
		}
	}
	if root.waits == nil {
		root.waits = make(map[*resolution]*constructLock)
	}
	root.waits[me] = l
	root.waitMu.Unlock()

	l.mu.Lock()

	root.waitMu.Lock()
	delete(root.waits, me)
	l.holder = me
	l.node = node
	root.waitMu.Unlock()
	return nil
}

// release unlocks l.
func (ctx *resolveContext) release(l *constructLock) {
	root := ctx.container.root

	root.waitMu.Lock()
	l.holder = nil
	root.waitMu.Unlock()

	l.mu.Unlock()
}

// closesCycle follows l to its holder and from there through every lock the
// holder's chain waits on. It reports whether the walk reaches me, along
// with the locks it passed. The caller holds waitMu.
func (c *Container) closesCycle(l *constructLock, me *resolution, path graph.Path, seen map[*constructLock]bool) (graph.Path, bool) {
	h := l.holder
	if h == nil || seen[l] {
		return nil, false
	}
	if me.within(h) {
		return path, true
	}
	seen[l] = true

	for w, next := range c.waits {
		if !w.within(h) {
			continue
		}
		if p, ok := c.closesCycle(next, me, path.Push(next.node), seen); ok {
			return p, true
		}
	}
	return nil, false
}

// waitCycle describes a cycle closed at node. A cycle inside one chain is
// reported along its own path; one spanning several along the locks they
// wait on.
func (ctx *resolveContext) waitCycle(node graph.NodeKey, waits graph.Path) graph.CircularDependencyError {
	if len(waits) == 1 && ctx.path.Contains(node) {
		return ctx.path.Cycle(node)
	}
	return graph.CircularDependencyError{Node: node, Path: waits}
}
