package graph

import "strings"

// CircularDependencyError reports a service that depends on itself, directly
// or through other services. Path holds the services of the cycle, starting
// with the one the cycle returns to.
type CircularDependencyError struct {
	Node NodeKey
	Path []NodeKey
}

func (e CircularDependencyError) Error() string {
	cycle := e.Path
	if len(cycle) == 0 {
		cycle = []NodeKey{e.Node}
	}

	var b strings.Builder
	b.WriteString("circular dependency: ")
	for _, k := range cycle {
		b.WriteString(k.String())
		b.WriteString(" -> ")
	}
	b.WriteString(cycle[0].String())
	return b.String()
}
