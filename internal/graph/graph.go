package graph

import (
	"fmt"
	"reflect"
)

// NodeKey uniquely identifies a service in a resolution path.
type NodeKey struct {
	Type reflect.Type
	Key  string
}

// String returns the short type name, followed by the key in brackets
// when set.
func (k NodeKey) String() string {
	if k.Key != "" {
		return fmt.Sprintf("%s[%s]", TypeName(k.Type), k.Key)
	}
	return TypeName(k.Type)
}

// TypeName formats t for messages. Named types lose their package path.
func TypeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}

	switch t.Kind() {
	case reflect.Pointer, reflect.Slice:
		prefix := "*"
		if t.Kind() == reflect.Slice {
			prefix = "[]"
		}
		if elem := t.Elem(); elem.PkgPath() != "" && elem.Name() != "" {
			return prefix + elem.Name()
		}
		return t.String()
	case reflect.Map:
		return "map[" + shortName(t.Key()) + "]" + shortName(t.Elem())
	case reflect.Func:
		return t.String()
	default:
		return shortName(t)
	}
}

func shortName(t reflect.Type) string {
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

// Path is the chain of services currently being compiled or resolved,
// outermost first.
type Path []NodeKey

// Contains reports whether key is already on the path.
func (p Path) Contains(key NodeKey) bool {
	return p.indexOf(key) >= 0
}

// Push returns a new path with key appended. The receiver is never modified,
// so sibling branches of a resolution can share a prefix.
func (p Path) Push(key NodeKey) Path {
	next := make(Path, len(p), len(p)+1)
	copy(next, p)
	return append(next, key)
}

// Cycle returns the error describing the cycle that re-entering key would
// close. The reported path starts at the first occurrence of key.
func (p Path) Cycle(key NodeKey) CircularDependencyError {
	i := p.indexOf(key)
	if i < 0 {
		return CircularDependencyError{Node: key}
	}

	cycle := make([]NodeKey, len(p)-i)
	copy(cycle, p[i:])
	return CircularDependencyError{Node: key, Path: cycle}
}

func (p Path) indexOf(key NodeKey) int {
	for i, k := range p {
		if k == key {
			return i
		}
	}
	return -1
}
