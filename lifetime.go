package ioc

import (
	"encoding/json"
	"fmt"
)

// Lifetime specifies how instances produced by a registration are reused.
type Lifetime int

const (
	// Transient produces a new instance on every resolution.
	Transient Lifetime = iota

	// Singleton produces one instance for the whole container tree.
	// The instance is owned by the container that holds the registration
	// and is disposed when that container is closed.
	// Singleton services must not depend on PerContainer services.
	Singleton

	// PerContainer produces one instance per requesting container.
	// A registration made on a parent is shared by its children, but each
	// child that resolves it gets, caches and disposes its own instance.
	PerContainer
)

// String returns the string representation of the Lifetime.
func (l Lifetime) String() string {
	switch l {
	case Transient:
		return "Transient"
	case Singleton:
		return "Singleton"
	case PerContainer:
		return "PerContainer"
	default:
		return fmt.Sprintf("Unknown(%d)", int(l))
	}
}

// IsValid checks if the lifetime is valid.
func (l Lifetime) IsValid() bool {
	return l >= Transient && l <= PerContainer
}

// MarshalText implements encoding.TextMarshaler.
func (l Lifetime) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Lifetime) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Transient", "transient":
		*l = Transient
	case "Singleton", "singleton":
		*l = Singleton
	case "PerContainer", "perContainer", "per-container":
		*l = PerContainer
	default:
		return LifetimeError{Value: string(text)}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (l Lifetime) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *Lifetime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	return l.UnmarshalText([]byte(s))
}
