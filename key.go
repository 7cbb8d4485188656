package ioc

import (
	"reflect"

	"github.com/junioryono/ioc/internal/graph"
)

// ServiceKey identifies a registration collection: a service type plus an
// optional discriminator. An empty Key means the service is unkeyed.
type ServiceKey struct {
	Type reflect.Type
	Key  string
}

// String returns the service type, followed by the key in brackets when set.
func (k ServiceKey) String() string {
	return k.node().String()
}

func (k ServiceKey) node() graph.NodeKey {
	return graph.NodeKey{Type: k.Type, Key: k.Key}
}

// TypeOf returns the reflect.Type of T, including interface types.
//
// Example:
//
//	b.Bind(ioc.TypeOf[Logger]()).To(ioc.TypeOf[*ConsoleLogger]())
func TypeOf[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}
