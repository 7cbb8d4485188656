package ioc

import (
	"fmt"
	"reflect"
)

// Resolve resolves the unkeyed service of type T.
//
// Example:
//
//	logger, err := ioc.Resolve[Logger](container)
//	if err != nil {
//	    // Handle error
//	}
func Resolve[T any](r Resolver) (T, error) {
	var zero T

	if r == nil {
		return zero, ErrContainerNil
	}

	serviceType := reflect.TypeFor[T]()
	service, err := r.Get(serviceType)
	if err != nil {
		return zero, err
	}

	return assertService[T](service, serviceType, "type assertion")
}

// MustResolve resolves the unkeyed service of type T and panics on failure.
// It is meant for application startup, where a missing service is fatal.
func MustResolve[T any](r Resolver) T {
	service, err := Resolve[T](r)
	if err != nil {
		panic(fmt.Sprintf("failed to resolve service: %v", err))
	}

	return service
}

// ResolveKeyed resolves the service of type T registered under key.
//
// Example:
//
//	cache, err := ioc.ResolveKeyed[Cache](container, "redis")
func ResolveKeyed[T any](r Resolver, key string) (T, error) {
	var zero T

	if r == nil {
		return zero, ErrContainerNil
	}

	serviceType := reflect.TypeFor[T]()
	service, err := r.GetKeyed(serviceType, key)
	if err != nil {
		return zero, err
	}

	return assertService[T](service, serviceType, "type assertion for keyed service")
}

// MustResolveKeyed resolves the service of type T under key and panics on failure.
func MustResolveKeyed[T any](r Resolver, key string) T {
	service, err := ResolveKeyed[T](r, key)
	if err != nil {
		panic(fmt.Sprintf("failed to resolve keyed service %s: %v", key, err))
	}

	return service
}

// ResolveAll resolves every unkeyed registration of T, in registration order.
//
// Example:
//
//	handlers, err := ioc.ResolveAll[http.Handler](container)
func ResolveAll[T any](r Resolver) ([]T, error) {
	if r == nil {
		return nil, ErrContainerNil
	}

	serviceType := reflect.TypeFor[T]()
	services, err := r.GetAll(serviceType)
	if err != nil {
		return nil, err
	}

	return assertServices[T](services, serviceType)
}

// ResolveAllKeyed resolves every registration of T under key.
func ResolveAllKeyed[T any](r Resolver, key string) ([]T, error) {
	if r == nil {
		return nil, ErrContainerNil
	}

	serviceType := reflect.TypeFor[T]()
	services, err := r.GetAllKeyed(serviceType, key)
	if err != nil {
		return nil, err
	}

	return assertServices[T](services, serviceType)
}

func assertService[T any](service any, serviceType reflect.Type, context string) (T, error) {
	result, ok := service.(T)
	if !ok {
		var zero T
		return zero, TypeMismatchError{
			Expected: serviceType,
			Actual:   reflect.TypeOf(service),
			Context:  context,
		}
	}

	return result, nil
}

func assertServices[T any](services []any, serviceType reflect.Type) ([]T, error) {
	results := make([]T, 0, len(services))
	for i, service := range services {
		result, err := assertService[T](service, serviceType, fmt.Sprintf("type assertion for item %d", i))
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}

	return results, nil
}
