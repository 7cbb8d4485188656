package ioc

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/junioryono/ioc/internal/graph"
)

// ========================================
// Core Error Values (Sentinel Errors)
// ========================================
// Configuration failures are returned as RegistrationError wrapping one of
// these, so callers can match them with errors.Is.

var (
	// Lookup errors.
	ErrServiceNotFound       = errors.New("no registrations found")
	ErrAmbiguousRegistration = errors.New("ambiguous registration")
	ErrServiceTypeNil        = errors.New("service type cannot be nil")

	// Binding errors.
	ErrNoImplementation     = errors.New("binding has no implementation")
	ErrNotConstructible     = errors.New("implementation type is not constructible")
	ErrAmbiguousConstructor = errors.New("ambiguous constructor")
	ErrTypeMismatch         = errors.New("implementation is not assignable to service type")
	ErrNotFactory           = errors.New("invalid factory")
	ErrNotGeneric           = errors.New("type is not an instantiated generic type")
	ErrNilInstance          = errors.New("instance cannot be nil")

	// Open generic errors.
	ErrNoClosedImplementation = errors.New("no implementation for the requested type arguments")

	// Lifecycle errors.
	ErrContainerNil          = errors.New("container cannot be nil")
	ErrContainerDisposed     = errors.New("container has been disposed")
	ErrContainerNotInContext = errors.New("no container in context")
)

var (
	_ error = LifetimeError{}
	_ error = LifetimeConflictError{}
	_ error = RegistrationError{}
	_ error = ModuleError{}
	_ error = TypeMismatchError{}
	_ error = ConstructorPanicError{}
	_ error = DisposalError{}
	_ error = CircularDependencyError{}
)

// ========================================
// Typed Errors for Rich Context
// ========================================

// LifetimeError indicates an invalid lifetime value.
type LifetimeError struct {
	Value any
}

func (e LifetimeError) Error() string {
	return fmt.Sprintf("invalid lifetime: %v", e.Value)
}

// LifetimeConflictError indicates a registration has an invalid dependency
// due to lifetime constraints. A Singleton cannot depend on a PerContainer
// service, directly or through Transient services.
type LifetimeConflictError struct {
	ServiceType        reflect.Type
	ServiceLifetime    Lifetime
	DependencyType     reflect.Type
	DependencyLifetime Lifetime
}

func (e LifetimeConflictError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("lifetime conflict: %s (%s) cannot depend on %s (%s)\n\n",
		formatType(e.ServiceType), e.ServiceLifetime,
		formatType(e.DependencyType), e.DependencyLifetime))

	b.WriteString("Singleton services are created once and shared by every container in the tree.\n")
	b.WriteString("PerContainer services are created per container and disposed with it.\n\n")

	b.WriteString("To resolve this:\n")
	b.WriteString(fmt.Sprintf("  • Change %s to PerContainer lifetime\n", formatType(e.ServiceType)))
	b.WriteString(fmt.Sprintf("  • Change %s to Singleton lifetime\n", formatType(e.DependencyType)))
	b.WriteString(fmt.Sprintf("  • Inject an abstract factory and create %s lazily\n", formatType(e.DependencyType)))

	return b.String()
}

// Type aliases for graph package types
type CircularDependencyError = graph.CircularDependencyError

// RegistrationError is the configuration error category. It is returned for
// missing, ambiguous, non-constructible and circular registrations, whether
// detected by Build, Compile or the first resolution.
type RegistrationError struct {
	ServiceType reflect.Type
	Key         string       // empty for unkeyed services
	Dependent   reflect.Type // the service that required ServiceType, if any
	Cause       error
}

func (e RegistrationError) Error() string {
	var b strings.Builder
	b.WriteString("service ")
	b.WriteString(formatType(e.ServiceType))
	if e.Key != "" {
		b.WriteString(fmt.Sprintf(" (key: %s)", e.Key))
	}
	if e.Dependent != nil {
		b.WriteString(fmt.Sprintf(" required by %s", formatType(e.Dependent)))
	}
	b.WriteString(": ")
	if e.Cause != nil {
		b.WriteString(e.Cause.Error())
	} else {
		b.WriteString("invalid registration")
	}
	return b.String()
}

func (e RegistrationError) Unwrap() error {
	return e.Cause
}

// IsRegistrationError reports whether err is, or wraps, a RegistrationError.
func IsRegistrationError(err error) bool {
	var re RegistrationError
	return errors.As(err, &re)
}

// ModuleError wraps errors from module registration.
type ModuleError struct {
	Module string
	Cause  error
}

func (e ModuleError) Error() string {
	return fmt.Sprintf("module %q: %v", e.Module, e.Cause)
}

func (e ModuleError) Unwrap() error {
	return e.Cause
}

// TypeMismatchError indicates a type assertion or assignability check failed.
type TypeMismatchError struct {
	Expected reflect.Type
	Actual   reflect.Type
	Context  string // "binding", "type assertion", etc.
}

func (e TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Context, formatType(e.Expected), formatType(e.Actual))
}

func (e TypeMismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}

// ConstructorPanicError indicates a constructor or factory panicked during invocation.
// It captures the panic value and stack trace for debugging.
type ConstructorPanicError struct {
	Constructor reflect.Type
	Panic       any
	Stack       []byte
}

func (e ConstructorPanicError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("constructor %s panicked: %v\n", formatType(e.Constructor), e.Panic))

	b.WriteString("\nTo resolve this:\n")
	b.WriteString("  • Check for nil pointer dereferences in your constructor\n")
	b.WriteString("  • Return an error instead of panicking\n")

	if len(e.Stack) > 0 {
		b.WriteString("\nStack trace:\n")
		b.Write(e.Stack)
	}

	return b.String()
}

// Unwrap exposes a panic value that is itself an error.
func (e ConstructorPanicError) Unwrap() error {
	err, _ := e.Panic.(error)
	return err
}

// DisposalError aggregates disposal errors
type DisposalError struct {
	Context string // "container", "child container", ...
	Errors  []error
}

func (e DisposalError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("%s disposal failed: %v", e.Context, e.Errors[0])
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s disposal failed with %d errors:", e.Context, len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("\n  %d. %v", i+1, err))
	}
	return sb.String()
}

func (e DisposalError) Unwrap() []error {
	return e.Errors
}

// formatType formats a reflect.Type for error messages.
func formatType(t reflect.Type) string {
	return graph.TypeName(t)
}

// formatTypes joins formatted type names for candidate lists.
func formatTypes(types []reflect.Type) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = formatType(t)
	}
	return strings.Join(names, ", ")
}
