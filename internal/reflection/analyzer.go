package reflection

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// In marks a struct as a parameter object. A constructor whose only
// parameter is a struct embedding In gets each exported field resolved
// individually.
type In struct{}

// InjectTag is the struct tag that marks a field for injection. Its value,
// when not empty, is the discriminator key of the dependency.
const InjectTag = "inject"

// FactoryTag is the struct tag on abstract factory fields. The value "key"
// makes the method's first (string) parameter the discriminator key.
const FactoryTag = "ioc"

var (
	inType  = reflect.TypeFor[In]()
	errType = reflect.TypeFor[error]()
)

var (
	ErrNilConstructor   = errors.New("constructor cannot be nil")
	ErrNotFunc          = errors.New("constructor must be a function")
	ErrNoResult         = errors.New("constructor returns no service value")
	ErrMultipleResults  = errors.New("constructor returns more than one service value")
	ErrVariadic         = errors.New("variadic functions are not supported")
	ErrNotStruct        = errors.New("type must be a struct or a pointer to a struct")
	ErrUnexportedInject = errors.New("inject tag on unexported field")
	ErrNotFactory       = errors.New("type is not an abstract factory")
)

// Analyzer performs reflection-based analysis of constructors, injectable
// structs and abstract factories. Results are cached per type, so analysis
// of closures sharing a signature is done once.
type Analyzer struct {
	mu        sync.RWMutex
	funcs     map[reflect.Type]*signature
	structs   map[reflect.Type]*StructInfo
	factories map[reflect.Type]*FactoryInfo
}

// ConstructorInfo contains analyzed information about a constructor function.
type ConstructorInfo struct {
	Type           reflect.Type
	Value          reflect.Value
	Parameters     []ParameterInfo
	IsParamObject  bool
	ResultType     reflect.Type
	HasErrorReturn bool
}

// ParameterInfo describes a constructor parameter, a field in an In struct,
// or an injectable struct field.
type ParameterInfo struct {
	Type     reflect.Type
	Name     string // Field name for In structs and injectable fields
	Index    int    // Parameter index or field index
	Key      string // From name:"key" or inject:"key"
	Optional bool   // From optional:"true"
}

// StructInfo lists the injectable fields of a struct type.
type StructInfo struct {
	Type   reflect.Type // Always the struct type, never the pointer
	Fields []ParameterInfo
}

// FactoryInfo describes an abstract factory: a struct of func fields, or a
// single func type.
type FactoryInfo struct {
	Type    reflect.Type
	IsFunc  bool
	Methods []FactoryMethod
}

// FactoryMethod describes one synthesized factory method.
type FactoryMethod struct {
	Name           string
	Index          int // Field index, -1 for func factories
	Type           reflect.Type
	Result         reflect.Type // Element type when All is set
	All            bool
	HasErrorReturn bool
	Keyed          bool
	Args           []reflect.Type // Argument overrides, key excluded
}

type signature struct {
	parameters     []ParameterInfo
	isParamObject  bool
	resultType     reflect.Type
	hasErrorReturn bool
}

// New creates a new Analyzer.
func New() *Analyzer {
	return &Analyzer{
		funcs:     make(map[reflect.Type]*signature),
		structs:   make(map[reflect.Type]*StructInfo),
		factories: make(map[reflect.Type]*FactoryInfo),
	}
}

// Analyze analyzes a constructor function and extracts dependency information.
func (a *Analyzer) Analyze(constructor any) (*ConstructorInfo, error) {
	if constructor == nil {
		return nil, ErrNilConstructor
	}

	val := reflect.ValueOf(constructor)
	if val.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w, got %v", ErrNotFunc, val.Type())
	}
	if val.IsNil() {
		return nil, ErrNilConstructor
	}

	sig, err := a.signatureOf(val.Type())
	if err != nil {
		return nil, err
	}

	return &ConstructorInfo{
		Type:           val.Type(),
		Value:          val,
		Parameters:     sig.parameters,
		IsParamObject:  sig.isParamObject,
		ResultType:     sig.resultType,
		HasErrorReturn: sig.hasErrorReturn,
	}, nil
}

func (a *Analyzer) signatureOf(fnType reflect.Type) (*signature, error) {
	a.mu.RLock()
	cached, ok := a.funcs[fnType]
	a.mu.RUnlock()
	if ok {
		return cached, nil
	}

	if fnType.IsVariadic() {
		return nil, ErrVariadic
	}

	sig := &signature{}
	if err := analyzeReturns(sig, fnType); err != nil {
		return nil, err
	}
	if err := a.analyzeParameters(sig, fnType); err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.funcs[fnType] = sig
	a.mu.Unlock()

	return sig, nil
}

// analyzeParameters analyzes function parameters or In struct fields.
func (a *Analyzer) analyzeParameters(sig *signature, fnType reflect.Type) error {
	if fnType.NumIn() == 1 && hasEmbeddedIn(fnType.In(0)) {
		sig.isParamObject = true
		return a.analyzeParamObject(sig, fnType.In(0))
	}

	sig.parameters = make([]ParameterInfo, fnType.NumIn())
	for i := 0; i < fnType.NumIn(); i++ {
		sig.parameters[i] = ParameterInfo{
			Type:  fnType.In(i),
			Index: i,
		}
	}

	return nil
}

// analyzeParamObject analyzes an In struct's fields.
func (a *Analyzer) analyzeParamObject(sig *signature, structType reflect.Type) error {
	if structType.Kind() != reflect.Struct {
		return fmt.Errorf("In parameter must be a struct, got %v", structType.Kind())
	}

	params := make([]ParameterInfo, 0, structType.NumField())
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)

		if field.Anonymous && field.Type == inType {
			continue
		}
		if !field.IsExported() {
			continue
		}
		if field.Tag.Get(InjectTag) == "-" {
			continue
		}

		params = append(params, ParameterInfo{
			Type:     field.Type,
			Name:     field.Name,
			Index:    i,
			Key:      field.Tag.Get("name"),
			Optional: field.Tag.Get("optional") == "true",
		})
	}

	sig.parameters = params
	return nil
}

// analyzeReturns finds the single service result and the optional trailing error.
func analyzeReturns(sig *signature, fnType reflect.Type) error {
	n := fnType.NumOut()
	if n > 0 && fnType.Out(n-1) == errType {
		sig.hasErrorReturn = true
		n--
	}

	switch n {
	case 0:
		return ErrNoResult
	case 1:
		sig.resultType = fnType.Out(0)
		return nil
	default:
		results := make([]reflect.Type, n)
		for i := range n {
			results[i] = fnType.Out(i)
		}
		return fmt.Errorf("%w: %v", ErrMultipleResults, results)
	}
}

// Injectable returns the inject-tagged fields of a struct or pointer-to-struct type.
func (a *Analyzer) Injectable(t reflect.Type) (*StructInfo, error) {
	structType := t
	if structType.Kind() == reflect.Pointer {
		structType = structType.Elem()
	}
	if structType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w, got %v", ErrNotStruct, t)
	}

	a.mu.RLock()
	cached, ok := a.structs[structType]
	a.mu.RUnlock()
	if ok {
		return cached, nil
	}

	info := &StructInfo{Type: structType}
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)

		key, tagged := field.Tag.Lookup(InjectTag)
		if !tagged || key == "-" {
			continue
		}
		if !field.IsExported() {
			return nil, fmt.Errorf("%w %s.%s", ErrUnexportedInject, structType, field.Name)
		}

		info.Fields = append(info.Fields, ParameterInfo{
			Type:     field.Type,
			Name:     field.Name,
			Index:    i,
			Key:      key,
			Optional: field.Tag.Get("optional") == "true",
		})
	}

	a.mu.Lock()
	a.structs[structType] = info
	a.mu.Unlock()

	return info, nil
}

// Factory analyzes an abstract factory type.
func (a *Analyzer) Factory(t reflect.Type) (*FactoryInfo, error) {
	a.mu.RLock()
	cached, ok := a.factories[t]
	a.mu.RUnlock()
	if ok {
		return cached, nil
	}

	info := &FactoryInfo{Type: t}

	switch {
	case t.Kind() == reflect.Func:
		info.IsFunc = true
		method, err := analyzeMethod("func", -1, t, "")
		if err != nil {
			return nil, err
		}
		info.Methods = []FactoryMethod{method}

	case t.Kind() == reflect.Struct || (t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct):
		structType := t
		if structType.Kind() == reflect.Pointer {
			structType = structType.Elem()
		}

		for i := 0; i < structType.NumField(); i++ {
			field := structType.Field(i)
			if !field.IsExported() {
				continue
			}
			if field.Type.Kind() != reflect.Func {
				return nil, fmt.Errorf("%w: field %s of %v is not a func", ErrNotFactory, field.Name, t)
			}

			method, err := analyzeMethod(field.Name, i, field.Type, field.Tag.Get(FactoryTag))
			if err != nil {
				return nil, err
			}
			info.Methods = append(info.Methods, method)
		}

		if len(info.Methods) == 0 {
			return nil, fmt.Errorf("%w: %v has no exported func fields", ErrNotFactory, t)
		}

	default:
		return nil, fmt.Errorf("%w: %v must be a func or a struct of funcs", ErrNotFactory, t)
	}

	a.mu.Lock()
	a.factories[t] = info
	a.mu.Unlock()

	return info, nil
}

func analyzeMethod(name string, index int, fnType reflect.Type, tag string) (FactoryMethod, error) {
	m := FactoryMethod{Name: name, Index: index, Type: fnType}

	if fnType.IsVariadic() {
		return m, fmt.Errorf("%w: method %s: %w", ErrNotFactory, name, ErrVariadic)
	}

	sig := &signature{}
	if err := analyzeReturns(sig, fnType); err != nil {
		return m, fmt.Errorf("%w: method %s: %w", ErrNotFactory, name, err)
	}
	m.HasErrorReturn = sig.hasErrorReturn
	m.Result = sig.resultType
	if m.Result.Kind() == reflect.Slice {
		m.All = true
		m.Result = m.Result.Elem()
	}

	first := 0
	if tag == "key" {
		if fnType.NumIn() == 0 || fnType.In(0).Kind() != reflect.String {
			return m, fmt.Errorf("%w: method %s is keyed but its first parameter is not a string", ErrNotFactory, name)
		}
		m.Keyed = true
		first = 1
	}

	seen := make(map[reflect.Type]bool)
	for i := first; i < fnType.NumIn(); i++ {
		arg := fnType.In(i)
		if seen[arg] {
			return m, fmt.Errorf("%w: method %s takes more than one %v argument", ErrNotFactory, name, arg)
		}
		seen[arg] = true
		m.Args = append(m.Args, arg)
	}

	// Every registration of a slice result is built as is; there is no
	// single product for the arguments to reach.
	if m.All && len(m.Args) > 0 {
		return m, fmt.Errorf("%w: method %s returns a slice and cannot take arguments", ErrNotFactory, name)
	}

	return m, nil
}

// Clear clears the analysis cache.
func (a *Analyzer) Clear() {
	a.mu.Lock()
	a.funcs = make(map[reflect.Type]*signature)
	a.structs = make(map[reflect.Type]*StructInfo)
	a.factories = make(map[reflect.Type]*FactoryInfo)
	a.mu.Unlock()
}

// CacheSize returns the number of cached analyses.
func (a *Analyzer) CacheSize() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.funcs) + len(a.structs) + len(a.factories)
}

// hasEmbeddedIn checks if a struct type embeds In.
func hasEmbeddedIn(t reflect.Type) bool {
	if t.Kind() != reflect.Struct {
		return false
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Anonymous && field.Type == inType {
			return true
		}
	}

	return false
}
