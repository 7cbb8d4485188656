package ioc

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/junioryono/ioc/internal/reflection"
)

// Container resolves services from the registrations made on the Builder
// that built it, falling back to its parent for keys it has no
// registrations for.
//
// A Container is safe for concurrent use.
type Container struct {
	id       string
	parent   *Container
	root     *Container
	logger   *slog.Logger
	analyzer *reflection.Analyzer

	mu            sync.RWMutex
	collections   map[ServiceKey]*collection
	registrations []*registration
	generics      []*openBinding
	closing       singleflight.Group

	instances *instanceCache
	lifecycle *lifecycleManager

	childrenMu sync.Mutex
	children   map[*Container]struct{}
	disposed   atomic.Bool

	// Shared by the whole tree; only set on the root.
	compileMu    sync.Mutex
	factories    sync.Map // reflect.Type -> *factoryPlan
	factoryGroup singleflight.Group
	waitMu       sync.Mutex // guards constructLock holders and waits
	waits        map[*resolution]*constructLock
}

// BindingInfo describes one registration visible to a container.
type BindingInfo struct {
	Service        reflect.Type
	Key            string
	Implementation reflect.Type
	Lifetime       Lifetime
	Kind           string
}

func newContainer(parent *Container, opts *Options) *Container {
	c := &Container{
		id:          uuid.NewString(),
		parent:      parent,
		collections: make(map[ServiceKey]*collection),
		instances:   newInstanceCache(),
		lifecycle:   newLifecycleManager(),
		children:    make(map[*Container]struct{}),
	}

	if parent != nil {
		c.root = parent.root
		c.analyzer = parent.analyzer
		c.logger = parent.logger
	} else {
		c.root = c
		c.analyzer = reflection.New()
		c.logger = slog.Default()
	}

	if opts != nil && opts.Logger != nil {
		c.logger = opts.Logger
	}

	return c
}

// ID returns the unique identifier assigned to the container when it was built.
func (c *Container) ID() string {
	return c.id
}

// Parent returns the container this one falls back to, or nil for a root.
func (c *Container) Parent() *Container {
	return c.parent
}

// IsDisposed reports whether Close has been called.
func (c *Container) IsDisposed() bool {
	return c.disposed.Load()
}

// Get resolves the single unkeyed registration of serviceType.
func (c *Container) Get(serviceType reflect.Type) (any, error) {
	return c.get(newResolveContext(c), serviceType, "")
}

// GetKeyed resolves the single registration of serviceType under key.
func (c *Container) GetKeyed(serviceType reflect.Type, key string) (any, error) {
	return c.get(newResolveContext(c), serviceType, key)
}

// GetAll resolves every unkeyed registration of serviceType, in
// registration order.
func (c *Container) GetAll(serviceType reflect.Type) ([]any, error) {
	return c.getAll(newResolveContext(c), serviceType, "")
}

// GetAllKeyed resolves every registration of serviceType under key.
func (c *Container) GetAllKeyed(serviceType reflect.Type, key string) ([]any, error) {
	return c.getAll(newResolveContext(c), serviceType, key)
}

func (c *Container) get(ctx *resolveContext, serviceType reflect.Type, key string) (any, error) {
	if serviceType == nil {
		return nil, ErrServiceTypeNil
	}

	v, err := c.resolve(ctx, ServiceKey{Type: serviceType, Key: key})
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

func (c *Container) getAll(ctx *resolveContext, serviceType reflect.Type, key string) ([]any, error) {
	if serviceType == nil {
		return nil, ErrServiceTypeNil
	}

	values, err := c.resolveAll(ctx, ServiceKey{Type: serviceType, Key: key})
	if err != nil {
		return nil, err
	}

	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v.Interface()
	}
	return out, nil
}

// resolve produces the single registration of key. A slice type with no
// registration of its own resolves to every registration of its element.
func (c *Container) resolve(ctx *resolveContext, key ServiceKey) (reflect.Value, error) {
	if c.disposed.Load() {
		return reflect.Value{}, ErrContainerDisposed
	}

	coll, err := c.lookup(key)
	if err != nil {
		return reflect.Value{}, err
	}

	if coll.len() == 0 && key.Type.Kind() == reflect.Slice {
		return c.resolveSlice(ctx, ServiceKey{Type: key.Type.Elem(), Key: key.Key}, key.Type)
	}

	reg, err := coll.getSingle(key)
	if err != nil {
		return reflect.Value{}, err
	}

	p, err := reg.producerFor()
	if err != nil {
		return reflect.Value{}, err
	}
	return p(ctx)
}

// resolveWithArgs produces the single registration of key, supplying args
// to the product's direct dependencies of the matching types.
func (c *Container) resolveWithArgs(ctx *resolveContext, key ServiceKey, sig argsKey, types []reflect.Type, args []reflect.Value) (reflect.Value, error) {
	if c.disposed.Load() {
		return reflect.Value{}, ErrContainerDisposed
	}

	coll, err := c.lookup(key)
	if err != nil {
		return reflect.Value{}, err
	}

	reg, err := coll.getSingle(key)
	if err != nil {
		return reflect.Value{}, err
	}

	p, err := reg.producerWithArgs(sig, types)
	if err != nil {
		return reflect.Value{}, err
	}

	if len(types) > 0 {
		ctx.args = make(map[reflect.Type]reflect.Value, len(types))
		for i, t := range types {
			ctx.args[t] = args[i]
		}
	}
	return p(ctx)
}

func (c *Container) resolveAll(ctx *resolveContext, key ServiceKey) ([]reflect.Value, error) {
	if c.disposed.Load() {
		return nil, ErrContainerDisposed
	}

	coll, err := c.lookup(key)
	if err != nil {
		return nil, err
	}

	regs := coll.getAll()
	values := make([]reflect.Value, 0, len(regs))
	for _, reg := range regs {
		p, err := reg.producerFor()
		if err != nil {
			return nil, err
		}
		v, err := p(ctx)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

func (c *Container) resolveSlice(ctx *resolveContext, key ServiceKey, sliceType reflect.Type) (reflect.Value, error) {
	values, err := c.resolveAll(ctx, key)
	if err != nil {
		return reflect.Value{}, err
	}

	out := reflect.MakeSlice(sliceType, 0, len(values))
	for _, v := range values {
		out = reflect.Append(out, v)
	}
	return out, nil
}

// collection returns the registrations filed under key in this container only.
func (c *Container) collection(key ServiceKey) *collection {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if coll, ok := c.collections[key]; ok {
		return coll
	}
	return emptyCollection
}

// lookup returns the nearest non-empty collection for key, walking from
// this container up to the root. Each container consults its own
// registrations, then its own open generic bindings.
func (c *Container) lookup(key ServiceKey) (*collection, error) {
	// An open binding that cannot close key defers to the ancestors; its
	// error is reported only when none of them can.
	var unclosed error
	for cur := c; cur != nil; cur = cur.parent {
		if coll := cur.collection(key); coll.len() > 0 {
			return coll, nil
		}

		coll, err := cur.closeGeneric(key)
		if errors.Is(err, ErrNoClosedImplementation) {
			if unclosed == nil {
				unclosed = err
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		if coll.len() > 0 {
			return coll, nil
		}
	}

	if unclosed != nil {
		return nil, unclosed
	}
	return emptyCollection, nil
}

// file adds reg to the collections of the given keys.
func (c *Container) file(reg *registration, keys []ServiceKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range keys {
		coll, ok := c.collections[key]
		if !ok {
			coll = emptyCollection
		}
		c.collections[key] = coll.add(reg)
	}
	c.registrations = append(c.registrations, reg)
}

// Bindings describes the registrations that Get and GetAll would use for
// serviceType and key.
func (c *Container) Bindings(serviceType reflect.Type, key string) []BindingInfo {
	if serviceType == nil {
		return nil
	}

	coll, err := c.lookup(ServiceKey{Type: serviceType, Key: key})
	if err != nil {
		return nil
	}

	regs := coll.getAll()
	infos := make([]BindingInfo, len(regs))
	for i, reg := range regs {
		infos[i] = BindingInfo{
			Service:        serviceType,
			Key:            key,
			Implementation: reg.creator.Implementation(),
			Lifetime:       reg.lifetime,
			Kind:           reg.creator.Kind(),
		}
	}
	return infos
}

// Compile builds the producer of every registration made on this container
// and returns all configuration errors at once. A dependency that an
// abstract factory supplies as a method argument is not reported missing.
// Compile runs no constructors.
func (c *Container) Compile() error {
	if c.disposed.Load() {
		return ErrContainerDisposed
	}

	c.mu.RLock()
	regs := make([]*registration, len(c.registrations))
	copy(regs, c.registrations)
	c.mu.RUnlock()

	var errs []error
	for _, reg := range regs {
		if _, err := reg.producerFor(); err != nil {
			if c.suppliedByFactory(reg) {
				continue
			}
			errs = append(errs, err)
		}
	}

	c.logger.Debug("container compiled", "id", c.id, "registrations", len(regs), "errors", len(errs))
	return errors.Join(errs...)
}

// suppliedByFactory reports whether reg compiles once the arguments of some
// abstract factory method producing it are taken into account.
func (c *Container) suppliedByFactory(reg *registration) bool {
	for cur := c; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		regs := cur.registrations
		cur.mu.RUnlock()

		for _, fr := range regs {
			af, ok := fr.creator.(*AbstractFactoryCreator)
			if !ok {
				continue
			}
			for _, m := range af.info.Methods {
				if len(m.Args) == 0 || m.All || !reg.serves(m.Result) {
					continue
				}
				if _, err := reg.producerWithArgs(argsKey{method: m.Type, keyed: m.Keyed}, m.Args); err == nil {
					return true
				}
			}
		}
	}
	return false
}

// BuildUp populates the inject-tagged fields of an existing struct. target
// must be a non-nil pointer to a struct.
func (c *Container) BuildUp(target any) error {
	if c.disposed.Load() {
		return ErrContainerDisposed
	}

	v := reflect.ValueOf(target)
	if !v.IsValid() || v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return TypeMismatchError{
			Expected: reflect.TypeFor[*struct{}](),
			Actual:   reflect.TypeOf(target),
			Context:  "build up target",
		}
	}

	info, err := c.analyzer.Injectable(v.Type())
	if err != nil {
		return RegistrationError{ServiceType: v.Type(), Cause: fmt.Errorf("%w: %w", ErrNotConstructible, err)}
	}

	ctx := newResolveContext(c)
	elem := v.Elem()
	for _, f := range info.Fields {
		key := ServiceKey{Type: f.Type, Key: f.Key}

		coll, err := c.lookup(key)
		if err != nil {
			return err
		}
		if coll.len() == 0 && f.Optional && f.Type.Kind() != reflect.Slice {
			continue
		}

		dep, err := c.resolve(ctx, key)
		if err != nil {
			return withDependentType(err, v.Type())
		}
		elem.Field(f.Index).Set(dep)
	}

	notifyInjected(v)
	return nil
}

func withDependentType(err error, dependent reflect.Type) error {
	if re, ok := err.(RegistrationError); ok && re.Dependent == nil {
		re.Dependent = dependent
		return re
	}
	return err
}

// CreateScope returns an empty child container. Singletons resolve from the
// registrations' owners as usual; PerContainer services get instances owned
// by the scope, disposed when the scope is closed.
func (c *Container) CreateScope() (*Container, error) {
	if c.disposed.Load() {
		return nil, ErrContainerDisposed
	}

	child := newContainer(c, nil)
	c.addChild(child)
	return child, nil
}

// CreateChildBuilder returns a Builder whose Build produces a child of c.
func (c *Container) CreateChildBuilder() *Builder {
	b := NewBuilder()
	b.parent = c
	return b
}

func (c *Container) addChild(child *Container) {
	c.childrenMu.Lock()
	defer c.childrenMu.Unlock()
	c.children[child] = struct{}{}
}

func (c *Container) removeChild(child *Container) {
	c.childrenMu.Lock()
	defer c.childrenMu.Unlock()
	delete(c.children, child)
}

// Close closes every child container, then disposes the instances this
// container owns in reverse creation order. Only instances that were
// actually created are disposed. Close is idempotent; resolving from a
// closed container returns ErrContainerDisposed.
func (c *Container) Close() error {
	if !c.disposed.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error

	c.childrenMu.Lock()
	children := make([]*Container, 0, len(c.children))
	for child := range c.children {
		children = append(children, child)
	}
	c.children = make(map[*Container]struct{})
	c.childrenMu.Unlock()

	for _, child := range children {
		if err := child.Close(); err != nil {
			errs = append(errs, fmt.Errorf("child container %s: %w", child.id, err))
		}
	}

	disposed := c.lifecycle.count()
	errs = append(errs, c.lifecycle.dispose()...)
	c.instances.clear()

	if c.parent != nil {
		c.parent.removeChild(c)
	} else {
		c.analyzer.Clear()
	}

	c.logger.Debug("container closed", "id", c.id, "disposed", disposed, "errors", len(errs))

	if len(errs) > 0 {
		return DisposalError{Context: "container", Errors: errs}
	}
	return nil
}
