package container

import (
	"fmt"
	"log"
	"reflect"
	"sync"
)

// Container is a minimal constructor-injection registry. Constructors are
// plain functions; their parameters are resolved recursively from other
// registered constructors. Interface requests match any binding whose
// concrete type implements the interface.
type Container struct {
	mu         sync.RWMutex
	bindings   map[reflect.Type]binding
	singletons map[reflect.Type]reflect.Value
}

type binding struct {
	ctor      reflect.Value
	singleton bool
}

func New() *Container {
	return &Container{
		bindings:   make(map[reflect.Type]binding),
		singletons: make(map[reflect.Type]reflect.Value),
	}
}

var errType = reflect.TypeOf((*error)(nil)).Elem()

// Provide registers a constructor returning (T) or (T, error). At most one
// binding may exist per concrete return type.
func (c *Container) Provide(ctor interface{}, singleton bool) error {
	v := reflect.ValueOf(ctor)
	if v.Kind() != reflect.Func {
		return fmt.Errorf("container: constructor must be a function, got %T", ctor)
	}
	ft := v.Type()
	switch {
	case ft.NumOut() == 0 || ft.NumOut() > 2:
		return fmt.Errorf("container: constructor must return (T) or (T, error)")
	case ft.NumOut() == 2 && ft.Out(1) != errType:
		return fmt.Errorf("container: second return value must be error, got %v", ft.Out(1))
	}
	out := ft.Out(0)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.bindings[out]; dup {
		return fmt.Errorf("container: duplicate binding for %v", out)
	}
	c.bindings[out] = binding{ctor: v, singleton: singleton}
	return nil
}

// Resolve fills target (a non-nil pointer) with an instance of its
// pointed-to type.
func (c *Container) Resolve(target interface{}) error {
	ptr := reflect.ValueOf(target)
	if ptr.Kind() != reflect.Ptr || ptr.IsNil() {
		return fmt.Errorf("container: resolve target must be a non-nil pointer")
	}
	val, err := c.build(ptr.Elem().Type(), make(map[reflect.Type]bool))
	if err != nil {
		return err
	}
	ptr.Elem().Set(val)
	return nil
}

// MustResolve is Resolve for startup wiring; it exits the process on
// failure instead of returning an error.
func (c *Container) MustResolve(target interface{}) {
	if err := c.Resolve(target); err != nil {
		log.Fatalf("container: %v", err)
	}
}

// Invoke calls fn with arguments resolved from the container. When the
// last return value is a non-nil error it is returned.
func (c *Container) Invoke(fn interface{}) error {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return fmt.Errorf("container: Invoke requires a function, got %T", fn)
	}
	ft := v.Type()
	args := make([]reflect.Value, ft.NumIn())
	seen := make(map[reflect.Type]bool)
	for i := range args {
		val, err := c.build(ft.In(i), seen)
		if err != nil {
			return err
		}
		args[i] = val
	}
	outs := v.Call(args)
	if n := len(outs); n > 0 {
		if last := outs[n-1]; last.Type() == errType && !last.IsNil() {
			return last.Interface().(error)
		}
	}
	return nil
}

func (c *Container) build(t reflect.Type, seen map[reflect.Type]bool) (reflect.Value, error) {
	c.mu.RLock()
	if v, ok := c.singletons[t]; ok {
		c.mu.RUnlock()
		return v, nil
	}
	b, ok := c.bindings[t]
	if !ok && t.Kind() == reflect.Interface {
		for concrete, cand := range c.bindings {
			if concrete.Implements(t) {
				b, ok = cand, true
				break
			}
		}
	}
	c.mu.RUnlock()
	if !ok {
		return reflect.Value{}, fmt.Errorf("container: no binding for %v", t)
	}

	if seen[t] {
		return reflect.Value{}, fmt.Errorf("container: dependency cycle through %v", t)
	}
	seen[t] = true

	ft := b.ctor.Type()
	args := make([]reflect.Value, ft.NumIn())
	for i := range args {
		dep, err := c.build(ft.In(i), seen)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("building %v: %w", t, err)
		}
		args[i] = dep
	}
	outs := b.ctor.Call(args)
	if len(outs) == 2 {
		if err, _ := outs[1].Interface().(error); err != nil {
			return reflect.Value{}, fmt.Errorf("constructing %v: %w", t, err)
		}
	}
	res := outs[0]

	if b.singleton {
		c.mu.Lock()
		c.singletons[t] = res
		c.mu.Unlock()
	}
	return res, nil
}
