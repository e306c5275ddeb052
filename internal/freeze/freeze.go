// Package freeze locks down a JavaScript object graph.
//
// DeepFreeze freezes a value and then every object or function reachable
// through its own properties, string and symbol keyed alike. Properties
// are read through their descriptors, so accessors are never invoked:
// the getter and setter functions themselves are frozen instead. It is
// idempotent: an already frozen object is returned untouched, which also
// terminates traversal of cyclic graphs.
//
// The intrinsics it relies on (Object.freeze, Object.isFrozen,
// Object.getOwnPropertyDescriptor and the key enumerator) are captured when the Enforcer is created, so untrusted code
// that later replaces them cannot subvert freezing.
package freeze

import (
	"fmt"
	"strconv"

	"github.com/dop251/goja"
)

// keyEnumerator lists an object's own property keys.
type keyEnumerator interface {
	name() string
	ownKeys(obj *goja.Object) ([]goja.Value, error)
}

// callKeys enumerates keys with a JS function returning an array, such as
// Reflect.ownKeys or Object.getOwnPropertyNames.
type callKeys struct {
	label string
	fn    goja.Callable
	vm    *goja.Runtime
}

func (c callKeys) name() string { return c.label }

func (c callKeys) ownKeys(obj *goja.Object) ([]goja.Value, error) {
	res, err := c.fn(goja.Undefined(), obj)
	if err != nil {
		return nil, err
	}
	arr := res.ToObject(c.vm)
	n := int(arr.Get("length").ToInteger())
	keys := make([]goja.Value, 0, n)
	for i := 0; i < n; i++ {
		keys = append(keys, arr.Get(strconv.Itoa(i)))
	}
	return keys, nil
}

// Enforcer freezes object graphs inside one runtime.
type Enforcer struct {
	vm         *goja.Runtime
	freeze     goja.Callable
	isFrozen   goja.Callable
	descriptor goja.Callable
	keys       keyEnumerator
}

// New captures the freezing intrinsics of vm. Reflect.ownKeys is preferred
// since it also reports symbol keys; runtimes without it fall back to
// Object.getOwnPropertyNames.
func New(vm *goja.Runtime) (*Enforcer, error) {
	object := vm.Get("Object")
	if object == nil {
		return nil, fmt.Errorf("runtime has no Object constructor")
	}
	obj := object.ToObject(vm)

	freeze, ok := goja.AssertFunction(obj.Get("freeze"))
	if !ok {
		return nil, fmt.Errorf("runtime Object.freeze is not a function")
	}
	isFrozen, ok := goja.AssertFunction(obj.Get("isFrozen"))
	if !ok {
		return nil, fmt.Errorf("runtime Object.isFrozen is not a function")
	}

	descriptor, ok := goja.AssertFunction(obj.Get("getOwnPropertyDescriptor"))
	if !ok {
		return nil, fmt.Errorf("runtime Object.getOwnPropertyDescriptor is not a function")
	}

	e := &Enforcer{vm: vm, freeze: freeze, isFrozen: isFrozen, descriptor: descriptor}

	if reflect := vm.Get("Reflect"); reflect != nil && !goja.IsUndefined(reflect) && !goja.IsNull(reflect) {
		if ownKeys, ok := goja.AssertFunction(reflect.ToObject(vm).Get("ownKeys")); ok {
			e.keys = callKeys{label: "Reflect.ownKeys", fn: ownKeys, vm: vm}
		}
	}
	if e.keys == nil {
		names, ok := goja.AssertFunction(obj.Get("getOwnPropertyNames"))
		if !ok {
			return nil, fmt.Errorf("runtime cannot enumerate own properties")
		}
		e.keys = callKeys{label: "Object.getOwnPropertyNames", fn: names, vm: vm}
	}

	return e, nil
}

// Enumerator names the key enumeration strategy in use.
func (e *Enforcer) Enumerator() string {
	return e.keys.name()
}

// IsFrozen reports whether v is a frozen object. Primitives are reported
// as frozen.
func (e *Enforcer) IsFrozen(v goja.Value) (bool, error) {
	res, err := e.isFrozen(goja.Undefined(), v)
	if err != nil {
		return false, err
	}
	return res.ToBoolean(), nil
}

// DeepFreeze freezes v and everything reachable from its own properties.
// It returns v. Non-object values are returned as is.
func (e *Enforcer) DeepFreeze(v goja.Value) (goja.Value, error) {
	obj, ok := v.(*goja.Object)
	if !ok {
		return v, nil
	}

	var err error
	if ex := e.vm.Try(func() { err = e.deepFreeze(obj) }); ex != nil {
		return v, ex
	}
	return v, err
}

func (e *Enforcer) deepFreeze(obj *goja.Object) error {
	frozen, err := e.IsFrozen(obj)
	if err != nil {
		return err
	}
	if frozen {
		return nil
	}
	if _, err := e.freeze(goja.Undefined(), obj); err != nil {
		return err
	}

	keys, err := e.keys.ownKeys(obj)
	if err != nil {
		return err
	}
	for _, key := range keys {
		children, err := e.children(obj, key)
		if err != nil {
			return err
		}
		for _, child := range children {
			if err := e.deepFreeze(child); err != nil {
				return err
			}
		}
	}
	return nil
}

// children returns the objects held by the property key of obj: the value
// of a data property, or the getter and setter of an accessor.
func (e *Enforcer) children(obj *goja.Object, key goja.Value) ([]*goja.Object, error) {
	res, err := e.descriptor(goja.Undefined(), obj, key)
	if err != nil {
		return nil, err
	}
	desc, ok := res.(*goja.Object)
	if !ok {
		return nil, nil
	}

	var out []*goja.Object
	for _, field := range []string{"value", "get", "set"} {
		if child, ok := desc.Get(field).(*goja.Object); ok {
			out = append(out, child)
		}
	}
	return out, nil
}
