package freeze

import (
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEnforcer(t *testing.T, vm *goja.Runtime) *Enforcer {
	t.Helper()
	e, err := New(vm)
	require.NoError(t, err)
	return e
}

func run(t *testing.T, vm *goja.Runtime, src string) goja.Value {
	t.Helper()
	v, err := vm.RunString(src)
	require.NoError(t, err)
	return v
}

func TestDeepFreezeNested(t *testing.T) {
	vm := goja.New()
	e := newEnforcer(t, vm)

	obj := run(t, vm, `var o = {a: {b: {c: 1}}, list: [{x: 1}], fn: function() {}}; o.fn.meta = {n: 1}; o`)
	got, err := e.DeepFreeze(obj)
	require.NoError(t, err)
	assert.Same(t, obj, got)

	for _, path := range []string{"o", "o.a", "o.a.b", "o.list", "o.list[0]", "o.fn", "o.fn.meta"} {
		frozen, err := e.IsFrozen(run(t, vm, path))
		require.NoError(t, err)
		assert.True(t, frozen, path)
	}

	mutations := []string{
		`o.a.b.c = 2`,
		`o.added = 1`,
		`delete o.a`,
		`o.list.push(2)`,
		`o.fn.meta.n = 2`,
	}
	for _, m := range mutations {
		_, err := vm.RunString(`'use strict'; ` + m)
		assert.Error(t, err, m)
	}
	assert.Equal(t, int64(1), run(t, vm, `o.a.b.c`).ToInteger())
}

func TestDeepFreezeCycles(t *testing.T) {
	vm := goja.New()
	e := newEnforcer(t, vm)

	obj := run(t, vm, `var a = {}; var b = {a: a}; a.b = b; a.self = a; a`)
	_, err := e.DeepFreeze(obj)
	require.NoError(t, err)

	frozen, err := e.IsFrozen(run(t, vm, "b"))
	require.NoError(t, err)
	assert.True(t, frozen)
}

func TestDeepFreezeIdempotent(t *testing.T) {
	vm := goja.New()
	e := newEnforcer(t, vm)

	obj := run(t, vm, `var o = {a: {b: 1}}; o`)

	_, err := e.DeepFreeze(obj)
	require.NoError(t, err)
	_, err = e.DeepFreeze(obj)
	require.NoError(t, err)

	frozen, err := e.IsFrozen(run(t, vm, "o.a"))
	require.NoError(t, err)
	assert.True(t, frozen)
}

func TestDeepFreezeAccessors(t *testing.T) {
	vm := goja.New()
	e := newEnforcer(t, vm)

	obj := run(t, vm, `
		var reads = 0;
		var getter = function() { reads++; return {}; };
		var setter = function(v) {};
		var o = {};
		Object.defineProperty(o, 'lazy', {get: getter, set: setter, enumerable: true});
		o`)

	_, err := e.DeepFreeze(obj)
	require.NoError(t, err)
	assert.Equal(t, int64(0), run(t, vm, "reads").ToInteger())

	for _, path := range []string{"getter", "setter"} {
		frozen, err := e.IsFrozen(run(t, vm, path))
		require.NoError(t, err)
		assert.True(t, frozen, path)
	}
}

func TestDeepFreezeSymbolKeys(t *testing.T) {
	vm := goja.New()
	e := newEnforcer(t, vm)
	assert.Equal(t, "Reflect.ownKeys", e.Enumerator())

	obj := run(t, vm, `var s = Symbol('hidden'); var o = {}; o[s] = {inner: 1}; Object.defineProperty(o, 'quiet', {value: {}, enumerable: false}); o`)
	_, err := e.DeepFreeze(obj)
	require.NoError(t, err)

	for _, path := range []string{"o[s]", "o.quiet"} {
		frozen, err := e.IsFrozen(run(t, vm, path))
		require.NoError(t, err)
		assert.True(t, frozen, path)
	}
}

func TestDeepFreezeFallbackEnumerator(t *testing.T) {
	vm := goja.New()
	run(t, vm, `delete globalThis.Reflect`)

	e := newEnforcer(t, vm)
	assert.Equal(t, "Object.getOwnPropertyNames", e.Enumerator())

	obj := run(t, vm, `var o = {a: {b: 1}}; Object.defineProperty(o, 'quiet', {value: {}, enumerable: false}); o`)
	_, err := e.DeepFreeze(obj)
	require.NoError(t, err)

	for _, path := range []string{"o", "o.a", "o.quiet"} {
		frozen, err := e.IsFrozen(run(t, vm, path))
		require.NoError(t, err)
		assert.True(t, frozen, path)
	}
}

func TestDeepFreezePrimitives(t *testing.T) {
	vm := goja.New()
	e := newEnforcer(t, vm)

	for _, v := range []goja.Value{vm.ToValue(42), vm.ToValue("s"), goja.Undefined(), goja.Null()} {
		got, err := e.DeepFreeze(v)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestDeepFreezeThrowingGetter(t *testing.T) {
	vm := goja.New()
	e := newEnforcer(t, vm)

	obj := run(t, vm, `var o = {}; Object.defineProperty(o, 'bad', {get: function() { throw new Error('boom'); }}); o`)
	_, err := e.DeepFreeze(obj)
	require.NoError(t, err)

	frozen, err := e.IsFrozen(run(t, vm, `Object.getOwnPropertyDescriptor(o, 'bad').get`))
	require.NoError(t, err)
	assert.True(t, frozen)
}

func TestDeepFreezeRestrictedFunctionProperties(t *testing.T) {
	vm := goja.New()
	e := newEnforcer(t, vm)

	// Function.prototype.caller and .arguments are accessors that throw
	// when read.
	_, err := e.DeepFreeze(run(t, vm, `Function.prototype`))
	require.NoError(t, err)

	frozen, err := e.IsFrozen(run(t, vm, `Function.prototype`))
	require.NoError(t, err)
	assert.True(t, frozen)
}

func TestDeepFreezeGlobals(t *testing.T) {
	vm := goja.New()
	e := newEnforcer(t, vm)
	run(t, vm, `var shared = {counter: 0}`)

	_, err := e.DeepFreeze(vm.GlobalObject())
	require.NoError(t, err)

	attempts := []string{
		`shared.counter = 1`,
		`Math.max = null`,
		`Object.prototype.polluted = true`,
		`Array.prototype.push = function() {}`,
		`globalThis.leak = 1`,
	}
	for _, a := range attempts {
		_, err := vm.RunString(`'use strict'; ` + a)
		assert.Error(t, err, a)
	}

	for _, path := range []string{"Math", "Array.prototype", "Object.prototype", "JSON", "shared"} {
		frozen, err := e.IsFrozen(run(t, vm, path))
		require.NoError(t, err)
		assert.True(t, frozen, path)
	}

	// Intrinsics captured before the freeze keep working.
	_, err = e.DeepFreeze(run(t, vm, `({fresh: {}})`))
	assert.NoError(t, err)
}
