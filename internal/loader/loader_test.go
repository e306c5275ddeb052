package loader

import (
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/ddocjs/internal/ddoc"
	"github.com/GriffinCanCode/ddocjs/internal/failure"
	"github.com/GriffinCanCode/ddocjs/internal/monitoring"
	"github.com/GriffinCanCode/ddocjs/internal/sandbox"
)

func newRuntime(t *testing.T) *sandbox.Runtime {
	t.Helper()
	rt, err := sandbox.New(sandbox.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { rt.Close() })
	return rt
}

func testDoc() *ddoc.Document {
	return ddoc.New("_design/test", map[string]interface{}{
		"lib": map[string]interface{}{
			"a":     "module.exports = 1;",
			"id":    "module.exports = module.id;",
			"up":    "module.exports = require('../main');",
			"abs":   "module.exports = require('lib/a') + 10;",
			"deep":  map[string]interface{}{"c": "exports.fromA = require('../a');"},
			"count": "globalThis.loads = (globalThis.loads || 0) + 1; exports.n = globalThis.loads;",
		},
		"main":   "module.exports = require('lib/a') + 1;",
		"dotted": "module.exports = require('./lib/a');",
		"cycle": map[string]interface{}{
			"a": "exports.before = true; var b = require('./b'); exports.sawB = b.sawA; exports.after = true;",
			"b": "var a = require('./a'); exports.sawA = a.before === true && a.after === undefined;",
		},
		"self":    "exports.x = 1; exports.me = require('self');",
		"broken":  "exports.x = ;",
		"throws":  "throw new Error('nope');",
		"nested":  "module.exports = require('missing');",
		"replace": "exports.lost = true; module.exports = function() { return 'fn'; };",
	})
}

func TestRequireEndToEnd(t *testing.T) {
	l := New(testDoc(), newRuntime(t))

	v, err := l.Require("./main", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v.Export())

	v, err = l.Require("main", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v.Export())
}

func TestRequirePaths(t *testing.T) {
	tests := []struct {
		name string
		want interface{}
	}{
		{name: "lib/id", want: "lib/id"},
		{name: "lib/abs", want: int64(11)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(testDoc(), newRuntime(t))
			v, err := l.Require(tt.name, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.Export())
		})
	}

	l := New(testDoc(), newRuntime(t))
	v, err := l.Require("lib/deep/c", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.(*goja.Object).Get("fromA").Export())

	// Reached from the top level, "./" keeps its anchor.
	v, err = l.Require("./dotted", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.Export())
}

func TestRequireMemoized(t *testing.T) {
	rt := newRuntime(t)
	l := New(testDoc(), rt)

	first, err := l.Require("lib/count", nil)
	require.NoError(t, err)
	second, err := l.Require("./lib/count", nil)
	require.NoError(t, err)

	assert.Same(t, first.(*goja.Object), second.(*goja.Object))
	assert.Equal(t, int64(1), rt.Global().Get("loads").ToInteger())
	assert.Equal(t, []string{"lib/count"}, l.Cache().IDs())
}

func TestRequireCachePerSandbox(t *testing.T) {
	doc := testDoc()
	rtA, rtB := newRuntime(t), newRuntime(t)

	for _, rt := range []*sandbox.Runtime{rtA, rtB} {
		l := New(doc, rt)
		for i := 0; i < 2; i++ {
			_, err := l.Require("lib/count", nil)
			require.NoError(t, err)
		}
		assert.Equal(t, int64(1), rt.Global().Get("loads").ToInteger())
	}

	assert.NotSame(t, rtA.Modules(doc), rtB.Modules(doc))
}

func TestRequireCycle(t *testing.T) {
	l := New(testDoc(), newRuntime(t))

	v, err := l.Require("cycle/a", nil)
	require.NoError(t, err)

	a := v.(*goja.Object)
	assert.True(t, a.Get("sawB").ToBoolean())
	assert.True(t, a.Get("after").ToBoolean())

	b, err := l.Require("cycle/b", nil)
	require.NoError(t, err)
	assert.True(t, b.(*goja.Object).Get("sawA").ToBoolean())
}

func TestRequireSelf(t *testing.T) {
	l := New(testDoc(), newRuntime(t))

	v, err := l.Require("self", nil)
	require.NoError(t, err)

	obj := v.(*goja.Object)
	assert.Same(t, obj, obj.Get("me").(*goja.Object))
}

func TestRequireModuleExportsReplaced(t *testing.T) {
	l := New(testDoc(), newRuntime(t))

	v, err := l.Require("replace", nil)
	require.NoError(t, err)

	fn, ok := goja.AssertFunction(v)
	require.True(t, ok)
	out, err := fn(goja.Undefined())
	require.NoError(t, err)
	assert.Equal(t, "fn", out.String())

	cached, ok := l.Cache().Get("replace")
	require.True(t, ok)
	assert.Same(t, v.(*goja.Object), cached.(goja.Value).(*goja.Object))
}

func TestRequireFailures(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		kind     failure.Kind
		contains []string
	}{
		{
			name:     "syntax error",
			path:     "broken",
			kind:     failure.CompilationError,
			contains: []string{"Module require('broken') raised error", "SyntaxError"},
		},
		{
			name:     "throwing body",
			path:     "./throws",
			kind:     failure.CompilationError,
			contains: []string{"Module require('./throws') raised error", "Error: nope"},
		},
		{
			name:     "nested bad path",
			path:     "nested",
			kind:     failure.CompilationError,
			contains: []string{"Module require('nested')", "invalid_require_path", `no property "missing"`},
		},
		{
			name:     "parent of top-level directory",
			path:     "lib/up",
			kind:     failure.CompilationError,
			contains: []string{"Module require('lib/up')", "invalid_require_path", "Object has no parent"},
		},
		{
			name:     "dot from absolutely required module",
			path:     "dotted",
			kind:     failure.CompilationError,
			contains: []string{"Module require('dotted')", "Object has no parent"},
		},
		{
			name:     "missing module",
			path:     "lib/zzz",
			kind:     failure.InvalidRequirePath,
			contains: []string{`Object has no property "zzz"`},
		},
		{
			name:     "directory",
			path:     "lib",
			kind:     failure.InvalidRequirePath,
			contains: []string{"Must require a JavaScript string"},
		},
		{
			name:     "above root",
			path:     "../main",
			kind:     failure.InvalidRequirePath,
			contains: []string{"Object has no parent"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(testDoc(), newRuntime(t))

			v, err := l.Require(tt.path, nil)
			assert.Nil(t, v)
			require.Error(t, err)
			assert.True(t, failure.IsKind(err, tt.kind), err.Error())
			for _, s := range tt.contains {
				assert.Contains(t, err.Error(), s)
			}
		})
	}
}

func TestRequireFailureLeavesPlaceholder(t *testing.T) {
	metrics := monitoring.NewMetrics(nil)
	l := New(testDoc(), newRuntime(t), WithMetrics(metrics))

	_, err := l.Require("throws", nil)
	require.Error(t, err)
	_, cached := l.Cache().Get("throws")
	assert.True(t, cached)

	// Not retried: the in-flight exports are returned as is.
	v, err := l.Require("throws", nil)
	require.NoError(t, err)
	assert.Empty(t, v.(*goja.Object).Keys())

	snap := metrics.Snapshot()
	assert.Equal(t, int64(2), snap.Requires)
	assert.Equal(t, int64(1), snap.CacheHits)
	assert.Equal(t, int64(1), snap.ModuleFailures)
}

func TestInstall(t *testing.T) {
	rt := newRuntime(t)
	l := New(testDoc(), rt)
	require.NoError(t, l.Install())

	v, err := rt.Evaluate("require('./main') + require('lib/a')", "install.js")
	require.NoError(t, err)
	assert.Equal(t, int64(3), v.Export())

	_, err = rt.Evaluate("require('nowhere')", "install.js")
	require.Error(t, err)
	assert.True(t, failure.IsKind(err, failure.InvalidRequirePath))
}
