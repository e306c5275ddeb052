// Package loader implements require for design documents.
//
// A Loader binds one document to one sandbox. Each module body runs at most
// once per (document, sandbox) pair: its exports object is cached before the
// body executes, so a module that is required again while it is still
// running, directly or through a cycle, receives its incomplete exports
// instead of recursing.
package loader

import (
	"fmt"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/ddocjs/internal/ddoc"
	"github.com/GriffinCanCode/ddocjs/internal/failure"
	"github.com/GriffinCanCode/ddocjs/internal/monitoring"
	"github.com/GriffinCanCode/ddocjs/internal/resolve"
	"github.com/GriffinCanCode/ddocjs/internal/sandbox"
)

// RequireFunc is the JS-facing require. A returned error is thrown.
type RequireFunc func(name string) (goja.Value, error)

// Loader loads modules from a document into a sandbox.
type Loader struct {
	doc     *ddoc.Document
	sandbox sandbox.Sandbox
	cache   *ddoc.ModuleCache
	// root is where top-level requires start; override is where absolute
	// requires restart.
	root     *resolve.Descriptor
	override *resolve.Descriptor
	logger   *zap.Logger
	metrics  *monitoring.Metrics
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(l *Loader) {
		l.metrics = metrics
	}
}

// New creates a loader for doc inside sb. sb keeps the module cache, so
// loaders for the same document and sandbox share it.
func New(doc *ddoc.Document, sb sandbox.Sandbox, opts ...Option) *Loader {
	l := &Loader{
		doc:      doc,
		sandbox:  sb,
		cache:    sb.Modules(doc),
		root:     resolve.Root(doc.Root()),
		override: resolve.Override(doc.Root()),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With(zap.String("ddoc", doc.ID()))
	return l
}

// Cache returns the module cache this loader fills.
func (l *Loader) Cache() *ddoc.ModuleCache {
	return l.cache
}

// Install defines the global require in the sandbox.
func (l *Loader) Install() error {
	return l.sandbox.DefineGlobal("require", l.requireFrom(nil))
}

// Require loads the module at name. Relative paths resolve against the
// directory of calling; a nil calling module means the document root.
func (l *Loader) Require(name string, calling *resolve.Descriptor) (goja.Value, error) {
	base := l.root
	if calling != nil {
		base = calling.Parent
	}

	mod, err := resolve.Resolve(resolve.Split(name), base, l.override)
	if err != nil {
		l.metrics.RecordRequire(monitoring.RequireFailed)
		return nil, err
	}

	if cached, ok := l.cache.Get(mod.ID); ok {
		l.metrics.RecordRequire(monitoring.RequireCached)
		return cached.(goja.Value), nil
	}

	start := time.Now()
	exports := l.sandbox.NewObject()
	module := l.sandbox.NewObject()
	if err := module.Set("id", mod.ID); err != nil {
		return nil, err
	}
	if err := module.Set("exports", exports); err != nil {
		return nil, err
	}
	mod.Exports = exports

	// The placeholder stays if the body fails; the module is not retried.
	l.cache.Put(mod.ID, exports)

	if err := l.execute(mod, module); err != nil {
		l.metrics.RecordRequire(monitoring.RequireFailed)
		l.logger.Warn("Module failed to load",
			zap.String("module", mod.ID),
			zap.String("require", name),
			zap.Error(err))
		return nil, failure.Newf(failure.CompilationError,
			"Module require('%s') raised error %s", name, sandbox.Describe(err))
	}

	final := module.Get("exports")
	if final == nil {
		final = goja.Undefined()
	}
	mod.Exports = final
	l.cache.Put(mod.ID, final)

	l.metrics.RecordRequire(monitoring.RequireLoaded)
	l.logger.Debug("Module loaded",
		zap.String("module", mod.ID),
		zap.Duration("duration", time.Since(start)))
	return final, nil
}

// execute wraps the module source in a function and runs it with the
// module object, its exports and a require bound to the module.
func (l *Loader) execute(mod *resolve.Descriptor, module *goja.Object) error {
	src, _ := mod.Source()
	wrapped := "(function (module, exports, require) { " + src + "\n });"

	val, err := l.sandbox.Evaluate(wrapped, mod.ID)
	if err != nil {
		return err
	}
	fn, ok := goja.AssertFunction(val)
	if !ok {
		return fmt.Errorf("module %s did not evaluate to a function body", mod.ID)
	}

	_, err = fn(l.sandbox.Global(),
		module,
		module.Get("exports"),
		l.sandbox.ToValue(l.requireFrom(mod)))
	return err
}

func (l *Loader) requireFrom(calling *resolve.Descriptor) RequireFunc {
	return func(name string) (goja.Value, error) {
		return l.Require(name, calling)
	}
}
