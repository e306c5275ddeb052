package sandbox

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/ddocjs/internal/ddoc"
	"github.com/GriffinCanCode/ddocjs/internal/freeze"
	"github.com/GriffinCanCode/ddocjs/internal/monitoring"
)

// Runtime wraps goja VM with security controls. Like the VM itself it
// must not be used by more than one goroutine at a time.
type Runtime struct {
	vm       *goja.Runtime
	enforcer *freeze.Enforcer
	modules  *ddoc.Caches
	config   Config
	frozen   bool
	mu       sync.Mutex
	guarding atomic.Bool

	// Console output
	console   []LogEntry
	consoleMu sync.Mutex

	output  LogSink
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithOutput routes the global log function to sink.
func WithOutput(sink LogSink) Option {
	return func(r *Runtime) {
		r.output = sink
	}
}

// WithLogger sets the host logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics records freeze timings.
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(r *Runtime) {
		r.metrics = metrics
	}
}

var _ Sandbox = (*Runtime)(nil)

// New creates a new sandboxed runtime
func New(config Config, opts ...Option) (*Runtime, error) {
	r := &Runtime{
		config:  config,
		console: []LogEntry{},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.init(); err != nil {
		return nil, err
	}
	return r, nil
}

// init builds a fresh VM. The enforcer captures its intrinsics before any
// other code runs.
func (r *Runtime) init() error {
	vm := goja.New()
	if r.config.MaxCallStackSize > 0 {
		vm.SetMaxCallStackSize(r.config.MaxCallStackSize)
	}

	enforcer, err := freeze.New(vm)
	if err != nil {
		return fmt.Errorf("failed to prepare freezing: %w", err)
	}

	r.vm = vm
	r.enforcer = enforcer
	r.modules = ddoc.NewCaches()
	r.frozen = false
	return r.setupGlobals()
}

// DefineGlobal sets a global variable. It fails once the runtime is frozen.
func (r *Runtime) DefineGlobal(name string, value interface{}) error {
	if err := r.vm.Set(name, value); err != nil {
		return fmt.Errorf("failed to define global %q: %w", name, err)
	}
	return nil
}

// Evaluate runs source as a script named name and returns its completion
// value.
func (r *Runtime) Evaluate(source, name string) (goja.Value, error) {
	return r.vm.RunScript(name, source)
}

// Freeze deep-freezes the global object.
func (r *Runtime) Freeze() error {
	if r.frozen {
		return nil
	}
	start := time.Now()
	if _, err := r.enforcer.DeepFreeze(r.vm.GlobalObject()); err != nil {
		return fmt.Errorf("failed to freeze globals: %w", err)
	}
	r.frozen = true
	r.metrics.RecordFreeze(time.Since(start))
	r.logger.Debug("Sandbox globals frozen",
		zap.String("enumerator", r.enforcer.Enumerator()),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// Frozen reports whether Freeze has completed.
func (r *Runtime) Frozen() bool {
	return r.frozen
}

// Global returns the global object.
func (r *Runtime) Global() *goja.Object {
	return r.vm.GlobalObject()
}

// NewObject creates an empty object.
func (r *Runtime) NewObject() *goja.Object {
	return r.vm.NewObject()
}

// ToValue converts a Go value into the runtime.
func (r *Runtime) ToValue(v interface{}) goja.Value {
	return r.vm.ToValue(v)
}

// Modules returns the module cache for doc. Reset discards every cache
// along with the VM they belong to.
func (r *Runtime) Modules(doc *ddoc.Document) *ddoc.ModuleCache {
	return r.modules.For(doc)
}

// Guard runs fn with the configured timeout and ctx cancellation applied
// to every script and call fn makes in this runtime. A Guard nested inside
// fn runs under the outer deadline.
func (r *Runtime) Guard(ctx context.Context, fn func() error) error {
	if !r.guarding.CompareAndSwap(false, true) {
		return fn()
	}
	defer r.guarding.Store(false)

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	// Setup timeout
	var timeout <-chan time.Time
	if r.config.Timeout > 0 {
		timer := time.NewTimer(r.config.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	// Setup interrupt handler
	vm := r.vm
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-timeout:
			vm.Interrupt("execution timeout exceeded")
		case <-ctx.Done():
			vm.Interrupt("context cancelled")
		case <-done:
		}
	}()

	err := fn()

	// Stop interrupt goroutine before clearing, so a late interrupt cannot
	// leak into the next call.
	close(done)
	<-stopped
	vm.ClearInterrupt()
	return err
}

// Invoke calls fn under Guard. Arguments that are not already JS values
// are converted with ToValue.
func (r *Runtime) Invoke(ctx context.Context, fn goja.Callable, args ...interface{}) (*Result, error) {
	start := time.Now()
	result := &Result{
		Console: []LogEntry{},
	}

	err := r.Guard(ctx, func() error {
		// Clear console
		r.consoleMu.Lock()
		r.console = []LogEntry{}
		r.consoleMu.Unlock()

		jsArgs := make([]goja.Value, len(args))
		for i, arg := range args {
			if v, ok := arg.(goja.Value); ok {
				jsArgs[i] = v
			} else {
				jsArgs[i] = r.vm.ToValue(arg)
			}
		}

		val, err := fn(goja.Undefined(), jsArgs...)
		if err != nil {
			return err
		}
		result.Raw = val
		result.Value = exportValue(val)
		return nil
	})

	result.Duration = time.Since(start)

	r.consoleMu.Lock()
	result.Console = append([]LogEntry{}, r.console...)
	r.consoleMu.Unlock()

	if err != nil {
		result.Error = err
		return result, err
	}
	return result, nil
}

// setupGlobals configures global objects and security
func (r *Runtime) setupGlobals() error {
	// Remove dangerous globals
	for _, name := range []string{"require", "process", "module", "exports"} {
		if err := r.vm.Set(name, goja.Undefined()); err != nil {
			return err
		}
	}

	// Setup console if enabled
	if r.config.EnableConsole {
		console := r.vm.NewObject()
		for _, level := range []string{"log", "warn", "error", "info"} {
			if err := console.Set(level, r.makeConsoleFunc(level)); err != nil {
				return err
			}
		}
		if err := r.vm.Set("console", console); err != nil {
			return err
		}
	}

	// Setup timers (no-op for security)
	noop := func(call goja.FunctionCall) goja.Value {
		return goja.Undefined()
	}
	if err := r.vm.Set("setTimeout", noop); err != nil {
		return err
	}
	if err := r.vm.Set("setInterval", noop); err != nil {
		return err
	}

	return r.vm.Set("log", r.logFunc)
}

// makeConsoleFunc creates a console function
func (r *Runtime) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}

		r.consoleMu.Lock()
		r.console = append(r.console, LogEntry{
			Level:   level,
			Message: strings.Join(parts, " "),
			Time:    time.Now(),
		})
		r.consoleMu.Unlock()

		return goja.Undefined()
	}
}

// logFunc implements the global log(message).
func (r *Runtime) logFunc(call goja.FunctionCall) goja.Value {
	msg := logMessage(call.Argument(0))
	if r.output == nil {
		r.logger.Info("Sandbox log", zap.Any("message", msg))
		return goja.Undefined()
	}
	if err := r.output.Log(msg); err != nil {
		r.logger.Warn("Failed to forward sandbox log", zap.Error(err))
	}
	return goja.Undefined()
}

// logMessage prepares a logged value for JSON output. Error-like objects
// would otherwise encode as {}, so they are reduced to name and message.
// Errors from another realm fail instanceof checks, hence the duck typing.
func logMessage(v goja.Value) interface{} {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if obj, ok := v.(*goja.Object); ok {
		if obj.Get("stack") != nil && obj.Get("name") != nil && obj.Get("message") != nil {
			return map[string]interface{}{
				"error":   obj.Get("name").String(),
				"message": obj.Get("message").String(),
			}
		}
	}
	return v.Export()
}

// exportValue converts goja value to Go value
func exportValue(val goja.Value) interface{} {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	return val.Export()
}

// Reset replaces the VM with a fresh, unfrozen one.
func (r *Runtime) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.consoleMu.Lock()
	r.console = []LogEntry{}
	r.consoleMu.Unlock()

	r.logger.Debug("Sandbox reset", zap.Int("documents", r.modules.Len()))
	return r.init()
}

// Close releases resources
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.vm = nil
	r.enforcer = nil
	r.modules = nil
	r.console = nil
	return nil
}
