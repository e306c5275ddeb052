// Package compiler turns function source from a design document into a
// callable inside a sandbox.
//
// Compile optionally binds the document's require to the sandbox, converts
// the source to plain JavaScript (through an explicit Transpiler or the
// legacy syntax rewrite), evaluates it and checks that the result is a
// function. It never invokes the function.
package compiler

import (
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/ddocjs/internal/ddoc"
	"github.com/GriffinCanCode/ddocjs/internal/failure"
	"github.com/GriffinCanCode/ddocjs/internal/loader"
	"github.com/GriffinCanCode/ddocjs/internal/monitoring"
	"github.com/GriffinCanCode/ddocjs/internal/sandbox"
)

// Options configures a Compiler.
type Options struct {
	// Transpiler, when set, replaces the legacy rewrite pass.
	Transpiler Transpiler
	// Seal deep-freezes the sandbox after require is installed and before
	// the source is evaluated. A sealed sandbox cannot be bound to another
	// document afterwards.
	Seal bool
	// NewSandbox creates the sandbox used when Compile is given none.
	NewSandbox func() (sandbox.Sandbox, error)

	Logger  *zap.Logger
	Metrics *monitoring.Metrics
}

// Compiler compiles design document functions.
type Compiler struct {
	opts   Options
	logger *zap.Logger
}

// New creates a compiler.
func New(opts Options) *Compiler {
	if opts.NewSandbox == nil {
		logger, metrics := opts.Logger, opts.Metrics
		opts.NewSandbox = func() (sandbox.Sandbox, error) {
			rt, err := sandbox.New(sandbox.DefaultConfig(),
				sandbox.WithLogger(logger),
				sandbox.WithMetrics(metrics))
			if err != nil {
				return nil, err
			}
			return rt, nil
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compiler{opts: opts, logger: logger}
}

// Compile compiles source into a callable within sb. A nil sb gets a fresh
// default sandbox; a nil doc leaves require undefined.
func (c *Compiler) Compile(source string, doc *ddoc.Document, name string, sb sandbox.Sandbox) (fn goja.Callable, err error) {
	start := time.Now()
	defer func() {
		result := "ok"
		if kind, ok := failure.KindOf(err); ok {
			result = string(kind)
		}
		c.opts.Metrics.RecordCompilation(result, time.Since(start))
		if err != nil {
			c.logger.Debug("Compilation failed", zap.String("name", name), zap.Error(err))
		}
	}()

	if source == "" {
		return nil, failure.New(failure.NotFound, "missing function")
	}

	if sb == nil {
		if sb, err = c.opts.NewSandbox(); err != nil {
			return nil, failure.Newf(failure.CompilationError, "failed to create sandbox: %v", err)
		}
	}

	if doc != nil {
		l := loader.New(doc, sb, loader.WithLogger(c.logger), loader.WithMetrics(c.opts.Metrics))
		if err := l.Install(); err != nil {
			return nil, failure.Newf(failure.CompilationError, "failed to install require: %v", err)
		}
	}

	if c.opts.Seal {
		if err := sb.Freeze(); err != nil {
			return nil, failure.Newf(failure.CompilationError, "failed to seal sandbox: %v", err)
		}
	}

	code, err := c.prepare(source, name)
	if err != nil {
		return nil, failure.New(failure.CompilationError, sandbox.Describe(err)+" ("+source+")")
	}

	val, err := sb.Evaluate(code, name)
	if err != nil {
		return nil, failure.New(failure.CompilationError, sandbox.Describe(err)+" ("+source+")")
	}

	fn, ok := goja.AssertFunction(val)
	if !ok {
		return nil, failure.New(failure.CompilationError,
			"Expression does not eval to a function. ("+source+")")
	}
	return fn, nil
}

// prepare converts source to plain JavaScript.
func (c *Compiler) prepare(source, name string) (string, error) {
	if c.opts.Transpiler != nil {
		return c.opts.Transpiler.Compile(source, TranspileOptions{Bare: true, Name: name})
	}
	return Rewrite(source), nil
}
