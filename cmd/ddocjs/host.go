package main

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/ddocjs/internal/compiler"
	"github.com/GriffinCanCode/ddocjs/internal/ddoc"
	"github.com/GriffinCanCode/ddocjs/internal/failure"
	"github.com/GriffinCanCode/ddocjs/internal/loader"
	"github.com/GriffinCanCode/ddocjs/internal/monitoring"
	"github.com/GriffinCanCode/ddocjs/internal/output"
	"github.com/GriffinCanCode/ddocjs/internal/sandbox"
)

// outcome is the result of one operation, written in request order.
type outcome struct {
	value interface{}
	// silent outcomes produce no record, e.g. a bare preload.
	silent bool
	err    error
}

// host runs document operations on pooled sandboxes.
type host struct {
	doc      *ddoc.Document
	pool     *sandbox.Pool
	compiler *compiler.Compiler
	channel  *output.Channel
	metrics  *monitoring.Metrics
	preload  string
	logger   *zap.Logger
}

// withSandbox runs fn on a pooled sandbox with the preload modules already
// required. The preload and fn share one Guard, so the sandbox timeout and
// ctx bound module bodies and compilation as well as calls. The pool resets
// the sandbox, and with it the document's module cache, on release.
func (h *host) withSandbox(ctx context.Context, fn func(*sandbox.Runtime, *loader.Loader) outcome) outcome {
	var o outcome
	err := h.pool.Do(ctx, func(rt *sandbox.Runtime) error {
		l := loader.New(h.doc, rt,
			loader.WithLogger(h.logger.Named("loader")),
			loader.WithMetrics(h.metrics))

		err := rt.Guard(ctx, func() error {
			if err := h.load(l); err != nil {
				return err
			}
			o = fn(rt, l)
			return nil
		})
		if err != nil {
			o = outcome{err: err}
		}

		h.logger.Debug("Sandbox done", zap.Int("modules", l.Cache().Len()))
		return nil
	})
	if err != nil {
		return outcome{err: err}
	}
	return o
}

func (h *host) load(l *loader.Loader) error {
	if h.preload == "" {
		return nil
	}
	ids, err := h.doc.ModuleIDs(h.preload)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := l.Require(id, nil); err != nil {
			return err
		}
	}
	h.logger.Debug("Modules preloaded", zap.Strings("ids", ids))
	return nil
}

// require loads a module from the document root. An empty path only runs
// the preload.
func (h *host) require(ctx context.Context, path string) outcome {
	return h.withSandbox(ctx, func(rt *sandbox.Runtime, l *loader.Loader) outcome {
		if path == "" {
			return outcome{silent: true}
		}
		v, err := l.Require(path, nil)
		if err != nil {
			return outcome{err: err}
		}
		return outcome{value: v.Export()}
	})
}

// invokeAll compiles and calls each function concurrently, one pooled
// sandbox per function. Outcomes keep the order of paths.
func (h *host) invokeAll(ctx context.Context, paths []string, args []interface{}) []outcome {
	outcomes := make([]outcome, len(paths))
	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			outcomes[i] = h.invoke(ctx, path, args)
		}(i, path)
	}
	wg.Wait()
	return outcomes
}

func (h *host) invoke(ctx context.Context, path string, args []interface{}) outcome {
	source, err := h.source(path)
	if err != nil {
		return outcome{err: err}
	}

	return h.withSandbox(ctx, func(rt *sandbox.Runtime, _ *loader.Loader) outcome {
		fn, err := h.compiler.Compile(source, h.doc, path, rt)
		if err != nil {
			return outcome{err: err}
		}
		result, err := rt.Invoke(ctx, fn, args...)
		if err != nil {
			// Failures raised by require inside the function keep their kind.
			var f *failure.Error
			if errors.As(err, &f) {
				return outcome{err: f}
			}
			return outcome{err: errors.New(sandbox.Describe(err))}
		}
		return outcome{value: result.Value}
	})
}

func (h *host) source(path string) (string, error) {
	node, ok := h.doc.Lookup(path)
	if !ok {
		return "", failure.Newf(failure.NotFound, "missing function %s", path)
	}
	source, ok := node.(string)
	if !ok {
		return "", failure.Newf(failure.NotFound, "%s is not a function source (%s)", path, ddoc.TypeOf(node))
	}
	return source, nil
}

// report writes an outcome and reports whether it succeeded.
func (h *host) report(o outcome) bool {
	if o.err != nil {
		if err := h.channel.Error(o.err); err != nil {
			h.logger.Error("Failed to report error", zap.Error(err))
		}
		return false
	}
	if !o.silent {
		if err := h.channel.Respond(o.value); err != nil {
			h.logger.Error("Failed to write response", zap.Error(err))
		}
	}
	return true
}
