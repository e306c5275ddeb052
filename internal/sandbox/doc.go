/*
Package sandbox provides isolated JavaScript execution contexts for
design document code.

# Overview

Each Runtime wraps one goja VM with its own global scope. Compiled
functions and required modules live inside that scope and are only valid
for the lifetime of the Runtime that produced them.

A Runtime offers the capabilities the module system needs:

  - DefineGlobal: install a named global (require, helpers)
  - Evaluate: run source under a name used in stack traces
  - Freeze: deep-freeze the global object graph, once
  - Modules: the per-document module caches of this scope

# Security Model

Sandboxed code cannot:
  - Reach node-style require, process, module or exports globals
  - Schedule timers
  - Mutate shared globals once the runtime has been frozen
  - Run past its deadline inside Guard or Invoke

# Usage Example

	rt, err := sandbox.New(sandbox.DefaultConfig(), sandbox.WithOutput(channel))
	if err != nil {
		return err
	}
	defer rt.Close()

	result, err := rt.Invoke(ctx, fn, doc)
	if err != nil {
		logger.Error("Invocation failed", zap.Error(err))
	}

Guard bounds arbitrary work, such as requiring modules or compiling,
with the same timeout and cancellation:

	err = rt.Guard(ctx, func() error {
		_, err := ld.Require("lib/views", nil)
		return err
	})

# Pooling

Runtimes are not safe for concurrent use. Hosts running several workers
hand each worker its own Runtime, typically through a Pool.
*/
package sandbox
