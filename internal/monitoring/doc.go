/*
Package monitoring provides Prometheus metrics for the module system.

# Overview

Metrics track compilation outcomes and latency, require calls split by
cache hits, fresh loads and failures, and time spent freezing sandboxes.

# Usage

	registry := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(registry)

	c := compiler.New(compiler.Options{Metrics: metrics})

A nil *Metrics is valid and records nothing, so components take metrics
as an optional dependency.

# Metrics

	ddocjs_compilations_total{result}
	ddocjs_compile_duration_seconds
	ddocjs_requires_total{result}
	ddocjs_freeze_duration_seconds
*/
package monitoring
