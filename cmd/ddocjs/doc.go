// Package main is the ddocjs command line host.
//
// It loads a design document, then either requires a module from it or
// compiles one or more of its functions and invokes them. Every result,
// sandbox log call and structured error is written to stdout as one JSON
// record per line:
//
//	2
//	["log","indexing"]
//	["error","compilation_error","Expression does not eval to a function. (42)"]
//
// Host diagnostics go to stderr through zap.
//
// Configuration:
//   - Environment variables (see package config)
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Require a module and print its exports
//	ddocjs -doc design.json -require ./main
//
//	# Compile and call functions with JSON arguments
//	ddocjs -doc design.yaml.gz -function views/by_type/map -args '[{"type":"post"}]'
//
//	# Load every library module first, TypeScript sources
//	ddocjs -doc design.toml -preload 'lib/**' -dialect typescript -function shows/item
//
// Signals:
//   - SIGINT, SIGTERM: interrupt running functions
package main
