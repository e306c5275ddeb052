// Package config provides 12-factor configuration management for ddocjs.
//
// Configuration is loaded from environment variables with defaults from
// struct tags, then validated. CLI flags can override environment
// variables; call Validate again after applying them. Dialect and log
// level are case-insensitive.
//
// Configuration Sections:
//   - Sandbox: execution limits (timeout, call stack, console, pool size)
//   - Compiler: source dialect and whether contexts are sealed
//   - Logging: log level, output format and destinations
//
// Example Usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//		return err
//	}
//	fmt.Printf("dialect %s, timeout %s\n", cfg.Compiler.Dialect, cfg.Sandbox.Timeout)
//
// Environment Variables:
//   - SANDBOX_TIMEOUT, SANDBOX_MAX_CALL_STACK, SANDBOX_CONSOLE, SANDBOX_POOL_SIZE
//   - COMPILER_DIALECT, COMPILER_SEAL
//   - LOG_LEVEL, LOG_DEV, LOG_OUTPUT (comma-separated)
package config
