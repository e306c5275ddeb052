package sandbox

import (
	"time"

	"github.com/dop251/goja"

	"github.com/GriffinCanCode/ddocjs/internal/ddoc"
)

// Config defines sandbox configuration
type Config struct {
	MaxCallStackSize int           // Maximum JS call depth, 0 for the goja default
	Timeout          time.Duration // Invocation timeout, 0 for none
	EnableConsole    bool          // Allow console.log/warn/error/info
}

// Result holds invocation result
type Result struct {
	Value    interface{}   // Exported return value
	Raw      goja.Value    // Return value inside the runtime
	Console  []LogEntry    // Console output
	Duration time.Duration // Execution time
	Error    error         // Execution error
}

// LogEntry represents console output
type LogEntry struct {
	Level   string    // log, warn, error, info
	Message string    // Log message
	Time    time.Time // Timestamp
}

// LogSink receives messages passed to the global log function.
type LogSink interface {
	Log(message interface{}) error
}

// Sandbox is an isolated global scope compiled code runs in.
type Sandbox interface {
	// DefineGlobal sets a global variable.
	DefineGlobal(name string, value interface{}) error
	// Evaluate runs source as a script; name attributes stack frames.
	Evaluate(source, name string) (goja.Value, error)
	// Freeze deep-freezes the global scope. Later calls are no-ops.
	Freeze() error
	// Global returns the global object.
	Global() *goja.Object
	// NewObject creates an empty object in this scope.
	NewObject() *goja.Object
	// ToValue converts a Go value into this scope.
	ToValue(v interface{}) goja.Value
	// Modules returns this scope's module cache for doc. Exports values
	// belong to the scope that produced them, so each scope keeps its own.
	Modules(doc *ddoc.Document) *ddoc.ModuleCache
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MaxCallStackSize: 1024,
		Timeout:          5 * time.Second,
		EnableConsole:    true,
	}
}
