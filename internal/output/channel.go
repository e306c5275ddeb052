// Package output writes structured records for the host transport.
//
// Every record is one JSON array per line:
//
//	["log", "message"]
//	["error", "compilation_error", "Expression does not eval to a function. (42)"]
//
// Results are written as their JSON encoding.
package output

import (
	"errors"
	"io"
	"sync"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/ddocjs/internal/failure"
)

// UnknownError is the kind reported for errors that are not failures.
const UnknownError = "unknown_error"

// Sorted keys keep records stable across runs.
var codec = sonic.ConfigStd

// Channel serializes records onto a writer. It is safe for concurrent use.
type Channel struct {
	w      io.Writer
	logger *zap.Logger
	mu     sync.Mutex
}

// New creates a channel writing to w.
func New(w io.Writer, logger *zap.Logger) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{w: w, logger: logger}
}

// Respond writes v as one JSON line. Values that cannot be encoded are
// reported as a log record instead.
func (c *Channel) Respond(v interface{}) error {
	data, err := codec.Marshal(v)
	if err != nil {
		c.logger.Warn("Failed to encode response", zap.Error(err))
		return c.Log("Error converting object to JSON: " + err.Error())
	}
	return c.write(data)
}

// Log writes a log record. Strings are passed through; anything else is
// JSON encoded first.
func (c *Channel) Log(message interface{}) error {
	text, ok := message.(string)
	if !ok {
		data, err := codec.MarshalToString(message)
		if err != nil {
			c.logger.Warn("Failed to encode log message", zap.Error(err))
			text = "<unencodable log message>"
		} else {
			text = data
		}
	}

	data, err := codec.Marshal([]string{"log", text})
	if err != nil {
		return err
	}
	return c.write(data)
}

// Error writes an error record. Failures keep their kind; other errors are
// reported as unknown_error.
func (c *Channel) Error(err error) error {
	kind, message := UnknownError, err.Error()

	var f *failure.Error
	if errors.As(err, &f) {
		kind, message = string(f.Kind), f.Message
	}

	data, mErr := codec.Marshal([]string{"error", kind, message})
	if mErr != nil {
		return mErr
	}
	return c.write(data)
}

func (c *Channel) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.w.Write(append(data, '\n')); err != nil {
		c.logger.Error("Failed to write record", zap.Error(err))
		return err
	}
	return nil
}
