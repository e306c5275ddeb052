package sandbox

import (
	"errors"

	"github.com/dop251/goja"

	"github.com/GriffinCanCode/ddocjs/internal/failure"
)

// Describe renders an error raised inside a runtime for user-facing
// messages. Failures thrown through nested require calls keep their kind
// and message; thrown Error objects render as "Name: message"; other
// thrown objects render as JSON.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var f *failure.Error
	if errors.As(err, &f) {
		return f.Error()
	}

	var ex *goja.Exception
	if errors.As(err, &ex) {
		v := ex.Value()
		if v == nil {
			return ex.Error()
		}
		if obj, ok := v.(*goja.Object); ok && obj.Get("stack") == nil {
			if data, jErr := obj.MarshalJSON(); jErr == nil {
				return string(data)
			}
		}
		return v.String()
	}

	return err.Error()
}
