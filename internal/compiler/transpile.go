package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// Dialects
const (
	DialectJavaScript = "javascript"
	DialectTypeScript = "typescript"
)

// TranspileOptions controls a transpilation.
type TranspileOptions struct {
	// Bare emits the code without a top-level wrapper, so evaluating it
	// yields the value of its last expression.
	Bare bool
	// Name labels diagnostics.
	Name string
}

// Transpiler converts an alternate source dialect into JavaScript the
// sandbox can evaluate.
type Transpiler interface {
	Compile(source string, opts TranspileOptions) (string, error)
}

// ForDialect returns the transpiler for a dialect name. Plain JavaScript
// needs none and yields nil.
func ForDialect(dialect string) (Transpiler, error) {
	switch strings.ToLower(dialect) {
	case "", DialectJavaScript:
		return nil, nil
	case DialectTypeScript:
		return TypeScript(), nil
	}
	return nil, fmt.Errorf("unsupported dialect %q", dialect)
}

// esbuildTranspiler transpiles with esbuild's transform API.
type esbuildTranspiler struct {
	loader api.Loader
}

// TypeScript returns a transpiler for TypeScript sources.
func TypeScript() Transpiler {
	return esbuildTranspiler{loader: api.LoaderTS}
}

func (t esbuildTranspiler) Compile(source string, opts TranspileOptions) (string, error) {
	format := api.FormatIIFE
	if opts.Bare {
		format = api.FormatDefault
	}

	result := api.Transform(source, api.TransformOptions{
		Loader:     t.loader,
		Format:     format,
		Target:     api.ES2017,
		Sourcefile: opts.Name,
	})
	if len(result.Errors) > 0 {
		msgs := make([]string, 0, len(result.Errors))
		for _, m := range result.Errors {
			if m.Location != nil {
				msgs = append(msgs, fmt.Sprintf("%d:%d: %s", m.Location.Line, m.Location.Column, m.Text))
			} else {
				msgs = append(msgs, m.Text)
			}
		}
		return "", errors.New("TranspileError: " + strings.Join(msgs, "; "))
	}
	return string(result.Code), nil
}
