package compiler

import (
	"strings"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
)

// Rewrite normalizes legacy function syntax so that evaluating the result
// yields the function:
//
//	function(doc) { ... }          anonymous statement, wrapped in parens
//	function map(doc) { ... }      lone declaration, wrapped in parens
//	var k = 1; function f() { ... } trailing declaration, name appended
//
// Anything else, including source that does not parse, is returned
// unchanged so evaluation reports the real error.
func Rewrite(source string) string {
	if prog, err := parser.ParseFile(nil, "", source, 0); err == nil {
		return rewriteProgram(source, prog)
	}

	body := strings.TrimRight(strings.TrimSpace(source), "; \t\r\n")
	wrapped := "(" + body + "\n)"
	if _, err := parser.ParseFile(nil, "", wrapped, 0); err == nil {
		return wrapped
	}
	return source
}

func rewriteProgram(source string, prog *ast.Program) string {
	var stmts []ast.Statement
	for _, stmt := range prog.Body {
		if _, empty := stmt.(*ast.EmptyStatement); !empty {
			stmts = append(stmts, stmt)
		}
	}
	if len(stmts) == 0 {
		return source
	}

	last, ok := stmts[len(stmts)-1].(*ast.FunctionDeclaration)
	if !ok || last.Function == nil || last.Function.Name == nil {
		return source
	}

	if len(stmts) == 1 {
		wrapped := "(" + strings.TrimRight(strings.TrimSpace(source), "; \t\r\n") + "\n)"
		if _, err := parser.ParseFile(nil, "", wrapped, 0); err == nil {
			return wrapped
		}
	}
	return source + "\n;" + string(last.Function.Name.Name)
}
