package walker

import (
	"strings"

	"github.com/ormasoftchile/archetype/pkg/ast"
)

// Error is a failure raised during a walk. Backtrace starts at the node
// being processed and lists every enclosing invocation, innermost first.
type Error struct {
	Err       error
	Kind      ast.Kind
	Backtrace []ast.Location
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Err.Error())
	for _, loc := range e.Backtrace {
		b.WriteString("\n\tat ")
		b.WriteString(loc.String())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Location returns where the error was raised.
func (e *Error) Location() ast.Location {
	if len(e.Backtrace) == 0 {
		return ast.Location{}
	}
	return e.Backtrace[0]
}
