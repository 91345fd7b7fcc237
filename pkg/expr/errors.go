package expr

import (
	"errors"
	"fmt"
)

var (
	// ErrCallsDisabled is returned when an expression calls a function while
	// calls are disabled.
	ErrCallsDisabled = errors.New("function calls are disabled in bindings")

	// ErrNotCallable is returned when a call targets a value that is not a function.
	ErrNotCallable = errors.New("value is not callable")
)

// ParseError reports a structural syntax error in an expression.
type ParseError struct {
	Expr string // the full expression
	Pos  int    // byte offset of the offending token
	Msg  string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d in %q: %s", e.Pos, e.Expr, e.Msg)
}

// IsParseError reports whether err is (or wraps) a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
