package script

import (
	"errors"
	"fmt"
)

// SyntaxError reports malformed program text.
type SyntaxError struct {
	Line int
	Col  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d:%d: %s", e.Line, e.Col, e.Msg)
}

// RuntimeError reports a failure while executing a statement. Err holds
// the underlying cause when the failure came from a called function.
type RuntimeError struct {
	Line int
	Col  int
	Msg  string
	Err  error
}

func (e *RuntimeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"runtime error at %d:%d: %s: %v",
			e.Line, e.Col, e.Msg, e.Err,
		)
	}

	return fmt.Sprintf("runtime error at %d:%d: %s", e.Line, e.Col, e.Msg)
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// ErrUndefined is the cause of a RuntimeError raised for a name that is
// not bound in scope.
var ErrUndefined = errors.New("undefined name")

// loop control is propagated as sentinel errors.
var (
	errBreak    = errors.New("break outside loop")
	errContinue = errors.New("continue outside loop")
)

func rtErrorf(pos Pos, format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Line: pos.Line,
		Col:  pos.Col,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// wrapRuntime attaches a position to err unless it already carries one.
func wrapRuntime(pos Pos, msg string, err error) error {
	if _, ok := err.(*RuntimeError); ok {
		return err
	}

	return &RuntimeError{Line: pos.Line, Col: pos.Col, Msg: msg, Err: err}
}
