package gpu

import "fmt"

// Code classifies a device runtime failure.
type Code int

const (
	CodeSuccess Code = iota
	CodeInvalidValue
	CodeOutOfMemory
	CodeNotFound
	CodeInvalidHandle
	CodeLaunchFailure
	CodeNotSupported
	CodeNotInitialized
)

func (c Code) String() string {
	switch c {
	case CodeSuccess:
		return "success"
	case CodeInvalidValue:
		return "invalid value"
	case CodeOutOfMemory:
		return "out of memory"
	case CodeNotFound:
		return "not found"
	case CodeInvalidHandle:
		return "invalid handle"
	case CodeLaunchFailure:
		return "launch failure"
	case CodeNotSupported:
		return "not supported"
	case CodeNotInitialized:
		return "not initialized"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// Error is returned by every device operation that fails. Callers match the
// class of failure with errors.Is against the Err* sentinels.
type Error struct {
	Code Code
	Op   string // operation that failed, e.g. "launch" or "alloc"
	Msg  string
	Err  error // underlying backend error, if any
}

func (e *Error) Error() string {
	s := "gpu"
	if e.Op != "" {
		s += ": " + e.Op
	}
	s += ": " + e.Code.String()
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Msg == "" && t.Err == nil && t.Code == e.Code
}

// Sentinels, one per code.
var (
	ErrInvalidValue   = &Error{Code: CodeInvalidValue}
	ErrOutOfMemory    = &Error{Code: CodeOutOfMemory}
	ErrNotFound       = &Error{Code: CodeNotFound}
	ErrInvalidHandle  = &Error{Code: CodeInvalidHandle}
	ErrLaunchFailure  = &Error{Code: CodeLaunchFailure}
	ErrNotSupported   = &Error{Code: CodeNotSupported}
	ErrNotInitialized = &Error{Code: CodeNotInitialized}
)

func newError(code Code, op, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func wrapError(code Code, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}
