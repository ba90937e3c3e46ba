// Package shellerr defines the error taxonomy shared by every component of
// the execution engine, so that callers can use errors.As/errors.Is instead
// of matching on message text.
package shellerr

import "golang.org/x/xerrors"

// Kind identifies one of the error categories from the shell's error
// taxonomy. It is not itself an error; use the typed wrappers below.
type Kind int

const (
	Syntax Kind = iota
	InvalidName
	ReadOnly
	NotFound
	PermissionDenied
	BadFdNumber
	BadOption
	ParamUnsetOrNull
	IoError
	Interrupted
	InternalInvariant
)

func (k Kind) String() string {
	switch k {
	case Syntax:
		return "syntax error"
	case InvalidName:
		return "invalid name"
	case ReadOnly:
		return "readonly variable"
	case NotFound:
		return "not found"
	case PermissionDenied:
		return "permission denied"
	case BadFdNumber:
		return "bad file descriptor number"
	case BadOption:
		return "bad option"
	case ParamUnsetOrNull:
		return "parameter null or not set"
	case IoError:
		return "I/O error"
	case Interrupted:
		return "interrupted"
	case InternalInvariant:
		return "internal invariant violated"
	default:
		return "unknown error"
	}
}

// Error is a classified shell error, wrapping an optional underlying cause
// and the offending token or command name when applicable.
type Error struct {
	Kind   Kind
	Token  string // offending token/command name, may be empty
	Cause  error
	Detail string
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Detail != "" {
		msg = e.Detail
	}
	if e.Token != "" {
		return e.Token + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a classified error for a given kind, token, and human-readable
// detail message.
func New(kind Kind, token, detail string) *Error {
	return &Error{Kind: kind, Token: token, Detail: detail}
}

// Wrap attaches a kind and token to an existing error, preserving it as the
// cause via %w so errors.Is/errors.As keep working.
func Wrap(kind Kind, token string, cause error) *Error {
	return &Error{Kind: kind, Token: token, Cause: cause, Detail: wrapMsg(cause)}
}

func wrapMsg(cause error) string {
	if cause == nil {
		return ""
	}
	return xerrors.Errorf("%w", cause).Error()
}

// Is reports whether err is a classified *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if xerrors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
