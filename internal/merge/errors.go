package merge

import (
	"errors"
	"fmt"
)

// Kind classifies a fatal merge error.
type Kind int

const (
	KindSourceUnreadable Kind = iota + 1
	KindNoInputs
	KindHeaderConflict
	KindOutputFailed
	KindCancelled
	KindInvalidOptions
)

// String returns the name used in messages and logs.
func (k Kind) String() string {
	switch k {
	case KindSourceUnreadable:
		return "SourceUnreadable"
	case KindNoInputs:
		return "NoInputs"
	case KindHeaderConflict:
		return "HeaderConflict"
	case KindOutputFailed:
		return "OutputFailed"
	case KindCancelled:
		return "Cancelled"
	case KindInvalidOptions:
		return "InvalidOptions"
	default:
		return "Unknown"
	}
}

// Sentinels matched by errors.Is against any *Error of the same Kind.
var (
	ErrSourceUnreadable = errors.New("source unreadable")
	ErrNoInputs         = errors.New("no inputs")
	ErrHeaderConflict   = errors.New("header conflict")
	ErrOutputFailed     = errors.New("output failed")
	ErrCancelled        = errors.New("merge cancelled")
	ErrInvalidOptions   = errors.New("invalid merge options")
)

var (
	errNoFiles  = errors.New("no input files given")
	errAllEmpty = errors.New("every input is empty")
)

func (k Kind) sentinel() error {
	switch k {
	case KindSourceUnreadable:
		return ErrSourceUnreadable
	case KindNoInputs:
		return ErrNoInputs
	case KindHeaderConflict:
		return ErrHeaderConflict
	case KindOutputFailed:
		return ErrOutputFailed
	case KindCancelled:
		return ErrCancelled
	case KindInvalidOptions:
		return ErrInvalidOptions
	default:
		return nil
	}
}

// Error is a fatal merge failure. Source names the offending input (or the
// output path for KindOutputFailed) and is empty when no single file is to
// blame.
type Error struct {
	Kind   Kind
	Source string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.sentinel().Error()
	if e.Source != "" {
		msg = e.Source + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the Kind's sentinel.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the Kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	return 0
}

// SourceOf returns the file an error is attributed to, if any.
func SourceOf(err error) string {
	var me *Error
	if errors.As(err, &me) {
		return me.Source
	}
	return ""
}

func unreadable(source string, err error) error {
	return &Error{Kind: KindSourceUnreadable, Source: source, Err: err}
}

func outputFailed(dest string, err error) error {
	return &Error{Kind: KindOutputFailed, Source: dest, Err: err}
}

func cancelled(source string, line int, err error) error {
	if line > 0 {
		err = fmt.Errorf("at line %d: %w", line, err)
	}
	return &Error{Kind: KindCancelled, Source: source, Err: err}
}

func invalidOptions(format string, args ...any) error {
	return &Error{Kind: KindInvalidOptions, Err: fmt.Errorf(format, args...)}
}
