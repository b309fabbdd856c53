package mesa

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is. The typed errors below match them.
var (
	ErrFormat      = errors.New("malformed file")
	ErrKeyNotFound = errors.New("key not found")
	ErrIndexRange  = errors.New("index out of range")

	// ErrDuplicateModel is returned when a model number appears in more than
	// one history row.
	ErrDuplicateModel = errors.New("model number appears more than once")
)

// FormatError reports a structural problem with a history, profile, model or
// index file, or a file that could not be read at all. Line is 1-based; zero
// means the problem is not tied to one line. Err holds the underlying I/O
// error for unreadable files.
type FormatError struct {
	Path string
	Line int
	Msg  string
	Err  error
}

func (e *FormatError) Error() string {
	name := e.Path
	if name == "" {
		name = "<input>"
	}
	msg := e.Msg
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Line > 0 {
		return fmt.Sprintf("invalid format: %s:%d: %s", name, e.Line, msg)
	}
	return fmt.Sprintf("invalid format: %s: %s", name, msg)
}

func (e *FormatError) Is(target error) bool { return target == ErrFormat }

func (e *FormatError) Unwrap() error { return e.Err }

// Key kinds reported by KeyNotFoundError.
const (
	KindHeader  = "header"
	KindColumn  = "column"
	KindField   = "field"
	KindModel   = "model"
	KindProfile = "profile"
)

// KeyNotFoundError reports a header, column, model or profile that does not
// exist.
type KeyNotFoundError struct {
	Kind string
	Key  string
}

func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %q", e.Kind, e.Key)
}

func (e *KeyNotFoundError) Is(target error) bool { return target == ErrKeyNotFound }

// IndexError reports a row index outside [0, Len).
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("row index %d out of range [0, %d)", e.Index, e.Len)
}

func (e *IndexError) Is(target error) bool { return target == ErrIndexRange }

func formatErr(path string, line int, format string, args ...any) error {
	return &FormatError{Path: path, Line: line, Msg: fmt.Sprintf(format, args...)}
}

func unreadable(path string, err error) error {
	return &FormatError{Path: path, Msg: "unreadable", Err: err}
}

func notFound(kind string, key any) error {
	return &KeyNotFoundError{Kind: kind, Key: fmt.Sprint(key)}
}
