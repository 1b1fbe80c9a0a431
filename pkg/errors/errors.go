// Package errors provides structured error handling for Tessera.
//
// Every failure surfaced by the file-format core is an *Error carrying an
// ErrorType, so callers can branch on the kind of failure with IsType
// instead of matching message strings. Errors wrap their cause and work
// with the standard errors.Is and errors.As.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// ErrorType is the kind of a failure.
type ErrorType string

const (
	// ErrorTypeInternal covers bugs and allocation failures.
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeInvalidArgument is a nil or out-of-range input to a public entry point.
	ErrorTypeInvalidArgument ErrorType = "invalid_argument"
	// ErrorTypeInvalidFormat is a footer, magic or structural parse failure.
	ErrorTypeInvalidFormat ErrorType = "invalid_format"
	// ErrorTypeChecksumMismatch is a page whose CRC32 does not match its header.
	ErrorTypeChecksumMismatch ErrorType = "checksum_mismatch"
	// ErrorTypeCorruptData is compressed data a codec backend cannot parse.
	ErrorTypeCorruptData ErrorType = "corrupt_compressed_data"
	// ErrorTypeCompressionFailed is a codec backend failing to compress.
	ErrorTypeCompressionFailed ErrorType = "compression_failed"
	// ErrorTypeSchemaMismatch is a row-count or type inconsistency during write.
	ErrorTypeSchemaMismatch ErrorType = "schema_mismatch"
	// ErrorTypeIncompleteRowGroup is a writer closed mid row group.
	ErrorTypeIncompleteRowGroup ErrorType = "incomplete_row_group"
	// ErrorTypeOutputTooLarge is decompressed output past the caller's capacity.
	ErrorTypeOutputTooLarge ErrorType = "output_too_large"
	ErrorTypeFile   ErrorType = "file"
	ErrorTypeConfig ErrorType = "config"
)

// corruption lists the kinds that mean damaged file contents.
var corruption = map[ErrorType]bool{
	ErrorTypeInvalidFormat:    true,
	ErrorTypeChecksumMismatch: true,
	ErrorTypeCorruptData:      true,
}

// Error is a typed failure with optional cause and key/value details.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	// Stack holds program counters of the call site that created the
	// outermost typed error in the chain.
	Stack []uintptr
}

// StackFrame is one resolved entry of Error.Stack.
type StackFrame struct {
	Function string
	File     string
	Line     int
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Type))
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// WithDetail attaches key=value to e and returns e.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = map[string]interface{}{}
	}
	e.Details[key] = value
	return e
}

// Format supports %+v, which appends details and the creation stack.
func (e *Error) Format(s fmt.State, verb rune) {
	switch {
	case verb == 'q':
		fmt.Fprintf(s, "%q", e.Error())
		return
	case verb != 'v' || !s.Flag('+'):
		fmt.Fprint(s, e.Error())
		return
	}
	fmt.Fprint(s, e.Error())
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(s, "\n  %s=%v", k, e.Details[k])
	}
	for _, f := range e.Frames() {
		fmt.Fprintf(s, "\n  at %s (%s:%d)", f.Function, f.File, f.Line)
	}
}

// Frames resolves Stack.
func (e *Error) Frames() []StackFrame {
	if len(e.Stack) == 0 {
		return nil
	}
	var out []StackFrame
	it := runtime.CallersFrames(e.Stack)
	for {
		f, more := it.Next()
		out = append(out, StackFrame{Function: f.Function, File: f.File, Line: f.Line})
		if !more {
			return out
		}
	}
}

// New returns an error of kind t.
func New(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message, Stack: callers()}
}

// Newf is New with a formatted message.
func Newf(t ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...), Stack: callers()}
}

// Wrap returns err as the cause of a new error of kind t, or nil if err is
// nil. The stack of an already typed cause is carried over.
func Wrap(err error, t ErrorType, message string) *Error {
	if err == nil {
		return nil
	}
	e := &Error{Type: t, Message: message, Cause: err}
	var inner *Error
	if errors.As(err, &inner) && len(inner.Stack) > 0 {
		e.Stack = inner.Stack
	} else {
		e.Stack = callers()
	}
	return e
}

// IsType reports whether the outermost *Error in err's chain has kind t.
func IsType(err error, t ErrorType) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == t
}

// TypeOf returns the kind of the outermost *Error in err's chain, or
// ErrorTypeInternal when err carries no type.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeInternal
}

// IsCorruption reports whether err indicates damaged file contents rather
// than a caller mistake.
func IsCorruption(err error) bool {
	return err != nil && corruption[TypeOf(err)]
}

// callers skips runtime.Callers, callers itself and the constructor.
func callers() []uintptr {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	return pcs[:n]
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool { return errors.As(err, target) }
