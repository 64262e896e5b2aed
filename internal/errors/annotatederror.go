// Package errors extends the standard library errors with slog annotations and the source location where an error
// was created or wrapped.
package errors

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"runtime"
)

type annotatedError struct {
	msg   string
	err   error
	attrs []slog.Attr
	pc    uintptr
}

func (e *annotatedError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

func (e *annotatedError) Unwrap() error {
	return e.err
}

func callerPC(skip int) uintptr {
	var pcs [1]uintptr
	// Skip runtime.Callers and callerPC itself.
	if runtime.Callers(skip+2, pcs[:]) == 0 { //nolint:mnd // see above
		return 0
	}
	return pcs[0]
}

// NewSentinel creates an error meant to be declared as a package level variable and compared with [Is].
// Sentinels carry no source location.
func NewSentinel(msg string) error {
	return stderrors.New(msg)
}

// New creates an error annotated with attrs and the caller's source location.
func New(msg string, attrs ...slog.Attr) error {
	return &annotatedError{msg: msg, err: nil, attrs: attrs, pc: callerPC(1)}
}

// Wrap adds context msg and attrs to err. The returned error unwraps to err.
func Wrap(err error, msg string, attrs ...slog.Attr) error {
	return &annotatedError{msg: msg, err: err, attrs: attrs, pc: callerPC(1)}
}

// DecoratePanic converts a recovered panic value into an error annotated with the recovering call site.
func DecoratePanic(excp any) error {
	if excp == nil {
		return nil
	}
	if err, ok := excp.(error); ok {
		return &annotatedError{msg: "panic", err: err, attrs: nil, pc: callerPC(1)}
	}
	return &annotatedError{msg: fmt.Sprintf("panic: %v", excp), err: nil, attrs: nil, pc: callerPC(1)}
}

// SlogError flattens err into a log attribute group named "error" containing the message, every annotation found
// along the wrap chain and the source location of the innermost annotated error.
func SlogError(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}

	var (
		annotations []slog.Attr
		pc          uintptr
	)
	for e := err; e != nil; e = stderrors.Unwrap(e) {
		var ae *annotatedError
		if !stderrors.As(e, &ae) {
			break
		}
		annotations = append(annotations, ae.attrs...)
		if ae.pc != 0 {
			pc = ae.pc
		}
		e = ae
	}

	attrs := []slog.Attr{slog.String("message", err.Error())}
	if len(annotations) > 0 {
		attrs = append(attrs, slog.Attr{Key: "annotations", Value: slog.GroupValue(annotations...)})
	}
	if pc != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()
		attrs = append(attrs, slog.String("source", fmt.Sprintf("%s:%d", frame.File, frame.Line)))
	}
	return slog.Attr{Key: "error", Value: slog.GroupValue(attrs...)}
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Unwrap returns the result of calling the Unwrap method on err.
func Unwrap(err error) error {
	return stderrors.Unwrap(err)
}

// Join returns an error that wraps the given errors, discarding nils.
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}
