// Package errs defines the error kinds shared by every stage of a job.
//
// Four kinds exist:
//   - ErrConfig: unknown dimension or column, invalid bounds, unsupported unit pair.
//     Always raised before extraction starts.
//   - ErrData: shape mismatch or malformed source array. Aborts the job.
//   - ErrExpression: formula parse or evaluation failure.
//   - ErrIO: transport failure. Transient IO errors may be retried by the storage layer.
//
// Use errors.Is(err, errs.ErrConfig) to test the kind of a wrapped error and
// errors.As to recover the *Error with its operation and subject.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig marks invalid job configuration.
	ErrConfig = errors.New("config error")

	// ErrData marks malformed or inconsistent source data.
	ErrData = errors.New("data error")

	// ErrExpression marks formula parse and evaluation failures.
	ErrExpression = errors.New("expression error")

	// ErrIO marks transport failures.
	ErrIO = errors.New("io error")
)

// Error carries the kind of a failure plus enough context to act on it.
type Error struct {
	// Kind is one of ErrConfig, ErrData, ErrExpression, ErrIO.
	Kind error
	// Op names where the failure happened, e.g. "filter[2] range" or "processor[0] rename_columns".
	Op string
	// Subject is the dimension, column or path involved, if any.
	Subject string
	// Transient is only meaningful for ErrIO.
	Transient bool
	// Err is the underlying cause.
	Err error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Subject != "" {
		msg += fmt.Sprintf(" (%s)", e.Subject)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Configf returns an ErrConfig error about subject.
func Configf(subject, format string, args ...any) error {
	return &Error{Kind: ErrConfig, Subject: subject, Err: fmt.Errorf(format, args...)}
}

// Dataf returns an ErrData error about subject.
func Dataf(subject, format string, args ...any) error {
	return &Error{Kind: ErrData, Subject: subject, Err: fmt.Errorf(format, args...)}
}

// Expressionf returns an ErrExpression error.
func Expressionf(format string, args ...any) error {
	return &Error{Kind: ErrExpression, Err: fmt.Errorf(format, args...)}
}

// IO wraps a transport failure on path.
func IO(path string, transient bool, err error) error {
	return &Error{Kind: ErrIO, Subject: path, Transient: transient, Err: err}
}

// WithOp annotates err with an operation name. Errors without a kind are
// classified as kind. A nil err stays nil.
func WithOp(op string, kind error, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) && e.Op == "" {
		cp := *e
		cp.Op = op
		return &cp
	}
	if errors.As(err, &e) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// IsTransient reports whether err is an IO error worth retrying.
func IsTransient(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == ErrIO && e.Transient
}

// KindOf returns the kind sentinel of err, or nil when err is unclassified.
func KindOf(err error) error {
	for _, kind := range []error{ErrConfig, ErrData, ErrExpression, ErrIO} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
