// Package errorsx tags errors with a ReasonCode so logs and metrics can
// classify a failure (stt_rate_limit, audio_chunking, persistence, ...)
// without matching on messages. The first reason attached wins; wrapping
// an already reasoned error keeps the inner, more specific code.
package errorsx

import (
	"errors"
	"fmt"
)

// ReasonedError carries the reason next to the underlying error, which stays
// reachable through errors.Is and errors.As.
type ReasonedError struct {
	Err    error
	Reason ReasonCode
}

func (e ReasonedError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return e.Err.Error()
}

func (e ReasonedError) Unwrap() error {
	return e.Err
}

// Wrap attaches reason to err. A provider that already tagged its failure,
// e.g. ReasonSTTRateLimit, keeps that code when the engine wraps it again
// with a generic one. Nil stays nil.
func Wrap(err error, reason ReasonCode) error {
	if err == nil {
		return nil
	}
	var re ReasonedError
	if errors.As(err, &re) {
		return err
	}
	return ReasonedError{Err: err, Reason: reason}
}

// Wrapf annotates err with a formatted prefix and attaches reason.
func Wrapf(err error, reason ReasonCode, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return Wrap(fmt.Errorf(format+": %w", append(args, err)...), reason)
}

// Reason returns the code logged as reason_code, or ReasonUnknown for
// untagged errors.
func Reason(err error) ReasonCode {
	if err == nil {
		return ReasonUnknown
	}
	var re ReasonedError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ReasonUnknown
}

// HasReason reports whether err was tagged with reason.
func HasReason(err error, reason ReasonCode) bool {
	return Reason(err) == reason
}
