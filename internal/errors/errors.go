// Package errors provides coded errors for the segment core: every
// fallible parse/decode operation returns an error built with New(code,
// message) so callers can match on Code via Is() instead of message text.
// It wraps github.com/pkg/errors for stack traces.
package errors

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Code is an error code which can be checked against a given error via Is.
type Code string

func New(code Code, message string) error {
	return errors.WithStack(codedError{
		Code:    code,
		Message: message,
	})
}

func Cause(err error) error {
	return errors.Cause(err)
}

func Errorf(format string, args ...interface{}) error {
	return errors.Errorf(format, args...)
}

// Is is a fork of pkg/errors.Is() that takes an error Code as its target
// instead of an error value.
func Is(err error, target Code) bool {
	match := codedError{Code: target}
	return errors.Is(err, match)
}

func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// codedError is the fundamental type used by this package to provide coded
// errors.
type codedError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Wrapped string `json:"wrapped,omitempty"`
}

func (ce codedError) Error() string {
	if ce.Wrapped != "" {
		return ce.Wrapped
	}
	return ce.Message
}

func (ce codedError) Is(err error) bool {
	e, ok := err.(codedError)
	return ok && ce.Code == e.Code
}

const ErrUncoded Code = "Uncoded"

// MarshalJSON returns err as a JSON-encoded codedError. If err is not
// already a codedError, the Code field will be empty.
func MarshalJSON(err error) string {
	cause := Cause(err)

	var out *codedError
	switch v := cause.(type) {
	case codedError:
		v.Wrapped = err.Error()
		out = &v
	default:
		out = &codedError{
			Message: cause.Error(),
			Wrapped: err.Error(),
		}
	}

	j, jerr := json.Marshal(out)
	if jerr != nil {
		return out.Error()
	}
	return string(j)
}
