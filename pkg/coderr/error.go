// Copyright 2025 MultiDB Project Authors. Licensed under Apache-2.0.

package coderr

import (
	"fmt"

	"github.com/pkg/errors"
)

var _ CodeError = &codeError{code: 0, desc: "", cause: nil}

// CodeError is an error with a stable code, used to classify failures across
// package boundaries without string matching.
type CodeError interface {
	error
	Code() Code
	// WithCausef generates a new CodeError instance with the formatted cause details.
	WithCausef(format string, a ...any) CodeError
	// WithCause generates a new CodeError instance with the provided cause.
	WithCause(cause error) CodeError
}

// Is checks whether the cause of `err` is the kind of error specified by the `expectCode`.
// Returns false if the cause of `err` is not a CodeError.
func Is(err error, expectCode Code) bool {
	code, ok := GetCauseCode(err)
	return ok && code == expectCode
}

func GetCauseCode(err error) (Code, bool) {
	if err == nil {
		return Invalid, false
	}

	cause := errors.Cause(err)
	cerr, ok := cause.(CodeError)
	if !ok {
		return Invalid, false
	}
	return cerr.Code(), true
}

// NewCodeError creates a base CodeError definition.
// The provided code should be defined in code.go in this package.
func NewCodeError(code Code, desc string) CodeError {
	return &codeError{
		code:  code,
		desc:  desc,
		cause: nil,
	}
}

type codeError struct {
	code  Code
	desc  string
	cause error
}

func (e *codeError) Error() string {
	return fmt.Sprintf("(#%d)%s, cause:%+v", e.code, e.desc, e.cause)
}

func (e *codeError) Code() Code {
	return e.code
}

func (e *codeError) WithCausef(format string, a ...any) CodeError {
	errMsg := fmt.Sprintf(format, a...)
	causeWithStack := errors.WithStack(errors.New(errMsg))
	return &codeError{
		code:  e.code,
		desc:  e.desc,
		cause: causeWithStack,
	}
}

func (e *codeError) WithCause(cause error) CodeError {
	causeWithStack := errors.WithStack(cause)
	return &codeError{
		code:  e.code,
		desc:  e.desc,
		cause: causeWithStack,
	}
}
