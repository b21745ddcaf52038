package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies request faults that stop the pipeline before the
// backend is called.
type ErrorKind string

const (
	KindValidation       ErrorKind = "validation"
	KindUnsupportedInput ErrorKind = "unsupported_input"
	KindFetchFailure     ErrorKind = "fetch_failure"
)

// Error codes surfaced in the response envelope.
const (
	CodeMissingImage     = "MISSING_IMAGE"
	CodeMissingInsert    = "MISSING_INSERT"
	CodeInvalidMode      = "INVALID_MODE"
	CodeInvalidBBox      = "INVALID_BBOX"
	CodeUnsupportedInput = "UNSUPPORTED_INPUT"
	CodeFetchFailed      = "FETCH_FAILED"
	CodeBadRequest       = "BAD_REQUEST"
	CodeEmptyChain       = "EMPTY_CHAIN"
)

// Error is a terminal request fault. It always maps to a 4xx status and is
// never retried.
type Error struct {
	Kind    ErrorKind
	Code    string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Validation builds a 400 validation fault.
func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Status: http.StatusBadRequest, Message: message}
}

// Unsupported builds a 400 fault for an image string none of the resolvers accept.
func Unsupported(message string, err error) *Error {
	return &Error{Kind: KindUnsupportedInput, Code: CodeUnsupportedInput, Status: http.StatusBadRequest, Message: message, Err: err}
}

// FetchFailed builds a 400 fault for a remote image that could not be read.
// upstream is the status the remote host answered with, or 0.
func FetchFailed(url string, upstream int, err error) *Error {
	msg := "fetch " + url + " failed"
	if upstream > 0 {
		msg = fmt.Sprintf("fetch %s failed with status %d", url, upstream)
	}
	return &Error{Kind: KindFetchFailure, Code: CodeFetchFailed, Status: http.StatusBadRequest, Message: msg, Err: err}
}

// AsError unwraps err into a request fault, if it is one.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
