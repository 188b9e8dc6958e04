package domain

import (
	"errors"
	"fmt"
)

// NotFoundError represents a missing record, tracker row or checkpoint.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

// ErrUnsupportedFormat is returned by formatters when a record cannot be
// disseminated in the requested metadata format.
var ErrUnsupportedFormat = errors.New("unsupported metadata format")

// ErrorCode is one of the error codes defined by OAI-PMH 2.0.
type ErrorCode string

const (
	CodeBadArgument             ErrorCode = "badArgument"
	CodeBadResumptionToken      ErrorCode = "badResumptionToken"
	CodeBadVerb                 ErrorCode = "badVerb"
	CodeCannotDisseminateFormat ErrorCode = "cannotDisseminateFormat"
	CodeIDDoesNotExist          ErrorCode = "idDoesNotExist"
	CodeNoRecordsMatch          ErrorCode = "noRecordsMatch"
	CodeNoMetadataFormats       ErrorCode = "noMetadataFormats"
	CodeNoSetHierarchy          ErrorCode = "noSetHierarchy"
)

// EchoesRequest reports whether an error document for this code repeats the
// request arguments in its <request> element.
func (c ErrorCode) EchoesRequest() bool {
	return c != CodeBadVerb && c != CodeBadArgument
}

// ProtocolError is a client-facing OAI-PMH error. It is rendered as an
// <error> element instead of failing the request.
type ProtocolError struct {
	Code    ErrorCode
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewProtocolError(code ErrorCode, message string) *ProtocolError {
	return &ProtocolError{Code: code, Message: message}
}
