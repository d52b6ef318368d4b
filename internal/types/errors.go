package types

import (
	"errors"
	"fmt"
)

const (
	CodeBrowserUnavailable = "BROWSER_UNAVAILABLE"
	CodeBrowserLaunch      = "BROWSER_LAUNCH"
	CodeCDPFailure         = "CDP_FAILURE"
	CodeDeliveryFailed     = "DELIVERY_FAILED"
	CodeConfigInvalid      = "CONFIG_INVALID"
)

// CodedError is a typed error with a stable code used for exit status mapping.
type CodedError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CodedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *CodedError) Unwrap() error { return e.Cause }

// NewError builds a *CodedError.
func NewError(code, msg string, cause error) error {
	return &CodedError{Code: code, Message: msg, Cause: cause}
}

// ErrorCode returns the code of the first *CodedError in err's chain, or "".
func ErrorCode(err error) string {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}
