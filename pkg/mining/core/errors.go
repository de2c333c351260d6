package core

import (
	"errors"
	"fmt"
)

// Error codes for the mining packages
const (
	ErrCodeNoSolution             = 1
	ErrCodePluginNotFound         = 2
	ErrCodePluginLoadFailed       = 3
	ErrCodeEngineInvocationFailed = 4
	ErrCodeInvalidParameters      = 5
)

// MiningError is a structured error type for the mining packages
type MiningError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Err     error  `json:"-"`
}

func (e *MiningError) Error() string {
	msg := fmt.Sprintf("mining: [%d] %s", e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause, if any
func (e *MiningError) Unwrap() error {
	return e.Err
}

// Is matches any MiningError carrying the same code, so wrapped errors with
// extra details still satisfy errors.Is against the predefined values.
func (e *MiningError) Is(target error) bool {
	t, ok := target.(*MiningError)
	return ok && t.Code == e.Code
}

func NewError(code int, message string, details ...string) error {
	err := &MiningError{
		Code:    code,
		Message: message,
	}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

// WrapError attaches a cause to a new MiningError with the given code
func WrapError(code int, cause error, details string) error {
	return &MiningError{
		Code:    code,
		Message: messages[code],
		Details: details,
		Err:     cause,
	}
}

var messages = map[int]string{
	ErrCodeNoSolution:             "no solution found",
	ErrCodePluginNotFound:         "no matching plugin installed",
	ErrCodePluginLoadFailed:       "engine could not be initialised",
	ErrCodeEngineInvocationFailed: "engine invocation failed",
	ErrCodeInvalidParameters:      "invalid cycle parameters",
}

// Predefined errors
var (
	ErrNoSolution             = NewError(ErrCodeNoSolution, messages[ErrCodeNoSolution])
	ErrPluginNotFound         = NewError(ErrCodePluginNotFound, messages[ErrCodePluginNotFound])
	ErrPluginLoadFailed       = NewError(ErrCodePluginLoadFailed, messages[ErrCodePluginLoadFailed])
	ErrEngineInvocationFailed = NewError(ErrCodeEngineInvocationFailed, messages[ErrCodeEngineInvocationFailed])
	ErrInvalidParameters      = NewError(ErrCodeInvalidParameters, messages[ErrCodeInvalidParameters])
)

// ErrorCode extracts the code of a MiningError anywhere in err's chain, or 0
func ErrorCode(err error) int {
	var me *MiningError
	if errors.As(err, &me) {
		return me.Code
	}
	return 0
}
