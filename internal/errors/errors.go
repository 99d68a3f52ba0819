package errors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error type mapped to process exit codes.
type Code int

const (
	CodeSuccess     Code = 0
	CodeInternal    Code = 1
	CodeUsage       Code = 2
	CodeAuth        Code = 10
	CodeRateLimited Code = 11
	CodeUnavailable Code = 12
	CodeUnsupported Code = 13
	CodeBlocked     Code = 14

	CodeRegistryMiss        Code = 20
	CodeEncoding            Code = 21
	CodeQuote               Code = 22
	CodeUnsupportedRoute    Code = 23
	CodeApprovalFailed      Code = 24
	CodeSubmissionFailed    Code = 25
	CodeExecutionReverted   Code = 26
	CodeStatusTimeout       Code = 27
	CodeBridgeFailed        Code = 28
	CodeConfirmationTimeout Code = 29
	CodeSigner              Code = 30
	CodeCancelled           Code = 31
)

var codeNames = map[Code]string{
	CodeSuccess:             "success",
	CodeInternal:            "internal_error",
	CodeUsage:               "usage_error",
	CodeAuth:                "auth_error",
	CodeRateLimited:         "rate_limited",
	CodeUnavailable:         "unavailable",
	CodeUnsupported:         "unsupported",
	CodeBlocked:             "command_blocked",
	CodeRegistryMiss:        "registry_miss",
	CodeEncoding:            "encoding_error",
	CodeQuote:               "quote_error",
	CodeUnsupportedRoute:    "unsupported_route",
	CodeApprovalFailed:      "approval_failed",
	CodeSubmissionFailed:    "submission_failed",
	CodeExecutionReverted:   "execution_reverted",
	CodeStatusTimeout:       "status_timeout",
	CodeBridgeFailed:        "bridge_failed",
	CodeConfirmationTimeout: "confirmation_timeout",
	CodeSigner:              "signer_error",
	CodeCancelled:           "cancelled",
}

func (c Code) Name() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code_%d", int(c))
}

// Error is a typed error that carries a stable error code. TxHash is set when a
// transaction was broadcast before the failure, so funds may have moved.
type Error struct {
	Code    Code
	Message string
	Cause   error
	TxHash  string
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// WithTxHash records the hash of a transaction that reached the network.
func (e *Error) WithTxHash(hash string) *Error {
	e.TxHash = hash
	return e
}

func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

func CodeOf(err error) Code {
	if err == nil {
		return CodeSuccess
	}
	if typed, ok := As(err); ok {
		return typed.Code
	}
	return CodeInternal
}

func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// Retryable reports whether a fresh attempt with the same inputs may succeed.
// On-chain failures are included because an unexecuted quote is never consumed.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case CodeRateLimited, CodeUnavailable, CodeQuote, CodeApprovalFailed,
		CodeSubmissionFailed, CodeExecutionReverted, CodeStatusTimeout:
		return true
	default:
		return false
	}
}

func ExitCode(err error) int {
	return int(CodeOf(err))
}
