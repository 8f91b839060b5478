package ledger

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes harness errors.
type ErrorCode string

const (
	// ErrCodeProvisioning means a fixture could not be set up.
	ErrCodeProvisioning ErrorCode = "PROVISIONING"

	// ErrCodeImpersonation means an authority for the identity could not be obtained.
	ErrCodeImpersonation ErrorCode = "IMPERSONATION"

	// ErrCodeRead means a state read failed.
	ErrCodeRead ErrorCode = "READ"

	// ErrCodeRejected means the ledger declined a submitted action.
	ErrCodeRejected ErrorCode = "ACTION_REJECTED"
)

// Error is the harness error type. Rejections carry the ledger-supplied
// Reason; the other codes wrap the underlying cause in Err.
type Error struct {
	Code    ErrorCode
	Message string
	Op      Operation
	Reason  string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Code == ErrCodeRejected {
		fmt.Fprintf(&b, ": %q", e.Reason)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewProvisioningError wraps a fixture setup failure.
func NewProvisioningError(message string, err error) *Error {
	return &Error{Code: ErrCodeProvisioning, Message: message, Err: err}
}

// NewImpersonationError reports that an identity cannot be acted as.
func NewImpersonationError(message string, err error) *Error {
	return &Error{Code: ErrCodeImpersonation, Message: message, Err: err}
}

// NewReadError wraps a failed state read.
func NewReadError(message string, err error) *Error {
	return &Error{Code: ErrCodeRead, Message: message, Err: err}
}

// NewRejected reports that the ledger declined op with reason.
func NewRejected(op Operation, reason string) *Error {
	return &Error{
		Code:    ErrCodeRejected,
		Message: fmt.Sprintf("%s rejected", op),
		Op:      op,
		Reason:  reason,
	}
}

func hasCode(err error, code ErrorCode) bool {
	var le *Error
	if errors.As(err, &le) {
		return le.Code == code
	}
	return false
}

// IsProvisioningError reports whether err is a provisioning failure.
func IsProvisioningError(err error) bool { return hasCode(err, ErrCodeProvisioning) }

// IsImpersonationError reports whether err is an impersonation failure.
func IsImpersonationError(err error) bool { return hasCode(err, ErrCodeImpersonation) }

// IsReadError reports whether err is a failed read.
func IsReadError(err error) bool { return hasCode(err, ErrCodeRead) }

// IsRejected reports whether err is a ledger rejection.
func IsRejected(err error) bool { return hasCode(err, ErrCodeRejected) }

// RejectionReason extracts the ledger-supplied reason from a rejection.
// Uses errors.As so wrapped rejections are found.
func RejectionReason(err error) (string, bool) {
	var le *Error
	if errors.As(err, &le) && le.Code == ErrCodeRejected {
		return le.Reason, true
	}
	return "", false
}
