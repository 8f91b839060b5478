package simchain

import (
	"errors"
	"fmt"
)

// Revert aborts the current action with a ledger-visible reason.
// The whole action is rolled back and surfaces as ledger.ErrCodeRejected.
type Revert struct {
	Reason string
}

// Error implements the error interface.
func (r *Revert) Error() string {
	return fmt.Sprintf("reverted: %s", r.Reason)
}

// Reverted returns a *Revert with the given reason.
func Reverted(reason string) error {
	return &Revert{Reason: reason}
}

// Require returns a *Revert with reason unless cond holds.
func Require(cond bool, reason string) error {
	if cond {
		return nil
	}
	return &Revert{Reason: reason}
}

// IsRevert reports whether err is (or wraps) a *Revert and returns its reason.
func IsRevert(err error) (string, bool) {
	var r *Revert
	if errors.As(err, &r) {
		return r.Reason, true
	}
	return "", false
}
