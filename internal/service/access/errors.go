package access

import "errors"

var (
	ErrEventNotFound = errors.New("event not found")
	// ErrPendingApproval means the wallet is not on the allow list; a request
	// is now on file and the purchase must not proceed.
	ErrPendingApproval = errors.New("allow list approval pending")
	ErrRequestNotFound = errors.New("allow list request not found")
)
