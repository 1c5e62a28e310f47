package payments

import "errors"

var (
	ErrEventNotFound       = errors.New("event not found")
	ErrFiatUnavailable     = errors.New("event does not accept fiat payment")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrNotPaid             = errors.New("transaction is not a settled payment")
)
