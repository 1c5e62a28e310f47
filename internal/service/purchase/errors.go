package purchase

import "errors"

var (
	ErrEventNotFound = errors.New("event not found")
	ErrInvalidWallet = errors.New("invalid wallet address")
	ErrNoValidKey    = errors.New("wallet holds no valid key for this lock")
	ErrNoPaymentPath = errors.New("no payment path available for this event")
)
