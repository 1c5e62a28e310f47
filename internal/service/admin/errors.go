package admin

import "errors"

var (
	ErrInvalidEvent          = errors.New("invalid event")
	ErrInvalidPaymentMethods = errors.New("invalid payment methods")
)
