package pricing

import "errors"

var (
	ErrEventNotFound  = errors.New("event not found")
	ErrNoLock         = errors.New("event has no lock deployed")
	ErrNotLockManager = errors.New("caller is not a lock manager")
)
