package repository

import "errors"

var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrTerminal    = errors.New("transaction already terminal")
	ErrAlreadySent = errors.New("already sent")
)
