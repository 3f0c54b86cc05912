package store

import "errors"

var (
	ErrEntryNotFound     = errors.New("waitlist entry not found")
	ErrTableTypeNotFound = errors.New("table type not found")
	ErrCodeNotFound      = errors.New("confirmation code not found")
	ErrInvalidState      = errors.New("invalid entry state")
)
