package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrBudgetExceeded = errors.New("budget exceeded")
	ErrEmptyCatalog   = errors.New("catalog returned no contracts")
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrLockHeld       = errors.New("lock already held")
)
