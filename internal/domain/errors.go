package domain

import "errors"

var (
	ErrNotFound          = errors.New("transaction not found")
	ErrTerminalState     = errors.New("transaction is in a terminal state")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNoOpTransition    = errors.New("transaction already in target status")
	ErrStore             = errors.New("store operation failed")
	ErrVersionConflict   = errors.New("transaction version conflict")
	ErrResourceExhausted = errors.New("export aborted: memory ceiling exceeded")
	ErrDuplicateOrder    = errors.New("duplicate merchant transaction id")
)
