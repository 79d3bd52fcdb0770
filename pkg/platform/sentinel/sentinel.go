package sentinel

import "errors"

// Infrastructure facts returned (optionally wrapped) by stores and adapters.
// Services translate them into pkg/domain-errors codes:
// - ErrNotFound: record, session or blob does not exist
// - ErrConflict: unique key already taken, or a step already staged
// - ErrExpired: session TTL elapsed
// - ErrInvalidState: session is not in a state that allows the operation
// - ErrUnavailable: backend temporarily unreachable; safe to retry
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
