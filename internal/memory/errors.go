package memory

import "errors"

var (
	// ErrStoreUnavailable wraps every failure of the backing store.
	ErrStoreUnavailable = errors.New("history store unavailable")
	ErrEmptyTurn        = errors.New("turn content is empty")
	ErrUnknownBackend   = errors.New("unknown memory backend")
)
