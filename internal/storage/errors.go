package storage

import "errors"

var (
	// ErrStoreUnavailable wraps every database failure surfaced to callers.
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrRoomNotFound     = errors.New("room not found")
)
