package chathub

import "errors"

var (
	ErrRoomFull         = errors.New("room is full")
	ErrRoomKindMismatch = errors.New("room already exists with a different kind")
	ErrMalformedEvent   = errors.New("malformed event")
	// ErrPeerUnreachable is logged, never sent: relays to a gone peer are dropped.
	ErrPeerUnreachable = errors.New("peer unreachable")
	ErrNotInRoom       = errors.New("connection is not in the room")
)

// Error codes carried by the outbound "error" event.
const (
	codeStoreUnavailable = "store-unavailable"
	codeRoomKindMismatch = "room-kind-mismatch"
)
