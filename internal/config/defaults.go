package config

import "time"

const (
	// Text sync
	DefaultDebounceWindow   = 500 * time.Millisecond
	DefaultMaxDebounceDelay = 5 * time.Second

	// Lifecycle
	DefaultSweepInterval = time.Hour
	DefaultRoomRetention = 24 * time.Hour

	// Capacity. Zero means unbounded.
	DefaultVideoRoomCapacity = 2
	DefaultTextRoomCapacity  = 0

	// Store
	DefaultStoreTimeout = 5 * time.Second

	// Gateway
	DefaultReadLimit  = 64 * 1024
	DefaultPingPeriod = 54 * time.Second
	DefaultSendBuffer = 256
)
