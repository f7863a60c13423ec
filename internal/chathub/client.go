package chathub

import "roomsync/backend/internal/models"

// Client is one live connection as seen by the hub.
// It abstracts the transport so the hub can be driven by websockets in
// production and by in-memory fakes in tests.
type Client interface {
	// GetConnID returns the gateway-assigned connection identity.
	GetConnID() string

	// GetSendChannel returns the channel the hub queues outbound events on.
	// The hub never blocks on it: a full channel marks the client as a slow consumer.
	GetSendChannel() chan<- models.OutboundEvent

	// Run starts the client's read and write pumps.
	Run()
	// Close releases the connection. It is safe to call more than once.
	Close()
}
