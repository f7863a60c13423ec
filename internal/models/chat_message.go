package models

import "time"

// ChatMessage is one entry of a video room's chat log.
// Messages are immutable and are kept in memory for the life of the room.
type ChatMessage struct {
	// ID is a per-room sequence number starting at 1.
	ID uint64 `json:"id"`
	// RoomID is the room the message was posted to.
	RoomID string `json:"roomId"`
	// SenderID is the identity of the posting participant.
	SenderID string `json:"senderId"`
	// Text is the message body.
	Text string `json:"text"`
	// SentAt is the server-side receive time.
	SentAt time.Time `json:"sentAt"`
}
