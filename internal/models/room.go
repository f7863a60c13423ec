package models

import "time"

// Room is the durable record of a text collaboration room.
// One row exists per room id; the document text and the last known roster
// are overwritten by every debounced flush.
type Room struct {
	// RoomID is the caller-chosen, globally unique room key.
	RoomID string `gorm:"primaryKey;size:128" json:"roomId"`
	// Text is the full document body as of the last flush.
	Text string `gorm:"type:text;not null" json:"text"`
	// Participants holds the identities present when the room was last flushed.
	// Stored as JSON so the column works the same on postgres and sqlite.
	Participants []string `gorm:"type:text;serializer:json" json:"participants"`
	// CreatedAt is set when the record is first inserted.
	CreatedAt time.Time `json:"createdAt"`
	// UpdatedAt is bumped on every flush; the idle sweep keys on it.
	UpdatedAt time.Time `gorm:"index" json:"updatedAt"`
}

// TableName pins the table name independently of struct renames.
func (Room) TableName() string {
	return "rooms"
}
