package models

import "encoding/json"

// Inbound event names.
const (
	EventJoinRoom      = "join-room"
	EventLeaveRoom     = "leave-room"
	EventTextChange    = "text-change"
	EventStartTyping   = "start-typing"
	EventStopTyping    = "stop-typing"
	EventJoinVideoRoom = "join-video-room"
	EventSignal        = "signal"
	EventMediaState    = "media-state"
	EventScreenSharing = "screen-sharing"
	EventSpeaking      = "speaking"
	EventSendMessage   = "send-message"
	EventHeartbeat     = "heartbeat"
)

// Outbound event names. EventSignal and EventScreenSharing are used in both directions.
const (
	EventConnected           = "connected"
	EventTextUpdate          = "text-update"
	EventViewerUpdate        = "viewer-update"
	EventParticipantCount    = "participant-count"
	EventTypingUpdate        = "typing-update"
	EventUserSpeaking        = "user-speaking"
	EventUserConnected       = "user-connected"
	EventUserDisconnected    = "user-disconnected"
	EventRoomFull            = "room-full"
	EventUsersUpdated        = "users-updated"
	EventRoomState           = "room-state"
	EventMediaStateUpdate    = "media-state-update"
	EventScreenSharingStatus = "screen-sharing-status"
	EventNewMessage          = "new-message"
	EventHeartbeatAck        = "heartbeat-ack"
	EventError               = "error"
)

// Envelope is the frame every client sends: an event name and its raw payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OutboundEvent is what the hub queues on a client's send channel.
type OutboundEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Outbound payloads.
type (
	ConnectedPayload struct {
		ConnID string `json:"connId"`
	}

	TypingPayload struct {
		RoomID  string   `json:"roomId"`
		Count   int      `json:"count"`
		UserIDs []string `json:"userIds"`
	}

	SpeakingPayload struct {
		UserID     string `json:"userId"`
		IsSpeaking bool   `json:"isSpeaking"`
	}

	RoomStatePayload struct {
		Users    []Participant `json:"users"`
		Messages []ChatMessage `json:"messages"`
	}

	MediaStatePayload struct {
		UserID string     `json:"userId"`
		State  MediaState `json:"state"`
	}

	ScreenSharingPayload struct {
		UserID    string `json:"userId"`
		IsSharing bool   `json:"isSharing"`
	}

	ScreenSharingStatusPayload struct {
		Success   bool   `json:"success"`
		IsSharing bool   `json:"isSharing"`
		Error     string `json:"error,omitempty"`
	}

	SignalPayload struct {
		From   string          `json:"from"`
		Signal json.RawMessage `json:"signal"`
	}

	ErrorPayload struct {
		Code    string `json:"code"`
		Message string `json:"message,omitempty"`
	}
)
