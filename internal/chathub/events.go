package chathub

import (
	"bytes"
	"encoding/json"
	"fmt"

	"roomsync/backend/internal/models"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Event is the closed set of inbound events the hub understands.
type Event interface {
	Name() string
}

// Inbound is a decoded event tagged with the connection that sent it.
type Inbound struct {
	ConnID string
	Event  Event
}

// RoomRef is a payload that is only a room id. Clients may send it either as a
// bare JSON string or as {"roomId": "..."}.
type RoomRef struct {
	RoomID string `json:"roomId" validate:"required,max=128"`
}

func (r *RoomRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &r.RoomID)
	}
	type plain RoomRef
	return json.Unmarshal(b, (*plain)(r))
}

type (
	JoinRoom struct {
		RoomID string `json:"roomId" validate:"required,max=128"`
		UserID string `json:"userId" validate:"max=128"`
	}

	LeaveRoom   struct{ RoomRef }
	StartTyping struct{ RoomRef }
	StopTyping  struct{ RoomRef }

	TextChange struct {
		RoomID string `json:"roomId" validate:"required,max=128"`
		Text   string `json:"text"`
	}

	JoinVideoRoom struct {
		RoomID string `json:"roomId" validate:"required,max=128"`
		UserID string `json:"userId" validate:"max=128"`
	}

	Signal struct {
		To     string          `json:"to" validate:"required"`
		Signal json.RawMessage `json:"signal" validate:"required"`
	}

	MediaStateChange struct {
		RoomID string            `json:"roomId" validate:"required,max=128"`
		UserID string            `json:"userId"`
		State  models.MediaPatch `json:"state"`
	}

	ScreenSharing struct {
		RoomID    string `json:"roomId" validate:"required,max=128"`
		UserID    string `json:"userId"`
		IsSharing bool   `json:"isSharing"`
	}

	Speaking struct {
		RoomID     string `json:"roomId" validate:"required,max=128"`
		IsSpeaking bool   `json:"isSpeaking"`
	}

	SendMessage struct {
		RoomID  string `json:"roomId" validate:"required,max=128"`
		Message string `json:"message" validate:"required,max=4096"`
	}

	Heartbeat struct{}
)

// UnmarshalJSON accepts a bare room id string as well as the object form.
func (j *JoinRoom) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &j.RoomID)
	}
	type plain JoinRoom
	return json.Unmarshal(b, (*plain)(j))
}

func (JoinRoom) Name() string         { return models.EventJoinRoom }
func (LeaveRoom) Name() string        { return models.EventLeaveRoom }
func (StartTyping) Name() string      { return models.EventStartTyping }
func (StopTyping) Name() string       { return models.EventStopTyping }
func (TextChange) Name() string       { return models.EventTextChange }
func (JoinVideoRoom) Name() string    { return models.EventJoinVideoRoom }
func (Signal) Name() string           { return models.EventSignal }
func (MediaStateChange) Name() string { return models.EventMediaState }
func (ScreenSharing) Name() string    { return models.EventScreenSharing }
func (Speaking) Name() string         { return models.EventSpeaking }
func (SendMessage) Name() string      { return models.EventSendMessage }
func (Heartbeat) Name() string        { return models.EventHeartbeat }

// DecodeEvent parses one client frame into a typed, validated Event.
// Every failure wraps ErrMalformedEvent.
func DecodeEvent(raw []byte) (Event, error) {
	var env models.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	switch env.Event {
	case models.EventJoinRoom:
		return decodePayload[JoinRoom](env)
	case models.EventLeaveRoom:
		return decodePayload[LeaveRoom](env)
	case models.EventTextChange:
		return decodePayload[TextChange](env)
	case models.EventStartTyping:
		return decodePayload[StartTyping](env)
	case models.EventStopTyping:
		return decodePayload[StopTyping](env)
	case models.EventJoinVideoRoom:
		return decodePayload[JoinVideoRoom](env)
	case models.EventSignal:
		return decodePayload[Signal](env)
	case models.EventMediaState:
		return decodePayload[MediaStateChange](env)
	case models.EventScreenSharing:
		return decodePayload[ScreenSharing](env)
	case models.EventSpeaking:
		return decodePayload[Speaking](env)
	case models.EventSendMessage:
		return decodePayload[SendMessage](env)
	case models.EventHeartbeat:
		return Heartbeat{}, nil
	case "":
		return nil, fmt.Errorf("%w: missing event name", ErrMalformedEvent)
	default:
		return nil, fmt.Errorf("%w: unknown event %q", ErrMalformedEvent, env.Event)
	}
}

func decodePayload[T Event](env models.Envelope) (Event, error) {
	var payload T
	if len(env.Data) == 0 {
		return nil, fmt.Errorf("%w: %s: missing payload", ErrMalformedEvent, env.Event)
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, env.Event, err)
	}
	if err := validate.Struct(payload); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, env.Event, err)
	}
	return payload, nil
}
