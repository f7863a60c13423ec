package models

import "time"

// MediaState is the set of media flags a participant advertises to the room.
type MediaState struct {
	Muted         bool `json:"muted"`
	VideoOff      bool `json:"videoOff"`
	ScreenSharing bool `json:"screenSharing"`
}

// MediaPatch is a partial MediaState; nil fields are left untouched by Apply.
type MediaPatch struct {
	Muted         *bool `json:"muted,omitempty"`
	VideoOff      *bool `json:"videoOff,omitempty"`
	ScreenSharing *bool `json:"screenSharing,omitempty"`
}

// Apply merges the non-nil fields of p into s and reports whether s changed.
func (s *MediaState) Apply(p MediaPatch) bool {
	before := *s
	if p.Muted != nil {
		s.Muted = *p.Muted
	}
	if p.VideoOff != nil {
		s.VideoOff = *p.VideoOff
	}
	if p.ScreenSharing != nil {
		s.ScreenSharing = *p.ScreenSharing
	}
	return before != *s
}

// Participant is one connection's membership in a room.
// It lives only as long as the connection stays in the room.
type Participant struct {
	// ConnID is the gateway-assigned connection identity.
	ConnID string `json:"connId"`
	// UserID is supplied by the client and is not verified.
	UserID string `json:"userId"`
	// Media is the participant's current media flags (video rooms).
	Media MediaState `json:"media"`
	// JoinedAt is when the connection entered the room.
	JoinedAt time.Time `json:"joinedAt"`
}

// Identity returns the user id when one was supplied, otherwise the connection id.
func (p *Participant) Identity() string {
	if p.UserID != "" {
		return p.UserID
	}
	return p.ConnID
}
