package chathub

import (
	"errors"

	"roomsync/backend/internal/models"

	"github.com/rs/zerolog/log"
)

func (m *ManagerService) handleJoinVideoRoom(connID string, ev JoinVideoRoom) {
	sess, added, err := m.registry.Join(ev.RoomID, connID, ev.UserID, KindVideo, m.opts.VideoRoomCapacity)
	switch {
	case errors.Is(err, ErrRoomFull):
		log.Info().Str("module", "chathub").Str("conn", connID).Str("room", ev.RoomID).Msg("video room full")
		m.send(connID, models.EventRoomFull, nil)
		return
	case errors.Is(err, ErrRoomKindMismatch):
		m.sendError(connID, codeRoomKindMismatch, err)
		return
	}

	state := models.RoomStatePayload{Users: sess.Roster(), Messages: sess.Messages()}
	if !added {
		m.send(connID, models.EventRoomState, state)
		return
	}

	p, _ := sess.Participant(connID)
	m.broadcast(sess, models.EventUserConnected, p.Identity(), connID)
	m.send(connID, models.EventRoomState, state)
	m.broadcastVideoRoster(sess)

	log.Debug().Str("module", "chathub").Str("conn", connID).Str("room", ev.RoomID).Int("participants", sess.Count()).Msg("joined video room")
}

// relaySignal forwards an opaque negotiation payload. Targets that are gone
// are dropped without telling the sender.
func (m *ManagerService) relaySignal(connID string, ev Signal) {
	if _, ok := m.Clients[ev.To]; !ok {
		log.Debug().Err(ErrPeerUnreachable).Str("module", "chathub").Str("conn", connID).Str("to", ev.To).Msg("signal dropped")
		return
	}
	m.send(ev.To, models.EventSignal, models.SignalPayload{From: connID, Signal: ev.Signal})
}

// handleMediaState зливає часткові прапорці з поточним станом учасника.
// screenSharing іде тим самим шляхом, що й подія screen-sharing; решта
// розсилається як media-state-update лише тоді, коли щось змінилось.
func (m *ManagerService) handleMediaState(connID string, ev MediaStateChange) {
	sess, ok := m.registry.Member(ev.RoomID, connID)
	if !ok {
		return
	}
	p, _ := sess.Participant(connID)

	patch := ev.State
	sharing := patch.ScreenSharing
	patch.ScreenSharing = nil

	changed := p.Media.Apply(patch)
	if sharing != nil {
		m.setScreenSharing(sess, p, *sharing)
	}
	if !changed {
		return
	}

	m.broadcast(sess, models.EventMediaStateUpdate, models.MediaStatePayload{
		UserID: p.Identity(),
		State:  p.Media,
	}, connID)
}

func (m *ManagerService) handleScreenSharing(connID string, ev ScreenSharing) {
	sess, ok := m.registry.Member(ev.RoomID, connID)
	if !ok {
		m.send(connID, models.EventScreenSharingStatus, models.ScreenSharingStatusPayload{
			Success:   false,
			IsSharing: ev.IsSharing,
			Error:     ErrNotInRoom.Error(),
		})
		return
	}

	p, _ := sess.Participant(connID)
	m.setScreenSharing(sess, p, ev.IsSharing)
	m.send(connID, models.EventScreenSharingStatus, models.ScreenSharingStatusPayload{
		Success:   true,
		IsSharing: ev.IsSharing,
	})
}

// setScreenSharing broadcasts screen-sharing to the whole room only on a change.
func (m *ManagerService) setScreenSharing(sess *Session, p *models.Participant, sharing bool) {
	if p.Media.ScreenSharing == sharing {
		return
	}
	p.Media.ScreenSharing = sharing
	m.broadcast(sess, models.EventScreenSharing, models.ScreenSharingPayload{
		UserID:    p.Identity(),
		IsSharing: sharing,
	}, "")
}

func (m *ManagerService) handleSpeaking(connID string, ev Speaking) {
	sess, ok := m.registry.Member(ev.RoomID, connID)
	if !ok {
		return
	}
	p, _ := sess.Participant(connID)
	m.broadcast(sess, models.EventUserSpeaking, models.SpeakingPayload{
		UserID:     p.Identity(),
		IsSpeaking: ev.IsSpeaking,
	}, connID)
}

func (m *ManagerService) handleSendMessage(connID string, ev SendMessage) {
	sess, ok := m.registry.Member(ev.RoomID, connID)
	if !ok {
		return
	}
	p, _ := sess.Participant(connID)
	msg := sess.AppendMessage(p.Identity(), ev.Message, m.now())
	m.broadcast(sess, models.EventNewMessage, msg, "")
}
