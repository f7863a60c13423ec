package chathub

import (
	"slices"

	"roomsync/backend/internal/models"

	"github.com/rs/zerolog/log"
)

func (m *ManagerService) setTyping(connID, roomID string, typing bool) {
	sess, ok := m.registry.Member(roomID, connID)
	if !ok {
		return
	}
	if sess.SetTyping(connID, typing) {
		m.broadcastTyping(sess)
	}
}

func (m *ManagerService) broadcastTyping(sess *Session) {
	ids := sess.TypingIdentities()
	m.broadcast(sess, models.EventTypingUpdate, models.TypingPayload{
		RoomID:  sess.ID,
		Count:   len(ids),
		UserIDs: ids,
	}, "")
}

// leaveRoom виводить connID з кімнати та повідомляє тих, хто залишився.
// Явний вихід (leave-room) також надсилає новий склад тому, хто вийшов.
func (m *ManagerService) leaveRoom(connID, roomID string, explicit bool) {
	if w, ok := m.waiters[roomID]; ok {
		m.waiters[roomID] = slices.DeleteFunc(w, func(id string) bool { return id == connID })
	}

	d, ok := m.registry.Leave(roomID, connID)
	if !ok {
		return
	}
	sess := d.Session

	if d.WasTyping {
		m.broadcastTyping(sess)
	}

	switch sess.Kind {
	case KindText:
		m.rosterChanged(roomID, sess)
		m.broadcast(sess, models.EventViewerUpdate, sess.Count(), "")
		if explicit {
			m.send(connID, models.EventViewerUpdate, sess.Count())
		}

	case KindVideo:
		m.broadcast(sess, models.EventUserDisconnected, d.Participant.Identity(), "")
		m.broadcastVideoRoster(sess)
		if explicit {
			m.send(connID, models.EventUsersUpdated, sess.Roster())
			m.send(connID, models.EventParticipantCount, sess.Count())
		}
		if d.Emptied() {
			log.Debug().Str("module", "chathub").Str("room", roomID).Msg("video room closed")
		}
	}

	log.Debug().Str("module", "chathub").Str("conn", connID).Str("room", roomID).Int("remaining", sess.Count()).Msg("left room")
}

func (m *ManagerService) broadcastVideoRoster(sess *Session) {
	m.broadcast(sess, models.EventUsersUpdated, sess.Roster(), "")
	m.broadcast(sess, models.EventParticipantCount, sess.Count(), "")
}
