package chathub

import (
	"errors"
	"slices"
	"time"

	"roomsync/backend/internal/models"
)

// RoomKind is fixed by the first join of a room id.
type RoomKind string

const (
	KindText  RoomKind = "text"
	KindVideo RoomKind = "video"
)

// Session is the live state of one room: who is in it, who is typing and,
// for video rooms, the chat log. Only the hub goroutine touches it.
type Session struct {
	ID   string
	Kind RoomKind

	members map[string]*models.Participant
	order   []string // conn ids in join order
	typing  map[string]struct{}

	messages  []models.ChatMessage
	lastMsgID uint64
}

func newSession(id string, kind RoomKind) *Session {
	return &Session{
		ID:      id,
		Kind:    kind,
		members: make(map[string]*models.Participant),
		typing:  make(map[string]struct{}),
	}
}

func (s *Session) Count() int { return len(s.order) }

func (s *Session) Has(connID string) bool {
	_, ok := s.members[connID]
	return ok
}

func (s *Session) Participant(connID string) (*models.Participant, bool) {
	p, ok := s.members[connID]
	return p, ok
}

// ConnIDs returns the members' connection ids in join order.
func (s *Session) ConnIDs() []string {
	return slices.Clone(s.order)
}

// Roster returns a copy of every participant in join order.
func (s *Session) Roster() []models.Participant {
	out := make([]models.Participant, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.members[id])
	}
	return out
}

// Identities returns each member's identity in join order.
func (s *Session) Identities() []string {
	out := make([]string, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.members[id].Identity())
	}
	return out
}

// SetTyping reports whether the typing set changed. Non-members are never added.
func (s *Session) SetTyping(connID string, typing bool) bool {
	if !s.Has(connID) {
		return false
	}
	_, was := s.typing[connID]
	if was == typing {
		return false
	}
	if typing {
		s.typing[connID] = struct{}{}
	} else {
		delete(s.typing, connID)
	}
	return true
}

func (s *Session) IsTyping(connID string) bool {
	_, ok := s.typing[connID]
	return ok
}

// TypingIdentities lists typing members in join order.
func (s *Session) TypingIdentities() []string {
	out := make([]string, 0, len(s.typing))
	for _, id := range s.order {
		if _, ok := s.typing[id]; ok {
			out = append(out, s.members[id].Identity())
		}
	}
	return out
}

func (s *Session) AppendMessage(senderID, text string, at time.Time) models.ChatMessage {
	s.lastMsgID++
	msg := models.ChatMessage{
		ID:       s.lastMsgID,
		RoomID:   s.ID,
		SenderID: senderID,
		Text:     text,
		SentAt:   at,
	}
	s.messages = append(s.messages, msg)
	return msg
}

func (s *Session) Messages() []models.ChatMessage {
	return slices.Clone(s.messages)
}

// Departure describes a participant that just left a room.
type Departure struct {
	Session     *Session
	Participant models.Participant
	WasTyping   bool
}

// Emptied reports whether the departure left the room without members.
// Emptied sessions are already gone from the registry.
func (d Departure) Emptied() bool {
	return d.Session.Count() == 0
}

// Registry maps room ids to live sessions and connections to the rooms they are in.
type Registry struct {
	rooms  map[string]*Session
	byConn map[string]map[string]struct{}
	now    func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:  make(map[string]*Session),
		byConn: make(map[string]map[string]struct{}),
		now:    time.Now,
	}
}

// Admits перевіряє, чи може connID увійти до кімнати, нічого не змінюючи.
// Повертає ErrRoomKindMismatch або ErrRoomFull; nil для вже присутнього учасника.
func (r *Registry) Admits(roomID, connID string, kind RoomKind, capacity int) error {
	sess, exists := r.rooms[roomID]
	switch {
	case !exists:
		return nil
	case sess.Kind != kind:
		return ErrRoomKindMismatch
	case sess.Has(connID):
		return nil
	case capacity > 0 && sess.Count() >= capacity:
		return ErrRoomFull
	}
	return nil
}

// Join adds connID to the room, creating the session on first use.
// added is false when the connection was already a member. A capacity of 0
// means unbounded. A rejected join leaves the registry untouched.
func (r *Registry) Join(roomID, connID, userID string, kind RoomKind, capacity int) (sess *Session, added bool, err error) {
	if err := r.Admits(roomID, connID, kind, capacity); err != nil {
		if errors.Is(err, ErrRoomFull) {
			return r.rooms[roomID], false, err
		}
		return nil, false, err
	}
	sess, exists := r.rooms[roomID]
	if exists && sess.Has(connID) {
		return sess, false, nil
	}
	if !exists {
		sess = newSession(roomID, kind)
		r.rooms[roomID] = sess
	}

	sess.members[connID] = &models.Participant{
		ConnID:   connID,
		UserID:   userID,
		JoinedAt: r.now(),
	}
	sess.order = append(sess.order, connID)

	rooms, ok := r.byConn[connID]
	if !ok {
		rooms = make(map[string]struct{})
		r.byConn[connID] = rooms
	}
	rooms[roomID] = struct{}{}
	return sess, true, nil
}

// Leave removes connID from the room and drops the session once it is empty.
func (r *Registry) Leave(roomID, connID string) (Departure, bool) {
	sess, ok := r.rooms[roomID]
	if !ok {
		return Departure{}, false
	}
	p, ok := sess.members[connID]
	if !ok {
		return Departure{}, false
	}

	d := Departure{Session: sess, Participant: *p, WasTyping: sess.IsTyping(connID)}
	delete(sess.members, connID)
	delete(sess.typing, connID)
	sess.order = slices.DeleteFunc(sess.order, func(id string) bool { return id == connID })

	if rooms, ok := r.byConn[connID]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(r.byConn, connID)
		}
	}
	if sess.Count() == 0 {
		delete(r.rooms, roomID)
	}
	return d, true
}

func (r *Registry) Get(roomID string) (*Session, bool) {
	s, ok := r.rooms[roomID]
	return s, ok
}

// RoomsOf returns the ids of every room connID is in, sorted.
func (r *Registry) RoomsOf(connID string) []string {
	rooms := r.byConn[connID]
	out := make([]string, 0, len(rooms))
	for id := range rooms {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Member returns the session only when connID belongs to it.
func (r *Registry) Member(roomID, connID string) (*Session, bool) {
	s, ok := r.rooms[roomID]
	if !ok || !s.Has(connID) {
		return nil, false
	}
	return s, true
}

func (r *Registry) LiveRoomIDs() []string {
	out := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
