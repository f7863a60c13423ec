package chathub

import (
	"context"
	"errors"
	"maps"
	"slices"
	"time"

	"roomsync/backend/internal/models"

	"github.com/rs/zerolog/log"
)

// pendingWrite is the debounce handle of one text room. Only the newest
// generation may flush; older timer callbacks find a stale gen and return.
type pendingWrite struct {
	timer   *time.Timer
	gen     uint64
	firstAt time.Time
}

// handleJoinRoom додає з'єднання до текстової кімнати та надсилає йому поточний текст.
// Відхилений вхід не чіпає кімнату, в якій з'єднання вже перебуває.
func (m *ManagerService) handleJoinRoom(connID string, ev JoinRoom) {
	// 1. Місткість і тип перевіряємо до того, як покинути попередню кімнату
	switch err := m.registry.Admits(ev.RoomID, connID, KindText, m.opts.TextRoomCapacity); {
	case errors.Is(err, ErrRoomFull):
		m.send(connID, models.EventRoomFull, nil)
		return
	case errors.Is(err, ErrRoomKindMismatch):
		m.sendError(connID, codeRoomKindMismatch, err)
		return
	}

	// 2. Одне з'єднання редагує лише один документ
	for _, roomID := range m.registry.RoomsOf(connID) {
		if sess, ok := m.registry.Get(roomID); ok && sess.Kind == KindText && roomID != ev.RoomID {
			m.leaveRoom(connID, roomID, false)
		}
	}

	// 3. Реєструємо учасника
	sess, added, err := m.registry.Join(ev.RoomID, connID, ev.UserID, KindText, m.opts.TextRoomCapacity)
	if err != nil {
		log.Error().Err(err).Str("module", "chathub").Str("conn", connID).Str("room", ev.RoomID).Msg("join rejected after admission check")
		return
	}

	if added {
		m.rosterChanged(ev.RoomID, sess)
		m.broadcast(sess, models.EventViewerUpdate, sess.Count(), "")
		log.Debug().Str("module", "chathub").Str("conn", connID).Str("room", ev.RoomID).Int("viewers", sess.Count()).Msg("joined text room")
	}

	// 4. Текст з кешу, інакше чекаємо на завантаження зі сховища
	if entry, ok := m.cache.Get(ev.RoomID); ok {
		m.send(connID, models.EventTextUpdate, entry.Text)
		return
	}

	m.awaitLoad(ev.RoomID, connID)
}

// rosterChanged переносить новий склад текстової кімнати в кеш і планує запис
// так само, як для правки тексту. Поки кімната ще завантажується, запис планує roomLoaded.
func (m *ManagerService) rosterChanged(roomID string, sess *Session) {
	if _, ok := m.cache.Get(roomID); !ok {
		return
	}
	m.cache.SetRoster(roomID, sess.Identities(), m.now())
	m.scheduleWrite(roomID)
}

// awaitLoad parks connID until the room's text is loaded. One load runs per room.
func (m *ManagerService) awaitLoad(roomID, connID string) {
	waiting, loading := m.waiters[roomID]
	if slices.Contains(waiting, connID) {
		return
	}
	m.waiters[roomID] = append(waiting, connID)
	if loading {
		return
	}

	m.async(func(ctx context.Context) func() {
		room, err := m.Storage.LoadOrCreateRoom(ctx, roomID)
		return func() { m.roomLoaded(roomID, room, err) }
	})
}

func (m *ManagerService) roomLoaded(roomID string, room *models.Room, err error) {
	waiting := m.waiters[roomID]
	delete(m.waiters, roomID)
	sess, live := m.registry.Get(roomID)

	if err != nil {
		log.Error().Err(err).Str("module", "chathub").Str("room", roomID).Msg("failed to load room")
		for _, connID := range waiting {
			if live && sess.Has(connID) {
				m.sendError(connID, codeStoreUnavailable, err)
			}
		}
		return
	}

	// edits that arrived during the load are newer than the stored text
	entry, ok := m.cache.Get(roomID)
	if !ok {
		var roster []string
		if live && sess.Kind == KindText {
			roster = sess.Identities()
		}
		entry = m.cache.Put(roomID, room.Text, roster, m.now())
		// склад змінився, поки кімната завантажувалась
		if len(roster) > 0 || !slices.Equal(roster, room.Participants) {
			m.scheduleWrite(roomID)
		}
	}

	for _, connID := range waiting {
		if live && sess.Has(connID) {
			m.send(connID, models.EventTextUpdate, entry.Text)
		}
	}
}

func (m *ManagerService) handleTextChange(connID string, ev TextChange) {
	sess, ok := m.registry.Member(ev.RoomID, connID)
	if !ok || sess.Kind != KindText {
		log.Debug().Str("module", "chathub").Str("conn", connID).Str("room", ev.RoomID).Msg("text-change from non-member ignored")
		return
	}

	m.cache.SetText(ev.RoomID, ev.Text, sess.Identities(), m.now())
	m.broadcast(sess, models.EventTextUpdate, ev.Text, connID)
	m.scheduleWrite(ev.RoomID)
}

// scheduleWrite (re)arms the room's debounce timer. Each call pushes the
// flush back by one window, but never past MaxDebounceDelay after the first
// unflushed edit.
func (m *ManagerService) scheduleWrite(roomID string) {
	now := m.now()
	pw, ok := m.pending[roomID]
	if !ok {
		pw = &pendingWrite{firstAt: now}
		m.pending[roomID] = pw
	} else if pw.timer != nil {
		pw.timer.Stop()
	}

	delay := m.opts.DebounceWindow
	if remaining := pw.firstAt.Add(m.opts.MaxDebounceDelay).Sub(now); remaining < delay {
		delay = max(remaining, 0)
	}
	m.armFlush(roomID, pw, delay)
}

func (m *ManagerService) armFlush(roomID string, pw *pendingWrite, delay time.Duration) {
	pw.gen++
	gen := pw.gen
	pw.timer = time.AfterFunc(delay, func() {
		m.post(func() { m.flush(roomID, gen) })
	})
}

func (m *ManagerService) flush(roomID string, gen uint64) {
	pw, ok := m.pending[roomID]
	if !ok || pw.gen != gen {
		return
	}
	if _, busy := m.inflight[roomID]; busy {
		m.armFlush(roomID, pw, m.opts.DebounceWindow)
		return
	}
	delete(m.pending, roomID)

	entry, ok := m.cache.Get(roomID)
	if !ok {
		return
	}
	room := &models.Room{
		RoomID:       roomID,
		Text:         entry.Text,
		Participants: slices.Clone(entry.Roster),
	}

	m.inflight[roomID] = struct{}{}
	m.async(func(ctx context.Context) func() {
		err := m.Storage.SaveRoom(ctx, room)
		return func() { m.writeDone(roomID, err) }
	})
}

func (m *ManagerService) writeDone(roomID string, err error) {
	delete(m.inflight, roomID)
	if err == nil {
		log.Debug().Str("module", "chathub").Str("room", roomID).Msg("room persisted")
		return
	}

	log.Error().Err(err).Str("module", "chathub").Str("room", roomID).Msg("failed to persist room, retrying")
	if _, newer := m.pending[roomID]; !newer {
		m.scheduleWrite(roomID)
	}
}

// flushAll writes every pending room synchronously. Used on shutdown only,
// after the hub loop has stopped and store calls have drained. Rooms whose
// write was in flight are written again since their outcome was never seen.
func (m *ManagerService) flushAll() {
	for _, pw := range m.pending {
		if pw.timer != nil {
			pw.timer.Stop()
		}
	}
	rooms := slices.Collect(maps.Keys(m.pending))
	rooms = append(rooms, slices.Collect(maps.Keys(m.inflight))...)
	slices.Sort(rooms)
	clear(m.pending)
	clear(m.inflight)

	for _, roomID := range slices.Compact(rooms) {
		entry, ok := m.cache.Get(roomID)
		if !ok {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), m.opts.StoreTimeout)
		err := m.Storage.SaveRoom(ctx, &models.Room{
			RoomID:       roomID,
			Text:         entry.Text,
			Participants: slices.Clone(entry.Roster),
		})
		cancel()
		if err != nil {
			log.Error().Err(err).Str("module", "chathub").Str("room", roomID).Msg("failed to flush room on shutdown")
		}
	}
}
