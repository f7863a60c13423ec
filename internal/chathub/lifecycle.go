package chathub

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/rs/zerolog/log"
)

// startSweep видаляє кімнати, що простоюють довше за вікно зберігання.
// Одночасно працює не більше одного прибирання; невдале повторюється на наступному тіку.
func (m *ManagerService) startSweep() {
	if m.sweeping {
		return
	}
	m.sweeping = true

	// 1. Межі: що вважати застарілим у сховищі і що простоює в кеші
	now := m.now()
	cutoff := now.Add(-m.opts.RoomRetention)
	idleCutoff := now.Add(-m.opts.SweepInterval)
	// 2. Живі кімнати та кімнати з незаписаними змінами не чіпаємо
	keep := m.protectedRooms()

	m.async(func(ctx context.Context) func() {
		deleted, err := m.Storage.DeleteStaleRooms(ctx, cutoff, keep)
		return func() { m.sweepDone(deleted, err, idleCutoff) }
	})
}

// protectedRooms are rooms the sweep must not touch: live ones and ones with
// unflushed or in-flight writes.
func (m *ManagerService) protectedRooms() []string {
	keep := m.registry.LiveRoomIDs()
	keep = append(keep, slices.Collect(maps.Keys(m.pending))...)
	keep = append(keep, slices.Collect(maps.Keys(m.inflight))...)
	slices.Sort(keep)
	return slices.Compact(keep)
}

func (m *ManagerService) isProtected(roomID string) bool {
	if _, ok := m.registry.Get(roomID); ok {
		return true
	}
	if _, ok := m.pending[roomID]; ok {
		return true
	}
	_, ok := m.inflight[roomID]
	return ok
}

func (m *ManagerService) sweepDone(deleted []string, err error, idleCutoff time.Time) {
	m.sweeping = false
	if err != nil {
		log.Error().Err(err).Str("module", "chathub").Msg("room sweep failed")
	}

	evicted := 0
	for _, roomID := range append(deleted, m.cache.IdleSince(idleCutoff)...) {
		if m.isProtected(roomID) {
			continue
		}
		if _, ok := m.cache.Get(roomID); ok {
			m.cache.Evict(roomID)
			evicted++
		}
	}

	log.Info().Str("module", "chathub").Int("deleted", len(deleted)).Int("evicted", evicted).Msg("room sweep finished")
}

// shutdown зупиняє маршрутизацію, чекає на незавершені виклики сховища,
// записує всі відкладені зміни і лише тоді закриває з'єднання.
func (m *ManagerService) shutdown() {
	log.Info().Str("module", "chathub").Int("pending", len(m.pending)).Msg("hub stopping, flushing pending writes")

	close(m.done)
	m.jobs.Wait()
	m.flushAll()

	for id, c := range m.Clients {
		delete(m.Clients, id)
		c.Close()
	}
	log.Info().Str("module", "chathub").Msg("hub stopped")
}
