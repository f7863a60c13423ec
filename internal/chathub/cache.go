package chathub

import (
	"slices"
	"time"
)

// CacheEntry is the hot copy of a text room. It may be ahead of the store by
// at most one debounce window.
type CacheEntry struct {
	Text   string
	Roster []string

	LoadedAt  time.Time
	TouchedAt time.Time
	// EmptiedAt is set while the room has no members.
	EmptiedAt time.Time
}

// Cache зберігає стан текстових кімнат між реєстром і сховищем.
// Ним володіє горутина хабу, тому він не захищений від конкурентного доступу.
type Cache struct {
	entries map[string]*CacheEntry
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]*CacheEntry)}
}

func (c *Cache) Get(roomID string) (*CacheEntry, bool) {
	e, ok := c.entries[roomID]
	return e, ok
}

func (c *Cache) Len() int { return len(c.entries) }

// Put installs state loaded from the store.
func (c *Cache) Put(roomID, text string, roster []string, now time.Time) *CacheEntry {
	e := &CacheEntry{
		Text:      text,
		Roster:    slices.Clone(roster),
		LoadedAt:  now,
		TouchedAt: now,
	}
	if len(roster) == 0 {
		e.EmptiedAt = now
	}
	c.entries[roomID] = e
	return e
}

// SetText records an edit, creating the entry if the room was never loaded.
func (c *Cache) SetText(roomID, text string, roster []string, now time.Time) *CacheEntry {
	e, ok := c.entries[roomID]
	if !ok {
		e = c.Put(roomID, text, roster, now)
	}
	e.Text = text
	e.TouchedAt = now
	return e
}

// SetRoster refreshes the roster of an existing entry; it is a no-op for unknown rooms.
func (c *Cache) SetRoster(roomID string, roster []string, now time.Time) {
	e, ok := c.entries[roomID]
	if !ok {
		return
	}
	e.Roster = slices.Clone(roster)
	e.TouchedAt = now
	if len(roster) == 0 {
		if e.EmptiedAt.IsZero() {
			e.EmptiedAt = now
		}
	} else {
		e.EmptiedAt = time.Time{}
	}
}

func (c *Cache) Evict(roomIDs ...string) {
	for _, id := range roomIDs {
		delete(c.entries, id)
	}
}

// IdleSince returns rooms that have been empty since before cutoff.
func (c *Cache) IdleSince(cutoff time.Time) []string {
	var out []string
	for id, e := range c.entries {
		if !e.EmptiedAt.IsZero() && e.EmptiedAt.Before(cutoff) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}
