package chathub

import (
	"context"
	"errors"
	"sync"
	"time"

	"roomsync/backend/internal/config"
	"roomsync/backend/internal/models"
	"roomsync/backend/internal/storage"

	"github.com/rs/zerolog/log"
)

// ErrHubStopped is returned by calls made after Run has returned.
var ErrHubStopped = errors.New("hub stopped")

// Options tunes the hub's timers and room limits.
type Options struct {
	DebounceWindow    time.Duration
	MaxDebounceDelay  time.Duration
	SweepInterval     time.Duration
	RoomRetention     time.Duration
	StoreTimeout      time.Duration
	VideoRoomCapacity int
	// TextRoomCapacity of 0 leaves text rooms unbounded.
	TextRoomCapacity int
}

func DefaultOptions() Options {
	return Options{
		DebounceWindow:    config.DefaultDebounceWindow,
		MaxDebounceDelay:  config.DefaultMaxDebounceDelay,
		SweepInterval:     config.DefaultSweepInterval,
		RoomRetention:     config.DefaultRoomRetention,
		StoreTimeout:      config.DefaultStoreTimeout,
		VideoRoomCapacity: config.DefaultVideoRoomCapacity,
		TextRoomCapacity:  config.DefaultTextRoomCapacity,
	}
}

// OptionsFromConfig maps loaded configuration onto hub options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		DebounceWindow:    cfg.DebounceWindow,
		MaxDebounceDelay:  cfg.MaxDebounceDelay,
		SweepInterval:     cfg.SweepInterval,
		RoomRetention:     cfg.RoomRetention,
		StoreTimeout:      cfg.StoreTimeout,
		VideoRoomCapacity: cfg.VideoRoomCapacity,
		TextRoomCapacity:  cfg.TextRoomCapacity,
	}
}

// ManagerService це хаб. Єдина горутина (Run) володіє всіма кімнатами, кешем
// та відкладеними записами; решта коду спілкується з нею лише через канали.
type ManagerService struct {
	Clients map[string]Client

	RegisterCh   chan Client
	UnregisterCh chan Client
	IncomingCh   chan Inbound

	// internal carries continuations from store calls and timers back onto the hub goroutine.
	internal chan func()
	done     chan struct{}

	Storage storage.Store
	opts    Options

	registry *Registry
	cache    *Cache
	pending  map[string]*pendingWrite
	inflight map[string]struct{}
	waiters  map[string][]string
	sweeping bool

	// slow collects clients whose send buffer overflowed during the current event.
	slow map[string]Client
	jobs sync.WaitGroup
	now  func() time.Time
}

func NewManagerService(s storage.Store, opts Options) *ManagerService {
	return &ManagerService{
		Clients:      make(map[string]Client),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		IncomingCh:   make(chan Inbound, 256),
		internal:     make(chan func(), 64),
		done:         make(chan struct{}),
		Storage:      s,
		opts:         opts,
		registry:     NewRegistry(),
		cache:        NewCache(),
		pending:      make(map[string]*pendingWrite),
		inflight:     make(map[string]struct{}),
		waiters:      make(map[string][]string),
		slow:         make(map[string]Client),
		now:          time.Now,
	}
}

// Done is closed once the hub has stopped accepting events.
func (m *ManagerService) Done() <-chan struct{} {
	return m.done
}

// Register передає нового клієнта хабу. Повертає false, якщо хаб уже зупинено.
func (m *ManagerService) Register(c Client) bool {
	select {
	case m.RegisterCh <- c:
		return true
	case <-m.done:
		return false
	}
}

// Run обробляє події, доки ctx не скасовано, після чого дописує відкладені зміни.
func (m *ManagerService) Run(ctx context.Context) {
	log.Info().Str("module", "chathub").Msg("hub started")

	ticker := time.NewTicker(m.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			return

		case client := <-m.RegisterCh:
			m.register(client)

		case client := <-m.UnregisterCh:
			if current, ok := m.Clients[client.GetConnID()]; ok && current == client {
				m.disconnect(client)
			}

		case in := <-m.IncomingCh:
			m.dispatch(in)

		case fn := <-m.internal:
			fn()

		case <-ticker.C:
			m.startSweep()
		}

		m.dropSlowClients()
	}
}

func (m *ManagerService) register(c Client) {
	id := c.GetConnID()
	m.Clients[id] = c
	log.Debug().Str("module", "chathub").Str("conn", id).Msg("client registered")
	m.send(id, models.EventConnected, models.ConnectedPayload{ConnID: id})
}

// disconnect спершу прибирає клієнта, щоб до нього більше нічого не маршрутизувалось,
// і лише потім виводить його з кімнат.
func (m *ManagerService) disconnect(c Client) {
	id := c.GetConnID()
	// 1. Більше нічого не надсилаємо цьому з'єднанню
	delete(m.Clients, id)
	delete(m.slow, id)

	// 2. Виходимо з усіх кімнат, решта учасників отримує оновлення
	for _, roomID := range m.registry.RoomsOf(id) {
		m.leaveRoom(id, roomID, false)
	}
	c.Close()
	log.Debug().Str("module", "chathub").Str("conn", id).Msg("client disconnected")
}

func (m *ManagerService) dropSlowClients() {
	for id, c := range m.slow {
		delete(m.slow, id)
		if current, ok := m.Clients[id]; ok && current == c {
			log.Warn().Str("module", "chathub").Str("conn", id).Msg("disconnecting slow consumer")
			m.disconnect(c)
		}
	}
}

func (m *ManagerService) dispatch(in Inbound) {
	if _, ok := m.Clients[in.ConnID]; !ok {
		return
	}

	switch ev := in.Event.(type) {
	case JoinRoom:
		m.handleJoinRoom(in.ConnID, ev)
	case LeaveRoom:
		m.leaveRoom(in.ConnID, ev.RoomID, true)
	case TextChange:
		m.handleTextChange(in.ConnID, ev)
	case StartTyping:
		m.setTyping(in.ConnID, ev.RoomID, true)
	case StopTyping:
		m.setTyping(in.ConnID, ev.RoomID, false)
	case JoinVideoRoom:
		m.handleJoinVideoRoom(in.ConnID, ev)
	case Signal:
		m.relaySignal(in.ConnID, ev)
	case MediaStateChange:
		m.handleMediaState(in.ConnID, ev)
	case ScreenSharing:
		m.handleScreenSharing(in.ConnID, ev)
	case Speaking:
		m.handleSpeaking(in.ConnID, ev)
	case SendMessage:
		m.handleSendMessage(in.ConnID, ev)
	case Heartbeat:
		m.send(in.ConnID, models.EventHeartbeatAck, nil)
	default:
		log.Warn().Str("module", "chathub").Str("conn", in.ConnID).Msgf("unhandled event %T", in.Event)
	}
}

// send ставить подію в чергу без блокування. Переповнений буфер позначає клієнта як повільного.
func (m *ManagerService) send(connID, event string, data any) bool {
	c, ok := m.Clients[connID]
	if !ok {
		return false
	}
	if _, isSlow := m.slow[connID]; isSlow {
		return false
	}

	select {
	case c.GetSendChannel() <- models.OutboundEvent{Event: event, Data: data}:
		return true
	default:
		m.slow[connID] = c
		return false
	}
}

func (m *ManagerService) broadcast(sess *Session, event string, data any, except string) {
	for _, id := range sess.ConnIDs() {
		if id == except {
			continue
		}
		m.send(id, event, data)
	}
}

func (m *ManagerService) sendError(connID, code string, err error) {
	m.send(connID, models.EventError, models.ErrorPayload{Code: code, Message: err.Error()})
}

// post schedules fn on the hub goroutine. It is dropped once the hub has stopped.
func (m *ManagerService) post(fn func()) {
	select {
	case m.internal <- fn:
	case <-m.done:
	}
}

// async виконує виклик сховища поза горутиною хабу і повертає продовження через post.
func (m *ManagerService) async(call func(ctx context.Context) func()) {
	m.jobs.Add(1)
	go func() {
		defer m.jobs.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.opts.StoreTimeout)
		defer cancel()
		m.post(call(ctx))
	}()
}

// call runs fn on the hub goroutine and waits for it.
func (m *ManagerService) call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		fn()
		close(finished)
	}

	select {
	case m.internal <- wrapped:
	case <-m.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-m.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats is a point-in-time view of hub load.
type Stats struct {
	Connections   int `json:"connections"`
	LiveRooms     int `json:"liveRooms"`
	CachedRooms   int `json:"cachedRooms"`
	PendingWrites int `json:"pendingWrites"`
}

func (m *ManagerService) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := m.call(ctx, func() {
		s = Stats{
			Connections:   len(m.Clients),
			LiveRooms:     len(m.registry.rooms),
			CachedRooms:   m.cache.Len(),
			PendingWrites: len(m.pending) + len(m.inflight),
		}
	})
	return s, err
}

// RoomSnapshot is a copy of one room's live and cached state.
type RoomSnapshot struct {
	RoomID       string               `json:"roomId"`
	Kind         RoomKind             `json:"kind,omitempty"`
	Participants []models.Participant `json:"participants"`
	Typing       []string             `json:"typing"`
	Text         string               `json:"text,omitempty"`
	Cached       bool                 `json:"cached"`
	WritePending bool                 `json:"writePending"`
}

// Room reports false when the room is neither live nor cached.
func (m *ManagerService) Room(ctx context.Context, roomID string) (RoomSnapshot, bool, error) {
	var (
		snap  RoomSnapshot
		found bool
	)
	err := m.call(ctx, func() {
		snap.RoomID = roomID
		snap.Participants = []models.Participant{}
		snap.Typing = []string{}
		if sess, ok := m.registry.Get(roomID); ok {
			found = true
			snap.Kind = sess.Kind
			snap.Participants = sess.Roster()
			snap.Typing = sess.TypingIdentities()
		}
		if e, ok := m.cache.Get(roomID); ok {
			found = true
			snap.Cached = true
			snap.Text = e.Text
			if snap.Kind == "" {
				snap.Kind = KindText
			}
		}
		_, pending := m.pending[roomID]
		_, inflight := m.inflight[roomID]
		snap.WritePending = pending || inflight
	})
	return snap, found, err
}
