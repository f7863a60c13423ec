package chathub_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"roomsync/backend/internal/chathub"
	"roomsync/backend/internal/models"
	"roomsync/backend/internal/storage"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStore is a testify mock of storage.Store.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) LoadOrCreateRoom(ctx context.Context, roomID string) (*models.Room, error) {
	args := m.Called(ctx, roomID)
	if fn, ok := args.Get(0).(func(context.Context, string) (*models.Room, error)); ok {
		return fn(ctx, roomID)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Room), args.Error(1)
}

func (m *MockStore) SaveRoom(ctx context.Context, room *models.Room) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func (m *MockStore) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Room), args.Error(1)
}

func (m *MockStore) DeleteRoom(ctx context.Context, roomID string) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

func (m *MockStore) DeleteStaleRooms(ctx context.Context, cutoff time.Time, keep []string) ([]string, error) {
	args := m.Called(ctx, cutoff, keep)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStore) ResetParticipants(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// mockClient is an in-memory chathub.Client that records what the hub sends it.
type mockClient struct {
	connID string
	send   chan models.OutboundEvent
	closed atomic.Bool
}

func newMockClient(connID string) *mockClient {
	return newMockClientWithBuffer(connID, 64)
}

func newMockClientWithBuffer(connID string, size int) *mockClient {
	return &mockClient{connID: connID, send: make(chan models.OutboundEvent, size)}
}

func (c *mockClient) GetConnID() string                           { return c.connID }
func (c *mockClient) GetSendChannel() chan<- models.OutboundEvent { return c.send }
func (c *mockClient) Run()                                        {}
func (c *mockClient) Close()                                      { c.closed.Store(true) }

const eventTimeout = 2 * time.Second

// expectEvent skips other events until one named event arrives.
func expectEvent(t *testing.T, c *mockClient, event string) models.OutboundEvent {
	t.Helper()
	deadline := time.After(eventTimeout)
	for {
		select {
		case ev := <-c.send:
			if ev.Event == event {
				return ev
			}
		case <-deadline:
			require.FailNowf(t, "event not received", "%s did not receive %q", c.connID, event)
			return models.OutboundEvent{}
		}
	}
}

// nextEvent returns whatever c receives next.
func nextEvent(t *testing.T, c *mockClient) models.OutboundEvent {
	t.Helper()
	select {
	case ev := <-c.send:
		return ev
	case <-time.After(eventTimeout):
		require.FailNowf(t, "event not received", "%s received nothing", c.connID)
		return models.OutboundEvent{}
	}
}

// assertNoEvent fails if the named event arrives within wait. An empty name matches any event.
func assertNoEvent(t *testing.T, c *mockClient, event string, wait time.Duration) {
	t.Helper()
	deadline := time.After(wait)
	for {
		select {
		case ev := <-c.send:
			if event == "" || ev.Event == event {
				t.Errorf("%s unexpectedly received %q: %+v", c.connID, ev.Event, ev.Data)
				return
			}
		case <-deadline:
			return
		}
	}
}

// drain discards everything already queued for c.
func drain(c *mockClient) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}

func testOptions() chathub.Options {
	return chathub.Options{
		DebounceWindow:    50 * time.Millisecond,
		MaxDebounceDelay:  time.Second,
		SweepInterval:     time.Hour,
		RoomRetention:     24 * time.Hour,
		StoreTimeout:      time.Second,
		VideoRoomCapacity: 2,
		TextRoomCapacity:  0,
	}
}

// startHub runs a hub until the test ends.
func startHub(t *testing.T, store storage.Store, opts chathub.Options) *chathub.ManagerService {
	t.Helper()
	hub := chathub.NewManagerService(store, opts)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return hub
}

func connect(t *testing.T, hub *chathub.ManagerService, connID string) *mockClient {
	t.Helper()
	c := newMockClient(connID)
	require.True(t, hub.Register(c))
	ev := expectEvent(t, c, models.EventConnected)
	require.Equal(t, models.ConnectedPayload{ConnID: connID}, ev.Data)
	return c
}

func emit(hub *chathub.ManagerService, connID string, ev chathub.Event) {
	hub.IncomingCh <- chathub.Inbound{ConnID: connID, Event: ev}
}

// emptyRoom makes LoadOrCreateRoom return a fresh record for any room id.
func emptyRoom(store *MockStore) {
	store.On("LoadOrCreateRoom", mock.Anything, mock.AnythingOfType("string")).
		Return(func(_ context.Context, roomID string) (*models.Room, error) {
			return &models.Room{RoomID: roomID}, nil
		}).Maybe()
}

// acceptWrites lets any SaveRoom succeed. Joins and leaves persist the roster,
// so tests that are not about writes register it after their own expectations.
func acceptWrites(store *MockStore) {
	store.On("SaveRoom", mock.Anything, mock.Anything).Return(nil).Maybe()
}
