package chathub_test

import (
	"testing"

	"roomsync/backend/internal/chathub"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want chathub.Event
	}{
		{
			name: "join-room with bare room id",
			raw:  `{"event":"join-room","data":"abcd"}`,
			want: chathub.JoinRoom{RoomID: "abcd"},
		},
		{
			name: "join-room object",
			raw:  `{"event":"join-room","data":{"roomId":"abcd","userId":"alice"}}`,
			want: chathub.JoinRoom{RoomID: "abcd", UserID: "alice"},
		},
		{
			name: "start-typing with bare room id",
			raw:  `{"event":"start-typing","data":"abcd"}`,
			want: chathub.StartTyping{RoomRef: chathub.RoomRef{RoomID: "abcd"}},
		},
		{
			name: "stop-typing object",
			raw:  `{"event":"stop-typing","data":{"roomId":"abcd"}}`,
			want: chathub.StopTyping{RoomRef: chathub.RoomRef{RoomID: "abcd"}},
		},
		{
			name: "text-change allows empty text",
			raw:  `{"event":"text-change","data":{"roomId":"abcd","text":""}}`,
			want: chathub.TextChange{RoomID: "abcd"},
		},
		{
			name: "screen-sharing",
			raw:  `{"event":"screen-sharing","data":{"roomId":"vr","userId":"alice","isSharing":true}}`,
			want: chathub.ScreenSharing{RoomID: "vr", UserID: "alice", IsSharing: true},
		},
		{
			name: "heartbeat without payload",
			raw:  `{"event":"heartbeat"}`,
			want: chathub.Heartbeat{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := chathub.DecodeEvent([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeEvent_SignalPayloadIsKeptVerbatim(t *testing.T) {
	raw := `{"event":"signal","data":{"to":"conn-B","signal":{"type":"answer","sdp":"v=0","candidates":[1,2]}}}`

	ev, err := chathub.DecodeEvent([]byte(raw))
	require.NoError(t, err)

	sig, ok := ev.(chathub.Signal)
	require.True(t, ok)
	assert.Equal(t, "conn-B", sig.To)
	assert.JSONEq(t, `{"type":"answer","sdp":"v=0","candidates":[1,2]}`, string(sig.Signal))
}

func TestDecodeEvent_MediaStatePatch(t *testing.T) {
	ev, err := chathub.DecodeEvent([]byte(`{"event":"media-state","data":{"roomId":"vr","state":{"muted":true}}}`))
	require.NoError(t, err)

	change := ev.(chathub.MediaStateChange)
	require.NotNil(t, change.State.Muted)
	assert.True(t, *change.State.Muted)
	assert.Nil(t, change.State.VideoOff)
}

func TestDecodeEvent_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `hello`},
		{"missing event", `{"data":"abcd"}`},
		{"unknown event", `{"event":"launch-missiles","data":{}}`},
		{"join-room without payload", `{"event":"join-room"}`},
		{"join-room empty id", `{"event":"join-room","data":""}`},
		{"join-room wrong type", `{"event":"join-room","data":42}`},
		{"text-change without room", `{"event":"text-change","data":{"text":"x"}}`},
		{"signal without target", `{"event":"signal","data":{"signal":{}}}`},
		{"signal without payload", `{"event":"signal","data":{"to":"conn-B"}}`},
		{"send-message empty", `{"event":"send-message","data":{"roomId":"vr","message":""}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := chathub.DecodeEvent([]byte(tt.raw))
			assert.ErrorIs(t, err, chathub.ErrMalformedEvent)
		})
	}
}
