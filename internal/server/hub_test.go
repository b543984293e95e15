package server

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(NewRoster(), zerolog.Nop())
	go hub.Run()
	t.Cleanup(func() {
		_ = hub.Shutdown(time.Second)
	})
	return hub
}

// newTestSession creates a session without a real connection; the hub skips
// the pump goroutines for it, so payloads accumulate in its send channel.
func newTestSession(hub *Hub, addr string) *Client {
	return NewClient(nil, hub, addr, NewConfig())
}

func receivePayload(t *testing.T, client *Client) []byte {
	t.Helper()
	select {
	case payload := <-client.send:
		return payload
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for payload")
		return nil
	}
}

func expectNoPayload(t *testing.T, client *Client) {
	t.Helper()
	select {
	case payload := <-client.send:
		t.Fatalf("expected no payload, got %s", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func decodeRoster(t *testing.T, payload []byte) []Participant {
	t.Helper()
	var roster []Participant
	require.NoError(t, json.Unmarshal(payload, &roster))
	return roster
}

func TestHubPushesRosterOnJoin(t *testing.T) {
	req := require.New(t)
	hub := newTestHub(t)

	alice, err := hub.Roster().Register("alice")
	req.NoError(err)

	first := newTestSession(hub, "127.0.0.1:1001")
	hub.Register(first)

	// The joining session itself receives the snapshot.
	roster := decodeRoster(t, receivePayload(t, first))
	req.Len(roster, 1)
	req.Equal(alice, roster[0])

	// A second join refreshes every open session, not just the new one.
	second := newTestSession(hub, "127.0.0.1:1002")
	hub.Register(second)

	decodeRoster(t, receivePayload(t, first))
	decodeRoster(t, receivePayload(t, second))
}

func TestHubBroadcastChatReachesAllSessions(t *testing.T) {
	req := require.New(t)
	hub := newTestHub(t)

	first := newTestSession(hub, "127.0.0.1:1001")
	second := newTestSession(hub, "127.0.0.1:1002")
	hub.Register(first)
	hub.Register(second)

	// Drain the join snapshots.
	receivePayload(t, first)
	receivePayload(t, first)
	receivePayload(t, second)

	payload := []byte(`{"type":"send","message":"hi","user":{"id":"u1","name":"alice"}}`)
	hub.BroadcastChat(payload)

	// Both sessions receive the chat payload, the sender included; the relay
	// echoes to everyone.
	req.Equal(payload, receivePayload(t, first))
	req.Equal(payload, receivePayload(t, second))
}

func TestHubRemoveParticipantPushesUpdatedRoster(t *testing.T) {
	req := require.New(t)
	hub := newTestHub(t)

	_, err := hub.Roster().Register("alice")
	req.NoError(err)
	_, err = hub.Roster().Register("bob")
	req.NoError(err)

	session := newTestSession(hub, "127.0.0.1:1001")
	hub.Register(session)
	receivePayload(t, session)

	hub.RemoveParticipant("alice")

	roster := decodeRoster(t, receivePayload(t, session))
	req.Len(roster, 1)
	req.Equal("bob", roster[0].Name)

	// Exiting an already-removed participant is a no-op on the roster but
	// still pushes a (identical) snapshot.
	hub.RemoveParticipant("alice")
	roster = decodeRoster(t, receivePayload(t, session))
	req.Len(roster, 1)
	req.Equal("bob", roster[0].Name)
}

// A session that cannot accept payloads is skipped and evicted; delivery to
// the others is unaffected.
func TestHubEvictsSessionWithFullSendBuffer(t *testing.T) {
	req := require.New(t)
	hub := newTestHub(t)

	healthy := newTestSession(hub, "127.0.0.1:1001")
	stuck := newTestSession(hub, "127.0.0.1:1002")
	hub.Register(healthy)
	hub.Register(stuck)

	receivePayload(t, healthy)
	receivePayload(t, healthy)
	receivePayload(t, stuck)

	for len(stuck.send) < cap(stuck.send) {
		stuck.send <- []byte("filler")
	}

	hub.BroadcastChat([]byte(`{"type":"send","message":"hi","user":{"id":"u1","name":"alice"}}`))
	receivePayload(t, healthy)

	require.Eventually(t, func() bool {
		hub.mutex.RLock()
		defer hub.mutex.RUnlock()
		_, exists := hub.clients[stuck]
		return !exists
	}, time.Second, 10*time.Millisecond, "stuck session should have been evicted")

	// The healthy session keeps receiving after the eviction.
	hub.BroadcastChat([]byte(`{"type":"send","message":"again","user":{"id":"u1","name":"alice"}}`))
	receivePayload(t, healthy)
	req.True(stuck.closed)
}

func TestHubUnregisterLeavesRosterUntouched(t *testing.T) {
	req := require.New(t)
	hub := newTestHub(t)

	_, err := hub.Roster().Register("alice")
	req.NoError(err)

	session := newTestSession(hub, "127.0.0.1:1001")
	hub.Register(session)
	receivePayload(t, session)

	// Dropping the session without an exit frame leaves the stale roster
	// entry in place.
	hub.Unregister(session)
	require.Eventually(t, func() bool {
		hub.mutex.RLock()
		defer hub.mutex.RUnlock()
		return len(hub.clients) == 0
	}, time.Second, 10*time.Millisecond)

	req.Equal(1, hub.Roster().Len())
}

func TestHubIgnoresNilRegistration(t *testing.T) {
	hub := newTestHub(t)

	hub.Register(nil)

	session := newTestSession(hub, "127.0.0.1:1001")
	hub.Register(session)
	receivePayload(t, session)
}

func TestHubShutdown(t *testing.T) {
	req := require.New(t)
	hub := NewHub(NewRoster(), zerolog.Nop())
	go hub.Run()

	session := newTestSession(hub, "127.0.0.1:1001")
	hub.Register(session)
	receivePayload(t, session)

	req.NoError(hub.Shutdown(time.Second))

	// Shutdown evicts the session and closes its send channel, which is what
	// lets a write pump parked between payloads exit immediately.
	select {
	case _, open := <-session.send:
		req.False(open)
	case <-time.After(time.Second):
		t.Fatal("send channel should be closed after shutdown")
	}
	req.True(session.closed)

	// Calls after shutdown return instead of blocking forever.
	hub.BroadcastChat([]byte("late"))
	hub.Register(newTestSession(hub, "127.0.0.1:1002"))
}
