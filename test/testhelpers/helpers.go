// Package testhelpers provides common utilities for testing the chat relay.
//
// It contains reusable helpers shared across unit and integration tests:
// starting a full relay over httptest, registering participants, connecting
// WebSocket clients, and reading frames off the wire.
package testhelpers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/chatrelay/relay/internal/server"
)

// Relay bundles a running relay instance with its test HTTP server.
type Relay struct {
	Roster *server.Roster
	Hub    *server.Hub
	Server *httptest.Server
}

// StartRelay boots a complete relay (roster, hub, routes) on an httptest
// server and registers cleanup with t.
func StartRelay(t *testing.T) *Relay {
	t.Helper()

	roster := server.NewRoster()
	hub := server.NewHub(roster, zerolog.Nop())
	go hub.Run()

	svc := server.NewChatService(roster, hub, server.NewConfig(), zerolog.Nop())
	ts := httptest.NewServer(server.SetupRoutes(svc))

	t.Cleanup(func() {
		ts.Close()
		_ = hub.Shutdown(time.Second)
	})

	return &Relay{Roster: roster, Hub: hub, Server: ts}
}

// StartRelayWith serves an already-wired ChatService on an httptest server.
// Unlike StartRelay it does not own the hub lifecycle; the caller shuts the
// hub down itself, which shutdown tests rely on.
func StartRelayWith(t *testing.T, svc *server.ChatService) *Relay {
	t.Helper()

	ts := httptest.NewServer(server.SetupRoutes(svc))
	t.Cleanup(ts.Close)
	return &Relay{Server: ts}
}

// WebSocketURL converts the relay's HTTP base URL into its ws:// endpoint.
func (r *Relay) WebSocketURL() string {
	return "ws" + strings.TrimPrefix(r.Server.URL, "http") + "/ws"
}

// RegistrationResult mirrors the registration endpoint's JSON envelope.
type RegistrationResult struct {
	Status  string              `json:"status"`
	User    *server.Participant `json:"user"`
	Message string              `json:"message"`
}

// RegisterName POSTs a registration request and decodes the response. It
// returns the HTTP status code alongside the decoded body.
func RegisterName(t *testing.T, baseURL, body string) (int, RegistrationResult) {
	t.Helper()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post(baseURL+"/new-user", "application/json", bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("Failed to POST /new-user: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var result RegistrationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode registration response: %v", err)
	}
	return resp.StatusCode, result
}

// MustRegister registers a display name and fails the test unless the relay
// accepts it.
func MustRegister(t *testing.T, baseURL, name string) server.Participant {
	t.Helper()

	status, result := RegisterName(t, baseURL, `{"name":"`+name+`"}`)
	if status != http.StatusOK {
		t.Fatalf("Expected registration of %q to succeed, got status %d (%s)", name, status, result.Message)
	}
	if result.User == nil {
		t.Fatalf("Registration of %q returned no user", name)
	}
	return *result.User
}

// ConnectWebSocket opens a WebSocket connection to the given URL.
func ConnectWebSocket(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.Dial(url, nil)
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// SendFrame marshals v and sends it as one text frame.
func SendFrame(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("Failed to send frame: %v", err)
	}
}

// ReadFrame reads one raw frame with a deadline.
func ReadFrame(t *testing.T, conn *websocket.Conn, timeout time.Duration) []byte {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read frame: %v", err)
	}
	return raw
}

// IsRosterFrame reports whether a server frame is a roster snapshot. Clients
// tell snapshots apart from chat messages by the payload being a JSON array.
func IsRosterFrame(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

// DecodeRosterFrame parses a roster snapshot frame.
func DecodeRosterFrame(t *testing.T, raw []byte) []server.Participant {
	t.Helper()

	var roster []server.Participant
	if err := json.Unmarshal(raw, &roster); err != nil {
		t.Fatalf("Failed to decode roster frame %s: %v", raw, err)
	}
	return roster
}

// ReadRosterFrame reads frames until it sees a roster snapshot, skipping any
// interleaved chat messages.
func ReadRosterFrame(t *testing.T, conn *websocket.Conn, timeout time.Duration) []server.Participant {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			t.Fatal("Timed out waiting for roster frame")
		}
		raw := ReadFrame(t, conn, remaining)
		if IsRosterFrame(raw) {
			return DecodeRosterFrame(t, raw)
		}
	}
}

// RosterNames extracts the display names from a snapshot, in order.
func RosterNames(roster []server.Participant) []string {
	names := make([]string, 0, len(roster))
	for _, p := range roster {
		names = append(names, p.Name)
	}
	return names
}

// ExpectNoFrame asserts that no frame arrives within the given window.
func ExpectNoFrame(t *testing.T, conn *websocket.Conn, window time.Duration) {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(window)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	if _, raw, err := conn.ReadMessage(); err == nil {
		t.Fatalf("Expected no frame, received %s", raw)
	}
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}
