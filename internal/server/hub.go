// Package server coordinates session registration, roster snapshot pushes, and
// chat message fan-out for the relay via the Hub type.
package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Hub tracks every open connection session and fans payloads out to all of
// them. It owns session-set membership; the roster it is given owns
// participant state. Membership changes and broadcasts are serialized through
// the event loop in Run, with a mutex protecting snapshot reads.
type Hub struct {
	roster *Roster
	log    zerolog.Logger

	clients    map[*Client]bool
	broadcast  chan []byte
	rosterSync chan struct{}
	register   chan *Client
	unregister chan *Client

	mutex  sync.RWMutex
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates a hub bound to the given roster. Call Run in its own
// goroutine before registering any sessions.
func NewHub(roster *Roster, logger zerolog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		roster:     roster,
		log:        logger.With().Str("component", "hub").Logger(),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte),
		rosterSync: make(chan struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Roster returns the roster shared with this hub.
func (h *Hub) Roster() *Roster {
	return h.roster
}

// Register hands a new session to the hub. The hub launches the session's
// read/write pumps and pushes a fresh roster snapshot to every open session,
// the new one included.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

// Unregister removes a session from the hub. The participant's roster entry
// is untouched: a connection that drops without an exit frame stays listed
// until it exits explicitly or the process restarts.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// BroadcastChat fans a chat payload out to every open session, sender
// included.
func (h *Hub) BroadcastChat(payload []byte) {
	select {
	case h.broadcast <- payload:
	case <-h.ctx.Done():
	}
}

// RemoveParticipant drops the named participant from the roster and pushes
// the updated snapshot to every open session. Removing an already-absent name
// still triggers a push, which is harmless.
func (h *Hub) RemoveParticipant(name string) {
	h.roster.Remove(name)
	select {
	case h.rosterSync <- struct{}{}:
	case <-h.ctx.Done():
	}
}

// Run is the hub's main event loop. It handles session registration and
// removal, roster snapshot pushes, and chat broadcasts, and must be called in
// a separate goroutine as it runs until Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.log.Warn().Msg("received nil session registration; skipping")
				continue
			}

			h.mutex.Lock()
			client.closed = false
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mutex.Unlock()
			h.log.Info().Str("addr", client.addr).Int("sessions", clientCount).Msg("session joined")

			if client.conn != nil {
				h.wg.Add(2)
				go func() {
					defer h.wg.Done()
					client.writePump()
				}()
				go func() {
					defer h.wg.Done()
					client.readPump()
				}()
			}

			h.pushRoster()

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.closed = true
				clientCount := len(h.clients)
				h.mutex.Unlock()
				// Close the channel after releasing the lock.
				close(client.send)
				h.log.Info().Str("addr", client.addr).Int("sessions", clientCount).Msg("session left")
			} else {
				h.mutex.Unlock()
			}

		case <-h.rosterSync:
			h.pushRoster()

		case payload := <-h.broadcast:
			h.handleBroadcast(payload)
		}
	}
}

// pushRoster marshals the current roster snapshot and fans it out. Clients
// tell snapshots apart from chat messages by the payload being a JSON array.
func (h *Hub) pushRoster() {
	payload, err := json.Marshal(h.roster.Snapshot())
	if err != nil {
		h.log.Error().Err(err).Msg("marshalling roster snapshot")
		return
	}
	h.handleBroadcast(payload)
}

// handleBroadcast delivers one payload to every currently open session.
// Delivery is best-effort: sessions that are mid-close or whose send buffer
// is full are skipped and evicted, with no retry.
func (h *Hub) handleBroadcast(payload []byte) {
	clients := h.getClientSnapshot()
	h.log.Debug().Int("recipients", len(clients)).Msg("broadcasting payload")

	var failed []*Client
	for _, client := range clients {
		if !h.safeSend(client, payload) {
			failed = append(failed, client)
		}
	}
	h.removeFailedClients(failed)
}

func (h *Hub) safeSend(client *Client, payload []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			h.log.Warn().Interface("panic", r).Msg("recovered from panic in safeSend")
		}
	}()

	// Hold the lock during the entire send so the client cannot be
	// unregistered (and its channel closed) mid-send.
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	_, exists := h.clients[client]
	if !exists || client.closed {
		return false
	}

	select {
	case client.send <- payload:
		return true
	default:
		return false
	}
}

// getClientSnapshot returns a point-in-time copy of the open session set.
func (h *Hub) getClientSnapshot() []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

// removeFailedClients evicts sessions that could not accept a payload and
// closes their send channels.
func (h *Hub) removeFailedClients(failed []*Client) {
	if len(failed) == 0 {
		return
	}

	h.mutex.Lock()
	var channelsToClose []chan []byte
	for _, client := range failed {
		if _, exists := h.clients[client]; exists {
			delete(h.clients, client)
			client.closed = true
			channelsToClose = append(channelsToClose, client.send)
			h.log.Warn().Str("addr", client.addr).Msg("session evicted: send buffer full")
		}
	}
	h.mutex.Unlock()

	// Close channels after releasing the lock.
	for _, ch := range channelsToClose {
		close(ch)
	}
}

// shutdownClients evicts every session, closing both its send channel and
// its connection so the read and write pumps exit promptly instead of
// waiting out their ping tickers.
func (h *Hub) shutdownClients() {
	h.log.Info().Msg("closing all session connections")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	var channelsToClose []chan []byte
	for client := range h.clients {
		clients = append(clients, client)
		delete(h.clients, client)
		client.closed = true
		channelsToClose = append(channelsToClose, client.send)
	}
	h.mutex.Unlock()

	// Close channels after releasing the lock. A closed send channel is what
	// unblocks a write pump parked between payloads.
	for _, ch := range channelsToClose {
		close(ch)
	}

	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				h.log.Warn().Err(err).Str("addr", client.addr).Msg("closing session connection")
			}
		}
	}

	h.log.Info().Int("sessions", len(clients)).Msg("session connections closed")
}

// Shutdown stops the event loop, closes every session, and waits for the
// pump goroutines to finish or the timeout to elapse.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info().Msg("initiating hub shutdown")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info().Msg("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.Warn().Msg("hub shutdown timeout reached; some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
