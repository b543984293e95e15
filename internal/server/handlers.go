// Package server exposes the HTTP surface of the relay: participant
// registration, the WebSocket upgrade, and a health check.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ChatService bundles the relay's shared state (roster and hub) behind the
// HTTP handlers, so nothing is reached through package globals.
type ChatService struct {
	roster   *Roster
	hub      *Hub
	cfg      Config
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewChatService wires the handlers to the given roster and hub. The
// WebSocket upgrader checks origins against the configured allow-list, which
// defaults to every origin.
func NewChatService(roster *Roster, hub *Hub, cfg Config, logger zerolog.Logger) *ChatService {
	svc := &ChatService{
		roster: roster,
		hub:    hub,
		cfg:    cfg,
		log:    logger.With().Str("component", "http").Logger(),
	}
	svc.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     newOriginChecker(cfg.AllowedOrigins, svc.log),
	}
	return svc
}

// NewUserHandler registers a display name. A missing or empty name fails
// with 400, a taken name with 409; success returns the new participant.
// Registration does not notify connected sessions: the participant becomes
// visible to others only once its socket joins the hub.
func (s *ChatService) NewUserHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Registration only accepts POST requests.", http.StatusMethodNotAllowed)
		return
	}

	var req registrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeRegistration(w, http.StatusBadRequest, registrationResponse{
			Status:  statusError,
			Message: msgInvalidRequest,
		})
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		s.writeRegistration(w, http.StatusBadRequest, registrationResponse{
			Status:  statusError,
			Message: msgInvalidRequest,
		})
		return
	}

	participant, err := s.roster.Register(name)
	if err != nil {
		if errors.Is(err, ErrDuplicateName) {
			s.log.Warn().Str("name", name).Msg("registration rejected: name taken")
			s.writeRegistration(w, http.StatusConflict, registrationResponse{
				Status:  statusError,
				Message: msgNameTaken,
			})
			return
		}
		s.log.Error().Err(err).Str("name", name).Msg("registration failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	s.log.Info().Str("id", participant.ID).Str("name", participant.Name).Msg("participant registered")
	s.writeRegistration(w, http.StatusOK, registrationResponse{
		Status: statusOK,
		User:   &participant,
	})
}

func (s *ChatService) writeRegistration(w http.ResponseWriter, status int, resp registrationResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Warn().Err(err).Msg("writing registration response")
	}
}

// WebSocketHandler upgrades the connection and hands the resulting session to
// the hub, which launches its read/write pumps and pushes a roster snapshot
// to every open session.
func (s *ChatService) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := NewClient(conn, s.hub, r.RemoteAddr, s.cfg)
	s.hub.Register(client)
}

// HealthHandler reports that the relay is up.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Chat relay is running!")
}
