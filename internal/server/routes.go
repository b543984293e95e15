// Package server wires the relay's HTTP handlers into a ServeMux.
package server

import "net/http"

// SetupRoutes configures the relay's routes: health check, registration, and
// the WebSocket endpoint. The whole mux is wrapped with the CORS middleware
// so preflight requests succeed on every path.
func SetupRoutes(svc *ChatService) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/new-user", svc.NewUserHandler)
	mux.HandleFunc("/ws", svc.WebSocketHandler)
	return withCORS(mux)
}
