// Package server defines the registration request/response payloads shared
// between the HTTP handlers and the tests.
package server

const (
	statusOK    = "ok"
	statusError = "error"

	msgInvalidRequest = "Invalid request body!"
	msgNameTaken      = "This name is already taken!"
)

// registrationRequest is the body of a POST /new-user call.
type registrationRequest struct {
	Name string `json:"name"`
}

// registrationResponse is the JSON envelope for registration outcomes. User
// is set on success, Message on failure.
type registrationResponse struct {
	Status  string       `json:"status"`
	User    *Participant `json:"user,omitempty"`
	Message string       `json:"message,omitempty"`
}
