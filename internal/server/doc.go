// Package server implements the core of the chat relay: the participant
// roster, the registration endpoint, per-connection sessions, and the hub
// that fans roster snapshots and chat messages out to every open session.
//
// The implementation is organized into specialized files for the roster, wire
// frames, hub, client sessions, configuration, routing, and HTTP handlers to
// keep the codebase maintainable and testable as the project grows.
package server
