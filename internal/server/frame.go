// Package server defines the wire frames exchanged over the bidirectional
// channel and decodes inbound frames into an explicit tagged variant.
package server

import "encoding/json"

const (
	frameTypeSend = "send"
	frameTypeExit = "exit"
)

// frameKind is the decoded variant of an inbound frame. Dispatch happens on
// the kind, not by re-inspecting the type string at every call site.
type frameKind int

const (
	frameUnknown frameKind = iota
	frameSend
	frameExit
)

// Frame is the client-to-server message format. A send frame carries the chat
// text; an exit frame only carries the user to drop from the roster.
// Outbound chat messages reuse the same shape: the decoded frame is
// re-marshalled before fan-out, so every recipient sees the canonical
// encoding regardless of how the sender formatted it.
type Frame struct {
	Type    string      `json:"type"`
	Message string      `json:"message,omitempty"`
	User    Participant `json:"user"`
}

// decodeFrame parses one raw frame. A JSON error means the frame is
// malformed and must be dropped; an unrecognized type decodes successfully
// but maps to frameUnknown so the session can ignore it without closing.
func decodeFrame(raw []byte) (Frame, frameKind, error) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return Frame{}, frameUnknown, err
	}

	switch frame.Type {
	case frameTypeSend:
		return frame, frameSend, nil
	case frameTypeExit:
		return frame, frameExit, nil
	default:
		return frame, frameUnknown, nil
	}
}
