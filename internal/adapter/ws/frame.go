// Package ws is the WebSocket push gateway desktop clients connect to.
package ws

import (
	json "github.com/goccy/go-json"
)

// Event names carried in frames.
const (
	EventJoin         = "join"
	EventLeave        = "leave"
	EventJoined       = "joined"
	EventLeft         = "left"
	EventNotification = "notification"
	EventError        = "error"
)

// Frame is one WebSocket text message in either direction.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// RoomsAck answers join and leave. Room repeats the primary key joined, for
// clients that only look at one room.
type RoomsAck struct {
	Room  string   `json:"room,omitempty"`
	Rooms []string `json:"rooms"`
}

// ErrorData is the body of an error frame.
type ErrorData struct {
	Message string `json:"message"`
}

func encodeFrame(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}
