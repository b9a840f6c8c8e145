// internal/transport/transport.go

package transport

import (
	"encoding/json"
	"time"
)

// Event is one server-pushed event frame. The wire format is a thin
// {type, data, timestamp} envelope; payload shapes belong to the chat
// package.
type Event struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// State is a connection lifecycle notification.
type State int

const (
	StateDisconnected State = iota
	StateConnected
)

func (s State) String() string {
	if s == StateConnected {
		return "connected"
	}
	return "disconnected"
}
