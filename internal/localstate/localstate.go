// internal/localstate/localstate.go

package localstate

import (
	"context"
	"encoding/json"
)

// State is what survives across sessions: the read cursor, the unread
// badge shown before history arrives, and the last known username.
type State struct {
	LastReadMessageID string `json:"lastReadMessageId"`
	UnreadCount       int    `json:"unreadCount"`
	Username          string `json:"username"`
}

// Store persists per-room state. A missing record loads as the zero State.
type Store interface {
	Load(ctx context.Context, room string) (State, error)
	Save(ctx context.Context, room string, st State) error
	Close() error
}

func stateKey(room string) []byte {
	return []byte("chatstate:" + room)
}

func encodeState(st State) ([]byte, error) {
	return json.Marshal(st)
}

func decodeState(data []byte) (State, error) {
	var st State
	err := json.Unmarshal(data, &st)
	return st, err
}
