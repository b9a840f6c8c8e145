// internal/chat/store.go

package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrPageOutOfOrder is reported when an older-page merge would break
	// the ascending order of the window.
	ErrPageOutOfOrder = errors.New("older page is not older than the loaded window")
)

// MessageStore holds the canonical ordered window of loaded messages plus
// the backward-pagination cursors. Messages are ordered oldest first with
// no duplicate ids. The store does no I/O and is written to only by the
// reconciliation engine, from the session loop.
type MessageStore struct {
	messages []*Message
	index    map[string]int

	oldestLoadedID string
	hasMoreOlder   bool
}

func NewMessageStore() *MessageStore {
	return &MessageStore{
		index: make(map[string]int),
	}
}

// ReplaceAll resets the window wholesale. Used for the initial history load
// and for jump-to-message reloads.
func (s *MessageStore) ReplaceAll(messages []*Message, hasMoreOlder bool) {
	s.messages = make([]*Message, 0, len(messages))
	s.index = make(map[string]int, len(messages))

	for _, m := range messages {
		if _, dup := s.index[m.ID]; dup {
			continue
		}
		normalizeReactions(m)
		s.index[m.ID] = len(s.messages)
		s.messages = append(s.messages, m)
	}

	s.hasMoreOlder = hasMoreOlder
	if len(s.messages) > 0 {
		s.oldestLoadedID = s.messages[0].ID
	} else {
		s.oldestLoadedID = ""
	}
}

// PrependOlder merges an older page at the front of the window. Exact-id
// duplicates are dropped silently so redelivered pages are idempotent. A
// non-duplicate message newer than the current window front rejects the
// whole batch.
func (s *MessageStore) PrependOlder(messages []*Message, hasMoreOlder bool) error {
	fresh := make([]*Message, 0, len(messages))
	for _, m := range messages {
		if _, dup := s.index[m.ID]; dup {
			continue
		}
		fresh = append(fresh, m)
	}

	if len(s.messages) > 0 {
		front := s.messages[0]
		for _, m := range fresh {
			if m.Timestamp.After(front.Timestamp) {
				return fmt.Errorf("%w: message %s", ErrPageOutOfOrder, m.ID)
			}
		}
	}

	s.hasMoreOlder = hasMoreOlder
	if len(fresh) == 0 {
		return nil
	}

	for _, m := range fresh {
		normalizeReactions(m)
	}
	s.messages = append(fresh, s.messages...)
	s.reindex()
	s.oldestLoadedID = s.messages[0].ID
	return nil
}

// AppendNewer adds a live incoming message at the end of the window.
// Returns false without mutating if the id is already present, which
// guards against duplicate delivery from reconnect replay.
func (s *MessageStore) AppendNewer(m *Message) bool {
	if _, dup := s.index[m.ID]; dup {
		return false
	}
	normalizeReactions(m)
	s.index[m.ID] = len(s.messages)
	s.messages = append(s.messages, m)
	if len(s.messages) == 1 {
		s.oldestLoadedID = m.ID
	}
	return true
}

// UpsertByID applies a partial update to an existing message. Returns false
// if the id is absent; an update arriving before its insert is a recoverable
// anomaly, not an error.
func (s *MessageStore) UpsertByID(id string, mutate func(*Message)) bool {
	i, ok := s.index[id]
	if !ok {
		return false
	}
	mutate(s.messages[i])
	normalizeReactions(s.messages[i])
	return true
}

// RemoveByID removes a message. Returns false if the id is absent.
func (s *MessageStore) RemoveByID(id string) bool {
	i, ok := s.index[id]
	if !ok {
		return false
	}
	s.messages = append(s.messages[:i], s.messages[i+1:]...)
	s.reindex()
	if len(s.messages) > 0 {
		s.oldestLoadedID = s.messages[0].ID
	} else {
		s.oldestLoadedID = ""
	}
	return true
}

// Find returns the message with the given id, if loaded.
func (s *MessageStore) Find(id string) (*Message, bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.messages[i], true
}

func (s *MessageStore) Len() int { return len(s.messages) }

func (s *MessageStore) OldestLoadedID() string { return s.oldestLoadedID }

func (s *MessageStore) HasMoreOlder() bool { return s.hasMoreOlder }

// Snapshot returns a deep copy of the window for read-only consumers.
func (s *MessageStore) Snapshot() []*Message {
	out := make([]*Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.Clone()
	}
	return out
}

func (s *MessageStore) reindex() {
	s.index = make(map[string]int, len(s.messages))
	for i, m := range s.messages {
		s.index[m.ID] = i
	}
}

// normalizeReactions restores the count == |users| invariant and dedupes
// reactors, dropping emojis nobody holds anymore.
func normalizeReactions(m *Message) {
	if len(m.Reactions) == 0 {
		return
	}
	for emoji, r := range m.Reactions {
		seen := make(map[string]struct{}, len(r.Users))
		users := r.Users[:0]
		for _, u := range r.Users {
			if u == "" {
				continue
			}
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
			users = append(users, u)
		}
		if len(users) == 0 {
			delete(m.Reactions, emoji)
			continue
		}
		m.Reactions[emoji] = Reaction{Count: len(users), Users: users}
	}
}
