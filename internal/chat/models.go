// internal/chat/models.go

package chat

import (
	"encoding/json"
	"time"
)

// Message kinds
const (
	KindNormal = "normal"
	KindSystem = "system"
)

// CommonEmojis are the quick-reaction choices surfaced to UI collaborators.
var CommonEmojis = []string{"👍", "❤️", "😊", "😂"}

// Reaction holds the per-emoji reaction state. The server is authoritative;
// Count is re-derived from Users on every application.
type Reaction struct {
	Count int      `json:"count"`
	Users []string `json:"users"`
}

// GIFAttachment is a picked GIF with its display title.
type GIFAttachment struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// ReplyRef references the message being replied to, with a denormalized
// snapshot of its body taken at reply-creation time. The snapshot is what
// gets rendered when the target is no longer loaded locally.
type ReplyRef struct {
	ID      string `json:"id"`
	Message string `json:"message,omitempty"`
}

// Message is a single chat message as held in the store and as carried on
// the wire.
type Message struct {
	ID        string              `json:"id"`
	Sender    string              `json:"name"`
	Body      string              `json:"message,omitempty"`
	Image     string              `json:"image,omitempty"`
	Video     string              `json:"video,omitempty"`
	GIF       *GIFAttachment      `json:"gif,omitempty"`
	ReplyTo   *ReplyRef           `json:"reply_to,omitempty"`
	Edited    bool                `json:"edited,omitempty"`
	EditedAt  *time.Time          `json:"edited_at,omitempty"`
	Reactions map[string]Reaction `json:"reactions,omitempty"`
	ReadBy    []string            `json:"read_by,omitempty"`
	Kind      string              `json:"type,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

// IsSystem reports whether the message is a server-generated system notice.
// System messages carry no reactions or read receipts.
func (m *Message) IsSystem() bool {
	return m.Kind == KindSystem
}

// HasReadBy reports whether user appears in the read set.
func (m *Message) HasReadBy(user string) bool {
	for _, r := range m.ReadBy {
		if r == user {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to hand to projectors.
func (m *Message) Clone() *Message {
	cp := *m
	if m.GIF != nil {
		gif := *m.GIF
		cp.GIF = &gif
	}
	if m.ReplyTo != nil {
		ref := *m.ReplyTo
		cp.ReplyTo = &ref
	}
	if m.EditedAt != nil {
		t := *m.EditedAt
		cp.EditedAt = &t
	}
	if m.Reactions != nil {
		cp.Reactions = make(map[string]Reaction, len(m.Reactions))
		for emoji, r := range m.Reactions {
			users := make([]string, len(r.Users))
			copy(users, r.Users)
			cp.Reactions[emoji] = Reaction{Count: r.Count, Users: users}
		}
	}
	if m.ReadBy != nil {
		cp.ReadBy = append([]string(nil), m.ReadBy...)
	}
	return &cp
}

// Inbound event names pushed by the server.
const (
	EventChatHistory     = "chat_history"
	EventMessage         = "message"
	EventEditMessage     = "edit_message"
	EventDeleteMessage   = "delete_message"
	EventUpdateReactions = "update_reactions"
	EventMessagesRead    = "messages_read"
	EventTyping          = "typing"
	EventMoreMessages    = "more_messages"
	EventMessageFound    = "message_found"
)

// Outbound event names emitted by the client.
const (
	EventToggleReaction   = "toggle_reaction"
	EventMarkMessagesRead = "mark_messages_read"
	EventLoadMoreMessages = "load_more_messages"
	EventFindMessage      = "find_message"
)

// Inbound is one server-pushed event as delivered by the transport.
type Inbound struct {
	Type string
	Data json.RawMessage
}

// Inbound payloads

type ChatHistoryPayload struct {
	Messages []*Message `json:"messages"`
	HasMore  bool       `json:"has_more"`
}

type EditMessagePayload struct {
	MessageID string `json:"messageId"`
	NewText   string `json:"newText"`
}

type DeleteMessagePayload struct {
	MessageID string `json:"messageId"`
}

type UpdateReactionsPayload struct {
	MessageID string              `json:"messageId"`
	Reactions map[string]Reaction `json:"reactions"`
}

type MessagesReadPayload struct {
	Reader     string   `json:"reader"`
	MessageIDs []string `json:"message_ids"`
}

type TypingPayload struct {
	Name     string `json:"name,omitempty"`
	IsTyping bool   `json:"isTyping"`
}

type MoreMessagesPayload struct {
	Messages []*Message `json:"messages"`
	HasMore  bool       `json:"has_more"`
}

type MessageFoundPayload struct {
	Found    bool       `json:"found"`
	Messages []*Message `json:"messages"`
	HasMore  bool       `json:"has_more"`
}

// Outbound payloads

// OutgoingMessage is the send-message request. The server assigns the
// canonical id and echoes the message back; the client never inserts it
// locally before that echo.
type OutgoingMessage struct {
	Data    string         `json:"data" validate:"required_without_all=Image Video GIF"`
	Image   string         `json:"image,omitempty" validate:"omitempty,url"`
	Video   string         `json:"video,omitempty" validate:"omitempty,url"`
	GIF     *GIFAttachment `json:"gif,omitempty"`
	ReplyTo *ReplyRef      `json:"replyTo,omitempty"`
}

type OutgoingEdit struct {
	MessageID string `json:"messageId" validate:"required"`
	NewText   string `json:"newText" validate:"required"`
}

type OutgoingDelete struct {
	MessageID string `json:"messageId" validate:"required"`
}

type OutgoingToggleReaction struct {
	MessageID string `json:"messageId" validate:"required"`
	Emoji     string `json:"emoji" validate:"required"`
}

type OutgoingMarkRead struct {
	MessageIDs []string `json:"message_ids" validate:"required,min=1"`
}

type OutgoingTyping struct {
	IsTyping bool `json:"isTyping"`
}

type OutgoingLoadMore struct {
	LastMessageID string `json:"last_message_id" validate:"required"`
}

type OutgoingFindMessage struct {
	MessageID string `json:"message_id" validate:"required"`
}
