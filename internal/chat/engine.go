// internal/chat/engine.go

package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/MrBlankCoding/Channel-Chat/internal/common/utils"
)

var (
	ErrMessageNotLoaded = errors.New("message is not in the loaded window")
	ErrNotLive          = errors.New("engine has not loaded history yet")
)

// ConnState is the engine's connection lifecycle state.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnected
	// StateHistoryLoaded is transitional: the engine moves straight on to
	// StateLive once the history payload has been applied.
	StateHistoryLoaded
	StateLive
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateHistoryLoaded:
		return "historyLoaded"
	case StateLive:
		return "live"
	default:
		return "unknown"
	}
}

// Engine applies server events to the message store, resolving ordering,
// idempotence and optimistic-update races. It is the store's only writer
// and must be driven from a single goroutine (the session loop).
type Engine struct {
	store     *MessageStore
	presence  *PresenceTracker
	projector Projector
	emitter   Emitter

	currentUser string
	state       ConnState

	// generation increments on every wholesale window replacement so that
	// late pagination responses for a discarded window can be detected.
	generation uint64

	// unread tracks locally-unread message ids; the count feeds the badge
	// collaborator via the projector.
	unread     map[string]struct{}
	lastReadID string

	pager *PaginationController
}

func NewEngine(store *MessageStore, presence *PresenceTracker, emitter Emitter, projector Projector, currentUser string) *Engine {
	if projector == nil {
		projector = NopProjector{}
	}
	return &Engine{
		store:       store,
		presence:    presence,
		projector:   projector,
		emitter:     emitter,
		currentUser: currentUser,
		state:       StateDisconnected,
		unread:      make(map[string]struct{}),
	}
}

// SetPager wires the pagination controller after construction, mirroring
// the two-way relationship between the controller and the engine.
func (e *Engine) SetPager(p *PaginationController) {
	e.pager = p
}

func (e *Engine) State() ConnState { return e.state }

func (e *Engine) Generation() uint64 { return e.generation }

func (e *Engine) UnreadCount() int { return len(e.unread) }

func (e *Engine) LastReadID() string { return e.lastReadID }

// UnreadIDs returns the ids currently tracked as unread, in window order.
func (e *Engine) UnreadIDs() []string {
	ids := make([]string, 0, len(e.unread))
	for _, m := range e.store.messages {
		if _, ok := e.unread[m.ID]; ok {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// HandleConnected transitions out of disconnected. History is requested by
// the server-side session bootstrap on join; the engine just waits for the
// chat_history payload.
func (e *Engine) HandleConnected() {
	if e.state == StateDisconnected {
		e.state = StateConnected
	}
	reconnects.Inc()
}

// HandleDisconnected clears presence but keeps the store so the last known
// view stays visible until reconnection.
func (e *Engine) HandleDisconnected() {
	e.state = StateDisconnected
	e.presence.Clear()
	e.projector.TypingChanged(nil)
}

// Apply dispatches one inbound event. All handlers are idempotent with
// respect to redelivery; malformed payloads are logged and dropped.
func (e *Engine) Apply(evt Inbound) {
	switch evt.Type {
	case EventChatHistory:
		var p ChatHistoryPayload
		if err := json.Unmarshal(evt.Data, &p); err != nil {
			log.Printf("chat: bad %s payload: %v", evt.Type, err)
			return
		}
		e.handleChatHistory(&p)

	case EventMessage:
		var m Message
		if err := json.Unmarshal(evt.Data, &m); err != nil {
			log.Printf("chat: bad %s payload: %v", evt.Type, err)
			return
		}
		e.handleMessage(&m)

	case EventEditMessage:
		var p EditMessagePayload
		if err := json.Unmarshal(evt.Data, &p); err != nil {
			log.Printf("chat: bad %s payload: %v", evt.Type, err)
			return
		}
		e.handleEdit(&p)

	case EventDeleteMessage:
		var p DeleteMessagePayload
		if err := json.Unmarshal(evt.Data, &p); err != nil {
			log.Printf("chat: bad %s payload: %v", evt.Type, err)
			return
		}
		e.handleDelete(&p)

	case EventUpdateReactions:
		var p UpdateReactionsPayload
		if err := json.Unmarshal(evt.Data, &p); err != nil {
			log.Printf("chat: bad %s payload: %v", evt.Type, err)
			return
		}
		e.handleUpdateReactions(&p)

	case EventMessagesRead:
		var p MessagesReadPayload
		if err := json.Unmarshal(evt.Data, &p); err != nil {
			log.Printf("chat: bad %s payload: %v", evt.Type, err)
			return
		}
		e.handleMessagesRead(&p)

	case EventTyping:
		var p TypingPayload
		if err := json.Unmarshal(evt.Data, &p); err != nil {
			log.Printf("chat: bad %s payload: %v", evt.Type, err)
			return
		}
		e.handleTyping(&p)

	case EventMoreMessages:
		var p MoreMessagesPayload
		if err := json.Unmarshal(evt.Data, &p); err != nil {
			log.Printf("chat: bad %s payload: %v", evt.Type, err)
			return
		}
		if e.pager != nil {
			e.pager.HandleMoreMessages(&p)
		}

	case EventMessageFound:
		var p MessageFoundPayload
		if err := json.Unmarshal(evt.Data, &p); err != nil {
			log.Printf("chat: bad %s payload: %v", evt.Type, err)
			return
		}
		if e.pager != nil {
			e.pager.HandleMessageFound(&p)
		}

	default:
		log.Printf("chat: unknown event type %q", evt.Type)
	}
}

func (e *Engine) handleChatHistory(p *ChatHistoryPayload) {
	for _, m := range p.Messages {
		e.scrubReadBy(m)
	}
	e.store.ReplaceAll(p.Messages, p.HasMore)
	e.generation++
	e.state = StateLive

	e.unread = make(map[string]struct{})
	for _, m := range p.Messages {
		if e.isUnreadFor(m) {
			e.unread[m.ID] = struct{}{}
		}
	}

	messagesInStore.Set(float64(e.store.Len()))
	eventsApplied.WithLabelValues(EventChatHistory).Inc()
	e.projector.HistoryReset(e.store.Snapshot(), e.store.HasMoreOlder())
	e.projector.UnreadChanged(len(e.unread))
}

func (e *Engine) handleMessage(m *Message) {
	e.scrubReadBy(m)
	if !e.store.AppendNewer(m) {
		duplicateEvents.WithLabelValues(EventMessage).Inc()
		return
	}

	messagesInStore.Set(float64(e.store.Len()))
	eventsApplied.WithLabelValues(EventMessage).Inc()
	e.projector.MessageAppended(m.Clone())

	if e.isUnreadFor(m) {
		e.unread[m.ID] = struct{}{}
		e.projector.UnreadChanged(len(e.unread))
	}
}

func (e *Engine) handleEdit(p *EditMessagePayload) {
	now := time.Now()
	ok := e.store.UpsertByID(p.MessageID, func(m *Message) {
		m.Body = p.NewText
		m.Edited = true
		m.EditedAt = &now
	})
	if !ok {
		// Never synthesize a message from an edit alone; the next full
		// reload restores consistency.
		referentialMisses.WithLabelValues(EventEditMessage).Inc()
		log.Printf("chat: edit for unknown message %s dropped", p.MessageID)
		return
	}
	eventsApplied.WithLabelValues(EventEditMessage).Inc()
	if m, found := e.store.Find(p.MessageID); found {
		e.projector.MessageUpdated(m.Clone())
	}
}

func (e *Engine) handleDelete(p *DeleteMessagePayload) {
	if !e.store.RemoveByID(p.MessageID) {
		duplicateEvents.WithLabelValues(EventDeleteMessage).Inc()
		return
	}
	if _, ok := e.unread[p.MessageID]; ok {
		delete(e.unread, p.MessageID)
		e.projector.UnreadChanged(len(e.unread))
	}
	messagesInStore.Set(float64(e.store.Len()))
	eventsApplied.WithLabelValues(EventDeleteMessage).Inc()
	e.projector.MessageRemoved(p.MessageID)
}

func (e *Engine) handleUpdateReactions(p *UpdateReactionsPayload) {
	ok := e.store.UpsertByID(p.MessageID, func(m *Message) {
		// Server state replaces the mapping wholesale; no client merge.
		m.Reactions = p.Reactions
	})
	if !ok {
		referentialMisses.WithLabelValues(EventUpdateReactions).Inc()
		log.Printf("chat: reactions for unknown message %s dropped", p.MessageID)
		return
	}
	eventsApplied.WithLabelValues(EventUpdateReactions).Inc()
	if m, found := e.store.Find(p.MessageID); found {
		e.projector.MessageUpdated(m.Clone())
	}
}

func (e *Engine) handleMessagesRead(p *MessagesReadPayload) {
	if p.Reader == "" {
		return
	}
	for _, id := range p.MessageIDs {
		ok := e.store.UpsertByID(id, func(m *Message) {
			if p.Reader == m.Sender || m.HasReadBy(p.Reader) {
				return
			}
			m.ReadBy = append(m.ReadBy, p.Reader)
		})
		if !ok {
			referentialMisses.WithLabelValues(EventMessagesRead).Inc()
			continue
		}
		if m, found := e.store.Find(id); found {
			e.projector.MessageUpdated(m.Clone())
		}
	}
	eventsApplied.WithLabelValues(EventMessagesRead).Inc()
}

func (e *Engine) handleTyping(p *TypingPayload) {
	if p.Name == e.currentUser {
		return
	}
	if e.presence.SetTyping(p.Name, p.IsTyping) {
		e.projector.TypingChanged(e.presence.TypingUsers())
	}
	eventsApplied.WithLabelValues(EventTyping).Inc()
}

// applyOlder merges an older page; called by the pagination controller
// after its generation check has passed.
func (e *Engine) applyOlder(p *MoreMessagesPayload) error {
	for _, m := range p.Messages {
		e.scrubReadBy(m)
	}
	if err := e.store.PrependOlder(p.Messages, p.HasMore); err != nil {
		return err
	}
	for _, m := range p.Messages {
		if e.isUnreadFor(m) {
			e.unread[m.ID] = struct{}{}
		}
	}
	messagesInStore.Set(float64(e.store.Len()))
	pagesLoaded.Inc()
	eventsApplied.WithLabelValues(EventMoreMessages).Inc()
	snapshot := make([]*Message, 0, len(p.Messages))
	for _, m := range p.Messages {
		snapshot = append(snapshot, m.Clone())
	}
	e.projector.MessagesPrepended(snapshot, e.store.HasMoreOlder())
	e.projector.UnreadChanged(len(e.unread))
	return nil
}

// replaceWindow swaps the entire visible window for a find-message result.
// The two ranges may be non-contiguous, so replacing is the only merge that
// preserves the ordered-window invariant.
func (e *Engine) replaceWindow(p *MessageFoundPayload) {
	for _, m := range p.Messages {
		e.scrubReadBy(m)
	}
	e.store.ReplaceAll(p.Messages, p.HasMore)
	e.generation++

	e.unread = make(map[string]struct{})
	for _, m := range p.Messages {
		if e.isUnreadFor(m) {
			e.unread[m.ID] = struct{}{}
		}
	}

	messagesInStore.Set(float64(e.store.Len()))
	eventsApplied.WithLabelValues(EventMessageFound).Inc()
	e.projector.HistoryReset(e.store.Snapshot(), e.store.HasMoreOlder())
	e.projector.UnreadChanged(len(e.unread))
}

// Outgoing operations. None of these mutate the store: the server assigns
// ids and echoes every mutation back, including to the originating client.

func (e *Engine) SendText(ctx context.Context, text string, replyTo *ReplyRef) error {
	out := OutgoingMessage{Data: text, ReplyTo: replyTo}
	if err := utils.ValidateStruct(&out); err != nil {
		return err
	}
	return e.emitter.Emit(ctx, EventMessage, out)
}

func (e *Engine) SendGIF(ctx context.Context, gif GIFAttachment, replyTo *ReplyRef) error {
	out := OutgoingMessage{GIF: &gif, ReplyTo: replyTo}
	return e.emitter.Emit(ctx, EventMessage, out)
}

func (e *Engine) SendMediaMessage(ctx context.Context, out OutgoingMessage) error {
	if err := utils.ValidateStruct(&out); err != nil {
		return err
	}
	return e.emitter.Emit(ctx, EventMessage, out)
}

func (e *Engine) EditMessage(ctx context.Context, id, newText string) error {
	if _, ok := e.store.Find(id); !ok {
		return fmt.Errorf("edit %s: %w", id, ErrMessageNotLoaded)
	}
	out := OutgoingEdit{MessageID: id, NewText: newText}
	if err := utils.ValidateStruct(&out); err != nil {
		return err
	}
	return e.emitter.Emit(ctx, EventEditMessage, out)
}

func (e *Engine) DeleteMessage(ctx context.Context, id string) error {
	if _, ok := e.store.Find(id); !ok {
		return fmt.Errorf("delete %s: %w", id, ErrMessageNotLoaded)
	}
	return e.emitter.Emit(ctx, EventDeleteMessage, OutgoingDelete{MessageID: id})
}

func (e *Engine) ToggleReaction(ctx context.Context, id, emoji string) error {
	if _, ok := e.store.Find(id); !ok {
		return fmt.Errorf("react %s: %w", id, ErrMessageNotLoaded)
	}
	out := OutgoingToggleReaction{MessageID: id, Emoji: emoji}
	if err := utils.ValidateStruct(&out); err != nil {
		return err
	}
	return e.emitter.Emit(ctx, EventToggleReaction, out)
}

// MarkMessagesRead emits a read receipt for the given ids and clears them
// from the local unread ledger. Ids not in the loaded window are skipped;
// the receipt itself lands in the store only via the server's echo.
func (e *Engine) MarkMessagesRead(ctx context.Context, ids []string) error {
	valid := ids[:0:0]
	for _, id := range ids {
		if _, ok := e.store.Find(id); ok {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return nil
	}

	out := OutgoingMarkRead{MessageIDs: valid}
	if err := utils.ValidateStruct(&out); err != nil {
		return err
	}
	if err := e.emitter.Emit(ctx, EventMarkMessagesRead, out); err != nil {
		return err
	}

	changed := false
	for _, id := range valid {
		if _, ok := e.unread[id]; ok {
			delete(e.unread, id)
			changed = true
		}
	}
	e.lastReadID = valid[len(valid)-1]
	if changed {
		e.projector.UnreadChanged(len(e.unread))
	}
	return nil
}

// isUnreadFor reports whether a message counts toward the local unread
// badge: normal-kind, from someone else, and not yet read by us.
func (e *Engine) isUnreadFor(m *Message) bool {
	return !m.IsSystem() && m.Sender != e.currentUser && !m.HasReadBy(e.currentUser)
}

// scrubReadBy drops empty readers and the sender from an incoming read set.
func (e *Engine) scrubReadBy(m *Message) {
	if len(m.ReadBy) == 0 {
		return
	}
	readers := m.ReadBy[:0]
	for _, r := range m.ReadBy {
		if r == "" || r == m.Sender {
			continue
		}
		readers = append(readers, r)
	}
	m.ReadBy = readers
}
