// internal/chat/engine_test.go

package chat

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emitted struct {
	event   string
	payload interface{}
}

// fakeEmitter records what the core sends without any transport.
type fakeEmitter struct {
	events []emitted
	err    error
}

func (f *fakeEmitter) Emit(_ context.Context, event string, payload interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, emitted{event, payload})
	return nil
}

func (f *fakeEmitter) eventsOfType(event string) []emitted {
	var out []emitted
	for _, e := range f.events {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

// recordingProjector captures view updates for assertions.
type recordingProjector struct {
	NopProjector

	resets    int
	prepends  int
	appended  []string
	updated   []string
	removed   []string
	typing    [][]string
	unread    []int
	scrolls   []string
	notices   []string
	alerts    []string
	progress []float64
}

func (r *recordingProjector) HistoryReset(messages []*Message, hasMoreOlder bool) { r.resets++ }
func (r *recordingProjector) MessagesPrepended(messages []*Message, hasMoreOlder bool) {
	r.prepends++
}
func (r *recordingProjector) MessageAppended(m *Message) { r.appended = append(r.appended, m.ID) }
func (r *recordingProjector) MessageUpdated(m *Message)  { r.updated = append(r.updated, m.ID) }
func (r *recordingProjector) MessageRemoved(id string)   { r.removed = append(r.removed, id) }
func (r *recordingProjector) TypingChanged(users []string) {
	r.typing = append(r.typing, users)
}
func (r *recordingProjector) UnreadChanged(count int) { r.unread = append(r.unread, count) }
func (r *recordingProjector) UploadProgress(id string, fraction float64) {
	r.progress = append(r.progress, fraction)
}
func (r *recordingProjector) ScrollTo(id string, highlight bool) {
	r.scrolls = append(r.scrolls, id)
}
func (r *recordingProjector) Notice(text string) { r.notices = append(r.notices, text) }
func (r *recordingProjector) Alert(text string)  { r.alerts = append(r.alerts, text) }

func newTestEngine(t *testing.T, currentUser string) (*Engine, *fakeEmitter, *recordingProjector) {
	t.Helper()
	emitter := &fakeEmitter{}
	projector := &recordingProjector{}
	engine := NewEngine(NewMessageStore(), NewPresenceTracker(), emitter, projector, currentUser)
	engine.SetPager(NewPaginationController(engine, emitter, projector))
	return engine, emitter, projector
}

func apply(t *testing.T, e *Engine, event, payload string) {
	t.Helper()
	e.Apply(Inbound{Type: event, Data: json.RawMessage(payload)})
}

func TestChatHistoryLoad(t *testing.T) {
	engine, _, projector := newTestEngine(t, "alice")
	engine.HandleConnected()

	apply(t, engine, EventChatHistory, `{
		"messages": [
			{"id": "m1", "name": "bob", "message": "hi", "timestamp": "2026-08-30T10:00:00Z"},
			{"id": "m2", "name": "alice", "message": "hey", "timestamp": "2026-08-30T10:01:00Z"},
			{"id": "m3", "name": "bob", "message": "news", "read_by": ["alice"], "timestamp": "2026-08-30T10:02:00Z"},
			{"id": "m4", "name": "", "message": "bob joined", "type": "system", "timestamp": "2026-08-30T10:03:00Z"}
		],
		"has_more": true
	}`)

	assert.Equal(t, StateLive, engine.State())
	assert.Equal(t, 4, engine.store.Len())
	assert.Equal(t, "m1", engine.store.OldestLoadedID())
	assert.True(t, engine.store.HasMoreOlder())
	assert.Equal(t, 1, projector.resets)

	// m2 is own, m3 already read, m4 is system: only m1 counts
	assert.Equal(t, []string{"m1"}, engine.UnreadIDs())
}

func TestChatHistoryScrubsSenderFromReadBy(t *testing.T) {
	engine, _, _ := newTestEngine(t, "alice")

	apply(t, engine, EventChatHistory, `{
		"messages": [
			{"id": "m1", "name": "bob", "message": "hi", "read_by": ["bob", "carol", ""], "timestamp": "2026-08-30T10:00:00Z"}
		],
		"has_more": false
	}`)

	m, ok := engine.store.Find("m1")
	require.True(t, ok)
	assert.Equal(t, []string{"carol"}, m.ReadBy)
}

func TestDuplicateMessageDeliveryIsIdempotent(t *testing.T) {
	engine, _, projector := newTestEngine(t, "alice")
	apply(t, engine, EventChatHistory, `{"messages": [], "has_more": false}`)

	msg := `{"id": "m1", "name": "bob", "message": "hi", "timestamp": "2026-08-30T10:00:00Z"}`
	apply(t, engine, EventMessage, msg)
	apply(t, engine, EventMessage, msg)

	assert.Equal(t, 1, engine.store.Len())
	assert.Equal(t, []string{"m1"}, projector.appended)
	assert.Equal(t, 1, engine.UnreadCount())
}

func TestOwnMessageEchoIsNotUnread(t *testing.T) {
	engine, _, _ := newTestEngine(t, "alice")
	apply(t, engine, EventChatHistory, `{"messages": [], "has_more": false}`)

	apply(t, engine, EventMessage, `{"id": "m1", "name": "alice", "message": "hi", "timestamp": "2026-08-30T10:00:00Z"}`)

	assert.Equal(t, 1, engine.store.Len())
	assert.Equal(t, 0, engine.UnreadCount())
}

func TestEditAppliesInPlace(t *testing.T) {
	engine, _, projector := newTestEngine(t, "alice")
	apply(t, engine, EventChatHistory, `{
		"messages": [{"id": "m1", "name": "bob", "message": "helo", "timestamp": "2026-08-30T10:00:00Z"}],
		"has_more": false
	}`)

	apply(t, engine, EventEditMessage, `{"messageId": "m1", "newText": "hello"}`)

	m, ok := engine.store.Find("m1")
	require.True(t, ok)
	assert.Equal(t, "hello", m.Body)
	assert.True(t, m.Edited)
	require.NotNil(t, m.EditedAt)
	assert.Equal(t, []string{"m1"}, projector.updated)
}

func TestEditForUnknownMessageIsDropped(t *testing.T) {
	engine, _, projector := newTestEngine(t, "alice")
	apply(t, engine, EventChatHistory, `{"messages": [], "has_more": false}`)

	apply(t, engine, EventEditMessage, `{"messageId": "ghost", "newText": "boo"}`)

	assert.Equal(t, 0, engine.store.Len())
	assert.Empty(t, projector.updated)
}

func TestDeleteRemovesAndClearsUnread(t *testing.T) {
	engine, _, projector := newTestEngine(t, "alice")
	apply(t, engine, EventChatHistory, `{
		"messages": [{"id": "m1", "name": "bob", "message": "hi", "timestamp": "2026-08-30T10:00:00Z"}],
		"has_more": false
	}`)
	require.Equal(t, 1, engine.UnreadCount())

	apply(t, engine, EventDeleteMessage, `{"messageId": "m1"}`)
	// redelivery is a no-op
	apply(t, engine, EventDeleteMessage, `{"messageId": "m1"}`)

	assert.Equal(t, 0, engine.store.Len())
	assert.Equal(t, 0, engine.UnreadCount())
	assert.Equal(t, []string{"m1"}, projector.removed)
}

func TestUpdateReactionsReplacesWholesale(t *testing.T) {
	engine, _, _ := newTestEngine(t, "alice")
	apply(t, engine, EventChatHistory, `{
		"messages": [{"id": "m1", "name": "bob", "message": "hi",
			"reactions": {"👍": {"count": 1, "users": ["carol"]}},
			"timestamp": "2026-08-30T10:00:00Z"}],
		"has_more": false
	}`)

	// count on the wire disagrees with users; users win
	apply(t, engine, EventUpdateReactions, `{"messageId": "m1",
		"reactions": {"❤️": {"count": 5, "users": ["bob", "bob", "dave"]}}}`)

	m, ok := engine.store.Find("m1")
	require.True(t, ok)
	require.Len(t, m.Reactions, 1)
	r := m.Reactions["❤️"]
	assert.Equal(t, 2, r.Count)
	assert.Equal(t, []string{"bob", "dave"}, r.Users)
}

func TestMessagesReadNeverAddsSenderOrDuplicates(t *testing.T) {
	engine, _, _ := newTestEngine(t, "alice")
	apply(t, engine, EventChatHistory, `{
		"messages": [
			{"id": "m1", "name": "bob", "message": "hi", "timestamp": "2026-08-30T10:00:00Z"},
			{"id": "m2", "name": "carol", "message": "yo", "timestamp": "2026-08-30T10:01:00Z"}
		],
		"has_more": false
	}`)

	apply(t, engine, EventMessagesRead, `{"reader": "bob", "message_ids": ["m1", "m2", "ghost"]}`)
	apply(t, engine, EventMessagesRead, `{"reader": "bob", "message_ids": ["m2"]}`)

	m1, _ := engine.store.Find("m1")
	assert.Empty(t, m1.ReadBy, "sender must not appear in its own read set")

	m2, _ := engine.store.Find("m2")
	assert.Equal(t, []string{"bob"}, m2.ReadBy)
}

func TestTypingIgnoresSelf(t *testing.T) {
	engine, _, projector := newTestEngine(t, "alice")

	apply(t, engine, EventTyping, `{"name": "alice", "isTyping": true}`)
	assert.Empty(t, projector.typing)

	apply(t, engine, EventTyping, `{"name": "bob", "isTyping": true}`)
	require.Len(t, projector.typing, 1)
	assert.Equal(t, []string{"bob"}, projector.typing[0])

	// repeat carries no new information
	apply(t, engine, EventTyping, `{"name": "bob", "isTyping": true}`)
	assert.Len(t, projector.typing, 1)

	apply(t, engine, EventTyping, `{"name": "bob", "isTyping": false}`)
	require.Len(t, projector.typing, 2)
	assert.Empty(t, projector.typing[1])
}

func TestDisconnectClearsPresenceKeepsStore(t *testing.T) {
	engine, _, projector := newTestEngine(t, "alice")
	apply(t, engine, EventChatHistory, `{
		"messages": [{"id": "m1", "name": "bob", "message": "hi", "timestamp": "2026-08-30T10:00:00Z"}],
		"has_more": false
	}`)
	apply(t, engine, EventTyping, `{"name": "bob", "isTyping": true}`)

	engine.HandleDisconnected()

	assert.Equal(t, StateDisconnected, engine.State())
	assert.Equal(t, 1, engine.store.Len(), "last known window stays visible")
	assert.Empty(t, engine.presence.TypingUsers())
	assert.Empty(t, projector.typing[len(projector.typing)-1])
}

func TestMarkMessagesReadFiltersUnloadedIDs(t *testing.T) {
	engine, emitter, _ := newTestEngine(t, "alice")
	apply(t, engine, EventChatHistory, `{
		"messages": [
			{"id": "m1", "name": "bob", "message": "hi", "timestamp": "2026-08-30T10:00:00Z"},
			{"id": "m2", "name": "bob", "message": "yo", "timestamp": "2026-08-30T10:01:00Z"}
		],
		"has_more": false
	}`)

	err := engine.MarkMessagesRead(context.Background(), []string{"m1", "ghost", "m2"})
	require.NoError(t, err)

	sent := emitter.eventsOfType(EventMarkMessagesRead)
	require.Len(t, sent, 1)
	payload := sent[0].payload.(OutgoingMarkRead)
	assert.Equal(t, []string{"m1", "m2"}, payload.MessageIDs)

	assert.Equal(t, 0, engine.UnreadCount())
	assert.Equal(t, "m2", engine.LastReadID())
}

func TestMarkMessagesReadAllUnloadedIsNoop(t *testing.T) {
	engine, emitter, _ := newTestEngine(t, "alice")
	apply(t, engine, EventChatHistory, `{"messages": [], "has_more": false}`)

	err := engine.MarkMessagesRead(context.Background(), []string{"ghost"})
	require.NoError(t, err)
	assert.Empty(t, emitter.eventsOfType(EventMarkMessagesRead))
	assert.Empty(t, engine.LastReadID())
}

func TestSendTextRequiresContent(t *testing.T) {
	engine, emitter, _ := newTestEngine(t, "alice")

	err := engine.SendText(context.Background(), "", nil)
	assert.Error(t, err)
	assert.Empty(t, emitter.events)

	err = engine.SendText(context.Background(), "hello", &ReplyRef{ID: "m1", Message: "hi"})
	require.NoError(t, err)
	sent := emitter.eventsOfType(EventMessage)
	require.Len(t, sent, 1)
	out := sent[0].payload.(OutgoingMessage)
	assert.Equal(t, "hello", out.Data)
	require.NotNil(t, out.ReplyTo)
	assert.Equal(t, "m1", out.ReplyTo.ID)
}

func TestSendDoesNotInsertLocally(t *testing.T) {
	engine, _, _ := newTestEngine(t, "alice")
	apply(t, engine, EventChatHistory, `{"messages": [], "has_more": false}`)

	require.NoError(t, engine.SendText(context.Background(), "hello", nil))
	assert.Equal(t, 0, engine.store.Len(), "message appears only via server echo")

	apply(t, engine, EventMessage, `{"id": "m1", "name": "alice", "message": "hello", "timestamp": "2026-08-30T10:00:00Z"}`)
	assert.Equal(t, 1, engine.store.Len())
}

func TestMutationsRequireLoadedTarget(t *testing.T) {
	engine, emitter, _ := newTestEngine(t, "alice")
	apply(t, engine, EventChatHistory, `{"messages": [], "has_more": false}`)

	assert.True(t, errors.Is(engine.EditMessage(context.Background(), "ghost", "new"), ErrMessageNotLoaded))
	assert.True(t, errors.Is(engine.DeleteMessage(context.Background(), "ghost"), ErrMessageNotLoaded))
	assert.True(t, errors.Is(engine.ToggleReaction(context.Background(), "ghost", "👍"), ErrMessageNotLoaded))
	assert.Empty(t, emitter.events)
}

func TestReconnectHistoryReplacesWindow(t *testing.T) {
	engine, _, projector := newTestEngine(t, "alice")
	apply(t, engine, EventChatHistory, `{
		"messages": [{"id": "m1", "name": "bob", "message": "old", "timestamp": "2026-08-30T10:00:00Z"}],
		"has_more": true
	}`)
	gen := engine.Generation()

	engine.HandleDisconnected()
	engine.HandleConnected()
	apply(t, engine, EventChatHistory, `{
		"messages": [
			{"id": "m1", "name": "bob", "message": "old", "timestamp": "2026-08-30T10:00:00Z"},
			{"id": "m5", "name": "bob", "message": "missed this", "timestamp": "2026-08-30T11:00:00Z"}
		],
		"has_more": true
	}`)

	assert.Equal(t, StateLive, engine.State())
	assert.Equal(t, 2, engine.store.Len())
	assert.Greater(t, engine.Generation(), gen)
	assert.Equal(t, 2, projector.resets)
}

func TestEditedAtIsRecent(t *testing.T) {
	engine, _, _ := newTestEngine(t, "alice")
	apply(t, engine, EventChatHistory, `{
		"messages": [{"id": "m1", "name": "bob", "message": "x", "timestamp": "2026-08-30T10:00:00Z"}],
		"has_more": false
	}`)

	before := time.Now()
	apply(t, engine, EventEditMessage, `{"messageId": "m1", "newText": "y"}`)

	m, _ := engine.store.Find("m1")
	require.NotNil(t, m.EditedAt)
	assert.False(t, m.EditedAt.Before(before))
}
