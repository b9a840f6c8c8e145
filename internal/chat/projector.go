// internal/chat/projector.go

package chat

import "context"

// Emitter is the outbound half of the transport contract. The core emits
// named events and never sees the wire framing.
type Emitter interface {
	Emit(ctx context.Context, event string, payload interface{}) error
}

// Projector receives read-only view updates from the core. Implementations
// render (DOM, terminal, test recorder); they must not call back into the
// session from inside a callback.
type Projector interface {
	// HistoryReset replaces the whole visible window (initial load,
	// jump-to-message reload).
	HistoryReset(messages []*Message, hasMoreOlder bool)
	// MessagesPrepended inserts an older page at the top of the window.
	MessagesPrepended(messages []*Message, hasMoreOlder bool)
	MessageAppended(m *Message)
	MessageUpdated(m *Message)
	// MessageRemoved is also the staleness signal for any reply reference
	// or open picker targeting the removed id.
	MessageRemoved(id string)

	TypingChanged(users []string)
	UnreadChanged(count int)
	UploadProgress(id string, fraction float64)

	// ScrollTo asks the view to bring a loaded message into view.
	ScrollTo(id string, highlight bool)
	// Notice is a transient, auto-dismissed banner.
	Notice(text string)
	// Alert is a blocking user-visible failure (upload errors).
	Alert(text string)
}

// NopProjector discards every update. Useful as a default and in tests
// that only assert on store state.
type NopProjector struct{}

func (NopProjector) HistoryReset([]*Message, bool)      {}
func (NopProjector) MessagesPrepended([]*Message, bool) {}
func (NopProjector) MessageAppended(*Message)           {}
func (NopProjector) MessageUpdated(*Message)            {}
func (NopProjector) MessageRemoved(string)              {}
func (NopProjector) TypingChanged([]string)             {}
func (NopProjector) UnreadChanged(int)                  {}
func (NopProjector) UploadProgress(string, float64)     {}
func (NopProjector) ScrollTo(string, bool)              {}
func (NopProjector) Notice(string)                      {}
func (NopProjector) Alert(string)                       {}
