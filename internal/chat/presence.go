// internal/chat/presence.go

package chat

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"
)

// TypingTimeout is how long local input may stay quiet before a
// typing-stop is emitted on the user's behalf.
const TypingTimeout = 1000 * time.Millisecond

// PresenceTracker maintains the set of remote users currently typing.
// It is keyed by user name and independent of store content; it is reset
// on transport disconnect.
type PresenceTracker struct {
	typing map[string]struct{}
}

func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{typing: make(map[string]struct{})}
}

// SetTyping records a remote user's typing state. Idempotent set add and
// remove. Returns true if the derived typing-users view changed.
func (p *PresenceTracker) SetTyping(user string, isTyping bool) bool {
	if user == "" {
		return false
	}
	_, present := p.typing[user]
	if isTyping == present {
		return false
	}
	if isTyping {
		p.typing[user] = struct{}{}
	} else {
		delete(p.typing, user)
	}
	return true
}

// TypingUsers returns the currently-typing users, sorted for stable
// rendering.
func (p *PresenceTracker) TypingUsers() []string {
	users := make([]string, 0, len(p.typing))
	for u := range p.typing {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

// Clear drops all typing state.
func (p *PresenceTracker) Clear() {
	p.typing = make(map[string]struct{})
}

// TypingNotifier debounces locally-originated typing notifications:
// the first keystroke emits typing-start, and a stop is emitted after
// TypingTimeout of quiet. Every keystroke resets the timer (debounce,
// not throttle). Safe for use from input-handling goroutines.
type TypingNotifier struct {
	emitter Emitter
	timeout time.Duration

	mu     sync.Mutex
	timer  *time.Timer
	active bool

	// afterFunc is swapped in tests
	afterFunc func(d time.Duration, f func()) *time.Timer
}

func NewTypingNotifier(emitter Emitter) *TypingNotifier {
	return &TypingNotifier{
		emitter:   emitter,
		timeout:   TypingTimeout,
		afterFunc: time.AfterFunc,
	}
}

// Keystroke marks local input activity.
func (t *TypingNotifier) Keystroke(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active {
		t.active = true
		t.emit(ctx, true)
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = t.afterFunc(t.timeout, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if !t.active {
			return
		}
		t.active = false
		t.emit(context.Background(), false)
	})
}

// Stop cancels the debounce and emits typing-stop immediately. Called when
// a message is sent or the input is cleared.
func (t *TypingNotifier) Stop(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	if t.active {
		t.active = false
		t.emit(ctx, false)
	}
}

func (t *TypingNotifier) emit(ctx context.Context, isTyping bool) {
	if err := t.emitter.Emit(ctx, EventTyping, OutgoingTyping{IsTyping: isTyping}); err != nil {
		log.Printf("typing: failed to emit state: %v", err)
	}
}
