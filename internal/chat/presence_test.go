// internal/chat/presence_test.go

package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetTypingIsIdempotent(t *testing.T) {
	p := NewPresenceTracker()

	assert.True(t, p.SetTyping("bob", true))
	assert.False(t, p.SetTyping("bob", true), "repeat start changes nothing")
	assert.True(t, p.SetTyping("bob", false))
	assert.False(t, p.SetTyping("bob", false), "repeat stop changes nothing")
	assert.False(t, p.SetTyping("", true))
}

func TestTypingUsersSorted(t *testing.T) {
	p := NewPresenceTracker()
	p.SetTyping("zoe", true)
	p.SetTyping("bob", true)
	p.SetTyping("carol", true)

	assert.Equal(t, []string{"bob", "carol", "zoe"}, p.TypingUsers())

	p.Clear()
	assert.Empty(t, p.TypingUsers())
}

// fakeTimer lets tests fire the debounce callback deterministically.
type fakeTimer struct {
	delays    []time.Duration
	callbacks []func()
}

func (f *fakeTimer) afterFunc(d time.Duration, fn func()) *time.Timer {
	f.delays = append(f.delays, d)
	f.callbacks = append(f.callbacks, fn)
	// return a real stopped timer so Stop() calls are harmless
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	return timer
}

func (f *fakeTimer) fireLast() {
	f.callbacks[len(f.callbacks)-1]()
}

func typingStates(emitter *fakeEmitter) []bool {
	var out []bool
	for _, e := range emitter.eventsOfType(EventTyping) {
		out = append(out, e.payload.(OutgoingTyping).IsTyping)
	}
	return out
}

func TestNotifierEmitsStartOnFirstKeystrokeOnly(t *testing.T) {
	emitter := &fakeEmitter{}
	timer := &fakeTimer{}
	n := NewTypingNotifier(emitter)
	n.afterFunc = timer.afterFunc

	n.Keystroke(context.Background())
	n.Keystroke(context.Background())
	n.Keystroke(context.Background())

	assert.Equal(t, []bool{true}, typingStates(emitter))
	require.Len(t, timer.delays, 3, "every keystroke rearms the timer")
	for _, d := range timer.delays {
		assert.Equal(t, TypingTimeout, d)
	}
}

func TestNotifierEmitsStopAfterQuietInterval(t *testing.T) {
	emitter := &fakeEmitter{}
	timer := &fakeTimer{}
	n := NewTypingNotifier(emitter)
	n.afterFunc = timer.afterFunc

	n.Keystroke(context.Background())
	timer.fireLast()

	assert.Equal(t, []bool{true, false}, typingStates(emitter))

	// typing again starts a fresh cycle
	n.Keystroke(context.Background())
	assert.Equal(t, []bool{true, false, true}, typingStates(emitter))
}

func TestNotifierStopIsImmediateAndIdempotent(t *testing.T) {
	emitter := &fakeEmitter{}
	timer := &fakeTimer{}
	n := NewTypingNotifier(emitter)
	n.afterFunc = timer.afterFunc

	n.Keystroke(context.Background())
	n.Stop(context.Background())
	n.Stop(context.Background())

	assert.Equal(t, []bool{true, false}, typingStates(emitter))

	// a stale timer callback after Stop must not emit another stop
	timer.fireLast()
	assert.Equal(t, []bool{true, false}, typingStates(emitter))
}

func TestNotifierStopWithoutKeystrokeIsSilent(t *testing.T) {
	emitter := &fakeEmitter{}
	n := NewTypingNotifier(emitter)

	n.Stop(context.Background())
	assert.Empty(t, emitter.events)
}
