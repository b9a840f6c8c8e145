// internal/chat/session.go

package chat

import (
	"context"
	"log"
	"time"

	"github.com/MrBlankCoding/Channel-Chat/internal/localstate"
)

// stateSaveInterval bounds how stale the persisted read cursor can get
// while the loop is busy.
const stateSaveInterval = 5 * time.Second

// Session owns one room's engine and serializes all access to it. Every
// store mutation happens on the Run goroutine; user commands are funneled
// in through a closure channel, so the engine itself never needs a lock.
type Session struct {
	room   string
	engine *Engine
	pager  *PaginationController
	typing *TypingNotifier
	state  localstate.Store

	events   <-chan Inbound
	connUp   <-chan bool
	commands chan func(context.Context)

	// active mirrors tab visibility: while true, incoming messages are
	// read-marked immediately instead of accruing to the unread badge.
	active bool
	dirty  bool

	done chan struct{}
}

type SessionOptions struct {
	Room   string
	Engine *Engine
	Pager  *PaginationController
	Typing *TypingNotifier
	State  localstate.Store

	// Events carries decoded server events; ConnUp carries connect (true)
	// and disconnect (false) transitions from the transport.
	Events <-chan Inbound
	ConnUp <-chan bool
}

func NewSession(opts SessionOptions) *Session {
	return &Session{
		room:     opts.Room,
		engine:   opts.Engine,
		pager:    opts.Pager,
		typing:   opts.Typing,
		state:    opts.State,
		events:   opts.Events,
		connUp:   opts.ConnUp,
		commands: make(chan func(context.Context), 64),
		done:     make(chan struct{}),
	}
}

// Run is the session loop. It restores persisted state, then applies
// events, commands and periodic saves until ctx is cancelled or the
// events channel closes.
func (s *Session) Run(ctx context.Context) {
	defer close(s.done)
	s.restore(ctx)

	ticker := time.NewTicker(stateSaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.shutdown(ctx)
			return

		case evt, ok := <-s.events:
			if !ok {
				s.shutdown(ctx)
				return
			}
			s.engine.Apply(evt)
			s.afterEvent(ctx)

		case up, ok := <-s.connUp:
			if !ok {
				continue
			}
			if up {
				s.engine.HandleConnected()
			} else {
				s.engine.HandleDisconnected()
			}

		case fn := <-s.commands:
			fn(ctx)
			s.dirty = true

		case <-ticker.C:
			if s.dirty {
				s.save(ctx)
			}
		}
	}
}

// Done is closed when the loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// restore seeds the read cursor and unread badge from the last session so
// the badge is meaningful before history arrives.
func (s *Session) restore(ctx context.Context) {
	if s.state == nil {
		return
	}
	st, err := s.state.Load(ctx, s.room)
	if err != nil {
		log.Printf("session %s: failed to restore state: %v", s.room, err)
		return
	}
	s.engine.lastReadID = st.LastReadMessageID
	if st.UnreadCount > 0 {
		s.engine.projector.UnreadChanged(st.UnreadCount)
	}
}

func (s *Session) save(ctx context.Context) {
	if s.state == nil {
		return
	}
	st := localstate.State{
		LastReadMessageID: s.engine.LastReadID(),
		UnreadCount:       s.engine.UnreadCount(),
		Username:          s.engine.currentUser,
	}
	if err := s.state.Save(ctx, s.room, st); err != nil {
		log.Printf("session %s: failed to save state: %v", s.room, err)
		return
	}
	s.dirty = false
}

func (s *Session) shutdown(ctx context.Context) {
	if s.typing != nil {
		s.typing.Stop(ctx)
	}
	s.save(ctx)
}

// afterEvent runs after each applied server event. While the tab is
// active every unread message is read-marked right away.
func (s *Session) afterEvent(ctx context.Context) {
	s.dirty = true
	if s.active && s.engine.UnreadCount() > 0 {
		s.flushReads(ctx)
	}
}

func (s *Session) flushReads(ctx context.Context) {
	ids := s.engine.UnreadIDs()
	if len(ids) == 0 {
		return
	}
	if err := s.engine.MarkMessagesRead(ctx, ids); err != nil {
		log.Printf("session %s: failed to mark %d messages read: %v", s.room, len(ids), err)
	}
}

// do runs fn on the loop goroutine and waits for its result.
func (s *Session) do(ctx context.Context, fn func(context.Context) error) error {
	errc := make(chan error, 1)
	select {
	case s.commands <- func(loopCtx context.Context) { errc <- fn(loopCtx) }:
	case <-s.done:
		return ErrNotLive
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-errc:
		return err
	case <-s.done:
		return ErrNotLive
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetActive reflects tab visibility. Becoming active flushes the unread
// set as read receipts.
func (s *Session) SetActive(ctx context.Context, active bool) error {
	return s.do(ctx, func(loopCtx context.Context) error {
		s.active = active
		if active {
			s.flushReads(loopCtx)
		}
		return nil
	})
}

func (s *Session) SendText(ctx context.Context, text string, replyTo *ReplyRef) error {
	if s.typing != nil {
		s.typing.Stop(ctx)
	}
	return s.do(ctx, func(loopCtx context.Context) error {
		return s.engine.SendText(loopCtx, text, replyTo)
	})
}

func (s *Session) SendGIF(ctx context.Context, gif GIFAttachment, replyTo *ReplyRef) error {
	return s.do(ctx, func(loopCtx context.Context) error {
		return s.engine.SendGIF(loopCtx, gif, replyTo)
	})
}

func (s *Session) EditMessage(ctx context.Context, id, newText string) error {
	return s.do(ctx, func(loopCtx context.Context) error {
		return s.engine.EditMessage(loopCtx, id, newText)
	})
}

func (s *Session) DeleteMessage(ctx context.Context, id string) error {
	return s.do(ctx, func(loopCtx context.Context) error {
		return s.engine.DeleteMessage(loopCtx, id)
	})
}

func (s *Session) ToggleReaction(ctx context.Context, id, emoji string) error {
	return s.do(ctx, func(loopCtx context.Context) error {
		return s.engine.ToggleReaction(loopCtx, id, emoji)
	})
}

func (s *Session) LoadOlder(ctx context.Context) error {
	return s.do(ctx, func(loopCtx context.Context) error {
		return s.pager.LoadOlder(loopCtx)
	})
}

func (s *Session) JumpToMessage(ctx context.Context, id string) error {
	return s.do(ctx, func(loopCtx context.Context) error {
		return s.pager.JumpToMessage(loopCtx, id)
	})
}

// Keystroke feeds the typing debouncer. The notifier is internally
// synchronized, so this does not go through the loop.
func (s *Session) Keystroke(ctx context.Context) error {
	if s.typing == nil {
		return nil
	}
	s.typing.Keystroke(ctx)
	return nil
}

// Snapshot returns a deep copy of the loaded window for read-side use off
// the loop goroutine.
func (s *Session) Snapshot(ctx context.Context) ([]*Message, error) {
	var out []*Message
	err := s.do(ctx, func(context.Context) error {
		out = s.engine.store.Snapshot()
		return nil
	})
	return out, err
}

// Status is a read-only view of the session counters.
type Status struct {
	Connection   string `json:"connection"`
	Messages     int    `json:"messages"`
	HasMoreOlder bool   `json:"hasMoreOlder"`
	Unread       int    `json:"unread"`
	LastReadID   string `json:"lastReadId"`
	Active       bool   `json:"active"`
}

// Status collects the session counters on the loop goroutine.
func (s *Session) Status(ctx context.Context) (Status, error) {
	var st Status
	err := s.do(ctx, func(context.Context) error {
		st = Status{
			Connection:   s.engine.State().String(),
			Messages:     s.engine.store.Len(),
			HasMoreOlder: s.engine.store.HasMoreOlder(),
			Unread:       s.engine.UnreadCount(),
			LastReadID:   s.engine.LastReadID(),
			Active:       s.active,
		}
		return nil
	})
	return st, err
}
