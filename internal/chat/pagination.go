// internal/chat/pagination.go

package chat

import (
	"context"
	"log"

	"github.com/MrBlankCoding/Channel-Chat/internal/common/utils"
)

// PaginationController issues load-older and find-message requests and
// merges their responses into the store through the engine. At most one
// older-page request is outstanding at a time, and responses that arrive
// after the window they were issued against has been replaced are
// detected via the engine's generation counter and discarded.
type PaginationController struct {
	engine    *Engine
	emitter   Emitter
	projector Projector

	inFlight    bool
	inFlightGen uint64

	// pendingFind holds the id to scroll to once a find-message window
	// lands; empty when no find is outstanding.
	pendingFind string
}

func NewPaginationController(engine *Engine, emitter Emitter, projector Projector) *PaginationController {
	if projector == nil {
		projector = NopProjector{}
	}
	return &PaginationController{
		engine:    engine,
		emitter:   emitter,
		projector: projector,
	}
}

// LoadOlder requests the next older page. No-op while a request is in
// flight or when the server has said there is nothing older.
func (p *PaginationController) LoadOlder(ctx context.Context) error {
	if p.inFlight || !p.engine.store.HasMoreOlder() {
		return nil
	}
	cursor := p.engine.store.OldestLoadedID()
	if cursor == "" {
		return nil
	}

	out := OutgoingLoadMore{LastMessageID: cursor}
	if err := utils.ValidateStruct(&out); err != nil {
		return err
	}

	p.inFlight = true
	p.inFlightGen = p.engine.Generation()
	if err := p.emitter.Emit(ctx, EventLoadMoreMessages, out); err != nil {
		p.inFlight = false
		return err
	}
	return nil
}

// HandleMoreMessages merges an older-page response. The in-flight flag is
// cleared even for late responses; a response issued against a window that
// has since been replaced is dropped.
func (p *PaginationController) HandleMoreMessages(resp *MoreMessagesPayload) {
	wasInFlight := p.inFlight
	requestGen := p.inFlightGen
	p.inFlight = false

	if !wasInFlight {
		duplicateEvents.WithLabelValues(EventMoreMessages).Inc()
		return
	}
	if requestGen != p.engine.Generation() {
		staleResponses.Inc()
		log.Printf("chat: discarding older page for superseded window (gen %d != %d)",
			requestGen, p.engine.Generation())
		return
	}

	if err := p.engine.applyOlder(resp); err != nil {
		log.Printf("chat: rejected older page: %v", err)
		p.projector.Notice("Could not load older messages")
	}
}

// JumpToMessage brings a message into view. Loaded messages scroll
// directly; everything else goes through a find-message round trip that
// replaces the visible window.
func (p *PaginationController) JumpToMessage(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if _, ok := p.engine.store.Find(id); ok {
		p.projector.ScrollTo(id, true)
		return nil
	}

	out := OutgoingFindMessage{MessageID: id}
	if err := utils.ValidateStruct(&out); err != nil {
		return err
	}
	p.pendingFind = id
	if err := p.emitter.Emit(ctx, EventFindMessage, out); err != nil {
		p.pendingFind = ""
		return err
	}
	return nil
}

// HandleMessageFound applies a find-message response. A not-found result
// leaves the store untouched; its only observable effect is a transient
// notice.
func (p *PaginationController) HandleMessageFound(resp *MessageFoundPayload) {
	target := p.pendingFind
	p.pendingFind = ""

	if !resp.Found {
		p.projector.Notice("Original message not found")
		return
	}

	p.engine.replaceWindow(resp)
	// replaceWindow bumped the generation, so any in-flight older page is
	// now stale by construction.
	if target != "" {
		if _, ok := p.engine.store.Find(target); ok {
			p.projector.ScrollTo(target, true)
		}
	}
}

// InFlight reports whether an older-page request is outstanding.
func (p *PaginationController) InFlight() bool { return p.inFlight }
