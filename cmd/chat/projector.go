// cmd/chat/projector.go
// Console rendering of view updates for headless runs

package main

import (
	"fmt"
	"log"
	"strings"

	"github.com/MrBlankCoding/Channel-Chat/internal/chat"
)

// consoleProjector prints view updates to stdout. It stands in for a real
// rendering surface when the client runs headless.
type consoleProjector struct{}

func (consoleProjector) HistoryReset(messages []*chat.Message, hasMoreOlder bool) {
	fmt.Printf("--- history loaded: %d messages (more older: %v) ---\n", len(messages), hasMoreOlder)
	for _, m := range messages {
		printMessage(m)
	}
}

func (consoleProjector) MessagesPrepended(messages []*chat.Message, hasMoreOlder bool) {
	fmt.Printf("--- loaded %d older messages (more older: %v) ---\n", len(messages), hasMoreOlder)
}

func (consoleProjector) MessageAppended(m *chat.Message) {
	printMessage(m)
}

func (consoleProjector) MessageUpdated(m *chat.Message) {
	fmt.Printf("  * updated %s\n", m.ID)
}

func (consoleProjector) MessageRemoved(id string) {
	fmt.Printf("  * removed %s\n", id)
}

func (consoleProjector) TypingChanged(users []string) {
	if len(users) == 0 {
		return
	}
	fmt.Printf("  ... %s typing\n", strings.Join(users, ", "))
}

func (consoleProjector) UnreadChanged(count int) {
	fmt.Printf("  [unread: %d]\n", count)
}

func (consoleProjector) UploadProgress(id string, fraction float64) {
	fmt.Printf("  uploading %s: %.0f%%\n", id, fraction*100)
}

func (consoleProjector) ScrollTo(id string, highlight bool) {
	fmt.Printf("  -> scroll to %s (highlight: %v)\n", id, highlight)
}

func (consoleProjector) Notice(text string) {
	fmt.Printf("  [notice] %s\n", text)
}

func (consoleProjector) Alert(text string) {
	log.Printf("ALERT: %s", text)
}

func printMessage(m *chat.Message) {
	body := m.Body
	if m.GIF != nil {
		body = "[GIF] " + m.GIF.Title
	}
	if m.IsSystem() {
		fmt.Printf("  -- %s --\n", body)
		return
	}
	fmt.Printf("  <%s> %s\n", m.Sender, body)
}
