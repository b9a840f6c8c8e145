// internal/notifications/notifications.go

package notifications

import "context"

// Settings mirrors the per-user notification preferences UI.
type Settings struct {
	Enabled          bool `json:"enabled"`
	DirectMessages   bool `json:"direct_messages"`
	Mentions         bool `json:"mentions"`
	GroupMessages    bool `json:"group_messages"`
	SoundEnabled     bool `json:"sound_enabled"`
	VibrationEnabled bool `json:"vibration_enabled"`
}

// DefaultSettings matches the out-of-box preference set.
func DefaultSettings() Settings {
	return Settings{
		Enabled:          true,
		DirectMessages:   true,
		Mentions:         true,
		GroupMessages:    true,
		SoundEnabled:     true,
		VibrationEnabled: false,
	}
}

// Registrar subscribes and unsubscribes a device token to a room's push
// topic so the device keeps receiving messages while the app is closed.
type Registrar interface {
	Register(ctx context.Context, token, room string) error
	Unregister(ctx context.Context, token, room string) error
}

// ShouldNotify decides whether an incoming message warrants a device
// notification. Own messages and system notices never notify; an active
// tab is already showing the message.
func ShouldNotify(s Settings, sender, currentUser string, isSystem, tabActive, isMention bool) bool {
	if !s.Enabled || tabActive || isSystem || sender == currentUser {
		return false
	}
	if isMention {
		return s.Mentions
	}
	return s.GroupMessages
}
