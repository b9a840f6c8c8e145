// internal/notifications/notifications_test.go

package notifications

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldNotify(t *testing.T) {
	s := DefaultSettings()

	cases := []struct {
		name      string
		settings  Settings
		sender    string
		isSystem  bool
		tabActive bool
		isMention bool
		want      bool
	}{
		{"incoming message", s, "bob", false, false, false, true},
		{"own message", s, "alice", false, false, false, false},
		{"system notice", s, "", true, false, false, false},
		{"active tab", s, "bob", false, true, false, false},
		{"mention", s, "bob", false, false, true, true},
		{"disabled entirely", Settings{}, "bob", false, false, false, false},
		{"mentions off", Settings{Enabled: true, GroupMessages: true}, "bob", false, false, true, false},
		{"group off mention on", Settings{Enabled: true, Mentions: true}, "bob", false, false, false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ShouldNotify(tc.settings, tc.sender, "alice", tc.isSystem, tc.tabActive, tc.isMention)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMockRegistrarRecords(t *testing.T) {
	m := NewMockRegistrar()

	assert.NoError(t, m.Register(nil, "tok1", "general"))
	assert.NoError(t, m.Unregister(nil, "tok1", "general"))

	assert.Equal(t, []string{"tok1@general"}, m.Registered)
	assert.Equal(t, []string{"tok1@general"}, m.Unregistered)
}
