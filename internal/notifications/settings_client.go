// internal/notifications/settings_client.go

package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const settingsPath = "/notification-settings"

// SettingsClient reads and writes the user's notification preferences on
// the chat server. Preferences live server-side so every device sees the
// same toggles.
type SettingsClient struct {
	baseURL   string
	authToken string
	http      *http.Client
}

func NewSettingsClient(baseURL, authToken string) *SettingsClient {
	return &SettingsClient{
		baseURL:   baseURL,
		authToken: authToken,
		http:      &http.Client{Timeout: 10 * time.Second},
	}
}

// Fetch returns the current preferences, or the defaults when the server
// has none stored for this user.
func (c *SettingsClient) Fetch(ctx context.Context) (Settings, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+settingsPath, nil)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to build settings request: %w", err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to fetch notification settings: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return DefaultSettings(), nil
	}
	if resp.StatusCode != http.StatusOK {
		return Settings{}, fmt.Errorf("notification settings fetch returned status %d", resp.StatusCode)
	}

	var s Settings
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return Settings{}, fmt.Errorf("failed to decode notification settings: %w", err)
	}
	return s, nil
}

// Update replaces the stored preferences wholesale.
func (c *SettingsClient) Update(ctx context.Context, s Settings) error {
	body, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode notification settings: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+settingsPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build settings request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to update notification settings: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("notification settings update returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *SettingsClient) authorize(req *http.Request) {
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
}
