// internal/notifications/fcm.go

package notifications

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FCMRegistrar manages room topic subscriptions through Firebase Cloud
// Messaging.
type FCMRegistrar struct {
	client *messaging.Client
}

// NewFCMRegistrar creates the FCM registrar. Credentials come from
// FIREBASE_CREDENTIALS_PATH, falling back to inline JSON in
// FIREBASE_CREDENTIALS_JSON.
func NewFCMRegistrar(ctx context.Context) (*FCMRegistrar, error) {
	var opt option.ClientOption

	credentialsPath := os.Getenv("FIREBASE_CREDENTIALS_PATH")
	if credentialsPath != "" {
		opt = option.WithCredentialsFile(credentialsPath)
	} else {
		credentialsJSON := os.Getenv("FIREBASE_CREDENTIALS_JSON")
		if credentialsJSON == "" {
			return nil, errors.New("FIREBASE_CREDENTIALS_PATH or FIREBASE_CREDENTIALS_JSON must be set")
		}
		opt = option.WithCredentialsJSON([]byte(credentialsJSON))
	}

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %v", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %v", err)
	}

	return &FCMRegistrar{client: client}, nil
}

func roomTopic(room string) string {
	return "room-" + room
}

// Register subscribes the device token to the room's topic.
func (r *FCMRegistrar) Register(ctx context.Context, token, room string) error {
	if token == "" {
		return errors.New("no token provided")
	}

	resp, err := r.client.SubscribeToTopic(ctx, []string{token}, roomTopic(room))
	if err != nil {
		log.Printf("Failed to subscribe to topic %s: %v", roomTopic(room), err)
		return err
	}
	if resp.FailureCount > 0 {
		for _, e := range resp.Errors {
			log.Printf("Subscription error for token index %d: %s", e.Index, e.Reason)
		}
		return fmt.Errorf("failed to subscribe %d tokens", resp.FailureCount)
	}

	log.Printf("Subscribed device to topic %s", roomTopic(room))
	return nil
}

// Unregister removes the device token from the room's topic.
func (r *FCMRegistrar) Unregister(ctx context.Context, token, room string) error {
	if token == "" {
		return errors.New("no token provided")
	}

	resp, err := r.client.UnsubscribeFromTopic(ctx, []string{token}, roomTopic(room))
	if err != nil {
		log.Printf("Failed to unsubscribe from topic %s: %v", roomTopic(room), err)
		return err
	}
	if resp.FailureCount > 0 {
		return fmt.Errorf("failed to unsubscribe %d tokens", resp.FailureCount)
	}

	log.Printf("Unsubscribed device from topic %s", roomTopic(room))
	return nil
}

// MockRegistrar records subscriptions for testing.
type MockRegistrar struct {
	Registered   []string
	Unregistered []string
}

func NewMockRegistrar() *MockRegistrar {
	return &MockRegistrar{}
}

func (m *MockRegistrar) Register(ctx context.Context, token, room string) error {
	m.Registered = append(m.Registered, token+"@"+room)
	return nil
}

func (m *MockRegistrar) Unregister(ctx context.Context, token, room string) error {
	m.Unregistered = append(m.Unregistered, token+"@"+room)
	return nil
}
