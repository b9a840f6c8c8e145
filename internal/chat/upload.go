// internal/chat/upload.go

package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrUploadInFlight = errors.New("upload already in progress for this file")

// MediaUploader is what the upload flow needs from the storage layer.
type MediaUploader interface {
	Upload(ctx context.Context, file io.Reader, filename, contentType string, progress func(float64)) (string, error)
}

// PendingUpload is one in-flight media upload.
type PendingUpload struct {
	ID          string
	Filename    string
	ContentType string
	StartedAt   time.Time
}

// UploadManager drives media sends: upload the blob, then send the chat
// message referencing the stored URL. The message is only sent after the
// upload fully succeeds, so a failed upload never leaves a broken
// attachment in the conversation.
type UploadManager struct {
	engine    *Engine
	uploader  MediaUploader
	projector Projector

	mu      sync.Mutex
	pending map[string]*PendingUpload
}

func NewUploadManager(engine *Engine, uploader MediaUploader, projector Projector) *UploadManager {
	if projector == nil {
		projector = NopProjector{}
	}
	return &UploadManager{
		engine:    engine,
		uploader:  uploader,
		projector: projector,
		pending:   make(map[string]*PendingUpload),
	}
}

// SendMedia uploads the file and sends a chat message carrying the
// resulting URL. The placeholder body matches what recipients see in
// conversation previews. Blocks until the upload and send complete.
func (m *UploadManager) SendMedia(ctx context.Context, file io.Reader, filename, contentType string, replyTo *ReplyRef) error {
	var body string
	isVideo := false
	switch {
	case strings.HasPrefix(contentType, "image/"):
		body = "Sent an image"
	case strings.HasPrefix(contentType, "video/"):
		body = "Sent a video"
		isVideo = true
	default:
		return fmt.Errorf("unsupported media type: %s", contentType)
	}

	up := &PendingUpload{
		ID:          uuid.New().String(),
		Filename:    filename,
		ContentType: contentType,
		StartedAt:   time.Now(),
	}
	m.track(up)
	defer m.untrack(up.ID)

	url, err := m.uploader.Upload(ctx, file, filename, contentType, func(fraction float64) {
		m.projector.UploadProgress(up.ID, fraction)
	})
	if err != nil {
		uploadsTotal.WithLabelValues("failed").Inc()
		log.Printf("upload %s (%s) failed: %v", up.ID, filename, err)
		m.projector.Alert(fmt.Sprintf("Failed to upload %s", filename))
		return fmt.Errorf("failed to upload %s: %w", filename, err)
	}
	uploadsTotal.WithLabelValues("succeeded").Inc()

	out := OutgoingMessage{Data: body, ReplyTo: replyTo}
	if isVideo {
		out.Video = url
	} else {
		out.Image = url
	}
	if err := m.engine.SendMediaMessage(ctx, out); err != nil {
		m.projector.Alert("Upload finished but the message could not be sent")
		return err
	}
	return nil
}

// Pending returns a snapshot of in-flight uploads.
func (m *UploadManager) Pending() []PendingUpload {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PendingUpload, 0, len(m.pending))
	for _, up := range m.pending {
		out = append(out, *up)
	}
	return out
}

func (m *UploadManager) track(up *PendingUpload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[up.ID] = up
}

func (m *UploadManager) untrack(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, id)
}
