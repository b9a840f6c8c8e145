// internal/storage/storage.go

package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
)

// Size caps carried over from the web client: images up to 5MB, videos up
// to 50MB.
const (
	MaxImageSize = 5 * 1024 * 1024
	MaxVideoSize = 50 * 1024 * 1024
)

// Object key prefixes per media kind.
const (
	ImagePrefix = "chat-images"
	VideoPrefix = "chat-videos"
)

// Service is the media-storage collaborator contract: upload a blob and
// get back a publicly fetchable URL, with a progress callback reporting a
// fraction in [0,1]; delete by URL, where failure is non-fatal to the
// caller.
type Service interface {
	Upload(ctx context.Context, file io.Reader, filename, contentType string, progress func(float64)) (string, error)
	DeleteByURL(ctx context.Context, mediaURL string) error
}

// Config holds the bucket wiring.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	// CDNURL is the public base URL objects are served from.
	CDNURL string
}

type s3Service struct {
	client       *s3.S3
	bucket       string
	cdnURL       string
	allowedTypes []string
}

// New creates the S3-backed media service.
func New(cfg Config) (Service, error) {
	awsSession, err := session.NewSession(&aws.Config{
		Region:      aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &s3Service{
		client: s3.New(awsSession),
		bucket: cfg.Bucket,
		cdnURL: strings.TrimSuffix(cfg.CDNURL, "/"),
		allowedTypes: []string{
			"image/jpeg", "image/png", "image/gif", "image/webp",
			"video/mp4", "video/quicktime", "video/webm",
		},
	}, nil
}

// Upload pushes a file to the bucket and returns its public URL. The
// whole file is buffered first so the size cap can be enforced before any
// bytes leave the machine; progress is reported as S3 consumes the body.
func (s *s3Service) Upload(ctx context.Context, file io.Reader, filename, contentType string, progress func(float64)) (string, error) {
	if !s.isAllowedType(contentType) {
		return "", fmt.Errorf("file type %s not allowed", contentType)
	}

	buf := new(bytes.Buffer)
	size, err := io.Copy(buf, file)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	maxSize := int64(MaxImageSize)
	prefix := ImagePrefix
	if strings.HasPrefix(contentType, "video/") {
		maxSize = MaxVideoSize
		prefix = VideoPrefix
	}
	if size > maxSize {
		return "", fmt.Errorf("file size %d exceeds maximum allowed size %d", size, maxSize)
	}

	key := fmt.Sprintf("%s/%s/%s%s",
		prefix,
		time.Now().Format("2006/01/02"),
		uuid.New().String(),
		filepath.Ext(filename),
	)

	body := &progressReader{
		r:        bytes.NewReader(buf.Bytes()),
		total:    size,
		progress: progress,
	}

	_, err = s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
		ACL:           aws.String("public-read"),
		Metadata: map[string]*string{
			"uploaded-at": aws.String(time.Now().Format(time.RFC3339)),
			"file-name":   aws.String(filename),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	if progress != nil {
		progress(1)
	}
	return fmt.Sprintf("%s/%s", s.cdnURL, key), nil
}

// DeleteByURL removes the object a public URL points at.
func (s *s3Service) DeleteByURL(ctx context.Context, mediaURL string) error {
	if !strings.HasPrefix(mediaURL, s.cdnURL+"/") {
		return fmt.Errorf("URL %s is not served from this bucket", mediaURL)
	}
	key := strings.TrimPrefix(mediaURL, s.cdnURL+"/")

	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

func (s *s3Service) isAllowedType(contentType string) bool {
	for _, allowed := range s.allowedTypes {
		if allowed == contentType {
			return true
		}
	}
	return false
}

// progressReader reports read progress as the SDK consumes the body. It
// must support Seek because the SDK rewinds on retry; a rewind resets the
// reported count.
type progressReader struct {
	r        *bytes.Reader
	total    int64
	read     int64
	progress func(float64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 && p.progress != nil && p.total > 0 {
		p.read += int64(n)
		frac := float64(p.read) / float64(p.total)
		if frac > 1 {
			frac = 1
		}
		p.progress(frac)
	}
	return n, err
}

func (p *progressReader) Seek(offset int64, whence int) (int64, error) {
	pos, err := p.r.Seek(offset, whence)
	if err == nil {
		p.read = pos
	}
	return pos, err
}
