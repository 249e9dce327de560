package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"cloud.google.com/go/storage"

	"github.com/JakeFAU/leaderboard-crawler/internal/leaderboard"
)

// GCS buffers products as JSON lines and uploads them as one object on Close.
type GCS struct {
	client *storage.Client
	bucket string
	object string

	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

// NewGCS returns a sink that will write gs://bucket/object.
func NewGCS(client *storage.Client, bucket, object string) (*GCS, error) {
	if client == nil {
		return nil, errors.New("storage client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("bucket name is required")
	}
	if strings.TrimSpace(object) == "" {
		return nil, errors.New("object name is required")
	}
	return &GCS{client: client, bucket: bucket, object: object}, nil
}

// URI returns the destination of the upload.
func (s *GCS) URI() string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, s.object)
}

// Write buffers p.
func (s *GCS) Write(_ context.Context, p leaderboard.Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal product: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("gcs sink is closed")
	}
	s.buf.Write(data)
	s.buf.WriteByte('\n')
	return nil
}

// Close uploads the buffered lines. Nothing is uploaded when no product
// was written.
func (s *GCS) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.buf.Len() == 0 {
		return nil
	}

	wc := s.client.Bucket(s.bucket).Object(s.object).NewWriter(ctx)
	wc.ContentType = "application/x-ndjson"
	if _, err := wc.Write(s.buf.Bytes()); err != nil {
		if closeErr := wc.Close(); closeErr != nil {
			return fmt.Errorf("write object %s: %w (close writer: %v)", s.object, err, closeErr)
		}
		return fmt.Errorf("write object %s: %w", s.object, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("close writer for object %s: %w", s.object, err)
	}
	return nil
}
