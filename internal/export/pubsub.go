package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"cloud.google.com/go/pubsub"

	"github.com/JakeFAU/leaderboard-crawler/internal/leaderboard"
)

// PubSub publishes one message per product.
type PubSub struct {
	topic *pubsub.Topic
	runID string
}

// NewPubSub wraps an existing topic handle.
func NewPubSub(topic *pubsub.Topic, runID string) (*PubSub, error) {
	if topic == nil {
		return nil, errors.New("pubsub topic is required")
	}
	return &PubSub{topic: topic, runID: runID}, nil
}

// Write publishes p and waits for the server to acknowledge it.
func (s *PubSub) Write(ctx context.Context, p leaderboard.Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal product: %w", err)
	}
	msg := &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"run_id": s.runID,
			"year":   strconv.Itoa(p.Year),
			"week":   strconv.Itoa(p.Week),
		},
	}
	if _, err := s.topic.Publish(ctx, msg).Get(ctx); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// Close flushes outstanding publishes.
func (s *PubSub) Close(context.Context) error {
	s.topic.Stop()
	return nil
}
