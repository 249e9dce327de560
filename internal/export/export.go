// Package export contains the sinks a crawl can write products to. Every sink
// satisfies crawler.Sink.
package export

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/leaderboard-crawler/internal/crawler"
	"github.com/JakeFAU/leaderboard-crawler/internal/leaderboard"
	"github.com/JakeFAU/leaderboard-crawler/internal/metrics"
)

// Named pairs a sink with the label used in logs and metrics.
type Named struct {
	Name string
	Sink crawler.Sink
}

// Multi writes every product to each of its sinks in order.
type Multi struct {
	sinks  []Named
	logger *zap.Logger
}

// NewMulti builds a fan-out over sinks.
func NewMulti(logger *zap.Logger, sinks ...Named) *Multi {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Multi{sinks: sinks, logger: logger}
}

// Len reports the number of configured sinks.
func (m *Multi) Len() int {
	return len(m.sinks)
}

// Write hands p to every sink. A failing sink does not stop the others; the
// failures are joined, each prefixed with its sink name. Logging is left to
// the caller.
func (m *Multi) Write(ctx context.Context, p leaderboard.Product) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Sink.Write(ctx, p); err != nil {
			metrics.IncSinkError(s.Name)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink and joins their errors.
func (m *Multi) Close(ctx context.Context) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Sink.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", s.Name, err))
			continue
		}
		m.logger.Debug("sink closed", zap.String("sink", s.Name))
	}
	return errors.Join(errs...)
}
