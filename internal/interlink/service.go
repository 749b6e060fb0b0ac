package interlink

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/content-engine/internal/entity"
)

// Service ranks against the request corpus, or the default corpus when the
// request carries none.
type Service struct {
	corpus     Corpus
	maxResults int
	now        func() time.Time
	logger     *slog.Logger
}

// NewService returns a Service. corpus may be nil.
func NewService(corpus Corpus, maxResults int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &Service{corpus: corpus, maxResults: maxResults, now: time.Now, logger: logger}
}

// WithClock replaces the time source used for recency boosts.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Find ranks items (or the default corpus) against keyword.
func (s *Service) Find(ctx context.Context, keyword string, items []entity.ContentItem, maxResults int) ([]entity.InterlinkOpportunity, error) {
	if maxResults <= 0 {
		maxResults = s.maxResults
	}
	source := "request"
	if len(items) == 0 && s.corpus != nil {
		var err error
		if items, err = s.corpus.Items(ctx); err != nil {
			return nil, fmt.Errorf("load corpus: %w", err)
		}
		source = "default"
	}
	start := time.Now()
	out := FindOpportunities(keyword, items, s.now(), maxResults)
	s.logger.Debug("interlink.find",
		"keyword", keyword,
		"corpus", source,
		"candidates", len(items),
		"results", len(out),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}
