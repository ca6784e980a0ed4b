// Package summarizer drives the map-reduce pipeline: one model call per
// document chunk, then a single synthesis call calibrated to the requested
// complexity tier.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mohammad-safakhou/paperlens/internal/cache"
	"github.com/mohammad-safakhou/paperlens/internal/chunker"
	"github.com/mohammad-safakhou/paperlens/internal/gateway"
	"github.com/mohammad-safakhou/paperlens/models"
)

var (
	// ErrNoContent means the document text was empty; no model call is made.
	ErrNoContent = errors.New("document has no content to summarize")
	// ErrModelUnavailable means every chunk call (or the reduce call)
	// exhausted its retries.
	ErrModelUnavailable = errors.New("model unavailable")
)

const (
	DefaultConcurrency = 4
)

type Service struct {
	provider      gateway.Provider
	store         cache.Store
	maxChunkChars int
	concurrency   int
	logger        *log.Logger
	now           func() time.Time
}

func New(provider gateway.Provider, store cache.Store, maxChunkChars, concurrency int, logger *log.Logger) *Service {
	if maxChunkChars <= 0 {
		maxChunkChars = chunker.DefaultMaxChunkChars
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[SUMMARIZER] ", log.LstdFlags)
	}
	return &Service{
		provider:      provider,
		store:         store,
		maxChunkChars: maxChunkChars,
		concurrency:   concurrency,
		logger:        logger,
		now:           time.Now,
	}
}

// Summarize returns the (document, tier) summary, serving it from the cache
// when present. On a miss it runs the full map-reduce pipeline and stores
// the result before returning. Per-chunk partials are never cached.
func (s *Service) Summarize(ctx context.Context, fingerprint string, doc models.Document, tier models.Tier) (models.Summary, error) {
	if cached, ok, err := s.store.GetSummary(ctx, fingerprint, tier); err != nil {
		return models.Summary{}, fmt.Errorf("summary lookup: %w", err)
	} else if ok {
		return cached, nil
	}

	chunks := chunker.Split(doc.Text, s.maxChunkChars)
	if len(chunks) == 0 {
		return models.Summary{}, ErrNoContent
	}
	s.logger.Printf("mapping %s: %d chunks, tier=%s", fingerprint, len(chunks), tier)

	partials, failed := s.mapChunks(ctx, chunks)
	if failed == len(chunks) {
		return models.Summary{}, fmt.Errorf("%w: all %d chunk calls failed", ErrModelUnavailable, len(chunks))
	}
	if failed > 0 {
		s.logger.Printf("degraded %s: %d/%d chunks failed", fingerprint, failed, len(chunks))
	}

	s.logger.Printf("reducing %s: tier=%s", fingerprint, tier)
	final, err := s.provider.Generate(ctx, reducePrompt(tier, partials), gateway.Options{})
	if err != nil {
		return models.Summary{}, fmt.Errorf("%w: reduce: %v", ErrModelUnavailable, err)
	}

	sum := models.Summary{
		Text:        final,
		Tier:        tier,
		ChunkCount:  len(chunks),
		Degraded:    failed > 0,
		GeneratedAt: s.now(),
	}
	if err := s.store.PutSummary(ctx, fingerprint, sum); err != nil {
		return models.Summary{}, fmt.Errorf("summary store: %w", err)
	}
	return sum, nil
}

// mapChunks fans the chunk calls out under a bounded concurrency limit.
// Results land in a positional slice, so the reduce input is always in
// original document order regardless of completion order.
func (s *Service) mapChunks(ctx context.Context, chunks []string) ([]string, int) {
	partials := make([]string, len(chunks))
	errs := make([]bool, len(chunks))

	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	for i, chunk := range chunks {
		wg.Add(1)
		go func(i int, chunk string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			text, err := s.provider.Generate(ctx, chunkPrompt(chunk), gateway.Options{})
			if err != nil {
				s.logger.Printf("chunk %d failed: %v", i, err)
				partials[i] = failedChunkPlaceholder(i)
				errs[i] = true
				return
			}
			partials[i] = text
		}(i, chunk)
	}
	wg.Wait()

	failed := 0
	for _, bad := range errs {
		if bad {
			failed++
		}
	}
	return partials, failed
}
