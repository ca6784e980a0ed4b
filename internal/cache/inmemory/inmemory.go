// Package inmemory is the process-local cache.Store used in single-worker
// deployments and tests. Expiry is lazy on read, backed by an eager sweep
// on a cron schedule so idle entries do not pile up between requests.
package inmemory

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorhill/cronexpr"

	"github.com/mohammad-safakhou/paperlens/internal/cache"
	"github.com/mohammad-safakhou/paperlens/models"
)

const DefaultSweepSpec = "*/10 * * * *"

type entry struct {
	doc       models.Document
	summary   models.Summary
	history   []models.ChatTurn
	expiresAt time.Time
}

// Store keeps all entries in one map guarded by a single mutex; history
// appends are therefore serialized per key by construction.
type Store struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	docTTL     time.Duration
	sessionTTL time.Duration
	logger     *log.Logger
	stop       chan struct{}
	stopOnce   sync.Once
	now        func() time.Time
}

// New creates the store and starts the sweep janitor. sweepSpec is a cron
// expression; empty means DefaultSweepSpec.
func New(docTTL, sessionTTL time.Duration, sweepSpec string, logger *log.Logger) (*Store, error) {
	if docTTL <= 0 {
		docTTL = time.Hour
	}
	if sessionTTL <= 0 {
		sessionTTL = time.Hour
	}
	if sweepSpec == "" {
		sweepSpec = DefaultSweepSpec
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[CACHE] ", log.LstdFlags)
	}
	expr, err := cronexpr.Parse(sweepSpec)
	if err != nil {
		return nil, err
	}
	s := &Store{
		entries:    make(map[string]*entry),
		docTTL:     docTTL,
		sessionTTL: sessionTTL,
		logger:     logger,
		stop:       make(chan struct{}),
		now:        time.Now,
	}
	go s.janitor(expr)
	return s, nil
}

func (s *Store) janitor(expr *cronexpr.Expression) {
	for {
		next := expr.Next(s.now())
		if next.IsZero() {
			return
		}
		select {
		case <-time.After(time.Until(next)):
			if n := s.sweep(); n > 0 {
				s.logger.Printf("swept %d expired entries", n)
			}
		case <-s.stop:
			return
		}
	}
}

func (s *Store) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// get returns a live entry or nil; expired entries are deleted on sight.
// expiresAt is only read while a lock is held, since writers refresh it on
// the live entry.
func (s *Store) get(key string) *entry {
	s.mu.RLock()
	e, ok := s.entries[key]
	expired := ok && s.now().After(e.expiresAt)
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	if expired {
		s.mu.Lock()
		if cur, ok := s.entries[key]; ok && s.now().After(cur.expiresAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil
	}
	return e
}

func (s *Store) GetDocument(_ context.Context, fingerprint string) (models.Document, bool, error) {
	e := s.get(cache.DocumentKey(fingerprint))
	if e == nil {
		return models.Document{}, false, nil
	}
	return e.doc, true, nil
}

func (s *Store) PutDocument(_ context.Context, fingerprint string, doc models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[cache.DocumentKey(fingerprint)] = &entry{doc: doc, expiresAt: s.now().Add(s.docTTL)}
	return nil
}

func (s *Store) GetSummary(_ context.Context, fingerprint string, tier models.Tier) (models.Summary, bool, error) {
	e := s.get(cache.SummaryKey(fingerprint, tier))
	if e == nil {
		return models.Summary{}, false, nil
	}
	return e.summary, true, nil
}

func (s *Store) PutSummary(_ context.Context, fingerprint string, sum models.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.entries[cache.SummaryKey(fingerprint, sum.Tier)] = &entry{summary: sum, expiresAt: now.Add(s.docTTL)}
	// A summary must not outlive its source text.
	if e, ok := s.entries[cache.DocumentKey(fingerprint)]; ok {
		e.expiresAt = now.Add(s.docTTL)
	}
	return nil
}

func (s *Store) History(_ context.Context, sessionID, fingerprint string) ([]models.ChatTurn, error) {
	e := s.get(cache.HistoryKey(sessionID, fingerprint))
	if e == nil {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ChatTurn, len(e.history))
	copy(out, e.history)
	return out, nil
}

func (s *Store) AppendHistory(_ context.Context, sessionID, fingerprint string, turns ...models.ChatTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := cache.HistoryKey(sessionID, fingerprint)
	now := s.now()
	e, ok := s.entries[key]
	if !ok || now.After(e.expiresAt) {
		e = &entry{}
		s.entries[key] = e
	}
	e.history = append(e.history, turns...)
	e.expiresAt = now.Add(s.sessionTTL)
	return nil
}

func (s *Store) DropLastTurn(_ context.Context, sessionID, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := cache.HistoryKey(sessionID, fingerprint)
	e, ok := s.entries[key]
	if !ok || len(e.history) == 0 {
		return nil
	}
	e.history = e.history[:len(e.history)-1]
	return nil
}

func (s *Store) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}
