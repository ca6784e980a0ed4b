// Package redisstore is the shared cache.Store used when several warm
// workers must see the same documents and sessions. TTLs are native Redis
// expirations, so there is no sweep to run here.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/paperlens/internal/cache"
	"github.com/mohammad-safakhou/paperlens/models"
)

type Store struct {
	client     *redis.Client
	docTTL     time.Duration
	sessionTTL time.Duration
}

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, addr, password string, db int, docTTL, sessionTTL time.Duration) (*Store, error) {
	if docTTL <= 0 {
		docTTL = time.Hour
	}
	if sessionTTL <= 0 {
		sessionTTL = time.Hour
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{client: client, docTTL: docTTL, sessionTTL: sessionTTL}, nil
}

// NewWithClient wraps an existing client; used by tests.
func NewWithClient(client *redis.Client, docTTL, sessionTTL time.Duration) *Store {
	return &Store{client: client, docTTL: docTTL, sessionTTL: sessionTTL}
}

func (s *Store) GetDocument(ctx context.Context, fingerprint string) (models.Document, bool, error) {
	var doc models.Document
	ok, err := s.getJSON(ctx, cache.DocumentKey(fingerprint), &doc)
	return doc, ok, err
}

func (s *Store) PutDocument(ctx context.Context, fingerprint string, doc models.Document) error {
	return s.setJSON(ctx, cache.DocumentKey(fingerprint), doc, s.docTTL)
}

func (s *Store) GetSummary(ctx context.Context, fingerprint string, tier models.Tier) (models.Summary, bool, error) {
	var sum models.Summary
	ok, err := s.getJSON(ctx, cache.SummaryKey(fingerprint, tier), &sum)
	return sum, ok, err
}

func (s *Store) PutSummary(ctx context.Context, fingerprint string, sum models.Summary) error {
	if err := s.setJSON(ctx, cache.SummaryKey(fingerprint, sum.Tier), sum, s.docTTL); err != nil {
		return err
	}
	// A summary must not outlive its source text.
	return s.client.Expire(ctx, cache.DocumentKey(fingerprint), s.docTTL).Err()
}

func (s *Store) History(ctx context.Context, sessionID, fingerprint string) ([]models.ChatTurn, error) {
	raw, err := s.client.LRange(ctx, cache.HistoryKey(sessionID, fingerprint), 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("lrange: %w", err)
	}
	turns := make([]models.ChatTurn, 0, len(raw))
	for _, item := range raw {
		var turn models.ChatTurn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			return nil, fmt.Errorf("decode turn: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func (s *Store) AppendHistory(ctx context.Context, sessionID, fingerprint string, turns ...models.ChatTurn) error {
	if len(turns) == 0 {
		return nil
	}
	key := cache.HistoryKey(sessionID, fingerprint)
	values := make([]interface{}, 0, len(turns))
	for _, turn := range turns {
		data, err := json.Marshal(turn)
		if err != nil {
			return fmt.Errorf("encode turn: %w", err)
		}
		values = append(values, data)
	}
	// One RPUSH keeps the turns contiguous even under concurrent appends.
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, values...)
	pipe.Expire(ctx, key, s.sessionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (s *Store) DropLastTurn(ctx context.Context, sessionID, fingerprint string) error {
	err := s.client.RPop(ctx, cache.HistoryKey(sessionID, fingerprint)).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("rpop: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) getJSON(ctx context.Context, key string, out interface{}) (bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) setJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}
