// Package cache owns all document, summary and conversation state. Entries
// expire a fixed TTL after their last write; a miss is a normal outcome that
// callers answer with extraction or regeneration, never an error.
package cache

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/paperlens/models"
)

// Store is the keyed state capability behind the service. The in-memory
// implementation serves single-process deployments; the Redis one lets
// several warm workers share one cache without contract changes.
//
// History appends for one (session, document) key are serialized by the
// implementation so concurrent chat requests cannot interleave turns.
type Store interface {
	GetDocument(ctx context.Context, fingerprint string) (models.Document, bool, error)
	PutDocument(ctx context.Context, fingerprint string, doc models.Document) error

	GetSummary(ctx context.Context, fingerprint string, tier models.Tier) (models.Summary, bool, error)
	PutSummary(ctx context.Context, fingerprint string, sum models.Summary) error

	History(ctx context.Context, sessionID, fingerprint string) ([]models.ChatTurn, error)
	AppendHistory(ctx context.Context, sessionID, fingerprint string, turns ...models.ChatTurn) error
	// DropLastTurn removes the most recent turn. The chat service uses it to
	// roll back the user turn when the model call fails.
	DropLastTurn(ctx context.Context, sessionID, fingerprint string) error

	Close() error
}

func DocumentKey(fingerprint string) string {
	return "doc:" + fingerprint
}

func SummaryKey(fingerprint string, tier models.Tier) string {
	return fmt.Sprintf("sum:%s:%s", fingerprint, tier)
}

func HistoryKey(sessionID, fingerprint string) string {
	return fmt.Sprintf("hist:%s:%s", sessionID, fingerprint)
}
