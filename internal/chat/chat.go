// Package chat answers follow-up questions about an already-extracted
// paper, grounding every model call in the cached document text and the
// session's conversation history.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mohammad-safakhou/paperlens/internal/cache"
	"github.com/mohammad-safakhou/paperlens/internal/gateway"
	"github.com/mohammad-safakhou/paperlens/models"
)

var (
	// ErrNoDocument means the document text for this session has expired
	// or was never extracted; the caller must re-summarize first.
	ErrNoDocument = errors.New("no document cached for session")
	// ErrModelFailed means the answer call exhausted its retries.
	ErrModelFailed = errors.New("chat model call failed")
)

type Service struct {
	provider        gateway.Provider
	store           cache.Store
	maxContextChars int
	logger          *log.Logger
	now             func() time.Time
}

func New(provider gateway.Provider, store cache.Store, maxContextChars int, logger *log.Logger) *Service {
	if maxContextChars <= 0 {
		maxContextChars = DefaultMaxContextChars
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[CHAT] ", log.LstdFlags)
	}
	return &Service{
		provider:        provider,
		store:           store,
		maxContextChars: maxContextChars,
		logger:          logger,
		now:             time.Now,
	}
}

// Ask records the user's question, asks the model with the paper body and
// prior turns as context, and records the answer. If the model call fails
// the user turn is rolled back so a retry replays the same conversation.
func (s *Service) Ask(ctx context.Context, sessionID, fingerprint, message string) (string, error) {
	doc, ok, err := s.store.GetDocument(ctx, fingerprint)
	if err != nil {
		return "", fmt.Errorf("document lookup: %w", err)
	}
	if !ok {
		return "", ErrNoDocument
	}

	history, err := s.store.History(ctx, sessionID, fingerprint)
	if err != nil {
		return "", fmt.Errorf("history lookup: %w", err)
	}

	userTurn := models.ChatTurn{Role: models.RoleUser, Text: message, At: s.now()}
	if err := s.store.AppendHistory(ctx, sessionID, fingerprint, userTurn); err != nil {
		return "", fmt.Errorf("append user turn: %w", err)
	}

	answer, err := s.provider.Generate(ctx, BuildPrompt(doc.Text, history, message, s.maxContextChars), gateway.Options{})
	if err != nil {
		s.logger.Printf("answer failed for session %s: %v", sessionID, err)
		if dropErr := s.store.DropLastTurn(ctx, sessionID, fingerprint); dropErr != nil {
			s.logger.Printf("rollback failed for session %s: %v", sessionID, dropErr)
		}
		return "", fmt.Errorf("%w: %v", ErrModelFailed, err)
	}

	assistantTurn := models.ChatTurn{Role: models.RoleAssistant, Text: answer, At: s.now()}
	if err := s.store.AppendHistory(ctx, sessionID, fingerprint, assistantTurn); err != nil {
		return "", fmt.Errorf("append assistant turn: %w", err)
	}
	return answer, nil
}
