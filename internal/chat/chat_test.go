package chat

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mohammad-safakhou/paperlens/internal/cache/inmemory"
	"github.com/mohammad-safakhou/paperlens/internal/gateway"
	"github.com/mohammad-safakhou/paperlens/models"
)

type fakeProvider struct {
	mu      sync.Mutex
	prompts []string
	answer  string
	err     error
}

func (f *fakeProvider) Generate(_ context.Context, prompt string, _ gateway.Options) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeProvider) lastPrompt(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		t.Fatalf("no model call recorded")
	}
	return f.prompts[len(f.prompts)-1]
}

func newTestChat(t *testing.T, provider gateway.Provider, maxContextChars int) (*Service, *inmemory.Store) {
	t.Helper()
	store, err := inmemory.New(time.Hour, time.Hour, "", nil)
	if err != nil {
		t.Fatalf("inmemory.New: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return New(provider, store, maxContextChars, log.New(io.Discard, "", 0)), store
}

func TestAskWithoutDocument(t *testing.T) {
	t.Parallel()
	provider := &fakeProvider{answer: "unused"}
	svc, store := newTestChat(t, provider, 0)
	ctx := context.Background()

	_, err := svc.Ask(ctx, "sid", "fp", "what is this paper about?")
	if !errors.Is(err, ErrNoDocument) {
		t.Fatalf("expected ErrNoDocument, got %v", err)
	}
	if len(provider.prompts) != 0 {
		t.Fatalf("missing document must not reach the model")
	}
	if hist, _ := store.History(ctx, "sid", "fp"); len(hist) != 0 {
		t.Fatalf("missing document must not record a turn, got %+v", hist)
	}
}

func TestAskRecordsBothTurns(t *testing.T) {
	t.Parallel()
	provider := &fakeProvider{answer: "<p>the answer</p>"}
	svc, store := newTestChat(t, provider, 0)
	ctx := context.Background()

	doc := models.Document{Text: "attention is all you need", Kind: models.SourcePDF}
	if err := store.PutDocument(ctx, "fp", doc); err != nil {
		t.Fatalf("PutDocument: %v", err)
	}

	answer, err := svc.Ask(ctx, "sid", "fp", "what is the main idea?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer != "<p>the answer</p>" {
		t.Fatalf("unexpected answer %q", answer)
	}

	prompt := provider.lastPrompt(t)
	if !strings.Contains(prompt, doc.Text) {
		t.Fatalf("prompt missing document context:\n%s", prompt)
	}
	if !strings.Contains(prompt, "User: what is the main idea?") {
		t.Fatalf("prompt missing question:\n%s", prompt)
	}

	hist, err := store.History(ctx, "sid", "fp")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 2 || hist[0].Role != models.RoleUser || hist[1].Role != models.RoleAssistant {
		t.Fatalf("expected user+assistant turns, got %+v", hist)
	}
	if hist[1].Text != answer {
		t.Fatalf("assistant turn should carry the answer, got %q", hist[1].Text)
	}
}

func TestAskCarriesPriorTurns(t *testing.T) {
	t.Parallel()
	provider := &fakeProvider{answer: "answer"}
	svc, store := newTestChat(t, provider, 0)
	ctx := context.Background()

	if err := store.PutDocument(ctx, "fp", models.Document{Text: "paper body"}); err != nil {
		t.Fatalf("PutDocument: %v", err)
	}
	if _, err := svc.Ask(ctx, "sid", "fp", "first question"); err != nil {
		t.Fatalf("first Ask: %v", err)
	}
	if _, err := svc.Ask(ctx, "sid", "fp", "second question"); err != nil {
		t.Fatalf("second Ask: %v", err)
	}

	prompt := provider.lastPrompt(t)
	iQ1 := strings.Index(prompt, "first question")
	iA1 := strings.Index(prompt, "Assistant: answer")
	iQ2 := strings.Index(prompt, "second question")
	if iQ1 < 0 || iA1 < 0 || iQ2 < 0 || !(iQ1 < iA1 && iA1 < iQ2) {
		t.Fatalf("prior exchange missing or out of order: q1=%d a1=%d q2=%d\n%s", iQ1, iA1, iQ2, prompt)
	}
}

func TestAskRollsBackOnModelFailure(t *testing.T) {
	t.Parallel()
	provider := &fakeProvider{err: gateway.ErrRateLimited}
	svc, store := newTestChat(t, provider, 0)
	ctx := context.Background()

	if err := store.PutDocument(ctx, "fp", models.Document{Text: "paper body"}); err != nil {
		t.Fatalf("PutDocument: %v", err)
	}
	_, err := svc.Ask(ctx, "sid", "fp", "doomed question")
	if !errors.Is(err, ErrModelFailed) {
		t.Fatalf("expected ErrModelFailed, got %v", err)
	}
	if hist, _ := store.History(ctx, "sid", "fp"); len(hist) != 0 {
		t.Fatalf("failed ask must leave no trace in history, got %+v", hist)
	}
}

func TestBuildPromptClipsContext(t *testing.T) {
	t.Parallel()
	docText := strings.Repeat("h", 50) + strings.Repeat("t", 50)
	prompt := BuildPrompt(docText, nil, "question", 50)
	if !strings.Contains(prompt, strings.Repeat("h", 50)) {
		t.Fatalf("prompt should keep the document head")
	}
	if strings.Contains(prompt, strings.Repeat("t", 10)) {
		t.Fatalf("prompt should drop the clipped tail")
	}
}

func TestClipHeadKeepsRunesIntact(t *testing.T) {
	t.Parallel()
	s := "résumé"
	for max := 0; max <= len(s); max++ {
		clipped := clipHead(s, max)
		if !strings.HasPrefix(s, clipped) {
			t.Fatalf("clip at %d produced non-prefix %q", max, clipped)
		}
		for _, r := range clipped {
			if r == '�' {
				t.Fatalf("clip at %d split a rune: %q", max, clipped)
			}
		}
	}
}
