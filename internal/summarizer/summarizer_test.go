package summarizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mohammad-safakhou/paperlens/internal/cache/inmemory"
	"github.com/mohammad-safakhou/paperlens/internal/gateway"
	"github.com/mohammad-safakhou/paperlens/models"
)

type fakeProvider struct {
	mu       sync.Mutex
	calls    []string
	generate func(call int, prompt string) (string, error)
}

func (f *fakeProvider) Generate(_ context.Context, prompt string, _ gateway.Options) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, prompt)
	call := len(f.calls)
	f.mu.Unlock()
	if f.generate != nil {
		return f.generate(call, prompt)
	}
	if isReducePrompt(prompt) {
		return "final summary", nil
	}
	return "partial summary", nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeProvider) reduceCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if isReducePrompt(c) {
			out = append(out, c)
		}
	}
	return out
}

func isReducePrompt(prompt string) bool {
	return strings.HasPrefix(prompt, "Synthesize a cohesive paper summary")
}

func newTestService(t *testing.T, provider gateway.Provider) (*Service, *inmemory.Store) {
	t.Helper()
	store, err := inmemory.New(time.Hour, time.Hour, "", nil)
	if err != nil {
		t.Fatalf("inmemory.New: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	svc := New(provider, store, 100, 2, log.New(io.Discard, "", 0))
	return svc, store
}

// threeChunkDoc produces exactly three chunks under maxChunkChars=100.
func threeChunkDoc() models.Document {
	paras := []string{
		strings.Repeat("a", 80),
		strings.Repeat("b", 80),
		strings.Repeat("c", 80),
	}
	return models.Document{Text: strings.Join(paras, "\n\n")}
}

func TestSummarizeEmptyDocument(t *testing.T) {
	t.Parallel()
	provider := &fakeProvider{}
	svc, _ := newTestService(t, provider)

	_, err := svc.Summarize(context.Background(), "fp", models.Document{Text: "   "}, models.TierLow)
	if !errors.Is(err, ErrNoContent) {
		t.Fatalf("expected ErrNoContent, got %v", err)
	}
	if provider.callCount() != 0 {
		t.Fatalf("empty document must not reach the model, got %d calls", provider.callCount())
	}
}

func TestSummarizeThreeChunks(t *testing.T) {
	t.Parallel()
	provider := &fakeProvider{}
	svc, _ := newTestService(t, provider)

	sum, err := svc.Summarize(context.Background(), "fp", threeChunkDoc(), models.TierLow)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.Text != "final summary" || sum.ChunkCount != 3 || sum.Degraded {
		t.Fatalf("unexpected summary %+v", sum)
	}
	// 3 map calls + 1 reduce call.
	if provider.callCount() != 4 {
		t.Fatalf("expected 4 model calls, got %d", provider.callCount())
	}
	if len(provider.reduceCalls()) != 1 {
		t.Fatalf("expected exactly one reduce call")
	}
}

func TestSummarizeCacheHitSkipsModel(t *testing.T) {
	t.Parallel()
	provider := &fakeProvider{}
	svc, _ := newTestService(t, provider)
	ctx := context.Background()
	doc := threeChunkDoc()

	first, err := svc.Summarize(ctx, "fp", doc, models.TierLow)
	if err != nil {
		t.Fatalf("first Summarize: %v", err)
	}
	callsAfterFirst := provider.callCount()

	second, err := svc.Summarize(ctx, "fp", doc, models.TierLow)
	if err != nil {
		t.Fatalf("second Summarize: %v", err)
	}
	if provider.callCount() != callsAfterFirst {
		t.Fatalf("cache hit must not invoke the model")
	}
	if first.Text != second.Text || !first.GeneratedAt.Equal(second.GeneratedAt) {
		t.Fatalf("cached summary must be byte-identical")
	}

	// A different tier reuses the text but runs a fresh pipeline.
	if _, err := svc.Summarize(ctx, "fp", doc, models.TierMedium); err != nil {
		t.Fatalf("medium Summarize: %v", err)
	}
	if provider.callCount() != callsAfterFirst+4 {
		t.Fatalf("new tier should re-run map and reduce, got %d calls", provider.callCount()-callsAfterFirst)
	}
}

func TestSummarizePartialFailureDegrades(t *testing.T) {
	t.Parallel()
	provider := &fakeProvider{}
	provider.generate = func(_ int, prompt string) (string, error) {
		if isReducePrompt(prompt) {
			return "final summary", nil
		}
		if strings.Contains(prompt, strings.Repeat("b", 80)) {
			return "", gateway.ErrTimeout
		}
		return "partial summary", nil
	}
	svc, _ := newTestService(t, provider)

	sum, err := svc.Summarize(context.Background(), "fp", threeChunkDoc(), models.TierLow)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if !sum.Degraded {
		t.Fatalf("expected degraded summary")
	}
	reduces := provider.reduceCalls()
	if len(reduces) != 1 {
		t.Fatalf("expected one reduce call")
	}
	if !strings.Contains(reduces[0], "[section 2 unavailable]") {
		t.Fatalf("reduce prompt should carry the placeholder, got:\n%s", reduces[0])
	}
}

func TestSummarizeAllChunksFail(t *testing.T) {
	t.Parallel()
	provider := &fakeProvider{}
	provider.generate = func(_ int, prompt string) (string, error) {
		return "", gateway.ErrRateLimited
	}
	svc, _ := newTestService(t, provider)

	_, err := svc.Summarize(context.Background(), "fp", threeChunkDoc(), models.TierLow)
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
	if len(provider.reduceCalls()) != 0 {
		t.Fatalf("reduce must not run when every chunk failed")
	}
}

func TestSummarizeReduceFailure(t *testing.T) {
	t.Parallel()
	provider := &fakeProvider{}
	provider.generate = func(_ int, prompt string) (string, error) {
		if isReducePrompt(prompt) {
			return "", gateway.ErrUpstream
		}
		return "partial summary", nil
	}
	svc, store := newTestService(t, provider)

	_, err := svc.Summarize(context.Background(), "fp", threeChunkDoc(), models.TierLow)
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
	// A failed reduce must leave no partially visible summary behind.
	if _, ok, _ := store.GetSummary(context.Background(), "fp", models.TierLow); ok {
		t.Fatalf("failed pipeline must not cache a summary")
	}
}

func TestSummarizeReducePreservesChunkOrder(t *testing.T) {
	t.Parallel()
	provider := &fakeProvider{}
	provider.generate = func(_ int, prompt string) (string, error) {
		if isReducePrompt(prompt) {
			return "final summary", nil
		}
		// Finish the first chunk last so completion order differs from
		// document order.
		switch {
		case strings.Contains(prompt, strings.Repeat("a", 80)):
			time.Sleep(60 * time.Millisecond)
			return "partial-A", nil
		case strings.Contains(prompt, strings.Repeat("b", 80)):
			time.Sleep(20 * time.Millisecond)
			return "partial-B", nil
		default:
			return "partial-C", nil
		}
	}
	svc, _ := newTestService(t, provider)

	if _, err := svc.Summarize(context.Background(), "fp", threeChunkDoc(), models.TierLow); err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	reduce := provider.reduceCalls()[0]
	iA := strings.Index(reduce, "partial-A")
	iB := strings.Index(reduce, "partial-B")
	iC := strings.Index(reduce, "partial-C")
	if iA < 0 || iB < 0 || iC < 0 || !(iA < iB && iB < iC) {
		t.Fatalf("partials out of order in reduce prompt: A=%d B=%d C=%d", iA, iB, iC)
	}
}

func TestSummarizeRespectsConcurrencyBound(t *testing.T) {
	t.Parallel()
	var inFlight, peak int32
	provider := &fakeProvider{}
	provider.generate = func(_ int, prompt string) (string, error) {
		if isReducePrompt(prompt) {
			return "final summary", nil
		}
		cur := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return "partial summary", nil
	}

	store, err := inmemory.New(time.Hour, time.Hour, "", nil)
	if err != nil {
		t.Fatalf("inmemory.New: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	svc := New(provider, store, 100, 2, log.New(io.Discard, "", 0))

	paras := make([]string, 8)
	for i := range paras {
		paras[i] = strings.Repeat(fmt.Sprintf("%d", i), 80)
	}
	doc := models.Document{Text: strings.Join(paras, "\n\n")}

	if _, err := svc.Summarize(context.Background(), "fp", doc, models.TierHigh); err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if p := atomic.LoadInt32(&peak); p > 2 {
		t.Fatalf("concurrency bound exceeded: peak %d", p)
	}
}
