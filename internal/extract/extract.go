// Package extract turns a canonical paper URL into plain text. It handles
// arXiv links (already rewritten to their PDF form by URL canonicalisation),
// direct PDFs, and generic HTML pages.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/paperlens/internal/helpers"
	"github.com/mohammad-safakhou/paperlens/models"
)

var (
	ErrUnreachable       = errors.New("document unreachable")
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrEmptyDocument     = errors.New("document has no extractable text")
)

const (
	defaultUserAgent    = "PaperLensBot/1.0 (+https://github.com/mohammad-safakhou/paperlens)"
	defaultMinTextChars = 200
	maxBodyBytes        = 32 << 20
)

// Extractor fetches and extracts document text over plain HTTP.
type Extractor struct {
	httpClient   *http.Client
	userAgent    string
	minTextChars int
	logger       *log.Logger
}

// New creates an Extractor. timeout bounds the whole fetch; minTextChars is
// the threshold below which a document counts as empty.
func New(timeout time.Duration, minTextChars int, logger *log.Logger) *Extractor {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	if minTextChars <= 0 {
		minTextChars = defaultMinTextChars
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[EXTRACT] ", log.LstdFlags)
	}
	return &Extractor{
		httpClient:   &http.Client{Timeout: timeout},
		userAgent:    defaultUserAgent,
		minTextChars: minTextChars,
		logger:       logger,
	}
}

// Extract fetches canonicalURL and returns its plain text and source kind.
func (e *Extractor) Extract(ctx context.Context, canonicalURL string) (string, models.SourceKind, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, canonicalURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return "", "", fmt.Errorf("%w: status %d", ErrUnreachable, resp.StatusCode)
	}
	body, err := helpers.ReadAllAndClose(newLimitedBody(resp.Body))
	if err != nil {
		return "", "", fmt.Errorf("%w: read body: %v", ErrUnreachable, err)
	}

	kind := classify(canonicalURL, resp.Header.Get("Content-Type"), body)
	var text string
	switch kind {
	case models.SourcePDF:
		text, err = pdfText(body)
	case models.SourceHTML:
		text, err = htmlText(body, canonicalURL)
	default:
		return "", "", ErrUnsupportedFormat
	}
	if err != nil {
		e.logger.Printf("extract %s (%s): %v", canonicalURL, kind, err)
		return "", "", fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	text = strings.TrimSpace(text)
	if len(text) < e.minTextChars {
		return "", "", ErrEmptyDocument
	}
	e.logger.Printf("extracted %d chars from %s (%s)", len(text), canonicalURL, kind)
	return text, kind, nil
}

// classify decides the parser. The %PDF magic wins over headers because
// some hosts serve PDFs as application/octet-stream.
func classify(url, contentType string, body []byte) models.SourceKind {
	ct := strings.ToLower(contentType)
	switch {
	case len(body) >= 4 && string(body[:4]) == "%PDF":
		return models.SourcePDF
	case strings.Contains(ct, "pdf"):
		return models.SourcePDF
	case helpers.IsArxivURL(url) || strings.HasSuffix(strings.ToLower(url), ".pdf"):
		return models.SourcePDF
	case strings.Contains(ct, "html") || strings.Contains(ct, "text/"):
		return models.SourceHTML
	case ct == "":
		return models.SourceHTML
	default:
		return ""
	}
}

func newLimitedBody(rc io.ReadCloser) io.ReadCloser {
	return struct {
		io.Reader
		io.Closer
	}{io.LimitReader(rc, maxBodyBytes), rc}
}
