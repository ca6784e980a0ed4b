package models

import (
	"strings"
	"time"
)

// Tier controls the target audience depth of a final summary.
type Tier string

const (
	TierLow    Tier = "LOW"
	TierMedium Tier = "MEDIUM"
	TierHigh   Tier = "HIGH"
)

// ParseTier normalises a complexity string. Unknown values fall back to
// LOW rather than erroring.
func ParseTier(s string) Tier {
	switch Tier(strings.ToUpper(strings.TrimSpace(s))) {
	case TierLow:
		return TierLow
	case TierMedium:
		return TierMedium
	case TierHigh:
		return TierHigh
	default:
		return TierLow
	}
}

// SourceKind records how a document's text was obtained.
type SourceKind string

const (
	SourcePDF  SourceKind = "pdf"
	SourceHTML SourceKind = "html"
)

// Document is the extracted text of a paper, keyed by its canonical URL.
// Text is immutable once produced; repeated requests reuse it until the
// cache entry expires.
type Document struct {
	CanonicalURL string     `json:"canonical_url"`
	Text         string     `json:"text"`
	Kind         SourceKind `json:"kind"`
	ExtractedAt  time.Time  `json:"extracted_at"`
}

// Summary is the reduce-phase output for one (document, tier) pair.
// Intermediate per-chunk summaries are never stored.
type Summary struct {
	Text        string    `json:"text"`
	Tier        Tier      `json:"tier"`
	ChunkCount  int       `json:"chunk_count"`
	Degraded    bool      `json:"degraded"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Role identifies the author of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatTurn is one entry in a session's append-only history.
type ChatTurn struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}
