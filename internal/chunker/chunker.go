// Package chunker splits extracted document text into bounded segments for
// per-chunk model calls. Splitting is deterministic so that the same
// document always produces the same chunk sequence.
package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const DefaultMaxChunkChars = 20000

var (
	paragraphSplit = regexp.MustCompile(`\n{2,}`)
	sentenceEnd    = regexp.MustCompile(`([.!?])\s+`)
)

// Split breaks text into ordered, non-overlapping chunks, each at most
// maxChunkChars long. It prefers paragraph boundaries, falls back to
// sentence boundaries for oversized paragraphs, and hard-cuts only when a
// single sentence exceeds the limit. Empty or whitespace-only input yields
// no chunks.
func Split(text string, maxChunkChars int) []string {
	if maxChunkChars <= 0 {
		maxChunkChars = DefaultMaxChunkChars
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= maxChunkChars {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	appendPiece := func(piece, sep string) {
		if piece == "" {
			return
		}
		need := len(piece)
		if current.Len() > 0 {
			need += len(sep)
		}
		if current.Len()+need > maxChunkChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(sep)
		}
		current.WriteString(piece)
	}

	for _, para := range paragraphSplit.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(para) <= maxChunkChars {
			appendPiece(para, "\n\n")
			continue
		}
		for _, sentence := range splitSentences(para) {
			if len(sentence) <= maxChunkChars {
				appendPiece(sentence, " ")
				continue
			}
			// Hard cut: a single run of text longer than the limit.
			flush()
			for start := 0; start < len(sentence); {
				end := start + maxChunkChars
				if end >= len(sentence) {
					chunks = append(chunks, sentence[start:])
					break
				}
				// Back up so the cut never splits a multi-byte rune.
				for end > start && !utf8.RuneStart(sentence[end]) {
					end--
				}
				if end == start {
					end = start + maxChunkChars
				}
				chunks = append(chunks, sentence[start:end])
				start = end
			}
		}
	}
	flush()

	return chunks
}

func splitSentences(para string) []string {
	marked := sentenceEnd.ReplaceAllString(para, "$1\x00")
	parts := strings.Split(marked, "\x00")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
