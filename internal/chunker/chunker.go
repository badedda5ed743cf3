// Package chunker splits normalized document text into bounded, overlapping
// fragments and fingerprints document versions for idempotent re-ingestion.
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

const (
	// minChunkSize is the floor for fragment length; smaller configured sizes
	// produce fragments too short to carry retrievable meaning.
	minChunkSize = 200
)

var (
	spaceRun = regexp.MustCompile(`[ \t]+`)
	blankRun = regexp.MustCompile(`\n{3,}`)
)

// Chunker splits text into fixed-size rune windows with overlap.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	maxChunks    int
}

// New creates a chunker. chunkSize is clamped to at least 200 runes and
// chunkOverlap to [0, chunkSize/2]. maxChunks caps the number of fragments
// per document; zero or negative means unlimited.
func New(chunkSize, chunkOverlap, maxChunks int) *Chunker {
	if chunkSize < minChunkSize {
		chunkSize = minChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap > chunkSize/2 {
		chunkOverlap = chunkSize / 2
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		maxChunks:    maxChunks,
	}
}

// MaxChunks returns the per-document fragment cap (0 = unlimited).
func (c *Chunker) MaxChunks() int { return c.maxChunks }

// Split normalizes text and cuts it into overlapping rune windows. Returns
// nil for text that normalizes to empty. When the cap is reached, the
// remaining text is not chunked.
func (c *Chunker) Split(text string) []string {
	runes := []rune(Normalize(text))
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
		start = end - c.chunkOverlap
		if c.maxChunks > 0 && len(chunks) >= c.maxChunks {
			break
		}
	}
	return chunks
}

// Normalize canonicalizes line endings, collapses runs of spaces and tabs,
// squeezes three or more newlines down to a blank line, and trims the result.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = spaceRun.ReplaceAllString(text, " ")
	text = blankRun.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// ContentHash returns the sha256 hex fingerprint of a document's raw text,
// identifying the exact version that produced a chunk set.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
