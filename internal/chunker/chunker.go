// Package chunker cuts a processed book into bounded-token semantic chunks
// at ToC markers and sentence boundaries, then assigns each chunk a page
// range by proportional length matching.
package chunker

import (
	"fmt"
	"log/slog"

	"github.com/aosman25/islam-ai/internal/htmlproc"
	"github.com/aosman25/islam-ai/internal/types"
)

const (
	// DefaultMaxTokens is the post-split token budget per chunk.
	DefaultMaxTokens = 7500

	// DefaultLookback bounds the rescan for a period boundary before a ToC
	// marker, capping worst-case rescan cost.
	DefaultLookback = 50_000
)

// Chunker holds the chunking configuration.
type Chunker struct {
	MaxTokens int
	Lookback  int

	counter TokenCounter
	logger  *slog.Logger
}

// Stats reports how segments fared against the token budget.
type Stats struct {
	SegmentsUnderLimit int
	SegmentsOverLimit  int
}

// New creates a chunker with the process-wide BPE counter.
func New(maxTokens, lookback int, logger *slog.Logger) *Chunker {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chunker{
		MaxTokens: maxTokens,
		Lookback:  lookback,
		counter:   NewTokenCounter(),
		logger:    logger.With("component", "chunker"),
	}
}

// NewWithCounter creates a chunker with an explicit token counter (tests).
func NewWithCounter(maxTokens, lookback int, counter TokenCounter) *Chunker {
	c := New(maxTokens, lookback, nil)
	c.counter = counter
	return c
}

// ChunkBook produces the book's ordered chunks with page assignments.
func (c *Chunker) ChunkBook(doc *types.BookMetadata) ([]types.Chunk, Stats, error) {
	var stats Stats

	segments := c.segmentHTML(doc)

	var texts []string
	for _, seg := range segments {
		text := htmlproc.CleanFragment(seg)
		if text == "" {
			continue
		}
		if c.counter.Count(text) <= c.MaxTokens {
			stats.SegmentsUnderLimit++
			texts = append(texts, text)
			continue
		}
		stats.SegmentsOverLimit++
		texts = append(texts, c.splitByTokens(text)...)
	}

	texts = postProcess(texts)
	if len(texts) == 0 {
		return nil, stats, fmt.Errorf("book %d: chunker produced zero chunks", doc.BookID)
	}

	pages := pageRecords(doc)
	chunkTotal := 0
	for _, t := range texts {
		chunkTotal += CleanLen(t)
	}
	allocate(pages, chunkTotal)

	chunks := matchPages(texts, pages)
	for i := range chunks {
		chunks[i].BookID = doc.BookID
		chunks[i].BookName = doc.BookName
		chunks[i].Author = doc.Author
		chunks[i].Category = doc.Category
	}

	c.logger.Debug("book chunked", "book_id", doc.BookID,
		"chunks", len(chunks), "segments_under_limit", stats.SegmentsUnderLimit,
		"segments_over_limit", stats.SegmentsOverLimit)
	return chunks, stats, nil
}
