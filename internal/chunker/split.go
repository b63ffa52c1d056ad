package chunker

import (
	"regexp"
	"sort"
	"strings"

	"github.com/aosman25/islam-ai/internal/htmlproc"
	"github.com/aosman25/islam-ai/internal/types"
)

// tocMarkerRe matches the inline title spans the extractor emits at
// chapter/section boundaries.
var tocMarkerRe = regexp.MustCompile(`<span data-type="title" id="toc-\d+">`)

// emptyParaTag and pageTextTag are the two structural boundary anchors.
const (
	emptyParaTag = "<p></p>"
	pageTextTag  = `<div class="PageText">`
)

// periodBoundaryRe matches a period followed by whitespace or a tag open,
// the weakest of the three boundary candidates.
var periodBoundaryRe = regexp.MustCompile(`\.(\s|<)`)

// segmentHTML slices a book's per-part HTML into segments at ToC-anchored
// sentence boundaries. Parts without markers are held over and prepended to
// the next part; leftovers flush after the final part.
func (c *Chunker) segmentHTML(doc *types.BookMetadata) []string {
	var segments []string
	pending := ""

	for i, part := range doc.Parts {
		partHTML := htmlproc.PartHTML(doc.Pages[part])
		if pending != "" {
			partHTML = pending + "\n" + partHTML
			pending = ""
		}

		markers := tocMarkerRe.FindAllStringIndex(partHTML, -1)
		if len(markers) == 0 {
			if i < len(doc.Parts)-1 {
				pending = partHTML
				continue
			}
			segments = append(segments, partHTML)
			continue
		}

		bounds := c.boundaries(partHTML, markers)
		prev := 0
		for _, b := range bounds {
			if b > prev {
				segments = append(segments, partHTML[prev:b])
			}
			prev = b
		}
		if prev < len(partHTML) {
			segments = append(segments, partHTML[prev:])
		}
	}

	if pending != "" {
		segments = append(segments, pending)
	}
	return segments
}

// boundaries returns the cut positions for the given marker positions: for
// each marker, the nearest sentence boundary at or before it.
func (c *Chunker) boundaries(html string, markers [][]int) []int {
	set := make(map[int]bool)
	for _, m := range markers {
		if b := c.boundaryBefore(html, m[0]); b > 0 {
			set[b] = true
		}
	}
	bounds := make([]int, 0, len(set))
	for b := range set {
		bounds = append(bounds, b)
	}
	sort.Ints(bounds)
	return bounds
}

// boundaryBefore finds the best sentence boundary at or before pos: the
// maximum of the three candidates (after the last empty paragraph, after the
// last page-text open tag, after the last period+whitespace-or-tag within
// the lookback window).
func (c *Chunker) boundaryBefore(html string, pos int) int {
	best := 0

	if i := strings.LastIndex(html[:pos], emptyParaTag); i >= 0 {
		if b := i + len(emptyParaTag); b > best {
			best = b
		}
	}
	if i := strings.LastIndex(html[:pos], pageTextTag); i >= 0 {
		if b := i + len(pageTextTag); b > best {
			best = b
		}
	}

	windowStart := pos - c.Lookback
	if windowStart < 0 {
		windowStart = 0
	}
	window := html[windowStart:pos]
	if locs := periodBoundaryRe.FindAllStringIndex(window, -1); len(locs) > 0 {
		last := locs[len(locs)-1]
		// Position immediately after the period, not the trailing rune.
		if b := windowStart + last[0] + 1; b > best {
			best = b
		}
	}

	return best
}

// splitByTokens cuts a cleaned segment text into pieces of at most
// c.MaxTokens tokens, preferring sentence boundaries on the period
// delimiter. Oversized single sentences are split on whitespace.
func (c *Chunker) splitByTokens(text string) []string {
	if c.counter.Count(text) <= c.MaxTokens {
		return []string{text}
	}

	sentences := splitAfter(text, ".")
	var pieces []string
	var current strings.Builder
	currentTokens := 0

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			pieces = append(pieces, s)
		}
		current.Reset()
		currentTokens = 0
	}

	for _, sent := range sentences {
		n := c.counter.Count(sent)
		if n > c.MaxTokens {
			// A single runaway sentence: fall back to whitespace packing.
			flush()
			pieces = append(pieces, c.packWords(sent)...)
			continue
		}
		if currentTokens+n > c.MaxTokens {
			flush()
		}
		current.WriteString(sent)
		currentTokens += n
	}
	flush()
	return pieces
}

// packWords greedily packs whitespace-separated words under the token limit.
func (c *Chunker) packWords(text string) []string {
	words := strings.Fields(text)
	var pieces []string
	var current strings.Builder
	currentTokens := 0

	for _, w := range words {
		n := c.counter.Count(w) + 1
		if currentTokens+n > c.MaxTokens && current.Len() > 0 {
			pieces = append(pieces, current.String())
			current.Reset()
			currentTokens = 0
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(w)
		currentTokens += n
	}
	if current.Len() > 0 {
		pieces = append(pieces, current.String())
	}
	return pieces
}

// splitAfter splits keeping the delimiter attached to the preceding piece.
func splitAfter(s, delim string) []string {
	parts := strings.SplitAfter(s, delim)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
