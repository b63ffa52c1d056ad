package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/aosman25/islam-ai/internal/types"
)

// wordCounter counts whitespace-separated words, standing in for the BPE
// counter so tests are deterministic and offline.
type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

func page(id, num int, part, body string) types.Page {
	return types.Page{
		PageID:    id,
		PageNum:   num,
		PartTitle: part,
		DisplayElem: `<div class="PageText"><div class="PageHead">` +
			`<span class="PartName">` + part + `</span>` +
			fmt.Sprintf(`<span class="PageNumber">ص: %d</span>`, num) +
			`</div>` + body + `</div>`,
	}
}

func sentences(n int, word string) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteString("<p>")
		for j := 0; j < 7; j++ {
			b.WriteString(word)
			b.WriteString(" ")
		}
		b.WriteString(word)
		b.WriteString(".</p>")
	}
	return b.String()
}

func testDoc() *types.BookMetadata {
	part := "الجزء الأول"
	return &types.BookMetadata{
		BookID:   42,
		BookName: "Example",
		Author:   "مؤلف",
		Category: "فقه",
		Parts:    []string{part},
		Pages: map[string][]types.Page{
			part: {
				page(1, 1, part, sentences(3, "كلمة")+`<span data-type="title" id="toc-1">باب</span>`+sentences(3, "نص")),
				page(2, 2, part, sentences(4, "حديث")),
				page(3, 3, part, sentences(4, "فقه")),
			},
		},
	}
}

func TestChunkBookInvariants(t *testing.T) {
	c := NewWithCounter(50, DefaultLookback, wordCounter{})
	chunks, stats, err := c.ChunkBook(testDoc())
	if err != nil {
		t.Fatalf("ChunkBook: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("no chunks")
	}
	if stats.SegmentsUnderLimit+stats.SegmentsOverLimit == 0 {
		t.Error("no segments counted")
	}

	// Order is contiguous from zero.
	for i, ch := range chunks {
		if ch.Order != i {
			t.Errorf("chunk %d has order %d", i, ch.Order)
		}
		if ch.BookID != 42 || ch.BookName != "Example" {
			t.Errorf("chunk %d missing identity: %+v", i, ch)
		}
		if ch.PageNumRange[0] > ch.PageNumRange[1] {
			t.Errorf("chunk %d has inverted page range %v", i, ch.PageNumRange)
		}
		if ch.StartPageID < 1 {
			t.Errorf("chunk %d start_page_id = %d", i, ch.StartPageID)
		}
	}

	// The normalized chunk total equals the allocated page total.
	doc := testDoc()
	pages := pageRecords(doc)
	chunkTotal := 0
	for _, ch := range chunks {
		chunkTotal += CleanLen(ch.Text)
	}
	allocate(pages, chunkTotal)
	pageTotal := 0
	for _, p := range pages {
		pageTotal += p.AllocatedLength
	}
	if chunkTotal != pageTotal {
		t.Errorf("chunk total %d != allocated page total %d", chunkTotal, pageTotal)
	}
}

func TestChunkBookSplitsAtTocMarker(t *testing.T) {
	c := NewWithCounter(10_000, DefaultLookback, wordCounter{})
	chunks, _, err := c.ChunkBook(testDoc())
	if err != nil {
		t.Fatalf("ChunkBook: %v", err)
	}
	// The marker inside page 1 splits the part into two segments.
	if len(chunks) < 2 {
		t.Fatalf("expected a ToC split, got %d chunks", len(chunks))
	}
	if !strings.Contains(chunks[1].Text, "باب") {
		t.Errorf("second chunk does not start at the title: %q", firstLine(chunks[1].Text))
	}
}

func TestChunkBookNoMarkersTokenBounded(t *testing.T) {
	part := "الجزء الأول"
	doc := &types.BookMetadata{
		BookID: 7, BookName: "NoToc",
		Parts: []string{part},
		Pages: map[string][]types.Page{
			part: {page(1, 1, part, sentences(30, "كلمة"))},
		},
	}

	// 30 sentences of 8 words each = 240 words; budget of 100 words per
	// chunk packs sentences greedily.
	c := NewWithCounter(100, DefaultLookback, wordCounter{})
	chunks, stats, err := c.ChunkBook(doc)
	if err != nil {
		t.Fatalf("ChunkBook: %v", err)
	}
	if stats.SegmentsOverLimit != 1 {
		t.Errorf("segments_over_limit = %d, want 1", stats.SegmentsOverLimit)
	}
	if len(chunks) != 3 {
		t.Errorf("got %d chunks, want 3", len(chunks))
	}
	for _, ch := range chunks {
		if n := (wordCounter{}).Count(ch.Text); n > 100 {
			t.Errorf("chunk exceeds budget: %d words", n)
		}
	}
}

func TestBoundaryBeforePrefersLatest(t *testing.T) {
	c := NewWithCounter(100, DefaultLookback, wordCounter{})
	html := `<div class="PageText"><p>sentence one.</p><p></p><p>sentence two. tail <span data-type="title" id="toc-1">t</span></p></div>`
	pos := strings.Index(html, `<span data-type="title"`)

	b := c.boundaryBefore(html, pos)
	// The latest candidate is the period in "two." followed by a space.
	wantAfter := strings.Index(html, "two.") + len("two.")
	if b != wantAfter {
		t.Errorf("boundary = %d, want %d (after last period)", b, wantAfter)
	}
}

func TestAllocateLastPageTakesRemainder(t *testing.T) {
	pages := []pageRecord{
		{PageID: 1, EstimatedLength: 100},
		{PageID: 2, EstimatedLength: 100},
		{PageID: 3, EstimatedLength: 100},
	}
	allocate(pages, 1000)
	total := 0
	for _, p := range pages {
		total += p.AllocatedLength
	}
	if total != 1000 {
		t.Errorf("allocated total = %d, want 1000", total)
	}
	if pages[0].AllocatedLength != 333 || pages[1].AllocatedLength != 333 {
		t.Errorf("proportional shares wrong: %+v", pages)
	}
	if pages[2].AllocatedLength != 334 {
		t.Errorf("last page should take remainder: %+v", pages[2])
	}
}

func TestMatchPagesTwoPointer(t *testing.T) {
	// Two chunks of normalized length 10 and 6; three pages allocated
	// 8, 4, 4. Chunk 0 spans pages 1-2, chunk 1 spans pages 2-3.
	texts := []string{
		strings.Repeat("ب", 10),
		strings.Repeat("ت", 6),
	}
	pages := []pageRecord{
		{PageID: 1, PageNum: 5, PartTitle: "p", AllocatedLength: 8},
		{PageID: 2, PageNum: 6, PartTitle: "p", AllocatedLength: 4},
		{PageID: 3, PageNum: 7, PartTitle: "p", AllocatedLength: 4},
	}

	chunks := matchPages(texts, pages)
	if chunks[0].StartPageID != 1 || chunks[0].PageOffset != 1 {
		t.Errorf("chunk 0 = %+v", chunks[0])
	}
	if chunks[0].PageNumRange != [2]int{5, 6} {
		t.Errorf("chunk 0 range = %v", chunks[0].PageNumRange)
	}
	if chunks[1].StartPageID != 2 || chunks[1].PageNumRange != [2]int{6, 7} {
		t.Errorf("chunk 1 = %+v", chunks[1])
	}
}

func TestMatchPagesTrailingChunksInherit(t *testing.T) {
	texts := []string{strings.Repeat("ب", 4), strings.Repeat("ت", 4)}
	pages := []pageRecord{{PageID: 1, PageNum: 1, PartTitle: "p", AllocatedLength: 4}}

	chunks := matchPages(texts, pages)
	if chunks[1].StartPageID != chunks[0].StartPageID {
		t.Errorf("trailing chunk did not inherit: %+v", chunks[1])
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
