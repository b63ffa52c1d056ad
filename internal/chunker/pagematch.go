package chunker

import (
	"math"

	"github.com/aosman25/islam-ai/internal/htmlproc"
	"github.com/aosman25/islam-ai/internal/types"
)

// pageRecord is the matcher's view of one content page.
type pageRecord struct {
	PageID    int
	PageNum   int
	PartTitle string
	// EstimatedLength is CleanLen(strip_html(display_elem)).
	EstimatedLength int
	// AllocatedLength is the proportionally redistributed length.
	AllocatedLength int
}

// pageRecords flattens the metadata document's pages in book order.
func pageRecords(doc *types.BookMetadata) []pageRecord {
	var records []pageRecord
	for _, part := range doc.Parts {
		for _, p := range doc.Pages[part] {
			records = append(records, pageRecord{
				PageID:          p.PageID,
				PageNum:         p.PageNum,
				PartTitle:       p.PartTitle,
				EstimatedLength: CleanLen(htmlproc.CleanFragment(p.DisplayElem)),
			})
		}
	}
	return records
}

// allocate redistributes page lengths proportionally so the page total
// equals the chunk total. The last page takes the remainder, making the
// totals match exactly.
func allocate(pages []pageRecord, chunkTotal int) {
	pageTotal := 0
	for i := range pages {
		pageTotal += pages[i].EstimatedLength
	}
	if pageTotal == 0 {
		// Degenerate input: dump everything on the last page.
		for i := range pages {
			pages[i].AllocatedLength = 0
		}
		if len(pages) > 0 {
			pages[len(pages)-1].AllocatedLength = chunkTotal
		}
		return
	}

	assigned := 0
	for i := range pages[:len(pages)-1] {
		p := int(math.Round(float64(chunkTotal) * float64(pages[i].EstimatedLength) / float64(pageTotal)))
		pages[i].AllocatedLength = p
		assigned += p
	}
	pages[len(pages)-1].AllocatedLength = chunkTotal - assigned
}

// matchPages runs the two-pointer sweep assigning each chunk a page range.
// texts are the final post-processed chunk texts; pages must be in book
// order with allocated lengths already summing to the chunk total.
func matchPages(texts []string, pages []pageRecord) []types.Chunk {
	chunks := make([]types.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = types.Chunk{Order: i, Text: t}
	}
	if len(pages) == 0 {
		return chunks
	}

	pageIdx := 0
	startIdx := 0
	pLen := pages[0].AllocatedLength
	chunkIdx := 0

	emit := func(endPage int) {
		c := &chunks[chunkIdx]
		c.StartPageID = pages[startIdx].PageID
		c.PageOffset = endPage - startIdx
		c.PageNumRange = [2]int{pages[startIdx].PageNum, pages[endPage].PageNum}
		c.PartTitle = pages[endPage].PartTitle
	}

	cLen := 0
	if len(texts) > 0 {
		cLen = CleanLen(texts[0])
	}

	for chunkIdx < len(texts) && pageIdx < len(pages) {
		switch {
		case pLen < cLen:
			// Page fully consumed by the current chunk.
			cLen -= pLen
			pageIdx++
			if pageIdx < len(pages) {
				pLen = pages[pageIdx].AllocatedLength
			}
		case pLen > cLen:
			// Chunk fully filled by the current page.
			emit(pageIdx)
			pLen -= cLen
			chunkIdx++
			startIdx = pageIdx
			if chunkIdx < len(texts) {
				cLen = CleanLen(texts[chunkIdx])
			}
		default:
			emit(pageIdx)
			chunkIdx++
			pageIdx++
			if pageIdx < len(pages) {
				startIdx = pageIdx
				pLen = pages[pageIdx].AllocatedLength
			}
			if chunkIdx < len(texts) {
				cLen = CleanLen(texts[chunkIdx])
			}
		}
	}

	// Defensive clamp: anything left inherits the previous assignment.
	for i := chunkIdx; i < len(chunks); i++ {
		if i > 0 {
			chunks[i].StartPageID = chunks[i-1].StartPageID
			chunks[i].PageOffset = chunks[i-1].PageOffset
			chunks[i].PageNumRange = chunks[i-1].PageNumRange
			chunks[i].PartTitle = chunks[i-1].PartTitle
		} else {
			chunks[i].StartPageID = pages[0].PageID
			chunks[i].PageNumRange = [2]int{pages[0].PageNum, pages[0].PageNum}
			chunks[i].PartTitle = pages[0].PartTitle
		}
	}

	return chunks
}
