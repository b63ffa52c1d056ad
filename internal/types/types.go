// Package types holds the shared data model for the export and retrieval core.
package types

// TocEntry is one row of a book's table of contents as recorded in the
// upstream catalogue.
type TocEntry struct {
	ID           int    `json:"id"`
	PageRef      int    `json:"page_ref"`
	ParentID     int    `json:"parent_id"`
	Part         string `json:"part"`
	PhysicalPage int    `json:"physical_page"`
	Title        string `json:"title,omitempty"`
}

// Page is a single content page extracted from the raw HTML.
type Page struct {
	// PageID is a per-book surrogate, monotonically increasing in page order.
	PageID int `json:"page_id"`
	// PageNum is the printed page number.
	PageNum int `json:"page_num"`
	// PartTitle is the displayed part (volume) title; may be empty.
	PartTitle string `json:"part_title"`
	// CleanedText is the markdown-like plain text of the page.
	CleanedText string `json:"cleaned_text"`
	// DisplayElem is the raw HTML fragment of the page.
	DisplayElem string `json:"display_elem"`
}

// BookMetadata is the per-book processed metadata document uploaded to the
// object store and upserted to the relational store.
type BookMetadata struct {
	BookID   int64  `json:"book_id"`
	BookName string `json:"book_name"`
	Author   string `json:"author"`
	Category string `json:"category"`

	// Optional bibliographic fields harvested from non-content pages.
	Editor        string `json:"editor,omitempty"`
	Edition       string `json:"edition,omitempty"`
	Publisher     string `json:"publisher,omitempty"`
	NumVolumes    string `json:"num_volumes,omitempty"`
	NumPages      string `json:"num_pages,omitempty"`
	ShamelaPubDate string `json:"shamela_pub_date,omitempty"`
	AuthorFull    string `json:"author_full,omitempty"`

	// Parts lists each distinct part title in first-seen order.
	Parts []string `json:"parts"`
	// Pages maps part title to the ordered pages of that part.
	Pages map[string][]Page `json:"pages"`
	// TableOfContents is passed through from the catalogue.
	TableOfContents []TocEntry `json:"table_of_contents"`
}

// ContentPageCount returns the number of content pages across all parts.
func (m *BookMetadata) ContentPageCount() int {
	n := 0
	for _, pages := range m.Pages {
		n += len(pages)
	}
	return n
}

// ChunkIDBase is the multiplier used to derive a chunk's global vector-store
// id from its book id. Supports up to ten million chunks per book; a chunk
// with the same book id and order deliberately collides so upsert replaces.
const ChunkIDBase = 10_000_000

// Chunk is an ordered slice of a book's text with its page assignment and
// embeddings.
type Chunk struct {
	Order        int                `json:"order"`
	BookID       int64              `json:"book_id"`
	BookName     string             `json:"book_name"`
	Author       string             `json:"author"`
	Category     string             `json:"category"`
	Text         string             `json:"text"`
	PartTitle    string             `json:"part_title"`
	StartPageID  int                `json:"start_page_id"`
	PageOffset   int                `json:"page_offset"`
	PageNumRange [2]int             `json:"page_num_range"`
	DenseVector  []float32          `json:"dense_vector,omitempty"`
	SparseVector map[uint32]float32 `json:"sparse_vector,omitempty"`
}

// ID returns the chunk's global vector-store identity.
func (c *Chunk) ID() int64 {
	return c.BookID*ChunkIDBase + int64(c.Order)
}
