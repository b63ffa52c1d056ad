package export

import (
	"bytes"
	"encoding/json"

	"github.com/aosman25/islam-ai/internal/types"
)

// chunkRecord fixes the JSONL field layout for the embeddings mirror.
type chunkRecord struct {
	Order        int                `json:"order"`
	BookID       int64              `json:"book_id"`
	BookName     string             `json:"book_name"`
	Author       string             `json:"author"`
	Category     string             `json:"category"`
	PartTitle    string             `json:"part_title"`
	StartPageID  int                `json:"start_page_id"`
	PageOffset   int                `json:"page_offset"`
	PageNumRange [2]int             `json:"page_num_range"`
	Text         string             `json:"text"`
	DenseVector  []float32          `json:"dense_vector"`
	SparseVector map[uint32]float32 `json:"sparse_vector"`
}

// MarshalJSONL serializes chunks one JSON object per line.
func MarshalJSONL(chunks []types.Chunk) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, c := range chunks {
		rec := chunkRecord{
			Order:        c.Order,
			BookID:       c.BookID,
			BookName:     c.BookName,
			Author:       c.Author,
			Category:     c.Category,
			PartTitle:    c.PartTitle,
			StartPageID:  c.StartPageID,
			PageOffset:   c.PageOffset,
			PageNumRange: c.PageNumRange,
			Text:         c.Text,
			DenseVector:  c.DenseVector,
			SparseVector: c.SparseVector,
		}
		if err := enc.Encode(&rec); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
