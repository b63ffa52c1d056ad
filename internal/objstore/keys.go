package objstore

import "fmt"

// Key layout, all under one bucket:
//
//	raw/<book_id>/<filename>       one object per page HTML
//	metadata/<book_id>.json        one object per book
//	embeddings/<book_id>.jsonl     one JSON object per chunk, newline-delimited

// RawPrefix returns the key prefix for a book's raw HTML pages.
func RawPrefix(bookID int64) string {
	return fmt.Sprintf("raw/%d/", bookID)
}

// RawKey returns the key for one raw page HTML file.
func RawKey(bookID int64, filename string) string {
	return RawPrefix(bookID) + filename
}

// MetadataKey returns the key for a book's metadata document.
func MetadataKey(bookID int64) string {
	return fmt.Sprintf("metadata/%d.json", bookID)
}

// EmbeddingsKey returns the key for a book's embeddings JSONL mirror.
func EmbeddingsKey(bookID int64) string {
	return fmt.Sprintf("embeddings/%d.jsonl", bookID)
}
