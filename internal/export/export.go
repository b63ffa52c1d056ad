// Package export orchestrates a single book's export: extract, process,
// upload, upsert, chunk, embed, index. A failed export leaves partial state
// behind; the next attempt starts by deleting it.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aosman25/islam-ai/internal/chunker"
	"github.com/aosman25/islam-ai/internal/extractor"
	"github.com/aosman25/islam-ai/internal/htmlproc"
	"github.com/aosman25/islam-ai/internal/objstore"
	"github.com/aosman25/islam-ai/internal/types"
)

// Extractor produces a book's raw page HTML files.
type Extractor interface {
	ExportToMemory(ctx context.Context, bookID int64) ([]extractor.File, error)
}

// ObjectStore is the subset of the object store the orchestrator uses.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}

// RelStore is the subset of the relational store the orchestrator uses.
type RelStore interface {
	UpsertBook(ctx context.Context, doc *types.BookMetadata, authorID, categoryID int64) error
	DeleteBook(ctx context.Context, bookID int64) (bool, error)
}

// VecStore is the subset of the vector store the orchestrator uses.
type VecStore interface {
	UpsertChunks(ctx context.Context, chunks []types.Chunk, partition string) error
	DeleteByBookID(ctx context.Context, bookID int64, partition string) (bool, error)
}

// BookChunker cuts a processed book into chunks.
type BookChunker interface {
	ChunkBook(doc *types.BookMetadata) ([]types.Chunk, chunker.Stats, error)
}

// Embedder fills vectors on a book's chunks.
type Embedder interface {
	EmbedChunks(ctx context.Context, chunks []types.Chunk, onBatch func(done int)) error
}

// Progress receives export lifecycle events. Nil fields are skipped.
type Progress struct {
	Step              func(name string)
	ChunkingDone      func(chunks int)
	EmbeddingProgress func(embedded int)
}

func (p Progress) step(name string) {
	if p.Step != nil {
		p.Step(name)
	}
}

func (p Progress) chunkingDone(n int) {
	if p.ChunkingDone != nil {
		p.ChunkingDone(n)
	}
}

func (p Progress) embeddingProgress(n int) {
	if p.EmbeddingProgress != nil {
		p.EmbeddingProgress(n)
	}
}

// Request identifies the book to export, with the catalogue identity the
// pipeline stamps through every store.
type Request struct {
	BookID          int64
	BookName        string
	AuthorName      string
	CategoryName    string
	AuthorID        int64
	CategoryID      int64
	TableOfContents []types.TocEntry
}

// Result reports what a completed export produced.
type Result struct {
	RawFiles    int
	MetadataURL string
}

// Orchestrator wires the export pipeline's stores and stages.
type Orchestrator struct {
	Extractor Extractor
	Objects   ObjectStore
	Rel       RelStore
	Vec       VecStore
	Chunker   BookChunker
	Embedder  Embedder
	Partition string

	logger *slog.Logger
}

// New builds an orchestrator. Partition defaults to the vector store default.
func New(ext Extractor, obj ObjectStore, rel RelStore, vec VecStore, ch BookChunker, emb Embedder, partition string, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		Extractor: ext,
		Objects:   obj,
		Rel:       rel,
		Vec:       vec,
		Chunker:   ch,
		Embedder:  emb,
		Partition: partition,
		logger:    logger.With("component", "export"),
	}
}

// ExportBook runs the full pipeline for one book. Re-exports begin by
// deleting the previous copy so every run starts clean.
func (o *Orchestrator) ExportBook(ctx context.Context, req Request, progress Progress) (*Result, error) {
	existing, err := o.Objects.List(ctx, objstore.RawPrefix(req.BookID))
	if err != nil {
		return nil, fmt.Errorf("checking existing export: %w", err)
	}
	if len(existing) > 0 {
		if _, err := o.DeleteBook(ctx, req.BookID); err != nil {
			return nil, fmt.Errorf("deleting previous export: %w", err)
		}
	}

	progress.step("exporting")
	files, err := o.Extractor.ExportToMemory(ctx, req.BookID)
	if err != nil {
		return nil, fmt.Errorf("extracting book %d: %w", req.BookID, err)
	}

	doc, err := htmlproc.Process(files, htmlproc.BookIdentity{
		BookID:          req.BookID,
		BookName:        req.BookName,
		Author:          req.AuthorName,
		Category:        req.CategoryName,
		TableOfContents: req.TableOfContents,
	})
	if err != nil {
		return nil, fmt.Errorf("processing book %d: %w", req.BookID, err)
	}

	for _, f := range files {
		if err := o.Objects.Put(ctx, objstore.RawKey(req.BookID, f.Name), f.Content, "text/html"); err != nil {
			return nil, fmt.Errorf("uploading raw page %s: %w", f.Name, err)
		}
	}

	metaJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata for book %d: %w", req.BookID, err)
	}
	metaKey := objstore.MetadataKey(req.BookID)
	if err := o.Objects.Put(ctx, metaKey, metaJSON, "application/json"); err != nil {
		return nil, fmt.Errorf("uploading metadata: %w", err)
	}

	if err := o.Rel.UpsertBook(ctx, doc, req.AuthorID, req.CategoryID); err != nil {
		return nil, fmt.Errorf("upserting book %d: %w", req.BookID, err)
	}

	progress.step("chunking")
	chunks, stats, err := o.Chunker.ChunkBook(doc)
	if err != nil {
		return nil, fmt.Errorf("chunking book %d: %w", req.BookID, err)
	}
	progress.chunkingDone(len(chunks))

	progress.step("embedding")
	if err := o.Embedder.EmbedChunks(ctx, chunks, progress.embeddingProgress); err != nil {
		return nil, fmt.Errorf("embedding book %d: %w", req.BookID, err)
	}

	jsonl, err := MarshalJSONL(chunks)
	if err != nil {
		return nil, fmt.Errorf("marshaling embeddings for book %d: %w", req.BookID, err)
	}
	if err := o.Objects.Put(ctx, objstore.EmbeddingsKey(req.BookID), jsonl, "application/x-ndjson"); err != nil {
		return nil, fmt.Errorf("uploading embeddings: %w", err)
	}

	if err := o.Vec.UpsertChunks(ctx, chunks, o.Partition); err != nil {
		return nil, fmt.Errorf("indexing book %d: %w", req.BookID, err)
	}

	o.logger.Info("book exported", "book_id", req.BookID,
		"raw_files", len(files), "pages", doc.ContentPageCount(), "chunks", len(chunks),
		"segments_over_limit", stats.SegmentsOverLimit)

	return &Result{RawFiles: len(files), MetadataURL: o.Objects.PublicURL(metaKey)}, nil
}

// DeleteBook removes a book from all three stores. Returns whether any copy
// existed.
func (o *Orchestrator) DeleteBook(ctx context.Context, bookID int64) (bool, error) {
	existed := false

	keys, err := o.Objects.List(ctx, objstore.RawPrefix(bookID))
	if err != nil {
		return false, fmt.Errorf("listing raw keys for book %d: %w", bookID, err)
	}
	for _, key := range keys {
		if err := o.Objects.Delete(ctx, key); err != nil {
			return false, err
		}
	}
	existed = existed || len(keys) > 0

	for _, key := range []string{objstore.MetadataKey(bookID), objstore.EmbeddingsKey(bookID)} {
		if err := o.Objects.Delete(ctx, key); err != nil {
			return false, err
		}
	}

	relExisted, err := o.Rel.DeleteBook(ctx, bookID)
	if err != nil {
		return false, fmt.Errorf("deleting book %d from relational store: %w", bookID, err)
	}
	vecExisted, err := o.Vec.DeleteByBookID(ctx, bookID, o.Partition)
	if err != nil {
		return false, fmt.Errorf("deleting book %d from vector store: %w", bookID, err)
	}

	existed = existed || relExisted || vecExisted
	o.logger.Info("book removed", "book_id", bookID, "existed", existed)
	return existed, nil
}
