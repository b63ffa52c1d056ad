// Package embed produces dense and sparse vectors for chunk text. Dense
// vectors come from either a remote inference endpoint or an in-process
// deterministic model; sparse vectors are BM25 weights fitted per book.
package embed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aosman25/islam-ai/internal/types"
)

// DenseEmbedder turns texts into fixed-dimension dense vectors.
type DenseEmbedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dim() int
}

// Pipeline embeds a book's chunks in place.
type Pipeline struct {
	Dense DenseEmbedder
	// BatchSize bounds texts per Embed call. Zero means the back-end default.
	BatchSize int

	logger *slog.Logger
}

// NewPipeline wires a pipeline over the given dense back-end.
func NewPipeline(dense DenseEmbedder, batchSize int, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		Dense:     dense,
		BatchSize: batchSize,
		logger:    logger.With("component", "embed"),
	}
}

// EmbedChunks fills DenseVector and SparseVector on every chunk. The sparse
// model is fitted over this book's chunk set alone. onBatch receives the
// running count of embedded chunks after each dense batch.
func (p *Pipeline) EmbedChunks(ctx context.Context, chunks []types.Chunk, onBatch func(done int)) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}

	model := FitBM25(texts)
	for i := range chunks {
		chunks[i].SparseVector = model.Encode(texts[i])
	}

	batch := p.BatchSize
	if batch <= 0 {
		batch = DefaultRemoteBatch
	}

	done := 0
	for start := 0; start < len(texts); start += batch {
		end := start + batch
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := p.Dense.Embed(ctx, texts[start:end])
		if err != nil {
			return fmt.Errorf("embedding batch %d-%d: %w", start, end, err)
		}
		if len(vectors) != end-start {
			return fmt.Errorf("embedding batch %d-%d: got %d vectors for %d texts", start, end, len(vectors), end-start)
		}
		for i, v := range vectors {
			chunks[start+i].DenseVector = v
		}
		done += end - start
		if onBatch != nil {
			onBatch(done)
		}
	}

	p.logger.Debug("chunks embedded", "chunks", done, "dim", p.Dense.Dim(), "vocab", model.VocabSize())
	return nil
}
