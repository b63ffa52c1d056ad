// Package search runs dense+sparse hybrid retrieval against the vector store
// and fuses the two rankings with RRF or weighted scoring.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/aosman25/islam-ai/internal/vecstore"
)

// ErrValidation marks malformed requests; the HTTP layer maps it to 400.
var ErrValidation = errors.New("invalid search request")

// Reranker names the fusion strategy.
type Reranker string

const (
	RerankerRRF      Reranker = "rrf"
	RerankerWeighted Reranker = "weighted"

	// MaxRRFK is the exclusive upper bound pgvector-era clients used for the
	// RRF smoothing constant.
	MaxRRFK = 16384
)

// Params carries the reranker parameters. Exactly the fields for the
// selected reranker must be set.
type Params struct {
	KRRF    *int     `json:"k_rrf,omitempty"`
	WDense  *float64 `json:"w_dense,omitempty"`
	WSparse *float64 `json:"w_sparse,omitempty"`
}

// QueryEmbedding is one query's dense and sparse form.
type QueryEmbedding struct {
	Dense  []float32
	Sparse map[uint32]float32
}

// Request is a hybrid search over one partition.
type Request struct {
	Embeddings   []QueryEmbedding
	Partition    string
	K            int
	OutputFields []string
	Reranker     Reranker
	Params       Params
}

// Result is one fused hit.
type Result struct {
	ID       int64          `json:"id"`
	Distance float64        `json:"distance"`
	Fields   map[string]any `json:"fields,omitempty"`
}

// VectorSearcher is the vector store subset the searcher needs.
type VectorSearcher interface {
	SearchDense(ctx context.Context, vector []float32, partition string, limit int, fields []string) ([]vecstore.Hit, error)
	SearchSparse(ctx context.Context, vector map[uint32]float32, partition string, limit int, fields []string) ([]vecstore.Hit, error)
}

// Searcher validates requests against the closed partition and field sets
// and runs the two ANN searches per embedding.
type Searcher struct {
	vec        VectorSearcher
	partitions map[string]bool
	logger     *slog.Logger
}

// New builds a searcher. partitions is the closed set fetched at startup.
func New(vec VectorSearcher, partitions []string, logger *slog.Logger) *Searcher {
	if logger == nil {
		logger = slog.Default()
	}
	set := map[string]bool{vecstore.DefaultPartition: true}
	for _, p := range partitions {
		set[p] = true
	}
	return &Searcher{vec: vec, partitions: set, logger: logger.With("component", "search")}
}

// validate checks the request against the closed sets and the reranker
// parameter shapes.
func (s *Searcher) validate(req *Request) error {
	if len(req.Embeddings) == 0 {
		return fmt.Errorf("%w: no embeddings", ErrValidation)
	}
	if req.K <= 0 {
		return fmt.Errorf("%w: k must be positive", ErrValidation)
	}
	if req.Partition != "" && !s.partitions[req.Partition] {
		return fmt.Errorf("%w: unknown partition %q", ErrValidation, req.Partition)
	}
	for _, f := range req.OutputFields {
		if !vecstore.IsOutputField(f) {
			return fmt.Errorf("%w: unknown output field %q", ErrValidation, f)
		}
	}

	switch req.Reranker {
	case RerankerRRF:
		if req.Params.WDense != nil || req.Params.WSparse != nil {
			return fmt.Errorf("%w: rrf reranker does not take weights", ErrValidation)
		}
		if req.Params.KRRF == nil {
			return fmt.Errorf("%w: rrf reranker requires k_rrf", ErrValidation)
		}
		if k := *req.Params.KRRF; k <= 0 || k > MaxRRFK {
			return fmt.Errorf("%w: k_rrf must be in (0, %d]", ErrValidation, MaxRRFK)
		}
	case RerankerWeighted:
		if req.Params.KRRF != nil {
			return fmt.Errorf("%w: weighted reranker does not take k_rrf", ErrValidation)
		}
		if req.Params.WDense == nil || req.Params.WSparse == nil {
			return fmt.Errorf("%w: weighted reranker requires w_dense and w_sparse", ErrValidation)
		}
		for _, w := range []float64{*req.Params.WDense, *req.Params.WSparse} {
			if w < 0 || w > 1 {
				return fmt.Errorf("%w: weights must be in [0, 1]", ErrValidation)
			}
		}
	default:
		return fmt.Errorf("%w: unknown reranker %q", ErrValidation, req.Reranker)
	}
	return nil
}

// Search runs the hybrid retrieval and returns the fused top K. With several
// embeddings a document keeps its best fused score.
func (s *Searcher) Search(ctx context.Context, req Request) ([]Result, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}

	var mu sync.Mutex
	best := make(map[int64]*Result)

	g, gctx := errgroup.WithContext(ctx)
	for _, emb := range req.Embeddings {
		g.Go(func() error {
			var dense, sparse []vecstore.Hit

			eg, ectx := errgroup.WithContext(gctx)
			eg.Go(func() error {
				var err error
				dense, err = s.vec.SearchDense(ectx, emb.Dense, req.Partition, req.K, req.OutputFields)
				return err
			})
			eg.Go(func() error {
				var err error
				sparse, err = s.vec.SearchSparse(ectx, emb.Sparse, req.Partition, req.K, req.OutputFields)
				return err
			})
			if err := eg.Wait(); err != nil {
				return err
			}

			var ranked []fused
			switch req.Reranker {
			case RerankerRRF:
				ranked = rrfFuse(dense, sparse, *req.Params.KRRF)
			case RerankerWeighted:
				ranked = weightedFuse(dense, sparse, *req.Params.WDense, *req.Params.WSparse)
			}

			mu.Lock()
			defer mu.Unlock()
			for _, f := range ranked {
				if cur, ok := best[f.id]; !ok || f.score > cur.Distance {
					best[f.id] = &Result{ID: f.id, Distance: f.score, Fields: f.fields}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("hybrid search failed: %w", err)
	}

	out := make([]Result, 0, len(best))
	for _, r := range best {
		out = append(out, *r)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Distance != out[b].Distance {
			return out[a].Distance > out[b].Distance
		}
		return out[a].ID < out[b].ID
	})
	if len(out) > req.K {
		out = out[:req.K]
	}

	s.logger.Debug("hybrid search done", "embeddings", len(req.Embeddings),
		"k", req.K, "results", len(out), "reranker", req.Reranker)
	return out, nil
}
