// Package gateway is the RAG query service: it rewrites the user question,
// embeds it, runs hybrid retrieval and answers from the retrieved passages.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/aosman25/islam-ai/internal/embed"
	"github.com/aosman25/islam-ai/internal/rewrite"
	"github.com/aosman25/islam-ai/internal/search"
)

// QueryRewriter produces the optimized retrieval form of a raw question.
type QueryRewriter interface {
	Rewrite(ctx context.Context, query string) (*rewrite.Result, error)
}

// DenseEmbedder embeds query texts.
type DenseEmbedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// HybridSearcher runs the fused dense+sparse retrieval.
type HybridSearcher interface {
	Search(ctx context.Context, req search.Request) ([]search.Result, error)
}

// Prompt is one answer-LLM call.
type Prompt struct {
	System      string
	User        string
	Temperature *float64
	MaxTokens   *int64
}

// Answerer generates the final answer, optionally streamed.
type Answerer interface {
	Answer(ctx context.Context, p Prompt) (string, error)
	AnswerStream(ctx context.Context, p Prompt, onDelta func(delta string) error) error
}

// Source is one retrieved passage returned alongside the answer.
type Source struct {
	BookName     string  `json:"book_name,omitempty"`
	Author       string  `json:"author,omitempty"`
	Category     string  `json:"category,omitempty"`
	PartTitle    string  `json:"part_title,omitempty"`
	PageNumRange string  `json:"page_num_range,omitempty"`
	Text         string  `json:"text,omitempty"`
	Distance     float64 `json:"distance"`
}

// sourceFields is what retrieval asks the vector store to return.
var sourceFields = []string{"book_name", "author", "category", "part_title", "page_num_range", "text"}

// Service ties rewrite, embedding, retrieval and the answer model together.
type Service struct {
	rewriter QueryRewriter
	embedder DenseEmbedder
	searcher HybridSearcher
	answerer Answerer
	logger   *slog.Logger
}

// NewService builds the gateway service from wired dependencies.
func NewService(rw QueryRewriter, emb DenseEmbedder, s HybridSearcher, a Answerer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		rewriter: rw,
		embedder: emb,
		searcher: s,
		answerer: a,
		logger:   logger.With("component", "gateway"),
	}
}

// retrieval is everything gathered before the answer model runs.
type retrieval struct {
	rewritten *rewrite.Result
	sources   []Source
}

// retrieve rewrites the question, embeds the optimized query and every
// sub-query, and runs one hybrid search over all of them.
func (s *Service) retrieve(ctx context.Context, query string, topK int, reranker search.Reranker, params search.Params) (*retrieval, error) {
	rewritten, err := s.rewriter.Rewrite(ctx, query)
	if err != nil {
		return nil, err
	}

	queries := append([]string{rewritten.OptimizedQuery}, rewritten.SubQueries...)

	var dense [][]float32
	sparse := make([]map[uint32]float32, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		dense, err = s.embedder.Embed(gctx, queries)
		return err
	})
	g.Go(func() error {
		for i, q := range queries {
			sparse[i] = embed.EncodeQuery(q)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", err)
	}
	if len(dense) != len(queries) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d queries", len(dense), len(queries))
	}

	embeddings := make([]search.QueryEmbedding, len(queries))
	for i := range queries {
		embeddings[i] = search.QueryEmbedding{Dense: dense[i], Sparse: sparse[i]}
	}

	results, err := s.searcher.Search(ctx, search.Request{
		Embeddings:   embeddings,
		K:            topK,
		OutputFields: sourceFields,
		Reranker:     reranker,
		Params:       params,
	})
	if err != nil {
		return nil, err
	}

	sources := make([]Source, len(results))
	for i, r := range results {
		sources[i] = Source{
			BookName:     stringField(r.Fields, "book_name"),
			Author:       stringField(r.Fields, "author"),
			Category:     stringField(r.Fields, "category"),
			PartTitle:    stringField(r.Fields, "part_title"),
			PageNumRange: stringField(r.Fields, "page_num_range"),
			Text:         stringField(r.Fields, "text"),
			Distance:     r.Distance,
		}
	}

	s.logger.Debug("retrieval done", "queries", len(queries), "sources", len(sources))
	return &retrieval{rewritten: rewritten, sources: sources}, nil
}

func stringField(fields map[string]any, name string) string {
	v, _ := fields[name].(string)
	return v
}

// buildPrompt lays the retrieved passages out as numbered context blocks.
func buildPrompt(question string, sources []Source, temperature *float64, maxTokens *int64) Prompt {
	var b strings.Builder
	b.WriteString("النصوص المسترجعة:\n\n")
	for i, src := range sources {
		fmt.Fprintf(&b, "[%d] %s", i+1, src.BookName)
		if src.Author != "" {
			fmt.Fprintf(&b, "، %s", src.Author)
		}
		if src.PartTitle != "" {
			fmt.Fprintf(&b, " (%s)", src.PartTitle)
		}
		b.WriteString(":\n")
		b.WriteString(src.Text)
		b.WriteString("\n\n")
	}
	b.WriteString("السؤال: ")
	b.WriteString(question)

	return Prompt{
		System: "أنت باحث في التراث الإسلامي. أجب عن السؤال اعتمادًا على النصوص " +
			"المسترجعة فقط، واذكر رقم المصدر بين قوسين عند الاستشهاد. " +
			"إذا لم تكف النصوص للإجابة فقل ذلك صراحة.",
		User:        b.String(),
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
}
