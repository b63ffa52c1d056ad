package search

import (
	"context"
	"errors"
	"testing"

	"github.com/aosman25/islam-ai/internal/vecstore"
)

func intp(n int) *int           { return &n }
func floatp(f float64) *float64 { return &f }

type fakeVec struct {
	dense  []vecstore.Hit
	sparse []vecstore.Hit
}

func (f *fakeVec) SearchDense(_ context.Context, _ []float32, _ string, _ int, _ []string) ([]vecstore.Hit, error) {
	return f.dense, nil
}

func (f *fakeVec) SearchSparse(_ context.Context, _ map[uint32]float32, _ string, _ int, _ []string) ([]vecstore.Hit, error) {
	return f.sparse, nil
}

func baseRequest(r Reranker, p Params) Request {
	return Request{
		Embeddings: []QueryEmbedding{{Dense: []float32{1}, Sparse: map[uint32]float32{0: 1}}},
		K:          10,
		Reranker:   r,
		Params:     p,
	}
}

func TestRRFFusionRanksConsensusFirst(t *testing.T) {
	// Document 2 appears in both rankings; 1 and 3 in one each.
	vec := &fakeVec{
		dense:  []vecstore.Hit{{ID: 1, Score: 0.9}, {ID: 2, Score: 0.8}},
		sparse: []vecstore.Hit{{ID: 2, Score: 5.0}, {ID: 3, Score: 4.0}},
	}
	s := New(vec, nil, nil)

	got, err := s.Search(context.Background(), baseRequest(RerankerRRF, Params{KRRF: intp(60)}))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d results", len(got))
	}
	if got[0].ID != 2 {
		t.Errorf("consensus document not first: %+v", got)
	}
	// 1/(60+1) + 1/(60+1) for doc 2.
	want := 2.0 / 61.0
	if diff := got[0].Distance - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("rrf score = %v, want %v", got[0].Distance, want)
	}
}

func TestWeightedFusionCombinesScores(t *testing.T) {
	vec := &fakeVec{
		dense:  []vecstore.Hit{{ID: 1, Score: 0.5}},
		sparse: []vecstore.Hit{{ID: 1, Score: 2.0}, {ID: 2, Score: 3.0}},
	}
	s := New(vec, nil, nil)

	got, err := s.Search(context.Background(),
		baseRequest(RerankerWeighted, Params{WDense: floatp(1), WSparse: floatp(0.5)}))
	if err != nil {
		t.Fatal(err)
	}
	// Doc 1: 1*0.5 + 0.5*2 = 1.5; doc 2: 0.5*3 = 1.5. Tie breaks on id.
	if got[0].ID != 1 || got[1].ID != 2 {
		t.Errorf("order = %+v", got)
	}
	if got[0].Distance != 1.5 {
		t.Errorf("score = %v", got[0].Distance)
	}
}

func TestSearchTruncatesToK(t *testing.T) {
	vec := &fakeVec{
		dense: []vecstore.Hit{{ID: 1, Score: 3}, {ID: 2, Score: 2}, {ID: 3, Score: 1}},
	}
	s := New(vec, nil, nil)

	req := baseRequest(RerankerWeighted, Params{WDense: floatp(1), WSparse: floatp(0)})
	req.K = 2
	got, err := s.Search(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != 1 {
		t.Errorf("got %+v", got)
	}
}

func TestValidateRejectsBadRequests(t *testing.T) {
	s := New(&fakeVec{}, []string{"history"}, nil)

	tests := []struct {
		name string
		req  Request
	}{
		{"no embeddings", Request{K: 5, Reranker: RerankerRRF, Params: Params{KRRF: intp(60)}}},
		{"zero k", func() Request { r := baseRequest(RerankerRRF, Params{KRRF: intp(60)}); r.K = 0; return r }()},
		{"unknown partition", func() Request {
			r := baseRequest(RerankerRRF, Params{KRRF: intp(60)})
			r.Partition = "nope"
			return r
		}()},
		{"unknown field", func() Request {
			r := baseRequest(RerankerRRF, Params{KRRF: intp(60)})
			r.OutputFields = []string{"password"}
			return r
		}()},
		{"no reranker", baseRequest("", Params{})},
		{"rrf missing k", baseRequest(RerankerRRF, Params{})},
		{"rrf k too large", baseRequest(RerankerRRF, Params{KRRF: intp(MaxRRFK + 1)})},
		{"rrf with weights", baseRequest(RerankerRRF, Params{KRRF: intp(60), WDense: floatp(1)})},
		{"weighted missing weights", baseRequest(RerankerWeighted, Params{WDense: floatp(1)})},
		{"weighted out of range", baseRequest(RerankerWeighted, Params{WDense: floatp(1.5), WSparse: floatp(0)})},
		{"weighted with k_rrf", baseRequest(RerankerWeighted, Params{WDense: floatp(1), WSparse: floatp(0), KRRF: intp(60)})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Search(context.Background(), tt.req)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("err = %v, want validation error", err)
			}
		})
	}
}

func TestValidPartitionAccepted(t *testing.T) {
	s := New(&fakeVec{}, []string{"history"}, nil)
	req := baseRequest(RerankerRRF, Params{KRRF: intp(60)})
	req.Partition = "history"
	if _, err := s.Search(context.Background(), req); err != nil {
		t.Errorf("known partition rejected: %v", err)
	}
}

func TestMultiEmbeddingKeepsBestScore(t *testing.T) {
	vec := &fakeVec{dense: []vecstore.Hit{{ID: 1, Score: 1}}}
	s := New(vec, nil, nil)

	req := baseRequest(RerankerWeighted, Params{WDense: floatp(1), WSparse: floatp(0)})
	req.Embeddings = append(req.Embeddings, req.Embeddings[0])
	got, err := s.Search(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("duplicate document not collapsed: %+v", got)
	}
	if got[0].Distance != 1 {
		t.Errorf("best score not kept: %v", got[0].Distance)
	}
}
