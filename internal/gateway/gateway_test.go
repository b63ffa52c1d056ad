package gateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aosman25/islam-ai/internal/rewrite"
	"github.com/aosman25/islam-ai/internal/search"
)

type fakeRewriter struct {
	calls  int
	result rewrite.Result
}

func (f *fakeRewriter) Rewrite(ctx context.Context, query string) (*rewrite.Result, error) {
	f.calls++
	res := f.result
	return &res, nil
}

type fakeEmbedder struct {
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

type fakeSearcher struct {
	calls   int
	lastReq search.Request
	results []search.Result
}

func (f *fakeSearcher) Search(ctx context.Context, req search.Request) ([]search.Result, error) {
	f.calls++
	f.lastReq = req
	return f.results, nil
}

type fakeAnswerer struct {
	answer string
	deltas []string
}

func (f *fakeAnswerer) Answer(ctx context.Context, p Prompt) (string, error) {
	return f.answer, nil
}

func (f *fakeAnswerer) AnswerStream(ctx context.Context, p Prompt, onDelta func(string) error) error {
	for _, d := range f.deltas {
		if err := onDelta(d); err != nil {
			return err
		}
	}
	return nil
}

func newTestServer(t *testing.T) (*Server, *fakeRewriter, *fakeSearcher, *fakeAnswerer) {
	t.Helper()
	rw := &fakeRewriter{result: rewrite.Result{
		OptimizedQuery: "حكم صلاة المسافر",
		SubQueries:     []string{"مدة القصر في السفر"},
	}}
	searcher := &fakeSearcher{results: []search.Result{
		{ID: 1, Distance: 0.9, Fields: map[string]any{
			"book_name": "المغني", "author": "ابن قدامة", "text": "نص في صلاة المسافر",
		}},
	}}
	ans := &fakeAnswerer{answer: "الجواب كاملًا", deltas: []string{"الجواب", " كاملًا"}}
	svc := NewService(rw, &fakeEmbedder{}, searcher, ans, nil)
	return NewServer(svc, ServerConfig{}), rw, searcher, ans
}

func postQuery(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func TestQueryStreamFraming(t *testing.T) {
	srv, _, searcher, _ := newTestServer(t)

	rec := postQuery(t, srv, `{"query":"ما حكم صلاة المسافر؟","top_k":5,"stream":true,"reranker":"Weighted","reranker_params":[0.5,0.5]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("content type = %q", ct)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Fatal("missing request id header")
	}

	var events []streamEvent
	scanner := bufio.NewScanner(bytes.NewReader(rec.Body.Bytes()))
	for scanner.Scan() {
		var ev streamEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("bad NDJSON line %q: %v", scanner.Text(), err)
		}
		events = append(events, ev)
	}

	if len(events) != 4 {
		t.Fatalf("got %d events, want metadata + 2 content + done", len(events))
	}
	meta := events[0]
	if meta.Type != "metadata" || meta.OptimizedQuery != "حكم صلاة المسافر" || len(meta.Sources) != 1 {
		t.Fatalf("bad metadata frame: %+v", meta)
	}
	if meta.RequestID == "" {
		t.Fatal("metadata frame missing request id")
	}
	if events[1].Type != "content" || events[1].Delta != "الجواب" {
		t.Fatalf("bad first content frame: %+v", events[1])
	}
	if events[3].Type != "done" {
		t.Fatalf("last frame = %+v, want done", events[3])
	}

	if searcher.lastReq.Reranker != search.RerankerWeighted {
		t.Fatalf("reranker = %q", searcher.lastReq.Reranker)
	}
	if got := len(searcher.lastReq.Embeddings); got != 2 {
		t.Fatalf("embeddings = %d, want optimized + 1 subquery", got)
	}
}

func TestQueryNonStream(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	rec := postQuery(t, srv, `{"query":"ما حكم صلاة المسافر؟","reranker":"RRF","reranker_params":[60]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp QueryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Response != "الجواب كاملًا" {
		t.Fatalf("response = %q", resp.Response)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].BookName != "المغني" {
		t.Fatalf("sources = %+v", resp.Sources)
	}
	if resp.RequestID == "" {
		t.Fatal("missing request id")
	}
}

func TestQueryRerankerShapeMismatch(t *testing.T) {
	srv, rw, searcher, _ := newTestServer(t)

	rec := postQuery(t, srv, `{"query":"سؤال","reranker":"RRF","reranker_params":[0.5,0.5]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if rw.calls != 0 || searcher.calls != 0 {
		t.Fatalf("upstream called on invalid request: rewrite=%d search=%d", rw.calls, searcher.calls)
	}

	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Error == "" || body.Timestamp == "" {
		t.Fatalf("bad error body: %+v", body)
	}
}

func TestQueryMissingQuery(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	rec := postQuery(t, srv, `{"stream":true}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestResolveReranker(t *testing.T) {
	cases := []struct {
		name    string
		params  []float64
		want    search.Reranker
		wantErr bool
	}{
		{"", nil, search.RerankerRRF, false},
		{"RRF", []float64{60}, search.RerankerRRF, false},
		{"Weighted", []float64{0.3, 0.7}, search.RerankerWeighted, false},
		{"RRF", nil, "", true},
		{"Weighted", []float64{0.5}, "", true},
		{"cosine", []float64{1}, "", true},
	}
	for _, tc := range cases {
		got, _, err := resolveReranker(tc.name, tc.params)
		if tc.wantErr != (err != nil) {
			t.Fatalf("%s %v: err = %v", tc.name, tc.params, err)
		}
		if err == nil && got != tc.want {
			t.Fatalf("%s: reranker = %q, want %q", tc.name, got, tc.want)
		}
	}
}
