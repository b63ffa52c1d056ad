package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aosman25/islam-ai/internal/catalog"
	"github.com/aosman25/islam-ai/internal/export"
	"github.com/aosman25/islam-ai/internal/jobs"
	"github.com/aosman25/islam-ai/internal/server/endpoints"
	"github.com/aosman25/islam-ai/internal/svcctx"
)

type noopRunner struct{}

func (noopRunner) ExportBook(ctx context.Context, req export.Request, progress export.Progress) (*export.Result, error) {
	return &export.Result{}, nil
}

// newTestServer wires a server around an unstarted job manager. The catalogue
// handle is lazy so pointing it at a missing file is fine for routing tests.
func newTestServer(t *testing.T) (*Server, *jobs.Manager) {
	t.Helper()

	cat, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { cat.Close() })

	jm := jobs.NewManager(jobs.Config{Runner: noopRunner{}})
	srv, err := New(Config{
		Services: &svcctx.Services{
			Catalog:      cat,
			Orchestrator: export.New(nil, nil, nil, nil, nil, nil, "", nil),
			JobManager:   jm,
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return srv, jm
}

func do(t *testing.T, srv *Server, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthCarriesRequestID(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get(endpoints.RequestIDHeader) == "" {
		t.Fatal("missing request id header")
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(endpoints.RequestIDHeader, "caller-supplied")
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	if got := rec.Header().Get(endpoints.RequestIDHeader); got != "caller-supplied" {
		t.Fatalf("request id = %q", got)
	}
}

func TestUninitializedServicesReturn503(t *testing.T) {
	jm := jobs.NewManager(jobs.Config{Runner: noopRunner{}})
	srv, err := New(Config{Services: &svcctx.Services{JobManager: jm}})
	if err != nil {
		t.Fatal(err)
	}

	rec := do(t, srv, http.MethodGet, "/books", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestJobRoutes(t *testing.T) {
	srv, jm := newTestServer(t)

	jobID, err := jm.Submit([]export.Request{{BookID: 7, BookName: "كتاب"}})
	if err != nil {
		t.Fatal(err)
	}

	rec := do(t, srv, http.MethodGet, "/jobs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list endpoints.JobsListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if list.Total != 1 || len(list.Jobs) != 1 || list.Jobs[0].ID != jobID {
		t.Fatalf("list = %+v", list)
	}

	rec = do(t, srv, http.MethodGet, "/jobs/"+jobID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = do(t, srv, http.MethodGet, "/jobs/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing job status = %d, want 404", rec.Code)
	}
	var errBody endpoints.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &errBody); err != nil {
		t.Fatal(err)
	}
	if errBody.Error == "" || errBody.RequestID == "" || errBody.Timestamp == "" {
		t.Fatalf("error body = %+v", errBody)
	}
}

func TestDLQRoutes(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/jobs/dlq", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("dlq list status = %d", rec.Code)
	}
	var list endpoints.DLQListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if list.Total != 0 {
		t.Fatalf("total = %d", list.Total)
	}

	rec = do(t, srv, http.MethodPost, "/jobs/dlq/0/retry", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("retry status = %d, want 404", rec.Code)
	}

	rec = do(t, srv, http.MethodDelete, "/jobs/dlq", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("clear status = %d", rec.Code)
	}
}

func TestBulkDeleteValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodDelete, "/books", `{"book_ids":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestExportValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/export/books", `{"book_ids":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	rec = do(t, srv, http.MethodPost, "/export/books/abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id status = %d, want 400", rec.Code)
	}
}
