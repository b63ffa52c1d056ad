// Package endpoints implements the export service's HTTP operations, one
// endpoint per file, each doubling as a CLI command.
package endpoints

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aosman25/islam-ai/internal/catalog"
	"github.com/aosman25/islam-ai/internal/export"
	"github.com/aosman25/islam-ai/internal/svcctx"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-Id"

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the standard error body with the correlation id the
// middleware stamped on the response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{
		Error:     msg,
		RequestID: w.Header().Get(RequestIDHeader),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// pathInt64 parses an integer path value; ok is false when missing or bad.
func pathInt64(r *http.Request, name string) (int64, bool) {
	v, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	return v, err == nil
}

// queryInt parses an integer query parameter with a default.
func queryInt(r *http.Request, name string, def int) int {
	if raw := r.URL.Query().Get(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return def
}

// queryBoolPtr parses an optional boolean query parameter.
func queryBoolPtr(r *http.Request, name string) *bool {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &v
}

// queryInt64Ptr parses an optional integer query parameter.
func queryInt64Ptr(r *http.Request, name string) *int64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

// buildExportRequest hydrates a full export request from the catalogue.
func buildExportRequest(ctx context.Context, svc *svcctx.Services, bookID int64) (export.Request, error) {
	book, err := svc.Catalog.GetBook(ctx, bookID)
	if err != nil {
		return export.Request{}, err
	}
	author, err := svc.Catalog.GetAuthor(ctx, book.MainAuthorID)
	if err != nil {
		return export.Request{}, err
	}
	category, err := svc.Catalog.GetCategory(ctx, book.CategoryID)
	if err != nil {
		return export.Request{}, err
	}
	toc, err := svc.Catalog.GetTableOfContents(ctx, bookID)
	if err != nil {
		return export.Request{}, err
	}

	return export.Request{
		BookID:          book.ID,
		BookName:        book.Name,
		AuthorName:      author.Name,
		CategoryName:    category.Name,
		AuthorID:        author.ID,
		CategoryID:      category.ID,
		TableOfContents: toc,
	}, nil
}

// isNotFound reports whether the error is a catalogue miss.
func isNotFound(err error) bool {
	return errors.Is(err, catalog.ErrNotFound)
}
