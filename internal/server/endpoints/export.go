package endpoints

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/aosman25/islam-ai/internal/api"
	"github.com/aosman25/islam-ai/internal/export"
	"github.com/aosman25/islam-ai/internal/svcctx"
)

// ExportRequest is the bulk export body.
type ExportRequest struct {
	BookIDs []int64 `json:"book_ids"`
}

// ExportResponse acknowledges an accepted export job.
type ExportResponse struct {
	JobID string `json:"job_id"`
}

// ExportBookEndpoint handles POST /export/books/{id}: queues a single-book
// export and returns the job id immediately.
type ExportBookEndpoint struct{}

func (e *ExportBookEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/export/books/{id}", e.handler
}

func (e *ExportBookEndpoint) RequiresInit() bool { return true }

func (e *ExportBookEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	svc := svcctx.ServicesFrom(r.Context())

	id, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	req, err := buildExportRequest(r.Context(), svc, id)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	jobID, err := svc.JobManager.Submit([]export.Request{req})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, ExportResponse{JobID: jobID})
}

func (e *ExportBookEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "export-book <id>",
		Short: "Queue a single-book export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ExportResponse
			if err := client.Post(cmd.Context(), "/export/books/"+args[0], nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// ExportBooksEndpoint handles POST /export/books: queues a batch export. All
// books are resolved against the catalogue before the job is accepted, so an
// unknown id rejects the whole batch.
type ExportBooksEndpoint struct{}

func (e *ExportBooksEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/export/books", e.handler
}

func (e *ExportBooksEndpoint) RequiresInit() bool { return true }

func (e *ExportBooksEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	svc := svcctx.ServicesFrom(r.Context())

	var body ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(body.BookIDs) == 0 {
		writeError(w, http.StatusBadRequest, "book_ids must not be empty")
		return
	}

	reqs := make([]export.Request, 0, len(body.BookIDs))
	for _, id := range body.BookIDs {
		req, err := buildExportRequest(r.Context(), svc, id)
		if err != nil {
			if isNotFound(err) {
				writeError(w, http.StatusNotFound, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		reqs = append(reqs, req)
	}

	jobID, err := svc.JobManager.Submit(reqs)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, ExportResponse{JobID: jobID})
}

func (e *ExportBooksEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "export-books <id>...",
		Short: "Queue a batch export",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, len(args))
			for i, a := range args {
				v, err := strconv.ParseInt(a, 10, 64)
				if err != nil {
					return err
				}
				ids[i] = v
			}
			client := api.NewClient(getServerURL())
			var resp ExportResponse
			if err := client.Post(cmd.Context(), "/export/books", ExportRequest{BookIDs: ids}, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
