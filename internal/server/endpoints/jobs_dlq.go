package endpoints

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/aosman25/islam-ai/internal/api"
	"github.com/aosman25/islam-ai/internal/jobs"
	"github.com/aosman25/islam-ai/internal/svcctx"
)

// DLQListResponse is a page of dead-letter entries.
type DLQListResponse struct {
	Entries []jobs.DLQEntry `json:"entries"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// DLQListEndpoint handles GET /jobs/dlq.
type DLQListEndpoint struct{}

func (e *DLQListEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/jobs/dlq", e.handler
}

func (e *DLQListEndpoint) RequiresInit() bool { return true }

func (e *DLQListEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	svc := svcctx.ServicesFrom(r.Context())

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	entries, total := svc.JobManager.DLQ(limit, offset)
	writeJSON(w, http.StatusOK, DLQListResponse{Entries: entries, Total: total, Limit: limit, Offset: offset})
}

func (e *DLQListEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "dlq",
		Short: "List dead-letter entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp DLQListResponse
			if err := client.Get(cmd.Context(), "/jobs/dlq", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// DLQRetryEndpoint handles POST /jobs/dlq/{index}/retry: removes the entry
// and queues a fresh single-book job with the original book data.
type DLQRetryEndpoint struct{}

func (e *DLQRetryEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/jobs/dlq/{index}/retry", e.handler
}

func (e *DLQRetryEndpoint) RequiresInit() bool { return true }

func (e *DLQRetryEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	svc := svcctx.ServicesFrom(r.Context())

	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid dlq index")
		return
	}

	jobID, err := svc.JobManager.RetryDLQ(index)
	if err != nil {
		if errors.Is(err, jobs.ErrDLQIndex) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, ExportResponse{JobID: jobID})
}

func (e *DLQRetryEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "dlq-retry <index>",
		Short: "Retry a dead-letter entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ExportResponse
			if err := client.Post(cmd.Context(), "/jobs/dlq/"+args[0]+"/retry", nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// DLQClearEndpoint handles DELETE /jobs/dlq.
type DLQClearEndpoint struct{}

func (e *DLQClearEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/jobs/dlq", e.handler
}

func (e *DLQClearEndpoint) RequiresInit() bool { return true }

func (e *DLQClearEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	svc := svcctx.ServicesFrom(r.Context())
	svc.JobManager.ClearDLQ()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (e *DLQClearEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "dlq-clear",
		Short: "Drop all dead-letter entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			return client.Delete(cmd.Context(), "/jobs/dlq", nil)
		},
	}
}
