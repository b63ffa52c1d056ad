package endpoints

import (
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/aosman25/islam-ai/internal/api"
	"github.com/aosman25/islam-ai/internal/jobs"
	"github.com/aosman25/islam-ai/internal/svcctx"
)

// JobsListResponse is a page of job snapshots.
type JobsListResponse struct {
	Jobs   []*jobs.Job `json:"jobs"`
	Total  int         `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// JobsListEndpoint handles GET /jobs.
type JobsListEndpoint struct{}

func (e *JobsListEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/jobs", e.handler
}

func (e *JobsListEndpoint) RequiresInit() bool { return true }

func (e *JobsListEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	svc := svcctx.ServicesFrom(r.Context())

	status := jobs.Status(r.URL.Query().Get("status"))
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	page, total := svc.JobManager.ListJobs(status, limit, offset)
	writeJSON(w, http.StatusOK, JobsListResponse{Jobs: page, Total: total, Limit: limit, Offset: offset})
}

func (e *JobsListEndpoint) Command(getServerURL func() string) *cobra.Command {
	var status string
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List export jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			path := "/jobs?limit=" + strconv.Itoa(limit) + "&offset=" + strconv.Itoa(offset)
			if status != "" {
				path += "&status=" + status
			}
			var resp JobsListResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by job status")
	cmd.Flags().IntVar(&limit, "limit", 50, "page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "page offset")
	return cmd
}

// JobGetEndpoint handles GET /jobs/{id}.
type JobGetEndpoint struct{}

func (e *JobGetEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/jobs/{id}", e.handler
}

func (e *JobGetEndpoint) RequiresInit() bool { return true }

func (e *JobGetEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	svc := svcctx.ServicesFrom(r.Context())

	id := r.PathValue("id")
	job, ok := svc.JobManager.GetJob(id)
	if !ok {
		writeError(w, http.StatusNotFound, "job "+id+" not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (e *JobGetEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "job <id>",
		Short: "Show one export job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp jobs.Job
			if err := client.Get(cmd.Context(), "/jobs/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
