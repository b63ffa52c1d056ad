// Package jobs schedules multi-book exports on a bounded worker pool and
// tracks per-book progress, with a dead-letter queue for terminal failures.
package jobs

import (
	"errors"
	"time"

	"github.com/aosman25/islam-ai/internal/export"
)

// ErrDLQIndex is returned when a dead-letter index does not exist.
var ErrDLQIndex = errors.New("dlq index out of range")

// Status is a job or per-book lifecycle state.
type Status string

const (
	StatusPending             Status = "pending"
	StatusInProgress          Status = "in_progress"
	StatusCompleted           Status = "completed"
	StatusCompletedWithErrors Status = "completed_with_errors"
	StatusFailed              Status = "failed"
)

// BookResult tracks one book's progress inside a job.
type BookResult struct {
	BookID         int64      `json:"book_id"`
	BookName       string     `json:"book_name"`
	Status         Status     `json:"status"`
	CurrentStep    string     `json:"current_step,omitempty"`
	TotalChunks    int        `json:"total_chunks,omitempty"`
	ChunksEmbedded int        `json:"chunks_embedded,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	ElapsedSeconds float64    `json:"elapsed_seconds"`
	Error          string     `json:"error,omitempty"`
	RawFiles       int        `json:"raw_files_count,omitempty"`
	MetadataURL    string     `json:"metadata_url,omitempty"`
}

// Job is the client-visible job record. Snapshots returned by the manager
// are deep copies; mutating them does not affect the live record.
type Job struct {
	ID        string                `json:"job_id"`
	Status    Status                `json:"status"`
	Books     map[int64]*BookResult `json:"books"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// DLQEntry records one terminal per-book failure. The queue survives across
// jobs but not across process restarts.
type DLQEntry struct {
	JobID    string    `json:"job_id"`
	BookID   int64     `json:"book_id"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

// job is the internal record: the visible Job plus the original requests
// kept for DLQ retry re-hydration.
type job struct {
	Job
	requests  map[int64]export.Request
	remaining int
}

// snapshot deep-copies the visible record and computes elapsed seconds.
func (j *job) snapshot(now time.Time) *Job {
	out := &Job{
		ID:        j.ID,
		Status:    j.Status,
		Books:     make(map[int64]*BookResult, len(j.Books)),
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
	for id, b := range j.Books {
		cp := *b
		switch {
		case b.StartedAt != nil && b.CompletedAt != nil:
			cp.ElapsedSeconds = b.CompletedAt.Sub(*b.StartedAt).Seconds()
		case b.StartedAt != nil:
			cp.ElapsedSeconds = now.Sub(*b.StartedAt).Seconds()
		}
		out.Books[id] = &cp
	}
	return out
}
