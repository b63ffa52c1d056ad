package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aosman25/islam-ai/internal/export"
)

const (
	// DefaultWorkers is the export pool size.
	DefaultWorkers = 3

	// DefaultQueueSize bounds the task FIFO.
	DefaultQueueSize = 10000
)

// Runner executes one book's export. Satisfied by export.Orchestrator.
type Runner interface {
	ExportBook(ctx context.Context, req export.Request, progress export.Progress) (*export.Result, error)
}

// task is one per-book unit of work pulled by the pool.
type task struct {
	jobID string
	req   export.Request
}

// Manager owns all mutable job state under one coarse lock. Workers pull
// tasks from a shared buffered FIFO channel.
type Manager struct {
	runner  Runner
	workers int
	queue   chan task
	logger  *slog.Logger

	mu    sync.Mutex
	jobs  map[string]*job
	order []string
	dlq   []DLQEntry
}

// Config configures the manager.
type Config struct {
	Runner    Runner
	Workers   int
	QueueSize int
	Logger    *slog.Logger
}

// NewManager creates a manager. Call Start to launch the pool.
func NewManager(cfg Config) *Manager {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		runner:  cfg.Runner,
		workers: workers,
		queue:   make(chan task, queueSize),
		logger:  logger.With("component", "jobs", "workers", workers),
		jobs:    make(map[string]*job),
	}
}

// Start launches the worker goroutines. Returns immediately; workers stop
// when ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	for i := 0; i < m.workers; i++ {
		go m.worker(ctx, i)
	}
	m.logger.Info("job pool started")
}

func (m *Manager) worker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-m.queue:
			m.runTask(ctx, t)
			m.logger.Debug("task finished", "worker_id", id, "job_id", t.jobID, "book_id", t.req.BookID)
		}
	}
}

// Submit allocates a job with every book pending and enqueues its tasks.
func (m *Manager) Submit(books []export.Request) (string, error) {
	if len(books) == 0 {
		return "", fmt.Errorf("job has no books")
	}

	now := time.Now().UTC()
	j := &job{
		Job: Job{
			ID:        uuid.NewString(),
			Status:    StatusPending,
			Books:     make(map[int64]*BookResult, len(books)),
			CreatedAt: now,
			UpdatedAt: now,
		},
		requests:  make(map[int64]export.Request, len(books)),
		remaining: len(books),
	}
	for _, req := range books {
		j.Books[req.BookID] = &BookResult{
			BookID:   req.BookID,
			BookName: req.BookName,
			Status:   StatusPending,
		}
		j.requests[req.BookID] = req
	}

	// The capacity check and the sends happen under the same lock, and only
	// Submit sends on the queue, so the sends cannot block.
	m.mu.Lock()
	if len(books) > cap(m.queue)-len(m.queue) {
		m.mu.Unlock()
		return "", fmt.Errorf("job queue full")
	}
	m.jobs[j.ID] = j
	m.order = append(m.order, j.ID)
	for _, req := range books {
		m.queue <- task{jobID: j.ID, req: req}
	}
	m.mu.Unlock()

	m.logger.Info("job submitted", "job_id", j.ID, "books", len(books))
	return j.ID, nil
}

// runTask executes one book export and records the outcome.
func (m *Manager) runTask(ctx context.Context, t task) {
	m.beginBook(t.jobID, t.req.BookID)

	progress := export.Progress{
		Step: func(name string) {
			m.updateBook(t.jobID, t.req.BookID, func(b *BookResult) { b.CurrentStep = name })
		},
		ChunkingDone: func(n int) {
			m.updateBook(t.jobID, t.req.BookID, func(b *BookResult) { b.TotalChunks = n })
		},
		EmbeddingProgress: func(n int) {
			m.updateBook(t.jobID, t.req.BookID, func(b *BookResult) { b.ChunksEmbedded = n })
		},
	}

	res, err := m.runner.ExportBook(ctx, t.req, progress)
	m.finishBook(t.jobID, t.req.BookID, res, err)
}

func (m *Manager) beginBook(jobID string, bookID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return
	}
	now := time.Now().UTC()
	j.Status = StatusInProgress
	j.UpdatedAt = now
	if b := j.Books[bookID]; b != nil {
		b.Status = StatusInProgress
		b.StartedAt = &now
	}
}

func (m *Manager) updateBook(jobID string, bookID int64, fn func(*BookResult)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return
	}
	if b := j.Books[bookID]; b != nil {
		fn(b)
		j.UpdatedAt = time.Now().UTC()
	}
}

func (m *Manager) finishBook(jobID string, bookID int64, res *export.Result, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return
	}
	now := time.Now().UTC()
	b := j.Books[bookID]
	if b == nil {
		return
	}

	b.CompletedAt = &now
	if err != nil {
		b.Status = StatusFailed
		b.Error = err.Error()
		m.dlq = append(m.dlq, DLQEntry{JobID: jobID, BookID: bookID, Error: err.Error(), FailedAt: now})
		m.logger.Warn("book export failed", "job_id", jobID, "book_id", bookID, "error", err)
	} else {
		b.Status = StatusCompleted
		b.RawFiles = res.RawFiles
		b.MetadataURL = res.MetadataURL
	}

	j.remaining--
	j.UpdatedAt = now
	if j.remaining == 0 {
		j.Status = jobOutcome(j)
		m.logger.Info("job finished", "job_id", jobID, "status", j.Status)
	}
}

// jobOutcome folds per-book outcomes into the job status.
func jobOutcome(j *job) Status {
	completed, failed := 0, 0
	for _, b := range j.Books {
		switch b.Status {
		case StatusCompleted:
			completed++
		case StatusFailed:
			failed++
		}
	}
	switch {
	case failed == 0:
		return StatusCompleted
	case completed == 0:
		return StatusFailed
	default:
		return StatusCompletedWithErrors
	}
}

// GetJob returns a deep-copied snapshot, or false when unknown.
func (m *Manager) GetJob(jobID string) (*Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return nil, false
	}
	return j.snapshot(time.Now().UTC()), true
}

// ListJobs returns snapshots newest-first with an optional status filter.
func (m *Manager) ListJobs(status Status, limit, offset int) ([]*Job, int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	var all []*Job
	for i := len(m.order) - 1; i >= 0; i-- {
		j := m.jobs[m.order[i]]
		if status != "" && j.Status != status {
			continue
		}
		all = append(all, j.snapshot(now))
	}
	sort.SliceStable(all, func(a, b int) bool { return all[a].CreatedAt.After(all[b].CreatedAt) })

	total := len(all)
	if offset >= total {
		return nil, total
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return all[offset:end], total
}

// DLQ returns a page of dead-letter entries and the total count.
func (m *Manager) DLQ(limit, offset int) ([]DLQEntry, int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := len(m.dlq)
	if offset >= total {
		return nil, total
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	out := make([]DLQEntry, end-offset)
	copy(out, m.dlq[offset:end])
	return out, total
}

// RetryDLQ removes the entry at index and submits a new single-book job with
// the original book data.
func (m *Manager) RetryDLQ(index int) (string, error) {
	m.mu.Lock()
	if index < 0 || index >= len(m.dlq) {
		m.mu.Unlock()
		return "", fmt.Errorf("%w: %d", ErrDLQIndex, index)
	}
	entry := m.dlq[index]
	m.dlq = append(m.dlq[:index], m.dlq[index+1:]...)

	req := export.Request{BookID: entry.BookID}
	if j, ok := m.jobs[entry.JobID]; ok {
		if orig, ok := j.requests[entry.BookID]; ok {
			req = orig
		}
	}
	m.mu.Unlock()

	return m.Submit([]export.Request{req})
}

// ClearDLQ drops all dead-letter entries.
func (m *Manager) ClearDLQ() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dlq = nil
}
