package jobs

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aosman25/islam-ai/internal/export"
)

// fakeRunner completes instantly, failing the book ids listed in fail.
type fakeRunner struct {
	mu   sync.Mutex
	fail map[int64]bool
	runs []int64
}

func (f *fakeRunner) ExportBook(_ context.Context, req export.Request, progress export.Progress) (*export.Result, error) {
	f.mu.Lock()
	f.runs = append(f.runs, req.BookID)
	f.mu.Unlock()

	progress.Step("exporting")
	progress.Step("chunking")
	if progress.ChunkingDone != nil {
		progress.ChunkingDone(4)
	}
	progress.Step("embedding")
	if progress.EmbeddingProgress != nil {
		progress.EmbeddingProgress(4)
	}

	if f.fail[req.BookID] {
		return nil, fmt.Errorf("extractor exited with code 2")
	}
	return &export.Result{RawFiles: 2, MetadataURL: fmt.Sprintf("http://store/metadata/%d.json", req.BookID)}, nil
}

func waitForJob(t *testing.T, m *Manager, jobID string) *Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		j, ok := m.GetJob(jobID)
		if !ok {
			t.Fatalf("job %s unknown", jobID)
		}
		switch j.Status {
		case StatusCompleted, StatusCompletedWithErrors, StatusFailed:
			return j
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", jobID)
	return nil
}

func books(ids ...int64) []export.Request {
	out := make([]export.Request, len(ids))
	for i, id := range ids {
		out[i] = export.Request{BookID: id, BookName: fmt.Sprintf("كتاب %d", id)}
	}
	return out
}

func TestJobBatchWithOneFailure(t *testing.T) {
	runner := &fakeRunner{fail: map[int64]bool{7: true}}
	m := NewManager(Config{Runner: runner, Workers: 3})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	jobID, err := m.Submit(books(1, 2, 3, 4, 5, 6, 7, 8, 9, 10))
	if err != nil {
		t.Fatal(err)
	}

	j := waitForJob(t, m, jobID)
	if j.Status != StatusCompletedWithErrors {
		t.Fatalf("status = %s", j.Status)
	}

	completed, failed := 0, 0
	for _, b := range j.Books {
		switch b.Status {
		case StatusCompleted:
			completed++
			if b.RawFiles != 2 || b.MetadataURL == "" {
				t.Errorf("book %d missing results: %+v", b.BookID, b)
			}
		case StatusFailed:
			failed++
			if b.Error == "" {
				t.Errorf("book %d failed without error", b.BookID)
			}
		}
		if b.TotalChunks != 4 || b.ChunksEmbedded != 4 {
			t.Errorf("book %d progress not recorded: %+v", b.BookID, b)
		}
		if b.ElapsedSeconds < 0 {
			t.Errorf("book %d negative elapsed", b.BookID)
		}
	}
	if completed != 9 || failed != 1 {
		t.Fatalf("completed=%d failed=%d", completed, failed)
	}

	entries, total := m.DLQ(10, 0)
	if total != 1 || len(entries) != 1 {
		t.Fatalf("dlq total = %d", total)
	}
	if entries[0].JobID != jobID || entries[0].BookID != 7 || entries[0].Error == "" {
		t.Errorf("dlq entry = %+v", entries[0])
	}
	if entries[0].FailedAt.IsZero() {
		t.Error("dlq entry missing timestamp")
	}
}

func TestRetryDLQRunsBookAlone(t *testing.T) {
	runner := &fakeRunner{fail: map[int64]bool{7: true}}
	m := NewManager(Config{Runner: runner, Workers: 2})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	jobID, _ := m.Submit(books(6, 7, 8))
	waitForJob(t, m, jobID)

	// The book succeeds on retry.
	runner.mu.Lock()
	runner.fail = nil
	runner.mu.Unlock()

	newID, err := m.RetryDLQ(0)
	if err != nil {
		t.Fatal(err)
	}
	if newID == jobID {
		t.Error("retry reused the original job id")
	}

	j := waitForJob(t, m, newID)
	if j.Status != StatusCompleted {
		t.Errorf("retry status = %s", j.Status)
	}
	if len(j.Books) != 1 {
		t.Fatalf("retry job has %d books", len(j.Books))
	}
	b := j.Books[7]
	if b == nil || b.BookName != "كتاب 7" {
		t.Errorf("original book data not re-hydrated: %+v", j.Books)
	}

	if _, total := m.DLQ(10, 0); total != 0 {
		t.Errorf("dlq not drained, total = %d", total)
	}
}

func TestRetryDLQOutOfRange(t *testing.T) {
	m := NewManager(Config{Runner: &fakeRunner{}})
	if _, err := m.RetryDLQ(0); err == nil {
		t.Error("out-of-range retry accepted")
	}
}

func TestClearDLQ(t *testing.T) {
	runner := &fakeRunner{fail: map[int64]bool{1: true, 2: true}}
	m := NewManager(Config{Runner: runner, Workers: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	jobID, _ := m.Submit(books(1, 2))
	waitForJob(t, m, jobID)

	if _, total := m.DLQ(10, 0); total != 2 {
		t.Fatalf("dlq total = %d", total)
	}
	m.ClearDLQ()
	if _, total := m.DLQ(10, 0); total != 0 {
		t.Error("dlq not cleared")
	}
}

func TestListJobsNewestFirstWithFilter(t *testing.T) {
	runner := &fakeRunner{}
	m := NewManager(Config{Runner: runner, Workers: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	first, _ := m.Submit(books(1))
	waitForJob(t, m, first)
	second, _ := m.Submit(books(2))
	waitForJob(t, m, second)

	all, total := m.ListJobs("", 10, 0)
	if total != 2 || len(all) != 2 {
		t.Fatalf("total = %d", total)
	}
	if all[0].ID != second || all[1].ID != first {
		t.Errorf("not newest-first: %s, %s", all[0].ID, all[1].ID)
	}

	done, total := m.ListJobs(StatusCompleted, 10, 0)
	if total != 2 || len(done) != 2 {
		t.Errorf("filter total = %d", total)
	}
	if page, _ := m.ListJobs("", 1, 1); len(page) != 1 || page[0].ID != first {
		t.Errorf("pagination wrong")
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	runner := &fakeRunner{}
	m := NewManager(Config{Runner: runner, Workers: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	jobID, _ := m.Submit(books(5))
	j := waitForJob(t, m, jobID)

	j.Books[5].Status = StatusFailed
	j.Books[5].Error = "mutated"

	again, _ := m.GetJob(jobID)
	if again.Books[5].Status != StatusCompleted || again.Books[5].Error != "" {
		t.Error("snapshot mutation leaked into live record")
	}
}

func TestSubmitRejectsOverflowWithoutBlocking(t *testing.T) {
	// No workers draining, so the queue only empties when Submit refuses.
	m := NewManager(Config{Runner: &fakeRunner{}, QueueSize: 3})

	if _, err := m.Submit(books(1, 2)); err != nil {
		t.Fatal(err)
	}
	// One slot left; a two-book job must be rejected whole, not half-enqueued.
	if _, err := m.Submit(books(3, 4)); err == nil {
		t.Fatal("oversized submit accepted")
	}
	if _, err := m.Submit(books(5)); err != nil {
		t.Fatalf("remaining slot rejected: %v", err)
	}
}

func TestConcurrentSubmitsRespectQueueCapacity(t *testing.T) {
	// Racing submits must not both pass the capacity check and then block
	// on the sends. Queue of 4 and two-book jobs: exactly two can land.
	m := NewManager(Config{Runner: &fakeRunner{}, QueueSize: 4})

	var wg sync.WaitGroup
	var accepted int32
	for i := int64(0); i < 8; i++ {
		wg.Add(1)
		go func(n int64) {
			defer wg.Done()
			if _, err := m.Submit(books(n*2, n*2+1)); err == nil {
				atomic.AddInt32(&accepted, 1)
			}
		}(i)
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("a submit blocked on a full queue")
	}
	if accepted != 2 {
		t.Fatalf("accepted = %d, want 2", accepted)
	}
}

func TestSubmitEmptyJob(t *testing.T) {
	m := NewManager(Config{Runner: &fakeRunner{}})
	if _, err := m.Submit(nil); err == nil {
		t.Error("empty job accepted")
	}
}
