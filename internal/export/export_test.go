package export

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/aosman25/islam-ai/internal/chunker"
	"github.com/aosman25/islam-ai/internal/extractor"
	"github.com/aosman25/islam-ai/internal/types"
)

type fakeExtractor struct {
	files []extractor.File
	err   error
}

func (f *fakeExtractor) ExportToMemory(context.Context, int64) ([]extractor.File, error) {
	return f.files, f.err
}

type fakeObjects struct {
	objects map[string][]byte
	deletes []string
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: make(map[string][]byte)}
}

func (f *fakeObjects) Put(_ context.Context, key string, data []byte, _ string) error {
	f.objects[key] = data
	return nil
}

func (f *fakeObjects) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (f *fakeObjects) Delete(_ context.Context, key string) error {
	f.deletes = append(f.deletes, key)
	delete(f.objects, key)
	return nil
}

func (f *fakeObjects) PublicURL(key string) string { return "http://store/" + key }

type fakeRel struct {
	upserts int
	deletes int
	existed bool
}

func (f *fakeRel) UpsertBook(context.Context, *types.BookMetadata, int64, int64) error {
	f.upserts++
	return nil
}

func (f *fakeRel) DeleteBook(context.Context, int64) (bool, error) {
	f.deletes++
	return f.existed, nil
}

type fakeVec struct {
	upserted []types.Chunk
	deletes  int
	existed  bool
}

func (f *fakeVec) UpsertChunks(_ context.Context, chunks []types.Chunk, _ string) error {
	f.upserted = append(f.upserted, chunks...)
	return nil
}

func (f *fakeVec) DeleteByBookID(context.Context, int64, string) (bool, error) {
	f.deletes++
	return f.existed, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedChunks(_ context.Context, chunks []types.Chunk, onBatch func(int)) error {
	for i := range chunks {
		chunks[i].DenseVector = []float32{1, 0}
		chunks[i].SparseVector = map[uint32]float32{0: 1}
	}
	if onBatch != nil {
		onBatch(len(chunks))
	}
	return nil
}

// wordCounter keeps the chunker deterministic without the BPE tables.
type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

func pageHTML(part, num, body string) string {
	return `<div class="PageText"><div class="PageHead">` +
		`<span class="PartName">` + part + `</span>` +
		`<span class="PageNumber">ص: ` + num + `</span>` +
		`</div>` + body + `</div>`
}

func testFiles() []extractor.File {
	body := "<p>الحمد لله رب العالمين وبه نستعين على أمور الدنيا والدين.</p>"
	return []extractor.File{
		{Name: "001.htm", Content: []byte("<html><body>" +
			pageHTML("الجزء الأول", "١", body) +
			pageHTML("الجزء الأول", "٢", body) +
			"</body></html>")},
	}
}

func newTestOrchestrator(obj *fakeObjects, rel *fakeRel, vec *fakeVec) *Orchestrator {
	ch := chunker.NewWithCounter(5000, chunker.DefaultLookback, wordCounter{})
	return New(&fakeExtractor{files: testFiles()}, obj, rel, vec, ch, fakeEmbedder{}, "_default", nil)
}

func TestExportBookFullPipeline(t *testing.T) {
	obj := newFakeObjects()
	rel := &fakeRel{}
	vec := &fakeVec{}
	o := newTestOrchestrator(obj, rel, vec)

	var steps []string
	var chunkCount, embedded int
	progress := Progress{
		Step:              func(s string) { steps = append(steps, s) },
		ChunkingDone:      func(n int) { chunkCount = n },
		EmbeddingProgress: func(n int) { embedded = n },
	}

	res, err := o.ExportBook(context.Background(), Request{
		BookID: 12, BookName: "كتاب", AuthorName: "مؤلف", CategoryName: "فقه",
		AuthorID: 3, CategoryID: 5,
	}, progress)
	if err != nil {
		t.Fatalf("ExportBook: %v", err)
	}

	if res.RawFiles != 1 {
		t.Errorf("raw files = %d", res.RawFiles)
	}
	if res.MetadataURL != "http://store/metadata/12.json" {
		t.Errorf("metadata url = %q", res.MetadataURL)
	}

	want := []string{"exporting", "chunking", "embedding"}
	if strings.Join(steps, ",") != strings.Join(want, ",") {
		t.Errorf("steps = %v", steps)
	}
	if chunkCount == 0 || embedded != chunkCount {
		t.Errorf("chunking_done = %d, embedding_progress = %d", chunkCount, embedded)
	}

	if _, ok := obj.objects["raw/12/001.htm"]; !ok {
		t.Error("raw page not uploaded")
	}
	if _, ok := obj.objects["metadata/12.json"]; !ok {
		t.Error("metadata not uploaded")
	}
	if _, ok := obj.objects["embeddings/12.jsonl"]; !ok {
		t.Error("embeddings mirror not uploaded")
	}
	if rel.upserts != 1 {
		t.Errorf("relational upserts = %d", rel.upserts)
	}
	if len(vec.upserted) != chunkCount {
		t.Errorf("vector upserts = %d, want %d", len(vec.upserted), chunkCount)
	}

	// The JSONL mirror carries the embedded vectors.
	sc := bufio.NewScanner(bytes.NewReader(obj.objects["embeddings/12.jsonl"]))
	lines := 0
	for sc.Scan() {
		var rec map[string]any
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("line %d: %v", lines, err)
		}
		if rec["dense_vector"] == nil || rec["sparse_vector"] == nil {
			t.Errorf("line %d missing vectors", lines)
		}
		lines++
	}
	if lines != chunkCount {
		t.Errorf("jsonl lines = %d, want %d", lines, chunkCount)
	}
}

func TestExportBookPreDeletesExisting(t *testing.T) {
	obj := newFakeObjects()
	obj.objects["raw/12/stale.htm"] = []byte("old")
	rel := &fakeRel{existed: true}
	vec := &fakeVec{existed: true}
	o := newTestOrchestrator(obj, rel, vec)

	if _, err := o.ExportBook(context.Background(), Request{BookID: 12, BookName: "كتاب"}, Progress{}); err != nil {
		t.Fatalf("ExportBook: %v", err)
	}

	if rel.deletes != 1 || vec.deletes != 1 {
		t.Errorf("pre-delete skipped: rel=%d vec=%d", rel.deletes, vec.deletes)
	}
	found := false
	for _, k := range obj.deletes {
		if k == "raw/12/stale.htm" {
			found = true
		}
	}
	if !found {
		t.Error("stale raw key not deleted")
	}
}

func TestDeleteBookReportsExistence(t *testing.T) {
	obj := newFakeObjects()
	o := newTestOrchestrator(obj, &fakeRel{}, &fakeVec{})

	existed, err := o.DeleteBook(context.Background(), 99)
	if err != nil {
		t.Fatal(err)
	}
	if existed {
		t.Error("missing book reported as existing")
	}

	obj.objects["raw/99/p.htm"] = []byte("x")
	existed, err = o.DeleteBook(context.Background(), 99)
	if err != nil {
		t.Fatal(err)
	}
	if !existed {
		t.Error("present book reported as missing")
	}
}
