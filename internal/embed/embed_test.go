package embed

import (
	"context"
	"fmt"
	"testing"

	"github.com/aosman25/islam-ai/internal/types"
)

func TestFitBM25Weights(t *testing.T) {
	texts := []string{
		"الحمد لله رب العالمين",
		"الحمد لله وحده",
		"قال الشافعي رحمه الله",
	}
	m := FitBM25(texts)

	if m.VocabSize() != 9 {
		t.Errorf("vocab size = %d, want 9", m.VocabSize())
	}

	w := m.Encode(texts[0])
	if len(w) != 4 {
		t.Fatalf("got %d weights, want 4: %v", len(w), w)
	}
	common, rare := w[TokenIndex("الحمد")], w[TokenIndex("رب")]
	if common <= 0 || rare <= 0 {
		t.Fatalf("weights must be positive: %v", w)
	}
	// A term in one document out of three outweighs one in two.
	if rare <= common {
		t.Errorf("rare term weight %v <= common term weight %v", rare, common)
	}
}

func TestEncodeIgnoresUnknownTokens(t *testing.T) {
	m := FitBM25([]string{"كلمة واحدة"})
	w := m.Encode("كلمة غريبة تماما")
	if len(w) != 1 {
		t.Errorf("got %d weights, want 1: %v", len(w), w)
	}
}

func TestTokenizeNormalizes(t *testing.T) {
	tokens := Tokenize("قالَ: (نعم)، ثم سكت.")
	want := []string{"قال", "نعم", "ثم", "سكت"}
	if len(tokens) != len(want) {
		t.Fatalf("tokens = %v, want %v", tokens, want)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Errorf("token %d = %q, want %q", i, tokens[i], want[i])
		}
	}
}

func TestEncodeQueryAlignsWithDocumentVectors(t *testing.T) {
	// A query vector and a book-fitted chunk vector must put a shared token
	// at the same sparse index, otherwise their inner product is noise.
	m := FitBM25([]string{
		"باب الوضوء وما جاء فيه من الأحكام",
		"شروط الوضوء عند أهل العلم",
	})
	doc := m.Encode("باب الوضوء وما جاء فيه من الأحكام")
	query := EncodeQuery("حكم الوضوء")

	idx := TokenIndex("الوضوء")
	if doc[idx] <= 0 {
		t.Fatalf("document weight at shared index missing: %v", doc)
	}
	if query[idx] <= 0 {
		t.Fatalf("query weight at shared index missing: %v", query)
	}

	var dot float32
	for i, w := range query {
		dot += w * doc[i]
	}
	if dot <= 0 {
		t.Errorf("query/document inner product = %v, want > 0", dot)
	}
	for i := range doc {
		if i >= SparseDim {
			t.Errorf("index %d outside the hashed space", i)
		}
	}
}

func TestLocalEmbedderDeterministic(t *testing.T) {
	e := Local(768)
	if e.Dim() != 768 {
		t.Fatalf("dim = %d", e.Dim())
	}
	// Singleton: a second call returns the same instance.
	if Local(512) != e {
		t.Error("Local returned a second instance")
	}

	a, err := e.Embed(context.Background(), []string{"بسم الله الرحمن الرحيم"})
	if err != nil {
		t.Fatal(err)
	}
	b, _ := e.Embed(context.Background(), []string{"بسم الله الرحمن الرحيم"})
	for i := range a[0] {
		if a[0][i] != b[0][i] {
			t.Fatalf("vectors differ at %d", i)
		}
	}

	var norm float64
	for _, x := range a[0] {
		norm += float64(x) * float64(x)
	}
	if norm < 0.99 || norm > 1.01 {
		t.Errorf("vector not unit length: %v", norm)
	}
}

func TestLocalEmbedderBatchLimit(t *testing.T) {
	texts := make([]string, DefaultLocalBatch+1)
	if _, err := Local(768).Embed(context.Background(), texts); err == nil {
		t.Error("oversize batch accepted")
	}
}

// fixedEmbedder returns a constant vector per text and records batch sizes.
type fixedEmbedder struct {
	dim     int
	batches []int
}

func (f *fixedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.batches = append(f.batches, len(texts))
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, f.dim)
		out[i][0] = 1
	}
	return out, nil
}

func (f *fixedEmbedder) Dim() int { return f.dim }

func TestEmbedChunksProgress(t *testing.T) {
	chunks := make([]types.Chunk, 7)
	for i := range chunks {
		chunks[i] = types.Chunk{Order: i, Text: fmt.Sprintf("نص القطعة رقم %d في الكتاب", i)}
	}

	dense := &fixedEmbedder{dim: 8}
	p := NewPipeline(dense, 3, nil)

	var progress []int
	err := p.EmbedChunks(context.Background(), chunks, func(done int) {
		progress = append(progress, done)
	})
	if err != nil {
		t.Fatal(err)
	}

	wantBatches := []int{3, 3, 1}
	if len(dense.batches) != len(wantBatches) {
		t.Fatalf("batches = %v", dense.batches)
	}
	wantProgress := []int{3, 6, 7}
	for i, n := range wantProgress {
		if progress[i] != n {
			t.Errorf("progress[%d] = %d, want %d", i, progress[i], n)
		}
	}

	for i, ch := range chunks {
		if len(ch.DenseVector) != 8 {
			t.Errorf("chunk %d dense vector missing", i)
		}
		if len(ch.SparseVector) == 0 {
			t.Errorf("chunk %d sparse vector missing", i)
		}
	}
}
