package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sync"
)

// DefaultLocalBatch caps texts per call to the in-process model.
const DefaultLocalBatch = 1000

const (
	localTokenWeight = 0.7
	localNgramWeight = 0.3
	localNgramSize   = 3
)

// LocalEmbedder is a deterministic in-process dense model: tokens and rune
// trigrams hashed into a fixed-dimension vector, L2-normalized. One instance
// is shared by all concurrent jobs.
type LocalEmbedder struct {
	dim int
}

var (
	localOnce sync.Once
	localInst *LocalEmbedder
)

// Local returns the process-wide local embedder, created on first use.
func Local(dim int) *LocalEmbedder {
	localOnce.Do(func() {
		localInst = &LocalEmbedder{dim: dim}
	})
	return localInst
}

// Dim returns the vector dimension.
func (e *LocalEmbedder) Dim() int { return e.dim }

// Embed produces one vector per text. Safe for concurrent use.
func (e *LocalEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) > DefaultLocalBatch {
		return nil, fmt.Errorf("batch of %d exceeds the %d-text local limit", len(texts), DefaultLocalBatch)
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.vector(text)
	}
	return out, nil
}

func (e *LocalEmbedder) vector(text string) []float32 {
	v := make([]float32, e.dim)

	tokens := Tokenize(text)
	for _, tok := range tokens {
		v[hashIndex(tok, e.dim)] += localTokenWeight
		for _, ng := range runeNgrams(tok, localNgramSize) {
			v[hashIndex(ng, e.dim)] += localNgramWeight
		}
	}

	return l2Normalize(v)
}

// runeNgrams slides an n-rune window over the token.
func runeNgrams(s string, n int) []string {
	runes := []rune(s)
	if len(runes) < n {
		return nil
	}
	out := make([]string, 0, len(runes)-n+1)
	for i := 0; i+n <= len(runes); i++ {
		out = append(out, string(runes[i:i+n]))
	}
	return out
}

func hashIndex(s string, size int) int {
	h := fnv.New64()
	h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

func l2Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return v
}
