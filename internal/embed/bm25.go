package embed

import (
	"math"
	"strings"

	"github.com/aosman25/islam-ai/internal/chunker"
)

// BM25 constants, the conventional Okapi defaults.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// SparseDim is the fixed dimensionality of the hashed sparse space. Every
// token, whether from a book chunk or a query, maps to the same index, so
// stored vectors and query vectors are directly comparable.
const SparseDim = 250_000

// TokenIndex maps a normalized token into the shared sparse index space.
func TokenIndex(tok string) uint32 {
	return uint32(hashIndex(tok, SparseDim))
}

// BM25Model holds term statistics fitted over one book's chunk set. Token
// indices are hashed positions in the shared sparse space.
type BM25Model struct {
	vocab map[string]uint32
	df    map[string]int
	docs  int
	avgdl float64
}

// FitBM25 builds a model from the given corpus of texts.
func FitBM25(texts []string) *BM25Model {
	m := &BM25Model{
		vocab: make(map[string]uint32),
		df:    make(map[string]int),
		docs:  len(texts),
	}

	totalLen := 0
	for _, text := range texts {
		tokens := Tokenize(text)
		totalLen += len(tokens)
		seen := make(map[string]bool, len(tokens))
		for _, tok := range tokens {
			if _, ok := m.vocab[tok]; !ok {
				m.vocab[tok] = TokenIndex(tok)
			}
			if !seen[tok] {
				seen[tok] = true
				m.df[tok]++
			}
		}
	}
	if m.docs > 0 {
		m.avgdl = float64(totalLen) / float64(m.docs)
	}
	return m
}

// Encode returns the BM25 weight per sparse index for one document. Tokens
// outside the fitted vocabulary are ignored; tokens that hash to the same
// index accumulate.
func (m *BM25Model) Encode(text string) map[uint32]float32 {
	tokens := Tokenize(text)
	tf := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		if _, ok := m.vocab[tok]; ok {
			tf[tok]++
		}
	}

	dl := float64(len(tokens))
	norm := bm25K1 * (1 - bm25B + bm25B*dl/math.Max(m.avgdl, 1))

	out := make(map[uint32]float32, len(tf))
	for tok, f := range tf {
		idf := math.Log(1 + (float64(m.docs)-float64(m.df[tok])+0.5)/(float64(m.df[tok])+0.5))
		w := idf * float64(f) * (bm25K1 + 1) / (float64(f) + norm)
		if w > 0 {
			out[m.vocab[tok]] += float32(w)
		}
	}
	return out
}

// VocabSize reports the fitted vocabulary size.
func (m *BM25Model) VocabSize() int { return len(m.vocab) }

// EncodeQuery fits a throwaway single-document model over the query and
// encodes it. The hashed index space makes the result line up with vectors
// encoded from any book's model.
func EncodeQuery(query string) map[uint32]float32 {
	return FitBM25([]string{query}).Encode(query)
}

// Tokenize splits on whitespace and normalizes each token with the matcher's
// strict normalizer. Tokens that normalize to nothing are dropped.
func Tokenize(text string) []string {
	fields := strings.Fields(text)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if t := chunker.Clean(f); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}
