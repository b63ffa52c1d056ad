package chunker

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts BPE tokens in a text. The chunker takes it as a
// capability so tests can substitute a deterministic counter.
type TokenCounter interface {
	Count(text string) int
}

// bpeCounter counts with a fixed BPE encoding, lazily loaded once per
// process and shared by all chunker instances.
type bpeCounter struct{}

var (
	bpeOnce sync.Once
	bpeEnc  *tiktoken.Tiktoken
)

// NewTokenCounter returns the process-wide BPE token counter.
func NewTokenCounter() TokenCounter {
	return bpeCounter{}
}

func (bpeCounter) Count(text string) int {
	bpeOnce.Do(func() {
		enc, err := tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
		if err == nil {
			bpeEnc = enc
		}
	})
	if bpeEnc == nil {
		// Encoder unavailable (offline first run): estimate. Arabic runs
		// roughly one token per two characters under cl100k.
		return utf8.RuneCountInString(text)/2 + 1
	}
	return len(bpeEnc.Encode(text, nil, nil))
}
