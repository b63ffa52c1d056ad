package objstore

import "testing"

func TestKeyLayout(t *testing.T) {
	if got := RawPrefix(42); got != "raw/42/" {
		t.Errorf("RawPrefix = %q", got)
	}
	if got := RawKey(42, "001.htm"); got != "raw/42/001.htm" {
		t.Errorf("RawKey = %q", got)
	}
	if got := MetadataKey(42); got != "metadata/42.json" {
		t.Errorf("MetadataKey = %q", got)
	}
	if got := EmbeddingsKey(42); got != "embeddings/42.jsonl" {
		t.Errorf("EmbeddingsKey = %q", got)
	}
}

func TestPublicURL(t *testing.T) {
	s := &Store{bucket: "islamic-library", scheme: "https", host: "s3.example.com"}
	want := "https://islamic-library.s3.example.com/metadata/42.json"
	if got := s.PublicURL(MetadataKey(42)); got != want {
		t.Errorf("PublicURL = %q, want %q", got, want)
	}
}
