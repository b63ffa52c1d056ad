package rewrite

import (
	"context"
	"sort"
	"strings"
	"testing"
)

func TestSystemPromptIsStable(t *testing.T) {
	// The taxonomy comes from a map; the prompt must not depend on map
	// iteration order.
	first := systemPrompt()
	for i := 0; i < 10; i++ {
		if got := systemPrompt(); got != first {
			t.Fatalf("prompt differs between calls:\n%s\n%s", first, got)
		}
	}

	names := make([]string, 0, len(higherOrderCategories))
	for name := range higherOrderCategories {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !strings.Contains(first, name) {
			t.Errorf("prompt missing taxonomy name %q", name)
		}
	}
	if !strings.Contains(first, strings.Join(names, "، ")) {
		t.Error("taxonomy names not enumerated in sorted order")
	}
}

func TestParseResponsePlainJSON(t *testing.T) {
	res, err := parseResponse(`{"optimized_query":"حكم صلاة المسافر","sub_queries":["مدة القصر"],"categories":["الفقه"]}`)
	if err != nil {
		t.Fatal(err)
	}
	if res.OptimizedQuery != "حكم صلاة المسافر" {
		t.Errorf("optimized_query = %q", res.OptimizedQuery)
	}
	if len(res.SubQueries) != 1 || res.SubQueries[0] != "مدة القصر" {
		t.Errorf("sub_queries = %v", res.SubQueries)
	}
}

func TestParseResponseCodeFence(t *testing.T) {
	res, err := parseResponse("```json\n{\"optimized_query\":\"س\",\"sub_queries\":[],\"categories\":[]}\n```")
	if err != nil {
		t.Fatal(err)
	}
	if res.OptimizedQuery != "س" {
		t.Errorf("optimized_query = %q", res.OptimizedQuery)
	}
}

func TestParseResponseRejectsEmpty(t *testing.T) {
	if _, err := parseResponse(`{"sub_queries":[]}`); err == nil {
		t.Error("missing optimized_query accepted")
	}
	if _, err := parseResponse("not json"); err == nil {
		t.Error("malformed JSON accepted")
	}
}

func TestResolveCategories(t *testing.T) {
	got := ResolveCategories([]string{"الفقه", "الحديث"})
	if len(got) != 8 {
		t.Fatalf("got %d categories: %v", len(got), got)
	}
	if got[0] != "الفقه الحنفي" {
		t.Errorf("order not preserved: %v", got)
	}
	for _, c := range got {
		if strings.TrimSpace(c) == "" {
			t.Error("empty category name")
		}
	}
}

func TestResolveCategoriesUnknownDropped(t *testing.T) {
	if got := ResolveCategories([]string{"غير موجود"}); len(got) != 0 {
		t.Errorf("unknown higher-order name resolved: %v", got)
	}
}

func TestResolveCategoriesDeduplicates(t *testing.T) {
	got := ResolveCategories([]string{"الفقه", "الفقه"})
	if len(got) != 5 {
		t.Errorf("duplicates not collapsed: %v", got)
	}
}

func TestRewriteValidation(t *testing.T) {
	r := New(Config{Model: "test"})

	if _, err := r.Rewrite(context.Background(), "   "); err == nil {
		t.Error("empty query accepted")
	}
	if _, err := r.Rewrite(context.Background(), strings.Repeat("س", MaxQueryLen+1)); err == nil {
		t.Error("oversize query accepted")
	}
}
