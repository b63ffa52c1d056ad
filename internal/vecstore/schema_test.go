package vecstore

import (
	"strings"
	"testing"
)

func TestCollectionStatementsCoverBothVectorIndexes(t *testing.T) {
	stmts := collectionStatements("islamic_library", 768)

	var dense, sparse bool
	for _, s := range stmts {
		if strings.Contains(s, "USING hnsw (dense_vector vector_cosine_ops)") {
			dense = true
		}
		if strings.Contains(s, "USING hnsw (sparse_vector sparsevec_ip_ops)") {
			sparse = true
		}
	}
	if !dense {
		t.Error("dense hnsw index statement missing")
	}
	if !sparse {
		t.Error("sparse hnsw index statement missing")
	}
}

func TestCollectionStatementsDimensions(t *testing.T) {
	stmts := collectionStatements("c", 1024)
	table := stmts[1]
	if !strings.Contains(table, "vector(1024)") {
		t.Errorf("dense dimension not applied: %s", table)
	}
	if !strings.Contains(table, "sparsevec(250000)") {
		t.Errorf("sparse dimension wrong: %s", table)
	}
}

func TestIsOutputField(t *testing.T) {
	if !IsOutputField("book_name") {
		t.Error("book_name rejected")
	}
	if IsOutputField("dense_vector") {
		t.Error("vector column accepted as output field")
	}
}
