package vecstore

import "fmt"

// OutputFields is the closed set of scalar fields a search may return.
var OutputFields = []string{
	"book_id", "book_name", "order", "author", "category", "part_title",
	"start_page_id", "page_offset", "page_num_range", "text",
}

// IsOutputField reports whether a field name is part of the closed set.
func IsOutputField(name string) bool {
	for _, f := range OutputFields {
		if f == name {
			return true
		}
	}
	return false
}

// collectionStatements is the side-car schema description for the collection.
func collectionStatements(collection string, dim int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
			id BIGINT PRIMARY KEY,
			book_id BIGINT NOT NULL,
			book_name TEXT NOT NULL,
			"order" BIGINT NOT NULL,
			author TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			part_title TEXT NOT NULL DEFAULT '',
			start_page_id BIGINT NOT NULL,
			page_offset BIGINT NOT NULL,
			page_num_range BIGINT[] NOT NULL,
			text VARCHAR(%d) NOT NULL,
			partition TEXT NOT NULL DEFAULT '_default',
			dense_vector vector(%d) NOT NULL,
			sparse_vector sparsevec(%d) NOT NULL
		)`, collection, maxTextChars, dim, SparseDim),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %q ON %q (book_id)`,
			collection+"_book_id_idx", collection),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %q ON %q (partition)`,
			collection+"_partition_idx", collection),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %q ON %q USING hnsw (dense_vector vector_cosine_ops)`,
			collection+"_dense_idx", collection),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %q ON %q USING hnsw (sparse_vector sparsevec_ip_ops)`,
			collection+"_sparse_idx", collection),
	}
}
