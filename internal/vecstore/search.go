package vecstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

// Hit is one ANN search result: the chunk id, the similarity score of the
// searched vector field, and the requested output fields.
type Hit struct {
	ID     int64
	Score  float64
	Fields map[string]any
}

// SearchDense runs an ANN search over the dense column with cosine
// similarity. Scores are 1 - cosine distance, higher is better.
func (s *Store) SearchDense(ctx context.Context, vector []float32, partition string, limit int, fields []string) ([]Hit, error) {
	expr := "1 - (dense_vector <=> $1)"
	order := "dense_vector <=> $1"
	return s.search(ctx, expr, order, pgvector.NewVector(vector), partition, limit, fields)
}

// SearchSparse runs an ANN search over the sparse column with inner product.
// pgvector's <#> is the negative inner product, so the score negates it.
func (s *Store) SearchSparse(ctx context.Context, vector map[uint32]float32, partition string, limit int, fields []string) ([]Hit, error) {
	expr := "-(sparse_vector <#> $1)"
	order := "sparse_vector <#> $1"
	return s.search(ctx, expr, order, sparseFromMap(vector), partition, limit, fields)
}

func (s *Store) search(ctx context.Context, scoreExpr, orderExpr string, vec any, partition string, limit int, fields []string) ([]Hit, error) {
	if partition == "" {
		partition = DefaultPartition
	}
	if limit <= 0 {
		limit = 10
	}

	cols := make([]string, 0, len(fields))
	for _, f := range fields {
		if !IsOutputField(f) {
			return nil, fmt.Errorf("unknown output field %q", f)
		}
		cols = append(cols, pgx.Identifier{f}.Sanitize())
	}
	selectList := "id, " + scoreExpr + " AS score"
	if len(cols) > 0 {
		selectList += ", " + strings.Join(cols, ", ")
	}

	sql := fmt.Sprintf(`SELECT %s FROM %s WHERE partition = $2 ORDER BY %s LIMIT %d`,
		selectList, pgx.Identifier{s.collection}.Sanitize(), orderExpr, limit)

	rows, err := s.pool.Query(ctx, sql, vec, partition)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		hit := Hit{Fields: make(map[string]any, len(fields))}
		hit.ID = toInt64(vals[0])
		hit.Score = toFloat64(vals[1])
		for i, f := range fields {
			hit.Fields[f] = vals[2+i]
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	}
	return 0
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	}
	return 0
}
