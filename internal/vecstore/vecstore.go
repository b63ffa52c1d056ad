// Package vecstore adapts the vector store holding chunk embeddings. The
// collection is a pgvector-backed table with a dense column (cosine) and a
// sparse column (inner product).
package vecstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/aosman25/islam-ai/internal/embed"
	"github.com/aosman25/islam-ai/internal/types"
)

const (
	// DefaultCollection is the collection (table) name.
	DefaultCollection = "islamic_library"

	// DefaultPartition is the partition chunks land in unless told otherwise.
	DefaultPartition = "_default"

	// SparseDim mirrors the embedder's hashed sparse space; stored vectors
	// and query vectors carry indexes below it.
	SparseDim = embed.SparseDim

	// maxTextChars is the store's VARCHAR budget for chunk text.
	maxTextChars = 60_000

	// defaultBatchSize bounds one upsert round trip.
	defaultBatchSize = 12_000
)

// Config holds vector store settings.
type Config struct {
	DSN        string
	Collection string
	Dim        int
	BatchSize  int
	Logger     *slog.Logger
}

// Store is the vector store adapter.
type Store struct {
	pool       *pgxpool.Pool
	collection string
	dim        int
	batchSize  int
	logger     *slog.Logger
}

// New connects to the vector store and ensures the collection exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.Dim <= 0 {
		cfg.Dim = 768
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse vector store dsn: %w", err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to vector store: %w", err)
	}

	s := &Store{
		pool:       pool,
		collection: cfg.Collection,
		dim:        cfg.Dim,
		batchSize:  cfg.BatchSize,
		logger:     logger.With("component", "vecstore", "collection", cfg.Collection),
	}

	if err := s.EnsureCollection(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping verifies the store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureCollection creates the collection table and its indices if absent.
func (s *Store) EnsureCollection(ctx context.Context) error {
	for _, stmt := range collectionStatements(s.collection, s.dim) {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", s.collection, err)
		}
	}
	s.logger.Info("collection ready", "dim", s.dim)
	return nil
}

// UpsertChunks writes embedded chunks in fixed-size batches. Primary keys
// are deterministic (book_id*10M + order), so retries replace rather than
// duplicate.
func (s *Store) UpsertChunks(ctx context.Context, chunks []types.Chunk, partition string) error {
	if partition == "" {
		partition = DefaultPartition
	}

	for start := 0; start < len(chunks); start += s.batchSize {
		end := start + s.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		if err := s.upsertBatch(ctx, chunks[start:end], partition); err != nil {
			return err
		}
		s.logger.Debug("chunk batch upserted", "from", start, "to", end, "partition", partition)
	}
	return nil
}

func (s *Store) upsertBatch(ctx context.Context, chunks []types.Chunk, partition string) error {
	batch := &pgx.Batch{}
	sql := fmt.Sprintf(`
		INSERT INTO %s (
			id, book_id, book_name, "order", author, category, part_title,
			start_page_id, page_offset, page_num_range, text, partition,
			dense_vector, sparse_vector
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (id) DO UPDATE SET
			book_name = EXCLUDED.book_name,
			author = EXCLUDED.author,
			category = EXCLUDED.category,
			part_title = EXCLUDED.part_title,
			start_page_id = EXCLUDED.start_page_id,
			page_offset = EXCLUDED.page_offset,
			page_num_range = EXCLUDED.page_num_range,
			text = EXCLUDED.text,
			partition = EXCLUDED.partition,
			dense_vector = EXCLUDED.dense_vector,
			sparse_vector = EXCLUDED.sparse_vector`, pgx.Identifier{s.collection}.Sanitize())

	for i := range chunks {
		c := &chunks[i]
		text := c.Text
		if len([]rune(text)) > maxTextChars {
			text = string([]rune(text)[:maxTextChars])
		}
		batch.Queue(sql,
			c.ID(), c.BookID, c.BookName, c.Order, c.Author, c.Category, c.PartTitle,
			c.StartPageID, c.PageOffset, []int64{int64(c.PageNumRange[0]), int64(c.PageNumRange[1])},
			text, partition,
			pgvector.NewVector(c.DenseVector), sparseFromMap(c.SparseVector))
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range chunks {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to upsert chunk batch: %w", err)
		}
	}
	return nil
}

// DeleteByBookID removes all of a book's chunks from a partition. A missing
// collection is tolerated and reported as false.
func (s *Store) DeleteByBookID(ctx context.Context, bookID int64, partition string) (bool, error) {
	if partition == "" {
		partition = DefaultPartition
	}
	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE book_id = $1 AND partition = $2`,
			pgx.Identifier{s.collection}.Sanitize()),
		bookID, partition)
	if err != nil {
		if isUndefinedTable(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete chunks for book %d: %w", bookID, err)
	}
	s.logger.Info("chunks deleted", "book_id", bookID, "rows", tag.RowsAffected())
	return true, nil
}

// Partitions returns the distinct partition names present in the collection.
func (s *Store) Partitions(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT DISTINCT partition FROM %s ORDER BY partition`,
			pgx.Identifier{s.collection}.Sanitize()))
	if err != nil {
		if isUndefinedTable(err) {
			return []string{DefaultPartition}, nil
		}
		return nil, fmt.Errorf("failed to list partitions: %w", err)
	}
	defer rows.Close()

	parts := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	if len(parts) == 0 {
		parts = []string{DefaultPartition}
	}
	return parts, rows.Err()
}

// ChunkCount returns the number of chunks stored for a book.
func (s *Store) ChunkCount(ctx context.Context, bookID int64, partition string) (int, error) {
	if partition == "" {
		partition = DefaultPartition
	}
	var n int
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE book_id = $1 AND partition = $2`,
			pgx.Identifier{s.collection}.Sanitize()),
		bookID, partition).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks for book %d: %w", bookID, err)
	}
	return n, nil
}

func sparseFromMap(m map[uint32]float32) pgvector.SparseVector {
	elems := make(map[int32]float32, len(m))
	for idx, w := range m {
		elems[int32(idx)] = w
	}
	return pgvector.NewSparseVectorFromMap(elems, SparseDim)
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}
