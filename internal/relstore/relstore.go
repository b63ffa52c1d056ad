// Package relstore adapts the operational relational store holding exported
// books, their pages, and the author/category reference rows.
package relstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aosman25/islam-ai/internal/types"
)

// Store wraps a pgx pool over the operational database.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New connects to the operational store and runs migrations.
func New(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to relational store: %w", err)
	}

	s := &Store{pool: pool, logger: logger.With("component", "relstore")}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// UpsertBook writes a book's metadata and replaces its pages. All steps run
// in one transaction: ensure author and category rows, upsert the book row,
// delete existing pages, bulk-insert the new set.
func (s *Store) UpsertBook(ctx context.Context, doc *types.BookMetadata, authorID, categoryID int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin upsert tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO authors (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
		authorID, doc.Author); err != nil {
		return fmt.Errorf("failed to ensure author %d: %w", authorID, err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO categories (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
		categoryID, doc.Category); err != nil {
		return fmt.Errorf("failed to ensure category %d: %w", categoryID, err)
	}

	partsJSON, err := json.Marshal(doc.Parts)
	if err != nil {
		return fmt.Errorf("failed to marshal parts: %w", err)
	}
	tocJSON, err := json.Marshal(doc.TableOfContents)
	if err != nil {
		return fmt.Errorf("failed to marshal table of contents: %w", err)
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `
		INSERT INTO books (
			book_id, book_name, author_id, category_id,
			editor, edition, publisher, num_volumes, num_pages,
			shamela_pub_date, author_full, parts, table_of_contents,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$14)
		ON CONFLICT (book_id) DO UPDATE SET
			book_name = EXCLUDED.book_name,
			author_id = EXCLUDED.author_id,
			category_id = EXCLUDED.category_id,
			editor = EXCLUDED.editor,
			edition = EXCLUDED.edition,
			publisher = EXCLUDED.publisher,
			num_volumes = EXCLUDED.num_volumes,
			num_pages = EXCLUDED.num_pages,
			shamela_pub_date = EXCLUDED.shamela_pub_date,
			author_full = EXCLUDED.author_full,
			parts = EXCLUDED.parts,
			table_of_contents = EXCLUDED.table_of_contents,
			updated_at = EXCLUDED.updated_at`,
		doc.BookID, doc.BookName, authorID, categoryID,
		doc.Editor, doc.Edition, doc.Publisher, doc.NumVolumes, doc.NumPages,
		doc.ShamelaPubDate, doc.AuthorFull, partsJSON, tocJSON, now); err != nil {
		return fmt.Errorf("failed to upsert book %d: %w", doc.BookID, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM pages WHERE book_id = $1`, doc.BookID); err != nil {
		return fmt.Errorf("failed to clear pages for book %d: %w", doc.BookID, err)
	}

	var rows [][]any
	for _, part := range doc.Parts {
		for _, p := range doc.Pages[part] {
			rows = append(rows, []any{doc.BookID, p.PageID, p.PartTitle, p.PageNum, p.DisplayElem})
		}
	}
	if len(rows) > 0 {
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"pages"},
			[]string{"book_id", "page_id", "part_title", "page_num", "display_elem"},
			pgx.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("failed to insert pages for book %d: %w", doc.BookID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit upsert for book %d: %w", doc.BookID, err)
	}

	s.logger.Info("book upserted", "book_id", doc.BookID, "pages", len(rows))
	return nil
}

// DeleteBook removes a book, its pages, and any author/category rows left
// without references. Returns whether the book row existed.
func (s *Store) DeleteBook(ctx context.Context, bookID int64) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin delete tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var authorID, categoryID int64
	err = tx.QueryRow(ctx,
		`SELECT author_id, category_id FROM books WHERE book_id = $1`, bookID).
		Scan(&authorID, &categoryID)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read book %d: %w", bookID, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM pages WHERE book_id = $1`, bookID); err != nil {
		return false, fmt.Errorf("failed to delete pages for book %d: %w", bookID, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM books WHERE book_id = $1`, bookID); err != nil {
		return false, fmt.Errorf("failed to delete book %d: %w", bookID, err)
	}

	// Orphan cleanup: authors and categories only exist to be referenced.
	if _, err := tx.Exec(ctx,
		`DELETE FROM authors WHERE id = $1
		   AND NOT EXISTS (SELECT 1 FROM books WHERE author_id = $1)`, authorID); err != nil {
		return false, fmt.Errorf("failed to clean up author %d: %w", authorID, err)
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM categories WHERE id = $1
		   AND NOT EXISTS (SELECT 1 FROM books WHERE category_id = $1)`, categoryID); err != nil {
		return false, fmt.Errorf("failed to clean up category %d: %w", categoryID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit delete for book %d: %w", bookID, err)
	}

	s.logger.Info("book deleted", "book_id", bookID)
	return true, nil
}

// AllExportedBookIDs returns the set of book ids present in the books table.
func (s *Store) AllExportedBookIDs(ctx context.Context) (map[int64]struct{}, error) {
	rows, err := s.pool.Query(ctx, `SELECT book_id FROM books`)
	if err != nil {
		return nil, fmt.Errorf("failed to list exported book ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// PageCount returns the number of pages stored for a book.
func (s *Store) PageCount(ctx context.Context, bookID int64) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM pages WHERE book_id = $1`, bookID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pages for book %d: %w", bookID, err)
	}
	return n, nil
}
