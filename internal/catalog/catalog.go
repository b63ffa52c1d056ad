// Package catalog provides read-only access to the upstream catalogue: an
// embedded sqlite file populated by the crawler. This system never writes it.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/aosman25/islam-ai/internal/types"
)

// ErrNotFound is returned when a requested catalogue row does not exist.
var ErrNotFound = errors.New("catalog: not found")

// Store is a read-only handle on the catalogue database.
type Store struct {
	db *sql.DB
}

// Category is a catalogue category row.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Author is a catalogue author row.
type Author struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Book is a catalogue book row.
type Book struct {
	ID           int64  `json:"book_id"`
	Name         string `json:"book_name"`
	MainAuthorID int64  `json:"main_author_id"`
	CategoryID   int64  `json:"category_id"`
	Hidden       bool   `json:"hidden"`
	Printed      bool   `json:"printed"`
	HasToc       bool   `json:"has_toc"`
}

// Open opens the catalogue file read-only.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the catalogue file is readable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ListCategories returns a page of categories and the total count.
func (s *Store) ListCategories(ctx context.Context, limit, offset int) ([]Category, int, error) {
	return s.queryCategories(ctx, "", limit, offset)
}

// SearchCategories returns categories whose name contains the given substring.
func (s *Store) SearchCategories(ctx context.Context, name string, limit, offset int) ([]Category, int, error) {
	return s.queryCategories(ctx, name, limit, offset)
}

func (s *Store) queryCategories(ctx context.Context, name string, limit, offset int) ([]Category, int, error) {
	where, args := "", []any{}
	if name != "" {
		where = "WHERE category_name LIKE ?"
		args = append(args, "%"+name+"%")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM categories "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count categories: %w", err)
	}

	args = append(args, normalizeLimit(limit), offset)
	rows, err := s.db.QueryContext(ctx,
		"SELECT category_id, category_name FROM categories "+where+" ORDER BY category_id LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

// GetCategory returns a single category by id.
func (s *Store) GetCategory(ctx context.Context, id int64) (*Category, error) {
	var c Category
	err := s.db.QueryRowContext(ctx,
		"SELECT category_id, category_name FROM categories WHERE category_id = ?", id).Scan(&c.ID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category %d: %w", id, err)
	}
	return &c, nil
}

// ListAuthors returns a page of authors and the total count.
func (s *Store) ListAuthors(ctx context.Context, limit, offset int) ([]Author, int, error) {
	return s.queryAuthors(ctx, "", limit, offset)
}

// SearchAuthors returns authors whose name contains the given substring.
func (s *Store) SearchAuthors(ctx context.Context, name string, limit, offset int) ([]Author, int, error) {
	return s.queryAuthors(ctx, name, limit, offset)
}

func (s *Store) queryAuthors(ctx context.Context, name string, limit, offset int) ([]Author, int, error) {
	where, args := "", []any{}
	if name != "" {
		where = "WHERE author_name LIKE ?"
		args = append(args, "%"+name+"%")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM authors "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count authors: %w", err)
	}

	args = append(args, normalizeLimit(limit), offset)
	rows, err := s.db.QueryContext(ctx,
		"SELECT author_id, author_name FROM authors "+where+" ORDER BY author_id LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list authors: %w", err)
	}
	defer rows.Close()

	var out []Author
	for rows.Next() {
		var a Author
		if err := rows.Scan(&a.ID, &a.Name); err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

// GetAuthor returns a single author by id.
func (s *Store) GetAuthor(ctx context.Context, id int64) (*Author, error) {
	var a Author
	err := s.db.QueryRowContext(ctx,
		"SELECT author_id, author_name FROM authors WHERE author_id = ?", id).Scan(&a.ID, &a.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get author %d: %w", id, err)
	}
	return &a, nil
}

// GetBook returns a single book by id.
func (s *Store) GetBook(ctx context.Context, id int64) (*Book, error) {
	var b Book
	var hidden, printed, hasToc int
	err := s.db.QueryRowContext(ctx,
		`SELECT book_id, book_name, main_author_id, category_id, hidden, printed, has_toc
		 FROM books WHERE book_id = ?`, id).
		Scan(&b.ID, &b.Name, &b.MainAuthorID, &b.CategoryID, &hidden, &printed, &hasToc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get book %d: %w", id, err)
	}
	b.Hidden = hidden != 0
	b.Printed = printed != 0
	b.HasToc = hasToc != 0
	return &b, nil
}

// GetTableOfContents returns the ordered ToC entries for a book.
func (s *Store) GetTableOfContents(ctx context.Context, bookID int64) ([]types.TocEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, page_ref, parent_id, part, physical_page, COALESCE(title, '')
		 FROM toc WHERE book_id = ? ORDER BY id`, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to get toc for book %d: %w", bookID, err)
	}
	defer rows.Close()

	var out []types.TocEntry
	for rows.Next() {
		var e types.TocEntry
		if err := rows.Scan(&e.ID, &e.PageRef, &e.ParentID, &e.Part, &e.PhysicalPage, &e.Title); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}
