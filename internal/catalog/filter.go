package catalog

import (
	"context"
	"fmt"
	"strings"
)

// BookFilter composes AND predicates over the books table. Nil pointer fields
// are not applied. Exported is resolved against the set of book ids known to
// the relational store, supplied by the caller.
type BookFilter struct {
	Name       string
	CategoryID *int64
	AuthorID   *int64
	Hidden     *bool
	Printed    *bool
	HasToc     *bool
	Exported   *bool
}

func (f BookFilter) where() (string, []any) {
	var preds []string
	var args []any

	if f.Name != "" {
		preds = append(preds, "book_name LIKE ?")
		args = append(args, "%"+f.Name+"%")
	}
	if f.CategoryID != nil {
		preds = append(preds, "category_id = ?")
		args = append(args, *f.CategoryID)
	}
	if f.AuthorID != nil {
		preds = append(preds, "main_author_id = ?")
		args = append(args, *f.AuthorID)
	}
	if f.Hidden != nil {
		preds = append(preds, "hidden = ?")
		args = append(args, boolToInt(*f.Hidden))
	}
	if f.Printed != nil {
		preds = append(preds, "printed = ?")
		args = append(args, boolToInt(*f.Printed))
	}
	if f.HasToc != nil {
		preds = append(preds, "has_toc = ?")
		args = append(args, boolToInt(*f.HasToc))
	}

	if len(preds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(preds, " AND "), args
}

// ListBooks returns a page of books matching the filter and the total count.
// The Exported predicate is applied against exportedIDs after the sqlite
// predicates; pass nil when the filter does not use it.
func (s *Store) ListBooks(ctx context.Context, f BookFilter, exportedIDs map[int64]struct{}, limit, offset int) ([]Book, int, error) {
	books, err := s.booksMatching(ctx, f, exportedIDs)
	if err != nil {
		return nil, 0, err
	}

	total := len(books)
	if offset >= total {
		return []Book{}, total, nil
	}
	end := offset + normalizeLimit(limit)
	if end > total {
		end = total
	}
	return books[offset:end], total, nil
}

// BookIDs returns all book ids matching the filter.
func (s *Store) BookIDs(ctx context.Context, f BookFilter, exportedIDs map[int64]struct{}) ([]int64, error) {
	books, err := s.booksMatching(ctx, f, exportedIDs)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(books))
	for i, b := range books {
		ids[i] = b.ID
	}
	return ids, nil
}

// booksMatching applies the sqlite predicates, then the exported intersection.
// The exported predicate cannot run in sqlite because the exported set lives
// in the operational store.
func (s *Store) booksMatching(ctx context.Context, f BookFilter, exportedIDs map[int64]struct{}) ([]Book, error) {
	where, args := f.where()
	rows, err := s.db.QueryContext(ctx,
		`SELECT book_id, book_name, main_author_id, category_id, hidden, printed, has_toc
		 FROM books `+where+` ORDER BY book_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	defer rows.Close()

	var out []Book
	for rows.Next() {
		var b Book
		var hidden, printed, hasToc int
		if err := rows.Scan(&b.ID, &b.Name, &b.MainAuthorID, &b.CategoryID, &hidden, &printed, &hasToc); err != nil {
			return nil, err
		}
		b.Hidden = hidden != 0
		b.Printed = printed != 0
		b.HasToc = hasToc != 0

		if f.Exported != nil {
			_, exported := exportedIDs[b.ID]
			if exported != *f.Exported {
				continue
			}
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
