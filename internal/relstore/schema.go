package relstore

// schemaStatements creates the operational schema. Author and category ids
// are the catalogue ids, not serials.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS authors (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS books (
		book_id BIGINT PRIMARY KEY,
		book_name TEXT NOT NULL,
		author_id BIGINT NOT NULL REFERENCES authors(id),
		category_id BIGINT NOT NULL REFERENCES categories(id),
		editor TEXT NOT NULL DEFAULT '',
		edition TEXT NOT NULL DEFAULT '',
		publisher TEXT NOT NULL DEFAULT '',
		num_volumes TEXT NOT NULL DEFAULT '',
		num_pages TEXT NOT NULL DEFAULT '',
		shamela_pub_date TEXT NOT NULL DEFAULT '',
		author_full TEXT NOT NULL DEFAULT '',
		parts JSONB NOT NULL DEFAULT '[]',
		table_of_contents JSONB NOT NULL DEFAULT '[]',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS pages (
		book_id BIGINT NOT NULL,
		page_id BIGINT NOT NULL,
		part_title TEXT NOT NULL DEFAULT '',
		page_num BIGINT NOT NULL,
		display_elem TEXT NOT NULL,
		PRIMARY KEY (book_id, page_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pages_book_page_num ON pages (book_id, page_num)`,
	`CREATE INDEX IF NOT EXISTS idx_pages_book_part ON pages (book_id, part_title)`,
	`CREATE INDEX IF NOT EXISTS idx_books_author ON books (author_id)`,
	`CREATE INDEX IF NOT EXISTS idx_books_category ON books (category_id)`,
}
