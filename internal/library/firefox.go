package library

import (
	"database/sql"
	"fmt"
	"net/url"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Firefox reads places.sqlite. The file is opened immutable so a running
// browser holding the database is not disturbed.
type Firefox struct{}

const firefoxBookmarksQuery = `
SELECT COALESCE(b.title, ''), p.url
FROM moz_bookmarks b
JOIN moz_places p ON p.id = b.fk
WHERE b.type = 1
ORDER BY b.id`

func (Firefox) Bookmarks(path string) ([]Bookmark, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	dsn := (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs), RawQuery: "mode=ro&immutable=1"}).String()

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open places database %s: %w", path, err)
	}
	defer db.Close()

	rows, err := db.Query(firefoxBookmarksQuery)
	if err != nil {
		return nil, fmt.Errorf("query bookmarks %s: %w", path, err)
	}
	defer rows.Close()

	var out []Bookmark
	for rows.Next() {
		var b Bookmark
		if err := rows.Scan(&b.Title, &b.URL); err != nil {
			return nil, fmt.Errorf("scan bookmark %s: %w", path, err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read bookmarks %s: %w", path, err)
	}
	return out, nil
}
