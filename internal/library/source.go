package library

import (
	"path/filepath"
	"strings"
)

type Bookmark struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Source reads every bookmark stored in one browser profile file.
type Source interface {
	Bookmarks(path string) ([]Bookmark, error)
}

// SourceFor picks the reader by file name: Firefox keeps bookmarks in
// places.sqlite, Chromium-based browsers in a JSON file named Bookmarks.
func SourceFor(path string) Source {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".sqlite", ".sqlite3", ".db":
		return Firefox{}
	default:
		return Chromium{}
	}
}
