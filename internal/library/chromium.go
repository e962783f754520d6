package library

import (
	"encoding/json"
	"fmt"
	"os"
)

type Chromium struct{}

type chromiumFile struct {
	Roots struct {
		BookmarkBar *chromiumNode `json:"bookmark_bar"`
		Other       *chromiumNode `json:"other"`
		Synced      *chromiumNode `json:"synced"`
	} `json:"roots"`
}

type chromiumNode struct {
	Name     string          `json:"name"`
	Type     string          `json:"type"`
	URL      *string         `json:"url"`
	Children []*chromiumNode `json:"children"`
}

func (Chromium) Bookmarks(path string) ([]Bookmark, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bookmarks %s: %w", path, err)
	}
	var f chromiumFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse bookmarks %s: %w", path, err)
	}

	var out []Bookmark
	for _, root := range []*chromiumNode{f.Roots.BookmarkBar, f.Roots.Other, f.Roots.Synced} {
		if root == nil {
			continue
		}
		if err := collectChromium(root, &out); err != nil {
			return nil, fmt.Errorf("parse bookmarks %s: %w", path, err)
		}
	}
	return out, nil
}

func collectChromium(n *chromiumNode, out *[]Bookmark) error {
	switch {
	case n.Children != nil:
		for _, c := range n.Children {
			if err := collectChromium(c, out); err != nil {
				return err
			}
		}
		return nil
	case n.URL != nil:
		*out = append(*out, Bookmark{Title: n.Name, URL: *n.URL})
		return nil
	case n.Type == "folder":
		return nil
	default:
		return fmt.Errorf("cannot parse bookmark %q: neither folder nor url", n.Name)
	}
}
