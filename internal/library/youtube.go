package library

import (
	"fmt"
	"net/url"
	"strings"
)

var youtubeHosts = map[string]bool{
	"youtube.com":       true,
	"www.youtube.com":   true,
	"m.youtube.com":     true,
	"www.m.youtube.com": true,
	"music.youtube.com": true,
}

// VideoID extracts the video id from a YouTube watch URL or a youtu.be
// short link. Other URLs report ok=false; only unparsable input is an error.
func VideoID(rawURL string) (string, bool, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", false, fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	if u.Scheme == "" {
		return "", false, fmt.Errorf("parse url %q: relative url without a base", rawURL)
	}

	host := strings.ToLower(u.Hostname())
	segments := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")

	if host == "youtu.be" {
		id := segments[0]
		return id, id != "", nil
	}
	if !youtubeHosts[host] || segments[0] != "watch" {
		return "", false, nil
	}
	id := u.Query().Get("v")
	return id, id != "", nil
}

// VideoIDs maps bookmarks to unique video ids in first-seen order. URLs that
// cannot be parsed are returned separately.
func VideoIDs(bookmarks []Bookmark) ([]string, []error) {
	seen := make(map[string]bool, len(bookmarks))
	var ids []string
	var errs []error
	for _, b := range bookmarks {
		id, ok, err := VideoID(b.URL)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, errs
}
