// Package playlist provides the Playlist domain entity.
package playlist

import (
	"net/url"
	"strings"
)

// Entry is a single playlist item: enough to enqueue it as a track request
// without resolving the full stream up front.
type Entry struct {
	URL   string // page URL, used as the queued query
	Title string
}

// Playlist is a flattened playlist: entries only, no stream handles.
type Playlist struct {
	ID      string
	Title   string
	URL     string
	Entries []Entry
}

// Queries returns the per-entry queries in playlist order.
func (p *Playlist) Queries() []string {
	out := make([]string, len(p.Entries))
	for i, e := range p.Entries {
		out[i] = e.URL
	}
	return out
}

// IsPlaylistURL reports whether a query refers to a playlist rather than a
// single track: a YouTube list= link or a Spotify playlist/album link.
func IsPlaylistURL(query string) bool {
	q := strings.TrimSpace(query)
	if !strings.HasPrefix(q, "http://") && !strings.HasPrefix(q, "https://") {
		return false
	}
	u, err := url.Parse(q)
	if err != nil {
		return false
	}
	if u.Query().Get("list") != "" {
		return true
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	if host == "open.spotify.com" {
		return strings.Contains(u.Path, "/playlist/") || strings.Contains(u.Path, "/album/")
	}
	return false
}
