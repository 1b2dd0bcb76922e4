// Package track provides the track domain entities.
package track

import (
	"net/url"
	"strings"
	"time"
)

// Volume bounds for playback. The resolver assigns DefaultVolume unless a
// per-guild override is configured.
const (
	MinVolume     = 0.0
	MaxVolume     = 1.5
	DefaultVolume = 0.75
)

// Requester identifies who asked for a track.
type Requester struct {
	ID   string // chat user ID
	Name string // display name
}

// Request is an unresolved play intent: a URL or free-text search plus
// bookkeeping. It stays ephemeral until the resolver turns it into a
// Resolved track.
type Request struct {
	Query     string // raw URL or search text, as typed
	Title     string // display title known before resolution (playlist entries)
	Requester Requester
	AddedAt   time.Time
}

// Identity is the canonical identity of a resolved track. It is computed
// once at resolution time and used everywhere equality or dedup is needed;
// raw query text is never compared after resolution.
type Identity string

// Equal reports whether two identities refer to the same track. The zero
// identity never equals anything, including itself.
func (id Identity) Equal(other Identity) bool {
	return id != "" && id == other
}

// Resolved is a playable track: the stable identity and the opaque stream
// handle obtained from the resolver.
type Resolved struct {
	Title        string
	Identity     Identity
	CanonicalURL string // stable page URL for display and dedup fallback
	ThumbnailURL string
	Duration     time.Duration // zero for live streams
	StreamURL    string        // opaque playable handle, consumed by the voice client
	Volume       float64       // 0.0-1.5
}

// NowPlaying is a Resolved track that is currently being streamed. Owned
// exclusively by its GuildSession. Request is the play intent that
// produced it; its literal query still participates in dedup, and its
// requester is shown in status surfaces.
type NowPlaying struct {
	Resolved
	Request   Request
	StartedAt time.Time
}

// ClampVolume bounds v to the supported volume range, substituting the
// default when v is not positive.
func ClampVolume(v float64) float64 {
	if v <= MinVolume {
		return DefaultVolume
	}
	if v > MaxVolume {
		return MaxVolume
	}
	return v
}

// CanonicalIdentity derives a stable identity from the resolver's id and
// canonical URL. The resolver id wins when present; otherwise the URL is
// normalized so that equivalent links dedup against each other.
func CanonicalIdentity(resolverID, canonicalURL string) Identity {
	if resolverID != "" {
		return Identity(resolverID)
	}
	if norm := NormalizeURL(canonicalURL); norm != "" {
		return Identity(norm)
	}
	return ""
}

// IdentityFromQuery derives an identity from raw query text before
// resolution, when the query is a URL whose video id can be extracted
// locally. Returns the zero identity for free-text searches.
func IdentityFromQuery(query string) Identity {
	if !IsURL(query) {
		return ""
	}
	if id := VideoID(query); id != "" {
		return Identity(id)
	}
	return Identity(NormalizeURL(query))
}

// IsURL reports whether the query looks like a link rather than search text.
func IsURL(query string) bool {
	q := strings.TrimSpace(query)
	return strings.HasPrefix(q, "http://") || strings.HasPrefix(q, "https://")
}

// VideoID extracts the YouTube video id from the common URL shapes
// (watch?v=, youtu.be/, shorts/, embed/). Returns "" for anything else.
func VideoID(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return ""
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	switch host {
	case "youtu.be":
		id := strings.TrimPrefix(u.Path, "/")
		if i := strings.IndexByte(id, '/'); i >= 0 {
			id = id[:i]
		}
		return id
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		if v := u.Query().Get("v"); v != "" {
			return v
		}
		for _, prefix := range []string{"/shorts/", "/embed/", "/live/"} {
			if rest, ok := strings.CutPrefix(u.Path, prefix); ok {
				if i := strings.IndexByte(rest, '/'); i >= 0 {
					rest = rest[:i]
				}
				return rest
			}
		}
	}
	return ""
}

// ThumbnailForVideo returns the standard thumbnail URL for a YouTube video
// id, or "" when the id is unknown.
func ThumbnailForVideo(videoID string) string {
	if videoID == "" {
		return ""
	}
	return "https://img.youtube.com/vi/" + videoID + "/hqdefault.jpg"
}

// NormalizeURL strips the parts of a URL that do not affect what plays:
// host case and www prefix, tracking query parameters, fragments and
// trailing slashes. Two equivalent links normalize to the same string.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return ""
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	path := strings.TrimRight(u.Path, "/")

	// Keep only parameters that select content.
	kept := url.Values{}
	for key, vals := range u.Query() {
		switch key {
		case "v", "list", "id":
			kept[key] = vals
		}
	}

	norm := host + path
	if enc := kept.Encode(); enc != "" {
		norm += "?" + enc
	}
	return norm
}
