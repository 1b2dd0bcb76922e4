// Package resolver turns play requests into playable tracks. Resolvers
// are configured as an ordered chain; a request goes to the first
// resolver that claims it.
package resolver

import (
	"context"

	"github.com/sacudo/sacudo/internal/domain/playlist"
	"github.com/sacudo/sacudo/internal/domain/track"
)

// Resolver resolves one class of queries into playable tracks.
type Resolver interface {
	// CanResolve reports whether this resolver wants the query.
	CanResolve(query string) bool

	// Resolve turns the query into a playable track.
	Resolve(ctx context.Context, query string) (*track.Resolved, error)

	// Name returns the resolver name (used in config).
	Name() string
}

// PlaylistExpander is implemented by resolvers that can expand playlist
// URLs into their entries.
type PlaylistExpander interface {
	ExpandPlaylist(ctx context.Context, url string) (*playlist.Playlist, error)
}
