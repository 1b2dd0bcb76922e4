package resolver

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/sacudo/sacudo/internal/domain/playlist"
	"github.com/sacudo/sacudo/internal/domain/track"
)

// ErrNoResolver is returned when no resolver in the chain claims a query.
var ErrNoResolver = errors.New("no resolver can handle this query")

// Chain routes each query to the first resolver that claims it. When a
// claiming resolver fails the remaining claimants are tried in order.
type Chain struct {
	resolvers []Resolver
}

// NewChain creates a chain over the given resolvers, tried in order.
func NewChain(resolvers []Resolver) *Chain {
	return &Chain{resolvers: resolvers}
}

// Resolve resolves a query through the chain.
func (c *Chain) Resolve(ctx context.Context, query string) (*track.Resolved, error) {
	var lastErr error
	claimed := false

	for _, r := range c.resolvers {
		if !r.CanResolve(query) {
			continue
		}
		claimed = true

		resolved, err := r.Resolve(ctx, query)
		if err != nil {
			zlog.Warn().Str("resolver", r.Name()).Str("query", query).Msgf("resolver failed, trying next: %v", err)
			lastErr = err
			continue
		}
		return resolved, nil
	}

	if !claimed {
		return nil, errors.Wrapf(ErrNoResolver, "query %q", query)
	}
	return nil, lastErr
}

// Expand expands a playlist URL through the first claiming resolver that
// supports playlists.
func (c *Chain) Expand(ctx context.Context, url string) (*playlist.Playlist, error) {
	var lastErr error
	for _, r := range c.resolvers {
		exp, ok := r.(PlaylistExpander)
		if !ok || !r.CanResolve(url) {
			continue
		}
		pl, err := exp.ExpandPlaylist(ctx, url)
		if err != nil {
			zlog.Warn().Str("resolver", r.Name()).Str("url", url).Msgf("playlist expansion failed, trying next: %v", err)
			lastErr = err
			continue
		}
		return pl, nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.Wrapf(ErrNoResolver, "playlist %q", url)
}

// Names returns the resolver names in chain order.
func (c *Chain) Names() []string {
	names := make([]string, 0, len(c.resolvers))
	for _, r := range c.resolvers {
		names = append(names, r.Name())
	}
	return names
}
