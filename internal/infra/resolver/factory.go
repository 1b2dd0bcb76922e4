package resolver

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/sacudo/sacudo/internal/infra/config"
)

// Resolver types accepted in configuration.
const (
	TypeYtdlp   = "ytdlp"
	TypeSpotify = "spotify"
)

// NewChainFromConfig creates a resolver chain from configuration. The
// chain keeps the configured order; a Spotify resolver delegates its
// rewritten queries to the ytdlp resolver, so one must be configured
// alongside it.
func NewChainFromConfig(ctx context.Context, cfg *config.Config) (*Chain, error) {
	if len(cfg.Resolvers) == 0 {
		return nil, errors.New("no resolvers configured")
	}

	// The ytdlp resolver doubles as the delegate for link rewriters, so
	// it is built first regardless of its position in the chain.
	var ytdlpResolver *Ytdlp
	for _, rcfg := range cfg.Resolvers {
		if rcfg.Type == TypeYtdlp {
			r, err := NewYtdlp(rcfg.Settings)
			if err != nil {
				return nil, errors.Wrap(err, "failed to create ytdlp resolver")
			}
			ytdlpResolver = r
			break
		}
	}

	var resolvers []Resolver
	for i, rcfg := range cfg.Resolvers {
		zlog.Debug().Msgf("creating resolver: index=%d type=%s", i+1, rcfg.Type)

		switch rcfg.Type {
		case TypeYtdlp:
			if ytdlpResolver == nil {
				return nil, errors.New("ytdlp resolver missing")
			}
			resolvers = append(resolvers, ytdlpResolver)

		case TypeSpotify:
			if ytdlpResolver == nil {
				return nil, errors.New("spotify resolver requires a ytdlp resolver in the chain")
			}
			r, err := NewSpotify(ctx, rcfg.Settings, ytdlpResolver)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to create spotify resolver (index %d)", i)
			}
			resolvers = append(resolvers, r)

		default:
			return nil, errors.Newf("unsupported resolver type: %s (index %d)", rcfg.Type, i)
		}

		zlog.Info().Msgf("registered resolver: index=%d type=%s", i+1, rcfg.Type)
	}

	return NewChain(resolvers), nil
}
