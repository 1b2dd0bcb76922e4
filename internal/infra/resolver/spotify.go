package resolver

import (
	"context"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/sacudo/sacudo/internal/domain/playlist"
	"github.com/sacudo/sacudo/internal/domain/track"
)

// SpotifyConfig holds the Spotify resolver settings.
type SpotifyConfig struct {
	ClientID     string `mapstructure:"client_id" validate:"required"`
	ClientSecret string `mapstructure:"client_secret" validate:"required"`
	Market       string `mapstructure:"market" default:"US" validate:"omitempty,len=2"`
}

// Spotify handles open.spotify.com links. Spotify streams cannot be
// played directly, so each track is rewritten to an "artist title" search
// and resolved through the delegate; playlists and albums are flattened
// the same way.
type Spotify struct {
	config   *SpotifyConfig
	client   *spotify.Client
	delegate Resolver
}

// NewSpotify creates a Spotify resolver. delegate resolves the rewritten
// search queries and must not be nil.
func NewSpotify(ctx context.Context, settings map[string]any, delegate Resolver) (*Spotify, error) {
	var config SpotifyConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}
	if delegate == nil {
		return nil, errors.New("spotify resolver needs a delegate resolver")
	}

	creds := &clientcredentials.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	client := spotify.New(creds.Client(ctx))

	return &Spotify{
		config:   &config,
		client:   client,
		delegate: delegate,
	}, nil
}

// Name returns the resolver name.
func (s *Spotify) Name() string {
	return "spotify"
}

// CanResolve claims open.spotify.com links.
func (s *Spotify) CanResolve(query string) bool {
	return strings.Contains(strings.ToLower(query), "open.spotify.com")
}

// Resolve looks the track up on Spotify and resolves the rewritten query
// through the delegate. The delegate's result keeps the Spotify title so
// chat and dashboard show the track the user actually asked for.
func (s *Spotify) Resolve(ctx context.Context, query string) (*track.Resolved, error) {
	kind, id, err := parseSpotifyLink(query)
	if err != nil {
		return nil, err
	}
	if kind != "track" {
		return nil, errors.Newf("spotify %s links must be expanded as playlists", kind)
	}

	t, err := s.client.GetTrack(ctx, spotify.ID(id), spotify.Market(s.config.Market))
	if err != nil {
		return nil, errors.Wrap(err, "failed to get track")
	}

	rewritten := searchQueryFor(t.Artists, t.Name)
	zlog.Debug().Str("spotify_id", id).Str("query", rewritten).Msg("resolver: rewrote spotify link")

	resolved, err := s.delegate.Resolve(ctx, rewritten)
	if err != nil {
		return nil, errors.Wrapf(err, "delegate failed for %q", rewritten)
	}
	resolved.Title = displayNameFor(t.Artists, t.Name)
	return resolved, nil
}

// ExpandPlaylist flattens a Spotify playlist or album into search-query
// entries for the queue.
func (s *Spotify) ExpandPlaylist(ctx context.Context, linkURL string) (*playlist.Playlist, error) {
	kind, id, err := parseSpotifyLink(linkURL)
	if err != nil {
		return nil, err
	}

	switch kind {
	case "playlist":
		return s.expandPlaylist(ctx, linkURL, id)
	case "album":
		return s.expandAlbum(ctx, linkURL, id)
	default:
		return nil, errors.Newf("spotify %s links cannot be expanded", kind)
	}
}

func (s *Spotify) expandPlaylist(ctx context.Context, linkURL, id string) (*playlist.Playlist, error) {
	pl := &playlist.Playlist{ID: id, URL: linkURL}

	meta, err := s.client.GetPlaylist(ctx, spotify.ID(id), spotify.Fields("name"))
	if err == nil {
		pl.Title = meta.Name
	}

	offset := 0
	const limit = 100
	for {
		page, err := s.client.GetPlaylistItems(ctx, spotify.ID(id),
			spotify.Limit(limit),
			spotify.Offset(offset),
			spotify.Market(s.config.Market),
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to get playlist items")
		}

		for _, item := range page.Items {
			t := item.Track.Track
			if t == nil || t.ID == "" {
				continue
			}
			pl.Entries = append(pl.Entries, playlist.Entry{
				URL:   searchQueryFor(t.Artists, t.Name),
				Title: displayNameFor(t.Artists, t.Name),
			})
		}

		if len(page.Items) < limit {
			break
		}
		offset += limit
	}
	return pl, nil
}

func (s *Spotify) expandAlbum(ctx context.Context, linkURL, id string) (*playlist.Playlist, error) {
	album, err := s.client.GetAlbum(ctx, spotify.ID(id), spotify.Market(s.config.Market))
	if err != nil {
		return nil, errors.Wrap(err, "failed to get album")
	}

	pl := &playlist.Playlist{ID: id, Title: album.Name, URL: linkURL}
	for _, t := range album.Tracks.Tracks {
		pl.Entries = append(pl.Entries, playlist.Entry{
			URL:   searchQueryFor(t.Artists, t.Name),
			Title: displayNameFor(t.Artists, t.Name),
		})
	}
	return pl, nil
}

// parseSpotifyLink extracts the resource kind and id out of an
// open.spotify.com link.
func parseSpotifyLink(link string) (kind, id string, err error) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return "", "", errors.Wrap(err, "invalid spotify link")
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	// Localized links carry a leading segment like /intl-de/track/...
	if len(parts) > 0 && strings.HasPrefix(parts[0], "intl-") {
		parts = parts[1:]
	}
	if len(parts) < 2 || parts[1] == "" {
		return "", "", errors.Newf("unrecognized spotify link: %s", link)
	}
	return parts[0], parts[1], nil
}

func searchQueryFor(artists []spotify.SimpleArtist, name string) string {
	if len(artists) == 0 {
		return name
	}
	return artists[0].Name + " " + name
}

func displayNameFor(artists []spotify.SimpleArtist, name string) string {
	if len(artists) == 0 {
		return name
	}
	return artists[0].Name + " - " + name
}
