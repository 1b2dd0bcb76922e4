package resolver

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	ytdlp "github.com/lrstanley/go-ytdlp"
	"github.com/mitchellh/mapstructure"
	"github.com/ppalone/ytsearch"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/sacudo/sacudo/internal/domain/playlist"
	"github.com/sacudo/sacudo/internal/domain/track"
)

// YtdlpConfig holds the yt-dlp resolver settings.
type YtdlpConfig struct {
	SearchResults     int `mapstructure:"search_results" default:"5" validate:"gte=1,lte=20"`
	PlaylistLimit     int `mapstructure:"playlist_limit" default:"50" validate:"gte=1,lte=500"`
	RequestsPerMinute int `mapstructure:"requests_per_minute" default:"30" validate:"gte=1,lte=300"`
}

// Ytdlp resolves URLs and free-text searches through yt-dlp. It is the
// chain's catch-all: any query except Spotify links lands here. Free text
// goes through a YouTube search first; the top hit is then resolved as a
// URL. Extraction calls are rate limited process-wide.
type Ytdlp struct {
	config  *YtdlpConfig
	search  *ytsearch.Client
	limiter *rate.Limiter
}

// NewYtdlp creates a yt-dlp resolver from its settings map.
func NewYtdlp(settings map[string]any) (*Ytdlp, error) {
	var config YtdlpConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	return &Ytdlp{
		config:  &config,
		search:  ytsearch.NewClient(nil),
		limiter: rate.NewLimiter(rate.Limit(float64(config.RequestsPerMinute)/60.0), 1),
	}, nil
}

// Name returns the resolver name.
func (y *Ytdlp) Name() string {
	return "ytdlp"
}

// CanResolve claims every query that is not a Spotify link.
func (y *Ytdlp) CanResolve(query string) bool {
	return !strings.Contains(strings.ToLower(query), "open.spotify.com")
}

// Resolve resolves a URL or free-text query into a playable track.
func (y *Ytdlp) Resolve(ctx context.Context, query string) (*track.Resolved, error) {
	pageURL := strings.TrimSpace(query)
	if !track.IsURL(pageURL) {
		found, err := y.searchFirst(ctx, pageURL)
		if err != nil {
			return nil, err
		}
		pageURL = found
	}

	if err := y.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "rate limit wait")
	}

	res, err := ytdlp.New().
		Print("%(id)s\t%(title)s\t%(webpage_url)s\t%(duration)s\t%(url)s").
		Format("bestaudio[ext=webm]/bestaudio").
		NoPlaylist().
		NoWarnings().
		IgnoreConfig().
		Run(ctx, "--skip-download", pageURL)
	if err != nil {
		return nil, errors.Wrapf(err, "yt-dlp extraction failed for %s", pageURL)
	}

	for _, line := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		fields := strings.Split(line, "\t")
		if len(fields) < 5 {
			continue
		}
		duration, _ := time.ParseDuration(fields[3] + "s")
		id := fields[0]
		return &track.Resolved{
			Title:        fields[1],
			Identity:     track.CanonicalIdentity(id, fields[2]),
			CanonicalURL: fields[2],
			ThumbnailURL: track.ThumbnailForVideo(id),
			Duration:     duration,
			StreamURL:    fields[4],
		}, nil
	}
	return nil, errors.Newf("yt-dlp returned no usable metadata for %s", pageURL)
}

// searchFirst finds the top video for a free-text query.
func (y *Ytdlp) searchFirst(ctx context.Context, query string) (string, error) {
	res, err := y.search.Search(ctx, query)
	if err != nil {
		return "", errors.Wrapf(err, "search failed for %q", query)
	}
	for _, r := range res.Results {
		if r.VideoID == "" {
			continue
		}
		zlog.Debug().Str("query", query).Str("video", r.VideoID).Str("title", r.Title).Msg("resolver: search hit")
		return "https://www.youtube.com/watch?v=" + r.VideoID, nil
	}
	return "", errors.Newf("no results for %q", query)
}

// ExpandPlaylist flattens a playlist URL without resolving streams.
func (y *Ytdlp) ExpandPlaylist(ctx context.Context, url string) (*playlist.Playlist, error) {
	if err := y.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "rate limit wait")
	}

	res, err := ytdlp.New().
		FlatPlaylist().
		Print("%(url)s\t%(title)s\t%(playlist_id)s\t%(playlist_title)s").
		PlaylistItems("1-" + strconv.Itoa(y.config.PlaylistLimit)).
		NoWarnings().
		IgnoreConfig().
		Run(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "yt-dlp playlist extraction failed for %s", url)
	}

	pl := &playlist.Playlist{URL: url}
	for _, line := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		fields := strings.Split(line, "\t")
		if len(fields) < 4 {
			continue
		}
		if pl.ID == "" {
			pl.ID = fields[2]
			pl.Title = fields[3]
		}
		pl.Entries = append(pl.Entries, playlist.Entry{URL: fields[0], Title: fields[1]})
	}
	if len(pl.Entries) == 0 {
		return nil, errors.Newf("playlist %s has no entries", url)
	}
	return pl, nil
}
