package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSpotifyLink(t *testing.T) {
	tests := []struct {
		name     string
		link     string
		wantKind string
		wantID   string
		wantErr  bool
	}{
		{
			name:     "track link",
			link:     "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC",
			wantKind: "track",
			wantID:   "4uLU6hMCjMI75M1A2tKUQC",
		},
		{
			name:     "playlist link",
			link:     "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M",
			wantKind: "playlist",
			wantID:   "37i9dQZF1DXcBWIGoYBM5M",
		},
		{
			name:     "album link",
			link:     "https://open.spotify.com/album/6dVIqQ8qmQ5GBnJ9shOYGE",
			wantKind: "album",
			wantID:   "6dVIqQ8qmQ5GBnJ9shOYGE",
		},
		{
			name:     "localized link",
			link:     "https://open.spotify.com/intl-de/track/4uLU6hMCjMI75M1A2tKUQC",
			wantKind: "track",
			wantID:   "4uLU6hMCjMI75M1A2tKUQC",
		},
		{
			name:     "link with query params",
			link:     "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC?si=abc123",
			wantKind: "track",
			wantID:   "4uLU6hMCjMI75M1A2tKUQC",
		},
		{
			name:    "bare host",
			link:    "https://open.spotify.com/",
			wantErr: true,
		},
		{
			name:    "missing id",
			link:    "https://open.spotify.com/track/",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, id, err := parseSpotifyLink(tt.link)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestNewSpotify_Settings(t *testing.T) {
	delegate := &fakeResolver{name: "ytdlp"}

	_, err := NewSpotify(context.Background(), map[string]any{"client_secret": "secret"}, delegate)
	assert.Error(t, err, "client_id is required")

	_, err = NewSpotify(context.Background(), map[string]any{
		"client_id":     "id",
		"client_secret": "secret",
	}, nil)
	assert.Error(t, err, "a delegate is required")

	s, err := NewSpotify(context.Background(), map[string]any{
		"client_id":     "id",
		"client_secret": "secret",
	}, delegate)
	require.NoError(t, err)
	assert.Equal(t, "spotify", s.Name())
	assert.Equal(t, "US", s.config.Market)
}

func TestSpotifyCanResolve(t *testing.T) {
	s := &Spotify{}

	assert.True(t, s.CanResolve("https://open.spotify.com/track/abc"))
	assert.True(t, s.CanResolve("HTTPS://OPEN.SPOTIFY.COM/playlist/xyz"))
	assert.False(t, s.CanResolve("https://www.youtube.com/watch?v=abc"))
	assert.False(t, s.CanResolve("free text query"))
}
