package playlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPlaylistURL(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected bool
	}{
		{
			name:     "youtube playlist link",
			query:    "https://www.youtube.com/playlist?list=PL1234567890",
			expected: true,
		},
		{
			name:     "watch link with list param",
			query:    "https://www.youtube.com/watch?v=abc&list=PL1234567890",
			expected: true,
		},
		{
			name:     "plain watch link",
			query:    "https://www.youtube.com/watch?v=abc",
			expected: false,
		},
		{
			name:     "spotify playlist",
			query:    "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M",
			expected: true,
		},
		{
			name:     "spotify album",
			query:    "https://open.spotify.com/album/4aawyAB9vmqN3uQ7FjRGTy",
			expected: true,
		},
		{
			name:     "spotify single track",
			query:    "https://open.spotify.com/track/11dFghVXANMlKmJXsNCbNl",
			expected: false,
		},
		{
			name:     "free text",
			query:    "playlist of 80s hits",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsPlaylistURL(tt.query))
		})
	}
}

func TestPlaylist_Queries(t *testing.T) {
	p := &Playlist{
		ID:    "PL123",
		Title: "Mix",
		Entries: []Entry{
			{URL: "https://youtu.be/a", Title: "A"},
			{URL: "https://youtu.be/b", Title: "B"},
		},
	}
	assert.Equal(t, []string{"https://youtu.be/a", "https://youtu.be/b"}, p.Queries())

	empty := &Playlist{}
	assert.Empty(t, empty.Queries())
}
