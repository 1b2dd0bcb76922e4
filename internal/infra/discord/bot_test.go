package discord

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"

	"github.com/sacudo/sacudo/internal/app/dispatcher"
	"github.com/sacudo/sacudo/internal/app/voice"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		content  string
		wantCmd  string
		wantArgs string
		wantOK   bool
	}{
		{
			name:    "play with query",
			prefix:  "!",
			content: "!play never gonna give you up",
			wantCmd: "play", wantArgs: "never gonna give you up", wantOK: true,
		},
		{
			name:    "bare command",
			prefix:  "!",
			content: "!skip",
			wantCmd: "skip", wantArgs: "", wantOK: true,
		},
		{
			name:    "uppercase command is normalized",
			prefix:  "!",
			content: "!PLAY something",
			wantCmd: "play", wantArgs: "something", wantOK: true,
		},
		{
			name:    "extra whitespace",
			prefix:  "!",
			content: "!play    https://youtu.be/abc  ",
			wantCmd: "play", wantArgs: "https://youtu.be/abc", wantOK: true,
		},
		{
			name:    "custom prefix",
			prefix:  "?",
			content: "?pause",
			wantCmd: "pause", wantArgs: "", wantOK: true,
		},
		{
			name:    "wrong prefix",
			prefix:  "!",
			content: "?play something",
			wantOK:  false,
		},
		{
			name:    "prefix only",
			prefix:  "!",
			content: "!",
			wantOK:  false,
		},
		{
			name:    "plain chatter",
			prefix:  "!",
			content: "just talking here",
			wantOK:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args, ok := parseCommand(tt.prefix, tt.content)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantCmd, cmd)
				assert.Equal(t, tt.wantArgs, args)
			}
		})
	}
}

func TestClassifyVoiceError(t *testing.T) {
	plain := errors.New("connection reset by peer")
	assert.False(t, errors.Is(classifyVoiceError(plain), voice.ErrSessionInvalid))

	invalid := errors.New("voice session no longer valid")
	assert.True(t, errors.Is(classifyVoiceError(invalid), voice.ErrSessionInvalid))

	code := errors.New("voice websocket closed: 4006")
	assert.True(t, errors.Is(classifyVoiceError(code), voice.ErrSessionInvalid))
}

func TestNowPlayingEmbed(t *testing.T) {
	embed := nowPlayingEmbed(&dispatcher.TrackSummary{
		Title:     "Song A",
		URL:       "https://youtu.be/abc",
		Thumbnail: "https://img.youtube.com/vi/abc/hqdefault.jpg",
		Requester: "tester",
	})

	assert.Equal(t, "Now Playing", embed.Title)
	assert.Contains(t, embed.Description, "Song A")
	assert.Contains(t, embed.Description, "https://youtu.be/abc")
	assert.Equal(t, "https://img.youtube.com/vi/abc/hqdefault.jpg", embed.Thumbnail.URL)
	assert.Equal(t, "requested by tester", embed.Footer.Text)

	bare := nowPlayingEmbed(&dispatcher.TrackSummary{Title: "Song B", URL: "u"})
	assert.Nil(t, bare.Thumbnail)
	assert.Nil(t, bare.Footer)
}

func TestPlanEmbed(t *testing.T) {
	current := &dispatcher.TrackSummary{Title: "Song A", URL: "https://youtu.be/abc"}

	tests := []struct {
		name        string
		haveMessage bool
		shownURL    string
		current     *dispatcher.TrackSummary
		want        embedAction
	}{
		{name: "first track posts", current: current, want: embedPost},
		{name: "same track is left alone", haveMessage: true, shownURL: current.URL, current: current, want: embedNone},
		{name: "pause and resume reuse the embed", haveMessage: true, shownURL: current.URL, current: current, want: embedNone},
		{name: "new track replaces the embed", haveMessage: true, shownURL: "https://youtu.be/old", current: current, want: embedPost},
		{name: "queue drained edits to idle", haveMessage: true, shownURL: current.URL, want: embedEditIdle},
		{name: "idle with no embed does nothing", want: embedNone},
		{name: "idle embed stays idle", haveMessage: true, want: embedNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, planEmbed(tt.haveMessage, tt.shownURL, tt.current))
		})
	}
}

func TestIdleEmbed(t *testing.T) {
	embed := idleEmbed("Queue finished.")
	assert.Equal(t, "Now Playing", embed.Title)
	assert.Equal(t, "Queue finished.", embed.Description)
}
