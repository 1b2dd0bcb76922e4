// Package dispatcher exposes the per-guild playback operations to every
// command surface (chat, HTTP, websocket) and relays playback events to
// dashboard subscribers.
package dispatcher

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/sacudo/sacudo/internal/app/playback"
	"github.com/sacudo/sacudo/internal/app/queue"
	"github.com/sacudo/sacudo/internal/app/session"
	"github.com/sacudo/sacudo/internal/domain/playlist"
	"github.com/sacudo/sacudo/internal/domain/track"
)

// PlaylistExpander turns a playlist URL into its individual entries.
type PlaylistExpander interface {
	Expand(ctx context.Context, url string) (*playlist.Playlist, error)
}

// PlayResult describes what a play request did.
type PlayResult struct {
	Started       bool   // playback started with this request
	Queued        int    // entries added to the queue
	PlaylistTitle string // set when the request expanded a playlist
}

// Dispatcher routes operations to guild sessions and broadcasts the
// resulting state changes.
type Dispatcher struct {
	registry  *session.Registry
	playlists PlaylistExpander // nil disables playlist expansion
	events    *Broadcaster

	mu      sync.Mutex
	relayed map[string]bool
}

// New creates a dispatcher on top of the session registry.
func New(registry *session.Registry, playlists PlaylistExpander) *Dispatcher {
	return &Dispatcher{
		registry:  registry,
		playlists: playlists,
		events:    NewBroadcaster(),
		relayed:   make(map[string]bool),
	}
}

// Events returns the broadcaster for subscriber surfaces.
func (d *Dispatcher) Events() *Broadcaster {
	return d.events
}

// Session returns the guild's session, creating it and starting its event
// relay on first use.
func (d *Dispatcher) Session(guildID string) *session.Session {
	s := d.registry.GetOrCreate(guildID)

	d.mu.Lock()
	needRelay := !d.relayed[guildID]
	if needRelay {
		d.relayed[guildID] = true
	}
	d.mu.Unlock()

	if needRelay {
		go d.relay(s.Controller)
	}
	return s
}

// SessionIfExists returns the guild's session without creating one.
func (d *Dispatcher) SessionIfExists(guildID string) (*session.Session, error) {
	return d.registry.Get(guildID)
}

// Play enqueues a request for the guild. Playlist URLs are expanded: the
// first entry starts (or queues) immediately: the rest are appended,
// skipping duplicates.
func (d *Dispatcher) Play(ctx context.Context, guildID, voiceChannelID string, req track.Request) (PlayResult, error) {
	s := d.Session(guildID)

	if d.playlists != nil && playlist.IsPlaylistURL(req.Query) {
		return d.playPlaylist(ctx, s, voiceChannelID, req)
	}

	started, err := s.Controller.Enqueue(ctx, voiceChannelID, req)
	if err != nil {
		return PlayResult{}, err
	}
	return PlayResult{Started: started, Queued: 1}, nil
}

func (d *Dispatcher) playPlaylist(ctx context.Context, s *session.Session, voiceChannelID string, req track.Request) (PlayResult, error) {
	pl, err := d.playlists.Expand(ctx, req.Query)
	if err != nil {
		return PlayResult{}, errors.Wrap(err, "expand playlist")
	}
	if len(pl.Entries) == 0 {
		return PlayResult{}, errors.Newf("playlist %q has no entries", pl.Title)
	}

	result := PlayResult{PlaylistTitle: pl.Title}
	for i, en := range pl.Entries {
		entry := req
		entry.Query = en.URL
		entry.Title = en.Title
		started, err := s.Controller.Enqueue(ctx, voiceChannelID, entry)
		if err != nil {
			if errors.Is(err, queue.ErrDuplicate) {
				continue
			}
			if i == 0 {
				return PlayResult{}, err
			}
			zlog.Warn().Str("guild", s.GuildID).Str("query", en.URL).Msgf("dispatcher: playlist entry rejected: %v", err)
			continue
		}
		result.Queued++
		result.Started = result.Started || started
	}
	return result, nil
}

// Skip advances the guild to its next track.
func (d *Dispatcher) Skip(ctx context.Context, guildID string) error {
	return d.Session(guildID).Controller.Skip(ctx)
}

// Pause pauses the guild's playback.
func (d *Dispatcher) Pause(guildID string) error {
	return d.Session(guildID).Controller.Pause()
}

// Resume resumes the guild's playback.
func (d *Dispatcher) Resume(ctx context.Context, guildID string) error {
	return d.Session(guildID).Controller.Resume(ctx)
}

// Stop clears the guild's queue and leaves voice.
func (d *Dispatcher) Stop(guildID string) error {
	return d.Session(guildID).Controller.Stop()
}

// State returns the guild's playback snapshot. Guilds never seen return
// ErrUnknownGuild rather than silently creating a session.
func (d *Dispatcher) State(guildID string) (playback.Status, error) {
	s, err := d.registry.Get(guildID)
	if err != nil {
		return playback.Status{}, err
	}
	return s.Controller.Status(), nil
}

// HandleVoiceDisconnect routes an unexpected voice drop to the guild's
// controller. Unknown guilds are ignored; there is nothing to clean up.
func (d *Dispatcher) HandleVoiceDisconnect(guildID string, cause error) {
	s, err := d.registry.Get(guildID)
	if err != nil {
		return
	}
	s.Controller.HandleVoiceDisconnect(cause)
}

// Guilds returns all guilds with a session.
func (d *Dispatcher) Guilds() []string {
	return d.registry.GuildIDs()
}

// relay consumes one controller's events and turns them into subscriber
// updates. Runs for the controller's lifetime.
func (d *Dispatcher) relay(c *playback.Controller) {
	for e := range c.Events() {
		st := c.Status()
		switch e.Type {
		case playback.EventQueueUpdated:
			d.events.Broadcast(StatusUpdate(UpdateQueue, e.GuildID, st, nil))
		case playback.EventPlaybackFailed:
			d.events.Broadcast(StatusUpdate(UpdateSong, e.GuildID, st, e.Err))
		default:
			d.events.Broadcast(StatusUpdate(UpdateSong, e.GuildID, st, nil))
		}
	}
}
