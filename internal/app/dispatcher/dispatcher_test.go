package dispatcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sacudo/sacudo/internal/app/playback"
	"github.com/sacudo/sacudo/internal/app/session"
	"github.com/sacudo/sacudo/internal/app/voice"
	"github.com/sacudo/sacudo/internal/domain/playlist"
	"github.com/sacudo/sacudo/internal/domain/track"
)

type stubResolver struct {
	mu     sync.Mutex
	tracks map[string]*track.Resolved
}

func (r *stubResolver) add(query, id, title string) {
	if r.tracks == nil {
		r.tracks = map[string]*track.Resolved{}
	}
	r.tracks[query] = &track.Resolved{
		Title:        title,
		Identity:     track.Identity(id),
		CanonicalURL: "https://example.com/" + id,
		StreamURL:    "https://cdn.example.com/" + id,
		Volume:       track.DefaultVolume,
	}
}

func (r *stubResolver) Resolve(ctx context.Context, query string) (*track.Resolved, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tracks[query]; ok {
		copied := *t
		return &copied, nil
	}
	return nil, errors.Newf("no result for %q", query)
}

type stubConn struct {
	mu      sync.Mutex
	channel string
	playing bool
	paused  bool
}

func (c *stubConn) Play(string, float64, func(error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playing = true
	c.paused = false
	return nil
}
func (c *stubConn) Stop() {
	c.mu.Lock()
	c.playing = false
	c.mu.Unlock()
}
func (c *stubConn) Pause() error {
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()
	return nil
}
func (c *stubConn) Resume() error {
	c.mu.Lock()
	c.paused = false
	c.mu.Unlock()
	return nil
}
func (c *stubConn) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing && !c.paused
}
func (c *stubConn) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}
func (c *stubConn) ChannelID() string { return c.channel }
func (c *stubConn) Disconnect() error { return nil }

type stubVoiceClient struct{}

func (stubVoiceClient) Connect(ctx context.Context, guildID, channelID string) (voice.Conn, error) {
	return &stubConn{channel: channelID}, nil
}

type stubExpander struct {
	playlists map[string]*playlist.Playlist
}

func (e *stubExpander) Expand(ctx context.Context, url string) (*playlist.Playlist, error) {
	if pl, ok := e.playlists[url]; ok {
		return pl, nil
	}
	return nil, errors.Newf("no playlist at %s", url)
}

type recordingStream struct {
	mu      sync.Mutex
	updates []*Update
}

func (s *recordingStream) Send(u *Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, u)
	return nil
}

func (s *recordingStream) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

func newTestDispatcher(resolver playback.Resolver, expander PlaylistExpander) *Dispatcher {
	registry := session.NewRegistry(func(guildID string) *playback.Controller {
		sup := voice.NewSupervisor(stubVoiceClient{}, guildID, voice.Config{
			MaxAttempts: 1,
			BaseDelay:   time.Millisecond,
		})
		return playback.NewController(guildID, playback.Config{}, resolver, sup)
	})
	return New(registry, expander)
}

func TestDispatcherPlaySingleTrack(t *testing.T) {
	resolver := &stubResolver{}
	resolver.add("song a", "yt:a", "Song A")
	d := newTestDispatcher(resolver, nil)

	res, err := d.Play(context.Background(), "guild-1", "chan-1", track.Request{Query: "song a"})
	require.NoError(t, err)
	assert.True(t, res.Started)
	assert.Equal(t, 1, res.Queued)

	st, err := d.State("guild-1")
	require.NoError(t, err)
	assert.Equal(t, playback.StatePlaying, st.State)
	assert.Equal(t, "Song A", st.NowPlaying.Title)
}

func TestDispatcherPlayPlaylist(t *testing.T) {
	resolver := &stubResolver{}
	resolver.add("https://youtube.com/watch?v=a", "yt:a", "Song A")
	resolver.add("https://youtube.com/watch?v=b", "yt:b", "Song B")
	resolver.add("https://youtube.com/watch?v=c", "yt:c", "Song C")

	listURL := "https://youtube.com/playlist?list=PL123"
	expander := &stubExpander{playlists: map[string]*playlist.Playlist{
		listURL: {
			Title: "Mix",
			URL:   listURL,
			Entries: []playlist.Entry{
				{URL: "https://youtube.com/watch?v=a", Title: "Song A"},
				{URL: "https://youtube.com/watch?v=b", Title: "Song B"},
				{URL: "https://youtube.com/watch?v=c", Title: "Song C"},
			},
		},
	}}
	d := newTestDispatcher(resolver, expander)

	res, err := d.Play(context.Background(), "guild-1", "chan-1", track.Request{Query: listURL})
	require.NoError(t, err)
	assert.True(t, res.Started, "the first playlist entry starts playback")
	assert.Equal(t, 3, res.Queued)
	assert.Equal(t, "Mix", res.PlaylistTitle)

	st, err := d.State("guild-1")
	require.NoError(t, err)
	assert.Equal(t, "Song A", st.NowPlaying.Title)
	require.Len(t, st.Queue, 2, "the remaining entries wait in the queue")
	assert.Equal(t, "Song B", st.Queue[0].Request.Title, "playlist titles travel with the queued entries")
	assert.Equal(t, "Song C", st.Queue[1].Request.Title)
}

func TestStatusUpdateWireShape(t *testing.T) {
	resolver := &stubResolver{}
	resolver.add("song a", "yt:a", "Song A")
	d := newTestDispatcher(resolver, nil)

	req := track.Request{Query: "song a", Requester: track.Requester{Name: "tester"}}
	_, err := d.Play(context.Background(), "guild-1", "chan-1", req)
	require.NoError(t, err)
	res, err := d.Play(context.Background(), "guild-1", "chan-1", track.Request{
		Query:     "https://www.youtube.com/watch?v=xyz123",
		Requester: track.Requester{Name: "tester"},
	})
	require.NoError(t, err)
	assert.False(t, res.Started, "a second request queues behind the live track")

	st, err := d.State("guild-1")
	require.NoError(t, err)
	u := StatusUpdate(UpdateSong, "guild-1", st, nil)

	require.NotNil(t, u.Current)
	assert.Equal(t, "https://example.com/yt:a", u.Current.URL)
	assert.Equal(t, "tester", u.Current.Requester, "the now-playing summary names its requester")

	require.Len(t, u.Queue, 1)
	it := u.Queue[0]
	assert.Equal(t, "https://www.youtube.com/watch?v=xyz123", it.URL)
	assert.Empty(t, it.Title, "no title is known before resolution")
	assert.Equal(t, "https://img.youtube.com/vi/xyz123/hqdefault.jpg", it.Thumbnail)
	assert.Equal(t, "tester", it.Requester)
}

func TestDispatcherPlayEmptyPlaylist(t *testing.T) {
	listURL := "https://youtube.com/playlist?list=PLempty"
	expander := &stubExpander{playlists: map[string]*playlist.Playlist{
		listURL: {Title: "Empty", URL: listURL},
	}}
	d := newTestDispatcher(&stubResolver{}, expander)

	_, err := d.Play(context.Background(), "guild-1", "chan-1", track.Request{Query: listURL})
	assert.Error(t, err)
}

func TestDispatcherStateUnknownGuild(t *testing.T) {
	d := newTestDispatcher(&stubResolver{}, nil)

	_, err := d.State("guild-1")
	assert.ErrorIs(t, err, session.ErrUnknownGuild)
	assert.Empty(t, d.Guilds(), "state queries must not create sessions")
}

func TestDispatcherGuilds(t *testing.T) {
	resolver := &stubResolver{}
	resolver.add("song a", "yt:a", "Song A")
	d := newTestDispatcher(resolver, nil)

	_, err := d.Play(context.Background(), "guild-b", "chan-1", track.Request{Query: "song a"})
	require.NoError(t, err)
	d.Session("guild-a")

	assert.Equal(t, []string{"guild-a", "guild-b"}, d.Guilds())
}

func TestDispatcherRelaysUpdates(t *testing.T) {
	resolver := &stubResolver{}
	resolver.add("song a", "yt:a", "Song A")
	d := newTestDispatcher(resolver, nil)

	stream := &recordingStream{}
	id := d.Events().Subscribe(stream)
	defer d.Events().Unsubscribe(id)

	_, err := d.Play(context.Background(), "guild-1", "chan-1", track.Request{Query: "song a"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		stream.mu.Lock()
		defer stream.mu.Unlock()
		var sawSong, sawQueue bool
		for _, u := range stream.updates {
			switch u.Type {
			case UpdateSong:
				sawSong = u.Current != nil && u.Current.Title == "Song A"
			case UpdateQueue:
				sawQueue = true
			}
		}
		return sawSong && sawQueue
	}, 2*time.Second, 10*time.Millisecond, "subscribers must see song and queue updates")
}

func TestBroadcasterSequenceAndUnsubscribe(t *testing.T) {
	b := NewBroadcaster()
	s1 := &recordingStream{}
	s2 := &recordingStream{}
	id1 := b.Subscribe(s1)
	b.Subscribe(s2)
	assert.Equal(t, 2, b.SubscriberCount())

	b.Broadcast(&Update{Type: UpdateSong, GuildID: "guild-1"})
	b.Unsubscribe(id1)
	b.Broadcast(&Update{Type: UpdateQueue, GuildID: "guild-1"})

	assert.Equal(t, 1, s1.count())
	assert.Equal(t, 2, s2.count())

	s2.mu.Lock()
	defer s2.mu.Unlock()
	assert.Equal(t, uint64(1), s2.updates[0].SequenceNo)
	assert.Equal(t, uint64(2), s2.updates[1].SequenceNo, "sequence numbers must increase per broadcast")
}
