package playback

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/sacudo/sacudo/internal/app/queue"
	"github.com/sacudo/sacudo/internal/app/voice"
	"github.com/sacudo/sacudo/internal/domain/track"
)

// Errors
var (
	ErrNothingPlaying = errors.New("nothing is playing right now")
	ErrNotPaused      = errors.New("playback is not paused")
	ErrQueueExhausted = errors.New("every queued track failed to resolve")
)

// Resolver turns a raw query into a playable track. Implementations may
// be slow; the controller always calls them with a deadline and never
// while publishing under its own lock.
type Resolver interface {
	Resolve(ctx context.Context, query string) (*track.Resolved, error)
}

// Config holds controller configuration.
type Config struct {
	ResolveTimeout time.Duration // bound on a single resolution
	Preload        bool          // speculative resolution of the queue head
	DefaultVolume  float64
}

func (c Config) withDefaults() Config {
	if c.ResolveTimeout <= 0 {
		c.ResolveTimeout = 30 * time.Second
	}
	if c.DefaultVolume <= 0 {
		c.DefaultVolume = track.DefaultVolume
	}
	return c
}

// transition causes, used for event selection and logging.
type cause int

const (
	causeStart cause = iota
	causeSkip
	causeTrackEnd
	causeReconnect
)

func (c cause) String() string {
	switch c {
	case causeStart:
		return "start"
	case causeSkip:
		return "skip"
	case causeTrackEnd:
		return "track_end"
	case causeReconnect:
		return "reconnect"
	default:
		return "unknown"
	}
}

// Controller is the per-guild state machine tying the queue, preloader,
// connection supervisor and voice client together. All transitions are
// serialized by the guard; everything else is quick and lock-protected.
type Controller struct {
	guildID  string
	cfg      Config
	resolver Resolver
	voice    *voice.Supervisor

	queue   *queue.Queue
	guard   Guard
	preload Preloader

	// mu protects state, nowPlaying and epoch.
	mu         sync.Mutex
	state      State
	nowPlaying *track.NowPlaying
	epoch      uint64 // bumps whenever the live track changes; stale callbacks check it

	events chan Event
}

// NewController creates a controller for one guild.
func NewController(guildID string, cfg Config, resolver Resolver, supervisor *voice.Supervisor) *Controller {
	return &Controller{
		guildID:  guildID,
		cfg:      cfg.withDefaults(),
		resolver: resolver,
		voice:    supervisor,
		queue:    queue.New(),
		state:    StateIdle,
		events:   make(chan Event, 16),
	}
}

// Events returns the event channel. Sends are non-blocking; a full
// channel drops events rather than stalling a transition.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// GuildID returns the owning guild id.
func (c *Controller) GuildID() string {
	return c.guildID
}

// Queue exposes the pending queue for snapshots.
func (c *Controller) Queue() *queue.Queue {
	return c.queue
}

// Status is a point-in-time view of the session.
type Status struct {
	State      State
	NowPlaying *track.NowPlaying
	Queue      []queue.Entry
	Channel    string
}

// Status returns a snapshot of the session.
func (c *Controller) Status() Status {
	c.mu.Lock()
	st := c.state
	var np *track.NowPlaying
	if c.nowPlaying != nil {
		copied := *c.nowPlaying
		np = &copied
	}
	c.mu.Unlock()

	return Status{
		State:      st,
		NowPlaying: np,
		Queue:      c.queue.Snapshot(),
		Channel:    c.voice.LastChannel(),
	}
}

// Enqueue appends a request unless it duplicates the queue or the live
// track. While Idle it immediately starts a Resolving -> Playing
// transition; in any other state the item only waits its turn. Returns
// whether playback was started by this call.
func (c *Controller) Enqueue(ctx context.Context, channelID string, req track.Request) (bool, error) {
	e := queue.Entry{
		Request:  req,
		Identity: track.IdentityFromQuery(req.Query),
	}

	if err := c.queue.Enqueue(e, c.currentTrack()); err != nil {
		return false, err
	}
	c.emit(Event{Type: EventQueueUpdated, GuildID: c.guildID, State: c.currentState()})

	if c.currentState() == StateIdle {
		err := c.transition(ctx, channelID, causeStart)
		if errors.Is(err, ErrTransitionInFlight) {
			// An in-flight transition owns the session and will pick
			// the new entry up on its own.
			return false, nil
		}
		return err == nil, err
	}

	c.maybePreload()
	return false, nil
}

// Skip stops the current track and advances to the next queue entry, or
// idles when nothing remains.
func (c *Controller) Skip(ctx context.Context) error {
	c.mu.Lock()
	nothing := c.nowPlaying == nil
	c.mu.Unlock()
	if nothing && c.queue.Len() == 0 {
		return ErrNothingPlaying
	}
	return c.transition(ctx, "", causeSkip)
}

// Pause pauses the current playback. The state check and the switch to
// Paused happen in one critical section so a transition starting
// concurrently cannot be overwritten.
func (c *Controller) Pause() error {
	conn := c.voice.Conn()

	c.mu.Lock()
	if c.state != StatePlaying || c.nowPlaying == nil || conn == nil {
		c.mu.Unlock()
		return ErrNothingPlaying
	}
	if err := conn.Pause(); err != nil {
		c.mu.Unlock()
		return errors.Wrap(err, "pause")
	}
	c.state = StatePaused
	np := *c.nowPlaying
	c.mu.Unlock()

	c.emit(Event{Type: EventStateChanged, GuildID: c.guildID, Track: &np, State: StatePaused})
	return nil
}

// Resume resumes paused playback. When there is nothing left to resume
// (the track was cleared in the meantime) it attempts the next
// transition instead.
func (c *Controller) Resume(ctx context.Context) error {
	conn := c.voice.Conn()

	c.mu.Lock()
	if c.state == StatePaused && c.nowPlaying != nil && conn != nil {
		if err := conn.Resume(); err != nil {
			c.mu.Unlock()
			return errors.Wrap(err, "resume")
		}
		c.state = StatePlaying
		np := *c.nowPlaying
		c.mu.Unlock()
		c.emit(Event{Type: EventStateChanged, GuildID: c.guildID, Track: &np, State: StatePlaying})
		return nil
	}
	c.mu.Unlock()
	// Paused with the connection gone, or not paused at all: a queued
	// track can still be started through a transition.

	if c.queue.Len() == 0 {
		return ErrNotPaused
	}
	return c.transition(ctx, "", causeStart)
}

// Stop clears the queue, discards the live track and any preload, leaves
// the voice channel and settles to Idle.
func (c *Controller) Stop() error {
	if !c.guard.TryAcquire() {
		zlog.Debug().Str("guild", c.guildID).Msg("playback: stop rejected, transition in flight")
		return ErrTransitionInFlight
	}
	defer c.guard.Release()

	c.mu.Lock()
	c.epoch++ // orphan any pending completion callback
	c.nowPlaying = nil
	c.state = StateIdle
	c.mu.Unlock()

	c.queue.Clear()
	c.preload.Invalidate()
	c.voice.Disconnect()

	c.emit(Event{Type: EventStateChanged, GuildID: c.guildID, State: StateIdle})
	c.emit(Event{Type: EventQueueUpdated, GuildID: c.guildID, State: StateIdle})
	zlog.Info().Str("guild", c.guildID).Msg("playback: stopped")
	return nil
}

// HandleVoiceDisconnect is invoked by the gateway layer when the voice
// link drops unexpectedly. Resources are released immediately; a bounded
// reconnect sequence runs only when tracks are still queued. cause
// classifies the drop for backoff purposes.
func (c *Controller) HandleVoiceDisconnect(cause error) {
	zlog.Warn().Str("guild", c.guildID).Msgf("playback: unexpected voice disconnect: %v", cause)

	c.mu.Lock()
	c.epoch++
	c.nowPlaying = nil
	c.state = StateIdle
	c.mu.Unlock()

	c.preload.Invalidate()
	c.guard.Release()
	c.voice.Forget()
	c.emit(Event{Type: EventStateChanged, GuildID: c.guildID, State: StateIdle})

	if c.queue.Len() == 0 {
		return
	}
	go c.reconnectAndResume(cause)
}

func (c *Controller) reconnectAndResume(cause error) {
	ctx := context.Background()
	if _, err := c.voice.Reconnect(ctx, cause); err != nil {
		// Terminal for this playback session: the queue stays intact
		// for a later manual play/resume.
		zlog.Error().Str("guild", c.guildID).Msgf("playback: reconnect gave up: %v", err)
		c.emit(Event{Type: EventPlaybackFailed, GuildID: c.guildID, State: StateIdle, Err: err})
		return
	}

	if err := c.transition(ctx, "", causeReconnect); err != nil && !errors.Is(err, ErrTransitionInFlight) {
		zlog.Error().Str("guild", c.guildID).Msgf("playback: resume after reconnect failed: %v", err)
	}
}

// transition acquires the guard and drives the session to its next
// terminal state: Playing the next track, or Idle.
func (c *Controller) transition(ctx context.Context, channelID string, why cause) error {
	if !c.guard.TryAcquire() {
		zlog.Debug().Str("guild", c.guildID).Str("cause", why.String()).Msg("playback: transition rejected, one already in flight")
		return ErrTransitionInFlight
	}
	defer c.guard.Release()
	return c.transitionLocked(ctx, channelID, why)
}

func (c *Controller) transitionLocked(ctx context.Context, channelID string, why cause) error {
	c.setState(StateTransitioning)

	// Detach the current track first. Bumping the epoch orphans the
	// completion callback of the stop below, so it cannot double-advance.
	c.mu.Lock()
	c.epoch++
	prev := c.nowPlaying
	c.nowPlaying = nil
	c.mu.Unlock()

	var curID track.Identity
	if prev != nil {
		curID = prev.Identity
	}
	if conn := c.voice.Conn(); conn != nil && (conn.IsPlaying() || conn.IsPaused()) {
		conn.Stop()
	}
	if prev != nil {
		eventType := EventTrackEnded
		if why == causeSkip {
			eventType = EventTrackSkipped
		}
		c.emit(Event{Type: eventType, GuildID: c.guildID, Track: prev, State: StateTransitioning})
	}

	// Bounded recovery: each failed resolution consumes a queue entry,
	// and at most the remaining queue (plus a cached preload) is tried.
	maxFailures := c.queue.Len() + 1
	var failures int
	var lastErr error

	for failures < maxFailures {
		c.queue.Normalize(curID)

		head, ok := c.queue.PeekHead()
		if !ok {
			break
		}

		candidate := c.preload.Take(head.Request.Query, curID)
		if candidate != nil {
			c.queue.DequeueHead()
		} else {
			c.queue.DequeueHead()
			c.setState(StateResolving)
			resolved, err := c.resolve(ctx, head.Request.Query)
			c.setState(StateTransitioning)
			if err != nil {
				zlog.Warn().Str("guild", c.guildID).Str("query", head.Request.Query).Msgf("playback: resolution failed, advancing: %v", err)
				failures++
				lastErr = err
				continue
			}
			candidate = resolved
		}

		if candidate.Identity.Equal(curID) {
			// Resolved to the track that just stopped; drop silently.
			continue
		}

		if err := c.startPlayback(ctx, channelID, head.Request, candidate); err != nil {
			if errors.Is(err, voice.ErrNotConnected) || ctx.Err() != nil {
				// No voice channel to play into (or the caller gave
				// up). The entry is not at fault: put it back at the
				// head so a later play or resume picks it up.
				head.Identity = candidate.Identity
				c.queue.PushFront(head)
				c.mu.Lock()
				c.state = StateIdle
				c.mu.Unlock()
				c.emit(Event{Type: EventPlaybackFailed, GuildID: c.guildID, State: StateIdle, Err: err})
				return err
			}
			zlog.Warn().Str("guild", c.guildID).Str("title", candidate.Title).Msgf("playback: start failed, advancing: %v", err)
			failures++
			lastErr = err
			continue
		}
		return nil
	}

	c.settleIdle()
	if failures > 0 {
		err := errors.Mark(errors.Wrapf(lastErr, "tried %d entries", failures), ErrQueueExhausted)
		c.emit(Event{Type: EventPlaybackFailed, GuildID: c.guildID, State: StateIdle, Err: err})
		return err
	}
	return nil
}

// settleIdle is the empty-queue terminal of a transition.
func (c *Controller) settleIdle() {
	c.preload.Invalidate()
	c.mu.Lock()
	c.nowPlaying = nil
	c.state = StateIdle
	c.mu.Unlock()
	c.emit(Event{Type: EventQueueEmpty, GuildID: c.guildID, State: StateIdle})
}

// startPlayback connects (or reuses) the voice channel and starts the
// candidate, registering a completion callback bound to a fresh epoch.
// req is the originating request: it stays attached to the live track so
// enqueue-time dedup can match its literal text.
func (c *Controller) startPlayback(ctx context.Context, channelID string, req track.Request, candidate *track.Resolved) error {
	conn, err := c.voice.Connect(ctx, channelID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.epoch++
	epoch := c.epoch
	c.mu.Unlock()

	candidate.Volume = track.ClampVolume(candidate.Volume)
	if err := conn.Play(candidate.StreamURL, candidate.Volume, func(playErr error) {
		c.handleTrackComplete(epoch, playErr)
	}); err != nil {
		return errors.Wrap(err, "start stream")
	}

	np := &track.NowPlaying{Resolved: *candidate, Request: req, StartedAt: time.Now()}
	c.mu.Lock()
	c.nowPlaying = np
	c.state = StatePlaying
	c.mu.Unlock()

	zlog.Info().Str("guild", c.guildID).Str("title", candidate.Title).Str("identity", string(candidate.Identity)).Msg("playback: now playing")
	c.emit(Event{Type: EventTrackStarted, GuildID: c.guildID, Track: np, State: StatePlaying})
	c.emit(Event{Type: EventQueueUpdated, GuildID: c.guildID, State: StatePlaying})

	c.maybePreload()
	return nil
}

// handleTrackComplete runs on the voice client's goroutine when a track
// finishes. It never re-enters the transition logic synchronously: the
// next transition is scheduled on its own goroutine and serialized by the
// guard like any other request.
func (c *Controller) handleTrackComplete(epoch uint64, playErr error) {
	c.mu.Lock()
	stale := epoch != c.epoch
	c.mu.Unlock()
	if stale {
		zlog.Debug().Str("guild", c.guildID).Msg("playback: stale completion discarded")
		return
	}
	if playErr != nil {
		zlog.Warn().Str("guild", c.guildID).Msgf("playback: stream ended with error: %v", playErr)
	}

	go func() {
		if err := c.transition(context.Background(), "", causeTrackEnd); err != nil && !errors.Is(err, ErrTransitionInFlight) {
			zlog.Error().Str("guild", c.guildID).Msgf("playback: advance after track end failed: %v", err)
		}
	}()
}

// maybePreload schedules speculative resolution of the queue head while
// the current track plays. At most one preload per guild; the result is
// validated against the head again before it is cached.
func (c *Controller) maybePreload() {
	if !c.cfg.Preload {
		return
	}
	head, ok := c.queue.PeekHead()
	if !ok {
		return
	}
	query := head.Request.Query
	if !c.preload.Begin(query) {
		return
	}

	go func() {
		resolved, err := c.resolve(context.Background(), query)
		if err != nil {
			zlog.Debug().Str("guild", c.guildID).Str("query", query).Msgf("playback: preload failed: %v", err)
			c.preload.Abandon(query)
			return
		}

		// Record the identity on the queue entry so dedup catches this
		// track by identity from now on.
		c.queue.SetIdentity(query, resolved.Identity)

		if h, ok := c.queue.PeekHead(); !ok || h.Request.Query != query {
			// Head changed while resolving; the result is stale.
			c.preload.Abandon(query)
			return
		}
		c.preload.Store(query, resolved)
		zlog.Debug().Str("guild", c.guildID).Str("title", resolved.Title).Msg("playback: preloaded next track")
	}()
}

func (c *Controller) resolve(ctx context.Context, query string) (*track.Resolved, error) {
	rctx, cancel := context.WithTimeout(ctx, c.cfg.ResolveTimeout)
	defer cancel()

	resolved, err := c.resolver.Resolve(rctx, query)
	if err != nil {
		return nil, err
	}
	if resolved.Volume <= 0 {
		resolved.Volume = c.cfg.DefaultVolume
	}
	return resolved, nil
}

func (c *Controller) currentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) currentTrack() queue.Current {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nowPlaying == nil {
		return queue.Current{}
	}
	return queue.Current{
		Identity: c.nowPlaying.Identity,
		URL:      c.nowPlaying.CanonicalURL,
		Query:    c.nowPlaying.Request.Query,
	}
}

// emit sends an event without blocking; a full channel drops the event.
func (c *Controller) emit(e Event) {
	select {
	case c.events <- e:
	default:
		zlog.Debug().Str("guild", c.guildID).Str("event", e.Type.String()).Msg("playback: event dropped, channel full")
	}
}
