package voice

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// Config holds supervisor configuration.
type Config struct {
	MaxAttempts         int           // bounded reconnect attempts
	BaseDelay           time.Duration // first retry delay, doubles per attempt
	InvalidSessionDelay time.Duration // extra wait after a session-invalidated failure
	ConnectTimeout      time.Duration // per-attempt connect bound
}

// withDefaults fills zero fields with the defaults used across the bot.
func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 4
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 2 * time.Second
	}
	if c.InvalidSessionDelay <= 0 {
		c.InvalidSessionDelay = 5 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 15 * time.Second
	}
	return c
}

// Supervisor owns the voice connection lifecycle for one guild: connect,
// remember the last channel, reconnect with backoff after unexpected
// drops.
type Supervisor struct {
	client  Client
	guildID string
	cfg     Config

	mu          sync.Mutex
	conn        Conn
	lastChannel string
}

// NewSupervisor creates a supervisor for one guild.
func NewSupervisor(client Client, guildID string, cfg Config) *Supervisor {
	return &Supervisor{
		client:  client,
		guildID: guildID,
		cfg:     cfg.withDefaults(),
	}
}

// Connect returns a connection to the given channel, reusing the existing
// one when it already points there. An empty channelID falls back to the
// last connected channel.
func (s *Supervisor) Connect(ctx context.Context, channelID string) (Conn, error) {
	s.mu.Lock()
	if channelID == "" {
		channelID = s.lastChannel
	}
	if channelID == "" {
		s.mu.Unlock()
		return nil, ErrNotConnected
	}
	if s.conn != nil && s.conn.ChannelID() == channelID {
		conn := s.conn
		s.mu.Unlock()
		return conn, nil
	}
	old := s.conn
	s.conn = nil
	s.mu.Unlock()

	if old != nil {
		if err := old.Disconnect(); err != nil {
			zlog.Debug().Str("guild", s.guildID).Msgf("disconnect before channel move failed: %v", err)
		}
	}

	return s.dial(ctx, channelID)
}

func (s *Supervisor) dial(ctx context.Context, channelID string) (Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()

	conn, err := s.client.Connect(dialCtx, s.guildID, channelID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to join voice channel %s", channelID)
	}

	s.mu.Lock()
	s.conn = conn
	s.lastChannel = channelID
	s.mu.Unlock()

	zlog.Info().Str("guild", s.guildID).Str("channel", channelID).Msg("voice: connected")
	return conn, nil
}

// Conn returns the current connection, nil when disconnected.
func (s *Supervisor) Conn() Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// LastChannel returns the last connected channel id.
func (s *Supervisor) LastChannel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastChannel
}

// Forget drops the connection reference after an unexpected disconnect.
// The last channel is remembered for Reconnect.
func (s *Supervisor) Forget() {
	s.mu.Lock()
	s.conn = nil
	s.mu.Unlock()
}

// Disconnect stops playback and leaves the channel. The last channel is
// cleared; a later play has to name its channel again.
func (s *Supervisor) Disconnect() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.lastChannel = ""
	s.mu.Unlock()

	if conn == nil {
		return
	}
	conn.Stop()
	if err := conn.Disconnect(); err != nil {
		zlog.Debug().Str("guild", s.guildID).Msgf("voice disconnect failed: %v", err)
	}
}

// Reconnect runs the bounded, backoff-increasing reconnect sequence
// against the last connected channel. cause classifies the original drop:
// a session-invalidated failure waits longer between attempts. Returns
// ErrReconnectExhausted after the final attempt fails.
func (s *Supervisor) Reconnect(ctx context.Context, cause error) (Conn, error) {
	s.mu.Lock()
	channelID := s.lastChannel
	s.mu.Unlock()
	if channelID == "" {
		return nil, ErrNotConnected
	}

	var lastErr error = cause
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		delay := s.backoffDelay(attempt, lastErr)
		zlog.Info().
			Str("guild", s.guildID).
			Str("channel", channelID).
			Int("attempt", attempt).
			Int("max_attempts", s.cfg.MaxAttempts).
			Msgf("voice: reconnecting in %v", delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		conn, err := s.dial(ctx, channelID)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		zlog.Warn().Str("guild", s.guildID).Int("attempt", attempt).Msgf("voice: reconnect failed: %v", err)
	}

	return nil, errors.Mark(errors.Wrapf(lastErr, "gave up after %d attempts", s.cfg.MaxAttempts), ErrReconnectExhausted)
}

// backoffDelay doubles the base delay per attempt and adds the session
// penalty when the previous failure invalidated the gateway session.
func (s *Supervisor) backoffDelay(attempt int, lastErr error) time.Duration {
	delay := s.cfg.BaseDelay << (attempt - 1)
	if errors.Is(lastErr, ErrSessionInvalid) {
		delay += s.cfg.InvalidSessionDelay
	}
	return delay
}
