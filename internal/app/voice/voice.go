// Package voice defines the voice client contract and the per-guild
// connection supervisor. The orchestrator depends on nothing beyond this
// contract; the gateway implementation lives in internal/infra/discord.
package voice

import (
	"context"

	"github.com/cockroachdb/errors"
)

var (
	// ErrNotConnected is returned when an operation needs a voice
	// connection and none exists.
	ErrNotConnected = errors.New("not connected to a voice channel")

	// ErrSessionInvalid marks a dropped connection whose gateway session
	// was invalidated. Reconnects after this failure class wait longer
	// between attempts.
	ErrSessionInvalid = errors.New("voice session invalidated")

	// ErrReconnectExhausted is the terminal failure after the bounded
	// reconnect sequence gives up. The queue is left intact for a later
	// manual command.
	ErrReconnectExhausted = errors.New("voice reconnect attempts exhausted")
)

// Conn is an established voice connection for one guild.
type Conn interface {
	// Play starts streaming the given handle and invokes onComplete
	// exactly once when playback ends: nil for natural end of track,
	// an error for a broken stream. Stop suppresses the callback's
	// effect through the caller's generation check, not here.
	Play(streamURL string, volume float64, onComplete func(error)) error

	Stop()
	Pause() error
	Resume() error
	IsPlaying() bool
	IsPaused() bool

	ChannelID() string
	Disconnect() error
}

// Client dials voice connections. Implementations wrap the gateway
// library; tests substitute fakes.
type Client interface {
	Connect(ctx context.Context, guildID, channelID string) (Conn, error)
}
