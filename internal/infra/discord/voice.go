package discord

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	"github.com/jonas747/dca"
	zlog "github.com/rs/zerolog/log"

	"github.com/sacudo/sacudo/internal/app/voice"
	"github.com/sacudo/sacudo/internal/domain/track"
)

// VoiceClient dials guild voice channels over the gateway.
type VoiceClient struct {
	session *discordgo.Session
}

// NewVoiceClient creates a voice client on an open gateway session.
func NewVoiceClient(session *discordgo.Session) *VoiceClient {
	return &VoiceClient{session: session}
}

// Connect joins the voice channel. The join handshake has no context
// support upstream, so it runs on its own goroutine and the result is
// abandoned when ctx expires first.
func (c *VoiceClient) Connect(ctx context.Context, guildID, channelID string) (voice.Conn, error) {
	type joinResult struct {
		vc  *discordgo.VoiceConnection
		err error
	}
	done := make(chan joinResult, 1)
	go func() {
		vc, err := c.session.ChannelVoiceJoin(guildID, channelID, false, true)
		done <- joinResult{vc, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, classifyVoiceError(r.err)
		}
		return newConn(r.vc, channelID), nil
	case <-ctx.Done():
		go func() {
			if r := <-done; r.err == nil {
				r.vc.Disconnect()
			}
		}()
		return nil, errors.Wrap(ctx.Err(), "voice join timed out")
	}
}

// classifyVoiceError marks session-invalidation failures so the
// supervisor backs off longer before retrying them.
func classifyVoiceError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "session") || strings.Contains(msg, "4006") || strings.Contains(msg, "4009") {
		return errors.Mark(err, voice.ErrSessionInvalid)
	}
	return err
}

// conn is one live voice connection streaming opus frames from a dca
// transcode of the track's stream URL.
type conn struct {
	vc        *discordgo.VoiceConnection
	channelID string

	mu      sync.Mutex
	playing bool
	paused  bool
	stop    chan struct{}
	encoder *dca.EncodeSession
}

func newConn(vc *discordgo.VoiceConnection, channelID string) *conn {
	return &conn{vc: vc, channelID: channelID}
}

func (c *conn) ChannelID() string {
	return c.channelID
}

// Play transcodes the stream URL and pumps opus frames until the track
// ends, Stop is called, or the send stalls. onComplete fires exactly once
// from the pump goroutine.
func (c *conn) Play(streamURL string, volume float64, onComplete func(error)) error {
	opts := dca.StdEncodeOptions
	opts.RawOutput = true
	opts.Bitrate = 128
	opts.Application = dca.AudioApplicationAudio
	opts.BufferedFrames = 200
	opts.Volume = int(track.ClampVolume(volume) * 256)

	encoder, err := dca.EncodeFile(streamURL, opts)
	if err != nil {
		return errors.Wrap(err, "failed to start transcode")
	}

	c.mu.Lock()
	if c.playing {
		c.mu.Unlock()
		encoder.Cleanup()
		return errors.New("connection is already streaming")
	}
	c.playing = true
	c.paused = false
	c.stop = make(chan struct{})
	c.encoder = encoder
	stop := c.stop
	c.mu.Unlock()

	go c.pump(encoder, stop, onComplete)
	return nil
}

func (c *conn) pump(encoder *dca.EncodeSession, stop chan struct{}, onComplete func(error)) {
	var result error
	defer func() {
		c.vc.Speaking(false)
		encoder.Cleanup()

		c.mu.Lock()
		c.playing = false
		c.paused = false
		c.mu.Unlock()

		onComplete(result)
	}()

	if err := c.vc.Speaking(true); err != nil {
		result = errors.Wrap(err, "failed to set speaking state")
		return
	}

	for {
		select {
		case <-stop:
			return
		default:
		}

		c.mu.Lock()
		paused := c.paused
		c.mu.Unlock()
		if paused {
			select {
			case <-stop:
				return
			case <-time.After(20 * time.Millisecond):
			}
			continue
		}

		frame, err := encoder.OpusFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				result = errors.Wrap(err, "opus frame read failed")
			}
			return
		}

		select {
		case c.vc.OpusSend <- frame:
		case <-stop:
			return
		case <-time.After(time.Second):
			result = errors.New("opus send stalled")
			return
		}
	}
}

// Stop ends the current stream. Safe to call when idle or repeatedly.
func (c *conn) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		select {
		case <-c.stop:
		default:
			close(c.stop)
		}
	}
}

func (c *conn) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.playing {
		return voice.ErrNotConnected
	}
	c.paused = true
	return nil
}

func (c *conn) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
	return nil
}

func (c *conn) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing && !c.paused
}

func (c *conn) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing && c.paused
}

func (c *conn) Disconnect() error {
	c.Stop()
	if err := c.vc.Disconnect(); err != nil {
		zlog.Debug().Str("channel", c.channelID).Msgf("voice disconnect failed: %v", err)
		return err
	}
	return nil
}
