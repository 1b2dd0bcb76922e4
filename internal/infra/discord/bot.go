// Package discord wires the chat command surface and the voice transport
// to the gateway.
package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/sacudo/sacudo/internal/app/dispatcher"
	"github.com/sacudo/sacudo/internal/app/playback"
	"github.com/sacudo/sacudo/internal/app/queue"
	"github.com/sacudo/sacudo/internal/app/voice"
	"github.com/sacudo/sacudo/internal/domain/track"
	"github.com/sacudo/sacudo/internal/infra/config"
)

// Bot is the chat command surface: it parses prefix commands, routes them
// to the dispatcher and keeps the per-guild now-playing embed current.
type Bot struct {
	session    *discordgo.Session
	dispatcher *dispatcher.Dispatcher
	prefix     string
	messages   config.MessagesConfig

	subscriptionID string
}

// NewBot creates the bot on a fresh gateway session.
func NewBot(cfg *config.Config, d *dispatcher.Dispatcher) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create gateway session")
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentMessageContent

	b := &Bot{
		session:    session,
		dispatcher: d,
		prefix:     cfg.Discord.CommandPrefix,
		messages:   cfg.Messages,
	}
	session.AddHandler(b.onReady)
	session.AddHandler(b.onMessageCreate)
	session.AddHandler(b.onVoiceStateUpdate)
	return b, nil
}

// Session exposes the gateway session for the voice client.
func (b *Bot) Session() *discordgo.Session {
	return b.session
}

// Start opens the gateway connection and subscribes the embed updater.
func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return errors.Wrap(err, "failed to open gateway connection")
	}
	b.subscriptionID = b.dispatcher.Events().Subscribe(b)
	return nil
}

// Stop closes the gateway connection.
func (b *Bot) Stop() error {
	if b.subscriptionID != "" {
		b.dispatcher.Events().Unsubscribe(b.subscriptionID)
	}
	return b.session.Close()
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	zlog.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("discord: connected")
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	command, args, ok := parseCommand(b.prefix, m.Content)
	if !ok {
		return
	}

	sess := b.dispatcher.Session(m.GuildID)
	sess.SetTextChannel(m.ChannelID)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	switch command {
	case "play", "p":
		b.handlePlay(ctx, m, args)
	case "skip", "s":
		b.replyErr(m.ChannelID, b.dispatcher.Skip(ctx, m.GuildID))
	case "pause":
		b.replyErr(m.ChannelID, b.dispatcher.Pause(m.GuildID))
	case "resume":
		b.replyErr(m.ChannelID, b.dispatcher.Resume(ctx, m.GuildID))
	case "stop":
		if err := b.dispatcher.Stop(m.GuildID); err != nil {
			b.replyErr(m.ChannelID, err)
		} else {
			b.reply(m.ChannelID, b.messages.Stopped)
		}
	case "queue", "q":
		b.handleQueue(m)
	}
}

// parseCommand splits a prefixed chat message into command and argument.
func parseCommand(prefix, content string) (command, args string, ok bool) {
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(content, prefix)
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", "", false
	}
	command = strings.ToLower(fields[0])
	args = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(rest), fields[0]))
	return command, args, true
}

func (b *Bot) handlePlay(ctx context.Context, m *discordgo.MessageCreate, query string) {
	if query == "" {
		b.reply(m.ChannelID, b.messages.DefaultError)
		return
	}

	voiceChannel := b.userVoiceChannel(m.GuildID, m.Author.ID)
	if voiceChannel == "" {
		b.reply(m.ChannelID, b.messages.NotInVoice)
		return
	}

	req := track.Request{
		Query:     query,
		Requester: track.Requester{ID: m.Author.ID, Name: m.Author.Username},
		AddedAt:   time.Now(),
	}
	res, err := b.dispatcher.Play(ctx, m.GuildID, voiceChannel, req)
	if err != nil {
		b.replyErr(m.ChannelID, err)
		return
	}
	if res.PlaylistTitle != "" {
		b.reply(m.ChannelID, fmt.Sprintf(b.messages.PlaylistQueued, res.Queued, res.PlaylistTitle))
		return
	}
	if !res.Started {
		b.reply(m.ChannelID, b.messages.Queued)
	}
}

func (b *Bot) handleQueue(m *discordgo.MessageCreate) {
	st, err := b.dispatcher.State(m.GuildID)
	if err != nil || (st.NowPlaying == nil && len(st.Queue) == 0) {
		b.reply(m.ChannelID, b.messages.QueueEmpty)
		return
	}

	var sb strings.Builder
	if st.NowPlaying != nil {
		fmt.Fprintf(&sb, "Now playing: **%s**\n", st.NowPlaying.Title)
	}
	for i, e := range st.Queue {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, e.Request.Query)
	}
	b.reply(m.ChannelID, sb.String())
}

// userVoiceChannel finds the voice channel the user currently sits in.
func (b *Bot) userVoiceChannel(guildID, userID string) string {
	guild, err := b.session.State.Guild(guildID)
	if err != nil {
		return ""
	}
	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID {
			return vs.ChannelID
		}
	}
	return ""
}

// onVoiceStateUpdate watches for the bot itself being dropped from voice
// and hands the recovery to the playback layer.
func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if s.State.User == nil || v.UserID != s.State.User.ID {
		return
	}
	if v.ChannelID != "" {
		return
	}
	if v.BeforeUpdate == nil || v.BeforeUpdate.ChannelID == "" {
		return
	}
	zlog.Warn().Str("guild", v.GuildID).Str("channel", v.BeforeUpdate.ChannelID).Msg("discord: dropped from voice channel")
	b.dispatcher.HandleVoiceDisconnect(v.GuildID, errors.New("gateway removed the voice state"))
}

func (b *Bot) reply(channelID, content string) {
	if content == "" {
		return
	}
	if _, err := b.session.ChannelMessageSend(channelID, content); err != nil {
		zlog.Debug().Str("channel", channelID).Msgf("discord: reply failed: %v", err)
	}
}

// replyErr maps well-known errors to the configured user-facing messages.
func (b *Bot) replyErr(channelID string, err error) {
	if err == nil {
		return
	}
	var msg string
	switch {
	case errors.Is(err, queue.ErrDuplicate):
		msg = b.messages.DuplicateTrack
	case errors.Is(err, playback.ErrNothingPlaying):
		msg = b.messages.NothingPlaying
	case errors.Is(err, playback.ErrNotPaused):
		msg = b.messages.NotPaused
	case errors.Is(err, playback.ErrTransitionInFlight):
		msg = b.messages.Busy
	case errors.Is(err, playback.ErrQueueExhausted):
		msg = b.messages.TrackNotFound
	case errors.Is(err, voice.ErrReconnectExhausted):
		msg = b.messages.ReconnectFailed
	default:
		zlog.Warn().Msgf("discord: command failed: %v", err)
		msg = b.messages.DefaultError
	}
	b.reply(channelID, msg)
}
