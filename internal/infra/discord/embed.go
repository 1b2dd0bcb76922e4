package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	zlog "github.com/rs/zerolog/log"

	"github.com/sacudo/sacudo/internal/app/dispatcher"
)

// embedAction is what Send decides to do with the now-playing message.
type embedAction int

const (
	embedNone     embedAction = iota
	embedPost                 // post a new embed, delete the previous message
	embedEditIdle             // edit the existing embed into the idle notice
)

// planEmbed maps an incoming song update onto the message action. Only an
// actual track change reposts; pause/resume state changes arrive with the
// same track URL and leave the message alone. A drained queue edits the
// existing embed instead of deleting it.
func planEmbed(haveMessage bool, shownURL string, current *dispatcher.TrackSummary) embedAction {
	if current == nil {
		if haveMessage && shownURL != "" {
			return embedEditIdle
		}
		return embedNone
	}
	if haveMessage && shownURL == current.URL {
		return embedNone
	}
	return embedPost
}

// Send receives dispatcher updates and keeps the per-guild now-playing
// embed current: one message per guild, replaced on track change and
// edited to an idle notice when the queue drains.
func (b *Bot) Send(u *dispatcher.Update) error {
	if u.Type != dispatcher.UpdateSong {
		return nil
	}

	sess, err := b.dispatcher.SessionIfExists(u.GuildID)
	if err != nil {
		return nil
	}

	msgChannel, messageID, shownURL := sess.NowPlayingMessage()
	switch planEmbed(messageID != "", shownURL, u.Current) {
	case embedNone:
		return nil

	case embedEditIdle:
		if _, err := b.session.ChannelMessageEditEmbed(msgChannel, messageID, idleEmbed(b.messages.QueueEmpty)); err != nil {
			zlog.Debug().Str("guild", u.GuildID).Msgf("discord: idle embed edit failed: %v", err)
			sess.ClearNowPlayingMessage()
			return err
		}
		sess.MarkNowPlayingIdle()
		return nil
	}

	channelID := sess.TextChannel()
	if channelID == "" {
		return nil
	}

	msg, err := b.session.ChannelMessageSendEmbed(channelID, nowPlayingEmbed(u.Current))
	if err != nil {
		zlog.Debug().Str("guild", u.GuildID).Msgf("discord: embed send failed: %v", err)
		return err
	}

	if prev := sess.SetNowPlayingMessage(msg.ID, u.Current.URL); prev != "" {
		b.deleteMessage(msgChannel, prev)
	}
	return nil
}

func (b *Bot) deleteMessage(channelID, messageID string) {
	if channelID == "" || messageID == "" {
		return
	}
	if err := b.session.ChannelMessageDelete(channelID, messageID); err != nil {
		zlog.Debug().Str("channel", channelID).Msgf("discord: embed delete failed: %v", err)
	}
}

func nowPlayingEmbed(t *dispatcher.TrackSummary) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "Now Playing",
		Description: fmt.Sprintf("[%s](%s)", t.Title, t.URL),
		Color:       0x1db954,
	}
	if t.Thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: t.Thumbnail}
	}
	if t.Requester != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "requested by " + t.Requester}
	}
	return embed
}

func idleEmbed(notice string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Now Playing",
		Description: notice,
		Color:       0x1db954,
	}
}
