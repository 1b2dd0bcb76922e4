// Package session tracks per-guild playback sessions and their chat
// surface bookkeeping.
package session

import (
	"sync"
	"time"

	"github.com/sacudo/sacudo/internal/app/playback"
)

// Session is one guild's playback session: the controller plus the chat
// message handles the bot keeps updated for it.
type Session struct {
	GuildID    string
	Controller *playback.Controller
	CreatedAt  time.Time

	mu            sync.Mutex
	textChannelID string
	nowPlayingMsg string // message id of the pinned now-playing embed, "" when none
	nowPlayingURL string // track URL the embed currently shows, "" after the idle edit
}

// SetTextChannel records the channel the latest command arrived in; status
// messages go back there.
func (s *Session) SetTextChannel(channelID string) {
	s.mu.Lock()
	s.textChannelID = channelID
	s.mu.Unlock()
}

// TextChannel returns the last recorded command channel.
func (s *Session) TextChannel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.textChannelID
}

// SetNowPlayingMessage records the embed message and the track URL it
// shows; the message is replaced only when the track actually changes.
// Returns the previous message id so the caller can delete it.
func (s *Session) SetNowPlayingMessage(messageID, trackURL string) (previous string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous = s.nowPlayingMsg
	s.nowPlayingMsg = messageID
	s.nowPlayingURL = trackURL
	return previous
}

// NowPlayingMessage returns the channel and message id of the current
// embed plus the track URL it shows. All "" when none is posted.
func (s *Session) NowPlayingMessage() (channelID, messageID, trackURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nowPlayingMsg == "" {
		return "", "", ""
	}
	return s.textChannelID, s.nowPlayingMsg, s.nowPlayingURL
}

// MarkNowPlayingIdle keeps the embed message but forgets its track, after
// the message has been edited into the idle notice.
func (s *Session) MarkNowPlayingIdle() {
	s.mu.Lock()
	s.nowPlayingURL = ""
	s.mu.Unlock()
}

// ClearNowPlayingMessage forgets the embed handle and returns it for
// deletion.
func (s *Session) ClearNowPlayingMessage() (channelID, messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	channelID, messageID = s.textChannelID, s.nowPlayingMsg
	s.nowPlayingMsg = ""
	s.nowPlayingURL = ""
	return channelID, messageID
}
