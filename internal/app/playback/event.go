package playback

import "github.com/sacudo/sacudo/internal/domain/track"

// EventType represents a playback event type.
type EventType int

const (
	EventTrackStarted   EventType = iota // a track started playing
	EventTrackEnded                      // a track finished naturally
	EventTrackSkipped                    // a track was skipped
	EventStateChanged                    // pause/resume/stop state change
	EventQueueUpdated                    // queue contents changed
	EventQueueEmpty                      // queue drained, session idled
	EventPlaybackFailed                  // queue exhausted by failures or reconnect gave up
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackStarted:
		return "track_started"
	case EventTrackEnded:
		return "track_ended"
	case EventTrackSkipped:
		return "track_skipped"
	case EventStateChanged:
		return "state_changed"
	case EventQueueUpdated:
		return "queue_updated"
	case EventQueueEmpty:
		return "queue_empty"
	case EventPlaybackFailed:
		return "playback_failed"
	default:
		return "unknown"
	}
}

// Event represents a playback event for one guild.
type Event struct {
	Type    EventType
	GuildID string
	Track   *track.NowPlaying // current track (nil for some events)
	State   State
	Err     error // set for EventPlaybackFailed
}
