// Package playback provides the per-guild playback state machine with
// integrated queue, preload and voice supervision.
package playback

// State represents the playback state of one guild session.
type State int

const (
	StateIdle          State = iota // no track playing, no voice activity
	StateResolving                  // fetching a track's playable form
	StatePlaying                    // track is playing
	StatePaused                     // track is paused
	StateTransitioning              // stopping current and starting next
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolving:
		return "resolving"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateTransitioning:
		return "transitioning"
	default:
		return "unknown"
	}
}
