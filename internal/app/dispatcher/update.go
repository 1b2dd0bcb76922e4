package dispatcher

import (
	"github.com/sacudo/sacudo/internal/app/playback"
	"github.com/sacudo/sacudo/internal/app/queue"
	"github.com/sacudo/sacudo/internal/domain/track"
)

// Update types pushed to dashboard subscribers.
const (
	UpdateSong  = "song_update"  // current track or playback state changed
	UpdateQueue = "queue_update" // queue contents changed
)

// TrackSummary is the wire form of the current track.
type TrackSummary struct {
	Title     string  `json:"title"`
	URL       string  `json:"url"`
	Thumbnail string  `json:"thumbnail,omitempty"`
	Volume    float64 `json:"volume"`
	Requester string  `json:"requester,omitempty"`
}

// QueueItem is the wire form of one pending queue entry. URL carries the
// literal query for free-text entries that have not resolved yet.
type QueueItem struct {
	URL       string `json:"url"`
	Title     string `json:"title,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Requester string `json:"requester,omitempty"`
}

// Update is one push message to dashboard subscribers.
type Update struct {
	Type       string        `json:"type"`
	SequenceNo uint64        `json:"sequence_no"`
	GuildID    string        `json:"guild_id"`
	State      string        `json:"state"`
	Current    *TrackSummary `json:"current,omitempty"`
	Queue      []QueueItem   `json:"queue"`
	Error      string        `json:"error,omitempty"`
}

// StatusUpdate translates a controller snapshot into an update. The
// dashboard uses it for state queries so polling and push share one wire
// shape.
func StatusUpdate(updateType, guildID string, st playback.Status, err error) *Update {
	u := &Update{
		Type:    updateType,
		GuildID: guildID,
		State:   st.State.String(),
		Queue:   make([]QueueItem, 0, len(st.Queue)),
	}
	if st.NowPlaying != nil {
		u.Current = summarize(&st.NowPlaying.Resolved, st.NowPlaying.Request.Requester.Name)
	}
	for _, e := range st.Queue {
		u.Queue = append(u.Queue, queueItem(e))
	}
	if err != nil {
		u.Error = err.Error()
	}
	return u
}

func queueItem(e queue.Entry) QueueItem {
	it := QueueItem{
		URL:       e.Request.Query,
		Title:     e.Request.Title,
		Requester: e.Request.Requester.Name,
	}
	if id := track.VideoID(e.Request.Query); id != "" {
		it.Thumbnail = track.ThumbnailForVideo(id)
	}
	return it
}

func summarize(t *track.Resolved, requester string) *TrackSummary {
	return &TrackSummary{
		Title:     t.Title,
		URL:       t.CanonicalURL,
		Thumbnail: t.ThumbnailURL,
		Volume:    t.Volume,
		Requester: requester,
	}
}
