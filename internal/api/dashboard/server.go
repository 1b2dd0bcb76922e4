// Package dashboard serves the JSON control API and the websocket update
// feed for the web dashboard.
package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/sacudo/sacudo/internal/app/dispatcher"
	"github.com/sacudo/sacudo/internal/app/playback"
	"github.com/sacudo/sacudo/internal/app/queue"
	"github.com/sacudo/sacudo/internal/app/session"
	"github.com/sacudo/sacudo/internal/domain/track"
)

// Server exposes the playback orchestrator over HTTP.
type Server struct {
	dispatcher *dispatcher.Dispatcher
}

// NewServer creates the dashboard server.
func NewServer(d *dispatcher.Dispatcher) *Server {
	return &Server{dispatcher: d}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/guilds", s.handleGuilds)
	mux.HandleFunc("GET /api/guild/{id}/state", s.handleState)
	mux.HandleFunc("POST /api/guild/{id}/play", s.handlePlay)
	mux.HandleFunc("POST /api/guild/{id}/skip", s.handleSkip)
	mux.HandleFunc("POST /api/guild/{id}/pause", s.handlePause)
	mux.HandleFunc("POST /api/guild/{id}/resume", s.handleResume)
	mux.HandleFunc("POST /api/guild/{id}/stop", s.handleStop)
	mux.HandleFunc("GET /ws", s.handleWebsocket)
	return mux
}

type guildsResponse struct {
	Guilds []string `json:"guilds"`
}

func (s *Server) handleGuilds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, guildsResponse{Guilds: s.dispatcher.Guilds()})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	guildID := r.PathValue("id")
	st, err := s.dispatcher.State(guildID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dispatcher.StatusUpdate(dispatcher.UpdateSong, guildID, st, nil))
}

type playRequest struct {
	Query     string `json:"query"`
	ChannelID string `json:"channel_id"`
	Requester string `json:"requester"`
}

type playResponse struct {
	Started       bool   `json:"started"`
	Queued        int    `json:"queued"`
	PlaylistTitle string `json:"playlist_title,omitempty"`
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Mark(err, errBadRequest))
		return
	}
	if req.Query == "" {
		writeError(w, errors.Mark(errors.New("query is required"), errBadRequest))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	res, err := s.dispatcher.Play(ctx, r.PathValue("id"), req.ChannelID, track.Request{
		Query:     req.Query,
		Requester: track.Requester{Name: req.Requester},
		AddedAt:   time.Now(),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, playResponse{
		Started:       res.Started,
		Queued:        res.Queued,
		PlaylistTitle: res.PlaylistTitle,
	})
}

func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	s.commandResult(w, s.dispatcher.Skip(r.Context(), r.PathValue("id")))
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.commandResult(w, s.dispatcher.Pause(r.PathValue("id")))
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.commandResult(w, s.dispatcher.Resume(r.Context(), r.PathValue("id")))
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.commandResult(w, s.dispatcher.Stop(r.PathValue("id")))
}

func (s *Server) commandResult(w http.ResponseWriter, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// errBadRequest marks client errors for status mapping.
var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrUnknownGuild):
		status = http.StatusNotFound
	case errors.Is(err, queue.ErrDuplicate),
		errors.Is(err, playback.ErrTransitionInFlight),
		errors.Is(err, playback.ErrNothingPlaying),
		errors.Is(err, playback.ErrNotPaused):
		status = http.StatusConflict
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Debug().Msgf("dashboard: response encode failed: %v", err)
	}
}
