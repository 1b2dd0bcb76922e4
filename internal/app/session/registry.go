package session

import (
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/sacudo/sacudo/internal/app/playback"
)

// ErrUnknownGuild is returned when no session exists for a guild.
var ErrUnknownGuild = errors.New("no session for guild")

// Factory builds the playback controller for a newly seen guild.
type Factory func(guildID string) *playback.Controller

// Registry manages guild sessions with thread-safe access. Sessions are
// created lazily on first use and live for the process lifetime.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	factory  Factory
}

// NewRegistry creates a new session registry.
func NewRegistry(factory Factory) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		factory:  factory,
	}
}

// GetOrCreate returns the guild's session, creating it on first use.
func (r *Registry) GetOrCreate(guildID string) *Session {
	r.mu.RLock()
	s, ok := r.sessions[guildID]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[guildID]; ok {
		return s
	}
	s = &Session{
		GuildID:    guildID,
		Controller: r.factory(guildID),
		CreatedAt:  time.Now(),
	}
	r.sessions[guildID] = s
	return s
}

// Get returns the guild's session if one exists.
func (r *Registry) Get(guildID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[guildID]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownGuild, "guild %s", guildID)
	}
	return s, nil
}

// GuildIDs returns the ids of all known guilds, sorted for stable output.
func (r *Registry) GuildIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// All returns all sessions.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}
