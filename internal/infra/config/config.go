// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Discord   DiscordConfig    `yaml:"discord"`
	Dashboard DashboardConfig  `yaml:"dashboard"`
	Playback  PlaybackConfig   `yaml:"playback"`
	Voice     VoiceConfig      `yaml:"voice"`
	Resolvers []ResolverConfig `yaml:"resolvers" validate:"required,min=1,dive"`
	Messages  MessagesConfig   `yaml:"messages"`
}

// DiscordConfig represents gateway configuration.
type DiscordConfig struct {
	Token         string `yaml:"token" validate:"required"`
	CommandPrefix string `yaml:"command_prefix" default:"!"`
}

// DashboardConfig represents the HTTP dashboard configuration.
// Enabled is a pointer so an explicit false survives defaulting.
type DashboardConfig struct {
	Enabled *bool  `yaml:"enabled" default:"true"`
	Addr    string `yaml:"addr" default:":8080"`
}

// IsEnabled reports whether the dashboard should be served.
func (c DashboardConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// PlaybackConfig represents playback control configuration.
type PlaybackConfig struct {
	ResolveTimeoutSec int     `yaml:"resolve_timeout_sec" default:"30" validate:"omitempty,gte=1,lte=300"`
	DefaultVolume     float64 `yaml:"default_volume" default:"0.75" validate:"gte=0,lte=1.5"`
	Preload           *bool   `yaml:"preload" default:"true"`
}

// PreloadEnabled reports whether speculative preloading is on.
func (c PlaybackConfig) PreloadEnabled() bool {
	return c.Preload == nil || *c.Preload
}

// ResolveTimeout returns the resolution bound as a duration.
func (c PlaybackConfig) ResolveTimeout() time.Duration {
	return time.Duration(c.ResolveTimeoutSec) * time.Second
}

// VoiceConfig represents voice connection supervision configuration.
type VoiceConfig struct {
	ReconnectAttempts      int `yaml:"reconnect_attempts" default:"4" validate:"omitempty,gte=1,lte=10"`
	ReconnectDelaySec      int `yaml:"reconnect_delay_sec" default:"2" validate:"omitempty,gte=1,lte=60"`
	InvalidSessionDelaySec int `yaml:"invalid_session_delay_sec" default:"5" validate:"gte=0,lte=60"`
	ConnectTimeoutSec      int `yaml:"connect_timeout_sec" default:"15" validate:"omitempty,gte=1,lte=120"`
}

// ReconnectDelay returns the base reconnect delay as a duration.
func (c VoiceConfig) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelaySec) * time.Second
}

// InvalidSessionDelay returns the invalid-session penalty as a duration.
func (c VoiceConfig) InvalidSessionDelay() time.Duration {
	return time.Duration(c.InvalidSessionDelaySec) * time.Second
}

// ConnectTimeout returns the per-attempt connect bound as a duration.
func (c VoiceConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSec) * time.Second
}

// ResolverConfig represents a single track resolver configuration.
type ResolverConfig struct {
	Type     string         `yaml:"type" validate:"required"`
	Settings map[string]any `yaml:"settings"`
}

// MessagesConfig represents user-facing chat messages.
type MessagesConfig struct {
	Queued          string `yaml:"queued" default:"Added to queue."`
	DuplicateTrack  string `yaml:"duplicate_track" default:"That track is already queued or playing."`
	NothingPlaying  string `yaml:"nothing_playing" default:"Nothing is playing."`
	NotPaused       string `yaml:"not_paused" default:"Playback is not paused."`
	Busy            string `yaml:"busy" default:"Hold on, still switching tracks."`
	TrackNotFound   string `yaml:"track_not_found" default:"Could not find anything for that."`
	NotInVoice      string `yaml:"not_in_voice" default:"Join a voice channel first."`
	QueueEmpty      string `yaml:"queue_empty" default:"The queue is empty."`
	Stopped         string `yaml:"stopped" default:"Stopped and cleared the queue."`
	DefaultError    string `yaml:"default_error" default:"Something went wrong."`
	PlaylistQueued  string `yaml:"playlist_queued" default:"Queued %d tracks from %s."`
	ReconnectFailed string `yaml:"reconnect_failed" default:"Lost the voice connection and could not get it back. The queue is saved."`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for secrets.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("DISCORD_TOKEN"); v != "" {
		c.Discord.Token = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.setResolverSetting("spotify", "client_id", v)
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.setResolverSetting("spotify", "client_secret", v)
	}
}

func (c *Config) setResolverSetting(resolverType, key, value string) {
	for i := range c.Resolvers {
		if c.Resolvers[i].Type == resolverType {
			if c.Resolvers[i].Settings == nil {
				c.Resolvers[i].Settings = map[string]any{}
			}
			c.Resolvers[i].Settings[key] = value
			return
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}
