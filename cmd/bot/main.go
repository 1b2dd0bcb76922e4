// Package main provides the bot entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/sacudo/sacudo/internal/api/dashboard"
	"github.com/sacudo/sacudo/internal/app/dispatcher"
	"github.com/sacudo/sacudo/internal/app/playback"
	"github.com/sacudo/sacudo/internal/app/session"
	"github.com/sacudo/sacudo/internal/app/voice"
	"github.com/sacudo/sacudo/internal/infra/config"
	"github.com/sacudo/sacudo/internal/infra/discord"
	"github.com/sacudo/sacudo/internal/infra/logger"
	"github.com/sacudo/sacudo/internal/infra/resolver"
)

var (
	app        = kingpin.New("sacudo", "Chat-driven music bot for Discord")
	configPath = app.Flag("config", "Path to config file").Default("config/bot.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// list-resolvers command
	listResolversCmd = app.Command("list-resolvers", "List supported track resolvers and exit")
)

func init() {
	// start command (default) - no need to store the command
	app.Command("start", "Start the bot (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Handle list-resolvers command
	if command == listResolversCmd.FullCommand() {
		printResolvers()
		return
	}

	// Initialize logger
	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	// Override with command-line flags if specified
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	// Load config
	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	// Run bot (defer ensures shutdown hook is called)
	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Bot error: %v", err)
		os.Exit(1)
	}
}

// run executes the main bot logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx := context.Background()

	// Build the resolver chain from config
	chain, err := resolver.NewChainFromConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build resolver chain: %w", err)
	}
	zlog.Info().Msgf("Resolvers ready: %v", chain.Names())

	// The session factory needs the gateway session held by the bot, and
	// the bot needs the dispatcher. The factory is only invoked once the
	// bot is receiving events, so binding the bot late is safe.
	var bot *discord.Bot

	voiceCfg := voice.Config{
		MaxAttempts:         cfg.Voice.ReconnectAttempts,
		BaseDelay:           cfg.Voice.ReconnectDelay(),
		InvalidSessionDelay: cfg.Voice.InvalidSessionDelay(),
		ConnectTimeout:      cfg.Voice.ConnectTimeout(),
	}
	playbackCfg := playback.Config{
		ResolveTimeout: cfg.Playback.ResolveTimeout(),
		Preload:        cfg.Playback.PreloadEnabled(),
		DefaultVolume:  cfg.Playback.DefaultVolume,
	}

	registry := session.NewRegistry(func(guildID string) *playback.Controller {
		sup := voice.NewSupervisor(discord.NewVoiceClient(bot.Session()), guildID, voiceCfg)
		return playback.NewController(guildID, playbackCfg, chain, sup)
	})

	d := dispatcher.New(registry, chain)

	bot, err = discord.NewBot(cfg, d)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	if err := bot.Start(); err != nil {
		return fmt.Errorf("failed to open gateway connection: %w", err)
	}
	zlog.Info().Msg("Gateway connection established")

	// Channel to capture server startup errors
	serverErrCh := make(chan error, 1)

	var server *http.Server
	if cfg.Dashboard.IsEnabled() {
		server = &http.Server{
			Addr:    cfg.Dashboard.Addr,
			Handler: h2c.NewHandler(dashboard.NewServer(d).Handler(), &http2.Server{}),
		}
		go func() {
			zlog.Info().Msgf("Starting dashboard: addr=%s", cfg.Dashboard.Addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				serverErrCh <- err
			}
		}()
	}

	// Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		if stopErr := bot.Stop(); stopErr != nil {
			zlog.Error().Msgf("Failed to close gateway connection: %v", stopErr)
		}
		return fmt.Errorf("dashboard error: %w", err)
	}

	// Stop accepting commands and leave voice channels before tearing
	// down the HTTP surface.
	for _, guildID := range registry.GuildIDs() {
		if sess, err := registry.Get(guildID); err == nil {
			if err := sess.Controller.Stop(); err != nil {
				zlog.Debug().Msgf("Stop on guild %s during shutdown: %v", guildID, err)
			}
		}
	}
	if err := bot.Stop(); err != nil {
		zlog.Error().Msgf("Failed to close gateway connection: %v", err)
	}

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zlog.Error().Msgf("Failed to shutdown dashboard: %v", err)
		}
	}

	zlog.Info().Msg("Bot stopped")
	return nil
}

// printResolvers prints the resolver types the bot can be configured with.
func printResolvers() {
	fmt.Println("Available Resolvers:")
	fmt.Printf("  %-10s - %s\n", resolver.TypeYtdlp, "YouTube URLs, free-text search and YouTube playlists (yt-dlp)")
	fmt.Printf("  %-10s - %s\n", resolver.TypeSpotify, "Spotify track, album and playlist links (rewritten to YouTube)")
}
