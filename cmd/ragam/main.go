// Package main provides the Ragam player backend entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"ragam/internal/audio"
	"ragam/internal/core"
	"ragam/internal/history"
	httpserver "ragam/internal/http"
	"ragam/internal/llm"
	"ragam/internal/resolver"
	"ragam/internal/spotify"
	"ragam/internal/store"
)

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ragam",
	Short: "Ragam - personal music player backend",
	Long: `Ragam resolves abstract tracks (Spotify metadata or AI suggestions) to
playable audio streams via Piped/Invidious instances, proxies the bytes, and
drives a queue with shuffle, repeat, and next-track preloading.`,
	RunE: runRagam,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("search-base-url", "", "search instance base URL")
	rootCmd.PersistentFlags().String("instances-url", "", "published instance list URL")
	rootCmd.PersistentFlags().String("stream-host", "", "stream backend host")
	rootCmd.PersistentFlags().String("proxy-host", "", "proxy host substituted into stream URLs")
	rootCmd.PersistentFlags().String("quality", "high", "audio quality tier (low, medium, high)")
	rootCmd.PersistentFlags().String("history-path", "", "listen history database path")
	rootCmd.PersistentFlags().String("settings-path", "", "persisted settings file path")
	rootCmd.PersistentFlags().String("llm-provider", "none", "LLM provider (openai, anthropic, none)")
	rootCmd.PersistentFlags().String("llm-model", "", "LLM model name")
	rootCmd.PersistentFlags().String("llm-api-key", "", "LLM API key")
	rootCmd.PersistentFlags().String("spotify-client-id", "", "Spotify client ID")
	rootCmd.PersistentFlags().String("spotify-client-secret", "", "Spotify client secret")
	rootCmd.PersistentFlags().String("spotify-redirect-url", "", "Spotify OAuth redirect URL")
	rootCmd.PersistentFlags().String("spotify-playlist-id", "", "playlist to load into the queue at startup")
	rootCmd.PersistentFlags().Bool("spotify-load-liked", false, "load liked songs into the queue at startup")
	rootCmd.PersistentFlags().Int("server-port", 3001, "HTTP server port")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}
}

func initConfig() {
	envFile := ".env"
	if cfgFile != "" {
		envFile = cfgFile
	}

	if err := gotenv.Load(envFile); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		}
	}

	viper.SetEnvPrefix("RAGAM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	config = buildConfig()
	logger = buildLogger(config.Log.Level)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	if v := viper.GetString("search-base-url"); v != "" {
		cfg.Search.BaseURL = v
	}
	if v := viper.GetString("instances-url"); v != "" {
		cfg.Search.InstancesURL = v
	}
	if v := viper.GetString("stream-host"); v != "" {
		cfg.Stream.Host = v
	}
	if v := viper.GetString("proxy-host"); v != "" {
		cfg.Stream.ProxyHost = v
	}
	if v := viper.GetString("quality"); v != "" {
		cfg.Player.Quality = v
	}
	if v := viper.GetString("history-path"); v != "" {
		cfg.History.Path = v
	}
	if v := viper.GetString("settings-path"); v != "" {
		cfg.Server.SettingsPath = v
	}

	cfg.LLM.Provider = viper.GetString("llm-provider")
	cfg.LLM.Model = viper.GetString("llm-model")
	cfg.LLM.APIKey = viper.GetString("llm-api-key")
	cfg.LLM.BaseURL = viper.GetString("llm-base-url")

	cfg.Spotify.ClientID = viper.GetString("spotify-client-id")
	cfg.Spotify.ClientSecret = viper.GetString("spotify-client-secret")
	cfg.Spotify.RedirectURL = viper.GetString("spotify-redirect-url")
	cfg.Spotify.PlaylistID = viper.GetString("spotify-playlist-id")
	cfg.Spotify.LoadLiked = viper.GetBool("spotify-load-liked")
	if v := viper.GetString("spotify-token-path"); v != "" {
		cfg.Spotify.TokenPath = v
	}

	if v := viper.GetString("server-host"); v != "" {
		cfg.Server.Host = v
	}
	if v := viper.GetInt("server-port"); v != 0 {
		cfg.Server.Port = v
	}

	cfg.Log.Level = viper.GetString("log-level")

	return cfg
}

func buildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	builtLogger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}

	return builtLogger
}

// logNotifier delivers user-facing notices through the log stream; a frontend
// can subscribe to the status endpoint instead.
type logNotifier struct {
	logger *zap.Logger
}

func (n *logNotifier) Notify(message string) {
	n.logger.Info("Notice", zap.String("message", message))
}

func runRagam(_ *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting Ragam",
		zap.String("search_base_url", config.Search.BaseURL),
		zap.String("stream_host", config.Stream.Host),
		zap.String("llm_provider", config.LLM.Provider))

	if err := validateConfig(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	settings := store.NewSettings(config.Server.SettingsPath, config.Search.BaseURL,
		core.ParseQualityTier(config.Player.Quality), logger.Named("settings"))

	search := resolver.NewSearchClient(settings.InstanceURL(), config.Search.Timeout, logger.Named("search"))
	streams := resolver.NewStreamClient(config.Stream.Host, config.Stream.ProxyHost,
		config.Stream.Timeout, logger.Named("stream"))
	pipeline := resolver.NewPipeline(search, streams, settings, logger.Named("pipeline"))

	cache := store.NewStreamCache(config.Cache.MaxEntries, config.Cache.TTL)
	output := audio.NewClockOutput(config.Stream.Timeout, logger.Named("audio"))

	recorder, err := history.NewRecorder(config.History.Path, config.History.SeenCapacity, logger.Named("history"))
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}
	defer func() {
		if closeErr := recorder.Close(); closeErr != nil {
			logger.Warn("Failed to close history store", zap.Error(closeErr))
		}
	}()

	recommender, err := llm.NewProvider(&config.LLM, logger.Named("llm"))
	if err != nil {
		return fmt.Errorf("failed to create LLM provider: %w", err)
	}

	queue := core.NewQueue()
	engine := core.NewEngine(queue, pipeline, cache, output, recorder,
		&logNotifier{logger: logger.Named("notify")},
		config.Player.ErrorAdvanceDelay, logger.Named("engine"))
	engine.SetPreloader(core.NewPreloader(queue, pipeline, cache,
		config.Player.PreloadThresholdSecs, logger.Named("preloader")))

	if config.Spotify.ClientID != "" {
		if err := loadSpotifyLibrary(ctx, queue); err != nil {
			return err
		}
	}

	httpServer := httpserver.NewServer(&config.Server, httpserver.Deps{
		Engine:      engine,
		Settings:    settings,
		Search:      search,
		Streams:     streams,
		Instances:   store.NewInstanceLister(config.Search.InstancesURL, config.Search.Timeout, logger.Named("instances")),
		History:     recorder,
		Recommender: recommender,
	}, logger.Named("http"))

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return httpServer.Start(gCtx)
	})

	logger.Info("Ragam started successfully",
		zap.String("http_addr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)),
		zap.Int("queue_length", queue.Len()))

	if err := g.Wait(); err != nil {
		logger.Error("Ragam stopped with error", zap.Error(err))
		return err
	}

	logger.Info("Ragam stopped gracefully")
	return nil
}

// loadSpotifyLibrary seeds the queue from the configured playlist or the
// user's liked songs. Failures here are fatal only for authentication; an
// empty library just means an empty starting queue.
func loadSpotifyLibrary(ctx context.Context, queue *core.Queue) error {
	client := spotify.NewClient(&config.Spotify, logger.Named("spotify"))
	if err := client.Authenticate(ctx); err != nil {
		return fmt.Errorf("failed to authenticate with Spotify: %w", err)
	}

	loadCtx, cancelLoad := context.WithTimeout(ctx, 2*time.Minute)
	defer cancelLoad()

	switch {
	case config.Spotify.PlaylistID != "":
		tracks, err := client.PlaylistTracks(loadCtx, config.Spotify.PlaylistID)
		if err != nil {
			logger.Warn("Failed to load playlist", zap.Error(err))
			return nil
		}
		queue.AddMany(tracks)
		logger.Info("Playlist loaded into queue",
			zap.String("playlistID", config.Spotify.PlaylistID),
			zap.Int("tracks", len(tracks)))
	case config.Spotify.LoadLiked:
		tracks, err := client.LikedTracks(loadCtx)
		if err != nil {
			logger.Warn("Failed to load liked songs", zap.Error(err))
			return nil
		}
		queue.AddMany(tracks)
		logger.Info("Liked songs loaded into queue", zap.Int("tracks", len(tracks)))
	}

	return nil
}

const noneProvider = "none"

func validateConfig() error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", config.Server.Port)
	}

	if core.ParseQualityTier(config.Player.Quality) != core.QualityTier(config.Player.Quality) {
		logger.Warn("Unknown quality tier, falling back to high",
			zap.String("quality", config.Player.Quality))
	}

	if config.LLM.Provider != noneProvider && config.LLM.Provider != "" {
		if config.LLM.APIKey == "" {
			return fmt.Errorf("LLM API key is required for provider: %s", config.LLM.Provider)
		}
	}

	if config.Spotify.ClientID != "" && config.Spotify.ClientSecret == "" {
		return fmt.Errorf("spotify client secret is required when a client ID is set")
	}

	return nil
}
