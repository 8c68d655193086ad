package core

import (
	"time"
)

type Config struct {
	Search  SearchConfig
	Stream  StreamConfig
	Player  PlayerConfig
	Cache   CacheConfig
	History HistoryConfig
	LLM     LLMConfig
	Spotify SpotifyConfig
	Server  ServerConfig
	Log     LogConfig
}

type SearchConfig struct {
	// BaseURL of the selected search instance. Overridden at runtime by the
	// persisted settings store.
	BaseURL string
	// InstancesURL serves the published list of selectable instances.
	InstancesURL string
	Timeout      time.Duration
}

type StreamConfig struct {
	// Host of the stream metadata backend.
	Host string
	// ProxyHost replaces the authority of every resolved stream URL. The
	// upstream hosts are frequently geo-blocked and lack CORS headers.
	ProxyHost string
	Timeout   time.Duration
}

type PlayerConfig struct {
	// Quality is the default tier; the persisted settings store wins.
	Quality string
	// PreloadThresholdSecs is the remaining-time trigger for background
	// resolution of the next queued track.
	PreloadThresholdSecs float64
	// ErrorAdvanceDelay is how long the engine waits after a playback failure
	// before auto-advancing to the next track.
	ErrorAdvanceDelay time.Duration
}

type CacheConfig struct {
	// MaxEntries bounds the resolved-stream cache.
	MaxEntries int
	// TTL expires cached stream URLs; the upstream URLs are signed and
	// time-limited, so a long-paused session must re-resolve.
	TTL time.Duration
}

type HistoryConfig struct {
	Path string
	// SeenCapacity bounds the per-session duplicate-listen filter.
	SeenCapacity int
}

type LLMConfig struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	TokenPath    string
	// PlaylistID is loaded into the queue at startup when set; otherwise the
	// user's liked songs are used when LoadLiked is on.
	PlaylistID string
	LoadLiked  bool
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	SettingsPath string
}

type LogConfig struct {
	Level  string
	Format string
}

func DefaultConfig() *Config {
	return &Config{
		Search: SearchConfig{
			BaseURL:      "https://api.piped.private.coffee",
			InstancesURL: "https://raw.githubusercontent.com/n-ce/Uma/main/dynamic_instances.json",
			Timeout:      10 * time.Second,
		},
		Stream: StreamConfig{
			Host:      "https://yt.omada.cafe",
			ProxyHost: "yt.omada.cafe",
			Timeout:   15 * time.Second,
		},
		Player: PlayerConfig{
			Quality:              string(QualityHigh),
			PreloadThresholdSecs: 5,
			ErrorAdvanceDelay:    2 * time.Second,
		},
		Cache: CacheConfig{
			MaxEntries: 512,
			TTL:        5 * time.Hour,
		},
		History: HistoryConfig{
			Path:         "./ragam_history.db",
			SeenCapacity: 10000,
		},
		LLM: LLMConfig{
			Provider: "none",
		},
		Spotify: SpotifyConfig{
			TokenPath: "./spotify_token.json",
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         3001,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			SettingsPath: "./ragam_settings.json",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
