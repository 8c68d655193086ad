package core

import (
	"context"
	"time"
)

// QualityTier selects which audio bitrate representation is picked from the
// stream backend's format list.
type QualityTier string

const (
	// QualityLow picks the lowest available bitrate.
	QualityLow QualityTier = "low"
	// QualityMedium picks the middle bitrate by integer division.
	QualityMedium QualityTier = "medium"
	// QualityHigh picks the highest available bitrate.
	QualityHigh QualityTier = "high"
)

// ParseQualityTier validates a quality string, falling back to QualityHigh.
func ParseQualityTier(s string) QualityTier {
	switch QualityTier(s) {
	case QualityLow, QualityMedium, QualityHigh:
		return QualityTier(s)
	}
	return QualityHigh
}

// RepeatMode controls queue advancement at track boundaries.
type RepeatMode string

const (
	RepeatOff RepeatMode = "off"
	RepeatAll RepeatMode = "all"
	RepeatOne RepeatMode = "one"
)

// PlayerState is the playback engine's coarse state.
type PlayerState string

const (
	StateIdle    PlayerState = "idle"
	StateLoading PlayerState = "loading"
	StatePlaying PlayerState = "playing"
	StatePaused  PlayerState = "paused"
)

// Track is an abstract playable item. Identity comes from Spotify metadata or
// a synthesized recommendation ID; the playable URL is resolved lazily and
// cached outside the Track itself, keyed by ID.
type Track struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Artists    []string      `json:"artists"`
	Duration   time.Duration `json:"duration"`
	PreviewURL string        `json:"previewUrl,omitempty"`
	AlbumArt   string        `json:"albumArt,omitempty"`
}

// ListenEvent records a successful playback start for the history store.
type ListenEvent struct {
	TrackID  string
	Title    string
	Artist   string
	PlayedAt time.Time
	Duration time.Duration
}

// TrackResolver turns an abstract track into a playable stream URL.
type TrackResolver interface {
	ResolveTrack(ctx context.Context, track Track) (string, error)
}

// StreamCache maps track IDs to resolved stream URLs. Implementations decide
// capacity and staleness; an expired or missing entry simply means the engine
// resolves again.
type StreamCache interface {
	Get(trackID string) (string, bool)
	Put(trackID, url string)
	Invalidate(trackID string)
}

// HistoryRecorder receives fire-and-forget listen events. Failures must never
// block or surface to playback.
type HistoryRecorder interface {
	Record(ctx context.Context, event ListenEvent) error
}

// Notifier delivers non-blocking user-facing notices (fallback to preview,
// playback failures). Implementations must not block the caller.
type Notifier interface {
	Notify(message string)
}

// Output is the single audio output device owned by the playback engine. It
// stands in for a browser audio element on the client side: one source
// at a time, event callbacks for progress, end of media, and errors.
type Output interface {
	// Load stops any current source and prepares the given URL for playback.
	// duration is the nominal track length used for progress and end-of-media
	// detection; zero means unknown.
	Load(ctx context.Context, url string, duration time.Duration) error
	Play() error
	Pause()
	Stop()
	Seek(seconds float64)
	SetVolume(v float64)
	Position() float64
	HasSource() bool
	SetListener(l OutputListener)
}

// OutputListener receives output device events. The engine implements this.
type OutputListener interface {
	OnProgress(position, duration float64)
	OnEnded()
	OnError(err error)
}

// Recommender suggests tracks based on recent listening history.
type Recommender interface {
	Recommend(ctx context.Context, recent []ListenEvent, count int) ([]Track, error)
}
