// Package audio implements the playback output device. There is no local
// decoder; audio bytes are served to clients through the stream proxy. The
// output validates the source, then drives the playhead off the wall clock so
// the engine sees the same progress, end of media, and error events a real
// media element would raise.
package audio

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"ragam/internal/core"
)

const defaultTickInterval = 250 * time.Millisecond

// ClockOutput implements core.Output with a wall-clock playhead.
type ClockOutput struct {
	client *http.Client
	logger *zap.Logger

	mutex    sync.Mutex
	listener core.OutputListener

	url      string
	duration time.Duration
	playing  bool
	base     time.Duration
	startAt  time.Time
	volume   float64
	stopTick chan struct{}

	tickInterval time.Duration
	now          func() time.Time
}

// NewClockOutput creates an output that validates sources over HTTP.
func NewClockOutput(timeout time.Duration, logger *zap.Logger) *ClockOutput {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &ClockOutput{
		client:       &http.Client{Timeout: timeout},
		logger:       logger,
		volume:       1.0,
		tickInterval: defaultTickInterval,
		now:          time.Now,
	}
}

// SetListener registers the event sink. Must be called before Load.
func (o *ClockOutput) SetListener(l core.OutputListener) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.listener = l
}

// Load stops any current source and validates the new one with a ranged GET.
// Servers that honor ranges answer 206; plain 200 is accepted too.
func (o *ClockOutput) Load(ctx context.Context, url string, duration time.Duration) error {
	o.Stop()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("invalid stream URL: %w", err)
	}
	req.Header.Set("Range", "bytes=0-1")

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("stream source unreachable: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("stream source returned status %d", resp.StatusCode)
	}

	o.mutex.Lock()
	o.url = url
	o.duration = duration
	o.base = 0
	o.playing = false
	o.mutex.Unlock()

	o.logger.Debug("Source loaded",
		zap.String("url", url),
		zap.Duration("duration", duration),
		zap.Int("status", resp.StatusCode))

	return nil
}

// Play starts or resumes the playhead.
func (o *ClockOutput) Play() error {
	o.mutex.Lock()
	if o.url == "" {
		o.mutex.Unlock()
		return fmt.Errorf("no source loaded")
	}
	if o.playing {
		o.mutex.Unlock()
		return nil
	}

	o.playing = true
	o.startAt = o.now()
	stop := make(chan struct{})
	o.stopTick = stop
	interval := o.tickInterval
	o.mutex.Unlock()

	go o.run(stop, interval)
	return nil
}

func (o *ClockOutput) run(stop chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if ended := o.tick(); ended {
				return
			}
		}
	}
}

// tick advances the playhead and reports true once the track ended.
func (o *ClockOutput) tick() bool {
	o.mutex.Lock()
	if !o.playing {
		o.mutex.Unlock()
		return true
	}

	position := o.base + o.now().Sub(o.startAt)
	duration := o.duration
	listener := o.listener

	ended := duration > 0 && position >= duration
	if ended {
		position = duration
		o.playing = false
		o.base = duration
		o.stopTick = nil
	}
	o.mutex.Unlock()

	if listener == nil {
		return ended
	}

	listener.OnProgress(position.Seconds(), duration.Seconds())
	if ended {
		listener.OnEnded()
	}
	return ended
}

// Pause freezes the playhead in place.
func (o *ClockOutput) Pause() {
	o.mutex.Lock()
	if !o.playing {
		o.mutex.Unlock()
		return
	}
	o.base += o.now().Sub(o.startAt)
	o.playing = false
	if o.stopTick != nil {
		close(o.stopTick)
		o.stopTick = nil
	}
	o.mutex.Unlock()
}

// Stop halts playback and drops the source.
func (o *ClockOutput) Stop() {
	o.mutex.Lock()
	o.playing = false
	o.url = ""
	o.duration = 0
	o.base = 0
	if o.stopTick != nil {
		close(o.stopTick)
		o.stopTick = nil
	}
	o.mutex.Unlock()
}

// Seek moves the playhead, clamped to the known duration.
func (o *ClockOutput) Seek(seconds float64) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	target := time.Duration(seconds * float64(time.Second))
	if target < 0 {
		target = 0
	}
	if o.duration > 0 && target > o.duration {
		target = o.duration
	}

	o.base = target
	if o.playing {
		o.startAt = o.now()
	}
}

// SetVolume clamps to the unit range. The proxy serves bytes untouched, so
// volume is bookkeeping reported in status.
func (o *ClockOutput) SetVolume(v float64) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	o.volume = v
}

// Volume returns the last set volume.
func (o *ClockOutput) Volume() float64 {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return o.volume
}

// Position returns the current playhead in seconds.
func (o *ClockOutput) Position() float64 {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	position := o.base
	if o.playing {
		position += o.now().Sub(o.startAt)
	}
	return position.Seconds()
}

// HasSource reports whether a source is loaded.
func (o *ClockOutput) HasSource() bool {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return o.url != ""
}
