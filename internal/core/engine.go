package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrPlaybackFailed means every source for a track was tried and rejected.
var ErrPlaybackFailed = errors.New("playback failed")

const historyWriteTimeout = 5 * time.Second

// Engine owns the single audio output and the playback state machine. It is
// the only writer of the output device; the queue decides order, the resolver
// and cache provide sources, history and notifications are fire-and-forget.
type Engine struct {
	queue    *Queue
	resolver TrackResolver
	cache    StreamCache
	output   Output
	history  HistoryRecorder
	notifier Notifier
	logger   *zap.Logger

	errorAdvanceDelay time.Duration

	mutex        sync.Mutex
	state        PlayerState
	current      *Track
	loadedID     string
	progress     float64
	duration     float64
	volume       float64
	loadSeq      uint64
	advanceTimer *time.Timer

	preloader *Preloader
}

// EngineStatus is a point-in-time snapshot for status consumers.
type EngineStatus struct {
	State       PlayerState `json:"state"`
	Track       *Track      `json:"track,omitempty"`
	Progress    float64     `json:"progress"`
	Duration    float64     `json:"duration"`
	Volume      float64     `json:"volume"`
	Shuffled    bool        `json:"shuffled"`
	Repeat      RepeatMode  `json:"repeat"`
	QueueLength int         `json:"queueLength"`
}

func NewEngine(
	queue *Queue,
	resolver TrackResolver,
	cache StreamCache,
	output Output,
	history HistoryRecorder,
	notifier Notifier,
	errorAdvanceDelay time.Duration,
	logger *zap.Logger,
) *Engine {
	e := &Engine{
		queue:             queue,
		resolver:          resolver,
		cache:             cache,
		output:            output,
		history:           history,
		notifier:          notifier,
		errorAdvanceDelay: errorAdvanceDelay,
		logger:            logger,
		state:             StateIdle,
		volume:            1.0,
	}
	output.SetListener(e)
	return e
}

// SetPreloader attaches the background resolver fed by progress events.
func (e *Engine) SetPreloader(p *Preloader) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.preloader = p
}

// Queue exposes the ordering machine for queue mutations and status.
func (e *Engine) Queue() *Queue {
	return e.queue
}

// PlayTrack starts playback of the given track. Calling it again with the
// track that is already current and loaded toggles play/pause instead of
// resolving again.
func (e *Engine) PlayTrack(ctx context.Context, track Track) error {
	e.mutex.Lock()
	if e.current != nil && e.current.ID == track.ID &&
		e.loadedID == track.ID && e.output.HasSource() {
		e.mutex.Unlock()
		e.TogglePlayPause()
		return nil
	}

	e.cancelPendingAdvanceLocked()
	// Single output rule: the previous source is released before any
	// resolution work, so nothing keeps sounding through the loading phase.
	e.output.Stop()
	e.loadedID = ""
	e.state = StateLoading
	current := track
	e.current = &current
	e.progress = 0
	e.duration = track.Duration.Seconds()
	e.loadSeq++
	seq := e.loadSeq
	e.mutex.Unlock()

	e.logger.Info("Starting track",
		zap.String("trackID", track.ID),
		zap.String("name", track.Name))

	return e.startPlayback(ctx, track, seq)
}

// startPlayback tries sources in order: cached URL, fresh resolution, preview
// clip. A cached URL the output rejects is evicted and replaced by a fresh
// resolution. Late results for a track the user already skipped away from
// still land in the cache but never touch the output.
func (e *Engine) startPlayback(ctx context.Context, track Track, seq uint64) error {
	if url, ok := e.cache.Get(track.ID); ok {
		e.logger.Debug("Stream cache hit", zap.String("trackID", track.ID))
		started, stale := e.trySource(ctx, track, seq, url, false)
		if started || stale {
			return nil
		}
		// The cached URL went bad since it was resolved. Signed upstream URLs
		// expire, so resolve again rather than replaying the failure until
		// the cache entry ages out.
		e.cache.Invalidate(track.ID)
	}

	url, err := e.resolver.ResolveTrack(ctx, track)
	if err != nil {
		e.logger.Warn("Track resolution failed",
			zap.String("trackID", track.ID),
			zap.Error(err))
	} else {
		e.cache.Put(track.ID, url)
		started, stale := e.trySource(ctx, track, seq, url, false)
		if started || stale {
			return nil
		}
	}

	if track.PreviewURL != "" {
		started, stale := e.trySource(ctx, track, seq, track.PreviewURL, true)
		if started || stale {
			return nil
		}
	}

	return e.failPlayback(track, seq)
}

// trySource loads and starts one candidate URL. started reports whether
// playback began; stale means the user moved on mid-attempt and the whole
// play request should end silently.
func (e *Engine) trySource(ctx context.Context, track Track, seq uint64, url string, preview bool) (started, stale bool) {
	if !e.isCurrentLoad(seq) {
		return false, true
	}

	if err := e.output.Load(ctx, url, track.Duration); err != nil {
		e.logger.Warn("Source rejected by output",
			zap.String("trackID", track.ID),
			zap.Bool("preview", preview),
			zap.Error(err))
		return false, false
	}
	if err := e.output.Play(); err != nil {
		e.logger.Warn("Output refused to play", zap.Error(err))
		return false, false
	}

	e.mutex.Lock()
	if seq != e.loadSeq {
		e.mutex.Unlock()
		return false, true
	}
	e.state = StatePlaying
	e.loadedID = track.ID
	e.mutex.Unlock()

	if preview {
		e.notify(fmt.Sprintf("Playing preview for %s", track.Name))
	}
	e.recordListen(track)
	return true, false
}

// failPlayback is the single bounded error path: release the output, notify,
// settle in Idle, advance once after a fixed delay.
func (e *Engine) failPlayback(track Track, seq uint64) error {
	e.mutex.Lock()
	if seq != e.loadSeq {
		e.mutex.Unlock()
		return nil
	}
	e.output.Stop()
	e.loadedID = ""
	e.state = StateIdle
	e.cancelPendingAdvanceLocked()
	e.advanceTimer = time.AfterFunc(e.errorAdvanceDelay, func() {
		e.advanceAfterFailure(track.ID)
	})
	e.mutex.Unlock()

	e.notify(fmt.Sprintf("Could not play: %s", track.Name))
	e.logger.Error("All sources failed", zap.String("trackID", track.ID))

	return fmt.Errorf("%w: %s", ErrPlaybackFailed, track.Name)
}

// advanceAfterFailure moves exactly one step past an unplayable track. Repeat
// modes that would replay the same track settle in Idle instead, otherwise a
// dead track would re-resolve every delay window forever.
func (e *Engine) advanceAfterFailure(failedID string) {
	if e.queue.Repeat() == RepeatOne {
		return
	}

	next, ok := e.queue.NextAfter(failedID)
	if !ok || next.ID == failedID {
		return
	}

	if err := e.PlayTrack(context.Background(), next); err != nil {
		e.logger.Warn("Auto-advance failed", zap.Error(err))
	}
}

// TogglePlayPause flips between playing and paused. With a current track but
// no loaded source it restarts the full play path.
func (e *Engine) TogglePlayPause() {
	e.mutex.Lock()
	switch e.state {
	case StatePlaying:
		e.output.Pause()
		e.state = StatePaused
		e.mutex.Unlock()
		return
	case StatePaused, StateIdle:
		current := e.current
		if current != nil && e.loadedID == current.ID && e.output.HasSource() {
			if err := e.output.Play(); err != nil {
				e.logger.Warn("Resume failed", zap.Error(err))
				e.mutex.Unlock()
				return
			}
			e.state = StatePlaying
			e.mutex.Unlock()
			return
		}
		e.mutex.Unlock()
		if current != nil {
			if err := e.PlayTrack(context.Background(), *current); err != nil {
				e.logger.Warn("Restart failed", zap.Error(err))
			}
		}
	default:
		e.mutex.Unlock()
	}
}

// NextTrack advances per the queue rules. Repeat one restarts the current
// track; an exhausted queue pauses without changing the current track.
func (e *Engine) NextTrack(ctx context.Context) error {
	e.mutex.Lock()
	e.cancelPendingAdvanceLocked()
	current := e.current
	e.mutex.Unlock()

	if e.queue.Repeat() == RepeatOne && current != nil {
		e.restartCurrent()
		return nil
	}

	currentID := ""
	if current != nil {
		currentID = current.ID
	}

	next, ok := e.queue.NextAfter(currentID)
	if !ok {
		e.stopAtQueueEnd()
		return nil
	}
	if next.ID == currentID {
		e.restartCurrent()
		return nil
	}

	return e.PlayTrack(ctx, next)
}

// PreviousTrack retreats per the queue rules, with the scrub-back exception:
// more than 3 seconds in, it restarts the current track instead.
func (e *Engine) PreviousTrack(ctx context.Context) error {
	e.mutex.Lock()
	e.cancelPendingAdvanceLocked()
	current := e.current
	e.mutex.Unlock()

	if current != nil && e.output.Position() > 3 {
		e.restartCurrent()
		return nil
	}

	currentID := ""
	if current != nil {
		currentID = current.ID
	}

	prev, ok := e.queue.PreviousBefore(currentID)
	if !ok {
		return nil
	}
	if prev.ID == currentID {
		e.restartCurrent()
		return nil
	}

	return e.PlayTrack(ctx, prev)
}

func (e *Engine) restartCurrent() {
	e.mutex.Lock()
	current := e.current
	loaded := current != nil && e.loadedID == current.ID && e.output.HasSource()
	e.mutex.Unlock()

	if current == nil {
		return
	}
	if !loaded {
		if err := e.PlayTrack(context.Background(), *current); err != nil {
			e.logger.Warn("Restart failed", zap.Error(err))
		}
		return
	}

	e.output.Seek(0)
	if err := e.output.Play(); err != nil {
		e.logger.Warn("Restart failed", zap.Error(err))
		return
	}

	e.mutex.Lock()
	e.progress = 0
	e.state = StatePlaying
	e.mutex.Unlock()
}

func (e *Engine) stopAtQueueEnd() {
	e.output.Pause()

	e.mutex.Lock()
	if e.state == StatePlaying || e.state == StateLoading {
		e.state = StatePaused
	}
	e.mutex.Unlock()

	e.logger.Debug("Queue exhausted")
}

// SeekTo moves the playhead, clamped to the known duration. Progress updates
// immediately rather than waiting for the next output tick.
func (e *Engine) SeekTo(seconds float64) {
	e.mutex.Lock()
	if seconds < 0 {
		seconds = 0
	}
	if e.duration > 0 && seconds > e.duration {
		seconds = e.duration
	}
	e.progress = seconds
	e.mutex.Unlock()

	e.output.Seek(seconds)
}

// SetVolume clamps to [0,1] and applies immediately.
func (e *Engine) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}

	e.mutex.Lock()
	e.volume = v
	e.mutex.Unlock()

	e.output.SetVolume(v)
}

// Status returns a snapshot of the engine and queue state.
func (e *Engine) Status() EngineStatus {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	var track *Track
	if e.current != nil {
		copied := *e.current
		track = &copied
	}

	return EngineStatus{
		State:       e.state,
		Track:       track,
		Progress:    e.progress,
		Duration:    e.duration,
		Volume:      e.volume,
		Shuffled:    e.queue.IsShuffled(),
		Repeat:      e.queue.Repeat(),
		QueueLength: e.queue.Len(),
	}
}

// OnProgress implements OutputListener; it refreshes telemetry and feeds the
// preloader trigger.
func (e *Engine) OnProgress(position, duration float64) {
	e.mutex.Lock()
	e.progress = position
	if duration > 0 {
		e.duration = duration
	}
	currentID := ""
	if e.current != nil {
		currentID = e.current.ID
	}
	preloader := e.preloader
	e.mutex.Unlock()

	if preloader != nil && currentID != "" {
		preloader.OnProgress(currentID, position, duration)
	}
}

// OnEnded implements OutputListener; natural end of media advances the queue.
func (e *Engine) OnEnded() {
	e.logger.Debug("Track ended")
	if err := e.NextTrack(context.Background()); err != nil {
		e.logger.Warn("Advance after end failed", zap.Error(err))
	}
}

// OnError implements OutputListener; a failing source mid-play takes the same
// bounded error path as a failed start.
func (e *Engine) OnError(err error) {
	e.mutex.Lock()
	current := e.current
	seq := e.loadSeq
	e.mutex.Unlock()

	e.logger.Warn("Output error", zap.Error(err))

	if current == nil {
		return
	}
	// The source went bad mid-play; a fresh resolution is needed next time.
	e.cache.Invalidate(current.ID)
	if failErr := e.failPlayback(*current, seq); failErr != nil {
		e.logger.Debug("Playback failure handled", zap.Error(failErr))
	}
}

func (e *Engine) isCurrentLoad(seq uint64) bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return seq == e.loadSeq
}

func (e *Engine) cancelPendingAdvanceLocked() {
	if e.advanceTimer != nil {
		e.advanceTimer.Stop()
		e.advanceTimer = nil
	}
}

func (e *Engine) notify(message string) {
	if e.notifier != nil {
		e.notifier.Notify(message)
	}
}

func (e *Engine) recordListen(track Track) {
	if e.history == nil {
		return
	}

	event := ListenEvent{
		TrackID:  track.ID,
		Title:    track.Name,
		Artist:   strings.Join(track.Artists, ", "),
		PlayedAt: time.Now(),
		Duration: track.Duration,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
		defer cancel()
		if err := e.history.Record(ctx, event); err != nil {
			e.logger.Warn("Failed to record listen",
				zap.String("trackID", event.TrackID),
				zap.Error(err))
		}
	}()
}
