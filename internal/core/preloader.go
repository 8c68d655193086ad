package core

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Preloader resolves the next queued track in the background shortly before
// the current one ends, so advancing is a cache hit. It is purely an
// optimization: every failure is logged and swallowed, and an in-flight set
// keeps rapid progress ticks from firing duplicate resolutions.
type Preloader struct {
	queue    *Queue
	resolver TrackResolver
	cache    StreamCache
	logger   *zap.Logger

	thresholdSecs float64

	mutex    sync.Mutex
	inflight map[string]struct{}
}

func NewPreloader(queue *Queue, resolver TrackResolver, cache StreamCache, thresholdSecs float64, logger *zap.Logger) *Preloader {
	if thresholdSecs <= 0 {
		thresholdSecs = 5
	}
	return &Preloader{
		queue:         queue,
		resolver:      resolver,
		cache:         cache,
		logger:        logger,
		thresholdSecs: thresholdSecs,
		inflight:      make(map[string]struct{}),
	}
}

// OnProgress is fed every telemetry tick. Inside the threshold window it peeks
// at the upcoming track without mutating queue state and resolves it if nobody
// has yet.
func (p *Preloader) OnProgress(currentTrackID string, position, duration float64) {
	if duration <= 0 || duration-position > p.thresholdSecs {
		return
	}
	if p.queue.Repeat() == RepeatOne {
		// No track change coming.
		return
	}

	next, ok := p.queue.NextAfter(currentTrackID)
	if !ok || next.ID == currentTrackID {
		return
	}
	if _, ok := p.cache.Get(next.ID); ok {
		return
	}

	p.mutex.Lock()
	if _, resolving := p.inflight[next.ID]; resolving {
		p.mutex.Unlock()
		return
	}
	p.inflight[next.ID] = struct{}{}
	p.mutex.Unlock()

	go p.resolve(next)
}

func (p *Preloader) resolve(track Track) {
	defer func() {
		p.mutex.Lock()
		delete(p.inflight, track.ID)
		p.mutex.Unlock()
	}()

	p.logger.Debug("Preloading next track",
		zap.String("trackID", track.ID),
		zap.String("name", track.Name))

	url, err := p.resolver.ResolveTrack(context.Background(), track)
	if err != nil {
		p.logger.Debug("Preload failed",
			zap.String("trackID", track.ID),
			zap.Error(err))
		return
	}

	p.cache.Put(track.ID, url)

	p.logger.Debug("Preload complete", zap.String("trackID", track.ID))
}
