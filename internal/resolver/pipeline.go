package resolver

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"ragam/internal/core"
	"ragam/pkg/query"
)

// QualitySource answers the currently configured audio quality tier. The
// settings store implements this so tier changes apply without restart.
type QualitySource interface {
	Quality() core.QualityTier
}

// Pipeline chains search and stream resolution: query construction, first
// candidate selection, bitrate pick, proxy host rewrite.
type Pipeline struct {
	search  *SearchClient
	streams *StreamClient
	quality QualitySource
	logger  *zap.Logger
}

// NewPipeline wires the two backend clients into a core.TrackResolver.
func NewPipeline(search *SearchClient, streams *StreamClient, quality QualitySource, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		search:  search,
		streams: streams,
		quality: quality,
		logger:  logger,
	}
}

// ResolveTrack finds a matching video for the track and resolves it to a
// proxied audio URL at the configured quality tier.
func (p *Pipeline) ResolveTrack(ctx context.Context, track core.Track) (string, error) {
	q := query.ForTrack(track.Name, track.Artists)
	if q == "" {
		return "", fmt.Errorf("%w: empty query for track %s", ErrNoMatchFound, track.ID)
	}

	candidates, err := p.search.Search(ctx, q)
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: %q", ErrNoMatchFound, q)
	}

	// First result is the best match; re-ranking by title similarity is a
	// documented non-feature.
	best := candidates[0]
	p.logger.Debug("Best match selected",
		zap.String("trackID", track.ID),
		zap.String("query", q),
		zap.String("videoID", best.VideoID),
		zap.String("matchTitle", best.Title))

	return p.streams.ResolveStream(ctx, best.VideoID, p.quality.Quality())
}
