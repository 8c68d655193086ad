package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"ragam/internal/core"
)

const defaultStreamTimeout = 15 * time.Second

// StreamCandidate is one audio representation from the stream backend.
type StreamCandidate struct {
	URL        string
	BitrateBps int
	MimeType   string
}

type videoResponse struct {
	AdaptiveFormats []adaptiveFormat `json:"adaptiveFormats"`
}

type adaptiveFormat struct {
	Type    string      `json:"type"`
	Bitrate json.Number `json:"bitrate"`
	URL     string      `json:"url"`
}

// StreamClient resolves video IDs to direct audio URLs against an
// Invidious-compatible backend, rewriting the answered host to the proxy.
type StreamClient struct {
	host      string
	proxyHost string
	client    *http.Client
	logger    *zap.Logger
}

// NewStreamClient creates a stream client for the given backend host. Every
// resolved URL has its authority replaced by proxyHost before it is returned.
func NewStreamClient(host, proxyHost string, timeout time.Duration, logger *zap.Logger) *StreamClient {
	if timeout <= 0 {
		timeout = defaultStreamTimeout
	}
	return &StreamClient{
		host:      strings.TrimSuffix(host, "/"),
		proxyHost: proxyHost,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

// ResolveStream fetches the format list for a video and returns the direct
// audio URL for the requested quality tier, host-rewritten to the proxy.
func (c *StreamClient) ResolveStream(ctx context.Context, videoID string, tier core.QualityTier) (string, error) {
	streams, err := c.fetchAudioStreams(ctx, videoID)
	if err != nil {
		return "", err
	}

	chosen := pickByTier(streams, tier)

	rewritten, err := RewriteHost(chosen.URL, c.proxyHost)
	if err != nil {
		return "", fmt.Errorf("%w: rewrite: %v", ErrMetadataUnavailable, err)
	}

	c.logger.Debug("Stream resolved",
		zap.String("videoID", videoID),
		zap.String("tier", string(tier)),
		zap.Int("bitrate", chosen.BitrateBps),
		zap.Int("available", len(streams)))

	return rewritten, nil
}

// fetchAudioStreams returns the audio-only representations for a video,
// stable-sorted by descending bitrate.
func (c *StreamClient) fetchAudioStreams(ctx context.Context, videoID string) ([]StreamCandidate, error) {
	reqURL := fmt.Sprintf("%s/api/v1/videos/%s", c.host, url.PathEscape(videoID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetadataUnavailable, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetadataUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrMetadataUnavailable, resp.StatusCode)
	}

	var parsed videoResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrMetadataUnavailable, err)
	}

	streams := make([]StreamCandidate, 0, len(parsed.AdaptiveFormats))
	for _, format := range parsed.AdaptiveFormats {
		if !strings.HasPrefix(format.Type, "audio") {
			continue
		}
		bitrate, _ := strconv.Atoi(format.Bitrate.String())
		streams = append(streams, StreamCandidate{
			URL:        format.URL,
			BitrateBps: bitrate,
			MimeType:   format.Type,
		})
	}

	if len(streams) == 0 {
		return nil, fmt.Errorf("%w: video %s", ErrNoAudioStreams, videoID)
	}

	// Stable keeps provider order for equal bitrates.
	sort.SliceStable(streams, func(i, j int) bool {
		return streams[i].BitrateBps > streams[j].BitrateBps
	})

	return streams, nil
}

// pickByTier maps a quality tier onto the bitrate-descending stream list:
// high takes the maximum, low the minimum, medium the middle by integer
// division ([96k,128k,160k,256k] -> 160k).
func pickByTier(streams []StreamCandidate, tier core.QualityTier) StreamCandidate {
	switch tier {
	case core.QualityLow:
		return streams[len(streams)-1]
	case core.QualityMedium:
		return streams[(len(streams)-1)/2]
	default:
		return streams[0]
	}
}

// RewriteHost replaces the authority of rawURL with host, leaving scheme,
// path, and query untouched.
func RewriteHost(rawURL, host string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	u.Host = host
	return u.String(), nil
}
