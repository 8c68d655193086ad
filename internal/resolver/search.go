// Package resolver turns abstract tracks into playable audio stream URLs via
// a search backend (candidate videos) and a stream backend (adaptive formats).
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// searchFilter tunes the search backend toward music content.
	searchFilter = "music_songs"
	// topicMarker is the canonical official-channel suffix. Results missing
	// it get it appended so ranking heuristics stay consistent across
	// instances.
	topicMarker = " - Topic"

	defaultSearchTimeout = 10 * time.Second
)

// SearchCandidate is one video entry answered by the search backend.
type SearchCandidate struct {
	VideoID         string
	Title           string
	ChannelTitle    string
	DurationSeconds int
	ThumbnailURL    string
	IsOfficial      bool
}

type searchResponse struct {
	Items []searchItem `json:"items"`
}

type searchItem struct {
	URL          string `json:"url"`
	Type         string `json:"type"`
	Title        string `json:"title"`
	Thumbnail    string `json:"thumbnail"`
	UploaderName string `json:"uploaderName"`
	Duration     int    `json:"duration"`
	IsShort      bool   `json:"isShort"`
}

// SearchClient queries a Piped-compatible search instance.
type SearchClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewSearchClient creates a search client against the given instance base URL.
func NewSearchClient(baseURL string, timeout time.Duration, logger *zap.Logger) *SearchClient {
	if timeout <= 0 {
		timeout = defaultSearchTimeout
	}
	return &SearchClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// SetBaseURL switches the search instance, e.g. after a settings change.
func (c *SearchClient) SetBaseURL(baseURL string) {
	c.baseURL = strings.TrimSuffix(baseURL, "/")
}

// Search returns candidate videos for a free-text query in provider order.
// The first entry is treated as the best match; no secondary re-ranking is
// performed. An empty slice is a valid no-match outcome, not an error.
func (c *SearchClient) Search(ctx context.Context, query string) ([]SearchCandidate, error) {
	reqURL := fmt.Sprintf("%s/search?q=%s&filter=%s", c.baseURL, url.QueryEscape(query), searchFilter)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchUnavailable, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrSearchUnavailable, resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrSearchUnavailable, err)
	}

	candidates := make([]SearchCandidate, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item.IsShort || item.Type != "stream" {
			continue
		}

		videoID := extractVideoID(item.URL)
		if videoID == "" {
			c.logger.Debug("Skipping search item without video ID",
				zap.String("url", item.URL),
				zap.String("title", item.Title))
			continue
		}

		channel := item.UploaderName
		isOfficial := strings.HasSuffix(channel, topicMarker)
		if !isOfficial {
			channel += topicMarker
		}

		candidates = append(candidates, SearchCandidate{
			VideoID:         videoID,
			Title:           item.Title,
			ChannelTitle:    channel,
			DurationSeconds: item.Duration,
			ThumbnailURL:    item.Thumbnail,
			IsOfficial:      isOfficial,
		})
	}

	c.logger.Debug("Search completed",
		zap.String("query", query),
		zap.Int("rawItems", len(parsed.Items)),
		zap.Int("candidates", len(candidates)))

	return candidates, nil
}

// extractVideoID pulls the ID out of a "/watch?v={id}" result URL.
func extractVideoID(resultURL string) string {
	u, err := url.Parse(resultURL)
	if err != nil {
		return ""
	}
	return u.Query().Get("v")
}
