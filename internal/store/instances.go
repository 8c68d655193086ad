package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Instance is one selectable search backend from the published list.
type Instance struct {
	Name   string `json:"name"`
	APIURL string `json:"api_url"`
}

type instanceList struct {
	Piped []string `json:"piped"`
}

// InstanceLister fetches the published dynamic list of search instances.
type InstanceLister struct {
	listURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewInstanceLister creates a lister for the given published JSON URL.
func NewInstanceLister(listURL string, timeout time.Duration, logger *zap.Logger) *InstanceLister {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &InstanceLister{
		listURL: listURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Fetch returns the selectable instances. Entries with unparseable URLs are
// skipped with a warning rather than failing the whole list.
func (l *InstanceLister) Fetch(ctx context.Context) ([]Instance, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.listURL, http.NoBody)
	if err != nil {
		return nil, err
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch instance list: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("instance list returned status %d", resp.StatusCode)
	}

	var parsed instanceList
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode instance list: %w", err)
	}

	instances := make([]Instance, 0, len(parsed.Piped))
	for _, raw := range parsed.Piped {
		u, err := url.Parse(raw)
		if err != nil || u.Hostname() == "" {
			l.logger.Warn("Skipping invalid instance URL", zap.String("url", raw))
			continue
		}
		instances = append(instances, Instance{
			Name:   u.Hostname(),
			APIURL: raw,
		})
	}

	return instances, nil
}
