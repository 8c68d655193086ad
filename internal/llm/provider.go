// Package llm generates track recommendations from listening history using a
// configurable language model provider.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ragam/internal/core"
)

// Provider implements core.Recommender on top of a configured LLM backend.
type Provider struct {
	config *core.LLMConfig
	logger *zap.Logger
	client LLMClient
}

// LLMClient is a single chat completion call. The provider owns prompting and
// response parsing so backends stay thin.
type LLMClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

func NewProvider(config *core.LLMConfig, logger *zap.Logger) (*Provider, error) {
	var client LLMClient
	var err error

	switch config.Provider {
	case "openai":
		client, err = NewOpenAIClient(config, logger)
	case "anthropic":
		client, err = NewAnthropicClient(config, logger)
	case "none", "":
		return &Provider{
			config: config,
			logger: logger,
			client: &NoOpClient{},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", config.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", config.Provider, err)
	}

	return &Provider{
		config: config,
		logger: logger,
		client: client,
	}, nil
}

type recommendResponse struct {
	Tracks []struct {
		Title  string `json:"title"`
		Artist string `json:"artist"`
	} `json:"tracks"`
}

const recommendSystemPrompt = `You are a music recommender. Given a listener's recent plays, suggest songs they have not heard yet but will likely enjoy.

Respond with a JSON object in this exact format:
{
  "tracks": [
    {
      "title": "Song Title",
      "artist": "Artist Name"
    }
  ]
}

Rules:
1. Only suggest real, existing songs
2. Never repeat a song from the listener's history
3. Stay close to the history's genres and eras
4. Return exactly the requested number of tracks`

// Recommend asks the configured backend for up to count suggestions based on
// the listener's recent plays. Suggested tracks get synthesized IDs since they
// carry no catalog identity yet.
func (p *Provider) Recommend(ctx context.Context, recent []core.ListenEvent, count int) ([]core.Track, error) {
	if len(recent) == 0 {
		return nil, fmt.Errorf("no listening history to recommend from")
	}
	if count <= 0 {
		count = 5
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Suggest %d songs. Recent plays, newest first:\n", count)
	for _, event := range recent {
		fmt.Fprintf(&sb, "- %s by %s\n", event.Title, event.Artist)
	}

	content, err := p.client.Complete(ctx, recommendSystemPrompt, sb.String())
	if err != nil {
		return nil, err
	}

	var response recommendResponse
	if err := json.Unmarshal([]byte(content), &response); err != nil {
		p.logger.Error("Failed to parse recommendation response",
			zap.Error(err),
			zap.String("content", content))
		return nil, fmt.Errorf("failed to parse recommendation response: %w", err)
	}

	tracks := make([]core.Track, 0, len(response.Tracks))
	for _, suggestion := range response.Tracks {
		if suggestion.Title == "" || suggestion.Artist == "" {
			continue
		}
		tracks = append(tracks, core.Track{
			ID:      "rec-" + uuid.NewString(),
			Name:    suggestion.Title,
			Artists: []string{suggestion.Artist},
		})
		if len(tracks) == count {
			break
		}
	}

	p.logger.Info("Recommendations generated",
		zap.Int("requested", count),
		zap.Int("returned", len(tracks)))

	return tracks, nil
}

type NoOpClient struct{}

func (n *NoOpClient) Complete(ctx context.Context, system, user string) (string, error) {
	return "", fmt.Errorf("LLM provider not configured")
}
