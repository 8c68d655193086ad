package llm

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"ragam/internal/core"
)

type fakeClient struct {
	lastSystem string
	lastUser   string
	response   string
	err        error
}

func (f *fakeClient) Complete(_ context.Context, system, user string) (string, error) {
	f.lastSystem = system
	f.lastUser = user
	return f.response, f.err
}

func sampleHistory() []core.ListenEvent {
	return []core.ListenEvent{
		{TrackID: "t1", Title: "Song One", Artist: "Artist A", PlayedAt: time.Now()},
		{TrackID: "t2", Title: "Song Two", Artist: "Artist B", PlayedAt: time.Now()},
	}
}

func TestNewProvider_None(t *testing.T) {
	provider, err := NewProvider(&core.LLMConfig{Provider: "none"}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}

	if _, err := provider.Recommend(context.Background(), sampleHistory(), 3); err == nil {
		t.Error("noop provider should refuse to recommend")
	}
}

func TestNewProvider_Unsupported(t *testing.T) {
	if _, err := NewProvider(&core.LLMConfig{Provider: "bard"}, zap.NewNop()); err == nil {
		t.Error("unsupported provider should fail")
	}
}

func TestNewProvider_MissingAPIKey(t *testing.T) {
	for _, name := range []string{"openai", "anthropic"} {
		t.Run(name, func(t *testing.T) {
			if _, err := NewProvider(&core.LLMConfig{Provider: name}, zap.NewNop()); err == nil {
				t.Errorf("%s provider without API key should fail", name)
			}
		})
	}
}

func TestProvider_Recommend(t *testing.T) {
	client := &fakeClient{
		response: `{"tracks":[{"title":"New Song","artist":"Artist C"},{"title":"","artist":"Nobody"},{"title":"Other Song","artist":"Artist D"}]}`,
	}
	provider := &Provider{config: &core.LLMConfig{}, logger: zap.NewNop(), client: client}

	tracks, err := provider.Recommend(context.Background(), sampleHistory(), 5)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}

	if len(tracks) != 2 {
		t.Fatalf("Recommend() returned %d tracks, expected 2 (empty title dropped)", len(tracks))
	}
	if tracks[0].Name != "New Song" || tracks[0].Artists[0] != "Artist C" {
		t.Errorf("unexpected first track: %+v", tracks[0])
	}
	if tracks[0].ID == "" || tracks[0].ID == tracks[1].ID {
		t.Error("recommended tracks need unique synthesized IDs")
	}

	if !strings.Contains(client.lastUser, "Song One by Artist A") {
		t.Errorf("history should appear in the prompt, got %q", client.lastUser)
	}
}

func TestProvider_RecommendCountCap(t *testing.T) {
	client := &fakeClient{
		response: `{"tracks":[{"title":"A","artist":"a"},{"title":"B","artist":"b"},{"title":"C","artist":"c"}]}`,
	}
	provider := &Provider{config: &core.LLMConfig{}, logger: zap.NewNop(), client: client}

	tracks, err := provider.Recommend(context.Background(), sampleHistory(), 2)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(tracks) != 2 {
		t.Errorf("Recommend() should cap at requested count, got %d", len(tracks))
	}
}

func TestProvider_RecommendEmptyHistory(t *testing.T) {
	provider := &Provider{config: &core.LLMConfig{}, logger: zap.NewNop(), client: &fakeClient{}}

	if _, err := provider.Recommend(context.Background(), nil, 3); err == nil {
		t.Error("empty history should be rejected")
	}
}

func TestProvider_RecommendBadJSON(t *testing.T) {
	client := &fakeClient{response: "sorry, I cannot help with that"}
	provider := &Provider{config: &core.LLMConfig{}, logger: zap.NewNop(), client: client}

	if _, err := provider.Recommend(context.Background(), sampleHistory(), 3); err == nil {
		t.Error("unparseable response should fail")
	}
}
