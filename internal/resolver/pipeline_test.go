package resolver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"ragam/internal/core"
)

type fixedQuality core.QualityTier

func (q fixedQuality) Quality() core.QualityTier { return core.QualityTier(q) }

func TestPipeline_ResolveTrack(t *testing.T) {
	var searchCalls, streamCalls atomic.Int32

	searchServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		searchCalls.Add(1)
		if got := r.URL.Query().Get("q"); got != "Under Pressure Queen David Bowie" {
			t.Errorf("query = %q, expected joined title and artists", got)
		}
		_, _ = w.Write([]byte(`{"items":[
			{"url":"/watch?v=first","type":"stream","title":"Under Pressure","uploaderName":"Queen - Topic","duration":246,"isShort":false},
			{"url":"/watch?v=second","type":"stream","title":"Under Pressure (Live)","uploaderName":"Queen - Topic","duration":300,"isShort":false}
		]}`))
	}))
	defer searchServer.Close()

	streamServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		streamCalls.Add(1)
		// Only the first candidate may be consumed.
		if r.URL.Path != "/api/v1/videos/first" {
			t.Errorf("stream path = %q, expected first candidate", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"adaptiveFormats":[
			{"type":"audio/webm","bitrate":"96000","url":"https://up.example/low?sig=a"},
			{"type":"audio/mp4","bitrate":"160000","url":"https://up.example/high?sig=a"}
		]}`))
	}))
	defer streamServer.Close()

	pipeline := NewPipeline(
		NewSearchClient(searchServer.URL, 0, zap.NewNop()),
		NewStreamClient(streamServer.URL, "proxy.example", 0, zap.NewNop()),
		fixedQuality(core.QualityHigh),
		zap.NewNop(),
	)

	track := core.Track{ID: "t1", Name: "Under Pressure", Artists: []string{"Queen", "David Bowie"}}
	resolved, err := pipeline.ResolveTrack(context.Background(), track)
	if err != nil {
		t.Fatalf("ResolveTrack() error = %v", err)
	}

	u, _ := url.Parse(resolved)
	if u.Host != "proxy.example" || u.Path != "/high" {
		t.Errorf("resolved = %q, expected proxied high-bitrate URL", resolved)
	}
	if searchCalls.Load() != 1 || streamCalls.Load() != 1 {
		t.Errorf("calls: search=%d stream=%d, expected 1 each", searchCalls.Load(), streamCalls.Load())
	}
}

func TestPipeline_NoMatchFound(t *testing.T) {
	searchServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer searchServer.Close()

	pipeline := NewPipeline(
		NewSearchClient(searchServer.URL, 0, zap.NewNop()),
		NewStreamClient("http://unused.example", "proxy.example", 0, zap.NewNop()),
		fixedQuality(core.QualityHigh),
		zap.NewNop(),
	)

	_, err := pipeline.ResolveTrack(context.Background(), core.Track{ID: "t1", Name: "Nothing"})
	if !errors.Is(err, ErrNoMatchFound) {
		t.Errorf("ResolveTrack() error = %v, expected ErrNoMatchFound", err)
	}
}

func TestPipeline_EmptyQuery(t *testing.T) {
	pipeline := NewPipeline(
		NewSearchClient("http://unused.example", 0, zap.NewNop()),
		NewStreamClient("http://unused.example", "proxy.example", 0, zap.NewNop()),
		fixedQuality(core.QualityHigh),
		zap.NewNop(),
	)

	_, err := pipeline.ResolveTrack(context.Background(), core.Track{ID: "t1"})
	if !errors.Is(err, ErrNoMatchFound) {
		t.Errorf("ResolveTrack() with empty metadata error = %v, expected ErrNoMatchFound", err)
	}
}
