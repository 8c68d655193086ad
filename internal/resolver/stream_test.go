package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"go.uber.org/zap"

	"ragam/internal/core"
)

func newStreamTestServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/videos/vid1" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func bitrateListBody() string {
	// Deliberately unsorted provider order with mixed video entries.
	return `{"adaptiveFormats":[
		{"type":"video/mp4; codecs=\"avc1\"","bitrate":"1500000","url":"https://up.example/video"},
		{"type":"audio/webm; codecs=\"opus\"","bitrate":"128000","url":"https://up.example/a128?sig=x"},
		{"type":"audio/mp4; codecs=\"mp4a\"","bitrate":"256000","url":"https://up.example/a256?sig=x"},
		{"type":"audio/webm; codecs=\"opus\"","bitrate":"96000","url":"https://up.example/a96?sig=x"},
		{"type":"audio/webm; codecs=\"opus\"","bitrate":"160000","url":"https://up.example/a160?sig=x"}
	]}`
}

func TestStreamClient_TierSelection(t *testing.T) {
	tests := []struct {
		tier        core.QualityTier
		expectedURL string
	}{
		{core.QualityHigh, "/a256"},
		{core.QualityMedium, "/a160"},
		{core.QualityLow, "/a96"},
	}

	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			server := newStreamTestServer(t, bitrateListBody(), http.StatusOK)
			defer server.Close()

			client := NewStreamClient(server.URL, "proxy.example", 0, zap.NewNop())

			resolved, err := client.ResolveStream(context.Background(), "vid1", tt.tier)
			if err != nil {
				t.Fatalf("ResolveStream() error = %v", err)
			}

			u, err := url.Parse(resolved)
			if err != nil {
				t.Fatalf("resolved URL unparseable: %v", err)
			}
			if u.Path != tt.expectedURL {
				t.Errorf("tier %s picked path %q, expected %q", tt.tier, u.Path, tt.expectedURL)
			}
			if u.Host != "proxy.example" {
				t.Errorf("resolved host = %q, expected proxy host", u.Host)
			}
		})
	}
}

func TestStreamClient_NoAudioStreams(t *testing.T) {
	body := `{"adaptiveFormats":[{"type":"video/mp4","bitrate":"1500000","url":"https://up.example/video"}]}`
	server := newStreamTestServer(t, body, http.StatusOK)
	defer server.Close()

	client := NewStreamClient(server.URL, "proxy.example", 0, zap.NewNop())

	_, err := client.ResolveStream(context.Background(), "vid1", core.QualityHigh)
	if !errors.Is(err, ErrNoAudioStreams) {
		t.Errorf("ResolveStream() error = %v, expected ErrNoAudioStreams", err)
	}
}

func TestStreamClient_MetadataUnavailable(t *testing.T) {
	server := newStreamTestServer(t, "", http.StatusServiceUnavailable)
	defer server.Close()

	client := NewStreamClient(server.URL, "proxy.example", 0, zap.NewNop())

	_, err := client.ResolveStream(context.Background(), "vid1", core.QualityHigh)
	if !errors.Is(err, ErrMetadataUnavailable) {
		t.Errorf("ResolveStream() error = %v, expected ErrMetadataUnavailable", err)
	}
}

func TestPickByTier_IndexRule(t *testing.T) {
	// For [96000,128000,160000,256000]: high 256000, low 96000,
	// medium 160000.
	bitrates := []int{96000, 128000, 160000, 256000}
	streams := make([]StreamCandidate, 0, len(bitrates))
	for _, b := range bitrates {
		streams = append(streams, StreamCandidate{BitrateBps: b, URL: fmt.Sprintf("https://u/%d", b)})
	}
	// pickByTier expects descending order, as fetchAudioStreams produces.
	sorted := []StreamCandidate{streams[3], streams[2], streams[1], streams[0]}

	if got := pickByTier(sorted, core.QualityHigh).BitrateBps; got != 256000 {
		t.Errorf("high picked %d, expected 256000", got)
	}
	if got := pickByTier(sorted, core.QualityLow).BitrateBps; got != 96000 {
		t.Errorf("low picked %d, expected 96000", got)
	}
	if got := pickByTier(sorted, core.QualityMedium).BitrateBps; got != 160000 {
		t.Errorf("medium picked %d, expected 160000", got)
	}
}

func TestPickByTier_SingleStream(t *testing.T) {
	streams := []StreamCandidate{{BitrateBps: 128000}}
	for _, tier := range []core.QualityTier{core.QualityLow, core.QualityMedium, core.QualityHigh} {
		if got := pickByTier(streams, tier).BitrateBps; got != 128000 {
			t.Errorf("tier %s picked %d from single-entry list", tier, got)
		}
	}
}

func TestRewriteHost(t *testing.T) {
	rewritten, err := RewriteHost("https://rr3---sn-xyz.googlevideo.com/videoplayback?id=123", "proxy.example")
	if err != nil {
		t.Fatalf("RewriteHost() error = %v", err)
	}

	expected := "https://proxy.example/videoplayback?id=123"
	if rewritten != expected {
		t.Errorf("RewriteHost() = %q, expected %q", rewritten, expected)
	}
}
