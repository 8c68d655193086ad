package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"go.uber.org/zap"

	"ragam/internal/core"
)

func newProxyFixture(t *testing.T) *httptest.Server {
	t.Helper()

	server := NewServer(&core.ServerConfig{Host: "127.0.0.1", Port: 0}, Deps{}, zap.NewNop())
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func proxyGet(t *testing.T, base, target string, headers map[string]string) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet,
		base+"/proxy?url="+url.QueryEscape(target), http.NoBody)
	if err != nil {
		t.Fatal(err)
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestProxy_RangePassthrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Range"); got != "bytes=100-199" {
			t.Errorf("upstream Range = %q", got)
		}
		w.Header().Set("Content-Type", "audio/webm")
		w.Header().Set("Content-Range", "bytes 100-199/5000")
		w.Header().Set("Accept-Ranges", "bytes")
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(make([]byte, 100))
	}))
	defer upstream.Close()

	ts := newProxyFixture(t)
	resp := proxyGet(t, ts.URL, upstream.URL+"/videoplayback?id=123", map[string]string{
		"Range": "bytes=100-199",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		t.Errorf("status = %d, expected 206", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Range"); got != "bytes 100-199/5000" {
		t.Errorf("Content-Range = %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if len(body) != 100 {
		t.Errorf("body length = %d", len(body))
	}
}

func TestProxy_PlaylistRewrite(t *testing.T) {
	playlist := `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=128000
https://cdn.example/stream/variant1.m3u8
#EXTINF:4.0,
https://cdn.example/seg/0001.ts
`
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		_, _ = w.Write([]byte(playlist))
	}))
	defer upstream.Close()

	ts := newProxyFixture(t)
	resp := proxyGet(t, ts.URL, upstream.URL+"/master.m3u8", nil)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	text := string(body)

	if strings.Contains(text, "https://cdn.example") {
		t.Errorf("absolute URLs must be rewritten:\n%s", text)
	}
	if !strings.Contains(text, "/proxy?url="+url.QueryEscape("https://cdn.example/stream/variant1.m3u8")) {
		t.Errorf("variant URL not proxy-wrapped:\n%s", text)
	}
	if !strings.Contains(text, "/proxy?url="+url.QueryEscape("https://cdn.example/seg/0001.ts")) {
		t.Errorf("segment URL not proxy-wrapped:\n%s", text)
	}
	if !strings.Contains(text, "#EXTM3U") {
		t.Error("playlist tags must survive the rewrite")
	}
}

func TestProxy_BadRequests(t *testing.T) {
	ts := newProxyFixture(t)

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, ts.URL+"/proxy", http.NoBody)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing url status = %d", resp.StatusCode)
	}

	resp = proxyGet(t, ts.URL, "ftp://example.com/file", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("non-http scheme status = %d", resp.StatusCode)
	}
}

func TestProxy_UpstreamUnreachable(t *testing.T) {
	ts := newProxyFixture(t)

	// A closed port: connection refused immediately.
	resp := proxyGet(t, ts.URL, "http://127.0.0.1:1/stream", nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, expected 502", resp.StatusCode)
	}
}
