package http

import (
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Upstream playlists are tiny; anything bigger is not a playlist.
const maxPlaylistBytes = 10 << 20

var absoluteURLPattern = regexp.MustCompile(`https?://[^\s"']+`)

// handleProxy relays stream bytes from upstream hosts that block browsers via
// geo/IP checks or missing CORS headers. Range requests pass through both
// ways so clients can seek; m3u8 playlist bodies get every absolute URL
// rewritten to come back through the proxy too.
func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	raw := r.URL.Query().Get("url")
	if raw == "" {
		s.writeError(w, http.StatusBadRequest, "url required")
		return
	}

	target, err := url.Parse(raw)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		s.writeError(w, http.StatusBadRequest, "invalid url")
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, raw, http.NoBody)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid url")
		return
	}
	if rangeHeader := r.Header.Get("Range"); rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	if ua := r.Header.Get("User-Agent"); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := s.proxyClient.Do(req)
	if err != nil {
		s.logger.Warn("Proxy upstream failed",
			zap.String("host", target.Host),
			zap.Error(err))
		s.metrics.ProxyTotal.WithLabelValues("upstream_error").Inc()
		s.writeError(w, http.StatusBadGateway, "upstream unreachable")
		return
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	s.metrics.ProxyTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	header := w.Header()
	header.Set("Access-Control-Allow-Origin", "*")
	header.Set("Access-Control-Allow-Headers", "Range")
	header.Set("Access-Control-Expose-Headers", "Content-Range, Content-Length, Accept-Ranges")
	for _, name := range []string{"Content-Type", "Accept-Ranges", "Content-Range"} {
		if value := resp.Header.Get(name); value != "" {
			header.Set(name, value)
		}
	}

	if isPlaylist(resp, target) {
		s.servePlaylist(w, resp)
		return
	}

	if length := resp.Header.Get("Content-Length"); length != "" {
		header.Set("Content-Length", length)
	}
	w.WriteHeader(resp.StatusCode)

	written, err := io.Copy(w, resp.Body)
	s.metrics.ProxyBytesTotal.Add(float64(written))
	if err != nil {
		// Client hangups while streaming are routine.
		s.logger.Debug("Proxy copy ended early", zap.Error(err))
	}
}

func isPlaylist(resp *http.Response, target *url.URL) bool {
	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "mpegurl") {
		return true
	}
	return strings.HasSuffix(target.Path, ".m3u8")
}

// servePlaylist rewrites every absolute URL in the playlist body so segment
// and variant fetches also route through the proxy.
func (s *Server) servePlaylist(w http.ResponseWriter, resp *http.Response) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPlaylistBytes))
	if err != nil {
		s.writeError(w, http.StatusBadGateway, "failed to read playlist")
		return
	}

	rewritten := absoluteURLPattern.ReplaceAllFunc(body, func(match []byte) []byte {
		return []byte("/proxy?url=" + url.QueryEscape(string(match)))
	})

	w.Header().Set("Content-Length", strconv.Itoa(len(rewritten)))
	w.WriteHeader(resp.StatusCode)
	written, _ := w.Write(rewritten)
	s.metrics.ProxyBytesTotal.Add(float64(written))
}
