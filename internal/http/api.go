package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"ragam/internal/core"
	"ragam/internal/resolver"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.deps.Engine.Status())
}

type playRequest struct {
	Track   *core.Track `json:"track,omitempty"`
	TrackID string      `json:"trackId,omitempty"`
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req playRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var track core.Track
	switch {
	case req.Track != nil:
		track = *req.Track
	case req.TrackID != "":
		found := false
		for _, queued := range s.deps.Engine.Queue().Tracks() {
			if queued.ID == req.TrackID {
				track = queued
				found = true
				break
			}
		}
		if !found {
			s.writeError(w, http.StatusNotFound, "track not in queue")
			return
		}
	default:
		s.writeError(w, http.StatusBadRequest, "track or trackId required")
		return
	}

	s.metrics.PlaybackTotal.WithLabelValues("play").Inc()

	if err := s.deps.Engine.PlayTrack(r.Context(), track); err != nil {
		if errors.Is(err, core.ErrPlaybackFailed) {
			s.metrics.ErrorsTotal.WithLabelValues("engine", "playback_failed").Inc()
			s.writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, s.deps.Engine.Status())
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s.metrics.PlaybackTotal.WithLabelValues("pause").Inc()
	s.deps.Engine.TogglePlayPause()
	s.writeJSON(w, http.StatusOK, s.deps.Engine.Status())
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s.metrics.PlaybackTotal.WithLabelValues("next").Inc()
	if err := s.deps.Engine.NextTrack(r.Context()); err != nil {
		s.logger.Warn("Next failed", zap.Error(err))
	}
	s.writeJSON(w, http.StatusOK, s.deps.Engine.Status())
}

func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s.metrics.PlaybackTotal.WithLabelValues("previous").Inc()
	if err := s.deps.Engine.PreviousTrack(r.Context()); err != nil {
		s.logger.Warn("Previous failed", zap.Error(err))
	}
	s.writeJSON(w, http.StatusOK, s.deps.Engine.Status())
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Seconds float64 `json:"seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.deps.Engine.SeekTo(req.Seconds)
	s.writeJSON(w, http.StatusOK, s.deps.Engine.Status())
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Volume float64 `json:"volume"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.deps.Engine.SetVolume(req.Volume)
	s.writeJSON(w, http.StatusOK, s.deps.Engine.Status())
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	queue := s.deps.Engine.Queue()

	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, http.StatusOK, map[string]any{
			"tracks":   queue.Tracks(),
			"shuffled": queue.IsShuffled(),
			"repeat":   queue.Repeat(),
		})

	case http.MethodPost:
		var req struct {
			Tracks []core.Track `json:"tracks"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		for _, track := range req.Tracks {
			if track.ID == "" || track.Name == "" {
				s.writeError(w, http.StatusBadRequest, "tracks need id and name")
				return
			}
		}
		queue.AddMany(req.Tracks)
		s.metrics.QueueLength.Set(float64(queue.Len()))
		s.writeJSON(w, http.StatusOK, map[string]int{"queueLength": queue.Len()})

	case http.MethodDelete:
		queue.Clear()
		s.metrics.QueueLength.Set(0)
		s.writeJSON(w, http.StatusOK, map[string]int{"queueLength": 0})

	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleShuffle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	currentID := ""
	if status := s.deps.Engine.Status(); status.Track != nil {
		currentID = status.Track.ID
	}

	shuffled := s.deps.Engine.Queue().ToggleShuffle(currentID)
	s.writeJSON(w, http.StatusOK, map[string]bool{"shuffled": shuffled})
}

func (s *Server) handleRepeat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	mode := s.deps.Engine.Queue().ToggleRepeat()
	s.writeJSON(w, http.StatusOK, map[string]core.RepeatMode{"repeat": mode})
}

type settingsPayload struct {
	InstanceURL string `json:"instanceUrl"`
	Quality     string `json:"quality"`
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, http.StatusOK, settingsPayload{
			InstanceURL: s.deps.Settings.InstanceURL(),
			Quality:     string(s.deps.Settings.Quality()),
		})

	case http.MethodPut:
		var req settingsPayload
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if req.InstanceURL != "" {
			clean, err := s.deps.Settings.SetInstanceURL(req.InstanceURL)
			if err != nil {
				s.writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			// The search client switches instances immediately.
			s.deps.Search.SetBaseURL(clean)
		}
		if req.Quality != "" {
			if _, err := s.deps.Settings.SetQuality(req.Quality); err != nil {
				s.writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}

		s.writeJSON(w, http.StatusOK, settingsPayload{
			InstanceURL: s.deps.Settings.InstanceURL(),
			Quality:     string(s.deps.Settings.Quality()),
		})

	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleInstances(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	instances, err := s.deps.Instances.Fetch(r.Context())
	if err != nil {
		s.metrics.ErrorsTotal.WithLabelValues("instances", "fetch").Inc()
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"instances": instances})
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	count := 5
	if raw := r.URL.Query().Get("count"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "count must be a positive integer")
			return
		}
		count = parsed
	}

	recent, err := s.deps.History.Recent(r.Context(), 20)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	tracks, err := s.deps.Recommender.Recommend(r.Context(), recent, count)
	if err != nil {
		s.metrics.ErrorsTotal.WithLabelValues("recommender", "llm").Inc()
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"tracks": tracks})
}

// handleScrape is the server-side resolution path: a video ID straight to a
// proxy-ready stream URL at the configured quality.
func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	videoID := r.URL.Query().Get("videoId")
	if videoID == "" {
		s.writeError(w, http.StatusBadRequest, "videoId required")
		return
	}

	started := time.Now()
	url, err := s.deps.Streams.ResolveStream(r.Context(), videoID, s.deps.Settings.Quality())
	s.metrics.ResolutionTime.Observe(time.Since(started).Seconds())
	if err != nil {
		switch {
		case errors.Is(err, resolver.ErrNoAudioStreams):
			s.writeError(w, http.StatusNotFound, "no audio streams")
		case errors.Is(err, resolver.ErrMetadataUnavailable):
			s.writeError(w, http.StatusBadGateway, "stream backend unavailable")
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		s.metrics.ResolutionsTotal.WithLabelValues("scrape", "error").Inc()
		return
	}

	s.metrics.ResolutionsTotal.WithLabelValues("scrape", "ok").Inc()
	s.writeJSON(w, http.StatusOK, map[string]string{"url": url})
}
