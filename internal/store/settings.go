package store

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"

	"ragam/internal/core"
)

// Settings persists the user-selected search instance and audio quality tier
// to a JSON file, with fixed defaults when nothing has been saved yet.
type Settings struct {
	mutex  sync.RWMutex
	path   string
	logger *zap.Logger

	instanceURL string
	quality     core.QualityTier
}

type settingsFile struct {
	InstanceURL string `json:"instance_url"`
	Quality     string `json:"quality"`
}

// NewSettings loads persisted settings from path, falling back to the given
// defaults for anything missing or unreadable.
func NewSettings(path, defaultInstanceURL string, defaultQuality core.QualityTier, logger *zap.Logger) *Settings {
	s := &Settings{
		path:        path,
		logger:      logger,
		instanceURL: strings.TrimSuffix(defaultInstanceURL, "/"),
		quality:     defaultQuality,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("Failed to read settings file, using defaults",
				zap.String("path", path),
				zap.Error(err))
		}
		return s
	}

	var parsed settingsFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		logger.Warn("Failed to parse settings file, using defaults",
			zap.String("path", path),
			zap.Error(err))
		return s
	}

	if parsed.InstanceURL != "" {
		s.instanceURL = strings.TrimSuffix(parsed.InstanceURL, "/")
	}
	if parsed.Quality != "" {
		s.quality = core.ParseQualityTier(parsed.Quality)
	}

	return s
}

// InstanceURL returns the selected search instance base URL.
func (s *Settings) InstanceURL() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.instanceURL
}

// Quality returns the selected audio quality tier.
func (s *Settings) Quality() core.QualityTier {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.quality
}

// SetInstanceURL persists a new search instance base URL. Trailing slashes
// are stripped so request paths concatenate cleanly.
func (s *Settings) SetInstanceURL(url string) (string, error) {
	if url == "" {
		return "", fmt.Errorf("instance URL must not be empty")
	}

	clean := strings.TrimSuffix(url, "/")

	s.mutex.Lock()
	s.instanceURL = clean
	s.mutex.Unlock()

	return clean, s.save()
}

// SetQuality persists a new quality tier; unknown values fall back to the
// default tier.
func (s *Settings) SetQuality(quality string) (core.QualityTier, error) {
	tier := core.ParseQualityTier(quality)

	s.mutex.Lock()
	s.quality = tier
	s.mutex.Unlock()

	return tier, s.save()
}

func (s *Settings) save() error {
	s.mutex.RLock()
	payload := settingsFile{
		InstanceURL: s.instanceURL,
		Quality:     string(s.quality),
	}
	s.mutex.RUnlock()

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	s.logger.Debug("Settings saved",
		zap.String("path", s.path),
		zap.String("instanceURL", payload.InstanceURL),
		zap.String("quality", payload.Quality))

	return nil
}
