// Package spotify provides the metadata source for the player's queue. Tracks
// come from the Spotify Web API; actual audio never does.
package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"ragam/internal/core"
)

const (
	// FilePermission is the permission for token files
	FilePermission = 0600
	// MaxSearchResults limits track search results returned to the queue
	MaxSearchResults = 10
	// DefaultLikedLimit is how many liked songs a page fetch requests
	DefaultLikedLimit = 50
)

type Client struct {
	config *core.SpotifyConfig
	logger *zap.Logger
	client *spotify.Client
	auth   *spotifyauth.Authenticator
}

type TokenData struct {
	Token *oauth2.Token `json:"token"`
}

func NewClient(config *core.SpotifyConfig, logger *zap.Logger) *Client {
	auth := spotifyauth.New(
		spotifyauth.WithRedirectURL(config.RedirectURL),
		spotifyauth.WithScopes(
			spotifyauth.ScopePlaylistReadPrivate,
			spotifyauth.ScopePlaylistReadCollaborative,
			spotifyauth.ScopeUserLibraryRead,
		),
		spotifyauth.WithClientID(config.ClientID),
		spotifyauth.WithClientSecret(config.ClientSecret),
	)

	return &Client{
		config: config,
		logger: logger,
		auth:   auth,
	}
}

func (c *Client) Authenticate(ctx context.Context) error {
	token, err := c.loadToken()
	if err != nil {
		c.logger.Info("No saved token found, starting OAuth flow")
		return c.startOAuthFlow(ctx)
	}

	client := spotify.New(c.auth.Client(ctx, token))
	c.client = client

	user, err := client.CurrentUser(ctx)
	if err != nil {
		c.logger.Warn("Saved token invalid, starting OAuth flow", zap.Error(err))
		return c.startOAuthFlow(ctx)
	}

	c.logger.Info("Authenticated successfully", zap.String("user", user.DisplayName))
	return nil
}

// SearchTracks finds tracks matching a free-text query.
func (c *Client) SearchTracks(ctx context.Context, query string) ([]core.Track, error) {
	if c.client == nil {
		return nil, fmt.Errorf("client not authenticated")
	}

	results, err := c.client.Search(ctx, query, spotify.SearchTypeTrack)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	if results.Tracks == nil {
		return nil, nil
	}

	var tracks []core.Track
	for i := range results.Tracks.Tracks {
		if len(tracks) >= MaxSearchResults {
			break
		}
		tracks = append(tracks, convertTrack(&results.Tracks.Tracks[i]))
	}

	return tracks, nil
}

// PlaylistTracks returns every track of a playlist, in playlist order.
func (c *Client) PlaylistTracks(ctx context.Context, playlistID string) ([]core.Track, error) {
	if c.client == nil {
		return nil, fmt.Errorf("client not authenticated")
	}

	page, err := c.client.GetPlaylistItems(ctx, spotify.ID(playlistID))
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist items: %w", err)
	}

	var tracks []core.Track
	for {
		for i := range page.Items {
			full := page.Items[i].Track.Track
			if full == nil {
				// Episodes and local files have no track payload.
				continue
			}
			tracks = append(tracks, convertTrack(full))
		}

		err = c.client.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to page playlist items: %w", err)
		}
	}

	c.logger.Debug("Playlist loaded",
		zap.String("playlistID", playlistID),
		zap.Int("tracks", len(tracks)))

	return tracks, nil
}

// LikedTracks returns the user's saved songs, newest first.
func (c *Client) LikedTracks(ctx context.Context) ([]core.Track, error) {
	if c.client == nil {
		return nil, fmt.Errorf("client not authenticated")
	}

	page, err := c.client.CurrentUsersTracks(ctx, spotify.Limit(DefaultLikedLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to get liked tracks: %w", err)
	}

	var tracks []core.Track
	for {
		for i := range page.Tracks {
			tracks = append(tracks, convertTrack(&page.Tracks[i].FullTrack))
		}

		err = c.client.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to page liked tracks: %w", err)
		}
	}

	c.logger.Debug("Liked tracks loaded", zap.Int("tracks", len(tracks)))

	return tracks, nil
}

func convertTrack(track *spotify.FullTrack) core.Track {
	var artists []string
	for _, artist := range track.Artists {
		artists = append(artists, artist.Name)
	}

	var albumArt string
	if len(track.Album.Images) > 0 {
		albumArt = track.Album.Images[0].URL
	}

	return core.Track{
		ID:         string(track.ID),
		Name:       track.Name,
		Artists:    artists,
		Duration:   time.Duration(track.Duration) * time.Millisecond,
		PreviewURL: track.PreviewURL,
		AlbumArt:   albumArt,
	}
}

func (c *Client) startOAuthFlow(ctx context.Context) error {
	state := "ragam-auth-state"
	authURL := c.auth.AuthURL(state)

	fmt.Printf("Please visit the following URL to authorize the application:\n%s\n", authURL)
	fmt.Print("Enter the authorization code: ")

	var code string
	if _, err := fmt.Scanln(&code); err != nil {
		return fmt.Errorf("failed to read authorization code: %w", err)
	}

	token, err := c.auth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange code for token: %w", err)
	}

	if saveErr := c.saveToken(token); saveErr != nil {
		c.logger.Warn("Failed to save token", zap.Error(saveErr))
	}

	client := spotify.New(c.auth.Client(ctx, token))
	c.client = client

	user, err := client.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}

	c.logger.Info("OAuth flow completed successfully", zap.String("user", user.DisplayName))
	return nil
}

func (c *Client) loadToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(c.config.TokenPath)
	if err != nil {
		return nil, err
	}

	var tokenData TokenData
	if err := json.Unmarshal(data, &tokenData); err != nil {
		return nil, err
	}

	return tokenData.Token, nil
}

func (c *Client) saveToken(token *oauth2.Token) error {
	tokenData := TokenData{Token: token}

	data, err := json.MarshalIndent(tokenData, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(c.config.TokenPath, data, FilePermission)
}
