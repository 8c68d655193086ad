package spotify

import (
	"testing"
	"time"

	"github.com/zmb3/spotify/v2"
)

func TestConvertTrack(t *testing.T) {
	full := &spotify.FullTrack{
		SimpleTrack: spotify.SimpleTrack{
			ID:       "6rqhFgbbKwnb9MLmUQDhG6",
			Name:     "Bohemian Rhapsody",
			Duration: 354000,
			Artists: []spotify.SimpleArtist{
				{Name: "Queen"},
			},
			PreviewURL: "https://p.scdn.co/mp3-preview/abc",
		},
		Album: spotify.SimpleAlbum{
			Name: "A Night at the Opera",
			Images: []spotify.Image{
				{URL: "https://i.scdn.co/image/large"},
				{URL: "https://i.scdn.co/image/small"},
			},
		},
	}

	track := convertTrack(full)

	if track.ID != "6rqhFgbbKwnb9MLmUQDhG6" {
		t.Errorf("ID = %q", track.ID)
	}
	if track.Name != "Bohemian Rhapsody" {
		t.Errorf("Name = %q", track.Name)
	}
	if len(track.Artists) != 1 || track.Artists[0] != "Queen" {
		t.Errorf("Artists = %v", track.Artists)
	}
	if track.Duration != 354*time.Second {
		t.Errorf("Duration = %v", track.Duration)
	}
	if track.PreviewURL != "https://p.scdn.co/mp3-preview/abc" {
		t.Errorf("PreviewURL = %q", track.PreviewURL)
	}
	if track.AlbumArt != "https://i.scdn.co/image/large" {
		t.Errorf("AlbumArt = %q, expected the first (largest) image", track.AlbumArt)
	}
}

func TestConvertTrack_NoImages(t *testing.T) {
	track := convertTrack(&spotify.FullTrack{})
	if track.AlbumArt != "" {
		t.Errorf("AlbumArt = %q, expected empty", track.AlbumArt)
	}
}
