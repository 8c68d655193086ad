package resolver

import "errors"

var (
	// ErrSearchUnavailable indicates the search backend could not be reached
	// or answered a non-success status.
	ErrSearchUnavailable = errors.New("search backend unavailable")

	// ErrNoMatchFound is the negative result: the search succeeded but no
	// candidate survived filtering.
	ErrNoMatchFound = errors.New("no matching videos found")

	// ErrMetadataUnavailable indicates the stream backend could not be
	// reached or answered a non-success status.
	ErrMetadataUnavailable = errors.New("stream metadata unavailable")

	// ErrNoAudioStreams indicates the stream backend answered but listed no
	// audio-only representation.
	ErrNoAudioStreams = errors.New("no audio streams found")
)
