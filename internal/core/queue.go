package core

import (
	"math/rand"
	"sync"
	"time"
)

// Queue holds the play order. Shuffling keeps a snapshot of the unshuffled
// order so disabling shuffle restores it exactly. All methods are safe for
// concurrent use; advancement decisions are pure lookups so the engine and the
// preloader can both consult them without mutating anything.
type Queue struct {
	mutex    sync.RWMutex
	tracks   []Track
	original []Track
	shuffled bool
	repeat   RepeatMode
	rng      *rand.Rand
}

func NewQueue() *Queue {
	return &Queue{
		repeat: RepeatOff,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // shuffle order needs no crypto randomness
	}
}

// Add appends one track. The unshuffled snapshot follows along only while
// shuffle is off; a frozen snapshot stays frozen.
func (q *Queue) Add(track Track) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.tracks = append(q.tracks, track)
	if !q.shuffled {
		q.original = append(q.original, track)
	}
}

// AddMany appends tracks preserving their order.
func (q *Queue) AddMany(tracks []Track) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.tracks = append(q.tracks, tracks...)
	if !q.shuffled {
		q.original = append(q.original, tracks...)
	}
}

// Clear empties both orders. Current playback is untouched; that is the
// engine's business.
func (q *Queue) Clear() {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.tracks = nil
	q.original = nil
}

// Tracks returns a copy of the current play order.
func (q *Queue) Tracks() []Track {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	out := make([]Track, len(q.tracks))
	copy(out, q.tracks)
	return out
}

// Len returns the number of queued tracks.
func (q *Queue) Len() int {
	q.mutex.RLock()
	defer q.mutex.RUnlock()
	return len(q.tracks)
}

// IsShuffled reports whether a shuffle permutation is active.
func (q *Queue) IsShuffled() bool {
	q.mutex.RLock()
	defer q.mutex.RUnlock()
	return q.shuffled
}

// Repeat returns the active repeat mode.
func (q *Queue) Repeat() RepeatMode {
	q.mutex.RLock()
	defer q.mutex.RUnlock()
	return q.repeat
}

// ToggleRepeat cycles off, all, one.
func (q *Queue) ToggleRepeat() RepeatMode {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	switch q.repeat {
	case RepeatOff:
		q.repeat = RepeatAll
	case RepeatAll:
		q.repeat = RepeatOne
	default:
		q.repeat = RepeatOff
	}
	return q.repeat
}

// ToggleShuffle flips between a Fisher-Yates permutation and the insertion
// order. When enabling, the currently playing track moves to the front of the
// permutation so playback position survives the reorder. When disabling, the
// snapshot is restored verbatim. No tracks are lost either way.
func (q *Queue) ToggleShuffle(currentTrackID string) bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if q.shuffled {
		q.tracks = make([]Track, len(q.original))
		copy(q.tracks, q.original)
		q.shuffled = false
		return false
	}

	q.original = make([]Track, len(q.tracks))
	copy(q.original, q.tracks)

	shuffledTracks := make([]Track, len(q.tracks))
	copy(shuffledTracks, q.tracks)
	for i := len(shuffledTracks) - 1; i > 0; i-- {
		j := q.rng.Intn(i + 1)
		shuffledTracks[i], shuffledTracks[j] = shuffledTracks[j], shuffledTracks[i]
	}

	if currentTrackID != "" {
		for i, track := range shuffledTracks {
			if track.ID == currentTrackID {
				copy(shuffledTracks[1:i+1], shuffledTracks[:i])
				shuffledTracks[0] = track
				break
			}
		}
	}

	q.tracks = shuffledTracks
	q.shuffled = true
	return true
}

// NextAfter returns the track that follows currentTrackID. At the tail,
// repeat all wraps to the front; otherwise there is no next track and the
// second return is false. An unknown or empty ID starts from the front.
func (q *Queue) NextAfter(currentTrackID string) (Track, bool) {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	if len(q.tracks) == 0 {
		return Track{}, false
	}

	next := indexOf(q.tracks, currentTrackID) + 1
	if next >= len(q.tracks) {
		if q.repeat != RepeatAll {
			return Track{}, false
		}
		next = 0
	}
	return q.tracks[next], true
}

// PreviousBefore returns the track preceding currentTrackID. At the front,
// repeat all wraps to the tail; otherwise the first track is returned again.
func (q *Queue) PreviousBefore(currentTrackID string) (Track, bool) {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	if len(q.tracks) == 0 {
		return Track{}, false
	}

	prev := indexOf(q.tracks, currentTrackID) - 1
	if prev < 0 {
		if q.repeat == RepeatAll {
			prev = len(q.tracks) - 1
		} else {
			prev = 0
		}
	}
	return q.tracks[prev], true
}

func indexOf(tracks []Track, trackID string) int {
	for i, track := range tracks {
		if track.ID == trackID {
			return i
		}
	}
	return -1
}
