package core

import (
	"fmt"
	"reflect"
	"testing"
)

func makeTracks(ids ...string) []Track {
	tracks := make([]Track, len(ids))
	for i, id := range ids {
		tracks[i] = Track{ID: id, Name: "Track " + id, Artists: []string{"Artist"}}
	}
	return tracks
}

func queueIDs(q *Queue) []string {
	tracks := q.Tracks()
	ids := make([]string, len(tracks))
	for i, track := range tracks {
		ids[i] = track.ID
	}
	return ids
}

func TestQueue_AddKeepsOriginalInSync(t *testing.T) {
	q := NewQueue()
	q.AddMany(makeTracks("A", "B"))
	q.Add(makeTracks("C")[0])

	if got := queueIDs(q); !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Errorf("queue = %v", got)
	}

	q.ToggleShuffle("")
	q.ToggleShuffle("")
	if got := queueIDs(q); !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Errorf("original order lost: %v", got)
	}
}

func TestQueue_ShuffleUnshuffleRestoresOrder(t *testing.T) {
	q := NewQueue()
	q.AddMany(makeTracks("A", "B", "C", "D"))

	q.ToggleShuffle("")
	if !q.IsShuffled() {
		t.Fatal("queue should report shuffled")
	}
	if q.Len() != 4 {
		t.Fatalf("shuffle must not lose tracks, Len() = %d", q.Len())
	}

	q.ToggleShuffle("")
	if q.IsShuffled() {
		t.Fatal("queue should report unshuffled")
	}
	if got := queueIDs(q); !reflect.DeepEqual(got, []string{"A", "B", "C", "D"}) {
		t.Errorf("unshuffle should restore exact order, got %v", got)
	}
}

func TestQueue_ShuffleForcesCurrentToFront(t *testing.T) {
	// Repeat a few times since shuffling is random.
	for i := 0; i < 20; i++ {
		q := NewQueue()
		q.AddMany(makeTracks("A", "B", "C", "D", "E"))

		q.ToggleShuffle("C")

		ids := queueIDs(q)
		if ids[0] != "C" {
			t.Fatalf("current track should lead the shuffled order, got %v", ids)
		}

		seen := make(map[string]int)
		for _, id := range ids {
			seen[id]++
		}
		for _, id := range []string{"A", "B", "C", "D", "E"} {
			if seen[id] != 1 {
				t.Fatalf("shuffle duplicated or dropped %s: %v", id, ids)
			}
		}
	}
}

func TestQueue_ToggleRepeatCycles(t *testing.T) {
	q := NewQueue()

	want := []RepeatMode{RepeatAll, RepeatOne, RepeatOff, RepeatAll}
	for _, expected := range want {
		if got := q.ToggleRepeat(); got != expected {
			t.Fatalf("ToggleRepeat() = %v, expected %v", got, expected)
		}
	}
}

func TestQueue_NextAfter(t *testing.T) {
	q := NewQueue()
	q.AddMany(makeTracks("A", "B", "C"))

	next, ok := q.NextAfter("A")
	if !ok || next.ID != "B" {
		t.Errorf("NextAfter(A) = %v, %v", next.ID, ok)
	}

	// Tail without repeat: no next track.
	if _, ok := q.NextAfter("C"); ok {
		t.Error("NextAfter(C) with repeat off should report exhaustion")
	}

	q.ToggleRepeat() // all
	next, ok = q.NextAfter("C")
	if !ok || next.ID != "A" {
		t.Errorf("NextAfter(C) with repeat all = %v, %v, expected wrap to A", next.ID, ok)
	}

	// Unknown current starts from the front.
	next, ok = q.NextAfter("")
	if !ok || next.ID != "A" {
		t.Errorf("NextAfter(unknown) = %v, %v", next.ID, ok)
	}
}

func TestQueue_PreviousBefore(t *testing.T) {
	q := NewQueue()
	q.AddMany(makeTracks("A", "B", "C"))

	prev, ok := q.PreviousBefore("C")
	if !ok || prev.ID != "B" {
		t.Errorf("PreviousBefore(C) = %v, %v", prev.ID, ok)
	}

	// Front without repeat: stay on the first track.
	prev, ok = q.PreviousBefore("A")
	if !ok || prev.ID != "A" {
		t.Errorf("PreviousBefore(A) = %v, %v, expected A again", prev.ID, ok)
	}

	q.ToggleRepeat() // all
	prev, ok = q.PreviousBefore("A")
	if !ok || prev.ID != "C" {
		t.Errorf("PreviousBefore(A) with repeat all = %v, %v, expected wrap to C", prev.ID, ok)
	}
}

func TestQueue_EmptyQueueAdvancement(t *testing.T) {
	q := NewQueue()

	if _, ok := q.NextAfter("A"); ok {
		t.Error("empty queue has no next track")
	}
	if _, ok := q.PreviousBefore("A"); ok {
		t.Error("empty queue has no previous track")
	}
}

func TestQueue_ClearKeepsNothing(t *testing.T) {
	q := NewQueue()
	q.AddMany(makeTracks("A", "B"))
	q.ToggleShuffle("")

	q.Clear()
	if q.Len() != 0 {
		t.Errorf("Len() after Clear = %d", q.Len())
	}

	// Disabling shuffle after a clear must not resurrect tracks.
	q.ToggleShuffle("")
	if q.Len() != 0 {
		t.Errorf("cleared queue restored %d tracks on unshuffle", q.Len())
	}
}

func TestQueue_AddWhileShuffledDoesNotTouchSnapshot(t *testing.T) {
	q := NewQueue()
	q.AddMany(makeTracks("A", "B"))
	q.ToggleShuffle("")
	q.Add(Track{ID: "C"})

	if q.Len() != 3 {
		t.Fatalf("Len() = %d", q.Len())
	}

	q.ToggleShuffle("")
	if got := queueIDs(q); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Errorf("snapshot should stay frozen while shuffled, got %v", got)
	}
}

func BenchmarkQueue_NextAfter(b *testing.B) {
	q := NewQueue()
	for i := 0; i < 1000; i++ {
		q.Add(Track{ID: fmt.Sprintf("t%d", i)})
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		q.NextAfter("t500")
	}
}
