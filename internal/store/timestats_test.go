package store

import (
	"slices"
	"testing"

	"chronolog/internal/data"
)

func TestTimesPerTimeline(t *testing.T) {
	s := newTestStore(t)
	times := NewTimesPerTimeline()
	s.RegisterSubscriber(times)

	mustInsert(t, s, colorChunk(t, points, 5, 1, 0x01))
	mustInsert(t, s, colorChunk(t, points, 3, 2, 0x02))
	mustInsert(t, s, colorChunk(t, points, 5, 3, 0x03))
	mustInsert(t, s, staticLabelChunk(t, points, 4, "s"))

	got := times.Times("frame")
	if !slices.Equal(got, []data.TimeInt{3, 5}) {
		t.Fatalf("Times = %v, want [3 5]", got)
	}
	if n := times.NumRowsAt("frame", 5); n != 2 {
		t.Fatalf("NumRowsAt(5) = %d, want 2", n)
	}
	if n := times.NumRowsAt("frame", 4); n != 0 {
		t.Fatalf("NumRowsAt(4) = %d, want 0", n)
	}

	// Eviction drops the counts.
	s.GC(GCPolicy{TargetBytes: 0, ProtectLatestN: 0})
	if got := times.Times("frame"); len(got) != 0 {
		t.Fatalf("Times after gc = %v, want empty", got)
	}
}

func TestTimesPerTimelineSurvivesCompaction(t *testing.T) {
	s := New(Config{}) // compaction enabled
	times := NewTimesPerTimeline()
	s.RegisterSubscriber(times)

	mustInsert(t, s, colorChunk(t, points, 1, 1, 0x01))
	events := mustInsert(t, s, colorChunk(t, points, 2, 2, 0x02))
	if len(events) != 3 {
		t.Fatalf("events = %d, want a compacting batch", len(events))
	}

	got := times.Times("frame")
	if !slices.Equal(got, []data.TimeInt{1, 2}) {
		t.Fatalf("Times = %v, want [1 2]", got)
	}
	if n := times.NumRowsAt("frame", 1); n != 1 {
		t.Fatalf("NumRowsAt(1) = %d, want 1 (compaction must not double-count)", n)
	}
}
