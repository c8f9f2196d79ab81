package store

import (
	"slices"
	"sync"

	"chronolog/internal/chunk"
	"chronolog/internal/data"
)

// TimesPerTimeline is a stock subscriber maintaining, per timeline, the
// set of times that carry data and a per-time row count. Timeline UIs
// use it to draw tick marks without scanning chunks.
//
// Register it with RegisterSubscriber; it tracks every chunk inserted or
// evicted from then on. All methods are safe for concurrent use, and the
// store delivers events synchronously, so counts always reflect a
// committed store state.
type TimesPerTimeline struct {
	mu     sync.RWMutex
	seen   map[chunk.ChunkID]struct{}
	counts map[string]map[data.TimeInt]int64
}

// NewTimesPerTimeline creates an empty index.
func NewTimesPerTimeline() *TimesPerTimeline {
	return &TimesPerTimeline{
		seen:   make(map[chunk.ChunkID]struct{}),
		counts: make(map[string]map[data.TimeInt]int64),
	}
}

// OnEvents implements Subscriber. Delivery is at-least-once, and a
// compacting insert deletes an original that was never announced (its
// rows arrive folded into the merged chunk's addition), so counts are
// reconciled against the set of chunks observed so far.
func (t *TimesPerTimeline) OnEvents(events []Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ev := range events {
		switch ev.Kind {
		case Addition:
			if _, ok := t.seen[ev.Chunk.ID()]; ok {
				continue
			}
			t.seen[ev.Chunk.ID()] = struct{}{}
			t.addLocked(ev.Chunk)
		case Deletion:
			if _, ok := t.seen[ev.Chunk.ID()]; !ok {
				continue
			}
			delete(t.seen, ev.Chunk.ID())
			t.removeLocked(ev.Chunk)
		}
	}
}

func (t *TimesPerTimeline) addLocked(c *chunk.Chunk) {
	for _, tl := range c.Timelines() {
		col, _ := c.TimeColumn(tl.Name)
		byTime := t.counts[tl.Name]
		if byTime == nil {
			byTime = make(map[data.TimeInt]int64)
			t.counts[tl.Name] = byTime
		}
		for _, ti := range col.Times() {
			byTime[ti]++
		}
	}
}

func (t *TimesPerTimeline) removeLocked(c *chunk.Chunk) {
	for _, tl := range c.Timelines() {
		byTime := t.counts[tl.Name]
		if byTime == nil {
			continue
		}
		col, _ := c.TimeColumn(tl.Name)
		for _, ti := range col.Times() {
			byTime[ti]--
			if byTime[ti] <= 0 {
				delete(byTime, ti)
			}
		}
		if len(byTime) == 0 {
			delete(t.counts, tl.Name)
		}
	}
}

// Times returns the sorted times carrying data on a timeline.
func (t *TimesPerTimeline) Times(timeline string) []data.TimeInt {
	t.mu.RLock()
	defer t.mu.RUnlock()
	byTime := t.counts[timeline]
	out := make([]data.TimeInt, 0, len(byTime))
	for ti := range byTime {
		out = append(out, ti)
	}
	slices.Sort(out)
	return out
}

// NumRowsAt returns the number of rows observed at a time on a timeline.
func (t *TimesPerTimeline) NumRowsAt(timeline string, at data.TimeInt) int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.counts[timeline][at]
}

var _ Subscriber = (*TimesPerTimeline)(nil)
