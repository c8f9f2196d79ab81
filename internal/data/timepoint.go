package data

import (
	"fmt"
	"slices"
	"strings"
)

// TimePoint maps timelines to time values. It describes when a single
// observation happened, possibly on several timelines at once.
//
// An empty (or nil) TimePoint denotes a static observation: one that
// applies to all times on every timeline.
type TimePoint map[Timeline]TimeInt

// IsStatic reports whether the time point carries no temporal values.
func (tp TimePoint) IsStatic() bool { return len(tp) == 0 }

// With returns a copy of the time point with the given timeline set.
func (tp TimePoint) With(timeline Timeline, t TimeInt) TimePoint {
	out := make(TimePoint, len(tp)+1)
	for k, v := range tp {
		out[k] = v
	}
	out[timeline] = t
	return out
}

// Timelines returns the timelines of the time point, sorted by name.
func (tp TimePoint) Timelines() []Timeline {
	out := make([]Timeline, 0, len(tp))
	for tl := range tp {
		out = append(out, tl)
	}
	slices.SortFunc(out, func(a, b Timeline) int { return strings.Compare(a.Name, b.Name) })
	return out
}

func (tp TimePoint) String() string {
	if tp.IsStatic() {
		return "static"
	}
	parts := make([]string, 0, len(tp))
	for _, tl := range tp.Timelines() {
		parts = append(parts, fmt.Sprintf("%s=%d", tl.Name, int64(tp[tl])))
	}
	return strings.Join(parts, " ")
}
