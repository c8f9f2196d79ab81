// Package data defines the core value types of the recording data model:
// timelines and time values, entity paths, row identifiers, component
// descriptors and archetypes, and the batch codec layer that carries
// component payloads in and out of chunks.
package data

import (
	"fmt"
	"math"
	"time"
)

// TimeType describes the unit of a timeline's axis.
type TimeType int

const (
	// Sequence is a frame-counter style axis (frame numbers, tick counts).
	Sequence TimeType = iota
	// Timestamp is a wall-clock axis measured in nanoseconds.
	Timestamp
)

func (t TimeType) String() string {
	switch t {
	case Sequence:
		return "sequence"
	case Timestamp:
		return "timestamp"
	default:
		return fmt.Sprintf("timetype(%d)", int(t))
	}
}

// Timeline is a named, typed monotonic axis. A recording may have many.
type Timeline struct {
	Name string
	Type TimeType
}

// SequenceTimeline returns a Timeline with a frame-counter axis.
func SequenceTimeline(name string) Timeline { return Timeline{Name: name, Type: Sequence} }

// TimestampTimeline returns a Timeline with a nanosecond wall-clock axis.
func TimestampTimeline(name string) Timeline { return Timeline{Name: name, Type: Timestamp} }

// TimeInt is a time value on a timeline. The value space is a signed
// 64-bit integer with reserved sentinels; TimeStatic is not a temporal
// value and never appears in a chunk's time column.
type TimeInt int64

const (
	// TimeStatic denotes "no time": data that applies to all times on
	// every timeline. It sorts before every temporal value.
	TimeStatic TimeInt = math.MinInt64

	// TimeMin is the smallest valid temporal value.
	TimeMin TimeInt = math.MinInt64 + 1

	// TimeMax is the largest valid temporal value.
	TimeMax TimeInt = math.MaxInt64
)

// IsStatic reports whether t is the static sentinel.
func (t TimeInt) IsStatic() bool { return t == TimeStatic }

// Clamped returns t clamped into the valid temporal range [TimeMin, TimeMax].
func (t TimeInt) Clamped() TimeInt {
	if t < TimeMin {
		return TimeMin
	}
	return t
}

// SaturatingAdd returns t+d without over- or underflowing the valid
// temporal range.
func (t TimeInt) SaturatingAdd(d int64) TimeInt {
	v := int64(t) + d
	switch {
	case d > 0 && v < int64(t):
		return TimeMax
	case d < 0 && v > int64(t):
		return TimeMin
	default:
		return TimeInt(v).Clamped()
	}
}

// FromTime converts a wall-clock time to a TimeInt on a Timestamp axis.
func FromTime(t time.Time) TimeInt { return TimeInt(t.UnixNano()) }

// TimeRange is a closed interval [Min, Max] on a single timeline.
type TimeRange struct {
	Min TimeInt
	Max TimeInt
}

// NewTimeRange returns the closed interval [min, max].
func NewTimeRange(min, max TimeInt) TimeRange { return TimeRange{Min: min, Max: max} }

// EverythingRange covers the full temporal value space.
func EverythingRange() TimeRange { return TimeRange{Min: TimeMin, Max: TimeMax} }

// Contains reports whether t lies within the range.
func (r TimeRange) Contains(t TimeInt) bool { return r.Min <= t && t <= r.Max }

// Intersects reports whether the two closed intervals overlap.
func (r TimeRange) Intersects(other TimeRange) bool {
	return r.Min <= other.Max && other.Min <= r.Max
}

// IsEmpty reports whether the range contains no values.
func (r TimeRange) IsEmpty() bool { return r.Max < r.Min }

// Union returns the smallest range covering both r and other.
func (r TimeRange) Union(other TimeRange) TimeRange {
	return TimeRange{Min: min(r.Min, other.Min), Max: max(r.Max, other.Max)}
}

func (r TimeRange) String() string {
	return fmt.Sprintf("[%d, %d]", int64(r.Min), int64(r.Max))
}
