// Package query implements the latest-at and range primitives over a
// chunk store's read surface. The engine consumes only the Reader
// interface: candidate chunk selection comes from the store's indexes,
// row selection and merging happen here. Queries never mutate and never
// fail; asking for data that does not exist yields empty results.
package query

import (
	"chronolog/internal/chunk"
	"chronolog/internal/data"
)

// LatestAtQuery asks for the most recent value of each requested
// component at or before At on one timeline.
type LatestAtQuery struct {
	Timeline string
	At       data.TimeInt
}

// RangeQuery asks for all values of the requested components inside the
// closed interval Range on one timeline.
type RangeQuery struct {
	Timeline string
	Range    data.TimeRange
}

// Candidate is a chunk reference handed out by the store's indexes,
// paired with the chunk's insertion order for tie-breaking: when two rows
// share both time and RowID, the row from the later-inserted chunk wins.
type Candidate struct {
	Chunk *chunk.Chunk
	Order uint64
}

// Reader is the store read surface the engine runs on. Implementations
// return shared, immutable chunk references; the engine holds no locks
// while iterating them.
type Reader interface {
	// StaticCandidates returns all static chunks carrying the column.
	StaticCandidates(entity data.EntityPath, desc data.ComponentDescriptor) []Candidate

	// TemporalCandidates returns the temporal chunks carrying the column
	// on the timeline whose minimum time is <= bound.
	TemporalCandidates(entity data.EntityPath, desc data.ComponentDescriptor, timeline string, bound data.TimeInt) []Candidate

	// RangeCandidates returns the temporal chunks carrying the column on
	// the timeline whose time range intersects tr.
	RangeCandidates(entity data.EntityPath, desc data.ComponentDescriptor, timeline string, tr data.TimeRange) []Candidate
}

// RowView is one winning row for one component.
type RowView struct {
	// Time is the row's data time, or TimeStatic for static rows.
	Time data.TimeInt

	RowID data.RowID

	// Cell is the encoded batch. Never nil for a winning row; an
	// explicit clear decodes to an empty batch.
	Cell []byte

	// Static marks rows that came from the static index and therefore
	// apply at all times.
	Static bool
}

// LatestAtResult maps each requested component to its winning row.
// Components with no data at the query time are absent from the map.
type LatestAtResult struct {
	Entity     data.EntityPath
	Components map[data.ComponentDescriptor]RowView
}

// IsEmpty reports whether no component had data.
func (r LatestAtResult) IsEmpty() bool { return len(r.Components) == 0 }

// RangeRow is one (time, RowID) worth of data in a range result: the
// cells of every requested component that observed that row. Only
// components with a non-null cell at the row appear in Cells.
type RangeRow struct {
	Time   data.TimeInt
	RowID  data.RowID
	Static bool
	Cells  map[data.ComponentDescriptor][]byte
}
