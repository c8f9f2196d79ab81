package chunk

import (
	"fmt"
	"iter"
	"slices"
	"strings"

	"chronolog/internal/data"
)

// Chunk is an entity-local batch of rows: a column of RowIDs, zero or
// more time columns, and zero or more component columns, all of equal
// length. A chunk with no time columns is static: its rows apply to all
// times on every timeline.
//
// Chunks are immutable once constructed and freely shared across threads.
// Transforms (sorting, slicing, filtering, concatenation) return new
// chunks; slices share backing arrays with their source.
type Chunk struct {
	id     ChunkID
	entity data.EntityPath

	rowIDs     []data.RowID
	timeCols   []TimeColumn
	components []ComponentColumn

	sortedByRowID bool
	bytes         int64
}

// New validates and assembles a chunk. All columns must have the same
// length as rowIDs, rowIDs must be non-empty and unique, and time columns
// must carry only temporal values.
func New(
	id ChunkID,
	entity data.EntityPath,
	rowIDs []data.RowID,
	timeCols []TimeColumn,
	components []ComponentColumn,
) (*Chunk, error) {
	n := len(rowIDs)
	if n == 0 {
		return nil, ErrEmptyChunk
	}
	for _, col := range timeCols {
		if len(col.times) != n {
			return nil, fmt.Errorf("timeline %q has %d values, want %d: %w",
				col.timeline.Name, len(col.times), n, ErrLengthMismatch)
		}
	}
	for _, col := range components {
		if len(col.cells) != n {
			return nil, fmt.Errorf("component %q has %d cells, want %d: %w",
				col.desc.Component, len(col.cells), n, ErrLengthMismatch)
		}
	}

	seen := make(map[data.RowID]struct{}, n)
	sorted := true
	for i, rid := range rowIDs {
		if _, ok := seen[rid]; ok {
			return nil, fmt.Errorf("row %d (%s): %w", i, rid, ErrDuplicateRowID)
		}
		seen[rid] = struct{}{}
		if i > 0 && rid.Less(rowIDs[i-1]) {
			sorted = false
		}
	}

	c := &Chunk{
		id:            id,
		entity:        entity,
		rowIDs:        rowIDs,
		timeCols:      timeCols,
		components:    components,
		sortedByRowID: sorted,
	}
	c.bytes = c.computeBytes()
	return c, nil
}

func (c *Chunk) computeBytes() int64 {
	// RowIDs plus one TimeInt per time column per row, plus cell payloads.
	size := int64(len(c.rowIDs)) * 16
	size += int64(len(c.timeCols)) * int64(len(c.rowIDs)) * 8
	for _, col := range c.components {
		for _, cell := range col.cells {
			size += int64(len(cell))
		}
	}
	return size
}

// ID returns the chunk's identity.
func (c *Chunk) ID() ChunkID { return c.id }

// Entity returns the entity path all rows belong to.
func (c *Chunk) Entity() data.EntityPath { return c.entity }

// RowCount returns the number of rows.
func (c *Chunk) RowCount() int { return len(c.rowIDs) }

// Bytes returns the chunk's approximate in-memory payload size.
func (c *Chunk) Bytes() int64 { return c.bytes }

// IsStatic reports whether the chunk has no time columns.
func (c *Chunk) IsStatic() bool { return len(c.timeCols) == 0 }

// IsSortedByRowID reports whether rows are ascending by RowID.
func (c *Chunk) IsSortedByRowID() bool { return c.sortedByRowID }

// RowIDs returns the row ID column. Callers must not modify the slice.
func (c *Chunk) RowIDs() []data.RowID { return c.rowIDs }

// RowIDRange returns the smallest and largest RowID in the chunk.
func (c *Chunk) RowIDRange() (min, max data.RowID) {
	min, max = c.rowIDs[0], c.rowIDs[0]
	for _, rid := range c.rowIDs[1:] {
		if rid.Less(min) {
			min = rid
		}
		if max.Less(rid) {
			max = rid
		}
	}
	return min, max
}

// Timelines returns the timelines the chunk contributes to, sorted by name.
func (c *Chunk) Timelines() []data.Timeline {
	out := make([]data.Timeline, len(c.timeCols))
	for i, col := range c.timeCols {
		out[i] = col.timeline
	}
	slices.SortFunc(out, func(a, b data.Timeline) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// TimeColumn returns the time column for a timeline name, if present.
func (c *Chunk) TimeColumn(timeline string) (TimeColumn, bool) {
	for _, col := range c.timeCols {
		if col.timeline.Name == timeline {
			return col, true
		}
	}
	return TimeColumn{}, false
}

// TimeRange returns the chunk's [min, max] bounds on a timeline, and
// false for timelines the chunk does not contribute to (including every
// timeline when the chunk is static).
func (c *Chunk) TimeRange(timeline string) (data.TimeRange, bool) {
	col, ok := c.TimeColumn(timeline)
	if !ok {
		return data.TimeRange{}, false
	}
	return col.Range(), true
}

// Components returns the descriptors of all component columns.
func (c *Chunk) Components() []data.ComponentDescriptor {
	out := make([]data.ComponentDescriptor, len(c.components))
	for i, col := range c.components {
		out[i] = col.desc
	}
	return out
}

// ComponentColumn returns the column for a descriptor, if present.
func (c *Chunk) ComponentColumn(desc data.ComponentDescriptor) (ComponentColumn, bool) {
	for _, col := range c.components {
		if col.desc == desc {
			return col, true
		}
	}
	return ComponentColumn{}, false
}

// HasComponent reports whether the chunk carries the given column.
func (c *Chunk) HasComponent(desc data.ComponentDescriptor) bool {
	_, ok := c.ComponentColumn(desc)
	return ok
}

// Row is one row of one component column as seen through IterComponentRows.
type Row struct {
	// Time is the row's value on the iterated timeline, or TimeStatic
	// when the chunk is static.
	Time data.TimeInt

	RowID data.RowID

	// Cell is the encoded batch; nil when the row carries no observation.
	Cell []byte
}

// IterComponentRows returns a lazy sequence of (time, rowID, cell) over
// one component column on the chosen timeline. For static chunks the
// timeline is ignored and every row yields TimeStatic. The sequence is
// finite and re-iterable; each range call walks the rows again.
//
// Rows of temporal chunks that do not contribute to the timeline yield
// nothing.
func (c *Chunk) IterComponentRows(desc data.ComponentDescriptor, timeline string) iter.Seq[Row] {
	col, hasComp := c.ComponentColumn(desc)
	if !hasComp {
		return func(yield func(Row) bool) {}
	}

	if c.IsStatic() {
		return func(yield func(Row) bool) {
			for i, rid := range c.rowIDs {
				if !yield(Row{Time: data.TimeStatic, RowID: rid, Cell: col.cells[i]}) {
					return
				}
			}
		}
	}

	timeCol, hasTime := c.TimeColumn(timeline)
	if !hasTime {
		return func(yield func(Row) bool) {}
	}
	return func(yield func(Row) bool) {
		for i, rid := range c.rowIDs {
			if !yield(Row{Time: timeCol.times[i], RowID: rid, Cell: col.cells[i]}) {
				return
			}
		}
	}
}

// SchemaMatches reports whether two chunks agree on entity, timeline set
// and component descriptor set, which is what concatenation requires.
func (c *Chunk) SchemaMatches(other *Chunk) bool {
	if !c.entity.Equal(other.entity) {
		return false
	}
	if len(c.timeCols) != len(other.timeCols) || len(c.components) != len(other.components) {
		return false
	}
	for _, col := range c.timeCols {
		if _, ok := other.TimeColumn(col.timeline.Name); !ok {
			return false
		}
	}
	for _, col := range c.components {
		if !other.HasComponent(col.desc) {
			return false
		}
	}
	return true
}
