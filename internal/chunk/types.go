// Package chunk defines the unit of ingestion: an immutable, entity-local
// batch of rows indexed by zero or more timelines. Chunks are created by
// producers (usually through a Builder), inserted into a store, and from
// then on only shared, never mutated; every transform returns a new Chunk.
package chunk

import (
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"chronolog/internal/data"
)

var (
	ErrEmptyChunk       = errors.New("chunk has no rows")
	ErrLengthMismatch   = errors.New("column lengths differ")
	ErrDuplicateRowID   = errors.New("duplicate row ID")
	ErrEntityMismatch   = errors.New("entity paths differ")
	ErrSchemaMismatch   = errors.New("column schemas differ")
	ErrTimelineMismatch = errors.New("rows disagree on timeline set")
	ErrStaticTime       = errors.New("static sentinel is not a temporal value")
)

// chunkIDEncoding is base32hex (RFC 4648) lowercase without padding.
// Alphabet 0-9a-v preserves lexicographic sort order.
var chunkIDEncoding = base32.HexEncoding.WithPadding(base32.NoPadding)

// ChunkID uniquely identifies a chunk.
// It is a UUIDv7 (16 bytes) whose string representation is 26-char
// lowercase base32hex, lexicographically sortable by creation time.
type ChunkID [16]byte

// NewChunkID creates a ChunkID from a new UUIDv7.
func NewChunkID() ChunkID {
	return ChunkID(uuid.Must(uuid.NewV7()))
}

// ParseChunkID parses a 26-character base32hex string into a ChunkID.
func ParseChunkID(value string) (ChunkID, error) {
	if len(value) != 26 {
		return ChunkID{}, fmt.Errorf("invalid chunk ID length: %d (want 26)", len(value))
	}
	// base32hex decode expects uppercase
	decoded, err := chunkIDEncoding.DecodeString(strings.ToUpper(value))
	if err != nil {
		return ChunkID{}, fmt.Errorf("invalid chunk ID: %w", err)
	}
	var id ChunkID
	copy(id[:], decoded)
	return id, nil
}

// String returns the 26-character lowercase base32hex representation.
func (id ChunkID) String() string {
	return strings.ToLower(chunkIDEncoding.EncodeToString(id[:]))
}

// Time returns the creation time encoded in the UUIDv7 ChunkID.
// UUIDv7 stores a millisecond Unix timestamp in bytes 0-5 (big-endian).
func (id ChunkID) Time() time.Time {
	ms := int64(id[0])<<40 | int64(id[1])<<32 | int64(id[2])<<24 |
		int64(id[3])<<16 | int64(id[4])<<8 | int64(id[5])
	return time.UnixMilli(ms)
}

// TimeColumn is one timeline's worth of time values for a chunk, with
// cached bounds and sortedness so the store can index and skip chunks
// without touching the values.
type TimeColumn struct {
	timeline data.Timeline
	times    []data.TimeInt
	min, max data.TimeInt
	sorted   bool
}

// NewTimeColumn builds a time column and computes its metadata.
// The times slice is owned by the column after the call.
func NewTimeColumn(timeline data.Timeline, times []data.TimeInt) (TimeColumn, error) {
	col := TimeColumn{timeline: timeline, times: times, sorted: true}
	if len(times) == 0 {
		return col, nil
	}
	col.min, col.max = times[0], times[0]
	for i, t := range times {
		if t.IsStatic() {
			return TimeColumn{}, fmt.Errorf("timeline %q row %d: %w", timeline.Name, i, ErrStaticTime)
		}
		if t < col.min {
			col.min = t
		}
		if t > col.max {
			col.max = t
		}
		if i > 0 && t < times[i-1] {
			col.sorted = false
		}
	}
	return col, nil
}

// Timeline returns the column's timeline.
func (c TimeColumn) Timeline() data.Timeline { return c.timeline }

// Times returns the time values. Callers must not modify the slice.
func (c TimeColumn) Times() []data.TimeInt { return c.times }

// Range returns the column's [min, max] bounds.
func (c TimeColumn) Range() data.TimeRange { return data.NewTimeRange(c.min, c.max) }

// IsSorted reports whether the values are ascending.
func (c TimeColumn) IsSorted() bool { return c.sorted }

// ComponentColumn is one component's worth of cells for a chunk. Each
// cell is an encoded batch; a nil cell means the row carries no
// observation of the component, which is distinct from an encoded empty
// batch (an explicit clear).
type ComponentColumn struct {
	desc  data.ComponentDescriptor
	cells [][]byte
}

// NewComponentColumn builds a component column.
// The cells slice is owned by the column after the call.
func NewComponentColumn(desc data.ComponentDescriptor, cells [][]byte) ComponentColumn {
	return ComponentColumn{desc: desc, cells: cells}
}

// Descriptor returns the column's descriptor.
func (c ComponentColumn) Descriptor() data.ComponentDescriptor { return c.desc }

// Cells returns the encoded cells. Callers must not modify the slice.
func (c ComponentColumn) Cells() [][]byte { return c.cells }
