package chunk

import (
	"fmt"
	"slices"

	"chronolog/internal/data"
)

// Builder assembles a chunk row by row. All rows of one chunk must name
// the same timeline set (possibly none, which yields a static chunk);
// components may vary per row, and a row that omits a component gets a
// null cell in that column.
type Builder struct {
	entity data.EntityPath
	rows   []builderRow
}

type builderRow struct {
	rowID data.RowID
	tp    data.TimePoint
	cells map[data.ComponentDescriptor][]byte
}

// NewBuilder creates a builder for the given entity.
func NewBuilder(entity data.EntityPath) *Builder {
	return &Builder{entity: entity}
}

// WithRow appends a row. The cells map is owned by the builder after the
// call; a nil map is a row with null cells in every column. Cells must be
// encoded batches; a nil cell value is treated like an omitted component.
func (b *Builder) WithRow(rowID data.RowID, tp data.TimePoint, cells map[data.ComponentDescriptor][]byte) *Builder {
	b.rows = append(b.rows, builderRow{rowID: rowID, tp: tp, cells: cells})
	return b
}

// Build validates the accumulated rows and produces a chunk with a fresh
// ChunkID.
func (b *Builder) Build() (*Chunk, error) {
	if len(b.rows) == 0 {
		return nil, ErrEmptyChunk
	}

	timelines := b.rows[0].tp.Timelines()
	for i, row := range b.rows[1:] {
		if !slices.Equal(row.tp.Timelines(), timelines) {
			return nil, fmt.Errorf("row %d: %w", i+1, ErrTimelineMismatch)
		}
	}

	n := len(b.rows)
	rowIDs := make([]data.RowID, n)
	for i, row := range b.rows {
		rowIDs[i] = row.rowID
	}

	timeCols := make([]TimeColumn, 0, len(timelines))
	for _, tl := range timelines {
		times := make([]data.TimeInt, n)
		for i, row := range b.rows {
			times[i] = row.tp[tl]
		}
		col, err := NewTimeColumn(tl, times)
		if err != nil {
			return nil, err
		}
		timeCols = append(timeCols, col)
	}

	// Union of descriptors across rows, sorted for deterministic layout.
	descSet := make(map[data.ComponentDescriptor]struct{})
	for _, row := range b.rows {
		for desc := range row.cells {
			descSet[desc] = struct{}{}
		}
	}
	descs := make([]data.ComponentDescriptor, 0, len(descSet))
	for desc := range descSet {
		descs = append(descs, desc)
	}
	slices.SortFunc(descs, data.ComponentDescriptor.Compare)

	components := make([]ComponentColumn, 0, len(descs))
	for _, desc := range descs {
		cells := make([][]byte, n)
		for i, row := range b.rows {
			cells[i] = row.cells[desc]
		}
		components = append(components, NewComponentColumn(desc, cells))
	}

	return New(NewChunkID(), b.entity, rowIDs, timeCols, components)
}
