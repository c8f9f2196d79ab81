package query

import (
	"iter"
	"slices"

	"chronolog/internal/data"
)

// Range produces all rows of the requested components inside q.Range on
// q.Timeline, sorted by (time, RowID), as a finite, non-restartable
// sequence. Static rows are yielded first, annotated static — they are
// emitted in addition to the temporal rows, and consumers use the
// annotation to decide precedence.
//
// Only non-null cells contribute. The sequence materializes its merge
// state on first iteration; callers that need to keep the rows collect
// them explicitly.
func Range(r Reader, q RangeQuery, entity data.EntityPath, components []data.ComponentDescriptor) iter.Seq[RangeRow] {
	return func(yield func(RangeRow) bool) {
		if q.Range.IsEmpty() {
			return
		}

		if !yieldStaticRows(r, entity, components, yield) {
			return
		}

		for _, row := range mergeTemporalRows(r, q, entity, components) {
			if !yield(row) {
				return
			}
		}
	}
}

// yieldStaticRows emits the winning static row of each component,
// grouped so components sharing a row are emitted together.
func yieldStaticRows(r Reader, entity data.EntityPath, components []data.ComponentDescriptor, yield func(RangeRow) bool) bool {
	byRow := make(map[data.RowID]*RangeRow)
	for _, desc := range components {
		view, ok := latestStatic(r, entity, desc)
		if !ok {
			continue
		}
		row, ok := byRow[view.RowID]
		if !ok {
			row = &RangeRow{
				Time:   data.TimeStatic,
				RowID:  view.RowID,
				Static: true,
				Cells:  make(map[data.ComponentDescriptor][]byte),
			}
			byRow[view.RowID] = row
		}
		row.Cells[desc] = view.Cell
	}
	if len(byRow) == 0 {
		return true
	}

	rows := make([]*RangeRow, 0, len(byRow))
	for _, row := range byRow {
		rows = append(rows, row)
	}
	slices.SortFunc(rows, func(a, b *RangeRow) int { return a.RowID.Compare(b.RowID) })
	for _, row := range rows {
		if !yield(*row) {
			return false
		}
	}
	return true
}

// mergeEntry is one candidate (component, row) pair during the merge.
type mergeEntry struct {
	time  data.TimeInt
	rowID data.RowID
	order uint64
	desc  data.ComponentDescriptor
	cell  []byte
}

// mergeTemporalRows collects the matching rows of every candidate chunk
// and merges them into (time, RowID)-sorted result rows. Rows within a
// chunk are RowID-sorted, not time-sorted, so a global sort is needed
// regardless of per-chunk metadata.
func mergeTemporalRows(r Reader, q RangeQuery, entity data.EntityPath, components []data.ComponentDescriptor) []RangeRow {
	var entries []mergeEntry
	for _, desc := range components {
		for _, cand := range r.RangeCandidates(entity, desc, q.Timeline, q.Range) {
			for row := range cand.Chunk.IterComponentRows(desc, q.Timeline) {
				if row.Cell == nil || !q.Range.Contains(row.Time) {
					continue
				}
				entries = append(entries, mergeEntry{
					time:  row.Time,
					rowID: row.RowID,
					order: cand.Order,
					desc:  desc,
					cell:  row.Cell,
				})
			}
		}
	}
	if len(entries) == 0 {
		return nil
	}

	slices.SortFunc(entries, func(a, b mergeEntry) int {
		if a.time != b.time {
			if a.time < b.time {
				return -1
			}
			return 1
		}
		if c := a.rowID.Compare(b.rowID); c != 0 {
			return c
		}
		if a.order != b.order {
			if a.order < b.order {
				return -1
			}
			return 1
		}
		return a.desc.Compare(b.desc)
	})

	var rows []RangeRow
	for _, e := range entries {
		last := len(rows) - 1
		if last < 0 || rows[last].Time != e.time || rows[last].RowID != e.rowID {
			rows = append(rows, RangeRow{
				Time:  e.time,
				RowID: e.rowID,
				Cells: make(map[data.ComponentDescriptor][]byte, len(components)),
			})
			last++
		}
		// Entries are order-ascending within a (time, RowID) group, so a
		// duplicate observation of the same component from a
		// later-inserted chunk overwrites the earlier one.
		rows[last].Cells[e.desc] = e.cell
	}
	return rows
}
