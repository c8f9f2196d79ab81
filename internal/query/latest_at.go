package query

import (
	"chronolog/internal/data"
)

// LatestAt resolves the winning row of each requested component at
// q.At on q.Timeline.
//
// Selection rules, per component:
//  1. static overrides temporal unconditionally: if any static chunk
//     carries a non-null cell, the one with the largest RowID wins;
//  2. otherwise the non-null temporal row with the largest (time, RowID)
//     among rows with time <= q.At wins, later-inserted chunks breaking
//     full ties;
//  3. otherwise the component is absent from the result.
func LatestAt(r Reader, q LatestAtQuery, entity data.EntityPath, components []data.ComponentDescriptor) LatestAtResult {
	result := LatestAtResult{
		Entity:     entity,
		Components: make(map[data.ComponentDescriptor]RowView, len(components)),
	}

	for _, desc := range components {
		if view, ok := latestStatic(r, entity, desc); ok {
			result.Components[desc] = view
			continue
		}
		if view, ok := latestTemporal(r, q, entity, desc); ok {
			result.Components[desc] = view
		}
	}
	return result
}

func latestStatic(r Reader, entity data.EntityPath, desc data.ComponentDescriptor) (RowView, bool) {
	var (
		best      RowView
		bestOrder uint64
		found     bool
	)
	for _, cand := range r.StaticCandidates(entity, desc) {
		for row := range cand.Chunk.IterComponentRows(desc, "") {
			if row.Cell == nil {
				continue
			}
			if !found || betterRow(row.RowID, cand.Order, best.RowID, bestOrder) {
				best = RowView{Time: data.TimeStatic, RowID: row.RowID, Cell: row.Cell, Static: true}
				bestOrder = cand.Order
				found = true
			}
		}
	}
	return best, found
}

func latestTemporal(r Reader, q LatestAtQuery, entity data.EntityPath, desc data.ComponentDescriptor) (RowView, bool) {
	var (
		best      RowView
		bestOrder uint64
		found     bool
	)
	for _, cand := range r.TemporalCandidates(entity, desc, q.Timeline, q.At) {
		for row := range cand.Chunk.IterComponentRows(desc, q.Timeline) {
			if row.Cell == nil || row.Time > q.At {
				continue
			}
			if !found || betterTemporalRow(row.Time, row.RowID, cand.Order, best.Time, best.RowID, bestOrder) {
				best = RowView{Time: row.Time, RowID: row.RowID, Cell: row.Cell}
				bestOrder = cand.Order
				found = true
			}
		}
	}
	return best, found
}

// betterRow reports whether (rid, order) beats (bestRID, bestOrder) in
// (RowID, insertion order) lexicographic order.
func betterRow(rid data.RowID, order uint64, bestRID data.RowID, bestOrder uint64) bool {
	if c := rid.Compare(bestRID); c != 0 {
		return c > 0
	}
	return order > bestOrder
}

// betterTemporalRow compares in (time, RowID, insertion order)
// lexicographic order.
func betterTemporalRow(t data.TimeInt, rid data.RowID, order uint64, bestT data.TimeInt, bestRID data.RowID, bestOrder uint64) bool {
	if t != bestT {
		return t > bestT
	}
	return betterRow(rid, order, bestRID, bestOrder)
}
