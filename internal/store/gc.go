package store

import (
	"slices"

	"chronolog/internal/chunk"
	"chronolog/internal/data"
)

// GCPolicy drives one garbage-collection pass.
type GCPolicy struct {
	// TargetBytes is the payload byte total the pass tries to get
	// under.
	TargetBytes int64

	// ProtectLatestN keeps the chunks holding the newest N rows per
	// (entity, component, timeline) out of reach, so the tail of every
	// column stays queryable.
	ProtectLatestN int
}

// GC evicts whole temporal chunks, oldest (smallest minimum RowID)
// first, until the store's total payload is at or under the target.
// Static chunks are never evicted, nor is any chunk protected by
// ProtectLatestN — even a protected chunk that alone exceeds the
// target survives. GC is best-effort: protections may keep it from
// reaching the target.
//
// One Deletion event is emitted per removed chunk, all sharing one
// generation.
func (s *Store) GC(policy GCPolicy) []Event {
	s.mu.Lock()

	if s.totalBytes <= policy.TargetBytes {
		s.mu.Unlock()
		return nil
	}

	protected := s.protectedChunksLocked(policy.ProtectLatestN)

	// Eviction candidates: temporal chunks, oldest data first.
	type candidate struct {
		ch     *chunk.Chunk
		minRID data.RowID
	}
	candidates := make([]candidate, 0, len(s.chunks))
	for _, entry := range s.chunks {
		if entry.ch.IsStatic() {
			continue
		}
		if _, ok := protected[entry.ch.ID()]; ok {
			continue
		}
		minRID, _ := entry.ch.RowIDRange()
		candidates = append(candidates, candidate{ch: entry.ch, minRID: minRID})
	}
	slices.SortFunc(candidates, func(a, b candidate) int {
		return a.minRID.Compare(b.minRID)
	})

	var evicted []*chunk.Chunk
	for _, cand := range candidates {
		if s.totalBytes <= policy.TargetBytes {
			break
		}
		s.unregisterLocked(cand.ch)
		evicted = append(evicted, cand.ch)
	}

	if len(evicted) == 0 {
		s.mu.Unlock()
		return nil
	}

	s.generation++
	events := make([]Event, 0, len(evicted))
	for _, ch := range evicted {
		events = append(events, Event{
			StoreID:    s.cfg.ID,
			Generation: s.generation,
			Kind:       Deletion,
			Chunk:      ch,
		})
	}

	s.logger.Info("gc pass",
		"evicted", len(evicted),
		"total_bytes", s.totalBytes,
		"target_bytes", policy.TargetBytes,
	)

	s.deliverLocked(events)
	s.mu.Unlock()

	s.signal.Notify()
	return events
}

// protectedChunksLocked marks, per (entity, component, timeline), the
// chunks containing the newest rows until at least n rows are covered.
// Newest is by maximum (time, RowID) on the timeline.
func (s *Store) protectedChunksLocked(n int) map[chunk.ChunkID]struct{} {
	protected := make(map[chunk.ChunkID]struct{})
	if n <= 0 {
		return protected
	}

	type ranked struct {
		ch     *chunk.Chunk
		maxT   data.TimeInt
		maxRID data.RowID
	}

	for _, byTimeline := range s.temporal {
		for timeline, idx := range byTimeline {
			chunks := make([]ranked, 0, idx.Len())
			idx.Ascend(func(e temporalEntry) bool {
				r, _ := e.ch.TimeRange(timeline)
				_, maxRID := e.ch.RowIDRange()
				chunks = append(chunks, ranked{ch: e.ch, maxT: r.Max, maxRID: maxRID})
				return true
			})
			slices.SortFunc(chunks, func(a, b ranked) int {
				if a.maxT != b.maxT {
					if a.maxT > b.maxT {
						return -1
					}
					return 1
				}
				return b.maxRID.Compare(a.maxRID)
			})
			covered := 0
			for _, rk := range chunks {
				if covered >= n {
					break
				}
				protected[rk.ch.ID()] = struct{}{}
				covered += rk.ch.RowCount()
			}
		}
	}
	return protected
}
