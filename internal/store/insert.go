package store

import (
	"fmt"

	"github.com/google/btree"

	"chronolog/internal/chunk"
	"chronolog/internal/data"
)

// InsertChunk registers a chunk in the store and returns the events it
// produced. Insertion is the only mutation point besides GC; on error
// the store is unchanged.
//
// Insertion is idempotent by ChunkID: re-inserting a known chunk yields
// no events. The chunk is normalized (sorted by RowID) before
// registration; if the insertion is adjacent in RowID order to a stored
// chunk of identical schema and the merge stays under the compaction
// caps, the two are compacted: the returned batch is then one Addition
// for the merged chunk and one Deletion per original.
func (s *Store) InsertChunk(c *chunk.Chunk) ([]Event, error) {
	if c == nil {
		return nil, nil
	}

	s.mu.Lock()

	if _, ok := s.chunks[c.ID()]; ok {
		s.mu.Unlock()
		return nil, nil
	}
	if _, ok := s.retired[c.ID()]; ok {
		s.mu.Unlock()
		return nil, nil
	}

	if err := s.checkSchemaLocked(c); err != nil {
		s.mu.Unlock()
		return nil, err
	}

	// Compaction never shrinks payload bytes, so an over-budget insert
	// cannot be rescued by it; fail before mutating anything.
	if s.cfg.MaxBytes > 0 && s.totalBytes+c.Bytes() > s.cfg.MaxBytes {
		s.mu.Unlock()
		return nil, fmt.Errorf("inserting %d bytes over %d/%d: %w",
			c.Bytes(), s.totalBytes, s.cfg.MaxBytes, ErrResourceExhausted)
	}

	c = c.SortIfUnsorted()
	s.registerLocked(c)
	merged, first, second := s.maybeCompactLocked(c)

	s.generation++
	var events []Event
	if merged != nil {
		events = []Event{
			{StoreID: s.cfg.ID, Generation: s.generation, Kind: Addition, Chunk: merged},
			{StoreID: s.cfg.ID, Generation: s.generation, Kind: Deletion, Chunk: first},
			{StoreID: s.cfg.ID, Generation: s.generation, Kind: Deletion, Chunk: second},
		}
	} else {
		events = []Event{{StoreID: s.cfg.ID, Generation: s.generation, Kind: Addition, Chunk: c}}
	}

	s.deliverLocked(events)
	s.mu.Unlock()

	s.signal.Notify()
	return events, nil
}

// checkSchemaLocked verifies the chunk agrees with all prior
// observations: component identifiers keep their type labels and
// timeline names keep their time types.
func (s *Store) checkSchemaLocked(c *chunk.Chunk) error {
	entity := c.Entity().Hash()
	for _, desc := range c.Components() {
		if desc.Type == "" {
			continue
		}
		key := schemaKey{entity: entity, component: desc.Component}
		if prior, ok := s.schema[key]; ok && prior != "" && prior != desc.Type {
			return fmt.Errorf("%s/%s: %q vs prior %q: %w",
				c.Entity(), desc.Component, desc.Type, prior, ErrIncompatibleSchema)
		}
	}
	for _, tl := range c.Timelines() {
		if prior, ok := s.timelines[tl.Name]; ok && prior.Type != tl.Type {
			return fmt.Errorf("timeline %q: %s vs prior %s: %w",
				tl.Name, tl.Type, prior.Type, ErrIncompatibleSchema)
		}
	}
	return nil
}

// registerLocked adds the chunk to every index and bookkeeping table.
func (s *Store) registerLocked(c *chunk.Chunk) {
	order := s.nextOrder
	s.nextOrder++
	s.chunks[c.ID()] = &chunkEntry{ch: c, order: order}

	entity := c.Entity().Hash()
	ent := s.entities[entity]
	if ent == nil {
		ent = &entityEntry{
			path:  c.Entity(),
			comps: make(map[data.ComponentDescriptor]struct{}),
		}
		s.entities[entity] = ent
	}

	for _, desc := range c.Components() {
		ent.comps[desc] = struct{}{}
		if desc.Type != "" {
			s.schema[schemaKey{entity: entity, component: desc.Component}] = desc.Type
		}

		key := columnKey{entity: entity, desc: desc}
		if c.IsStatic() {
			s.statics[key] = append(s.statics[key], c)
			continue
		}
		byTimeline := s.temporal[key]
		if byTimeline == nil {
			byTimeline = make(map[string]*btree.BTreeG[temporalEntry])
			s.temporal[key] = byTimeline
		}
		for _, tl := range c.Timelines() {
			idx := byTimeline[tl.Name]
			if idx == nil {
				idx = btree.NewG(8, temporalLess)
				byTimeline[tl.Name] = idx
			}
			r, _ := c.TimeRange(tl.Name)
			idx.ReplaceOrInsert(temporalEntry{min: r.Min, order: order, ch: c})
		}
	}

	for _, tl := range c.Timelines() {
		s.timelines[tl.Name] = tl
		s.timelineRows[tl.Name] += int64(c.RowCount())
	}

	s.totalBytes += c.Bytes()
}

// unregisterLocked removes the chunk from every index and bookkeeping
// table. The entity's component set is kept: component observation
// history survives eviction.
func (s *Store) unregisterLocked(c *chunk.Chunk) {
	entry, ok := s.chunks[c.ID()]
	if !ok {
		return
	}
	delete(s.chunks, c.ID())

	entity := c.Entity().Hash()
	for _, desc := range c.Components() {
		key := columnKey{entity: entity, desc: desc}
		if c.IsStatic() {
			chunks := s.statics[key]
			for i, ch := range chunks {
				if ch.ID() == c.ID() {
					s.statics[key] = append(chunks[:i], chunks[i+1:]...)
					break
				}
			}
			if len(s.statics[key]) == 0 {
				delete(s.statics, key)
			}
			continue
		}
		byTimeline := s.temporal[key]
		for _, tl := range c.Timelines() {
			idx := byTimeline[tl.Name]
			if idx == nil {
				continue
			}
			r, _ := c.TimeRange(tl.Name)
			idx.Delete(temporalEntry{min: r.Min, order: entry.order})
			if idx.Len() == 0 {
				delete(byTimeline, tl.Name)
			}
		}
		if len(byTimeline) == 0 {
			delete(s.temporal, key)
		}
	}

	for _, tl := range c.Timelines() {
		s.timelineRows[tl.Name] -= int64(c.RowCount())
	}

	s.totalBytes -= c.Bytes()
}

// maybeCompactLocked merges the freshly inserted chunk with an adjacent
// stored chunk of identical schema when the result stays under the
// configured caps. Returns the merged chunk and the two originals in
// RowID order, or nils when nothing merged.
func (s *Store) maybeCompactLocked(inserted *chunk.Chunk) (merged, first, second *chunk.Chunk) {
	neighbor := s.findCompactionNeighborLocked(inserted)
	if neighbor == nil {
		return nil, nil, nil
	}

	insMin, _ := inserted.RowIDRange()
	nbrMin, _ := neighbor.RowIDRange()

	first, second = neighbor, inserted
	if insMin.Less(nbrMin) {
		first, second = inserted, neighbor
	}

	merged, err := first.Concatenate(second)
	if err != nil {
		// Schema was checked by the neighbor search; a failure here is
		// a bookkeeping bug, not a data error.
		panic(fmt.Sprintf("store: compaction concatenate: %v", err))
	}
	merged = merged.SortIfUnsorted()

	s.unregisterLocked(first)
	s.unregisterLocked(second)
	s.registerLocked(merged)
	s.retired[first.ID()] = struct{}{}
	s.retired[second.ID()] = struct{}{}

	s.logger.Debug("compacted chunks",
		"first", first.ID().String(),
		"second", second.ID().String(),
		"merged", merged.ID().String(),
		"rows", merged.RowCount(),
		"bytes", merged.Bytes(),
	)

	return merged, first, second
}

// findCompactionNeighborLocked picks the stored chunk closest to the
// inserted one in RowID order, requiring identical schema, no RowID
// overlap, and a merge under the row/byte caps.
func (s *Store) findCompactionNeighborLocked(inserted *chunk.Chunk) *chunk.Chunk {
	insMin, insMax := inserted.RowIDRange()

	// The predecessor ending closest before the insertion, and the
	// successor starting closest after it.
	var pred, succ *chunk.Chunk
	var predMax, succMin data.RowID

	for _, entry := range s.chunks {
		cand := entry.ch
		if cand.ID() == inserted.ID() || !cand.SchemaMatches(inserted) {
			continue
		}
		if int64(cand.RowCount()+inserted.RowCount()) > s.cfg.Compaction.MaxRows {
			continue
		}
		if cand.Bytes()+inserted.Bytes() > s.cfg.Compaction.MaxBytes {
			continue
		}
		candMin, candMax := cand.RowIDRange()
		switch {
		case candMax.Less(insMin):
			if pred == nil || predMax.Less(candMax) {
				pred, predMax = cand, candMax
			}
		case insMax.Less(candMin):
			if succ == nil || candMin.Less(succMin) {
				succ, succMin = cand, candMin
			}
		}
	}

	// Appends dominate in a monotonic recording: prefer the predecessor.
	if pred != nil {
		return pred
	}
	return succ
}
