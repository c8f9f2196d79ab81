package cache

import (
	"iter"

	"chronolog/internal/data"
	"chronolog/internal/query"
)

// Range streams the deserialized archetype views inside q.Range in
// (time, RowID) order, static rows first. The cache keeps one
// contiguous materialized stretch per (key, archetype): only the parts
// of the query in front of and behind it are fetched from the store,
// so monotonically growing queries fetch each stretch of data once.
//
// The sequence is finite and non-restartable. Views share the cache's
// decoded storage and must be treated as read-only.
func (c *Caches) Range(q query.RangeQuery, entity data.EntityPath, arch data.Archetype) iter.Seq2[View, error] {
	return func(yield func(View, error) bool) {
		qr := q
		qr.Range.Min = qr.Range.Min.Clamped()
		if qr.Range.IsEmpty() {
			return
		}
		key := Key{Store: c.store.ID(), Entity: entity.String(), Timeline: qr.Timeline}
		kc := c.keyCaches(key)

		views, err := c.rangeViews(kc, qr, entity, arch)
		if err != nil {
			yield(View{}, err)
			return
		}
		for _, v := range views {
			if !yield(v, nil) {
				return
			}
		}
	}
}

// rangeViews fills the gaps and snapshots the requested stretch. The
// snapshot is taken under the inner lock so concurrent invalidation
// cannot shear the result; the store fetch and decode run unlocked, and
// an epoch change during them triggers a bounded retry.
func (c *Caches) rangeViews(kc *keyCaches, q query.RangeQuery, entity data.EntityPath, arch data.Archetype) ([]View, error) {
	const maxAttempts = 3

	for attempt := 0; ; attempt++ {
		kc.mu.Lock()
		rc := kc.rangeLocked(arch.Name)
		missing := rc.missingQueriesLocked(q.Range)
		epoch := kc.epoch
		if len(missing) == 0 {
			views := rc.collectLocked(q.Range)
			kc.mu.Unlock()
			return views, nil
		}
		kc.mu.Unlock()

		fetched, err := c.fetchRows(q.Timeline, missing, entity, arch)
		if err != nil {
			return nil, err
		}

		kc.mu.Lock()
		rc = kc.rangeLocked(arch.Name)
		if kc.epoch != epoch && attempt+1 < maxAttempts {
			kc.mu.Unlock()
			continue
		}
		if rc.bucket == nil {
			rc.bucket = newBucket(arch.Components)
		}
		for _, row := range fetched {
			rc.bucket.insert(row.key, row.batches)
		}
		for _, sub := range missing {
			if rc.haveCovered {
				rc.covered = rc.covered.Union(sub)
			} else {
				rc.covered = sub
				rc.haveCovered = true
			}
		}
		views := rc.collectLocked(q.Range)
		kc.mu.Unlock()
		return views, nil
	}
}

type fetchedRow struct {
	key     rowKey
	batches map[data.ComponentDescriptor]data.Batch
}

// fetchRows pulls the missing sub-ranges out of the store and decodes
// them. No cache lock is held here.
func (c *Caches) fetchRows(timeline string, missing []data.TimeRange, entity data.EntityPath, arch data.Archetype) ([]fetchedRow, error) {
	var fetched []fetchedRow
	for _, sub := range missing {
		for row := range c.store.Range(query.RangeQuery{Timeline: timeline, Range: sub}, entity, arch.Components) {
			batches, err := c.decodeRangeRow(row, arch)
			if err != nil {
				return nil, err
			}
			fetched = append(fetched, fetchedRow{
				key:     rowKey{time: row.Time, rowID: row.RowID},
				batches: batches,
			})
		}
	}
	return fetched, nil
}

func (c *Caches) decodeRangeRow(row query.RangeRow, arch data.Archetype) (map[data.ComponentDescriptor]data.Batch, error) {
	batches := make(map[data.ComponentDescriptor]data.Batch, len(row.Cells))
	for _, desc := range arch.Components {
		cell, ok := row.Cells[desc]
		if !ok {
			continue
		}
		codec, err := c.reg.Lookup(desc)
		if err != nil {
			return nil, err
		}
		batch, err := codec.Decode(cell)
		if err != nil {
			return nil, err
		}
		if batch == nil {
			batch = data.Batch{}
		}
		batches[desc] = batch
	}
	return batches, nil
}

// missingQueriesLocked computes the at-most-two sub-ranges whose union
// with the covered stretch spans tr: one in front of the covered
// [a, b] and one behind. Gaps never form — the sub-ranges extend all
// the way to the covered bounds even when the query starts past them.
func (rc *rangeCache) missingQueriesLocked(tr data.TimeRange) []data.TimeRange {
	if !rc.haveCovered {
		return []data.TimeRange{tr}
	}
	var out []data.TimeRange
	if tr.Min < rc.covered.Min {
		front := data.NewTimeRange(tr.Min, rc.covered.Min.SaturatingAdd(-1))
		if !front.IsEmpty() {
			out = append(out, front)
		}
	}
	if tr.Max > rc.covered.Max {
		back := data.NewTimeRange(rc.covered.Max.SaturatingAdd(1), tr.Max)
		if !back.IsEmpty() {
			out = append(out, back)
		}
	}
	return out
}

// collectLocked snapshots the static prefix plus the rows inside tr.
func (rc *rangeCache) collectLocked(tr data.TimeRange) []View {
	if rc.bucket == nil {
		return nil
	}
	numStatic := rc.bucket.staticPrefix()
	i, j := rc.bucket.entryRange(tr)
	views := make([]View, 0, numStatic+(j-i))
	for n := 0; n < numStatic; n++ {
		views = append(views, rc.bucket.viewAt(n))
	}
	for n := i; n < j; n++ {
		views = append(views, rc.bucket.viewAt(n))
	}
	return views
}
