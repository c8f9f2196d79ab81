package cache

import (
	"strconv"

	"chronolog/internal/data"
	"chronolog/internal/query"
)

// LatestAt returns the deserialized archetype view at q.At, equal
// component-wise to what the store's latest-at would produce after
// deserialization. Repeat queries at the same time whose winner is
// temporal are served without touching the store; distinct query times
// resolving to the same data time share one bucket and pay the decode
// cost once. Static outcomes are not recorded per query time: every such
// query resolves against the store again and reuses the static bucket's
// decoded view.
//
// An empty view (no data for the archetype's primary component) is not
// an error and is not cached.
func (c *Caches) LatestAt(q query.LatestAtQuery, entity data.EntityPath, arch data.Archetype) (View, error) {
	key := Key{Store: c.store.ID(), Entity: entity.String(), Timeline: q.Timeline}
	kc := c.keyCaches(key)

	kc.mu.Lock()
	lac := kc.latestLocked(arch.Name)
	if b, ok := lac.perQueryTime[q.At]; ok {
		v := b.viewAt(0)
		kc.mu.Unlock()
		return v, nil
	}
	epoch := kc.epoch
	kc.mu.Unlock()

	// Concurrent misses on the same outcome resolve once; everyone gets
	// the flight's view. The flight holds no cache lock across the
	// store query or the decode.
	flightKey := "latest|" + key.String() + "|" + arch.Name + "|" + strconv.FormatInt(int64(q.At), 10)
	v, err, _ := c.flights.Do(flightKey, func() (any, error) {
		return c.populateLatestAt(kc, epoch, q, entity, arch)
	})
	if err != nil {
		return View{}, err
	}
	return v.(View), nil
}

func (c *Caches) populateLatestAt(kc *keyCaches, epoch uint64, q query.LatestAtQuery, entity data.EntityPath, arch data.Archetype) (View, error) {
	res := c.store.LatestAt(q, entity, arch.Components)
	prim, ok := res.Components[arch.Primary()]
	if !ok {
		return View{}, nil
	}
	k := rowKey{time: prim.Time, rowID: prim.RowID}

	// The data time may already be materialized by a query at another
	// time; link it and skip the decode.
	kc.mu.Lock()
	lac := kc.latestLocked(arch.Name)
	if prim.Static {
		if b := lac.static; b != nil && b.len() == 1 && b.times[0] == k {
			v := b.viewAt(0)
			kc.mu.Unlock()
			return v, nil
		}
	} else if b, ok := lac.perDataTime[prim.Time]; ok {
		lac.perQueryTime[q.At] = b
		v := b.viewAt(0)
		kc.mu.Unlock()
		return v, nil
	}
	kc.mu.Unlock()

	batches, err := c.decodeLatestAt(res, arch)
	if err != nil {
		return View{}, err
	}
	b := newBucket(arch.Components)
	b.insert(k, batches)

	kc.mu.Lock()
	defer kc.mu.Unlock()
	lac = kc.latestLocked(arch.Name)
	if kc.epoch == epoch {
		if prim.Static {
			lac.static = b
		} else {
			if exist, ok := lac.perDataTime[prim.Time]; ok {
				b = exist
			} else {
				lac.perDataTime[prim.Time] = b
			}
			lac.perQueryTime[q.At] = b
		}
	}
	// On an epoch change the store mutated while we resolved: serve the
	// view but leave it uncached, the next query recomputes.
	return b.viewAt(0), nil
}

func (c *Caches) decodeLatestAt(res query.LatestAtResult, arch data.Archetype) (map[data.ComponentDescriptor]data.Batch, error) {
	batches := make(map[data.ComponentDescriptor]data.Batch, len(arch.Components))
	for _, desc := range arch.Components {
		rv, ok := res.Components[desc]
		if !ok {
			continue
		}
		codec, err := c.reg.Lookup(desc)
		if err != nil {
			return nil, err
		}
		batch, err := codec.Decode(rv.Cell)
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
