package cache

import (
	"fmt"
	"slices"

	"chronolog/internal/data"
	"chronolog/internal/deque"
)

// rowKey orders cached rows by (data time, RowID). Static rows carry
// TimeStatic, which sorts before every temporal value, so they always
// form a prefix of a sorted bucket.
type rowKey struct {
	time  data.TimeInt
	rowID data.RowID
}

func (k rowKey) compare(other rowKey) int {
	if k.time != other.time {
		if k.time < other.time {
			return -1
		}
		return 1
	}
	return k.rowID.Compare(other.rowID)
}

// Bucket is a small column-oriented structure holding deserialized,
// join-ready rows of one archetype view: the sorted (time, RowID) index
// of its rows and, per component, a flat deque of optional batches with
// exactly one entry per row.
//
// Buckets are not thread-safe; the owning inner cache's lock serializes
// access.
type Bucket struct {
	times []rowKey
	comps map[data.ComponentDescriptor]*deque.Flat[any]
}

func newBucket(components []data.ComponentDescriptor) *Bucket {
	comps := make(map[data.ComponentDescriptor]*deque.Flat[any], len(components))
	for _, desc := range components {
		comps[desc] = &deque.Flat[any]{}
	}
	return &Bucket{comps: comps}
}

func (b *Bucket) len() int { return len(b.times) }

// search returns the insertion index of k and whether it is present.
func (b *Bucket) search(k rowKey) (int, bool) {
	return slices.BinarySearchFunc(b.times, k, rowKey.compare)
}

// insert adds a row at its sorted position. Rows whose (time, RowID)
// already exists are skipped: the store may hand the same row out more
// than once across overlapping chunks, and the cache de-duplicates
// defensively. A nil batch in batches marks the component absent at the
// row.
func (b *Bucket) insert(k rowKey, batches map[data.ComponentDescriptor]data.Batch) bool {
	at, present := b.search(k)
	if present {
		return false
	}
	b.times = slices.Insert(b.times, at, k)
	for desc, flat := range b.comps {
		batch := batches[desc]
		flat.Insert(at, batch, batch != nil)
	}
	if debugChecks {
		b.assertSound()
	}
	return true
}

// truncateAt drops every row with time >= threshold.
func (b *Bucket) truncateAt(threshold data.TimeInt) {
	at, _ := b.search(rowKey{time: threshold, rowID: data.ZeroRowID})
	if at >= len(b.times) {
		return
	}
	b.times = b.times[:at]
	for _, flat := range b.comps {
		flat.Truncate(at)
	}
}

// staticPrefix returns the number of leading static rows.
func (b *Bucket) staticPrefix() int {
	n := 0
	for n < len(b.times) && b.times[n].time.IsStatic() {
		n++
	}
	return n
}

// entryRange returns the index interval [i, j) of rows inside tr.
func (b *Bucket) entryRange(tr data.TimeRange) (int, int) {
	i, _ := b.search(rowKey{time: tr.Min, rowID: data.ZeroRowID})
	j := i
	for j < len(b.times) && b.times[j].time <= tr.Max {
		j++
	}
	return i, j
}

// viewAt assembles the view of row i. Batches share the bucket's decoded
// storage; callers must treat them as read-only.
func (b *Bucket) viewAt(i int) View {
	k := b.times[i]
	view := View{
		Time:    k.time,
		RowID:   k.rowID,
		Static:  k.time.IsStatic(),
		Batches: make(map[data.ComponentDescriptor]data.Batch, len(b.comps)),
	}
	for desc, flat := range b.comps {
		if batch, ok := flat.At(i); ok {
			view.Batches[desc] = data.Batch(batch)
		}
	}
	return view
}

// debugChecks enables full bucket invariant verification on every
// insert. Off in release use; tests flip it on.
var debugChecks = false

// assertSound verifies bucket invariants: index sorted and duplicate
// free, every component column exactly as long as the index. Violations
// are programmer errors.
func (b *Bucket) assertSound() {
	for i := 1; i < len(b.times); i++ {
		if b.times[i-1].compare(b.times[i]) >= 0 {
			panic(fmt.Sprintf("cache: bucket index out of order at %d", i))
		}
	}
	for desc, flat := range b.comps {
		if flat.Len() != len(b.times) {
			panic(fmt.Sprintf("cache: column %s has %d entries, index has %d",
				desc, flat.Len(), len(b.times)))
		}
	}
}

// View is a resolved, deserialized archetype view: one row's worth of
// component batches. Batches maps only the components present at the
// row; a present empty batch is an explicit clear.
type View struct {
	// Time is the data time, or TimeStatic for static rows.
	Time data.TimeInt

	RowID data.RowID

	Static bool

	Batches map[data.ComponentDescriptor]data.Batch
}

// IsEmpty reports whether no component had data.
func (v View) IsEmpty() bool { return len(v.Batches) == 0 }
