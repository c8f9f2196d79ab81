// Package deque provides a flat double-ended batch container.
//
// Flat stores a sequence of entries, each a variable-length batch of T or
// an explicit absence. All values live in one contiguous backing slice
// with an offset table, so iterating the batches of many entries touches
// memory linearly instead of chasing per-entry allocations.
package deque

// Flat holds entries of optional batches of T. The zero value is empty
// and ready to use. Flat is not safe for concurrent use; callers
// serialize access with their own lock.
type Flat[T any] struct {
	values []T
	// offsets has len(entries)+1 elements once non-empty;
	// entry i spans values[offsets[i]:offsets[i+1]].
	offsets []int
	present []bool
}

// Len returns the number of entries.
func (f *Flat[T]) Len() int { return len(f.present) }

// NumValues returns the total number of values across all entries.
func (f *Flat[T]) NumValues() int { return len(f.values) }

// At returns the batch of entry i and whether it is present.
// The returned slice aliases internal storage; callers must not modify it.
func (f *Flat[T]) At(i int) ([]T, bool) {
	if !f.present[i] {
		return nil, false
	}
	return f.values[f.offsets[i]:f.offsets[i+1]], true
}

// PushBack appends an entry.
func (f *Flat[T]) PushBack(batch []T, present bool) {
	f.Insert(f.Len(), batch, present)
}

// Insert places an entry at index i, shifting later entries back.
// An absent entry stores no values; batch is ignored when present is false.
func (f *Flat[T]) Insert(i int, batch []T, present bool) {
	if len(f.offsets) == 0 {
		f.offsets = append(f.offsets, 0)
	}
	if !present {
		batch = nil
	}

	at := f.offsets[i]
	f.values = append(f.values[:at], append(append([]T{}, batch...), f.values[at:]...)...)

	f.offsets = append(f.offsets, 0)
	copy(f.offsets[i+1:], f.offsets[i:])
	f.offsets[i+1] = at + len(batch)
	for j := i + 2; j < len(f.offsets); j++ {
		f.offsets[j] += len(batch)
	}

	f.present = append(f.present, false)
	copy(f.present[i+1:], f.present[i:])
	f.present[i] = present
}

// Truncate drops every entry at index n and beyond.
func (f *Flat[T]) Truncate(n int) {
	if n >= f.Len() {
		return
	}
	f.values = f.values[:f.offsets[n]]
	f.offsets = f.offsets[:n+1]
	f.present = f.present[:n]
	if n == 0 {
		f.offsets = f.offsets[:0]
	}
}

// RemoveRange drops entries in [i, j).
func (f *Flat[T]) RemoveRange(i, j int) {
	if i >= j {
		return
	}
	lo, hi := f.offsets[i], f.offsets[j]
	f.values = append(f.values[:lo], f.values[hi:]...)
	width := hi - lo
	copy(f.offsets[i+1:], f.offsets[j+1:])
	f.offsets = f.offsets[:len(f.offsets)-(j-i)]
	for k := i + 1; k < len(f.offsets); k++ {
		f.offsets[k] -= width
	}
	f.present = append(f.present[:i], f.present[j:]...)
	if f.Len() == 0 {
		f.offsets = f.offsets[:0]
	}
}
