package deque

import (
	"slices"
	"testing"
)

func TestFlatPushBackAndAt(t *testing.T) {
	var f Flat[int]
	f.PushBack([]int{1, 2, 3}, true)
	f.PushBack(nil, false)
	f.PushBack([]int{}, true)
	f.PushBack([]int{4}, true)

	if f.Len() != 4 {
		t.Fatalf("Len = %d, want 4", f.Len())
	}
	if f.NumValues() != 4 {
		t.Fatalf("NumValues = %d, want 4", f.NumValues())
	}

	batch, ok := f.At(0)
	if !ok || !slices.Equal(batch, []int{1, 2, 3}) {
		t.Fatalf("At(0) = %v, %v", batch, ok)
	}
	if _, ok := f.At(1); ok {
		t.Fatal("At(1) must be absent")
	}
	batch, ok = f.At(2)
	if !ok || len(batch) != 0 {
		t.Fatalf("At(2) must be a present empty batch, got %v, %v", batch, ok)
	}
	batch, ok = f.At(3)
	if !ok || !slices.Equal(batch, []int{4}) {
		t.Fatalf("At(3) = %v, %v", batch, ok)
	}
}

func TestFlatInsertMiddle(t *testing.T) {
	var f Flat[string]
	f.PushBack([]string{"a"}, true)
	f.PushBack([]string{"c", "d"}, true)
	f.Insert(1, []string{"b1", "b2", "b3"}, true)

	want := [][]string{{"a"}, {"b1", "b2", "b3"}, {"c", "d"}}
	for i, batch := range want {
		got, ok := f.At(i)
		if !ok || !slices.Equal(got, batch) {
			t.Fatalf("At(%d) = %v, %v, want %v", i, got, ok, batch)
		}
	}
}

func TestFlatInsertFront(t *testing.T) {
	var f Flat[int]
	f.PushBack([]int{2}, true)
	f.Insert(0, []int{1}, true)
	got, _ := f.At(0)
	if !slices.Equal(got, []int{1}) {
		t.Fatalf("At(0) = %v", got)
	}
	got, _ = f.At(1)
	if !slices.Equal(got, []int{2}) {
		t.Fatalf("At(1) = %v", got)
	}
}

func TestFlatInsertAbsentBetweenPresent(t *testing.T) {
	var f Flat[int]
	f.PushBack([]int{1}, true)
	f.PushBack([]int{3}, true)
	f.Insert(1, []int{999}, false) // batch ignored when absent

	if f.NumValues() != 2 {
		t.Fatalf("NumValues = %d, want 2 (absent entries store nothing)", f.NumValues())
	}
	if _, ok := f.At(1); ok {
		t.Fatal("inserted entry must be absent")
	}
	got, _ := f.At(2)
	if !slices.Equal(got, []int{3}) {
		t.Fatalf("At(2) = %v", got)
	}
}

func TestFlatTruncate(t *testing.T) {
	var f Flat[int]
	for i := 0; i < 5; i++ {
		f.PushBack([]int{i, i}, true)
	}
	f.Truncate(2)
	if f.Len() != 2 {
		t.Fatalf("Len = %d, want 2", f.Len())
	}
	if f.NumValues() != 4 {
		t.Fatalf("NumValues = %d, want 4", f.NumValues())
	}
	// Truncating past the end is a no-op.
	f.Truncate(10)
	if f.Len() != 2 {
		t.Fatalf("Len = %d after no-op truncate", f.Len())
	}
	// Truncating to zero empties the deque and it remains usable.
	f.Truncate(0)
	if f.Len() != 0 || f.NumValues() != 0 {
		t.Fatalf("Len = %d NumValues = %d after full truncate", f.Len(), f.NumValues())
	}
	f.PushBack([]int{7}, true)
	got, ok := f.At(0)
	if !ok || !slices.Equal(got, []int{7}) {
		t.Fatalf("reuse after truncate: At(0) = %v, %v", got, ok)
	}
}

func TestFlatRemoveRange(t *testing.T) {
	var f Flat[int]
	for i := 0; i < 5; i++ {
		f.PushBack([]int{i}, true)
	}
	f.RemoveRange(1, 3)
	if f.Len() != 3 {
		t.Fatalf("Len = %d, want 3", f.Len())
	}
	want := [][]int{{0}, {3}, {4}}
	for i, batch := range want {
		got, ok := f.At(i)
		if !ok || !slices.Equal(got, batch) {
			t.Fatalf("At(%d) = %v, %v, want %v", i, got, ok, batch)
		}
	}
}
