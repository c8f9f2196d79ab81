package data

import (
	"testing"
	"time"
)

func TestRowIDOrdering(t *testing.T) {
	testCases := []struct {
		name string
		a, b RowID
		want int
	}{
		{"equal", NewRowID(1, 1), NewRowID(1, 1), 0},
		{"by_timestamp", NewRowID(1, 99), NewRowID(2, 0), -1},
		{"by_counter", NewRowID(5, 1), NewRowID(5, 2), -1},
		{"high_bits_dominate", NewRowID(2, 0), NewRowID(1, ^uint64(0)), 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.a.Compare(tc.b)
			if (got < 0) != (tc.want < 0) || (got > 0) != (tc.want > 0) {
				t.Fatalf("Compare(%s, %s) = %d, want sign of %d", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestRowIDComponents(t *testing.T) {
	id := NewRowID(123456789, 42)
	if id.Nanos() != 123456789 {
		t.Fatalf("Nanos = %d, want 123456789", id.Nanos())
	}
	if id.Counter() != 42 {
		t.Fatalf("Counter = %d, want 42", id.Counter())
	}
	if got := id.Time(); !got.Equal(time.Unix(0, 123456789)) {
		t.Fatalf("Time = %v, want %v", got, time.Unix(0, 123456789))
	}
}

func TestRowIDStringRoundtrip(t *testing.T) {
	id := NewRowID(0x0123456789abcdef, 0xfedcba9876543210)
	s := id.String()
	if len(s) != 26 {
		t.Fatalf("string length = %d, want 26", len(s))
	}
	parsed, err := ParseRowID(s)
	if err != nil {
		t.Fatalf("ParseRowID(%q): %v", s, err)
	}
	if parsed != id {
		t.Fatalf("roundtrip mismatch: %s != %s", parsed, id)
	}
}

func TestRowIDStringOrderMatchesNumericOrder(t *testing.T) {
	a := NewRowID(1, 0)
	b := NewRowID(1, 1)
	c := NewRowID(2, 0)
	if !(a.String() < b.String() && b.String() < c.String()) {
		t.Fatalf("base32hex strings must sort like the IDs: %s %s %s", a, b, c)
	}
}

func TestRowIDGeneratorMonotonic(t *testing.T) {
	gen := NewRowIDGenerator(nil)
	prev := gen.Next()
	for i := 0; i < 10000; i++ {
		next := gen.Next()
		if !prev.Less(next) {
			t.Fatalf("iteration %d: %s not < %s", i, prev, next)
		}
		prev = next
	}
}

func TestRowIDGeneratorSameNanosecond(t *testing.T) {
	fixed := time.Unix(0, 42)
	gen := NewRowIDGenerator(func() time.Time { return fixed })
	a := gen.Next()
	b := gen.Next()
	if a.Nanos() != b.Nanos() {
		t.Fatalf("expected shared timestamp, got %d and %d", a.Nanos(), b.Nanos())
	}
	if a.Counter() == b.Counter() {
		t.Fatal("same-nanosecond IDs must differ in the counter")
	}
	if !a.Less(b) {
		t.Fatalf("%s not < %s", a, b)
	}
}

func TestRowIDGeneratorClockStepsBack(t *testing.T) {
	now := time.Unix(0, 100)
	gen := NewRowIDGenerator(func() time.Time { return now })
	a := gen.Next()
	now = time.Unix(0, 50)
	b := gen.Next()
	if !a.Less(b) {
		t.Fatalf("ordering must survive a clock step back: %s not < %s", a, b)
	}
}
