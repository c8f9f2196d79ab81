package data

import (
	"math"
	"testing"
)

func TestTimeSentinels(t *testing.T) {
	if TimeStatic != math.MinInt64 {
		t.Fatalf("TimeStatic = %d, want math.MinInt64", TimeStatic)
	}
	if TimeMin != math.MinInt64+1 {
		t.Fatalf("TimeMin = %d, want math.MinInt64+1", TimeMin)
	}
	if TimeMax != math.MaxInt64 {
		t.Fatalf("TimeMax = %d, want math.MaxInt64", TimeMax)
	}
	if !TimeStatic.IsStatic() {
		t.Fatal("TimeStatic.IsStatic() = false")
	}
	if TimeMin.IsStatic() {
		t.Fatal("TimeMin.IsStatic() = true")
	}
	if TimeStatic >= TimeMin {
		t.Fatal("static sentinel must sort before every temporal value")
	}
}

func TestSaturatingAdd(t *testing.T) {
	testCases := []struct {
		name string
		t    TimeInt
		d    int64
		want TimeInt
	}{
		{"plain_add", 10, 5, 15},
		{"plain_sub", 10, -5, 5},
		{"overflow", TimeMax, 1, TimeMax},
		{"underflow", TimeMin, -1, TimeMin},
		{"underflow_into_static", TimeMin, -100, TimeMin},
		{"near_max", TimeMax - 1, 1, TimeMax},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.t.SaturatingAdd(tc.d); got != tc.want {
				t.Fatalf("(%d).SaturatingAdd(%d) = %d, want %d", tc.t, tc.d, got, tc.want)
			}
		})
	}
}

func TestTimeRange(t *testing.T) {
	r := NewTimeRange(10, 20)
	if !r.Contains(10) || !r.Contains(20) || !r.Contains(15) {
		t.Fatal("closed interval must contain its bounds")
	}
	if r.Contains(9) || r.Contains(21) {
		t.Fatal("range contains values outside its bounds")
	}
	if !r.Intersects(NewTimeRange(20, 30)) {
		t.Fatal("touching ranges must intersect")
	}
	if r.Intersects(NewTimeRange(21, 30)) {
		t.Fatal("disjoint ranges must not intersect")
	}
	if NewTimeRange(5, 4).IsEmpty() != true {
		t.Fatal("inverted range must be empty")
	}
	if got := r.Union(NewTimeRange(25, 30)); got.Min != 10 || got.Max != 30 {
		t.Fatalf("union = %v, want [10, 30]", got)
	}
}

func TestTimePointStatic(t *testing.T) {
	var tp TimePoint
	if !tp.IsStatic() {
		t.Fatal("nil time point must be static")
	}
	tp = tp.With(SequenceTimeline("frame"), 3)
	if tp.IsStatic() {
		t.Fatal("time point with an entry must not be static")
	}
	if got := tp[SequenceTimeline("frame")]; got != 3 {
		t.Fatalf("frame = %d, want 3", got)
	}
}
