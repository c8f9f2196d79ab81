package query

import (
	"testing"

	"chronolog/internal/chunk"
	"chronolog/internal/data"
)

var (
	frame  = data.SequenceTimeline("frame")
	entity = data.ParseEntityPath("e")
)

// fakeReader hands out fixed candidate sets, independent of entity and
// bounds; the engine itself must do the row-level filtering.
type fakeReader struct {
	statics  []Candidate
	temporal []Candidate
}

func (f *fakeReader) StaticCandidates(data.EntityPath, data.ComponentDescriptor) []Candidate {
	return f.statics
}

func (f *fakeReader) TemporalCandidates(_ data.EntityPath, _ data.ComponentDescriptor, _ string, bound data.TimeInt) []Candidate {
	var out []Candidate
	for _, cand := range f.temporal {
		if r, ok := cand.Chunk.TimeRange("frame"); ok && r.Min <= bound {
			out = append(out, cand)
		}
	}
	return out
}

func (f *fakeReader) RangeCandidates(_ data.EntityPath, _ data.ComponentDescriptor, _ string, tr data.TimeRange) []Candidate {
	var out []Candidate
	for _, cand := range f.temporal {
		if r, ok := cand.Chunk.TimeRange("frame"); ok && r.Intersects(tr) {
			out = append(out, cand)
		}
	}
	return out
}

func temporalChunk(t *testing.T, times []data.TimeInt, rids []uint64, cells [][]byte) *chunk.Chunk {
	t.Helper()
	ids := make([]data.RowID, len(rids))
	for i, r := range rids {
		ids[i] = data.NewRowID(r, 0)
	}
	col, err := chunk.NewTimeColumn(frame, times)
	if err != nil {
		t.Fatalf("NewTimeColumn: %v", err)
	}
	c, err := chunk.New(chunk.NewChunkID(), entity, ids,
		[]chunk.TimeColumn{col},
		[]chunk.ComponentColumn{chunk.NewComponentColumn(data.ColorsDescriptor, cells)},
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func colorCell(c data.Color) []byte { return data.MustEncode(data.ColorCodec, c) }

func TestLatestAtSkipsNullCells(t *testing.T) {
	// The latest row is null; the winner must be the earlier non-null
	// one.
	r := &fakeReader{temporal: []Candidate{{
		Chunk: temporalChunk(t,
			[]data.TimeInt{1, 2},
			[]uint64{1, 2},
			[][]byte{colorCell(0x01), nil},
		),
		Order: 1,
	}}}

	res := LatestAt(r, LatestAtQuery{Timeline: "frame", At: 5}, entity,
		[]data.ComponentDescriptor{data.ColorsDescriptor})
	view, ok := res.Components[data.ColorsDescriptor]
	if !ok || view.Time != 1 {
		t.Fatalf("winner = %+v, %v, want the non-null row at 1", view, ok)
	}
}

func TestLatestAtInsertionOrderBreaksFullTies(t *testing.T) {
	// Two chunks carrying the exact same (time, RowID): the
	// later-inserted one wins.
	mk := func(color data.Color) *chunk.Chunk {
		return temporalChunk(t, []data.TimeInt{3}, []uint64{7}, [][]byte{colorCell(color)})
	}
	r := &fakeReader{temporal: []Candidate{
		{Chunk: mk(0xaa), Order: 1},
		{Chunk: mk(0xbb), Order: 2},
	}}

	res := LatestAt(r, LatestAtQuery{Timeline: "frame", At: 3}, entity,
		[]data.ComponentDescriptor{data.ColorsDescriptor})
	view := res.Components[data.ColorsDescriptor]
	batch, err := data.ColorCodec.Decode(view.Cell)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := data.As[data.Color](batch); got[0] != 0xbb {
		t.Fatalf("winner color = %v, want the later-inserted chunk's", got)
	}
}

func TestRangeDeduplicatesFullTies(t *testing.T) {
	mk := func(color data.Color) *chunk.Chunk {
		return temporalChunk(t, []data.TimeInt{3}, []uint64{7}, [][]byte{colorCell(color)})
	}
	r := &fakeReader{temporal: []Candidate{
		{Chunk: mk(0xaa), Order: 1},
		{Chunk: mk(0xbb), Order: 2},
	}}

	var rows []RangeRow
	for row := range Range(r, RangeQuery{Timeline: "frame", Range: data.NewTimeRange(0, 10)}, entity,
		[]data.ComponentDescriptor{data.ColorsDescriptor}) {
		rows = append(rows, row)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1 (same (time, RowID) collapses)", len(rows))
	}
	batch, err := data.ColorCodec.Decode(rows[0].Cells[data.ColorsDescriptor])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := data.As[data.Color](batch); got[0] != 0xbb {
		t.Fatalf("cell = %v, want the later-inserted chunk's", got)
	}
}

func TestRangeBoundsAreClosed(t *testing.T) {
	r := &fakeReader{temporal: []Candidate{{
		Chunk: temporalChunk(t,
			[]data.TimeInt{1, 2, 3, 4},
			[]uint64{1, 2, 3, 4},
			[][]byte{colorCell(1), colorCell(2), colorCell(3), colorCell(4)},
		),
		Order: 1,
	}}}

	var got []data.TimeInt
	for row := range Range(r, RangeQuery{Timeline: "frame", Range: data.NewTimeRange(2, 3)}, entity,
		[]data.ComponentDescriptor{data.ColorsDescriptor}) {
		got = append(got, row.Time)
	}
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Fatalf("times = %v, want [2 3]", got)
	}
}

func TestRangeEmptyInterval(t *testing.T) {
	r := &fakeReader{}
	count := 0
	for range Range(r, RangeQuery{Timeline: "frame", Range: data.NewTimeRange(5, 4)}, entity,
		[]data.ComponentDescriptor{data.ColorsDescriptor}) {
		count++
	}
	if count != 0 {
		t.Fatalf("rows = %d, want 0 for an empty interval", count)
	}
}

func TestRangeIsInterruptible(t *testing.T) {
	r := &fakeReader{temporal: []Candidate{{
		Chunk: temporalChunk(t,
			[]data.TimeInt{1, 2, 3},
			[]uint64{1, 2, 3},
			[][]byte{colorCell(1), colorCell(2), colorCell(3)},
		),
		Order: 1,
	}}}

	count := 0
	for range Range(r, RangeQuery{Timeline: "frame", Range: data.EverythingRange()}, entity,
		[]data.ComponentDescriptor{data.ColorsDescriptor}) {
		count++
		break
	}
	if count != 1 {
		t.Fatalf("early break yielded %d rows", count)
	}
}
