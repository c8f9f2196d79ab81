package data

import (
	"bytes"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"time"
)

// rowIDEncoding is base32hex (RFC 4648) lowercase without padding.
// Alphabet 0-9a-v preserves lexicographic sort order.
var rowIDEncoding = base32.HexEncoding.WithPadding(base32.NoPadding)

// RowID is a globally monotonic, unique 128-bit row identifier.
//
// The high 64 bits hold a nanosecond creation timestamp, the low 64 bits a
// per-generator counter; two RowIDs produced by the same generator in the
// same nanosecond differ in the counter. Ordering is big-endian numeric on
// the full 128 bits, which makes it total, consistent with insertion order
// at any single producer, and usable as a tie-breaker for rows sharing a
// time value.
type RowID [16]byte

// ZeroRowID is the zero value; it never identifies a real row.
var ZeroRowID RowID

// NewRowID assembles a RowID from its timestamp and counter halves.
func NewRowID(nanos uint64, counter uint64) RowID {
	var id RowID
	binary.BigEndian.PutUint64(id[:8], nanos)
	binary.BigEndian.PutUint64(id[8:], counter)
	return id
}

// ParseRowID parses a 26-character base32hex string into a RowID.
func ParseRowID(value string) (RowID, error) {
	if len(value) != 26 {
		return RowID{}, fmt.Errorf("invalid row ID length: %d (want 26)", len(value))
	}
	// base32hex decode expects uppercase
	decoded, err := rowIDEncoding.DecodeString(strings.ToUpper(value))
	if err != nil {
		return RowID{}, fmt.Errorf("invalid row ID: %w", err)
	}
	var id RowID
	copy(id[:], decoded)
	return id, nil
}

// Nanos returns the embedded nanosecond timestamp.
func (id RowID) Nanos() uint64 { return binary.BigEndian.Uint64(id[:8]) }

// Counter returns the embedded per-generator counter.
func (id RowID) Counter() uint64 { return binary.BigEndian.Uint64(id[8:]) }

// Time returns the creation time embedded in the RowID.
func (id RowID) Time() time.Time { return time.Unix(0, int64(id.Nanos())) }

// Compare orders RowIDs big-endian numerically on the full 128 bits.
func (id RowID) Compare(other RowID) int { return bytes.Compare(id[:], other[:]) }

// Less reports id < other in RowID order.
func (id RowID) Less(other RowID) bool { return id.Compare(other) < 0 }

// IsZero reports whether the RowID is the zero value.
func (id RowID) IsZero() bool { return id == ZeroRowID }

// String returns the 26-character lowercase base32hex representation.
func (id RowID) String() string {
	return strings.ToLower(rowIDEncoding.EncodeToString(id[:]))
}

// RowIDGenerator mints monotonically increasing RowIDs for one producer.
// It is safe for concurrent use.
type RowIDGenerator struct {
	mu        sync.Mutex
	now       func() time.Time
	lastNanos uint64
	counter   uint64
}

// NewRowIDGenerator creates a generator. If now is nil, time.Now is used.
func NewRowIDGenerator(now func() time.Time) *RowIDGenerator {
	if now == nil {
		now = time.Now
	}
	return &RowIDGenerator{now: now}
}

// Next returns a RowID strictly greater than any previously returned by
// this generator. Within one nanosecond the counter advances; if the clock
// steps backwards the last observed timestamp is reused so ordering holds.
func (g *RowIDGenerator) Next() RowID {
	g.mu.Lock()
	defer g.mu.Unlock()

	nanos := uint64(g.now().UnixNano())
	if nanos <= g.lastNanos {
		nanos = g.lastNanos
		g.counter++
	} else {
		g.lastNanos = nanos
		g.counter = 0
	}
	return NewRowID(nanos, g.counter)
}
