// Package store implements the chunk store: the write-once-per-chunk,
// append-mostly columnar store that owns all chunk data for one
// recording. It maintains per-column temporal and static indexes,
// compacts adjacent small chunks, evicts under a byte target, and feeds
// an ordered event stream to registered subscribers.
//
// Concurrency: one logical writer, many readers. A single
// readers-writer lock protects all bookkeeping; InsertChunk, GC and
// subscriber registration take the write side, queries the read side.
// Chunks themselves are immutable and handed out as shared references.
package store

import (
	"errors"
	"iter"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/google/uuid"

	"chronolog/internal/chunk"
	"chronolog/internal/data"
	"chronolog/internal/logging"
	"chronolog/internal/notify"
	"chronolog/internal/query"
)

var (
	ErrIncompatibleSchema = errors.New("chunk schema incompatible with prior observations")
	ErrResourceExhausted  = errors.New("store byte budget exhausted")
)

// CompactionConfig caps the size of compaction results. A merge only
// happens when the combined chunk stays under both limits.
type CompactionConfig struct {
	MaxRows  int64
	MaxBytes int64
}

// Config configures a Store.
type Config struct {
	// ID identifies the store in events and cache keys.
	// Defaults to a fresh UUID.
	ID string

	// MaxBytes, when positive, bounds the store's total payload bytes.
	// An insertion that would exceed it fails with ErrResourceExhausted
	// and leaves the store unchanged; the caller is expected to GC.
	MaxBytes int64

	// Compaction caps; zero values get defaults (1024 rows, 1 MiB).
	Compaction CompactionConfig

	Now func() time.Time

	// Logger for structured logging. If nil, logging is disabled.
	// The store scopes it with component="chunk-store".
	Logger *slog.Logger
}

// columnKey addresses one (entity, component) column. Entities are
// keyed by their 64-bit path hash; the path itself lives in the entity
// table.
type columnKey struct {
	entity uint64
	desc   data.ComponentDescriptor
}

// schemaKey addresses the type agreement of one (entity, component
// identifier), across descriptors.
type schemaKey struct {
	entity    uint64
	component string
}

// entityEntry is one entity's bookkeeping: the path behind the hash key
// and the set of observed columns.
type entityEntry struct {
	path  data.EntityPath
	comps map[data.ComponentDescriptor]struct{}
}

// temporalEntry is one chunk's registration in a per-timeline index,
// keyed by the chunk's minimum time on that timeline. The insertion
// order disambiguates chunks sharing a minimum, making the index an
// ordered multimap.
type temporalEntry struct {
	min   data.TimeInt
	order uint64
	ch    *chunk.Chunk
}

func temporalLess(a, b temporalEntry) bool {
	if a.min != b.min {
		return a.min < b.min
	}
	return a.order < b.order
}

type chunkEntry struct {
	ch    *chunk.Chunk
	order uint64
}

// Store owns a set of chunks for one recording.
type Store struct {
	cfg    Config
	logger *slog.Logger
	signal *notify.Signal

	mu        sync.RWMutex
	chunks    map[chunk.ChunkID]*chunkEntry
	nextOrder uint64

	// retired holds the IDs of chunks consumed by compaction. Their
	// rows live on in the merged chunk, so re-inserting them must stay
	// a no-op.
	retired map[chunk.ChunkID]struct{}

	// temporal holds, per column and per timeline name, an ordered
	// multimap from chunk min-time to chunk.
	temporal map[columnKey]map[string]*btree.BTreeG[temporalEntry]

	// statics holds all static chunks touching a column. The logically
	// active one is the chunk carrying the highest-RowID non-null row;
	// superseded rows stay until GC but never win queries.
	statics map[columnKey][]*chunk.Chunk

	schema    map[schemaKey]string
	timelines map[string]data.Timeline

	// entities maps entity path hash to the entity's bookkeeping.
	entities map[uint64]*entityEntry

	// timelineRows counts indexed rows per timeline name.
	timelineRows map[string]int64

	totalBytes int64
	generation uint64

	subscribers []subscriberEntry
	nextSubID   SubscriberID
}

// New creates a store.
func New(cfg Config) *Store {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Compaction.MaxRows <= 0 {
		cfg.Compaction.MaxRows = 1024
	}
	if cfg.Compaction.MaxBytes <= 0 {
		cfg.Compaction.MaxBytes = 1 << 20
	}

	logger := logging.Default(cfg.Logger).With("component", "chunk-store", "store", cfg.ID)

	return &Store{
		cfg:          cfg,
		logger:       logger,
		signal:       notify.NewSignal(),
		chunks:       make(map[chunk.ChunkID]*chunkEntry),
		retired:      make(map[chunk.ChunkID]struct{}),
		temporal:     make(map[columnKey]map[string]*btree.BTreeG[temporalEntry]),
		statics:      make(map[columnKey][]*chunk.Chunk),
		schema:       make(map[schemaKey]string),
		timelines:    make(map[string]data.Timeline),
		entities:     make(map[uint64]*entityEntry),
		timelineRows: make(map[string]int64),
	}
}

// ID returns the store's identity.
func (s *Store) ID() string { return s.cfg.ID }

// Signal returns the store's change signal. It fires after every
// committed mutation; interactive consumers wait on it between frames.
func (s *Store) Signal() *notify.Signal { return s.signal }

// Generation returns the store's mutation counter.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// TotalBytes returns the store's total payload byte size.
func (s *Store) TotalBytes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalBytes
}

// NumChunks returns the number of chunks currently held.
func (s *Store) NumChunks() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// InsertionOrder returns the insertion sequence number of a chunk, used
// as the final query tie-breaker, and false for unknown chunks.
func (s *Store) InsertionOrder(id chunk.ChunkID) (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.chunks[id]
	if !ok {
		return 0, false
	}
	return entry.order, true
}

// EntityComponents returns the observed columns of an entity, sorted.
func (s *Store) EntityComponents(entity data.EntityPath) []data.ComponentDescriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry := s.entities[entity.Hash()]
	if entry == nil {
		return nil
	}
	out := make([]data.ComponentDescriptor, 0, len(entry.comps))
	for desc := range entry.comps {
		out = append(out, desc)
	}
	slices.SortFunc(out, data.ComponentDescriptor.Compare)
	return out
}

// Entities returns all entity paths with observations, sorted.
func (s *Store) Entities() []data.EntityPath {
	s.mu.RLock()
	out := make([]data.EntityPath, 0, len(s.entities))
	for _, entry := range s.entities {
		out = append(out, entry.path)
	}
	s.mu.RUnlock()
	slices.SortFunc(out, data.EntityPath.Compare)
	return out
}

// RegisterSubscriber adds a subscriber. It receives every event emitted
// after registration; it never sees history.
func (s *Store) RegisterSubscriber(sub Subscriber) SubscriberID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subscribers = append(s.subscribers, subscriberEntry{id: id, sub: sub})
	return id
}

// UnregisterSubscriber removes a subscriber, reporting whether it was
// registered.
func (s *Store) UnregisterSubscriber(id SubscriberID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, entry := range s.subscribers {
		if entry.id == id {
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			return true
		}
	}
	return false
}

// deliverLocked hands events to every subscriber, in registration order,
// while still holding the write lock: event order is exactly write-lock
// acquisition order, and a reader can only observe a chunk after all
// subscribers finished processing its Addition.
func (s *Store) deliverLocked(events []Event) {
	if len(events) == 0 {
		return
	}
	for _, entry := range s.subscribers {
		entry.sub.OnEvents(events)
	}
}

// --- query read surface ---

// StaticCandidates implements query.Reader.
func (s *Store) StaticCandidates(entity data.EntityPath, desc data.ComponentDescriptor) []query.Candidate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := columnKey{entity: entity.Hash(), desc: desc}
	chunks := s.statics[key]
	out := make([]query.Candidate, 0, len(chunks))
	for _, ch := range chunks {
		out = append(out, query.Candidate{Chunk: ch, Order: s.chunks[ch.ID()].order})
	}
	return out
}

// TemporalCandidates implements query.Reader.
func (s *Store) TemporalCandidates(entity data.EntityPath, desc data.ComponentDescriptor, timeline string, bound data.TimeInt) []query.Candidate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.temporalIndexLocked(entity, desc, timeline)
	if idx == nil {
		return nil
	}
	var out []query.Candidate
	idx.Ascend(func(e temporalEntry) bool {
		if e.min > bound {
			return false
		}
		out = append(out, query.Candidate{Chunk: e.ch, Order: e.order})
		return true
	})
	return out
}

// RangeCandidates implements query.Reader.
func (s *Store) RangeCandidates(entity data.EntityPath, desc data.ComponentDescriptor, timeline string, tr data.TimeRange) []query.Candidate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.temporalIndexLocked(entity, desc, timeline)
	if idx == nil {
		return nil
	}
	var out []query.Candidate
	idx.Ascend(func(e temporalEntry) bool {
		if e.min > tr.Max {
			return false
		}
		if r, ok := e.ch.TimeRange(timeline); ok && r.Max >= tr.Min {
			out = append(out, query.Candidate{Chunk: e.ch, Order: e.order})
		}
		return true
	})
	return out
}

func (s *Store) temporalIndexLocked(entity data.EntityPath, desc data.ComponentDescriptor, timeline string) *btree.BTreeG[temporalEntry] {
	byTimeline, ok := s.temporal[columnKey{entity: entity.Hash(), desc: desc}]
	if !ok {
		return nil
	}
	return byTimeline[timeline]
}

// LatestAt answers a latest-at query through the query engine. Unknown
// timelines and empty component sets yield empty results, not errors.
func (s *Store) LatestAt(q query.LatestAtQuery, entity data.EntityPath, components []data.ComponentDescriptor) query.LatestAtResult {
	return query.LatestAt(s, q, entity, components)
}

// Range answers a range query through the query engine. The sequence is
// finite and non-restartable; collect to materialize.
func (s *Store) Range(q query.RangeQuery, entity data.EntityPath, components []data.ComponentDescriptor) iter.Seq[query.RangeRow] {
	return query.Range(s, q, entity, components)
}

var _ query.Reader = (*Store)(nil)

// --- stats ---

// TimelineStats summarizes one timeline's indexed data.
type TimelineStats struct {
	Timeline data.Timeline
	Range    data.TimeRange
	Rows     int64
}

// Stats is a point-in-time snapshot of store bookkeeping.
type Stats struct {
	ID         string
	Chunks     int
	TotalBytes int64
	Generation uint64
	Entities   int
	Timelines  map[string]TimelineStats
}

// Stats computes a snapshot. Timeline ranges are derived by scanning
// chunk metadata; rows and byte totals are maintained incrementally.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	timelines := make(map[string]TimelineStats, len(s.timelines))
	for name, tl := range s.timelines {
		timelines[name] = TimelineStats{
			Timeline: tl,
			Range:    data.NewTimeRange(data.TimeMax, data.TimeMin),
			Rows:     s.timelineRows[name],
		}
	}
	for _, entry := range s.chunks {
		for _, tl := range entry.ch.Timelines() {
			r, _ := entry.ch.TimeRange(tl.Name)
			ts := timelines[tl.Name]
			ts.Range = ts.Range.Union(r)
			timelines[tl.Name] = ts
		}
	}

	return Stats{
		ID:         s.cfg.ID,
		Chunks:     len(s.chunks),
		TotalBytes: s.totalBytes,
		Generation: s.generation,
		Entities:   len(s.entities),
		Timelines:  timelines,
	}
}
