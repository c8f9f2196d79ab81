package data

import (
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	ErrUnknownComponentType = errors.New("no codec registered for component type")
	ErrInvalidCell          = errors.New("invalid component cell data")
)

// Batch is a deserialized per-row component batch: zero or more instances
// of one component type. A non-nil empty Batch is an explicit clear.
//
// At the chunk layer batches travel as encoded cells ([]byte); a nil cell
// means "no observation" and is distinct from an encoded empty batch.
type Batch []any

// As converts a Batch to a typed slice. Instances of the wrong dynamic
// type are skipped; codecs produced by NewMsgpackCodec never yield any.
func As[T any](b Batch) []T {
	out := make([]T, 0, len(b))
	for _, v := range b {
		if t, ok := v.(T); ok {
			out = append(out, t)
		}
	}
	return out
}

// Codec encodes and decodes the component batches of one component type.
// The encoded form is the opaque columnar carrier the store moves around;
// only the cache and end consumers pay the decode cost.
type Codec interface {
	// ComponentType returns the type label this codec serves, matching
	// ComponentDescriptor.Type.
	ComponentType() string

	Encode(batch Batch) ([]byte, error)
	Decode(cell []byte) (Batch, error)
}

// Cell framing: one header byte (raw or zstd) followed by the msgpack
// payload. Payloads above compressThreshold are zstd-compressed.
const (
	cellRaw  byte = 0
	cellZstd byte = 1

	compressThreshold = 4 << 10
)

var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	zstdDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
)

type msgpackCodec[T any] struct {
	componentType string
}

// NewMsgpackCodec creates a Codec that serializes batches of T with
// msgpack, compressing large cells with zstd.
func NewMsgpackCodec[T any](componentType string) Codec {
	return msgpackCodec[T]{componentType: componentType}
}

func (c msgpackCodec[T]) ComponentType() string { return c.componentType }

func (c msgpackCodec[T]) Encode(batch Batch) ([]byte, error) {
	if batch == nil {
		return nil, nil
	}
	vals := make([]T, len(batch))
	for i, v := range batch {
		t, ok := v.(T)
		if !ok {
			return nil, fmt.Errorf("%s: instance %d has type %T: %w", c.componentType, i, v, ErrInvalidCell)
		}
		vals[i] = t
	}
	payload, err := msgpack.Marshal(vals)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", c.componentType, err)
	}
	if len(payload) > compressThreshold {
		out := make([]byte, 1, len(payload)/2+1)
		out[0] = cellZstd
		return zstdEncoder.EncodeAll(payload, out), nil
	}
	out := make([]byte, 1+len(payload))
	out[0] = cellRaw
	copy(out[1:], payload)
	return out, nil
}

func (c msgpackCodec[T]) Decode(cell []byte) (Batch, error) {
	if cell == nil {
		return nil, nil
	}
	if len(cell) < 1 {
		return nil, fmt.Errorf("decode %s: empty cell: %w", c.componentType, ErrInvalidCell)
	}
	payload := cell[1:]
	switch cell[0] {
	case cellRaw:
	case cellZstd:
		decoded, err := zstdDecoder.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", c.componentType, err)
		}
		payload = decoded
	default:
		return nil, fmt.Errorf("decode %s: unknown cell header %d: %w", c.componentType, cell[0], ErrInvalidCell)
	}

	var vals []T
	if err := msgpack.Unmarshal(payload, &vals); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.componentType, err)
	}
	batch := make(Batch, len(vals))
	for i, v := range vals {
		batch[i] = v
	}
	return batch, nil
}

// MustEncode encodes a typed value slice with the given codec, panicking
// on error. Intended for producers and tests where the codec and values
// are statically known to match.
func MustEncode[T any](codec Codec, vals ...T) []byte {
	batch := make(Batch, len(vals))
	for i, v := range vals {
		batch[i] = v
	}
	cell, err := codec.Encode(batch)
	if err != nil {
		panic(err)
	}
	return cell
}

// EmptyCell returns the encoded form of an explicit clear (empty batch)
// for the given codec.
func EmptyCell(codec Codec) []byte {
	cell, err := codec.Encode(Batch{})
	if err != nil {
		panic(err)
	}
	return cell
}

// Registry maps component type labels to codecs. It is safe for
// concurrent use. Registries are explicit context objects: hosts build
// one and hand it to the caches that need to deserialize.
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]Codec
}

// NewRegistry creates an empty codec registry.
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[string]Codec)}
}

// Register adds a codec, replacing any prior codec for the same type.
func (r *Registry) Register(codec Codec) {
	r.mu.Lock()
	r.codecs[codec.ComponentType()] = codec
	r.mu.Unlock()
}

// Lookup resolves the codec for a descriptor by its type label.
func (r *Registry) Lookup(desc ComponentDescriptor) (Codec, error) {
	r.mu.RLock()
	codec, ok := r.codecs[desc.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%q: %w", desc.Type, ErrUnknownComponentType)
	}
	return codec, nil
}
