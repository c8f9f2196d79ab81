package data

import (
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// EntityPath is an ordered sequence of path parts naming a logical object,
// e.g. "world/robot/camera". Paths form a tree; equality and ordering are
// by parts, not by the joined string.
//
// EntityPath values are immutable after construction.
type EntityPath struct {
	parts []string
}

// NewEntityPath builds a path from its parts. Empty parts are dropped.
func NewEntityPath(parts ...string) EntityPath {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return EntityPath{parts: kept}
}

// ParseEntityPath splits a slash-separated path string. Leading, trailing
// and repeated slashes are ignored, so "/world//robot/" parses the same
// as "world/robot". The empty string parses to the root path.
func ParseEntityPath(s string) EntityPath {
	return NewEntityPath(strings.Split(s, "/")...)
}

// Parts returns the path parts. Callers must not modify the returned slice.
func (p EntityPath) Parts() []string { return p.parts }

// Len returns the number of path parts.
func (p EntityPath) Len() int { return len(p.parts) }

// IsRoot reports whether the path has no parts.
func (p EntityPath) IsRoot() bool { return len(p.parts) == 0 }

// Parent returns the path with its last part removed, and false when the
// path is the root.
func (p EntityPath) Parent() (EntityPath, bool) {
	if p.IsRoot() {
		return EntityPath{}, false
	}
	return EntityPath{parts: p.parts[:len(p.parts)-1]}, true
}

// Child returns the path extended by one part.
func (p EntityPath) Child(part string) EntityPath {
	parts := make([]string, len(p.parts)+1)
	copy(parts, p.parts)
	parts[len(p.parts)] = part
	return EntityPath{parts: parts}
}

// IsAncestorOf reports whether p is a strict ancestor of other.
func (p EntityPath) IsAncestorOf(other EntityPath) bool {
	if len(p.parts) >= len(other.parts) {
		return false
	}
	for i, part := range p.parts {
		if other.parts[i] != part {
			return false
		}
	}
	return true
}

// Compare orders paths part-wise, shorter prefixes first.
func (p EntityPath) Compare(other EntityPath) int {
	return slices.Compare(p.parts, other.parts)
}

// Equal reports part-wise equality.
func (p EntityPath) Equal(other EntityPath) bool {
	return slices.Equal(p.parts, other.parts)
}

// Hash returns a 64-bit hash of the path, suitable for map keying and
// sharding. Parts are length-delimited so that ["ab"] and ["a","b"]
// hash differently.
func (p EntityPath) Hash() uint64 {
	h := xxhash.New()
	var lenBuf [1]byte
	for _, part := range p.parts {
		lenBuf[0] = byte(len(part))
		_, _ = h.Write(lenBuf[:])
		_, _ = h.WriteString(part)
	}
	return h.Sum64()
}

// String returns the slash-joined path. The root path renders as "/".
func (p EntityPath) String() string {
	if p.IsRoot() {
		return "/"
	}
	return strings.Join(p.parts, "/")
}
