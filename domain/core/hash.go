package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Hasher accumulates canonical fields into a content hash. Field order matters;
// map-like inputs must be written through WriteSorted.
type Hasher struct {
	b strings.Builder
}

// WriteString appends a length-prefixed string field
func (h *Hasher) WriteString(s string) *Hasher {
	fmt.Fprintf(&h.b, "%d:%s|", len(s), s)
	return h
}

// WriteFloats appends a float slice using exact bit patterns
func (h *Hasher) WriteFloats(values []float64) *Hasher {
	fmt.Fprintf(&h.b, "f%d[", len(values))
	for _, v := range values {
		fmt.Fprintf(&h.b, "%x,", math.Float64bits(v))
	}
	h.b.WriteString("]")
	return h
}

// WriteSorted appends key/value pairs in key order
func (h *Hasher) WriteSorted(kv map[string]string) *Hasher {
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.WriteString(k).WriteString(kv[k])
	}
	return h
}

// Sum returns the hash of everything written so far
func (h *Hasher) Sum() Hash {
	return NewHash([]byte(h.b.String()))
}

// ComputeAnalysisHash derives a checkpoint key from the dataset and pathway
// collection hashes plus the run options that change the result
func ComputeAnalysisHash(dataset, collection Hash, options ...string) Hash {
	h := &Hasher{}
	h.WriteString("analysis").WriteString(dataset.String()).WriteString(collection.String())
	for _, o := range options {
		h.WriteString(o)
	}
	return h.Sum()
}
