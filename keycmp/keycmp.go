// Package keycmp defines the key comparator capability the tree
// consumes but never implements itself (the original's RedbKey bound).
package keycmp

import "bytes"

// Comparator defines a total order over key byte slices. The tree
// treats it as a pure function: same inputs, same answer, forever.
type Comparator interface {
	// Compare returns <0 if a < b, 0 if a == b, >0 if a > b.
	Compare(a, b []byte) int
}

// Bytes orders keys the way bytes.Compare does: lexicographic over the
// raw bytes. This is the default for callers that don't need a custom
// key type.
type Bytes struct{}

func (Bytes) Compare(a, b []byte) int {
	return bytes.Compare(a, b)
}
