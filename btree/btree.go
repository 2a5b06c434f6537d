// Package btree implements the core of an embedded, copy-on-write
// B-tree index: the on-page binary layout, the immutable-node mutation
// protocol (insert/delete via page rewriting, never in-place), the
// split/merge/redistribute algorithms at fixed order 3, and a
// cursor-style range iterator.
//
// Everything here is a pure, synchronous, single-threaded algorithm
// over a caller-supplied pagestore.Manager (spec §5) — btree never
// allocates goroutines, blocks, or retries; it panics on structural
// corruption and returns page manager errors wrapped with a btree
// message (errors.Cause recovers the original).
package btree

import (
	"cowbtree/pagestore"
)

// Order is the fixed tree order: internal nodes hold up to Order
// children and Order-1 separators; leaves hold up to Order-1 entries.
// The split/merge code below assumes Order == 3 in three places (see the
// panics in insert.go's insertInternal and delete.go's splitIndex and
// mergeIndex); generalizing is out of scope.
const Order = 3

const (
	leafTag     byte = 1
	internalTag byte = 2
)

// sepEntry is an internal node separator: all entries in the child to
// its left are <= it, all entries in the child to its right are > it.
type sepEntry struct {
	table uint64
	key   []byte
}

// splitInfo is reported by the insert helpers when a subtree
// outgrew a single page: the parent must install sep as a new
// separator pointing at right.
type splitInfo struct {
	sep   sepEntry
	right pagestore.PageNumber
}
