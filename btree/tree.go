package btree

import (
	"cowbtree/keycmp"
	"cowbtree/pagestore"
)

// Tree is the top-level, copy-on-write B-tree façade over a
// pagestore.Manager. It holds no state of its own beyond the current
// root: Insert and Delete replace that root pointer on the receiver,
// and since insert/delete never touch a page reachable from the old
// root, a root captured earlier still reads the old tree via WithRoot.
type Tree struct {
	mgr  pagestore.Manager
	cmp  keycmp.Comparator
	root *pagestore.PageNumber
}

// New returns an empty tree over mgr, comparing keys with cmp.
func New(mgr pagestore.Manager, cmp keycmp.Comparator) *Tree {
	return &Tree{mgr: mgr, cmp: cmp}
}

// Root reports the tree's current root page, or nil for an empty tree.
func (t *Tree) Root() *pagestore.PageNumber { return t.root }

// WithRoot returns a Tree over the same manager and comparator rooted
// at root, letting a reader reopen a historical root captured earlier.
func WithRoot(mgr pagestore.Manager, cmp keycmp.Comparator, root *pagestore.PageNumber) *Tree {
	return &Tree{mgr: mgr, cmp: cmp, root: root}
}

// Lookup finds the value stored for (table, key).
func (t *Tree) Lookup(table uint64, key []byte) (AccessGuard, bool, error) {
	return Lookup(t.mgr, t.cmp, t.root, table, key)
}

// Insert writes (table, key) -> value and updates t's root in place,
// since the caller's Tree value is the owner of record for the
// current transaction. It returns a guard on the written value.
func (t *Tree) Insert(table uint64, key, value []byte) (InsertGuard, error) {
	newRoot, guard, err := Insert(t.mgr, t.cmp, t.root, table, key, value)
	if err != nil {
		return InsertGuard{}, err
	}
	t.root = &newRoot
	return guard, nil
}

// Delete removes (table, key), updating t's root, and reports whether
// the key was present.
func (t *Tree) Delete(table uint64, key []byte) (bool, error) {
	newRoot, found, err := Delete(t.mgr, t.cmp, t.root, table, key)
	if err != nil {
		return false, err
	}
	t.root = newRoot
	return found, nil
}

// Range returns a forward iterator over table's entries between start
// and end, each end inclusive, exclusive or unbounded per its Bound.
func (t *Tree) Range(table uint64, start, end Bound) (*RangeIter, error) {
	return Range(t.mgr, t.cmp, t.root, table, start, end)
}

// RangeReversed returns a reverse iterator over table's entries
// between start and end, each end inclusive, exclusive or unbounded
// per its Bound.
func (t *Tree) RangeReversed(table uint64, start, end Bound) (*RangeIter, error) {
	return RangeReversed(t.mgr, t.cmp, t.root, table, start, end)
}

// Height reports the tree's height: 0 for an empty tree, 1 for a
// single leaf, and one more than the tallest child subtree otherwise.
func (t *Tree) Height() (int, error) {
	if t.root == nil {
		return 0, nil
	}
	return treeHeight(t.mgr, *t.root)
}
