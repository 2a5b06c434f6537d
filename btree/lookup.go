package btree

import (
	"cowbtree/entry"
	"cowbtree/keycmp"
	"cowbtree/pagestore"
)

// AccessGuard is a zero-copy handle on a value found by Lookup. It
// keeps the backing page alive (via the Page it was read from) for as
// long as the caller holds it; Bytes must not be retained past that.
type AccessGuard struct {
	page  pagestore.Page
	value []byte
}

// Bytes returns the looked-up value. The returned slice aliases the
// page's buffer and is only valid while the guard is reachable.
func (g AccessGuard) Bytes() []byte { return g.value }

// Lookup finds the value stored for (table, key) under root, or
// ok=false if no such entry exists. root == nil means an empty tree.
func Lookup(mgr pagestore.Manager, cmp keycmp.Comparator, root *pagestore.PageNumber, table uint64, key []byte) (AccessGuard, bool, error) {
	if root == nil {
		return AccessGuard{}, false, nil
	}
	return lookupPage(mgr, cmp, *root, table, key)
}

func lookupPage(mgr pagestore.Manager, cmp keycmp.Comparator, pn pagestore.PageNumber, table uint64, key []byte) (AccessGuard, bool, error) {
	p, err := mgr.Get(pn)
	if err != nil {
		return AccessGuard{}, false, wrapGetErr(err)
	}
	mem := p.Memory()
	switch mem[0] {
	case leafTag:
		return lookupLeaf(p, cmp, table, key)
	case internalTag:
		return lookupInternal(mgr, cmp, p, table, key)
	default:
		panic("btree: corrupt page tag in lookup")
	}
}

func lookupLeaf(p pagestore.Page, cmp keycmp.Comparator, table uint64, key []byte) (AccessGuard, bool, error) {
	a := newLeafAccessor(p.Memory())

	lesser := a.lesser()
	if lesser.CompareTo(cmp, table, key) == 0 {
		return AccessGuard{page: p, value: lesser.Value()}, true, nil
	}
	if g, ok := a.greater(); ok {
		if g.CompareTo(cmp, table, key) == 0 {
			return AccessGuard{page: p, value: g.Value()}, true, nil
		}
	}
	return AccessGuard{}, false, nil
}

func lookupInternal(mgr pagestore.Manager, cmp keycmp.Comparator, p pagestore.Page, table uint64, key []byte) (AccessGuard, bool, error) {
	a := newInternalAccessor(p.Memory())

	child := 0
	for n := 0; n < Order-1; n++ {
		sepTable, sepKey, ok := a.separator(n)
		if !ok {
			break
		}
		if entryCompareKey(cmp, table, key, sepTable, sepKey) > 0 {
			child = n + 1
			continue
		}
		break
	}
	pn, ok := a.childPage(child)
	if !ok {
		panic("btree: corrupt internal page, missing child during lookup descent")
	}
	return lookupPage(mgr, cmp, pn, table, key)
}

// entryCompareKey compares the search key (table1, key1) against a
// separator or stored key (table2, key2) using the same table-then-key
// ordering as entry.Compare, without needing a constructed entry.View.
func entryCompareKey(cmp keycmp.Comparator, table1 uint64, key1 []byte, table2 uint64, key2 []byte) int {
	return entry.Compare(cmp, table1, key1, table2, key2)
}
