package btree

import (
	"cowbtree/entry"
	"cowbtree/keycmp"
	"cowbtree/pagestore"
)

// Bound describes one end of a Range query.
type Bound struct {
	kind  boundKind
	value []byte
}

type boundKind int

const (
	unbounded boundKind = iota
	inclusive
	exclusive
)

// Unbounded returns a Bound with no constraint.
func Unbounded() Bound { return Bound{kind: unbounded} }

// Included returns an inclusive Bound at key.
func Included(key []byte) Bound { return Bound{kind: inclusive, value: key} }

// Excluded returns an exclusive Bound at key.
func Excluded(key []byte) Bound { return Bound{kind: exclusive, value: key} }

type frameKind int

const (
	frameInitial frameKind = iota
	frameLeafLeft
	frameLeafRight
	frameInternal
)

// frame is one entry of the iterator's explicit cursor stack (spec
// §4.7). parent is the enclosing frame to resume once this one is
// exhausted, mirroring the recursive-descent call stack without
// recursion.
type frame struct {
	kind     frameKind
	page     pagestore.Page
	child    int
	parent   *frame
	reversed bool
}

// RangeIter yields entries under one table id whose key falls within
// a bound, in forward or reverse key order. It holds live state over
// pages fetched from mgr and must not outlive a mutation of the tree
// it was built from.
type RangeIter struct {
	mgr      pagestore.Manager
	cmp      keycmp.Comparator
	state    *frame
	done     bool
	table    uint64
	start    Bound
	end      Bound
	reversed bool
}

// Range returns a forward iterator over root's entries for table
// whose key lies between start and end, each end inclusive, exclusive
// or unbounded per its Bound's kind. root == nil yields no entries.
func Range(mgr pagestore.Manager, cmp keycmp.Comparator, root *pagestore.PageNumber, table uint64, start, end Bound) (*RangeIter, error) {
	return newRangeIter(mgr, cmp, root, table, start, end, false)
}

// RangeReversed is Range traversed from the greatest matching key
// down to the least.
func RangeReversed(mgr pagestore.Manager, cmp keycmp.Comparator, root *pagestore.PageNumber, table uint64, start, end Bound) (*RangeIter, error) {
	return newRangeIter(mgr, cmp, root, table, start, end, true)
}

func newRangeIter(mgr pagestore.Manager, cmp keycmp.Comparator, root *pagestore.PageNumber, table uint64, start, end Bound, reversed bool) (*RangeIter, error) {
	it := &RangeIter{mgr: mgr, cmp: cmp, table: table, start: start, end: end, reversed: reversed}
	if root == nil {
		it.done = true
		return it, nil
	}
	p, err := mgr.Get(*root)
	if err != nil {
		return nil, wrapGetErr(err)
	}
	it.state = &frame{kind: frameInitial, page: p, reversed: reversed}
	return it, nil
}

// Entry is one (table, key, value) result from a RangeIter. Key and
// Value alias the backing page's buffer, like AccessGuard.Bytes, and
// are only valid while that page is reachable through mgr.
type Entry struct {
	Table uint64
	Key   []byte
	Value []byte
}

// Next advances the iterator and returns the next matching entry, or
// ok=false once the range (or the tree) is exhausted.
func (it *RangeIter) Next() (Entry, bool, error) {
	if it.done {
		return Entry{}, false, nil
	}
	for {
		next, err := it.advance(it.state)
		if err != nil {
			return Entry{}, false, err
		}
		if next == nil {
			it.done = true
			return Entry{}, false, nil
		}
		it.state = next

		v, ok := entryAt(next)
		if !ok {
			continue
		}
		if v.TableID() != it.table || !it.inRange(v) {
			if it.pastRange(v) {
				it.done = true
				return Entry{}, false, nil
			}
			continue
		}
		return Entry{Table: v.TableID(), Key: v.Key(), Value: v.Value()}, true, nil
	}
}

func entryAt(f *frame) (entry.View, bool) {
	switch f.kind {
	case frameLeafLeft:
		return newLeafAccessor(f.page.Memory()).lesser(), true
	case frameLeafRight:
		return newLeafAccessor(f.page.Memory()).greater()
	default:
		return entry.View{}, false
	}
}

func (it *RangeIter) inRange(v entry.View) bool {
	if it.start.kind == inclusive && v.CompareTo(it.cmp, it.table, it.start.value) < 0 {
		return false
	}
	if it.start.kind == exclusive && v.CompareTo(it.cmp, it.table, it.start.value) <= 0 {
		return false
	}
	if it.end.kind == inclusive && v.CompareTo(it.cmp, it.table, it.end.value) > 0 {
		return false
	}
	if it.end.kind == exclusive && v.CompareTo(it.cmp, it.table, it.end.value) >= 0 {
		return false
	}
	return true
}

// pastRange reports whether v has moved beyond the range in the
// direction of travel, meaning no further advance can re-enter it.
func (it *RangeIter) pastRange(v entry.View) bool {
	if it.reversed {
		if it.start.kind == inclusive {
			return v.CompareTo(it.cmp, it.table, it.start.value) < 0
		}
		if it.start.kind == exclusive {
			return v.CompareTo(it.cmp, it.table, it.start.value) <= 0
		}
		return false
	}
	if it.end.kind == inclusive {
		return v.CompareTo(it.cmp, it.table, it.end.value) > 0
	}
	if it.end.kind == exclusive {
		return v.CompareTo(it.cmp, it.table, it.end.value) >= 0
	}
	return false
}

func (it *RangeIter) advance(f *frame) (*frame, error) {
	if f.reversed {
		return it.backwardNext(f)
	}
	return it.forwardNext(f)
}

func (it *RangeIter) forwardNext(f *frame) (*frame, error) {
	switch f.kind {
	case frameInitial:
		switch f.page.Memory()[0] {
		case leafTag:
			return &frame{kind: frameLeafLeft, page: f.page, parent: nil}, nil
		case internalTag:
			return &frame{kind: frameInternal, page: f.page, child: 0, parent: nil}, nil
		default:
			panic("btree: corrupt page tag in range iterator")
		}

	case frameLeafLeft:
		return &frame{kind: frameLeafRight, page: f.page, parent: f.parent}, nil

	case frameLeafRight:
		return f.parent, nil

	case frameInternal:
		a := newInternalAccessor(f.page.Memory())
		childPN, ok := a.childPage(f.child)
		if !ok {
			panic("btree: corrupt internal page in range iterator descent")
		}
		childPage, err := it.mgr.Get(childPN)
		if err != nil {
			return nil, wrapGetErr(err)
		}
		parent := f.parent
		if f.child < Order-1 {
			if _, more := a.childPage(f.child + 1); more {
				parent = &frame{kind: frameInternal, page: f.page, child: f.child + 1, parent: f.parent}
			}
		}
		switch childPage.Memory()[0] {
		case leafTag:
			return &frame{kind: frameLeafLeft, page: childPage, parent: parent}, nil
		case internalTag:
			return &frame{kind: frameInternal, page: childPage, child: 0, parent: parent}, nil
		default:
			panic("btree: corrupt page tag in range iterator descent")
		}
	default:
		panic("btree: unreachable range iterator frame kind")
	}
}

func (it *RangeIter) backwardNext(f *frame) (*frame, error) {
	switch f.kind {
	case frameInitial:
		switch f.page.Memory()[0] {
		case leafTag:
			return &frame{kind: frameLeafRight, page: f.page, parent: nil, reversed: true}, nil
		case internalTag:
			a := newInternalAccessor(f.page.Memory())
			idx := lastChildIndex(a)
			return &frame{kind: frameInternal, page: f.page, child: idx, parent: nil, reversed: true}, nil
		default:
			panic("btree: corrupt page tag in range iterator")
		}

	case frameLeafLeft:
		return f.parent, nil

	case frameLeafRight:
		return &frame{kind: frameLeafLeft, page: f.page, parent: f.parent, reversed: true}, nil

	case frameInternal:
		a := newInternalAccessor(f.page.Memory())
		childPN, ok := a.childPage(f.child)
		if !ok {
			panic("btree: corrupt internal page in range iterator descent")
		}
		childPage, err := it.mgr.Get(childPN)
		if err != nil {
			return nil, wrapGetErr(err)
		}
		parent := f.parent
		if f.child > 0 {
			parent = &frame{kind: frameInternal, page: f.page, child: f.child - 1, parent: f.parent, reversed: true}
		}
		switch childPage.Memory()[0] {
		case leafTag:
			return &frame{kind: frameLeafRight, page: childPage, parent: parent, reversed: true}, nil
		case internalTag:
			ca := newInternalAccessor(childPage.Memory())
			idx := lastChildIndex(ca)
			return &frame{kind: frameInternal, page: childPage, child: idx, parent: parent, reversed: true}, nil
		default:
			panic("btree: corrupt page tag in range iterator descent")
		}
	default:
		panic("btree: unreachable range iterator frame kind")
	}
}

func lastChildIndex(a internalAccessor) int {
	for i := Order - 1; i >= 0; i-- {
		if _, ok := a.childPage(i); ok {
			return i
		}
	}
	panic("btree: corrupt internal page, no children")
}
