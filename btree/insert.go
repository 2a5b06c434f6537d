package btree

import (
	"cowbtree/entry"
	"cowbtree/keycmp"
	"cowbtree/pagestore"
)

// InsertGuard is a mutable, zero-copy handle on the value just written
// by Insert. The caller may overwrite it in place through Bytes()
// before the transaction commits; after that the page is immutable
// like any other.
type InsertGuard struct {
	page   pagestore.PageMut
	offset int
	length int
}

// Bytes returns the slice of the freshly written value.
func (g InsertGuard) Bytes() []byte {
	return g.page.MemoryMut()[g.offset : g.offset+g.length]
}

// Insert writes (table, key) -> value into the tree rooted at root,
// returning the new root and a guard on the written value. root == nil
// means an empty tree. Insert never mutates a page reachable from
// root; every page on the rewritten path is freshly allocated.
func Insert(mgr pagestore.Manager, cmp keycmp.Comparator, root *pagestore.PageNumber, table uint64, key, value []byte) (pagestore.PageNumber, InsertGuard, error) {
	if root == nil {
		pn, guard, err := makeMutSingleLeaf(mgr, table, key, value)
		return pn, guard, err
	}

	left, split, guard, err := insertHelper(mgr, cmp, *root, table, key, value)
	if err != nil {
		return 0, InsertGuard{}, err
	}
	if split == nil {
		return left, guard, nil
	}
	indexPage, err := buildInternal(mgr, []pagestore.PageNumber{left, split.right}, []sepEntry{split.sep})
	if err != nil {
		return 0, InsertGuard{}, err
	}
	return indexPage, guard, nil
}

// insertHelper returns the (possibly unchanged) page number of the
// subtree pn was rewritten into, an optional split describing a new
// right sibling the caller must link in, and the guard on the inserted
// value.
func insertHelper(mgr pagestore.Manager, cmp keycmp.Comparator, pn pagestore.PageNumber, table uint64, key, value []byte) (pagestore.PageNumber, *splitInfo, InsertGuard, error) {
	p, err := mgr.Get(pn)
	if err != nil {
		return 0, nil, InsertGuard{}, wrapGetErr(err)
	}
	mem := p.Memory()
	switch mem[0] {
	case leafTag:
		return insertLeaf(mgr, cmp, pn, mem, table, key, value)
	case internalTag:
		return insertInternal(mgr, cmp, mem, table, key, value)
	default:
		panic("btree: corrupt page tag in insert")
	}
}

func insertLeaf(mgr pagestore.Manager, cmp keycmp.Comparator, pn pagestore.PageNumber, mem []byte, table uint64, key, value []byte) (pagestore.PageNumber, *splitInfo, InsertGuard, error) {
	a := newLeafAccessor(mem)
	lesser := a.lesser()
	greater, hasGreater := a.greater()

	if !hasGreater {
		switch sign(lesser.CompareTo(cmp, table, key)) {
		case -1:
			pn, guard, err := makeMutDoubleLeafRight(mgr,
				lesser.TableID(), lesser.Key(), lesser.Value(),
				table, key, value)
			return pn, nil, guard, err
		case 0:
			pn, guard, err := makeMutSingleLeaf(mgr, table, key, value)
			return pn, nil, guard, err
		default:
			pn, guard, err := makeMutDoubleLeafLeft(mgr,
				table, key, value,
				lesser.TableID(), lesser.Key(), lesser.Value())
			return pn, nil, guard, err
		}
	}

	switch sign(greater.CompareTo(cmp, table, key)) {
	case -1:
		// new key is past the end of this leaf: leave it untouched
		// and split a brand new page off to its right.
		rightPage, guard, err := makeMutSingleLeaf(mgr, table, key, value)
		if err != nil {
			return 0, nil, InsertGuard{}, err
		}
		return pn, &splitInfo{
			sep:   sepEntry{table: greater.TableID(), key: cloneBytes(greater.Key())},
			right: rightPage,
		}, guard, nil

	case 0:
		pn, guard, err := makeMutDoubleLeafRight(mgr,
			lesser.TableID(), lesser.Key(), lesser.Value(),
			table, key, value)
		return pn, nil, guard, err

	default:
		switch sign(lesser.CompareTo(cmp, table, key)) {
		case -1:
			leftPage, guard, err := makeMutDoubleLeafRight(mgr,
				lesser.TableID(), lesser.Key(), lesser.Value(),
				table, key, value)
			if err != nil {
				return 0, nil, InsertGuard{}, err
			}
			rightPage, err := makeSingleLeaf(mgr, greater.TableID(), greater.Key(), greater.Value())
			if err != nil {
				return 0, nil, InsertGuard{}, err
			}
			return leftPage, &splitInfo{
				sep:   sepEntry{table: table, key: cloneBytes(key)},
				right: rightPage,
			}, guard, nil

		case 0:
			pn, guard, err := makeMutDoubleLeafLeft(mgr,
				table, key, value,
				greater.TableID(), greater.Key(), greater.Value())
			return pn, nil, guard, err

		default:
			leftPage, guard, err := makeMutDoubleLeafLeft(mgr,
				table, key, value,
				lesser.TableID(), lesser.Key(), lesser.Value())
			if err != nil {
				return 0, nil, InsertGuard{}, err
			}
			rightPage, err := makeSingleLeaf(mgr, greater.TableID(), greater.Key(), greater.Value())
			if err != nil {
				return 0, nil, InsertGuard{}, err
			}
			return leftPage, &splitInfo{
				sep:   sepEntry{table: lesser.TableID(), key: cloneBytes(lesser.Key())},
				right: rightPage,
			}, guard, nil
		}
	}
}

func insertInternal(mgr pagestore.Manager, cmp keycmp.Comparator, mem []byte, table uint64, key, value []byte) (pagestore.PageNumber, *splitInfo, InsertGuard, error) {
	a := newInternalAccessor(mem)

	var children []pagestore.PageNumber
	var seps []sepEntry
	var guard InsertGuard
	haveGuard := false

	lastValid := Order - 1
	for n := 0; n < Order-1; n++ {
		sepTable, sepKey, ok := a.separator(n)
		if !ok {
			lastValid = n
			break
		}
		if !haveGuard && entry.Compare(cmp, table, key, sepTable, sepKey) <= 0 {
			childPN, _ := a.childPage(n)
			page1, split, g, err := insertHelper(mgr, cmp, childPN, table, key, value)
			if err != nil {
				return 0, nil, InsertGuard{}, err
			}
			children = append(children, page1)
			if split != nil {
				seps = append(seps, split.sep)
				children = append(children, split.right)
			}
			seps = append(seps, sepEntry{table: sepTable, key: sepKey})
			guard = g
			haveGuard = true
		} else {
			childPN, _ := a.childPage(n)
			children = append(children, childPN)
			seps = append(seps, sepEntry{table: sepTable, key: sepKey})
		}
	}

	lastPage, _ := a.childPage(lastValid)
	if haveGuard {
		children = append(children, lastPage)
	} else {
		page1, split, g, err := insertHelper(mgr, cmp, lastPage, table, key, value)
		if err != nil {
			return 0, nil, InsertGuard{}, err
		}
		children = append(children, page1)
		if split != nil {
			seps = append(seps, split.sep)
			children = append(children, split.right)
		}
		guard = g
		haveGuard = true
	}

	if len(children)-1 != len(seps) {
		panic("btree: insertInternal produced mismatched children/separators")
	}

	if len(children) <= Order {
		pn, err := buildInternal(mgr, children, seps)
		return pn, nil, guard, err
	}

	// Order == 3: exactly one overflow shape is possible, four
	// children and three separators; split down the middle.
	if Order != 3 {
		panic("btree: internal overflow handling assumes Order == 3")
	}
	left, err := buildInternal(mgr, children[:2], seps[:1])
	if err != nil {
		return 0, nil, InsertGuard{}, err
	}
	right, err := buildInternal(mgr, children[2:], seps[2:])
	if err != nil {
		return 0, nil, InsertGuard{}, err
	}
	return left, &splitInfo{sep: seps[1], right: right}, guard, nil
}

func makeMutSingleLeaf(mgr pagestore.Manager, table uint64, key, value []byte) (pagestore.PageNumber, InsertGuard, error) {
	p, err := mgr.Allocate()
	if err != nil {
		return 0, InsertGuard{}, wrapAllocErr(err)
	}
	mem := p.MemoryMut()
	b := newLeafBuilder(mem)
	b.writeLesser(table, key, value)
	b.writeGreaterAbsent()

	a := newLeafAccessor(mem)
	off := a.offsetOfLesser() + a.lesser().ValueOffset()
	return p.PageNumber(), InsertGuard{page: p, offset: off, length: len(value)}, nil
}

func makeSingleLeaf(mgr pagestore.Manager, table uint64, key, value []byte) (pagestore.PageNumber, error) {
	p, err := mgr.Allocate()
	if err != nil {
		return 0, wrapAllocErr(err)
	}
	b := newLeafBuilder(p.MemoryMut())
	b.writeLesser(table, key, value)
	b.writeGreaterAbsent()
	return p.PageNumber(), nil
}

// makeMutDoubleLeafRight builds a two-entry leaf with entry2 as the
// greater slot and returns a guard on entry2's value. Callers must
// ensure entry1 < entry2.
func makeMutDoubleLeafRight(mgr pagestore.Manager, table1 uint64, key1, value1 []byte, table2 uint64, key2, value2 []byte) (pagestore.PageNumber, InsertGuard, error) {
	p, err := mgr.Allocate()
	if err != nil {
		return 0, InsertGuard{}, wrapAllocErr(err)
	}
	mem := p.MemoryMut()
	b := newLeafBuilder(mem)
	b.writeLesser(table1, key1, value1)
	b.writeGreaterPresent(table2, key2, value2)

	a := newLeafAccessor(mem)
	g, _ := a.greater()
	off := a.offsetOfGreater() + g.ValueOffset()
	return p.PageNumber(), InsertGuard{page: p, offset: off, length: len(value2)}, nil
}

// makeMutDoubleLeafLeft builds a two-entry leaf with entry1 as the
// lesser slot and returns a guard on entry1's value. Callers must
// ensure entry1 < entry2.
func makeMutDoubleLeafLeft(mgr pagestore.Manager, table1 uint64, key1, value1 []byte, table2 uint64, key2, value2 []byte) (pagestore.PageNumber, InsertGuard, error) {
	p, err := mgr.Allocate()
	if err != nil {
		return 0, InsertGuard{}, wrapAllocErr(err)
	}
	mem := p.MemoryMut()
	b := newLeafBuilder(mem)
	b.writeLesser(table1, key1, value1)
	b.writeGreaterPresent(table2, key2, value2)

	a := newLeafAccessor(mem)
	off := a.offsetOfLesser() + a.lesser().ValueOffset()
	return p.PageNumber(), InsertGuard{page: p, offset: off, length: len(value1)}, nil
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
