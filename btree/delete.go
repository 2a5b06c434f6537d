package btree

import (
	"sort"

	"cowbtree/entry"
	"cowbtree/keycmp"
	"cowbtree/pagestore"
)

type deletionKind int

const (
	deletionSubtree deletionKind = iota
	deletionPartialLeaf
	deletionPartialInternal
)

// deletionResult is the tagged sum a child delete reports to its
// parent (spec §4.6). A PartialLeaf result carries no entries: a leaf
// only becomes partial when its single entry is deleted, so there is
// never a residual entry to hand to a sibling, and this type has no
// field for one.
type deletionResult struct {
	kind deletionKind
	page pagestore.PageNumber // deletionSubtree
	// partialInternal is the single surviving child of an under-full
	// internal node (always len 1 at Order == 3).
	partialInternal pagestore.PageNumber
}

// Delete removes (table, key) from the tree rooted at root. It
// returns the new root (nil if the tree became empty) and whether the
// key was present. root == nil is treated as an already-empty tree.
func Delete(mgr pagestore.Manager, cmp keycmp.Comparator, root *pagestore.PageNumber, table uint64, key []byte) (*pagestore.PageNumber, bool, error) {
	if root == nil {
		return nil, false, nil
	}

	result, err := deleteHelper(mgr, cmp, *root, table, key)
	if err != nil {
		return nil, false, err
	}

	switch result.kind {
	case deletionSubtree:
		found := result.page != *root
		pn := result.page
		return &pn, found, nil
	case deletionPartialLeaf:
		return nil, true, nil
	case deletionPartialInternal:
		pn := result.partialInternal
		return &pn, true, nil
	default:
		panic("btree: unreachable deletion result kind")
	}
}

func deleteHelper(mgr pagestore.Manager, cmp keycmp.Comparator, pn pagestore.PageNumber, table uint64, key []byte) (deletionResult, error) {
	p, err := mgr.Get(pn)
	if err != nil {
		return deletionResult{}, wrapGetErr(err)
	}
	mem := p.Memory()
	switch mem[0] {
	case leafTag:
		return deleteLeaf(mgr, cmp, pn, mem, table, key)
	case internalTag:
		return deleteInternal(mgr, cmp, pn, mem, table, key)
	default:
		panic("btree: corrupt page tag in delete")
	}
}

func deleteLeaf(mgr pagestore.Manager, cmp keycmp.Comparator, pn pagestore.PageNumber, mem []byte, table uint64, key []byte) (deletionResult, error) {
	a := newLeafAccessor(mem)
	lesser := a.lesser()
	greater, hasGreater := a.greater()

	if hasGreater {
		lesserMatch := lesser.CompareTo(cmp, table, key) == 0
		greaterMatch := greater.CompareTo(cmp, table, key) == 0
		if !lesserMatch && !greaterMatch {
			return deletionResult{kind: deletionSubtree, page: pn}, nil
		}
		var survivorTable uint64
		var survivorKey, survivorValue []byte
		if lesserMatch {
			survivorTable, survivorKey, survivorValue = greater.TableID(), greater.Key(), greater.Value()
		} else {
			survivorTable, survivorKey, survivorValue = lesser.TableID(), lesser.Key(), lesser.Value()
		}
		newPage, err := makeSingleLeaf(mgr, survivorTable, survivorKey, survivorValue)
		if err != nil {
			return deletionResult{}, err
		}
		return deletionResult{kind: deletionSubtree, page: newPage}, nil
	}

	if lesser.CompareTo(cmp, table, key) == 0 {
		return deletionResult{kind: deletionPartialLeaf}, nil
	}
	return deletionResult{kind: deletionSubtree, page: pn}, nil
}

func deleteInternal(mgr pagestore.Manager, cmp keycmp.Comparator, pn pagestore.PageNumber, mem []byte, table uint64, key []byte) (deletionResult, error) {
	a := newInternalAccessor(mem)

	var children []deletionResult
	found := false

	lastValid := Order - 1
	for n := 0; n < Order-1; n++ {
		sepTable, sepKey, ok := a.separator(n)
		if !ok {
			lastValid = n
			break
		}
		childPN, _ := a.childPage(n)
		if !found && entry.Compare(cmp, table, key, sepTable, sepKey) <= 0 {
			found = true
			result, err := deleteHelper(mgr, cmp, childPN, table, key)
			if err != nil {
				return deletionResult{}, err
			}
			if result.kind == deletionSubtree && result.page == childPN {
				return deletionResult{kind: deletionSubtree, page: pn}, nil
			}
			children = append(children, result)
		} else {
			children = append(children, deletionResult{kind: deletionSubtree, page: childPN})
		}
	}

	lastPage, _ := a.childPage(lastValid)
	if found {
		children = append(children, deletionResult{kind: deletionSubtree, page: lastPage})
	} else {
		result, err := deleteHelper(mgr, cmp, lastPage, table, key)
		if err != nil {
			return deletionResult{}, err
		}
		if result.kind == deletionSubtree && result.page == lastPage {
			return deletionResult{kind: deletionSubtree, page: pn}, nil
		}
		children = append(children, result)
	}

	if len(children) <= 1 {
		panic("btree: deleteInternal collected too few children")
	}

	repaired, err := repairChildren(mgr, cmp, children)
	if err != nil {
		return deletionResult{}, err
	}
	if len(repaired) == 1 {
		return deletionResult{kind: deletionPartialInternal, partialInternal: repaired[0]}, nil
	}

	seps := make([]sepEntry, len(repaired)-1)
	for i := 0; i < len(repaired)-1; i++ {
		t, k, err := maxTableKey(mgr, repaired[i])
		if err != nil {
			return deletionResult{}, err
		}
		seps[i] = sepEntry{table: t, key: k}
	}
	newPage, err := buildInternal(mgr, repaired, seps)
	if err != nil {
		return deletionResult{}, err
	}
	return deletionResult{kind: deletionSubtree, page: newPage}, nil
}

// repairChildren turns the per-child deletion results of one internal
// node into a well-formed list of page numbers, splitting or merging
// with a healthy neighbour wherever a child came back partial (spec
// §4.6.1). All children must share the same partial kind; a node with
// both a partial leaf child and a partial internal child would mean a
// corrupt tree (a leaf and an internal page as siblings), so that case
// panics rather than being silently handled.
func repairChildren(mgr pagestore.Manager, cmp keycmp.Comparator, children []deletionResult) ([]pagestore.PageNumber, error) {
	allSubtree := true
	anyPartialLeaf := false
	anyPartialInternal := false
	for _, c := range children {
		switch c.kind {
		case deletionSubtree:
		case deletionPartialLeaf:
			allSubtree = false
			anyPartialLeaf = true
		case deletionPartialInternal:
			allSubtree = false
			anyPartialInternal = true
		}
	}

	if allSubtree {
		out := make([]pagestore.PageNumber, len(children))
		for i, c := range children {
			out[i] = c.page
		}
		return out, nil
	}

	if anyPartialLeaf && anyPartialInternal {
		panic("btree: repairChildren saw both partial leaf and partial internal siblings")
	}

	var result []pagestore.PageNumber
	repaired := false
	for i := range children {
		c := children[i]
		if c.kind != deletionSubtree {
			continue
		}
		if repaired {
			result = append(result, c.page)
			continue
		}

		if i > 0 && children[i-1].kind == deletionPartialLeaf && anyPartialLeaf {
			p1, p2, ok, err := splitLeaf(mgr, c.page)
			if err != nil {
				return nil, err
			}
			if ok {
				result = append(result, p1, p2)
			} else {
				merged, err := mergeLeaf(mgr, c.page)
				if err != nil {
					return nil, err
				}
				result = append(result, merged)
			}
			repaired = true
			continue
		}
		if i > 0 && children[i-1].kind == deletionPartialInternal && anyPartialInternal {
			p1, p2, ok, err := splitIndex(mgr, cmp, c.page, children[i-1].partialInternal)
			if err != nil {
				return nil, err
			}
			if ok {
				result = append(result, p1, p2)
			} else {
				merged, err := mergeIndex(mgr, cmp, c.page, children[i-1].partialInternal)
				if err != nil {
					return nil, err
				}
				result = append(result, merged)
			}
			repaired = true
			continue
		}

		if i+1 < len(children) && children[i+1].kind == deletionPartialLeaf && anyPartialLeaf {
			p1, p2, ok, err := splitLeaf(mgr, c.page)
			if err != nil {
				return nil, err
			}
			if ok {
				result = append(result, p1, p2)
			} else {
				merged, err := mergeLeaf(mgr, c.page)
				if err != nil {
					return nil, err
				}
				result = append(result, merged)
			}
			repaired = true
			continue
		}
		if i+1 < len(children) && children[i+1].kind == deletionPartialInternal && anyPartialInternal {
			p1, p2, ok, err := splitIndex(mgr, cmp, c.page, children[i+1].partialInternal)
			if err != nil {
				return nil, err
			}
			if ok {
				result = append(result, p1, p2)
			} else {
				merged, err := mergeIndex(mgr, cmp, c.page, children[i+1].partialInternal)
				if err != nil {
					return nil, err
				}
				result = append(result, merged)
			}
			repaired = true
			continue
		}
	}
	if !repaired {
		panic("btree: repairChildren found a partial child with no healthy neighbour")
	}
	return result, nil
}

// splitLeaf tries to donate one entry from neighbour (a two-entry
// leaf) to the empty partial carry, producing two single-entry
// leaves. ok is false if neighbour only held one entry, in which case
// the caller falls back to mergeLeaf.
func splitLeaf(mgr pagestore.Manager, neighbour pagestore.PageNumber) (page1, page2 pagestore.PageNumber, ok bool, err error) {
	p, err := mgr.Get(neighbour)
	if err != nil {
		return 0, 0, false, wrapGetErr(err)
	}
	a := newLeafAccessor(p.Memory())
	greater, hasGreater := a.greater()
	if !hasGreater {
		return 0, 0, false, nil
	}
	lesser := a.lesser()
	page1, err = makeSingleLeaf(mgr, lesser.TableID(), lesser.Key(), lesser.Value())
	if err != nil {
		return 0, 0, false, err
	}
	page2, err = makeSingleLeaf(mgr, greater.TableID(), greater.Key(), greater.Value())
	if err != nil {
		return 0, 0, false, err
	}
	return page1, page2, true, nil
}

// mergeLeaf absorbs an empty partial carry into neighbour (a
// single-entry leaf): since there is nothing to add, neighbour is
// reused unchanged.
func mergeLeaf(mgr pagestore.Manager, neighbour pagestore.PageNumber) (pagestore.PageNumber, error) {
	p, err := mgr.Get(neighbour)
	if err != nil {
		return 0, wrapGetErr(err)
	}
	a := newLeafAccessor(p.Memory())
	if _, hasGreater := a.greater(); hasGreater {
		panic("btree: mergeLeaf called on a two-entry neighbour")
	}
	return neighbour, nil
}

// splitIndex tries to redistribute children between a full neighbour
// (Order children) and the orphaned partial child, producing two
// internal pages of Order-1 children each. ok is false if neighbour
// isn't full, in which case the caller falls back to mergeIndex.
func splitIndex(mgr pagestore.Manager, cmp keycmp.Comparator, neighbour, orphan pagestore.PageNumber) (page1, page2 pagestore.PageNumber, ok bool, err error) {
	if Order != 3 {
		panic("btree: splitIndex assumes Order == 3")
	}
	p, err := mgr.Get(neighbour)
	if err != nil {
		return 0, 0, false, wrapGetErr(err)
	}
	a := newInternalAccessor(p.Memory())
	if _, full := a.childPage(Order - 1); !full {
		return 0, 0, false, nil
	}

	pages := []pagestore.PageNumber{orphan}
	for i := 0; i < Order; i++ {
		child, ok := a.childPage(i)
		if !ok {
			break
		}
		pages = append(pages, child)
	}
	if len(pages) != 4 {
		panic("btree: splitIndex expected exactly 4 children to redistribute")
	}
	if err := sortByMaxKey(mgr, cmp, pages); err != nil {
		return 0, 0, false, err
	}

	t0, k0, err := maxTableKey(mgr, pages[0])
	if err != nil {
		return 0, 0, false, err
	}
	page1, err = buildInternal(mgr, pages[0:2], []sepEntry{{table: t0, key: k0}})
	if err != nil {
		return 0, 0, false, err
	}
	t2, k2, err := maxTableKey(mgr, pages[2])
	if err != nil {
		return 0, 0, false, err
	}
	page2, err = buildInternal(mgr, pages[2:4], []sepEntry{{table: t2, key: k2}})
	if err != nil {
		return 0, 0, false, err
	}
	return page1, page2, true, nil
}

// mergeIndex combines a non-full neighbour with the orphaned partial
// child into a single internal page.
func mergeIndex(mgr pagestore.Manager, cmp keycmp.Comparator, neighbour, orphan pagestore.PageNumber) (pagestore.PageNumber, error) {
	if Order != 3 {
		panic("btree: mergeIndex assumes Order == 3")
	}
	p, err := mgr.Get(neighbour)
	if err != nil {
		return 0, wrapGetErr(err)
	}
	a := newInternalAccessor(p.Memory())
	if _, full := a.childPage(Order - 1); full {
		panic("btree: mergeIndex called on a full neighbour")
	}

	pages := []pagestore.PageNumber{orphan}
	for i := 0; i < Order; i++ {
		child, ok := a.childPage(i)
		if !ok {
			break
		}
		pages = append(pages, child)
	}
	if len(pages) > Order {
		panic("btree: mergeIndex would exceed Order children")
	}
	if err := sortByMaxKey(mgr, cmp, pages); err != nil {
		return 0, err
	}

	seps := make([]sepEntry, len(pages)-1)
	for i := 0; i < len(pages)-1; i++ {
		t, k, err := maxTableKey(mgr, pages[i])
		if err != nil {
			return 0, err
		}
		seps[i] = sepEntry{table: t, key: k}
	}
	return buildInternal(mgr, pages, seps)
}

func sortByMaxKey(mgr pagestore.Manager, cmp keycmp.Comparator, pages []pagestore.PageNumber) error {
	type keyed struct {
		pn    pagestore.PageNumber
		table uint64
		key   []byte
	}
	keys := make([]keyed, len(pages))
	for i, pn := range pages {
		t, k, err := maxTableKey(mgr, pn)
		if err != nil {
			return err
		}
		keys[i] = keyed{pn: pn, table: t, key: k}
	}
	sort.Slice(keys, func(i, j int) bool {
		return entry.Compare(cmp, keys[i].table, keys[i].key, keys[j].table, keys[j].key) < 0
	})
	for i, k := range keys {
		pages[i] = k.pn
	}
	return nil
}

// maxTableKey returns the (table, key) of the greatest entry reachable
// from pn, used to derive a fresh separator after a merge or split
// changes which pages are adjacent.
func maxTableKey(mgr pagestore.Manager, pn pagestore.PageNumber) (uint64, []byte, error) {
	p, err := mgr.Get(pn)
	if err != nil {
		return 0, nil, wrapGetErr(err)
	}
	mem := p.Memory()
	switch mem[0] {
	case leafTag:
		a := newLeafAccessor(mem)
		if g, ok := a.greater(); ok {
			return g.TableID(), g.Key(), nil
		}
		l := a.lesser()
		return l.TableID(), l.Key(), nil
	case internalTag:
		a := newInternalAccessor(mem)
		for i := Order - 1; i >= 0; i-- {
			if child, ok := a.childPage(i); ok {
				return maxTableKey(mgr, child)
			}
		}
		panic("btree: corrupt internal page, no children in maxTableKey")
	default:
		panic("btree: corrupt page tag in maxTableKey")
	}
}
