package btree

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"cowbtree/pagestore"
)

func treeHeight(mgr pagestore.Manager, pn pagestore.PageNumber) (int, error) {
	p, err := mgr.Get(pn)
	if err != nil {
		return 0, wrapGetErr(err)
	}
	mem := p.Memory()
	switch mem[0] {
	case leafTag:
		return 1, nil
	case internalTag:
		a := newInternalAccessor(mem)
		max := 0
		for i := 0; i < Order; i++ {
			child, ok := a.childPage(i)
			if !ok {
				continue
			}
			h, err := treeHeight(mgr, child)
			if err != nil {
				return 0, err
			}
			if h > max {
				max = h
			}
		}
		return max + 1, nil
	default:
		panic("btree: corrupt page tag in treeHeight")
	}
}

// nodeChildren returns the child page numbers of pn, or nil for a leaf.
func nodeChildren(mgr pagestore.Manager, pn pagestore.PageNumber) ([]pagestore.PageNumber, error) {
	p, err := mgr.Get(pn)
	if err != nil {
		return nil, wrapGetErr(err)
	}
	mem := p.Memory()
	if mem[0] == leafTag {
		return nil, nil
	}
	a := newInternalAccessor(mem)
	var children []pagestore.PageNumber
	for i := 0; i < Order; i++ {
		if child, ok := a.childPage(i); ok {
			children = append(children, child)
		}
	}
	return children, nil
}

// describeNode renders a single page the way the reference tree
// dumper does: one line, page number, then either its entries or its
// children and separators.
func describeNode(mgr pagestore.Manager, pn pagestore.PageNumber) (string, error) {
	p, err := mgr.Get(pn)
	if err != nil {
		return "", wrapGetErr(err)
	}
	mem := p.Memory()
	var b strings.Builder
	switch mem[0] {
	case leafTag:
		a := newLeafAccessor(mem)
		lesser := a.lesser()
		fmt.Fprintf(&b, "Leaf[page=%d lt_table=%d lt_key=%x", pn, lesser.TableID(), lesser.Key())
		if g, ok := a.greater(); ok {
			fmt.Fprintf(&b, " gt_table=%d gt_key=%x", g.TableID(), g.Key())
		}
		b.WriteByte(']')
	case internalTag:
		a := newInternalAccessor(mem)
		child0, _ := a.childPage(0)
		fmt.Fprintf(&b, "Internal[page=%d child_0=%d", pn, child0)
		for i := 0; i < Order-1; i++ {
			child, ok := a.childPage(i + 1)
			if !ok {
				continue
			}
			table, key, _ := a.separator(i)
			fmt.Fprintf(&b, " table_%d=%d key_%d=%x child_%d=%d", i, table, i, key, i+1, child)
		}
		b.WriteByte(']')
	default:
		panic("btree: corrupt page tag in describeNode")
	}
	return b.String(), nil
}

// PrintTree logs one line per node of the tree rooted at pn, level by
// level, for interactive inspection.
func PrintTree(log zerolog.Logger, mgr pagestore.Manager, pn pagestore.PageNumber) error {
	level := []pagestore.PageNumber{pn}
	for len(level) > 0 {
		var next []pagestore.PageNumber
		for _, p := range level {
			children, err := nodeChildren(mgr, p)
			if err != nil {
				return err
			}
			next = append(next, children...)
			desc, err := describeNode(mgr, p)
			if err != nil {
				return err
			}
			log.Debug().Msg(desc)
		}
		level = next
	}
	return nil
}
