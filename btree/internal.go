package btree

import (
	"encoding/binary"

	"cowbtree/pagestore"
)

// An internal page holds the tag byte, Order child page numbers, and
// Order-1 separators, laid out as four parallel fixed-width arrays
// followed by the separator key bytes (spec §4.3):
//
//	1 byte tag
//	Order slots of 8-byte child page numbers
//	Order-1 slots of 8-byte separator table ids
//	Order-1 slots of 8-byte separator key lengths (0 = absent)
//	Order-1 slots of 8-byte separator key offsets
//	trailing concatenated separator key bytes
//
// child[i] holds everything <= separator[i]; child[i+1] holds
// everything > separator[i]. An absent separator (key_len == 0) means
// there is no further child at or beyond that slot.

func internalChildOffset(n int) int      { return 1 + 8*n }
func internalTableIDOffset(n int) int    { return 1 + 8*Order + 8*n }
func internalKeyLenOffset(n int) int     { return 1 + 8*Order + 8*(Order-1) + 8*n }
func internalKeyOffsetOffset(n int) int  { return 1 + 8*Order + 8*(Order-1)*2 + 8*n }
func internalDataStart() int             { return 1 + 8*Order + 8*(Order-1)*3 }

type internalAccessor struct {
	mem []byte
}

func newInternalAccessor(mem []byte) internalAccessor {
	return internalAccessor{mem: mem}
}

func (a internalAccessor) keyLen(n int) int {
	off := internalKeyLenOffset(n)
	return int(binary.BigEndian.Uint64(a.mem[off : off+8]))
}

func (a internalAccessor) keyOffset(n int) int {
	off := internalKeyOffsetOffset(n)
	return int(binary.BigEndian.Uint64(a.mem[off : off+8]))
}

// separator returns the nth separator's table id and key, or ok=false
// if that slot is absent.
func (a internalAccessor) separator(n int) (table uint64, key []byte, ok bool) {
	l := a.keyLen(n)
	if l == 0 {
		return 0, nil, false
	}
	toff := internalTableIDOffset(n)
	table = binary.BigEndian.Uint64(a.mem[toff : toff+8])
	koff := a.keyOffset(n)
	key = a.mem[koff : koff+l]
	return table, key, true
}

// childPage returns the page number of the nth child, or ok=false if
// there is no child at that slot (n > 0 and separator n-1 is absent).
func (a internalAccessor) childPage(n int) (pagestore.PageNumber, bool) {
	if n > 0 && a.keyLen(n-1) == 0 {
		return 0, false
	}
	off := internalChildOffset(n)
	return pagestore.PageNumber(binary.BigEndian.Uint64(a.mem[off : off+8])), true
}

type internalBuilder struct {
	mem []byte
}

// newInternalBuilder tags mem as an internal page and zeroes every
// separator key_len so unused slots read as absent.
func newInternalBuilder(mem []byte) internalBuilder {
	mem[0] = internalTag
	for i := 0; i < Order-1; i++ {
		off := internalKeyLenOffset(i)
		binary.BigEndian.PutUint64(mem[off:off+8], 0)
	}
	return internalBuilder{mem: mem}
}

func (b internalBuilder) writeFirstPage(pn pagestore.PageNumber) {
	off := internalChildOffset(0)
	binary.BigEndian.PutUint64(b.mem[off:off+8], uint64(pn))
}

func (b internalBuilder) keyLen(n int) int {
	off := internalKeyLenOffset(n)
	return int(binary.BigEndian.Uint64(b.mem[off : off+8]))
}

func (b internalBuilder) keyOffset(n int) int {
	off := internalKeyOffsetOffset(n)
	return int(binary.BigEndian.Uint64(b.mem[off : off+8]))
}

// writeNthKey writes the nth separator and the page number of
// everything greater than it (but not greater than separator n+1, if
// any). Callers must write separators in increasing order, 0..Order-2,
// after writeFirstPage.
func (b internalBuilder) writeNthKey(table uint64, key []byte, childRight pagestore.PageNumber, n int) {
	off := internalChildOffset(n + 1)
	binary.BigEndian.PutUint64(b.mem[off:off+8], uint64(childRight))

	off = internalTableIDOffset(n)
	binary.BigEndian.PutUint64(b.mem[off:off+8], table)

	off = internalKeyLenOffset(n)
	binary.BigEndian.PutUint64(b.mem[off:off+8], uint64(len(key)))

	dataOffset := internalDataStart()
	if n > 0 {
		dataOffset = b.keyOffset(n-1) + b.keyLen(n-1)
	}
	off = internalKeyOffsetOffset(n)
	binary.BigEndian.PutUint64(b.mem[off:off+8], uint64(dataOffset))

	copy(b.mem[dataOffset:dataOffset+len(key)], key)
}

// buildInternal allocates and writes a new internal page with the
// given children and the separators between them.
// len(children) must equal len(seps)+1 and be at most Order.
func buildInternal(mgr pagestore.Manager, children []pagestore.PageNumber, seps []sepEntry) (pagestore.PageNumber, error) {
	if len(children) != len(seps)+1 {
		panic("btree: buildInternal called with mismatched children/separators")
	}
	if len(children) > Order {
		panic("btree: buildInternal called with more than Order children")
	}
	p, err := mgr.Allocate()
	if err != nil {
		return 0, wrapAllocErr(err)
	}
	b := newInternalBuilder(p.MemoryMut())
	b.writeFirstPage(children[0])
	for i, s := range seps {
		b.writeNthKey(s.table, s.key, children[i+1], i)
	}
	return p.PageNumber(), nil
}
