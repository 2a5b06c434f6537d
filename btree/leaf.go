package btree

import "cowbtree/entry"

// A leaf page stores the tag byte, a lesser entry, and an optional
// greater entry back to back (spec §4.2). The greater slot is marked
// absent by a zero key_len sentinel (entry.AbsentGreater); a leaf
// builder must always produce one of these two shapes.

type leafAccessor struct {
	mem []byte
}

func newLeafAccessor(mem []byte) leafAccessor {
	return leafAccessor{mem: mem}
}

func (a leafAccessor) offsetOfLesser() int {
	return 1
}

func (a leafAccessor) lesser() entry.View {
	return entry.Read(a.mem[a.offsetOfLesser():])
}

func (a leafAccessor) offsetOfGreater() int {
	return a.offsetOfLesser() + a.lesser().EncodedLen()
}

// greater returns the greater entry and true, or the zero View and
// false if the slot is absent.
func (a leafAccessor) greater() (entry.View, bool) {
	v := entry.Read(a.mem[a.offsetOfGreater():])
	if v.IsAbsent() {
		return entry.View{}, false
	}
	return v, true
}

type leafBuilder struct {
	mem []byte
}

// newLeafBuilder tags mem as a leaf page. Callers must follow with
// writeLesser and exactly one of writeGreaterPresent/writeGreaterAbsent.
func newLeafBuilder(mem []byte) leafBuilder {
	mem[0] = leafTag
	return leafBuilder{mem: mem}
}

func (b leafBuilder) writeLesser(table uint64, key, value []byte) {
	entry.Write(b.mem[1:], table, key, value)
}

func (b leafBuilder) writeGreaterPresent(table uint64, key, value []byte) {
	off := 1 + entry.Read(b.mem[1:]).EncodedLen()
	entry.Write(b.mem[off:], table, key, value)
}

func (b leafBuilder) writeGreaterAbsent() {
	off := 1 + entry.Read(b.mem[1:]).EncodedLen()
	entry.AbsentGreater(b.mem[off:])
}
