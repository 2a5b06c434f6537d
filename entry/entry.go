// Package entry implements the wire codec for a single (table_id, key,
// value) tuple, the smallest unit the btree package stores on a page.
//
// Layout (all integers big-endian):
//
//	bytes 0..8            key_len
//	bytes 8..16           table_id
//	bytes 16..16+key_len   key
//	bytes 16+key_len..24+key_len   value_len
//	remaining             value
//
// table_id sits next to key so (table_id || key) reads as one 8+key_len
// byte comparison key for the whole keyspace.
package entry

import (
	"encoding/binary"

	"cowbtree/keycmp"
)

const headerSize = 24 // key_len(8) + table_id(8) + value_len(8)

// View is a zero-copy read-only accessor over an encoded entry. It
// borrows from whatever byte slice it was built with; callers must not
// retain raw past the lifetime of that slice's backing page.
type View struct {
	raw []byte
}

// Read interprets raw as an entry view starting at its first byte. raw
// may be longer than the entry; callers use EncodedLen to find where
// the next thing (a sibling entry, page padding) begins.
func Read(raw []byte) View {
	return View{raw: raw}
}

func (v View) keyLen() int {
	return int(binary.BigEndian.Uint64(v.raw[0:8]))
}

// TableID returns the entry's table id.
func (v View) TableID() uint64 {
	return binary.BigEndian.Uint64(v.raw[8:16])
}

// Key returns the entry's key bytes, borrowed from the backing page.
func (v View) Key() []byte {
	n := v.keyLen()
	return v.raw[16 : 16+n]
}

func (v View) valueOffset() int {
	return 16 + v.keyLen() + 8
}

func (v View) valueLen() int {
	n := v.keyLen()
	return int(binary.BigEndian.Uint64(v.raw[16+n : 16+n+8]))
}

// Value returns the entry's value bytes, borrowed from the backing page.
func (v View) Value() []byte {
	off := v.valueOffset()
	return v.raw[off : off+v.valueLen()]
}

// ValueOffset returns the byte offset (relative to v's start) at which
// the value begins, for callers building a mutable guard into the page.
func (v View) ValueOffset() int {
	return v.valueOffset()
}

// EncodedLen returns the total number of bytes this entry occupies.
func (v View) EncodedLen() int {
	return headerSize + v.keyLen() + v.valueLen()
}

// IsAbsent reports whether this view was written by AbsentGreater: a
// zero key_len sentinel marking a leaf's empty greater slot.
func (v View) IsAbsent() bool {
	return v.keyLen() == 0
}

// EncodedSize returns the number of bytes Write needs for the given key
// and value.
func EncodedSize(key, value []byte) int {
	return headerSize + len(key) + len(value)
}

// Write encodes (table, key, value) into buf, which must be at least
// EncodedSize(key, value) bytes.
func Write(buf []byte, table uint64, key, value []byte) {
	binary.BigEndian.PutUint64(buf[0:8], uint64(len(key)))
	binary.BigEndian.PutUint64(buf[8:16], table)
	copy(buf[16:16+len(key)], key)
	off := 16 + len(key)
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(len(value)))
	copy(buf[off+8:off+8+len(value)], value)
}

// AbsentGreater writes the zero key_len sentinel marking a leaf's
// greater slot empty. buf needs only its first 8 bytes.
func AbsentGreater(buf []byte) {
	binary.BigEndian.PutUint64(buf[0:8], 0)
}

// Compare orders (table1, key1) against (table2, key2): table ids first
// (unsigned), then cmp on the key bytes.
func Compare(cmp keycmp.Comparator, table1 uint64, key1 []byte, table2 uint64, key2 []byte) int {
	if table1 < table2 {
		return -1
	}
	if table1 > table2 {
		return 1
	}
	return cmp.Compare(key1, key2)
}

// CompareTo orders v against (table, key) using cmp.
func (v View) CompareTo(cmp keycmp.Comparator, table uint64, key []byte) int {
	return Compare(cmp, v.TableID(), v.Key(), table, key)
}
