package entry

import (
	"bytes"
	"testing"

	"cowbtree/keycmp"
)

func TestWriteReadRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		table uint64
		key   []byte
		value []byte
	}{
		{"simple", 0, []byte("a"), []byte("1")},
		{"empty value", 7, []byte("key"), []byte{}},
		{"large table id", ^uint64(0), []byte("z"), []byte("last")},
		{"multi-byte key", 3, []byte("hello world"), []byte("some value bytes")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, EncodedSize(tt.key, tt.value))
			Write(buf, tt.table, tt.key, tt.value)
			v := Read(buf)
			if v.TableID() != tt.table {
				t.Errorf("TableID() = %d, want %d", v.TableID(), tt.table)
			}
			if !bytes.Equal(v.Key(), tt.key) {
				t.Errorf("Key() = %q, want %q", v.Key(), tt.key)
			}
			if !bytes.Equal(v.Value(), tt.value) {
				t.Errorf("Value() = %q, want %q", v.Value(), tt.value)
			}
			if v.EncodedLen() != len(buf) {
				t.Errorf("EncodedLen() = %d, want %d", v.EncodedLen(), len(buf))
			}
			if v.IsAbsent() {
				t.Errorf("IsAbsent() = true for a written entry")
			}
		})
	}
}

func TestAbsentGreater(t *testing.T) {
	buf := make([]byte, 8)
	AbsentGreater(buf)
	v := Read(buf)
	if !v.IsAbsent() {
		t.Errorf("IsAbsent() = false after AbsentGreater")
	}
}

func TestCompareOrdersByTableThenKey(t *testing.T) {
	cmp := keycmp.Bytes{}
	tests := []struct {
		name                   string
		t1                     uint64
		k1                     string
		t2                     uint64
		k2                     string
		want                   int
	}{
		{"same table, a<b", 0, "a", 0, "b", -1},
		{"same table, equal", 0, "a", 0, "a", 0},
		{"same table, a>b", 0, "b", 0, "a", 1},
		{"different tables, key irrelevant", 0, "z", 1, "a", -1},
		{"different tables reversed", 1, "a", 0, "z", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compare(cmp, tt.t1, []byte(tt.k1), tt.t2, []byte(tt.k2))
			if sign(got) != sign(tt.want) {
				t.Errorf("Compare() = %d, want sign %d", got, tt.want)
			}
		})
	}
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
