package btree

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"

	"cowbtree/keycmp"
	"cowbtree/pagestore"
)

func newTestTree(t *testing.T) *Tree {
	t.Helper()
	mgr := pagestore.NewMemManager(4096, 0, zerolog.Nop())
	return New(mgr, keycmp.Bytes{})
}

func mustInsert(t *testing.T, tr *Tree, table uint64, key, value string) {
	t.Helper()
	if _, err := tr.Insert(table, []byte(key), []byte(value)); err != nil {
		t.Fatalf("Insert(%d, %q, %q) error = %v", table, key, value, err)
	}
}

func mustLookup(t *testing.T, tr *Tree, table uint64, key string) (string, bool) {
	t.Helper()
	g, ok, err := tr.Lookup(table, []byte(key))
	if err != nil {
		t.Fatalf("Lookup(%d, %q) error = %v", table, key, err)
	}
	if !ok {
		return "", false
	}
	return string(g.Bytes()), true
}

func TestScenario1_FourKeyTree(t *testing.T) {
	tr := newTestTree(t)
	mustInsert(t, tr, 0, "a", "1")
	mustInsert(t, tr, 0, "b", "2")
	mustInsert(t, tr, 0, "c", "3")
	mustInsert(t, tr, 0, "d", "4")

	h, err := tr.Height()
	if err != nil {
		t.Fatalf("Height() error = %v", err)
	}
	if h != 2 {
		t.Errorf("Height() = %d, want 2", h)
	}

	it, err := tr.Range(0, Unbounded(), Unbounded())
	if err != nil {
		t.Fatalf("Range() error = %v", err)
	}
	var got []string
	for {
		e, ok, err := it.Next()
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if !ok {
			break
		}
		got = append(got, string(e.Key))
	}
	want := []string{"a", "b", "c", "d"}
	if !equalStrings(got, want) {
		t.Errorf("forward range = %v, want %v", got, want)
	}
}

func TestScenario2_DeleteMiddleKeepsDepth(t *testing.T) {
	tr := newTestTree(t)
	mustInsert(t, tr, 0, "a", "1")
	mustInsert(t, tr, 0, "b", "2")
	mustInsert(t, tr, 0, "c", "3")
	mustInsert(t, tr, 0, "d", "4")

	found, err := tr.Delete(0, []byte("b"))
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !found {
		t.Fatalf("Delete() found = false, want true")
	}

	cases := []struct {
		key  string
		want string
		ok   bool
	}{
		{"a", "1", true},
		{"b", "", false},
		{"c", "3", true},
		{"d", "4", true},
	}
	for _, c := range cases {
		got, ok := mustLookup(t, tr, 0, c.key)
		if ok != c.ok || got != c.want {
			t.Errorf("Lookup(%q) = (%q, %v), want (%q, %v)", c.key, got, ok, c.want, c.ok)
		}
	}

	h, err := tr.Height()
	if err != nil {
		t.Fatalf("Height() error = %v", err)
	}
	if h != 2 {
		t.Errorf("Height() after delete = %d, want 2", h)
	}
}

func TestScenario3_OverwriteSingleEntry(t *testing.T) {
	tr := newTestTree(t)
	mustInsert(t, tr, 0, "x", "1")
	mustInsert(t, tr, 0, "x", "2")

	got, ok := mustLookup(t, tr, 0, "x")
	if !ok || got != "2" {
		t.Errorf("Lookup(x) = (%q, %v), want (\"2\", true)", got, ok)
	}
	h, err := tr.Height()
	if err != nil {
		t.Fatalf("Height() error = %v", err)
	}
	if h != 1 {
		t.Errorf("Height() = %d, want 1", h)
	}
}

func TestScenario4_IndependentTables(t *testing.T) {
	tr := newTestTree(t)
	mustInsert(t, tr, 0, "m", "t0")
	mustInsert(t, tr, 1, "m", "t1")

	got0, ok0 := mustLookup(t, tr, 0, "m")
	got1, ok1 := mustLookup(t, tr, 1, "m")
	if !ok0 || got0 != "t0" {
		t.Errorf("Lookup(0, m) = (%q, %v), want (\"t0\", true)", got0, ok0)
	}
	if !ok1 || got1 != "t1" {
		t.Errorf("Lookup(1, m) = (%q, %v), want (\"t1\", true)", got1, ok1)
	}

	it0, err := tr.Range(0, Unbounded(), Unbounded())
	if err != nil {
		t.Fatalf("Range(table 0) error = %v", err)
	}
	if got := collect(t, it0); !equalStrings(got, []string{"m"}) {
		t.Errorf("Range(table 0) = %v, want [m]", got)
	}

	it1, err := tr.RangeReversed(1, Unbounded(), Unbounded())
	if err != nil {
		t.Fatalf("RangeReversed(table 1) error = %v", err)
	}
	if got := collect(t, it1); !equalStrings(got, []string{"m"}) {
		t.Errorf("RangeReversed(table 1) = %v, want [m]", got)
	}
}

func TestScenario_SingleEntrySmallerAndLargerKey(t *testing.T) {
	t.Run("smaller key becomes lesser", func(t *testing.T) {
		tr := newTestTree(t)
		mustInsert(t, tr, 0, "m", "mid")
		mustInsert(t, tr, 0, "a", "small")

		got, ok := mustLookup(t, tr, 0, "a")
		if !ok || got != "small" {
			t.Errorf("Lookup(a) = (%q, %v), want (\"small\", true)", got, ok)
		}
		got, ok = mustLookup(t, tr, 0, "m")
		if !ok || got != "mid" {
			t.Errorf("Lookup(m) = (%q, %v), want (\"mid\", true)", got, ok)
		}
		h, err := tr.Height()
		if err != nil {
			t.Fatalf("Height() error = %v", err)
		}
		if h != 1 {
			t.Errorf("Height() = %d, want 1", h)
		}
		p, err := tr.mgr.Get(*tr.Root())
		if err != nil {
			t.Fatalf("Get(root) error = %v", err)
		}
		if lk := string(newLeafAccessor(p.Memory()).lesser().Key()); lk != "a" {
			t.Errorf("root leaf lesser key = %q, want \"a\"", lk)
		}
	})

	t.Run("larger key becomes greater", func(t *testing.T) {
		tr := newTestTree(t)
		mustInsert(t, tr, 0, "m", "mid")
		mustInsert(t, tr, 0, "z", "large")

		got, ok := mustLookup(t, tr, 0, "z")
		if !ok || got != "large" {
			t.Errorf("Lookup(z) = (%q, %v), want (\"large\", true)", got, ok)
		}
		got, ok = mustLookup(t, tr, 0, "m")
		if !ok || got != "mid" {
			t.Errorf("Lookup(m) = (%q, %v), want (\"mid\", true)", got, ok)
		}
		h, err := tr.Height()
		if err != nil {
			t.Fatalf("Height() error = %v", err)
		}
		if h != 1 {
			t.Errorf("Height() = %d, want 1", h)
		}
		p, err := tr.mgr.Get(*tr.Root())
		if err != nil {
			t.Fatalf("Get(root) error = %v", err)
		}
		g, ok := newLeafAccessor(p.Memory()).greater()
		if !ok {
			t.Fatalf("root leaf greater absent, want \"z\"")
		}
		if gk := string(g.Key()); gk != "z" {
			t.Errorf("root leaf greater key = %q, want \"z\"", gk)
		}
	})
}

func TestEmptyTree_LookupDeleteInsertRange(t *testing.T) {
	tr := newTestTree(t)

	if tr.Root() != nil {
		t.Fatalf("Root() on new tree = %v, want nil", tr.Root())
	}
	if _, ok, err := tr.Lookup(0, []byte("a")); err != nil || ok {
		t.Errorf("Lookup on empty tree = (ok=%v, err=%v), want (false, nil)", ok, err)
	}

	found, err := tr.Delete(0, []byte("a"))
	if err != nil {
		t.Fatalf("Delete on empty tree error = %v", err)
	}
	if found {
		t.Errorf("Delete on empty tree found = true, want false")
	}
	if tr.Root() != nil {
		t.Errorf("Root() after no-op delete = %v, want nil", tr.Root())
	}

	it, err := tr.Range(0, Unbounded(), Unbounded())
	if err != nil {
		t.Fatalf("Range on empty tree error = %v", err)
	}
	if got := collect(t, it); got != nil {
		t.Errorf("Range on empty tree = %v, want none", got)
	}

	mustInsert(t, tr, 0, "a", "1")
	if tr.Root() == nil {
		t.Fatalf("Root() after first insert = nil, want non-nil")
	}
	h, err := tr.Height()
	if err != nil {
		t.Fatalf("Height() error = %v", err)
	}
	if h != 1 {
		t.Errorf("Height() after first insert = %d, want 1", h)
	}
}

func TestRangeBoundMatrix(t *testing.T) {
	tr := newTestTree(t)
	for i := 0; i < 10; i++ {
		mustInsert(t, tr, 0, fmt.Sprintf("k%02d", i), fmt.Sprintf("v%d", i))
	}

	cases := []struct {
		name  string
		start Bound
		end   Bound
		want  []string
	}{
		{"unbounded/unbounded", Unbounded(), Unbounded(), keysFrom(0, 10)},
		{"unbounded/inclusive", Unbounded(), Included([]byte("k06")), keysFrom(0, 7)},
		{"unbounded/exclusive", Unbounded(), Excluded([]byte("k06")), keysFrom(0, 6)},
		{"inclusive/unbounded", Included([]byte("k03")), Unbounded(), keysFrom(3, 10)},
		{"inclusive/inclusive", Included([]byte("k03")), Included([]byte("k06")), keysFrom(3, 7)},
		{"inclusive/exclusive", Included([]byte("k03")), Excluded([]byte("k06")), keysFrom(3, 6)},
		{"exclusive/unbounded", Excluded([]byte("k03")), Unbounded(), keysFrom(4, 10)},
		{"exclusive/inclusive", Excluded([]byte("k03")), Included([]byte("k06")), keysFrom(4, 7)},
		{"exclusive/exclusive", Excluded([]byte("k03")), Excluded([]byte("k06")), keysFrom(4, 6)},
		{"empty range (start after end)", Included([]byte("k08")), Included([]byte("k03")), nil},
		{"single-element range", Included([]byte("k05")), Included([]byte("k05")), keysFrom(5, 6)},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			it, err := tr.Range(0, c.start, c.end)
			if err != nil {
				t.Fatalf("Range() error = %v", err)
			}
			if got := collect(t, it); !equalStrings(got, c.want) {
				t.Errorf("forward = %v, want %v", got, c.want)
			}

			rit, err := tr.RangeReversed(0, c.start, c.end)
			if err != nil {
				t.Fatalf("RangeReversed() error = %v", err)
			}
			wantRev := reverseStrings(c.want)
			if got := collect(t, rit); !equalStrings(got, wantRev) {
				t.Errorf("reverse = %v, want %v", got, wantRev)
			}
		})
	}
}

func TestScenario5_ReverseRangeWithBounds(t *testing.T) {
	tr := newTestTree(t)
	for i := 0; i < 16; i++ {
		mustInsert(t, tr, 0, fmt.Sprintf("k%02d", i), fmt.Sprintf("v%d", i))
	}

	it, err := tr.RangeReversed(0, Excluded([]byte("k03")), Included([]byte("k10")))
	if err != nil {
		t.Fatalf("RangeReversed() error = %v", err)
	}
	var got []string
	for {
		e, ok, err := it.Next()
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if !ok {
			break
		}
		got = append(got, string(e.Key))
	}
	want := []string{"k10", "k09", "k08", "k07", "k06", "k05", "k04"}
	if !equalStrings(got, want) {
		t.Errorf("reverse range = %v, want %v", got, want)
	}
}

func TestScenario6_RandomSoakHeightBound(t *testing.T) {
	tr := newTestTree(t)
	const n = 32
	rng := rand.New(rand.NewSource(1))

	keys := make([]string, n)
	for i := 0; i < n; i++ {
		keys[i] = fmt.Sprintf("key-%03d", i)
		mustInsert(t, tr, 0, keys[i], fmt.Sprintf("val-%d", i))
	}

	deleted := make(map[string]bool)
	perm := rng.Perm(n)
	for _, idx := range perm[:16] {
		k := keys[idx]
		found, err := tr.Delete(0, []byte(k))
		if err != nil {
			t.Fatalf("Delete(%q) error = %v", k, err)
		}
		if !found {
			t.Fatalf("Delete(%q) found = false, want true", k)
		}
		deleted[k] = true

		h, err := tr.Height()
		if err != nil {
			t.Fatalf("Height() error = %v", err)
		}
		// ceil(log2(n)) + 2, computed without float math.
		maxHeight := 2
		for power := 1; power < n; power *= 2 {
			maxHeight++
		}
		if h > maxHeight {
			t.Fatalf("Height() = %d after %d deletes, want <= %d", h, len(deleted), maxHeight)
		}
	}

	for _, k := range keys {
		got, ok := mustLookup(t, tr, 0, k)
		if deleted[k] {
			if ok {
				t.Errorf("Lookup(%q) = (%q, true), want absent", k, got)
			}
		} else {
			idx := -1
			for i, kk := range keys {
				if kk == k {
					idx = i
					break
				}
			}
			want := fmt.Sprintf("val-%d", idx)
			if !ok || got != want {
				t.Errorf("Lookup(%q) = (%q, %v), want (%q, true)", k, got, ok, want)
			}
		}
	}
}

func TestDeleteAbsentKeyIsStructurallyStable(t *testing.T) {
	tr := newTestTree(t)
	mustInsert(t, tr, 0, "a", "1")
	mustInsert(t, tr, 0, "b", "2")

	before := *tr.Root()
	found, err := tr.Delete(0, []byte("zzz"))
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if found {
		t.Errorf("Delete(absent) found = true, want false")
	}
	if *tr.Root() != before {
		t.Errorf("root changed on absent delete: before=%d after=%d", before, *tr.Root())
	}
}

func TestIdempotentDelete(t *testing.T) {
	tr := newTestTree(t)
	mustInsert(t, tr, 0, "a", "1")
	mustInsert(t, tr, 0, "b", "2")

	if _, err := tr.Delete(0, []byte("a")); err != nil {
		t.Fatalf("first Delete() error = %v", err)
	}
	rootAfterFirst := *tr.Root()

	found, err := tr.Delete(0, []byte("a"))
	if err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}
	if found {
		t.Errorf("second Delete() found = true, want false")
	}
	if *tr.Root() != rootAfterFirst {
		t.Errorf("root changed on repeat delete: before=%d after=%d", rootAfterFirst, *tr.Root())
	}
}

func collect(t *testing.T, it *RangeIter) []string {
	t.Helper()
	var got []string
	for {
		e, ok, err := it.Next()
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if !ok {
			return got
		}
		got = append(got, string(e.Key))
	}
}

func keysFrom(lo, hi int) []string {
	var ks []string
	for i := lo; i < hi; i++ {
		ks = append(ks, fmt.Sprintf("k%02d", i))
	}
	return ks
}

func reverseStrings(s []string) []string {
	if s == nil {
		return nil
	}
	r := make([]string, len(s))
	for i, v := range s {
		r[len(s)-1-i] = v
	}
	return r
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
