// Package pagestore defines the page manager contract the btree
// package consumes (spec §6, "Page manager contract (consumed)") and
// ships a reference, in-memory implementation of it.
//
// The real page manager — allocation policy, free-list management,
// persistence to disk, and transaction-scoped reference counting — is
// out of this module's scope; btree never imports pagestore's
// reference implementation, only the Manager/Page/PageMut interfaces.
// MemManager exists so the core is runnable and testable without an
// external collaborator.
package pagestore

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"
)

// PageNumber is an opaque identifier issued by a Manager. Two pages
// with the same number are the same page.
type PageNumber uint64

// Bytes returns the stable big-endian on-disk representation of p.
func (p PageNumber) Bytes() [8]byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(p))
	return b
}

// Page is a shared, read-only view of a page's byte buffer. Holding a
// Page keeps the underlying page alive per the reference Manager's
// bookkeeping.
type Page interface {
	Memory() []byte
	PageNumber() PageNumber
}

// PageMut is a Page additionally open for writing. Manager.Allocate is
// the only source of a PageMut; once its page number has been linked
// into the tree (returned from an operation), the caller must treat it
// as immutable and only read it back through Manager.Get.
type PageMut interface {
	Page
	MemoryMut() []byte
}

// Manager is the page manager contract of spec §6.
type Manager interface {
	// Allocate returns a fresh, uninitialized, exclusively owned page
	// of the manager's fixed size.
	Allocate() (PageMut, error)
	// Get borrows a shared read-only view of an existing page.
	Get(PageNumber) (Page, error)
	// Free releases the manager's own bookkeeping for a page number.
	// The btree core never calls this — spec §9: "the manager is
	// expected to reclaim pages ... the tree does not free pages
	// itself." It exists for a transaction layer or test harness
	// sitting above the tree.
	Free(PageNumber) error
}

var (
	// ErrInvalidPage is returned by Get/Free for a page number the
	// manager never allocated or has already freed.
	ErrInvalidPage = errors.New("pagestore: invalid page number")
	// ErrExhausted is returned by Allocate when the reference
	// manager's pool capacity is reached.
	ErrExhausted = errors.New("pagestore: pool exhausted")
)

type page struct {
	number PageNumber
	data   []byte
	refs   int32
}

func (p *page) Memory() []byte        { return p.data }
func (p *page) MemoryMut() []byte     { return p.data }
func (p *page) PageNumber() PageNumber { return p.number }

// MemManager is a single-threaded-safe, in-memory reference
// implementation of Manager. It is adapted from the teacher's bufmgr
// pool + atomic ref-count helpers, stripped of the latch manager since
// spec §5 rules out concurrent writers.
type MemManager struct {
	mu       sync.Mutex
	pages    map[PageNumber]*page
	next     uint64
	pageSize int
	capacity int

	generation ksuid.KSUID
	log        zerolog.Logger
}

// NewMemManager builds a reference manager with the given fixed page
// size. capacity <= 0 means unbounded.
func NewMemManager(pageSize, capacity int, log zerolog.Logger) *MemManager {
	gen := ksuid.New()
	return &MemManager{
		pages:      make(map[PageNumber]*page),
		pageSize:   pageSize,
		capacity:   capacity,
		generation: gen,
		log:        log.With().Str("pagestore_generation", gen.String()).Logger(),
	}
}

func (m *MemManager) Allocate() (PageMut, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.capacity > 0 && len(m.pages) >= m.capacity {
		m.log.Error().Int("capacity", m.capacity).Msg("allocate: pool exhausted")
		return nil, errors.WithStack(ErrExhausted)
	}

	m.next++
	p := &page{
		number: PageNumber(m.next),
		data:   make([]byte, m.pageSize),
		refs:   1,
	}
	m.pages[p.number] = p
	m.log.Debug().Uint64("page", uint64(p.number)).Msg("allocate")
	return p, nil
}

func (m *MemManager) Get(pn PageNumber) (Page, error) {
	m.mu.Lock()
	p, ok := m.pages[pn]
	m.mu.Unlock()
	if !ok {
		m.log.Error().Uint64("page", uint64(pn)).Msg("get: invalid page")
		return nil, errors.Wrapf(ErrInvalidPage, "page %d", pn)
	}
	atomic.AddInt32(&p.refs, 1)
	return p, nil
}

// RefCount reports the live reference count of pn, for tests.
func (m *MemManager) RefCount(pn PageNumber) (int32, error) {
	m.mu.Lock()
	p, ok := m.pages[pn]
	m.mu.Unlock()
	if !ok {
		return 0, errors.Wrapf(ErrInvalidPage, "page %d", pn)
	}
	return atomic.LoadInt32(&p.refs), nil
}

// Release decrements pn's reference count by one, modeling a handle
// going out of scope. The btree core never calls this; it models the
// external transaction layer's bookkeeping.
func (m *MemManager) Release(pn PageNumber) error {
	m.mu.Lock()
	p, ok := m.pages[pn]
	m.mu.Unlock()
	if !ok {
		return errors.Wrapf(ErrInvalidPage, "page %d", pn)
	}
	atomic.AddInt32(&p.refs, -1)
	return nil
}

func (m *MemManager) Free(pn PageNumber) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pages[pn]; !ok {
		return errors.Wrapf(ErrInvalidPage, "page %d", pn)
	}
	delete(m.pages, pn)
	m.log.Debug().Uint64("page", uint64(pn)).Msg("free")
	return nil
}

// PageCount reports how many pages are currently live, for tests.
func (m *MemManager) PageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pages)
}
