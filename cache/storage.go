package cache

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/krasninja/querycat-sub000/rows"
)

type cellPos struct {
	row, col int
}

// Entry holds the rows captured for one key. Once complete it is shared read
// only.
type Entry struct {
	Id       string
	Key      Key
	Expires  time.Time // zero when the entry never expires
	Complete bool

	ordinals []int       // source ordinals captured, in row order
	index    map[int]int // source ordinal -> position in a captured row
	data     []rows.Row
	errs     map[cellPos]error
	overflow bool
	refs     int
}

func (self *Entry) Len() int { return len(self.data) }

func (self *Entry) expired(now time.Time) bool {
	return !self.Expires.IsZero() && !now.Before(self.Expires)
}

// Storage keeps entries by canonical key. Expired entries are purged lazily
// on lookup, entries that are in use survive the purge.
type Storage struct {
	TTL     time.Duration // zero or negative never expires
	MaxRows int           // zero means unbounded

	mu      sync.Mutex
	entries map[string]*Entry
	now     func() time.Time
}

func NewStorage(ttl time.Duration, maxRows int) *Storage {
	return &Storage{
		TTL:     ttl,
		MaxRows: maxRows,
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
}

func (self *Storage) purge(now time.Time) {
	for k, e := range self.entries {
		if e.refs == 0 && e.expired(now) {
			delete(self.entries, k)
		}
	}
}

// Acquire returns a complete entry with an equal or subsuming key, or nil
func (self *Storage) Acquire(key Key) *Entry {
	self.mu.Lock()
	defer self.mu.Unlock()

	now := self.now()
	self.purge(now)

	if e, ok := self.entries[key.String()]; ok && e.Complete && !e.expired(now) {
		e.refs++
		return e
	}
	for _, e := range self.entries {
		if e.Complete && !e.expired(now) && e.Key.Subsumes(key) {
			e.refs++
			return e
		}
	}
	return nil
}

// Create registers a capturing entry for the key, replacing whatever was
// stored under the same key. Readers still attached to the old entry keep it.
func (self *Storage) Create(key Key, ordinals []int) *Entry {
	e := &Entry{
		Id:       uuid.NewString(),
		Key:      key,
		ordinals: ordinals,
		index:    make(map[int]int, len(ordinals)),
		refs:     1,
	}
	for i, o := range ordinals {
		e.index[o] = i
	}

	self.mu.Lock()
	defer self.mu.Unlock()
	self.entries[key.String()] = e
	return e
}

func (self *Storage) Release(e *Entry) {
	if e == nil {
		return
	}
	self.mu.Lock()
	defer self.mu.Unlock()
	if e.refs > 0 {
		e.refs--
	}
}

// complete marks the captured entry as usable by other readers
func (self *Storage) complete(e *Entry) {
	self.mu.Lock()
	defer self.mu.Unlock()
	if e.overflow {
		return
	}
	e.Complete = true
	if self.TTL > 0 {
		e.Expires = self.now().Add(self.TTL)
	}
}

func (self *Storage) capture(e *Entry, row rows.Row, errs map[int]error) {
	if e.overflow {
		return
	}
	if self.MaxRows > 0 && len(e.data) >= self.MaxRows {
		e.overflow = true
		e.data = nil
		e.errs = nil
		return
	}
	e.data = append(e.data, row)
	for col, err := range errs {
		if e.errs == nil {
			e.errs = make(map[cellPos]error)
		}
		e.errs[cellPos{len(e.data) - 1, col}] = err
	}
}

// Invalidate drops every entry of the source
func (self *Storage) Invalidate(source string) {
	self.mu.Lock()
	defer self.mu.Unlock()
	for k, e := range self.entries {
		if e.Key.Source == source {
			delete(self.entries, k)
		}
	}
}

func (self *Storage) Len() int {
	self.mu.Lock()
	defer self.mu.Unlock()
	return len(self.entries)
}
