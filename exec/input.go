package exec

import (
	"context"
	"sort"

	"github.com/krasninja/querycat-sub000/rows"
	"github.com/krasninja/querycat-sub000/value"
	"github.com/pkg/errors"
)

// InputIterator adapts a rows input into an iterator. Only the prefetched
// ordinals are read per row, the other cells stay null. Without a prefetch set
// the iterator auto fetches every column.
type InputIterator struct {
	input   rows.Input
	columns []rows.Column
	fetch   []int
	row     rows.Row
	errors  *rows.ErrorCounter
	start   func(ctx context.Context) error
	started bool
	reads   int
}

func NewInputIterator(input rows.Input, columns []rows.Column) *InputIterator {
	if columns == nil {
		columns = input.Columns()
	}
	return &InputIterator{
		input:   input,
		columns: columns,
		row:     make(rows.Row, len(columns)),
	}
}

func (self *InputIterator) Columns() []rows.Column { return self.columns }
func (self *InputIterator) Current() rows.Row      { return self.row }
func (self *InputIterator) Input() rows.Input      { return self.input }
func (self *InputIterator) Reads() int             { return self.reads }
func (self *InputIterator) AutoFetch() bool        { return self.fetch == nil }
func (self *InputIterator) Prefetch() []int        { return self.fetch }

func (self *InputIterator) SetErrorCounter(c *rows.ErrorCounter) {
	self.errors = c
}

// OnStart installs a hook run before the first read of every scan, it owns
// resetting the input
func (self *InputIterator) OnStart(f func(ctx context.Context) error) {
	self.start = f
}

// SetPrefetch restricts the ordinals read per row. It returns false when the
// same set is already installed. A set covering every column switches the
// iterator to auto fetch.
func (self *InputIterator) SetPrefetch(ordinals []int) bool {
	set := map[int]bool{}
	for _, o := range ordinals {
		if o >= 0 && o < len(self.columns) {
			set[o] = true
		}
	}
	if len(set) == len(self.columns) {
		if self.fetch == nil {
			return false
		}
		self.fetch = nil
		return true
	}
	next := make([]int, 0, len(set))
	for o := range set {
		next = append(next, o)
	}
	sort.Ints(next)
	if self.fetch != nil && equalInts(self.fetch, next) {
		return false
	}
	self.fetch = next
	return true
}

func equalInts(a, b []int) bool {
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

func (self *InputIterator) MoveNext(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !self.started {
		self.started = true
		if self.start != nil {
			if err := self.start(ctx); err != nil {
				return false, err
			}
		}
	}

	ok, err := self.input.ReadNext(ctx)
	if err != nil || !ok {
		return false, err
	}
	self.reads++

	for i := range self.row {
		self.row[i] = value.Null
	}
	if self.fetch == nil {
		for i := range self.columns {
			if err := self.read(i); err != nil {
				return false, err
			}
		}
	} else {
		for _, i := range self.fetch {
			if err := self.read(i); err != nil {
				return false, err
			}
		}
	}
	return true, nil
}

func (self *InputIterator) read(ordinal int) error {
	v, err := self.input.ReadValue(ordinal)
	if err == nil {
		self.row[ordinal] = v
		return nil
	}
	if de, ok := err.(*rows.DataError); ok {
		if self.errors == nil {
			return nil
		}
		return self.errors.Add(de)
	}
	return errors.Wrapf(err, "read column %s", self.columns[ordinal].FullName())
}

func (self *InputIterator) Reset(ctx context.Context) error {
	self.started = false
	if self.start != nil {
		return ctx.Err()
	}
	return self.input.Reset(ctx)
}

func (self *InputIterator) Close() error {
	return self.input.Close()
}
