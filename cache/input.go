package cache

import (
	"context"
	"fmt"

	"github.com/krasninja/querycat-sub000/rows"
	"github.com/krasninja/querycat-sub000/value"
)

type Stats struct {
	InputReads int // rows read from the wrapped input
	CacheReads int // rows served from a cache entry
}

// Input wraps a rows input with the cache. Every scan, started by the first
// read after Open or by Reset, computes the key from the current query info. A complete entry with
// an equal or subsuming key serves the scan without touching the wrapped
// input, otherwise the scan passes through and captures the rows it reads.
type Input struct {
	inner   rows.Input
	storage *Storage
	source  string
	info    rows.QueryInfo

	entry   *Entry
	serving bool
	fresh   bool
	pos     int
	cur     rows.Row
	curErrs map[int]error
	stats   Stats
}

func NewInput(inner rows.Input, storage *Storage, source string) *Input {
	return &Input{
		inner:   inner,
		storage: storage,
		source:  source,
		info:    rows.NewQueryInfo(nil),
	}
}

func (self *Input) Stats() Stats           { return self.stats }
func (self *Input) Columns() []rows.Column { return self.inner.Columns() }
func (self *Input) Inner() rows.Input      { return self.inner }

// Serving reports whether the current scan is served from the cache
func (self *Input) Serving() bool { return self.serving }

func (self *Input) SetQueryInfo(info rows.QueryInfo) {
	self.info = info
	if qa, ok := self.inner.(rows.QueryInfoAware); ok {
		qa.SetQueryInfo(info)
	}
}

func (self *Input) KeyColumns() []rows.KeyColumn {
	if ki, ok := self.inner.(rows.KeysInput); ok {
		return ki.KeyColumns()
	}
	return nil
}

func (self *Input) SetKeyValues(column string, op value.Operation, values []value.Value) {
	if ki, ok := self.inner.(rows.KeysInput); ok {
		ki.SetKeyValues(column, op, values)
	}
}

func (self *Input) ordinals() []int {
	return self.info.ColumnOrdinals(self.inner.Columns())
}

// start attaches the scan to a cache entry, it returns true if the wrapped
// input has to be driven
func (self *Input) start() bool {
	self.storage.Release(self.entry)
	self.entry = nil
	self.pos = -1
	self.cur = nil

	key := NewKey(self.source, self.info)
	if e := self.storage.Acquire(key); e != nil {
		self.entry = e
		self.serving = true
		return false
	}
	self.entry = self.storage.Create(key, self.ordinals())
	self.serving = false
	return true
}

func (self *Input) Open(ctx context.Context) error {
	if err := self.inner.Open(ctx); err != nil {
		return err
	}
	self.storage.Release(self.entry)
	self.entry = nil
	self.serving = false
	self.fresh = true
	return nil
}

func (self *Input) Reset(ctx context.Context) error {
	drive := self.start()
	fresh := self.fresh
	self.fresh = false
	if drive && !fresh {
		return self.inner.Reset(ctx)
	}
	return ctx.Err()
}

func (self *Input) ReadNext(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if self.entry == nil {
		// first scan after Open, the wrapped input is already positioned
		self.start()
		self.fresh = false
	}
	if self.serving {
		if self.pos+1 >= len(self.entry.data) {
			self.pos = len(self.entry.data)
			return false, nil
		}
		self.pos++
		self.stats.CacheReads++
		return true, nil
	}

	ok, err := self.inner.ReadNext(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		if self.entry != nil {
			self.storage.complete(self.entry)
		}
		return false, nil
	}
	self.stats.InputReads++
	return true, self.captureRow()
}

func (self *Input) captureRow() error {
	if self.entry == nil {
		return nil
	}
	row := make(rows.Row, len(self.entry.ordinals))
	self.curErrs = nil
	for i, o := range self.entry.ordinals {
		v, err := self.inner.ReadValue(o)
		if err != nil {
			if _, ok := err.(*rows.DataError); !ok {
				return err
			}
			if self.curErrs == nil {
				self.curErrs = make(map[int]error)
			}
			self.curErrs[i] = err
		}
		row[i] = v
	}
	self.cur = row
	self.storage.capture(self.entry, row, self.curErrs)
	return nil
}

func (self *Input) ReadValue(ordinal int) (value.Value, error) {
	if self.serving {
		if self.pos < 0 || self.pos >= len(self.entry.data) {
			return value.Null, fmt.Errorf("cache input: no current row")
		}
		idx, ok := self.entry.index[ordinal]
		if !ok {
			return value.Null, fmt.Errorf("cache input: column ordinal %d is not cached", ordinal)
		}
		if err, ok := self.entry.errs[cellPos{self.pos, idx}]; ok {
			return value.Null, err
		}
		return self.entry.data[self.pos][idx], nil
	}
	if self.entry != nil && self.cur != nil {
		if idx, ok := self.entry.index[ordinal]; ok {
			if err, ok := self.curErrs[idx]; ok {
				return value.Null, err
			}
			return self.cur[idx], nil
		}
	}
	return self.inner.ReadValue(ordinal)
}

func (self *Input) Close() error {
	self.storage.Release(self.entry)
	self.entry = nil
	self.serving = false
	return self.inner.Close()
}
