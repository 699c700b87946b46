package exec

import (
	"context"
	"sort"

	"github.com/krasninja/querycat-sub000/rows"
	"github.com/krasninja/querycat-sub000/value"
)

type SortKey struct {
	Unit       Unit
	Desc       bool
	NullsFirst bool
}

type sortedRow struct {
	row  rows.Row
	keys []value.Value
}

// Sort materializes its child and yields the rows in key order. The sort is
// stable, nulls go last unless NullsFirst is set regardless of direction.
type Sort struct {
	child rows.Iterator
	frame *Frame
	keys  []SortKey
	data  []sortedRow
	pos   int
	ready bool
}

func NewSort(child rows.Iterator, frame *Frame, keys []SortKey) *Sort {
	return &Sort{
		child: child,
		frame: frame,
		keys:  keys,
		pos:   -1,
	}
}

func (self *Sort) Columns() []rows.Column { return self.child.Columns() }

func (self *Sort) Current() rows.Row {
	if self.pos < 0 || self.pos >= len(self.data) {
		return nil
	}
	return self.data[self.pos].row
}

func (self *Sort) load(ctx context.Context) error {
	self.data = self.data[:0]
	for {
		ok, err := self.child.MoveNext(ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		row := self.child.Current().Copy()
		self.frame.Row = row
		keys := make([]value.Value, len(self.keys))
		for i, k := range self.keys {
			v, err := k.Unit.Eval(ctx)
			if err != nil {
				return err
			}
			keys[i] = v
		}
		self.data = append(self.data, sortedRow{row: row, keys: keys})
	}

	var cmpErr error
	sort.SliceStable(self.data, func(i, j int) bool {
		c, err := self.compare(self.data[i].keys, self.data[j].keys)
		if err != nil && cmpErr == nil {
			cmpErr = err
		}
		return c < 0
	})
	return cmpErr
}

func (self *Sort) compare(a, b []value.Value) (int, error) {
	for i, k := range self.keys {
		x, y := a[i], b[i]
		if x.IsNull() || y.IsNull() {
			if x.IsNull() && y.IsNull() {
				continue
			}
			if x.IsNull() == k.NullsFirst {
				return -1, nil
			}
			return 1, nil
		}
		c, err := value.Compare(x, y)
		if err != nil {
			return 0, err
		}
		if c == 0 {
			continue
		}
		if k.Desc {
			c = -c
		}
		return c, nil
	}
	return 0, nil
}

func (self *Sort) MoveNext(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !self.ready {
		if err := self.load(ctx); err != nil {
			return false, err
		}
		self.ready = true
		self.pos = -1
	}
	if self.pos+1 >= len(self.data) {
		self.pos = len(self.data)
		return false, nil
	}
	self.pos++
	return true, nil
}

func (self *Sort) Reset(ctx context.Context) error {
	self.ready = false
	self.pos = -1
	return self.child.Reset(ctx)
}

func (self *Sort) Close() error { return self.child.Close() }
