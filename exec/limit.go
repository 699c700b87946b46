package exec

import (
	"context"

	"github.com/krasninja/querycat-sub000/rows"
)

// OffsetFetch skips offset rows and caps the count to fetch, a negative fetch
// means no cap
type OffsetFetch struct {
	child  rows.Iterator
	offset int64
	fetch  int64
	n      int64
	skip   bool
}

func NewOffsetFetch(child rows.Iterator, offset, fetch int64) *OffsetFetch {
	return &OffsetFetch{
		child:  child,
		offset: offset,
		fetch:  fetch,
	}
}

func (self *OffsetFetch) Columns() []rows.Column { return self.child.Columns() }
func (self *OffsetFetch) Current() rows.Row      { return self.child.Current() }

func (self *OffsetFetch) MoveNext(ctx context.Context) (bool, error) {
	if !self.skip {
		self.skip = true
		for i := int64(0); i < self.offset; i++ {
			ok, err := self.child.MoveNext(ctx)
			if err != nil || !ok {
				return false, err
			}
		}
	}
	if self.fetch >= 0 && self.n >= self.fetch {
		return false, nil
	}
	ok, err := self.child.MoveNext(ctx)
	if err != nil || !ok {
		return false, err
	}
	self.n++
	return true, nil
}

func (self *OffsetFetch) Reset(ctx context.Context) error {
	self.n = 0
	self.skip = false
	return self.child.Reset(ctx)
}

func (self *OffsetFetch) Close() error { return self.child.Close() }
