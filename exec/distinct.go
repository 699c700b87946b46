package exec

import (
	"context"

	"github.com/krasninja/querycat-sub000/rows"
	"github.com/krasninja/querycat-sub000/value"
)

// Distinct drops rows whose key was already seen in this pass. Without key
// units the whole row is the key.
type Distinct struct {
	child rows.Iterator
	frame *Frame
	keys  []Unit
	seen  map[string]bool
	buf   []value.Value
}

func NewDistinct(child rows.Iterator, frame *Frame, keys []Unit) *Distinct {
	return &Distinct{
		child: child,
		frame: frame,
		keys:  keys,
		seen:  make(map[string]bool),
	}
}

func (self *Distinct) Columns() []rows.Column { return self.child.Columns() }
func (self *Distinct) Current() rows.Row      { return self.child.Current() }

func (self *Distinct) key(ctx context.Context) (string, error) {
	row := self.child.Current()
	if len(self.keys) == 0 {
		return value.Key(row...), nil
	}
	self.frame.Row = row
	vals, err := EvalAll(ctx, self.keys, self.buf)
	if err != nil {
		return "", err
	}
	self.buf = vals
	return value.Key(vals...), nil
}

func (self *Distinct) MoveNext(ctx context.Context) (bool, error) {
	for {
		ok, err := self.child.MoveNext(ctx)
		if err != nil || !ok {
			return false, err
		}
		k, err := self.key(ctx)
		if err != nil {
			return false, err
		}
		if !self.seen[k] {
			self.seen[k] = true
			return true, nil
		}
	}
}

func (self *Distinct) Reset(ctx context.Context) error {
	self.seen = make(map[string]bool)
	return self.child.Reset(ctx)
}

func (self *Distinct) Close() error { return self.child.Close() }
