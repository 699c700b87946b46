package exec

import (
	"context"

	"github.com/krasninja/querycat-sub000/function"
	"github.com/krasninja/querycat-sub000/rows"
	"github.com/krasninja/querycat-sub000/value"
)

// AggregateTarget is one aggregate call site awaiting its group values. Its
// value lands in the group output at Offset, set when the Group operator is
// created.
type AggregateTarget struct {
	Column   rows.Column
	Func     *function.Aggregate
	Args     []Unit
	Distinct bool
	Offset   int
}

func (self *AggregateTarget) newAccumulator() function.Accumulator {
	acc := self.Func.New()
	if self.Distinct {
		acc = function.NewDistinct(acc)
	}
	return acc
}

type group struct {
	first rows.Row
	accs  []function.Accumulator
}

// ----------------------------------------------------------------------------
// Group hashes the rows of its child by the key units and runs every target's
// accumulator per group. Each output row is the first row seen for the group
// followed by the aggregate values, so the child's columns keep their
// ordinals and the aggregates start at a fixed offset. Without keys the whole
// input is one group, which exists even when the input is empty.
// ----------------------------------------------------------------------------
type Group struct {
	child   rows.Iterator
	frame   *Frame
	keys    []Unit
	targets []*AggregateTarget
	columns []rows.Column
	out     *rows.MemoryIterator
}

func NewGroup(child rows.Iterator, frame *Frame, keys []Unit, targets []*AggregateTarget) *Group {
	cols := append([]rows.Column{}, child.Columns()...)
	offset := len(cols)
	for i, t := range targets {
		t.Offset = offset + i
		cols = append(cols, t.Column)
	}
	return &Group{
		child:   child,
		frame:   frame,
		keys:    keys,
		targets: targets,
		columns: cols,
	}
}

func (self *Group) Columns() []rows.Column { return self.columns }

// Offset is the ordinal of the first aggregate column
func (self *Group) Offset() int { return len(self.child.Columns()) }

func (self *Group) Current() rows.Row {
	if self.out == nil {
		return nil
	}
	return self.out.Current()
}

func (self *Group) newGroup(first rows.Row) *group {
	g := &group{
		first: first,
		accs:  make([]function.Accumulator, len(self.targets)),
	}
	for i, t := range self.targets {
		g.accs[i] = t.newAccumulator()
	}
	return g
}

func (self *Group) build(ctx context.Context) error {
	groups := map[string]*group{}
	order := []*group{}
	var keyBuf, argBuf []value.Value

	for {
		ok, err := self.child.MoveNext(ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		row := self.child.Current()
		self.frame.Row = row

		keyBuf, err = EvalAll(ctx, self.keys, keyBuf)
		if err != nil {
			return err
		}
		k := value.Key(keyBuf...)
		g, ok := groups[k]
		if !ok {
			g = self.newGroup(row.Copy())
			groups[k] = g
			order = append(order, g)
		}

		for i, t := range self.targets {
			argBuf, err = EvalAll(ctx, t.Args, argBuf)
			if err != nil {
				return err
			}
			if err := g.accs[i].Accumulate(argBuf); err != nil {
				return err
			}
		}
	}

	if len(order) == 0 && len(self.keys) == 0 {
		order = append(order, self.newGroup(make(rows.Row, len(self.child.Columns()))))
	}

	data := make([]rows.Row, 0, len(order))
	for _, g := range order {
		row := make(rows.Row, 0, len(self.columns))
		row = append(row, g.first...)
		for _, acc := range g.accs {
			row = append(row, acc.Finalize())
		}
		data = append(data, row)
	}
	self.out = rows.NewMemoryIterator(self.columns, data)
	return nil
}

func (self *Group) MoveNext(ctx context.Context) (bool, error) {
	if self.out == nil {
		if err := self.build(ctx); err != nil {
			return false, err
		}
	}
	return self.out.MoveNext(ctx)
}

func (self *Group) Reset(ctx context.Context) error {
	self.out = nil
	return self.child.Reset(ctx)
}

func (self *Group) Close() error { return self.child.Close() }
