package exec

import (
	"context"

	"github.com/krasninja/querycat-sub000/rows"
	"github.com/krasninja/querycat-sub000/value"
)

type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeft
	JoinRight
	JoinFull
	JoinCross
)

func (self JoinKind) String() string {
	switch self {
	case JoinInner:
		return "inner"
	case JoinLeft:
		return "left"
	case JoinRight:
		return "right"
	case JoinFull:
		return "full"
	case JoinCross:
		return "cross"
	default:
		return "unknown"
	}
}

const (
	joinMain = iota
	joinTrailing // full join, emitting the unmatched inner rows
	joinDone
)

// ----------------------------------------------------------------------------
// Join is a nested loop join. The outer side is driven once, the inner side is
// reset and driven once per outer row, so it should be cheap to re-iterate.
// A right join swaps the roles of its sides and runs as a left join, the
// output row always keeps the declared left ++ right order. Full join tracks
// which inner rows matched, by scan position, and emits the rest at the end.
// ----------------------------------------------------------------------------
type Join struct {
	left, right  rows.Iterator
	outer, inner rows.Iterator
	kind         JoinKind
	frame        *Frame
	cond         Unit
	columns      []rows.Column
	swapped      bool

	row          rows.Row
	outerRow     rows.Row
	haveOuter    bool
	outerMatched bool
	innerIdx     int
	innerMatched map[int]bool
	phase        int
}

// NewJoin creates the join, cond reads the combined left ++ right row from
// frame and may be nil
func NewJoin(left, right rows.Iterator, kind JoinKind, frame *Frame, cond Unit) *Join {
	cols := append([]rows.Column{}, left.Columns()...)
	cols = append(cols, right.Columns()...)

	j := &Join{
		left:    left,
		right:   right,
		kind:    kind,
		frame:   frame,
		cond:    cond,
		columns: cols,
		outer:   left,
		inner:   right,
		row:     make(rows.Row, len(cols)),
	}
	if kind == JoinRight {
		j.outer, j.inner = right, left
		j.swapped = true
	}
	if kind == JoinFull {
		j.innerMatched = make(map[int]bool)
	}
	if j.frame == nil {
		j.frame = NewFrame()
	}
	return j
}

// NewMultiply is the cartesian product of 2 iterators
func NewMultiply(left, right rows.Iterator) *Join {
	return NewJoin(left, right, JoinCross, nil, nil)
}

func (self *Join) Columns() []rows.Column { return self.columns }
func (self *Join) Current() rows.Row      { return self.row }
func (self *Join) Kind() JoinKind         { return self.kind }
func (self *Join) Swapped() bool          { return self.swapped }

func (self *Join) outerJoin() bool {
	return self.kind == JoinLeft || self.kind == JoinRight || self.kind == JoinFull
}

// compose writes the outer and inner rows, nil meaning nulls, into the
// output row in declared order
func (self *Join) compose(outerRow, innerRow rows.Row) {
	l, r := outerRow, innerRow
	nl := len(self.left.Columns())
	if self.swapped {
		l, r = innerRow, outerRow
	}
	for i := range self.row {
		self.row[i] = value.Null
	}
	if l != nil {
		copy(self.row[:nl], l)
	}
	if r != nil {
		copy(self.row[nl:], r)
	}
}

func (self *Join) MoveNext(ctx context.Context) (bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		switch self.phase {
		case joinDone:
			return false, nil

		case joinTrailing:
			ok, err := self.inner.MoveNext(ctx)
			if err != nil {
				return false, err
			}
			if !ok {
				self.phase = joinDone
				return false, nil
			}
			self.innerIdx++
			if self.innerMatched[self.innerIdx] {
				continue
			}
			self.compose(nil, self.inner.Current())
			return true, nil

		default:
			break
		}

		if !self.haveOuter {
			ok, err := self.outer.MoveNext(ctx)
			if err != nil {
				return false, err
			}
			if !ok {
				if self.kind == JoinFull {
					self.phase = joinTrailing
					self.innerIdx = -1
					if err := self.inner.Reset(ctx); err != nil {
						return false, err
					}
					continue
				}
				self.phase = joinDone
				return false, nil
			}
			self.outerRow = append(self.outerRow[:0], self.outer.Current()...)
			self.haveOuter = true
			self.outerMatched = false
			self.innerIdx = -1
			if err := self.inner.Reset(ctx); err != nil {
				return false, err
			}
		}

		ok, err := self.inner.MoveNext(ctx)
		if err != nil {
			return false, err
		}
		if !ok {
			self.haveOuter = false
			if !self.outerMatched && self.outerJoin() {
				self.compose(self.outerRow, nil)
				return true, nil
			}
			continue
		}
		self.innerIdx++

		self.compose(self.outerRow, self.inner.Current())
		self.frame.Row = self.row
		match, err := EvalBool(ctx, self.cond)
		if err != nil {
			return false, err
		}
		if match {
			self.outerMatched = true
			if self.innerMatched != nil {
				self.innerMatched[self.innerIdx] = true
			}
			return true, nil
		}
	}
}

func (self *Join) Reset(ctx context.Context) error {
	self.phase = joinMain
	self.haveOuter = false
	if self.innerMatched != nil {
		self.innerMatched = make(map[int]bool)
	}
	return self.outer.Reset(ctx)
}

func (self *Join) Close() error {
	err := self.left.Close()
	if rerr := self.right.Close(); err == nil {
		err = rerr
	}
	return err
}
