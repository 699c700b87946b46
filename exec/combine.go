package exec

import (
	"context"

	"github.com/krasninja/querycat-sub000/rows"
	"github.com/krasninja/querycat-sub000/value"
)

type CombineKind int

const (
	CombineUnion CombineKind = iota
	CombineUnionAll
	CombineExcept
	CombineIntersect
)

func (self CombineKind) String() string {
	switch self {
	case CombineUnion:
		return "union"
	case CombineUnionAll:
		return "union all"
	case CombineExcept:
		return "except"
	case CombineIntersect:
		return "intersect"
	default:
		return "unknown"
	}
}

// Combine is a set operation over 2 iterators with the same arity, the output
// takes the column names of the left side. Except and intersect read the right
// side into a key set first, every kind but union all removes duplicates.
type Combine struct {
	left, right rows.Iterator
	kind        CombineKind
	columns     []rows.Column

	onRight   bool
	rightKeys map[string]bool
	seen      map[string]bool
	cur       rows.Row
}

func NewCombine(left, right rows.Iterator, kind CombineKind, columns []rows.Column) *Combine {
	if columns == nil {
		columns = left.Columns()
	}
	return &Combine{
		left:    left,
		right:   right,
		kind:    kind,
		columns: columns,
	}
}

func (self *Combine) Columns() []rows.Column { return self.columns }
func (self *Combine) Current() rows.Row      { return self.cur }

func (self *Combine) loadRight(ctx context.Context) error {
	self.rightKeys = make(map[string]bool)
	for {
		ok, err := self.right.MoveNext(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		self.rightKeys[value.Key(self.right.Current()...)] = true
	}
}

// once reports whether the row was not seen before, only for distinct kinds
func (self *Combine) once(row rows.Row) bool {
	if self.kind == CombineUnionAll {
		return true
	}
	if self.seen == nil {
		self.seen = make(map[string]bool)
	}
	k := value.Key(row...)
	if self.seen[k] {
		return false
	}
	self.seen[k] = true
	return true
}

func (self *Combine) MoveNext(ctx context.Context) (bool, error) {
	if (self.kind == CombineExcept || self.kind == CombineIntersect) && self.rightKeys == nil {
		if err := self.loadRight(ctx); err != nil {
			return false, err
		}
	}

	for {
		it := self.left
		if self.onRight {
			it = self.right
		}
		ok, err := it.MoveNext(ctx)
		if err != nil {
			return false, err
		}
		if !ok {
			if self.onRight || self.kind == CombineExcept || self.kind == CombineIntersect {
				return false, nil
			}
			self.onRight = true
			continue
		}

		row := it.Current()
		switch self.kind {
		case CombineExcept:
			if self.rightKeys[value.Key(row...)] {
				continue
			}
			break
		case CombineIntersect:
			if !self.rightKeys[value.Key(row...)] {
				continue
			}
			break
		default:
			break
		}
		if self.once(row) {
			self.cur = row
			return true, nil
		}
	}
}

func (self *Combine) Reset(ctx context.Context) error {
	self.onRight = false
	self.rightKeys = nil
	self.seen = nil
	if err := self.left.Reset(ctx); err != nil {
		return err
	}
	return self.right.Reset(ctx)
}

func (self *Combine) Close() error {
	err := self.left.Close()
	if rerr := self.right.Close(); err == nil {
		err = rerr
	}
	return err
}
