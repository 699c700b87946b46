package exec

import (
	"context"

	"github.com/krasninja/querycat-sub000/rows"
)

type Filter struct {
	child rows.Iterator
	frame *Frame
	cond  Unit
}

func NewFilter(child rows.Iterator, frame *Frame, cond Unit) *Filter {
	return &Filter{
		child: child,
		frame: frame,
		cond:  cond,
	}
}

func (self *Filter) Columns() []rows.Column { return self.child.Columns() }
func (self *Filter) Current() rows.Row      { return self.child.Current() }

func (self *Filter) MoveNext(ctx context.Context) (bool, error) {
	for {
		ok, err := self.child.MoveNext(ctx)
		if err != nil || !ok {
			return false, err
		}
		self.frame.Row = self.child.Current()
		pass, err := EvalBool(ctx, self.cond)
		if err != nil {
			return false, err
		}
		if pass {
			return true, nil
		}
	}
}

func (self *Filter) Reset(ctx context.Context) error { return self.child.Reset(ctx) }
func (self *Filter) Close() error                    { return self.child.Close() }

// Project evaluates one unit per output column
type Project struct {
	child   rows.Iterator
	frame   *Frame
	columns []rows.Column
	units   []Unit
	row     rows.Row
}

func NewProject(child rows.Iterator, frame *Frame, columns []rows.Column, units []Unit) *Project {
	return &Project{
		child:   child,
		frame:   frame,
		columns: columns,
		units:   units,
		row:     make(rows.Row, len(units)),
	}
}

func (self *Project) Columns() []rows.Column { return self.columns }
func (self *Project) Current() rows.Row      { return self.row }

func (self *Project) MoveNext(ctx context.Context) (bool, error) {
	ok, err := self.child.MoveNext(ctx)
	if err != nil || !ok {
		return false, err
	}
	self.frame.Row = self.child.Current()
	for i, u := range self.units {
		v, err := u.Eval(ctx)
		if err != nil {
			return false, err
		}
		self.row[i] = v
	}
	return true, nil
}

func (self *Project) Reset(ctx context.Context) error { return self.child.Reset(ctx) }
func (self *Project) Close() error                    { return self.child.Close() }

// SingleRow yields one row without columns, the input of a select without a
// FROM clause
type SingleRow struct {
	done bool
}

func NewSingleRow() *SingleRow {
	return &SingleRow{}
}

func (self *SingleRow) Columns() []rows.Column { return nil }
func (self *SingleRow) Current() rows.Row      { return rows.Row{} }

func (self *SingleRow) MoveNext(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if self.done {
		return false, nil
	}
	self.done = true
	return true, nil
}

func (self *SingleRow) Reset(ctx context.Context) error {
	self.done = false
	return ctx.Err()
}

func (self *SingleRow) Close() error { return nil }
