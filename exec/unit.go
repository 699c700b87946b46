package exec

import (
	"context"

	"github.com/krasninja/querycat-sub000/value"
)

// Frame is the row a group of units read from. The operator owning the frame
// publishes its child's current row into it before evaluating its units.
type Frame struct {
	Row []value.Value
}

func NewFrame() *Frame {
	return &Frame{}
}

// Unit is a compiled scalar expression, resolved once and evaluated per row
type Unit interface {
	Eval(ctx context.Context) (value.Value, error)
	Type() value.DataType
}

type Const struct {
	V value.Value
}

func (self *Const) Eval(context.Context) (value.Value, error) { return self.V, nil }
func (self *Const) Type() value.DataType                      { return self.V.Type() }

// ColumnRef reads one position of a frame
type ColumnRef struct {
	Frame   *Frame
	Ordinal int
	T       value.DataType
}

func (self *ColumnRef) Eval(context.Context) (value.Value, error) {
	if self.Ordinal < 0 || self.Ordinal >= len(self.Frame.Row) {
		return value.Null, nil
	}
	return self.Frame.Row[self.Ordinal], nil
}

func (self *ColumnRef) Type() value.DataType { return self.T }

type Func struct {
	T value.DataType
	F func(ctx context.Context) (value.Value, error)
}

func (self *Func) Eval(ctx context.Context) (value.Value, error) { return self.F(ctx) }
func (self *Func) Type() value.DataType                          { return self.T }

// EvalBool evaluates a predicate, a nil unit is always true and null is false
func EvalBool(ctx context.Context, u Unit) (bool, error) {
	if u == nil {
		return true, nil
	}
	v, err := u.Eval(ctx)
	if err != nil {
		return false, err
	}
	return v.Truth(), nil
}

func EvalAll(ctx context.Context, units []Unit, out []value.Value) ([]value.Value, error) {
	out = out[:0]
	for _, u := range units {
		v, err := u.Eval(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
