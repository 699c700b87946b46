package function

import (
	"context"
	"fmt"

	"github.com/krasninja/querycat-sub000/rows"
	"github.com/krasninja/querycat-sub000/value"
)

// rangeInput generates integers in [start, stop) lazily
type rangeInput struct {
	start, stop, step int64
	cur               int64
	started           bool
}

func (self *rangeInput) Columns() []rows.Column {
	return []rows.Column{rows.NewColumn("value", value.TypeInteger)}
}

func (self *rangeInput) Open(ctx context.Context) error {
	self.started = false
	return ctx.Err()
}

func (self *rangeInput) ReadNext(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !self.started {
		self.started = true
		self.cur = self.start
	} else {
		self.cur += self.step
	}
	if self.step > 0 {
		return self.cur < self.stop, nil
	}
	return self.cur > self.stop, nil
}

func (self *rangeInput) ReadValue(ordinal int) (value.Value, error) {
	if ordinal != 0 {
		return value.Null, fmt.Errorf("range: column ordinal %d out of range", ordinal)
	}
	return value.NewInteger(self.cur), nil
}

func (self *rangeInput) Reset(ctx context.Context) error {
	self.started = false
	return ctx.Err()
}

func (self *rangeInput) Close() error {
	return nil
}

func fnRange(_ context.Context, args []value.Value) (value.Value, error) {
	if len(args) < 2 || len(args) > 3 {
		return value.Null, fmt.Errorf("function range: expects (start, stop[, step])")
	}
	nums := []int64{}
	for _, a := range args {
		n, err := intArg("range", a)
		if err != nil {
			return value.Null, err
		}
		nums = append(nums, n)
	}
	in := &rangeInput{
		start: nums[0],
		stop:  nums[1],
		step:  1,
	}
	if len(nums) == 3 {
		in.step = nums[2]
	}
	if in.step == 0 {
		return value.Null, fmt.Errorf("function range: step must not be zero")
	}
	return value.NewObject(rows.Input(in)), nil
}

// values_of(a, b, ...) produces one row per argument
func fnValuesOf(_ context.Context, args []value.Value) (value.Value, error) {
	t := value.TypeNull
	data := make([]rows.Row, 0, len(args))
	for _, a := range args {
		if t == value.TypeNull {
			t = a.Type()
		} else if !a.IsNull() && a.Type() != t {
			t = value.TypeDynamic
		}
		data = append(data, rows.Row{a})
	}
	if t == value.TypeNull {
		t = value.TypeDynamic
	}
	in := rows.NewMemoryInput([]rows.Column{rows.NewColumn("value", t)}, data)
	return value.NewObject(rows.Input(in)), nil
}

func registerTables(r *Registry) {
	r.RegisterTable(&Table{Name: "range", Call: fnRange})
	r.RegisterTable(&Table{Name: "values_of", Call: fnValuesOf})
}

// Builtin returns a registry with the builtin library
func Builtin() *Registry {
	r := NewRegistry()
	registerScalars(r)
	registerAggregates(r)
	registerTables(r)
	return r
}
