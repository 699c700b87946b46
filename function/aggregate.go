package function

import (
	"github.com/krasninja/querycat-sub000/value"
	"github.com/shopspring/decimal"
)

// count(*) is compiled with no argument and counts every row, count(x) counts
// the non null values of x
type countAcc struct {
	n int64
}

func (self *countAcc) Accumulate(args []value.Value) error {
	if len(args) == 0 || !args[0].IsNull() {
		self.n++
	}
	return nil
}

func (self *countAcc) Finalize() value.Value {
	return value.NewInteger(self.n)
}

// summable reports whether sum and avg accept the value, a null is skipped
// before the check
func summable(t value.DataType) bool {
	return t.IsNumber() || t == value.TypeInterval
}

type sumAcc struct {
	sum value.Value
}

func (self *sumAcc) Accumulate(args []value.Value) error {
	if args[0].IsNull() {
		return nil
	}
	if !summable(args[0].Type()) {
		return &value.TypeError{Op: "sum", Left: args[0].Type(), Right: value.TypeNull}
	}
	v, err := value.SumNumeric(self.sum, args[0])
	if err != nil {
		return err
	}
	self.sum = v
	return nil
}

func (self *sumAcc) Finalize() value.Value {
	return self.sum
}

// avgAcc sums exactly in decimal. Infinite and NaN floats have no decimal
// form, once one shows up the average is the float sum of those alone.
type avgAcc struct {
	sum    decimal.Decimal
	n      int64
	odd    float64
	hasOdd bool
}

func (self *avgAcc) Accumulate(args []value.Value) error {
	v := args[0]
	if v.IsNull() {
		return nil
	}
	if !v.Type().IsNumber() {
		return &value.TypeError{Op: "avg", Left: v.Type(), Right: value.TypeNull}
	}
	self.n++
	d, ok := v.AsNumeric()
	if !ok {
		self.odd += v.Float()
		self.hasOdd = true
		return nil
	}
	self.sum = self.sum.Add(d)
	return nil
}

func (self *avgAcc) Finalize() value.Value {
	if self.n == 0 {
		return value.Null
	}
	if self.hasOdd {
		return value.NewFloat(self.odd)
	}
	f, _ := self.sum.Div(decimal.NewFromInt(self.n)).Float64()
	return value.NewFloat(f)
}

type minMaxAcc struct {
	max bool
	cur value.Value
}

func (self *minMaxAcc) Accumulate(args []value.Value) error {
	v := args[0]
	if v.IsNull() {
		return nil
	}
	if self.cur.IsNull() {
		self.cur = v
		return nil
	}
	c, err := value.Compare(v, self.cur)
	if err != nil {
		return err
	}
	if (self.max && c > 0) || (!self.max && c < 0) {
		self.cur = v
	}
	return nil
}

func (self *minMaxAcc) Finalize() value.Value {
	return self.cur
}

func sumType(args []value.DataType) value.DataType {
	t := FirstArgType(args)
	if summable(t) {
		return t
	}
	return value.TypeDynamic
}

// checkSummable rejects argument types sum and avg can never add, values only
// known at run time are checked per row
func checkSummable(name string, numberOnly bool) func([]value.DataType) error {
	return func(args []value.DataType) error {
		t := FirstArgType(args)
		if t == value.TypeDynamic || t == value.TypeNull || t.IsNumber() {
			return nil
		}
		if t == value.TypeInterval && !numberOnly {
			return nil
		}
		return &value.TypeError{Op: name, Left: t, Right: value.TypeNull}
	}
}

func registerAggregates(r *Registry) {
	r.RegisterAggregate(&Aggregate{
		Name:       "count",
		MinArgs:    0,
		MaxArgs:    1,
		ReturnType: Returns(value.TypeInteger),
		New:        func() Accumulator { return &countAcc{} },
	})
	r.RegisterAggregate(&Aggregate{
		Name:       "sum",
		MinArgs:    1,
		MaxArgs:    1,
		ReturnType: sumType,
		Check:      checkSummable("sum", false),
		New:        func() Accumulator { return &sumAcc{} },
	})
	r.RegisterAggregate(&Aggregate{
		Name:       "avg",
		MinArgs:    1,
		MaxArgs:    1,
		ReturnType: Returns(value.TypeFloat),
		Check:      checkSummable("avg", true),
		New:        func() Accumulator { return &avgAcc{} },
	})
	r.RegisterAggregate(&Aggregate{
		Name:       "min",
		MinArgs:    1,
		MaxArgs:    1,
		ReturnType: FirstArgType,
		New:        func() Accumulator { return &minMaxAcc{} },
	})
	r.RegisterAggregate(&Aggregate{
		Name:       "max",
		MinArgs:    1,
		MaxArgs:    1,
		ReturnType: FirstArgType,
		New:        func() Accumulator { return &minMaxAcc{max: true} },
	})
}
