package function

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/krasninja/querycat-sub000/value"
)

// Scalar is a row level function
type Scalar struct {
	Name    string
	MinArgs int
	MaxArgs int // negative for variadic

	// Pure functions return the same value for the same arguments, calls to a
	// pure function with constant arguments are folded at plan time
	Pure       bool
	ReturnType func(args []value.DataType) value.DataType
	Call       func(ctx context.Context, args []value.Value) (value.Value, error)
}

// Accumulator is the running state of one aggregate over one group, New is
// the initialize step
type Accumulator interface {
	Accumulate(args []value.Value) error
	Finalize() value.Value
}

type Aggregate struct {
	Name       string
	MinArgs    int
	MaxArgs    int
	ReturnType func(args []value.DataType) value.DataType

	// Check rejects argument types at plan time, nil accepts anything
	Check func(args []value.DataType) error
	New   func() Accumulator
}

// Table is a function usable in a FROM or INTO clause. It returns either a
// scalar, or an object value holding a rows.Input, rows.Iterator or
// rows.Output.
type Table struct {
	Name string
	Call func(ctx context.Context, args []value.Value) (value.Value, error)
}

type Registry struct {
	scalars    map[string]*Scalar
	aggregates map[string]*Aggregate
	tables     map[string]*Table
}

func NewRegistry() *Registry {
	return &Registry{
		scalars:    make(map[string]*Scalar),
		aggregates: make(map[string]*Aggregate),
		tables:     make(map[string]*Table),
	}
}

func key(name string) string {
	return strings.ToLower(name)
}

func (self *Registry) RegisterScalar(f *Scalar) {
	self.scalars[key(f.Name)] = f
}

func (self *Registry) RegisterAggregate(f *Aggregate) {
	self.aggregates[key(f.Name)] = f
}

func (self *Registry) RegisterTable(f *Table) {
	self.tables[key(f.Name)] = f
}

func (self *Registry) Scalar(name string) (*Scalar, bool) {
	f, ok := self.scalars[key(name)]
	return f, ok
}

func (self *Registry) Aggregate(name string) (*Aggregate, bool) {
	f, ok := self.aggregates[key(name)]
	return f, ok
}

func (self *Registry) Table(name string) (*Table, bool) {
	f, ok := self.tables[key(name)]
	return f, ok
}

func (self *Registry) IsAggregate(name string) bool {
	_, ok := self.aggregates[key(name)]
	return ok
}

// Names lists every registered function, sorted
func (self *Registry) Names() []string {
	out := []string{}
	for n := range self.scalars {
		out = append(out, n)
	}
	for n := range self.aggregates {
		out = append(out, n)
	}
	for n := range self.tables {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func checkArity(name string, min, max, n int) error {
	if n < min || (max >= 0 && n > max) {
		return fmt.Errorf("function %s: invalid number of arguments %d", name, n)
	}
	return nil
}

func (self *Scalar) CheckArity(n int) error {
	return checkArity(self.Name, self.MinArgs, self.MaxArgs, n)
}

func (self *Aggregate) CheckArity(n int) error {
	return checkArity(self.Name, self.MinArgs, self.MaxArgs, n)
}

func (self *Aggregate) CheckTypes(args []value.DataType) error {
	if self.Check == nil {
		return nil
	}
	return self.Check(args)
}

func (self *Scalar) Type(args []value.DataType) value.DataType {
	if self.ReturnType == nil {
		return value.TypeDynamic
	}
	return self.ReturnType(args)
}

func (self *Aggregate) Type(args []value.DataType) value.DataType {
	if self.ReturnType == nil {
		return value.TypeDynamic
	}
	return self.ReturnType(args)
}

// ----------------------------------------------------------------------------
// return type helpers

func Returns(t value.DataType) func([]value.DataType) value.DataType {
	return func([]value.DataType) value.DataType { return t }
}

// FirstArgType returns the type of the first argument
func FirstArgType(args []value.DataType) value.DataType {
	if len(args) == 0 {
		return value.TypeDynamic
	}
	return args[0]
}

// ----------------------------------------------------------------------------
// distinct accumulator, used for f(DISTINCT x)

type distinctAccumulator struct {
	inner Accumulator
	seen  map[string]bool
}

func NewDistinct(inner Accumulator) Accumulator {
	return &distinctAccumulator{
		inner: inner,
		seen:  make(map[string]bool),
	}
}

func (self *distinctAccumulator) Accumulate(args []value.Value) error {
	k := value.Key(args...)
	if self.seen[k] {
		return nil
	}
	self.seen[k] = true
	return self.inner.Accumulate(args)
}

func (self *distinctAccumulator) Finalize() value.Value {
	return self.inner.Finalize()
}
