package plan

import (
	"context"
	"fmt"
	"strings"

	"github.com/krasninja/querycat-sub000/cache"
	"github.com/krasninja/querycat-sub000/exec"
	"github.com/krasninja/querycat-sub000/rows"
	"github.com/krasninja/querycat-sub000/sql"
	"github.com/krasninja/querycat-sub000/value"
	"github.com/pkg/errors"
)

// ----------------------------------------------------------------------------
//
// Context builder, the FROM clause of a select block.
//
// Every table atom becomes a bound source, opened right away. A table atom is
// one of
//
// 1. a subquery, planned as its own context whose iterator is read as input
// 2. a table function call, evaluated once with constant arguments
// 3. a name, looked up as a common table expression, then as a variable, then
//    as a table function without argument
//
// Atoms listed with a comma are multiplied left to right, explicit joins use
// their search condition compiled against the sources of the join alone. The
// row produced by the FROM clause is the columns of every source, in the
// order the sources were bound.
//
// ----------------------------------------------------------------------------

func (self *QueryContext) buildFrom(ctx context.Context) error {
	s := self.sel
	if s.From == nil || len(s.From.VarList) == 0 {
		self.current = exec.NewSingleRow()
		self.from = newLayout()
		self.trace("single row")
		return nil
	}

	var current rows.Iterator
	for i, item := range s.From.VarList {
		it, err := self.buildFromItem(ctx, item, i > 0)
		if err != nil {
			return err
		}
		if current == nil {
			current = it
		} else {
			current = exec.NewMultiply(current, it)
			self.trace("multiply")
		}
	}

	self.current = current
	self.from = layoutOf(self.sources)
	return nil
}

// buildFromItem builds one FROM item, inner is set when the item is driven
// once per row of another item
func (self *QueryContext) buildFromItem(ctx context.Context, item sql.FromItem, inner bool) (rows.Iterator, error) {
	switch item.Type() {
	case sql.FromTable:
		src, err := self.bindFromVar(ctx, item.(*sql.FromVar), inner)
		if err != nil {
			return nil, err
		}
		return src.iter, nil

	case sql.FromJoin:
		return self.buildJoin(ctx, item.(*sql.Join), inner)

	default:
		return nil, self.stmt.err("from", "unknown from item")
	}
}

func joinKind(kind int) exec.JoinKind {
	switch kind {
	case sql.JoinLeft:
		return exec.JoinLeft
	case sql.JoinRight:
		return exec.JoinRight
	case sql.JoinFull:
		return exec.JoinFull
	case sql.JoinCross:
		return exec.JoinCross
	default:
		return exec.JoinInner
	}
}

func (self *QueryContext) buildJoin(ctx context.Context, j *sql.Join, inner bool) (rows.Iterator, error) {
	first := len(self.sources)

	left, err := self.buildFromItem(ctx, j.L, inner || j.Kind == sql.JoinRight)
	if err != nil {
		return nil, err
	}
	split := len(self.sources)

	// a right join drives its left side once per row of its right side
	right, err := self.buildFromItem(ctx, j.R, inner || j.Kind != sql.JoinRight)
	if err != nil {
		return nil, err
	}

	kind := joinKind(j.Kind)
	if kind == exec.JoinCross {
		self.trace("multiply")
		return exec.NewMultiply(left, right), nil
	}

	l := layoutOf(self.sources[first:])
	var cond exec.Unit
	switch {
	case len(j.Using) > 0:
		cond, err = self.usingCondition(l, self.sources[first:split], self.sources[split:], j.Using)
		break
	case j.On != nil:
		if agg := findAggregate(self.stmt.registry(), j.On); agg != nil {
			return nil, self.stmt.err("from", "aggregate function %s is not allowed in a join condition", agg.Name)
		}
		cond, err = self.compile(ctx, l, j.On)
		break
	default:
		break
	}
	if err != nil {
		return nil, err
	}

	self.trace("join %s", kind)
	return exec.NewJoin(left, right, kind, l.frame, cond), nil
}

// findIn looks an unqualified column up in a subset of the bound sources
func (self *QueryContext) findIn(sources []*BoundSource, name string, side string) (slot, error) {
	var found *slot
	for _, src := range sources {
		for i, col := range src.Columns {
			if !strings.EqualFold(col.Name, name) {
				continue
			}
			if found != nil {
				return slot{}, self.stmt.err("from", "USING column %s is ambiguous on the %s side", name, side)
			}
			found = &slot{source: src, column: i}
		}
	}
	if found == nil {
		return slot{}, self.stmt.err("from", "USING column %s is not found on the %s side", name, side)
	}
	return *found, nil
}

// usingCondition is the conjunction of left.c = right.c for every column,
// both columns are kept in the row
func (self *QueryContext) usingCondition(
	l *layout,
	left, right []*BoundSource,
	names []string,
) (exec.Unit, error) {
	pairs := [][2]exec.Unit{}
	for _, name := range names {
		ls, err := self.findIn(left, name, "left")
		if err != nil {
			return nil, err
		}
		rs, err := self.findIn(right, name, "right")
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, [2]exec.Unit{
			&exec.ColumnRef{Frame: l.frame, Ordinal: l.ords[ls]},
			&exec.ColumnRef{Frame: l.frame, Ordinal: l.ords[rs]},
		})
	}

	return &exec.Func{
		T: value.TypeBoolean,
		F: func(ctx context.Context) (value.Value, error) {
			for _, p := range pairs {
				lv, err := p[0].Eval(ctx)
				if err != nil {
					return value.Null, err
				}
				rv, err := p[1].Eval(ctx)
				if err != nil {
					return value.Null, err
				}
				if !value.Equal(lv, rv) {
					return value.NewBoolean(false), nil
				}
			}
			return value.NewBoolean(true), nil
		},
	}, nil
}

// ----------------------------------------------------------------------------
// table atoms

// boundInput is what a table atom resolved to, before it is attached
type boundInput struct {
	name      string
	identity  string
	input     rows.Input
	cacheable bool
}

func (self *QueryContext) bindFromVar(ctx context.Context, fv *sql.FromVar, inner bool) (*BoundSource, error) {
	var bi *boundInput
	var err error

	switch {
	case fv.Query != nil:
		bi, err = self.derivedTable(ctx, fv)
		break
	case fv.Call != nil:
		bi, err = self.tableCall(ctx, fv.Call, fv.Qualifier())
		break
	default:
		bi, err = self.namedTable(ctx, fv)
		break
	}
	if err != nil {
		return nil, err
	}
	if fv.Alias != "" {
		bi.name = fv.Alias
	}
	return self.bindSource(ctx, bi, inner)
}

func (self *QueryContext) derivedTable(ctx context.Context, fv *sql.FromVar) (*boundInput, error) {
	child, err := self.stmt.buildQuery(ctx, fv.Query, self, self.scope)
	if err != nil {
		return nil, err
	}
	if child.hasOutput {
		return nil, self.stmt.err("from", "a derived table cannot write INTO an output")
	}
	return &boundInput{
		identity:  fmt.Sprintf("query:%s:%s", self.stmt.Id, sql.PrintQuery(fv.Query)),
		input:     rows.NewIteratorInput(child.current),
		cacheable: !child.correlated,
	}, nil
}

func (self *QueryContext) namedTable(ctx context.Context, fv *sql.FromVar) (*boundInput, error) {
	if e := self.scope.lookup(fv.Name); e != nil {
		in, err := e.input(self.stmt)
		if err != nil {
			return nil, err
		}
		return &boundInput{
			name:     fv.Name,
			identity: "cte:" + e.name,
			input:    in,
		}, nil
	}

	if v, ok := self.stmt.variable(fv.Name); ok {
		in, err := self.classify(fv.Name, v)
		if err != nil {
			return nil, err
		}
		return &boundInput{
			name:      fv.Name,
			identity:  VariableIdentity(fv.Name),
			input:     in,
			cacheable: true,
		}, nil
	}

	if _, ok := self.stmt.registry().Table(fv.Name); ok {
		return self.tableCall(ctx, &sql.Call{Name: fv.Name}, fv.Name)
	}

	return nil, self.stmt.err("from", "unknown table %s", fv.Name)
}

func (self *QueryContext) tableCall(ctx context.Context, call *sql.Call, name string) (*boundInput, error) {
	f, ok := self.stmt.registry().Table(call.Name)
	if !ok {
		return nil, self.stmt.err("from", "unknown table function %s", call.Name)
	}

	args := make([]value.Value, 0, len(call.Parameters))
	for _, p := range call.Parameters {
		v, err := self.constant(ctx, "argument of "+call.Name, p)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}

	v, err := f.Call(ctx, args)
	if err != nil {
		return nil, errors.Wrapf(err, "call table function %s", call.Name)
	}
	in, err := self.classify(call.Name, v)
	if err != nil {
		return nil, err
	}
	return &boundInput{
		name:      name,
		identity:  sql.PrintExpr(call),
		input:     in,
		cacheable: true,
	}, nil
}

// VariableIdentity is the cache identity of the sources reading a variable
func VariableIdentity(name string) string {
	return "var:" + strings.ToLower(name)
}

// classify turns the result of a table function or a variable into an input,
// a scalar becomes a single row input
func (self *QueryContext) classify(name string, v value.Value) (rows.Input, error) {
	if v.Type() != value.TypeObject {
		return rows.NewSingleValueInput("value", v), nil
	}

	switch o := v.Object().(type) {
	case *rows.Table:
		return o.NewInput(), nil

	case rows.Input:
		if self.stmt.bound[o] {
			return nil, self.stmt.err("from", "input %s is already used by this statement", name)
		}
		self.stmt.bound[o] = true
		return o, nil

	case rows.Iterator:
		return rows.NewIteratorInput(o), nil

	case rows.Output:
		return nil, self.stmt.err("from", "%s is an output and cannot be read", name)

	default:
		return rows.NewSingleValueInput("value", v), nil
	}
}

// bindSource opens the input and attaches it to the block
func (self *QueryContext) bindSource(ctx context.Context, bi *boundInput, inner bool) (*BoundSource, error) {
	for _, src := range self.sources {
		if bi.name != "" && strings.EqualFold(src.Name, bi.name) {
			return nil, self.stmt.err("from", "source name %s is used more than once, use an alias", bi.name)
		}
	}

	input := bi.input
	storage := self.stmt.opts.Storage
	cached := false
	if bi.cacheable && storage != nil && (self.parent != nil || inner) {
		input = cache.NewInput(input, storage, bi.identity)
		cached = true
	}

	if err := input.Open(ctx); err != nil {
		return nil, errors.Wrapf(err, "open source %s", bi.name)
	}

	src := &BoundSource{
		Name:     bi.name,
		Identity: bi.identity,
		Input:    input,
		Columns:  rows.WithSource(input.Columns(), bi.name),
		Limit:    -1,
		Cached:   cached,
		index:    len(self.stmt.sources),
	}
	if ki, ok := input.(rows.KeysInput); ok {
		src.KeyColumns = ki.KeyColumns()
	}
	src.iter = exec.NewInputIterator(input, src.Columns)
	src.iter.OnStart(src.start)

	self.sources = append(self.sources, src)
	self.stmt.sources = append(self.stmt.sources, src)
	self.trace("scan %s", src.describe())

	self.stmt.log.Debugw(
		"source bound",
		"context", self.Id,
		"source", src.Name,
		"identity", src.Identity,
		"cached", cached,
		"columns", len(src.Columns),
	)
	return src, nil
}

func (self *BoundSource) describe() string {
	name := self.Name
	if name == "" {
		name = fmt.Sprintf("#%d", self.index)
	}
	if self.Cached {
		return name + " (cached)"
	}
	return name
}
