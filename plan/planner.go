package plan

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/krasninja/querycat-sub000/exec"
	"github.com/krasninja/querycat-sub000/rows"
	"github.com/krasninja/querycat-sub000/sql"
	"github.com/krasninja/querycat-sub000/value"
)

// The pipeline of a select block is assembled by a state machine, every state
// appends its operator, if any, onto the current iterator of the context.
// States run in this exact order and at most once.
const (
	stateFrom = iota
	stateStat
	stateResolve
	stateWhere
	statePrefetch
	stateGroup
	stateProject
	statePushdown
	stateDistinct
	stateOrder
	stateOutputTarget
	stateReproject
	stateOffsetFetch
	stateInto
	stateFinal
)

var stateNames = []string{
	"from",
	"stat",
	"resolve",
	"where",
	"prefetch",
	"group",
	"project",
	"pushdown",
	"distinct",
	"order",
	"output-target",
	"reproject",
	"offset-fetch",
	"into",
	"final",
}

// Visit runs the remaining states of the block, a finalized block is left as
// it is
func (self *QueryContext) Visit(ctx context.Context) error {
	if self.hasFinalIterator {
		return nil
	}
	if self.sel == nil {
		return self.stmt.err("plan", "block %d is not a select", self.Id)
	}

	for self.state < stateFinal {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := self.visitState(ctx); err != nil {
			return err
		}
		self.state++
	}

	self.hasFinalIterator = true
	self.stmt.log.Debugw(
		"block planned",
		"context", self.Id,
		"ops", strings.Join(self.ops, " -> "),
	)
	return nil
}

func (self *QueryContext) visitState(ctx context.Context) error {
	switch self.state {
	case stateFrom:
		return self.buildFrom(ctx)
	case stateStat:
		return self.visitStat()
	case stateResolve:
		return self.visitResolve(ctx)
	case stateWhere:
		return self.visitWhere(ctx)
	case statePrefetch:
		return self.visitPrefetch()
	case stateGroup:
		return self.visitGroup(ctx)
	case stateProject:
		return self.visitProject(ctx)
	case statePushdown:
		return self.visitPushdown(ctx)
	case stateDistinct:
		return self.visitDistinct()
	case stateOrder:
		return self.visitOrder()
	case stateOutputTarget:
		return self.visitOutputTarget(ctx)
	case stateReproject:
		return self.visitReproject()
	case stateOffsetFetch:
		return self.visitOffsetFetch()
	case stateInto:
		return self.visitInto()
	default:
		return nil
	}
}

// ----------------------------------------------------------------------------
// stat, every source reports its data errors to the statement counter

func (self *QueryContext) visitStat() error {
	for _, src := range self.sources {
		src.iter.SetErrorCounter(self.stmt.errors)
	}
	return nil
}

// ----------------------------------------------------------------------------
// resolve, expand the projection and find the aggregates

func (self *QueryContext) visitResolve(ctx context.Context) error {
	s := self.sel
	if err := self.checkPlacement(); err != nil {
		return err
	}
	if err := self.expandProjection(); err != nil {
		return err
	}
	if err := self.anaAgg(ctx); err != nil {
		return err
	}
	return self.foldLimits(ctx, s.Top, s.Offset, s.Fetch)
}

func (self *QueryContext) expandProjection() error {
	s := self.sel
	if s.Projection == nil {
		return self.stmt.err("resolve", "select without projection")
	}

	for _, v := range s.Projection.ValueList {
		switch v.Type() {
		case sql.SelectVarStar:
			star := v.(*sql.Star)
			n := 0
			for _, src := range self.sources {
				if star.Qualifier != "" && !strings.EqualFold(src.Name, star.Qualifier) {
					continue
				}
				for i, col := range src.Columns {
					sl := slot{source: src, column: i}
					self.output = append(self.output, projected{
						column: col,
						slot:   &sl,
					})
				}
				n++
			}
			if n == 0 {
				if star.Qualifier != "" {
					return self.stmt.err("resolve", "unknown source %s in %s.*", star.Qualifier, star.Qualifier)
				}
				return self.stmt.err("resolve", "* requires a FROM clause")
			}
			break

		default:
			col := v.(*sql.Col)
			p := projected{
				expr:  col.Value,
				alias: col.As,
			}
			if ref, ok := col.Value.(*sql.Ref); ok {
				sl, found, err := self.findSlot(ref)
				if err != nil {
					return err
				}
				if found {
					p.slot = &sl
				}
			}
			self.output = append(self.output, p)
			break
		}
	}
	return nil
}

// foldLimits evaluates TOP, OFFSET and FETCH, none of them may read a row
func (self *QueryContext) foldLimits(ctx context.Context, top, offset, fetch sql.Expr) error {
	if offset != nil {
		n, err := self.limitValue(ctx, "OFFSET", offset)
		if err != nil {
			return err
		}
		if n > 0 {
			self.offset = n
		}
	}
	switch {
	case fetch != nil:
		n, err := self.limitValue(ctx, "FETCH", fetch)
		if err != nil {
			return err
		}
		self.fetch = n
		break
	case top != nil:
		n, err := self.limitValue(ctx, "TOP", top)
		if err != nil {
			return err
		}
		self.fetch = n
		break
	default:
		break
	}
	return nil
}

// limitValue returns -1 for a null limit
func (self *QueryContext) limitValue(ctx context.Context, what string, e sql.Expr) (int64, error) {
	v, err := self.constant(ctx, what, e)
	if err != nil {
		return 0, err
	}
	if v.IsNull() {
		return -1, nil
	}
	iv, err := value.Cast(v, value.TypeInteger)
	if err != nil {
		return 0, self.stmt.err("limit", "%s must be an integer: %s", what, v)
	}
	if iv.Integer() < 0 {
		return 0, self.stmt.err("limit", "%s must not be negative: %d", what, iv.Integer())
	}
	return iv.Integer(), nil
}

// ----------------------------------------------------------------------------
// where

func (self *QueryContext) visitWhere(ctx context.Context) error {
	s := self.sel
	if s.Where == nil {
		return nil
	}
	cond, err := self.compile(ctx, self.from, s.Where.Condition)
	if err != nil {
		return err
	}
	self.current = exec.NewFilter(self.current, self.from.frame, cond)
	self.trace("filter")
	return nil
}

// ----------------------------------------------------------------------------
// prefetch, sources only read the columns the block refers to. The walk is
// static and also covers nested subqueries, which may read more columns than
// needed but never less.

func (self *QueryContext) visitPrefetch() error {
	s := self.sel
	marks := map[*BoundSource]map[int]bool{}
	mark := func(sl slot) {
		m, ok := marks[sl.source]
		if !ok {
			m = make(map[int]bool)
			marks[sl.source] = m
		}
		m[sl.column] = true
	}

	w := &queryWalker{
		expr: func(e sql.Expr) {
			if ref, ok := e.(*sql.Ref); ok {
				if sl, found, err := self.findSlot(ref); err == nil && found {
					mark(sl)
				}
			}
		},
	}
	for _, e := range selectExprs(s) {
		w.deep(e)
	}
	if s.From != nil {
		for _, j := range joins(s.From.VarList) {
			w.deep(j.On)
			for _, name := range j.Using {
				for _, src := range self.sources {
					for i, col := range src.Columns {
						if strings.EqualFold(col.Name, name) {
							mark(slot{source: src, column: i})
						}
					}
				}
			}
		}
	}
	for _, p := range self.output {
		if p.slot != nil {
			mark(*p.slot)
		}
	}

	for _, src := range self.sources {
		ords := []int{}
		for o := range marks[src] {
			ords = append(ords, o)
		}
		sort.Ints(ords)
		if !src.iter.SetPrefetch(ords) {
			self.stmt.log.Debugw("prefetch unchanged", "context", self.Id, "source", src.Name)
			continue
		}
		self.trace("prefetch %s %v", src.describe(), ords)
	}
	return nil
}

// ----------------------------------------------------------------------------
// group and having

func (self *QueryContext) aliasMap() map[string]sql.Expr {
	out := map[string]sql.Expr{}
	for _, p := range self.output {
		if p.alias != "" && p.expr != nil {
			out[strings.ToLower(p.alias)] = p.expr
		}
	}
	return out
}

func (self *QueryContext) compileProjected(ctx context.Context, l *layout, p projected) (exec.Unit, error) {
	if p.expr == nil {
		col := p.slot.source.Columns[p.slot.column]
		return self.columnRef(l, *p.slot, &sql.Ref{Qualifier: col.SourceName, Name: col.Name})
	}
	return self.compile(ctx, l, p.expr)
}

// groupKey compiles a GROUP BY item, which is a position in the select list,
// an alias of it or an expression over the FROM rows
func (self *QueryContext) groupKey(ctx context.Context, item sql.Expr) (exec.Unit, error) {
	if c, ok := item.(*sql.Const); ok && c.Ty == sql.ConstInt {
		if c.Int < 1 || int(c.Int) > len(self.output) {
			return nil, self.stmt.err("group", "GROUP BY position %d is not in the select list", c.Int)
		}
		return self.compileProjected(ctx, self.from, self.output[c.Int-1])
	}
	if ref, ok := item.(*sql.Ref); ok && ref.Qualifier == "" && !self.owns(ref) {
		for _, p := range self.output {
			if p.alias != "" && p.expr != nil && strings.EqualFold(p.alias, ref.Name) {
				return self.compile(ctx, self.from, p.expr)
			}
		}
	}
	return self.compile(ctx, self.from, item)
}

func (self *QueryContext) visitGroup(ctx context.Context) error {
	s := self.sel
	if !self.grouping() {
		self.group = self.from.share(self.from.frame)
		self.group.aliases = self.aliasMap()
		return nil
	}

	keys := []exec.Unit{}
	if s.GroupBy != nil {
		for _, item := range s.GroupBy.Name {
			u, err := self.groupKey(ctx, item)
			if err != nil {
				return err
			}
			keys = append(keys, u)
		}
	}

	self.current = exec.NewGroup(self.current, self.from.frame, keys, self.aggList)
	self.group = self.from.share(exec.NewFrame())
	self.group.grouped = true
	self.group.aliases = self.aliasMap()
	self.trace("group %d keys %d aggregates", len(keys), len(self.aggList))

	if s.Having != nil {
		cond, err := self.compile(ctx, self.group, s.Having.Condition)
		if err != nil {
			return err
		}
		self.current = exec.NewFilter(self.current, self.group.frame, cond)
		self.trace("having")
	}
	return nil
}

// ----------------------------------------------------------------------------
// project

func (self *QueryContext) outputName(i int, p projected) string {
	switch {
	case p.alias != "":
		return p.alias
	case p.expr == nil:
		return p.column.Name
	default:
		break
	}
	switch e := p.expr.(type) {
	case *sql.Ref:
		return e.Name
	case *sql.Call:
		return strings.ToLower(e.Name)
	default:
		return fmt.Sprintf("column%d", i+1)
	}
}

// sortOrdinal resolves an ORDER BY or DISTINCT ON item into a position of
// the projected row: a select list position, an alias, a projected column,
// the text of a projected expression, or else a new hidden column
func (self *QueryContext) sortOrdinal(e sql.Expr, vis int) (int, error) {
	if c, ok := e.(*sql.Const); ok && c.Ty == sql.ConstInt {
		if c.Int < 1 || int(c.Int) > vis {
			return 0, self.stmt.err("order", "ORDER BY position %d is not in the select list", c.Int)
		}
		return int(c.Int) - 1, nil
	}

	if ref, ok := e.(*sql.Ref); ok {
		if ref.Qualifier == "" {
			for i, p := range self.output[:vis] {
				if p.alias != "" && strings.EqualFold(p.alias, ref.Name) {
					return i, nil
				}
			}
		}
		sl, found, err := self.findSlot(ref)
		if err != nil {
			return 0, err
		}
		if found {
			if i, ok := self.redirect[sl]; ok {
				return i, nil
			}
		}
	}

	text := sql.PrintExpr(e)
	for i, p := range self.output[:vis] {
		if p.expr != nil && sql.PrintExpr(p.expr) == text {
			return i, nil
		}
	}

	self.output = append(self.output, projected{
		expr:   e,
		hidden: true,
	})
	return len(self.output) - 1, nil
}

func (self *QueryContext) visitProject(ctx context.Context) error {
	s := self.sel
	vis := len(self.output)

	for i, p := range self.output {
		if p.slot == nil {
			continue
		}
		if _, ok := self.redirect[*p.slot]; !ok {
			self.redirect[*p.slot] = i
		}
	}

	for _, e := range s.DistinctOn {
		ord, err := self.sortOrdinal(e, vis)
		if err != nil {
			return err
		}
		self.distinct = append(self.distinct, ord)
	}
	if s.OrderBy != nil {
		for _, item := range s.OrderBy.Items {
			ord, err := self.sortOrdinal(item.Value, vis)
			if err != nil {
				return err
			}
			self.order = append(self.order, sortItem{
				ordinal:    ord,
				desc:       item.Desc,
				nullsFirst: item.Nulls == sql.NullsFirst,
			})
		}
	}

	cols := make([]rows.Column, 0, len(self.output))
	units := make([]exec.Unit, 0, len(self.output))
	for i, p := range self.output {
		u, err := self.compileProjected(ctx, self.group, p)
		if err != nil {
			return err
		}
		col := rows.NewColumn(self.outputName(i, p), u.Type())
		if p.slot != nil {
			col.SourceName = p.slot.source.Name
		}
		self.output[i].column = col
		cols = append(cols, col)
		units = append(units, u)
	}

	self.current = exec.NewProject(self.current, self.group.frame, cols, units)
	self.out = newLayout()
	self.trace("project %d columns", vis)
	return nil
}

func (self *QueryContext) outRef(ord int) exec.Unit {
	return &exec.ColumnRef{
		Frame:   self.out.frame,
		Ordinal: ord,
		T:       self.output[ord].column.Type,
	}
}

// ----------------------------------------------------------------------------
// distinct and order

func (self *QueryContext) visitDistinct() error {
	s := self.sel
	var keys []exec.Unit
	switch {
	case len(self.distinct) > 0:
		for _, ord := range self.distinct {
			keys = append(keys, self.outRef(ord))
		}
		break
	case s.Distinct:
		if vis := self.visible(); vis < len(self.output) {
			for i := 0; i < vis; i++ {
				keys = append(keys, self.outRef(i))
			}
		}
		break
	default:
		return nil
	}
	self.current = exec.NewDistinct(self.current, self.out.frame, keys)
	self.trace("distinct")
	return nil
}

func (self *QueryContext) visitOrder() error {
	if len(self.order) == 0 {
		return nil
	}
	keys := make([]exec.SortKey, 0, len(self.order))
	for _, item := range self.order {
		keys = append(keys, exec.SortKey{
			Unit:       self.outRef(item.ordinal),
			Desc:       item.desc,
			NullsFirst: item.nullsFirst,
		})
	}
	self.current = exec.NewSort(self.current, self.out.frame, keys)
	self.trace("order %d keys", len(keys))
	return nil
}

// ----------------------------------------------------------------------------
// output target, the INTO clause names a table function returning an output

func (self *QueryContext) visitOutputTarget(ctx context.Context) error {
	into := self.sel.Into
	if into == nil {
		return nil
	}
	if self.parent != nil {
		return self.stmt.err("into", "INTO is only allowed in the outermost query")
	}

	f, ok := self.stmt.registry().Table(into.Name)
	if !ok {
		return self.stmt.err("into", "unknown output function %s", into.Name)
	}
	args := make([]value.Value, 0, len(into.Parameters))
	for _, p := range into.Parameters {
		v, err := self.constant(ctx, "argument of "+into.Name, p)
		if err != nil {
			return err
		}
		args = append(args, v)
	}
	v, err := f.Call(ctx, args)
	if err != nil {
		return err
	}
	out, ok := v.Object().(rows.Output)
	if v.Type() != value.TypeObject || !ok {
		return self.stmt.err("into", "%s does not return an output", into.Name)
	}
	self.into = out
	self.hasOutput = true
	return nil
}

// ----------------------------------------------------------------------------
// reproject drops the hidden columns, then offset/fetch and into

func (self *QueryContext) visitReproject() error {
	vis := self.visible()
	cols := make([]rows.Column, 0, vis)
	for _, p := range self.output {
		if !p.hidden {
			cols = append(cols, p.column)
		}
	}
	self.columns = cols

	if vis == len(self.output) {
		return nil
	}
	frame := exec.NewFrame()
	units := make([]exec.Unit, 0, vis)
	for i := 0; i < vis; i++ {
		units = append(units, &exec.ColumnRef{Frame: frame, Ordinal: i, T: cols[i].Type})
	}
	self.current = exec.NewProject(self.current, frame, cols, units)
	self.trace("reproject %d columns", vis)
	return nil
}

func (self *QueryContext) visitOffsetFetch() error {
	if self.offset == 0 && self.fetch < 0 {
		return nil
	}
	self.current = exec.NewOffsetFetch(self.current, self.offset, self.fetch)
	self.trace("offset %d fetch %d", self.offset, self.fetch)
	return nil
}

func (self *QueryContext) visitInto() error {
	if self.into == nil {
		return nil
	}
	self.current = exec.NewOutput(self.current, self.into)
	self.trace("into %s", self.sel.Into.Name)
	return nil
}
