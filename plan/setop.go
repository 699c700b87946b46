package plan

import (
	"context"
	"fmt"
	"strings"

	"github.com/krasninja/querycat-sub000/exec"
	"github.com/krasninja/querycat-sub000/rows"
	"github.com/krasninja/querycat-sub000/sql"
	"github.com/krasninja/querycat-sub000/value"
)

// buildQuery plans a query with its WITH clause. The common table
// expressions are registered in a new scope seen by the body and by every
// block nested inside of it.
func (self *Statement) buildQuery(
	ctx context.Context,
	q *sql.Query,
	parent *QueryContext,
	scope *cteScope,
) (*QueryContext, error) {
	if q.With != nil && len(q.With.List) > 0 {
		scope = newScope(scope)
		for _, cte := range q.With.List {
			if err := self.buildCTE(ctx, cte, q.With.Recursive, parent, scope); err != nil {
				return nil, err
			}
		}
	}
	return self.buildNode(ctx, q.Body, parent, scope)
}

func (self *Statement) buildNode(
	ctx context.Context,
	node sql.QueryNode,
	parent *QueryContext,
	scope *cteScope,
) (*QueryContext, error) {
	switch node.Type() {
	case sql.QuerySelect:
		q := self.newContext(parent, scope)
		q.sel = node.(*sql.Select)
		if err := q.Visit(ctx); err != nil {
			return nil, err
		}
		return q, nil

	case sql.QueryCombine:
		return self.buildCombine(ctx, node.(*sql.Combine), parent, scope)

	case sql.QueryNested:
		return self.buildQuery(ctx, node.(*sql.Query), parent, scope)

	default:
		return nil, self.err("plan", "unknown query node")
	}
}

// ----------------------------------------------------------------------------
// set operations
// ----------------------------------------------------------------------------

func combineKind(op int) exec.CombineKind {
	switch op {
	case sql.CombineUnionAll:
		return exec.CombineUnionAll
	case sql.CombineExcept:
		return exec.CombineExcept
	case sql.CombineIntersect:
		return exec.CombineIntersect
	default:
		return exec.CombineUnion
	}
}

// combineColumns names the output after the left side, a column whose type
// differs between the sides becomes dynamic
func (self *Statement) combineColumns(l, r []rows.Column) ([]rows.Column, error) {
	if len(l) != len(r) {
		return nil, self.err(
			"combine",
			"each side of a set operation must have the same number of columns, got %d and %d",
			len(l),
			len(r),
		)
	}
	out := make([]rows.Column, 0, len(l))
	for i, c := range l {
		col := rows.NewColumn(c.Name, c.Type)
		if r[i].Type != c.Type && r[i].Type != value.TypeNull {
			if c.Type == value.TypeNull {
				col.Type = r[i].Type
			} else {
				col.Type = value.TypeDynamic
			}
		}
		out = append(out, col)
	}
	return out, nil
}

func (self *Statement) buildCombine(
	ctx context.Context,
	c *sql.Combine,
	parent *QueryContext,
	scope *cteScope,
) (*QueryContext, error) {
	q := self.newContext(parent, scope)
	q.combine = c

	l, err := self.buildNode(ctx, c.L, q, scope)
	if err != nil {
		return nil, err
	}
	r, err := self.buildNode(ctx, c.R, q, scope)
	if err != nil {
		return nil, err
	}
	if err := q.visitCombine(ctx, l, r); err != nil {
		return nil, err
	}
	return q, nil
}

func (self *QueryContext) visitCombine(ctx context.Context, l, r *QueryContext) error {
	if self.hasFinalIterator {
		return nil
	}
	c := self.combine

	cols, err := self.stmt.combineColumns(l.columns, r.columns)
	if err != nil {
		return err
	}
	kind := combineKind(c.Op)
	self.columns = cols
	self.current = exec.NewCombine(l.current, r.current, kind, cols)
	self.trace("combine %s", kind)

	if c.OrderBy != nil && len(c.OrderBy.Items) > 0 {
		self.out = newLayout()
		keys := []exec.SortKey{}
		for _, item := range c.OrderBy.Items {
			ord, err := self.combineOrdinal(item.Value)
			if err != nil {
				return err
			}
			keys = append(keys, exec.SortKey{
				Unit:       &exec.ColumnRef{Frame: self.out.frame, Ordinal: ord, T: cols[ord].Type},
				Desc:       item.Desc,
				NullsFirst: item.Nulls == sql.NullsFirst,
			})
		}
		self.current = exec.NewSort(self.current, self.out.frame, keys)
		self.trace("order %d keys", len(keys))
	}

	if err := self.foldLimits(ctx, nil, c.Offset, c.Fetch); err != nil {
		return err
	}
	if self.offset > 0 || self.fetch >= 0 {
		self.current = exec.NewOffsetFetch(self.current, self.offset, self.fetch)
		self.trace("offset %d fetch %d", self.offset, self.fetch)
	}

	self.hasFinalIterator = true
	self.state = stateFinal
	return nil
}

// combineOrdinal resolves an ORDER BY item of a set operation, which may only
// name an output column by position or by name
func (self *QueryContext) combineOrdinal(e sql.Expr) (int, error) {
	if c, ok := e.(*sql.Const); ok && c.Ty == sql.ConstInt {
		if c.Int < 1 || int(c.Int) > len(self.columns) {
			return 0, self.stmt.err("order", "ORDER BY position %d is not in the select list", c.Int)
		}
		return int(c.Int) - 1, nil
	}
	if ref, ok := e.(*sql.Ref); ok && ref.Qualifier == "" {
		for i, col := range self.columns {
			if strings.EqualFold(col.Name, ref.Name) {
				return i, nil
			}
		}
	}
	return 0, self.stmt.err(
		"order",
		"ORDER BY of a set operation must name an output column: %s",
		sql.PrintExpr(e),
	)
}

// ----------------------------------------------------------------------------
//
// Common table expressions.
//
// A common table expression is planned once where it is declared and read by
// every table atom naming it, its rows are computed on first use in each run
// of the statement and kept for the rest of the run. One that reads the rows
// of an enclosing block is computed again whenever it is scanned.
//
// A recursive one must be "anchor UNION [ALL] step" where only the step names
// the expression itself. The anchor rows seed the working table, each round
// runs the step over the working table and its new rows become the next
// working table, until a round produces nothing. UNION drops rows already
// produced, which is what lets a cyclic walk terminate.
//
// ----------------------------------------------------------------------------

type cteEntry struct {
	name      string
	columns   []rows.Column
	stmt      *Statement
	q         *QueryContext
	anchor    *QueryContext
	step      *QueryContext
	union     bool
	recursive bool

	data    []rows.Row
	working []rows.Row
	run     int
	inStep  bool
	loading bool
	rounds  int
}

func (self *cteEntry) correlated() bool {
	if self.recursive {
		return self.anchor.correlated || self.step.correlated
	}
	return self.q.correlated
}

// rename applies the column list of the declaration to the body columns
func (self *Statement) rename(cte *sql.CTE, cols []rows.Column) ([]rows.Column, error) {
	out := make([]rows.Column, 0, len(cols))
	if len(cte.Columns) > 0 && len(cte.Columns) != len(cols) {
		return nil, self.err(
			"with",
			"%s declares %d columns but its query returns %d",
			cte.Name,
			len(cte.Columns),
			len(cols),
		)
	}
	for i, c := range cols {
		col := rows.NewColumn(c.Name, c.Type)
		if len(cte.Columns) > 0 {
			col.Name = cte.Columns[i]
		}
		out = append(out, col)
	}
	return out, nil
}

func (self *Statement) buildCTE(
	ctx context.Context,
	cte *sql.CTE,
	recursive bool,
	parent *QueryContext,
	scope *cteScope,
) error {
	if e, ok := scope.entries[strings.ToLower(cte.Name)]; ok {
		return self.err("with", "%s is declared more than once", e.name)
	}
	entry := &cteEntry{
		name: cte.Name,
		stmt: self,
		run:  -1,
	}

	if !recursive || !queryReferences(cte.Query, cte.Name) {
		q, err := self.buildQuery(ctx, cte.Query, parent, scope)
		if err != nil {
			return err
		}
		if q.hasOutput {
			return self.err("with", "%s cannot write INTO an output", cte.Name)
		}
		cols, err := self.rename(cte, q.columns)
		if err != nil {
			return err
		}
		entry.q = q
		entry.columns = cols
		self.owned = append(self.owned, q.current)
		scope.add(entry)
		return nil
	}

	body, ok := recursiveBody(cte.Query)
	if !ok {
		return self.err(
			"with",
			"recursive %s must be a UNION or UNION ALL of an anchor and a recursive step",
			cte.Name,
		)
	}
	if nodeReferences(body.L, cte.Name) {
		return self.err("with", "the anchor of recursive %s must not reference itself", cte.Name)
	}

	anchor, err := self.buildNode(ctx, body.L, parent, scope)
	if err != nil {
		return err
	}
	cols, err := self.rename(cte, anchor.columns)
	if err != nil {
		return err
	}
	entry.recursive = true
	entry.union = body.Op == sql.CombineUnion
	entry.anchor = anchor
	entry.columns = cols
	scope.add(entry)

	entry.inStep = true
	step, err := self.buildNode(ctx, body.R, parent, scope)
	entry.inStep = false
	if err != nil {
		return err
	}
	if len(step.columns) != len(cols) {
		return self.err(
			"with",
			"the recursive step of %s returns %d columns, its anchor %d",
			cte.Name,
			len(step.columns),
			len(cols),
		)
	}
	entry.step = step
	self.owned = append(self.owned, anchor.current, step.current)
	return nil
}

func (self *cteEntry) input(stmt *Statement) (rows.Input, error) {
	if self.recursive && self.inStep {
		return &cteInput{entry: self, working: true, pos: -1}, nil
	}
	if self.recursive && self.step == nil {
		return nil, stmt.err("with", "%s is referenced before it is complete", self.name)
	}
	return &cteInput{entry: self, pos: -1}, nil
}

func readAll(ctx context.Context, it rows.Iterator) ([]rows.Row, error) {
	if err := it.Reset(ctx); err != nil {
		return nil, err
	}
	return rows.ReadAll(ctx, it)
}

// load computes the rows of the entry unless they are current
func (self *cteEntry) load(ctx context.Context) error {
	if self.run == self.stmt.run && !self.correlated() {
		return nil
	}
	if self.loading {
		return self.stmt.err("with", "%s is read while it is computed", self.name)
	}
	self.loading = true
	defer func() { self.loading = false }()

	if !self.recursive {
		data, err := readAll(ctx, self.q.current)
		if err != nil {
			return err
		}
		self.data = data
		self.run = self.stmt.run
		return nil
	}

	data, err := self.fixpoint(ctx)
	if err != nil {
		return err
	}
	self.data = data
	self.working = nil
	self.run = self.stmt.run
	self.stmt.log.Debugw("recursive expression evaluated", "name", self.name, "rounds", self.rounds, "rows", len(data))
	return nil
}

func (self *cteEntry) fixpoint(ctx context.Context) ([]rows.Row, error) {
	seen := map[string]bool{}
	keep := func(in []rows.Row) []rows.Row {
		if !self.union {
			return in
		}
		out := in[:0]
		for _, row := range in {
			k := value.Key(row...)
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, row)
		}
		return out
	}

	anchor, err := readAll(ctx, self.anchor.current)
	if err != nil {
		return nil, err
	}
	result := keep(anchor)
	self.working = result
	self.rounds = 0

	max := self.stmt.opts.MaxRecursion
	for len(self.working) > 0 {
		if self.rounds >= max {
			return nil, fmt.Errorf(
				"recursive %s did not finish within %d rounds",
				self.name,
				max,
			)
		}
		self.rounds++

		next, err := readAll(ctx, self.step.current)
		if err != nil {
			return nil, err
		}
		next = keep(next)
		result = append(result, next...)
		self.working = next
	}
	return result, nil
}

// cteInput reads the rows of a common table expression, or the working table
// of a recursive one while its step runs
type cteInput struct {
	entry   *cteEntry
	working bool
	data    []rows.Row
	pos     int
	ready   bool
}

func (self *cteInput) Columns() []rows.Column { return self.entry.columns }

func (self *cteInput) Open(ctx context.Context) error {
	self.pos = -1
	self.ready = false
	return ctx.Err()
}

func (self *cteInput) Reset(ctx context.Context) error {
	self.pos = -1
	if self.working {
		self.data = self.entry.working
		self.ready = true
		return ctx.Err()
	}
	if err := self.entry.load(ctx); err != nil {
		return err
	}
	self.data = self.entry.data
	self.ready = true
	return nil
}

func (self *cteInput) ReadNext(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !self.ready {
		if err := self.Reset(ctx); err != nil {
			return false, err
		}
	}
	if self.pos+1 >= len(self.data) {
		self.pos = len(self.data)
		return false, nil
	}
	self.pos++
	return true, nil
}

func (self *cteInput) ReadValue(ordinal int) (value.Value, error) {
	if self.pos < 0 || self.pos >= len(self.data) {
		return value.Null, fmt.Errorf("%s: no current row", self.entry.name)
	}
	row := self.data[self.pos]
	if ordinal < 0 || ordinal >= len(row) {
		return value.Null, nil
	}
	return row[ordinal], nil
}

func (self *cteInput) Close() error { return nil }
