package plan

import (
	"context"
	"strings"

	"github.com/krasninja/querycat-sub000/exec"
	"github.com/krasninja/querycat-sub000/sql"
	"github.com/krasninja/querycat-sub000/value"
)

// ----------------------------------------------------------------------------
//
// Condition pushdown. The WHERE clause is split along its AND spine, a term
// below an OR is never pushed. A term of one of the shapes
//
//   1) column <cmp> expr, or expr <cmp> column with the operator flipped
//   2) column BETWEEN expr AND expr, pushed as >= and <=
//   3) column IN (expr, ...), pushed as = with every value
//
// whose other side does not read a row of this block becomes a condition of
// the source owning the column. The condition values are evaluated right
// before every scan of the source, so they may read the row of an outer
// block. Sources with a matching key column apply the condition themselves,
// the others only see it as a hint. The filter itself is kept in place.
//
// A limit hint is pushed to a lone source when nothing between the scan and
// the limit can drop, merge or reorder rows.
//
// ----------------------------------------------------------------------------

func (self *QueryContext) visitPushdown(ctx context.Context) error {
	if s := self.sel; s.Where != nil {
		for _, term := range conjuncts(s.Where.Condition) {
			if err := self.pushTerm(ctx, term); err != nil {
				return err
			}
		}
	}
	self.pushLimit()
	return self.checkRequiredKeys()
}

// conjuncts lists the terms of the AND spine of the expression
func conjuncts(e sql.Expr) []sql.Expr {
	if b, ok := e.(*sql.Binary); ok && b.Op == sql.TkAnd {
		return append(conjuncts(b.L), conjuncts(b.R)...)
	}
	return []sql.Expr{e}
}

// keyTarget returns the slot of an expression that is a plain column of this
// block
func (self *QueryContext) keyTarget(e sql.Expr) (slot, bool) {
	ref, ok := e.(*sql.Ref)
	if !ok {
		return slot{}, false
	}
	sl, found, err := self.findSlot(ref)
	if err != nil || !found {
		return slot{}, false
	}
	return sl, true
}

// pushable reports whether the value side can be evaluated before the scan
func (self *QueryContext) pushable(e sql.Expr) bool {
	return !self.refersOwn(e) &&
		findAggregate(self.stmt.registry(), e) == nil &&
		len(sql.Subqueries(e)) == 0
}

func (self *QueryContext) pushTerm(ctx context.Context, term sql.Expr) error {
	switch t := term.(type) {
	case *sql.Binary:
		op, ok := binaryOp(t.Op)
		if !ok || !op.IsComparison() {
			return nil
		}
		if sl, ok := self.keyTarget(t.L); ok && self.pushable(t.R) {
			return self.push(ctx, sl, op, t.R)
		}
		if sl, ok := self.keyTarget(t.R); ok && self.pushable(t.L) {
			return self.push(ctx, sl, op.Flip(), t.L)
		}
		return nil

	case *sql.Between:
		if t.Not {
			return nil
		}
		sl, ok := self.keyTarget(t.Operand)
		if !ok || !self.pushable(t.Lower) || !self.pushable(t.Upper) {
			return nil
		}
		if kc, ok := sl.source.keyColumn(sl.source.Columns[sl.column].Name); ok &&
			!(kc.Supports(value.OpGe) && kc.Supports(value.OpLe)) {
			return nil
		}
		if err := self.push(ctx, sl, value.OpGe, t.Lower); err != nil {
			return err
		}
		return self.push(ctx, sl, value.OpLe, t.Upper)

	case *sql.In:
		if t.Not || t.Query != nil || len(t.List) == 0 {
			return nil
		}
		sl, ok := self.keyTarget(t.Operand)
		if !ok {
			return nil
		}
		for _, e := range t.List {
			if !self.pushable(e) {
				return nil
			}
		}
		return self.push(ctx, sl, value.OpEq, t.List...)

	default:
		return nil
	}
}

// push compiles the value side and appends the condition to the source, a
// value side that does not compile is left to the filter
func (self *QueryContext) push(ctx context.Context, sl slot, op value.Operation, exprs ...sql.Expr) error {
	units := make([]exec.Unit, 0, len(exprs))
	for _, e := range exprs {
		u, err := self.compile(ctx, newLayout(), e)
		if err != nil {
			self.stmt.log.Debugw(
				"condition not pushed",
				"context", self.Id,
				"expr", sql.PrintExpr(e),
				"error", err,
			)
			return nil
		}
		units = append(units, u)
	}

	src := sl.source
	col := src.Columns[sl.column].Name
	src.push(sl.column, op, exprs, units)
	self.trace("push %s %s %s", src.describe(), col, op)

	_, keyed := src.keyColumn(col)
	self.stmt.log.Debugw(
		"condition pushed",
		"context", self.Id,
		"source", src.Name,
		"column", col,
		"op", op.String(),
		"key", keyed,
	)
	return nil
}

// pushLimit hands offset + fetch to the source of a plain single source scan
func (self *QueryContext) pushLimit() {
	s := self.sel
	if self.fetch < 0 || len(self.sources) != 1 {
		return
	}
	if s.From == nil || len(s.From.VarList) != 1 || s.From.VarList[0].Type() != sql.FromTable {
		return
	}
	if s.Where != nil || self.grouping() || s.Distinct || len(s.DistinctOn) > 0 {
		return
	}
	if s.OrderBy != nil && len(s.OrderBy.Items) > 0 {
		return
	}

	src := self.sources[0]
	src.Limit = self.offset + self.fetch
	self.trace("limit %s %d", src.describe(), src.Limit)
}

// checkRequiredKeys fails the block when a source needs a key condition that
// the WHERE clause does not give
func (self *QueryContext) checkRequiredKeys() error {
	for _, src := range self.sources {
		for _, kc := range src.KeyColumns {
			if !kc.Required || src.hasCondition(kc.Column) {
				continue
			}
			return self.stmt.err(
				"pushdown",
				"source %s requires a condition on its key column %s",
				src.Name,
				strings.ToLower(kc.Column),
			)
		}
	}
	return nil
}
