package plan

import (
	"context"
	"strings"

	"github.com/krasninja/querycat-sub000/exec"
	"github.com/krasninja/querycat-sub000/rows"
	"github.com/krasninja/querycat-sub000/sql"
	"github.com/krasninja/querycat-sub000/value"
)

// Analyzing the aggregation functions of a select block.
//
// The aggregation call can show up in
//
// 1) projection
// 2) having
// 3) order by
// 4) distinct on
//
// Every call site becomes an aggregate target whose arguments are compiled
// against the rows of the FROM clause. Call sites printing the same text
// share one target, so SUM(x) in the projection and in HAVING is computed
// once. The Group operator appends the value of each target to the first row
// of the group, the compiler turns the call site into a read of that offset.
// An aggregate nested inside the argument of another one is rejected.

func (self *QueryContext) anaAgg(ctx context.Context) error {
	s := self.sel
	exprs := []sql.Expr{}
	for _, p := range self.output {
		if p.expr != nil {
			exprs = append(exprs, p.expr)
		}
	}
	if s.Having != nil {
		exprs = append(exprs, s.Having.Condition)
	}
	exprs = append(exprs, s.DistinctOn...)
	if s.OrderBy != nil {
		for _, item := range s.OrderBy.Items {
			exprs = append(exprs, item.Value)
		}
	}

	byText := map[string]*exec.AggregateTarget{}
	for _, e := range exprs {
		if err := self.anaAggExpr(ctx, e, byText); err != nil {
			return err
		}
	}
	return nil
}

func (self *QueryContext) anaAggExpr(
	ctx context.Context,
	expr sql.Expr,
	byText map[string]*exec.AggregateTarget,
) error {
	reg := self.stmt.registry()
	return sql.VisitExprPreOrder(
		func(e sql.Expr) (bool, error) {
			if !isAggregate(reg, e) {
				return true, nil
			}
			call := e.(*sql.Call)
			if _, ok := self.aggs[call.Id]; ok {
				return false, nil
			}

			for _, p := range call.Parameters {
				if inner := findAggregate(reg, p); inner != nil {
					return false, self.stmt.err(
						"resolve",
						"aggregate function %s is nested inside of %s",
						inner.Name,
						call.Name,
					)
				}
			}

			text := strings.ToLower(sql.PrintExpr(call))
			if t, ok := byText[text]; ok {
				self.aggs[call.Id] = t
				return false, nil
			}

			t, err := self.newAggTarget(ctx, call, text)
			if err != nil {
				return false, err
			}
			byText[text] = t
			self.aggs[call.Id] = t
			self.aggList = append(self.aggList, t)
			return false, nil
		},
		expr,
	)
}

func (self *QueryContext) newAggTarget(ctx context.Context, call *sql.Call, text string) (*exec.AggregateTarget, error) {
	f, _ := self.stmt.registry().Aggregate(call.Name)

	if call.Star && !strings.EqualFold(f.Name, "count") {
		return nil, self.stmt.err("resolve", "%s(*) is not supported", call.Name)
	}
	if err := f.CheckArity(len(call.Parameters)); err != nil {
		return nil, self.stmt.err("resolve", "%s", err)
	}

	args, err := self.compileList(ctx, self.from, call.Parameters)
	if err != nil {
		return nil, err
	}
	types := make([]value.DataType, 0, len(args))
	for _, a := range args {
		types = append(types, a.Type())
	}
	if err := f.CheckTypes(types); err != nil {
		return nil, err
	}

	return &exec.AggregateTarget{
		Column:   rows.NewColumn(text, f.Type(types)),
		Func:     f,
		Args:     args,
		Distinct: call.Distinct,
	}, nil
}

// grouping reports whether the block runs through the Group operator
func (self *QueryContext) grouping() bool {
	s := self.sel
	return len(self.aggList) > 0 || (s.GroupBy != nil && len(s.GroupBy.Name) > 0) || s.Having != nil
}
