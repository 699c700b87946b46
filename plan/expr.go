package plan

import (
	"strings"

	"github.com/krasninja/querycat-sub000/function"
	"github.com/krasninja/querycat-sub000/sql"
)

// queryWalker visits every expression and every table atom of a query tree.
// Nested subqueries, derived tables and common table expressions are entered.
type queryWalker struct {
	expr func(sql.Expr)
	from func(*sql.FromVar)
}

func (self *queryWalker) query(q *sql.Query) {
	if q == nil {
		return
	}
	if q.With != nil {
		for _, cte := range q.With.List {
			self.query(cte.Query)
		}
	}
	self.node(q.Body)
}

func (self *queryWalker) node(n sql.QueryNode) {
	switch n.Type() {
	case sql.QuerySelect:
		self.sel(n.(*sql.Select))
		break

	case sql.QueryCombine:
		c := n.(*sql.Combine)
		self.node(c.L)
		self.node(c.R)
		if c.OrderBy != nil {
			for _, item := range c.OrderBy.Items {
				self.deep(item.Value)
			}
		}
		self.deep(c.Offset)
		self.deep(c.Fetch)
		break

	case sql.QueryNested:
		self.query(n.(*sql.Query))
		break

	default:
		break
	}
}

func (self *queryWalker) sel(s *sql.Select) {
	for _, e := range selectExprs(s) {
		self.deep(e)
	}
	if s.From != nil {
		for _, item := range s.From.VarList {
			self.fromItem(item)
		}
	}
}

func (self *queryWalker) fromItem(item sql.FromItem) {
	switch item.Type() {
	case sql.FromTable:
		fv := item.(*sql.FromVar)
		if self.from != nil {
			self.from(fv)
		}
		if fv.Call != nil {
			for _, p := range fv.Call.Parameters {
				self.deep(p)
			}
		}
		self.query(fv.Query)
		break

	case sql.FromJoin:
		j := item.(*sql.Join)
		self.fromItem(j.L)
		self.fromItem(j.R)
		self.deep(j.On)
		break

	default:
		break
	}
}

func (self *queryWalker) deep(e sql.Expr) {
	if e == nil {
		return
	}
	if self.expr != nil {
		sql.VisitExprPreOrder(
			func(x sql.Expr) (bool, error) {
				self.expr(x)
				return true, nil
			},
			e,
		)
	}
	for _, q := range sql.Subqueries(e) {
		self.query(q)
	}
}

// selectExprs lists the expressions of a select block, its FROM clause aside
func selectExprs(s *sql.Select) []sql.Expr {
	out := []sql.Expr{}
	add := func(e sql.Expr) {
		if e != nil {
			out = append(out, e)
		}
	}

	add(s.Top)
	out = append(out, s.DistinctOn...)
	if s.Projection != nil {
		for _, v := range s.Projection.ValueList {
			if col, ok := v.(*sql.Col); ok {
				add(col.Value)
			}
		}
	}
	if s.Into != nil {
		out = append(out, s.Into.Parameters...)
	}
	if s.Where != nil {
		add(s.Where.Condition)
	}
	if s.GroupBy != nil {
		out = append(out, s.GroupBy.Name...)
	}
	if s.Having != nil {
		add(s.Having.Condition)
	}
	if s.OrderBy != nil {
		for _, item := range s.OrderBy.Items {
			add(item.Value)
		}
	}
	add(s.Offset)
	add(s.Fetch)
	return out
}

// joins lists the joins of a FROM clause, derived tables are not entered
func joins(items []sql.FromItem) []*sql.Join {
	out := []*sql.Join{}
	var walk func(sql.FromItem)
	walk = func(item sql.FromItem) {
		if j, ok := item.(*sql.Join); ok {
			walk(j.L)
			walk(j.R)
			out = append(out, j)
		}
	}
	for _, item := range items {
		walk(item)
	}
	return out
}

// queryReferences reports whether a table atom anywhere in the query is
// named name
func queryReferences(q *sql.Query, name string) bool {
	found := false
	w := &queryWalker{
		from: func(fv *sql.FromVar) {
			if fv.Name != "" && strings.EqualFold(fv.Name, name) {
				found = true
			}
		},
	}
	w.query(q)
	return found
}

func nodeReferences(n sql.QueryNode, name string) bool {
	return queryReferences(&sql.Query{Body: n}, name)
}

// refersColumns reports whether the expression reads a column of this block
// or of an enclosing one
func (self *QueryContext) refersColumns(expr sql.Expr) bool {
	found := false
	sql.VisitExprPreOrder(
		func(e sql.Expr) (bool, error) {
			if ref, ok := e.(*sql.Ref); ok {
				for q := self; q != nil && !found; q = q.parent {
					found = q.owns(ref)
				}
			}
			return !found, nil
		},
		expr,
	)
	return found
}

// refersOwn reports whether the expression reads a column of this block,
// subqueries included
func (self *QueryContext) refersOwn(expr sql.Expr) bool {
	found := false
	w := &queryWalker{
		expr: func(e sql.Expr) {
			if ref, ok := e.(*sql.Ref); ok && self.owns(ref) {
				found = true
			}
		},
	}
	w.deep(expr)
	return found
}

func isAggregate(reg *function.Registry, e sql.Expr) bool {
	c, ok := e.(*sql.Call)
	return ok && reg.IsAggregate(c.Name)
}

// findAggregate returns the first aggregate call of the expression, the
// subqueries it holds are not entered
func findAggregate(reg *function.Registry, expr sql.Expr) *sql.Call {
	var found *sql.Call
	sql.VisitExprPreOrder(
		func(e sql.Expr) (bool, error) {
			if found != nil {
				return false, nil
			}
			if isAggregate(reg, e) {
				found = e.(*sql.Call)
				return false, nil
			}
			return true, nil
		},
		expr,
	)
	return found
}
