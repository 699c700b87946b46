package plan

import (
	"github.com/krasninja/querycat-sub000/sql"
)

// Semantic checking, just check obvious sql semantic bugs
//
// ----------------------------------------------------------------------------
//
// [1] aggregation placement. An aggregation call is rejected in WHERE, GROUP
//     BY, TOP, OFFSET, FETCH and in the arguments of INTO, it is only valid
//     in the projection, HAVING, ORDER BY and DISTINCT ON. Join conditions are
//     checked while the join is built.
//
// [2] recursive common table expression shape. The body of a recursive
//     declaration must be an anchor query UNION [ALL] a step query, without
//     ordering or limits of its own.
//
// ----------------------------------------------------------------------------

func (self *QueryContext) checkPlacement() error {
	s := self.sel
	reg := self.stmt.registry()

	check := func(clause string, e sql.Expr) error {
		if e == nil {
			return nil
		}
		if agg := findAggregate(reg, e); agg != nil {
			return self.stmt.err(
				"sema",
				"aggregate function %s is not allowed in %s",
				agg.Name,
				clause,
			)
		}
		return nil
	}

	if s.Where != nil {
		if err := check("WHERE", s.Where.Condition); err != nil {
			return err
		}
	}
	if s.GroupBy != nil {
		for _, e := range s.GroupBy.Name {
			if err := check("GROUP BY", e); err != nil {
				return err
			}
		}
	}
	if err := check("TOP", s.Top); err != nil {
		return err
	}
	if err := check("OFFSET", s.Offset); err != nil {
		return err
	}
	if err := check("FETCH", s.Fetch); err != nil {
		return err
	}
	if s.Into != nil {
		for _, e := range s.Into.Parameters {
			if err := check("INTO", e); err != nil {
				return err
			}
		}
	}
	return nil
}

// recursiveBody unwraps the body of a recursive declaration into its union
func recursiveBody(q *sql.Query) (*sql.Combine, bool) {
	body := q.Body
	for {
		nested, ok := body.(*sql.Query)
		if !ok || nested.With != nil {
			break
		}
		body = nested.Body
	}
	c, ok := body.(*sql.Combine)
	if !ok || (c.Op != sql.CombineUnion && c.Op != sql.CombineUnionAll) {
		return nil, false
	}
	if c.OrderBy != nil || c.Offset != nil || c.Fetch != nil {
		return nil, false
	}
	return c, true
}
