package plan

import (
	"context"

	"github.com/krasninja/querycat-sub000/rows"
	"github.com/krasninja/querycat-sub000/sql"
)

// subplan is a subquery used as an expression. An uncorrelated subquery is
// read once per run and its rows are kept, a correlated one is reset and
// scanned again every time it is evaluated since it reads the row of the
// outer block.
type subplan struct {
	stmt *Statement
	q    *QueryContext
	it   rows.Iterator
	run  int
	data []rows.Row
}

func (self *compiler) subplan(query *sql.Query, what string, single bool) (*subplan, error) {
	stmt := self.q.stmt
	q, err := stmt.buildQuery(self.ctx, query, self.q, self.q.scope)
	if err != nil {
		return nil, err
	}
	if single && len(q.columns) != 1 {
		return nil, self.err("%s must return exactly one column, got %d", what, len(q.columns))
	}
	stmt.owned = append(stmt.owned, q.current)
	return &subplan{
		stmt: stmt,
		q:    q,
		it:   q.current,
		run:  -1,
	}, nil
}

func (self *subplan) fresh() bool {
	return !self.q.correlated && self.run == self.stmt.run
}

func (self *subplan) rows(ctx context.Context) ([]rows.Row, error) {
	if self.fresh() {
		return self.data, nil
	}
	if err := self.it.Reset(ctx); err != nil {
		return nil, err
	}
	data, err := rows.ReadAll(ctx, self.it)
	if err != nil {
		return nil, err
	}
	self.data = data
	self.run = self.stmt.run
	return data, nil
}

// exists only needs the first row of a correlated subquery
func (self *subplan) exists(ctx context.Context) (bool, error) {
	if !self.q.correlated {
		data, err := self.rows(ctx)
		return len(data) > 0, err
	}
	if err := self.it.Reset(ctx); err != nil {
		return false, err
	}
	return self.it.MoveNext(ctx)
}
