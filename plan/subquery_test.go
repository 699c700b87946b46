package plan

import (
	"context"
	"testing"

	"github.com/krasninja/querycat-sub000/cache"
	"github.com/krasninja/querycat-sub000/rows"
	"github.com/krasninja/querycat-sub000/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ctxBackground() context.Context { return context.Background() }

func readAllErr(stmt *Statement) ([]rows.Row, error) {
	it, err := stmt.Run(ctxBackground())
	if err != nil {
		return nil, err
	}
	return rows.ReadAll(ctxBackground(), it)
}

func TestSubquery(t *testing.T) {
	assert := assert.New(t)

	one := func(text string, expect [][]interface{}) {
		stmt, err := build(t, Options{Variables: testVars()}, text)
		if assert.NoError(err, text) {
			assert.Equal(expect, runStmt(t, stmt), text)
		}
	}

	i := func(x int64) interface{} { return x }

	one("select a from t where a in (select a from u)", [][]interface{}{{i(2)}, {i(3)}})
	one("select a from t where a not in (select a from u)", [][]interface{}{{i(1)}})
	one("select a from t where exists (select 1 from u where u.a = t.a)", [][]interface{}{{i(2)}, {i(3)}})
	one("select a from t where not exists (select 1 from u where u.a = t.a)", [][]interface{}{{i(1)}})
	one("select a, (select count(*) from u where u.a <= t.a) as c from t",
		[][]interface{}{{i(1), i(0)}, {i(2), i(1)}, {i(3), i(2)}})
	one("select a from t where a = (select max(a) from u)", [][]interface{}{{i(3)}})
	one("select a from t where a > all (select a from u where a < 3)", [][]interface{}{{i(3)}})
	one("select a from t where a < any (select a from u)", [][]interface{}{{i(1)}, {i(2)}})
	one("select (select c from u where u.a = 9)", [][]interface{}{{nil}})
}

func TestSubqueryErrors(t *testing.T) {
	assert := assert.New(t)

	stmt, err := build(t, Options{Variables: testVars()}, "select (select a from u) from t")
	require.NoError(t, err)
	_, err = readAllErr(stmt)
	assert.ErrorContains(err, "more than one row")

	_, err = build(t, Options{Variables: testVars()}, "select a from t where a in (select a, c from u)")
	assert.ErrorContains(err, "exactly one column")

	_, err = build(t, Options{Variables: testVars()}, "select a from t, (select t.a as z from u) as s")
	assert.ErrorContains(err, "not available here")
}

// an uncorrelated subquery is read once per run, whatever the number of outer
// rows evaluating it
func TestSubqueryReadOnce(t *testing.T) {
	assert := assert.New(t)

	one := func(storage *cache.Storage) {
		inner := newTable([]string{"a"}, []interface{}{1}, []interface{}{2}).NewInput()
		vars := testVars()
		vars["w"] = value.NewObject(rows.Input(inner))

		stmt, err := build(
			t,
			Options{Variables: vars, Storage: storage},
			"select b from t where exists (select 1 from w where w.a = 1)",
		)
		if !assert.NoError(err) {
			return
		}
		assert.Len(runStmt(t, stmt), 3)
		assert.Equal(2, inner.Stats().Reads)
	}

	one(nil)
	one(cache.NewStorage(0, 0))
}
