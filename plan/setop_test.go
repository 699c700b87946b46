package plan

import (
	"testing"

	"github.com/krasninja/querycat-sub000/value"
	"github.com/stretchr/testify/assert"
)

func TestCombine(t *testing.T) {
	assert := assert.New(t)

	one := func(text string, expect [][]interface{}) {
		stmt, err := build(t, Options{Variables: testVars()}, text)
		if assert.NoError(err, text) {
			assert.Equal(expect, runStmt(t, stmt), text)
		}
	}

	i := func(x int64) interface{} { return x }

	one("select a from t union select a from u", [][]interface{}{{i(1)}, {i(2)}, {i(3)}})
	one("select a from t union all select a from u", [][]interface{}{{i(1)}, {i(2)}, {i(3)}, {i(2)}, {i(3)}})
	one("select a from t except select a from u", [][]interface{}{{i(1)}})
	one("select a from t intersect select a from u", [][]interface{}{{i(2)}, {i(3)}})
	one("select a from t union all select a from u order by a desc limit 2", [][]interface{}{{i(3)}, {i(3)}})
	one("select a from t union select a from u order by 1 offset 1 rows", [][]interface{}{{i(2)}, {i(3)}})

	_, err := build(t, Options{Variables: testVars()}, "select a, b from t union select a from u")
	assert.ErrorContains(err, "same number of columns")
	_, err = build(t, Options{Variables: testVars()}, "select a from t union select a from u order by a + 1")
	assert.ErrorContains(err, "must name an output column")
}

func TestDerivedTable(t *testing.T) {
	assert := assert.New(t)

	one := func(text string, expect [][]interface{}) {
		stmt, err := build(t, Options{Variables: testVars()}, text)
		if assert.NoError(err, text) {
			assert.Equal(expect, runStmt(t, stmt), text)
		}
	}

	one("select s.k from (select a * 2 as k from t) as s where s.k > 2",
		[][]interface{}{{int64(4)}, {int64(6)}})
	one("select count(*) from (select distinct b from t) as d", [][]interface{}{{int64(2)}})
	one("select t.a, s.n from t, (select count(*) as n from u) as s where t.a = 1",
		[][]interface{}{{int64(1), int64(2)}})
}

func TestWith(t *testing.T) {
	assert := assert.New(t)

	one := func(text string, expect [][]interface{}) {
		stmt, err := build(t, Options{Variables: testVars()}, text)
		if assert.NoError(err, text) {
			assert.Equal(expect, runStmt(t, stmt), text)
		}
	}

	i := func(x int64) interface{} { return x }

	one("with q as (select a from t where a > 1) select a from q", [][]interface{}{{i(2)}, {i(3)}})
	one("with q(v) as (select a from t) select v from q where v < 2", [][]interface{}{{i(1)}})
	one("with q as (select a from t), r as (select a from q where a = 3) select a from r",
		[][]interface{}{{i(3)}})
	one("with q as (select a from t) select x.a, y.a from q as x, q as y where x.a = y.a and x.a = 2",
		[][]interface{}{{i(2), i(2)}})

	one(
		"with recursive r(n) as (select 1 union all select n + 1 from r where n < 5) select n from r",
		[][]interface{}{{i(1)}, {i(2)}, {i(3)}, {i(4)}, {i(5)}},
	)
	one(
		"with recursive r(n) as (select 1 union all select n + 1 from r where n < 3) select sum(n) from r",
		[][]interface{}{{i(6)}},
	)

	// union drops the rows already produced, so the walk over the cycle ends
	vars := testVars()
	vars["edge"] = tableVar(
		[]string{"src", "dst"},
		[]interface{}{1, 2},
		[]interface{}{2, 3},
		[]interface{}{3, 1},
	)
	stmt, err := build(
		t,
		Options{Variables: vars},
		"with recursive walk(node) as ("+
			"select 1 union select edge.dst from walk, edge where edge.src = walk.node"+
			") select node from walk order by node",
	)
	if assert.NoError(err) {
		assert.Equal([][]interface{}{{i(1)}, {i(2)}, {i(3)}}, runStmt(t, stmt))
	}
}

func TestWithErrors(t *testing.T) {
	assert := assert.New(t)

	one := func(opts Options, text string, msg string) {
		if opts.Variables == nil {
			opts.Variables = testVars()
		}
		stmt, err := build(t, opts, text)
		if err == nil {
			_, err = stmt.Run(ctxBackground())
			if err == nil {
				_, err = readAllErr(stmt)
			}
		}
		if assert.Error(err, text) {
			assert.Contains(err.Error(), msg, text)
		}
	}

	one(Options{}, "with q as (select 1), q as (select 2) select * from q", "declared more than once")
	one(Options{}, "with q(a, b) as (select 1) select * from q", "declares 2 columns")
	one(Options{}, "with recursive r(n) as (select n from r) select n from r", "must be a UNION")
	one(Options{}, "with recursive r(n) as (select n from r union all select 1) select n from r", "anchor")
	one(Options{}, "with recursive r(n) as (select 1 union all select n, n from r) select n from r", "returns 2 columns")
	one(
		Options{MaxRecursion: 10},
		"with recursive r(n) as (select 1 union all select n + 1 from r) select n from r",
		"did not finish within 10 rounds",
	)
	one(Options{Variables: map[string]value.Value{}}, "with q as (select 1) select * from r", "unknown table r")
}
