package plan

import (
	"context"
	"testing"

	"github.com/krasninja/querycat-sub000/cache"
	"github.com/krasninja/querycat-sub000/rows"
	"github.com/krasninja/querycat-sub000/sql"
	"github.com/krasninja/querycat-sub000/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTable(names []string, data ...[]interface{}) *rows.Table {
	cols := []rows.Column{}
	for _, n := range names {
		cols = append(cols, rows.NewColumn(n, value.TypeDynamic))
	}
	rs := []rows.Row{}
	for _, d := range data {
		rs = append(rs, rows.NewRow(d...))
	}
	return rows.NewTable(cols, rs)
}

func tableVar(names []string, data ...[]interface{}) value.Value {
	return value.NewObject(newTable(names, data...))
}

func plainRows(rs []rows.Row) [][]interface{} {
	out := [][]interface{}{}
	for _, r := range rs {
		row := []interface{}{}
		for _, v := range r {
			row = append(row, v.Go())
		}
		out = append(out, row)
	}
	return out
}

func build(t *testing.T, opts Options, text string) (*Statement, error) {
	tree, err := sql.Parse(text)
	require.NoError(t, err, text)
	stmt, err := Build(context.Background(), tree, opts)
	if err != nil {
		return nil, err
	}
	t.Cleanup(func() { stmt.Close() })
	return stmt, nil
}

func runStmt(t *testing.T, stmt *Statement) [][]interface{} {
	ctx := context.Background()
	it, err := stmt.Run(ctx)
	require.NoError(t, err)
	rs, err := rows.ReadAll(ctx, it)
	require.NoError(t, err)
	return plainRows(rs)
}

func testVars() map[string]value.Value {
	return map[string]value.Value{
		"t": tableVar(
			[]string{"a", "b"},
			[]interface{}{1, "x"},
			[]interface{}{2, "y"},
			[]interface{}{3, "x"},
		),
		"u": tableVar(
			[]string{"a", "c"},
			[]interface{}{2, "p"},
			[]interface{}{3, "q"},
		),
		"empty": tableVar([]string{"a", "b"}),
		"lim":   value.NewInteger(2),
	}
}

func TestSelectBlock(t *testing.T) {
	assert := assert.New(t)

	one := func(text string, expect [][]interface{}) {
		stmt, err := build(t, Options{Variables: testVars()}, text)
		if !assert.NoError(err, text) {
			return
		}
		assert.Equal(expect, runStmt(t, stmt), text)
	}

	i := func(x int64) interface{} { return x }

	one("select a, b from t where a > 1", [][]interface{}{{i(2), "y"}, {i(3), "x"}})
	one("select a from t where a = lim", [][]interface{}{{i(2)}})
	one("select a * 10 as ten from t where b = 'x'", [][]interface{}{{i(10)}, {i(30)}})
	one("select 1 + 2", [][]interface{}{{i(3)}})
	one("select upper(b) from t where a = 1", [][]interface{}{{"X"}})
	one("select a from t where a between 2 and 3", [][]interface{}{{i(2)}, {i(3)}})
	one("select a from t where a in (1, 3)", [][]interface{}{{i(1)}, {i(3)}})
	one("select a from t where b like 'x%' and a <> 1", [][]interface{}{{i(3)}})
	one("select case when a > 1 then 'big' else 'small' end from t where a < 3",
		[][]interface{}{{"small"}, {"big"}})

	// order, limits
	one("select b from t order by a desc", [][]interface{}{{"x"}, {"y"}, {"x"}})
	one("select top 2 a from t", [][]interface{}{{i(1)}, {i(2)}})
	one("select a from t limit 1", [][]interface{}{{i(1)}})
	one("select a from t limit null", [][]interface{}{{i(1)}, {i(2)}, {i(3)}})
	one("select a from t order by a offset 1 rows fetch first 1 rows only", [][]interface{}{{i(2)}})
	one("select a as k from t order by k desc limit 2", [][]interface{}{{i(3)}, {i(2)}})
	one("select a, b from t order by 2, 1 desc", [][]interface{}{{i(3), "x"}, {i(1), "x"}, {i(2), "y"}})

	// distinct
	one("select distinct b from t", [][]interface{}{{"x"}, {"y"}})
	one("select distinct on (b) b, a from t", [][]interface{}{{"x", i(1)}, {"y", i(2)}})

	// grouping
	one("select b, count(*), sum(a) from t group by b order by b",
		[][]interface{}{{"x", i(2), i(4)}, {"y", i(1), i(2)}})
	one("select b as k, count(*) from t group by k having count(*) > 1", [][]interface{}{{"x", i(2)}})
	one("select count(*) from empty", [][]interface{}{{i(0)}})
	one("select count(*) from t where a > 100", [][]interface{}{{i(0)}})
	one("select b from t group by b order by count(*) desc", [][]interface{}{{"x"}, {"y"}})
	one("select count(distinct b) from t", [][]interface{}{{i(2)}})

	// table functions
	one("select value from range(1, 4)", [][]interface{}{{i(1)}, {i(2)}, {i(3)}})
	one("select r.value * 2 from range(0, 2) as r", [][]interface{}{{i(0)}, {i(2)}})
}

func TestOrderNulls(t *testing.T) {
	assert := assert.New(t)
	vars := map[string]value.Value{
		"t": tableVar([]string{"x"}, []interface{}{1}, []interface{}{nil}, []interface{}{3}),
	}

	one := func(text string, expect [][]interface{}) {
		stmt, err := build(t, Options{Variables: vars}, text)
		if assert.NoError(err, text) {
			assert.Equal(expect, runStmt(t, stmt), text)
		}
	}

	one("select x from t order by x desc nulls last limit 1", [][]interface{}{{int64(3)}})
	one("select x from t order by x desc nulls first limit 1", [][]interface{}{{nil}})
	one("select x from t order by x", [][]interface{}{{int64(1)}, {int64(3)}, {nil}})
}

func TestStar(t *testing.T) {
	assert := assert.New(t)

	one := func(text string, names []string) {
		stmt, err := build(t, Options{Variables: testVars()}, text)
		if !assert.NoError(err, text) {
			return
		}
		assert.Equal(names, rows.ColumnNames(stmt.Columns()), text)
	}

	one("select * from t", []string{"a", "b"})
	one("select * from t, u", []string{"a", "b", "a", "c"})
	one("select u.*, t.b from t, u", []string{"a", "c", "b"})
	one("select a, 1, count(*) from t group by a", []string{"a", "column2", "count"})

	stmt, err := build(t, Options{Variables: testVars()}, "select * from t")
	require.NoError(t, err)
	assert.Equal([][]interface{}{{int64(1), "x"}, {int64(2), "y"}, {int64(3), "x"}}, runStmt(t, stmt))
}

func TestJoin(t *testing.T) {
	assert := assert.New(t)
	vars := map[string]value.Value{
		"a": tableVar([]string{"id", "x"}, []interface{}{1, "p"}, []interface{}{2, "q"}),
		"b": tableVar([]string{"id", "y"}, []interface{}{1, 10}),
		"e": tableVar([]string{"id", "y"}),
	}

	one := func(text string, expect [][]interface{}) {
		stmt, err := build(t, Options{Variables: vars}, text)
		if assert.NoError(err, text) {
			assert.Equal(expect, runStmt(t, stmt), text)
		}
	}

	one("select a.x, b.y from a join b on a.id = b.id", [][]interface{}{{"p", int64(10)}})
	one("select a.x, e.y from a left join e on a.id = e.id", [][]interface{}{{"p", nil}, {"q", nil}})
	one("select a.x, b.y from a left join b on a.id = b.id", [][]interface{}{{"p", int64(10)}, {"q", nil}})
	one("select a.x, b.y from b right join a on a.id = b.id", [][]interface{}{{"p", int64(10)}, {"q", nil}})
	one("select x, y from a join b using (id)", [][]interface{}{{"p", int64(10)}})
	one("select a.x, b.y from a cross join b", [][]interface{}{{"p", int64(10)}, {"q", int64(10)}})
	one("select count(*) from a, b", [][]interface{}{{int64(2)}})
	one("select a.x from a full join e on a.id = e.id", [][]interface{}{{"p"}, {"q"}})

	_, err := build(t, Options{Variables: vars}, "select id from a, b")
	assert.ErrorContains(err, "ambiguous")
	_, err = build(t, Options{Variables: vars}, "select a.x from a join b on count(*) > 0")
	assert.ErrorContains(err, "not allowed in a join condition")
	_, err = build(t, Options{Variables: vars}, "select 1 from a, a")
	assert.ErrorContains(err, "more than once")
}

func TestPushdown(t *testing.T) {
	assert := assert.New(t)

	one := func(text string, expect []rows.Condition) {
		in := newTable([]string{"id", "other"},
			[]interface{}{5, "z"},
			[]interface{}{6, "y"},
		).NewInput().WithKeys(rows.KeyColumn{
			Column:     "id",
			Operations: []value.Operation{value.OpEq, value.OpGe, value.OpLe},
		})
		vars := map[string]value.Value{
			"src": value.NewObject(rows.Input(in)),
		}
		stmt, err := build(t, Options{Variables: vars}, text)
		if !assert.NoError(err, text) {
			return
		}
		runStmt(t, stmt)
		assert.Equal(expect, in.KeyValues(), text)
	}

	eq := func(op value.Operation, vals ...interface{}) rows.Condition {
		vs := []value.Value{}
		for _, v := range vals {
			vs = append(vs, value.From(v))
		}
		return rows.Condition{Column: "id", Operation: op, Values: vs}
	}

	one("select id from src where id = 5 and other = 'z'", []rows.Condition{eq(value.OpEq, 5)})
	one("select id from src where id = 5 or other = 'z'", nil)
	one("select id from src where 5 = id", []rows.Condition{eq(value.OpEq, 5)})
	one("select id from src where 4 < id", []rows.Condition{eq(value.OpGt, 4)})
	one("select id from src where id in (5, 6)", []rows.Condition{eq(value.OpEq, 5, 6)})
	one("select id from src where id between 1 and 9",
		[]rows.Condition{eq(value.OpGe, 1), eq(value.OpLe, 9)})
	one("select id from src where id = other", nil)
	one("select id from src where not (id = 5)", nil)
}

func TestPushdownRequiredKey(t *testing.T) {
	assert := assert.New(t)
	in := newTable([]string{"id"}, []interface{}{1}).NewInput().WithKeys(rows.KeyColumn{
		Column:     "id",
		Operations: []value.Operation{value.OpEq},
		Required:   true,
	})
	vars := map[string]value.Value{
		"src": value.NewObject(rows.Input(in)),
	}
	_, err := build(t, Options{Variables: vars}, "select id from src")
	assert.ErrorContains(err, "requires a condition on its key column id")
}

func TestLimitHint(t *testing.T) {
	assert := assert.New(t)

	one := func(text string, limit int64) {
		in := newTable([]string{"a"}, []interface{}{1}, []interface{}{2}, []interface{}{3}).NewInput()
		vars := map[string]value.Value{
			"src": value.NewObject(rows.Input(in)),
		}
		stmt, err := build(t, Options{Variables: vars}, text)
		if !assert.NoError(err, text) {
			return
		}
		runStmt(t, stmt)
		if assert.NotNil(in.QueryInfo(), text) {
			assert.Equal(limit, in.QueryInfo().Limit, text)
		}
	}

	one("select a from src limit 2", 2)
	one("select a from src offset 1 limit 1", 2)
	one("select a from src order by a limit 2", -1)
	one("select a from src where a > 0 limit 2", -1)
	one("select distinct a from src limit 2", -1)
	one("select a from src", -1)
}

func TestPrefetch(t *testing.T) {
	assert := assert.New(t)
	in := newTable([]string{"a", "b", "c"}, []interface{}{1, 2, 3}).NewInput()
	vars := map[string]value.Value{
		"src": value.NewObject(rows.Input(in)),
	}
	stmt, err := build(t, Options{Variables: vars}, "select a from src where c > 0")
	require.NoError(t, err)
	assert.Equal([][]interface{}{{int64(1)}}, runStmt(t, stmt))
	assert.Equal([]string{"a", "c"}, rows.ColumnNames(in.QueryInfo().Columns))
}

func TestCacheReuse(t *testing.T) {
	assert := assert.New(t)

	one := func(storage *cache.Storage, reads int) {
		inner := newTable([]string{"v"}, []interface{}{1}, []interface{}{2}).NewInput()
		vars := testVars()
		vars["w"] = value.NewObject(rows.Input(inner))

		stmt, err := build(t, Options{Variables: vars, Storage: storage}, "select t.a, w.v from t, w")
		if !assert.NoError(err) {
			return
		}
		assert.Len(runStmt(t, stmt), 6)
		assert.Equal(reads, inner.Stats().Reads)
	}

	one(nil, 6)
	one(cache.NewStorage(0, 0), 2)
}

// a derived table repeating a column name is replayed from the cache column by
// column
func TestCacheDuplicateNames(t *testing.T) {
	assert := assert.New(t)

	text := "select * from t, (select t.a, u.a from t, u) x order by 1, 2, 3, 4"
	stmt, err := build(t, Options{Variables: testVars()}, text)
	require.NoError(t, err)
	expect := runStmt(t, stmt)
	assert.Len(expect, 18)

	stmt, err = build(t, Options{Variables: testVars(), Storage: cache.NewStorage(0, 0)}, text)
	require.NoError(t, err)
	assert.Equal(expect, runStmt(t, stmt))
	assert.Equal(expect, runStmt(t, stmt))
}

func TestRunTwice(t *testing.T) {
	assert := assert.New(t)
	stmt, err := build(t, Options{Variables: testVars()}, "select b, count(*) from t group by b order by b")
	require.NoError(t, err)

	first := runStmt(t, stmt)
	second := runStmt(t, stmt)
	assert.Equal(first, second)
	assert.Len(first, 2)
	assert.Equal(6, stmt.Stats().SourceReads)
}

func TestSemanticErrors(t *testing.T) {
	assert := assert.New(t)

	one := func(text string, msg string) {
		_, err := build(t, Options{Variables: testVars()}, text)
		if assert.Error(err, text) {
			assert.Contains(err.Error(), msg, text)
		}
	}

	one("select zz from t", "cannot resolve column zz")
	one("select a from nowhere", "unknown table nowhere")
	one("select a from t where count(*) > 1", "not allowed in WHERE")
	one("select a from t group by count(*)", "not allowed in GROUP BY")
	one("select max(count(a)) from t", "nested")
	one("select sum(*) from t", "sum(*) is not supported")
	one("select *", "requires a FROM clause")
	one("select x.* from t", "unknown source x")
	one("select a from t limit -1", "must not be negative")
	one("select a from t limit a", "must be a constant expression")
	one("select a from t order by 5", "not in the select list")
	one("select nofunc(a) from t", "unknown function nofunc")
	one("select a from t where a = (select a, c from u)", "exactly one column")
	one("select a into nofunc() from t", "unknown output function")
}

func TestDump(t *testing.T) {
	assert := assert.New(t)
	stmt, err := build(t, Options{Variables: testVars()}, "select a from t where a = 2 order by a")
	require.NoError(t, err)

	d := stmt.Dump()
	assert.Contains(d, "##> Block 0")
	assert.Contains(d, "Source: t")
	assert.Contains(d, "Condition: a = 2")
	assert.Contains(d, "filter")
	assert.Contains(d, "Columns: a(")
}
