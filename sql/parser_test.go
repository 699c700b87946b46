package sql

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func parseExprOf(src string) (Expr, error) {
	p := newParser(src)
	p.L.Next()
	return p.parseExpr()
}

func TestSelectPrint(t *testing.T) {
	assert := assert.New(t)

	// parse, print, and make sure the printed form parses into the same text
	one := func(expect, src string) {
		s, err := Parse(src)
		if !assert.NoError(err, src) {
			return
		}
		assert.Equal(expect, PrintStatement(s), src)

		again, err := Parse(PrintStatement(s))
		if assert.NoError(err, expect) {
			assert.Equal(expect, PrintStatement(again))
		}
	}

	one("select a from xx", "select a from xx")
	one("select a from xx(1)", "SELECT a FROM xx(1)")
	one("select a as t from xx(true, false, 1, 2.0, '')", "select a as t from xx(true, false, 1, 2.0, '')")
	one("select a as t, b as t2 from xx", "select a t, b as t2 from xx;")
	one("select distinct a from xx", "select distinct a from xx")
	one("select distinct on (a, b) a, b, c from xx", "select distinct on (a, b) a, b, c from xx")
	one("select top 3 a from xx", "select top 3 a from xx")
	one("select count(*), count(distinct a), max(a) from xx", "select count(*), count(distinct a), max(a) from xx")
	one("select * from xx as t1, yy as t2", "select * from xx as t1, yy t2")
	one("select t1.*, t2.b from xx as t1, yy as t2", "select t1.*, t2.b from xx as t1, yy t2")
	one("select 1 + 2", "select 1+2")
	one("select a from yy where a = 100", "select a from yy where a == 100")
	one("select a from yy where (a = 100) and (a != 300)", "select a from yy where a = 100 and a <> 300")
	one(
		"select a, b as ttt from yy where ((a = 100) and (a != 300)) or (ttt > a)",
		"select a, b as ttt from yy where (a = 100 and a != 300) or ttt > a",
	)
	one(
		"select t1.a, sum(t2.b) from xx as t1 group by t1.a having sum(t2.b) > 10 order by t1.a desc nulls last, 2 offset 1 limit 10",
		"select t1.a, sum(t2.b) from xx as t1 group by t1.a having sum(t2.b) > 10 order by t1.a desc nulls last, 2 offset 1 rows fetch first 10 rows only",
	)
	one(
		"select a into write_parquet('out.parquet') from xx",
		"select a into write_parquet('out.parquet') from xx",
	)
}

func TestJoinPrint(t *testing.T) {
	assert := assert.New(t)

	one := func(expect, src string) {
		s, err := Parse(src)
		if assert.NoError(err, src) {
			assert.Equal(expect, PrintStatement(s), src)
		}
	}

	one("select a.x, b.y from a join b on a.id = b.id", "SELECT a.x, b.y FROM a JOIN b ON a.id = b.id")
	one("select * from a join b on a.id = b.id", "select * from a inner join b on a.id = b.id")
	one("select * from a left join b using (id)", "select * from a left outer join b using (id)")
	one("select * from a right join b on true", "select * from a right join b on true")
	one("select * from a full join b on true", "select * from a full outer join b on true")
	one("select * from a cross join b", "select * from a cross join b")
	one(
		"select * from a join b on a.id = b.id left join c on c.id = b.id",
		"select * from a join b on a.id = b.id left join c on c.id = b.id",
	)
	one(
		"select * from (select 1 as x) as s join range(1, 10) as r on s.x = r.value",
		"select * from (select 1 as x) s join range(1, 10) r on s.x = r.value",
	)
}

func TestJoinTree(t *testing.T) {
	assert := assert.New(t)

	s, err := Parse("select * from a, b join c on b.x = c.x left join d using (y, z)")
	assert.NoError(err)

	sel := s.Query.Body.(*Select)
	assert.Equal(2, len(sel.From.VarList))
	assert.Equal(FromTable, sel.From.VarList[0].Type())

	j := sel.From.VarList[1].(*Join)
	assert.Equal(JoinLeft, j.Kind)
	assert.Equal([]string{"y", "z"}, j.Using)
	inner := j.L.(*Join)
	assert.Equal(JoinInner, inner.Kind)
	assert.Equal("b", inner.L.(*FromVar).Name)
	assert.Equal("c", inner.R.(*FromVar).Name)
}

func TestQueryCombine(t *testing.T) {
	assert := assert.New(t)

	{
		s, err := Parse("select a from x union all select b from y order by 1 limit 2")
		assert.NoError(err)
		c := s.Query.Body.(*Combine)
		assert.Equal(CombineUnionAll, c.Op)
		assert.NotNil(c.OrderBy)
		assert.NotNil(c.Fetch)
		assert.Nil(c.L.(*Select).OrderBy)
		assert.Equal("select a from x union all select b from y order by 1 limit 2", PrintStatement(s))
	}

	{
		// intersect binds tighter than union
		s, err := Parse("select 1 union select 2 intersect select 3 except select 4")
		assert.NoError(err)
		c := s.Query.Body.(*Combine)
		assert.Equal(CombineExcept, c.Op)
		u := c.L.(*Combine)
		assert.Equal(CombineUnion, u.Op)
		assert.Equal(CombineIntersect, u.R.(*Combine).Op)
	}

	{
		s, err := Parse("(select a from x order by a limit 1) union (select a from y)")
		assert.NoError(err)
		c := s.Query.Body.(*Combine)
		l := c.L.(*Query)
		assert.NotNil(l.Body.(*Select).Fetch)
		assert.Nil(c.Fetch)
	}
}

func TestWith(t *testing.T) {
	assert := assert.New(t)

	s, err := Parse(`
with recursive r(n) as (
  select 1
  union all
  select n + 1 from r where n < 10
), q as (select * from r)
select n from q`)
	assert.NoError(err)

	w := s.Query.With
	assert.NotNil(w)
	assert.True(w.Recursive)
	assert.Equal(2, len(w.List))
	assert.Equal("r", w.List[0].Name)
	assert.Equal([]string{"n"}, w.List[0].Columns)
	assert.Equal(QueryCombine, w.List[0].Query.Body.Type())
	assert.Equal("q", w.List[1].Name)
	assert.Equal(
		"with recursive r(n) as (select 1 union all select n + 1 from r where n < 10), q as (select * from r) select n from q",
		PrintStatement(s),
	)
}

func TestExprTernary(t *testing.T) {
	assert := assert.New(t)
	{
		v, err := parseExprOf("a?b:c")
		assert.True(err == nil)
		assert.True(v.Type() == ExprTernary)
		ter := v.(*Ternary)

		assert.Equal("a", ter.Cond.(*Ref).Name)
		assert.Equal("b", ter.B0.(*Ref).Name)
		assert.Equal("c", ter.B1.(*Ref).Name)
	}

	{
		v, err := parseExprOf("a?b+e:c")
		assert.True(err == nil)
		ter := v.(*Ternary)
		bin := ter.B0.(*Binary)
		assert.True(bin.Op == TkAdd)
		assert.Equal("b", bin.L.(*Ref).Name)
		assert.Equal("e", bin.R.(*Ref).Name)
	}
}

func TestExprBinary(t *testing.T) {
	assert := assert.New(t)

	one := func(expect, src string) {
		v, err := parseExprOf(src)
		if assert.NoError(err, src) {
			assert.Equal(expect, PrintExpr(v), src)
		}
	}

	one("a + b", "a+b")
	one("a - (b * c)", "a-b*c")
	one("(a - (b * c)) + d", "a-b*c+d")
	one("(a - ((b * c) * d)) - e", "a-b*c*d-e")
	one("(a || b) = 'ab'", "a || b = 'ab'")
	one("(a = 1) or ((b = 2) and (c = 3))", "a = 1 or b = 2 and c = 3")
	one("not (a = 1)", "not a = 1")
	one("not (a = 1) and (b = 2)", "not a = 1 and b = 2")
	one("-a", "-a")
	one("-1", "-1")
	one("-1.5", "-1.5")
	one("t.x", "t.x")
	one("a like 'x%'", "a like 'x%'")
	one("a not like 'x%'", "a not like 'x%'")
	one("a between 1 and 10", "a between 1 and 10")
	one("(a not between 1 and 10) and b", "a not between 1 and 10 and b")
	one("a in (1, 2, 3)", "a in (1,2,3)")
	one("a not in (1, 2, 3)", "a not in (1,2,3)")
	one("a is null", "a is null")
	one("a is not null", "a IS NOT NULL")
	one("a in (select x from t)", "a in (select x from t)")
	one("exists (select x from t)", "exists (select x from t)")
	one("not exists (select x from t)", "not exists (select x from t)")
	one("(select max(x) from t) + 1", "(select max(x) from t) + 1")
	one("a > all (select x from t)", "a > all (select x from t)")
	one("a = any (select x from t)", "a = some (select x from t)")
	one("case when a = 1 then 'x' else 'y' end", "case when a = 1 then 'x' else 'y' end")
	one("case a when 1 then 'x' when 2 then 'y' end", "case a when 1 then 'x' when 2 then 'y' end")
	one("cast(a as int)", "cast(a as int)")
	one("cast(a as varchar)", "a::varchar(10)")
	one("cast(cast(a as int) as string)", "a::int::string")
	one("first + last", "first + last")
}

func TestExprNodeId(t *testing.T) {
	assert := assert.New(t)

	s, err := Parse("select a + 1, b from t where a = 2")
	assert.NoError(err)

	seen := map[int]bool{}
	sel := s.Query.Body.(*Select)
	visit := func(e Expr) error {
		assert.False(seen[e.NodeId()])
		seen[e.NodeId()] = true
		assert.True(e.NodeId() < s.NodeCount)
		return nil
	}
	for _, x := range sel.Projection.ValueList {
		VisitExprPostOrder(visit, x.(*Col).Value)
	}
	VisitExprPostOrder(visit, sel.Where.Condition)
	assert.Equal(s.NodeCount, len(seen))
}

func TestParseError(t *testing.T) {
	assert := assert.New(t)

	one := func(src string) {
		_, err := Parse(src)
		assert.Error(err, src)
	}

	one("")
	one("select")
	one("select a from")
	one("select a from t where")
	one("select a from t join b")
	one("select a from t where a in ()")
	one("select a from t t2 t3")
	one("select a from t limit 1 limit 2")
	one("select top 1 a from t limit 1")
	one("select a from t group by")
	one("select case end")
	one("select a from t where a not = 1")
	one("with x select 1")
	one("select 'abc")
}

func TestSubqueries(t *testing.T) {
	assert := assert.New(t)

	v, err := parseExprOf("a in (select x from t) and exists (select 1) or b > any (select y from u)")
	assert.NoError(err)
	assert.Equal(3, len(Subqueries(v)))
}

func TestLike(t *testing.T) {
	assert := assert.New(t)

	one := func(pattern, input string, match bool) {
		re, err := CompileLike(pattern)
		if assert.NoError(err) {
			assert.Equal(match, re.MatchString(input), "%s ~ %s", pattern, input)
		}
	}

	one("abc", "abc", true)
	one("abc", "abcd", false)
	one("a%", "abcd", true)
	one("%d", "abcd", true)
	one("a_c", "abc", true)
	one("a_c", "abbc", false)
	one("a.c", "abc", false)
	one("a.c", "a.c", true)
	one("100%[%]", "100%", true)
	one("100%[%]", "1000", false)
	one("(x)%", "(x)yz", true)
	one("%", "multi\nline", true)
}
