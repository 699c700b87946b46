package plan

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfiniteFloat(t *testing.T) {
	assert := assert.New(t)

	one := func(text string, expect [][]interface{}) {
		stmt, err := build(t, Options{Variables: testVars()}, text)
		if assert.NoError(err, text) {
			assert.Equal(expect, runStmt(t, stmt), text)
		}
	}

	inf := math.Inf(1)

	one("select distinct a / 0.0 from t", [][]interface{}{{inf}})
	one("select a / 0.0 from t union select 2.0", [][]interface{}{{inf}, {2.0}})
	one("select count(*) from t group by a / 0.0", [][]interface{}{{int64(3)}})
	one("select avg(a / 0.0) from t", [][]interface{}{{inf}})
	one("select a from t where a / 0.0 > 100 order by a desc limit 1", [][]interface{}{{int64(3)}})
}

func TestSumTypes(t *testing.T) {
	assert := assert.New(t)

	stmt, err := build(t, Options{Variables: testVars()}, "select sum(b) from t")
	require.NoError(t, err)
	_, err = readAllErr(stmt)
	assert.ErrorContains(err, "not supported for string")

	stmt, err = build(t, Options{Variables: testVars()}, "select avg(b) from t group by a")
	require.NoError(t, err)
	_, err = readAllErr(stmt)
	assert.ErrorContains(err, "not supported for string")

	_, err = build(t, Options{Variables: testVars()}, "select sum('x') from t")
	assert.ErrorContains(err, "not supported for string")

	stmt, err = build(t, Options{Variables: testVars()}, "select sum(a), avg(a) from t")
	require.NoError(t, err)
	assert.Equal([][]interface{}{{int64(6), 2.0}}, runStmt(t, stmt))
}
