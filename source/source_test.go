package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/krasninja/querycat-sub000/function"
	"github.com/krasninja/querycat-sub000/logger"
	"github.com/krasninja/querycat-sub000/plan"
	"github.com/krasninja/querycat-sub000/rows"
	"github.com/krasninja/querycat-sub000/sql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registry() *function.Registry {
	r := function.Builtin()
	Register(r, logger.Nop())
	return r
}

func query(t *testing.T, text string) ([][]interface{}, error) {
	ctx := context.Background()
	tree, err := sql.Parse(text)
	require.NoError(t, err, text)
	stmt, err := plan.Build(ctx, tree, plan.Options{Registry: registry()})
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	it, err := stmt.Run(ctx)
	if err != nil {
		return nil, err
	}
	rs, err := rows.ReadAll(ctx, it)
	if err != nil {
		return nil, err
	}
	out := [][]interface{}{}
	for _, r := range rs {
		row := []interface{}{}
		for _, v := range r {
			row = append(row, v.Go())
		}
		out = append(out, row)
	}
	return out, nil
}

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParquetRoundTrip(t *testing.T) {
	assert := assert.New(t)
	path := filepath.Join(t.TempDir(), "out.parquet")

	out, err := query(t,
		"select value as n, value * 1.5 as f, 'x' as s, value > 1 as b, nullif(value, 1) as m "+
			"into write_parquet('"+path+"') from range(0, 3)",
	)
	require.NoError(t, err)
	assert.Empty(out)

	out, err = query(t, "select n, f, s, b, m from read_parquet('"+path+"') order by n")
	if assert.NoError(err) {
		assert.Equal([][]interface{}{
			{int64(0), float64(0), "x", false, int64(0)},
			{int64(1), float64(1.5), "x", false, nil},
			{int64(2), float64(3), "x", true, int64(2)},
		}, out)
	}

	out, err = query(t, "select count(*), sum(n) from read_parquet('"+path+"') where b = false")
	if assert.NoError(err) {
		assert.Equal([][]interface{}{{int64(2), int64(1)}}, out)
	}
}

func TestParquetInput(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "t.parquet")

	_, err := query(t, "select value as a, 'v' as a into write_parquet('"+path+"') from range(0, 100)")
	require.NoError(t, err)

	in, err := OpenParquet(path)
	require.NoError(t, err)
	defer in.Close()

	assert.Equal(int64(100), in.NumRows())
	assert.Equal([]string{"a", "a_2"}, rows.ColumnNames(in.Columns()))

	count := func() int {
		n := 0
		for {
			ok, err := in.ReadNext(ctx)
			require.NoError(t, err)
			if !ok {
				return n
			}
			n++
		}
	}

	require.NoError(t, in.Open(ctx))
	assert.Equal(100, count())

	// the limit is taken from the query info and applies to the next scan
	in.SetQueryInfo(rows.QueryInfo{Limit: 3})
	require.NoError(t, in.Reset(ctx))
	assert.Equal(3, count())

	in.SetQueryInfo(rows.NewQueryInfo(nil))
	require.NoError(t, in.Reset(ctx))
	ok, err := in.ReadNext(ctx)
	require.NoError(t, err)
	assert.True(ok)
	v, err := in.ReadValue(1)
	require.NoError(t, err)
	assert.Equal("v", v.Go())
}

func TestParquetErrors(t *testing.T) {
	assert := assert.New(t)

	_, err := query(t, "select * from read_parquet('"+filepath.Join(t.TempDir(), "missing.parquet")+"')")
	assert.ErrorContains(err, "parquet: open")

	_, err = query(t, "select * from read_parquet('"+writeFile(t, "bad.parquet", "not parquet")+"')")
	assert.ErrorContains(err, "parquet: read")

	_, err = query(t, "select * from read_parquet()")
	assert.ErrorContains(err, "invalid number of arguments")
}

func TestAwk(t *testing.T) {
	assert := assert.New(t)

	one := func(text string, expect [][]interface{}) {
		out, err := query(t, text)
		if assert.NoError(err, text) {
			assert.Equal(expect, out, text)
		}
	}

	words := writeFile(t, "words.txt", "a b c\nd e\n\nf\n")
	one("select column1, column3 from awk('"+words+"', '{ print $0 }')",
		[][]interface{}{{"a", "c"}, {"d", nil}, {"f", nil}})
	one("select column2 from awk('"+words+"', 'NF > 1 { print $2, $1 }')",
		[][]interface{}{{"a"}, {"d"}})
	one("select count(*) from awk('"+words+"', 'END { print NR }')",
		[][]interface{}{{int64(1)}})

	csv := writeFile(t, "nums.csv", "1,2\n3,4\n5,6\n")
	one("select column2 from awk('"+csv+"', '$1 > 1 { print $1, $2 }', ',') order by column2 desc",
		[][]interface{}{{"6"}, {"4"}})
	one("select cast(column1 as integer) + 1 as n from awk('"+csv+"', '{ print $1 }', ',')",
		[][]interface{}{{int64(2)}, {int64(4)}, {int64(6)}})
}

func TestAwkErrors(t *testing.T) {
	assert := assert.New(t)

	_, err := NewAwkInput(writeFile(t, "x.txt", "x\n"), "{ print $1 ", "")
	assert.ErrorContains(err, "awk: parse program")

	in, err := NewAwkInput(writeFile(t, "y.txt", "x\n"), "BEGIN { }", "")
	require.NoError(t, err)
	assert.Equal(0, in.Len())
	assert.Equal([]string{"column1"}, rows.ColumnNames(in.Columns()))

	_, err = query(t, "select * from awk('only-path')")
	assert.ErrorContains(err, "invalid number of arguments")
}
