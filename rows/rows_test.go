package rows

import (
	"context"
	"errors"
	"testing"

	"github.com/krasninja/querycat-sub000/value"
	"github.com/stretchr/testify/assert"
)

func drainInput(ctx context.Context, in Input) [][]interface{} {
	out := [][]interface{}{}
	for {
		ok, err := in.ReadNext(ctx)
		if err != nil || !ok {
			return out
		}
		row := []interface{}{}
		for i := range in.Columns() {
			v, _ := in.ReadValue(i)
			row = append(row, v.Go())
		}
		out = append(out, row)
	}
}

func TestFindColumn(t *testing.T) {
	assert := assert.New(t)

	cols := []Column{
		NewColumn("id", value.TypeInteger).WithSource("a"),
		NewColumn("name", value.TypeString).WithSource("a"),
		NewColumn("ID", value.TypeInteger).WithSource("b"),
	}

	one := func(name, source string, idx int, ambiguous bool) {
		i, amb := FindColumn(cols, name, source)
		assert.Equal(idx, i, "%s.%s", source, name)
		assert.Equal(ambiguous, amb, "%s.%s", source, name)
	}

	one("id", "a", 0, false)
	one("Id", "B", 2, false)
	one("name", "", 1, false)
	one("id", "", 0, true)
	one("zzz", "", -1, false)
	one("name", "b", -1, false)

	assert.Equal("a.id", cols[0].FullName())
	assert.Equal([]string{"id", "name", "ID"}, ColumnNames(cols))
}

func TestMemoryInputKeys(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	in := NewMemoryInput(
		[]Column{NewColumn("id", value.TypeInteger), NewColumn("v", value.TypeString)},
		[]Row{NewRow(1, "a"), NewRow(2, "b"), NewRow(3, "c"), NewRow(5, "e")},
	).WithKeys(KeyColumn{Column: "id", Operations: []value.Operation{value.OpEq, value.OpGe}})

	assert.NoError(in.Open(ctx))
	assert.Equal(4, len(drainInput(ctx, in)))

	in.SetKeyValues("id", value.OpEq, []value.Value{value.NewInteger(2), value.NewInteger(5)})
	assert.NoError(in.Reset(ctx))
	assert.Equal([][]interface{}{{int64(2), "b"}, {int64(5), "e"}}, drainInput(ctx, in))

	in.SetKeyValues("id", value.OpEq, []value.Value{value.NewInteger(3)})
	assert.NoError(in.Reset(ctx))
	assert.Equal([][]interface{}{{int64(3), "c"}}, drainInput(ctx, in))
	assert.Equal(1, len(in.KeyValues()))

	st := in.Stats()
	assert.Equal(1, st.Opens)
	assert.Equal(2, st.Resets)
	assert.Equal(7, st.Reads)
}

func TestMemoryInputDataError(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	in := NewMemoryInput(
		[]Column{NewColumn("n", value.TypeInteger)},
		[]Row{NewRow("12"), NewRow("x")},
	)
	assert.NoError(in.Open(ctx))

	ok, _ := in.ReadNext(ctx)
	assert.True(ok)
	v, err := in.ReadValue(0)
	assert.NoError(err)
	assert.Equal(value.NewInteger(12), v)

	ok, _ = in.ReadNext(ctx)
	assert.True(ok)
	_, err = in.ReadValue(0)
	var de *DataError
	assert.True(errors.As(err, &de))
	assert.Equal("n", de.Column)
}

func TestErrorCounter(t *testing.T) {
	assert := assert.New(t)

	c := NewErrorCounter(2)
	assert.NoError(c.Add(errors.New("a")))
	assert.NoError(c.Add(errors.New("b")))
	assert.Error(c.Add(errors.New("c")))
	assert.Equal(3, c.Count())

	unlimited := NewErrorCounter(0)
	for i := 0; i < 100; i++ {
		assert.NoError(unlimited.Add(errors.New("x")))
	}
}

func TestIteratorInput(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	it := NewMemoryIterator(
		[]Column{NewColumn("x", value.TypeInteger)},
		[]Row{NewRow(1), NewRow(2)},
	)
	in := NewIteratorInput(it)
	assert.NoError(in.Open(ctx))
	assert.Equal([][]interface{}{{int64(1)}, {int64(2)}}, drainInput(ctx, in))
	assert.NoError(in.Reset(ctx))
	assert.Equal([][]interface{}{{int64(1)}, {int64(2)}}, drainInput(ctx, in))
}

func TestMemoryOutput(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	out := NewMemoryOutput()
	cols := []Column{NewColumn("x", value.TypeInteger)}
	assert.NoError(out.Open(ctx, cols))

	row := NewRow(1)
	assert.NoError(out.Write(ctx, row))
	row[0] = value.NewInteger(2)
	assert.NoError(out.Write(ctx, row))
	assert.NoError(out.Close())
	assert.Error(out.Write(ctx, row))

	assert.Equal([]Row{NewRow(1), NewRow(2)}, out.Rows())
	assert.True(out.Closed())
}

func TestCondition(t *testing.T) {
	assert := assert.New(t)

	ok, err := MatchCondition(value.NewInteger(3), value.OpEq, []value.Value{value.NewInteger(1), value.NewInteger(3)})
	assert.NoError(err)
	assert.True(ok)

	ok, err = MatchCondition(value.NewInteger(3), value.OpGe, []value.Value{value.NewInteger(4)})
	assert.NoError(err)
	assert.False(ok)

	c := Condition{Column: "ID", Operation: value.OpEq, Values: []value.Value{value.NewInteger(5)}}
	assert.Equal("id = [n5]", c.String())
}
