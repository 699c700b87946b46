package cache

import (
	"context"
	"testing"
	"time"

	"github.com/krasninja/querycat-sub000/rows"
	"github.com/krasninja/querycat-sub000/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSource() *rows.MemoryInput {
	return rows.NewMemoryInput(
		[]rows.Column{
			rows.NewColumn("id", value.TypeInteger),
			rows.NewColumn("name", value.TypeString),
		},
		[]rows.Row{
			rows.NewRow(1, "a"),
			rows.NewRow(2, "b"),
			rows.NewRow(3, "c"),
		},
	)
}

func drain(t *testing.T, in rows.Input) []rows.Row {
	ctx := context.Background()
	out := []rows.Row{}
	for {
		ok, err := in.ReadNext(ctx)
		require.NoError(t, err)
		if !ok {
			return out
		}
		row := rows.Row{}
		for i := range in.Columns() {
			v, err := in.ReadValue(i)
			require.NoError(t, err)
			row = append(row, v)
		}
		out = append(out, row)
	}
}

func cond(col string, op value.Operation, v interface{}) rows.Condition {
	return rows.Condition{Column: col, Operation: op, Values: []value.Value{value.From(v)}}
}

func TestKeyCanonical(t *testing.T) {
	assert := assert.New(t)

	a := NewKey("t", rows.QueryInfo{
		Columns:    []rows.Column{rows.NewColumn("B", value.TypeInteger), rows.NewColumn("a", value.TypeInteger)},
		Conditions: []rows.Condition{cond("x", value.OpEq, 1), cond("y", value.OpGt, 2)},
		Limit:      -1,
	})
	b := NewKey("t", rows.QueryInfo{
		Columns:    []rows.Column{rows.NewColumn("a", value.TypeInteger), rows.NewColumn("b", value.TypeInteger)},
		Conditions: []rows.Condition{cond("y", value.OpGt, 2), cond("x", value.OpEq, 1)},
		Limit:      -1,
	})
	assert.Equal(a.String(), b.String())
	assert.True(a.Subsumes(b))
}

func TestKeySubsumes(t *testing.T) {
	assert := assert.New(t)

	cols := []rows.Column{rows.NewColumn("a", value.TypeInteger), rows.NewColumn("b", value.TypeInteger)}
	wide := NewKey("t", rows.QueryInfo{Columns: cols, Limit: -1})
	narrow := NewKey("t", rows.QueryInfo{
		Columns:    cols[:1],
		Conditions: []rows.Condition{cond("a", value.OpEq, 1)},
		Limit:      10,
	})

	assert.True(wide.Subsumes(narrow))
	assert.False(narrow.Subsumes(wide))

	limited := NewKey("t", rows.QueryInfo{Columns: cols, Limit: 5})
	assert.False(limited.Subsumes(narrow))
	assert.True(limited.Subsumes(NewKey("t", rows.QueryInfo{Columns: cols, Limit: 3})))

	other := NewKey("u", rows.QueryInfo{Columns: cols, Limit: -1})
	assert.False(wide.Subsumes(other))

	all := NewKey("t", rows.NewQueryInfo(nil))
	assert.True(all.Subsumes(wide))
	assert.False(wide.Subsumes(all))
}

func TestKeyDuplicateNames(t *testing.T) {
	assert := assert.New(t)

	cols := []rows.Column{rows.NewColumn("a", value.TypeInteger), rows.NewColumn("a", value.TypeInteger)}
	both := rows.QueryInfo{Columns: cols, Ordinals: []int{0, 1}, Limit: -1}
	second := rows.QueryInfo{Columns: cols[1:], Ordinals: []int{1}, Limit: -1}

	assert.Equal([]string{"0:a", "1:a"}, NewKey("t", both).Columns)
	assert.True(NewKey("t", both).Subsumes(NewKey("t", second)))
	assert.False(NewKey("t", second).Subsumes(NewKey("t", both)))

	assert.Equal([]int{0, 1}, both.ColumnOrdinals(cols))
	assert.Equal([]int{1}, second.ColumnOrdinals(cols))
	assert.Equal([]int{0, 1}, rows.QueryInfo{Columns: cols}.ColumnOrdinals(cols))
	assert.Equal([]int{0, 1}, rows.NewQueryInfo(nil).ColumnOrdinals(cols))
}

func TestInputIdempotentReset(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	src := newSource()
	in := NewInput(src, NewStorage(time.Minute, 0), "src")

	require.NoError(t, in.Open(ctx))
	first := drain(t, in)
	assert.Equal(3, len(first))
	assert.Equal(3, in.Stats().InputReads)
	assert.Equal(0, in.Stats().CacheReads)

	require.NoError(t, in.Reset(ctx))
	assert.True(in.Serving())
	assert.Equal(first, drain(t, in))
	assert.Equal(3, in.Stats().InputReads)
	assert.Equal(3, in.Stats().CacheReads)

	require.NoError(t, in.Reset(ctx))
	assert.Equal(first, drain(t, in))
	assert.Equal(3, in.Stats().InputReads)
	assert.Equal(6, in.Stats().CacheReads)

	// the wrapped input was only read once
	assert.Equal(3, src.Stats().Reads)
	assert.Equal(0, src.Stats().Resets)
	assert.NoError(in.Close())
}

func TestInputPartialScan(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	in := NewInput(newSource(), NewStorage(time.Minute, 0), "src")
	require.NoError(t, in.Open(ctx))

	ok, err := in.ReadNext(ctx)
	require.NoError(t, err)
	assert.True(ok)

	// an incomplete entry never serves
	require.NoError(t, in.Reset(ctx))
	assert.False(in.Serving())
	assert.Equal(3, len(drain(t, in)))

	require.NoError(t, in.Reset(ctx))
	assert.True(in.Serving())
}

func TestInputDifferentKey(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	src := newSource()
	in := NewInput(src, NewStorage(time.Minute, 0), "src")
	require.NoError(t, in.Open(ctx))
	drain(t, in)

	info := rows.NewQueryInfo(nil)
	info.Conditions = []rows.Condition{cond("id", value.OpEq, 2)}
	in.SetQueryInfo(info)
	require.NoError(t, in.Reset(ctx))

	// the unfiltered capture subsumes the filtered request
	assert.True(in.Serving())
	assert.Equal(0, src.Stats().Resets)
	assert.NotNil(src.QueryInfo())
}

func TestStorageExpiry(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	storage := NewStorage(time.Second, 0)
	storage.now = func() time.Time { return now }

	in := NewInput(newSource(), storage, "src")
	require.NoError(t, in.Open(ctx))
	drain(t, in)

	// an entry in use survives the purge
	now = now.Add(2 * time.Second)
	other := NewInput(newSource(), storage, "other")
	require.NoError(t, other.Open(ctx))
	_, err := other.ReadNext(ctx)
	require.NoError(t, err)
	assert.Equal(2, storage.Len())

	require.NoError(t, in.Reset(ctx))
	assert.False(in.Serving())
	assert.Equal(2, storage.Len())
}

func TestStorageMaxRows(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	src := newSource()
	in := NewInput(src, NewStorage(0, 2), "src")
	require.NoError(t, in.Open(ctx))
	assert.Equal(3, len(drain(t, in)))

	require.NoError(t, in.Reset(ctx))
	assert.False(in.Serving())
	assert.Equal(3, len(drain(t, in)))
	assert.Equal(6, in.Stats().InputReads)
}

func TestStorageInvalidate(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	storage := NewStorage(0, 0)
	in := NewInput(newSource(), storage, "src")
	require.NoError(t, in.Open(ctx))
	drain(t, in)
	assert.Equal(1, storage.Len())

	storage.Invalidate("src")
	assert.Equal(0, storage.Len())
}
