package function

import (
	"context"
	"math"
	"testing"

	"github.com/krasninja/querycat-sub000/rows"
	"github.com/krasninja/querycat-sub000/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScalar(t *testing.T) {
	assert := assert.New(t)
	r := Builtin()
	ctx := context.Background()

	one := func(name string, expect interface{}, args ...interface{}) {
		f, ok := r.Scalar(name)
		if !assert.True(ok, name) {
			return
		}
		vals := []value.Value{}
		for _, a := range args {
			vals = append(vals, value.From(a))
		}
		assert.NoError(f.CheckArity(len(vals)), name)
		v, err := f.Call(ctx, vals)
		if assert.NoError(err, name) {
			assert.Equal(value.From(expect), v, name)
		}
	}

	one("UPPER", "ABC", "abc")
	one("lower", "abc", "AbC")
	one("length", 3, "héé")
	one("abs", 3, -3)
	one("abs", 1.5, -1.5)
	one("round", 1.24, 1.2351, 2)
	one("round", 2.0, 1.5)
	one("coalesce", 2, nil, 2, 3)
	one("nullif", nil, 1, 1)
	one("nullif", 1, 1, 2)
	one("concat", "a1", "a", nil, 1)
	one("substr", "bc", "abcd", 2, 2)
	one("substr", "cd", "abcd", 3)
	one("substr", "", "abcd", 9)
	one("typeof", "integer", 1)
	one("upper", nil, nil)

	f, _ := r.Scalar("uuid")
	v, err := f.Call(ctx, nil)
	assert.NoError(err)
	assert.Equal(36, len(v.Str()))
	assert.False(f.Pure)

	up, _ := r.Scalar("upper")
	assert.Error(up.CheckArity(2))
}

func TestAggregate(t *testing.T) {
	assert := assert.New(t)
	r := Builtin()

	one := func(name string, expect interface{}, distinct bool, input ...interface{}) {
		f, ok := r.Aggregate(name)
		if !assert.True(ok, name) {
			return
		}
		acc := f.New()
		if distinct {
			acc = NewDistinct(acc)
		}
		for _, x := range input {
			assert.NoError(acc.Accumulate([]value.Value{value.From(x)}))
		}
		assert.Equal(value.From(expect), acc.Finalize(), name)
	}

	one("count", 3, false, 1, 2, 3)
	one("count", 2, false, 1, nil, 3)
	one("count", 0, false)
	one("count", 2, true, 1, 1, 2)
	one("sum", 6, false, 1, 2, 3)
	one("sum", 3.5, false, 1, 2.5)
	one("sum", nil, false)
	one("avg", 2.0, false, 1, 2, 3)
	one("avg", nil, false)
	one("min", 1, false, 3, nil, 1, 2)
	one("max", "c", false, "a", "c", "b")
	one("max", nil, false, nil)

	count, _ := r.Aggregate("count")
	acc := count.New()
	assert.NoError(acc.Accumulate(nil))
	assert.NoError(acc.Accumulate(nil))
	assert.Equal(value.NewInteger(2), acc.Finalize())

	assert.True(r.IsAggregate("SUM"))
	assert.False(r.IsAggregate("upper"))
}

func TestAggregateTypes(t *testing.T) {
	assert := assert.New(t)
	r := Builtin()

	sum, _ := r.Aggregate("sum")
	avg, _ := r.Aggregate("avg")

	err := sum.New().Accumulate([]value.Value{value.NewString("x")})
	_, ok := err.(*value.TypeError)
	assert.True(ok)
	assert.ErrorContains(err, "not supported for string")

	err = avg.New().Accumulate([]value.Value{value.NewBoolean(true)})
	_, ok = err.(*value.TypeError)
	assert.True(ok)

	assert.Error(sum.CheckTypes([]value.DataType{value.TypeString}))
	assert.NoError(sum.CheckTypes([]value.DataType{value.TypeInterval}))
	assert.NoError(sum.CheckTypes([]value.DataType{value.TypeDynamic}))
	assert.Error(avg.CheckTypes([]value.DataType{value.TypeInterval}))
	assert.NoError(avg.CheckTypes([]value.DataType{value.TypeFloat}))

	// an infinite float has no decimal form
	acc := avg.New()
	assert.NoError(acc.Accumulate([]value.Value{value.NewInteger(1)}))
	assert.NoError(acc.Accumulate([]value.Value{value.NewFloat(math.Inf(1))}))
	assert.Equal(value.NewFloat(math.Inf(1)), acc.Finalize())
}

func TestTable(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	r := Builtin()
	ctx := context.Background()

	drain := func(in rows.Input) []interface{} {
		out := []interface{}{}
		for {
			ok, err := in.ReadNext(ctx)
			require.NoError(err)
			if !ok {
				return out
			}
			v, err := in.ReadValue(0)
			require.NoError(err)
			out = append(out, v.Go())
		}
	}

	f, ok := r.Table("range")
	require.True(ok)
	v, err := f.Call(ctx, []value.Value{value.NewInteger(1), value.NewInteger(4)})
	require.NoError(err)
	in := v.Object().(rows.Input)
	require.NoError(in.Open(ctx))
	assert.Equal([]interface{}{int64(1), int64(2), int64(3)}, drain(in))
	require.NoError(in.Reset(ctx))
	assert.Equal([]interface{}{int64(1), int64(2), int64(3)}, drain(in))

	v, err = f.Call(ctx, []value.Value{value.NewInteger(10), value.NewInteger(0), value.NewInteger(-5)})
	require.NoError(err)
	in = v.Object().(rows.Input)
	require.NoError(in.Open(ctx))
	assert.Equal([]interface{}{int64(10), int64(5)}, drain(in))

	_, err = f.Call(ctx, []value.Value{value.NewInteger(1), value.NewInteger(2), value.NewInteger(0)})
	assert.Error(err)

	f, _ = r.Table("values_of")
	v, err = f.Call(ctx, []value.Value{value.NewString("a"), value.NewString("b")})
	require.NoError(err)
	in = v.Object().(rows.Input)
	assert.Equal(value.TypeString, in.Columns()[0].Type)
	require.NoError(in.Open(ctx))
	assert.Equal([]interface{}{"a", "b"}, drain(in))
}
