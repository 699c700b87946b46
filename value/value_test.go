package value

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestBinaryArith(t *testing.T) {
	assert := assert.New(t)

	one := func(op Operation, l, r interface{}, expect Value) {
		v, err := Binary(op, From(l), From(r))
		if assert.NoError(err) {
			assert.Equal(expect, v, "%v %s %v", l, op, r)
		}
	}

	one(OpAdd, 1, 2, NewInteger(3))
	one(OpSub, 1, 2, NewInteger(-1))
	one(OpMul, 3, 2, NewInteger(6))
	one(OpDiv, 7, 2, NewInteger(3))
	one(OpMod, 7, 2, NewInteger(1))
	one(OpAdd, 1, 1.5, NewFloat(2.5))
	one(OpAdd, "a", "b", NewString("ab"))
	one(OpConcat, "a", 1, NewString("a1"))
	one(OpAdd, nil, 1, Null)
	one(OpConcat, nil, "x", Null)
	one(OpAdd, decimal.NewFromInt(1), 2, NewNumeric(decimal.NewFromInt(3)))

	ts := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	one(OpAdd, ts, time.Hour, NewTimestamp(ts.Add(time.Hour)))
	one(OpSub, ts.Add(time.Hour), ts, NewInterval(time.Hour))
}

func TestBinaryError(t *testing.T) {
	assert := assert.New(t)

	_, err := Binary(OpDiv, NewInteger(1), NewInteger(0))
	assert.Error(err)

	_, err = Binary(OpSub, NewString("a"), NewBoolean(true))
	assert.Error(err)
	_, ok := err.(*TypeError)
	assert.True(ok)
}

func TestLogic(t *testing.T) {
	assert := assert.New(t)

	T, F := NewBoolean(true), NewBoolean(false)

	one := func(op Operation, l, r, expect Value) {
		v, err := Binary(op, l, r)
		assert.NoError(err)
		assert.Equal(expect, v)
	}

	one(OpAnd, T, T, T)
	one(OpAnd, T, F, F)
	one(OpAnd, Null, F, F)
	one(OpAnd, Null, T, Null)
	one(OpOr, Null, T, T)
	one(OpOr, Null, F, Null)
	one(OpOr, F, F, F)
}

func TestCompare(t *testing.T) {
	assert := assert.New(t)

	one := func(l, r interface{}, expect int) {
		c, err := Compare(From(l), From(r))
		if assert.NoError(err, "%v ? %v", l, r) {
			assert.Equal(expect, c, "%v ? %v", l, r)
		}
	}

	one(1, 2, -1)
	one(2, 1.5, 1)
	one(1, 1.0, 0)
	one("a", "b", -1)
	one("10", 10, 0)
	one(10, "9", 1)
	one(false, true, -1)
	one(decimal.NewFromFloat(1.5), 1.5, 0)

	_, err := Compare(NewBoolean(true), NewInteger(1))
	assert.Error(err)

	v, err := Binary(OpEq, Null, Null)
	assert.NoError(err)
	assert.True(v.IsNull())
	assert.False(Equal(Null, Null))
}

func TestCast(t *testing.T) {
	assert := assert.New(t)

	one := func(v interface{}, to DataType, expect Value) {
		out, err := Cast(From(v), to)
		if assert.NoError(err, "%v -> %s", v, to) {
			assert.Equal(expect, out)
		}
	}

	one("12", TypeInteger, NewInteger(12))
	one("0x10", TypeInteger, NewInteger(16))
	one("1.5", TypeFloat, NewFloat(1.5))
	one(1.9, TypeInteger, NewInteger(1))
	one(1, TypeString, NewString("1"))
	one("yes", TypeBoolean, NewBoolean(true))
	one("2021-02-03", TypeTimestamp, NewTimestamp(time.Date(2021, 2, 3, 0, 0, 0, 0, time.UTC)))
	one("1m", TypeInterval, NewInterval(time.Minute))
	one(nil, TypeInteger, Null)
	one(true, TypeDynamic, NewBoolean(true))

	_, err := Cast(NewString("abc"), TypeInteger)
	assert.Error(err)
	_, err = Cast(NewBoolean(true), TypeTimestamp)
	assert.Error(err)
}

func TestKey(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(Key(NewInteger(1)), Key(NewFloat(1)))
	assert.Equal(Key(NewInteger(1), NewString("a")), Key(NewFloat(1.0), NewString("a")))
	assert.NotEqual(Key(NewInteger(1)), Key(NewString("1")))
	assert.NotEqual(Key(NewString("a"), NewString("b")), Key(NewString("a\x1fb")))
	assert.Equal(Key(Null), Key(Null))
}

func TestNonFiniteFloat(t *testing.T) {
	assert := assert.New(t)

	inf := NewFloat(math.Inf(1))
	ninf := NewFloat(math.Inf(-1))

	_, ok := inf.AsNumeric()
	assert.False(ok)
	_, ok = NewFloat(math.NaN()).AsNumeric()
	assert.False(ok)

	assert.Equal(Key(inf), Key(NewFloat(math.Inf(1))))
	assert.NotEqual(Key(inf), Key(ninf))
	assert.NotEqual(Key(inf), Key(NewFloat(1)))
	assert.Equal(Key(NewFloat(math.NaN())), Key(NewFloat(math.NaN())))

	_, err := Cast(inf, TypeNumeric)
	_, isType := err.(*TypeError)
	assert.True(isType)

	c, err := Compare(inf, NewInteger(1))
	assert.NoError(err)
	assert.Equal(1, c)

	v, err := Binary(OpDiv, NewInteger(1), NewFloat(0))
	assert.NoError(err)
	assert.Equal(inf, v)
}

func TestParseDataType(t *testing.T) {
	assert := assert.New(t)

	ty, ok := ParseDataType("VARCHAR")
	assert.True(ok)
	assert.Equal(TypeString, ty)

	ty, ok = ParseDataType("bigint")
	assert.True(ok)
	assert.Equal(TypeInteger, ty)

	_, ok = ParseDataType("whatever")
	assert.False(ok)
}
