package value

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Value is a dynamically typed scalar. The zero value is null. A value never
// changes after construction, so it can be shared freely between rows.
type Value struct {
	t DataType
	v interface{}
}

var Null = Value{}

func NewInteger(i int64) Value           { return Value{t: TypeInteger, v: i} }
func NewFloat(f float64) Value           { return Value{t: TypeFloat, v: f} }
func NewNumeric(d decimal.Decimal) Value { return Value{t: TypeNumeric, v: d} }
func NewString(s string) Value           { return Value{t: TypeString, v: s} }
func NewBoolean(b bool) Value            { return Value{t: TypeBoolean, v: b} }
func NewTimestamp(ts time.Time) Value    { return Value{t: TypeTimestamp, v: ts} }
func NewInterval(d time.Duration) Value  { return Value{t: TypeInterval, v: d} }
func NewBlob(b []byte) Value             { return Value{t: TypeBlob, v: b} }
func NewObject(o interface{}) Value      { return Value{t: TypeObject, v: o} }

func (self Value) Type() DataType      { return self.t }
func (self Value) IsNull() bool        { return self.t == TypeNull }
func (self Value) Object() interface{} { return self.v }

func (self Value) Integer() int64 {
	i, _ := self.v.(int64)
	return i
}

func (self Value) Float() float64 {
	f, _ := self.v.(float64)
	return f
}

func (self Value) Numeric() decimal.Decimal {
	d, _ := self.v.(decimal.Decimal)
	return d
}

func (self Value) Str() string {
	s, _ := self.v.(string)
	return s
}

func (self Value) Boolean() bool {
	b, _ := self.v.(bool)
	return b
}

func (self Value) Timestamp() time.Time {
	ts, _ := self.v.(time.Time)
	return ts
}

func (self Value) Interval() time.Duration {
	d, _ := self.v.(time.Duration)
	return d
}

func (self Value) Blob() []byte {
	b, _ := self.v.([]byte)
	return b
}

// From converts a plain go value into a Value, used by in memory sources and
// tests. Unknown go types become object handles.
func From(x interface{}) Value {
	switch v := x.(type) {
	case nil:
		return Null
	case Value:
		return v
	case int:
		return NewInteger(int64(v))
	case int32:
		return NewInteger(int64(v))
	case int64:
		return NewInteger(v)
	case float32:
		return NewFloat(float64(v))
	case float64:
		return NewFloat(v)
	case decimal.Decimal:
		return NewNumeric(v)
	case string:
		return NewString(v)
	case bool:
		return NewBoolean(v)
	case time.Time:
		return NewTimestamp(v)
	case time.Duration:
		return NewInterval(v)
	case []byte:
		return NewBlob(v)
	default:
		return NewObject(v)
	}
}

// Go returns the plain go representation of the value
func (self Value) Go() interface{} {
	if self.IsNull() {
		return nil
	}
	return self.v
}

// AsFloat returns the float representation of a number value
func (self Value) AsFloat() (float64, bool) {
	switch self.t {
	case TypeInteger:
		return float64(self.Integer()), true
	case TypeFloat:
		return self.Float(), true
	case TypeNumeric:
		f, _ := self.Numeric().Float64()
		return f, true
	default:
		return 0, false
	}
}

// AsNumeric returns the decimal representation of a number value. Infinite
// and NaN floats have none.
func (self Value) AsNumeric() (decimal.Decimal, bool) {
	switch self.t {
	case TypeInteger:
		return decimal.NewFromInt(self.Integer()), true
	case TypeFloat:
		f := self.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(f), true
	case TypeNumeric:
		return self.Numeric(), true
	default:
		return decimal.Zero, false
	}
}

// Truth returns the boolean interpretation used by filters, null is false.
func (self Value) Truth() bool {
	switch self.t {
	case TypeBoolean:
		return self.Boolean()
	case TypeInteger:
		return self.Integer() != 0
	case TypeFloat:
		return self.Float() != 0
	case TypeNumeric:
		return !self.Numeric().IsZero()
	case TypeString:
		return self.Str() != ""
	default:
		return false
	}
}

func (self Value) String() string {
	switch self.t {
	case TypeNull:
		return "null"
	case TypeInteger:
		return strconv.FormatInt(self.Integer(), 10)
	case TypeFloat:
		return strconv.FormatFloat(self.Float(), 'f', -1, 64)
	case TypeNumeric:
		return self.Numeric().String()
	case TypeString:
		return self.Str()
	case TypeBoolean:
		return strconv.FormatBool(self.Boolean())
	case TypeTimestamp:
		return self.Timestamp().Format(time.RFC3339Nano)
	case TypeInterval:
		return self.Interval().String()
	case TypeBlob:
		return hex.EncodeToString(self.Blob())
	default:
		return fmt.Sprintf("%v", self.v)
	}
}

// Key generates the canonical string of a tuple of values. Two tuples have the
// same key iff they are equal value by value, numbers of different types with
// the same magnitude share a key so integer 1 and float 1.0 group together.
func Key(values ...Value) string {
	buf := strings.Builder{}
	for idx, v := range values {
		if idx > 0 {
			buf.WriteByte(0x1f)
		}
		buf.WriteString(keyOf(v))
	}
	return buf.String()
}

func keyOf(v Value) string {
	switch v.t {
	case TypeNull:
		return "N"
	case TypeInteger, TypeFloat, TypeNumeric:
		d, ok := v.AsNumeric()
		if !ok {
			return "f" + strconv.FormatFloat(v.Float(), 'f', -1, 64)
		}
		return "n" + d.String()
	case TypeString:
		return "s" + v.Str()
	case TypeBoolean:
		if v.Boolean() {
			return "bt"
		}
		return "bf"
	case TypeTimestamp:
		return "t" + strconv.FormatInt(v.Timestamp().UnixNano(), 10)
	case TypeInterval:
		return "i" + strconv.FormatInt(int64(v.Interval()), 10)
	case TypeBlob:
		return "x" + hex.EncodeToString(v.Blob())
	default:
		return fmt.Sprintf("o%v", v.v)
	}
}
