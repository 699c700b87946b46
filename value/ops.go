package value

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"time"
)

type Operation int

const (
	OpAdd Operation = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
	OpConcat
	OpNeg
	OpNot
)

func (self Operation) String() string {
	switch self {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpMod:
		return "%"
	case OpEq:
		return "="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	case OpConcat:
		return "||"
	case OpNeg:
		return "-"
	case OpNot:
		return "not"
	default:
		return "?"
	}
}

func (self Operation) IsComparison() bool {
	return self >= OpEq && self <= OpGe
}

// Flip returns the operation with swapped operands, ie a < b <=> b > a
func (self Operation) Flip() Operation {
	switch self {
	case OpLt:
		return OpGt
	case OpLe:
		return OpGe
	case OpGt:
		return OpLt
	case OpGe:
		return OpLe
	default:
		return self
	}
}

// TypeError is reported when an operation is not defined for its operands
type TypeError struct {
	Op    string
	Left  DataType
	Right DataType
}

func (self *TypeError) Error() string {
	if self.Op == "cast" {
		return fmt.Sprintf("type error: cannot cast %s to %s", self.Left, self.Right)
	}
	if self.Right == TypeNull {
		return fmt.Sprintf("type error: operation '%s' is not supported for %s", self.Op, self.Left)
	}
	return fmt.Sprintf(
		"type error: operation '%s' is not supported for %s and %s",
		self.Op,
		self.Left,
		self.Right,
	)
}

func typeErr(op Operation, l, r DataType) error {
	return &TypeError{Op: op.String(), Left: l, Right: r}
}

// ResultType returns the static type of a binary operation, or an error if the
// combination is not part of the operation table. Dynamic operands yield a
// dynamic result which is checked at evaluation time.
func ResultType(op Operation, l, r DataType) (DataType, error) {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpAnd, OpOr:
		return TypeBoolean, nil
	case OpConcat:
		return TypeString, nil
	}
	if l == TypeDynamic || r == TypeDynamic {
		return TypeDynamic, nil
	}
	if l == TypeNull {
		return r, nil
	}
	if r == TypeNull {
		return l, nil
	}
	if l.IsNumber() && r.IsNumber() {
		return promote(l, r), nil
	}
	switch op {
	case OpAdd:
		if l == TypeString && r == TypeString {
			return TypeString, nil
		}
		if l == TypeTimestamp && r == TypeInterval || l == TypeInterval && r == TypeTimestamp {
			return TypeTimestamp, nil
		}
		if l == TypeInterval && r == TypeInterval {
			return TypeInterval, nil
		}
		break
	case OpSub:
		if l == TypeTimestamp && r == TypeInterval {
			return TypeTimestamp, nil
		}
		if l == TypeTimestamp && r == TypeTimestamp {
			return TypeInterval, nil
		}
		if l == TypeInterval && r == TypeInterval {
			return TypeInterval, nil
		}
		break
	case OpMul, OpDiv:
		if l == TypeInterval && r == TypeInteger {
			return TypeInterval, nil
		}
		break
	default:
		break
	}
	return TypeNull, typeErr(op, l, r)
}

// Binary evaluates the binary operation over 2 values
func Binary(op Operation, l, r Value) (Value, error) {
	switch op {
	case OpAnd:
		return and(l, r), nil
	case OpOr:
		return or(l, r), nil
	case OpConcat:
		if l.IsNull() || r.IsNull() {
			return Null, nil
		}
		return NewString(l.String() + r.String()), nil
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		if l.IsNull() || r.IsNull() {
			return Null, nil
		}
		c, err := Compare(l, r)
		if err != nil {
			return Null, err
		}
		return NewBoolean(cmpResult(op, c)), nil
	default:
		break
	}

	if l.IsNull() || r.IsNull() {
		return Null, nil
	}

	if l.t.IsNumber() && r.t.IsNumber() {
		return arith(op, l, r)
	}

	switch {
	case op == OpAdd && l.t == TypeString && r.t == TypeString:
		return NewString(l.Str() + r.Str()), nil
	case op == OpAdd && l.t == TypeTimestamp && r.t == TypeInterval:
		return NewTimestamp(l.Timestamp().Add(r.Interval())), nil
	case op == OpAdd && l.t == TypeInterval && r.t == TypeTimestamp:
		return NewTimestamp(r.Timestamp().Add(l.Interval())), nil
	case op == OpAdd && l.t == TypeInterval && r.t == TypeInterval:
		return NewInterval(l.Interval() + r.Interval()), nil
	case op == OpSub && l.t == TypeTimestamp && r.t == TypeInterval:
		return NewTimestamp(l.Timestamp().Add(-r.Interval())), nil
	case op == OpSub && l.t == TypeTimestamp && r.t == TypeTimestamp:
		return NewInterval(l.Timestamp().Sub(r.Timestamp())), nil
	case op == OpSub && l.t == TypeInterval && r.t == TypeInterval:
		return NewInterval(l.Interval() - r.Interval()), nil
	case op == OpMul && l.t == TypeInterval && r.t == TypeInteger:
		return NewInterval(l.Interval() * time.Duration(r.Integer())), nil
	case op == OpDiv && l.t == TypeInterval && r.t == TypeInteger:
		if r.Integer() == 0 {
			return Null, fmt.Errorf("division by zero")
		}
		return NewInterval(l.Interval() / time.Duration(r.Integer())), nil
	default:
		return Null, typeErr(op, l.t, r.t)
	}
}

// Unary evaluates negation and logical not
func Unary(op Operation, v Value) (Value, error) {
	if v.IsNull() {
		return Null, nil
	}
	switch op {
	case OpNot:
		return NewBoolean(!v.Truth()), nil
	case OpNeg:
		switch v.t {
		case TypeInteger:
			return NewInteger(-v.Integer()), nil
		case TypeFloat:
			return NewFloat(-v.Float()), nil
		case TypeNumeric:
			return NewNumeric(v.Numeric().Neg()), nil
		case TypeInterval:
			return NewInterval(-v.Interval()), nil
		default:
			break
		}
		break
	default:
		break
	}
	return Null, typeErr(op, v.t, TypeNull)
}

func cmpResult(op Operation, c int) bool {
	switch op {
	case OpEq:
		return c == 0
	case OpNe:
		return c != 0
	case OpLt:
		return c < 0
	case OpLe:
		return c <= 0
	case OpGt:
		return c > 0
	default:
		return c >= 0
	}
}

// three valued logic
func and(l, r Value) Value {
	if (!l.IsNull() && !l.Truth()) || (!r.IsNull() && !r.Truth()) {
		return NewBoolean(false)
	}
	if l.IsNull() || r.IsNull() {
		return Null
	}
	return NewBoolean(true)
}

func or(l, r Value) Value {
	if (!l.IsNull() && l.Truth()) || (!r.IsNull() && r.Truth()) {
		return NewBoolean(true)
	}
	if l.IsNull() || r.IsNull() {
		return Null
	}
	return NewBoolean(false)
}

func arith(op Operation, l, r Value) (Value, error) {
	switch promote(l.t, r.t) {
	case TypeInteger:
		a, b := l.Integer(), r.Integer()
		switch op {
		case OpAdd:
			return NewInteger(a + b), nil
		case OpSub:
			return NewInteger(a - b), nil
		case OpMul:
			return NewInteger(a * b), nil
		case OpDiv:
			if b == 0 {
				return Null, fmt.Errorf("division by zero")
			}
			return NewInteger(a / b), nil
		case OpMod:
			if b == 0 {
				return Null, fmt.Errorf("division by zero")
			}
			return NewInteger(a % b), nil
		default:
			break
		}
		break

	case TypeNumeric:
		a, _ := l.AsNumeric()
		b, _ := r.AsNumeric()
		switch op {
		case OpAdd:
			return NewNumeric(a.Add(b)), nil
		case OpSub:
			return NewNumeric(a.Sub(b)), nil
		case OpMul:
			return NewNumeric(a.Mul(b)), nil
		case OpDiv:
			if b.IsZero() {
				return Null, fmt.Errorf("division by zero")
			}
			return NewNumeric(a.Div(b)), nil
		case OpMod:
			if b.IsZero() {
				return Null, fmt.Errorf("division by zero")
			}
			return NewNumeric(a.Mod(b)), nil
		default:
			break
		}
		break

	default:
		a, _ := l.AsFloat()
		b, _ := r.AsFloat()
		switch op {
		case OpAdd:
			return NewFloat(a + b), nil
		case OpSub:
			return NewFloat(a - b), nil
		case OpMul:
			return NewFloat(a * b), nil
		case OpDiv:
			return NewFloat(a / b), nil
		case OpMod:
			return NewFloat(math.Mod(a, b)), nil
		default:
			break
		}
		break
	}
	return Null, typeErr(op, l.t, r.t)
}

// Compare orders 2 non null values. Numbers compare across types, every other
// type only compares with itself.
func Compare(l, r Value) (int, error) {
	if l.t.IsNumber() && r.t.IsNumber() {
		switch promote(l.t, r.t) {
		case TypeInteger:
			return cmpOrdered(l.Integer(), r.Integer()), nil
		case TypeNumeric:
			a, _ := l.AsNumeric()
			b, _ := r.AsNumeric()
			return a.Cmp(b), nil
		default:
			a, _ := l.AsFloat()
			b, _ := r.AsFloat()
			return cmpOrdered(a, b), nil
		}
	}
	if l.t != r.t {
		// allow comparing strings with anything castable, the literal on the
		// other side drives the conversion
		if l.t == TypeString {
			if cv, err := Cast(l, r.t); err == nil {
				return Compare(cv, r)
			}
		} else if r.t == TypeString {
			if cv, err := Cast(r, l.t); err == nil {
				return Compare(l, cv)
			}
		}
		return 0, &TypeError{Op: "compare", Left: l.t, Right: r.t}
	}
	switch l.t {
	case TypeString:
		return strings.Compare(l.Str(), r.Str()), nil
	case TypeBoolean:
		a, b := 0, 0
		if l.Boolean() {
			a = 1
		}
		if r.Boolean() {
			b = 1
		}
		return cmpOrdered(a, b), nil
	case TypeTimestamp:
		return l.Timestamp().Compare(r.Timestamp()), nil
	case TypeInterval:
		return cmpOrdered(l.Interval(), r.Interval()), nil
	case TypeBlob:
		return bytes.Compare(l.Blob(), r.Blob()), nil
	default:
		return 0, &TypeError{Op: "compare", Left: l.t, Right: r.t}
	}
}

type ordered interface {
	~int | ~int64 | ~float64
}

func cmpOrdered[T ordered](a, b T) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}

// Equal reports SQL equality of 2 values, null is never equal to anything
func Equal(l, r Value) bool {
	if l.IsNull() || r.IsNull() {
		return false
	}
	c, err := Compare(l, r)
	return err == nil && c == 0
}

// SumNumeric is a helper for aggregates, adds 2 values keeping the widest type
func SumNumeric(acc, v Value) (Value, error) {
	if acc.IsNull() {
		return v, nil
	}
	return Binary(OpAdd, acc, v)
}
