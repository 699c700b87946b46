package function

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/krasninja/querycat-sub000/value"
)

func stringArg(name string, v value.Value) (string, error) {
	if v.Type() != value.TypeString {
		cv, err := value.Cast(v, value.TypeString)
		if err != nil {
			return "", fmt.Errorf("function %s: %s", name, err)
		}
		v = cv
	}
	return v.Str(), nil
}

func intArg(name string, v value.Value) (int64, error) {
	cv, err := value.Cast(v, value.TypeInteger)
	if err != nil {
		return 0, fmt.Errorf("function %s: %s", name, err)
	}
	return cv.Integer(), nil
}

func fnUpper(_ context.Context, args []value.Value) (value.Value, error) {
	if args[0].IsNull() {
		return value.Null, nil
	}
	s, err := stringArg("upper", args[0])
	if err != nil {
		return value.Null, err
	}
	return value.NewString(strings.ToUpper(s)), nil
}

func fnLower(_ context.Context, args []value.Value) (value.Value, error) {
	if args[0].IsNull() {
		return value.Null, nil
	}
	s, err := stringArg("lower", args[0])
	if err != nil {
		return value.Null, err
	}
	return value.NewString(strings.ToLower(s)), nil
}

func fnLength(_ context.Context, args []value.Value) (value.Value, error) {
	switch args[0].Type() {
	case value.TypeNull:
		return value.Null, nil
	case value.TypeBlob:
		return value.NewInteger(int64(len(args[0].Blob()))), nil
	default:
		s, err := stringArg("length", args[0])
		if err != nil {
			return value.Null, err
		}
		return value.NewInteger(int64(utf8.RuneCountInString(s))), nil
	}
}

func fnAbs(_ context.Context, args []value.Value) (value.Value, error) {
	v := args[0]
	switch v.Type() {
	case value.TypeNull:
		return value.Null, nil
	case value.TypeInteger:
		if v.Integer() < 0 {
			return value.NewInteger(-v.Integer()), nil
		}
		return v, nil
	case value.TypeFloat:
		return value.NewFloat(math.Abs(v.Float())), nil
	case value.TypeNumeric:
		return value.NewNumeric(v.Numeric().Abs()), nil
	case value.TypeInterval:
		if v.Interval() < 0 {
			return value.NewInterval(-v.Interval()), nil
		}
		return v, nil
	default:
		return value.Null, &value.TypeError{Op: "abs", Left: v.Type(), Right: value.TypeNull}
	}
}

func fnRound(_ context.Context, args []value.Value) (value.Value, error) {
	v := args[0]
	places := int64(0)
	if len(args) > 1 {
		if args[1].IsNull() {
			return value.Null, nil
		}
		p, err := intArg("round", args[1])
		if err != nil {
			return value.Null, err
		}
		places = p
	}
	switch v.Type() {
	case value.TypeNull:
		return value.Null, nil
	case value.TypeInteger:
		return v, nil
	case value.TypeFloat:
		scale := math.Pow(10, float64(places))
		return value.NewFloat(math.Round(v.Float()*scale) / scale), nil
	case value.TypeNumeric:
		return value.NewNumeric(v.Numeric().Round(int32(places))), nil
	default:
		return value.Null, &value.TypeError{Op: "round", Left: v.Type(), Right: value.TypeNull}
	}
}

func fnCoalesce(_ context.Context, args []value.Value) (value.Value, error) {
	for _, v := range args {
		if !v.IsNull() {
			return v, nil
		}
	}
	return value.Null, nil
}

func fnNullIf(_ context.Context, args []value.Value) (value.Value, error) {
	if value.Equal(args[0], args[1]) {
		return value.Null, nil
	}
	return args[0], nil
}

// concat skips null arguments
func fnConcat(_ context.Context, args []value.Value) (value.Value, error) {
	buf := strings.Builder{}
	for _, v := range args {
		if !v.IsNull() {
			buf.WriteString(v.String())
		}
	}
	return value.NewString(buf.String()), nil
}

// substr(s, start[, length]), start is 1 based
func fnSubstr(_ context.Context, args []value.Value) (value.Value, error) {
	for _, v := range args {
		if v.IsNull() {
			return value.Null, nil
		}
	}
	s, err := stringArg("substr", args[0])
	if err != nil {
		return value.Null, err
	}
	start, err := intArg("substr", args[1])
	if err != nil {
		return value.Null, err
	}
	runes := []rune(s)
	begin := start - 1
	if begin < 0 {
		begin = 0
	}
	end := int64(len(runes))
	if len(args) > 2 {
		n, err := intArg("substr", args[2])
		if err != nil {
			return value.Null, err
		}
		if n < 0 {
			return value.Null, fmt.Errorf("function substr: negative length %d", n)
		}
		if start-1+n < end {
			end = start - 1 + n
		}
	}
	if begin >= end {
		return value.NewString(""), nil
	}
	return value.NewString(string(runes[begin:end])), nil
}

func fnTypeOf(_ context.Context, args []value.Value) (value.Value, error) {
	return value.NewString(args[0].Type().String()), nil
}

func fnUUID(_ context.Context, _ []value.Value) (value.Value, error) {
	return value.NewString(uuid.NewString()), nil
}

func fnNow(_ context.Context, _ []value.Value) (value.Value, error) {
	return value.NewTimestamp(time.Now().UTC()), nil
}

func registerScalars(r *Registry) {
	str := value.TypeString
	for _, f := range []*Scalar{
		{Name: "upper", MinArgs: 1, MaxArgs: 1, Pure: true, ReturnType: Returns(str), Call: fnUpper},
		{Name: "lower", MinArgs: 1, MaxArgs: 1, Pure: true, ReturnType: Returns(str), Call: fnLower},
		{Name: "length", MinArgs: 1, MaxArgs: 1, Pure: true, ReturnType: Returns(value.TypeInteger), Call: fnLength},
		{Name: "abs", MinArgs: 1, MaxArgs: 1, Pure: true, ReturnType: FirstArgType, Call: fnAbs},
		{Name: "round", MinArgs: 1, MaxArgs: 2, Pure: true, ReturnType: FirstArgType, Call: fnRound},
		{Name: "coalesce", MinArgs: 1, MaxArgs: -1, Pure: true, ReturnType: FirstArgType, Call: fnCoalesce},
		{Name: "nullif", MinArgs: 2, MaxArgs: 2, Pure: true, ReturnType: FirstArgType, Call: fnNullIf},
		{Name: "concat", MinArgs: 1, MaxArgs: -1, Pure: true, ReturnType: Returns(str), Call: fnConcat},
		{Name: "substr", MinArgs: 2, MaxArgs: 3, Pure: true, ReturnType: Returns(str), Call: fnSubstr},
		{Name: "typeof", MinArgs: 1, MaxArgs: 1, Pure: true, ReturnType: Returns(str), Call: fnTypeOf},
		{Name: "uuid", MinArgs: 0, MaxArgs: 0, ReturnType: Returns(str), Call: fnUUID},
		{Name: "now", MinArgs: 0, MaxArgs: 0, ReturnType: Returns(value.TypeTimestamp), Call: fnNow},
	} {
		r.RegisterScalar(f)
	}
}
