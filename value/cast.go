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

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func castErr(from, to DataType, cause error) error {
	if cause == nil {
		return &TypeError{Op: "cast", Left: from, Right: to}
	}
	return fmt.Errorf("cannot cast %s to %s: %w", from, to, cause)
}

// Cast converts the value into the target type. Null casts to null of any
// type, a dynamic target keeps the value as is.
func Cast(v Value, t DataType) (Value, error) {
	if v.IsNull() || v.t == t || t == TypeDynamic {
		return v, nil
	}

	switch t {
	case TypeNull:
		return Null, nil

	case TypeString:
		return NewString(v.String()), nil

	case TypeInteger:
		switch v.t {
		case TypeFloat:
			f := v.Float()
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return Null, castErr(v.t, t, nil)
			}
			return NewInteger(int64(f)), nil
		case TypeNumeric:
			return NewInteger(v.Numeric().IntPart()), nil
		case TypeBoolean:
			if v.Boolean() {
				return NewInteger(1), nil
			}
			return NewInteger(0), nil
		case TypeInterval:
			return NewInteger(int64(v.Interval())), nil
		case TypeTimestamp:
			return NewInteger(v.Timestamp().Unix()), nil
		case TypeString:
			s := strings.TrimSpace(v.Str())
			if h, ok := strings.CutPrefix(strings.ToLower(s), "0x"); ok {
				i, err := strconv.ParseInt(h, 16, 64)
				if err != nil {
					return Null, castErr(v.t, t, err)
				}
				return NewInteger(i), nil
			}
			if i, err := strconv.ParseInt(s, 10, 64); err == nil {
				return NewInteger(i), nil
			}
			d, err := decimal.NewFromString(s)
			if err != nil {
				return Null, castErr(v.t, t, err)
			}
			return NewInteger(d.IntPart()), nil
		default:
			break
		}
		break

	case TypeFloat:
		switch v.t {
		case TypeInteger, TypeNumeric:
			f, _ := v.AsFloat()
			return NewFloat(f), nil
		case TypeBoolean:
			if v.Boolean() {
				return NewFloat(1), nil
			}
			return NewFloat(0), nil
		case TypeString:
			f, err := strconv.ParseFloat(strings.TrimSpace(v.Str()), 64)
			if err != nil {
				return Null, castErr(v.t, t, err)
			}
			return NewFloat(f), nil
		default:
			break
		}
		break

	case TypeNumeric:
		switch v.t {
		case TypeInteger, TypeFloat:
			d, ok := v.AsNumeric()
			if !ok {
				return Null, castErr(v.t, t, nil)
			}
			return NewNumeric(d), nil
		case TypeString:
			d, err := decimal.NewFromString(strings.TrimSpace(v.Str()))
			if err != nil {
				return Null, castErr(v.t, t, err)
			}
			return NewNumeric(d), nil
		default:
			break
		}
		break

	case TypeBoolean:
		switch v.t {
		case TypeInteger, TypeFloat, TypeNumeric:
			return NewBoolean(v.Truth()), nil
		case TypeString:
			switch strings.ToLower(strings.TrimSpace(v.Str())) {
			case "true", "t", "yes", "y", "1", "on":
				return NewBoolean(true), nil
			case "false", "f", "no", "n", "0", "off":
				return NewBoolean(false), nil
			default:
				return Null, castErr(v.t, t, fmt.Errorf("invalid boolean %q", v.Str()))
			}
		default:
			break
		}
		break

	case TypeTimestamp:
		switch v.t {
		case TypeInteger:
			return NewTimestamp(time.Unix(v.Integer(), 0).UTC()), nil
		case TypeString:
			ts, err := ParseTimestamp(v.Str())
			if err != nil {
				return Null, castErr(v.t, t, err)
			}
			return NewTimestamp(ts), nil
		default:
			break
		}
		break

	case TypeInterval:
		switch v.t {
		case TypeInteger:
			return NewInterval(time.Duration(v.Integer())), nil
		case TypeString:
			d, err := time.ParseDuration(strings.TrimSpace(v.Str()))
			if err != nil {
				return Null, castErr(v.t, t, err)
			}
			return NewInterval(d), nil
		default:
			break
		}
		break

	case TypeBlob:
		switch v.t {
		case TypeString:
			s := strings.TrimSpace(v.Str())
			if b, err := hex.DecodeString(strings.TrimPrefix(s, "0x")); err == nil {
				return NewBlob(b), nil
			}
			return NewBlob([]byte(v.Str())), nil
		default:
			break
		}
		break

	default:
		break
	}

	return Null, castErr(v.t, t, nil)
}

// ParseTimestamp accepts RFC3339 and the common sql date time layouts
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}
