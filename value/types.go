package value

import (
	"strings"
)

type DataType int

const (
	TypeNull DataType = iota
	TypeInteger
	TypeFloat
	TypeNumeric
	TypeString
	TypeBoolean
	TypeTimestamp
	TypeInterval
	TypeBlob
	TypeObject
	TypeDynamic
)

func (self DataType) String() string {
	switch self {
	case TypeNull:
		return "null"
	case TypeInteger:
		return "integer"
	case TypeFloat:
		return "float"
	case TypeNumeric:
		return "numeric"
	case TypeString:
		return "string"
	case TypeBoolean:
		return "boolean"
	case TypeTimestamp:
		return "timestamp"
	case TypeInterval:
		return "interval"
	case TypeBlob:
		return "blob"
	case TypeObject:
		return "object"
	case TypeDynamic:
		return "any"
	default:
		return "unknown"
	}
}

func (self DataType) IsNumber() bool {
	return self == TypeInteger || self == TypeFloat || self == TypeNumeric
}

// ParseDataType maps a SQL type name into the data type, the second return
// value is false when the name is not known.
func ParseDataType(name string) (DataType, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "null", "void":
		return TypeNull, true
	case "int", "integer", "bigint", "smallint", "int64":
		return TypeInteger, true
	case "float", "real", "double", "float64":
		return TypeFloat, true
	case "numeric", "decimal", "money":
		return TypeNumeric, true
	case "string", "text", "varchar", "char":
		return TypeString, true
	case "bool", "boolean":
		return TypeBoolean, true
	case "timestamp", "datetime", "date":
		return TypeTimestamp, true
	case "interval", "duration":
		return TypeInterval, true
	case "blob", "bytes", "binary":
		return TypeBlob, true
	case "object":
		return TypeObject, true
	case "any", "dynamic":
		return TypeDynamic, true
	default:
		return TypeNull, false
	}
}

// numeric promotion order, used by arithmetic and comparison
func numberRank(t DataType) int {
	switch t {
	case TypeInteger:
		return 1
	case TypeNumeric:
		return 2
	case TypeFloat:
		return 3
	default:
		return 0
	}
}

func promote(l, r DataType) DataType {
	if numberRank(l) >= numberRank(r) {
		return l
	}
	return r
}
