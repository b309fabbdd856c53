package mesa

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ValueKind identifies which field of a Value is populated.
type ValueKind uint8

const (
	IntValue ValueKind = iota + 1
	FloatValue
	StringValue
)

func (k ValueKind) String() string {
	switch k {
	case IntValue:
		return "int"
	case FloatValue:
		return "float"
	case StringValue:
		return "string"
	default:
		return "invalid"
	}
}

// Value is a single header scalar. Header values that look like numbers are
// kept as numbers, everything else as strings.
type Value struct {
	Kind  ValueKind
	Int   int64
	Float float64
	Str   string
}

func IntVal(i int64) Value     { return Value{Kind: IntValue, Int: i} }
func FloatVal(f float64) Value { return Value{Kind: FloatValue, Float: f} }
func StringVal(s string) Value { return Value{Kind: StringValue, Str: s} }

// Float64 returns the value as a float64. ok is false for strings.
func (v Value) Float64() (f float64, ok bool) {
	switch v.Kind {
	case IntValue:
		return float64(v.Int), true
	case FloatValue:
		return v.Float, true
	default:
		return 0, false
	}
}

func (v Value) String() string {
	switch v.Kind {
	case IntValue:
		return strconv.FormatInt(v.Int, 10)
	case FloatValue:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	default:
		return v.Str
	}
}

// Equal reports whether v and o have the same kind and the same value.
// Int 2 and Float 2.0 are not equal.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case IntValue:
		return v.Int == o.Int
	case FloatValue:
		return floatsEqual(v.Float, o.Float)
	default:
		return v.Str == o.Str
	}
}

// MarshalJSON writes numbers as JSON numbers and strings as JSON strings.
// NaN and infinities are written as null, as column values are.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case IntValue:
		return json.Marshal(v.Int)
	case FloatValue:
		if isFinite(v.Float) {
			return json.Marshal(v.Float)
		}
		return []byte("null"), nil
	default:
		return json.Marshal(v.Str)
	}
}

// parseValue converts one header field. Quoted fields are always strings.
func parseValue(field string) Value {
	if len(field) >= 2 && field[0] == '"' && field[len(field)-1] == '"' {
		return StringVal(field[1 : len(field)-1])
	}
	if i, err := strconv.ParseInt(field, 10, 64); err == nil {
		return IntVal(i)
	}
	if f, err := parseFloat(field); err == nil {
		return FloatVal(f)
	}
	return StringVal(field)
}

// parseFloat accepts Go float syntax plus Fortran D exponents (1.5D+04).
func parseFloat(field string) (float64, error) {
	if strings.ContainsAny(field, "dD") {
		field = fortranExponent.Replace(field)
	}
	return strconv.ParseFloat(field, 64)
}

var fortranExponent = strings.NewReplacer("D+", "E+", "D-", "E-", "d+", "E+", "d-", "E-")
