package changelog

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var numericPattern = regexp.MustCompile(`[-+]?\d*\.?\d+(?:[eE][-+]?\d+)?`)

// percentReplacer strips ASCII and full-width percent signs.
var percentReplacer = strings.NewReplacer("%", "", "％", "")

// Value is a coerced field value. Exactly one of Float, Int or Str is meaningful,
// selected by Type.
type Value struct {
	Type  ValueType
	Float float64
	Int   int64
	Str   string
}

// FloatValue returns a float-typed Value.
func FloatValue(f float64) Value { return Value{Type: TypeFloat, Float: f} }

// IntValue returns an int-typed Value.
func IntValue(i int64) Value { return Value{Type: TypeInt, Int: i} }

// StringValue returns a string-typed Value.
func StringValue(s string) Value { return Value{Type: TypeString, Str: s} }

// Any returns the value as a database/sql compatible argument.
func (v Value) Any() any {
	switch v.Type {
	case TypeFloat:
		return v.Float
	case TypeInt:
		return v.Int
	default:
		return v.Str
	}
}

// String renders the value for logs and audit entries.
func (v Value) String() string {
	switch v.Type {
	case TypeFloat:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	case TypeInt:
		return strconv.FormatInt(v.Int, 10)
	default:
		return v.Str
	}
}

// Coerce converts raw model text into a typed value. The boolean is false when the
// text cannot be used for the declared type; callers skip such items.
func Coerce(t ValueType, raw string) (Value, bool) {
	if t == TypeString {
		return StringValue(strings.TrimSpace(raw)), true
	}

	text := percentReplacer.Replace(strings.TrimSpace(raw))
	match := numericPattern.FindString(text)
	if match == "" {
		return Value{}, false
	}
	number, err := strconv.ParseFloat(match, 64)
	if err != nil || math.IsInf(number, 0) || math.IsNaN(number) {
		return Value{}, false
	}

	switch t {
	case TypeInt:
		// math.Round rounds half away from zero.
		rounded := math.Round(number)
		// float64(math.MaxInt64) is 2^63, one past the largest int64.
		if rounded >= math.MaxInt64 || rounded < math.MinInt64 {
			return Value{}, false
		}
		return IntValue(int64(rounded)), true
	case TypeFloat:
		return FloatValue(roundTo(number, 2)), true
	default:
		return Value{}, false
	}
}

func roundTo(f float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	scaled := f * scale
	if math.IsInf(scaled, 0) {
		return f
	}
	return math.Round(scaled) / scale
}
