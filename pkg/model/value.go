// Package model defines the triple data model shared by the loaders, the
// exploration engine and the presentation layers.
package model

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Kind identifies the inferred scalar type of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return "null"
	}
}

// Value is a scalar cell after type inference. The zero Value is null.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
}

// Null returns the null value.
func Null() Value { return Value{} }

// StringValue returns a string value.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// NumberValue returns a numeric value.
func NumberValue(f float64) Value { return Value{kind: KindNumber, num: f} }

// BoolValue returns a boolean value.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// Kind reports the scalar type.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Float returns the numeric payload and whether v is a number.
func (v Value) Float() (float64, bool) { return v.num, v.kind == KindNumber }

// Bool returns the boolean payload and whether v is a bool.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// String returns the natural textual form of the value. Null renders as "".
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// Key returns a string that is unique per (kind, text) pair, so that the
// number 1 and the string "1" count as different values.
func (v Value) Key() string {
	return string(rune('0'+v.kind)) + v.String()
}

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	default:
		return true
	}
}

// GoString supports %#v in test failure output.
func (v Value) GoString() string {
	return fmt.Sprintf("model.Value{%s:%q}", v.kind, v.String())
}

// Interface returns the value as a plain Go scalar (nil, string, float64, bool),
// suitable for JSON encoding and database parameters.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	default:
		return nil
	}
}

// MarshalJSON encodes the value as its JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON accepts a JSON scalar. Strings are kept as strings, not
// inferred.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case nil:
		*v = Null()
	case string:
		*v = StringValue(x)
	case bool:
		*v = BoolValue(x)
	case float64:
		*v = NumberValue(x)
	default:
		return fmt.Errorf("value must be a JSON scalar, got %T", raw)
	}
	return nil
}

// InferValue applies dataset type inference to a raw cell: an empty (after
// trimming) cell is null, "true"/"false" are booleans, decimal numbers are
// numbers and everything else is kept verbatim as a string.
func InferValue(raw string) Value {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Null()
	}
	switch trimmed {
	case "true", "TRUE":
		return BoolValue(true)
	case "false", "FALSE":
		return BoolValue(false)
	}
	if f, ok := parseDecimal(trimmed); ok {
		return NumberValue(f)
	}
	return StringValue(raw)
}

var decimalPattern = regexp.MustCompile(`^-?(\d+\.?|\.\d+|\d+\.\d+)([eE][-+]?\d+)?$`)

// parseDecimal accepts plain decimal and exponent notation only. Hex,
// underscores, a leading plus, NaN and Inf spellings stay strings.
func parseDecimal(s string) (float64, bool) {
	if !decimalPattern.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
