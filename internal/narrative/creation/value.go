package creation

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind tags the concrete type held by a Value.
type Kind string

const (
	// KindString holds free text such as a name or background.
	KindString Kind = "string"
	// KindInt holds whole numbers such as an age or level.
	KindInt Kind = "int"
	// KindFloat holds fractional numbers.
	KindFloat Kind = "float"
	// KindBool holds yes/no facts.
	KindBool Kind = "bool"
)

// Value is a closed union over the primitive types a fact may hold.
// The zero Value is invalid; construct through the typed helpers.
type Value struct {
	kind Kind
	str  string
	num  int64
	flt  float64
	bl   bool
}

// StringValue wraps text as a fact value.
func StringValue(v string) Value { return Value{kind: KindString, str: v} }

// IntValue wraps a whole number as a fact value.
func IntValue(v int64) Value { return Value{kind: KindInt, num: v} }

// FloatValue wraps a fractional number as a fact value.
func FloatValue(v float64) Value { return Value{kind: KindFloat, flt: v} }

// BoolValue wraps a boolean as a fact value.
func BoolValue(v bool) Value { return Value{kind: KindBool, bl: v} }

// Kind returns the union tag.
func (v Value) Kind() Kind { return v.kind }

// Valid reports whether the value was constructed through a typed helper.
func (v Value) Valid() bool {
	switch v.kind {
	case KindString, KindInt, KindFloat, KindBool:
		return true
	}
	return false
}

// AsString returns the text payload; ok is false for non-string values.
func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }

// AsInt returns the integer payload; ok is false for non-int values.
func (v Value) AsInt() (int64, bool) { return v.num, v.kind == KindInt }

// AsFloat returns the float payload; ok is false for non-float values.
func (v Value) AsFloat() (float64, bool) { return v.flt, v.kind == KindFloat }

// AsBool returns the boolean payload; ok is false for non-bool values.
func (v Value) AsBool() (bool, bool) { return v.bl, v.kind == KindBool }

// Equal reports whether two values hold the same kind and payload.
func (v Value) Equal(other Value) bool {
	return v == other
}

// String renders the payload for prompts and logs.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return strconv.FormatInt(v.num, 10)
	case KindFloat:
		return strconv.FormatFloat(v.flt, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.bl)
	}
	return ""
}

type valueJSON struct {
	Kind   Kind    `json:"kind"`
	String string  `json:"string,omitempty"`
	Int    int64   `json:"int,omitempty"`
	Float  float64 `json:"float,omitempty"`
	Bool   bool    `json:"bool,omitempty"`
}

// MarshalJSON encodes the union with an explicit kind tag. The zero
// Value round-trips as an empty kind so optional fields stay encodable.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(valueJSON{Kind: v.kind, String: v.str, Int: v.num, Float: v.flt, Bool: v.bl})
}

// UnmarshalJSON decodes the union and validates the kind tag.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw valueJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded := Value{kind: raw.Kind, str: raw.String, num: raw.Int, flt: raw.Float, bl: raw.Bool}
	if raw.Kind != "" && !decoded.Valid() {
		return fmt.Errorf("unknown fact value kind %q", raw.Kind)
	}
	*v = decoded
	return nil
}
