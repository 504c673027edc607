package creation

import (
	"encoding/json"
	"testing"
)

func TestValueRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		value Value
	}{
		{name: "string", value: StringValue("Mara")},
		{name: "int", value: IntValue(27)},
		{name: "float", value: FloatValue(1.75)},
		{name: "bool", value: BoolValue(true)},
		{name: "zero", value: Value{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.value)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			var decoded Value
			if err := json.Unmarshal(data, &decoded); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if !decoded.Equal(tt.value) {
				t.Fatalf("round trip = %#v, want %#v", decoded, tt.value)
			}
		})
	}
}

func TestValueUnmarshalRejectsUnknownKind(t *testing.T) {
	var decoded Value
	if err := json.Unmarshal([]byte(`{"kind":"rune"}`), &decoded); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestValueString(t *testing.T) {
	tests := []struct {
		value Value
		want  string
	}{
		{value: StringValue("Mara"), want: "Mara"},
		{value: IntValue(-3), want: "-3"},
		{value: FloatValue(0.5), want: "0.5"},
		{value: BoolValue(false), want: "false"},
		{value: Value{}, want: ""},
	}
	for _, tt := range tests {
		if got := tt.value.String(); got != tt.want {
			t.Fatalf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestValueAccessors(t *testing.T) {
	if _, ok := StringValue("x").AsInt(); ok {
		t.Fatal("string value must not read as int")
	}
	if v, ok := IntValue(9).AsInt(); !ok || v != 9 {
		t.Fatalf("AsInt = %d, %v", v, ok)
	}
	if !StringValue("").Valid() {
		t.Fatal("empty string value is still a valid value")
	}
	if (Value{}).Valid() {
		t.Fatal("zero value must be invalid")
	}
}
