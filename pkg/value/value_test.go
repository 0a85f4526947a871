package value

import (
	"encoding/json"
	"testing"
)

func TestCoerce(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		kind Kind
		want Value
	}{
		{"string to bool yes", String("yes"), KindBool, Bool(true)},
		{"string to bool false", String("False"), KindBool, Bool(false)},
		{"string to list", String("a, b,,c"), KindList, List("a", "b", "c")},
		{"bool to string", Bool(true), KindString, String("true")},
		{"empty to list", Empty, KindList, List()},
		{"same kind", String("x"), KindString, String("x")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.in, tt.kind)
			if err != nil {
				t.Fatal(err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Coerce(%v, %s) = %v, want %v", tt.in, tt.kind, got, tt.want)
			}
		})
	}
}

func TestCoerce_InvalidBool(t *testing.T) {
	if _, err := Coerce(String("maybe"), KindBool); err == nil {
		t.Error("expected error for invalid boolean")
	}
}

func TestFromAny(t *testing.T) {
	v, err := FromAny([]any{"x", true, 3})
	if err != nil {
		t.Fatal(err)
	}
	if !v.Equal(List("x", "true", "3")) {
		t.Errorf("got %v", v)
	}
	if v, _ := FromAny(1.5); !v.Equal(String("1.5")) {
		t.Errorf("float = %v", v)
	}
	if v, _ := FromAny(uint8(7)); !v.Equal(String("7")) {
		t.Errorf("uint8 = %v", v)
	}
	if _, err := FromAny(map[string]any{}); err == nil {
		t.Error("expected error for map value")
	}
}

func TestEqual_KindMatters(t *testing.T) {
	if String("true").Equal(Bool(true)) {
		t.Error("string and boolean must not be equal")
	}
	if !List("a", "b").Equal(List("a", "b")) {
		t.Error("identical lists must be equal")
	}
}

func TestJSON(t *testing.T) {
	in := map[string]Value{
		"name":   String("demo"),
		"docker": Bool(true),
		"colors": List("red", "blue"),
		"none":   Empty,
	}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"colors":["red","blue"],"docker":true,"name":"demo","none":null}`
	if string(data) != want {
		t.Errorf("got %s", data)
	}
	var out map[string]Value
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	for k, v := range in {
		if !out[k].Equal(v) {
			t.Errorf("%s = %v, want %v", k, out[k], v)
		}
	}
}

func TestUnmarshalJSON_Number(t *testing.T) {
	var v Value
	if err := json.Unmarshal([]byte(`17`), &v); err != nil {
		t.Fatal(err)
	}
	if !v.Equal(String("17")) {
		t.Errorf("got %v", v)
	}
}
