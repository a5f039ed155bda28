package otlp

import (
	"reflect"
	"strings"
	"testing"
)

func strPtr(s string) *string   { return &s }
func f64Ptr(f float64) *float64 { return &f }
func boolPtr(b bool) *bool      { return &b }

func TestExtractAttributes(t *testing.T) {
	kvs := []KeyValue{
		{Key: "s", Value: AnyValue{StringValue: strPtr("hello")}},
		{Key: "i", Value: AnyValue{IntValue: strPtr("42")}},
		{Key: "d", Value: AnyValue{DoubleValue: f64Ptr(1.5)}},
		{Key: "b", Value: AnyValue{BoolValue: boolPtr(true)}},
		{Key: "arr", Value: AnyValue{ArrayValue: &ArrayValue{Values: []AnyValue{
			{StringValue: strPtr("a")},
			{IntValue: strPtr("2")},
		}}}},
		{Key: "nested", Value: AnyValue{KvlistValue: &KvList{Values: []KeyValue{
			{Key: "inner", Value: AnyValue{StringValue: strPtr("deep")}},
		}}}},
		{Key: "empty", Value: AnyValue{}},
	}

	attrs := ExtractAttributes(kvs)

	if attrs["s"] != "hello" {
		t.Errorf("s = %v, want hello", attrs["s"])
	}
	if attrs["i"] != int64(42) {
		t.Errorf("i = %v, want 42", attrs["i"])
	}
	if attrs["d"] != 1.5 {
		t.Errorf("d = %v, want 1.5", attrs["d"])
	}
	if attrs["b"] != true {
		t.Errorf("b = %v, want true", attrs["b"])
	}
	if !reflect.DeepEqual(attrs["arr"], []any{"a", int64(2)}) {
		t.Errorf("arr = %v", attrs["arr"])
	}
	nested, ok := attrs["nested"].(map[string]any)
	if !ok || nested["inner"] != "deep" {
		t.Errorf("nested = %v", attrs["nested"])
	}
	if v, present := attrs["empty"]; !present || v != nil {
		t.Errorf("empty tag should map to nil, got %v (present=%v)", v, present)
	}
}

func TestExtractAttributesSkipsEmptyKeys(t *testing.T) {
	attrs := ExtractAttributes([]KeyValue{{Key: "", Value: AnyValue{StringValue: strPtr("x")}}})
	if len(attrs) != 0 {
		t.Errorf("expected empty map, got %v", attrs)
	}
}

func TestStrFallbackChain(t *testing.T) {
	attrs := map[string]any{"b": "second", "c": "third"}

	if got := StrOr(attrs, "def", "a", "b", "c"); got != "second" {
		t.Errorf("StrOr = %q, want second", got)
	}
	if got := StrOr(attrs, "def", "a", "x"); got != "def" {
		t.Errorf("StrOr default = %q, want def", got)
	}
	// Numeric values format rather than vanish.
	if got := StrOr(map[string]any{"n": int64(7)}, "", "n"); got != "7" {
		t.Errorf("StrOr int = %q, want 7", got)
	}
}

func TestIntCoercions(t *testing.T) {
	tests := []struct {
		name  string
		attrs map[string]any
		keys  []string
		def   int64
		want  int64
	}{
		{"native int", map[string]any{"k": int64(9)}, []string{"k"}, 0, 9},
		{"float trunc", map[string]any{"k": 3.9}, []string{"k"}, 0, 3},
		{"string int", map[string]any{"k": "12"}, []string{"k"}, 0, 12},
		{"string float", map[string]any{"k": "4.2"}, []string{"k"}, 0, 4},
		{"parse failure", map[string]any{"k": "nope"}, []string{"k"}, 5, 5},
		{"missing", map[string]any{}, []string{"k"}, 7, 7},
		{"fallback order", map[string]any{"b": int64(2)}, []string{"a", "b"}, 0, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IntOr(tt.attrs, tt.def, tt.keys...); got != tt.want {
				t.Errorf("IntOr = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFloatAndBool(t *testing.T) {
	if got := FloatOr(map[string]any{"c": "0.0015"}, 0, "c"); got != 0.0015 {
		t.Errorf("FloatOr = %v, want 0.0015", got)
	}
	if got := FloatOr(map[string]any{}, 1.25, "c"); got != 1.25 {
		t.Errorf("FloatOr default = %v", got)
	}
	if b, ok := Bool(map[string]any{"s": "true"}, "s"); !ok || !b {
		t.Errorf("Bool string = %v,%v", b, ok)
	}
	if _, ok := Bool(map[string]any{}, "s"); ok {
		t.Error("Bool on missing key should report absent")
	}
}

func TestJSONValue(t *testing.T) {
	attrs := map[string]any{
		"good": `{"path":"main.go","lines":3}`,
		"bad":  `{not json`,
	}
	parsed, ok := JSONValue(attrs, "good").(map[string]any)
	if !ok || parsed["path"] != "main.go" {
		t.Errorf("JSONValue good = %v", JSONValue(attrs, "good"))
	}
	if got := JSONValue(attrs, "bad"); got != `{not json` {
		t.Errorf("JSONValue bad should fall back to raw string, got %v", got)
	}
	if got := JSONValue(attrs, "missing"); got != nil {
		t.Errorf("JSONValue missing = %v, want nil", got)
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("x", 600)
	got := Truncate(long, 500)
	if len(got) != 500 {
		t.Errorf("len = %d, want 500", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("expected ellipsis suffix")
	}
	if short := Truncate("short", 500); short != "short" {
		t.Errorf("short strings pass through, got %q", short)
	}
}

func TestParseTime(t *testing.T) {
	ts := ParseTime("1700000000000000000")
	if ts.Unix() != 1700000000 {
		t.Errorf("ParseTime = %v", ts)
	}
	if ParseTime("garbage").IsZero() {
		t.Error("malformed timestamps should fall back to now, not zero")
	}
}
