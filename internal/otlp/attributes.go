package otlp

import (
	"encoding/json"
	"strconv"
	"time"
)

// ExtractAttributes flattens an OTLP typed attribute list into a plain
// key -> native value map. Nested kvlist and array values resolve
// recursively. Entries with no recognized value tag map to nil. The
// result is built fresh per record and never shared.
func ExtractAttributes(kvs []KeyValue) map[string]any {
	attrs := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		if kv.Key == "" {
			continue
		}
		attrs[kv.Key] = nativeValue(kv.Value)
	}
	return attrs
}

func nativeValue(v AnyValue) any {
	switch {
	case v.StringValue != nil:
		return *v.StringValue
	case v.IntValue != nil:
		return parseInt64(*v.IntValue)
	case v.DoubleValue != nil:
		return *v.DoubleValue
	case v.BoolValue != nil:
		return *v.BoolValue
	case v.ArrayValue != nil:
		out := make([]any, 0, len(v.ArrayValue.Values))
		for _, av := range v.ArrayValue.Values {
			out = append(out, nativeValue(av))
		}
		return out
	case v.KvlistValue != nil:
		return ExtractAttributes(v.KvlistValue.Values)
	default:
		return nil
	}
}

func parseInt64(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// ParseTime converts an OTLP unix-nano timestamp string to a time.Time.
// Zero or malformed timestamps fall back to now.
func ParseTime(unixNano string) time.Time {
	n, err := strconv.ParseInt(unixNano, 10, 64)
	if err != nil || n <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(0, n).UTC()
}

// Str returns the first present key's value as a string. Numeric and
// boolean values are formatted; nil values and missing keys are skipped.
func Str(attrs map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		v, ok := attrs[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			return t, true
		case int64:
			return strconv.FormatInt(t, 10), true
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64), true
		case bool:
			return strconv.FormatBool(t), true
		}
	}
	return "", false
}

// StrOr is Str with an explicit default.
func StrOr(attrs map[string]any, def string, keys ...string) string {
	if s, ok := Str(attrs, keys...); ok {
		return s
	}
	return def
}

// Int returns the first present key's value coerced to int64. String
// values holding decimal or float text coerce; parse failure moves on
// to the next key.
func Int(attrs map[string]any, keys ...string) (int64, bool) {
	for _, k := range keys {
		v, ok := attrs[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case int64:
			return t, true
		case float64:
			return int64(t), true
		case string:
			if n, err := strconv.ParseInt(t, 10, 64); err == nil {
				return n, true
			}
			if f, err := strconv.ParseFloat(t, 64); err == nil {
				return int64(f), true
			}
		case bool:
			if t {
				return 1, true
			}
			return 0, true
		}
	}
	return 0, false
}

// IntOr is Int with an explicit default.
func IntOr(attrs map[string]any, def int64, keys ...string) int64 {
	if n, ok := Int(attrs, keys...); ok {
		return n
	}
	return def
}

// Float returns the first present key's value coerced to float64.
func Float(attrs map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		v, ok := attrs[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case float64:
			return t, true
		case int64:
			return float64(t), true
		case string:
			if f, err := strconv.ParseFloat(t, 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// FloatOr is Float with an explicit default.
func FloatOr(attrs map[string]any, def float64, keys ...string) float64 {
	if f, ok := Float(attrs, keys...); ok {
		return f
	}
	return def
}

// Bool returns the first present key's value coerced to bool. Strings
// parse via strconv.ParseBool.
func Bool(attrs map[string]any, keys ...string) (bool, bool) {
	for _, k := range keys {
		v, ok := attrs[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case bool:
			return t, true
		case string:
			if b, err := strconv.ParseBool(t); err == nil {
				return b, true
			}
		case int64:
			return t != 0, true
		}
	}
	return false, false
}

// JSONValue best-effort parses an embedded stringified JSON field. On
// parse failure the raw string is returned unchanged; non-string values
// pass through as-is.
func JSONValue(attrs map[string]any, keys ...string) any {
	for _, k := range keys {
		v, ok := attrs[k]
		if !ok || v == nil {
			continue
		}
		s, isStr := v.(string)
		if !isStr {
			return v
		}
		var parsed any
		if err := json.Unmarshal([]byte(s), &parsed); err == nil {
			return parsed
		}
		return s
	}
	return nil
}

// Truncate bounds a text field to max bytes, appending an ellipsis
// marker when cut.
func Truncate(s string, max int) string {
	if max <= 3 || len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
