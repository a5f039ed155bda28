package langfuse

import (
	"fmt"
	"strings"
)

// metadataValueLimit is the hard cap the ingestion API places on
// metadata string values.
const metadataValueLimit = 200

// FlattenMetadata normalizes a metadata bag for the ingestion API:
// nested maps flatten into dot-joined keys, nils are dropped, every
// scalar is stringified, and strings beyond 200 characters are cut to
// 197 plus a trailing ellipsis. The API rejects non-string metadata
// values, so this applies to every outgoing call.
func FlattenMetadata(meta map[string]any) map[string]string {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]string, len(meta))
	flattenInto(out, "", meta)
	if len(out) == 0 {
		return nil
	}
	return out
}

func flattenInto(out map[string]string, prefix string, meta map[string]any) {
	for k, v := range meta {
		if v == nil || k == "" {
			continue
		}
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch t := v.(type) {
		case map[string]any:
			flattenInto(out, key, t)
		case []any:
			out[key] = truncateValue(stringifyList(t))
		case string:
			out[key] = truncateValue(t)
		case fmt.Stringer:
			out[key] = truncateValue(t.String())
		default:
			out[key] = truncateValue(fmt.Sprintf("%v", t))
		}
	}
}

func stringifyList(vals []any) string {
	parts := make([]string, 0, len(vals))
	for _, v := range vals {
		if v == nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("%v", v))
	}
	return strings.Join(parts, ",")
}

func truncateValue(s string) string {
	if len(s) <= metadataValueLimit {
		return s
	}
	return s[:metadataValueLimit-3] + "..."
}
