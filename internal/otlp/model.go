// Package otlp models the inbound OTLP-JSON payloads and provides
// attribute extraction helpers. Only the fields the receiver consumes
// are declared; unknown fields are ignored by encoding/json.
package otlp

// AnyValue is the OTLP tagged union over attribute value types.
// Exactly one field is expected to be set.
type AnyValue struct {
	StringValue *string     `json:"stringValue,omitempty"`
	IntValue    *string     `json:"intValue,omitempty"` // int64 as decimal string per OTLP-JSON
	DoubleValue *float64    `json:"doubleValue,omitempty"`
	BoolValue   *bool       `json:"boolValue,omitempty"`
	ArrayValue  *ArrayValue `json:"arrayValue,omitempty"`
	KvlistValue *KvList     `json:"kvlistValue,omitempty"`
}

type ArrayValue struct {
	Values []AnyValue `json:"values"`
}

type KvList struct {
	Values []KeyValue `json:"values"`
}

type KeyValue struct {
	Key   string   `json:"key"`
	Value AnyValue `json:"value"`
}

// Logs signal.

type ExportLogsRequest struct {
	ResourceLogs []ResourceLogs `json:"resourceLogs"`
}

type ResourceLogs struct {
	Resource  Resource    `json:"resource"`
	ScopeLogs []ScopeLogs `json:"scopeLogs"`
}

type Resource struct {
	Attributes []KeyValue `json:"attributes"`
}

type ScopeLogs struct {
	LogRecords []LogRecord `json:"logRecords"`
}

type LogRecord struct {
	TimeUnixNano         string     `json:"timeUnixNano"`
	ObservedTimeUnixNano string     `json:"observedTimeUnixNano"`
	SeverityText         string     `json:"severityText"`
	Body                 *AnyValue  `json:"body,omitempty"`
	Attributes           []KeyValue `json:"attributes"`
}

// Metrics signal.

type ExportMetricsRequest struct {
	ResourceMetrics []ResourceMetrics `json:"resourceMetrics"`
}

type ResourceMetrics struct {
	Resource     Resource       `json:"resource"`
	ScopeMetrics []ScopeMetrics `json:"scopeMetrics"`
}

type ScopeMetrics struct {
	Metrics []Metric `json:"metrics"`
}

type Metric struct {
	Name  string     `json:"name"`
	Unit  string     `json:"unit"`
	Sum   *SumMetric `json:"sum,omitempty"`
	Gauge *Gauge     `json:"gauge,omitempty"`
}

type SumMetric struct {
	DataPoints []NumberDataPoint `json:"dataPoints"`
}

type Gauge struct {
	DataPoints []NumberDataPoint `json:"dataPoints"`
}

type NumberDataPoint struct {
	TimeUnixNano string     `json:"timeUnixNano"`
	AsDouble     *float64   `json:"asDouble,omitempty"`
	AsInt        *string    `json:"asInt,omitempty"`
	Attributes   []KeyValue `json:"attributes"`
}

// Value returns the data point's numeric value regardless of encoding.
func (p NumberDataPoint) Value() float64 {
	if p.AsDouble != nil {
		return *p.AsDouble
	}
	if p.AsInt != nil {
		return float64(parseInt64(*p.AsInt))
	}
	return 0
}

// Traces signal. Accepted but not processed; only enough structure to
// count the spans in a payload.

type ExportTracesRequest struct {
	ResourceSpans []ResourceSpans `json:"resourceSpans"`
}

type ResourceSpans struct {
	Resource   Resource     `json:"resource"`
	ScopeSpans []ScopeSpans `json:"scopeSpans"`
}

type ScopeSpans struct {
	Spans []Span `json:"spans"`
}

type Span struct {
	Name       string     `json:"name"`
	Attributes []KeyValue `json:"attributes"`
}
