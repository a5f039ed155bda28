// Package export forwards raw OTLP payloads to a downstream collector
// over one of three wire protocols. Export is fire-and-forget from the
// ingest path: failures are retried with backoff, then logged and
// dropped, and never surface in the ingestion response.
package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	colmetricspb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
)

// Signal identifies which OTLP signal a payload carries.
type Signal string

const (
	SignalLogs    Signal = "logs"
	SignalMetrics Signal = "metrics"
)

// Supported wire protocols.
const (
	ProtocolHTTPJSON     = "http/json"
	ProtocolHTTPProtobuf = "http/protobuf"
	ProtocolGRPC         = "grpc"
)

// Config mirrors the export section of the receiver configuration.
type Config struct {
	Enabled         bool
	Protocol        string
	Endpoint        string
	LogsEndpoint    string
	MetricsEndpoint string
	Timeout         time.Duration
	Retries         int
	Headers         map[string]string
}

// Exporter ships raw OTLP-JSON payloads downstream.
type Exporter struct {
	cfg    Config
	http   *http.Client
	grpc   *connCache
	logger *slog.Logger
}

// New creates an exporter. A disabled config still yields a usable
// value whose Export is a no-op.
func New(cfg Config, logger *slog.Logger) *Exporter {
	if cfg.Protocol == "" {
		cfg.Protocol = ProtocolHTTPJSON
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	return &Exporter{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		grpc:   newConnCache(),
		logger: logger,
	}
}

// Enabled reports whether exporting is configured.
func (e *Exporter) Enabled() bool {
	return e.cfg.Enabled && e.cfg.Endpoint != ""
}

// ExportAsync forwards the payload in a detached goroutine with its own
// timeout context so the caller's request never waits on it.
func (e *Exporter) ExportAsync(signal Signal, payload []byte) {
	if !e.Enabled() {
		return
	}
	// The payload buffer belongs to the request; copy before detaching.
	body := make([]byte, len(payload))
	copy(body, payload)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Timeout*time.Duration(e.cfg.Retries+1))
		defer cancel()
		if err := e.Export(ctx, signal, body); err != nil {
			e.logger.Warn("otlp export dropped",
				slog.String("signal", string(signal)),
				slog.String("protocol", e.cfg.Protocol),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Export forwards the payload synchronously with retry.
func (e *Exporter) Export(ctx context.Context, signal Signal, payload []byte) error {
	return RetryWithBackoff(ctx, e.cfg.Retries, 500*time.Millisecond, func() error {
		switch e.cfg.Protocol {
		case ProtocolHTTPJSON:
			return e.postHTTP(ctx, signal, payload, "application/json")
		case ProtocolHTTPProtobuf:
			wire, err := jsonToProtobuf(signal, payload)
			if err != nil {
				return err
			}
			return e.postHTTP(ctx, signal, wire, "application/x-protobuf")
		case ProtocolGRPC:
			return e.exportGRPC(ctx, signal, payload)
		default:
			return fmt.Errorf("unsupported export protocol %q", e.cfg.Protocol)
		}
	})
}

// endpointFor resolves the per-signal endpoint: an explicit override
// wins; otherwise the standard signal path is appended to the base
// endpoint unless already present. gRPC endpoints are used verbatim.
func (e *Exporter) endpointFor(signal Signal) string {
	switch signal {
	case SignalLogs:
		if e.cfg.LogsEndpoint != "" {
			return e.cfg.LogsEndpoint
		}
	case SignalMetrics:
		if e.cfg.MetricsEndpoint != "" {
			return e.cfg.MetricsEndpoint
		}
	}
	if e.cfg.Protocol == ProtocolGRPC {
		return e.cfg.Endpoint
	}
	path := "/v1/" + string(signal)
	base := strings.TrimSuffix(e.cfg.Endpoint, "/")
	if strings.HasSuffix(base, path) {
		return base
	}
	return base + path
}

func (e *Exporter) postHTTP(ctx context.Context, signal Signal, body []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpointFor(signal), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	for k, v := range e.cfg.Headers {
		req.Header.Set(k, v)
	}
	resp, err := e.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("collector returned %d: %s", resp.StatusCode, msg)
	}
	return nil
}

// jsonToProtobuf re-encodes an OTLP-JSON payload into the protobuf
// wire format via the collector request schema.
func jsonToProtobuf(signal Signal, payload []byte) ([]byte, error) {
	msg, err := decodeRequest(signal, payload)
	if err != nil {
		return nil, err
	}
	wire, err := proto.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode otlp protobuf: %w", err)
	}
	return wire, nil
}

func decodeRequest(signal Signal, payload []byte) (proto.Message, error) {
	opts := protojson.UnmarshalOptions{DiscardUnknown: true}
	switch signal {
	case SignalMetrics:
		req := &colmetricspb.ExportMetricsServiceRequest{}
		if err := opts.Unmarshal(payload, req); err != nil {
			return nil, fmt.Errorf("decode otlp metrics json: %w", err)
		}
		return req, nil
	default:
		req := &collogspb.ExportLogsServiceRequest{}
		if err := opts.Unmarshal(payload, req); err != nil {
			return nil, fmt.Errorf("decode otlp logs json: %w", err)
		}
		return req, nil
	}
}

// Close releases cached gRPC connections.
func (e *Exporter) Close() {
	e.grpc.Close()
}
