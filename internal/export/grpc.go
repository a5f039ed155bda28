package export

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	colmetricspb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
)

// connCache holds one client connection per (endpoint, signal) pair.
// Dialing is lazy; connections ride gRPC's own reconnect machinery.
type connCache struct {
	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}

func newConnCache() *connCache {
	return &connCache{conns: make(map[string]*grpc.ClientConn)}
}

func (c *connCache) get(endpoint string, signal Signal) (*grpc.ClientConn, error) {
	key := endpoint + "|" + string(signal)
	c.mu.Lock()
	defer c.mu.Unlock()
	if conn, ok := c.conns[key]; ok {
		return conn, nil
	}
	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial collector %s: %w", endpoint, err)
	}
	c.conns[key] = conn
	return conn, nil
}

func (c *connCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, conn := range c.conns {
		_ = conn.Close()
		delete(c.conns, key)
	}
}

// exportGRPC decodes the JSON payload into the collector request type
// and delivers it with a unary call on the standard export service.
func (e *Exporter) exportGRPC(ctx context.Context, signal Signal, payload []byte) error {
	conn, err := e.grpc.get(e.endpointFor(signal), signal)
	if err != nil {
		return err
	}
	if len(e.cfg.Headers) > 0 {
		pairs := make([]string, 0, len(e.cfg.Headers)*2)
		for k, v := range e.cfg.Headers {
			pairs = append(pairs, k, v)
		}
		ctx = metadata.AppendToOutgoingContext(ctx, pairs...)
	}

	msg, err := decodeRequest(signal, payload)
	if err != nil {
		return err
	}
	switch req := msg.(type) {
	case *colmetricspb.ExportMetricsServiceRequest:
		_, err = colmetricspb.NewMetricsServiceClient(conn).Export(ctx, req)
	case *collogspb.ExportLogsServiceRequest:
		_, err = collogspb.NewLogsServiceClient(conn).Export(ctx, req)
	}
	if err != nil {
		return fmt.Errorf("grpc export %s: %w", signal, err)
	}
	return nil
}
