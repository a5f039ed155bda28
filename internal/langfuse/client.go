package langfuse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sink is the surface the rest of the receiver talks to. All calls are
// best-effort: failures are logged by the implementation, never
// returned to the ingestion path. Flush is the one operation that
// reports errors, for shutdown diagnostics.
type Sink interface {
	Trace(opts TraceOptions) string
	UpdateTrace(id string, upd TraceUpdate)
	Span(opts SpanOptions) string
	UpdateSpan(id string, upd SpanUpdate)
	Generation(opts GenerationOptions)
	Event(opts EventOptions)
	Score(opts ScoreOptions)
	Flush(ctx context.Context) error
	Enabled() bool
}

// Config configures the ingestion client.
type Config struct {
	Host          string
	PublicKey     string
	SecretKey     string
	FlushInterval time.Duration
	BatchSize     int
	Timeout       time.Duration
}

// ingestionEvent is the envelope the batch API expects.
type ingestionEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Body      any       `json:"body"`
}

type traceBody struct {
	ID        string            `json:"id"`
	Name      string            `json:"name,omitempty"`
	SessionID string            `json:"sessionId,omitempty"`
	UserID    string            `json:"userId,omitempty"`
	Input     any               `json:"input,omitempty"`
	Output    any               `json:"output,omitempty"`
	Tags      []string          `json:"tags,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

type observationBody struct {
	ID            string            `json:"id"`
	TraceID       string            `json:"traceId"`
	Name          string            `json:"name,omitempty"`
	Type          string            `json:"type"`
	Input         any               `json:"input,omitempty"`
	Output        any               `json:"output,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Level         string            `json:"level,omitempty"`
	StartTime     time.Time         `json:"startTime"`
	EndTime       *time.Time        `json:"endTime,omitempty"`
	Model         string            `json:"model,omitempty"`
	Usage         *Usage            `json:"usage,omitempty"`
	TotalCost     float64           `json:"totalCost,omitempty"`
	StatusMessage string            `json:"statusMessage,omitempty"`
}

type scoreBody struct {
	ID      string  `json:"id"`
	TraceID string  `json:"traceId"`
	Name    string  `json:"name"`
	Value   float64 `json:"value"`
	Comment string  `json:"comment,omitempty"`
}

// Client batches ingestion events and ships them on an interval, on
// batch-size pressure, or on an explicit Flush.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger

	mu      sync.Mutex
	pending []ingestionEvent

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewClient creates a client and starts its background flush loop. A
// client with empty credentials is disabled: every call becomes a
// no-op, which keeps the receiver usable without a Langfuse account.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Host == "" {
		cfg.Host = "https://cloud.langfuse.com"
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	if c.Enabled() {
		go c.flushLoop()
	} else {
		close(c.doneCh)
		logger.Warn("langfuse disabled: no credentials configured")
	}
	return c
}

// Enabled reports whether credentials are configured.
func (c *Client) Enabled() bool {
	return c.cfg.PublicKey != "" && c.cfg.SecretKey != ""
}

// HealthCheck verifies credentials against the public health endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.Enabled() {
		return fmt.Errorf("langfuse not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Host+"/api/public/health", nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.cfg.PublicKey, c.cfg.SecretKey)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("langfuse health check: status %d: %s", resp.StatusCode, body)
	}
	return nil
}

func (c *Client) Trace(opts TraceOptions) string {
	id := uuid.New().String()
	ts := opts.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	c.enqueue("trace-create", traceBody{
		ID:        id,
		Name:      opts.Name,
		SessionID: opts.SessionID,
		UserID:    opts.UserID,
		Input:     opts.Input,
		Output:    opts.Output,
		Tags:      opts.Tags,
		Metadata:  FlattenMetadata(opts.Metadata),
		Timestamp: ts,
	})
	return id
}

func (c *Client) UpdateTrace(id string, upd TraceUpdate) {
	if id == "" {
		return
	}
	c.enqueue("trace-create", traceBody{
		ID:        id,
		Output:    upd.Output,
		Metadata:  FlattenMetadata(upd.Metadata),
		Timestamp: time.Now().UTC(),
	})
}

func (c *Client) Span(opts SpanOptions) string {
	id := uuid.New().String()
	st := opts.StartTime
	if st.IsZero() {
		st = time.Now().UTC()
	}
	c.enqueue("span-create", observationBody{
		ID:        id,
		TraceID:   opts.TraceID,
		Name:      opts.Name,
		Type:      "SPAN",
		Input:     opts.Input,
		Metadata:  FlattenMetadata(opts.Metadata),
		StartTime: st,
	})
	return id
}

func (c *Client) UpdateSpan(id string, upd SpanUpdate) {
	if id == "" {
		return
	}
	end := upd.EndTime
	if end.IsZero() {
		end = time.Now().UTC()
	}
	c.enqueue("span-update", observationBody{
		ID:      id,
		TraceID: upd.TraceID,
		Type:    "SPAN",
		Output:  upd.Output,
		EndTime: &end,
		// StartTime is required by the schema; span-update bodies carry
		// the end as both bounds when the original start is unknown.
		StartTime: end,
	})
}

func (c *Client) Generation(opts GenerationOptions) {
	st := opts.StartTime
	if st.IsZero() {
		st = time.Now().UTC()
	}
	body := observationBody{
		ID:        uuid.New().String(),
		TraceID:   opts.TraceID,
		Name:      opts.Name,
		Type:      "GENERATION",
		Input:     opts.Input,
		Output:    opts.Output,
		Metadata:  FlattenMetadata(opts.Metadata),
		Level:     opts.Level,
		StartTime: st,
		Model:     opts.Model,
		TotalCost: opts.CostUSD,
	}
	if opts.Usage.Total > 0 {
		u := opts.Usage
		body.Usage = &u
	}
	if !opts.EndTime.IsZero() {
		end := opts.EndTime
		body.EndTime = &end
	}
	c.enqueue("generation-create", body)
}

func (c *Client) Event(opts EventOptions) {
	ts := opts.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	c.enqueue("event-create", observationBody{
		ID:        uuid.New().String(),
		TraceID:   opts.TraceID,
		Name:      opts.Name,
		Type:      "EVENT",
		Input:     opts.Input,
		Output:    opts.Output,
		Metadata:  FlattenMetadata(opts.Metadata),
		Level:     opts.Level,
		StartTime: ts,
	})
}

func (c *Client) Score(opts ScoreOptions) {
	c.enqueue("score-create", scoreBody{
		ID:      uuid.New().String(),
		TraceID: opts.TraceID,
		Name:    opts.Name,
		Value:   opts.Value,
		Comment: opts.Comment,
	})
}

func (c *Client) enqueue(eventType string, body any) {
	if !c.Enabled() {
		return
	}
	ev := ingestionEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Body:      body,
	}
	c.mu.Lock()
	c.pending = append(c.pending, ev)
	full := len(c.pending) >= c.cfg.BatchSize
	c.mu.Unlock()
	if full {
		if err := c.Flush(context.Background()); err != nil {
			c.logger.Warn("langfuse batch flush failed", slog.String("error", err.Error()))
		}
	}
}

// Flush synchronously ships all pending events.
func (c *Client) Flush(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	c.mu.Lock()
	batch := c.pending
	c.pending = nil
	c.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}

	payload, err := json.Marshal(map[string]any{"batch": batch})
	if err != nil {
		return fmt.Errorf("encode ingestion batch: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Host+"/api/public/ingestion", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.cfg.PublicKey, c.cfg.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("langfuse ingestion: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	// 207 means partial failure; individual errors are reported in the
	// body but the accepted events are already committed.
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("langfuse ingestion: status %d: %s", resp.StatusCode, body)
	}
	c.logger.Debug("langfuse batch shipped", slog.Int("events", len(batch)))
	return nil
}

func (c *Client) flushLoop() {
	defer close(c.doneCh)
	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.Flush(context.Background()); err != nil {
				c.logger.Warn("langfuse flush failed", slog.String("error", err.Error()))
			}
		case <-c.stopCh:
			return
		}
	}
}

// Shutdown stops the flush loop after a final flush.
func (c *Client) Shutdown(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		close(c.stopCh)
		<-c.doneCh
		err = c.Flush(ctx)
	})
	return err
}
