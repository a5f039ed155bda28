// Package config loads the receiver configuration from an optional
// YAML file layered under environment variables.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Langfuse LangfuseConfig `koanf:"langfuse"`
	Session  SessionConfig  `koanf:"session"`
	Export   ExportConfig   `koanf:"export"`
}

type ServerConfig struct {
	Port         int           `koanf:"port"`
	MaxBodyBytes int64         `koanf:"max_body_bytes"`
	Timeout      time.Duration `koanf:"timeout"`
}

type LangfuseConfig struct {
	Host          string        `koanf:"host"`
	PublicKey     string        `koanf:"public_key"`
	SecretKey     string        `koanf:"secret_key"`
	FlushInterval time.Duration `koanf:"flush_interval"`
	BatchSize     int           `koanf:"batch_size"`
	TraceName     string        `koanf:"trace_name"`
	Tags          []string      `koanf:"tags"`
	Environment   string        `koanf:"environment"`
}

type SessionConfig struct {
	Timeout         time.Duration `koanf:"timeout"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

type ExportConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Protocol        string        `koanf:"protocol"`
	Endpoint        string        `koanf:"endpoint"`
	LogsEndpoint    string        `koanf:"logs_endpoint"`
	MetricsEndpoint string        `koanf:"metrics_endpoint"`
	Timeout         time.Duration `koanf:"timeout"`
	Retries         int           `koanf:"retries"`
	RawHeaders      string        `koanf:"headers"`
}

// Headers parses the comma-separated key=value header list.
func (e ExportConfig) Headers() map[string]string {
	if e.RawHeaders == "" {
		return nil
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(e.RawHeaders, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if ok && k != "" {
			out[k] = v
		}
	}
	return out
}

// envKeys maps the documented environment variables onto config paths.
// Unknown variables are skipped rather than guessed at.
var envKeys = map[string]string{
	"PORT":                         "server.port",
	"REQUEST_SIZE_LIMIT":           "server.max_body_bytes",
	"REQUEST_TIMEOUT":              "server.timeout",
	"LANGFUSE_HOST":                "langfuse.host",
	"LANGFUSE_PUBLIC_KEY":          "langfuse.public_key",
	"LANGFUSE_SECRET_KEY":          "langfuse.secret_key",
	"LANGFUSE_FLUSH_INTERVAL":      "langfuse.flush_interval",
	"LANGFUSE_BATCH_SIZE":          "langfuse.batch_size",
	"LANGFUSE_TRACE_NAME":          "langfuse.trace_name",
	"LANGFUSE_TAGS":                "langfuse.tags",
	"LANGFUSE_ENVIRONMENT":         "langfuse.environment",
	"SESSION_TIMEOUT":              "session.timeout",
	"SESSION_CLEANUP_INTERVAL":     "session.cleanup_interval",
	"OTLP_EXPORT_ENABLED":          "export.enabled",
	"OTLP_EXPORT_PROTOCOL":         "export.protocol",
	"OTLP_EXPORT_ENDPOINT":         "export.endpoint",
	"OTLP_EXPORT_LOGS_ENDPOINT":    "export.logs_endpoint",
	"OTLP_EXPORT_METRICS_ENDPOINT": "export.metrics_endpoint",
	"OTLP_EXPORT_TIMEOUT":          "export.timeout",
	"OTLP_EXPORT_RETRIES":          "export.retries",
	"OTLP_EXPORT_HEADERS":          "export.headers",
}

// Load builds the config: defaults, then an optional YAML file, then
// environment variables, each layer overriding the previous.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	k.Set("server.port", 4318)
	k.Set("server.max_body_bytes", int64(10<<20))
	k.Set("server.timeout", "30s")
	k.Set("langfuse.host", "https://cloud.langfuse.com")
	k.Set("langfuse.flush_interval", "5s")
	k.Set("langfuse.batch_size", 100)
	k.Set("session.timeout", "1h")
	k.Set("session.cleanup_interval", "60s")
	k.Set("export.protocol", "http/json")
	k.Set("export.timeout", "10s")
	k.Set("export.retries", 3)

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		return envKeys[s]
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
