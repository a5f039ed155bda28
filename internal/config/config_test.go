package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 4318 {
		t.Errorf("Port = %d, want 4318", cfg.Server.Port)
	}
	if cfg.Server.MaxBodyBytes != 10<<20 {
		t.Errorf("MaxBodyBytes = %d, want 10MiB", cfg.Server.MaxBodyBytes)
	}
	if cfg.Server.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Server.Timeout)
	}
	if cfg.Langfuse.Host != "https://cloud.langfuse.com" {
		t.Errorf("Host = %q", cfg.Langfuse.Host)
	}
	if cfg.Session.Timeout != time.Hour || cfg.Session.CleanupInterval != time.Minute {
		t.Errorf("session = %+v", cfg.Session)
	}
	if cfg.Export.Protocol != "http/json" || cfg.Export.Retries != 3 {
		t.Errorf("export = %+v", cfg.Export)
	}
	if cfg.Export.Enabled {
		t.Error("export enabled by default")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("LANGFUSE_PUBLIC_KEY", "pk-env")
	t.Setenv("LANGFUSE_SECRET_KEY", "sk-env")
	t.Setenv("LANGFUSE_TAGS", "team-a,prod")
	t.Setenv("SESSION_TIMEOUT", "30m")
	t.Setenv("OTLP_EXPORT_ENABLED", "true")
	t.Setenv("OTLP_EXPORT_PROTOCOL", "grpc")
	t.Setenv("OTLP_EXPORT_ENDPOINT", "collector:4317")
	t.Setenv("OTLP_EXPORT_HEADERS", "x-api-key=k1,x-team=b")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Langfuse.PublicKey != "pk-env" || cfg.Langfuse.SecretKey != "sk-env" {
		t.Errorf("langfuse keys = %q/%q", cfg.Langfuse.PublicKey, cfg.Langfuse.SecretKey)
	}
	if !reflect.DeepEqual(cfg.Langfuse.Tags, []string{"team-a", "prod"}) {
		t.Errorf("Tags = %v", cfg.Langfuse.Tags)
	}
	if cfg.Session.Timeout != 30*time.Minute {
		t.Errorf("session timeout = %v", cfg.Session.Timeout)
	}
	if !cfg.Export.Enabled || cfg.Export.Protocol != "grpc" || cfg.Export.Endpoint != "collector:4317" {
		t.Errorf("export = %+v", cfg.Export)
	}
	want := map[string]string{"x-api-key": "k1", "x-team": "b"}
	if !reflect.DeepEqual(cfg.Export.Headers(), want) {
		t.Errorf("Headers() = %v, want %v", cfg.Export.Headers(), want)
	}
}

func TestLoadYAMLFileAndEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte(`
server:
  port: 5000
langfuse:
  trace_name: from-file
  environment: staging
`)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORT", "6000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// Environment wins over the file, the file over defaults.
	if cfg.Server.Port != 6000 {
		t.Errorf("Port = %d, want env override 6000", cfg.Server.Port)
	}
	if cfg.Langfuse.TraceName != "from-file" || cfg.Langfuse.Environment != "staging" {
		t.Errorf("langfuse = %+v", cfg.Langfuse)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 4318 {
		t.Errorf("Port = %d, want 4318", cfg.Server.Port)
	}
}

func TestHeadersParsing(t *testing.T) {
	tests := []struct {
		raw  string
		want map[string]string
	}{
		{"", nil},
		{"k=v", map[string]string{"k": "v"}},
		{"a=1,b=2", map[string]string{"a": "1", "b": "2"}},
		{" a=1 , b=2", map[string]string{"a": "1", "b": "2"}},
		{"novalue,k=v", map[string]string{"k": "v"}},
		{"k=has=equals", map[string]string{"k": "has=equals"}},
	}
	for _, tt := range tests {
		got := ExportConfig{RawHeaders: tt.raw}.Headers()
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Headers(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
