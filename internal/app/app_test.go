package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"

	"github.com/hitoshi/roadmap/internal/logger"
)

// lockedBuffer はgoroutineから並行に書き込まれるログを受けるバッファ。
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func setTestEnv(t *testing.T) {
	t.Helper()
	t.Setenv("LINEAR_API_KEY", "lin_api_test")
	t.Setenv("LINEAR_API_URL", "")
	t.Setenv("ROADMAP_CONFIG_FILE", "")
	t.Setenv("SERVER_PORT", "0")
	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("METRICS_ENABLED", "")
	t.Setenv("STATUS_OVERRIDES", "")
}

func TestInit_WithValidConfig_Succeeds(t *testing.T) {
	setTestEnv(t)

	var buf bytes.Buffer
	cfg, err := Init(&buf, "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg == nil {
		t.Fatal("expected non-nil config")
	}
	if cfg.LinearAPIKey != "lin_api_test" {
		t.Errorf("LinearAPIKey = %q, want %q", cfg.LinearAPIKey, "lin_api_test")
	}

	// グローバルロガーがJSON出力になっていること
	slog.Default().Info("init test")
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log output, got error: %v\nraw: %s", err, buf.String())
	}
	if entry["msg"] != "init test" {
		t.Errorf("msg = %q, want %q", entry["msg"], "init test")
	}
}

func TestInit_WithMissingConfig_ReturnsError(t *testing.T) {
	setTestEnv(t)
	t.Setenv("LINEAR_API_KEY", "")

	var buf bytes.Buffer
	cfg, err := Init(&buf, "")
	if err == nil {
		t.Fatal("expected error for missing required env vars, got nil")
	}
	if cfg != nil {
		t.Error("expected nil config on error")
	}
}

func TestInit_AppliesLogLevel(t *testing.T) {
	setTestEnv(t)
	t.Setenv("LOG_LEVEL", "error")
	t.Cleanup(func() { logger.SetLevel("info") })

	var buf bytes.Buffer
	if _, err := Init(&buf, ""); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	slog.Default().Info("should be filtered")
	if buf.Len() != 0 {
		t.Errorf("info log should be filtered at error level, got %q", buf.String())
	}
}

func TestInit_UnknownLogLevel_WarnsAndContinues(t *testing.T) {
	setTestEnv(t)
	t.Setenv("LOG_LEVEL", "verbose")

	var buf bytes.Buffer
	if _, err := Init(&buf, ""); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON warning, got error: %v\nraw: %s", err, buf.String())
	}
	if entry["level"] != "WARN" {
		t.Errorf("level = %v, want WARN", entry["level"])
	}
	if entry["log_level"] != "verbose" {
		t.Errorf("log_level = %v, want verbose", entry["log_level"])
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
