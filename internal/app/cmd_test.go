package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	root := newRootCommand(&bytes.Buffer{})

	for _, name := range []Command{CommandServe, CommandHealthcheck} {
		cmd, _, err := root.Find([]string{string(name)})
		if err != nil {
			t.Fatalf("Find(%q) error: %v", name, err)
		}
		if cmd.Name() != string(name) {
			t.Errorf("Find(%q) = %q", name, cmd.Name())
		}
	}
}

func TestRootCommand_ConfigFlagDefaultsToEnv(t *testing.T) {
	t.Setenv("ROADMAP_CONFIG_FILE", "/etc/roadmap.yaml")

	root := newRootCommand(&bytes.Buffer{})
	flag := root.PersistentFlags().Lookup("config")
	if flag == nil {
		t.Fatal("expected --config flag")
	}
	if flag.DefValue != "/etc/roadmap.yaml" {
		t.Errorf("--config default = %q, want %q", flag.DefValue, "/etc/roadmap.yaml")
	}
}

func TestRun_UnknownCommand_ReturnsError(t *testing.T) {
	setTestEnv(t)

	err := Run(context.Background(), &bytes.Buffer{}, []string{"worker"})
	if err == nil {
		t.Fatal("expected error for unknown command, got nil")
	}
}

func TestRun_Healthcheck_SkipsConfig(t *testing.T) {
	// healthcheckは設定を読み込まないため、APIキーが無くても動作する
	t.Setenv("LINEAR_API_KEY", "")

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	err := Run(context.Background(), &bytes.Buffer{}, []string{"healthcheck", "--port", portOf(t, ts.URL)})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestRunHealthcheck_Unhealthy_ReturnsError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	if err := runHealthcheck(context.Background(), portOf(t, ts.URL)); err == nil {
		t.Fatal("expected error for 503 response, got nil")
	}
}

func TestRunHealthcheck_ServerDown_ReturnsError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	port := portOf(t, ts.URL)
	ts.Close()

	if err := runHealthcheck(context.Background(), port); err == nil {
		t.Fatal("expected error when server is down, got nil")
	}
}

func portOf(t *testing.T, rawURL string) string {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	return u.Port()
}
