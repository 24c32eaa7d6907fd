package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nunajera/kbchat/internal/config"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"KBCHAT_CONFIG", "GOOGLE_API_KEY", "OPENAI_BASE_URL", "MODEL", "PROVIDER", "LOG_LEVEL",
		"KNOWLEDGE_SOURCE", "KNOWLEDGE_DIR", "PORT", "ALLOW_ORIGIN", "KNOWLEDGE_WATCH",
		"SESSION_TTL", "MAX_UPLOAD_BYTES",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("SECRETS_FILE", filepath.Join(t.TempDir(), "absent.toml"))
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	isolateEnv(t)
	t.Setenv("PROVIDER", "mock")
	t.Setenv("PORT", "9000")

	cmd := newRootCmd()
	if err := cmd.ParseFlags([]string{"--source", "autoload", "--dir", "/srv/kb", "--watch"}); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Knowledge.Source != config.SourceAutoload || cfg.Knowledge.Dir != "/srv/kb" || !cfg.Knowledge.Watch {
		t.Fatalf("knowledge flags not applied: %+v", cfg.Knowledge)
	}
	if cfg.Server.Port != "9000" {
		t.Fatalf("unset flag should keep env port, got %q", cfg.Server.Port)
	}
}

func TestMissingKeyIsFatal(t *testing.T) {
	isolateEnv(t)

	cmd := newRootCmd()
	cmd.SetArgs([]string{"models"})
	err := cmd.ExecuteContext(context.Background())
	if !errors.Is(err, config.ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestDiagnosticSourceListsModels(t *testing.T) {
	isolateEnv(t)

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--provider", "mock", "--source", "diagnostic"})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("execute: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "mock-qa") || !strings.Contains(got, "1 model(s) available") {
		t.Fatalf("unexpected listing:\n%s", got)
	}
}
