package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsAndSetupMode(t *testing.T) {
	t.Setenv("ENV", "dev")
	t.Setenv("BACKEND_URL", "")
	t.Setenv("BACKEND_ANON_KEY", "")
	cfg, err := load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.SubmitCooldown != 2*time.Second || cfg.ResetDelay != 3*time.Second {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.StorageBucket != "problem-images" || cfg.PointsPerReport != 10 {
		t.Fatalf("unexpected storage defaults %+v", cfg)
	}
	if cfg.SessionIdleTimeout != 24*time.Hour || cfg.SessionSweepInterval != time.Minute {
		t.Fatalf("unexpected session defaults %+v", cfg)
	}
	if !cfg.DemoFixtures {
		t.Fatalf("dev env must enable demo fixtures")
	}
	missing := cfg.Missing()
	if cfg.Configured() || len(missing) != 2 || missing[0] != "BACKEND_URL" {
		t.Fatalf("expected setup mode, missing %v", missing)
	}
}

func TestLoadFromEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "ENV=prod\nBACKEND_URL=https://backend.test/\nBACKEND_ANON_KEY=anon\nSUBMIT_DELAY=0s\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	cfg, err := load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Configured() || cfg.BackendURL != "https://backend.test" {
		t.Fatalf("unexpected backend config %+v", cfg)
	}
	if cfg.DemoFixtures {
		t.Fatalf("fixtures must default off outside dev")
	}
	if cfg.SubmitDelay != 0 {
		t.Fatalf("expected zero submit delay, got %s", cfg.SubmitDelay)
	}
}
