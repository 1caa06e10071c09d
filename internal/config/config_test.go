package config

import (
	"os"
	"testing"
	"time"
)

// isolate runs the test in an empty directory with the given variables unset.
func isolate(t *testing.T, keys ...string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	for _, k := range keys {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t, "DB_DRIVER", "CHECK_INTERVAL", "HTTP_ADDR", "SCHEDULER_ENABLED")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBDriver != "sqlite" || cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.CheckInterval != time.Minute {
		t.Fatalf("interval = %s, want 1m", cfg.CheckInterval)
	}
	if !cfg.SchedulerEnabled {
		t.Fatal("scheduler should be enabled by default")
	}
}

func TestLoad_PostgresNeedsURL(t *testing.T) {
	isolate(t, "DATABASE_URL", "CHECK_INTERVAL")
	t.Setenv("DB_DRIVER", "postgres")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without DATABASE_URL")
	}
}

func TestLoad_UnknownDriver(t *testing.T) {
	isolate(t, "CHECK_INTERVAL")
	t.Setenv("DB_DRIVER", "mongo")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestLoad_CheckIntervalBounds(t *testing.T) {
	for _, v := range []string{"2m", "5m", "500ms"} {
		t.Run(v, func(t *testing.T) {
			isolate(t, "DB_DRIVER")
			t.Setenv("CHECK_INTERVAL", v)
			if _, err := Load(); err == nil {
				t.Fatalf("CHECK_INTERVAL=%s should be rejected", v)
			}
		})
	}

	isolate(t, "DB_DRIVER")
	t.Setenv("CHECK_INTERVAL", "30s")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CheckInterval != 30*time.Second {
		t.Fatalf("interval = %s, want 30s", cfg.CheckInterval)
	}
}
