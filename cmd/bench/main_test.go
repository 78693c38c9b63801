package main

import (
	"testing"
	"time"
)

func TestLoadConfigFlagsAndEnv(t *testing.T) {
	t.Setenv("TRUCKMATCH_BENCH_JWT_SECRET", "from-env")
	t.Setenv("TRUCKMATCH_BENCH_CONCURRENCY", "5")

	cfg, err := loadConfig([]string{"--base-url", "http://api:9000/", "--timeout", "30s"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BaseURL != "http://api:9000" || cfg.Timeout != 30*time.Second {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if cfg.JWTSecret != "from-env" || cfg.Concurrency != 5 {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.ApplyMigration || cfg.MigrationPath != "migrations/0001_init.sql" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadConfigRejectsZeroConcurrency(t *testing.T) {
	if _, err := loadConfig([]string{"--concurrency", "0"}); err == nil {
		t.Fatalf("expected error")
	}
}
