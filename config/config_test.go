package config

import (
	"testing"
)

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", DBName: "inkpress", User: "app", Password: "pw"}
	dsn, err := p.DSN()
	if err != nil {
		t.Fatalf("DSN: %v", err)
	}
	want := "postgres://app:pw@db:5432/inkpress?sslmode=disable"
	if dsn != want {
		t.Fatalf("dsn = %q, want %q", dsn, want)
	}

	p.URL = "postgres://override"
	if dsn, _ := p.DSN(); dsn != "postgres://override" {
		t.Fatalf("explicit url must win, got %q", dsn)
	}

	if _, err := (PostgresConfig{}).DSN(); err == nil {
		t.Fatal("expected error for unconfigured postgres")
	}
}

func TestRedisAddr(t *testing.T) {
	if addr := (RedisConfig{Host: "cache", Port: "6379"}).Addr(); addr != "cache:6379" {
		t.Fatalf("addr = %q", addr)
	}
	if addr := (RedisConfig{}).Addr(); addr != "" {
		t.Fatalf("expected empty addr, got %q", addr)
	}
}

func TestNarrationConfigured(t *testing.T) {
	n := NarrationConfig{Endpoint: "s3.local", Bucket: "essays", AccessKey: "k"}
	if !n.Configured() {
		t.Fatal("expected configured")
	}
	n.Bucket = ""
	if n.Configured() {
		t.Fatal("expected unconfigured without bucket")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig("")
	if cfg.LLM.MaxRetries != 3 {
		t.Fatalf("llm.max_retries default = %d", cfg.LLM.MaxRetries)
	}
	if cfg.History.RecentWindowDays != 7 {
		t.Fatalf("history.recent_window_days default = %d", cfg.History.RecentWindowDays)
	}
	if cfg.Publisher.BaseURL == "" || cfg.Publisher.Critical {
		t.Fatalf("unexpected publisher defaults: %+v", cfg.Publisher)
	}
	if cfg.Schedule.Cron != "@daily" {
		t.Fatalf("schedule.cron default = %q", cfg.Schedule.Cron)
	}
}
