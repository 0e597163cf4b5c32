package config

import (
	"strings"
	"testing"
	"time"
)

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", testKeyHex)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Collector.Interval != 30*time.Second {
		t.Errorf("Interval = %v, want 30s", cfg.Collector.Interval)
	}
	if cfg.Collector.NumWorkers != 5 {
		t.Errorf("NumWorkers = %d, want 5", cfg.Collector.NumWorkers)
	}
	if cfg.Collector.WorkerMode != WorkerModeProcess {
		t.Errorf("WorkerMode = %q, want process", cfg.Collector.WorkerMode)
	}
	if cfg.Collector.TotalLookbackDays != 365 {
		t.Errorf("TotalLookbackDays = %d, want 365", cfg.Collector.TotalLookbackDays)
	}
	if len(cfg.Terminal.Endpoints) != 5 {
		t.Fatalf("Endpoints = %v, want 5 entries", cfg.Terminal.Endpoints)
	}
	if cfg.Terminal.Endpoints[0] != "http://127.0.0.1:18811" || cfg.Terminal.Endpoints[4] != "http://127.0.0.1:18815" {
		t.Errorf("unexpected default endpoints: %v", cfg.Terminal.Endpoints)
	}

	key, err := cfg.EncryptionKeyBytes()
	if err != nil || len(key) != 32 {
		t.Errorf("EncryptionKeyBytes() = %d bytes, %v", len(key), err)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", testKeyHex)
	t.Setenv("NUM_WORKERS", "2")
	t.Setenv("WORKER_MODE", "inprocess")
	t.Setenv("COLLECT_INTERVAL", "1m")
	t.Setenv("TERMINAL_ENDPOINTS", "http://a:1, http://b:2 ,")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:3000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Collector.NumWorkers != 2 || cfg.Collector.WorkerMode != WorkerModeInProcess {
		t.Errorf("workers = %d/%s", cfg.Collector.NumWorkers, cfg.Collector.WorkerMode)
	}
	if cfg.Collector.Interval != time.Minute {
		t.Errorf("Interval = %v, want 1m", cfg.Collector.Interval)
	}
	if strings.Join(cfg.Terminal.Endpoints, "|") != "http://a:1|http://b:2" {
		t.Errorf("Endpoints = %v", cfg.Terminal.Endpoints)
	}
	if len(cfg.Server.AllowedOrigins) != 1 {
		t.Errorf("AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"missing key", map[string]string{}, "ENCRYPTION_KEY is required"},
		{"bad key", map[string]string{"ENCRYPTION_KEY": "short"}, "ENCRYPTION_KEY must be"},
		{"zero workers", map[string]string{"ENCRYPTION_KEY": testKeyHex, "NUM_WORKERS": "0"}, "NUM_WORKERS"},
		{"bad mode", map[string]string{"ENCRYPTION_KEY": testKeyHex, "WORKER_MODE": "threads"}, "WORKER_MODE"},
		{"negative timeout", map[string]string{"ENCRYPTION_KEY": testKeyHex, "CALL_TIMEOUT": "-1s"}, "CALL_TIMEOUT"},
		{"job shorter than login", map[string]string{"ENCRYPTION_KEY": testKeyHex, "JOB_TIMEOUT": "5s"}, "JOB_TIMEOUT"},
		{"bad port", map[string]string{"ENCRYPTION_KEY": testKeyHex, "SERVER_PORT": "70000"}, "SERVER_PORT"},
		{
			"not enough endpoints",
			map[string]string{"ENCRYPTION_KEY": testKeyHex, "NUM_WORKERS": "3", "TERMINAL_ENDPOINTS": "http://a:1"},
			"TERMINAL_ENDPOINTS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENCRYPTION_KEY", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			if err == nil {
				t.Fatal("Load() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestDSNWithoutPassword(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "secret", Name: "n", SSLMode: "disable"}

	if strings.Contains(d.DSNWithoutPassword(), "secret") {
		t.Error("DSNWithoutPassword leaks password")
	}
	if !strings.Contains(d.DSN(), "password=secret") {
		t.Error("DSN must contain password")
	}
}
