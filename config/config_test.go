package config

import (
	"os"
	"testing"
	"time"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("setenv %s failed: %v", key, err)
	}
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	_ = os.Unsetenv(key)
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		}
	})
}

func clearYappyEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"YAPPY_AVAILABLE", "YAPPY_ENVIRONMENT", "YAPPY_BASE_URL",
		"YAPPY_MERCHANT_ID", "YAPPY_DOMAIN", "YAPPY_WEBHOOK_SECRET",
		"SESSIONS_STORE_BACKEND", "MYSQL_DSN", "REDIS_ADDR",
	} {
		unsetEnv(t, key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearYappyEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.App.ServiceName != "yappy-gateway" {
		t.Errorf("service name = %s", cfg.App.ServiceName)
	}
	if cfg.HTTP.Port != "8080" {
		t.Errorf("http port = %s", cfg.HTTP.Port)
	}
	if cfg.Store.Backend != StoreBackendMemory {
		t.Errorf("store backend = %s, want memory", cfg.Store.Backend)
	}
	if cfg.Yappy.BaseURL != yappyTestBaseURL {
		t.Errorf("base url = %s, want the UAT endpoint", cfg.Yappy.BaseURL)
	}
	if !cfg.Yappy.SimulationMode() {
		t.Error("simulation mode should be on without merchant credentials")
	}
	if cfg.Sessions.TTL != 15*time.Minute {
		t.Errorf("session ttl = %s", cfg.Sessions.TTL)
	}
	if cfg.Sessions.ReconcileStaleAfter != 5*time.Minute {
		t.Errorf("reconcile stale after = %s", cfg.Sessions.ReconcileStaleAfter)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearYappyEnv(t)
	setEnv(t, "YAPPY_AVAILABLE", "true")
	setEnv(t, "YAPPY_ENVIRONMENT", "prod")
	setEnv(t, "YAPPY_MERCHANT_ID", "merchant-1")
	setEnv(t, "YAPPY_DOMAIN", "https://shop.example.com")
	setEnv(t, "SESSIONS_TTL_MINUTES", "30")
	setEnv(t, "SESSIONS_JOB_BATCH_SIZE", "250")
	setEnv(t, "YAPPY_HTTP_TIMEOUT_SECONDS", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Yappy.BaseURL != yappyProdBaseURL {
		t.Errorf("base url = %s, want the production endpoint", cfg.Yappy.BaseURL)
	}
	if cfg.Yappy.SimulationMode() {
		t.Error("simulation mode should be off with merchant credentials")
	}
	if cfg.Sessions.TTL != 30*time.Minute {
		t.Errorf("session ttl = %s", cfg.Sessions.TTL)
	}
	if cfg.Sessions.JobBatchSize != 250 {
		t.Errorf("batch size = %d", cfg.Sessions.JobBatchSize)
	}
	if cfg.Yappy.HTTPTimeout != 3*time.Second {
		t.Errorf("http timeout = %s", cfg.Yappy.HTTPTimeout)
	}
}

func TestLoadExplicitBaseURLWins(t *testing.T) {
	clearYappyEnv(t)
	setEnv(t, "YAPPY_BASE_URL", "https://yappy.test.internal")
	setEnv(t, "YAPPY_ENVIRONMENT", "prod")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Yappy.BaseURL != "https://yappy.test.internal" {
		t.Errorf("base url = %s", cfg.Yappy.BaseURL)
	}
}

func TestLoadRequiresMerchantWhenAvailable(t *testing.T) {
	clearYappyEnv(t)
	setEnv(t, "YAPPY_AVAILABLE", "true")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing YAPPY_MERCHANT_ID")
	}
}

func TestLoadRequiresDomainWhenAvailable(t *testing.T) {
	clearYappyEnv(t)
	setEnv(t, "YAPPY_AVAILABLE", "true")
	setEnv(t, "YAPPY_MERCHANT_ID", "merchant-1")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing YAPPY_DOMAIN")
	}
}

func TestLoadUnknownEnvironment(t *testing.T) {
	clearYappyEnv(t)
	setEnv(t, "YAPPY_ENVIRONMENT", "sandbox")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown YAPPY_ENVIRONMENT")
	}
}

func TestLoadStoreBackendValidation(t *testing.T) {
	clearYappyEnv(t)
	setEnv(t, "SESSIONS_STORE_BACKEND", "mysql")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for mysql backend without MYSQL_DSN")
	}

	setEnv(t, "MYSQL_DSN", "root:root@tcp(localhost:3306)/payments?parseTime=true")
	if _, err := Load(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	setEnv(t, "SESSIONS_STORE_BACKEND", "redis")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for redis backend without REDIS_ADDR")
	}

	setEnv(t, "REDIS_ADDR", "localhost:6379")
	if _, err := Load(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	setEnv(t, "SESSIONS_STORE_BACKEND", "etcd")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown SESSIONS_STORE_BACKEND")
	}
}
