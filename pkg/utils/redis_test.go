package utils

import (
	"context"
	"testing"
	"time"
)

func TestConcurrencyScriptsCompile(t *testing.T) {
	// Compile-time smoke test: scripts should be initialized.
	if concurrencyAcquireScript == nil || concurrencyReleaseScript == nil {
		t.Fatalf("expected scripts to be initialized")
	}
}

func TestAcquireConcurrencyCap_RejectsBadArgs(t *testing.T) {
	ctx := context.Background()
	if _, err := AcquireConcurrencyCap(ctx, nil, "k", 1, time.Second); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if err := ReleaseConcurrencyCap(ctx, nil, "k"); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func TestRedisConfigDefaults(t *testing.T) {
	cfg := RedisConfig{Addr: "localhost:6379"}.withDefaults()
	if cfg.DialTimeout <= 0 || cfg.PoolSize <= 0 || cfg.PingTimeout <= 0 {
		t.Fatalf("expected defaults applied, got %+v", cfg)
	}
}
