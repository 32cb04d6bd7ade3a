package config

import (
	"testing"
	"time"
)

func validBase() Config {
	return Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "signaling"},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLModeAndPushGateway(t *testing.T) {
	c := validBase()
	c.App.Env = "production"
	c.Auth.JWTIssuer = "issuer"
	c.Auth.JWTAudience = "aud"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE and PUSH_GATEWAY_URL")
	}

	c.DB.SSLMode = "require"
	c.Push.GatewayURL = "https://push.internal/send"
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidate_LocalDefaultsSSLMode(t *testing.T) {
	c := validBase()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
}

func TestValidate_SignalDefaults(t *testing.T) {
	c := validBase()
	if err := c.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if c.Signal.RingingTimeout != 45*time.Second {
		t.Fatalf("expected 45s ring timeout default, got %v", c.Signal.RingingTimeout)
	}
	if c.Signal.OfflineGrace != 30*time.Second {
		t.Fatalf("expected 30s grace default, got %v", c.Signal.OfflineGrace)
	}
	if c.Signal.MaxConnectionsPerIdentity != 5 {
		t.Fatalf("expected 5 device cap default, got %d", c.Signal.MaxConnectionsPerIdentity)
	}
	if c.Push.Timeout != 5*time.Second {
		t.Fatalf("expected 5s push timeout default, got %v", c.Push.Timeout)
	}
}

func TestValidate_RingTimeoutUpperBound(t *testing.T) {
	c := validBase()
	c.Signal.RingingTimeout = 10 * time.Minute
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for excessive ring timeout")
	}
}

func TestValidate_RefreshTTLMustExceedAccessTTL(t *testing.T) {
	c := validBase()
	c.Auth.AccessTokenTTL = time.Hour
	c.Auth.RefreshTokenTTL = time.Minute
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for refresh <= access TTL")
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "postgres")
	t.Setenv("DB_PASSWORD", "x")
	t.Setenv("DB_NAME", "signaling")
	t.Setenv("REDIS_HOST", "localhost")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("SIGNAL_RING_TIMEOUT", "20s")
	t.Setenv("SIGNAL_MAX_CONNS_PER_IDENTITY", "3")

	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Signal.RingingTimeout != 20*time.Second {
		t.Fatalf("expected 20s ring timeout, got %v", c.Signal.RingingTimeout)
	}
	if c.Signal.MaxConnectionsPerIdentity != 3 {
		t.Fatalf("expected device cap 3, got %d", c.Signal.MaxConnectionsPerIdentity)
	}
	if c.HTTPAddr() != ":8080" {
		t.Fatalf("unexpected addr %q", c.HTTPAddr())
	}
	if c.RedisAddr() != "localhost:6379" {
		t.Fatalf("unexpected redis addr %q", c.RedisAddr())
	}
}

func TestLoad_RejectsBadPort(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("APP_PORT", "not-a-port")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "postgres")
	t.Setenv("DB_NAME", "signaling")
	t.Setenv("REDIS_HOST", "localhost")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("JWT_SECRET", "secret")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for bad APP_PORT")
	}
}
