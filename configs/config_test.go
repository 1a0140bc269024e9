package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("POSTGRES_URI", "postgres://localhost/publish")
	t.Setenv("SECRET_KEY", "jwt-secret")
	t.Setenv("ENCRYPTION_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("TARGET_TIMEOUT", "45s")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Publishing.RefreshLookahead != 7*24*time.Hour {
		t.Errorf("RefreshLookahead = %v", cfg.Publishing.RefreshLookahead)
	}
	if cfg.Publishing.TargetTimeout != 45*time.Second {
		t.Errorf("TargetTimeout = %v, want env override", cfg.Publishing.TargetTimeout)
	}
	if cfg.Publishing.StepBackoff != 2*time.Second {
		t.Errorf("StepBackoff = %v", cfg.Publishing.StepBackoff)
	}
	if cfg.SchedulerSpec != "@every 1m" {
		t.Errorf("SchedulerSpec = %q", cfg.SchedulerSpec)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			PostgresURI:   "postgres://x",
			SecretKey:     "s",
			EncryptionKey: "0123456789abcdef",
			Publishing: Publishing{
				RefreshLookahead:  time.Hour,
				TargetTimeout:     time.Minute,
				TargetConcurrency: 1,
				PostConcurrency:   1,
				SchedulerBatch:    1,
				StaleAfter:        time.Hour,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing database", func(c *Config) { c.PostgresURI = "" }, "POSTGRES_URI"},
		{"bad key length", func(c *Config) { c.EncryptionKey = "short" }, "ENCRYPTION_KEY"},
		{"zero timeout", func(c *Config) { c.Publishing.TargetTimeout = 0 }, "TARGET_TIMEOUT"},
		{"stale bound under timeout", func(c *Config) { c.Publishing.StaleAfter = time.Second }, "STALE_AFTER"},
		{"no concurrency", func(c *Config) { c.Publishing.PostConcurrency = 0 }, "POST_CONCURRENCY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}
