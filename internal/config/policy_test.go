package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"bank-terminal-go/internal/models"

	"github.com/shopspring/decimal"
)

func TestParsePolicy_EmptyKeepsDefaults(t *testing.T) {
	policy, err := ParsePolicy([]byte(""))
	if err != nil {
		t.Fatalf("ParsePolicy failed: %v", err)
	}

	def := models.DefaultSecurityPolicy()
	if policy.MaxFailedAttempts != def.MaxFailedAttempts {
		t.Errorf("Expected max failed attempts %d, got %d", def.MaxFailedAttempts, policy.MaxFailedAttempts)
	}
	if policy.SessionTimeout != 15*time.Minute {
		t.Errorf("Expected session timeout 15m, got %v", policy.SessionTimeout)
	}
	if !policy.HighValueThreshold.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("Expected high value threshold 50000, got %s", policy.HighValueThreshold)
	}
}

func TestParsePolicy_Overrides(t *testing.T) {
	data := []byte(`
lockout:
  max_failed_attempts: 5
  inactivity: 720h
sessions:
  timeout: 10m
challenges:
  ttl: 2m
  digits: 8
  high_value_threshold: "75000"
detection:
  max_logins: 20
  balance_fraction: "0.9"
limits:
  daily_withdrawal_limit: "25000.50"
`)

	policy, err := ParsePolicy(data)
	if err != nil {
		t.Fatalf("ParsePolicy failed: %v", err)
	}

	if policy.MaxFailedAttempts != 5 {
		t.Errorf("Expected 5 failed attempts, got %d", policy.MaxFailedAttempts)
	}
	if policy.InactivityLock != 720*time.Hour {
		t.Errorf("Expected inactivity 720h, got %v", policy.InactivityLock)
	}
	if policy.SessionTimeout != 10*time.Minute {
		t.Errorf("Expected session timeout 10m, got %v", policy.SessionTimeout)
	}
	if policy.ChallengeTTL != 2*time.Minute || policy.ChallengeDigits != 8 {
		t.Errorf("Unexpected challenge settings: ttl=%v digits=%d", policy.ChallengeTTL, policy.ChallengeDigits)
	}
	if !policy.HighValueThreshold.Equal(decimal.NewFromInt(75000)) {
		t.Errorf("Expected high value threshold 75000, got %s", policy.HighValueThreshold)
	}
	if policy.MaxLoginsPerWindow != 20 {
		t.Errorf("Expected 20 logins per window, got %d", policy.MaxLoginsPerWindow)
	}
	if !policy.BalanceFraction.Equal(decimal.RequireFromString("0.9")) {
		t.Errorf("Expected balance fraction 0.9, got %s", policy.BalanceFraction)
	}
	if !policy.DailyWithdrawalLimit.Equal(decimal.RequireFromString("25000.50")) {
		t.Errorf("Expected daily limit 25000.50, got %s", policy.DailyWithdrawalLimit)
	}
	// untouched
	if policy.MaxSessionAttempts != 5 {
		t.Errorf("Expected default session attempts 5, got %d", policy.MaxSessionAttempts)
	}
}

func TestParsePolicy_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad duration", "sessions:\n  timeout: soon\n"},
		{"bad amount", "limits:\n  min_deposit: lots\n"},
		{"bad digits", "challenges:\n  digits: 7\n"},
		{"fraction above one", "detection:\n  balance_fraction: \"1.5\"\n"},
		{"min above max", "limits:\n  min_deposit: \"200000\"\n"},
		{"malformed", "lockout: [\n"},
	}
	for _, tt := range tests {
		if _, err := ParsePolicy([]byte(tt.yaml)); err == nil {
			t.Errorf("%s: expected error, got nil", tt.name)
		}
	}
}

func TestLoadPolicy_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(path, []byte("lockout:\n  max_failed_attempts: 4\n"), 0o600); err != nil {
		t.Fatalf("Failed to write policy file: %v", err)
	}

	policy, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy failed: %v", err)
	}
	if policy.MaxFailedAttempts != 4 {
		t.Errorf("Expected 4 failed attempts, got %d", policy.MaxFailedAttempts)
	}

	if _, err := LoadPolicy(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Expected error for missing policy file")
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Ledger.Backend != "sqlite" {
		t.Errorf("Expected sqlite ledger backend, got %q", cfg.Ledger.Backend)
	}
	if cfg.Sessions.Backend != "memory" {
		t.Errorf("Expected memory session backend, got %q", cfg.Sessions.Backend)
	}
	if cfg.Sweeper.Schedule != "@every 1m" {
		t.Errorf("Expected @every 1m schedule, got %q", cfg.Sweeper.Schedule)
	}
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("SESSION_BACKEND", "memcached")
	if _, err := Load(); err == nil {
		t.Error("Expected error for unknown session backend")
	}
}
