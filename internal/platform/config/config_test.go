package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/coreops")
	t.Setenv("JWT_SECRET", "dev-secret")
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("expected default addr, got %q", cfg.Addr)
	}
	if cfg.Policy.Leave.ApprovalLevels != 1 || cfg.Policy.Timesheet.MaxHoursPerDay != 8 {
		t.Fatalf("unexpected policy defaults: %+v", cfg.Policy)
	}
	if cfg.IdempotencyTTL != 24*time.Hour {
		t.Fatalf("unexpected idempotency ttl %v", cfg.IdempotencyTTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestLoadPolicyFileOverridesEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "policy.yaml")
	content := "leave:\n  approvalLevels: 2\n  allowHalfDay: false\ntimesheet:\n  approvalLevels: 2\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	t.Setenv("POLICY_PATH", path)
	t.Setenv("TIMESHEET_MAX_HOURS_PER_DAY", "10")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Policy.Leave.ApprovalLevels != 2 || cfg.Policy.Leave.AllowHalfDay {
		t.Fatalf("expected leave policy from file, got %+v", cfg.Policy.Leave)
	}
	if cfg.Policy.Timesheet.ApprovalLevels != 2 {
		t.Fatalf("expected timesheet levels from file, got %d", cfg.Policy.Timesheet.ApprovalLevels)
	}
	if cfg.Policy.Timesheet.MaxHoursPerDay != 10 {
		t.Fatalf("expected env max hours to survive merge, got %v", cfg.Policy.Timesheet.MaxHoursPerDay)
	}
}

func TestValidateRejectsBadLevels(t *testing.T) {
	cfg := Config{
		DatabaseURL:        "postgres://localhost/coreops",
		JWTSecret:          "secret",
		MaxBodyBytes:       4096,
		RateLimitPerMinute: 10,
		IdempotencyTTL:     time.Hour,
		Policy: Policy{
			Leave:     LeavePolicy{ApprovalLevels: 3},
			Timesheet: TimesheetPolicy{ApprovalLevels: 1, MaxHoursPerDay: 8},
		},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for approval levels")
	}
}

func TestValidateRequiresStrongSecretInProduction(t *testing.T) {
	cfg := Config{
		DatabaseURL:        "postgres://localhost/coreops",
		JWTSecret:          "short",
		Environment:        "production",
		MaxBodyBytes:       4096,
		RateLimitPerMinute: 10,
		IdempotencyTTL:     time.Hour,
		Policy: Policy{
			Leave:     LeavePolicy{ApprovalLevels: 1},
			Timesheet: TimesheetPolicy{ApprovalLevels: 1, MaxHoursPerDay: 8},
		},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected production secret validation error")
	}
}
