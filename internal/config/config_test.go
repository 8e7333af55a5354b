package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/habhabhabs/inventag-go/internal/discovery"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "inventag.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaultsForUnsetFields(t *testing.T) {
	path := writeTempConfig(t, `
accounts:
  - account_id: "111111111111"
    credential_source: profile
    profile: default
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Run.MaxConcurrentAccounts != 4 {
		t.Errorf("expected default max_concurrent_accounts=4, got %d", cfg.Run.MaxConcurrentAccounts)
	}
	if cfg.Run.FallbackDisplay != discovery.FallbackAuto {
		t.Errorf("expected default fallback_display=auto, got %q", cfg.Run.FallbackDisplay)
	}
	if cfg.Run.RetentionDays != 30 {
		t.Errorf("expected default retention_days=30, got %d", cfg.Run.RetentionDays)
	}
	if !cfg.Run.Filtering.ExcludeAWSManaged {
		t.Errorf("expected default exclude_aws_managed=true")
	}
	if cfg.Run.MaxCallsPerSecond != 0 {
		t.Errorf("expected default max_calls_per_second=0 (unthrottled), got %v", cfg.Run.MaxCallsPerSecond)
	}
	if cfg.Run.RateLimitBurst != 1 {
		t.Errorf("expected default rate_limit_burst=1, got %d", cfg.Run.RateLimitBurst)
	}
}

func TestLoadOverridesRateLimitFromFile(t *testing.T) {
	path := writeTempConfig(t, `
run:
  max_calls_per_second: 15.5
  rate_limit_burst: 5
accounts:
  - account_id: "111111111111"
    credential_source: profile
    profile: default
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Run.MaxCallsPerSecond != 15.5 {
		t.Errorf("expected overridden max_calls_per_second=15.5, got %v", cfg.Run.MaxCallsPerSecond)
	}
	if cfg.Run.RateLimitBurst != 5 {
		t.Errorf("expected overridden rate_limit_burst=5, got %d", cfg.Run.RateLimitBurst)
	}
}

func TestLoadOverridesDefaultsFromFile(t *testing.T) {
	path := writeTempConfig(t, `
run:
  max_concurrent_accounts: 10
  fallback_display: never
accounts:
  - account_id: "111111111111"
    credential_source: static
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Run.MaxConcurrentAccounts != 10 {
		t.Errorf("expected overridden max_concurrent_accounts=10, got %d", cfg.Run.MaxConcurrentAccounts)
	}
	if cfg.Run.FallbackDisplay != discovery.FallbackNever {
		t.Errorf("expected overridden fallback_display=never, got %q", cfg.Run.FallbackDisplay)
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/inventag.yaml"); err == nil {
		t.Fatalf("expected an error for a missing config file")
	}
}

func TestLoadRejectsNoAccounts(t *testing.T) {
	path := writeTempConfig(t, "accounts: []\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error when no accounts are configured")
	}
}

func TestLoadRejectsInvalidCredentialSource(t *testing.T) {
	path := writeTempConfig(t, `
accounts:
  - account_id: "111111111111"
    credential_source: bogus
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error for an invalid credential_source")
	}
}

func TestLoadParsesTagPolicy(t *testing.T) {
	path := writeTempConfig(t, `
accounts:
  - account_id: "111111111111"
    credential_source: profile
    profile: default
tag_policy:
  required_tags:
    - key: Environment
      allowed_values: ["prod", "staging", "dev"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.TagPolicy.RequiredTags) != 1 || cfg.TagPolicy.RequiredTags[0].Key != "Environment" {
		t.Fatalf("expected tag_policy to be parsed, got %+v", cfg.TagPolicy)
	}
}
