package inventag

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRunConfigReadsAccountsAndPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inventag.yaml")
	body := `
run:
  max_concurrent_accounts: 2
accounts:
  - account_id: "111111111111"
    credential_source: profile
    profile: default
tag_policy:
  required_tags:
    - key: Environment
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing fixture config: %v", err)
	}

	rc, err := LoadRunConfig(path)
	if err != nil {
		t.Fatalf("LoadRunConfig failed: %v", err)
	}
	if len(rc.Config.Accounts) != 1 {
		t.Fatalf("expected 1 configured account, got %d", len(rc.Config.Accounts))
	}
	if rc.Config.Run.MaxConcurrentAccounts != 2 {
		t.Errorf("expected max_concurrent_accounts=2, got %d", rc.Config.Run.MaxConcurrentAccounts)
	}
	if len(rc.Config.TagPolicy.RequiredTags) != 1 {
		t.Errorf("expected tag policy to carry 1 required tag, got %d", len(rc.Config.TagPolicy.RequiredTags))
	}
}

func TestLoadRunConfigRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inventag.yaml")
	if err := os.WriteFile(path, []byte("not: [valid yaml"), 0o644); err != nil {
		t.Fatalf("writing fixture config: %v", err)
	}
	if _, err := LoadRunConfig(path); err == nil {
		t.Fatalf("expected an error for malformed YAML")
	}
}
