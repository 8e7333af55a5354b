package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/habhabhabs/inventag-go/internal/model"
)

func TestFilterByTagsKeepsOnlyMatchingResources(t *testing.T) {
	resources := []model.Resource{
		{ID: "a", Tags: map[string]string{"Environment": "prod"}},
		{ID: "b", Tags: map[string]string{"Environment": "dev"}},
		{ID: "c", Tags: map[string]string{}},
	}
	got := filterByTags(resources, map[string]string{"Environment": "prod"})
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("expected only resource a to match, got %+v", got)
	}
}

func TestFilterByTagsRequiresAllKeysToMatch(t *testing.T) {
	resources := []model.Resource{
		{ID: "a", Tags: map[string]string{"Environment": "prod", "Owner": "team-x"}},
		{ID: "b", Tags: map[string]string{"Environment": "prod"}},
	}
	got := filterByTags(resources, map[string]string{"Environment": "prod", "Owner": "team-x"})
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("expected only resource a to match both tags, got %+v", got)
	}
}

func TestIntersectKeepsOnlyFilteredRegions(t *testing.T) {
	got := intersect([]string{"us-east-1", "us-west-2", "eu-west-1"}, []string{"eu-west-1", "us-east-1"})
	if len(got) != 2 || got[0] != "us-east-1" || got[1] != "eu-west-1" {
		t.Fatalf("expected [us-east-1 eu-west-1] preserving all-regions order, got %v", got)
	}
}

func TestOperationTimeoutDefaultsWhenUnset(t *testing.T) {
	if got := operationTimeout(0); got != 20*time.Second {
		t.Fatalf("expected default 20s, got %v", got)
	}
	if got := operationTimeout(5); got != 5*time.Second {
		t.Fatalf("expected 5s, got %v", got)
	}
}

func TestPartialOrFailedReportsPartialOnDeadlineExceeded(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Millisecond)
	defer cancel()
	<-ctx.Done()
	if got := partialOrFailed(ctx, StatusDone); got != StatusPartial {
		t.Fatalf("expected StatusPartial on an expired context, got %v", got)
	}
}

func TestPartialOrFailedPassesThroughWantWhenNotExpired(t *testing.T) {
	ctx := context.Background()
	if got := partialOrFailed(ctx, StatusDone); got != StatusDone {
		t.Fatalf("expected StatusDone passthrough, got %v", got)
	}
}

func TestStateDirDefaultsWhenEmpty(t *testing.T) {
	if got := stateDir(""); got != "./inventag-state" {
		t.Fatalf("expected default state dir, got %q", got)
	}
	if got := stateDir("/custom/dir"); got != "/custom/dir" {
		t.Fatalf("expected passthrough of a custom dir, got %q", got)
	}
}

func TestMaxIntPicksLarger(t *testing.T) {
	if got := maxInt(1, 4); got != 4 {
		t.Fatalf("expected 4, got %d", got)
	}
	if got := maxInt(9, 2); got != 9 {
		t.Fatalf("expected 9, got %d", got)
	}
}

func TestRetainIsNoopWhenRetentionDaysUnset(t *testing.T) {
	runner := New(Options{RetentionDays: 0, StateDir: t.TempDir()})
	deleted, err := runner.Retain(time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 0 {
		t.Fatalf("expected no-op with retention_days=0, got %d deletions", deleted)
	}
}

func TestRetainRunsOnExplicitCall(t *testing.T) {
	// runAccount/compareAndStore must never call Retain on their own
	// (spec.md §4.8/§7: retention only on explicit request) — Runner.Retain
	// is the only path that invokes state.Store.Retain.
	dir := t.TempDir()
	runner := New(Options{RetentionDays: 30, StateDir: dir, EnableState: true})
	if _, err := runner.Retain(time.Now()); err != nil {
		t.Fatalf("explicit Retain call failed: %v", err)
	}
}

func TestDefaultOptionsMatchSpecDefaults(t *testing.T) {
	opts := DefaultOptions()
	if opts.MaxConcurrentAccounts != 4 {
		t.Errorf("expected default max_concurrent_accounts=4, got %d", opts.MaxConcurrentAccounts)
	}
	if opts.AccountDeadline != 1800*time.Second {
		t.Errorf("expected default account_deadline=1800s, got %v", opts.AccountDeadline)
	}
	if opts.OperationTimeout != 20 {
		t.Errorf("expected default operation_timeout=20s, got %d", opts.OperationTimeout)
	}
	if !opts.EnableState || !opts.EnableDelta {
		t.Errorf("expected state and delta enabled by default")
	}
	if opts.RetentionDays != 30 {
		t.Errorf("expected default retention_days=30, got %d", opts.RetentionDays)
	}
}
