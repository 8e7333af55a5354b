package enrich

import (
	"testing"
	"time"

	"github.com/habhabhabs/inventag-go/internal/model"
)

func TestConfidenceFullySignalledResource(t *testing.T) {
	now := time.Now()
	r := model.Resource{
		ID:               "i-123",
		Name:             "web-1",
		ARN:              "arn:aws:ec2:us-east-1:111111111111:instance/i-123",
		Type:             "Instance",
		Tags:             map[string]string{"env": "prod"},
		State:            "running",
		CreatedAt:        &now,
		VPCID:            "vpc-1",
		SecurityGroupIDs: []string{"sg-1"},
		AccountID:        "111111111111",
	}
	got := Confidence(r)
	if got != 1.0 {
		t.Fatalf("expected full signal confidence 1.0, got %v", got)
	}
}

func TestConfidenceMinimalIdentityResourceMeetsFloor(t *testing.T) {
	// spec.md §3's invariant: confidence >= 0.7 whenever id, name, arn and
	// type are all set (account_id is always populated by this system too).
	r := model.Resource{
		ID:        "i-123",
		Name:      "web-1",
		ARN:       "arn:aws:ec2:us-east-1:111111111111:instance/i-123",
		Type:      "Instance",
		AccountID: "111111111111",
	}
	got := Confidence(r)
	if got < 0.7 {
		t.Fatalf("expected confidence >= 0.7, got %v", got)
	}
}

func TestConfidenceEmptyResourceIsZero(t *testing.T) {
	if got := Confidence(model.Resource{}); got != 0 {
		t.Fatalf("expected 0 confidence for a fully empty resource, got %v", got)
	}
}

func TestConfidenceMonotonicWithEachSignal(t *testing.T) {
	base := model.Resource{ID: "i-1"}
	withName := base
	withName.Name = "x"
	if Confidence(withName) <= Confidence(base) {
		t.Fatalf("adding a name should strictly increase confidence")
	}
}
