package delta

import (
	"testing"

	"github.com/habhabhabs/inventag-go/internal/model"
)

func TestDiffAddedAndRemoved(t *testing.T) {
	old := []model.Resource{{ARN: "arn:1", Service: "EC2", Type: "Instance"}}
	new := []model.Resource{{ARN: "arn:2", Service: "EC2", Type: "Instance"}}

	d, err := Diff(old, new)
	if err != nil {
		t.Fatalf("Diff failed: %v", err)
	}
	if len(d.Added) != 1 || d.Added[0] != "arn:2" {
		t.Fatalf("expected added=[arn:2], got %v", d.Added)
	}
	if len(d.Removed) != 1 || d.Removed[0] != "arn:1" {
		t.Fatalf("expected removed=[arn:1], got %v", d.Removed)
	}
}

func TestDiffClassifiesSecurityChangeAboveTags(t *testing.T) {
	old := []model.Resource{{ARN: "arn:1", Service: "EC2", Type: "Instance", Tags: map[string]string{"env": "dev"}, SecurityGroupIDs: []string{"sg-1"}}}
	new := []model.Resource{{ARN: "arn:1", Service: "EC2", Type: "Instance", Tags: map[string]string{"env": "prod"}, SecurityGroupIDs: []string{"sg-2"}}}

	d, err := Diff(old, new)
	if err != nil {
		t.Fatalf("Diff failed: %v", err)
	}
	if len(d.Modified) != 1 {
		t.Fatalf("expected 1 modified resource, got %d", len(d.Modified))
	}
	if d.Modified[0].ChangeType != model.ChangeSecurity {
		t.Fatalf("expected security to win priority over tags, got %q", d.Modified[0].ChangeType)
	}
	if _, ok := d.Modified[0].Changes["tags"]; !ok {
		t.Fatalf("expected the tags field change to still be recorded even though it didn't win classification")
	}
}

func TestDiffNoChangeProducesNoModification(t *testing.T) {
	r := model.Resource{ARN: "arn:1", Service: "EC2", Type: "Instance", Tags: map[string]string{"a": "1", "b": "2"}}
	rCopy := r
	rCopy.Tags = map[string]string{"b": "2", "a": "1"} // same content, different map insertion order

	d, err := Diff([]model.Resource{r}, []model.Resource{rCopy})
	if err != nil {
		t.Fatalf("Diff failed: %v", err)
	}
	if len(d.Modified) != 0 {
		t.Fatalf("expected no modification for key-order-only tag differences, got %v", d.Modified)
	}
}

func TestDiffTracksComplianceStatusTransitions(t *testing.T) {
	old := []model.Resource{{ARN: "arn:1", Service: "EC2", Type: "Instance", ComplianceStatus: model.ComplianceNonCompliant}}
	new := []model.Resource{{ARN: "arn:1", Service: "EC2", Type: "Instance", ComplianceStatus: model.ComplianceCompliant}}

	d, err := Diff(old, new)
	if err != nil {
		t.Fatalf("Diff failed: %v", err)
	}
	if len(d.ComplianceChanges) != 1 {
		t.Fatalf("expected 1 compliance change, got %d", len(d.ComplianceChanges))
	}
	if d.ComplianceChanges[0].Old != model.ComplianceNonCompliant || d.ComplianceChanges[0].New != model.ComplianceCompliant {
		t.Fatalf("unexpected compliance transition: %+v", d.ComplianceChanges[0])
	}
}

func TestDiffSummaryCountsByChangeType(t *testing.T) {
	old := []model.Resource{
		{ARN: "arn:1", Service: "EC2", Type: "Instance", VPCID: "vpc-1"},
		{ARN: "arn:2", Service: "EC2", Type: "Instance", Tags: map[string]string{"a": "1"}},
	}
	new := []model.Resource{
		{ARN: "arn:1", Service: "EC2", Type: "Instance", VPCID: "vpc-2"},
		{ARN: "arn:2", Service: "EC2", Type: "Instance", Tags: map[string]string{"a": "2"}},
	}

	d, err := Diff(old, new)
	if err != nil {
		t.Fatalf("Diff failed: %v", err)
	}
	if d.Summary.ByChangeType["network"] != 1 || d.Summary.ByChangeType["tags"] != 1 {
		t.Fatalf("expected 1 network and 1 tags change, got %v", d.Summary.ByChangeType)
	}
	if d.Summary.ModifiedCount != 2 {
		t.Fatalf("expected modified count 2, got %d", d.Summary.ModifiedCount)
	}
}

func TestDiffFallsBackToServiceRegionIDKeyWhenARNMissing(t *testing.T) {
	old := []model.Resource{{Service: "Batch", Region: "us-east-1", ID: "queue-1", Type: "JobQueue"}}
	new := []model.Resource{{Service: "Batch", Region: "us-east-1", ID: "queue-1", Type: "JobQueue", State: "DISABLED"}}

	d, err := Diff(old, new)
	if err != nil {
		t.Fatalf("Diff failed: %v", err)
	}
	if len(d.Modified) != 1 {
		t.Fatalf("expected the arn-less resource to still be matched by its service:region:id key, got %d modified", len(d.Modified))
	}
}
