package compliance

import (
	"testing"

	"github.com/habhabhabs/inventag-go/internal/model"
)

func TestEvaluateUntaggedResource(t *testing.T) {
	resources := []model.Resource{{ID: "i-1", Service: "EC2", Type: "Instance"}}
	out, summary := Evaluate(resources, model.TagPolicy{RequiredTags: []model.RequiredTag{{Key: "env"}}})
	if out[0].ComplianceStatus != model.ComplianceUntagged {
		t.Fatalf("expected untagged, got %q", out[0].ComplianceStatus)
	}
	if summary.Untagged != 1 {
		t.Fatalf("expected 1 untagged in summary, got %d", summary.Untagged)
	}
}

func TestEvaluateMissingRequiredTag(t *testing.T) {
	resources := []model.Resource{{ID: "i-1", Service: "EC2", Type: "Instance", Tags: map[string]string{"owner": "x"}}}
	policy := model.TagPolicy{RequiredTags: []model.RequiredTag{{Key: "env"}, {Key: "owner"}}}
	out, _ := Evaluate(resources, policy)
	if out[0].ComplianceStatus != model.ComplianceNonCompliant {
		t.Fatalf("expected non_compliant, got %q", out[0].ComplianceStatus)
	}
	if len(out[0].MissingRequiredTags) != 1 || out[0].MissingRequiredTags[0] != "env" {
		t.Fatalf("expected missing=[env], got %v", out[0].MissingRequiredTags)
	}
}

func TestEvaluateAllowedValuesViolation(t *testing.T) {
	resources := []model.Resource{{ID: "i-1", Service: "EC2", Type: "Instance", Tags: map[string]string{"env": "staging"}}}
	policy := model.TagPolicy{RequiredTags: []model.RequiredTag{{Key: "env", AllowedValues: []string{"prod", "dev"}}}}
	out, _ := Evaluate(resources, policy)
	if out[0].ComplianceStatus != model.ComplianceNonCompliant {
		t.Fatalf("expected non_compliant, got %q", out[0].ComplianceStatus)
	}
	if _, ok := out[0].InvalidTagValues["env"]; !ok {
		t.Fatalf("expected invalid_tag_values to record env, got %v", out[0].InvalidTagValues)
	}
}

func TestEvaluatePatternViolation(t *testing.T) {
	resources := []model.Resource{{ID: "i-1", Service: "EC2", Type: "Instance", Tags: map[string]string{"cost-center": "abc"}}}
	policy := model.TagPolicy{RequiredTags: []model.RequiredTag{{Key: "cost-center", Pattern: `^\d+$`}}}
	out, _ := Evaluate(resources, policy)
	if out[0].ComplianceStatus != model.ComplianceNonCompliant {
		t.Fatalf("expected non_compliant for a pattern mismatch, got %q", out[0].ComplianceStatus)
	}
}

func TestEvaluateCompliantResource(t *testing.T) {
	resources := []model.Resource{{ID: "i-1", Service: "EC2", Type: "Instance", Tags: map[string]string{"env": "prod"}}}
	policy := model.TagPolicy{RequiredTags: []model.RequiredTag{{Key: "env", AllowedValues: []string{"prod", "dev"}}}}
	out, summary := Evaluate(resources, policy)
	if out[0].ComplianceStatus != model.ComplianceCompliant {
		t.Fatalf("expected compliant, got %q", out[0].ComplianceStatus)
	}
	if summary.Compliant != 1 {
		t.Fatalf("expected 1 compliant in summary, got %d", summary.Compliant)
	}
}

func TestEvaluateExemptionShortCircuitsOtherChecks(t *testing.T) {
	resources := []model.Resource{{ID: "i-1", Service: "EC2", Type: "Instance"}} // no tags, would be untagged
	policy := model.TagPolicy{
		RequiredTags: []model.RequiredTag{{Key: "env"}},
		Exemptions:   []model.Exemption{{Service: "EC2", Reason: "legacy resource"}},
	}
	out, summary := Evaluate(resources, policy)
	if out[0].ComplianceStatus != model.ComplianceExempt {
		t.Fatalf("expected exempt to win over untagged, got %q", out[0].ComplianceStatus)
	}
	if summary.ExemptionReasons["legacy resource"] != 1 {
		t.Fatalf("expected exemption reason rollup, got %v", summary.ExemptionReasons)
	}
}

func TestEvaluateServiceSpecificAdditionalTags(t *testing.T) {
	resources := []model.Resource{{ID: "b-1", Service: "S3", Type: "Bucket", Tags: map[string]string{"env": "prod"}}}
	policy := model.TagPolicy{
		RequiredTags: []model.RequiredTag{{Key: "env"}},
		ServiceSpecific: map[string]map[string]model.ServiceSpecificRule{
			"S3": {"Bucket": {AdditionalRequiredTags: []model.RequiredTag{{Key: "data-classification"}}}},
		},
	}
	out, _ := Evaluate(resources, policy)
	if len(out[0].MissingRequiredTags) != 1 || out[0].MissingRequiredTags[0] != "data-classification" {
		t.Fatalf("expected service-specific tag required, got %v", out[0].MissingRequiredTags)
	}
}

func TestEvaluatePercentageUndefinedWhenAllExempt(t *testing.T) {
	resources := []model.Resource{{ID: "i-1", Service: "EC2", Type: "Instance"}}
	policy := model.TagPolicy{Exemptions: []model.Exemption{{Service: "EC2", Reason: "out of scope"}}}
	_, summary := Evaluate(resources, policy)
	if summary.PercentageKnown {
		t.Fatalf("expected percentage undefined when total-exempt == 0")
	}
}

func TestEvaluatePercentageRoundedToOneDecimal(t *testing.T) {
	resources := []model.Resource{
		{ID: "1", Service: "EC2", Type: "Instance", Tags: map[string]string{"env": "prod"}},
		{ID: "2", Service: "EC2", Type: "Instance", Tags: map[string]string{"env": "prod"}},
		{ID: "3", Service: "EC2", Type: "Instance", Tags: map[string]string{}},
	}
	policy := model.TagPolicy{RequiredTags: []model.RequiredTag{{Key: "env"}}}
	_, summary := Evaluate(resources, policy)
	// 2 compliant, 1 untagged, 0 exempt: 2/3 = 66.7%
	if summary.Percentage != 66.7 {
		t.Fatalf("expected 66.7%%, got %v", summary.Percentage)
	}
}
