package discovery

import (
	"testing"

	"github.com/habhabhabs/inventag-go/internal/model"
)

func TestMergePrecedence(t *testing.T) {
	// Scenario 2 from spec.md §8: primary wins on name and on conflicting
	// tag keys; fallback only contributes missing tag keys.
	primary := []model.Resource{
		{ARN: "A", Service: "EC2", Region: "us-east-1", Name: "ec2-a", Tags: map[string]string{"Env": "prod"}, Priority: model.PriorityPrimary},
	}
	fallback := []model.Resource{
		{ARN: "A", Service: "EC2", Region: "us-east-1", Tags: map[string]string{"Env": "dev", "Owner": "team"}, Priority: model.PriorityFallback},
	}

	merged := Merge(primary, fallback, FallbackAuto, PrimarySuccess{"EC2": true})
	if len(merged) != 1 {
		t.Fatalf("expected 1 merged resource, got %d", len(merged))
	}
	r := merged[0]
	if r.Name != "ec2-a" {
		t.Fatalf("expected primary name to win, got %q", r.Name)
	}
	if r.Tags["Env"] != "prod" {
		t.Fatalf("expected primary tag value to win, got %q", r.Tags["Env"])
	}
	if r.Tags["Owner"] != "team" {
		t.Fatalf("expected fallback-only tag to be unioned in, got %q", r.Tags["Owner"])
	}
	if r.Priority != model.PriorityPrimary {
		t.Fatalf("expected merged resource to remain priority=primary, got %q", r.Priority)
	}
}

func TestMergeFallbackDisplayAuto(t *testing.T) {
	// Scenario 3 from spec.md §8.
	primary := []model.Resource{
		{ARN: "ec2-1", Service: "EC2", Region: "us-east-1", Priority: model.PriorityPrimary},
		{ARN: "ec2-2", Service: "EC2", Region: "us-east-1", Priority: model.PriorityPrimary},
	}
	fallback := []model.Resource{
		{ARN: "ec2-1", Service: "EC2", Region: "us-east-1", Priority: model.PriorityFallback},
		{ARN: "ec2-2", Service: "EC2", Region: "us-east-1", Priority: model.PriorityFallback},
		{ARN: "robo-1", Service: "RoboMaker", Region: "us-east-1", Priority: model.PriorityFallback},
		{ARN: "robo-2", Service: "RoboMaker", Region: "us-east-1", Priority: model.PriorityFallback},
	}
	success := PrimarySuccess{"EC2": true, "RoboMaker": false}

	auto := Merge(primary, fallback, FallbackAuto, success)
	assertServiceCounts(t, auto, map[string]int{"EC2": 2, "RoboMaker": 2})

	never := Merge(primary, fallback, FallbackNever, success)
	assertServiceCounts(t, never, map[string]int{"EC2": 2})

	always := Merge(primary, fallback, FallbackAlways, success)
	assertServiceCounts(t, always, map[string]int{"EC2": 2, "RoboMaker": 2})
}

func assertServiceCounts(t *testing.T, resources []model.Resource, want map[string]int) {
	t.Helper()
	got := map[string]int{}
	for _, r := range resources {
		got[r.Service]++
	}
	if len(got) != len(want) {
		t.Fatalf("expected services %v, got %v", want, got)
	}
	for svc, count := range want {
		if got[svc] != count {
			t.Fatalf("service %s: expected %d resources, got %d", svc, count, got[svc])
		}
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	primary := []model.Resource{{ARN: "A", Service: "EC2", Region: "us-east-1", Tags: map[string]string{"Env": "prod"}, Priority: model.PriorityPrimary}}
	fallback := []model.Resource{{ARN: "A", Service: "EC2", Region: "us-east-1", Tags: map[string]string{"Owner": "team"}, Priority: model.PriorityFallback}}

	once := Merge(primary, fallback, FallbackAuto, PrimarySuccess{"EC2": true})
	twice := Merge(once, fallback, FallbackAuto, PrimarySuccess{"EC2": true})

	if len(once) != len(twice) {
		t.Fatalf("expected idempotent merge length, got %d then %d", len(once), len(twice))
	}
	if once[0].Tags["Owner"] != twice[0].Tags["Owner"] {
		t.Fatalf("expected stable tags across repeated merge")
	}
}

func TestMergeKeylessResourcesMatchByServiceRegionID(t *testing.T) {
	primary := []model.Resource{
		{Service: "RoboMaker", Region: "us-west-2", ID: "robo-1", Priority: model.PriorityPrimary},
	}
	fallback := []model.Resource{
		{Service: "RoboMaker", Region: "us-west-2", ID: "robo-1", Tags: map[string]string{"Team": "a"}, Priority: model.PriorityFallback},
	}
	merged := Merge(primary, fallback, FallbackAuto, PrimarySuccess{"RoboMaker": true})
	if len(merged) != 1 {
		t.Fatalf("expected keyless resources with identical service:region:id to merge, got %d", len(merged))
	}
}

func TestParseServiceAndType(t *testing.T) {
	tests := []struct {
		arn         string
		wantService string
		wantType    string
	}{
		{"arn:aws:ec2:us-east-1:123456789012:instance/i-0abc", "EC2", "Instance"},
		{"arn:aws:s3:::my-bucket", "S3", "Resource"},
		{"arn:aws:dynamodb:us-east-1:123456789012:table/my-table", "Dynamodb", "Table"},
	}
	for _, tt := range tests {
		t.Run(tt.arn, func(t *testing.T) {
			svc, typ := parseServiceAndType(tt.arn)
			if svc != tt.wantService {
				t.Errorf("service = %q, want %q", svc, tt.wantService)
			}
			if typ != tt.wantType {
				t.Errorf("type = %q, want %q", typ, tt.wantType)
			}
		})
	}
}
