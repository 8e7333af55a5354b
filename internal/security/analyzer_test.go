package security

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/habhabhabs/inventag-go/internal/model"
)

func port(p int32) *int32 { return &p }

func TestAssessRiskSpecTable(t *testing.T) {
	cases := []struct {
		name   string
		source string
		from   *int32
		to     *int32
		want   model.RiskLevel
	}{
		{"open ssh is critical", "0.0.0.0/0", port(22), port(22), model.RiskCritical},
		{"open port range including sensitive is critical", "0.0.0.0/0", port(1), port(65535), model.RiskCritical},
		{"open http is high", "0.0.0.0/0", port(80), port(80), model.RiskHigh},
		{"rfc1918 to mysql is medium", "10.0.0.0/8", port(3306), port(3306), model.RiskMedium},
		{"rfc1918 to http is low", "10.0.0.0/8", port(80), port(80), model.RiskLow},
		{"specific sg ref is low", "sg-abc123", port(443), port(443), model.RiskLow},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := assessRisk(c.source, c.from, c.to)
			if got != c.want {
				t.Fatalf("assessRisk(%q, %v, %v) = %q, want %q", c.source, *c.from, *c.to, got, c.want)
			}
		})
	}
}

func TestAnalyzeComputesGroupRiskAsMaxOfRules(t *testing.T) {
	sg := model.Resource{
		ID: "sg-1", Type: "SecurityGroup", Service: "EC2",
		ServiceAttributes: map[string]any{
			"ip_permissions": []ec2types.IpPermission{
				{
					IpProtocol: aws.String("tcp"), FromPort: port(80), ToPort: port(80),
					IpRanges: []ec2types.IpRange{{CidrIp: aws.String("0.0.0.0/0")}},
				},
				{
					IpProtocol: aws.String("tcp"), FromPort: port(22), ToPort: port(22),
					IpRanges: []ec2types.IpRange{{CidrIp: aws.String("0.0.0.0/0")}},
				},
			},
		},
	}
	summary := Analyze([]model.Resource{sg}, nil)
	if len(summary.Groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(summary.Groups))
	}
	if summary.Groups[0].RiskLevel != model.RiskCritical {
		t.Fatalf("expected group risk critical (max of high,critical), got %q", summary.Groups[0].RiskLevel)
	}
}

func TestAnalyzeDetectsUnusedSecurityGroups(t *testing.T) {
	sg := model.Resource{ID: "sg-unused", Type: "SecurityGroup", Service: "EC2"}
	summary := Analyze([]model.Resource{sg}, nil)
	if len(summary.UnusedGroupIDs) != 1 || summary.UnusedGroupIDs[0] != "sg-unused" {
		t.Fatalf("expected sg-unused flagged unused, got %v", summary.UnusedGroupIDs)
	}
}

func TestAnalyzeAssociatesResourcesBySecurityGroupID(t *testing.T) {
	sg := model.Resource{ID: "sg-1", Type: "SecurityGroup", Service: "EC2"}
	inst := model.Resource{
		ID: "i-1", ARN: "arn:aws:ec2:us-east-1:1:instance/i-1", Type: "Instance", Service: "EC2",
		SecurityGroupIDs: []string{"sg-1"},
	}
	summary := Analyze([]model.Resource{sg, inst}, nil)
	if len(summary.Groups[0].AssociatedResourceARNs) != 1 {
		t.Fatalf("expected sg-1 associated with the instance")
	}
	if len(summary.UnusedGroupIDs) != 0 {
		t.Fatalf("expected no unused groups once associated, got %v", summary.UnusedGroupIDs)
	}
}

func TestDetectCyclesFindsSGReferenceCycle(t *testing.T) {
	sgA := model.Resource{
		ID: "sg-a", Type: "SecurityGroup", Service: "EC2",
		ServiceAttributes: map[string]any{
			"ip_permissions": []ec2types.IpPermission{
				{IpProtocol: aws.String("tcp"), FromPort: port(443), ToPort: port(443),
					UserIdGroupPairs: []ec2types.UserIdGroupPair{{GroupId: aws.String("sg-b")}}},
			},
		},
	}
	sgB := model.Resource{
		ID: "sg-b", Type: "SecurityGroup", Service: "EC2",
		ServiceAttributes: map[string]any{
			"ip_permissions": []ec2types.IpPermission{
				{IpProtocol: aws.String("tcp"), FromPort: port(443), ToPort: port(443),
					UserIdGroupPairs: []ec2types.UserIdGroupPair{{GroupId: aws.String("sg-a")}}},
			},
		},
	}
	summary := Analyze([]model.Resource{sgA, sgB}, nil)
	if len(summary.ReferenceCycles) == 0 {
		t.Fatalf("expected at least one reference cycle detected between sg-a and sg-b")
	}
}

func TestAnalyzePropagatesGuardDutySeverityPosture(t *testing.T) {
	summary := Analyze(nil, map[string]int{"HIGH": 2, "LOW": 5})
	if summary.GuardDutyBySeverity["HIGH"] != 2 {
		t.Fatalf("expected guardduty posture to pass through unchanged, got %v", summary.GuardDutyBySeverity)
	}
}
