package network

import (
	"testing"

	"github.com/habhabhabs/inventag-go/internal/model"
)

func TestAnalyzeComputesVPCAndSubnetIPCounts(t *testing.T) {
	resources := []model.Resource{
		{
			ID: "vpc-1", Type: "VPC", Service: "EC2", Name: "main",
			ServiceAttributes: map[string]any{"cidr_block": "10.0.0.0/16"},
		},
		{
			ID: "subnet-1", Type: "Subnet", Service: "EC2",
			ServiceAttributes: map[string]any{
				"cidr_block":        "10.0.1.0/24",
				"availability_zone": "us-east-1a",
				"vpc_id":            "vpc-1",
			},
		},
		{
			ID: "i-1", ARN: "arn:aws:ec2:us-east-1:1:instance/i-1", Type: "Instance", Service: "EC2",
			VPCID: "vpc-1", SubnetIDs: []string{"subnet-1"},
		},
	}

	summary := Analyze(resources, nil)

	if summary.TotalVPCs != 1 || summary.TotalSubnets != 1 {
		t.Fatalf("expected 1 VPC and 1 subnet, got %d/%d", summary.TotalVPCs, summary.TotalSubnets)
	}
	vpc := summary.VPCs[0]
	if vpc.TotalIPs != 1<<16-2 {
		t.Fatalf("expected VPC total IPs 65534, got %d", vpc.TotalIPs)
	}
	sn := vpc.Subnets[0]
	if sn.TotalIPs != 1<<8-5 {
		t.Fatalf("expected subnet total IPs 251, got %d", sn.TotalIPs)
	}
	if sn.AvailableIPs != sn.TotalIPs-1 {
		t.Fatalf("expected one IP consumed by the attached instance, got available=%d total=%d", sn.AvailableIPs, sn.TotalIPs)
	}
	if len(vpc.AssociatedResourceARNs) != 1 || vpc.AssociatedResourceARNs[0] != resources[2].ARN {
		t.Fatalf("expected the instance ARN associated to the VPC, got %v", vpc.AssociatedResourceARNs)
	}
}

func TestAnalyzeHandlesInvalidCIDRGracefully(t *testing.T) {
	resources := []model.Resource{
		{ID: "vpc-1", Type: "VPC", Service: "EC2", ServiceAttributes: map[string]any{"cidr_block": "not-a-cidr"}},
	}
	summary := Analyze(resources, nil)
	if summary.VPCs[0].TotalIPs != 0 {
		t.Fatalf("expected 0 total IPs for an unparsable CIDR, got %d", summary.VPCs[0].TotalIPs)
	}
}

func TestAnalyzeDeterministicVPCOrdering(t *testing.T) {
	resources := []model.Resource{
		{ID: "vpc-b", Type: "VPC", Service: "EC2", ServiceAttributes: map[string]any{"cidr_block": "10.1.0.0/24"}},
		{ID: "vpc-a", Type: "VPC", Service: "EC2", ServiceAttributes: map[string]any{"cidr_block": "10.0.0.0/24"}},
	}
	summary := Analyze(resources, nil)
	if summary.VPCs[0].VPCID != "vpc-a" || summary.VPCs[1].VPCID != "vpc-b" {
		t.Fatalf("expected VPCs sorted by id, got %s then %s", summary.VPCs[0].VPCID, summary.VPCs[1].VPCID)
	}
}

func TestAnalyzePropagatesConfigRecorderPosture(t *testing.T) {
	summary := Analyze(nil, map[string]bool{"us-east-1": true, "eu-west-1": false})
	if !summary.ConfigRecorderByReg["us-east-1"] || summary.ConfigRecorderByReg["eu-west-1"] {
		t.Fatalf("expected config recorder posture to pass through unchanged, got %v", summary.ConfigRecorderByReg)
	}
}
