package discovery

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/habhabhabs/inventag-go/internal/awsclient"
	"github.com/habhabhabs/inventag-go/internal/model"
	"github.com/habhabhabs/inventag-go/internal/safety"
)

// EC2Handler discovers EC2 instances, VPCs, subnets and security groups —
// the resources NetworkAnalyzer and SecurityAnalyzer need as raw input.
// Grounded on the teacher's getEC2Info (internal/aws/client.go), rewritten
// against DescribeInstances/DescribeVpcs/DescribeSubnets/DescribeSecurityGroups
// directly rather than the teacher's AI-operation dispatch layer.
type EC2Handler struct{ Filter FilterPolicy }

func (EC2Handler) Service() string { return "EC2" }
func (EC2Handler) Global() bool     { return false }
func (EC2Handler) ReadOnlyOperations() []string {
	return []string{"DescribeInstances", "DescribeVpcs", "DescribeSubnets", "DescribeSecurityGroups"}
}

func (h EC2Handler) Discover(ctx context.Context, gate *safety.Gate, rc *awsclient.RegionClients, accountID, region string) ([]model.Resource, error) {
	gate.RegisterAllowed("EC2", h.ReadOnlyOperations()...)

	var resources []model.Resource

	if err := gate.Guard(ctx, "EC2", "DescribeInstances", func(ctx context.Context) error {
		paginator := ec2.NewDescribeInstancesPaginator(rc.EC2, &ec2.DescribeInstancesInput{})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return &model.ErrAwsAPI{Service: "EC2", Operation: "DescribeInstances", Cause: err}
			}
			for _, reservation := range page.Reservations {
				for _, inst := range reservation.Instances {
					resources = append(resources, instanceToResource(inst, accountID, region))
				}
			}
		}
		return nil
	}); err != nil {
		return resources, fmt.Errorf("EC2 DescribeInstances: %w", err)
	}

	if err := gate.Guard(ctx, "EC2", "DescribeVpcs", func(ctx context.Context) error {
		paginator := ec2.NewDescribeVpcsPaginator(rc.EC2, &ec2.DescribeVpcsInput{})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return &model.ErrAwsAPI{Service: "EC2", Operation: "DescribeVpcs", Cause: err}
			}
			for _, vpc := range page.Vpcs {
				if h.Filter.ShouldExclude(false, aws.ToBool(vpc.IsDefault)) {
					continue
				}
				resources = append(resources, vpcToResource(vpc, accountID, region))
			}
		}
		return nil
	}); err != nil {
		return resources, fmt.Errorf("EC2 DescribeVpcs: %w", err)
	}

	if err := gate.Guard(ctx, "EC2", "DescribeSubnets", func(ctx context.Context) error {
		paginator := ec2.NewDescribeSubnetsPaginator(rc.EC2, &ec2.DescribeSubnetsInput{})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return &model.ErrAwsAPI{Service: "EC2", Operation: "DescribeSubnets", Cause: err}
			}
			for _, subnet := range page.Subnets {
				resources = append(resources, subnetToResource(subnet, accountID, region))
			}
		}
		return nil
	}); err != nil {
		return resources, fmt.Errorf("EC2 DescribeSubnets: %w", err)
	}

	if err := gate.Guard(ctx, "EC2", "DescribeSecurityGroups", func(ctx context.Context) error {
		paginator := ec2.NewDescribeSecurityGroupsPaginator(rc.EC2, &ec2.DescribeSecurityGroupsInput{})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return &model.ErrAwsAPI{Service: "EC2", Operation: "DescribeSecurityGroups", Cause: err}
			}
			for _, sg := range page.SecurityGroups {
				if h.Filter.ShouldExclude(aws.ToString(sg.GroupName) == "default", false) {
					continue
				}
				resources = append(resources, sgToResource(sg, accountID, region))
			}
		}
		return nil
	}); err != nil {
		return resources, fmt.Errorf("EC2 DescribeSecurityGroups: %w", err)
	}

	return resources, nil
}

func instanceToResource(inst ec2types.Instance, accountID, region string) model.Resource {
	tags := tagsToMap(inst.Tags)
	return model.Resource{
		ID:                aws.ToString(inst.InstanceId),
		ARN:               instanceARN(accountID, region, aws.ToString(inst.InstanceId)),
		Service:           "EC2",
		Type:              "Instance",
		Region:            region,
		AccountID:         accountID,
		Name:              tags["Name"],
		Tags:              tags,
		State:             string(inst.State.Name),
		DiscoveredVia:     "ServiceAPI:DescribeInstances",
		Priority:          model.PriorityPrimary,
		VPCID:             aws.ToString(inst.VpcId),
		SubnetIDs:         nonEmpty(aws.ToString(inst.SubnetId)),
		SecurityGroupIDs:  instanceSGIDs(inst),
	}
}

func vpcToResource(vpc ec2types.Vpc, accountID, region string) model.Resource {
	tags := tagsToMap(vpc.Tags)
	return model.Resource{
		ID:            aws.ToString(vpc.VpcId),
		ARN:           "",
		Service:       "EC2",
		Type:          "VPC",
		Region:        region,
		AccountID:     accountID,
		Name:          tags["Name"],
		Tags:          tags,
		State:         string(vpc.State),
		DiscoveredVia: "ServiceAPI:DescribeVpcs",
		Priority:      model.PriorityPrimary,
		VPCID:         aws.ToString(vpc.VpcId),
		ServiceAttributes: map[string]any{
			"cidr_block": aws.ToString(vpc.CidrBlock),
			"is_default": aws.ToBool(vpc.IsDefault),
		},
	}
}

func subnetToResource(subnet ec2types.Subnet, accountID, region string) model.Resource {
	tags := tagsToMap(subnet.Tags)
	return model.Resource{
		ID:            aws.ToString(subnet.SubnetId),
		Service:       "EC2",
		Type:          "Subnet",
		Region:        region,
		AccountID:     accountID,
		Name:          tags["Name"],
		Tags:          tags,
		State:         string(subnet.State),
		DiscoveredVia: "ServiceAPI:DescribeSubnets",
		Priority:      model.PriorityPrimary,
		VPCID:         aws.ToString(subnet.VpcId),
		ServiceAttributes: map[string]any{
			"cidr_block":        aws.ToString(subnet.CidrBlock),
			"availability_zone": aws.ToString(subnet.AvailabilityZone),
		},
	}
}

func sgToResource(sg ec2types.SecurityGroup, accountID, region string) model.Resource {
	tags := tagsToMap(sg.Tags)
	return model.Resource{
		ID:            aws.ToString(sg.GroupId),
		Service:       "EC2",
		Type:          "SecurityGroup",
		Region:        region,
		AccountID:     accountID,
		Name:          aws.ToString(sg.GroupName),
		Tags:          tags,
		DiscoveredVia: "ServiceAPI:DescribeSecurityGroups",
		Priority:      model.PriorityPrimary,
		VPCID:         aws.ToString(sg.VpcId),
		ServiceAttributes: map[string]any{
			"ip_permissions":        sg.IpPermissions,
			"ip_permissions_egress": sg.IpPermissionsEgress,
		},
	}
}

func instanceARN(accountID, region, id string) string {
	return fmt.Sprintf("arn:aws:ec2:%s:%s:instance/%s", region, accountID, id)
}

func instanceSGIDs(inst ec2types.Instance) []string {
	ids := make([]string, 0, len(inst.SecurityGroups))
	for _, g := range inst.SecurityGroups {
		ids = append(ids, aws.ToString(g.GroupId))
	}
	return ids
}

func tagsToMap(tags []ec2types.Tag) map[string]string {
	out := make(map[string]string, len(tags))
	for _, t := range tags {
		out[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return out
}

func nonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}
