package enrich

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"

	"github.com/habhabhabs/inventag-go/internal/awsclient"
	"github.com/habhabhabs/inventag-go/internal/model"
	"github.com/habhabhabs/inventag-go/internal/safety"
)

// EC2Handler attaches the Instance attribute contract from spec.md §4.4:
// instance_type, state, vpc_id, subnet_id, security_group_ids,
// iam_instance_profile, ebs_optimized, monitoring, metadata_options; and
// for Volume, size/type/IOPS/encryption.
type EC2Handler struct{}

func (EC2Handler) Handles(service, resourceType string) bool {
	return service == "EC2" && (resourceType == "Instance" || resourceType == "Volume")
}

func (EC2Handler) ReadOnlyOps() []string {
	return []string{"DescribeInstances", "DescribeVolumes"}
}

// CloudWatchReadOnlyOps lists the CloudWatch operations attachAlarmStates
// issues; the pipeline registers these against the "CloudWatch" service
// name separately since Registry.Register only allow-lists a handler's
// own ReadOnlyOps() under the service it's registered as.
func CloudWatchReadOnlyOps() []string { return []string{"DescribeAlarms"} }

func (h EC2Handler) Enrich(ctx context.Context, gate *safety.Gate, rc *awsclient.RegionClients, r model.Resource) model.Resource {
	switch r.Type {
	case "Instance":
		return h.enrichInstance(ctx, gate, rc, r)
	case "Volume":
		return h.enrichVolume(ctx, gate, rc, r)
	default:
		return r
	}
}

func (EC2Handler) enrichInstance(ctx context.Context, gate *safety.Gate, rc *awsclient.RegionClients, r model.Resource) model.Resource {
	err := gate.Guard(ctx, "EC2", "DescribeInstances", func(ctx context.Context) error {
		out, callErr := rc.EC2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{r.ID}})
		if callErr != nil {
			return callErr
		}
		for _, res := range out.Reservations {
			for _, inst := range res.Instances {
				attrs := map[string]any{
					"instance_type": string(inst.InstanceType),
					"ebs_optimized": aws.ToBool(inst.EbsOptimized),
				}
				if inst.Monitoring != nil {
					attrs["monitoring"] = string(inst.Monitoring.State)
				}
				if inst.IamInstanceProfile != nil {
					attrs["iam_instance_profile"] = aws.ToString(inst.IamInstanceProfile.Arn)
				}
				if inst.MetadataOptions != nil {
					attrs["metadata_options"] = map[string]any{
						"http_tokens":   string(inst.MetadataOptions.HttpTokens),
						"http_endpoint": string(inst.MetadataOptions.HttpEndpoint),
					}
				}
				r.ServiceAttributes = mergeAttrs(r.ServiceAttributes, attrs)
			}
		}
		return nil
	})
	if err != nil {
		r = recordEnrichErr(r, "EC2", err)
	}
	return attachAlarmStates(ctx, gate, rc, r)
}

func (EC2Handler) enrichVolume(ctx context.Context, gate *safety.Gate, rc *awsclient.RegionClients, r model.Resource) model.Resource {
	err := gate.Guard(ctx, "EC2", "DescribeVolumes", func(ctx context.Context) error {
		out, callErr := rc.EC2.DescribeVolumes(ctx, &ec2.DescribeVolumesInput{VolumeIds: []string{r.ID}})
		if callErr != nil {
			return callErr
		}
		if len(out.Volumes) == 0 {
			return nil
		}
		vol := out.Volumes[0]
		r.ServiceAttributes = mergeAttrs(r.ServiceAttributes, map[string]any{
			"size_gib": aws.ToInt32(vol.Size),
			"type":     string(vol.VolumeType),
			"iops":     aws.ToInt32(vol.Iops),
		})
		if aws.ToBool(vol.Encrypted) {
			r.Encrypted = model.TristateTrue
		} else {
			r.Encrypted = model.TristateFalse
		}
		return nil
	})
	if err != nil {
		r = recordEnrichErr(r, "EC2", err)
	}
	return r
}
