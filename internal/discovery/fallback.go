package discovery

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi"

	"github.com/habhabhabs/inventag-go/internal/awsclient"
	"github.com/habhabhabs/inventag-go/internal/model"
	"github.com/habhabhabs/inventag-go/internal/safety"
)

// FallbackDiscover runs the single ResourceGroupsTaggingAPI.GetResources
// call per region that backstops the per-service primary handlers (spec.md
// §4.3's "Fallback" tier). Grounded on the resourcegroupstaggingapi
// dependency present in the gravitational-teleport, openshift-hypershift
// and stefan-matic-claws manifests in the wider corpus.
func FallbackDiscover(ctx context.Context, gate *safety.Gate, rc *awsclient.RegionClients, accountID, region string) ([]model.Resource, error) {
	gate.RegisterAllowed("ResourceGroupsTaggingAPI", "GetResources")

	var resources []model.Resource
	err := gate.Guard(ctx, "ResourceGroupsTaggingAPI", "GetResources", func(ctx context.Context) error {
		paginator := resourcegroupstaggingapi.NewGetResourcesPaginator(rc.TaggingAPI, &resourcegroupstaggingapi.GetResourcesInput{})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return &model.ErrAwsAPI{Service: "ResourceGroupsTaggingAPI", Operation: "GetResources", Cause: err}
			}
			for _, mapping := range page.ResourceTagMappingList {
				arnStr := aws.ToString(mapping.ResourceARN)
				service, resourceType := parseServiceAndType(arnStr)
				tags := make(map[string]string, len(mapping.Tags))
				for _, t := range mapping.Tags {
					tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
				}
				resources = append(resources, model.Resource{
					ARN:           arnStr,
					ID:            lastARNSegment(arnStr),
					Service:       service,
					Type:          resourceType,
					Region:        region,
					AccountID:     accountID,
					Tags:          tags,
					DiscoveredVia: "ResourceGroupsTaggingAPI:Fallback",
					Priority:      model.PriorityFallback,
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ResourceGroupsTaggingAPI GetResources: %w", err)
	}
	return resources, nil
}

// parseServiceAndType extracts the service and a best-effort resource type
// from an ARN of the form arn:partition:service:region:account:resource,
// where resource is either "type/id", "type:id" or a bare id.
func parseServiceAndType(arnStr string) (service, resourceType string) {
	parts := strings.SplitN(arnStr, ":", 6)
	if len(parts) < 6 {
		return "Unknown", "Unknown"
	}
	service = normalizeServiceName(parts[2])
	resourcePart := parts[5]
	if idx := strings.IndexAny(resourcePart, "/:"); idx >= 0 {
		resourceType = titleCase(resourcePart[:idx])
	} else {
		resourceType = "Resource"
	}
	return service, resourceType
}

func lastARNSegment(arnStr string) string {
	if idx := strings.LastIndexAny(arnStr, "/:"); idx >= 0 && idx < len(arnStr)-1 {
		return arnStr[idx+1:]
	}
	return arnStr
}

// normalizeServiceName maps ARN service segments to the canonical names
// used elsewhere in this package (e.g. "ec2" -> "EC2").
func normalizeServiceName(arnService string) string {
	known := map[string]string{
		"ec2": "EC2", "s3": "S3", "rds": "RDS", "lambda": "Lambda",
		"ecs": "ECS", "eks": "EKS", "iam": "IAM", "cloudfront": "CloudFront",
		"route53": "Route53", "batch": "Batch", "cloudwatch": "CloudWatch",
		"logs": "CloudWatchLogs",
	}
	if v, ok := known[arnService]; ok {
		return v
	}
	return titleCase(arnService)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
