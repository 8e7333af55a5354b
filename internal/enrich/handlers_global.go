package enrich

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/route53"

	"github.com/habhabhabs/inventag-go/internal/awsclient"
	"github.com/habhabhabs/inventag-go/internal/model"
	"github.com/habhabhabs/inventag-go/internal/safety"
)

// IAMHandler attaches the global-resource attribute contract from spec.md
// §4.4: name/id/arn extraction, managed-resource filtering (the filtering
// itself already happened at discovery time via discovery.FilterPolicy;
// here we only fill in the role's attached-policy summary).
type IAMHandler struct{}

func (IAMHandler) Handles(service, resourceType string) bool {
	return service == "IAM" && resourceType == "Role"
}

func (IAMHandler) ReadOnlyOps() []string { return []string{"ListAttachedRolePolicies"} }

func (h IAMHandler) Enrich(ctx context.Context, gate *safety.Gate, rc *awsclient.RegionClients, r model.Resource) model.Resource {
	var policies []string
	err := gate.Guard(ctx, "IAM", "ListAttachedRolePolicies", func(ctx context.Context) error {
		paginator := iam.NewListAttachedRolePoliciesPaginator(rc.IAM, &iam.ListAttachedRolePoliciesInput{
			RoleName: aws.String(r.ID),
		})
		for paginator.HasMorePages() {
			page, callErr := paginator.NextPage(ctx)
			if callErr != nil {
				return callErr
			}
			for _, p := range page.AttachedPolicies {
				policies = append(policies, aws.ToString(p.PolicyArn))
			}
		}
		return nil
	})
	if err != nil {
		r = recordEnrichErr(r, "IAM", err)
	}
	r.ServiceAttributes = mergeAttrs(r.ServiceAttributes, map[string]any{"attached_policies": policies})
	return r
}

// CloudFrontHandler attaches distribution-level status and config fields
// (enabled, price class, default root object, viewer protocol); name, id
// and arn are already set at discovery.
type CloudFrontHandler struct{}

func (CloudFrontHandler) Handles(service, resourceType string) bool {
	return service == "CloudFront" && resourceType == "Distribution"
}

func (CloudFrontHandler) ReadOnlyOps() []string { return []string{"GetDistribution"} }

func (h CloudFrontHandler) Enrich(ctx context.Context, gate *safety.Gate, rc *awsclient.RegionClients, r model.Resource) model.Resource {
	err := gate.Guard(ctx, "CloudFront", "GetDistribution", func(ctx context.Context) error {
		out, callErr := rc.CloudFront.GetDistribution(ctx, &cloudfront.GetDistributionInput{Id: aws.String(r.ID)})
		if callErr != nil {
			return callErr
		}
		if out.Distribution == nil || out.Distribution.DistributionConfig == nil {
			return nil
		}
		cfg := out.Distribution.DistributionConfig
		attrs := map[string]any{
			"status":       aws.ToString(out.Distribution.Status),
			"enabled":      aws.ToBool(cfg.Enabled),
			"price_class":  string(cfg.PriceClass),
			"default_root": aws.ToString(cfg.DefaultRootObject),
		}
		if cfg.DefaultCacheBehavior != nil {
			attrs["viewer_protocol"] = string(cfg.DefaultCacheBehavior.ViewerProtocolPolicy)
		}
		r.ServiceAttributes = mergeAttrs(r.ServiceAttributes, attrs)
		return nil
	})
	if err != nil {
		r = recordEnrichErr(r, "CloudFront", err)
	}
	return r
}

// Route53Handler attaches the hosted-zone record-count and privacy signal.
type Route53Handler struct{}

func (Route53Handler) Handles(service, resourceType string) bool {
	return service == "Route53" && resourceType == "HostedZone"
}

func (Route53Handler) ReadOnlyOps() []string { return []string{"GetHostedZone"} }

func (h Route53Handler) Enrich(ctx context.Context, gate *safety.Gate, rc *awsclient.RegionClients, r model.Resource) model.Resource {
	err := gate.Guard(ctx, "Route53", "GetHostedZone", func(ctx context.Context) error {
		out, callErr := rc.Route53.GetHostedZone(ctx, &route53.GetHostedZoneInput{Id: aws.String(r.ID)})
		if callErr != nil {
			return callErr
		}
		if out.HostedZone == nil {
			return nil
		}
		private := out.HostedZone.Config != nil && aws.ToBool(out.HostedZone.Config.PrivateZone)
		r.ServiceAttributes = mergeAttrs(r.ServiceAttributes, map[string]any{
			"record_set_count": aws.ToInt64(out.HostedZone.ResourceRecordSetCount),
			"private_zone":     private,
			"vpc_count":        len(out.VPCs),
		})
		r.PublicAccess = !private
		return nil
	})
	if err != nil {
		r = recordEnrichErr(r, "Route53", err)
	}
	return r
}
