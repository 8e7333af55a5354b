package enrich

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/lambda"

	"github.com/habhabhabs/inventag-go/internal/awsclient"
	"github.com/habhabhabs/inventag-go/internal/model"
	"github.com/habhabhabs/inventag-go/internal/safety"
)

// LambdaHandler attaches spec.md §4.4's Lambda attribute contract:
// runtime, handler, memory_size, timeout, role, vpc_config, layers,
// tracing_config, code_size.
type LambdaHandler struct{}

func (LambdaHandler) Handles(service, resourceType string) bool {
	return service == "Lambda" && resourceType == "Function"
}

func (LambdaHandler) ReadOnlyOps() []string { return []string{"GetFunction"} }

func (h LambdaHandler) Enrich(ctx context.Context, gate *safety.Gate, rc *awsclient.RegionClients, r model.Resource) model.Resource {
	err := gate.Guard(ctx, "Lambda", "GetFunction", func(ctx context.Context) error {
		out, callErr := rc.Lambda.GetFunction(ctx, &lambda.GetFunctionInput{FunctionName: aws.String(r.ID)})
		if callErr != nil {
			return callErr
		}
		if out.Configuration == nil {
			return nil
		}
		cfg := out.Configuration
		layers := make([]string, 0, len(cfg.Layers))
		for _, l := range cfg.Layers {
			layers = append(layers, aws.ToString(l.Arn))
		}
		attrs := map[string]any{
			"runtime":     string(cfg.Runtime),
			"handler":     aws.ToString(cfg.Handler),
			"memory_size": aws.ToInt32(cfg.MemorySize),
			"timeout":     aws.ToInt32(cfg.Timeout),
			"role":        aws.ToString(cfg.Role),
			"layers":      layers,
			"code_size":   cfg.CodeSize,
		}
		if cfg.TracingConfig != nil {
			attrs["tracing_config"] = string(cfg.TracingConfig.Mode)
		}
		if cfg.VpcConfig != nil {
			attrs["vpc_config"] = map[string]any{
				"vpc_id":             aws.ToString(cfg.VpcConfig.VpcId),
				"subnet_ids":         cfg.VpcConfig.SubnetIds,
				"security_group_ids": cfg.VpcConfig.SecurityGroupIds,
			}
		}
		r.ServiceAttributes = mergeAttrs(r.ServiceAttributes, attrs)
		return nil
	})
	if err != nil {
		r = recordEnrichErr(r, "Lambda", err)
	}
	return r
}

// ECSHandler attaches cluster status and the registered-container,
// pending-task and active-service counts for ECS. Task definitions and
// VPC settings are not fetched.
type ECSHandler struct{}

func (ECSHandler) Handles(service, resourceType string) bool {
	return service == "ECS" && resourceType == "Cluster"
}

func (ECSHandler) ReadOnlyOps() []string { return []string{"DescribeClusters", "ListServices"} }

func (h ECSHandler) Enrich(ctx context.Context, gate *safety.Gate, rc *awsclient.RegionClients, r model.Resource) model.Resource {
	err := gate.Guard(ctx, "ECS", "DescribeClusters", func(ctx context.Context) error {
		out, callErr := rc.ECS.DescribeClusters(ctx, &ecs.DescribeClustersInput{Clusters: []string{r.ID}})
		if callErr != nil {
			return callErr
		}
		if len(out.Clusters) == 0 {
			return nil
		}
		c := out.Clusters[0]
		r.ServiceAttributes = mergeAttrs(r.ServiceAttributes, map[string]any{
			"status":                aws.ToString(c.Status),
			"registered_containers": c.RegisteredContainerInstancesCount,
			"pending_tasks_count":   c.PendingTasksCount,
			"active_services_count": c.ActiveServicesCount,
		})
		return nil
	})
	if err != nil {
		r = recordEnrichErr(r, "ECS", err)
	}
	return r
}

// EKSHandler attaches the cluster's node-group names for EKS. VPC settings
// (VPCID, SubnetIDs, SecurityGroupIDs) are already set at discovery; node
// group configuration beyond the names is not fetched.
type EKSHandler struct{}

func (EKSHandler) Handles(service, resourceType string) bool {
	return service == "EKS" && resourceType == "Cluster"
}

func (EKSHandler) ReadOnlyOps() []string { return []string{"DescribeCluster", "ListNodegroups"} }

func (h EKSHandler) Enrich(ctx context.Context, gate *safety.Gate, rc *awsclient.RegionClients, r model.Resource) model.Resource {
	var nodegroups []string
	if err := gate.Guard(ctx, "EKS", "ListNodegroups", func(ctx context.Context) error {
		paginator := eks.NewListNodegroupsPaginator(rc.EKS, &eks.ListNodegroupsInput{ClusterName: aws.String(r.ID)})
		for paginator.HasMorePages() {
			page, callErr := paginator.NextPage(ctx)
			if callErr != nil {
				return callErr
			}
			nodegroups = append(nodegroups, page.Nodegroups...)
		}
		return nil
	}); err != nil {
		r = recordEnrichErr(r, "EKS", err)
	}
	r.ServiceAttributes = mergeAttrs(r.ServiceAttributes, map[string]any{"nodegroups": nodegroups})
	return r
}
