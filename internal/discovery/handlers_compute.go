package discovery

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/lambda"

	"github.com/habhabhabs/inventag-go/internal/awsclient"
	"github.com/habhabhabs/inventag-go/internal/model"
	"github.com/habhabhabs/inventag-go/internal/safety"
)

// LambdaHandler discovers Lambda functions, grounded on the teacher's
// getLambdaInfo (internal/aws/client.go), against ListFunctions directly.
type LambdaHandler struct{}

func (LambdaHandler) Service() string { return "Lambda" }
func (LambdaHandler) Global() bool     { return false }
func (LambdaHandler) ReadOnlyOperations() []string {
	return []string{"ListFunctions", "ListTags"}
}

func (h LambdaHandler) Discover(ctx context.Context, gate *safety.Gate, rc *awsclient.RegionClients, accountID, region string) ([]model.Resource, error) {
	gate.RegisterAllowed("Lambda", h.ReadOnlyOperations()...)

	var resources []model.Resource
	err := gate.Guard(ctx, "Lambda", "ListFunctions", func(ctx context.Context) error {
		paginator := lambda.NewListFunctionsPaginator(rc.Lambda, &lambda.ListFunctionsInput{})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return &model.ErrAwsAPI{Service: "Lambda", Operation: "ListFunctions", Cause: err}
			}
			for _, fn := range page.Functions {
				var subnetIDs, sgIDs []string
				var vpcID string
				if fn.VpcConfig != nil {
					vpcID = aws.ToString(fn.VpcConfig.VpcId)
					subnetIDs = fn.VpcConfig.SubnetIds
					sgIDs = fn.VpcConfig.SecurityGroupIds
				}
				resources = append(resources, model.Resource{
					ID:               aws.ToString(fn.FunctionName),
					ARN:              aws.ToString(fn.FunctionArn),
					Service:          "Lambda",
					Type:             "Function",
					Region:           region,
					AccountID:        accountID,
					Name:             aws.ToString(fn.FunctionName),
					Tags:             map[string]string{},
					DiscoveredVia:    "ServiceAPI:ListFunctions",
					Priority:         model.PriorityPrimary,
					VPCID:            vpcID,
					SubnetIDs:        subnetIDs,
					SecurityGroupIDs: sgIDs,
					ServiceAttributes: map[string]any{
						"runtime":     string(fn.Runtime),
						"handler":     aws.ToString(fn.Handler),
						"memory_size": aws.ToInt32(fn.MemorySize),
						"timeout":     aws.ToInt32(fn.Timeout),
						"role":        aws.ToString(fn.Role),
						"code_size":   fn.CodeSize,
					},
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("Lambda ListFunctions: %w", err)
	}
	return resources, nil
}

// ECSHandler discovers ECS clusters, grounded on the teacher's
// getECSInfo (internal/aws/client.go).
type ECSHandler struct{}

func (ECSHandler) Service() string { return "ECS" }
func (ECSHandler) Global() bool     { return false }
func (ECSHandler) ReadOnlyOperations() []string {
	return []string{"ListClusters", "DescribeClusters"}
}

func (h ECSHandler) Discover(ctx context.Context, gate *safety.Gate, rc *awsclient.RegionClients, accountID, region string) ([]model.Resource, error) {
	gate.RegisterAllowed("ECS", h.ReadOnlyOperations()...)

	var clusterARNs []string
	err := gate.Guard(ctx, "ECS", "ListClusters", func(ctx context.Context) error {
		paginator := ecs.NewListClustersPaginator(rc.ECS, &ecs.ListClustersInput{})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return &model.ErrAwsAPI{Service: "ECS", Operation: "ListClusters", Cause: err}
			}
			clusterARNs = append(clusterARNs, page.ClusterArns...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ECS ListClusters: %w", err)
	}
	if len(clusterARNs) == 0 {
		return nil, nil
	}

	var resources []model.Resource
	err = gate.Guard(ctx, "ECS", "DescribeClusters", func(ctx context.Context) error {
		for start := 0; start < len(clusterARNs); start += 100 {
			end := start + 100
			if end > len(clusterARNs) {
				end = len(clusterARNs)
			}
			out, callErr := rc.ECS.DescribeClusters(ctx, &ecs.DescribeClustersInput{
				Clusters: clusterARNs[start:end],
				Include:  nil,
			})
			if callErr != nil {
				return &model.ErrAwsAPI{Service: "ECS", Operation: "DescribeClusters", Cause: callErr}
			}
			for _, c := range out.Clusters {
				resources = append(resources, model.Resource{
					ID:            aws.ToString(c.ClusterName),
					ARN:           aws.ToString(c.ClusterArn),
					Service:       "ECS",
					Type:          "Cluster",
					Region:        region,
					AccountID:     accountID,
					Name:          aws.ToString(c.ClusterName),
					Tags:          map[string]string{},
					State:         aws.ToString(c.Status),
					DiscoveredVia: "ServiceAPI:DescribeClusters",
					Priority:      model.PriorityPrimary,
					ServiceAttributes: map[string]any{
						"running_tasks_count": c.RunningTasksCount,
						"active_services_count": c.ActiveServicesCount,
					},
				})
			}
		}
		return nil
	})
	if err != nil {
		return resources, fmt.Errorf("ECS DescribeClusters: %w", err)
	}
	return resources, nil
}

// EKSHandler discovers EKS clusters. Not present in the teacher; grounded
// on the wider corpus's manifest evidence (driftmgr, cloud-inspector,
// overmindtech-cli all depend on service/eks) per SPEC_FULL.md's domain
// stack.
type EKSHandler struct{}

func (EKSHandler) Service() string { return "EKS" }
func (EKSHandler) Global() bool     { return false }
func (EKSHandler) ReadOnlyOperations() []string {
	return []string{"ListClusters", "DescribeCluster"}
}

func (h EKSHandler) Discover(ctx context.Context, gate *safety.Gate, rc *awsclient.RegionClients, accountID, region string) ([]model.Resource, error) {
	gate.RegisterAllowed("EKS", h.ReadOnlyOperations()...)

	var names []string
	err := gate.Guard(ctx, "EKS", "ListClusters", func(ctx context.Context) error {
		paginator := eks.NewListClustersPaginator(rc.EKS, &eks.ListClustersInput{})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return &model.ErrAwsAPI{Service: "EKS", Operation: "ListClusters", Cause: err}
			}
			names = append(names, page.Clusters...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("EKS ListClusters: %w", err)
	}

	var resources []model.Resource
	for _, name := range names {
		var clusterErr error
		guardErr := gate.Guard(ctx, "EKS", "DescribeCluster", func(ctx context.Context) error {
			out, callErr := rc.EKS.DescribeCluster(ctx, &eks.DescribeClusterInput{Name: aws.String(name)})
			if callErr != nil {
				clusterErr = callErr
				return nil
			}
			c := out.Cluster
			tags := make(map[string]string, len(c.Tags))
			for k, v := range c.Tags {
				tags[k] = v
			}
			var vpcID string
			var subnetIDs, sgIDs []string
			if c.ResourcesVpcConfig != nil {
				vpcID = aws.ToString(c.ResourcesVpcConfig.VpcId)
				subnetIDs = c.ResourcesVpcConfig.SubnetIds
				sgIDs = c.ResourcesVpcConfig.SecurityGroupIds
			}
			resources = append(resources, model.Resource{
				ID:               name,
				ARN:              aws.ToString(c.Arn),
				Service:          "EKS",
				Type:             "Cluster",
				Region:           region,
				AccountID:        accountID,
				Name:             name,
				Tags:             tags,
				State:            string(c.Status),
				DiscoveredVia:    "ServiceAPI:DescribeCluster",
				Priority:         model.PriorityPrimary,
				VPCID:            vpcID,
				SubnetIDs:        subnetIDs,
				SecurityGroupIDs: sgIDs,
				ServiceAttributes: map[string]any{
					"version":         aws.ToString(c.Version),
					"platform_version": aws.ToString(c.PlatformVersion),
				},
			})
			return nil
		})
		if guardErr != nil {
			return resources, fmt.Errorf("EKS DescribeCluster(%s): %w", name, guardErr)
		}
		if clusterErr != nil {
			resources = append(resources, model.Resource{
				ID: name, Service: "EKS", Type: "Cluster", Region: region, AccountID: accountID,
				Name: name, Tags: map[string]string{}, DiscoveredVia: "ServiceAPI:DescribeCluster",
				Priority: model.PriorityPrimary,
				EnrichmentErrors: []string{
					(&model.ErrAwsAPI{Service: "EKS", Operation: "DescribeCluster", Cause: clusterErr}).Error(),
				},
			})
		}
	}
	return resources, nil
}
