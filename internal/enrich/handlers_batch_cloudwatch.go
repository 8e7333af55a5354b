package enrich

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/batch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"github.com/habhabhabs/inventag-go/internal/awsclient"
	"github.com/habhabhabs/inventag-go/internal/model"
	"github.com/habhabhabs/inventag-go/internal/safety"
)

// BatchHandler is SPEC_FULL.md §C.5's supplement: Batch compute environments
// are discovered via the ResourceGroupsTaggingAPI fallback path (no primary
// Batch discovery handler exists) but get the same enrichment pass as any
// other resource, attaching state/type/service-role so compliance rules that
// key off "is this environment still active" have something to read.
type BatchHandler struct{}

func (BatchHandler) Handles(service, resourceType string) bool {
	return service == "Batch" && resourceType == "ComputeEnvironment"
}

func (BatchHandler) ReadOnlyOps() []string { return []string{"DescribeComputeEnvironments"} }

func (h BatchHandler) Enrich(ctx context.Context, gate *safety.Gate, rc *awsclient.RegionClients, r model.Resource) model.Resource {
	err := gate.Guard(ctx, "Batch", "DescribeComputeEnvironments", func(ctx context.Context) error {
		out, callErr := rc.Batch.DescribeComputeEnvironments(ctx, &batch.DescribeComputeEnvironmentsInput{
			ComputeEnvironments: []string{r.ID},
		})
		if callErr != nil {
			return callErr
		}
		if len(out.ComputeEnvironments) == 0 {
			return nil
		}
		ce := out.ComputeEnvironments[0]
		attrs := map[string]any{
			"state":        string(ce.State),
			"status":       string(ce.Status),
			"type":         string(ce.Type),
			"service_role": aws.ToString(ce.ServiceRole),
		}
		if ce.ComputeResources != nil {
			attrs["min_vcpus"] = aws.ToInt32(ce.ComputeResources.MinvCpus)
			attrs["max_vcpus"] = aws.ToInt32(ce.ComputeResources.MaxvCpus)
			attrs["instance_types"] = ce.ComputeResources.InstanceTypes
		}
		r.ServiceAttributes = mergeAttrs(r.ServiceAttributes, attrs)
		return nil
	})
	if err != nil {
		r = recordEnrichErr(r, "Batch", err)
	}
	return r
}

// attachAlarmStates is SPEC_FULL.md §C.5's other supplement: for any
// resource the system tracks an alarm state for (currently EC2 instances,
// via the conventional alarm-name-prefix search), attach each matching
// alarm's current state as a lightweight operational signal alongside the
// structural attributes EC2Handler collects. Called directly from
// EC2Handler rather than registered as its own Handler, since Registry
// dispatches one handler per service name and EC2 already has one.
// An alarm not existing is normal, never recorded as an enrichment error.
func attachAlarmStates(ctx context.Context, gate *safety.Gate, rc *awsclient.RegionClients, r model.Resource) model.Resource {
	var states []string
	err := gate.Guard(ctx, "CloudWatch", "DescribeAlarms", func(ctx context.Context) error {
		paginator := cloudwatch.NewDescribeAlarmsPaginator(rc.CloudWatch, &cloudwatch.DescribeAlarmsInput{
			AlarmNamePrefix: aws.String(r.ID),
		})
		for paginator.HasMorePages() {
			page, callErr := paginator.NextPage(ctx)
			if callErr != nil {
				return callErr
			}
			for _, a := range page.MetricAlarms {
				states = append(states, string(a.StateValue))
			}
		}
		return nil
	})
	if err != nil {
		return recordEnrichErr(r, "CloudWatch", err)
	}
	if len(states) > 0 {
		r.ServiceAttributes = mergeAttrs(r.ServiceAttributes, map[string]any{"alarm_states": states})
	}
	return r
}
