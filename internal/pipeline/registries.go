package pipeline

import (
	"github.com/habhabhabs/inventag-go/internal/awsclient"
	"github.com/habhabhabs/inventag-go/internal/discovery"
	"github.com/habhabhabs/inventag-go/internal/enrich"
	"github.com/habhabhabs/inventag-go/internal/safety"
)

// discoveryRegistry builds the full set of primary discovery handlers,
// narrowed to serviceFilter when the account descriptor names one.
func discoveryRegistry(filter discovery.FilterPolicy, serviceFilter []string) *discovery.Registry {
	all := []discovery.Handler{
		discovery.EC2Handler{Filter: filter},
		discovery.S3Handler{},
		discovery.RDSHandler{},
		discovery.LambdaHandler{},
		discovery.ECSHandler{},
		discovery.EKSHandler{},
		discovery.IAMHandler{Filter: filter},
		discovery.CloudFrontHandler{},
		discovery.Route53Handler{},
	}
	if len(serviceFilter) == 0 {
		return discovery.NewRegistry(all...)
	}
	wanted := make(map[string]bool, len(serviceFilter))
	for _, s := range serviceFilter {
		wanted[s] = true
	}
	var filtered []discovery.Handler
	for _, h := range all {
		if wanted[h.Service()] {
			filtered = append(filtered, h)
		}
	}
	return discovery.NewRegistry(filtered...)
}

// enrichRegistry builds the ServiceEnricher registry: one specific
// handler per covered service, falling back to the reflection-backed
// DynamicHandler (spec.md §4.4, §9) for everything else. CloudWatchReadOnlyOps
// is registered directly against gate since CloudWatch enrichment is
// folded into EC2Handler.Enrich rather than registered under its own
// service key (see handlers_ec2.go's attachAlarmStates).
// enrichRegistry also returns the DynamicHandler so the caller can read
// its CacheStats (SPEC_FULL.md §C.1) once enrichment finishes.
func enrichRegistry(gate *safety.Gate, cache *awsclient.Cache) (*enrich.Registry, *enrich.DynamicHandler) {
	gate.RegisterAllowed("CloudWatch", enrich.CloudWatchReadOnlyOps()...)

	dyn := enrich.NewDynamicHandler(enrich.NewReflectProber(cache), 256)
	registry := enrich.NewRegistry(dyn)

	registry.Register("EC2", enrich.EC2Handler{}, gate)
	registry.Register("S3", enrich.S3Handler{}, gate)
	registry.Register("RDS", enrich.RDSHandler{}, gate)
	registry.Register("Lambda", enrich.LambdaHandler{}, gate)
	registry.Register("ECS", enrich.ECSHandler{}, gate)
	registry.Register("EKS", enrich.EKSHandler{}, gate)
	registry.Register("IAM", enrich.IAMHandler{}, gate)
	registry.Register("CloudFront", enrich.CloudFrontHandler{}, gate)
	registry.Register("Route53", enrich.Route53Handler{}, gate)
	registry.Register("Batch", enrich.BatchHandler{}, gate)

	return registry, dyn
}
