// Package enrich implements ServiceEnricher (spec.md §4.4): attaching
// service-specific attributes to already-discovered resources via a
// registry of specific handlers, falling back to a pattern-based
// DynamicHandler for any service without one.
//
// The registry-of-handlers-by-service-name shape is grounded on the
// steampipe-plugin-aws Plugin() TableMap pattern (other_examples), which
// maps resource-type strings to handler values the same way; the
// candidate-operation-name search in DynamicHandler generalizes the
// teacher's llm.go "check_<service>_service" switch into data instead of
// a hand-written case per service, per spec.md §9's redesign note.
package enrich

import (
	"context"
	"sync"

	"github.com/habhabhabs/inventag-go/internal/awsclient"
	"github.com/habhabhabs/inventag-go/internal/model"
	"github.com/habhabhabs/inventag-go/internal/safety"
)

// Handler is a specific per-service enrichment handler (spec.md §4.4).
type Handler interface {
	Handles(service, resourceType string) bool
	ReadOnlyOps() []string
	Enrich(ctx context.Context, gate *safety.Gate, rc *awsclient.RegionClients, r model.Resource) model.Resource
}

// Registry dispatches a resource to its Handler by Service, falling back
// to a DynamicHandler when no specific handler is registered.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	dynamic  *DynamicHandler
}

// NewRegistry builds a Registry backed by dyn for every unregistered
// service.
func NewRegistry(dyn *DynamicHandler) *Registry {
	return &Registry{handlers: map[string]Handler{}, dynamic: dyn}
}

// Register freezes handler's read-only ops with gate and adds it under
// service.
func (r *Registry) Register(service string, h Handler, gate *safety.Gate) {
	gate.RegisterAllowed(service, h.ReadOnlyOps()...)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[service] = h
}

// Enrich dispatches one resource to its handler (or the DynamicHandler)
// and returns the enriched copy with Confidence computed. Enrichment
// errors are recorded on the resource, never propagated — spec.md §4.4:
// "An enrichment error is recorded on the resource but never fails the
// pipeline."
func (r *Registry) Enrich(ctx context.Context, gate *safety.Gate, rc *awsclient.RegionClients, resource model.Resource) model.Resource {
	r.mu.RLock()
	h, ok := r.handlers[resource.Service]
	r.mu.RUnlock()

	var enriched model.Resource
	if ok && h.Handles(resource.Service, resource.Type) {
		enriched = h.Enrich(ctx, gate, rc, resource)
	} else if r.dynamic != nil {
		enriched = r.dynamic.Enrich(ctx, gate, rc, resource)
	} else {
		enriched = resource
	}
	enriched.Confidence = Confidence(enriched)
	return enriched
}

// EnrichAll enriches every resource in order. ServiceEnricher's own
// concurrency is intentionally left to the caller (PipelineRunner), which
// already bounds parallelism per spec.md §5; this keeps the registry
// itself free of scheduling concerns.
func (r *Registry) EnrichAll(ctx context.Context, gate *safety.Gate, cache *awsclient.Cache, resources []model.Resource) []model.Resource {
	out := make([]model.Resource, len(resources))
	for i, res := range resources {
		var rc *awsclient.RegionClients
		if res.Region == "global" {
			rc = cache.Global()
		} else {
			rc = cache.ForRegion(res.Region)
		}
		out[i] = r.Enrich(ctx, gate, rc, res)
	}
	return out
}
