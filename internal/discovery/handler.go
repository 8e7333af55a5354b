// Package discovery implements DiscoveryOrchestrator (spec.md §4.3): a
// two-tier (primary service handlers + ResourceGroupsTaggingAPI fallback)
// fan-out across regions and services, merged and deduplicated into a
// single deterministic resource list.
//
// The fan-out shape is grounded on two corpus patterns: the teacher's
// internal/aws/parallel.go executeOperationsWithProfile (WaitGroup +
// buffered result channel + indexed reassembly), generalized here to
// golang.org/x/sync/errgroup with SetLimit, the pattern the teleport
// lib/srv/discovery/fetchers/aws-sync/aws-sync.go fetcher uses for the
// exact same "per-resource-type pollers fanning into one result" shape.
package discovery

import (
	"context"
	"sort"

	"github.com/habhabhabs/inventag-go/internal/awsclient"
	"github.com/habhabhabs/inventag-go/internal/model"
	"github.com/habhabhabs/inventag-go/internal/safety"
)

// Handler is a per-service primary discovery handler (spec.md §4.3,
// §9's "interface carrying handles/read_only_ops/enrich" redesign note,
// narrowed here to the discovery-time subset: listing identity+tags, not
// deep attribute enrichment — that's ServiceEnricher's job, §4.4).
type Handler interface {
	// Service is the canonical service name used as the merge/dedup and
	// registry key (e.g. "EC2", "S3").
	Service() string
	// Global reports whether this service is discovered once per account
	// rather than once per region (spec.md §4.3: IAM, CloudFront, Route53).
	Global() bool
	// ReadOnlyOperations is the frozen allow-list this handler declares at
	// registration (classification rule 1 of SafetyGate).
	ReadOnlyOperations() []string
	// Discover lists resources for one (account, region) pair. accountID
	// and region are stamped onto every returned Resource.
	Discover(ctx context.Context, gate *safety.Gate, rc *awsclient.RegionClients, accountID, region string) ([]model.Resource, error)
}

// Registry is the set of primary handlers the orchestrator fans out to.
// Handlers are stored in a map keyed by service name, so registration
// order is not kept; the orchestrator always iterates services in
// sorted-name order (Services), per spec.md §4.3's stable-ordering
// requirement.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry builds a Registry from the given handlers, keyed by
// Service(). Registering the same service twice overwrites the first.
func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{handlers: make(map[string]Handler, len(handlers))}
	for _, h := range handlers {
		r.handlers[h.Service()] = h
	}
	return r
}

// Services returns the registered service names, sorted.
func (r *Registry) Services() []string {
	out := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Get returns the handler for service, or nil if unregistered.
func (r *Registry) Get(service string) Handler { return r.handlers[service] }
