package enrich

import (
	"context"
	"fmt"
	"sync"

	"github.com/habhabhabs/inventag-go/internal/awsclient"
	"github.com/habhabhabs/inventag-go/internal/model"
	"github.com/habhabhabs/inventag-go/internal/safety"
)

// candidateOp is one (operation name, parameter pattern) tuple to try, in
// the order spec.md §4.4 step 3 prescribes.
type candidateOp struct {
	name      string
	paramKind string // one of: type_name, type_id, name, id, resource_arn
}

// Prober is the minimal surface DynamicHandler needs from an AWS SDK
// service client: given a candidate operation name and a single string
// parameter, invoke it and return the decoded response as a generic map
// (or an error if the operation/parameter shape doesn't apply). A real
// wiring adapts each SDK client package to this interface via reflection
// over its generated Options/Input types; call sites here stay agnostic
// of which service is being probed, exactly as spec.md §4.4 describes the
// search as operating over "candidate (op, params) tuples" rather than a
// per-service case.
type Prober interface {
	// Operations returns every operation name the client exposes.
	Operations(service string) []string
	// Invoke calls service.operation with a single string argument bound
	// to paramKind (one of paramKindsInOrder, e.g. "name", "id",
	// "resource_arn") and returns the decoded response as a generic map,
	// or an error. ReflectProber returns the whole Output minus
	// ResultMetadata; it does not pick out a single nested object.
	Invoke(ctx context.Context, service, operation, paramKind, value string) (map[string]any, error)
}

// DynamicHandler implements spec.md §4.4's fallback enrichment path for
// services without a registered specific Handler.
type DynamicHandler struct {
	prober Prober

	mu           sync.Mutex
	successCache map[string]candidateOp // key: "service:type" -> winning candidate
	failureCache map[string]bool        // key: "service:type:op:paramKind" -> known failure
	maxEntries   int                    // bound on both caches (spec.md §4.4 step 5)

	hits, misses int
}

// NewDynamicHandler builds a DynamicHandler backed by prober. maxEntries
// bounds each cache's size; once full, one arbitrary entry (whichever
// map iteration yields first) is evicted per insert (a simple bounded
// map, since spec.md only requires "bound both caches (size or TTL)",
// not a specific eviction policy).
func NewDynamicHandler(prober Prober, maxEntries int) *DynamicHandler {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &DynamicHandler{
		prober:       prober,
		successCache: map[string]candidateOp{},
		failureCache: map[string]bool{},
		maxEntries:   maxEntries,
	}
}

func candidatesFor(resourceType string) []candidateOp {
	t := toSnakeSingular(resourceType)
	return []candidateOp{
		{name: "Describe" + titleCase(t), paramKind: "id"},
		{name: "Describe" + titleCase(t) + "s", paramKind: "id"},
		{name: "Get" + titleCase(t), paramKind: "id"},
		{name: "Get" + titleCase(t) + "s", paramKind: "id"},
		{name: "List" + titleCase(t) + "s", paramKind: "id"},
		{name: "BatchGet" + titleCase(t), paramKind: "id"},
	}
}

var paramKindsInOrder = []string{"type_name", "type_id", "name", "id", "resource_arn"}

// Enrich implements the DynamicHandler search described in spec.md §4.4:
// try candidate operation names, then candidate parameter shapes for each,
// caching both the winning tuple and every failed attempt.
func (d *DynamicHandler) Enrich(ctx context.Context, gate *safety.Gate, rc *awsclient.RegionClients, r model.Resource) model.Resource {
	cacheKey := r.Service + ":" + r.Type

	d.mu.Lock()
	if winner, ok := d.successCache[cacheKey]; ok {
		d.hits++
		d.mu.Unlock()
		return d.applyCandidate(ctx, gate, r, winner)
	}
	d.mu.Unlock()

	for _, cand := range candidatesFor(r.Type) {
		if gate.Classify(r.Service, cand.name) != safety.ReadOnly {
			continue
		}
		for _, kind := range paramKindsInOrder {
			failKey := fmt.Sprintf("%s:%s:%s:%s", r.Service, r.Type, cand.name, kind)
			d.mu.Lock()
			failed := d.failureCache[failKey]
			d.mu.Unlock()
			if failed {
				continue
			}

			probeValue := valueFor(r, kind)
			if probeValue == "" {
				continue
			}
			attempt := candidateOp{name: cand.name, paramKind: kind}
			gate.RegisterAllowed(r.Service, cand.name)
			out, err := d.invoke(ctx, gate, r.Service, attempt, probeValue)
			if err != nil || len(out) == 0 {
				d.recordFailure(failKey)
				continue
			}

			d.recordSuccess(cacheKey, attempt)
			d.mu.Lock()
			d.misses++
			d.mu.Unlock()
			r.ServiceAttributes = mergeAttrs(r.ServiceAttributes, out)
			return r
		}
	}

	r.EnrichmentErrors = append(r.EnrichmentErrors, fmt.Sprintf("dynamic handler found no candidate operation for %s/%s", r.Service, r.Type))
	return r
}

func (d *DynamicHandler) applyCandidate(ctx context.Context, gate *safety.Gate, r model.Resource, c candidateOp) model.Resource {
	value := valueFor(r, c.paramKind)
	if value == "" {
		return r
	}
	out, err := d.invoke(ctx, gate, r.Service, c, value)
	if err != nil {
		enrichErr := &model.ErrEnrichment{ARN: r.ARN, Service: r.Service, Cause: err}
		r.EnrichmentErrors = append(r.EnrichmentErrors, enrichErr.Error())
		return r
	}
	r.ServiceAttributes = mergeAttrs(r.ServiceAttributes, out)
	return r
}

func (d *DynamicHandler) invoke(ctx context.Context, gate *safety.Gate, service string, c candidateOp, value string) (map[string]any, error) {
	var out map[string]any
	err := gate.Guard(ctx, service, c.name, func(ctx context.Context) error {
		var callErr error
		out, callErr = d.prober.Invoke(ctx, service, c.name, c.paramKind, value)
		return callErr
	})
	return out, err
}

func (d *DynamicHandler) recordSuccess(cacheKey string, c candidateOp) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.successCache) >= d.maxEntries {
		for k := range d.successCache {
			delete(d.successCache, k)
			break
		}
	}
	d.successCache[cacheKey] = c
}

func (d *DynamicHandler) recordFailure(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.failureCache) >= d.maxEntries {
		for k := range d.failureCache {
			delete(d.failureCache, k)
			break
		}
	}
	d.failureCache[key] = true
}

// CacheStats exposes per-run cache effectiveness (SPEC_FULL.md §C.1).
func (d *DynamicHandler) CacheStats() (hits, misses, entries int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hits, d.misses, len(d.successCache) + len(d.failureCache)
}

func valueFor(r model.Resource, kind string) string {
	switch kind {
	case "resource_arn":
		return r.ARN
	case "name":
		return r.Name
	default:
		return r.ID
	}
}

func mergeAttrs(existing, add map[string]any) map[string]any {
	if existing == nil {
		existing = map[string]any{}
	}
	for k, v := range add {
		existing[k] = v
	}
	return existing
}

func toSnakeSingular(resourceType string) string {
	// Minimal singularization: strip a trailing "s" if present, matching
	// spec.md §4.4's describe_<type>/describe_<type>s candidate pair.
	if len(resourceType) > 1 && resourceType[len(resourceType)-1] == 's' {
		return resourceType[:len(resourceType)-1]
	}
	return resourceType
}
