package enrich

import (
	"context"
	"fmt"
	"testing"

	"github.com/habhabhabs/inventag-go/internal/model"
	"github.com/habhabhabs/inventag-go/internal/safety"
)

// fakeProber answers a fixed (service, operation, paramKind) combination and
// fails (or returns empty) everything else, letting tests drive the
// DynamicHandler's candidate-search loop deterministically.
type fakeProber struct {
	wantService, wantOperation, wantParamKind string
	result                                    map[string]any
	calls                                     int
}

func (f *fakeProber) Operations(service string) []string { return nil }

func (f *fakeProber) Invoke(ctx context.Context, service, operation, paramKind, value string) (map[string]any, error) {
	f.calls++
	if service == f.wantService && operation == f.wantOperation && paramKind == f.wantParamKind {
		return f.result, nil
	}
	return nil, fmt.Errorf("operation %s.%s not supported", service, operation)
}

func TestDynamicHandlerFindsWinningCandidate(t *testing.T) {
	prober := &fakeProber{
		wantService:   "Batch",
		wantOperation: "DescribeJobQueue",
		wantParamKind: "id",
		result:        map[string]any{"state": "ENABLED"},
	}
	d := NewDynamicHandler(prober, 10)
	gate := safety.New(0)

	r := model.Resource{Service: "Batch", Type: "JobQueue", ID: "queue-1"}
	out := d.Enrich(context.Background(), gate, nil, r)

	if out.ServiceAttributes["state"] != "ENABLED" {
		t.Fatalf("expected state attribute from winning candidate, got %v", out.ServiceAttributes)
	}
	if len(out.EnrichmentErrors) != 0 {
		t.Fatalf("expected no enrichment errors, got %v", out.EnrichmentErrors)
	}
}

func TestDynamicHandlerCachesWinningCandidate(t *testing.T) {
	prober := &fakeProber{
		wantService:   "Batch",
		wantOperation: "DescribeJobQueue",
		wantParamKind: "id",
		result:        map[string]any{"state": "ENABLED"},
	}
	d := NewDynamicHandler(prober, 10)
	gate := safety.New(0)
	r := model.Resource{Service: "Batch", Type: "JobQueue", ID: "queue-1"}

	d.Enrich(context.Background(), gate, nil, r)
	callsAfterFirst := prober.calls

	d.Enrich(context.Background(), gate, nil, r)
	if prober.calls != callsAfterFirst+1 {
		t.Fatalf("expected the cached path to invoke exactly once more, got %d extra calls", prober.calls-callsAfterFirst)
	}

	hits, _, _ := d.CacheStats()
	if hits == 0 {
		t.Fatalf("expected at least one cache hit recorded")
	}
}

func TestDynamicHandlerRecordsErrorWhenNoCandidateMatches(t *testing.T) {
	prober := &fakeProber{wantService: "Nope"}
	d := NewDynamicHandler(prober, 10)
	gate := safety.New(0)

	r := model.Resource{Service: "Batch", Type: "JobQueue", ID: "queue-1", ARN: "arn:aws:batch:::job-queue/queue-1"}
	out := d.Enrich(context.Background(), gate, nil, r)

	if len(out.EnrichmentErrors) == 0 {
		t.Fatalf("expected an enrichment error when no candidate operation matches")
	}
}

func TestDynamicHandlerCandidatesNeverClassifiedMutating(t *testing.T) {
	// Every candidate name DynamicHandler generates is Describe/Get/List/
	// BatchGet prefixed, so none should ever be classified Mutating; this
	// guards that invariant instead of re-testing Classify directly.
	for _, c := range candidatesFor("JobQueue") {
		gate := safety.New(0)
		if d := gate.Classify("Batch", c.name); d == safety.Mutating {
			t.Fatalf("candidate operation %q classified as mutating", c.name)
		}
	}
}
