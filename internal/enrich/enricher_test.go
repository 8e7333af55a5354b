package enrich

import (
	"context"
	"testing"

	"github.com/habhabhabs/inventag-go/internal/awsclient"
	"github.com/habhabhabs/inventag-go/internal/model"
	"github.com/habhabhabs/inventag-go/internal/safety"
)

// stubHandler is a minimal Handler used to verify Registry dispatch without
// touching real AWS clients.
type stubHandler struct {
	service string
	calls   int
}

func (s *stubHandler) Handles(service, resourceType string) bool { return service == s.service }
func (s *stubHandler) ReadOnlyOps() []string                     { return []string{"DescribeThing"} }
func (s *stubHandler) Enrich(ctx context.Context, gate *safety.Gate, rc *awsclient.RegionClients, r model.Resource) model.Resource {
	s.calls++
	r.ServiceAttributes = mergeAttrs(r.ServiceAttributes, map[string]any{"stubbed": true})
	return r
}

func TestRegistryDispatchesToRegisteredHandler(t *testing.T) {
	gate := safety.New(0)
	stub := &stubHandler{service: "Widget"}
	reg := NewRegistry(nil)
	reg.Register("Widget", stub, gate)

	out := reg.Enrich(context.Background(), gate, nil, model.Resource{Service: "Widget", Type: "Thing", ID: "w-1"})

	if stub.calls != 1 {
		t.Fatalf("expected the specific handler to be invoked once, got %d", stub.calls)
	}
	if out.ServiceAttributes["stubbed"] != true {
		t.Fatalf("expected stubbed attribute to be set")
	}
	if out.Confidence == 0 {
		t.Fatalf("expected Confidence to be computed for the enriched resource")
	}
}

func TestRegistryFallsBackToDynamicHandlerForUnregisteredService(t *testing.T) {
	gate := safety.New(0)
	prober := &fakeProber{
		wantService:   "Mystery",
		wantOperation: "DescribeWidget",
		wantParamKind: "id",
		result:        map[string]any{"found": true},
	}
	dyn := NewDynamicHandler(prober, 10)
	reg := NewRegistry(dyn)

	out := reg.Enrich(context.Background(), gate, nil, model.Resource{Service: "Mystery", Type: "Widget", ID: "m-1"})

	if out.ServiceAttributes["found"] != true {
		t.Fatalf("expected the dynamic handler fallback to populate attributes, got %v", out.ServiceAttributes)
	}
}

func TestEnrichAlwaysComputesConfidence(t *testing.T) {
	gate := safety.New(0)
	reg := NewRegistry(nil)

	out := reg.Enrich(context.Background(), gate, nil, model.Resource{
		ID: "x-1", Name: "x", ARN: "arn:aws:x:::x/x-1", Type: "Thing", AccountID: "1",
	})
	if out.Confidence != Confidence(out) {
		t.Fatalf("expected Enrich to set Confidence consistently with the Confidence function")
	}
}
