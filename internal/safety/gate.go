// Package safety implements the SafetyGate (spec §4.1): every outbound AWS
// API call is classified read_only, mutating, or unknown before it runs,
// and only read_only calls are ever allowed through the core pipeline.
//
// The classify/guard split mirrors the teacher's "runtime safety decorator"
// the spec's design notes (§9) ask to replace: here it is a single
// table-driven function plus one explicit call-site wrapper, never a
// decorator or a process-wide monitor.
package safety

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Decision is the result of classify.
type Decision string

const (
	ReadOnly Decision = "read_only"
	Mutating Decision = "mutating"
	Unknown  Decision = "unknown"
)

// AuditEntry is one record of a classification decision.
type AuditEntry struct {
	Timestamp time.Time
	Service   string
	Operation string
	Decision  Decision
	Reason    string
}

var mutatingPrefixes = []string{
	"Create", "Update", "Delete", "Put", "Modify", "Attach", "Detach",
	"Associate", "Disassociate", "Start", "Stop", "Reboot", "Terminate",
	"Run", "Revoke", "Authorize", "Enable", "Disable",
}

var readOnlyPrefixes = []string{
	"Describe", "Get", "List", "Head", "Select", "Query", "Scan",
	"BatchGet", "Lookup",
}

// Gate is per account run: PipelineRunner builds one instance per account,
// shared by every worker of that account's pipeline, guarded by a mutex
// per spec §5's
// shared-resource policy ("mutation is monotone ... serialized with a
// lightweight mutex").
type Gate struct {
	mu polelock

	// allowList holds operations each handler declared at registration
	// (classification rule 1); it always wins over the prefix rules.
	allowList map[string]bool
	// optIn holds operations explicitly allowed despite failing every
	// other rule — reserved for the external artifact uploader's
	// S3.PutObject per spec.md §9's Open Question; the core itself never
	// calls it, so this is empty unless a caller opts in at construction.
	optIn map[string]bool

	violationThreshold int
	violations         int
	audit              []AuditEntry

	// limiter throttles the rate at which Guard admits read-only calls,
	// keeping concurrent region/service fan-out (spec §5) from bursting
	// past an account's own client-side budget regardless of how many
	// goroutines are calling Guard at once. Nil means unthrottled.
	limiter *rate.Limiter
}

// polelock is a tiny named type so Gate's zero value is usable without an
// explicit constructor call in tests that only need classify().
type polelock struct{ sync.Mutex }

// New builds a Gate. violationThreshold is the number of mutating/unknown
// decisions tolerated before Guard starts returning a fatal abort signal
// (default 0 per spec.md §4.1: "threshold exceeding ... (default 0) aborts
// the run"). optInOperations lets a caller pre-allow specific
// "service.Operation" pairs (e.g. for the external uploader); it is empty
// in ordinary core use.
func New(violationThreshold int, optInOperations ...string) *Gate {
	g := &Gate{
		allowList:          map[string]bool{},
		optIn:              map[string]bool{},
		violationThreshold: violationThreshold,
	}
	for _, op := range optInOperations {
		g.optIn[op] = true
	}
	return g
}

// SetRateLimit throttles Guard to at most ratePerSecond admitted calls per
// second, with bursts up to burst, shared across every goroutine holding
// this Gate. Call it once right after New; a zero ratePerSecond disables
// throttling (the default).
func (g *Gate) SetRateLimit(ratePerSecond float64, burst int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if ratePerSecond <= 0 {
		g.limiter = nil
		return
	}
	g.limiter = rate.NewLimiter(rate.Limit(ratePerSecond), burst)
}

// RegisterAllowed freezes the operation set a handler declares it uses
// (classification rule 1). Called once at handler registration time.
func (g *Gate) RegisterAllowed(service string, operations ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, op := range operations {
		g.allowList[key(service, op)] = true
	}
}

func key(service, operation string) string { return service + "." + operation }

// Classify implements the three-rule classification order from spec.md
// §4.1: explicit allow-list, then read-only prefixes, then mutating
// prefixes; anything left over is Unknown.
func (g *Gate) Classify(service, operation string) Decision {
	g.mu.Lock()
	allowed := g.allowList[key(service, operation)]
	g.mu.Unlock()
	if allowed {
		return ReadOnly
	}
	if g.optIn[key(service, operation)] {
		return ReadOnly
	}
	for _, p := range readOnlyPrefixes {
		if strings.HasPrefix(operation, p) {
			return ReadOnly
		}
	}
	for _, p := range mutatingPrefixes {
		if strings.HasPrefix(operation, p) {
			return Mutating
		}
	}
	return Unknown
}

// Guard wraps an outbound call. It refuses to invoke call unless
// Classify(service, operation) is ReadOnly, always appending an audit
// entry, and returns a fatal *model.ErrSafetyViolation-shaped error on any
// other classification. call is expected to respect ctx cancellation.
func (g *Gate) Guard(ctx context.Context, service, operation string, call func(context.Context) error) error {
	decision := g.Classify(service, operation)
	reason := reasonFor(decision)

	g.mu.Lock()
	g.audit = append(g.audit, AuditEntry{
		Timestamp: time.Now(),
		Service:   service,
		Operation: operation,
		Decision:  decision,
		Reason:    reason,
	})
	if decision != ReadOnly {
		g.violations++
	}
	violations, threshold := g.violations, g.violationThreshold
	g.mu.Unlock()

	if decision != ReadOnly {
		log.Printf("safety: blocked %s.%s (%s): %s", service, operation, decision, reason)
		return &SafetyError{Service: service, Operation: operation, Decision: decision, Reason: reason}
	}
	if violations > threshold {
		return &SafetyError{Service: service, Operation: operation, Decision: decision,
			Reason: fmt.Sprintf("violation threshold %d exceeded (%d so far)", threshold, violations)}
	}

	g.mu.Lock()
	limiter := g.limiter
	g.mu.Unlock()
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("safety: rate limiter wait for %s.%s: %w", service, operation, err)
		}
	}

	return call(ctx)
}

func reasonFor(d Decision) string {
	switch d {
	case ReadOnly:
		return "classified read_only"
	case Mutating:
		return "classified mutating: rejected by safety gate"
	default:
		return "operation name did not match any known prefix"
	}
}

// Audit returns a defensive copy of the accumulated audit log.
func (g *Gate) Audit() []AuditEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]AuditEntry, len(g.audit))
	copy(out, g.audit)
	return out
}

// Violations returns the current violation count.
func (g *Gate) Violations() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.violations
}

// SafetyError is returned by Guard whenever a call is blocked or the
// violation threshold has been exceeded.
type SafetyError struct {
	Service   string
	Operation string
	Decision  Decision
	Reason    string
}

func (e *SafetyError) Error() string {
	return fmt.Sprintf("safety gate: %s.%s (%s): %s", e.Service, e.Operation, e.Decision, e.Reason)
}
