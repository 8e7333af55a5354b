// Package pipeline implements PipelineRunner (spec.md §4.10): the glue
// that sequences AccountContext → DiscoveryOrchestrator → ServiceEnricher
// → NetworkAnalyzer & SecurityAnalyzer (parallel) → ComplianceEngine →
// Snapshot → Delta into one typed Report per account, bounded by an
// account-level semaphore and a per-account deadline.
//
// The account-worker-pool-plus-state-machine shape is grounded on the
// teacher's cmd/root.go runAnalysis goroutine-per-cluster fan-out
// (WaitGroup + buffered result channel), generalized here from a fixed
// cluster list to a configurable account semaphore via
// golang.org/x/sync/errgroup, matching the discovery orchestrator's own
// use of the same library one layer down.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/habhabhabs/inventag-go/internal/awsclient"
	"github.com/habhabhabs/inventag-go/internal/awsctx"
	"github.com/habhabhabs/inventag-go/internal/compliance"
	"github.com/habhabhabs/inventag-go/internal/costanalysis"
	"github.com/habhabhabs/inventag-go/internal/delta"
	"github.com/habhabhabs/inventag-go/internal/discovery"
	"github.com/habhabhabs/inventag-go/internal/model"
	"github.com/habhabhabs/inventag-go/internal/network"
	"github.com/habhabhabs/inventag-go/internal/posture"
	"github.com/habhabhabs/inventag-go/internal/safety"
	"github.com/habhabhabs/inventag-go/internal/security"
	"github.com/habhabhabs/inventag-go/internal/state"
)

// Status is the terminal or in-flight state of a per-account run
// (spec.md §4.10: queued → discovering → enriching → analyzing →
// comparing → done | failed | partial).
type Status string

const (
	StatusQueued      Status = "queued"
	StatusDiscovering Status = "discovering"
	StatusEnriching   Status = "enriching"
	StatusAnalyzing   Status = "analyzing"
	StatusComparing   Status = "comparing"
	StatusDone        Status = "done"
	StatusFailed      Status = "failed"
	StatusPartial     Status = "partial"
)

// StageDurations records wall-clock time spent in each stage, surfaced on
// the Report per spec.md §6 ("run metadata: durations per stage").
type StageDurations struct {
	Discovery  time.Duration
	Enrichment time.Duration
	Analysis   time.Duration
	Comparison time.Duration
}

// Report is the typed output of one account's run (spec.md §6).
type Report struct {
	AccountID        string
	Status           Status
	Resources        []model.Resource
	Network          model.NetworkSummary
	Security         model.SecuritySummary
	Compliance       model.ComplianceSummary
	Delta            *model.Delta
	CostFlags        []costanalysis.CostFlag
	Snapshot         *model.Snapshot
	Audit            []safety.AuditEntry
	SafetyViolations int
	Durations        StageDurations
	Errors           []string
	RegionErrors     map[string]string
	ServiceErrors    map[string]string
	ExcludedCount    int

	// CacheHits, CacheMisses and CacheEntries surface the DynamicHandler's
	// reflection-probe cache effectiveness for this account's run
	// (SPEC_FULL.md §C.1).
	CacheHits    int
	CacheMisses  int
	CacheEntries int
}

// AccountInput carries what Run needs for one account: its descriptor
// (credentials, filters). The tag policy and run settings come from
// Runner.Options, and runAccount builds a separate SafetyGate per account.
type AccountInput struct {
	Descriptor awsctx.Descriptor
}

// Options configures Runner.Run (spec.md §6's run configuration).
type Options struct {
	MaxConcurrentAccounts int
	AccountDeadline       time.Duration
	OperationTimeout      int // seconds; passed to discovery.Config
	FallbackDisplay       discovery.FallbackDisplay
	Filtering             discovery.FilterPolicy
	EnableState           bool
	EnableDelta           bool
	RetentionDays         int
	EnableCostAnalysis    bool
	CostThresholdUSD      float64
	StateDir              string
	TagPolicy             model.TagPolicy
	SafetyViolationCap    int

	// MaxCallsPerSecond throttles each account's SafetyGate to at most
	// this many admitted AWS calls per second (0 disables throttling),
	// smoothing the burst that concurrent region/service fan-out (spec §5)
	// would otherwise put on the account's API budget.
	MaxCallsPerSecond float64
	RateLimitBurst    int
}

// DefaultOptions returns spec.md §6's documented defaults.
func DefaultOptions() Options {
	return Options{
		MaxConcurrentAccounts: 4,
		AccountDeadline:       1800 * time.Second,
		OperationTimeout:      20,
		FallbackDisplay:       discovery.FallbackAuto,
		Filtering:             discovery.FilterPolicy{ExcludeAWSManaged: true, IncludeDefaultVPC: false},
		EnableState:           true,
		EnableDelta:           true,
		RetentionDays:         30,
		StateDir:              "./inventag-state",
	}
}

// Runner sequences the per-account pipeline across a batch of accounts.
type Runner struct {
	Options Options
}

// New builds a Runner with opts.
func New(opts Options) *Runner { return &Runner{Options: opts} }

// Run executes every account's pipeline, bounded by
// Options.MaxConcurrentAccounts (spec.md §5: "accounts in parallel,
// bounded by an account semaphore"). A cancelled ctx propagates to every
// in-flight account worker; each account additionally carries its own
// deadline, so one account's timeout never blocks the others.
func (r *Runner) Run(ctx context.Context, accounts []AccountInput) ([]*Report, error) {
	reports := make([]*Report, len(accounts))

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(maxInt(r.Options.MaxConcurrentAccounts, 1))

	for i, acct := range accounts {
		i, acct := i, acct
		group.Go(func() error {
			reports[i] = r.runAccount(gctx, acct)
			return nil // one account's failure never aborts the batch.
		})
	}
	if err := group.Wait(); err != nil {
		return reports, fmt.Errorf("pipeline: %w", err)
	}
	return reports, nil
}

// runAccount drives one account through every pipeline stage, applying
// the account deadline as a hard ceiling (spec.md §5: "On expiry,
// outstanding work is cancelled and the account is reported partial").
func (r *Runner) runAccount(ctx context.Context, acct AccountInput) *Report {
	report := &Report{
		AccountID:     acct.Descriptor.AccountID,
		Status:        StatusQueued,
		RegionErrors:  map[string]string{},
		ServiceErrors: map[string]string{},
	}

	deadline := r.Options.AccountDeadline
	if deadline <= 0 {
		deadline = DefaultOptions().AccountDeadline
	}
	acctCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	gate := safety.New(r.Options.SafetyViolationCap)
	if r.Options.MaxCallsPerSecond > 0 {
		gate.SetRateLimit(r.Options.MaxCallsPerSecond, maxInt(r.Options.RateLimitBurst, 1))
	}

	accCtx, err := resolveAccount(acctCtx, acct.Descriptor, gate)
	if err != nil {
		report.Status = StatusFailed
		report.AccountID = acct.Descriptor.AccountID
		report.Errors = append(report.Errors, err.Error())
		report.Audit = gate.Audit()
		report.SafetyViolations = gate.Violations()
		return report
	}
	report.AccountID = accCtx.AccountID

	cache := awsclient.New(accCtx.AWSConfig)

	report.Status = StatusDiscovering
	discStart := time.Now()
	discResult, discErr := r.discover(acctCtx, gate, cache, accCtx, acct.Descriptor)
	report.Durations.Discovery = time.Since(discStart)
	if discErr != nil {
		report.Status = partialOrFailed(acctCtx, StatusFailed)
		report.Errors = append(report.Errors, discErr.Error())
		finalize(report, gate)
		return report
	}
	for k, v := range discResult.ServiceErrors {
		report.ServiceErrors[k] = v.Error()
	}
	for _, ro := range discResult.RegionErrors {
		report.RegionErrors[ro.Region] = ro.Err.Error()
	}
	report.ExcludedCount = discResult.ExcludedCount

	report.Status = StatusEnriching
	enrichStart := time.Now()
	registry, dyn := enrichRegistry(gate, cache)
	enrichedResources := registry.EnrichAll(acctCtx, gate, cache, discResult.Resources)
	report.Durations.Enrichment = time.Since(enrichStart)
	report.CacheHits, report.CacheMisses, report.CacheEntries = dyn.CacheStats()

	report.Status = StatusAnalyzing
	analysisStart := time.Now()
	networkSummary, securitySummary, costFlags := r.analyze(acctCtx, gate, cache, accCtx, enrichedResources)
	report.Durations.Analysis = time.Since(analysisStart)
	report.Network = networkSummary
	report.Security = securitySummary
	report.CostFlags = costFlags

	resourcesWithVerdicts, complianceSummary := compliance.Evaluate(enrichedResources, r.Options.TagPolicy)
	report.Resources = resourcesWithVerdicts
	report.Compliance = complianceSummary

	report.Status = StatusComparing
	compareStart := time.Now()
	r.compareAndStore(accCtx, report)
	report.Durations.Comparison = time.Since(compareStart)

	if report.Status != StatusFailed {
		report.Status = partialOrFailed(acctCtx, StatusDone)
	}
	finalize(report, gate)
	return report
}

func finalize(report *Report, gate *safety.Gate) {
	report.Audit = gate.Audit()
	report.SafetyViolations = gate.Violations()
}

// partialOrFailed reports StatusPartial instead of want when ctx's
// deadline has already elapsed, per spec.md §5's "exceeding it marks that
// account partial and proceeds".
func partialOrFailed(ctx context.Context, want Status) Status {
	if ctx.Err() == context.DeadlineExceeded {
		return StatusPartial
	}
	return want
}

func resolveAccount(ctx context.Context, d awsctx.Descriptor, gate *safety.Gate) (*awsctx.AccountContext, error) {
	bootstrapCfg, err := awsctx.Resolve(ctx, d, gate, nil)
	if err != nil {
		return nil, err
	}
	if len(bootstrapCfg.Regions) == 0 {
		regions, err := awsctx.ListRegions(ctx, bootstrapCfg.AWSConfig, gate)
		if err != nil {
			return nil, err
		}
		if len(d.RegionFilter) > 0 {
			bootstrapCfg.Regions = intersect(regions, d.RegionFilter)
		} else {
			bootstrapCfg.Regions = regions
		}
	}
	return bootstrapCfg, nil
}

func intersect(all, filter []string) []string {
	allowed := make(map[string]bool, len(filter))
	for _, f := range filter {
		allowed[f] = true
	}
	var out []string
	for _, r := range all {
		if allowed[r] {
			out = append(out, r)
		}
	}
	return out
}

func (r *Runner) discover(ctx context.Context, gate *safety.Gate, cache *awsclient.Cache, accCtx *awsctx.AccountContext, d awsctx.Descriptor) (*discovery.Result, error) {
	registry := discoveryRegistry(r.Options.Filtering, d.ServiceFilter)
	orchestrator := &discovery.Orchestrator{
		Registry: registry,
		Cache:    cache,
		Gate:     gate,
		Config: discovery.Config{
			ServiceWorkers:   4,
			RegionWorkers:    4,
			OperationTimeout: operationTimeout(r.Options.OperationTimeout),
			FallbackDisplay:  r.Options.FallbackDisplay,
			Filter:           r.Options.Filtering,
		},
	}
	result, err := orchestrator.Run(ctx, accCtx.AccountID, accCtx.Regions)
	if err != nil {
		return result, err
	}
	if len(d.TagFilter) > 0 {
		result.Resources = filterByTags(result.Resources, d.TagFilter)
	}
	return result, nil
}

func filterByTags(resources []model.Resource, want map[string]string) []model.Resource {
	out := make([]model.Resource, 0, len(resources))
	for _, res := range resources {
		match := true
		for k, v := range want {
			if res.Tags[k] != v {
				match = false
				break
			}
		}
		if match {
			out = append(out, res)
		}
	}
	return out
}

func operationTimeout(seconds int) time.Duration {
	if seconds <= 0 {
		return 20 * time.Second
	}
	return time.Duration(seconds) * time.Second
}

// analyze runs NetworkAnalyzer and SecurityAnalyzer in parallel (spec.md
// §4.10), each fed the posture signals they accept as plain data, plus
// CostAnalyzer when enabled.
func (r *Runner) analyze(ctx context.Context, gate *safety.Gate, cache *awsclient.Cache, accCtx *awsctx.AccountContext, resources []model.Resource) (model.NetworkSummary, model.SecuritySummary, []costanalysis.CostFlag) {
	var (
		wg               sync.WaitGroup
		networkSummary   model.NetworkSummary
		securitySummary  model.SecuritySummary
		costFlags        []costanalysis.CostFlag
		configByRegion   = map[string]bool{}
		severityByRegion = map[string]int{}
		mu               sync.Mutex
	)

	for _, region := range accCtx.Regions {
		region := region
		wg.Add(1)
		go func() {
			defer wg.Done()
			rc := cache.ForRegion(region)
			active, err := posture.ConfigRecorderActive(ctx, gate, rc)
			mu.Lock()
			if err == nil {
				configByRegion[region] = active
			}
			mu.Unlock()

			bySeverity, err := posture.FindingsBySeverity(ctx, gate, rc)
			if err == nil {
				mu.Lock()
				for band, count := range bySeverity {
					severityByRegion[band] += count
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	wg.Add(2)
	go func() {
		defer wg.Done()
		networkSummary = network.Analyze(resources, configByRegion)
	}()
	go func() {
		defer wg.Done()
		securitySummary = security.Analyze(resources, severityByRegion)
	}()
	wg.Wait()

	if r.Options.EnableCostAnalysis {
		analyzer := costanalysis.New(cache.Global().CostExplorer, r.Options.CostThresholdUSD)
		flags, err := analyzer.Analyze(ctx, gate)
		if err == nil {
			costFlags = flags
		}
	}

	return networkSummary, securitySummary, costFlags
}

// compareAndStore writes the new Snapshot (if enabled) and diffs it
// against the account's previous snapshot (if delta is enabled), matching
// spec.md §4.10's "Snapshot written → Delta vs. previous snapshot
// computed" sequence.
func (r *Runner) compareAndStore(accCtx *awsctx.AccountContext, report *Report) {
	if !r.Options.EnableState {
		return
	}
	store := state.New(stateDir(r.Options.StateDir), moduleVersion)

	var previous *model.Snapshot
	if r.Options.EnableDelta {
		if prev, ok, err := store.Latest(accCtx.AccountID); err == nil && ok {
			previous = &prev
		}
	}

	snap, err := store.Write(accCtx.AccountID, accCtx.Regions, report.Resources, time.Now())
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		return
	}
	report.Snapshot = &snap

	if r.Options.EnableDelta && previous != nil {
		d, err := delta.Diff(previous.Resources, snap.Resources)
		if err != nil {
			report.Errors = append(report.Errors, err.Error())
			return
		}
		report.Delta = &d
	}
}

// Retain deletes snapshots older than Options.RetentionDays across every
// account's state directory. It is never called by Run/runAccount —
// spec.md §4.8/§7 require retention to run only on the caller's explicit
// request, never as a side effect of an ordinary pipeline run. A caller
// that wants retention enforced invokes this separately, e.g. on its own
// schedule.
func (r *Runner) Retain(now time.Time) (deleted int, err error) {
	if r.Options.RetentionDays <= 0 {
		return 0, nil
	}
	store := state.New(stateDir(r.Options.StateDir), moduleVersion)
	return store.Retain(r.Options.RetentionDays, now)
}

func stateDir(dir string) string {
	if dir == "" {
		return "./inventag-state"
	}
	return dir
}

// moduleVersion stamps Snapshot.Header.ProducerVersion; bumped alongside
// tagged releases.
const moduleVersion = "0.1.0"

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
