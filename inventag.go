// Package inventag is the public library API for InvenTag's read-only AWS
// governance engine: it composes AccountContext, DiscoveryOrchestrator,
// ServiceEnricher, NetworkAnalyzer, SecurityAnalyzer, ComplianceEngine,
// StateStore and DeltaDetector into a single Run call per spec.md §6's
// "the core exposes a library API whose function is to produce the
// Report and Snapshot" — CLI surface, exit codes and external delivery
// (S3 upload, notifications) are explicitly out of scope and live in a
// separate, out-of-tree caller.
package inventag

import (
	"context"
	"time"

	"github.com/habhabhabs/inventag-go/internal/config"
	"github.com/habhabhabs/inventag-go/internal/discovery"
	"github.com/habhabhabs/inventag-go/internal/pipeline"
)

// Report re-exports pipeline.Report as the public result type.
type Report = pipeline.Report

// Status re-exports pipeline.Status, the per-account run state.
type Status = pipeline.Status

// RunConfig is the top-level input to Run: a loaded Config (accounts,
// run tuning, tag policy).
type RunConfig struct {
	Config *config.Config
}

// LoadRunConfig reads path via config.Load and wraps it as a RunConfig.
func LoadRunConfig(path string) (*RunConfig, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return &RunConfig{Config: cfg}, nil
}

// Run executes the full pipeline for every account in rc.Config.Accounts
// and returns one Report per account, in the same order they were
// configured.
func Run(ctx context.Context, rc *RunConfig) ([]*Report, error) {
	run := rc.Config.Run
	opts := pipeline.Options{
		MaxConcurrentAccounts: run.MaxConcurrentAccounts,
		AccountDeadline:       time.Duration(run.AccountDeadlineSec) * time.Second,
		OperationTimeout:      run.OperationTimeoutSec,
		FallbackDisplay:       run.FallbackDisplay,
		Filtering: discovery.FilterPolicy{
			ExcludeAWSManaged: run.Filtering.ExcludeAWSManaged,
			IncludeDefaultVPC: run.Filtering.IncludeDefaultVPC,
		},
		EnableState:        run.EnableState,
		EnableDelta:        run.EnableDelta,
		RetentionDays:      run.RetentionDays,
		EnableCostAnalysis: run.EnableCostAnalysis,
		CostThresholdUSD:   run.CostThresholdUSD,
		StateDir:           run.StateDir,
		TagPolicy:          rc.Config.TagPolicy,
		MaxCallsPerSecond:  run.MaxCallsPerSecond,
		RateLimitBurst:     run.RateLimitBurst,
	}

	runner := pipeline.New(opts)

	accounts := make([]pipeline.AccountInput, len(rc.Config.Accounts))
	for i, a := range rc.Config.Accounts {
		accounts[i] = pipeline.AccountInput{Descriptor: a.ToDescriptor()}
	}

	return runner.Run(ctx, accounts)
}
