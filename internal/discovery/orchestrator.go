package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/habhabhabs/inventag-go/internal/awsclient"
	"github.com/habhabhabs/inventag-go/internal/model"
	"github.com/habhabhabs/inventag-go/internal/safety"
)

// Config is the tunable part of DiscoveryOrchestrator's concurrency and
// deadline model (spec.md §4.3, §5).
type Config struct {
	ServiceWorkers   int // default 4: service-discovery parallelism within one region
	RegionWorkers    int // default 4: region parallelism within one account
	OperationTimeout time.Duration // default 20s: per unit-of-work deadline
	FallbackDisplay  FallbackDisplay
	Filter           FilterPolicy
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		ServiceWorkers:   4,
		RegionWorkers:    4,
		OperationTimeout: 20 * time.Second,
		FallbackDisplay:  FallbackAuto,
		Filter:           FilterPolicy{ExcludeAWSManaged: true, IncludeDefaultVPC: false},
	}
}

// RegionOutcome records what happened discovering one region, used to
// populate the run's per-region error report (spec.md §4.3: "On
// per-region error: skip region, mark in report").
type RegionOutcome struct {
	Region string
	Err    error
}

// Result is everything the orchestrator produces for one account.
type Result struct {
	Resources      []model.Resource
	PrimarySuccess PrimarySuccess
	ServiceErrors  map[string]error // keyed "service@region"
	RegionErrors   []RegionOutcome
	ExcludedCount  int
}

// Orchestrator runs the two-tier discovery fan-out for one account.
type Orchestrator struct {
	Registry *Registry
	Cache    *awsclient.Cache
	Gate     *safety.Gate
	Config   Config
}

// Run discovers every registered service across regions for one account,
// merges primary and fallback results, and returns the deterministic,
// ordered Result.
func (o *Orchestrator) Run(ctx context.Context, accountID string, regions []string) (*Result, error) {
	result := &Result{
		PrimarySuccess: PrimarySuccess{},
		ServiceErrors:  map[string]error{},
	}
	var mu sync.Mutex

	var primary, fallback []model.Resource

	// Global services (IAM, CloudFront, Route53): once per account.
	for _, svc := range o.Registry.Services() {
		h := o.Registry.Get(svc)
		if !h.Global() {
			continue
		}
		res, err := o.runUnit(ctx, h, accountID, "global")
		mu.Lock()
		if err != nil {
			result.ServiceErrors[svc+"@global"] = err
		} else {
			result.PrimarySuccess[svc] = result.PrimarySuccess[svc] || len(res) > 0
		}
		primary = append(primary, res...)
		mu.Unlock()
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(o.Config.RegionWorkers)

	for _, region := range regions {
		region := region
		group.Go(func() error {
			regionPrimary, regionFallback, outcome := o.runRegion(gctx, accountID, region)
			mu.Lock()
			defer mu.Unlock()
			primary = append(primary, regionPrimary...)
			fallback = append(fallback, regionFallback...)
			for svc, produced := range outcome.produced {
				result.PrimarySuccess[svc] = result.PrimarySuccess[svc] || produced
			}
			for k, v := range outcome.serviceErrors {
				result.ServiceErrors[k] = v
			}
			if outcome.fallbackErr != nil {
				result.RegionErrors = append(result.RegionErrors, RegionOutcome{Region: region, Err: outcome.fallbackErr})
			}
			return nil // per-region errors never fail the group; they're recorded.
		})
	}
	if err := group.Wait(); err != nil {
		return result, fmt.Errorf("discovery: %w", err)
	}

	result.Resources = Merge(primary, fallback, o.Config.FallbackDisplay, result.PrimarySuccess)
	return result, nil
}

type regionOutcome struct {
	produced      map[string]bool
	serviceErrors map[string]error
	fallbackErr   error
}

func (o *Orchestrator) runRegion(ctx context.Context, accountID, region string) (primary, fallback []model.Resource, outcome regionOutcome) {
	outcome.produced = map[string]bool{}
	outcome.serviceErrors = map[string]error{}

	svcGroup, svcCtx := errgroup.WithContext(ctx)
	svcGroup.SetLimit(o.Config.ServiceWorkers)
	var mu sync.Mutex

	for _, svc := range o.Registry.Services() {
		h := o.Registry.Get(svc)
		if h.Global() {
			continue
		}
		svc := svc
		h := h
		svcGroup.Go(func() error {
			res, err := o.runUnit(svcCtx, h, accountID, region)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				outcome.serviceErrors[svc+"@"+region] = err
				return nil // per-service errors never abort the region.
			}
			outcome.produced[svc] = len(res) > 0
			primary = append(primary, res...)
			return nil
		})
	}
	_ = svcGroup.Wait()

	rc := o.Cache.ForRegion(region)
	fbCtx, cancel := context.WithTimeout(ctx, o.Config.OperationTimeout)
	defer cancel()
	fb, err := FallbackDiscover(fbCtx, o.Gate, rc, accountID, region)
	if err != nil {
		outcome.fallbackErr = err
	}
	fallback = fb
	return primary, fallback, outcome
}

func (o *Orchestrator) runUnit(ctx context.Context, h Handler, accountID, region string) ([]model.Resource, error) {
	opCtx, cancel := context.WithTimeout(ctx, o.Config.OperationTimeout)
	defer cancel()

	var rc *awsclient.RegionClients
	if h.Global() {
		rc = o.Cache.Global()
	} else {
		rc = o.Cache.ForRegion(region)
	}

	res, err := h.Discover(opCtx, o.Gate, rc, accountID, region)
	if err != nil {
		if opCtx.Err() == context.DeadlineExceeded {
			return res, &model.ErrTimeout{Service: h.Service(), Operation: "Discover", Deadline: o.Config.OperationTimeout}
		}
		return res, err
	}
	return res, nil
}
