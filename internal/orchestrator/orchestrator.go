// Package orchestrator implements the Rebuild Orchestrator (spec.md §4.3): for
// one downstream target's coalesced batch, bulk-tag builds, wait (bounded) for
// buildroot regeneration, then submit downstream builds, invoking an external
// git-sync collaborator first when content needs mirroring.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sgallagher/distrobuildsync/internal/awaitedrepo"
	"github.com/sgallagher/distrobuildsync/internal/buildsys"
	"github.com/sgallagher/distrobuildsync/internal/classifier"
	"github.com/sgallagher/distrobuildsync/internal/config"
	"github.com/sgallagher/distrobuildsync/internal/gitsync"
	"github.com/sgallagher/distrobuildsync/internal/metrics"
	"github.com/sgallagher/distrobuildsync/internal/scm"
	"github.com/sgallagher/distrobuildsync/internal/session"
)

// DefaultBatchSize is the per-multicall cap (spec.md §4.2 "koji_batch").
const DefaultBatchSize = 500

// SessionProvider is the subset of session.Cache the orchestrator depends on.
type SessionProvider interface {
	Get(ctx context.Context, role session.Role, forceLogin bool) (buildsys.Session, error)
}

// GitSyncer mirrors content for one component before a build is submitted
// against it. Failures are non-fatal by contract (spec.md §6).
type GitSyncer interface {
	Sync(ctx context.Context, ns, comp string) error
}

// Orchestrator drives one target's rebuild batch through tag, wait, build.
type Orchestrator struct {
	Config    *config.Store
	Sessions  SessionProvider
	Registry  *awaitedrepo.Registry
	GitSync   GitSyncer
	DryRun    bool
	BatchSize int
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// New returns an Orchestrator. If gitSyncClient is nil, a client with no
// configured endpoint is used (Sync calls then fail fast and are logged). m
// may be nil (tests exercising Orchestrator directly don't need metrics).
func New(store *config.Store, sessions SessionProvider, registry *awaitedrepo.Registry, gitSyncClient GitSyncer, dryRun bool, m *metrics.Metrics, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if gitSyncClient == nil {
		gitSyncClient = gitsync.New("", logger)
	}
	return &Orchestrator{
		Config:    store,
		Sessions:  sessions,
		Registry:  registry,
		GitSync:   gitSyncClient,
		DryRun:    dryRun,
		BatchSize: DefaultBatchSize,
		Metrics:   m,
		Logger:    logger,
	}
}

// Run executes the full tag -> wait -> build sequence for one coalesced batch.
// Intended to be invoked as the coalescer's FlushFunc, one goroutine per
// target; multiple concurrent Run calls for different targets are expected
// and have no ordering relationship with each other.
func (o *Orchestrator) Run(ctx context.Context, target string, builds []classifier.RebuildData) {
	if len(builds) == 0 {
		return
	}
	main := o.Config.Main()

	runID := uuid.NewString()
	o.Logger.Info("orchestration batch starting", "run_id", runID, "target", target, "count", len(builds))

	destination, err := o.Sessions.Get(ctx, session.RoleDestination, false)
	if err != nil {
		o.Logger.Error("orchestration aborted: cannot acquire destination session", "run_id", runID, "target", target, "error", err)
		return
	}

	effectiveTarget := target
	if effectiveTarget == "" {
		effectiveTarget = main.Build.Target
	}

	if main.Source.Profile == main.Destination.Profile && !o.DryRun {
		if err := o.preTag(ctx, destination, effectiveTarget, builds); err != nil {
			o.Logger.Error("orchestration aborted during pre-tag step", "run_id", runID, "target", effectiveTarget, "error", err)
			return
		}
	}

	o.submitBuilds(ctx, destination, main, effectiveTarget, builds)
	o.Logger.Info("orchestration batch complete", "run_id", runID, "target", effectiveTarget)
}

// BuildOnly submits builds directly with no pre-tag step and no buildroot
// wait, for Oneshot Mode (spec.md §4.8). An empty target substitutes
// main.build.target, same as Run.
func (o *Orchestrator) BuildOnly(ctx context.Context, target string, builds []classifier.RebuildData) error {
	if len(builds) == 0 {
		return nil
	}
	main := o.Config.Main()

	destination, err := o.Sessions.Get(ctx, session.RoleDestination, false)
	if err != nil {
		return fmt.Errorf("acquire destination session: %w", err)
	}

	effectiveTarget := target
	if effectiveTarget == "" {
		effectiveTarget = main.Build.Target
	}

	o.submitBuilds(ctx, destination, main, effectiveTarget, builds)
	return nil
}

// preTag bulk-tags every build into target, then waits (with a non-fatal
// timeout) for the target's build tag repo to regenerate.
func (o *Orchestrator) preTag(ctx context.Context, destination buildsys.Session, target string, builds []classifier.RebuildData) error {
	calls := make([]buildsys.Call, 0, len(builds))
	for _, b := range builds {
		calls = append(calls, buildsys.TagBuild(target, b.NVR()))
	}

	results, err := chunkedMulticall(ctx, destination, o.BatchSize, calls)
	if err != nil {
		return fmt.Errorf("tagBuild multicall: %w", err)
	}
	for i, r := range results {
		if r.Err != nil {
			o.Logger.Error("tagBuild failed for one build", "nvr", calls[i].NVR, "error", r.Err)
		}
	}

	targetInfo, err := destination.GetBuildTarget(ctx, target)
	if err != nil {
		return fmt.Errorf("resolve build tag for target %s: %w", target, err)
	}

	ch := o.Registry.Wait(targetInfo.BuildTagName, awaitedrepo.DefaultTimeout)
	select {
	case fulfilled := <-ch:
		if !fulfilled {
			o.Logger.Info("wait_repo timed out, proceeding anyway", "tag", targetInfo.BuildTagName)
			if o.Metrics != nil {
				o.Metrics.WaitTimeouts.Inc()
			}
		}
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// submitBuilds git-syncs each component (and its module ref overrides), then
// submits the downstream builds via multicall.
func (o *Orchestrator) submitBuilds(ctx context.Context, destination buildsys.Session, main config.Main, target string, builds []classifier.RebuildData) {
	if !o.DryRun {
		g, gctx := errgroup.WithContext(ctx)
		for _, b := range builds {
			b := b
			g.Go(func() error {
				o.syncComponent(gctx, b.NS, b.Comp)
				for rpmComp := range b.RefOverrides {
					o.syncComponent(gctx, "rpms", rpmComp)
				}
				return nil
			})
		}
		_ = g.Wait() // syncComponent never returns an error to the group; failures are logged inline
	}

	calls := make([]buildsys.Call, 0, len(builds))
	for _, b := range builds {
		ref := scm.Split(b.SCMURL).Ref
		downstreamSCMURL := fmt.Sprintf("%s/%s/%s#%s", main.Build.Prefix, b.NS, b.Comp, ref)
		calls = append(calls, buildsys.Build(downstreamSCMURL, target, main.Build.Scratch))
	}

	if o.DryRun {
		o.Logger.Info("dry-run: skipping build submission", "target", target, "count", len(calls))
		return
	}

	results, err := chunkedMulticall(ctx, destination, o.BatchSize, calls)
	if err != nil {
		o.Logger.Error("build multicall failed", "target", target, "error", err)
		return
	}
	for i, r := range results {
		if r.Err != nil {
			o.Logger.Error("build submission failed for one component", "scmurl", calls[i].SCMURL, "error", r.Err)
		}
	}
}

func (o *Orchestrator) syncComponent(ctx context.Context, ns, comp string) {
	if err := o.GitSync.Sync(ctx, ns, comp); err != nil {
		o.Logger.Warn("git-sync request failed", "ns", ns, "comp", comp, "error", err)
	}
}

// chunkedMulticall splits calls into batches of at most batchSize and issues
// one Multicall per batch, concatenating results in call order.
func chunkedMulticall(ctx context.Context, s buildsys.Session, batchSize int, calls []buildsys.Call) ([]buildsys.CallResult, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	results := make([]buildsys.CallResult, 0, len(calls))
	for start := 0; start < len(calls); start += batchSize {
		end := min(start+batchSize, len(calls))
		chunk, err := s.Multicall(ctx, batchSize, calls[start:end])
		if err != nil {
			return nil, err
		}
		results = append(results, chunk...)
	}
	return results, nil
}
