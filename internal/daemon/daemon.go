// Package daemon bundles the process-wide state the original implementation
// kept as module-level globals (spec.md §9 design notes) into a single value:
// the configuration snapshot, the awaited-repo registry, the session cache,
// the bus subscription, and the classify -> coalesce -> orchestrate pipeline
// wired together. Public entry points take a *Daemon rather than reading
// globals.
package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sgallagher/distrobuildsync/internal/awaitedrepo"
	"github.com/sgallagher/distrobuildsync/internal/bus"
	"github.com/sgallagher/distrobuildsync/internal/buildsys"
	"github.com/sgallagher/distrobuildsync/internal/classifier"
	"github.com/sgallagher/distrobuildsync/internal/coalescer"
	"github.com/sgallagher/distrobuildsync/internal/config"
	"github.com/sgallagher/distrobuildsync/internal/metrics"
	"github.com/sgallagher/distrobuildsync/internal/orchestrator"
	"github.com/sgallagher/distrobuildsync/internal/session"
)

// tagEventBody is the JSON body of a buildsys.tag message (spec.md §6).
type tagEventBody struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Release string `json:"release"`
	Tag     string `json:"tag"`
	BuildID int    `json:"build_id"`
}

// repoDoneBody is the JSON body of a buildsys.repo.done message (spec.md §6).
type repoDoneBody struct {
	Tag string `json:"tag"`
}

// Daemon wires the Message Classifier, Batch Coalescer, and Rebuild
// Orchestrator to a live bus subscription and a reloadable configuration.
type Daemon struct {
	Store        *config.Store
	Registry     *awaitedrepo.Registry
	Sessions     *session.Cache
	Bus          bus.Bus
	Classifier   *classifier.Classifier
	Coalescer    *coalescer.Coalescer
	Orchestrator *orchestrator.Orchestrator
	Metrics      *metrics.Metrics
	Logger       *slog.Logger

	// Subject is the bus subject pattern subscribed for both tag and
	// repo-done events (they are distinguished by topic suffix, per
	// spec.md §4.1, not by separate subjects).
	Subject string

	sub bus.Subscription
}

// New builds a Daemon from its constituent collaborators. Sessions, Bus,
// Store, Registry, and Metrics must be supplied by the caller
// (cmd/distrobuildsync), so the same *metrics.Metrics bundle registered
// against the process's registry is the one the Reloader and Orchestrator
// increment; Classifier, Coalescer, and Orchestrator are constructed here so
// their wiring (coalescer flushes into orchestrator.Run, orchestrator reads
// the same Store and Registry) can't drift out of sync.
func New(store *config.Store, registry *awaitedrepo.Registry, sessions *session.Cache, b bus.Bus, gitSync orchestrator.GitSyncer, subject string, dryRun bool, m *metrics.Metrics, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}

	cl := classifier.New(store, sessions, dryRun, logger)
	orch := orchestrator.New(store, sessions, registry, gitSync, dryRun, m, logger)

	d := &Daemon{
		Store:      store,
		Registry:   registry,
		Sessions:   sessions,
		Bus:        b,
		Classifier: cl,
		Orchestrator: orch,
		Metrics:    m,
		Logger:     logger,
		Subject:    subject,
	}

	d.Coalescer = coalescer.New(coalescer.DefaultInterval, d.flush, logger)
	return d
}

// Start subscribes to the bus and begins processing events. It returns once
// the subscription is established; event handling continues asynchronously
// until ctx is cancelled or Stop is called.
func (d *Daemon) Start(ctx context.Context) error {
	sub, err := d.Bus.Subscribe(ctx, d.Subject, d.handle)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", d.Subject, err)
	}
	d.sub = sub
	d.Logger.Info("daemon subscribed", "subject", d.Subject)
	return nil
}

// Stop unsubscribes from the bus and stops the coalescer's flush timer.
// In-flight orchestrations are not cancelled; they complete or time out on
// their own.
func (d *Daemon) Stop() {
	if d.sub != nil {
		if err := d.sub.Unsubscribe(); err != nil {
			d.Logger.Warn("unsubscribe failed", "error", err)
		}
	}
	d.Coalescer.Stop()
}

// handle is the bus.Handler invoked for every message on Subject. It never
// blocks on orchestration: classify is synchronous but cheap relative to
// build-system RPCs (which themselves run under context timeouts from the
// underlying client), and admission to the coalescer is non-blocking.
func (d *Daemon) handle(msg bus.Message) {
	ctx := context.Background()

	if strings.HasSuffix(msg.Subject, "buildsys.repo.done") {
		var body repoDoneBody
		if err := json.Unmarshal(msg.Data, &body); err != nil {
			d.Logger.Error("malformed repo.done message", "subject", msg.Subject, "error", err)
			return
		}
		res := d.Classifier.Classify(ctx, classifier.Event{Topic: msg.Subject, Tag: body.Tag})
		if res.Action == classifier.ActionRepoDone {
			d.Registry.Fulfill(res.RepoDoneTag)
		}
		return
	}

	var body tagEventBody
	if err := json.Unmarshal(msg.Data, &body); err != nil {
		d.Logger.Error("malformed tag message", "subject", msg.Subject, "error", err)
		return
	}

	ev := classifier.Event{
		Topic:   msg.Subject,
		Tag:     body.Tag,
		Name:    body.Name,
		Version: body.Version,
		Release: body.Release,
		BuildID: body.BuildID,
	}
	res := d.Classifier.Classify(ctx, ev)
	switch res.Action {
	case classifier.ActionRebuild:
		d.Coalescer.Admit(*res.Rebuild)
		d.Metrics.EventsEnqueued.Inc()
		d.Metrics.PendingEvents.Set(float64(d.Coalescer.Pending()))
	default:
		d.Metrics.EventsIgnored.Inc()
	}
}

// flush is the coalescer.FlushFunc; it runs the orchestrator for one
// target's batch and records batch-level metrics. Builds are counted as tagged
// only when the orchestrator's pre-tag step applies, and as submitted only
// outside dry-run; a batch that Run aborts is still counted.
func (d *Daemon) flush(target string, builds []classifier.RebuildData) {
	d.Metrics.BatchesFlushed.Inc()
	main := d.Store.Main()
	dryRun := d.Orchestrator.DryRun
	if main.Source.Profile == main.Destination.Profile && !dryRun {
		d.Metrics.BuildsTagged.Add(float64(len(builds)))
	}
	d.Orchestrator.Run(context.Background(), target, builds)
	if !dryRun {
		d.Metrics.BuildsSubmitted.Add(float64(len(builds)))
	}
	d.Metrics.PendingEvents.Set(float64(d.Coalescer.Pending()))
}

// SourceSession is a convenience accessor used by Oneshot Mode.
func (d *Daemon) SourceSession(ctx context.Context) (buildsys.Session, error) {
	return d.Sessions.Get(ctx, session.RoleSource, false)
}
