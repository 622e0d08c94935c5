// Package classifier implements the Message Classifier (spec.md §4.1): turning
// one incoming tag event into either a drop or a RebuildData record ready for
// the Batch Coalescer, including the tag taxonomy, component-eligibility gate,
// side-tag provisioning, and build-system enrichment.
package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sgallagher/distrobuildsync/internal/buildsys"
	"github.com/sgallagher/distrobuildsync/internal/config"
	"github.com/sgallagher/distrobuildsync/internal/scm"
	"github.com/sgallagher/distrobuildsync/internal/session"
)

// Event is one tag event read off the bus.
type Event struct {
	Topic   string
	Tag     string
	Name    string
	Version string
	Release string
	BuildID int
}

// RebuildData is the classifier's output, consumed by the coalescer and
// orchestrator.
type RebuildData struct {
	NS                string
	Comp              string
	Version           string
	Release           string
	SCMURL            string
	DownstreamTarget  string            // empty means "use main.build.target"
	RefOverrides      map[string]string // rpm component -> pinned git ref; modules only
}

// NVR returns the canonical name-version-release for this rebuild. For modules,
// whose Comp is "name:stream", only the name part is used.
func (r RebuildData) NVR() string {
	name := r.Comp
	if r.NS == "modules" {
		name = scm.SplitModule(r.Comp).Name
	}
	return fmt.Sprintf("%s-%s-%s", name, r.Version, r.Release)
}

// Action classifies what Classify decided to do with an event.
type Action int

const (
	// ActionIgnore means the event carried no actionable information.
	ActionIgnore Action = iota
	// ActionRepoDone means the event should be dispatched to the Awaited-Repo
	// Registry; RepoDoneTag names the tag to fulfil.
	ActionRepoDone
	// ActionRebuild means Rebuild is populated and should be enqueued.
	ActionRebuild
)

// Result is the outcome of classifying one Event.
type Result struct {
	Action      Action
	RepoDoneTag string
	Rebuild     *RebuildData
}

// SessionProvider is the subset of session.Cache the classifier depends on.
type SessionProvider interface {
	Get(ctx context.Context, role session.Role, forceLogin bool) (buildsys.Session, error)
}

// Classifier evaluates tag events against the live configuration.
type Classifier struct {
	Config   *config.Store
	Sessions SessionProvider
	DryRun   bool
	Logger   *slog.Logger
}

// New returns a Classifier.
func New(store *config.Store, sessions SessionProvider, dryRun bool, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{Config: store, Sessions: sessions, DryRun: dryRun, Logger: logger}
}

// Classify applies the tag taxonomy (spec.md §4.1), then the eligibility gate,
// then enrichment, reading one self-consistent snapshot of main/comps so the
// whole classification sees a single point-in-time configuration.
func (c *Classifier) Classify(ctx context.Context, ev Event) Result {
	main, comps, _ := c.Config.Snapshot()

	if strings.HasSuffix(ev.Topic, "buildsys.repo.done") {
		return Result{Action: ActionRepoDone, RepoDoneTag: ev.Tag}
	}
	if !strings.HasSuffix(ev.Topic, "buildsys.tag") {
		c.Logger.Debug("ignoring non-tag event", "topic", ev.Topic)
		return Result{Action: ActionIgnore}
	}

	var ns string
	var targetOverride string

	switch {
	case ev.Tag == main.Trigger.RPMs:
		ns = "rpms"
	case ev.Tag == main.Trigger.Modules:
		ns = "modules"
	default:
		upstreamBuildTag := main.UpstreamBuildTag()
		isStackGate := strings.HasPrefix(ev.Tag, upstreamBuildTag) && strings.HasSuffix(ev.Tag, "-stack-gate")
		isSideTag := strings.HasPrefix(ev.Tag, upstreamBuildTag+"-side")
		if !isStackGate && !isSideTag {
			c.Logger.Debug("ignoring tag outside trigger set", "tag", ev.Tag)
			return Result{Action: ActionIgnore}
		}
		ns = "rpms"
		override, err := c.resolveSideTag(ctx, main, ev.Tag)
		if err != nil {
			c.Logger.Error("side-tag provisioning failed, dropping event", "tag", ev.Tag, "error", err)
			return Result{Action: ActionIgnore}
		}
		targetOverride = override
	}

	comp := c.componentKey(ns, ev.Name)

	if main.Control.Strict && !comps.Has(ns, comp) {
		c.Logger.Debug("dropping ineligible component (strict mode)", "ns", ns, "comp", comp)
		return Result{Action: ActionIgnore}
	}
	if main.Control.Exclude.Has(ns, comp) {
		c.Logger.Debug("dropping excluded component", "ns", ns, "comp", comp)
		return Result{Action: ActionIgnore}
	}

	rebuild, err := c.enrich(ctx, ns, comp, ev)
	if err != nil {
		c.Logger.Error("enrichment failed, dropping event", "ns", ns, "comp", comp, "error", err)
		return Result{Action: ActionIgnore}
	}
	rebuild.DownstreamTarget = targetOverride

	return Result{Action: ActionRebuild, Rebuild: rebuild}
}

// componentKey derives the comps-table lookup key for ns: the bare component
// name for rpms, or "name:stream" (defaulting stream to "master") for modules.
func (c *Classifier) componentKey(ns, name string) string {
	if ns != "modules" {
		return name
	}
	mod := scm.SplitModule(name)
	return mod.Name + ":" + mod.Stream
}

// enrich fetches the upstream scmurl for every admitted event and, for modules,
// parses the modulemd to extract per-rpm ref overrides (spec.md §4.1).
func (c *Classifier) enrich(ctx context.Context, ns, comp string, ev Event) (*RebuildData, error) {
	source, err := c.Sessions.Get(ctx, session.RoleSource, false)
	if err != nil {
		return nil, fmt.Errorf("acquire source session: %w", err)
	}

	build, err := source.GetBuildByID(ctx, ev.BuildID, true)
	if err != nil {
		return nil, fmt.Errorf("getBuild(%d, strict=true): %w", ev.BuildID, err)
	}

	rd := &RebuildData{
		NS:      ns,
		Comp:    comp,
		Version: ev.Version,
		Release: ev.Release,
		SCMURL:  build.Source,
	}

	if ns != "modules" {
		return rd, nil
	}

	nvr := fmt.Sprintf("%s-%s-%s", ev.Name, ev.Version, ev.Release)
	modBuild, err := source.GetBuild(ctx, nvr)
	if err != nil {
		return nil, fmt.Errorf("getBuild(%s) for module enrichment: %w", nvr, err)
	}
	if modBuild.Module == nil || modBuild.Module.ModulemdStr == "" {
		return nil, fmt.Errorf("build %s has no module metadata", nvr)
	}
	overrides, err := ParseRefOverrides(modBuild.Module.ModulemdStr)
	if err != nil {
		return nil, fmt.Errorf("parse modulemd for %s: %w", nvr, err)
	}
	rd.RefOverrides = overrides
	return rd, nil
}
