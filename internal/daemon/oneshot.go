package daemon

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sgallagher/distrobuildsync/internal/buildsys"
	"github.com/sgallagher/distrobuildsync/internal/classifier"
)

// selectorPattern matches the component selector format from spec.md §6.
var selectorPattern = regexp.MustCompile(`^(rpms|modules)/[A-Za-z0-9:._+-]+$`)

// RunOneshot implements Oneshot Mode (spec.md §4.8): either rebuild an
// explicit set of "ns/comp" selectors, or enumerate every latest-tagged build
// under main.trigger.rpms, filter and enrich each, then submit the resulting
// batch directly with no coalescing, pre-tag, or buildroot wait.
func (d *Daemon) RunOneshot(ctx context.Context, selectors []string) error {
	main, comps, _ := d.Store.Snapshot()

	source, err := d.SourceSession(ctx)
	if err != nil {
		return fmt.Errorf("acquire source session: %w", err)
	}

	type candidate struct {
		ns, comp string
	}
	var candidates []candidate

	if len(selectors) > 0 {
		for _, sel := range selectors {
			if !selectorPattern.MatchString(sel) {
				return fmt.Errorf("invalid component selector %q", sel)
			}
			ns, comp, _ := strings.Cut(sel, "/")
			candidates = append(candidates, candidate{ns: ns, comp: comp})
		}
	} else {
		tagged, err := source.ListTagged(ctx, main.Trigger.RPMs, "", true)
		if err != nil {
			return fmt.Errorf("enumerate latest-tagged builds under %s: %w", main.Trigger.RPMs, err)
		}
		for _, tb := range tagged {
			candidates = append(candidates, candidate{ns: "rpms", comp: tb.Name})
		}
	}

	var builds []classifier.RebuildData
	for _, cand := range candidates {
		if main.Control.Strict && !comps.Has(cand.ns, cand.comp) {
			d.Logger.Debug("oneshot: dropping ineligible component (strict mode)", "ns", cand.ns, "comp", cand.comp)
			continue
		}
		if main.Control.Exclude.Has(cand.ns, cand.comp) {
			d.Logger.Debug("oneshot: dropping excluded component", "ns", cand.ns, "comp", cand.comp)
			continue
		}

		tag := main.Trigger.RPMs
		if cand.ns == "modules" {
			tag = main.Trigger.Modules
		}
		tagged, err := source.ListTagged(ctx, tag, cand.comp, true)
		if err != nil || len(tagged) == 0 {
			d.Logger.Error("oneshot: no tagged build found for component", "ns", cand.ns, "comp", cand.comp, "error", err)
			continue
		}
		tb := tagged[0]

		rd, err := d.enrichOneshot(ctx, source, cand.ns, cand.comp, tb)
		if err != nil {
			d.Logger.Error("oneshot: enrichment failed, dropping component", "ns", cand.ns, "comp", cand.comp, "error", err)
			continue
		}
		builds = append(builds, *rd)
	}

	if len(builds) == 0 {
		d.Logger.Info("oneshot: no eligible components to build")
		return nil
	}

	return d.Orchestrator.BuildOnly(ctx, "", builds)
}

func (d *Daemon) enrichOneshot(ctx context.Context, source buildsys.Session, ns, comp string, tb buildsys.TaggedBuild) (*classifier.RebuildData, error) {
	build, err := source.GetBuildByID(ctx, tb.BuildID, true)
	if err != nil {
		return nil, fmt.Errorf("getBuild(%d, strict=true): %w", tb.BuildID, err)
	}

	rd := &classifier.RebuildData{
		NS:      ns,
		Comp:    comp,
		Version: tb.Version,
		Release: tb.Release,
		SCMURL:  build.Source,
	}

	if ns != "modules" {
		return rd, nil
	}

	nvr := fmt.Sprintf("%s-%s-%s", comp, tb.Version, tb.Release)
	modBuild, err := source.GetBuild(ctx, nvr)
	if err != nil {
		return nil, fmt.Errorf("getBuild(%s) for module enrichment: %w", nvr, err)
	}
	if modBuild.Module == nil || modBuild.Module.ModulemdStr == "" {
		return nil, fmt.Errorf("build %s has no module metadata", nvr)
	}
	overrides, err := classifier.ParseRefOverrides(modBuild.Module.ModulemdStr)
	if err != nil {
		return nil, fmt.Errorf("parse modulemd for %s: %w", nvr, err)
	}
	rd.RefOverrides = overrides
	return rd, nil
}
