package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sgallagher/distrobuildsync/internal/contentresolver"
	"github.com/sgallagher/distrobuildsync/internal/gitscm"
	"github.com/sgallagher/distrobuildsync/internal/metrics"
	"github.com/sgallagher/distrobuildsync/internal/retry"
)

// defaultArches and defaultSources are the arch/source combinations queried
// against the Content Resolver when control.autopackagelist is set.
var (
	defaultArches  = []string{"aarch64", "armv7hl", "ppc64le", "s390x", "x86_64"}
	defaultSources = []string{"source", "buildroot-source"}
)

// Reloader periodically checks the config repository for a moved ref and, on
// change (or on every tick when autopackagelist is configured, since the
// resolver's own content can change independently of the config repo),
// re-parses distrobaker.yaml and publishes a new Store snapshot.
type Reloader struct {
	RepoURL    string
	Ref        string
	ConfigPath string // path to the YAML file within the repo, e.g. "distrobaker.yaml"
	ScratchDir string
	Interval   time.Duration
	Retry      retry.Config
	Store      *Store
	Metrics    *metrics.Metrics
	Logger     *slog.Logger

	lastHash string
}

// NewReloader returns a Reloader that polls repoURL@ref every interval. m may
// be nil (tests construct Reloader{} literals directly without metrics).
func NewReloader(repoURL, ref, configPath, scratchDir string, interval time.Duration, retryCfg retry.Config, store *Store, m *metrics.Metrics, logger *slog.Logger) *Reloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reloader{
		RepoURL:    repoURL,
		Ref:        ref,
		ConfigPath: configPath,
		ScratchDir: scratchDir,
		Interval:   interval,
		Retry:      retryCfg,
		Store:      store,
		Metrics:    m,
		Logger:     logger,
	}
}

// LoadInitial performs one synchronous load without requiring r.Store to
// already exist, for use before the daemon has a Store to publish into.
// Callers should construct a Store from the result, assign it to r.Store, and
// then call Run to continue polling. A failure here is the daemon's only
// fatal-at-startup condition (spec.md §7: "only a failure to load the initial
// configuration is fatal").
func (r *Reloader) LoadInitial(ctx context.Context) (Main, Comps, string, error) {
	main, comps, hash, err := r.load(ctx)
	if err != nil {
		return Main{}, Comps{}, "", err
	}
	r.lastHash = hash
	return main, comps, hash, nil
}

// Run blocks, ticking every r.Interval until ctx is done. If r.Store has
// already been populated via LoadInitial, the first tick is skipped; r.Store
// must be non-nil in that case.
func (r *Reloader) Run(ctx context.Context) error {
	if r.lastHash == "" {
		if err := r.tick(ctx); err != nil {
			return fmt.Errorf("initial config load: %w", err)
		}
	}

	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.tick(ctx); err != nil {
				r.Logger.Error("config reload failed, keeping previous configuration", "error", err)
				if r.Metrics != nil {
					r.Metrics.ConfigReloadFailures.Inc()
				}
			}
		}
	}
}

// Reload forces an immediate out-of-cycle check, the same work a ticker fire
// would do. Used by the local-file fast path (WatchLocalFile) so an fsnotify
// event doesn't have to wait for the next polling interval.
func (r *Reloader) Reload(ctx context.Context) error {
	return r.tick(ctx)
}

func (r *Reloader) tick(ctx context.Context) error {
	hasAutoPackageList := r.Store != nil && r.Store.Main().Control.AutoPackageList != nil

	main, comps, hash, err := r.loadIfChanged(ctx, hasAutoPackageList)
	if err != nil {
		return err
	}
	if hash == "" {
		// Unchanged; loadIfChanged already logged.
		return nil
	}

	r.Store.Set(main, comps, hash)
	r.lastHash = hash
	r.Logger.Info("configuration reloaded", "ref", r.Ref, "hash", hash,
		"rpms", len(comps.RPMs), "modules", len(comps.Modules))
	if r.Metrics != nil {
		r.Metrics.ConfigReloads.Inc()
	}
	return nil
}

// loadIfChanged checks the remote ref and, if it matches r.lastHash and
// forceReload is false, returns a zero hash to signal "nothing to do" without
// touching the filesystem.
func (r *Reloader) loadIfChanged(ctx context.Context, forceReload bool) (Main, Comps, string, error) {
	hash, err := r.listRemoteHeads(ctx)
	if err != nil {
		return Main{}, Comps{}, "", fmt.Errorf("check config ref: %w", err)
	}
	if hash == r.lastHash && r.lastHash != "" && !forceReload {
		r.Logger.Debug("config ref unchanged, skipping reload", "ref", r.Ref, "hash", hash)
		return Main{}, Comps{}, "", nil
	}

	main, comps, err := r.loadAt(ctx)
	if err != nil {
		return Main{}, Comps{}, "", err
	}
	return main, comps, hash, nil
}

// load resolves the current ref and performs a fresh clone/parse, for
// LoadInitial where there is no previous hash to compare against.
func (r *Reloader) load(ctx context.Context) (Main, Comps, string, error) {
	hash, err := r.listRemoteHeads(ctx)
	if err != nil {
		return Main{}, Comps{}, "", fmt.Errorf("check config ref: %w", err)
	}
	main, comps, err := r.loadAt(ctx)
	if err != nil {
		return Main{}, Comps{}, "", err
	}
	return main, comps, hash, nil
}

// loadAt clones the config repo, parses distrobaker.yaml, and applies any
// configured autopackagelist, without consulting or publishing to r.Store.
func (r *Reloader) loadAt(ctx context.Context) (Main, Comps, error) {
	dir, err := r.cloneConfigRepo(ctx)
	if err != nil {
		return Main{}, Comps{}, fmt.Errorf("clone config repo: %w", err)
	}
	defer os.RemoveAll(dir)

	main, comps, err := ParseFile(filepath.Join(dir, r.ConfigPath))
	if err != nil {
		return Main{}, Comps{}, fmt.Errorf("parse config: %w", err)
	}

	if apl := main.Control.AutoPackageList; apl != nil {
		if err := r.applyAutoPackageList(ctx, main, &comps, apl); err != nil {
			return Main{}, Comps{}, fmt.Errorf("fetch autopackagelist: %w", err)
		}
	}

	return main, comps, nil
}

// listRemoteHeads resolves the current commit hash of r.Ref, retrying
// transient failures up to r.Retry.MaxAttempts the same way fetchOne retries
// Content Resolver requests (spec.md §4.4 step 3: "with retry attempts,
// default 3").
func (r *Reloader) listRemoteHeads(ctx context.Context) (string, error) {
	var hash string
	err := retry.Do(ctx, r.Retry, func() error {
		h, err := gitscm.ListRemoteHeads(ctx, r.RepoURL, r.Ref)
		if err != nil {
			return err
		}
		hash = h
		return nil
	})
	return hash, err
}

// cloneConfigRepo shallow-clones the config repo at r.Ref, retrying transient
// failures up to r.Retry.MaxAttempts.
func (r *Reloader) cloneConfigRepo(ctx context.Context) (string, error) {
	var dir string
	err := retry.Do(ctx, r.Retry, func() error {
		d, err := gitscm.Clone(ctx, r.RepoURL, r.Ref, r.ScratchDir)
		if err != nil {
			return err
		}
		dir = d
		return nil
	})
	return dir, err
}

// applyAutoPackageList fills in comps.RPMs for every component the Content
// Resolver view lists that isn't already present from an explicit override,
// using the same default-template synthesis Parse applies to explicit entries.
func (r *Reloader) applyAutoPackageList(ctx context.Context, main Main, comps *Comps, apl *AutoPackageList) error {
	base := apl.ContentResolver
	if base == "" {
		return fmt.Errorf("control.autopackagelist.content_resolver not set and no default configured")
	}
	client := contentresolver.New(base, r.Retry)
	names, err := client.Fetch(ctx, apl.View, defaultSources, defaultArches)
	if err != nil {
		return err
	}

	added := 0
	for name := range names {
		if main.Control.Exclude.Has("rpms", name) {
			continue
		}
		if _, exists := comps.RPMs[name]; exists {
			continue
		}
		comps.RPMs[name] = buildRoute(name, "", main.Defaults.RPMs, main.Defaults.Cache, nil)
		added++
	}
	r.Logger.Debug("merged autopackagelist components", "view", apl.View, "added", added, "excluded_total", len(main.Control.Exclude.RPMs))
	return nil
}
