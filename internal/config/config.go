// Package config defines DistroBuildSync's configuration shape (spec.md §3): the
// global `main` policy record and the per-component `comps` routing table, parsed
// from a `distrobaker.yaml` checked out of a live-reloadable git repository.
//
// Structs here are the typed replacement for the original Python implementation's
// untyped map walk (see original_source/distrobuildsync/config.py): every required
// key is modeled explicitly and Validate reports the first missing path as an error
// in the same "<path> missing" shape the original logged.
package config

import "fmt"

// CacheRef configures the CGI cache for one side (source or destination).
type CacheRef struct {
	URL  string `yaml:"url"`
	CGI  string `yaml:"cgi"`
	Path string `yaml:"path"`
}

// SideConfig configures one side (source or destination) of the sync.
type SideConfig struct {
	SCM     string         `yaml:"scm"`
	Cache   CacheRef       `yaml:"cache"`
	Profile string         `yaml:"profile"`
	MBS     map[string]any `yaml:"mbs"`
}

// TriggerConfig names the two upstream build-system tags that delimit in-scope
// tagging events.
type TriggerConfig struct {
	RPMs    string `yaml:"rpms"`
	Modules string `yaml:"modules"`
}

// BuildConfig configures where and how downstream builds are submitted.
type BuildConfig struct {
	Prefix   string `yaml:"prefix"`
	Target   string `yaml:"target"`
	Platform string `yaml:"platform"`
	Scratch  bool   `yaml:"scratch"`
}

// GitRewriteConfig carries metadata used by the external git-sync collaborator when
// rewriting downstream git refs.
type GitRewriteConfig struct {
	Author  string `yaml:"author"`
	Email   string `yaml:"email"`
	Message string `yaml:"message"`
}

// ExcludeConfig lists components excluded from sync regardless of routing
// configuration (spec.md §3: "exclusion wins over inclusion").
type ExcludeConfig struct {
	RPMs    map[string]struct{}
	Modules map[string]struct{}
}

// Has reports whether comp is excluded from namespace ns.
func (e ExcludeConfig) Has(ns, comp string) bool {
	var set map[string]struct{}
	switch ns {
	case "rpms":
		set = e.RPMs
	case "modules":
		set = e.Modules
	}
	_, ok := set[comp]
	return ok
}

// AutoPackageList configures fetching the component list from the Content
// Resolver instead of the YAML `components` block. Two shapes are accepted per
// spec.md §9 open questions: {content_resolver, view} and {view}. There is no
// default ContentResolver: with {view} alone, the Reloader's autopackagelist
// fetch fails and that load is rejected.
type AutoPackageList struct {
	ContentResolver string `yaml:"content_resolver"`
	View            string `yaml:"view"`
}

// ControlConfig governs sync scope and strictness.
type ControlConfig struct {
	Build           bool
	Merge           bool
	Strict          bool
	AutoPackageList *AutoPackageList
	Exclude         ExcludeConfig
}

// DefaultsSide is a pair of %(component)s/%(stream)s templates for source and
// destination.
type DefaultsSide struct {
	Source      string
	Destination string
}

// Defaults holds the templates used to synthesize per-component routes when no
// explicit override is given.
type Defaults struct {
	Cache   DefaultsSide
	RPMs    DefaultsSide
	Modules DefaultsSide
}

// Main is the global policy record (spec.md §3 "main").
type Main struct {
	Source      SideConfig
	Destination SideConfig
	Trigger     TriggerConfig
	Build       BuildConfig
	Git         GitRewriteConfig
	Control     ControlConfig
	Defaults    Defaults
}

// ComponentRoute is the per-component routing record synthesized from Defaults and
// overridden field-by-field by explicit YAML entries.
type ComponentRoute struct {
	Source      string
	Destination string
	Cache       DefaultsSide
}

// Comps is the per-namespace routing table (spec.md §3 "comps").
type Comps struct {
	RPMs    map[string]ComponentRoute
	Modules map[string]ComponentRoute
}

// NewComps returns an empty, ready-to-populate Comps.
func NewComps() Comps {
	return Comps{RPMs: map[string]ComponentRoute{}, Modules: map[string]ComponentRoute{}}
}

// Route looks up comp in namespace ns.
func (c Comps) Route(ns, comp string) (ComponentRoute, bool) {
	var table map[string]ComponentRoute
	switch ns {
	case "rpms":
		table = c.RPMs
	case "modules":
		table = c.Modules
	}
	r, ok := table[comp]
	return r, ok
}

// Has reports whether comp is present in namespace ns.
func (c Comps) Has(ns, comp string) bool {
	_, ok := c.Route(ns, comp)
	return ok
}

// Validate checks that every mandatory key in Main is populated, returning a
// "<path> missing"-style error for the first missing field found, matching the
// granularity spec.md §4.4 step 4 requires.
func (m Main) Validate() error {
	type check struct {
		path string
		ok   bool
	}
	checks := []check{
		{"source.scm", m.Source.SCM != ""},
		{"source.cache.url", m.Source.Cache.URL != ""},
		{"source.cache.cgi", m.Source.Cache.CGI != ""},
		{"source.cache.path", m.Source.Cache.Path != ""},
		{"source.profile", m.Source.Profile != ""},
		{"destination.scm", m.Destination.SCM != ""},
		{"destination.cache.url", m.Destination.Cache.URL != ""},
		{"destination.cache.cgi", m.Destination.Cache.CGI != ""},
		{"destination.cache.path", m.Destination.Cache.Path != ""},
		{"destination.profile", m.Destination.Profile != ""},
		{"trigger.rpms", m.Trigger.RPMs != ""},
		{"trigger.modules", m.Trigger.Modules != ""},
		{"build.prefix", m.Build.Prefix != ""},
		{"build.target", m.Build.Target != ""},
		{"build.platform", m.Build.Platform != ""},
		{"git.author", m.Git.Author != ""},
		{"git.email", m.Git.Email != ""},
		{"git.message", m.Git.Message != ""},
		{"defaults.cache.source", m.Defaults.Cache.Source != ""},
		{"defaults.cache.destination", m.Defaults.Cache.Destination != ""},
		{"defaults.rpms.source", m.Defaults.RPMs.Source != ""},
		{"defaults.rpms.destination", m.Defaults.RPMs.Destination != ""},
		{"defaults.modules.source", m.Defaults.Modules.Source != ""},
		{"defaults.modules.destination", m.Defaults.Modules.Destination != ""},
	}
	for _, c := range checks {
		if !c.ok {
			return fmt.Errorf("%s missing", c.path)
		}
	}
	if m.Control.AutoPackageList != nil && m.Control.AutoPackageList.View == "" {
		return fmt.Errorf("control.autopackagelist.view missing")
	}
	return nil
}

// UpstreamBuildTag derives the build tag from the rpms trigger tag by replacing a
// trailing "-gate" with "-build" (spec.md §4.1).
func (m Main) UpstreamBuildTag() string {
	const gate, build = "-gate", "-build"
	t := m.Trigger.RPMs
	if len(t) >= len(gate) && t[len(t)-len(gate):] == gate {
		return t[:len(t)-len(gate)] + build
	}
	return t
}
