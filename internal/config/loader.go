package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// rawDoc mirrors the on-disk distrobaker.yaml layout for unmarshalling. Fields
// are kept as generic as YAML allows; Validate (on the converted Main) is what
// actually enforces required keys, the same division of labor the original
// Python loader used between "parse" and "validate".
type rawDoc struct {
	Configuration rawConfiguration         `yaml:"configuration"`
	Components    rawComponents            `yaml:"components"`
}

type rawConfiguration struct {
	Source      rawSide     `yaml:"source"`
	Destination rawSide     `yaml:"destination"`
	Trigger     TriggerConfig `yaml:"trigger"`
	Build       BuildConfig `yaml:"build"`
	Git         GitRewriteConfig `yaml:"git"`
	Control     rawControl  `yaml:"control"`
	Defaults    rawDefaults `yaml:"defaults"`
}

type rawSide struct {
	SCM     string         `yaml:"scm"`
	Cache   CacheRef       `yaml:"cache"`
	Profile string         `yaml:"profile"`
	MBS     map[string]any `yaml:"mbs"`
}

type rawControl struct {
	Build           bool             `yaml:"build"`
	Merge           bool             `yaml:"merge"`
	Strict          bool             `yaml:"strict"`
	AutoPackageList *AutoPackageList `yaml:"autopackagelist"`
	Exclude         rawExclude       `yaml:"exclude"`
}

type rawExclude struct {
	RPMs    []string `yaml:"rpms"`
	Modules []string `yaml:"modules"`
}

type rawDefaultsSide struct {
	Source      string `yaml:"source"`
	Destination string `yaml:"destination"`
}

type rawDefaults struct {
	Cache   rawDefaultsSide `yaml:"cache"`
	RPMs    rawDefaultsSide `yaml:"rpms"`
	Modules rawDefaultsSide `yaml:"modules"`
}

type rawComponents struct {
	RPMs    map[string]*rawComponentOverride `yaml:"rpms"`
	Modules map[string]*rawComponentOverride `yaml:"modules"`
}

// rawComponentOverride is nil-able in YAML: `name:` with no value means "use
// the synthesized defaults verbatim".
type rawComponentOverride struct {
	Source      string          `yaml:"source"`
	Destination string          `yaml:"destination"`
	Cache       rawDefaultsSide `yaml:"cache"`
}

// Parse decodes a distrobaker.yaml document into a validated Main and its
// synthesized Comps routing table.
func Parse(data []byte) (Main, Comps, error) {
	var doc rawDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Main{}, Comps{}, fmt.Errorf("parse config YAML: %w", err)
	}

	main := Main{
		Source:      SideConfig(doc.Configuration.Source),
		Destination: SideConfig(doc.Configuration.Destination),
		Trigger:     doc.Configuration.Trigger,
		Build:       doc.Configuration.Build,
		Git:         doc.Configuration.Git,
		Control: ControlConfig{
			Build:           doc.Configuration.Control.Build,
			Merge:           doc.Configuration.Control.Merge,
			Strict:          doc.Configuration.Control.Strict,
			AutoPackageList: doc.Configuration.Control.AutoPackageList,
			Exclude: ExcludeConfig{
				RPMs:    toSet(doc.Configuration.Control.Exclude.RPMs),
				Modules: toSet(doc.Configuration.Control.Exclude.Modules),
			},
		},
		Defaults: Defaults{
			Cache:   DefaultsSide(doc.Configuration.Defaults.Cache),
			RPMs:    DefaultsSide(doc.Configuration.Defaults.RPMs),
			Modules: DefaultsSide(doc.Configuration.Defaults.Modules),
		},
	}

	if err := main.Validate(); err != nil {
		return Main{}, Comps{}, err
	}

	comps := synthesizeComps(main, doc.Components)
	return main, comps, nil
}

// synthesizeComps builds the per-component routing table from defaults,
// overridden field-by-field by any explicit `components` entries (spec.md §3).
func synthesizeComps(main Main, raw rawComponents) Comps {
	comps := NewComps()
	for name, override := range raw.RPMs {
		comps.RPMs[name] = buildRoute(name, "", main.Defaults.RPMs, main.Defaults.Cache, override)
	}
	for name, override := range raw.Modules {
		modName, stream, _ := strings.Cut(name, ":")
		if stream == "" {
			stream = "master"
		}
		comps.Modules[name] = buildRoute(modName, stream, main.Defaults.Modules, main.Defaults.Cache, override)
	}
	return comps
}

func buildRoute(name, stream string, nameDefaults, cacheDefaults DefaultsSide, override *rawComponentOverride) ComponentRoute {
	r := ComponentRoute{
		Source:      interpolate(nameDefaults.Source, name, stream),
		Destination: interpolate(nameDefaults.Destination, name, stream),
		Cache: DefaultsSide{
			Source:      interpolate(cacheDefaults.Source, name, stream),
			Destination: interpolate(cacheDefaults.Destination, name, stream),
		},
	}
	if override == nil {
		return r
	}
	if override.Source != "" {
		r.Source = override.Source
	}
	if override.Destination != "" {
		r.Destination = override.Destination
	}
	if override.Cache.Source != "" {
		r.Cache.Source = override.Cache.Source
	}
	if override.Cache.Destination != "" {
		r.Cache.Destination = override.Cache.Destination
	}
	return r
}

// interpolate substitutes the %(component)s and %(stream)s placeholders the
// YAML defaults templates use (ported verbatim from the original's Python
// %-style formatting so existing distrobaker.yaml files keep working).
func interpolate(template, component, stream string) string {
	out := strings.ReplaceAll(template, "%(component)s", component)
	out = strings.ReplaceAll(out, "%(stream)s", stream)
	return out
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, i := range items {
		set[i] = struct{}{}
	}
	return set
}

// ParseFile reads and parses a distrobaker.yaml at path.
func ParseFile(path string) (Main, Comps, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Main{}, Comps{}, fmt.Errorf("read config file %s: %w", path, err)
	}
	return Parse(data)
}
