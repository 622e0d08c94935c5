// Package scm splits the SCMURL and module-name string forms used throughout
// DistroBuildSync to identify builds and their upstream sources.
package scm

import "strings"

// URL is the decomposed form of a "link[#ref]" SCMURL. Ns and Comp are best-effort:
// they come from the last two slash-delimited segments of Link and are only
// meaningful when Link follows the dist-git "<host>/<ns>/<comp>" layout.
type URL struct {
	Link string
	Ref  string
	Ns   string
	Comp string
}

// Split parses a "link#ref" SCMURL. The ref fragment is optional; when absent, Ref
// is the empty string. An empty input yields an all-empty URL rather than an error.
func Split(scmurl string) URL {
	if scmurl == "" {
		return URL{}
	}

	link, ref, _ := strings.Cut(scmurl, "#")

	var ns, comp string
	segs := strings.Split(link, "/")
	if n := len(segs); n >= 1 {
		comp = segs[n-1]
	}
	if n := len(segs); n >= 2 {
		ns = segs[n-2]
	}

	return URL{Link: link, Ref: ref, Ns: ns, Comp: comp}
}

// Module is a parsed "name[:stream]" module component identifier.
type Module struct {
	Name   string
	Stream string
}

// DefaultStream is substituted when a module component carries no explicit stream.
const DefaultStream = "master"

// SplitModule parses a module component name in "name[:stream]" form. Any fields
// beyond the second colon-delimited segment are ignored. A missing or empty stream
// defaults to DefaultStream.
func SplitModule(comp string) Module {
	parts := strings.SplitN(comp, ":", 3)
	m := Module{Name: parts[0], Stream: DefaultStream}
	if len(parts) > 1 && parts[1] != "" {
		m.Stream = parts[1]
	}
	return m
}
