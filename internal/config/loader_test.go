package config

import "testing"

const sampleYAML = `
configuration:
  source:
    scm: https://src.example.com
    cache: {url: u, cgi: c, path: p}
    profile: src-profile
  destination:
    scm: https://dst.example.com
    cache: {url: u, cgi: c, path: p}
    profile: dst-profile
  trigger:
    rpms: f42-gate
    modules: f42-modules-gate
  build:
    prefix: f42-rebuild
    target: f42-candidate
    platform: f42
  git:
    author: Bot
    email: bot@example.com
    message: "sync"
  control:
    build: true
    merge: true
    strict: true
    exclude:
      rpms: [kernel]
  defaults:
    cache:
      source: "%(component)s"
      destination: "%(component)s"
    rpms:
      source: "rpms/%(component)s"
      destination: "rpms/%(component)s"
    modules:
      source: "modules/%(component)s"
      destination: "modules/%(component)s"
components:
  rpms:
    bash:
    glibc:
      destination: "custom/glibc"
  modules:
    "nodejs:18":
`

func TestParseValidDocument(t *testing.T) {
	main, comps, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if main.Trigger.RPMs != "f42-gate" {
		t.Errorf("trigger.rpms = %q", main.Trigger.RPMs)
	}
	if !main.Control.Exclude.Has("rpms", "kernel") {
		t.Error("expected kernel excluded")
	}

	bash, ok := comps.Route("rpms", "bash")
	if !ok || bash.Source != "rpms/bash" {
		t.Errorf("bash route = %+v, %v", bash, ok)
	}

	glibc, ok := comps.Route("rpms", "glibc")
	if !ok || glibc.Destination != "custom/glibc" || glibc.Source != "rpms/glibc" {
		t.Errorf("glibc route = %+v, %v", glibc, ok)
	}

	mod, ok := comps.Route("modules", "nodejs:18")
	if !ok || mod.Source != "modules/nodejs" {
		t.Errorf("nodejs:18 route = %+v, %v", mod, ok)
	}
}

func TestParseMissingRequiredKeyFails(t *testing.T) {
	broken := sampleYAML[:0]
	_, _, err := Parse([]byte(broken))
	if err == nil {
		t.Fatal("expected validation error for empty document")
	}
}

func TestInterpolateSubstitutesBothPlaceholders(t *testing.T) {
	got := interpolate("%(component)s-%(stream)s", "nodejs", "18")
	if want := "nodejs-18"; got != want {
		t.Errorf("interpolate() = %q, want %q", got, want)
	}
}
