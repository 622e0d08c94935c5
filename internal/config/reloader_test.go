package config

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sgallagher/distrobuildsync/internal/retry"
)

func TestApplyAutoPackageListAddsNewComponentsOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("bash\nglibc\nkernel\n"))
	}))
	defer srv.Close()

	main := validMain()
	main.Control.Exclude.RPMs = map[string]struct{}{"kernel": {}}
	main.Source.Profile = "fedora"

	comps := NewComps()
	comps.RPMs["bash"] = ComponentRoute{Source: "explicit/bash"}

	r := &Reloader{Store: NewStore(main, comps, "x"), Retry: retry.DefaultConfig().WithAttempts(1)}
	apl := &AutoPackageList{ContentResolver: srv.URL, View: "eln"}

	if err := r.applyAutoPackageList(t.Context(), main, &comps, apl); err != nil {
		t.Fatalf("applyAutoPackageList: %v", err)
	}

	if comps.RPMs["bash"].Source != "explicit/bash" {
		t.Error("existing explicit override must not be clobbered")
	}
	if _, ok := comps.RPMs["glibc"]; !ok {
		t.Error("expected glibc to be added from autopackagelist")
	}
	if _, ok := comps.RPMs["kernel"]; ok {
		t.Error("excluded component must not be added")
	}
}

func TestApplyAutoPackageListRequiresContentResolverURL(t *testing.T) {
	main := validMain()
	comps := NewComps()
	r := &Reloader{Store: NewStore(main, comps, "x"), Retry: retry.DefaultConfig().WithAttempts(1)}
	err := r.applyAutoPackageList(t.Context(), main, &comps, &AutoPackageList{View: "eln"})
	if err == nil {
		t.Error("expected error when content_resolver is unset")
	}
}
