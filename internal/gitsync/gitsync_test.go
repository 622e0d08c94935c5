package gitsync

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSyncPostsToNamespaceComponentPath(t *testing.T) {
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	if err := c.Sync(t.Context(), "rpms", "bash"); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("method = %q, want POST", gotMethod)
	}
	if gotPath != "/rpms/bash" {
		t.Errorf("path = %q, want /rpms/bash", gotPath)
	}
}

func TestSyncSwallowsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	if err := c.Sync(t.Context(), "rpms", "bash"); err != nil {
		t.Errorf("expected nil error on non-2xx, got %v", err)
	}
}

func TestSyncRejectsEmptyEndpoint(t *testing.T) {
	c := New("", nil)
	if err := c.Sync(t.Context(), "rpms", "bash"); err == nil {
		t.Error("expected error for empty endpoint")
	}
}
