package main

import (
	"context"
	"fmt"

	"github.com/sgallagher/distrobuildsync/internal/buildsys"
)

// unconfiguredBuildSystemFactory is the session.Factory used until a concrete
// Koji-shaped client is wired in. The build-system client library is an
// external collaborator out of scope for this daemon (spec.md §1): every
// call surfaces a clear error rather than silently returning zero values, so
// a deployment that forgets to supply a real client fails loudly the first
// time a session is requested rather than appearing to work.
func unconfiguredBuildSystemFactory(_ context.Context, profile string) (buildsys.Session, error) {
	return nil, fmt.Errorf("no build-system client configured for profile %q: wire a concrete buildsys.Session implementation into cmd/distrobuildsync before deploying", profile)
}
