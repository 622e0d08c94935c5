package daemon

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sgallagher/distrobuildsync/internal/buildsys"
)

func TestRunOneshotEnumeratesLatestTaggedBuilds(t *testing.T) {
	source := buildsys.NewFakeSession()
	source.TaggedRPMs["f42-gate"] = []buildsys.TaggedBuild{
		{BuildID: 1, Name: "bash", Version: "5.2", Release: "1.fc42"},
		{BuildID: 2, Name: "excluded-pkg", Version: "1.0", Release: "1.fc42"},
	}
	source.BuildsByID[1] = &buildsys.BuildInfo{NVR: "bash-5.2-1.fc42", Source: "git+https://src.example.com/rpms/bash.git#abc"}
	source.BuildsByID[2] = &buildsys.BuildInfo{NVR: "excluded-pkg-1.0-1.fc42", Source: "git+https://src.example.com/rpms/excluded-pkg.git#def"}

	destination := buildsys.NewFakeSession()
	destination.Targets["f42-candidate"] = &buildsys.TargetInfo{Name: "f42-candidate", BuildTagName: "f42-build"}

	d, _ := newTestDaemon(t, source, destination)
	main := d.Store.Main()
	main.Control.Exclude.RPMs = map[string]struct{}{"excluded-pkg": {}}
	d.Store.Set(main, d.Store.Comps(), "ref1")

	require.NoError(t, d.RunOneshot(context.Background(), nil))

	builds := destination.CallsOfKind(buildsys.CallBuild)
	require.Len(t, builds, 1, "expected exactly one non-excluded component submitted")
	require.Contains(t, builds[0].SCMURL, "rpms/bash")

	tagCalls := destination.CallsOfKind(buildsys.CallTagBuild)
	require.Empty(t, tagCalls, "oneshot must not pre-tag")
}

func TestRunOneshotUsesExplicitSelectors(t *testing.T) {
	source := buildsys.NewFakeSession()
	source.TaggedRPMs["f42-gate"] = []buildsys.TaggedBuild{
		{BuildID: 1, Name: "bash", Version: "5.2", Release: "1.fc42"},
	}
	source.BuildsByID[1] = &buildsys.BuildInfo{NVR: "bash-5.2-1.fc42", Source: "git+https://src.example.com/rpms/bash.git#abc"}

	destination := buildsys.NewFakeSession()
	destination.Targets["f42-candidate"] = &buildsys.TargetInfo{Name: "f42-candidate", BuildTagName: "f42-build"}

	d, _ := newTestDaemon(t, source, destination)

	require.NoError(t, d.RunOneshot(context.Background(), []string{"rpms/bash"}))

	builds := destination.CallsOfKind(buildsys.CallBuild)
	require.Len(t, builds, 1)
}

func TestRunOneshotRejectsMalformedSelector(t *testing.T) {
	source := buildsys.NewFakeSession()
	destination := buildsys.NewFakeSession()
	d, _ := newTestDaemon(t, source, destination)

	err := d.RunOneshot(context.Background(), []string{"not-a-selector"})
	require.Error(t, err)
}
