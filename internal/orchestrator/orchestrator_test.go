package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sgallagher/distrobuildsync/internal/awaitedrepo"
	"github.com/sgallagher/distrobuildsync/internal/buildsys"
	"github.com/sgallagher/distrobuildsync/internal/classifier"
	"github.com/sgallagher/distrobuildsync/internal/config"
	"github.com/sgallagher/distrobuildsync/internal/session"
)

type fixedSessions struct{ destination *buildsys.FakeSession }

func (f fixedSessions) Get(_ context.Context, role session.Role, _ bool) (buildsys.Session, error) {
	return f.destination, nil
}

type fakeGitSync struct {
	mu    sync.Mutex
	calls []string
}

func (g *fakeGitSync) Sync(_ context.Context, ns, comp string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, ns+"/"+comp)
	return nil
}

func (g *fakeGitSync) snapshot() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.calls))
	copy(out, g.calls)
	return out
}

func baseMain() config.Main {
	return config.Main{
		Source:      config.SideConfig{Profile: "fedora"},
		Destination: config.SideConfig{Profile: "fedora"},
		Build:       config.BuildConfig{Prefix: "git+https://pkgs.example.com", Target: "f42-candidate"},
	}
}

func TestRunSimpleTagWaitBuild(t *testing.T) {
	destination := buildsys.NewFakeSession()
	destination.Targets["f42-candidate"] = &buildsys.TargetInfo{Name: "f42-candidate", BuildTagName: "f42-build"}

	store := config.NewStore(baseMain(), config.NewComps(), "ref1")
	registry := awaitedrepo.New()
	gs := &fakeGitSync{}
	o := New(store, fixedSessions{destination}, registry, gs, false, nil, nil)

	done := make(chan struct{})
	go func() {
		o.Run(context.Background(), "f42-candidate", []classifier.RebuildData{
			{NS: "rpms", Comp: "bash", Version: "5.2", Release: "1.fc42", SCMURL: "git+https://src.example.com/rpms/bash.git#abc"},
		})
		close(done)
	}()

	// Give the orchestrator time to register its wait handle, then fulfil it
	// the way a buildsys.repo.done event would.
	time.Sleep(20 * time.Millisecond)
	registry.Fulfill("f42-build")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not complete")
	}

	tagCalls := destination.CallsOfKind(buildsys.CallTagBuild)
	if len(tagCalls) != 1 || tagCalls[0].NVR != "bash-5.2-1.fc42" {
		t.Errorf("tagBuild calls = %+v", tagCalls)
	}
	buildCalls := destination.CallsOfKind(buildsys.CallBuild)
	if len(buildCalls) != 1 || buildCalls[0].SCMURL != "git+https://pkgs.example.com/rpms/bash#abc" {
		t.Errorf("build calls = %+v", buildCalls)
	}

	tagIdx, buildIdx := -1, -1
	for i, c := range destination.Calls {
		if c.Kind == buildsys.CallTagBuild && tagIdx == -1 {
			tagIdx = i
		}
		if c.Kind == buildsys.CallBuild && buildIdx == -1 {
			buildIdx = i
		}
	}
	if tagIdx == -1 || buildIdx == -1 || tagIdx > buildIdx {
		t.Errorf("expected tagBuild before build, got order %+v", destination.Calls)
	}

	syncCalls := gs.snapshot()
	if len(syncCalls) != 1 || syncCalls[0] != "rpms/bash" {
		t.Errorf("git-sync calls = %+v", syncCalls)
	}
}

func TestRunBlocksUntilWaitRepoResolves(t *testing.T) {
	destination := buildsys.NewFakeSession()
	destination.Targets["f42-candidate"] = &buildsys.TargetInfo{Name: "f42-candidate", BuildTagName: "f42-build"}

	store := config.NewStore(baseMain(), config.NewComps(), "ref1")
	o := New(store, fixedSessions{destination}, awaitedrepo.New(), &fakeGitSync{}, false, nil, nil)

	done := make(chan struct{})
	go func() {
		o.Run(context.Background(), "f42-candidate", []classifier.RebuildData{
			{NS: "rpms", Comp: "bash", Version: "1", Release: "1", SCMURL: "https://src.example.com/rpms/bash#abc"},
		})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Run must not complete before the 15-minute wait resolves or is fulfilled")
	case <-time.After(50 * time.Millisecond):
	}

	// Simulate eventual fulfilment so the test doesn't wait 15 minutes.
	o.Registry.Fulfill("f42-build")
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not complete after fulfilment")
	}

	buildCalls := destination.CallsOfKind(buildsys.CallBuild)
	if len(buildCalls) != 1 {
		t.Errorf("expected build to proceed after wait resolves, got %d build calls", len(buildCalls))
	}
}

func TestRunDryRunSkipsSideEffects(t *testing.T) {
	destination := buildsys.NewFakeSession()
	destination.Targets["f42-candidate"] = &buildsys.TargetInfo{Name: "f42-candidate", BuildTagName: "f42-build"}

	store := config.NewStore(baseMain(), config.NewComps(), "ref1")
	gs := &fakeGitSync{}
	o := New(store, fixedSessions{destination}, awaitedrepo.New(), gs, true, nil, nil)

	o.Run(context.Background(), "f42-candidate", []classifier.RebuildData{
		{NS: "rpms", Comp: "bash", Version: "1", Release: "1", SCMURL: "https://src.example.com/rpms/bash#abc"},
	})

	if len(destination.Calls) != 0 {
		t.Errorf("dry-run must not issue any multicall, got %+v", destination.Calls)
	}
	if len(gs.snapshot()) != 0 {
		t.Errorf("dry-run must not invoke git-sync, got %+v", gs.snapshot())
	}
}

func TestRunSkipsPreTagAcrossDifferentProfiles(t *testing.T) {
	destination := buildsys.NewFakeSession()
	destination.Targets["f42-candidate"] = &buildsys.TargetInfo{Name: "f42-candidate", BuildTagName: "f42-build"}

	main := baseMain()
	main.Destination.Profile = "centos-stream"
	store := config.NewStore(main, config.NewComps(), "ref1")
	o := New(store, fixedSessions{destination}, awaitedrepo.New(), &fakeGitSync{}, false, nil, nil)

	o.Run(context.Background(), "f42-candidate", []classifier.RebuildData{
		{NS: "rpms", Comp: "bash", Version: "1", Release: "1", SCMURL: "https://src.example.com/rpms/bash#abc"},
	})

	if len(destination.CallsOfKind(buildsys.CallTagBuild)) != 0 {
		t.Error("pre-tag step must be skipped across different build-system profiles")
	}
	if len(destination.CallsOfKind(buildsys.CallBuild)) != 1 {
		t.Error("build submission should still proceed")
	}
}
