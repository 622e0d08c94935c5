package buildsys

import (
	"context"
	"fmt"
	"sync"
)

// FakeSession is an in-memory Session used by classifier/orchestrator tests. All
// fields are safe to populate before use; calls made are recorded for assertions.
type FakeSession struct {
	mu sync.Mutex

	BuildsByNVR map[string]*BuildInfo
	BuildsByID  map[int]*BuildInfo
	Targets     map[string]*TargetInfo
	Tags        map[string]*TagInfo

	// TaggedRPMs models ListTagged's result set, keyed by tag name. Tests
	// populate this directly rather than deriving it from BuildsByNVR/ID,
	// since tag membership has no other representation in this fake.
	TaggedRPMs map[string][]TaggedBuild

	// NextSideTag, if set, is returned by every CreateSideTag call.
	NextSideTag string

	// SideTagCalls counts invocations of CreateSideTag, for memoization assertions.
	SideTagCalls int

	// Calls records every Call passed to Multicall, in order, across all invocations.
	Calls []Call

	// EditedTags records extra data written via EditTag2, keyed by tag name.
	EditedTags map[string]map[string]string

	// LoggedOut is set when Logout is called.
	LoggedOut bool

	// Err* fields let tests force specific calls to fail.
	ErrGetBuild       error
	ErrGetBuildTarget error
	ErrGetTag         error
	ErrMulticall      error

	// PerCallErr, keyed by NVR or SCMURL, fails an individual multicall entry
	// without failing the whole batch.
	PerCallErr map[string]error
}

// NewFakeSession returns a ready-to-use FakeSession with empty maps.
func NewFakeSession() *FakeSession {
	return &FakeSession{
		BuildsByNVR: make(map[string]*BuildInfo),
		BuildsByID:  make(map[int]*BuildInfo),
		Targets:     make(map[string]*TargetInfo),
		Tags:        make(map[string]*TagInfo),
		TaggedRPMs:  make(map[string][]TaggedBuild),
		EditedTags:  make(map[string]map[string]string),
		PerCallErr:  make(map[string]error),
	}
}

func (f *FakeSession) GetBuild(_ context.Context, nvr string) (*BuildInfo, error) {
	if f.ErrGetBuild != nil {
		return nil, f.ErrGetBuild
	}
	bi, ok := f.BuildsByNVR[nvr]
	if !ok {
		return nil, fmt.Errorf("no such build: %s", nvr)
	}
	return bi, nil
}

func (f *FakeSession) GetBuildByID(_ context.Context, buildID int, _ bool) (*BuildInfo, error) {
	if f.ErrGetBuild != nil {
		return nil, f.ErrGetBuild
	}
	bi, ok := f.BuildsByID[buildID]
	if !ok {
		return nil, fmt.Errorf("no such build id: %d", buildID)
	}
	return bi, nil
}

func (f *FakeSession) GetBuildTarget(_ context.Context, target string) (*TargetInfo, error) {
	if f.ErrGetBuildTarget != nil {
		return nil, f.ErrGetBuildTarget
	}
	ti, ok := f.Targets[target]
	if !ok {
		return nil, fmt.Errorf("no such target: %s", target)
	}
	return ti, nil
}

func (f *FakeSession) GetTag(_ context.Context, tag string) (*TagInfo, error) {
	if f.ErrGetTag != nil {
		return nil, f.ErrGetTag
	}
	ti, ok := f.Tags[tag]
	if !ok {
		return &TagInfo{Name: tag, Extra: map[string]string{}}, nil
	}
	return ti, nil
}

func (f *FakeSession) ListTagged(_ context.Context, tag, pkg string, _ bool) ([]TaggedBuild, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []TaggedBuild
	for _, tb := range f.TaggedRPMs[tag] {
		if pkg != "" && tb.Name != pkg {
			continue
		}
		out = append(out, tb)
	}
	return out, nil
}

func (f *FakeSession) CreateSideTag(_ context.Context, buildTag, suffix string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SideTagCalls++
	if f.NextSideTag != "" {
		return f.NextSideTag, nil
	}
	return fmt.Sprintf("%s-%s", buildTag, suffix), nil
}

func (f *FakeSession) EditTag2(_ context.Context, tag string, extra map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.EditedTags[tag] == nil {
		f.EditedTags[tag] = map[string]string{}
	}
	for k, v := range extra {
		f.EditedTags[tag][k] = v
	}

	// Reflect the edit into Tags so a subsequent GetTag observes it, matching
	// the real build system's read-your-writes behavior.
	ti, ok := f.Tags[tag]
	if !ok {
		ti = &TagInfo{Name: tag, Extra: map[string]string{}}
		f.Tags[tag] = ti
	}
	for k, v := range extra {
		ti.Extra[k] = v
	}
	return nil
}

func (f *FakeSession) Multicall(_ context.Context, batchSize int, calls []Call) ([]CallResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ErrMulticall != nil {
		return nil, f.ErrMulticall
	}
	if batchSize <= 0 {
		batchSize = len(calls)
	}

	results := make([]CallResult, len(calls))
	for i, c := range calls {
		f.Calls = append(f.Calls, c)
		key := c.NVR
		if key == "" {
			key = c.SCMURL
		}
		if err, ok := f.PerCallErr[key]; ok {
			results[i] = CallResult{Err: err}
		}
	}
	return results, nil
}

func (f *FakeSession) Logout(_ context.Context) error {
	f.LoggedOut = true
	return nil
}

// CallsOfKind returns the recorded calls matching kind, in order.
func (f *FakeSession) CallsOfKind(kind CallKind) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.Calls {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}
