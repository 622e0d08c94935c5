// Package buildsys defines the Koji-shaped build-system contract DistroBuildSync
// drives on both the source (upstream) and destination (downstream) side, plus a
// fake implementation for tests. The concrete client library is an external
// collaborator per the daemon's scope (see spec.md §1/§6); this package only
// describes the calls the daemon needs.
package buildsys

import "context"

// ModuleInfo carries the module-specific fields attached to a build's extra data.
type ModuleInfo struct {
	Name        string
	Stream      string
	Version     string
	ModulemdStr string
}

// BuildInfo is the subset of a build record DistroBuildSync consumes.
type BuildInfo struct {
	NVR    string
	Source string // SCMURL the build was created from
	Module *ModuleInfo
}

// TargetInfo describes a build target.
type TargetInfo struct {
	Name         string
	BuildTagName string
	DestTagName  string
}

// TagInfo describes a tag, including any extra key/value metadata attached to it
// (e.g. the downstream_sidetag mapping written by the Side-Tag protocol).
type TagInfo struct {
	Name  string
	Extra map[string]string
}

// TaggedBuild is a single entry returned by ListTagged.
type TaggedBuild struct {
	BuildID int
	Name    string
	Version string
	Release string
}

// CallKind identifies the operation requested by a multicall Call.
type CallKind int

// CallKind values.
const (
	CallTagBuild CallKind = iota
	CallBuild
)

// Call describes a single multicall operation: either tagBuild(Target, NVR) or
// build(SCMURL, Target, {scratch: Scratch}).
type Call struct {
	Kind    CallKind
	Target  string
	NVR     string
	SCMURL  string
	Scratch bool
}

// TagBuild constructs a tagBuild multicall entry.
func TagBuild(target, nvr string) Call {
	return Call{Kind: CallTagBuild, Target: target, NVR: nvr}
}

// Build constructs a build multicall entry.
func Build(scmurl, target string, scratch bool) Call {
	return Call{Kind: CallBuild, Target: target, SCMURL: scmurl, Scratch: scratch}
}

// CallResult is the per-call outcome of a Multicall invocation. Err is non-nil when
// that specific call failed; a failed call does not affect the others (spec §4.3
// Failure semantics: "Individual multicall failures ... do not abort the batch").
type CallResult struct {
	Err error
}

// Session is the build-system contract. GetBuild looks up by NVR, GetBuildByID by
// numeric build ID (the tagging event only carries the ID).
type Session interface {
	GetBuild(ctx context.Context, nvr string) (*BuildInfo, error)
	GetBuildByID(ctx context.Context, buildID int, strict bool) (*BuildInfo, error)
	GetBuildTarget(ctx context.Context, target string) (*TargetInfo, error)
	GetTag(ctx context.Context, tag string) (*TagInfo, error)
	ListTagged(ctx context.Context, tag, pkg string, latest bool) ([]TaggedBuild, error)
	CreateSideTag(ctx context.Context, buildTag, suffix string) (string, error)
	EditTag2(ctx context.Context, tag string, extra map[string]string) error

	// Multicall runs calls in batches of at most batchSize, preserving order in the
	// returned results. A transport-level error (the whole batch could not be
	// submitted) is returned as err; otherwise err is nil and per-call failures are
	// reported in the corresponding CallResult.
	Multicall(ctx context.Context, batchSize int, calls []Call) ([]CallResult, error)

	// Logout tears down the session. Safe to call on a session that never
	// authenticated.
	Logout(ctx context.Context) error
}

// Authenticator is implemented by sessions that support GSSAPI login, used by the
// Session Cache (internal/session) to authenticate destination sessions.
type Authenticator interface {
	Login(ctx context.Context) error
}
