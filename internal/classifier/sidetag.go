package classifier

import (
	"context"
	"fmt"

	"github.com/sgallagher/distrobuildsync/internal/config"
	"github.com/sgallagher/distrobuildsync/internal/session"
)

// resolveSideTag implements Side-Tag Mapping (spec.md §4.5): a downstream
// side-tag is provisioned exactly once per upstream side-tag and the mapping is
// persisted on the upstream tag's extra data, so a second classification of the
// same upstream tag finds it memoized via GetTag and performs no side effects.
func (c *Classifier) resolveSideTag(ctx context.Context, main config.Main, upstreamSideTag string) (string, error) {
	source, err := c.Sessions.Get(ctx, session.RoleSource, false)
	if err != nil {
		return "", fmt.Errorf("acquire source session: %w", err)
	}

	if tag, err := source.GetTag(ctx, upstreamSideTag); err == nil {
		if existing := tag.Extra["downstream_sidetag"]; existing != "" {
			return existing, nil
		}
	}

	destination, err := c.Sessions.Get(ctx, session.RoleDestination, false)
	if err != nil {
		return "", fmt.Errorf("acquire destination session: %w", err)
	}

	target, err := destination.GetBuildTarget(ctx, main.Build.Target)
	if err != nil {
		return "", fmt.Errorf("resolve build target %s: %w", main.Build.Target, err)
	}

	if c.DryRun {
		return target.BuildTagName + "-dry-run-mode-stack-gate", nil
	}

	name, err := destination.CreateSideTag(ctx, target.BuildTagName, "stack-gate")
	if err != nil {
		return "", fmt.Errorf("create side tag on %s: %w", target.BuildTagName, err)
	}

	if err := source.EditTag2(ctx, upstreamSideTag, map[string]string{"downstream_sidetag": name}); err != nil {
		return "", fmt.Errorf("persist downstream_sidetag on %s: %w", upstreamSideTag, err)
	}
	return name, nil
}
