// Package gitscm wraps the handful of read-only git operations DistroBuildSync
// needs against its own config repository: checking
// whether a ref has moved, and cloning a ref into a scratch directory for
// parsing. Grounded on the validation discipline of the teacher's tools/git
// package, reimplemented read-only and trimmed to this daemon's two call sites.
package gitscm

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"
)

// ValidateURL rejects SCM URLs that are empty, contain control characters
// (newline, carriage return, NUL), or use a scheme other than the handful git
// itself accepts. A URL with no scheme is accepted only as an absolute local path.
func ValidateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("empty SCM URL")
	}
	if strings.ContainsAny(raw, "\n\r\x00") {
		return fmt.Errorf("SCM URL contains control characters: %q", raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse SCM URL %q: %w", raw, err)
	}
	switch u.Scheme {
	case "https", "http", "git", "ssh", "file":
	case "":
		if !strings.HasPrefix(raw, "/") {
			return fmt.Errorf("SCM URL %q has no scheme and is not an absolute path", raw)
		}
	default:
		return fmt.Errorf("unsupported SCM URL scheme %q in %q", u.Scheme, raw)
	}
	return nil
}

// validatePath rejects destination paths that escape the intended scratch root
// via "..", matching the defense-in-depth the teacher applies before any
// filesystem write driven by external input.
func validatePath(root, dest string) error {
	if strings.Contains(dest, "..") {
		return fmt.Errorf("path %q escapes scratch root", dest)
	}
	if !strings.HasPrefix(dest, root) {
		return fmt.Errorf("path %q is outside scratch root %q", dest, root)
	}
	return nil
}

// ListRemoteHeads returns the commit hash the given ref currently points to on
// the remote, without cloning. Used by the config Reloader to detect whether the
// config repo has moved before paying for a full clone.
func ListRemoteHeads(ctx context.Context, repoURL, ref string) (string, error) {
	if err := ValidateURL(repoURL); err != nil {
		return "", err
	}
	cmd := exec.CommandContext(ctx, "git", "ls-remote", repoURL, ref)
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git ls-remote %s %s: %w: %s", repoURL, ref, err, errOut.String())
	}
	line := strings.TrimSpace(out.String())
	if line == "" {
		return "", fmt.Errorf("ref %q not found on %s", ref, repoURL)
	}
	fields := strings.Fields(line)
	return fields[0], nil
}

// Clone performs a shallow, single-ref clone of repoURL at ref into a fresh
// temporary directory under dir and returns its path. Callers own cleanup.
func Clone(ctx context.Context, repoURL, ref, dir string) (string, error) {
	if err := ValidateURL(repoURL); err != nil {
		return "", err
	}
	dest, err := os.MkdirTemp(dir, "distrobuildsync-config-*")
	if err != nil {
		return "", fmt.Errorf("create scratch dir: %w", err)
	}
	if err := validatePath(dir, dest); err != nil {
		os.RemoveAll(dest)
		return "", err
	}

	cmd := exec.CommandContext(ctx, "git", "clone", "--depth", "1", "--branch", ref, repoURL, dest)
	var errOut bytes.Buffer
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		os.RemoveAll(dest)
		return "", fmt.Errorf("git clone %s@%s: %w: %s", repoURL, ref, err, errOut.String())
	}
	return dest, nil
}
