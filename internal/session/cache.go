// Package session implements the per-role build-system session cache described in
// spec.md §4.7: a lazily-created, time-limited session per role (source or
// destination), refreshed on expiry or on request.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sgallagher/distrobuildsync/internal/buildsys"
)

// Role identifies which build system a session belongs to.
type Role string

// Role values.
const (
	RoleSource      Role = "source"
	RoleDestination Role = "destination"
)

// maxAge is the cache TTL: "slightly less than an hour, to be safe" per the
// original kojihelpers.get_buildsys, plus the same same-day cutoff.
const maxAge = 3550 * time.Second

// Factory constructs a fresh, unauthenticated Session for the given profile.
type Factory func(ctx context.Context, profile string) (buildsys.Session, error)

// Cache holds one cached session per role.
type Cache struct {
	factory  Factory
	profiles map[Role]string
	logger   *slog.Logger

	mu      sync.Mutex
	entries map[Role]*entry
}

type entry struct {
	session   buildsys.Session
	createdAt time.Time
}

// New creates a session Cache. profiles maps each Role to the build-system profile
// name configured for it (main.source.profile / main.destination.profile).
func New(factory Factory, profiles map[Role]string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		factory:  factory,
		profiles: profiles,
		logger:   logger,
		entries:  make(map[Role]*entry),
	}
}

// Get returns a session for role, reusing a cached one if it is younger than the
// TTL and forceLogin is false. destination sessions (and any session requested with
// forceLogin) are authenticated via Login before being cached. A failure is logged
// and returned as an error; callers must treat this as "no session" and drop the
// operation that needed it (spec §4.7/§7 SessionFailure).
func (c *Cache) Get(ctx context.Context, role Role, forceLogin bool) (buildsys.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[role]; ok {
		age := time.Since(e.createdAt)
		if age < maxAge && !forceLogin {
			c.logger.Debug("reusing cached session", "role", role)
			return e.session, nil
		}
		c.logger.Debug("refreshing session", "role", role, "age", age, "force_login", forceLogin)
		if err := e.session.Logout(ctx); err != nil {
			c.logger.Warn("failed to log out stale session", "role", role, "error", err)
		}
		delete(c.entries, role)
	}

	profile, ok := c.profiles[role]
	if !ok || profile == "" {
		return nil, fmt.Errorf("no build-system profile configured for role %q", role)
	}

	c.logger.Debug("initializing build-system session", "role", role, "profile", profile)
	sess, err := c.factory(ctx, profile)
	if err != nil {
		c.logger.Error("failed initializing build-system session", "role", role, "profile", profile, "error", err)
		return nil, fmt.Errorf("init %s session: %w", role, err)
	}

	if role == RoleDestination || forceLogin {
		auth, ok := sess.(buildsys.Authenticator)
		if ok {
			c.logger.Debug("authenticating build-system session", "role", role)
			if err := auth.Login(ctx); err != nil {
				c.logger.Error("failed authenticating build-system session", "role", role, "error", err)
				return nil, fmt.Errorf("authenticate %s session: %w", role, err)
			}
		}
	}

	c.entries[role] = &entry{session: sess, createdAt: time.Now()}
	return sess, nil
}

// Invalidate drops any cached session for role, forcing a fresh one on next Get.
func (c *Cache) Invalidate(role Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, role)
}
