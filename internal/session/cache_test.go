package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sgallagher/distrobuildsync/internal/buildsys"
)

type fakeAuthSession struct {
	*buildsys.FakeSession
	loggedIn bool
	loginErr error
}

func (f *fakeAuthSession) Login(_ context.Context) error {
	if f.loginErr != nil {
		return f.loginErr
	}
	f.loggedIn = true
	return nil
}

func TestCacheReusesWithinTTL(t *testing.T) {
	calls := 0
	factory := func(_ context.Context, _ string) (buildsys.Session, error) {
		calls++
		return &fakeAuthSession{FakeSession: buildsys.NewFakeSession()}, nil
	}
	c := New(factory, map[Role]string{RoleSource: "src-profile"}, nil)

	s1, err := c.Get(context.Background(), RoleSource, false)
	if err != nil {
		t.Fatal(err)
	}
	s2, err := c.Get(context.Background(), RoleSource, false)
	if err != nil {
		t.Fatal(err)
	}
	if s1 != s2 {
		t.Error("expected cached session to be reused")
	}
	if calls != 1 {
		t.Errorf("expected factory called once, got %d", calls)
	}
}

func TestCacheAuthenticatesDestination(t *testing.T) {
	var created *fakeAuthSession
	factory := func(_ context.Context, _ string) (buildsys.Session, error) {
		created = &fakeAuthSession{FakeSession: buildsys.NewFakeSession()}
		return created, nil
	}
	c := New(factory, map[Role]string{RoleDestination: "dst-profile"}, nil)

	_, err := c.Get(context.Background(), RoleDestination, false)
	if err != nil {
		t.Fatal(err)
	}
	if !created.loggedIn {
		t.Error("expected destination session to be authenticated")
	}
}

func TestCacheDoesNotAuthenticateSourceByDefault(t *testing.T) {
	var created *fakeAuthSession
	factory := func(_ context.Context, _ string) (buildsys.Session, error) {
		created = &fakeAuthSession{FakeSession: buildsys.NewFakeSession()}
		return created, nil
	}
	c := New(factory, map[Role]string{RoleSource: "src-profile"}, nil)

	_, err := c.Get(context.Background(), RoleSource, false)
	if err != nil {
		t.Fatal(err)
	}
	if created.loggedIn {
		t.Error("source session should not authenticate without forceLogin")
	}
}

func TestCacheForceLoginAuthenticatesSource(t *testing.T) {
	var created *fakeAuthSession
	factory := func(_ context.Context, _ string) (buildsys.Session, error) {
		created = &fakeAuthSession{FakeSession: buildsys.NewFakeSession()}
		return created, nil
	}
	c := New(factory, map[Role]string{RoleSource: "src-profile"}, nil)

	_, err := c.Get(context.Background(), RoleSource, true)
	if err != nil {
		t.Fatal(err)
	}
	if !created.loggedIn {
		t.Error("expected forceLogin to authenticate source session")
	}
}

func TestCacheFailureReturnsError(t *testing.T) {
	factory := func(_ context.Context, _ string) (buildsys.Session, error) {
		return nil, errors.New("connection refused")
	}
	c := New(factory, map[Role]string{RoleSource: "src-profile"}, nil)

	_, err := c.Get(context.Background(), RoleSource, false)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestCacheMissingProfile(t *testing.T) {
	c := New(func(context.Context, string) (buildsys.Session, error) {
		return buildsys.NewFakeSession(), nil
	}, map[Role]string{}, nil)

	_, err := c.Get(context.Background(), RoleDestination, false)
	if err == nil {
		t.Fatal("expected error for missing profile")
	}
}

func TestCacheRefreshesExpiredSession(t *testing.T) {
	calls := 0
	c := New(func(context.Context, string) (buildsys.Session, error) {
		calls++
		return buildsys.NewFakeSession(), nil
	}, map[Role]string{RoleSource: "src-profile"}, nil)

	if _, err := c.Get(context.Background(), RoleSource, false); err != nil {
		t.Fatal(err)
	}
	// Force expiry by rewriting the cached entry's timestamp.
	c.mu.Lock()
	c.entries[RoleSource].createdAt = time.Now().Add(-2 * time.Hour)
	c.mu.Unlock()

	if _, err := c.Get(context.Background(), RoleSource, false); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("expected factory called twice after expiry, got %d", calls)
	}
}
