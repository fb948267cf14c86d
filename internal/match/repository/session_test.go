package repository_test

import (
	"context"
	"testing"

	"codebattle/internal/match/repository"
)

func TestSessionBindAndResolve(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := repository.NewSessionRepository(newTestCache(t))

	if err := repo.BindUser(ctx, "s1", "alice"); err != nil {
		t.Fatalf("bind user: %v", err)
	}
	if err := repo.BindMatch(ctx, "s1", "alice", "m1"); err != nil {
		t.Fatalf("bind match: %v", err)
	}

	user, err := repo.UserOf(ctx, "s1")
	if err != nil || user != "alice" {
		t.Fatalf("UserOf = %q, %v", user, err)
	}
	match, err := repo.MatchOf(ctx, "s1")
	if err != nil || match != "m1" {
		t.Fatalf("MatchOf = %q, %v", match, err)
	}
	match, err = repo.MatchOfUser(ctx, "alice")
	if err != nil || match != "m1" {
		t.Fatalf("MatchOfUser = %q, %v", match, err)
	}
}

func TestSessionUnknownResolvesEmpty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := repository.NewSessionRepository(newTestCache(t))

	user, err := repo.UserOf(ctx, "ghost")
	if err != nil || user != "" {
		t.Fatalf("expected empty user, got %q err=%v", user, err)
	}
}

func TestSessionTeardownClearsBindings(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := repository.NewSessionRepository(newTestCache(t))

	if err := repo.BindUser(ctx, "s1", "alice"); err != nil {
		t.Fatalf("bind user: %v", err)
	}
	if err := repo.BindMatch(ctx, "s1", "alice", "m1"); err != nil {
		t.Fatalf("bind match: %v", err)
	}
	if err := repo.BindUserMatch(ctx, "bob", "m1"); err != nil {
		t.Fatalf("bind user match: %v", err)
	}

	if err := repo.UnbindSession(ctx, "s1"); err != nil {
		t.Fatalf("unbind session: %v", err)
	}
	if err := repo.UnbindUsers(ctx, "alice", "bob"); err != nil {
		t.Fatalf("unbind users: %v", err)
	}

	if user, _ := repo.UserOf(ctx, "s1"); user != "" {
		t.Fatalf("session user binding survived teardown: %q", user)
	}
	if match, _ := repo.MatchOf(ctx, "s1"); match != "" {
		t.Fatalf("session match binding survived teardown: %q", match)
	}
	for _, u := range []string{"alice", "bob"} {
		if match, _ := repo.MatchOfUser(ctx, u); match != "" {
			t.Fatalf("user %s match binding survived teardown: %q", u, match)
		}
	}
}
