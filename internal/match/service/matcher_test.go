package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"codebattle/internal/common/cache"
	"codebattle/internal/match/model"
	"codebattle/internal/match/repository"
	"codebattle/internal/match/service"
)

// secondPopDrainedCache simulates a concurrent consumer winning the second
// entry: the first ZPOPMIN passes through, the second reports an empty set,
// later calls delegate again.
type secondPopDrainedCache struct {
	cache.Cache

	mu   sync.Mutex
	pops int
}

func (c *secondPopDrainedCache) ZPopMin(ctx context.Context, key string) (cache.ZMember, bool, error) {
	c.mu.Lock()
	c.pops++
	n := c.pops
	c.mu.Unlock()
	if n == 2 {
		return cache.ZMember{}, false, nil
	}
	return c.Cache.ZPopMin(ctx, key)
}

type matcherFixture struct {
	queues   *repository.QueueRepository
	rooms    *repository.RoomRepository
	sessions *repository.SessionRepository
	notifier *fakeNotifier
	mapGen   *fakeMapGen
	matcher  *service.Matcher
}

func newMatcherFixture(t *testing.T, mapGen *fakeMapGen) *matcherFixture {
	t.Helper()
	c := newTestCache(t)
	f := &matcherFixture{
		queues:   repository.NewQueueRepository(c),
		rooms:    repository.NewRoomRepository(c),
		sessions: repository.NewSessionRepository(c),
		notifier: newFakeNotifier(),
		mapGen:   mapGen,
	}
	f.matcher = service.NewMatcher(f.queues, f.rooms, f.sessions, f.mapGen, f.notifier, service.MatcherConfig{
		GameTypes: []string{"snake"},
	})
	return f
}

func TestMatcherTickBelowTwoIsNoOp(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newMatcherFixture(t, &fakeMapGen{maps: []model.MapData{validMap()}})

	outcome, err := f.matcher.Tick(ctx, "snake")
	if err != nil || outcome != service.TickNoOp {
		t.Fatalf("empty queue: outcome=%v err=%v", outcome, err)
	}

	if err := f.queues.Enqueue(ctx, "snake", "alice"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	outcome, err = f.matcher.Tick(ctx, "snake")
	if err != nil || outcome != service.TickNoOp {
		t.Fatalf("single waiter: outcome=%v err=%v", outcome, err)
	}
	size, _ := f.queues.Size(ctx, "snake")
	if size != 1 {
		t.Fatalf("lone waiter must stay queued, size=%d", size)
	}
}

func TestMatcherTickPairsOldestTwo(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newMatcherFixture(t, &fakeMapGen{maps: []model.MapData{validMap()}})

	for i, user := range []string{"alice", "bob", "carol"} {
		if err := f.queues.Requeue(ctx, "snake", user, float64(1000+i)); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	outcome, err := f.matcher.Tick(ctx, "snake")
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if outcome != service.TickMatched {
		t.Fatalf("expected TickMatched, got %v", outcome)
	}

	// Oldest two paired, third still waiting.
	size, _ := f.queues.Size(ctx, "snake")
	if size != 1 {
		t.Fatalf("expected carol to remain, size=%d", size)
	}

	aliceEvents := f.notifier.userPayloads("alice")
	bobEvents := f.notifier.userPayloads("bob")
	if len(aliceEvents) != 1 || len(bobEvents) != 1 {
		t.Fatalf("expected one MATCH_FOUND each, got %d/%d", len(aliceEvents), len(bobEvents))
	}
	evA, okA := aliceEvents[0].(model.MatchFoundEvent)
	evB, okB := bobEvents[0].(model.MatchFoundEvent)
	if !okA || !okB {
		t.Fatalf("unexpected payload types: %T %T", aliceEvents[0], bobEvents[0])
	}
	if evA.MatchID == "" || evA.MatchID != evB.MatchID {
		t.Fatalf("match ids differ: %q vs %q", evA.MatchID, evB.MatchID)
	}
	if evA.MyRole != model.RoleP1 || evB.MyRole != model.RoleP2 {
		t.Fatalf("roles not personalized: %s / %s", evA.MyRole, evB.MyRole)
	}
	if evA.P1ID != "alice" || evA.P2ID != "bob" {
		t.Fatalf("pairing not in arrival order: %s vs %s", evA.P1ID, evA.P2ID)
	}

	room, ok, err := f.rooms.Get(ctx, evA.MatchID)
	if err != nil || !ok {
		t.Fatalf("room missing: ok=%v err=%v", ok, err)
	}
	if room.Status != model.StatusWaitingSubmissions {
		t.Fatalf("fresh room status = %s", room.Status)
	}
	for _, user := range []string{"alice", "bob"} {
		match, _ := f.sessions.MatchOfUser(ctx, user)
		if match != evA.MatchID {
			t.Fatalf("user %s not bound to match: %q", user, match)
		}
	}
}

func TestMatcherMapFailureRequeuesBoth(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	gen := &fakeMapGen{errs: []error{errors.New("judge init crashed")}}
	f := newMatcherFixture(t, gen)

	if err := f.queues.Requeue(ctx, "snake", "alice", 1000); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := f.queues.Requeue(ctx, "snake", "bob", 2000); err != nil {
		t.Fatalf("seed: %v", err)
	}

	outcome, err := f.matcher.Tick(ctx, "snake")
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if outcome != service.TickRequeued {
		t.Fatalf("expected TickRequeued, got %v", outcome)
	}
	if gen.calls != 3 {
		t.Fatalf("expected 3 generation attempts, got %d", gen.calls)
	}

	// Both get their original positions back.
	entry, ok, err := f.queues.PopOldest(ctx, "snake")
	if err != nil || !ok || entry.Member != "alice" || entry.Score != 1000 {
		t.Fatalf("alice not restored: %+v ok=%v err=%v", entry, ok, err)
	}
	entry, ok, err = f.queues.PopOldest(ctx, "snake")
	if err != nil || !ok || entry.Member != "bob" || entry.Score != 2000 {
		t.Fatalf("bob not restored: %+v ok=%v err=%v", entry, ok, err)
	}

	if len(f.notifier.userPayloads("alice")) != 0 {
		t.Fatal("no MATCH_FOUND may be sent on a failed pairing")
	}
}

func TestMatcherInvalidMapCountsAsFailedAttempt(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	// First two attempts produce an unplayable map error, third succeeds.
	gen := &fakeMapGen{
		maps: []model.MapData{{}, {}, validMap()},
		errs: []error{errors.New("no walls"), errors.New("no walls"), nil},
	}
	f := newMatcherFixture(t, gen)

	if err := f.queues.Requeue(ctx, "snake", "alice", 1000); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := f.queues.Requeue(ctx, "snake", "bob", 2000); err != nil {
		t.Fatalf("seed: %v", err)
	}

	outcome, err := f.matcher.Tick(ctx, "snake")
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if outcome != service.TickMatched {
		t.Fatalf("expected TickMatched after retry, got %v", outcome)
	}
	if gen.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", gen.calls)
	}
}

func TestMatcherTickPartialPopRequeuesFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c := &secondPopDrainedCache{Cache: newTestCache(t)}
	queues := repository.NewQueueRepository(c)
	rooms := repository.NewRoomRepository(c)
	sessions := repository.NewSessionRepository(c)
	notifier := newFakeNotifier()
	gen := &fakeMapGen{maps: []model.MapData{validMap()}}
	matcher := service.NewMatcher(queues, rooms, sessions, gen, notifier, service.MatcherConfig{
		GameTypes: []string{"snake"},
	})

	for user, score := range map[string]float64{"alice": 1000, "bob": 1001} {
		if err := queues.Requeue(ctx, "snake", user, score); err != nil {
			t.Fatalf("seed %s: %v", user, err)
		}
	}

	outcome, err := matcher.Tick(ctx, "snake")
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if outcome != service.TickRequeued {
		t.Fatalf("expected TickRequeued, got %v", outcome)
	}

	// The popped ticket went back at its original score, so alice is still
	// ahead of bob on the next tick.
	entry, ok, err := queues.PopOldest(ctx, "snake")
	if err != nil || !ok {
		t.Fatalf("pop after requeue: ok=%v err=%v", ok, err)
	}
	if entry.Member != "alice" || entry.Score != 1000 {
		t.Fatalf("first ticket not restored at original score: %+v", entry)
	}

	if gen.calls != 0 {
		t.Fatalf("aborted tick must not generate a map, calls=%d", gen.calls)
	}
	if len(notifier.userPayloads("alice")) != 0 || len(notifier.userPayloads("bob")) != 0 {
		t.Fatal("aborted tick must not notify anyone")
	}
}
