package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"codebattle/internal/common/cache"
	"codebattle/internal/match/model"
)

func newTestCache(t *testing.T) cache.Cache {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	c, err := cache.NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	return c
}

// fakeNotifier records every published payload by topic.
type fakeNotifier struct {
	mu      sync.Mutex
	toUser  map[string][]interface{}
	toMatch map[string][]interface{}
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		toUser:  make(map[string][]interface{}),
		toMatch: make(map[string][]interface{}),
	}
}

func (f *fakeNotifier) PublishToUser(ctx context.Context, userID string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toUser[userID] = append(f.toUser[userID], payload)
	return nil
}

func (f *fakeNotifier) PublishToMatch(ctx context.Context, matchID string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toMatch[matchID] = append(f.toMatch[matchID], payload)
	return nil
}

func (f *fakeNotifier) userPayloads(userID string) []interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]interface{}(nil), f.toUser[userID]...)
}

func (f *fakeNotifier) matchPayloads(matchID string) []interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]interface{}(nil), f.toMatch[matchID]...)
}

// fakeMapGen returns canned maps or errors in sequence, then repeats the
// last element.
type fakeMapGen struct {
	mu    sync.Mutex
	maps  []model.MapData
	errs  []error
	calls int
}

func (f *fakeMapGen) GenerateMap(ctx context.Context, gameType string) (model.MapData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls
	f.calls++
	if len(f.errs) > 0 {
		if idx >= len(f.errs) {
			idx = len(f.errs) - 1
		}
		if f.errs[idx] != nil {
			return model.MapData{}, f.errs[idx]
		}
	}
	mi := idx
	if mi >= len(f.maps) {
		mi = len(f.maps) - 1
	}
	return f.maps[mi], nil
}

func validMap() model.MapData {
	return model.MapData{
		Walls: []model.Cell{{1, 1}, {2, 2}},
		Coins: []model.Cell{{3, 3}},
	}
}

// fakeEventPublisher records persisted matches.
type fakeEventPublisher struct {
	mu       sync.Mutex
	finished []model.FinishedMatch
	err      error
}

func (f *fakeEventPublisher) PublishFinishedMatch(ctx context.Context, finished model.FinishedMatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.finished = append(f.finished, finished)
	return nil
}

func (f *fakeEventPublisher) all() []model.FinishedMatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.FinishedMatch(nil), f.finished...)
}
