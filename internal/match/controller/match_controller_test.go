package controller_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"codebattle/internal/common/cache"
	"codebattle/internal/match/controller"
	"codebattle/internal/match/model"
	"codebattle/internal/match/repository"
	"codebattle/internal/match/sandbox"
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

// fakeCompiler records build-check requests and returns a canned result.
type fakeCompiler struct {
	mu       sync.Mutex
	requests []sandbox.CompileRequest
	result   sandbox.CompileResult
	err      error
}

func (f *fakeCompiler) Compile(ctx context.Context, req sandbox.CompileRequest) (sandbox.CompileResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.result, f.err
}

func (f *fakeCompiler) all() []sandbox.CompileRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sandbox.CompileRequest(nil), f.requests...)
}

type controllerFixture struct {
	queues   *repository.QueueRepository
	rooms    *repository.RoomRepository
	compiler *fakeCompiler
	router   *gin.Engine
}

func newControllerFixture(t *testing.T) *controllerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c := newTestCache(t)
	f := &controllerFixture{
		queues:   repository.NewQueueRepository(c),
		rooms:    repository.NewRoomRepository(c),
		compiler: &fakeCompiler{result: sandbox.CompileResult{OK: true}},
	}
	ctrl := controller.NewMatchController(f.queues, f.rooms, f.compiler)
	f.router = gin.New()
	f.router.GET("/queues/:gameType", ctrl.GetQueueSize)
	f.router.GET("/matches/:id", ctrl.GetMatch)
	f.router.POST("/compile", ctrl.CompileCode)
	return f
}

func (f *controllerFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestGetQueueSize(t *testing.T) {
	t.Parallel()
	f := newControllerFixture(t)
	ctx := context.Background()

	for _, user := range []string{"alice", "bob"} {
		if err := f.queues.Enqueue(ctx, "snake", user); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	rec := f.do(t, http.MethodGet, "/queues/snake", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data struct {
			GameType string `json:"gameType"`
			Waiting  int64  `json:"waiting"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.GameType != "snake" || resp.Data.Waiting != 2 {
		t.Fatalf("unexpected body: %+v", resp.Data)
	}
}

func TestGetMatchNeverExposesCode(t *testing.T) {
	t.Parallel()
	f := newControllerFixture(t)
	ctx := context.Background()

	if err := f.rooms.Create(ctx, "m1", "snake", "alice", "bob", "{}"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.rooms.StoreSubmission(ctx, "m1", model.RoleP1, "secret()", "python"); err != nil {
		t.Fatalf("store: %v", err)
	}

	rec := f.do(t, http.MethodGet, "/matches/m1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "secret()") {
		t.Fatal("submitted code leaked in the public match view")
	}
	if !strings.Contains(body, `"p1Submitted":true`) || !strings.Contains(body, `"p2Submitted":false`) {
		t.Fatalf("submission flags missing: %s", body)
	}
}

func TestCompileCodeRunsBuildCheck(t *testing.T) {
	t.Parallel()
	f := newControllerFixture(t)
	ctx := context.Background()

	if err := f.rooms.Create(ctx, "m1", "snake", "alice", "bob", "{}"); err != nil {
		t.Fatalf("create: %v", err)
	}

	rec := f.do(t, http.MethodPost, "/compile", `{"matchId":"m1","code":"move()","language":"java"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	reqs := f.compiler.all()
	if len(reqs) != 1 {
		t.Fatalf("expected one compile invocation, got %d", len(reqs))
	}
	if reqs[0].GameType != "snake" || reqs[0].Code != "move()" || reqs[0].Language != "java" {
		t.Fatalf("unexpected compile request: %+v", reqs[0])
	}
	var resp struct {
		Data sandbox.CompileResult `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Data.OK {
		t.Fatalf("expected ok build check, got %+v", resp.Data)
	}
}

func TestCompileCodeDefaultsLanguage(t *testing.T) {
	t.Parallel()
	f := newControllerFixture(t)
	ctx := context.Background()

	if err := f.rooms.Create(ctx, "m1", "snake", "alice", "bob", "{}"); err != nil {
		t.Fatalf("create: %v", err)
	}

	rec := f.do(t, http.MethodPost, "/compile", `{"matchId":"m1","code":"move()"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	reqs := f.compiler.all()
	if len(reqs) != 1 || reqs[0].Language != "python" {
		t.Fatalf("missing language must default to python: %+v", reqs)
	}
}

func TestCompileCodeUnknownMatch(t *testing.T) {
	t.Parallel()
	f := newControllerFixture(t)

	rec := f.do(t, http.MethodPost, "/compile", `{"matchId":"ghost","code":"move()"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if n := len(f.compiler.all()); n != 0 {
		t.Fatalf("judge must not run for an unknown match, calls=%d", n)
	}
}
