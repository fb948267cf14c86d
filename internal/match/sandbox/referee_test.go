package sandbox_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"codebattle/internal/match/model"
	"codebattle/internal/match/sandbox"
	appErr "codebattle/pkg/errors"
)

// writeScript drops an executable shell script standing in for the judge.
// The runner appends gameVariant and phase, so the script sees
// $1=data $2=players $3=gameVariant $4=phase.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skip("judge scripts need a unix shell")
	}
	path := filepath.Join(t.TempDir(), "judge.sh")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func newTestRunner(t *testing.T, script string, timeout time.Duration) *sandbox.Runner {
	t.Helper()
	harnessDir := t.TempDir()
	err := os.WriteFile(filepath.Join(harnessDir, "python_runner.py"), []byte("%USER_CODE%"), 0o644)
	if err != nil {
		t.Fatalf("write harness: %v", err)
	}
	runner, err := sandbox.NewRunner(sandbox.Config{
		Command:  "/bin/sh " + script + " {data} {players}",
		WorkRoot: t.TempDir(),
		Timeout:  timeout,
	}, sandbox.NewFileHarness(harnessDir))
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	return runner
}

func TestGenerateMapParsesInitOutput(t *testing.T) {
	t.Parallel()
	script := writeScript(t, `
if [ "$4" != "init" ]; then echo "wrong phase $4" >&2; exit 1; fi
echo '{"walls":[[0,1],[2,3]],"coins":[[4,5]]}'`)
	runner := newTestRunner(t, script, time.Minute)

	mapData, err := runner.GenerateMap(context.Background(), "snake")
	if err != nil {
		t.Fatalf("generate map: %v", err)
	}
	if len(mapData.Walls) != 2 || len(mapData.Coins) != 1 {
		t.Fatalf("unexpected map: %+v", mapData)
	}
	if mapData.Walls[0] != (model.Cell{0, 1}) {
		t.Fatalf("unexpected wall: %v", mapData.Walls[0])
	}
}

func TestGenerateMapRejectsUnplayableMap(t *testing.T) {
	t.Parallel()
	script := writeScript(t, `echo '{"walls":[],"coins":[[1,1]]}'`)
	runner := newTestRunner(t, script, time.Minute)

	if _, err := runner.GenerateMap(context.Background(), "snake"); !appErr.Is(err, appErr.InvalidMap) {
		t.Fatalf("expected InvalidMap, got %v", err)
	}
}

func TestRunMatchStagesWorkspaceAndParsesResult(t *testing.T) {
	t.Parallel()
	script := writeScript(t, `
[ "$3" = "snake" ] || { echo "wrong variant $3" >&2; exit 1; }
[ "$4" = "run" ] || { echo "wrong phase $4" >&2; exit 1; }
[ -f "$1/map.json" ] || { echo "map missing" >&2; exit 1; }
[ -f "$2/p1/p1.py" ] || { echo "p1 source missing" >&2; exit 1; }
[ -f "$2/p2/p2.py" ] || { echo "p2 source missing" >&2; exit 1; }
grep -q "move_p1" "$2/p1/p1.py" || { echo "p1 code not staged" >&2; exit 1; }
echo '{"winner":"p2","final_scores":{"p1":3,"p2":9},"total_turns":17,"logs":[{"turn":1}]}'`)
	runner := newTestRunner(t, script, time.Minute)

	result, err := runner.RunMatch(context.Background(), sandbox.RunRequest{
		MatchID:  "m1",
		GameType: "snake",
		MapJSON:  `{"walls":[[1,1]],"coins":[[2,2]]}`,
		P1:       sandbox.Submission{Role: model.RoleP1, Code: "def move_p1(): pass", Language: "python"},
		P2:       sandbox.Submission{Role: model.RoleP2, Code: "def move_p2(): pass", Language: "python"},
	})
	if err != nil {
		t.Fatalf("run match: %v", err)
	}
	if result.Winner != "p2" || result.TotalTurns != 17 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.FinalScores.P1 != 3 || result.FinalScores.P2 != 9 {
		t.Fatalf("unexpected scores: %+v", result.FinalScores)
	}
}

func TestRunMatchNonZeroExit(t *testing.T) {
	t.Parallel()
	script := writeScript(t, `echo "referee crashed" >&2; exit 3`)
	runner := newTestRunner(t, script, time.Minute)

	_, err := runner.RunMatch(context.Background(), minimalRunRequest())
	if !appErr.Is(err, appErr.SandboxError) {
		t.Fatalf("expected SandboxError, got %v", err)
	}
}

func TestRunMatchGarbageOutput(t *testing.T) {
	t.Parallel()
	script := writeScript(t, `echo "not json at all"`)
	runner := newTestRunner(t, script, time.Minute)

	_, err := runner.RunMatch(context.Background(), minimalRunRequest())
	if !appErr.Is(err, appErr.SandboxOutputBroken) {
		t.Fatalf("expected SandboxOutputBroken, got %v", err)
	}
}

func TestRunMatchEmptyOutput(t *testing.T) {
	t.Parallel()
	script := writeScript(t, `exit 0`)
	runner := newTestRunner(t, script, time.Minute)

	_, err := runner.RunMatch(context.Background(), minimalRunRequest())
	if !appErr.Is(err, appErr.SandboxOutputBroken) {
		t.Fatalf("expected SandboxOutputBroken, got %v", err)
	}
}

func TestRunMatchTimeoutKillsJudge(t *testing.T) {
	t.Parallel()
	script := writeScript(t, `sleep 30`)
	runner := newTestRunner(t, script, 200*time.Millisecond)

	start := time.Now()
	_, err := runner.RunMatch(context.Background(), minimalRunRequest())
	if !appErr.Is(err, appErr.SandboxTimeout) {
		t.Fatalf("expected SandboxTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("judge not killed promptly, took %s", elapsed)
	}
}

func TestRunMatchCleansWorkspace(t *testing.T) {
	t.Parallel()
	script := writeScript(t, `echo '{"winner":"draw","final_scores":{"p1":0,"p2":0}}'`)

	harnessDir := t.TempDir()
	err := os.WriteFile(filepath.Join(harnessDir, "python_runner.py"), []byte("%USER_CODE%"), 0o644)
	if err != nil {
		t.Fatalf("write harness: %v", err)
	}
	workRoot := t.TempDir()
	runner, err := sandbox.NewRunner(sandbox.Config{
		Command:  "/bin/sh " + script + " {data} {players}",
		WorkRoot: workRoot,
		Timeout:  time.Minute,
	}, sandbox.NewFileHarness(harnessDir))
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	if _, err := runner.RunMatch(context.Background(), minimalRunRequest()); err != nil {
		t.Fatalf("run match: %v", err)
	}

	entries, err := os.ReadDir(workRoot)
	if err != nil {
		t.Fatalf("read work root: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("workspace left behind: %v", entries)
	}
}

func TestCompilePhase(t *testing.T) {
	t.Parallel()
	script := writeScript(t, `
[ "$4" = "compile" ] || { echo "wrong phase $4" >&2; exit 1; }
echo '{"ok":false,"error":"COMPILE_ERROR","detail":"line 3"}'`)
	runner := newTestRunner(t, script, time.Minute)

	res, err := runner.Compile(context.Background(), sandbox.CompileRequest{
		GameType: "snake",
		Code:     "def x(:",
		Language: "python",
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if res.OK || res.Error != "COMPILE_ERROR" || res.Detail != "line 3" {
		t.Fatalf("unexpected compile result: %+v", res)
	}
}

func minimalRunRequest() sandbox.RunRequest {
	return sandbox.RunRequest{
		MatchID:  "m-test",
		GameType: "snake",
		MapJSON:  `{"walls":[[1,1]],"coins":[[2,2]]}`,
		P1:       sandbox.Submission{Role: model.RoleP1, Code: "a", Language: "python"},
		P2:       sandbox.Submission{Role: model.RoleP2, Code: "b", Language: "python"},
	}
}
