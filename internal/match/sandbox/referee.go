package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/google/shlex"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"codebattle/internal/match/model"
	appErr "codebattle/pkg/errors"
	"codebattle/pkg/utils/logger"
)

// Judge invocation phases. Positional arguments select the game variant and
// the phase: <judge argv...> <gameVariant> <phase>.
const (
	PhaseInit    = "init"
	PhaseCompile = "compile"
	PhaseRun     = "run"
)

const defaultTimeout = 60 * time.Second

// Config holds referee runner settings.
type Config struct {
	// Command is the judge invocation template. {data} and {players}
	// expand to the invocation workspace's host paths, e.g.
	// "docker run --rm -v {data}:/app/data -v {players}:/app/players code-battle-engine python3 referee.py".
	Command string `yaml:"command"`

	// WorkRoot is the host directory for per-invocation workspaces.
	WorkRoot string `yaml:"workRoot"`

	// Timeout is the hard wall-clock limit per judge invocation. On expiry
	// the whole process group is killed. Never disabled: a zero value falls
	// back to the default.
	Timeout time.Duration `yaml:"timeout"`
}

// Submission is one tagged code payload for the run phase.
type Submission struct {
	Role     model.Role
	Code     string
	Language string
}

// RunRequest describes one full-match execution.
type RunRequest struct {
	MatchID  string
	GameType string
	MapJSON  string
	P1       Submission
	P2       Submission
}

// CompileRequest describes one build-check invocation.
type CompileRequest struct {
	GameType string
	Code     string
	Language string
}

// CompileResult is the judge's answer to a compile phase.
type CompileResult struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Runner executes the external judge process for the three phases. The judge
// is isolated and resource-bounded on its own; the runner's job is the IO
// contract, the wall-clock timeout, and workspace lifecycle.
type Runner struct {
	cfg     Config
	harness Harness
}

// NewRunner creates a referee runner.
func NewRunner(cfg Config, harness Harness) (*Runner, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("judge command is required")
	}
	if cfg.WorkRoot == "" {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("work root is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Runner{cfg: cfg, harness: harness}, nil
}

// GenerateMap runs the init phase and returns a validated fresh map.
// Implements the Matcher's MapGenerator collaborator.
func (r *Runner) GenerateMap(ctx context.Context, gameType string) (model.MapData, error) {
	ws, err := newWorkspace(r.cfg.WorkRoot, uuid.NewString())
	if err != nil {
		return model.MapData{}, err
	}
	defer ws.Cleanup()

	output, err := r.invoke(ctx, ws, gameType, PhaseInit)
	if err != nil {
		return model.MapData{}, appErr.Wrap(err, appErr.MapGenerationFailure)
	}
	return model.ParseMapData(output)
}

// Compile runs the build-check phase against a single source.
func (r *Runner) Compile(ctx context.Context, req CompileRequest) (CompileResult, error) {
	ws, err := newWorkspace(r.cfg.WorkRoot, uuid.NewString())
	if err != nil {
		return CompileResult{}, err
	}
	defer ws.Cleanup()

	if err := r.writeSubmission(ws, Submission{Role: model.RoleP1, Code: req.Code, Language: req.Language}); err != nil {
		return CompileResult{}, err
	}
	output, err := r.invoke(ctx, ws, req.GameType, PhaseCompile)
	if err != nil {
		return CompileResult{}, err
	}
	var res CompileResult
	if err := json.Unmarshal(output, &res); err != nil {
		return CompileResult{}, appErr.Wrapf(err, appErr.SandboxOutputBroken, "decode compile result failed")
	}
	return res, nil
}

// RunMatch executes a full match and parses the judge's result block.
func (r *Runner) RunMatch(ctx context.Context, req RunRequest) (model.MatchResult, error) {
	ws, err := newWorkspace(r.cfg.WorkRoot, req.MatchID)
	if err != nil {
		return model.MatchResult{}, err
	}
	defer ws.Cleanup()

	if err := ws.WriteMap(req.MapJSON); err != nil {
		return model.MatchResult{}, err
	}
	for _, sub := range []Submission{req.P1, req.P2} {
		if err := r.writeSubmission(ws, sub); err != nil {
			return model.MatchResult{}, err
		}
	}

	output, err := r.invoke(ctx, ws, req.GameType, PhaseRun)
	if err != nil {
		return model.MatchResult{}, err
	}

	var res model.MatchResult
	if err := json.Unmarshal(output, &res); err != nil {
		return model.MatchResult{}, appErr.Wrapf(err, appErr.SandboxOutputBroken, "decode match result failed")
	}
	return res, nil
}

func (r *Runner) writeSubmission(ws *workspace, sub Submission) error {
	full, err := r.harness.Combine(sub.Language, sub.Code)
	if err != nil {
		return err
	}
	filename, err := SourceFileName(string(sub.Role), sub.Language)
	if err != nil {
		return err
	}
	return ws.WritePlayerSource(string(sub.Role), filename, full)
}

// invoke runs the judge once and returns its combined stdout/stderr block.
// A non-zero exit or expired timeout becomes a recoverable SandboxError.
func (r *Runner) invoke(ctx context.Context, ws *workspace, gameVariant, phase string) ([]byte, error) {
	argv, err := r.buildArgv(ws, gameVariant, phase)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined
	// Own process group so the timeout can kill the judge and everything it
	// spawned in one shot.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, appErr.Wrapf(err, appErr.SandboxError, "start judge process failed")
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(r.cfg.Timeout)
	defer timer.Stop()

	var waitErr error
	var timedOut bool
	select {
	case waitErr = <-done:
	case <-timer.C:
		timedOut = true
		r.killGroup(cmd)
		waitErr = <-done
	case <-ctx.Done():
		r.killGroup(cmd)
		waitErr = <-done
		if waitErr == nil {
			waitErr = ctx.Err()
		}
	}

	output := bytes.TrimSpace(combined.Bytes())
	if timedOut {
		logger.Warn(context.Background(), "judge invocation timed out",
			zap.String("phase", phase), zap.Duration("timeout", r.cfg.Timeout))
		return nil, appErr.Newf(appErr.SandboxTimeout, "judge %s phase exceeded %s", phase, r.cfg.Timeout)
	}
	if waitErr != nil {
		logger.Error(context.Background(), "judge invocation failed",
			zap.String("phase", phase), zap.Error(waitErr), zap.ByteString("output", output))
		return nil, appErr.Wrapf(waitErr, appErr.SandboxError, "judge %s phase failed", phase)
	}
	if len(output) == 0 {
		return nil, appErr.Newf(appErr.SandboxOutputBroken, "judge %s phase produced no output", phase)
	}
	return output, nil
}

// buildArgv expands the command template and appends the positional
// gameVariant and phase arguments.
func (r *Runner) buildArgv(ws *workspace, gameVariant, phase string) ([]string, error) {
	expanded := strings.ReplaceAll(r.cfg.Command, "{data}", ws.dataDir)
	expanded = strings.ReplaceAll(expanded, "{players}", ws.playersDir)
	fields, err := shlex.Split(expanded)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidParams, "parse judge command template failed")
	}
	if len(fields) == 0 {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("judge command is empty after expansion")
	}
	return append(fields, gameVariant, phase), nil
}

func (r *Runner) killGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	// Negative pid addresses the whole process group.
	_ = unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
}
