// Package deploy runs the server-side deployment script with a single
// in-process lock and a hard timeout.
package deploy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"cloudtune-ops/internal/models"
	"cloudtune-ops/internal/telemetry"
)

const (
	// OutputLimit bounds stdout/stderr shown in chat and kept in history.
	OutputLimit = 3200
	waitDelay   = 5 * time.Second
)

var (
	ErrDeployInProgress = errors.New("deploy is already running")
	ErrDeployTimeout    = errors.New("deploy timed out")
)

// Store keeps the history of deploy runs.
type Store interface {
	Create(ctx context.Context, record *models.DeployRecord) error
}

type Options struct {
	ScriptPath string
	RepoURL    string
	AppDir     string
	Timeout    time.Duration
	// Interpreter runs the script, "bash" when empty.
	Interpreter string
}

// Request describes who asked for a deploy and which branch to ship.
type Request struct {
	ChatID   int64
	Username string
	Branch   string
}

type Runner struct {
	mu      sync.Mutex
	running atomic.Bool

	opts    Options
	store   Store
	metrics *telemetry.Metrics
	now     func() time.Time
}

// NewRunner creates a deploy runner. store may be nil.
func NewRunner(opts Options, store Store, metrics *telemetry.Metrics) *Runner {
	if opts.Interpreter == "" {
		opts.Interpreter = "bash"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Minute
	}
	if metrics == nil {
		metrics = telemetry.NewNoop()
	}
	return &Runner{
		opts:    opts,
		store:   store,
		metrics: metrics,
		now:     time.Now,
	}
}

func (r *Runner) Options() Options {
	return r.opts
}

// Running reports whether a deploy is in progress right now.
func (r *Runner) Running() bool {
	return r.running.Load()
}

// Run executes the deploy script and waits for it. A concurrent call fails
// immediately with ErrDeployInProgress without starting a process.
// A non-zero exit code is reported through the result, not as an error.
func (r *Runner) Run(ctx context.Context, req Request) (models.DeployResult, error) {
	if !r.mu.TryLock() {
		return models.DeployResult{}, ErrDeployInProgress
	}
	r.running.Store(true)
	defer func() {
		r.running.Store(false)
		r.mu.Unlock()
	}()

	started := r.now()
	result, err := r.execute(ctx, req.Branch)
	result.Duration = r.now().Sub(started)

	status := statusOf(result, err)
	r.metrics.DeployFinished(ctx, string(status), result.Duration)
	r.record(ctx, req, result, status, started, err)

	return result, err
}

func (r *Runner) execute(ctx context.Context, branch string) (models.DeployResult, error) {
	result := models.DeployResult{Branch: branch, ExitCode: -1}

	runCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.opts.Interpreter, r.opts.ScriptPath)
	cmd.Env = append(os.Environ(),
		"REPO_URL="+r.opts.RepoURL,
		"BRANCH="+branch,
		"APP_DIR="+r.opts.AppDir,
	)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Printf("Starting deploy: branch=%s script=%s", branch, r.opts.ScriptPath)
	err := cmd.Run()
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return result, fmt.Errorf("%w after %d seconds", ErrDeployTimeout, int(r.opts.Timeout.Seconds()))
	}
	if ctx.Err() != nil {
		return result, ctx.Err()
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.ExitCode = 0
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		return result, fmt.Errorf("failed to start deploy script: %w", err)
	}

	log.Printf("Deploy finished: branch=%s exit_code=%d", branch, result.ExitCode)
	return result, nil
}

func (r *Runner) record(ctx context.Context, req Request, result models.DeployResult, status models.DeployStatus, started time.Time, runErr error) {
	if r.store == nil {
		return
	}
	rec := &models.DeployRecord{
		ChatID:     req.ChatID,
		Username:   req.Username,
		Branch:     req.Branch,
		Status:     status,
		ExitCode:   result.ExitCode,
		StartedAt:  started.UTC(),
		FinishedAt: started.Add(result.Duration).UTC(),
		Stdout:     TruncateOutput(result.Stdout, OutputLimit),
		Stderr:     TruncateOutput(result.Stderr, OutputLimit),
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	if err := r.store.Create(context.WithoutCancel(ctx), rec); err != nil {
		log.Printf("Failed to save deploy history: %v", err)
	}
}

func statusOf(result models.DeployResult, err error) models.DeployStatus {
	switch {
	case errors.Is(err, ErrDeployTimeout):
		return models.DeployTimedOut
	case err != nil:
		return models.DeployErrored
	case result.ExitCode == 0:
		return models.DeploySucceeded
	default:
		return models.DeployFailed
	}
}
