// Package runner executes matrix environments: an install phase followed by
// the fixed command list, strictly in order, halting at the first failing
// step. Environments are isolated; nothing is shared between them except the
// state store.
package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/gridrun-labs/gridrun/internal/matrix"
	"github.com/gridrun-labs/gridrun/internal/state"
)

// Runner orchestrates environment runs against a parsed matrix document.
type Runner struct {
	doc    *matrix.Document
	store  state.Store
	logger *slog.Logger

	projectDir string
	envRoot    string

	stdout io.Writer
	stderr io.Writer
}

// Config holds runner configuration.
type Config struct {
	// Doc is the parsed matrix document.
	Doc *matrix.Document
	// Store persists the environment cache and run history.
	Store state.Store
	// EnvRoot is the directory holding per-environment working dirs.
	EnvRoot string
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
	// Stdout and Stderr receive subprocess output (optional, default
	// os.Stdout/os.Stderr).
	Stdout io.Writer
	Stderr io.Writer
}

// New creates a runner. Command working directories resolve against the
// matrix file's directory.
func New(cfg Config) (*Runner, error) {
	if cfg.Doc == nil {
		return nil, fmt.Errorf("runner requires a matrix document")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("runner requires a state store")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	projectDir := "."
	if cfg.Doc.Path != "" {
		projectDir = filepath.Dir(cfg.Doc.Path)
	}

	envRoot := cfg.EnvRoot
	if envRoot == "" {
		envRoot = filepath.Join(projectDir, ".gridrun", "envs")
	}

	stdout := cfg.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := cfg.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	return &Runner{
		doc:        cfg.Doc,
		store:      cfg.Store,
		logger:     logger,
		projectDir: projectDir,
		envRoot:    envRoot,
		stdout:     stdout,
		stderr:     stderr,
	}, nil
}

// RunAll runs every declared environment sequentially and returns the
// per-environment results. One environment's failure never halts the
// others; the error is the first failure encountered, if any.
func (r *Runner) RunAll(ctx context.Context) ([]*state.Run, error) {
	names := make([]string, len(r.doc.Envs))
	for i, e := range r.doc.Envs {
		names[i] = e.Name
	}
	return r.RunEnvs(ctx, names, 1)
}

// RunEnvs runs the named environments. With parallel > 1 environments fan
// out over a bounded group; each environment's own command sequence stays
// strictly sequential. Results are returned in the requested order.
func (r *Runner) RunEnvs(ctx context.Context, names []string, parallel int) ([]*state.Run, error) {
	envs := make([]matrix.Environment, len(names))
	for i, name := range names {
		env, ok := r.doc.Environment(name)
		if !ok {
			return nil, fmt.Errorf("unknown environment: %s", name)
		}
		envs[i] = env
	}

	if parallel < 1 {
		parallel = 1
	}

	results := make([]*state.Run, len(envs))
	var firstErr error
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	for i, env := range envs {
		i, env := i, env
		g.Go(func() error {
			run, err := r.RunEnv(ctx, env)

			mu.Lock()
			results[i] = run
			if err != nil && firstErr == nil {
				firstErr = err
			}
			mu.Unlock()

			// A failing environment never cancels its siblings.
			return nil
		})
	}

	_ = g.Wait()
	return results, firstErr
}
