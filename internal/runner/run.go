package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gridrun-labs/gridrun/internal/matrix"
	"github.com/gridrun-labs/gridrun/internal/state"
)

// preparedStep is one step of an environment's sequence, rendered and
// recorded before execution starts.
type preparedStep struct {
	stepRun *state.StepRun
	argv    []string
	dir     string
}

// RunEnv executes one environment: the install phase (unless the cached
// dependency fingerprint matches), then every command strictly in order.
// The first failing step halts the sequence; remaining steps are recorded
// as skipped. Returns the run and a *StepError on command failure.
func (r *Runner) RunEnv(ctx context.Context, env matrix.Environment) (*state.Run, error) {
	logger := r.logger.With("environment", env.Name)
	logger.Info("starting run")

	deps, err := r.doc.Resolve(env)
	if err != nil {
		return nil, err
	}
	reqs := matrix.Requirements(deps)
	fingerprint := Fingerprint(reqs)

	envDir, err := r.ensureEnvDir(env.Name)
	if err != nil {
		return nil, err
	}

	run, err := r.store.CreateRun(env.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	vars := map[string]string{
		"{runtime}": r.runtimeFor(env),
		"{envdir}":  envDir,
	}

	// Install phase is skipped when the cached fingerprint matches the
	// resolved dependency set.
	installCached := false
	if cached, err := r.store.GetEnvironment(env.Name); err == nil && cached != nil && cached.Fingerprint == fingerprint {
		installCached = true
		logger.Debug("install phase skipped", "fingerprint", fingerprint)
	}

	steps, err := r.prepareSteps(run.ID, env, vars, reqs, installCached)
	if err != nil {
		_ = r.store.CompleteRun(run.ID, state.RunStatusFailed, err.Error())
		run, _ = r.store.GetRun(run.ID)
		return run, err
	}

	logger.Debug("executing steps", "count", len(steps))
	runErr := r.executeSteps(ctx, env, envDir, steps)

	if runErr != nil {
		logger.Info("run failed", "error", runErr.Error())
		_ = r.store.CompleteRun(run.ID, state.RunStatusFailed, runErr.Error())
	} else {
		logger.Info("run passed")
		_ = r.store.SaveEnvironment(&state.EnvRecord{
			Name:        env.Name,
			RuntimeTag:  env.RuntimeTag,
			DepTag:      env.DepTag,
			Fingerprint: fingerprint,
		})
		_ = r.store.CompleteRun(run.ID, state.RunStatusPassed, "")
	}

	run, _ = r.store.GetRun(run.ID)
	return run, runErr
}

// prepareSteps renders every step of the sequence and records it pending
// before anything executes.
func (r *Runner) prepareSteps(runID string, env matrix.Environment, vars map[string]string, reqs []string, installCached bool) ([]preparedStep, error) {
	var steps []preparedStep
	index := 0

	record := func(phase string, argv []string, dir string) error {
		stepRun := &state.StepRun{
			RunID:   runID,
			Index:   index,
			Phase:   phase,
			Command: strings.Join(argv, " "),
			Dir:     dir,
			Status:  state.StepStatusPending,
		}
		if err := r.store.RecordStepRun(stepRun); err != nil {
			return fmt.Errorf("failed to record step: %w", err)
		}
		steps = append(steps, preparedStep{stepRun: stepRun, argv: argv, dir: dir})
		index++
		return nil
	}

	if !installCached {
		argv := renderArgv(r.doc.InstallCommand, vars, reqs)
		if err := record(state.PhaseInstall, argv, ""); err != nil {
			return nil, err
		}
	}

	for _, cmd := range r.doc.Commands {
		argv := renderArgv(cmd.Argv, vars, nil)
		if err := record(state.PhaseCommand, argv, cmd.Dir); err != nil {
			return nil, err
		}
	}

	return steps, nil
}

// executeSteps runs the prepared sequence in order, fail-fast. After a
// failure the remaining steps are marked skipped and never execute.
func (r *Runner) executeSteps(ctx context.Context, env matrix.Environment, envDir string, steps []preparedStep) error {
	for i, step := range steps {
		_ = r.store.UpdateStepRun(step.stepRun.ID, state.StepStatusRunning, 0, "")

		start := time.Now()
		exitCode, err := r.execStep(ctx, envDir, env.Name, step)
		elapsed := time.Since(start)

		if err != nil {
			r.logger.Debug("step failed", "environment", env.Name, "step", step.stepRun.Index, "exit_code", exitCode, "elapsed", elapsed)
			_ = r.store.UpdateStepRun(step.stepRun.ID, state.StepStatusFailed, exitCode, err.Error())

			for j := i + 1; j < len(steps); j++ {
				_ = r.store.UpdateStepRun(steps[j].stepRun.ID, state.StepStatusSkipped, 0,
					fmt.Sprintf("skipped: step %d failed", step.stepRun.Index))
			}

			return &StepError{
				Env:      env.Name,
				Index:    step.stepRun.Index,
				Phase:    step.stepRun.Phase,
				Command:  step.stepRun.Command,
				ExitCode: exitCode,
				Err:      err,
			}
		}

		r.logger.Debug("step passed", "environment", env.Name, "step", step.stepRun.Index, "elapsed", elapsed)
		_ = r.store.UpdateStepRun(step.stepRun.ID, state.StepStatusPassed, 0, "")
	}

	return nil
}

// ensureEnvDir creates the environment's isolated working directory.
func (r *Runner) ensureEnvDir(name string) (string, error) {
	dir := filepath.Join(r.envRoot, name)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create environment directory: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return dir, nil
	}
	return abs, nil
}

// runtimeFor maps an environment's runtime tag to its executable, falling
// back to the tag itself when no mapping is declared.
func (r *Runner) runtimeFor(env matrix.Environment) string {
	if exe, ok := r.doc.Runtimes[env.RuntimeTag]; ok {
		return exe
	}
	return env.RuntimeTag
}
