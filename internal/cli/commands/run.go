package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gridrun-labs/gridrun/internal/cli/config"
	"github.com/gridrun-labs/gridrun/internal/cli/output"
	"github.com/gridrun-labs/gridrun/internal/runner"
	"github.com/gridrun-labs/gridrun/internal/state"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	Parallel   int
	JSONOutput bool
	Watch      bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run [environments...]",
		Short: "Run all environments or specific ones",
		Long: `Execute the matrix command sequence in each environment.

Each environment installs its resolved dependency set (skipped when the
cached fingerprint matches), then runs every command strictly in order,
halting at the first failure. Other environments are unaffected.`,
		Example: `  # Run every declared environment
  gridrun run

  # Run specific environments
  gridrun run py38-dj32 py39-dj40

  # Fan environments out four at a time
  gridrun run --parallel 4

  # Emit JSON lines for CI
  gridrun run --json

  # Re-run whenever the matrix file changes
  gridrun run --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, opts, args)
		},
	}

	cmd.Flags().IntVarP(&opts.Parallel, "parallel", "p", 0, "Max environments running at once (default from config)")
	cmd.Flags().BoolVar(&opts.JSONOutput, "json", false, "Output as JSON lines for progress tracking")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Re-run when the matrix file changes")

	return cmd
}

func runRun(cmd *cobra.Command, opts *RunOptions, args []string) error {
	ctx := cmd.Context()
	cfg := config.FromContext(ctx)
	logger := config.Logger(ctx)
	r := newRenderer(cmd)

	parallel := opts.Parallel
	if parallel <= 0 {
		parallel = cfg.Parallel
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	once := func(ctx context.Context) error {
		doc, err := loadDocument(cfg)
		if err != nil {
			return err
		}

		rn, err := runner.New(runner.Config{
			Doc:     doc,
			Store:   store,
			EnvRoot: cfg.EnvRoot,
			Logger:  logger,
			Stdout:  cmd.OutOrStdout(),
			Stderr:  cmd.ErrOrStderr(),
		})
		if err != nil {
			return err
		}

		names := args
		if len(names) == 0 {
			for _, e := range doc.Envs {
				names = append(names, e.Name)
			}
		}

		return executeRun(ctx, cmd, r, store, rn, names, parallel, opts.JSONOutput)
	}

	if opts.Watch {
		if err := once(ctx); err != nil {
			r.Errorf("run failed: %v\n", err)
		}
		return runner.Watch(ctx, cfg.MatrixFile, logger, func(ctx context.Context) error {
			err := once(ctx)
			if err != nil {
				r.Errorf("run failed: %v\n", err)
			}
			return err
		})
	}

	return once(ctx)
}

// executeRun runs the named environments and renders the outcome.
func executeRun(ctx context.Context, cmd *cobra.Command, r *output.Renderer, store state.Store, rn *runner.Runner, names []string, parallel int, jsonOut bool) error {
	startTime := time.Now()

	if jsonOut {
		output.EmitEvent(cmd.OutOrStdout(), output.RunEvent{
			Event:     "run_start",
			TotalEnvs: len(names),
		})
	} else {
		r.Textf("Running %d environment(s)...\n", len(names))
	}

	results, runErr := rn.RunEnvs(ctx, names, parallel)

	var passed, failed int
	for i, run := range results {
		if run == nil {
			failed++
			continue
		}

		if jsonOut {
			emitEnvEvents(cmd, store, run)
		} else {
			renderEnvResult(r, store, names[i], run)
		}

		if run.Status == state.RunStatusPassed {
			passed++
		} else {
			failed++
		}
	}

	elapsed := time.Since(startTime)
	if jsonOut {
		status := "passed"
		if failed > 0 {
			status = "failed"
		}
		output.EmitEvent(cmd.OutOrStdout(), output.RunEvent{
			Event:      "run_complete",
			Status:     status,
			TotalEnvs:  len(names),
			Passed:     passed,
			Failed:     failed,
			DurationMS: elapsed.Milliseconds(),
		})
	} else {
		r.Textf("\n%d passed, %d failed in %s\n", passed, failed, elapsed.Round(time.Millisecond))
	}

	return runErr
}

// renderEnvResult prints one environment's outcome in text mode.
func renderEnvResult(r *output.Renderer, store state.Store, name string, run *state.Run) {
	if run.Status == state.RunStatusPassed {
		r.Textf("%s  %s\n", r.Pass("PASS"), name)
		return
	}

	r.Textf("%s  %s: %s\n", r.Fail("FAIL"), name, run.Error)
	steps, err := store.StepRunsForRun(run.ID)
	if err != nil {
		return
	}
	for _, s := range steps {
		if s.Status == state.StepStatusFailed {
			r.Textf("      step %d (%s): %s %s\n", s.Index, s.Phase, s.Command,
				r.Dim(fmt.Sprintf("[exit %d]", s.ExitCode)))
		}
	}
}

// emitEnvEvents replays one environment's step history as JSON events.
func emitEnvEvents(cmd *cobra.Command, store state.Store, run *state.Run) {
	steps, err := store.StepRunsForRun(run.ID)
	if err == nil {
		for _, s := range steps {
			output.EmitEvent(cmd.OutOrStdout(), output.RunEvent{
				Event:       "step_complete",
				Environment: run.Environment,
				RunID:       run.ID,
				Step:        output.Int(s.Index),
				Phase:       s.Phase,
				Command:     s.Command,
				Status:      string(s.Status),
				ExitCode:    output.Int(s.ExitCode),
				DurationMS:  s.DurationMS,
				Error:       s.Error,
			})
		}
	}

	output.EmitEvent(cmd.OutOrStdout(), output.RunEvent{
		Event:       "env_complete",
		Environment: run.Environment,
		RunID:       run.ID,
		Status:      string(run.Status),
		Error:       run.Error,
	})
}
