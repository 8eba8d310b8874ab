package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// StepError reports a command that exited non-zero: the environment's
// terminal failure, local to that environment's run.
type StepError struct {
	Env      string
	Index    int
	Phase    string
	Command  string
	ExitCode int
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("environment %s: step %d (%s) failed with exit code %d: %s",
		e.Env, e.Index, e.Phase, e.ExitCode, e.Command)
}

func (e *StepError) Unwrap() error { return e.Err }

// execStep runs one step as a subprocess. The working directory is the
// step's declared dir (relative to the project root) or the project root
// itself. Returns the subprocess exit code alongside any error.
func (r *Runner) execStep(ctx context.Context, envDir, envName string, step preparedStep) (int, error) {
	if len(step.argv) == 0 {
		return -1, fmt.Errorf("empty argv")
	}

	cmd := exec.CommandContext(ctx, step.argv[0], step.argv[1:]...)
	cmd.Dir = r.stepDir(step.dir)
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr
	cmd.Env = append(os.Environ(),
		"GRIDRUN_ENV="+envName,
		"GRIDRUN_ENVDIR="+envDir,
	)

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), err
	}
	// Startup failure (binary not found, bad dir): no exit code to report.
	return -1, err
}

// stepDir resolves a step's working directory against the project root.
func (r *Runner) stepDir(dir string) string {
	if dir == "" {
		return r.projectDir
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(r.projectDir, dir)
}

// renderArgv substitutes placeholders in an argv template. A bare {deps}
// token expands in place to the resolved requirement list; {runtime} and
// {envdir} substitute inside tokens.
func renderArgv(template []string, vars map[string]string, deps []string) []string {
	argv := make([]string, 0, len(template)+len(deps))
	for _, tok := range template {
		if tok == "{deps}" {
			argv = append(argv, deps...)
			continue
		}
		for placeholder, value := range vars {
			tok = strings.ReplaceAll(tok, placeholder, value)
		}
		argv = append(argv, tok)
	}
	return argv
}
