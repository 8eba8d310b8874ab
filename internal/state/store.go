// Package state persists the environment cache and run history in SQLite.
// The environment cache maps an environment name to the fingerprint of its
// installed dependency set; it is an explicit store handed to the runner,
// never ambient global state.
package state

import "time"

// RunStatus is the lifecycle status of one environment run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusPassed  RunStatus = "passed"
	RunStatusFailed  RunStatus = "failed"
)

// StepStatus is the lifecycle status of one step within a run.
type StepStatus string

const (
	StepStatusPending StepStatus = "pending"
	StepStatusRunning StepStatus = "running"
	StepStatusPassed  StepStatus = "passed"
	StepStatusFailed  StepStatus = "failed"
	StepStatusSkipped StepStatus = "skipped"
)

// Step phases. The install phase precedes the command list.
const (
	PhaseInstall = "install"
	PhaseCommand = "command"
)

// Run is one environment's execution of the full command sequence.
type Run struct {
	ID          string
	Environment string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// StepRun is one command execution within a run. Index is the position in
// the fixed command sequence, install phase included.
type StepRun struct {
	ID          string
	RunID       string
	Index       int
	Phase       string
	Command     string
	Dir         string
	Status      StepStatus
	ExitCode    int
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
	DurationMS  int64
}

// EnvRecord is one cached environment: its axis tags and the fingerprint
// of the dependency set last installed into it.
type EnvRecord struct {
	Name        string
	RuntimeTag  string
	DepTag      string
	Fingerprint string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Store is the persistence interface used by the runner and the CLI.
type Store interface {
	// Runs
	CreateRun(env string) (*Run, error)
	GetRun(id string) (*Run, error)
	CompleteRun(id string, status RunStatus, errMsg string) error
	GetLatestRun(env string) (*Run, error)

	// Steps
	RecordStepRun(step *StepRun) error
	UpdateStepRun(id string, status StepStatus, exitCode int, errMsg string) error
	StepRunsForRun(runID string) ([]*StepRun, error)

	// Environment cache
	SaveEnvironment(env *EnvRecord) error
	GetEnvironment(name string) (*EnvRecord, error)
	ListEnvironments() ([]*EnvRecord, error)
	DeleteEnvironment(name string) error

	Close() error
}
