package state

import (
	"database/sql"
	"fmt"
	"time"
)

// --- Run operations ---

// CreateRun creates a new run for an environment, in the running state.
func (s *SQLiteStore) CreateRun(env string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &Run{
		ID:          generateID(),
		Environment: env,
		Status:      RunStatusRunning,
		StartedAt:   time.Now().UTC(),
	}

	_, err := s.db.Exec(
		`INSERT INTO runs (id, environment, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Environment, run.Status, run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	return run, nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(id string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &Run{}
	var completedAt sql.NullTime
	var errMsg sql.NullString

	err := s.db.QueryRow(
		`SELECT id, environment, status, started_at, completed_at, error FROM runs WHERE id = ?`,
		id,
	).Scan(&run.ID, &run.Environment, &run.Status, &run.StartedAt, &completedAt, &errMsg)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	if errMsg.Valid {
		run.Error = errMsg.String
	}

	return run, nil
}

// CompleteRun marks a run as completed with the given status.
func (s *SQLiteStore) CompleteRun(id string, status RunStatus, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	now := time.Now().UTC()
	var errorPtr *string
	if errMsg != "" {
		errorPtr = &errMsg
	}

	result, err := s.db.Exec(
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		status, now, errorPtr, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("run not found: %s", id)
	}

	return nil
}

// GetLatestRun retrieves the most recent run for an environment.
// Returns nil without error when the environment has never run.
func (s *SQLiteStore) GetLatestRun(env string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &Run{}
	var completedAt sql.NullTime
	var errMsg sql.NullString

	err := s.db.QueryRow(
		`SELECT id, environment, status, started_at, completed_at, error
		 FROM runs WHERE environment = ? ORDER BY started_at DESC LIMIT 1`,
		env,
	).Scan(&run.ID, &run.Environment, &run.Status, &run.StartedAt, &completedAt, &errMsg)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}

	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	if errMsg.Valid {
		run.Error = errMsg.String
	}

	return run, nil
}

// --- Step run operations ---

// RecordStepRun records a new step execution. The ID and start time are
// assigned here when unset.
func (s *SQLiteStore) RecordStepRun(step *StepRun) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	if step.ID == "" {
		step.ID = generateID()
	}
	if step.StartedAt.IsZero() {
		step.StartedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO step_runs (id, run_id, step_index, phase, command, dir, status, exit_code, started_at, error, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		step.ID, step.RunID, step.Index, step.Phase, step.Command, step.Dir, step.Status, step.ExitCode, step.StartedAt, step.Error, step.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("failed to record step run: %w", err)
	}

	return nil
}

// UpdateStepRun updates the status of a step run and records its duration.
func (s *SQLiteStore) UpdateStepRun(id string, status StepStatus, exitCode int, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	now := time.Now().UTC()
	var errorPtr *string
	if errMsg != "" {
		errorPtr = &errMsg
	}

	var startedAt time.Time
	err := s.db.QueryRow(`SELECT started_at FROM step_runs WHERE id = ?`, id).Scan(&startedAt)
	if err == sql.ErrNoRows {
		return fmt.Errorf("step run not found: %s", id)
	}
	if err != nil {
		return fmt.Errorf("failed to get step run start time: %w", err)
	}

	durationMS := now.Sub(startedAt).Milliseconds()

	_, err = s.db.Exec(
		`UPDATE step_runs SET status = ?, exit_code = ?, completed_at = ?, error = ?, duration_ms = ? WHERE id = ?`,
		status, exitCode, now, errorPtr, durationMS, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update step run: %w", err)
	}

	return nil
}

// StepRunsForRun retrieves all step runs for a run, in sequence order.
func (s *SQLiteStore) StepRunsForRun(runID string) ([]*StepRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT id, run_id, step_index, phase, command, dir, status, exit_code, started_at, completed_at, error, duration_ms
		 FROM step_runs WHERE run_id = ? ORDER BY step_index`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get step runs: %w", err)
	}
	defer rows.Close()

	var steps []*StepRun
	for rows.Next() {
		sr := &StepRun{}
		var completedAt sql.NullTime
		var errMsg sql.NullString

		err := rows.Scan(&sr.ID, &sr.RunID, &sr.Index, &sr.Phase, &sr.Command, &sr.Dir, &sr.Status, &sr.ExitCode, &sr.StartedAt, &completedAt, &errMsg, &sr.DurationMS)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step run: %w", err)
		}

		if completedAt.Valid {
			sr.CompletedAt = &completedAt.Time
		}
		if errMsg.Valid {
			sr.Error = errMsg.String
		}
		steps = append(steps, sr)
	}

	return steps, rows.Err()
}
