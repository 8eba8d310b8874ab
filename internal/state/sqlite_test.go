package state

import (
	"testing"

	"github.com/gridrun-labs/gridrun/internal/testutil"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(testutil.NewTestLogger(t))
	if err := store.Open(":memory:"); err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_OpenClose(t *testing.T) {
	store := NewSQLiteStore(nil)

	if err := store.Open(":memory:"); err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestSQLiteStore_Migrations(t *testing.T) {
	store := setupTestStore(t)

	tables := []string{"environments", "runs", "step_runs"}
	for _, table := range tables {
		rows, err := store.db.Query("SELECT 1 FROM " + table + " LIMIT 1")
		if err != nil {
			t.Errorf("table %s does not exist: %v", table, err)
		} else {
			rows.Close()
		}
	}
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore(nil)

	if _, err := store.CreateRun("py38-dj32"); err == nil {
		t.Error("expected error on unopened store")
	}
	if _, err := store.GetEnvironment("py38-dj32"); err == nil {
		t.Error("expected error on unopened store")
	}
}

// --- Run lifecycle ---

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	store := setupTestStore(t)

	run, err := store.CreateRun("py38-dj32")
	if err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	if run.ID == "" {
		t.Error("run ID should not be empty")
	}
	if run.Status != RunStatusRunning {
		t.Errorf("expected status running, got %s", run.Status)
	}

	if err := store.CompleteRun(run.ID, RunStatusPassed, ""); err != nil {
		t.Fatalf("failed to complete run: %v", err)
	}

	got, err := store.GetRun(run.ID)
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if got.Status != RunStatusPassed {
		t.Errorf("expected status passed, got %s", got.Status)
	}
	if got.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}
	if got.Error != "" {
		t.Errorf("expected empty error, got %q", got.Error)
	}
}

func TestSQLiteStore_CompleteRunWithError(t *testing.T) {
	store := setupTestStore(t)

	run, err := store.CreateRun("py38-dj32")
	if err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	if err := store.CompleteRun(run.ID, RunStatusFailed, "step 1 failed"); err != nil {
		t.Fatalf("failed to complete run: %v", err)
	}

	got, err := store.GetRun(run.ID)
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if got.Status != RunStatusFailed {
		t.Errorf("expected status failed, got %s", got.Status)
	}
	if got.Error != "step 1 failed" {
		t.Errorf("expected error message, got %q", got.Error)
	}
}

func TestSQLiteStore_CompleteRunNotFound(t *testing.T) {
	store := setupTestStore(t)

	if err := store.CompleteRun("nonexistent", RunStatusPassed, ""); err == nil {
		t.Error("expected error for unknown run")
	}
}

func TestSQLiteStore_GetLatestRun(t *testing.T) {
	store := setupTestStore(t)

	latest, err := store.GetLatestRun("py38-dj32")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if latest != nil {
		t.Error("expected nil for environment with no runs")
	}

	first, err := store.CreateRun("py38-dj32")
	if err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	_ = store.CompleteRun(first.ID, RunStatusFailed, "boom")

	second, err := store.CreateRun("py38-dj32")
	if err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	latest, err = store.GetLatestRun("py38-dj32")
	if err != nil {
		t.Fatalf("failed to get latest run: %v", err)
	}
	if latest == nil || latest.ID != second.ID {
		t.Errorf("expected latest run %s, got %+v", second.ID, latest)
	}
}

// --- Step runs ---

func TestSQLiteStore_StepRuns(t *testing.T) {
	store := setupTestStore(t)

	run, err := store.CreateRun("py38-dj32")
	if err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	steps := []*StepRun{
		{RunID: run.ID, Index: 0, Phase: PhaseInstall, Command: "python -m pip install pytest", Status: StepStatusPending},
		{RunID: run.ID, Index: 1, Phase: PhaseCommand, Command: "python -m pytest", Dir: "src", Status: StepStatusPending},
	}
	for _, step := range steps {
		if err := store.RecordStepRun(step); err != nil {
			t.Fatalf("failed to record step: %v", err)
		}
		if step.ID == "" {
			t.Error("step ID should be assigned on record")
		}
	}

	if err := store.UpdateStepRun(steps[0].ID, StepStatusPassed, 0, ""); err != nil {
		t.Fatalf("failed to update step: %v", err)
	}
	if err := store.UpdateStepRun(steps[1].ID, StepStatusFailed, 2, "exit status 2"); err != nil {
		t.Fatalf("failed to update step: %v", err)
	}

	got, err := store.StepRunsForRun(run.ID)
	if err != nil {
		t.Fatalf("failed to load steps: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(got))
	}
	if got[0].Index != 0 || got[1].Index != 1 {
		t.Error("steps should be ordered by index")
	}
	if got[0].Status != StepStatusPassed {
		t.Errorf("step 0: expected passed, got %s", got[0].Status)
	}
	if got[1].Status != StepStatusFailed || got[1].ExitCode != 2 {
		t.Errorf("step 1: expected failed with exit 2, got %s/%d", got[1].Status, got[1].ExitCode)
	}
	if got[1].Error != "exit status 2" {
		t.Errorf("step 1: expected error recorded, got %q", got[1].Error)
	}
	if got[1].Dir != "src" {
		t.Errorf("step 1: expected dir preserved, got %q", got[1].Dir)
	}
	if got[0].CompletedAt == nil {
		t.Error("step 0: expected completed_at to be set")
	}
}

func TestSQLiteStore_UpdateStepRunNotFound(t *testing.T) {
	store := setupTestStore(t)

	if err := store.UpdateStepRun("nonexistent", StepStatusPassed, 0, ""); err == nil {
		t.Error("expected error for unknown step")
	}
}

// --- Environment cache ---

func TestSQLiteStore_EnvironmentCache(t *testing.T) {
	store := setupTestStore(t)

	env, err := store.GetEnvironment("py38-dj32")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env != nil {
		t.Error("expected nil for uncached environment")
	}

	record := &EnvRecord{
		Name:        "py38-dj32",
		RuntimeTag:  "py38",
		DepTag:      "dj32",
		Fingerprint: "abc123",
	}
	if err := store.SaveEnvironment(record); err != nil {
		t.Fatalf("failed to save environment: %v", err)
	}

	got, err := store.GetEnvironment("py38-dj32")
	if err != nil {
		t.Fatalf("failed to get environment: %v", err)
	}
	if got == nil {
		t.Fatal("expected cached environment")
	}
	if got.Fingerprint != "abc123" || got.RuntimeTag != "py38" || got.DepTag != "dj32" {
		t.Errorf("unexpected record: %+v", got)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}

	// Upsert replaces the fingerprint and keeps created_at.
	record.Fingerprint = "def456"
	if err := store.SaveEnvironment(record); err != nil {
		t.Fatalf("failed to update environment: %v", err)
	}
	updated, err := store.GetEnvironment("py38-dj32")
	if err != nil {
		t.Fatalf("failed to get environment: %v", err)
	}
	if updated.Fingerprint != "def456" {
		t.Errorf("expected updated fingerprint, got %q", updated.Fingerprint)
	}
	if !updated.CreatedAt.Equal(got.CreatedAt) {
		t.Error("created_at must survive upsert")
	}
}

func TestSQLiteStore_ListAndDeleteEnvironments(t *testing.T) {
	store := setupTestStore(t)

	for _, name := range []string{"py39-dj40", "py38-dj32"} {
		if err := store.SaveEnvironment(&EnvRecord{Name: name, Fingerprint: "fp"}); err != nil {
			t.Fatalf("failed to save environment: %v", err)
		}
	}

	envs, err := store.ListEnvironments()
	if err != nil {
		t.Fatalf("failed to list environments: %v", err)
	}
	if len(envs) != 2 {
		t.Fatalf("expected 2 environments, got %d", len(envs))
	}
	if envs[0].Name != "py38-dj32" || envs[1].Name != "py39-dj40" {
		t.Error("environments should be ordered by name")
	}

	if err := store.DeleteEnvironment("py38-dj32"); err != nil {
		t.Fatalf("failed to delete environment: %v", err)
	}
	envs, _ = store.ListEnvironments()
	if len(envs) != 1 {
		t.Errorf("expected 1 environment after delete, got %d", len(envs))
	}

	// Deleting an unknown environment is not an error.
	if err := store.DeleteEnvironment("nope"); err != nil {
		t.Errorf("unexpected error deleting unknown environment: %v", err)
	}
}
