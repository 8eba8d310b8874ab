package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridrun-labs/gridrun/internal/cli/config"
)

const testMatrix = `[grid]
envs = py38-dj{32,40}
install_command = true

[deps]
pytest
dj32: Django>=3.2,<3.3
dj40: Django>=4.0,<4.1

[commands]
true
`

// writeTestProject lays out a matrix file and returns a config pointing at
// it, with state and environments under the same temp dir.
func writeTestProject(t *testing.T, matrix string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "gridrun.ini")
	require.NoError(t, os.WriteFile(path, []byte(matrix), 0644))

	return &config.Config{
		MatrixFile: path,
		StatePath:  filepath.Join(dir, "state.db"),
		EnvRoot:    filepath.Join(dir, "envs"),
		Parallel:   1,
		Output:     "json",
	}
}

func executeCommand(t *testing.T, cfg *config.Config, newCmd func() *cobra.Command, args ...string) (string, error) {
	t.Helper()
	cmd := newCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(config.NewContext(context.Background(), cfg))
	return out.String(), err
}

func TestRunCommand_JSONEvents(t *testing.T) {
	cfg := writeTestProject(t, testMatrix)

	out, err := executeCommand(t, cfg, NewRunCommand, "--json")
	require.NoError(t, err)

	var events []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		var event map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &event), "line %q", line)
		events = append(events, event)
	}

	assert.Equal(t, "run_start", events[0]["event"])
	assert.Equal(t, "run_complete", events[len(events)-1]["event"])
	assert.Equal(t, "passed", events[len(events)-1]["status"])

	var envsSeen []string
	var stepsSeen []float64
	for _, event := range events {
		switch event["event"] {
		case "env_complete":
			envsSeen = append(envsSeen, event["environment"].(string))
			assert.Equal(t, "passed", event["status"])
		case "step_complete":
			// Every step event carries its index, including step 0.
			step, ok := event["step"]
			require.True(t, ok, "step_complete missing step index: %v", event)
			stepsSeen = append(stepsSeen, step.(float64))
		}
	}
	assert.ElementsMatch(t, []string{"py38-dj32", "py38-dj40"}, envsSeen)
	assert.Contains(t, stepsSeen, float64(0))
}

func TestRunCommand_FailurePropagates(t *testing.T) {
	cfg := writeTestProject(t, `[grid]
envs = py38-dj32
install_command = true

[deps]
dj32: Django>=3.2

[commands]
false
`)

	out, err := executeCommand(t, cfg, NewRunCommand, "--json")
	require.Error(t, err)
	assert.Contains(t, out, `"status":"failed"`)
}

func TestRunCommand_SelectsNamedEnvironments(t *testing.T) {
	cfg := writeTestProject(t, testMatrix)

	out, err := executeCommand(t, cfg, NewRunCommand, "--json", "py38-dj40")
	require.NoError(t, err)
	assert.Contains(t, out, "py38-dj40")
	assert.NotContains(t, out, `"environment":"py38-dj32"`)
}

func TestDepsCommand(t *testing.T) {
	cfg := writeTestProject(t, testMatrix)

	out, err := executeCommand(t, cfg, NewDepsCommand, "py38-dj32")
	require.NoError(t, err)

	var payload struct {
		Environment string   `json:"environment"`
		Deps        []string `json:"deps"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Equal(t, "py38-dj32", payload.Environment)
	assert.Equal(t, []string{"pytest", "Django>=3.2,<3.3"}, payload.Deps)
}

func TestDepsCommand_UnknownEnvironment(t *testing.T) {
	cfg := writeTestProject(t, testMatrix)

	_, err := executeCommand(t, cfg, NewDepsCommand, "py99-dj32")
	require.Error(t, err)
}

func TestListCommand(t *testing.T) {
	cfg := writeTestProject(t, testMatrix)

	out, err := executeCommand(t, cfg, NewListCommand)
	require.NoError(t, err)

	var listings []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &listings))
	require.Len(t, listings, 2)
	assert.Equal(t, "py38-dj32", listings[0]["name"])
	assert.Equal(t, false, listings[0]["cached"])
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{Output: "json"}

	out, err := executeCommand(t, cfg, NewInitCommand, dir)
	require.NoError(t, err)
	assert.Contains(t, out, "gridrun.ini")

	if _, err := os.Stat(filepath.Join(dir, "gridrun.ini")); err != nil {
		t.Fatalf("expected scaffolded matrix file: %v", err)
	}

	// A second init without --force refuses to overwrite.
	_, err = executeCommand(t, cfg, NewInitCommand, dir)
	require.Error(t, err)

	_, err = executeCommand(t, cfg, NewInitCommand, dir, "--force")
	require.NoError(t, err)
}
