package output

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// RunEvent is one JSON-lines progress event emitted by `gridrun run --json`
// for CI integration.
type RunEvent struct {
	Event       string `json:"event"` // run_start, step_complete, env_complete, run_complete
	Timestamp   string `json:"timestamp"`
	Environment string `json:"environment,omitempty"`
	RunID       string `json:"run_id,omitempty"`
	Step        *int   `json:"step,omitempty"`
	Phase       string `json:"phase,omitempty"`
	Command     string `json:"command,omitempty"`
	Status      string `json:"status,omitempty"`
	ExitCode    *int   `json:"exit_code,omitempty"`
	DurationMS  int64  `json:"duration_ms,omitempty"`
	Error       string `json:"error,omitempty"`
	TotalEnvs   int    `json:"total_envs,omitempty"`
	Passed      int    `json:"passed,omitempty"`
	Failed      int    `json:"failed,omitempty"`
}

// Int boxes a step index or exit code so a legitimate zero survives
// omitempty.
func Int(v int) *int { return &v }

// EmitEvent writes one event as a JSON line.
func EmitEvent(w io.Writer, event RunEvent) {
	event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	data, _ := json.Marshal(event)
	fmt.Fprintln(w, string(data))
}
