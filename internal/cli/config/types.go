// Package config provides configuration management for the gridrun CLI.
// Settings live in gridrun.yaml; the matrix file itself is the domain input
// and is parsed by internal/matrix, not here.
package config

// Config holds all CLI configuration options.
type Config struct {
	// MatrixFile is the path to the matrix file.
	MatrixFile string `koanf:"matrix_file"`
	// StatePath is the path to the SQLite state database.
	StatePath string `koanf:"state_path"`
	// EnvRoot is the directory holding per-environment working dirs.
	EnvRoot string `koanf:"env_root"`
	// Parallel bounds how many environments run at once.
	Parallel int `koanf:"parallel"`
	// Verbose enables debug logging.
	Verbose bool `koanf:"verbose"`
	// Output selects the render mode (auto|text|json|yaml).
	Output string `koanf:"output"`
}

// Default configuration values.
const (
	DefaultMatrixFile = "gridrun.ini"
	DefaultStateFile  = ".gridrun/state.db"
	DefaultEnvRoot    = ".gridrun/envs"
	DefaultParallel   = 1
	DefaultOutput     = "auto" // TTY=text, non-TTY=json
)
