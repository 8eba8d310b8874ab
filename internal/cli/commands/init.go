package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const starterMatrix = `# gridrun matrix file
[grid]
envs = py{38,39}-dj{32,40}

[runtimes]
py38: python3.8
py39: python3.9

[deps]
pytest>=7
dj32: Django>=3.2,<3.3
dj40: Django>=4.0,<4.1

[commands]
{runtime} -m pytest tests
`

const starterSettings = `# gridrun settings (flags and GRIDRUN_* env vars take precedence)
matrix_file: gridrun.ini
state_path: .gridrun/state.db
env_root: .gridrun/envs
parallel: 1
output: auto
`

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Scaffold a starter matrix file",
		Example: `  # Initialize in the current directory
  gridrun init

  # Initialize in a new directory
  gridrun init my-project

  # Overwrite an existing matrix file
  gridrun init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(cmd, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing matrix file")

	return cmd
}

func runInit(cmd *cobra.Command, dir string, force bool) error {
	r := newRenderer(cmd)

	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	path := filepath.Join(dir, "gridrun.ini")
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	}

	if err := os.WriteFile(path, []byte(starterMatrix), 0644); err != nil {
		return fmt.Errorf("failed to write matrix file: %w", err)
	}
	created := []string{path}

	// Settings file is only scaffolded when absent; it is optional.
	settingsPath := filepath.Join(dir, "gridrun.yaml")
	if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
		if err := os.WriteFile(settingsPath, []byte(starterSettings), 0644); err != nil {
			return fmt.Errorf("failed to write settings file: %w", err)
		}
		created = append(created, settingsPath)
	}

	for _, p := range created {
		r.Textf("Created %s\n", p)
	}
	return r.Structured(struct {
		Created []string `json:"created" yaml:"created"`
	}{created})
}
