package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gridrun-labs/gridrun/internal/cli/config"
)

// NewCleanCommand creates the clean command.
func NewCleanCommand() *cobra.Command {
	var dirs bool

	cmd := &cobra.Command{
		Use:   "clean [environments...]",
		Short: "Drop cached environment fingerprints",
		Long: `Drop cached environment fingerprints so the next run repeats the install
phase. With --dirs the per-environment working directories are removed too.`,
		Example: `  # Drop every cached environment
  gridrun clean

  # Drop one environment, including its working directory
  gridrun clean py38-dj32 --dirs`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(cmd, args, dirs)
		},
	}

	cmd.Flags().BoolVar(&dirs, "dirs", false, "Also remove environment working directories")

	return cmd
}

func runClean(cmd *cobra.Command, names []string, dirs bool) error {
	cfg := config.FromContext(cmd.Context())
	logger := config.Logger(cmd.Context())
	r := newRenderer(cmd)

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if len(names) == 0 {
		cached, err := store.ListEnvironments()
		if err != nil {
			return err
		}
		for _, env := range cached {
			names = append(names, env.Name)
		}
	}

	for _, name := range names {
		if err := store.DeleteEnvironment(name); err != nil {
			return err
		}
		if dirs {
			if err := os.RemoveAll(filepath.Join(cfg.EnvRoot, name)); err != nil {
				return fmt.Errorf("failed to remove environment directory: %w", err)
			}
		}
		logger.Debug("dropped environment", "environment", name)
	}

	r.Textf("Dropped %d cached environment(s)\n", len(names))
	return r.Structured(struct {
		Dropped []string `json:"dropped" yaml:"dropped"`
	}{names})
}
