// Package commands implements the gridrun subcommands.
package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gridrun-labs/gridrun/internal/cli/config"
	"github.com/gridrun-labs/gridrun/internal/cli/output"
	"github.com/gridrun-labs/gridrun/internal/matrix"
	"github.com/gridrun-labs/gridrun/internal/state"
)

// loadDocument parses and validates the matrix file named by the config.
func loadDocument(cfg *config.Config) (*matrix.Document, error) {
	return matrix.ParseFile(cfg.MatrixFile)
}

// openStore opens the state database, creating its directory when needed.
func openStore(cfg *config.Config, logger *slog.Logger) (*state.SQLiteStore, error) {
	if dir := filepath.Dir(cfg.StatePath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	store := state.NewSQLiteStore(logger)
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, err
	}
	return store, nil
}

// newRenderer builds a renderer for a command from the active config.
func newRenderer(cmd *cobra.Command) *output.Renderer {
	cfg := config.FromContext(cmd.Context())
	return output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.Output))
}
