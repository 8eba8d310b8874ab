package commands

import (
	"github.com/spf13/cobra"

	"github.com/gridrun-labs/gridrun/internal/cli/config"
	"github.com/gridrun-labs/gridrun/internal/matrix"
)

// NewDepsCommand creates the deps command.
func NewDepsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "deps <environment>",
		Short: "Show the resolved dependency list for one environment",
		Long: `Resolve an environment's dependency list: every base dependency plus the
single conditional pin selected by the environment's dependency-set tag.`,
		Example: `  gridrun deps py38-dj32`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeps(cmd, args[0])
		},
	}
}

func runDeps(cmd *cobra.Command, envName string) error {
	cfg := config.FromContext(cmd.Context())
	r := newRenderer(cmd)

	doc, err := loadDocument(cfg)
	if err != nil {
		return err
	}

	deps, err := doc.ResolveName(envName)
	if err != nil {
		return err
	}
	reqs := matrix.Requirements(deps)

	if err := r.Structured(struct {
		Environment string   `json:"environment" yaml:"environment"`
		Deps        []string `json:"deps" yaml:"deps"`
	}{envName, reqs}); err != nil {
		return err
	}

	for _, req := range reqs {
		r.Textf("%s\n", req)
	}
	return nil
}
