package commands

import (
	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := newRenderer(cmd)
			r.Textf("gridrun %s\n", version)
			return r.Structured(struct {
				Version string `json:"version" yaml:"version"`
			}{version})
		},
	}
}
