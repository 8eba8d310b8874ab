package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gridrun-labs/gridrun/internal/cli/config"
	"github.com/gridrun-labs/gridrun/internal/state"
)

// envListing is the structured form of one environment row.
type envListing struct {
	Name        string   `json:"name" yaml:"name"`
	Runtime     string   `json:"runtime" yaml:"runtime"`
	DepTag      string   `json:"dep_tag" yaml:"dep_tag"`
	Deps        []string `json:"deps" yaml:"deps"`
	Cached      bool     `json:"cached" yaml:"cached"`
	LastStatus  string   `json:"last_status,omitempty" yaml:"last_status,omitempty"`
	LastStarted string   `json:"last_started,omitempty" yaml:"last_started,omitempty"`
}

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List declared environments and their last run status",
		Example: `  # List all environments
  gridrun list

  # List environments as JSON
  gridrun list --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd)
		},
	}
}

func runList(cmd *cobra.Command) error {
	cfg := config.FromContext(cmd.Context())
	logger := config.Logger(cmd.Context())
	r := newRenderer(cmd)

	doc, err := loadDocument(cfg)
	if err != nil {
		return err
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	var listings []envListing
	for _, env := range doc.Envs {
		deps, err := doc.Resolve(env)
		if err != nil {
			return err
		}

		listing := envListing{
			Name:    env.Name,
			Runtime: runtimeLabel(doc.Runtimes, env.RuntimeTag),
			DepTag:  env.DepTag,
		}
		for _, d := range deps {
			listing.Deps = append(listing.Deps, d.String())
		}

		if cached, err := store.GetEnvironment(env.Name); err == nil && cached != nil && cached.Fingerprint != "" {
			listing.Cached = true
		}
		if last, err := store.GetLatestRun(env.Name); err == nil && last != nil {
			listing.LastStatus = string(last.Status)
			listing.LastStarted = last.StartedAt.Format("2006-01-02 15:04:05")
		}

		listings = append(listings, listing)
	}

	if err := r.Structured(listings); err != nil {
		return err
	}

	rows := make([][]string, len(listings))
	for i, l := range listings {
		status := l.LastStatus
		switch state.RunStatus(status) {
		case state.RunStatusPassed:
			status = r.Pass(status)
		case state.RunStatusFailed:
			status = r.Fail(status)
		case "":
			status = r.Dim("never run")
		}

		cached := ""
		if l.Cached {
			cached = "yes"
		}

		rows[i] = []string{l.Name, l.Runtime, fmt.Sprintf("%d", len(l.Deps)), cached, status, l.LastStarted}
	}
	r.Table([]string{"ENVIRONMENT", "RUNTIME", "DEPS", "CACHED", "LAST RUN", "STARTED"}, rows)

	return nil
}

// runtimeLabel shows the mapped executable when one is declared.
func runtimeLabel(runtimes map[string]string, tag string) string {
	if exe, ok := runtimes[tag]; ok {
		return fmt.Sprintf("%s (%s)", tag, exe)
	}
	return tag
}
