package cmd

import (
	"github.com/spf13/cobra"

	wf "rigor.dev/pkg/rigor/internal/workflow"
)

// discoverCmd represents the discover command.
var discoverCmd = newDiscoverCmd()

func newDiscoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "discover [sources...]",
		Aliases: []string{"list"},
		Short:   "List the tests the server can run",
		Long:    "List the tests the server discovers in the given sources, or in every source it knows.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return workflow.Discover(cmd.Context(), wf.DiscoverArgs{Sources: args})
		},
	}

	return cmd
}

func init() {
	rootCmd.AddCommand(discoverCmd)
}
