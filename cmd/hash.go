package cmd

import (
	"github.com/spf13/cobra"

	wf "rigor.dev/pkg/rigor/internal/workflow"
)

// hashCmd represents the hash command.
var hashCmd = newHashCmd()

func newHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <source> [sources...]",
		Short: "Compare local and server digests of sources",
		Long: `Compare the digest of each source on this machine with the server's.
A source is either a suite compiled into rigor or a file under sources.root.
Exits with an error when any digest differs.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return workflow.CheckHash(cmd.Context(), wf.HashArgs{Sources: args})
		},
	}
}

func init() {
	rootCmd.AddCommand(hashCmd)
}
