package cmd

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	wf "rigor.dev/pkg/rigor/internal/workflow"
)

// viewCmd represents the view command.
var viewCmd = newViewCmd()

func newViewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view [report]",
		Short: "View a saved run report",
		Long:  "View a run report saved by \"rigor run --report\". Defaults to report.output.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report := viper.GetString(reportOutputKey)
			if len(args) == 1 {
				report = args[0]
			}

			if report == "" {
				return errors.New("no report given and report.output is not set")
			}

			return workflow.View(cmd.Context(), wf.ViewArgs{Report: report})
		},
	}

	return cmd
}

func init() {
	rootCmd.AddCommand(viewCmd)
}
