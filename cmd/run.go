package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	m "rigor.dev/pkg/rigor/internal/model"
	wf "rigor.dev/pkg/rigor/internal/workflow"
)

const runLongDescription = `Run tests on the server and stream their results.

Without --id every test of the given sources runs (no sources means every
source the server knows). Tests are selected with --id, either as
SOURCE#NAME or by the full id stored in a saved report, for example

  rigor run --id 'selftest/math#math.ArithmeticTest.Adds'

Ctrl-C asks the server to cancel the run; the test in flight still finishes.`

var runIDsFlag []string
var runReportFlag string
var runVerifyHashFlag bool

// runCmd represents the run command.
var runCmd = newRunCmd()

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [sources...]",
		Short: "Run tests on the server",
		Long:  runLongDescription,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseTestIDs(runIDsFlag)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			report := runReportFlag
			if !cmd.Flags().Changed(reportFlagName) {
				report = viper.GetString(reportOutputKey)
			}

			return workflow.Run(ctx, wf.RunArgs{
				Sources:    args,
				IDs:        ids,
				Report:     report,
				VerifyHash: runVerifyHashFlag,
				Server:     transportConfig().Address(),
				SpillDir:   viper.GetString(spillDirKey),
			})
		},
	}

	configureRunFlags(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func configureRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&runIDsFlag, idFlagName, nil, "test to run, as a full id or SOURCE#NAME (can be repeated)")
	cmd.Flags().StringVarP(&runReportFlag, reportFlagName, "r", "", "save a YAML report of the run to this file (default report.output)")
	cmd.Flags().BoolVar(&runVerifyHashFlag, verifyHashFlagName, false, "refuse to run when a source differs from the server's copy")
}

// parseTestIDs accepts full node ids and SOURCE#NAME references.
func parseTestIDs(args []string) ([]m.NodeID, error) {
	ids := make([]m.NodeID, 0, len(args))

	for _, arg := range args {
		if source, name, ok := strings.Cut(arg, "#"); ok {
			if source == "" || name == "" {
				return nil, fmt.Errorf("invalid test reference %q: want SOURCE#NAME", arg)
			}

			ids = append(ids, m.NewNodeID(source, name))

			continue
		}

		id, err := m.ParseNodeID(arg)
		if err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	return ids, nil
}
