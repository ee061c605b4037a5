// Package cmd provides the root command and CLI setup for rigor.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"rigor.dev/pkg/rigor/internal/adapter"
	"rigor.dev/pkg/rigor/internal/controller"
	"rigor.dev/pkg/rigor/internal/selftest"
	"rigor.dev/pkg/rigor/internal/wire"
	wf "rigor.dev/pkg/rigor/internal/workflow"
)

var resultStore adapter.ResultStore
var localSuites *adapter.SuiteRegistry
var workflow wf.Workflow
var ui controller.UI

var hostFlag string
var portFlag int
var verboseFlag bool

func init() {
	configureRootFlags(rootCmd)

	// Initialize shared dependencies.
	ui = controller.NewUI(rootCmd, controller.IsTTY(os.Stdout))
	resultStore = adapter.NewResultStore()
	localSuites = adapter.NewSuiteRegistry()
	selftest.Register(localSuites)
	workflow = wf.NewWorkflow(connectClient, resultStore, ui)
}

const rootLongDescription = `Rigor runs test suites on a remote server and streams the results back.

Start a server with "rigor serve", then discover and run its tests from
any machine that can reach it. Connection settings come from rigor.yaml,
RIGOR_* environment variables or the --host and --port flags.`

// rootCmd represents the base command when called without any subcommands.
var rootCmd = baseRootCmd()

func baseRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rigor",
		Short: "Distributed test runner",
		Long:  rootLongDescription,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			configureLogger(viper.GetString(logFilenameKey), viper.GetBool(logVerboseKey))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
}

func newRootCmd() *cobra.Command {
	cmd := baseRootCmd()
	configureRootFlags(cmd)

	return cmd
}

func configureRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&hostFlag, hostFlagName, viper.GetString(serverHostKey), "server host")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(hostFlagName), serverHostKey)

	cmd.PersistentFlags().IntVarP(&portFlag, portFlagName, "p", viper.GetInt(serverPortKey), "server port")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(portFlagName), serverPortKey)

	cmd.PersistentFlags().BoolVarP(&verboseFlag, verboseFlagName, "v", viper.GetBool(logVerboseKey), "log at debug level")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(verboseFlagName), logVerboseKey)
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// connectClient dials the configured server. Local digests come from the
// suites compiled into this binary and from files under sources.root.
func connectClient(ctx context.Context) (wf.Client, error) {
	worker, err := adapter.NewClientWorker(transportConfig())
	if err != nil {
		return nil, err
	}

	hasher := adapter.NewLocalSourceHasher(viper.GetString(sourcesRootKey), localSuites)

	client := wire.NewClient(worker, wire.WithLocalHasher(hasher))
	if err := client.Start(ctx); err != nil {
		return nil, err
	}

	return client, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
