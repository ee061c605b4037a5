package cmd

import (
	"github.com/spf13/cobra"

	"rigor.dev/pkg/rigor/internal/wire"
	wf "rigor.dev/pkg/rigor/internal/workflow"
)

var callTargetFlag string
var callCtorArgsFlag []string

// callCmd represents the call command.
var callCmd = newCallCmd()

func newCallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call <method> [args...]",
		Short: "Invoke a function registered on the server",
		Long: `Invoke a function registered on the server without waiting for it.

With --target the method is looked up on that target, which is first built
from the --ctor-arg values. Arguments are sent as strings.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return workflow.Call(cmd.Context(), wf.CallArgs{Spec: wire.CallSpec{
				Target:          callTargetFlag,
				Method:          args[0],
				ConstructorArgs: toAnySlice(callCtorArgsFlag),
				Args:            toAnySlice(args[1:]),
			}})
		},
	}

	cmd.Flags().StringVarP(&callTargetFlag, targetFlagName, "t", "", "target the method belongs to")
	cmd.Flags().StringArrayVar(&callCtorArgsFlag, ctorArgFlagName, nil, "argument for the target's constructor (can be repeated)")

	return cmd
}

func init() {
	rootCmd.AddCommand(callCmd)
}

func toAnySlice(values []string) []any {
	if len(values) == 0 {
		return nil
	}

	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}

	return out
}
