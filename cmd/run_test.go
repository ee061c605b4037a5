package cmd

import (
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	m "rigor.dev/pkg/rigor/internal/model"
	"rigor.dev/pkg/rigor/internal/selftest"
	wf "rigor.dev/pkg/rigor/internal/workflow"
)

func TestRunCmd_Sources(t *testing.T) {
	mockWorkflow := useMockWorkflow(t)
	cmd, _ := newTestRootCmd(t, newRunCmd())

	mockWorkflow.On("Run", mock.Anything, mock.MatchedBy(func(args wf.RunArgs) bool {
		return len(args.Sources) == 2 &&
			args.Sources[0] == selftest.MathSource &&
			args.Sources[1] == selftest.StringSource &&
			len(args.IDs) == 0 &&
			!args.VerifyHash &&
			args.Server != ""
	})).Return(nil)

	cmd.SetArgs([]string{"run", selftest.MathSource, selftest.StringSource})
	require.NoError(t, cmd.Execute())
}

func TestRunCmd_IDsReportAndVerify(t *testing.T) {
	mockWorkflow := useMockWorkflow(t)
	cmd, _ := newTestRootCmd(t, newRunCmd())

	adds := m.NewNodeID(selftest.MathSource, "math.ArithmeticTest.Adds")

	mockWorkflow.On("Run", mock.Anything, mock.MatchedBy(func(args wf.RunArgs) bool {
		return len(args.IDs) == 2 &&
			args.IDs[0] == adds &&
			args.IDs[1] == adds &&
			args.Report == "out/run.yaml" &&
			args.VerifyHash
	})).Return(nil)

	cmd.SetArgs([]string{
		"run",
		"--id", "selftest/math#math.ArithmeticTest.Adds",
		"--id", adds.String(),
		"--report", "out/run.yaml",
		"--verify-hash",
	})
	require.NoError(t, cmd.Execute())
}

func TestRunCmd_ServerAddressFromFlags(t *testing.T) {
	mockWorkflow := useMockWorkflow(t)
	cmd, _ := newTestRootCmd(t, newRunCmd())

	mockWorkflow.On("Run", mock.Anything, mock.MatchedBy(func(args wf.RunArgs) bool {
		return args.Server == "ci.local:9200"
	})).Return(nil)

	cmd.SetArgs([]string{"run", "--host", "ci.local", "--port", "9200"})
	require.NoError(t, cmd.Execute())
}

func TestRunCmd_InvalidIDDoesNotRun(t *testing.T) {
	useMockWorkflow(t)
	cmd, _ := newTestRootCmd(t, newRunCmd())

	cmd.SetArgs([]string{"run", "--id", "not-an-id"})
	require.Error(t, cmd.Execute())
}

func TestRunCmd_PropagatesFailure(t *testing.T) {
	mockWorkflow := useMockWorkflow(t)
	cmd, _ := newTestRootCmd(t, newRunCmd())

	mockWorkflow.On("Run", mock.Anything, mock.Anything).Return(wf.ErrTestsFailed)

	cmd.SetArgs([]string{"run", selftest.DemoSource})
	require.ErrorIs(t, cmd.Execute(), wf.ErrTestsFailed)
}
