package cmd

import (
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	wf "rigor.dev/pkg/rigor/internal/workflow"
)

func TestViewCmd(t *testing.T) {
	mockWorkflow := useMockWorkflow(t)
	cmd, _ := newTestRootCmd(t, newViewCmd())

	mockWorkflow.On("View", mock.Anything, wf.ViewArgs{Report: "reports/last.yaml"}).Return(nil)

	cmd.SetArgs([]string{"view", "reports/last.yaml"})
	require.NoError(t, cmd.Execute())
}

func TestViewCmd_DefaultsToConfiguredReport(t *testing.T) {
	mockWorkflow := useMockWorkflow(t)
	cmd, _ := newTestRootCmd(t, newViewCmd())
	t.Setenv("RIGOR_REPORT_OUTPUT", "configured.yaml")

	mockWorkflow.On("View", mock.Anything, wf.ViewArgs{Report: "configured.yaml"}).Return(nil)

	cmd.SetArgs([]string{"view"})
	require.NoError(t, cmd.Execute())
}

func TestViewCmd_TooManyArgs(t *testing.T) {
	useMockWorkflow(t)
	cmd, _ := newTestRootCmd(t, newViewCmd())

	cmd.SetArgs([]string{"view", "a.yaml", "b.yaml"})
	require.Error(t, cmd.Execute())
}
