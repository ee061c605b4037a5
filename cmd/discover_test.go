package cmd

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"rigor.dev/pkg/rigor/internal/selftest"
	wf "rigor.dev/pkg/rigor/internal/workflow"
)

func TestDiscoverCmd(t *testing.T) {
	mockWorkflow := useMockWorkflow(t)
	cmd, _ := newTestRootCmd(t, newDiscoverCmd())

	mockWorkflow.On("Discover", mock.Anything, wf.DiscoverArgs{Sources: []string{selftest.MathSource}}).Return(nil)

	cmd.SetArgs([]string{"discover", selftest.MathSource})
	require.NoError(t, cmd.Execute())
}

func TestDiscoverCmd_ListAlias(t *testing.T) {
	mockWorkflow := useMockWorkflow(t)
	cmd, _ := newTestRootCmd(t, newDiscoverCmd())

	mockWorkflow.On("Discover", mock.Anything, mock.MatchedBy(func(args wf.DiscoverArgs) bool {
		return len(args.Sources) == 0
	})).Return(errors.New("connection refused"))

	cmd.SetArgs([]string{"list"})
	require.ErrorContains(t, cmd.Execute(), "connection refused")
}
