package controller

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rigor.dev/pkg/rigor/internal/domain"
	m "rigor.dev/pkg/rigor/internal/model"
)

func TestTUI_DisplayTestCasesPrintsWhenNotATerminal(t *testing.T) {
	out := &bytes.Buffer{}
	ui := NewTUI(out)

	require.NoError(t, ui.DisplayTestCases(context.Background(), []m.TestCase{sampleCase("Adds"), sampleCase("Fails")}))

	text := out.String()
	assert.Contains(t, text, "discovered tests")
	assert.Contains(t, text, "calc.CalcTest.Fails")
	assert.Contains(t, text, "Total: 2 test(s) across 1 source(s)")
	assert.NotContains(t, text, "Page")
}

func TestTUI_DisplayReport(t *testing.T) {
	out := &bytes.Buffer{}
	ui := NewTUI(out)

	report := m.RunReport{RunID: 4, Server: "srv", Cancelled: true, Results: []m.TestResult{
		sampleResult("Adds", m.OutcomePassed),
		sampleResult("Fails", m.OutcomeFailed),
	}}

	require.NoError(t, ui.DisplayReport(context.Background(), report))

	text := out.String()
	assert.Contains(t, text, "run 4 against srv")
	assert.Contains(t, text, "1 passed")
	assert.Contains(t, text, "1 failed")
	assert.Contains(t, text, "run cancelled")
}

func TestTUI_CloseWithoutStart(t *testing.T) {
	ui := NewTUI(&bytes.Buffer{})

	require.NoError(t, ui.Start(context.Background(), WithViewMode()))
	ui.DisplayTestResult(context.Background(), sampleResult("Adds", m.OutcomePassed))
	ui.Close(context.Background())
	ui.Wait(context.Background())
}

func TestRenderSummary(t *testing.T) {
	text := renderSummary(domain.Summary{Total: 3, Passed: 2, NotFound: 1}, m.RunSummary{})

	assert.Contains(t, text, "2 passed")
	assert.Contains(t, text, "1 not found")
	assert.Contains(t, text, "Pass rate: 100.00% of 3 result(s)")
	assert.NotContains(t, text, "cancelled")
}

func TestRunModel_Progress(t *testing.T) {
	var model tea.Model = newRunModel(nil)

	model, _ = model.Update(runStartedMsg{runID: 2, expected: 4})
	model, _ = model.Update(testStartedMsg{result: sampleResult("Adds", m.OutcomeNone)})

	view := model.View()
	assert.Contains(t, view, "rigor run 2")
	assert.Contains(t, view, "0/4")
	assert.Contains(t, view, "calc.CalcTest.Adds")

	failed := sampleResult("Fails", m.OutcomeFailed)
	failed.Message = "expected 1\nmore"

	model, _ = model.Update(testResultMsg{result: sampleResult("Adds", m.OutcomePassed)})
	model, _ = model.Update(testResultMsg{result: failed})

	rm := model.(runModel)
	assert.Equal(t, 2, rm.received)
	assert.InDelta(t, 0.5, rm.percent(), 1e-9)
	require.Len(t, rm.failures, 1)
	assert.Contains(t, rm.failures[0], "expected 1")
	assert.NotContains(t, rm.failures[0], "more")

	model, cmd := model.Update(runFinishedMsg{})
	assert.NotNil(t, cmd)
	assert.True(t, model.(runModel).finished)
	assert.NotContains(t, model.View(), "ctrl+c")
}

func TestRunModel_KeepsRecentFailures(t *testing.T) {
	var model tea.Model = newRunModel(nil)

	for i := range maxRecentFailures + 3 {
		model, _ = model.Update(testResultMsg{result: sampleResult(fmt.Sprintf("F%d", i), m.OutcomeError)})
	}

	rm := model.(runModel)
	require.Len(t, rm.failures, maxRecentFailures)
	assert.Contains(t, rm.failures[len(rm.failures)-1], fmt.Sprintf("F%d", maxRecentFailures+2))
}

func TestRunModel_InterruptCancelsOnceThenQuits(t *testing.T) {
	interrupts := 0

	var model tea.Model = newRunModel(func() { interrupts++ })

	model, cmd := model.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.Nil(t, cmd)
	assert.Equal(t, 1, interrupts)
	assert.Contains(t, model.View(), "cancelling")

	_, cmd = model.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.NotNil(t, cmd)
	assert.Equal(t, 1, interrupts)
}

func TestPagedModel_Navigation(t *testing.T) {
	lines := make([]string, 30)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %02d", i)
	}

	var model tea.Model = newPagedModel("title", lines, []string{"footer"})

	model, _ = model.Update(tea.WindowSizeMsg{Width: 80, Height: 18})

	pm := model.(pagedModel)
	require.True(t, pm.needsPagination())

	perPage := pm.itemsPerPage()
	assert.Equal(t, 18-8, perPage)

	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	assert.Equal(t, 1, model.(pagedModel).offset)

	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("G")})
	assert.Equal(t, 30-perPage, model.(pagedModel).offset)
	assert.Contains(t, model.View(), "line 29")
	assert.NotContains(t, model.View(), "line 00")

	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("g")})
	assert.Equal(t, 0, model.(pagedModel).offset)

	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("k")})
	assert.Equal(t, 0, model.(pagedModel).offset)

	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	assert.Equal(t, perPage, model.(pagedModel).offset)

	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("u")})
	assert.Equal(t, 0, model.(pagedModel).offset)
	assert.Contains(t, model.View(), "Page 1/")

	model, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.NotNil(t, cmd)
	assert.True(t, model.(pagedModel).quitting)
}

func TestPagedModel_Empty(t *testing.T) {
	pm := newPagedModel("title", nil, nil)

	assert.False(t, pm.needsPagination())
	assert.Contains(t, pm.View(), "Nothing to show")
}
