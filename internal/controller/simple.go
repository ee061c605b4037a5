package controller

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"rigor.dev/pkg/rigor/internal/domain"
	m "rigor.dev/pkg/rigor/internal/model"
)

// SimpleUI implements UI using cobra Command's output.
type SimpleUI struct {
	cmd *cobra.Command
}

// NewSimpleUI creates a new SimpleUI.
func NewSimpleUI(cmd *cobra.Command) *SimpleUI {
	return &SimpleUI{cmd: cmd}
}

// Start initializes the UI.
func (s *SimpleUI) Start(ctx context.Context, _ ...StartOption) error {
	return ctx.Err()
}

// Close finalizes the UI.
func (s *SimpleUI) Close(context.Context) {}

// Wait returns immediately; SimpleUI prints as it goes.
func (s *SimpleUI) Wait(context.Context) {}

// DisplayTestCases prints discovered tests as a table.
func (s *SimpleUI) DisplayTestCases(ctx context.Context, cases []m.TestCase) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.printf("\n%s", renderTestCaseTable(cases))

	return nil
}

func renderTestCaseTable(cases []m.TestCase) string {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"ID", "Source", "Test"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT})

	sources := map[string]bool{}

	for _, tc := range cases {
		table.Append([]string{tc.TestID.Short(), tc.Source, tc.FullyQualifiedName})
		sources[tc.Source] = true
	}

	table.SetFooter([]string{
		"",
		fmt.Sprintf("Sources %d", len(sources)),
		fmt.Sprintf("Tests %d", len(cases)),
	})

	table.Render()

	return tableBuffer.String()
}

// DisplayRunStarted announces a run.
func (s *SimpleUI) DisplayRunStarted(ctx context.Context, runID int32, expected int) {
	if ctx.Err() != nil {
		return
	}

	s.printf("Run %d: %d test(s)\n", runID, expected)
}

// DisplayTestStarted is silent; only results are printed.
func (s *SimpleUI) DisplayTestStarted(context.Context, m.TestResult) {}

// DisplayTestResult prints one result, with details for anything that did not pass.
func (s *SimpleUI) DisplayTestResult(ctx context.Context, result m.TestResult) {
	if ctx.Err() != nil {
		return
	}

	s.printf("%-9s %s (%s)\n", outcomeLabel(result.Outcome), resultName(result), formatDuration(result.Duration))

	if result.Outcome == m.OutcomePassed {
		return
	}

	if result.Message != "" {
		s.printf("%s\n", indent(result.Message))
	}

	if result.ErrorText != "" && result.ErrorText != result.Message {
		s.printf("%s\n", indent(result.ErrorText))
	}
}

// DisplaySummary prints the outcome counts.
func (s *SimpleUI) DisplaySummary(ctx context.Context, summary domain.Summary, run m.RunSummary) {
	if ctx.Err() != nil {
		return
	}

	s.printf("\n%s", renderSummaryTable(summary))
	s.printf("Pass rate: %.2f%%\n", summary.PassRate()*100)

	if run.Cancelled {
		s.printf("Run %d was cancelled\n", run.RunID)
	}
}

func renderSummaryTable(summary domain.Summary) string {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Outcome", "Count"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER})

	table.Append([]string{outcomeLabel(m.OutcomePassed), fmt.Sprintf("%d", summary.Passed)})
	table.Append([]string{outcomeLabel(m.OutcomeFailed), fmt.Sprintf("%d", summary.Failed)})
	table.Append([]string{outcomeLabel(m.OutcomeError), fmt.Sprintf("%d", summary.Errored)})

	if summary.NotFound > 0 {
		table.Append([]string{outcomeLabel(m.OutcomeNotFound), fmt.Sprintf("%d", summary.NotFound)})
	}

	table.SetFooter([]string{"Total", fmt.Sprintf("%d", summary.Total)})
	table.Render()

	return tableBuffer.String()
}

// DisplayHashCheck prints the local and remote digests of a source.
func (s *SimpleUI) DisplayHashCheck(ctx context.Context, check m.HashCheck) {
	if ctx.Err() != nil {
		return
	}

	status := "match"
	if !check.Match {
		status = "MISMATCH"
	}

	s.printf("%s: %s\n  local  %s\n  remote %s\n", check.Source, status,
		hex.EncodeToString(check.Local), hex.EncodeToString(check.Remote))
}

// DisplayReport prints a saved report.
func (s *SimpleUI) DisplayReport(ctx context.Context, report m.RunReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.printf("Run %d against %s\n", report.RunID, report.Server)
	s.printf("Started %s, finished %s\n", report.Started.Format(time.RFC3339), report.Finished.Format(time.RFC3339))
	s.printf("\n%s", renderResultTable(report.Results))

	var summary domain.Summary
	for _, r := range report.Results {
		summary.Add(r)
	}

	s.DisplaySummary(ctx, summary, m.RunSummary{RunID: report.RunID, Total: len(report.Results), Cancelled: report.Cancelled})

	return nil
}

func renderResultTable(results []m.TestResult) string {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Test", "Outcome", "Duration"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER, tablewriter.ALIGN_RIGHT})

	for _, r := range results {
		table.Append([]string{resultName(r), outcomeLabel(r.Outcome), formatDuration(r.Duration)})
	}

	table.Render()

	return tableBuffer.String()
}

func (s *SimpleUI) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.cmd.OutOrStdout(), format, args...)
}

func outcomeLabel(outcome m.Outcome) string {
	switch outcome {
	case m.OutcomePassed:
		return "PASS"
	case m.OutcomeFailed:
		return "FAIL"
	case m.OutcomeError:
		return "ERROR"
	case m.OutcomeNotFound:
		return "NOT FOUND"
	case m.OutcomeNone:
	}

	return unknownOutcomeLabel
}

const unknownOutcomeLabel = "UNKNOWN"

func resultName(result m.TestResult) string {
	name := result.FullyQualifiedName
	if name == "" {
		name = result.DisplayName
	}

	if result.DataRowIndex != m.NoDataRow {
		name = fmt.Sprintf("%s[%d]", name, result.DataRowIndex)
	}

	return name
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}

func indent(text string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, line := range lines {
		lines[i] = "    " + line
	}

	return strings.Join(lines, "\n")
}
