package controller

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"rigor.dev/pkg/rigor/internal/domain"
	m "rigor.dev/pkg/rigor/internal/model"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	passStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// maxRecentFailures is how many failing tests the run view keeps on screen.
const maxRecentFailures = 5

// TUI implements UI using Bubble Tea for interactive display.
type TUI struct {
	output io.Writer

	mu      sync.Mutex
	program *tea.Program
	done    chan struct{}
}

// NewTUI creates a new TUI.
func NewTUI(output io.Writer) *TUI {
	return &TUI{output: output}
}

// Start launches the live run view in run mode. Other modes render on demand.
func (p *TUI) Start(ctx context.Context, options ...StartOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cfg := newStartConfig(options)
	if cfg.mode != ModeRun {
		return nil
	}

	model := newRunModel(cfg.onInterrupt)
	program := tea.NewProgram(model, tea.WithOutput(p.output))
	done := make(chan struct{})

	p.mu.Lock()
	p.program = program
	p.done = done
	p.mu.Unlock()

	go func() {
		defer close(done)

		if _, err := program.Run(); err != nil {
			slog.Warn("Run view stopped", "error", err)
		}
	}()

	return nil
}

// Close ends the live run view, if any, and waits for it to restore the terminal.
func (p *TUI) Close(ctx context.Context) {
	p.send(runFinishedMsg{})
	p.Wait(ctx)

	p.mu.Lock()
	p.program = nil
	p.mu.Unlock()
}

// Wait blocks until the live run view exits or ctx ends.
func (p *TUI) Wait(ctx context.Context) {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()

	if done == nil {
		return
	}

	select {
	case <-done:
	case <-ctx.Done():
	}
}

// DisplayTestCases shows discovered tests, paginated when they do not fit.
func (p *TUI) DisplayTestCases(ctx context.Context, cases []m.TestCase) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lines := make([]string, 0, len(cases))
	sources := map[string]bool{}

	for _, tc := range cases {
		lines = append(lines, fmt.Sprintf("%s  %s", hintStyle.Render(tc.TestID.Short()), tc.FullyQualifiedName))
		sources[tc.Source] = true
	}

	footer := []string{fmt.Sprintf("📊 Total: %d test(s) across %d source(s)", len(cases), len(sources))}

	return p.page(newPagedModel("🔎 discovered tests:", lines, footer))
}

// DisplayRunStarted forwards the run size to the live view.
func (p *TUI) DisplayRunStarted(_ context.Context, runID int32, expected int) {
	p.send(runStartedMsg{runID: runID, expected: expected})
}

// DisplayTestStarted forwards a start event to the live view.
func (p *TUI) DisplayTestStarted(_ context.Context, result m.TestResult) {
	p.send(testStartedMsg{result: result})
}

// DisplayTestResult forwards a result to the live view.
func (p *TUI) DisplayTestResult(_ context.Context, result m.TestResult) {
	p.send(testResultMsg{result: result})
}

// DisplaySummary prints the final counts.
func (p *TUI) DisplaySummary(ctx context.Context, summary domain.Summary, run m.RunSummary) {
	if ctx.Err() != nil {
		return
	}

	_, _ = fmt.Fprint(p.output, renderSummary(summary, run))
}

func renderSummary(summary domain.Summary, run m.RunSummary) string {
	var b strings.Builder

	b.WriteString("\n")
	fmt.Fprintf(&b, "  %s  %s  %s",
		passStyle.Render(fmt.Sprintf("✔ %d passed", summary.Passed)),
		styleCount(failStyle, "✘ %d failed", summary.Failed),
		styleCount(failStyle, "⚠ %d errors", summary.Errored))

	if summary.NotFound > 0 {
		fmt.Fprintf(&b, "  %s", hintStyle.Render(fmt.Sprintf("? %d not found", summary.NotFound)))
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "  📊 Pass rate: %.2f%% of %d result(s)\n", summary.PassRate()*100, summary.Total)

	if run.Cancelled {
		b.WriteString("  " + failStyle.Render("run cancelled") + "\n")
	}

	return b.String()
}

func styleCount(style lipgloss.Style, format string, count int) string {
	if count == 0 {
		return hintStyle.Render(fmt.Sprintf(format, count))
	}

	return style.Render(fmt.Sprintf(format, count))
}

// DisplayHashCheck prints the digest comparison of a source.
func (p *TUI) DisplayHashCheck(ctx context.Context, check m.HashCheck) {
	if ctx.Err() != nil {
		return
	}

	status := passStyle.Render("✔ match")
	if !check.Match {
		status = failStyle.Render("✘ mismatch")
	}

	_, _ = fmt.Fprintf(p.output, "  %s %s\n  %s\n  %s\n", check.Source, status,
		hintStyle.Render("local  "+hex.EncodeToString(check.Local)),
		hintStyle.Render("remote "+hex.EncodeToString(check.Remote)))
}

// DisplayReport shows a saved report, paginated when it does not fit.
func (p *TUI) DisplayReport(ctx context.Context, report m.RunReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var summary domain.Summary

	lines := make([]string, 0, len(report.Results))

	for _, r := range report.Results {
		summary.Add(r)
		lines = append(lines, fmt.Sprintf("%s %s %s", styledOutcome(r.Outcome), resultName(r),
			hintStyle.Render(formatDuration(r.Duration))))
	}

	title := fmt.Sprintf("📄 run %d against %s:", report.RunID, report.Server)
	footer := strings.Split(strings.Trim(renderSummary(summary, m.RunSummary{
		RunID:     report.RunID,
		Total:     len(report.Results),
		Cancelled: report.Cancelled,
	}), "\n"), "\n")

	return p.page(newPagedModel(title, lines, footer))
}

func (p *TUI) page(model pagedModel) error {
	if f, ok := p.output.(*os.File); ok {
		width, height, err := term.GetSize(int(f.Fd()))
		if err == nil {
			model.height = height
			model.width = width
		}
	}

	// If list is small, just print and exit
	if !model.needsPagination() {
		_, err := fmt.Fprint(p.output, model.View())
		return err
	}

	program := tea.NewProgram(model, tea.WithOutput(p.output), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return err
	}

	return nil
}

func (p *TUI) send(msg tea.Msg) {
	p.mu.Lock()
	program := p.program
	p.mu.Unlock()

	if program != nil {
		program.Send(msg)
	}
}

func styledOutcome(outcome m.Outcome) string {
	label := fmt.Sprintf("%-9s", outcomeLabel(outcome))

	switch outcome {
	case m.OutcomePassed:
		return passStyle.Render(label)
	case m.OutcomeFailed, m.OutcomeError:
		return failStyle.Render(label)
	case m.OutcomeNotFound, m.OutcomeNone:
	}

	return hintStyle.Render(label)
}

type runStartedMsg struct {
	runID    int32
	expected int
}

type testStartedMsg struct {
	result m.TestResult
}

type testResultMsg struct {
	result m.TestResult
}

type runFinishedMsg struct{}

// runModel is the live view of a run: a progress bar, the test in flight and
// the most recent failures.
type runModel struct {
	spinner  spinner.Model
	progress progress.Model

	runID    int32
	expected int
	received int
	counts   map[m.Outcome]int
	current  string
	failures []string

	width       int
	interrupted bool
	finished    bool
	onInterrupt func()
}

func newRunModel(onInterrupt func()) runModel {
	s := spinner.New()
	s.Spinner = spinner.Dot

	return runModel{
		spinner:     s,
		progress:    progress.New(progress.WithDefaultGradient()),
		counts:      map[m.Outcome]int{},
		onInterrupt: onInterrupt,
	}
}

func (rm runModel) Init() tea.Cmd {
	return rm.spinner.Tick
}

func (rm runModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		rm.width = msg.Width
		rm.progress.Width = min(max(msg.Width-4, 10), 60)

		return rm, nil

	case tea.KeyMsg:
		return rm.handleKeyPress(msg)

	case spinner.TickMsg:
		if rm.finished {
			return rm, nil
		}

		var cmd tea.Cmd
		rm.spinner, cmd = rm.spinner.Update(msg)

		return rm, cmd

	case runStartedMsg:
		rm.runID = msg.runID
		rm.expected = msg.expected

		return rm, nil

	case testStartedMsg:
		rm.current = resultName(msg.result)
		return rm, nil

	case testResultMsg:
		rm.received++
		rm.counts[msg.result.Outcome]++

		if msg.result.Outcome != m.OutcomePassed {
			line := fmt.Sprintf("%s %s", styledOutcome(msg.result.Outcome), resultName(msg.result))
			if msg.result.Message != "" {
				line += hintStyle.Render(" " + firstLine(msg.result.Message))
			}

			rm.failures = append(rm.failures, line)
			if len(rm.failures) > maxRecentFailures {
				rm.failures = rm.failures[len(rm.failures)-maxRecentFailures:]
			}
		}

		return rm, nil

	case runFinishedMsg:
		rm.finished = true
		rm.current = ""

		return rm, tea.Quit
	}

	return rm, nil
}

func (rm runModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		if rm.interrupted {
			return rm, tea.Quit
		}

		rm.interrupted = true

		if rm.onInterrupt != nil {
			rm.onInterrupt()
		}
	}

	return rm, nil
}

func (rm runModel) percent() float64 {
	if rm.expected <= 0 {
		return 0
	}

	return min(float64(rm.received)/float64(rm.expected), 1)
}

func (rm runModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("rigor run %d", rm.runID)))
	b.WriteString("\n\n  ")
	b.WriteString(rm.progress.ViewAs(rm.percent()))
	fmt.Fprintf(&b, "\n\n  %d/%d  %s  %s  %s\n",
		rm.received, rm.expected,
		passStyle.Render(fmt.Sprintf("pass %d", rm.counts[m.OutcomePassed])),
		styleCount(failStyle, "fail %d", rm.counts[m.OutcomeFailed]),
		styleCount(failStyle, "error %d", rm.counts[m.OutcomeError]))

	if rm.current != "" {
		fmt.Fprintf(&b, "\n  %s %s\n", rm.spinner.View(), rm.current)
	}

	if len(rm.failures) > 0 {
		b.WriteString("\n")

		for _, line := range rm.failures {
			b.WriteString("  " + line + "\n")
		}
	}

	switch {
	case rm.finished:
	case rm.interrupted:
		b.WriteString("\n" + hintStyle.Render("  cancelling… press ctrl+c again to stop watching") + "\n")
	default:
		b.WriteString("\n" + hintStyle.Render("  ctrl+c: cancel run") + "\n")
	}

	return b.String()
}

func firstLine(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	return line
}

// pagedModel shows a long list one screen at a time.
type pagedModel struct {
	title    string
	lines    []string
	footer   []string
	height   int
	width    int
	offset   int // Current scroll offset
	quitting bool
}

func newPagedModel(title string, lines, footer []string) pagedModel {
	return pagedModel{
		title:  title,
		lines:  lines,
		footer: footer,
	}
}

func (pm pagedModel) Init() tea.Cmd {
	return nil
}

func (pm pagedModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		pm.height = msg.Height
		pm.width = msg.Width

		return pm, nil

	case tea.KeyMsg:
		return pm.handleKeyPress(msg)
	}

	return pm, nil
}

//nolint:cyclop,exhaustive // Key handling requires multiple cases for UI navigation
func (pm pagedModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		pm.quitting = true
		return pm, tea.Quit
	default:
		// Handle other key types in the string switch below
	}

	switch msg.String() {
	case "q":
		pm.quitting = true
		return pm, tea.Quit

	case "down", "j":
		pm.offset = min(pm.offset+1, pm.maxOffset())
		return pm, nil

	case "up", "k":
		pm.offset = max(pm.offset-1, 0)
		return pm, nil

	case "g", "home":
		pm.offset = 0
		return pm, nil

	case "G", "end":
		pm.offset = pm.maxOffset()
		return pm, nil

	case "d", "pgdown":
		pm.offset = min(pm.offset+pm.itemsPerPage(), pm.maxOffset())
		return pm, nil

	case "u", "pgup":
		pm.offset = max(pm.offset-pm.itemsPerPage(), 0)
		return pm, nil
	}

	return pm, nil
}

// itemsPerPage calculates how many lines fit on screen.
func (pm pagedModel) itemsPerPage() int {
	if pm.height == 0 {
		return 10 // Default
	}

	// title and blank, footer block, page line and help, top margin
	reserved := 2 + len(pm.footer) + 1 + 3 + 1

	return max(pm.height-reserved, 1)
}

// maxOffset returns the maximum scroll offset.
func (pm pagedModel) maxOffset() int {
	return max(len(pm.lines)-pm.itemsPerPage(), 0)
}

// needsPagination returns true if the list is too large to fit on screen.
func (pm pagedModel) needsPagination() bool {
	if len(pm.lines) == 0 {
		return false
	}

	return len(pm.lines) > pm.itemsPerPage() && pm.height > 0
}

func (pm pagedModel) View() string {
	var b strings.Builder

	b.WriteString("  " + titleStyle.Render(pm.title) + "\n\n")

	if len(pm.lines) == 0 {
		b.WriteString("  📭 Nothing to show\n")
		return b.String()
	}

	total := len(pm.lines)
	perPage := pm.itemsPerPage()
	paginate := pm.needsPagination()

	start := min(pm.offset, total-1)
	end := min(start+perPage, total)

	visible := pm.lines
	if paginate {
		visible = pm.lines[start:end]
	}

	for _, line := range visible {
		b.WriteString("  " + line + "\n")
	}

	b.WriteString("\n")

	for _, line := range pm.footer {
		b.WriteString("  " + strings.TrimLeft(line, " ") + "\n")
	}

	if paginate {
		b.WriteString("\n")

		currentPage := (pm.offset / perPage) + 1
		totalPages := (total + perPage - 1) / perPage
		fmt.Fprintf(&b, "  Page %d/%d | Showing %d-%d of %d\n", currentPage, totalPages, start+1, end, total)
		b.WriteString(hintStyle.Render("  ↑/k: up | ↓/j: down | g: top | G: bottom | q: quit") + "\n")
	}

	return b.String()
}
