package domain

import (
	"sync"

	m "rigor.dev/pkg/rigor/internal/model"
)

// Reporter receives progress and results while the scheduler runs.
// Implementations must not block for long: they run on the scheduling goroutine.
type Reporter interface {
	ReportTestStarted(result m.TestResult)
	ReportTestEnded(result m.TestResult)
	ReportTestResults(results []m.TestResult)
}

// NopReporter discards everything.
type NopReporter struct{}

// ReportTestStarted implements Reporter.
func (NopReporter) ReportTestStarted(m.TestResult) {}

// ReportTestEnded implements Reporter.
func (NopReporter) ReportTestEnded(m.TestResult) {}

// ReportTestResults implements Reporter.
func (NopReporter) ReportTestResults([]m.TestResult) {}

// CollectingReporter keeps every event in memory. It is safe for concurrent use.
type CollectingReporter struct {
	mu      sync.Mutex
	started []m.TestResult
	ended   []m.TestResult
	results []m.TestResult
}

// ReportTestStarted implements Reporter.
func (c *CollectingReporter) ReportTestStarted(result m.TestResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.started = append(c.started, result)
}

// ReportTestEnded implements Reporter.
func (c *CollectingReporter) ReportTestEnded(result m.TestResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ended = append(c.ended, result)
}

// ReportTestResults implements Reporter.
func (c *CollectingReporter) ReportTestResults(results []m.TestResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.results = append(c.results, results...)
}

// Started returns a copy of the started events.
func (c *CollectingReporter) Started() []m.TestResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]m.TestResult(nil), c.started...)
}

// Ended returns a copy of the ended events.
func (c *CollectingReporter) Ended() []m.TestResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]m.TestResult(nil), c.ended...)
}

// Results returns a copy of the reported results.
func (c *CollectingReporter) Results() []m.TestResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]m.TestResult(nil), c.results...)
}

// countingReporter forwards to next and counts reported results.
type countingReporter struct {
	next  Reporter
	total int
}

func (c *countingReporter) ReportTestStarted(result m.TestResult) {
	c.next.ReportTestStarted(result)
}

func (c *countingReporter) ReportTestEnded(result m.TestResult) {
	c.next.ReportTestEnded(result)
}

func (c *countingReporter) ReportTestResults(results []m.TestResult) {
	c.total += len(results)
	c.next.ReportTestResults(results)
}
