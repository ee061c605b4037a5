package model

import (
	"time"

	"github.com/google/uuid"
)

// Outcome is the verdict of a single test invocation.
type Outcome string

const (
	// OutcomeNone is the zero outcome of a result that never completed.
	OutcomeNone Outcome = ""
	// OutcomePassed means the method returned normally.
	OutcomePassed Outcome = "passed"
	// OutcomeFailed means an assertion did not hold.
	OutcomeFailed Outcome = "failed"
	// OutcomeError means the method or its fixture failed for any other reason.
	OutcomeError Outcome = "error"
	// OutcomeNotFound is reported for requested ids the engine does not know.
	OutcomeNotFound Outcome = "not_found"
)

func (o Outcome) String() string {
	if o == OutcomeNone {
		return "none"
	}

	return string(o)
}

// NoDataRow marks a result that did not come from a data-driven invocation.
const NoDataRow = -1

// TestCase describes a discovered test method.
type TestCase struct {
	TestID             NodeID `yaml:"id"`
	Source             string `yaml:"source"`
	FullyQualifiedName string `yaml:"name"`
	DisplayName        string `yaml:"display_name"`
}

// TestResult is the outcome of one invocation of a test method.
type TestResult struct {
	TestID             NodeID        `yaml:"id"`
	ExecutionID        uuid.UUID     `yaml:"execution_id"`
	TestRunID          int32         `yaml:"run_id"`
	Source             string        `yaml:"source"`
	FullyQualifiedName string        `yaml:"name"`
	DisplayName        string        `yaml:"display_name"`
	Outcome            Outcome       `yaml:"outcome"`
	Message            string        `yaml:"message,omitempty"`
	ErrorText          string        `yaml:"error,omitempty"`
	DataRowIndex       int           `yaml:"data_row"`
	StartTime          time.Time     `yaml:"start"`
	EndTime            time.Time     `yaml:"end"`
	Duration           time.Duration `yaml:"duration"`
}

// NewTestResult returns a result for tc carrying a fresh execution id.
func NewTestResult(tc TestCase, runID int32) TestResult {
	return TestResult{
		TestID:             tc.TestID,
		ExecutionID:        uuid.New(),
		TestRunID:          runID,
		Source:             tc.Source,
		FullyQualifiedName: tc.FullyQualifiedName,
		DisplayName:        tc.DisplayName,
		DataRowIndex:       NoDataRow,
	}
}

// RunSummary closes a test run on the wire.
type RunSummary struct {
	RunID     int32
	Total     int
	Cancelled bool
}

// HashCheck compares the digest of a source on both sides of a connection.
type HashCheck struct {
	Source string
	Local  []byte
	Remote []byte
	Match  bool
}

// RunReport is the persisted record of a finished run.
type RunReport struct {
	RunID     int32        `yaml:"run_id"`
	Server    string       `yaml:"server"`
	Sources   []string     `yaml:"sources,omitempty"`
	Cancelled bool         `yaml:"cancelled"`
	Started   time.Time    `yaml:"started"`
	Finished  time.Time    `yaml:"finished"`
	Results   []TestResult `yaml:"results"`
}
