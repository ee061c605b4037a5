package domain

import (
	m "rigor.dev/pkg/rigor/internal/model"
	pkg "rigor.dev/pkg/rigor/pkg"
)

// Summary counts results by outcome.
type Summary struct {
	Total    int
	Passed   int
	Failed   int
	Errored  int
	NotFound int
}

// PassRate is the share of passed results among those that ran. Not-found
// results are excluded from the denominator.
func (s Summary) PassRate() float64 {
	ran := s.Total - s.NotFound
	if ran == 0 {
		return 1.0
	}

	return float64(s.Passed) / float64(ran)
}

// Succeeded reports whether every result passed.
func (s Summary) Succeeded() bool {
	return s.Passed == s.Total
}

// Add counts one result.
func (s *Summary) Add(result m.TestResult) {
	s.Total++

	switch result.Outcome {
	case m.OutcomePassed:
		s.Passed++
	case m.OutcomeFailed:
		s.Failed++
	case m.OutcomeNotFound:
		s.NotFound++
	case m.OutcomeError, m.OutcomeNone:
		s.Errored++
	}
}

// SummarizeResults counts results held in a spill.
func SummarizeResults(results pkg.FileSpill[m.TestResult]) (Summary, error) {
	var summary Summary

	err := results.Range(func(_ uint64, result m.TestResult) error {
		summary.Add(result)
		return nil
	})
	if err != nil {
		return Summary{}, err
	}

	return summary, nil
}
