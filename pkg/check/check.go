// Package check provides the assertions used inside rigor test methods.
//
// A failed assertion is reported as a test failure; any other error returned
// or raised by a test method is reported as a test error.
package check

import (
	"errors"
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/assert"
)

// AssertionError is the failure raised by assertions.
type AssertionError struct {
	Message string
}

func (e *AssertionError) Error() string {
	return e.Message
}

// IsAssertion reports whether err carries an AssertionError.
func IsAssertion(err error) (*AssertionError, bool) {
	var ae *AssertionError
	if errors.As(err, &ae) {
		return ae, true
	}

	return nil, false
}

// Failf returns an AssertionError with a formatted message.
func Failf(format string, args ...any) error {
	return &AssertionError{Message: fmt.Sprintf(format, args...)}
}

// True fails when cond is false.
func True(cond bool, msg string) error {
	if cond {
		return nil
	}

	return &AssertionError{Message: msg}
}

// Equal fails when expected and actual differ. The message carries a unified diff
// of both values for anything longer than a single line.
func Equal(expected, actual any, msg string) error {
	if assert.ObjectsAreEqual(expected, actual) {
		return nil
	}

	var b strings.Builder

	if msg != "" {
		b.WriteString(msg)
		b.WriteString(": ")
	}

	fmt.Fprintf(&b, "expected %#v, got %#v", expected, actual)

	if diff := diffValues(expected, actual); diff != "" {
		b.WriteString("\n")
		b.WriteString(diff)
	}

	return &AssertionError{Message: b.String()}
}

// NoError fails when err is not nil.
func NoError(err error, msg string) error {
	if err == nil {
		return nil
	}

	return &AssertionError{Message: fmt.Sprintf("%s: unexpected error: %v", msg, err)}
}

// Must panics with err when it is not nil. Test methods can use it to stop at the
// first failed assertion without threading errors through every call.
func Must(err error) {
	if err != nil {
		panic(err)
	}
}

var spewConfig = spew.ConfigState{
	Indent:                  " ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

func diffValues(expected, actual any) string {
	e := spewConfig.Sdump(expected)
	a := spewConfig.Sdump(actual)

	if strings.Count(e, "\n") <= 1 && strings.Count(a, "\n") <= 1 {
		return ""
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(e),
		B:        difflib.SplitLines(a),
		FromFile: "expected",
		ToFile:   "actual",
		Context:  1,
	})
	if err != nil {
		return ""
	}

	return diff
}
