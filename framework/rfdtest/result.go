package rfdtest

import (
	"fmt"
	"strings"
)

type Results struct {
	Tests               []TestResult
	Failures            []TestResult
	NonCriticalFailures []TestResult
}

type TestResult struct {
	TestID      TestID
	Errors      []error
	NonCritical bool
	Explanation string
	// Transactions are the IDs of the WSLog records captured while the test ran.
	Transactions []string
}

// OK is true if there were no failures other than non-critical ones.
func (r Results) OK() bool {
	return len(r.Failures) == 0
}

func (r Results) Summary() string {
	return fmt.Sprintf("%d tests, %d failed, %d non-critical failures",
		len(r.Tests), len(r.Failures), len(r.NonCriticalFailures))
}

type TestID []string

func (t TestID) String() string {
	return strings.Join(t, "/")
}

func (t TestID) Plus(name string) TestID {
	return append(append(TestID(nil), t...), name)
}

type TestFailure struct {
	ID  TestID
	Err error
}

func (f TestFailure) Error() string {
	return fmt.Sprintf("[%s]: %s", f.ID, f.Err)
}
