package rfdtest

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/rfd-conformance/rfd-test-harness/framework/helpers"
)

// Filter determines whether to run a specific test.
type Filter interface {
	Match(id TestID) bool
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(TestID) bool

func (f FilterFunc) Match(id TestID) bool { return f(id) }

// RegexFilters implements the -run and -skip options. A pattern is a list of regular expressions
// separated by slashes, each matched against one level of the test ID.
type RegexFilters struct {
	MustMatch    TestIDPatternList
	MustNotMatch TestIDPatternList
}

func (r RegexFilters) Match(id TestID) bool {
	return (!r.MustMatch.IsDefined() || r.MustMatch.AnyMatch(id, true)) &&
		!r.MustNotMatch.AnyMatch(id, false)
}

func (r RegexFilters) IsDefined() bool {
	return r.MustMatch.IsDefined() || r.MustNotMatch.IsDefined()
}

// NewRegexFilters parses -run and -skip style patterns.
func NewRegexFilters(run, skip []string) (RegexFilters, error) {
	var r RegexFilters
	for _, s := range run {
		if err := r.MustMatch.Set(s); err != nil {
			return r, err
		}
	}
	for _, s := range skip {
		if err := r.MustNotMatch.Set(s); err != nil {
			return r, err
		}
	}
	return r, nil
}

type TestIDPattern []*regexp.Regexp

// Match checks each component of the pattern against the same level of the ID. If includeParents
// is true, an ID that is shorter than the pattern matches when all of its levels do, so that the
// parents of a selected test still run.
func (p TestIDPattern) Match(id TestID, includeParents bool) bool {
	n := len(p)
	if n > len(id) {
		if !includeParents {
			return false
		}
		n = len(id)
	}
	for i := 0; i < n; i++ {
		if !p[i].MatchString(id[i]) {
			return false
		}
	}
	return true
}

func (p TestIDPattern) String() string {
	ss := make([]string, 0, len(p))
	for _, c := range p {
		ss = append(ss, c.String())
	}
	return strings.Join(ss, "/")
}

func ParseTestIDPattern(s string) (TestIDPattern, error) {
	parts := strings.Split(s, "/")
	ret := make(TestIDPattern, 0, len(parts))
	for _, part := range parts {
		rx, err := regexp.Compile(part)
		if err != nil {
			return nil, fmt.Errorf("invalid regex: %w", err)
		}
		ret = append(ret, rx)
	}
	return ret, nil
}

type TestIDPatternList []TestIDPattern

func (l TestIDPatternList) String() string {
	ss := make([]string, 0, len(l))
	for _, p := range l {
		ss = append(ss, `"`+p.String()+`"`)
	}
	return strings.Join(ss, " or ")
}

// Set is called by the command line parser.
func (l *TestIDPatternList) Set(value string) error {
	p, err := ParseTestIDPattern(value)
	if err != nil {
		return err
	}
	*l = append(*l, p)
	return nil
}

// Type is part of pflag.Value.
func (l *TestIDPatternList) Type() string {
	return "pattern"
}

func (l TestIDPatternList) IsDefined() bool {
	return len(l) != 0
}

func (l TestIDPatternList) AnyMatch(id TestID, includeParents bool) bool {
	for _, p := range l {
		if p.Match(id, includeParents) {
			return true
		}
	}
	return false
}

// PrintFilterDescription explains which tests will be skipped and why.
func PrintFilterDescription(w io.Writer, filters RegexFilters, allCapabilities, supportedCapabilities []string) {
	if filters.IsDefined() {
		helpers.MustFprintln(w, "Some tests will be skipped based on the filter criteria for this test run:")
		if filters.MustMatch.IsDefined() {
			helpers.MustFprintf(w, "  skip any not matching %s\n", filters.MustMatch)
		}
		if filters.MustNotMatch.IsDefined() {
			helpers.MustFprintf(w, "  skip any matching %s\n", filters.MustNotMatch)
		}
		helpers.MustFprintln(w)
	}

	var missing []string
	for _, c := range allCapabilities {
		if !helpers.SliceContains(c, supportedCapabilities) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		helpers.MustFprintln(w, "Some tests will be skipped because the system under test does not have these capabilities:")
		helpers.MustFprintf(w, "  %s\n", strings.Join(missing, ", "))
		helpers.MustFprintln(w)
	}
}
