package rfdtest

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type regexFilterTestParams struct {
	run         []string
	skip        []string
	testID      TestID
	shouldMatch bool
}

func TestRegexFilters(t *testing.T) {
	allParams := []regexFilterTestParams{
		// matches everything by default
		{nil, nil, TestID(nil), true},
		{nil, nil, TestID{"a"}, true},
		{nil, nil, TestID{"a", "b"}, true},

		// -run with single component
		{[]string{"a"}, nil, TestID(nil), true},
		{[]string{"a"}, nil, TestID{"a"}, true},
		{[]string{"a"}, nil, TestID{"b"}, false},
		{[]string{"a"}, nil, TestID{"xax"}, true},
		{[]string{"a"}, nil, TestID{"a", "b"}, true},

		// -run with multiple components
		{[]string{"a/b"}, nil, TestID(nil), true},
		{[]string{"a/b"}, nil, TestID{"a"}, true},
		{[]string{"a/b"}, nil, TestID{"b"}, false},
		{[]string{"a/b"}, nil, TestID{"a", "b"}, true},
		{[]string{"a/b"}, nil, TestID{"xax", "xbx"}, true},

		// -run with multiple patterns
		{[]string{"a", "b"}, nil, TestID{"a"}, true},
		{[]string{"a", "b"}, nil, TestID{"b"}, true},
		{[]string{"a", "b"}, nil, TestID{"c"}, false},
		{[]string{"a", "b"}, nil, TestID{"b", "c"}, true},

		// -skip with single component
		{nil, []string{"a"}, TestID(nil), true},
		{nil, []string{"a"}, TestID{"a"}, false},
		{nil, []string{"a"}, TestID{"b"}, true},
		{nil, []string{"a"}, TestID{"a", "b"}, false},

		// -skip with multiple components
		{nil, []string{"a/b"}, TestID{"a"}, true},
		{nil, []string{"a/b"}, TestID{"a", "b"}, false},
		{nil, []string{"a/b"}, TestID{"a", "b", "c"}, false},
		{nil, []string{"a/b"}, TestID{"a", "c"}, true},

		// -skip overrides -run
		{[]string{"y"}, []string{"n"}, TestID{"y"}, true},
		{[]string{"y"}, []string{"n"}, TestID{"yn"}, false},

		// realistic IDs
		{[]string{"Form Manager/RetrieveForm"}, []string{"/.*/age -1"},
			TestID{"Form Manager", "RetrieveForm", "age 42"}, true},
		{[]string{"Form Manager/RetrieveForm"}, []string{"Form Manager/.*/age -1"},
			TestID{"Form Manager", "RetrieveForm", "age -1"}, false},
	}
	for _, params := range allParams {
		r, err := NewRegexFilters(params.run, params.skip)
		require.NoError(t, err)
		t.Run(fmt.Sprintf("run=%s, skip=%s, id=%s", r.MustMatch, r.MustNotMatch, params.testID), func(t *testing.T) {
			assert.Equal(t, params.shouldMatch, r.Match(params.testID))
		})
	}
}

func TestInvalidPatternIsRejected(t *testing.T) {
	_, err := NewRegexFilters([]string{"a/(b"}, nil)
	assert.Error(t, err)
}

func TestPrintFilterDescription(t *testing.T) {
	r, err := NewRegexFilters([]string{"Form Manager"}, nil)
	require.NoError(t, err)
	var buf bytes.Buffer
	PrintFilterDescription(&buf, r, []string{"form-manager", "clarifications"}, []string{"form-manager"})
	out := buf.String()
	assert.Contains(t, out, `skip any not matching "Form Manager"`)
	assert.NotContains(t, out, "skip any matching")
	assert.Contains(t, out, "  clarifications\n")
}
