package rfdtest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfd-conformance/rfd-test-harness/framework/rfdtest/internal"
)

func TestStacktrace(t *testing.T) {
	_ = Run(TestConfiguration{}, func(rt *T) {
		rt.Run("without filtering", func(*T) {
			stack := getStacktrace(true, nil)
			require.Greater(t, len(stack), 1)
			assert.Equal(t, currentPackageName(), stack[0].Package)
			assert.Contains(t, stack[0].Function, "TestStacktrace.")
			assert.Equal(t, currentPackageName(), stack[1].Package)
			assert.Equal(t, "(*T).run", stack[1].Function)
		})

		rt.Run("auto-filtering removes runner methods", func(*T) {
			internal.RunAction(func() {
				stack := getStacktrace(false, nil)
				require.Len(t, stack, 1)
				assert.Equal(t, currentPackageName()+"/internal", stack[0].Package)
				assert.Equal(t, "RunAction", stack[0].Function)
			})
		})

		rt.Run("filter out designated helpers", func(*T) {
			helperFunc1(func() {
				helperFunc2(func() {
					stack := getStacktrace(true, []string{currentPackageName() + ".helperFunc2"})
					foundFunc1 := false
					for _, s := range stack {
						if s.Package == currentPackageName() && s.Function == "helperFunc1" {
							foundFunc1 = true
						} else if s.Package == currentPackageName() && s.Function == "helperFunc2" {
							require.Fail(t, "helperFunc2 should not have been in stacktrace", "stacktrace: %+v", stack)
						}
					}
					assert.True(t, foundFunc1, "helperFunc1 should have been in stacktrace, stacktrace: %+v", stack)
				})
			})
		})
	})
}

func TestTransformErrorStripsTestifyTrace(t *testing.T) {
	err := errors.New("\n\tError Trace:\tfoo.go:12\n\tError:      \tShould be true\n")
	assert.Equal(t, "Should be true", transformError(err, nil).Error())

	withTrace := transformError(errors.New("plain"), []StacktraceInfo{{FileName: "a.go", Package: "p", Function: "F", Line: 3}})
	var e ErrorWithStacktrace
	require.True(t, errors.As(withTrace, &e))
	assert.Equal(t, "plain", e.Message)
}

func helperFunc1(action func()) {
	action()
}

func helperFunc2(action func()) {
	action()
}
