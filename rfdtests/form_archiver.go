package rfdtests

import (
	m "github.com/launchdarkly/go-test-helpers/v2/matchers"
	"github.com/stretchr/testify/require"

	"github.com/rfd-conformance/rfd-test-harness/data"
	"github.com/rfd-conformance/rfd-test-harness/framework/rfdtest"
	"github.com/rfd-conformance/rfd-test-harness/rfd"
)

func doFormArchiverTests(t *rfdtest.T) {
	scenarios, err := data.ArchiveScenarios()
	require.NoError(t, err)
	formID := formIDs(t).Archive

	for _, s := range scenarios {
		s := s
		t.Run("ArchiveForm "+s.Name, func(t *rfdtest.T) {
			var resp rfd.ArchiveFormResponse
			ex := requireCall(t, rfd.TransactionArchiveForm, &rfd.ArchiveFormRequest{
				Content: s.ContentFor(formID),
			}, &resp)

			doAddressingTests(t, ex, rfd.TransactionArchiveForm)

			t.Run("responseCode is present", func(t *rfdtest.T) {
				m.In(t).For("responseCode").Assert(resp.ResponseCode, m.Not(m.Equal("")))
			})
		})
	}
}
