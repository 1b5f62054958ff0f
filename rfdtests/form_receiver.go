package rfdtests

import (
	m "github.com/launchdarkly/go-test-helpers/v2/matchers"
	"github.com/stretchr/testify/require"

	"github.com/rfd-conformance/rfd-test-harness/data"
	"github.com/rfd-conformance/rfd-test-harness/framework/rfdtest"
	"github.com/rfd-conformance/rfd-test-harness/rfd"
)

func doFormReceiverTests(t *rfdtest.T) {
	scenarios, err := data.SubmitScenarios()
	require.NoError(t, err)
	formID := formIDs(t).Submit

	for _, s := range scenarios {
		s := s
		t.Run("SubmitForm "+s.Name, func(t *rfdtest.T) {
			var resp rfd.SubmitFormResponse
			ex := requireCall(t, rfd.TransactionSubmitForm, &rfd.SubmitFormRequest{
				Content: s.ContentFor(formID),
			}, &resp)

			doAddressingTests(t, ex, rfd.TransactionSubmitForm)

			t.Run("responseCode is present", func(t *rfdtest.T) {
				m.In(t).For("responseCode").Assert(resp.ResponseCode, m.Not(m.Equal("")))
			})
		})
	}
}
