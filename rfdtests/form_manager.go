package rfdtests

import (
	"io"
	"net/http"
	"time"

	m "github.com/launchdarkly/go-test-helpers/v2/matchers"
	"github.com/stretchr/testify/require"

	"github.com/rfd-conformance/rfd-test-harness/data"
	"github.com/rfd-conformance/rfd-test-harness/framework/harness"
	"github.com/rfd-conformance/rfd-test-harness/framework/helpers"
	"github.com/rfd-conformance/rfd-test-harness/framework/rfdtest"
	"github.com/rfd-conformance/rfd-test-harness/rfd"
	"github.com/rfd-conformance/rfd-test-harness/soap"
)

// archiveCallbackWait bounds how long the archive URL test watches for a callback. The SUT is
// not required to call it during RetrieveForm, so nothing fails if none arrives.
const archiveCallbackWait = 200 * time.Millisecond

func doFormManagerTests(t *rfdtest.T) {
	t.Run("RetrieveForm", doRetrieveFormTests)
	t.Run("pre-population", doPrepopTests)
	t.Run("unknown form ID", doUnknownFormIDTest)
	t.Run("archive URL", doArchiveURLTest)
	t.Run("RetrieveClarifications", doClarificationsTests)
}

func doRetrieveFormTests(t *rfdtest.T) {
	var resp rfd.RetrieveFormResponse
	ex := requireCall(t, rfd.TransactionRetrieveForm, &rfd.RetrieveFormRequest{
		WorkflowData: rfd.WorkflowData{FormID: formIDs(t).Retrieve},
	}, &resp)

	doAddressingTests(t, ex, rfd.TransactionRetrieveForm)

	t.Run("response has a form", func(t *rfdtest.T) {
		checkForm(t, resp.Form)
	})

	t.Run("contentType is present", func(t *rfdtest.T) {
		m.In(t).For("contentType").Assert(resp.ContentType, m.Not(m.Equal("")))
	})
}

func doPrepopTests(t *rfdtest.T) {
	scenarios, err := data.PrepopScenarios()
	require.NoError(t, err)

	for _, s := range scenarios {
		s := s
		t.Run(s.Name, func(t *rfdtest.T) {
			request := &rfd.RetrieveFormRequest{
				PrepopData:   rfd.NewRawXML(s.PrepopData),
				WorkflowData: rfd.WorkflowData{FormID: formIDs(t).Prepop},
			}
			var resp rfd.RetrieveFormResponse
			if s.Accepted {
				requireCall(t, rfd.TransactionRetrieveForm, request, &resp)
				checkForm(t, resp.Form)
				return
			}
			t.NonCritical("a Form Manager may accept pre-population data that is out of range")
			_, err := call(t, rfd.TransactionRetrieveForm, request, &resp)
			requireFault(t, err, soap.CodeSender)
		})
	}
}

func doUnknownFormIDTest(t *rfdtest.T) {
	t.NonCritical("a Form Manager may answer any form ID with a default form")
	var resp rfd.RetrieveFormResponse
	_, err := call(t, rfd.TransactionRetrieveForm, &rfd.RetrieveFormRequest{
		WorkflowData: rfd.WorkflowData{FormID: formIDs(t).Unknown},
	}, &resp)
	requireFault(t, err, soap.CodeSender)
}

// doArchiveURLTest passes the URL of a mock Form Archiver in workflowData and checks that the
// request is still answered with a form.
func doArchiveURLTest(t *rfdtest.T) {
	archiver := requireHarness(t).NewMockEndpoint(mockArchiverHandler(), t.DebugLogger(),
		harness.MockEndpointDescription("form archiver"))
	t.Defer(archiver.Close)

	var resp rfd.RetrieveFormResponse
	requireCall(t, rfd.TransactionRetrieveForm, &rfd.RetrieveFormRequest{
		WorkflowData: rfd.WorkflowData{
			FormID:     formIDs(t).Retrieve,
			ArchiveURL: archiver.BaseURL(),
		},
	}, &resp)
	checkForm(t, resp.Form)

	if cxn, err := archiver.AwaitConnection(archiveCallbackWait); err == nil {
		t.Debug("system under test called the archive URL: %s %s (action %q)", cxn.Method, cxn.URL.Path, cxn.Action)
	}
}

func doClarificationsTests(t *rfdtest.T) {
	t.RequireCapability(rfd.CapabilityClarifications)

	var resp rfd.RetrieveClarificationsResponse
	ex := requireCall(t, rfd.TransactionRetrieveClarifications, &rfd.RetrieveClarificationsRequest{
		OrgID: formIDs(t).OrgID,
	}, &resp)

	doAddressingTests(t, ex, rfd.TransactionRetrieveClarifications)

	t.Run("each form is valid", func(t *rfdtest.T) {
		for i, f := range resp.Forms {
			t.Debug("form %d: %s", i, helpers.AsJSONString(f))
			checkForm(t, f)
		}
	})
}

// checkForm verifies that exactly one form choice is present and that it is usable.
func checkForm(t *rfdtest.T, form rfd.Form) {
	t.Helper()
	m.In(t).Assert(form, FormChoiceCount().Should(m.Equal(1)))
	switch {
	case form.URL != "":
		m.In(t).For("form URL").Assert(form.URL, IsAbsoluteURL())
	case !form.Structured.IsEmpty():
		m.In(t).For("structured form").Assert(form.Structured.String(), IsWellFormedXML())
	}
}

func doAddressingTests(t *rfdtest.T, ex *soap.Exchange, txn rfd.Transaction) {
	t.Run("HTTP content type is SOAP 1.2", func(t *rfdtest.T) {
		m.In(t).Assert(ex, HTTPContentType().Should(m.StringHasPrefix(soap.ContentTypeSOAP12)))
	})
	t.Run("response action", func(t *rfdtest.T) {
		m.In(t).Assert(ex, ResponseAction().Should(m.Equal(txn.ResponseAction())))
	})
	t.Run("RelatesTo is the request MessageID", func(t *rfdtest.T) {
		m.In(t).Assert(ex, ResponseRelatesTo().Should(m.Equal(ex.RequestHeader.MessageID)))
	})
}

// mockArchiverHandler accepts any ArchiveForm request.
func mockArchiverHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		msg, err := soap.Decode(body)
		if err != nil {
			_ = soap.WriteFault(w, soap.Header{}, soap.SenderFault(rfd.StatusInvalidRequest, "%s", err))
			return
		}
		_ = soap.WriteResponse(w, soap.ReplyHeader(msg.Header, rfd.TransactionArchiveForm.ResponseAction()),
			&rfd.ArchiveFormResponse{ResponseCode: rfd.ResponseCodeOK})
	})
}
