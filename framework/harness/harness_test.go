package harness

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfd-conformance/rfd-test-harness/framework/rfdtest"
	"github.com/rfd-conformance/rfd-test-harness/rfd"
	"github.com/rfd-conformance/rfd-test-harness/serviceinfo"
	"github.com/rfd-conformance/rfd-test-harness/simulator"
	"github.com/rfd-conformance/rfd-test-harness/wslog"
)

type recordingSubmitter struct {
	lock    sync.Mutex
	records []wslog.Record
}

func (s *recordingSubmitter) Submit(rec wslog.Record) bool {
	s.lock.Lock()
	s.records = append(s.records, rec)
	s.lock.Unlock()
	return true
}

func TestHarnessCallRecordsTransaction(t *testing.T) {
	service, err := simulator.NewFormManager(simulator.EndpointConfig{
		Name: "FormManager",
		Path: "/FormManager",
		Tests: simulator.TestsConfig{
			Default: &simulator.TestRef{Test: simulator.TestStaticURL,
				Params: simulator.Params{"url": "http://forms.example.org/f1"}},
		},
	}, simulator.Dependencies{})
	require.NoError(t, err)

	httphelpers.WithServer(service, func(server *httptest.Server) {
		sut, err := serviceinfo.New("simulator", server.URL, []string{"form-manager"}, serviceinfo.FormIDs{})
		require.NoError(t, err)
		sub := &recordingSubmitter{}
		h, err := NewTestHarness(context.Background(), Config{
			SUT:         sut,
			Capture:     []string{"formID"},
			Submitter:   sub,
			StartupWait: time.Second,
		})
		require.NoError(t, err)
		defer h.Close()
		assert.Equal(t, sut, h.SUT())

		var resp rfd.RetrieveFormResponse
		results := rfdtest.Run(rfdtest.TestConfiguration{}, func(rt *rfdtest.T) {
			rt.Run("retrieve", func(rt1 *rfdtest.T) {
				_, err := h.Call(rt1, rfd.ActionRetrieveForm,
					&rfd.RetrieveFormRequest{WorkflowData: rfd.WorkflowData{FormID: "f1"}}, &resp)
				require.NoError(rt1, err)
			})
		})
		require.True(t, results.OK())
		assert.Equal(t, "http://forms.example.org/f1", resp.Form.URL)

		require.Len(t, sub.records, 1)
		rec := sub.records[0]
		assert.Equal(t, wslog.Outbound, rec.Direction)
		assert.Equal(t, "simulator", rec.Endpoint)
		assert.Equal(t, "form-manager", rec.Actor)
		assert.Equal(t, "retrieve", rec.TestName)
		assert.Equal(t, "f1", rec.FormID)
		assert.Equal(t, []string{rec.ID}, results.Tests[0].Transactions)
	})
}

func TestHarnessFailsWhenSUTIsUnreachable(t *testing.T) {
	sut, err := serviceinfo.New("", "http://127.0.0.1:1/rfd", []string{"form-manager"}, serviceinfo.FormIDs{})
	require.NoError(t, err)
	_, err = NewTestHarness(context.Background(), Config{SUT: sut, StartupWait: 200 * time.Millisecond})
	assert.Error(t, err)
}

func TestHarnessServesMockEndpoints(t *testing.T) {
	httphelpers.WithServer(httphelpers.HandlerWithStatus(405), func(server *httptest.Server) {
		sut, err := serviceinfo.New("", server.URL, []string{"form-receiver"}, serviceinfo.FormIDs{})
		require.NoError(t, err)
		h, err := NewTestHarness(context.Background(), Config{SUT: sut, StartupWait: time.Second})
		require.NoError(t, err)
		defer h.Close()

		e := h.NewMockEndpoint(httphelpers.HandlerWithStatus(202), nil, MockEndpointDescription("callback"))
		defer e.Close()
		resp, err := http.Post(e.BaseURL()+"/FormArchiver", "text/xml", strings.NewReader("<x/>"))
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, 202, resp.StatusCode)

		cxn := e.RequireConnection(t, time.Second)
		assert.Equal(t, "/FormArchiver", cxn.URL.Path)
		assert.Equal(t, []byte("<x/>"), cxn.Body)
	})
}
