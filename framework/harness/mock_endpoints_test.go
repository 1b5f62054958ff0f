package harness

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfd-conformance/rfd-test-harness/framework"
	"github.com/rfd-conformance/rfd-test-harness/rfd"
	"github.com/rfd-conformance/rfd-test-harness/soap"
)

func newTestManager() *mockEndpointsManager {
	return newMockEndpointsManager("http://testharness:9999", framework.NullLogger())
}

func TestMockEndpointServesRequest(t *testing.T) {
	m := newTestManager()

	e1 := m.newMockEndpoint(httphelpers.HandlerWithStatus(200), nil)
	assert.Equal(t, "http://testharness:9999/endpoints/1", e1.BaseURL())

	e2 := m.newMockEndpoint(httphelpers.HandlerWithStatus(204), nil, MockEndpointDescription("archiver"))
	assert.Equal(t, "http://testharness:9999/endpoints/2", e2.BaseURL())

	rr1 := httptest.NewRecorder()
	r1, _ := http.NewRequest("GET", e1.BaseURL(), nil)
	m.serveHTTP(rr1, r1)
	assert.Equal(t, 200, rr1.Code)

	rr2 := httptest.NewRecorder()
	r2, _ := http.NewRequest("GET", e2.BaseURL(), nil)
	m.serveHTTP(rr2, r2)
	assert.Equal(t, 204, rr2.Code)
}

func TestMockEndpointReceivesSubpath(t *testing.T) {
	m := newTestManager()

	handler, requests := httphelpers.RecordingHandler(httphelpers.HandlerWithStatus(200))
	e := m.newMockEndpoint(handler, nil)

	for _, subpath := range []string{"", "/", "/FormArchiver"} {
		rr := httptest.NewRecorder()
		r, _ := http.NewRequest("POST", e.BaseURL()+subpath, nil)
		m.serveHTTP(rr, r)
		received := <-requests
		if subpath == "" {
			assert.Equal(t, "/", received.Request.URL.Path)
		} else {
			assert.Equal(t, subpath, received.Request.URL.Path)
		}
	}
}

func TestMockEndpointConnectionInfo(t *testing.T) {
	m := newTestManager()
	e := m.newMockEndpoint(httphelpers.HandlerWithStatus(200), nil)

	_, err := e.AwaitConnection(time.Millisecond * 50)
	assert.Error(t, err)

	rr1 := httptest.NewRecorder()
	r1, _ := http.NewRequest("GET", e.BaseURL(), nil)
	r1.Header.Add("header1", "value1")
	m.serveHTTP(rr1, r1)
	cxn1, err := e.AwaitConnection(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "GET", cxn1.Method)
	assert.Nil(t, cxn1.Body)
	assert.Equal(t, "value1", cxn1.Headers.Get("header1"))

	rr2 := httptest.NewRecorder()
	r2, _ := http.NewRequest("POST", e.BaseURL(), bytes.NewBufferString("<ArchiveFormRequest/>"))
	m.serveHTTP(rr2, r2)
	cxn2, err := e.AwaitConnection(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "POST", cxn2.Method)
	assert.Equal(t, []byte("<ArchiveFormRequest/>"), cxn2.Body)
}

func TestClosedMockEndpointReturns404(t *testing.T) {
	m := newTestManager()
	e := m.newMockEndpoint(httphelpers.HandlerWithStatus(200), nil)
	e.Close()

	rr := httptest.NewRecorder()
	r, _ := http.NewRequest("GET", e.BaseURL(), nil)
	m.serveHTTP(rr, r)
	assert.Equal(t, 404, rr.Code)

	rr = httptest.NewRecorder()
	r, _ = http.NewRequest("GET", "http://testharness:9999/elsewhere", nil)
	m.serveHTTP(rr, r)
	assert.Equal(t, 404, rr.Code)
}

func TestMockEndpointRecordsSOAPAction(t *testing.T) {
	m := newTestManager()
	e := m.newMockEndpoint(httphelpers.HandlerWithStatus(200), nil, MockEndpointDescription("archiver"))

	rr := httptest.NewRecorder()
	r, _ := http.NewRequest("POST", e.BaseURL()+"/FormArchiver", bytes.NewBufferString("<Envelope/>"))
	r.Header.Set("Content-Type", soap.ContentType(rfd.ActionArchiveForm))
	m.serveHTTP(rr, r)

	rr = httptest.NewRecorder()
	r, _ = http.NewRequest("POST", e.BaseURL(), bytes.NewBufferString("<Envelope/>"))
	r.Header.Set("Content-Type", "text/xml; charset=utf-8")
	r.Header.Set("SOAPAction", `"`+rfd.ActionSubmitForm+`"`)
	m.serveHTTP(rr, r)

	cxn := e.RequireConnection(t, time.Second)
	assert.Equal(t, rfd.ActionArchiveForm, cxn.Action)
	assert.Equal(t, "/FormArchiver", cxn.URL.Path)
	cxn = e.RequireConnection(t, time.Second)
	assert.Equal(t, rfd.ActionSubmitForm, cxn.Action)
	e.RequireNoMoreConnections(t, 50*time.Millisecond)
}

func TestSplitEndpointPath(t *testing.T) {
	for path, want := range map[string][2]string{
		"/endpoints/3":               {"3", "/"},
		"/endpoints/3/":              {"3", "/"},
		"/endpoints/12/FormArchiver": {"12", "/FormArchiver"},
		"/endpoints/1/a/b":           {"1", "/a/b"},
	} {
		id, sub, ok := splitEndpointPath(path)
		assert.True(t, ok, path)
		assert.Equal(t, want[0], id, path)
		assert.Equal(t, want[1], sub, path)
	}
	_, _, ok := splitEndpointPath("/elsewhere")
	assert.False(t, ok)
}
