package harness

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rfd-conformance/rfd-test-harness/framework"
	"github.com/rfd-conformance/rfd-test-harness/framework/helpers"
	"github.com/rfd-conformance/rfd-test-harness/soap"
)

const endpointPathPrefix = "/endpoints/"

// Requests beyond this many unread ones are still served but not queued for AwaitConnection.
const incomingRequestQueueSize = 10

type mockEndpointsManager struct {
	endpoints       map[string]*MockEndpoint
	lastEndpointID  int
	externalBaseURL string
	logger          framework.Logger
	lock            sync.Mutex
}

// MockEndpoint is a callback URL handed to the SUT, for instance as the archiveURL of a
// RetrieveForm request. Every request it receives is queued for the test to inspect.
type MockEndpoint struct {
	owner       *mockEndpointsManager
	id          string
	description string
	basePath    string
	handler     http.Handler
	requests    chan IncomingRequestInfo
	closed      bool
	logger      framework.Logger
	lock        sync.Mutex
}

type MockEndpointOption helpers.ConfigOption[MockEndpoint]

type mockEndpointOptionDescription string

func (o mockEndpointOptionDescription) Configure(m *MockEndpoint) error {
	m.description = string(o)
	return nil
}

// MockEndpointDescription names the endpoint in log output and failure messages.
func MockEndpointDescription(description string) MockEndpointOption {
	return mockEndpointOptionDescription(description)
}

// IncomingRequestInfo describes an HTTP request that the SUT sent to a mock endpoint. Action is
// the SOAP action taken from the content type or the SOAPAction header, if there was one.
type IncomingRequestInfo struct {
	Headers http.Header
	Method  string
	URL     url.URL
	Action  string
	Body    []byte
}

func newMockEndpointsManager(externalBaseURL string, logger framework.Logger) *mockEndpointsManager {
	return &mockEndpointsManager{
		endpoints:       make(map[string]*MockEndpoint),
		externalBaseURL: externalBaseURL,
		logger:          logger,
	}
}

func (m *mockEndpointsManager) newMockEndpoint(
	handler http.Handler,
	logger framework.Logger,
	options ...MockEndpointOption,
) *MockEndpoint {
	if logger == nil {
		logger = m.logger
	}
	e := &MockEndpoint{
		owner:    m,
		handler:  handler,
		requests: make(chan IncomingRequestInfo, incomingRequestQueueSize),
		logger:   logger,
	}
	_ = helpers.ApplyOptions(e, options...)

	m.lock.Lock()
	m.lastEndpointID++
	e.id = strconv.Itoa(m.lastEndpointID)
	e.basePath = endpointPathPrefix + e.id
	m.endpoints[e.id] = e
	m.lock.Unlock()
	return e
}

// splitEndpointPath turns "/endpoints/3/FormArchiver" into "3" and "/FormArchiver".
func splitEndpointPath(path string) (string, string, bool) {
	rest, ok := strings.CutPrefix(path, endpointPathPrefix)
	if !ok {
		return "", "", false
	}
	id, subpath, found := strings.Cut(rest, "/")
	if !found {
		return id, "/", true
	}
	return id, "/" + subpath, true
}

func (m *mockEndpointsManager) serveHTTP(w http.ResponseWriter, r *http.Request) {
	endpointID, path, ok := splitEndpointPath(r.URL.Path)
	var e *MockEndpoint
	if ok {
		m.lock.Lock()
		e = m.endpoints[endpointID]
		m.lock.Unlock()
	}
	if e == nil {
		m.logger.Printf("Received request for unrecognized URL path %s", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var body []byte
	if r.Body != nil {
		data, err := io.ReadAll(r.Body)
		_ = r.Body.Close()
		if err != nil {
			m.logger.Printf("Unexpected error trying to read request body: %s", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		body = data
	}

	u := *r.URL
	u.Path = path
	incoming := IncomingRequestInfo{
		Headers: r.Header,
		Method:  r.Method,
		URL:     u,
		Body:    body,
	}
	if contentType := r.Header.Get("Content-Type"); contentType != "" {
		if _, action, err := soap.ParseContentType(contentType, r.Header.Get("SOAPAction")); err == nil {
			incoming.Action = action
		}
	}

	if !e.enqueue(incoming) {
		// closed between lookup and now
		w.WriteHeader(http.StatusNotFound)
		return
	}

	req := r.Clone(r.Context())
	req.URL = &u
	req.Body = io.NopCloser(bytes.NewReader(body))
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	e.handler.ServeHTTP(sw, req)
	e.logger.Printf("Endpoint %q (%s) answered %s %s (action %q) with %d", e.description, e.basePath,
		r.Method, path, incoming.Action, sw.status)
}

func (e *MockEndpoint) enqueue(info IncomingRequestInfo) bool {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.closed {
		return false
	}
	if !helpers.NonBlockingSend(e.requests, info) {
		e.logger.Printf("Incoming request queue was full for %q (%s)", e.description, e.basePath)
	}
	return true
}

// BaseURL returns the URL the SUT should call. Requests to subpaths of it also reach the
// endpoint, with the subpath in IncomingRequestInfo.URL.
func (e *MockEndpoint) BaseURL() string {
	return e.owner.externalBaseURL + e.basePath
}

// AwaitConnection waits for an incoming request to the endpoint.
func (e *MockEndpoint) AwaitConnection(timeout time.Duration) (IncomingRequestInfo, error) {
	if cxn, ok := helpers.TryReceive(e.requests, timeout); ok {
		return cxn, nil
	}
	return IncomingRequestInfo{}, fmt.Errorf("timed out waiting for an incoming request to %q (%s)", e.description,
		e.basePath)
}

// RequireConnection is AwaitConnection for requests the SUT must make; the test fails and stops
// if none arrives in time.
func (e *MockEndpoint) RequireConnection(t helpers.TestContext, timeout time.Duration) IncomingRequestInfo {
	return helpers.RequireValueWithMessage(t, e.requests, timeout, "timed out waiting for request to %q (%s)",
		e.description, e.basePath)
}

// RequireNoMoreConnections fails the test if another request arrives within the timeout.
func (e *MockEndpoint) RequireNoMoreConnections(t helpers.TestContext, timeout time.Duration) {
	helpers.RequireNoMoreValuesWithMessage(t, e.requests, timeout,
		"did not expect another request to %q (%s), but got one", e.description, e.basePath)
}

// Close unregisters the endpoint; later requests to it get a 404. Requests already queued can
// still be read.
func (e *MockEndpoint) Close() {
	e.lock.Lock()
	if e.closed {
		e.lock.Unlock()
		return
	}
	e.closed = true
	e.lock.Unlock()

	e.logger.Printf("Closing endpoint %q (%s)", e.description, e.basePath)
	e.owner.lock.Lock()
	delete(e.owner.endpoints, e.id)
	e.owner.lock.Unlock()
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
