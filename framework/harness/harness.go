// Package harness connects client-side conformance suites to the system under test. It owns
// the SOAP client, records every outbound exchange as a WSLog, and hosts mock endpoints that the
// system under test can call back.
package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rfd-conformance/rfd-test-harness/framework"
	"github.com/rfd-conformance/rfd-test-harness/framework/rfdtest"
	"github.com/rfd-conformance/rfd-test-harness/serviceinfo"
	"github.com/rfd-conformance/rfd-test-harness/soap"
	"github.com/rfd-conformance/rfd-test-harness/wslog"
)

const (
	DefaultCallTimeout  = 30 * time.Second
	DefaultStartupWait  = 10 * time.Second
	sutProbeInterval    = 100 * time.Millisecond
	callbackReadTimeout = 10 * time.Second
)

// Config describes how the harness reaches the SUT and where it listens for callbacks.
type Config struct {
	SUT serviceinfo.TestServiceInfo

	// CallbackHost is the hostname the SUT uses to reach the harness.
	CallbackHost string
	// CallbackPort is the port of the callback listener; 0 picks a free port.
	CallbackPort int

	// Capture lists the payload paths recorded as name/value pairs on outbound records.
	Capture   []string
	Submitter wslog.Submitter

	CallTimeout time.Duration
	// StartupWait bounds how long NewTestHarness waits for the SUT to answer at all.
	StartupWait time.Duration

	Logger        *slog.Logger
	DebugLogger   framework.Logger
	StartupOutput io.Writer
}

// TestHarness is the main component that manages communication with the system under test.
//
// It contains no RFD test logic, but only provides a general mechanism for test suites to build
// on.
type TestHarness struct {
	sut           serviceinfo.TestServiceInfo
	client        *soap.Client
	mockEndpoints *mockEndpointsManager
	server        *http.Server
	logger        framework.Logger
}

// NewTestHarness waits for the SUT to respond to HTTP, then starts the callback listener.
func NewTestHarness(ctx context.Context, config Config) (*TestHarness, error) {
	if config.DebugLogger == nil {
		config.DebugLogger = framework.NullLogger()
	}
	if config.StartupOutput == nil {
		config.StartupOutput = io.Discard
	}
	if config.CallTimeout <= 0 {
		config.CallTimeout = DefaultCallTimeout
	}
	if config.StartupWait <= 0 {
		config.StartupWait = DefaultStartupWait
	}
	if config.CallbackHost == "" {
		config.CallbackHost = "localhost"
	}

	if err := waitForSUT(ctx, config.SUT.URL, config.StartupWait, config.StartupOutput); err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", config.CallbackPort))
	if err != nil {
		return nil, fmt.Errorf("starting callback listener: %w", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port

	h := &TestHarness{
		sut: config.SUT,
		mockEndpoints: newMockEndpointsManager(
			fmt.Sprintf("http://%s:%d", config.CallbackHost, port),
			config.DebugLogger),
		logger: config.DebugLogger,
	}
	transport := &wslog.Transport{
		Endpoint:  config.SUT.Name,
		Actor:     strings.Join(config.SUT.Capabilities, ","),
		Filter:    config.Capture,
		Submitter: config.Submitter,
	}
	h.client = soap.NewClient(&http.Client{Transport: transport, Timeout: config.CallTimeout}, config.Logger)

	h.server = &http.Server{
		Handler:           http.HandlerFunc(h.mockEndpoints.serveHTTP),
		ReadHeaderTimeout: callbackReadTimeout,
	}
	go func() {
		if err := h.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Printf("Callback listener stopped: %s", err)
		}
	}()
	return h, nil
}

// SUT returns the description of the system under test.
func (h *TestHarness) SUT() serviceinfo.TestServiceInfo {
	return h.sut
}

// Call sends one SOAP request to the SUT on behalf of t. The exchange is recorded as a WSLog
// tagged with the test's ID, and the record ID is added to the test's result.
func (h *TestHarness) Call(t *rfdtest.T, action string, request, response interface{}) (*soap.Exchange, error) {
	var recordID string
	ctx := wslog.WithCall(t.Ctx(), t.ID().String(), func(r wslog.Record) { recordID = r.ID })
	ex, err := h.client.Call(ctx, h.sut.URL, action, request, response)
	t.RecordTransaction(recordID)
	if ex != nil {
		t.Debug("%s -> HTTP %d in %s (record %s)", action, ex.StatusCode, ex.Duration, recordID)
		t.Debug("request:\n%s", ex.RequestBody)
		t.Debug("response:\n%s", ex.ResponseBody)
	}
	if err != nil {
		t.Debug("call failed: %s", err)
	}
	return ex, err
}

// NewMockEndpoint adds a new endpoint that can receive requests.
//
// The specified handler will be called for all incoming requests to the endpoint's
// base URL or any subpath of it. For instance, if the generated base URL (as reported
// by MockEndpoint.BaseURL()) is http://localhost:8111/endpoints/3, then it can also
// receive requests to http://localhost:8111/endpoints/3/some/subpath.
//
// When the handler is called, the test harness rewrites the request URL first so that
// the handler sees only the subpath. It also attaches a Context to the request whose
// Done channel will be closed if Close is called on the endpoint.
func (h *TestHarness) NewMockEndpoint(
	handler http.Handler,
	logger framework.Logger,
	options ...MockEndpointOption,
) *MockEndpoint {
	if logger == nil {
		logger = h.logger
	}
	return h.mockEndpoints.newMockEndpoint(handler, logger, options...)
}

// Close stops the callback listener.
func (h *TestHarness) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return h.server.Shutdown(ctx)
}

// waitForSUT polls the SUT until it gives any HTTP response. A SOAP endpoint need not answer GET
// with 200, so the status is not checked.
func waitForSUT(ctx context.Context, url string, timeout time.Duration, output io.Writer) error {
	_, _ = fmt.Fprintf(output, "Connecting to system under test at %s", url)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(sutProbeInterval)
	defer ticker.Stop()
	for {
		_, _ = fmt.Fprint(output, ".")
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			_, _ = fmt.Fprintf(output, "\nSystem under test answered with HTTP %d\n", resp.StatusCode)
			return nil
		}
		select {
		case <-ctx.Done():
			_, _ = fmt.Fprintln(output)
			return fmt.Errorf("timed out, result of last query was: %w", err)
		case <-ticker.C:
		}
	}
}
