package wslog

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/rfd-conformance/rfd-test-harness/rfd"
	"github.com/rfd-conformance/rfd-test-harness/soap"
)

// Transport is an http.RoundTripper that records every request it carries as an outbound Log.
// It is used for the SOAP client of client-side runs.
type Transport struct {
	Base      http.RoundTripper
	Endpoint  string
	Actor     string
	Filter    []string
	Submitter Submitter

	// OnRecord, if set, is called synchronously with each closed record.
	OnRecord func(Record)
}

type callContextKey struct{}

type callInfo struct {
	testName string
	onRecord func(Record)
}

// WithCall returns a context for an outbound request whose record is tagged with testName and
// passed to onRecord, which may be nil, once the exchange completes.
func WithCall(ctx context.Context, testName string, onRecord func(Record)) context.Context {
	return context.WithValue(ctx, callContextKey{}, callInfo{testName: testName, onRecord: onRecord})
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	opts := CaptureOptions{Filter: t.Filter}
	l := New(t.Endpoint, t.Actor, Outbound)
	call, _ := req.Context().Value(callContextKey{}).(callInfo)
	if call.testName != "" {
		_ = l.SetTestName(call.testName)
	}

	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, err
		}
		req = req.Clone(req.Context())
		req.Body = io.NopCloser(bytes.NewReader(body))
	}
	_ = l.SetRequest(req.Method, req.URL.String(), "", req.Header, body)
	if m, err := soap.Decode(body); err == nil {
		_ = l.SetMessageID(m.Header.MessageID)
		if tx, ok := rfd.TransactionForAction(m.Header.Action); ok {
			_ = l.SetTransaction(string(tx), m.Header.Action)
		} else {
			_ = l.SetTransaction("", m.Header.Action)
		}
		if formID, ok := FirstValue(body, "formID"); ok {
			_ = l.SetFormID(formID)
		}
	}
	opts.extract(l, body)

	resp, err := base.RoundTrip(req)
	if err != nil {
		t.finish(l, call)
		return nil, err
	}
	respBody, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(respBody))

	_ = l.SetResponse(resp.StatusCode, resp.Header, respBody)
	recordFault(l, respBody)
	opts.extract(l, respBody)
	t.finish(l, call)
	if readErr != nil {
		return nil, readErr
	}
	return resp, nil
}

func (t *Transport) finish(l *Log, call callInfo) {
	_ = l.Close()
	rec := l.Record()
	if call.onRecord != nil {
		call.onRecord(rec)
	}
	if t.OnRecord != nil {
		t.OnRecord(rec)
	}
	if t.Submitter != nil {
		t.Submitter.Submit(rec)
	}
}
