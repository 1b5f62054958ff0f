package wslog

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/rfd-conformance/rfd-test-harness/soap"
)

type contextKey struct{}

// NewContext returns a copy of ctx carrying l.
func NewContext(ctx context.Context, l *Log) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext returns the Log attached by the Capture middleware, or nil.
func FromContext(ctx context.Context) *Log {
	l, _ := ctx.Value(contextKey{}).(*Log)
	return l
}

// ValueRequestReadError is recorded when the request body could not be read completely. The
// record then holds only the part that was read.
const ValueRequestReadError = "request/readError"

type CaptureOptions struct {
	// Filter selects which leaf paths of the request and response bodies are recorded as values.
	// Nothing is extracted when it is empty unless CaptureAll is set.
	Filter     []string
	CaptureAll bool
	Submitter  Submitter
	Logger     *slog.Logger
}

func (o CaptureOptions) extract(l *Log, body []byte) {
	if len(body) == 0 || (len(o.Filter) == 0 && !o.CaptureAll) {
		return
	}
	values, err := ExtractValues(body, o.Filter)
	if err != nil && o.Logger != nil {
		o.Logger.Debug("Could not extract values from message body", "id", l.ID(), "error", err)
	}
	_ = l.AddValues(values)
}

// Capture wraps a simulator endpoint handler so that every request it serves is recorded in a
// Log. The log is available to the handler through FromContext, and is closed and submitted
// once the handler returns.
func Capture(endpoint, actor string, next http.Handler, opts CaptureOptions) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := New(endpoint, actor, Inbound)

		var body []byte
		var readErr error
		if r.Body != nil {
			body, readErr = io.ReadAll(r.Body)
			_ = r.Body.Close()
			r.Body = io.NopCloser(bytes.NewReader(body))
		}
		_ = l.SetRequest(r.Method, r.URL.String(), r.RemoteAddr, r.Header, body)
		if readErr != nil {
			if opts.Logger != nil {
				opts.Logger.Warn("Incomplete request body", "endpoint", endpoint, "id", l.ID(), "error", readErr)
			}
			_ = l.AddValue(ValueRequestReadError, readErr.Error())
		}
		if m, err := soap.Decode(body); err == nil {
			_ = l.SetMessageID(m.Header.MessageID)
		}
		opts.extract(l, body)

		ww := &capturingResponseWriter{w: w}
		next.ServeHTTP(ww, r.WithContext(NewContext(r.Context(), l)))

		status := ww.status
		if status == 0 {
			status = http.StatusOK
		}
		_ = l.SetResponse(status, w.Header(), ww.body.Bytes())
		recordFault(l, ww.body.Bytes())
		opts.extract(l, ww.body.Bytes())
		_ = l.Close()

		rec := l.Record()
		if opts.Logger != nil {
			opts.Logger.Info("Transaction",
				"endpoint", rec.Endpoint, "transaction", rec.Transaction, "formID", rec.FormID,
				"test", rec.TestName, "status", rec.StatusCode, "duration", rec.Duration())
		}
		if opts.Submitter != nil {
			opts.Submitter.Submit(rec)
		}
	})
}

// recordFault fills in the fault fields from a response body unless the handler already did.
func recordFault(l *Log, body []byte) {
	if l.Record().Fault != nil || len(body) == 0 {
		return
	}
	if m, err := soap.Decode(body); err == nil && m.Fault != nil {
		_ = l.SetFault(string(m.Fault.Code), m.Fault.Status, m.Fault.Reason)
	}
}

// capturingResponseWriter records the status and body written through it.
type capturingResponseWriter struct {
	w      http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (cw *capturingResponseWriter) Header() http.Header { return cw.w.Header() }

func (cw *capturingResponseWriter) WriteHeader(status int) {
	if cw.status == 0 {
		cw.status = status
	}
	cw.w.WriteHeader(status)
}

func (cw *capturingResponseWriter) Write(data []byte) (int, error) {
	if cw.status == 0 {
		cw.status = http.StatusOK
	}
	cw.body.Write(data)
	return cw.w.Write(data)
}

func (cw *capturingResponseWriter) Flush() {
	if f, ok := cw.w.(http.Flusher); ok {
		f.Flush()
	}
}
