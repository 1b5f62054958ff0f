// Package wslog records SOAP transactions. A Log is filled in while a transaction is in flight,
// either by the Capture middleware for requests received by a simulator or by Transport for
// requests sent during a client-side run. Once closed it is frozen, and its Record snapshot is
// handed to an Executor that delivers it to every Sink.
package wslog

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/segmentio/ksuid"
)

// ErrClosed is returned by every mutator of a Log after Close has been called.
var ErrClosed = errors.New("wslog: log is closed")

type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// Outcome values used by Record.Outcome.
const (
	OutcomeOK        = "ok"
	OutcomeFault     = "fault"
	OutcomeHTTPError = "http_error"
)

type NameValue struct {
	Name  string `json:"name" msgpack:"name"`
	Value string `json:"value" msgpack:"value"`
}

type FaultInfo struct {
	Code   string `json:"code" msgpack:"code"`
	Status string `json:"status,omitempty" msgpack:"status"`
	Reason string `json:"reason,omitempty" msgpack:"reason"`
}

// Record is an immutable snapshot of a Log. It is what gets stored, published and serialized.
type Record struct {
	ID          string    `json:"id" msgpack:"id"`
	Endpoint    string    `json:"endpoint" msgpack:"endpoint"`
	Actor       string    `json:"actor,omitempty" msgpack:"actor"`
	Direction   Direction `json:"direction" msgpack:"direction"`
	Transaction string    `json:"transaction,omitempty" msgpack:"transaction"`
	Action      string    `json:"action,omitempty" msgpack:"action"`
	MessageID   string    `json:"messageId,omitempty" msgpack:"messageId"`
	FormID      string    `json:"formId,omitempty" msgpack:"formId"`
	TestName    string    `json:"testName,omitempty" msgpack:"testName"`

	Method     string `json:"method" msgpack:"method"`
	URL        string `json:"url" msgpack:"url"`
	RemoteAddr string `json:"remoteAddr,omitempty" msgpack:"remoteAddr"`

	RequestTime  time.Time `json:"requestTime" msgpack:"requestTime"`
	ResponseTime time.Time `json:"responseTime" msgpack:"responseTime"`

	RequestHeaders  http.Header `json:"requestHeaders,omitempty" msgpack:"requestHeaders"`
	ResponseHeaders http.Header `json:"responseHeaders,omitempty" msgpack:"responseHeaders"`
	RequestBody     string      `json:"requestBody,omitempty" msgpack:"requestBody"`
	ResponseBody    string      `json:"responseBody,omitempty" msgpack:"responseBody"`

	StatusCode int         `json:"statusCode" msgpack:"statusCode"`
	Fault      *FaultInfo  `json:"fault,omitempty" msgpack:"fault"`
	Values     []NameValue `json:"values,omitempty" msgpack:"values"`
}

func (r Record) Duration() time.Duration {
	if r.RequestTime.IsZero() || r.ResponseTime.IsZero() {
		return 0
	}
	return r.ResponseTime.Sub(r.RequestTime)
}

// Outcome classifies the transaction for metrics: a SOAP fault, some other HTTP error status,
// or success.
func (r Record) Outcome() string {
	switch {
	case r.Fault != nil:
		return OutcomeFault
	case r.StatusCode >= 400 || r.StatusCode == 0:
		return OutcomeHTTPError
	default:
		return OutcomeOK
	}
}

// Value returns the first value recorded under name.
func (r Record) Value(name string) (string, bool) {
	for _, nv := range r.Values {
		if nv.Name == name {
			return nv.Value, true
		}
	}
	return "", false
}

func (r Record) clone() Record {
	ret := r
	ret.RequestHeaders = r.RequestHeaders.Clone()
	ret.ResponseHeaders = r.ResponseHeaders.Clone()
	if r.Fault != nil {
		f := *r.Fault
		ret.Fault = &f
	}
	ret.Values = append([]NameValue(nil), r.Values...)
	return ret
}

// Log is the mutable record of one transaction. It is safe for concurrent use, so a test
// implementation may add values while the middleware is filling in the response.
type Log struct {
	lock   sync.Mutex
	rec    Record
	closed bool
}

// New creates a Log with a fresh ID and RequestTime set to now.
func New(endpoint, actor string, direction Direction) *Log {
	return &Log{rec: Record{
		ID:          ksuid.New().String(),
		Endpoint:    endpoint,
		Actor:       actor,
		Direction:   direction,
		RequestTime: time.Now(),
	}}
}

func (l *Log) update(fn func(r *Record)) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.closed {
		return ErrClosed
	}
	fn(&l.rec)
	return nil
}

func (l *Log) ID() string {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.rec.ID
}

func (l *Log) SetTransaction(transaction, action string) error {
	return l.update(func(r *Record) {
		r.Transaction = transaction
		r.Action = action
	})
}

func (l *Log) SetMessageID(id string) error {
	return l.update(func(r *Record) { r.MessageID = id })
}

func (l *Log) SetFormID(id string) error {
	return l.update(func(r *Record) { r.FormID = id })
}

func (l *Log) SetTestName(name string) error {
	return l.update(func(r *Record) { r.TestName = name })
}

func (l *Log) SetRequest(method, url, remoteAddr string, headers http.Header, body []byte) error {
	return l.update(func(r *Record) {
		r.Method = method
		r.URL = url
		r.RemoteAddr = remoteAddr
		r.RequestHeaders = headers.Clone()
		r.RequestBody = string(body)
	})
}

func (l *Log) SetResponse(status int, headers http.Header, body []byte) error {
	return l.update(func(r *Record) {
		r.StatusCode = status
		r.ResponseHeaders = headers.Clone()
		r.ResponseBody = string(body)
	})
}

func (l *Log) SetFault(code, status, reason string) error {
	return l.update(func(r *Record) {
		r.Fault = &FaultInfo{Code: code, Status: status, Reason: reason}
	})
}

func (l *Log) AddValue(name, value string) error {
	return l.update(func(r *Record) {
		r.Values = append(r.Values, NameValue{Name: name, Value: value})
	})
}

func (l *Log) AddValues(values []NameValue) error {
	return l.update(func(r *Record) {
		r.Values = append(r.Values, values...)
	})
}

// Close freezes the log, stamping ResponseTime if it has not been set. Closing twice is allowed.
func (l *Log) Close() error {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.closed {
		return nil
	}
	if l.rec.ResponseTime.IsZero() {
		l.rec.ResponseTime = time.Now()
	}
	l.closed = true
	return nil
}

// Record returns a deep copy of the current state.
func (l *Log) Record() Record {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.rec.clone()
}
