// Package feed publishes captured transactions as a Server-Sent-Events stream, so that a browser
// or a remote console can watch simulator traffic live.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/launchdarkly/eventsource"

	"github.com/rfd-conformance/rfd-test-harness/framework"
	"github.com/rfd-conformance/rfd-test-harness/wslog"
)

const (
	channel = "transactions"

	// EventName is the SSE event type used for every record.
	EventName = "transaction"

	DefaultReplay = 50
)

type eventSourceDebugLogger struct {
	logger framework.Logger
}

func (l eventSourceDebugLogger) Println(args ...interface{}) {
	l.logger.Printf("%s", fmt.Sprintln(args...))
}

func (l eventSourceDebugLogger) Printf(format string, args ...interface{}) {
	l.logger.Printf(format, args...)
}

type transactionEvent struct {
	id   string
	data string
}

func (e transactionEvent) Id() string    { return e.id } //nolint:revive // method name fixed by eventsource.Event
func (e transactionEvent) Event() string { return EventName }
func (e transactionEvent) Data() string  { return e.data }

func newEvent(rec wslog.Record) (transactionEvent, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return transactionEvent{}, err
	}
	return transactionEvent{id: rec.ID, data: string(data)}, nil
}

// Feed is a wslog.Sink. New subscribers first receive the most recent records (up to the
// configured replay count), or only those after Last-Event-ID if they are reconnecting.
type Feed struct {
	streams *eventsource.Server
	recent  []transactionEvent
	replay  int
	lock    sync.RWMutex
}

func New(replay int, debugLogger framework.Logger) *Feed {
	if replay < 0 {
		replay = 0
	}
	if debugLogger == nil {
		debugLogger = framework.NullLogger()
	}
	streams := eventsource.NewServer()
	streams.ReplayAll = true
	streams.AllowCORS = true
	streams.Logger = eventSourceDebugLogger{debugLogger}

	f := &Feed{streams: streams, replay: replay}
	streams.Register(channel, f)
	return f
}

func (f *Feed) Deliver(_ context.Context, rec wslog.Record) error {
	event, err := newEvent(rec)
	if err != nil {
		return err
	}
	f.lock.Lock()
	if f.replay > 0 {
		f.recent = append(f.recent, event)
		if len(f.recent) > f.replay {
			f.recent = append([]transactionEvent(nil), f.recent[len(f.recent)-f.replay:]...)
		}
	}
	f.lock.Unlock()
	f.streams.Publish([]string{channel}, event)
	return nil
}

// Replay implements eventsource.Repository. Records are replayed in delivery order starting after
// lastEventID; an ID that is no longer retained replays everything.
func (f *Feed) Replay(_, lastEventID string) chan eventsource.Event {
	f.lock.RLock()
	start := 0
	if lastEventID != "" {
		for i, e := range f.recent {
			if e.id == lastEventID {
				start = i + 1
				break
			}
		}
	}
	events := append([]transactionEvent(nil), f.recent[start:]...)
	f.lock.RUnlock()

	ch := make(chan eventsource.Event, len(events))
	for _, e := range events {
		ch <- e
	}
	close(ch)
	return ch
}

func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	f.streams.Handler(channel)(w, r)
}

func (f *Feed) Close() {
	f.streams.Close()
}
