package wslog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfd-conformance/rfd-test-harness/framework/helpers"
)

type collectingSink struct {
	lock sync.Mutex
	ids  []string
}

func (s *collectingSink) Deliver(_ context.Context, rec Record) error {
	s.lock.Lock()
	s.ids = append(s.ids, rec.ID)
	s.lock.Unlock()
	return nil
}

func (s *collectingSink) count() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.ids)
}

func TestExecutorDeliversToAllSinks(t *testing.T) {
	a, b := &collectingSink{}, &collectingSink{}
	failing := SinkFunc(func(context.Context, Record) error { return errors.New("sorry") })
	e := NewExecutor(ExecutorConfig{Workers: 2}, a, failing, b)

	for i := 0; i < 10; i++ {
		assert.True(t, e.Submit(Record{ID: "r"}))
	}
	helpers.AssertEventually(t, func() bool { return a.count() == 10 && b.count() == 10 },
		time.Second, time.Millisecond*10, "records were not delivered to every sink")
	e.Close()
}

func TestExecutorDropsWhenQueueIsFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	blocking := SinkFunc(func(context.Context, Record) error {
		helpers.NonBlockingSend(started, struct{}{})
		<-release
		return nil
	})
	e := NewExecutor(ExecutorConfig{Workers: 1, QueueSize: 1}, blocking)

	require.True(t, e.Submit(Record{ID: "1"}))
	helpers.RequireValue[struct{}](t, started, time.Second)
	require.True(t, e.Submit(Record{ID: "2"})) // fills the queue
	assert.False(t, e.Submit(Record{ID: "3"}))

	close(release)
	e.Close()
}

func TestExecutorCloseDrainsQueue(t *testing.T) {
	sink := &collectingSink{}
	slow := SinkFunc(func(ctx context.Context, rec Record) error {
		time.Sleep(time.Millisecond * 5)
		return sink.Deliver(ctx, rec)
	})
	e := NewExecutor(ExecutorConfig{Workers: 1, QueueSize: 20}, slow)
	for i := 0; i < 10; i++ {
		require.True(t, e.Submit(Record{ID: "r"}))
	}
	e.Close()
	assert.Equal(t, 10, sink.count())

	assert.False(t, e.Submit(Record{ID: "late"}))
	e.Close()
}
