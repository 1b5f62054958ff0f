package wslog

import (
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogHasIDAndRequestTime(t *testing.T) {
	l := New("FormManager", "form-manager", Inbound)
	rec := l.Record()
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, rec.ID, l.ID())
	assert.Equal(t, "FormManager", rec.Endpoint)
	assert.Equal(t, Inbound, rec.Direction)
	assert.False(t, rec.RequestTime.IsZero())
	assert.True(t, rec.ResponseTime.IsZero())
	assert.Equal(t, time.Duration(0), rec.Duration())
}

func TestLogIDsAreUniqueAndSortable(t *testing.T) {
	a := New("e", "", Inbound)
	time.Sleep(time.Second + 10*time.Millisecond) // ksuid timestamps have one-second resolution
	b := New("e", "", Inbound)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Less(t, a.ID(), b.ID())
}

func TestMutatorsFailAfterClose(t *testing.T) {
	l := New("e", "", Inbound)
	require.NoError(t, l.AddValue("a", "1"))
	require.NoError(t, l.Close())

	assert.ErrorIs(t, l.AddValue("b", "2"), ErrClosed)
	assert.ErrorIs(t, l.AddValues([]NameValue{{"c", "3"}}), ErrClosed)
	assert.ErrorIs(t, l.SetTransaction("ITI-34", "x"), ErrClosed)
	assert.ErrorIs(t, l.SetMessageID("m"), ErrClosed)
	assert.ErrorIs(t, l.SetFormID("f"), ErrClosed)
	assert.ErrorIs(t, l.SetTestName("t"), ErrClosed)
	assert.ErrorIs(t, l.SetRequest("POST", "/", "", nil, nil), ErrClosed)
	assert.ErrorIs(t, l.SetResponse(200, nil, nil), ErrClosed)
	assert.ErrorIs(t, l.SetFault("Sender", "s", "r"), ErrClosed)

	assert.Equal(t, []NameValue{{"a", "1"}}, l.Record().Values)
}

func TestCloseIsIdempotentAndStampsResponseTime(t *testing.T) {
	l := New("e", "", Inbound)
	require.NoError(t, l.Close())
	first := l.Record().ResponseTime
	assert.False(t, first.IsZero())
	assert.GreaterOrEqual(t, l.Record().Duration(), time.Duration(0))

	time.Sleep(time.Millisecond)
	require.NoError(t, l.Close())
	assert.Equal(t, first, l.Record().ResponseTime)
}

func TestValuesKeepOrderAndDuplicates(t *testing.T) {
	l := New("e", "", Inbound)
	_ = l.AddValue("x", "1")
	_ = l.AddValues([]NameValue{{"y", "2"}, {"x", "3"}})
	assert.Equal(t, []NameValue{{"x", "1"}, {"y", "2"}, {"x", "3"}}, l.Record().Values)

	v, ok := l.Record().Value("x")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	_, ok = l.Record().Value("z")
	assert.False(t, ok)
}

func TestRecordIsASnapshot(t *testing.T) {
	l := New("e", "", Inbound)
	headers := http.Header{"A": {"1"}}
	_ = l.SetRequest("POST", "/x", "1.2.3.4", headers, []byte("body"))
	_ = l.AddValue("a", "1")
	_ = l.SetFault("Sender", "s", "r")

	rec := l.Record()
	headers.Set("A", "changed")
	rec.RequestHeaders.Set("A", "changed")
	rec.Values[0].Value = "changed"
	rec.Fault.Reason = "changed"
	_ = l.AddValue("b", "2")

	again := l.Record()
	assert.Equal(t, "1", again.RequestHeaders.Get("A"))
	assert.Equal(t, "1", again.Values[0].Value)
	assert.Equal(t, "r", again.Fault.Reason)
	assert.Len(t, rec.Values, 1)
	assert.Len(t, again.Values, 2)
}

func TestConcurrentAddValue(t *testing.T) {
	l := New("e", "", Inbound)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.AddValue("n", "v")
		}()
	}
	wg.Wait()
	assert.Len(t, l.Record().Values, 20)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, OutcomeOK, Record{StatusCode: 200}.Outcome())
	assert.Equal(t, OutcomeHTTPError, Record{StatusCode: 404}.Outcome())
	assert.Equal(t, OutcomeHTTPError, Record{}.Outcome())
	assert.Equal(t, OutcomeFault, Record{StatusCode: 400, Fault: &FaultInfo{Code: "Sender"}}.Outcome())
}
