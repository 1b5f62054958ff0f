package store

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfd-conformance/rfd-test-harness/wslog"
)

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func makeRecord(id, endpoint, txn string, offset time.Duration) wslog.Record {
	return wslog.Record{
		ID:          id,
		Endpoint:    endpoint,
		Transaction: txn,
		Direction:   wslog.Inbound,
		RequestTime: baseTime.Add(offset),
	}
}

func ids(records []wslog.Record) []string {
	ret := make([]string, 0, len(records))
	for _, r := range records {
		ret = append(ret, r.ID)
	}
	return ret
}

func TestMemoryStoreSaveAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	rec := makeRecord("a", "FormManager", "ITI-34", 0)
	require.NoError(t, s.Save(ctx, rec))

	got, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, rec, got)

	_, ok, err = s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	rec.FormID = "updated"
	require.NoError(t, s.Save(ctx, rec))
	got, _, _ = s.Get(ctx, "a")
	assert.Equal(t, "updated", got.FormID)
	all, _ := s.List(ctx, Query{})
	assert.Len(t, all, 1)
}

func TestMemoryStoreListOrderAndFilters(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Save(ctx, makeRecord("1", "FormManager", "ITI-34", 0)))
	require.NoError(t, s.Save(ctx, makeRecord("2", "FormReceiver", "ITI-35", time.Second)))
	require.NoError(t, s.Save(ctx, makeRecord("3", "FormManager", "ITI-37", 2*time.Second)))
	require.NoError(t, s.Save(ctx, makeRecord("4", "FormManager", "ITI-34", 2*time.Second)))

	all, err := s.List(ctx, Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{"4", "3", "2", "1"}, ids(all))

	byEndpoint, _ := s.List(ctx, Query{Endpoint: "FormManager"})
	assert.Equal(t, []string{"4", "3", "1"}, ids(byEndpoint))

	byTxn, _ := s.List(ctx, Query{Endpoint: "FormManager", Transaction: "ITI-34"})
	assert.Equal(t, []string{"4", "1"}, ids(byTxn))

	limited, _ := s.List(ctx, Query{Limit: 2})
	assert.Equal(t, []string{"4", "3"}, ids(limited))

	require.NoError(t, s.Reset(ctx))
	all, _ = s.List(ctx, Query{})
	assert.Empty(t, all)
	require.NoError(t, s.Close())
}

func TestDefaultLimit(t *testing.T) {
	var records []wslog.Record
	for i := 0; i < DefaultLimit+5; i++ {
		records = append(records, makeRecord(fmt.Sprintf("r%03d", i), "e", "", time.Duration(i)))
	}
	assert.Len(t, selectRecords(records, Query{}), DefaultLimit)
}

func TestSinkSavesRecords(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, Sink(s).Deliver(context.Background(), makeRecord("x", "e", "", 0)))
	_, ok, _ := s.Get(context.Background(), "x")
	assert.True(t, ok)
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), Config{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = Open(context.Background(), Config{Type: "cassandra"}, nil)
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = Open(context.Background(), Config{Type: TypeRedis}, nil)
	assert.Error(t, err)
}

func fullRecord() wslog.Record {
	return wslog.Record{
		ID:              "2fWKyuWZt7Z2CqXbXHNUr9kLDcC",
		Endpoint:        "FormManager",
		Actor:           "form-manager",
		Direction:       wslog.Inbound,
		Transaction:     "ITI-34",
		Action:          "urn:ihe:iti:2007:RetrieveForm",
		MessageID:       "urn:uuid:1",
		FormID:          "age-form",
		TestName:        "prepop-age",
		Method:          "POST",
		URL:             "/rfd/FormManager",
		RemoteAddr:      "10.0.0.1:5555",
		RequestTime:     baseTime,
		ResponseTime:    baseTime.Add(15 * time.Millisecond),
		RequestHeaders:  http.Header{"Content-Type": {"application/soap+xml"}},
		ResponseHeaders: http.Header{"Content-Type": {"application/soap+xml"}},
		RequestBody:     "<req/>",
		ResponseBody:    "<resp/>",
		StatusCode:      400,
		Fault:           &wslog.FaultInfo{Code: "Sender", Status: "InvalidPrepopData", Reason: "age"},
		Values:          []wslog.NameValue{{Name: "age", Value: "99"}, {Name: "age", Value: "100"}},
	}
}

func TestMsgpackRecordEncoding(t *testing.T) {
	rec := fullRecord()
	data, err := encodeRecord(rec)
	require.NoError(t, err)
	got, err := decodeRecord(data)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.True(t, rec.RequestTime.Equal(got.RequestTime))
	assert.Equal(t, rec.Fault, got.Fault)
	assert.Equal(t, rec.Values, got.Values)
	assert.Equal(t, rec.RequestHeaders, got.RequestHeaders)
}

func TestClickHouseRowMapping(t *testing.T) {
	rec := fullRecord()
	row, err := rowFromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, "ITI-34", row.TransactionCode)
	assert.Equal(t, int32(400), row.StatusCode)
	assert.Equal(t, "InvalidPrepopData", row.FaultStatus)
	assert.JSONEq(t, `[{"name":"age","value":"99"},{"name":"age","value":"100"}]`, row.ValuesJSON)

	back, err := row.record()
	require.NoError(t, err)
	assert.Equal(t, rec, back)

	rec.Fault = nil
	rec.Values = nil
	row, err = rowFromRecord(rec)
	require.NoError(t, err)
	back, err = row.record()
	require.NoError(t, err)
	assert.Nil(t, back.Fault)
	assert.Empty(t, back.Values)
}

func TestDynamoDBTimeKeyOrdersSameSecondRecords(t *testing.T) {
	keyToID := make(map[string]string)
	var created []string
	for i := 0; i < 20; i++ {
		rec := wslog.New("FormManager", "form-manager", wslog.Inbound).Record()
		rec.RequestTime = baseTime.Add(time.Duration(i) * time.Millisecond)
		keyToID[timeKey(rec)] = rec.ID
		created = append(created, rec.ID)
	}

	keys := make([]string, 0, len(keyToID))
	for k := range keyToID {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	newestFirst := make([]string, 0, len(keys))
	for _, k := range keys {
		newestFirst = append(newestFirst, keyToID[k])
	}
	for i, id := range newestFirst {
		assert.Equal(t, created[len(created)-1-i], id)
	}

	earlier := timeKey(wslog.Record{ID: "zzz", RequestTime: baseTime})
	later := timeKey(wslog.Record{ID: "aaa", RequestTime: baseTime.Add(time.Nanosecond)})
	assert.Less(t, earlier, later)
	assert.Equal(t, fmt.Sprintf("%020d#x", 0), timeKey(wslog.Record{ID: "x"}))
}
