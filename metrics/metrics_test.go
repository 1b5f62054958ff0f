package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfd-conformance/rfd-test-harness/wslog"
)

func TestCollectorCountsOutcomes(t *testing.T) {
	c := NewCollector()
	now := time.Now()
	ok := wslog.Record{Endpoint: "FM", Transaction: "ITI-34", StatusCode: 200, RequestTime: now, ResponseTime: now.Add(time.Millisecond)}
	fault := wslog.Record{Endpoint: "FM", Transaction: "ITI-34", StatusCode: 400,
		Fault: &wslog.FaultInfo{Code: "Sender", Status: "UnknownFormID"}}
	notFound := wslog.Record{Endpoint: "FM", StatusCode: 404}

	for _, rec := range []wslog.Record{ok, ok, fault, notFound} {
		require.NoError(t, c.Deliver(context.Background(), rec))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(c.transactions.WithLabelValues("FM", "ITI-34", wslog.OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.transactions.WithLabelValues("FM", "ITI-34", wslog.OutcomeFault)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.transactions.WithLabelValues("FM", "unknown", wslog.OutcomeHTTPError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.faults.WithLabelValues("FM", "Sender", "UnknownFormID")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.duration))
}

func TestCollectorHandler(t *testing.T) {
	c := NewCollector()
	require.NoError(t, c.Deliver(context.Background(), wslog.Record{Endpoint: "FR", Transaction: "ITI-35", StatusCode: 200}))

	httphelpers.WithServer(c.Handler(), func(server *httptest.Server) {
		resp, err := http.Get(server.URL)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		assert.Contains(t, string(body), `rfd_transactions_total{endpoint="FR",outcome="ok",transaction="ITI-35"} 1`)
	})
}
