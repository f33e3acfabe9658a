package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"zkloan/internal/domain/pool"
	"zkloan/pkg/amount"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(1)
	m.ObserveDecision("approved")
	m.ObserveDecision("replay")
	m.ObserveDecision("replay")
	m.ObserveLoanClosed("liquidated")

	require.Equal(t, 1.0, testutil.ToFloat64(m.decisions.WithLabelValues("approved")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.decisions.WithLabelValues("replay")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.closed.WithLabelValues("liquidated")))
}

func TestMetrics_PoolGaugesInAssetUnits(t *testing.T) {
	m := New(1)
	m.ObservePool(pool.State{TotalValueLocked: amount.New(104), Liquidity: amount.New(76)})

	require.InDelta(t, 10.4, testutil.ToFloat64(m.tvl), 1e-9)
	require.InDelta(t, 7.6, testutil.ToFloat64(m.liquidity), 1e-9)
}

func TestMetrics_Handler(t *testing.T) {
	m := New(18)
	m.ObserveRequest("POST", "/loans", "201", 0.01)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	require.Equal(t, 200, rec.Code)
	require.True(t, strings.Contains(string(body), `zkloan_http_requests_total{code="201",method="POST",route="/loans"} 1`))
	require.True(t, strings.Contains(string(body), "go_goroutines"))
}
