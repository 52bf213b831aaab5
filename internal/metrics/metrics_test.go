package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckoutOrdersCounter(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.CheckoutOrders.WithLabelValues("COD", OutcomeCommitted).Inc()
	m.CheckoutOrders.WithLabelValues("COD", OutcomeCommitted).Inc()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.CheckoutOrders.WithLabelValues("COD", OutcomeCommitted)))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.CheckoutOrders.WithLabelValues("COD", OutcomeFailed)))
}

func TestHandler_ExposesCollectors(t *testing.T) {
	m := NewNop()
	m.GatewayCalls.WithLabelValues("hosted", "capture", "ok").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `storefront_gateway_calls_total{gateway="hosted",operation="capture",result="ok"} 1`)
}

func TestNew_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
