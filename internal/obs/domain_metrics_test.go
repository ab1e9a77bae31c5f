package obs_test

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/nefol-pricing/internal/obs"
)

func TestDomainMetricsRecord(t *testing.T) {
	obs.MustRegisterDomainMetrics("nefol_test", prometheus.NewRegistry())

	before := testutil.ToFloat64(obs.PricingQuotesTotal.WithLabelValues("cart", "error"))
	obs.ObserveQuote("cart", errors.New("boom"))
	require.Equal(t, before+1, testutil.ToFloat64(obs.PricingQuotesTotal.WithLabelValues("cart", "error")))

	before = testutil.ToFloat64(obs.TaxRuleMatchesTotal.WithLabelValues("none"))
	obs.ObserveRuleMatch(false)
	require.Equal(t, before+1, testutil.ToFloat64(obs.TaxRuleMatchesTotal.WithLabelValues("none")))

	before = testutil.ToFloat64(obs.DiscountRejectionsTotal.WithLabelValues("expired"))
	obs.ObserveDiscountRejection("expired")
	require.Equal(t, before+1, testutil.ToFloat64(obs.DiscountRejectionsTotal.WithLabelValues("expired")))

	before = testutil.ToFloat64(obs.OrdersCommittedTotal)
	obs.ObserveOrderCommitted()
	require.Equal(t, before+1, testutil.ToFloat64(obs.OrdersCommittedTotal))
}
