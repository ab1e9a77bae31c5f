package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PricingQuotesTotal counts quote computations by path (cart, calculator, checkout, order) and result.
	PricingQuotesTotal *prometheus.CounterVec
	// TaxRuleMatchesTotal counts rule-path evaluations by whether a rule matched.
	TaxRuleMatchesTotal *prometheus.CounterVec
	// DiscountRejectionsTotal counts rejected discount codes by failing condition.
	DiscountRejectionsTotal *prometheus.CounterVec
	// OrdersCommittedTotal counts orders persisted with their invoice.
	OrdersCommittedTotal prometheus.Counter
	// TaxSnapshotCacheTotal counts tax snapshot lookups by hit, miss or error.
	TaxSnapshotCacheTotal *prometheus.CounterVec
	// LoyaltyCreditsTotal counts loyalty credit task outcomes.
	LoyaltyCreditsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers pricing collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PricingQuotesTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_quotes_total",
			Help:      "Count of pricing computations by entry point and outcome.",
		}, []string{"path", "result"}))
		TaxRuleMatchesTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tax_rule_matches_total",
			Help:      "Count of rule-based tax evaluations by match outcome.",
		}, []string{"result"}))
		DiscountRejectionsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discount_rejections_total",
			Help:      "Count of discount codes rejected by reason.",
		}, []string{"reason"}))
		OrdersCommittedTotal = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_committed_total",
			Help:      "Number of orders committed with an invoice.",
		}))
		TaxSnapshotCacheTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tax_snapshot_cache_total",
			Help:      "Tax snapshot cache lookups by result.",
		}, []string{"result"}))
		LoyaltyCreditsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loyalty_credits_total",
			Help:      "Loyalty credit task outcomes.",
		}, []string{"result"}))
	})
}

// The helpers below are no-ops until MustRegisterDomainMetrics has run, so
// packages can record metrics unconditionally.

// ObserveQuote records a pricing computation.
func ObserveQuote(path string, err error) {
	if PricingQuotesTotal == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	PricingQuotesTotal.WithLabelValues(path, result).Inc()
}

// ObserveRuleMatch records whether the rule path found a matching rule.
func ObserveRuleMatch(matched bool) {
	if TaxRuleMatchesTotal == nil {
		return
	}
	result := "matched"
	if !matched {
		result = "none"
	}
	TaxRuleMatchesTotal.WithLabelValues(result).Inc()
}

// ObserveDiscountRejection records a rejected discount code.
func ObserveDiscountRejection(reason string) {
	if DiscountRejectionsTotal == nil {
		return
	}
	DiscountRejectionsTotal.WithLabelValues(reason).Inc()
}

// ObserveOrderCommitted records a committed order.
func ObserveOrderCommitted() {
	if OrdersCommittedTotal == nil {
		return
	}
	OrdersCommittedTotal.Inc()
}

// ObserveSnapshotCache records a tax snapshot cache lookup.
func ObserveSnapshotCache(result string) {
	if TaxSnapshotCacheTotal == nil {
		return
	}
	TaxSnapshotCacheTotal.WithLabelValues(result).Inc()
}

// ObserveLoyaltyCredit records a loyalty task outcome.
func ObserveLoyaltyCredit(result string) {
	if LoyaltyCreditsTotal == nil {
		return
	}
	LoyaltyCreditsTotal.WithLabelValues(result).Inc()
}
