// Package business translates raw run health into business-facing
// scores. All functions are pure so the estimator can be driven from
// snapshots without touching run state.
package business

import (
	"math"
	"time"

	"github.com/ratewatch/marathon/internal/metrics"
)

// Inputs carries the run signals the estimator reads.
type Inputs struct {
	ErrorRatePercent  float64
	AvgResponseMs     float64
	ResponseThreshold float64
	CriticalAlerts    int
}

// Estimate derives business impact scores from run health. Scores are
// percentages on fixed floors so a single bad interval cannot zero a
// multi-day run.
func Estimate(in Inputs) metrics.BusinessMetrics {
	availability := math.Max(95, 100-in.ErrorRatePercent*2)
	errorBudget := math.Max(0, 100-in.ErrorRatePercent*50)

	sla := 100.0
	if in.ResponseThreshold > 0 {
		sla = math.Max(90, 100-(in.AvgResponseMs/in.ResponseThreshold)*10)
	}

	customerImpact := math.Min(100, in.ErrorRatePercent*20)
	revenue := math.Max(0, 100-customerImpact)
	brand := math.Max(70, 100-float64(in.CriticalAlerts)*5)

	return metrics.BusinessMetrics{
		ComputedAt:           time.Now(),
		AvailabilityPct:      availability,
		ErrorBudgetRemaining: errorBudget,
		SLACompliancePct:     sla,
		CustomerImpactPct:    customerImpact,
		RevenueProtectionPct: revenue,
		BrandReputationPct:   brand,
	}
}
