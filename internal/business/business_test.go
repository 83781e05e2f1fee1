package business

import (
	"math"
	"testing"
)

func TestEstimateCleanRun(t *testing.T) {
	m := Estimate(Inputs{
		ErrorRatePercent:  0,
		AvgResponseMs:     10,
		ResponseThreshold: 1000,
		CriticalAlerts:    0,
	})

	if m.AvailabilityPct != 100 {
		t.Errorf("availability = %.2f, want 100", m.AvailabilityPct)
	}
	if m.ErrorBudgetRemaining != 100 {
		t.Errorf("error budget = %.2f, want 100", m.ErrorBudgetRemaining)
	}
	if m.SLACompliancePct != 99.9 {
		t.Errorf("sla = %.2f, want 99.9", m.SLACompliancePct)
	}
	if m.CustomerImpactPct != 0 || m.RevenueProtectionPct != 100 {
		t.Errorf("impact = %.2f revenue = %.2f", m.CustomerImpactPct, m.RevenueProtectionPct)
	}
	if m.BrandReputationPct != 100 {
		t.Errorf("brand = %.2f, want 100", m.BrandReputationPct)
	}
}

func TestEstimateFloors(t *testing.T) {
	m := Estimate(Inputs{
		ErrorRatePercent:  50,
		AvgResponseMs:     5000,
		ResponseThreshold: 1000,
		CriticalAlerts:    20,
	})

	if m.AvailabilityPct != 95 {
		t.Errorf("availability floor = %.2f, want 95", m.AvailabilityPct)
	}
	if m.ErrorBudgetRemaining != 0 {
		t.Errorf("error budget floor = %.2f, want 0", m.ErrorBudgetRemaining)
	}
	if m.SLACompliancePct != 90 {
		t.Errorf("sla floor = %.2f, want 90", m.SLACompliancePct)
	}
	if m.CustomerImpactPct != 100 {
		t.Errorf("customer impact cap = %.2f, want 100", m.CustomerImpactPct)
	}
	if m.RevenueProtectionPct != 0 {
		t.Errorf("revenue floor = %.2f, want 0", m.RevenueProtectionPct)
	}
	if m.BrandReputationPct != 70 {
		t.Errorf("brand floor = %.2f, want 70", m.BrandReputationPct)
	}
}

func TestEstimateModerateErrors(t *testing.T) {
	m := Estimate(Inputs{
		ErrorRatePercent:  1,
		AvgResponseMs:     200,
		ResponseThreshold: 1000,
		CriticalAlerts:    2,
	})

	if m.AvailabilityPct != 98 {
		t.Errorf("availability = %.2f, want 98", m.AvailabilityPct)
	}
	if m.ErrorBudgetRemaining != 50 {
		t.Errorf("error budget = %.2f, want 50", m.ErrorBudgetRemaining)
	}
	if math.Abs(m.SLACompliancePct-98) > 1e-9 {
		t.Errorf("sla = %.2f, want 98", m.SLACompliancePct)
	}
	if m.CustomerImpactPct != 20 || m.RevenueProtectionPct != 80 {
		t.Errorf("impact = %.2f revenue = %.2f", m.CustomerImpactPct, m.RevenueProtectionPct)
	}
	if m.BrandReputationPct != 90 {
		t.Errorf("brand = %.2f, want 90", m.BrandReputationPct)
	}
}

func TestEstimateZeroThresholdSkipsSLAPenalty(t *testing.T) {
	m := Estimate(Inputs{AvgResponseMs: 500})
	if m.SLACompliancePct != 100 {
		t.Errorf("sla = %.2f, want 100 when threshold unset", m.SLACompliancePct)
	}
}
