package domain

import (
	"time"

	"github.com/google/uuid"
)

// PlatformFeeRate is the share of gross subscription revenue the platform
// keeps.
const PlatformFeeRate = 0.07

// BillingPeriod is how often a plan charges.
type BillingPeriod string

const (
	BillingMonthly BillingPeriod = "monthly"
	BillingYearly  BillingPeriod = "yearly"
)

// Plan is a trainer's subscription offer. Price and billing period never
// change after creation.
type Plan struct {
	ID            uuid.UUID
	TrainerID     uuid.UUID
	Name          string
	Description   string
	PriceMinor    int64
	Currency      string
	BillingPeriod BillingPeriod
	IsActive      bool
	CreatedAt     time.Time
}

// MonthlyMinor is the plan price normalized to one month.
func (p *Plan) MonthlyMinor() int64 {
	if p.BillingPeriod == BillingYearly {
		return p.PriceMinor / 12
	}
	return p.PriceMinor
}

// Revenue is a trainer's monthly recurring revenue split.
type Revenue struct {
	GrossMinor          int64  `json:"gross_minor"`
	PlatformFeeMinor    int64  `json:"platform_fee_minor"`
	NetMinor            int64  `json:"net_minor"`
	ActiveSubscriptions int    `json:"active_subscriptions"`
	Currency            string `json:"currency"`
}

// ComputeRevenue sums the monthly price of each active subscription's plan
// and applies the platform fee.
func ComputeRevenue(plans []Plan) Revenue {
	var r Revenue
	for i := range plans {
		r.GrossMinor += plans[i].MonthlyMinor()
		if r.Currency == "" {
			r.Currency = plans[i].Currency
		}
	}
	r.ActiveSubscriptions = len(plans)
	r.PlatformFeeMinor = int64(float64(r.GrossMinor)*PlatformFeeRate + 0.5)
	r.NetMinor = r.GrossMinor - r.PlatformFeeMinor
	return r
}
