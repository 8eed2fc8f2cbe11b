package domain_test

import (
	"testing"

	"github.com/felixgeelhaar/coachpay/internal/payments/domain"
	"github.com/stretchr/testify/assert"
)

func TestComputeRevenue(t *testing.T) {
	plans := []domain.Plan{
		{PriceMinor: 5000, Currency: "usd", BillingPeriod: domain.BillingMonthly},
		{PriceMinor: 5000, Currency: "usd", BillingPeriod: domain.BillingMonthly},
		{PriceMinor: 120000, Currency: "usd", BillingPeriod: domain.BillingYearly},
	}

	r := domain.ComputeRevenue(plans)

	assert.Equal(t, int64(20000), r.GrossMinor)
	assert.Equal(t, int64(1400), r.PlatformFeeMinor)
	assert.Equal(t, int64(18600), r.NetMinor)
	assert.Equal(t, 3, r.ActiveSubscriptions)
	assert.Equal(t, "usd", r.Currency)
}

func TestComputeRevenue_Empty(t *testing.T) {
	assert.Equal(t, domain.Revenue{}, domain.ComputeRevenue(nil))
}
