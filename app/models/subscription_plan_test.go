package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceForCycle(t *testing.T) {
	plan := &SubscriptionPlan{PriceMonthly: 29, PriceYearly: 290}

	monthly, err := plan.PriceForCycle(BillingCycleMonthly)
	require.NoError(t, err)
	assert.Equal(t, 29.0, monthly)

	yearly, err := plan.PriceForCycle(BillingCycleYearly)
	require.NoError(t, err)
	assert.Equal(t, 290.0, yearly)

	_, err = plan.PriceForCycle("weekly")
	assert.Error(t, err)
}

func TestIsValidBillingCycle(t *testing.T) {
	assert.True(t, IsValidBillingCycle(BillingCycleMonthly))
	assert.True(t, IsValidBillingCycle(BillingCycleYearly))
	assert.False(t, IsValidBillingCycle("weekly"))
	assert.False(t, IsValidBillingCycle(""))
	assert.False(t, IsValidBillingCycle("Monthly"))
}
