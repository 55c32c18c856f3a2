package payments

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcwilhelm/SalonOwl/app/models"
)

func TestCreateSubscriptionIntent(t *testing.T) {
	svc, repo, gw, dispatcher := newTestService()

	resp, err := svc.CreateSubscriptionIntent(context.Background(), CreateIntentInput{
		OwnerID:      1,
		PlanID:       1,
		BillingCycle: models.BillingCycleMonthly,
	})
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.Equal(t, 29.0, resp.Amount)
	assert.Equal(t, "usd", resp.Currency)
	assert.Equal(t, "Starter", resp.Plan.Name)
	assert.Equal(t, "Dana", resp.Owner.Name)
	assert.NotEmpty(t, resp.PaymentID)
	assert.Equal(t, "pi_test_1_secret", resp.ClientSecret)

	// local row persisted as pending with the gateway references
	payment, err := repo.GetSubscriptionPaymentByPublicID(resp.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	assert.Equal(t, "pi_test_1", payment.StripePaymentIntentID)
	assert.WithinDuration(t, time.Now().Add(MonthlyIntentTTL), payment.ExpiresAt, time.Minute)

	// gateway got minor units and correlation metadata
	require.Len(t, gw.createIntentCalls, 1)
	call := gw.createIntentCalls[0]
	assert.Equal(t, int64(2900), call.AmountMinor)
	assert.Equal(t, resp.PaymentID, call.Metadata[GatewayMetaPaymentID])
	assert.Equal(t, PurposeSubscription, call.Metadata[GatewayMetaPurpose])

	// advance notification went out but settlement has not happened
	assert.Len(t, dispatcher.invoices, 1)
	assert.Empty(t, repo.subscriptions)
}

func TestCreateSubscriptionIntentYearlyTTL(t *testing.T) {
	svc, repo, _, _ := newTestService()

	resp, err := svc.CreateSubscriptionIntent(context.Background(), CreateIntentInput{
		OwnerID:      1,
		PlanID:       1,
		BillingCycle: models.BillingCycleYearly,
	})
	require.NoError(t, err)

	payment, err := repo.GetSubscriptionPaymentByPublicID(resp.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, 290.0, payment.Amount)
	assert.WithinDuration(t, time.Now().Add(YearlyIntentTTL), payment.ExpiresAt, time.Minute)
}

func TestCreateSubscriptionIntentValidation(t *testing.T) {
	tests := []struct {
		name    string
		input   CreateIntentInput
		wantErr error
	}{
		{"missing owner", CreateIntentInput{PlanID: 1, BillingCycle: "monthly"}, ErrInvalidArgument},
		{"missing plan", CreateIntentInput{OwnerID: 1, BillingCycle: "monthly"}, ErrInvalidArgument},
		{"bad cycle", CreateIntentInput{OwnerID: 1, PlanID: 1, BillingCycle: "weekly"}, ErrInvalidArgument},
		{"unknown plan", CreateIntentInput{OwnerID: 1, PlanID: 99, BillingCycle: "monthly"}, ErrPlanNotFound},
		{"unknown owner", CreateIntentInput{OwnerID: 99, PlanID: 1, BillingCycle: "monthly"}, ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, gw, _ := newTestService()
			_, err := svc.CreateSubscriptionIntent(context.Background(), tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, gw.createIntentCalls)
		})
	}
}

func TestCreateSubscriptionIntentDuplicateActive(t *testing.T) {
	svc, repo, gw, _ := newTestService()
	repo.subscriptions[1] = &models.Subscription{ID: 1, OwnerID: 1, PlanID: 1, Status: models.SubscriptionStatusActive}

	_, err := svc.CreateSubscriptionIntent(context.Background(), CreateIntentInput{
		OwnerID:      1,
		PlanID:       2,
		BillingCycle: models.BillingCycleMonthly,
	})
	assert.ErrorIs(t, err, ErrDuplicateSubscription)
	assert.Empty(t, gw.createIntentCalls)
}

func TestCreateSubscriptionIntentGatewayConfig(t *testing.T) {
	t.Run("payments disabled", func(t *testing.T) {
		svc, repo, _, _ := newTestService()
		repo.settings.StripeEnabled = false
		_, err := svc.CreateSubscriptionIntent(context.Background(), CreateIntentInput{OwnerID: 1, PlanID: 1, BillingCycle: "monthly"})
		assert.ErrorIs(t, err, ErrPaymentsDisabled)
	})
	t.Run("missing secret key", func(t *testing.T) {
		svc, repo, _, _ := newTestService()
		repo.settings.StripeSecretKey = ""
		_, err := svc.CreateSubscriptionIntent(context.Background(), CreateIntentInput{OwnerID: 1, PlanID: 1, BillingCycle: "monthly"})
		assert.ErrorIs(t, err, ErrGatewayNotConfigured)
	})
}

func TestCreateSubscriptionIntentGatewayFailureKeepsPendingRow(t *testing.T) {
	svc, repo, gw, _ := newTestService()
	gw.intentErr = assert.AnError

	_, err := svc.CreateSubscriptionIntent(context.Background(), CreateIntentInput{
		OwnerID:      1,
		PlanID:       1,
		BillingCycle: models.BillingCycleMonthly,
	})
	require.Error(t, err)

	// The pending row stays for auditing; the sweeper expires it later.
	require.Len(t, repo.subPayments, 1)
	for _, p := range repo.subPayments {
		assert.Equal(t, models.PaymentStatusPending, p.Status)
		assert.Empty(t, p.StripePaymentIntentID)
	}
}

func TestCreateUpgradeIntent(t *testing.T) {
	svc, repo, gw, _ := newTestService()
	repo.subscriptions[7] = &models.Subscription{
		ID: 7, OwnerID: 1, PlanID: 1, Status: models.SubscriptionStatusActive,
		BillingCycle: models.BillingCycleMonthly, Amount: 29,
	}

	resp, err := svc.CreateUpgradeIntent(context.Background(), CreateIntentInput{
		OwnerID:      1,
		PlanID:       2,
		BillingCycle: models.BillingCycleMonthly,
	})
	require.NoError(t, err)
	assert.Equal(t, 59.0, resp.Amount)

	payment, err := repo.GetSubscriptionPaymentByPublicID(resp.PaymentID)
	require.NoError(t, err)
	upgradeType, subID, ok := payment.IsPlanChange()
	require.True(t, ok)
	assert.Equal(t, models.UpgradeTypeUpgrade, upgradeType)
	assert.Equal(t, "7", subID)

	require.Len(t, gw.createIntentCalls, 1)
	assert.Equal(t, models.UpgradeTypeUpgrade, gw.createIntentCalls[0].Metadata[GatewayMetaPurpose])
}

func TestPlanChangeDirectionEnforced(t *testing.T) {
	t.Run("upgrade to cheaper plan refused", func(t *testing.T) {
		svc, repo, gw, _ := newTestService()
		repo.subscriptions[1] = &models.Subscription{ID: 1, OwnerID: 1, PlanID: 2, Status: models.SubscriptionStatusActive}

		_, err := svc.CreateUpgradeIntent(context.Background(), CreateIntentInput{OwnerID: 1, PlanID: 1, BillingCycle: "monthly"})
		assert.ErrorIs(t, err, ErrNotAnUpgrade)
		assert.Empty(t, gw.createIntentCalls)
	})

	t.Run("downgrade to pricier plan refused", func(t *testing.T) {
		svc, repo, gw, _ := newTestService()
		repo.subscriptions[1] = &models.Subscription{ID: 1, OwnerID: 1, PlanID: 1, Status: models.SubscriptionStatusActive}

		_, err := svc.CreateDowngradeIntent(context.Background(), CreateIntentInput{OwnerID: 1, PlanID: 2, BillingCycle: "monthly"})
		assert.ErrorIs(t, err, ErrNotADowngrade)
		assert.Empty(t, gw.createIntentCalls)
	})

	t.Run("no active subscription", func(t *testing.T) {
		svc, _, _, _ := newTestService()
		_, err := svc.CreateUpgradeIntent(context.Background(), CreateIntentInput{OwnerID: 1, PlanID: 2, BillingCycle: "monthly"})
		assert.ErrorIs(t, err, ErrNoActiveSubscription)
	})
}

func TestCancelPendingPayment(t *testing.T) {
	svc, repo, gw, _ := newTestService()
	repo.subPayments["pay-1"] = &models.SubscriptionPayment{
		ID: 1, PublicID: "pay-1", OwnerID: 1, PlanID: 1,
		Status: models.PaymentStatusPending, StripePaymentIntentID: "pi_1",
	}

	require.NoError(t, svc.CancelPendingPayment(context.Background(), "pay-1"))

	payment := repo.subPayments["pay-1"]
	assert.Equal(t, models.PaymentStatusCancelled, payment.Status)
	assert.Equal(t, "cancelled_by_owner", payment.Metadata()[models.MetaCancelReason])
	assert.Equal(t, []string{"pi_1"}, gw.cancelCalls)
}

func TestCancelPendingPaymentSurvivesGatewayFailure(t *testing.T) {
	svc, repo, gw, _ := newTestService()
	gw.cancelErr = assert.AnError
	repo.subPayments["pay-1"] = &models.SubscriptionPayment{
		ID: 1, PublicID: "pay-1", Status: models.PaymentStatusPending, StripePaymentIntentID: "pi_1",
	}

	// remote cancellation is best-effort, local transition still happens
	require.NoError(t, svc.CancelPendingPayment(context.Background(), "pay-1"))
	assert.Equal(t, models.PaymentStatusCancelled, repo.subPayments["pay-1"].Status)
}

func TestCancelPendingPaymentInvalidStates(t *testing.T) {
	svc, repo, _, _ := newTestService()
	repo.subPayments["paid"] = &models.SubscriptionPayment{ID: 1, PublicID: "paid", Status: models.PaymentStatusPaid}

	assert.ErrorIs(t, svc.CancelPendingPayment(context.Background(), "paid"), ErrInvalidState)
	assert.ErrorIs(t, svc.CancelPendingPayment(context.Background(), "nope"), ErrPaymentNotFound)
	assert.ErrorIs(t, svc.CancelPendingPayment(context.Background(), ""), ErrInvalidArgument)
}

func TestRefundWithinWindow(t *testing.T) {
	svc, repo, gw, _ := newTestService()
	paidAt := time.Now().Add(-9 * 24 * time.Hour)
	repo.subPayments["pay-1"] = &models.SubscriptionPayment{
		ID: 1, PublicID: "pay-1", OwnerID: 1, PlanID: 1, Amount: 29,
		BillingCycle: models.BillingCycleMonthly,
		Status:       models.PaymentStatusPaid, StripePaymentIntentID: "pi_1", PaidAt: &paidAt,
	}
	repo.subscriptions[3] = &models.Subscription{
		ID: 3, OwnerID: 1, PlanID: 1, Status: models.SubscriptionStatusActive,
		StartDate: paidAt, PaymentID: "pay-1", Amount: 29,
	}

	result, err := svc.RefundSubscriptionPayment(context.Background(), RefundInput{PaymentID: "pay-1", Reason: "changed my mind"})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.False(t, result.WindowExpired)
	assert.Equal(t, 10, result.WindowDays)
	assert.Equal(t, 9, result.ElapsedDays)
	assert.Equal(t, "re_test_1", result.RefundID)
	assert.Equal(t, 29.0, result.Amount)

	require.Len(t, gw.refundCalls, 1)
	assert.Equal(t, int64(2900), gw.refundCalls[0].AmountMinor)

	payment := repo.subPayments["pay-1"]
	assert.Equal(t, models.PaymentStatusRefunded, payment.Status)
	assert.Equal(t, "re_test_1", payment.Metadata()[models.MetaRefundID])

	// refund ledger entry carries a negative amount
	require.Len(t, repo.ledger, 1)
	assert.Equal(t, -29.0, repo.ledger[0].Amount)
	assert.Equal(t, models.BillingHistoryStatusRefunded, repo.ledger[0].Status)
	assert.Equal(t, uint(3), repo.ledger[0].SubscriptionID)
}

func TestRefundWindowExpired(t *testing.T) {
	svc, repo, gw, _ := newTestService()
	start := time.Now().Add(-11*24*time.Hour - time.Hour)
	repo.subPayments["pay-1"] = &models.SubscriptionPayment{
		ID: 1, PublicID: "pay-1", OwnerID: 1, PlanID: 1, Amount: 29,
		Status: models.PaymentStatusPaid, StripePaymentIntentID: "pi_1",
	}
	repo.subscriptions[3] = &models.Subscription{
		ID: 3, OwnerID: 1, PlanID: 1, Status: models.SubscriptionStatusActive,
		StartDate: start, PaymentID: "pay-1",
	}

	result, err := svc.RefundSubscriptionPayment(context.Background(), RefundInput{PaymentID: "pay-1"})
	require.NoError(t, err)

	// a refused refund is an outcome, not an error, and never hits the gateway
	assert.True(t, result.WindowExpired)
	assert.Equal(t, 11, result.ElapsedDays)
	assert.Empty(t, result.RefundID)
	assert.Empty(t, gw.refundCalls)
	assert.Equal(t, models.PaymentStatusPaid, repo.subPayments["pay-1"].Status)
	assert.Empty(t, repo.ledger)
}

func TestRefundInvalidStates(t *testing.T) {
	svc, repo, _, _ := newTestService()
	repo.subPayments["pending"] = &models.SubscriptionPayment{ID: 1, PublicID: "pending", Status: models.PaymentStatusPending}

	_, err := svc.RefundSubscriptionPayment(context.Background(), RefundInput{PaymentID: "pending"})
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = svc.RefundSubscriptionPayment(context.Background(), RefundInput{PaymentID: "missing"})
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	_, err = svc.RefundSubscriptionPayment(context.Background(), RefundInput{})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
