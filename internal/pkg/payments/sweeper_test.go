package payments

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcwilhelm/SalonOwl/app/models"
)

func TestExpirePendingPayments(t *testing.T) {
	svc, repo, gw, _ := newTestService()
	now := time.Now()

	expired := seedPendingPayment(repo, "pay-old", "pi_old", 29)
	expired.ExpiresAt = now.Add(-time.Hour)

	fresh := seedPendingPayment(repo, "pay-fresh", "pi_fresh", 29)
	fresh.ExpiresAt = now.Add(time.Hour)

	settled := seedPendingPayment(repo, "pay-paid", "pi_paid", 29)
	settled.Status = models.PaymentStatusPaid
	settled.ExpiresAt = now.Add(-time.Hour)

	n, err := svc.ExpirePendingPayments(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, models.PaymentStatusCancelled, repo.subPayments["pay-old"].Status)
	assert.Equal(t, "pending payment expired", repo.subPayments["pay-old"].Metadata()[models.MetaCancelReason])
	assert.Equal(t, models.PaymentStatusPending, repo.subPayments["pay-fresh"].Status)
	assert.Equal(t, models.PaymentStatusPaid, repo.subPayments["pay-paid"].Status)

	// remote cancellation attempted for the expired intent only
	assert.Equal(t, []string{"pi_old"}, gw.cancelCalls)
}

func TestExpirePendingPaymentsNothingToDo(t *testing.T) {
	svc, _, gw, _ := newTestService()
	n, err := svc.ExpirePendingPayments(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, gw.cancelCalls)
}

func TestSweeperStartStop(t *testing.T) {
	svc, _, _, _ := newTestService()
	sweeper := NewSweeper(svc, time.Hour)

	sweeper.Start()
	sweeper.Start() // second start is a no-op
	sweeper.Stop()
	sweeper.Stop() // second stop is a no-op
}
