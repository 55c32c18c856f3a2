package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/marcwilhelm/SalonOwl/app/models"
	"gorm.io/gorm"
)

// Service is the payment intent orchestrator: it creates gateway payment
// requests for new subscriptions, upgrades and downgrades, and owns the
// synchronous cancel/refund operations. Settlement happens asynchronously
// in the webhook reconciler.
type Service struct {
	repo       Repository
	newGateway GatewayFactory
	dispatcher Dispatcher
}

// NewService creates the billing service. The gateway factory is invoked per
// operation with configuration read fresh from integration settings.
func NewService(repo Repository, factory GatewayFactory, dispatcher Dispatcher) *Service {
	return &Service{repo: repo, newGateway: factory, dispatcher: dispatcher}
}

// NewServiceFromDB wires the default GORM repository, Stripe gateway and
// SMTP dispatcher.
func NewServiceFromDB(db *gorm.DB) *Service {
	repo := NewRepository(db)
	return NewService(repo, NewStripeGateway, NewDispatcher(repo))
}

// CreateSubscriptionIntent starts the purchase of a fresh subscription.
// The local payment row is persisted as pending before the gateway call;
// it settles when the webhook arrives.
func (s *Service) CreateSubscriptionIntent(ctx context.Context, in CreateIntentInput) (*IntentResponse, error) {
	plan, owner, err := s.resolvePlanAndOwner(in)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.GetActiveSubscription(in.OwnerID); err == nil {
		return nil, ErrDuplicateSubscription
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	resp, payment, err := s.createIntent(ctx, plan, owner, in.BillingCycle, PurposeSubscription, nil)
	if err != nil {
		return nil, err
	}

	// Advance notification: acknowledges "payment initiated", not "payment
	// completed". Never blocks or fails the intent-creation response.
	dispatchBestEffort("subscription-initiated email", func() error {
		return s.dispatcher.SendInvoiceEmail(ctx, InvoiceEmail{
			RecipientEmail: owner.Email,
			RecipientName:  owner.Name,
			PaymentID:      payment.PublicID,
			PlanName:       plan.Name,
			BillingCycle:   in.BillingCycle,
			Amount:         payment.Amount,
			Currency:       resp.Currency,
			Subject:        fmt.Sprintf("Your SalonOwl %s subscription", plan.Name),
			IntroLine:      "We have started processing your subscription payment.",
		})
	})

	return resp, nil
}

// CreateUpgradeIntent starts a plan upgrade for the owner's active
// subscription. The target plan must be strictly more expensive at the
// requested billing cycle.
func (s *Service) CreateUpgradeIntent(ctx context.Context, in CreateIntentInput) (*IntentResponse, error) {
	return s.createPlanChangeIntent(ctx, in, models.UpgradeTypeUpgrade)
}

// CreateDowngradeIntent starts a plan downgrade; the target plan must be
// strictly cheaper at the requested billing cycle.
func (s *Service) CreateDowngradeIntent(ctx context.Context, in CreateIntentInput) (*IntentResponse, error) {
	return s.createPlanChangeIntent(ctx, in, models.UpgradeTypeDowngrade)
}

func (s *Service) createPlanChangeIntent(ctx context.Context, in CreateIntentInput, upgradeType string) (*IntentResponse, error) {
	plan, owner, err := s.resolvePlanAndOwner(in)
	if err != nil {
		return nil, err
	}

	current, err := s.repo.GetActiveSubscription(in.OwnerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveSubscription
		}
		return nil, err
	}

	currentPlan, err := s.repo.GetPlan(current.PlanID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}

	newPrice, err := plan.PriceForCycle(in.BillingCycle)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	currentPrice, err := currentPlan.PriceForCycle(in.BillingCycle)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	// A client cannot disguise a downgrade as an upgrade or vice versa.
	switch upgradeType {
	case models.UpgradeTypeUpgrade:
		if newPrice <= currentPrice {
			return nil, ErrNotAnUpgrade
		}
	case models.UpgradeTypeDowngrade:
		if newPrice >= currentPrice {
			return nil, ErrNotADowngrade
		}
	}

	meta := map[string]string{
		models.MetaUpgradeType:           upgradeType,
		models.MetaCurrentSubscriptionID: strconv.FormatUint(uint64(current.ID), 10),
	}
	resp, _, err := s.createIntent(ctx, plan, owner, in.BillingCycle, upgradeType, meta)
	return resp, err
}

func (s *Service) resolvePlanAndOwner(in CreateIntentInput) (*models.SubscriptionPlan, *models.User, error) {
	if in.OwnerID == 0 || in.PlanID == 0 {
		return nil, nil, fmt.Errorf("%w: owner_id and plan_id are required", ErrInvalidArgument)
	}
	if !models.IsValidBillingCycle(in.BillingCycle) {
		return nil, nil, fmt.Errorf("%w: billing_cycle must be monthly or yearly", ErrInvalidArgument)
	}

	plan, err := s.repo.GetPlan(in.PlanID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrPlanNotFound
		}
		return nil, nil, err
	}

	owner, err := s.repo.GetUser(in.OwnerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, err
	}

	return plan, owner, nil
}

// createIntent persists a pending payment row, creates the remote intent and
// stores the gateway references on the row.
func (s *Service) createIntent(ctx context.Context, plan *models.SubscriptionPlan, owner *models.User, cycle, purpose string, extraMeta map[string]string) (*IntentResponse, *models.SubscriptionPayment, error) {
	amount, err := plan.PriceForCycle(cycle)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	settings, err := s.repo.PaymentSettings()
	if err != nil {
		return nil, nil, err
	}
	if !settings.StripeEnabled {
		return nil, nil, ErrPaymentsDisabled
	}
	if settings.StripeSecretKey == "" {
		return nil, nil, ErrGatewayNotConfigured
	}

	now := time.Now()
	ttl := MonthlyIntentTTL
	if cycle == models.BillingCycleYearly {
		ttl = YearlyIntentTTL
	}

	payment := &models.SubscriptionPayment{
		PublicID:     uuid.NewString(),
		OwnerID:      owner.ID,
		PlanID:       plan.ID,
		Amount:       amount,
		BillingCycle: cycle,
		Status:       models.PaymentStatusPending,
		ExpiresAt:    now.Add(ttl),
	}
	if extraMeta != nil {
		payment.SetMetadata(extraMeta)
	}
	if err := s.repo.CreateSubscriptionPayment(payment); err != nil {
		return nil, nil, err
	}

	gatewayMeta := map[string]string{
		GatewayMetaPaymentID:    payment.PublicID,
		GatewayMetaOwnerID:      strconv.FormatUint(uint64(owner.ID), 10),
		GatewayMetaPlanID:       strconv.FormatUint(uint64(plan.ID), 10),
		GatewayMetaBillingCycle: cycle,
		GatewayMetaPurpose:      purpose,
	}
	for k, v := range extraMeta {
		gatewayMeta[k] = v
	}

	gw := s.newGateway(GatewayConfig{SecretKey: settings.StripeSecretKey, Currency: settings.Currency})
	intent, err := gw.CreateIntent(ctx, IntentParams{
		AmountMinor:  MinorUnits(amount),
		Currency:     settings.Currency,
		Description:  fmt.Sprintf("SalonOwl %s plan (%s)", plan.Name, cycle),
		ReceiptEmail: owner.Email,
		Metadata:     gatewayMeta,
	})
	if err != nil {
		// The pending row stays behind for auditing; the sweeper expires it.
		return nil, nil, err
	}

	payment.StripePaymentIntentID = intent.ID
	payment.ClientSecret = intent.ClientSecret
	if err := s.repo.SaveSubscriptionPayment(payment); err != nil {
		return nil, nil, err
	}

	return &IntentResponse{
		PaymentID:    payment.PublicID,
		ClientSecret: intent.ClientSecret,
		Amount:       amount,
		Currency:     settings.Currency,
		Plan:         PlanSummary{ID: plan.ID, Name: plan.Name, Description: plan.Description},
		Owner:        OwnerSummary{ID: owner.ID, Name: owner.Name},
		BillingCycle: cycle,
		ExpiresAt:    payment.ExpiresAt,
	}, payment, nil
}

// CancelPendingPayment cancels a payment that has not settled yet. The remote
// intent cancellation is best-effort: local cancellation proceeds even when
// the gateway call errors.
func (s *Service) CancelPendingPayment(ctx context.Context, paymentID string) error {
	if paymentID == "" {
		return fmt.Errorf("%w: payment_id is required", ErrInvalidArgument)
	}

	payment, err := s.repo.GetSubscriptionPaymentByPublicID(paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPaymentNotFound
		}
		return err
	}
	if payment.Status != models.PaymentStatusPending {
		return ErrInvalidState
	}

	if payment.StripePaymentIntentID != "" {
		if settings, err := s.repo.PaymentSettings(); err == nil && settings.StripeSecretKey != "" {
			gw := s.newGateway(GatewayConfig{SecretKey: settings.StripeSecretKey, Currency: settings.Currency})
			dispatchBestEffort("remote intent cancellation", func() error {
				return gw.CancelIntent(ctx, payment.StripePaymentIntentID)
			})
		}
	}

	payment.Status = models.PaymentStatusCancelled
	payment.SetMetadata(map[string]string{models.MetaCancelReason: "cancelled_by_owner"})
	return s.repo.SaveSubscriptionPayment(payment)
}

// RefundSubscriptionPayment refunds a paid subscription payment if it is
// still inside the refund window. Window expiry is a business outcome the
// caller branches on, not an error; no gateway call is made in that case.
func (s *Service) RefundSubscriptionPayment(ctx context.Context, in RefundInput) (*RefundResult, error) {
	if in.PaymentID == "" {
		return nil, fmt.Errorf("%w: payment_id is required", ErrInvalidArgument)
	}

	payment, err := s.repo.GetSubscriptionPaymentByPublicID(in.PaymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	if payment.Status != models.PaymentStatusPaid {
		return nil, ErrInvalidState
	}

	settings, err := s.repo.PaymentSettings()
	if err != nil {
		return nil, err
	}
	if settings.StripeSecretKey == "" {
		return nil, ErrGatewayNotConfigured
	}

	// Eligibility is measured from the subscription's start date; for a
	// payment that never produced a subscription, the payment date applies.
	now := time.Now()
	windowStart := now
	var subscription *models.Subscription
	if sub, err := s.findSubscriptionForPayment(payment); err == nil {
		subscription = sub
		windowStart = sub.StartDate
	} else if payment.PaidAt != nil {
		windowStart = *payment.PaidAt
	}

	elapsedDays := int(now.Sub(windowStart).Hours() / 24)
	if elapsedDays > settings.RefundWindowDays {
		return &RefundResult{
			WindowExpired: true,
			WindowDays:    settings.RefundWindowDays,
			ElapsedDays:   elapsedDays,
		}, nil
	}

	gw := s.newGateway(GatewayConfig{SecretKey: settings.StripeSecretKey, Currency: settings.Currency})
	refundID, err := gw.CreateRefund(ctx, RefundParams{
		IntentID:    payment.StripePaymentIntentID,
		AmountMinor: MinorUnits(payment.Amount),
		Reason:      in.Reason,
		Metadata:    map[string]string{GatewayMetaPaymentID: payment.PublicID},
	})
	if err != nil {
		return nil, err
	}

	err = s.repo.WithTx(func(r Repository) error {
		p, err := r.GetSubscriptionPaymentByPublicID(payment.PublicID)
		if err != nil {
			return err
		}
		p.Status = models.PaymentStatusRefunded
		p.SetMetadata(map[string]string{
			models.MetaRefundID:          refundID,
			models.MetaRefundWindowDays:  strconv.Itoa(settings.RefundWindowDays),
			models.MetaRefundElapsedDays: strconv.Itoa(elapsedDays),
		})
		if err := r.SaveSubscriptionPayment(p); err != nil {
			return err
		}

		if subscription != nil {
			entry := buildLedgerEntry(subscription.ID, -p.Amount, 0, models.BillingHistoryStatusRefunded,
				"Subscription payment refunded", refundID, now)
			if err := r.CreateBillingHistory(entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &RefundResult{
		WindowDays:  settings.RefundWindowDays,
		ElapsedDays: elapsedDays,
		RefundID:    refundID,
		Amount:      payment.Amount,
	}

	if owner, err := s.repo.GetUser(payment.OwnerID); err == nil {
		dispatchBestEffort("refund confirmation email", func() error {
			return s.dispatcher.SendInvoiceEmail(ctx, InvoiceEmail{
				RecipientEmail: owner.Email,
				RecipientName:  owner.Name,
				PaymentID:      payment.PublicID,
				Amount:         -payment.Amount,
				Currency:       settings.Currency,
				BillingCycle:   payment.BillingCycle,
				Subject:        "Your SalonOwl refund",
				IntroLine:      "Your subscription payment has been refunded.",
			})
		})
	} else {
		log.Warnf("[Billing] refund email skipped, owner %d lookup failed: %v", payment.OwnerID, err)
	}

	return result, nil
}

// findSubscriptionForPayment resolves the subscription a payment settled, by
// the payment link on the subscription row or via the metadata bag for plan
// changes.
func (s *Service) findSubscriptionForPayment(payment *models.SubscriptionPayment) (*models.Subscription, error) {
	if _, subID, ok := payment.IsPlanChange(); ok {
		id, err := strconv.ParseUint(subID, 10, 64)
		if err == nil {
			if sub, err := s.repo.GetSubscription(uint(id)); err == nil {
				return sub, nil
			}
		}
	}

	sub, err := s.repo.GetActiveSubscription(payment.OwnerID)
	if err != nil {
		return nil, ErrSubscriptionNotFound
	}
	if sub.PaymentID != payment.PublicID {
		// The active subscription was settled by a different payment; still
		// the best anchor we have for the refund window.
		return sub, nil
	}
	return sub, nil
}
