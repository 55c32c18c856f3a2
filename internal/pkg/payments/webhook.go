package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/marcwilhelm/SalonOwl/app/models"
	"github.com/marcwilhelm/SalonOwl/internal/pkg/entitlements"
	"github.com/marcwilhelm/SalonOwl/internal/pkg/metrics/counter"
	"gorm.io/gorm"
)

// ProcessWebhook is the single entry point for inbound gateway callbacks.
// It fails closed on a missing secret or bad signature; once the signature
// checks out, handler errors are recorded and logged but not returned, so
// the HTTP boundary can acknowledge the delivery and stop gateway retries.
// The one exception is ErrEventOutOfOrder: the stored event is released and
// the error returned, so the delivery is rejected and the gateway retries it
// once the prerequisite event has been recorded.
func (s *Service) ProcessWebhook(ctx context.Context, payload []byte, signatureHeader string) (*Event, error) {
	settings, err := s.repo.PaymentSettings()
	if err != nil {
		return nil, err
	}
	if settings.StripeWebhookSecret == "" {
		return nil, ErrWebhookSecretMissing
	}

	ev, err := VerifyWebhookSignature(payload, signatureHeader, settings.StripeWebhookSecret)
	if err != nil {
		return nil, err
	}

	created, stored, err := s.repo.CreateWebhookEventIfNotExists(&models.BillingWebhookEvent{
		ProviderEventID: ev.ID,
		EventType:       ev.Type,
		PayloadJSON:     string(payload),
	})
	if err != nil {
		return nil, err
	}
	if !created {
		log.Infof("[Billing] duplicate webhook delivery %s (%s), skipping", ev.ID, ev.Type)
		return ev, nil
	}

	handlerErr := s.HandleWebhookEvent(ctx, ev)
	if errors.Is(handlerErr, ErrEventOutOfOrder) {
		// Dropping the dedup row is what makes the retry processable; a
		// stamped event would be skipped as a duplicate forever.
		if err := s.repo.DeleteWebhookEvent(stored.ID); err != nil {
			log.Warnf("[Billing] failed to release out-of-order webhook %s: %v", ev.ID, err)
		}
		log.Warnf("[Billing] webhook %s (%s) arrived out of order, rejecting delivery for retry", ev.ID, ev.Type)
		return ev, handlerErr
	}
	errMsg := ""
	if handlerErr != nil {
		errMsg = handlerErr.Error()
		log.Errorf("[Billing] webhook %s (%s) handler failed: %v", ev.ID, ev.Type, handlerErr)
	}
	if err := s.repo.MarkWebhookProcessed(stored.ID, errMsg); err != nil {
		log.Warnf("[Billing] failed to mark webhook %s processed: %v", ev.ID, err)
	}

	return ev, nil
}

// HandleWebhookEvent applies the state transition for a verified event.
func (s *Service) HandleWebhookEvent(ctx context.Context, ev *Event) error {
	switch ev.Kind {
	case EventPaymentSucceeded:
		return s.handlePaymentSucceeded(ctx, ev)
	case EventPaymentFailed:
		return s.handlePaymentSettledNegatively(ctx, ev, models.PaymentStatusFailed)
	case EventPaymentCanceled:
		return s.handlePaymentSettledNegatively(ctx, ev, models.PaymentStatusCancelled)
	case EventChargeRefunded:
		return s.handleChargeRefunded(ctx, ev)
	default:
		// Unknown-but-harmless events must not trigger gateway retries.
		log.Infof("[Billing] ignoring unhandled webhook event type %q", ev.Type)
		return nil
	}
}

func (s *Service) handlePaymentSucceeded(ctx context.Context, ev *Event) error {
	if payment, err := s.repo.GetSubscriptionPaymentByIntentID(ev.IntentID); err == nil {
		if payment.Status == models.PaymentStatusPaid {
			return nil
		}
		if _, _, isChange := payment.IsPlanChange(); isChange {
			return s.settlePlanChange(ctx, payment, ev)
		}
		return s.settleNewSubscription(ctx, payment, ev)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if payment, err := s.repo.GetPaymentByIntentID(ev.IntentID); err == nil {
		return s.settleAppointmentPayment(ctx, payment)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	// Stray or duplicate event for a row we never created.
	log.Warnf("[Billing] payment_succeeded for unknown intent %s, ignoring", ev.IntentID)
	return nil
}

// settleNewSubscription marks the payment paid, creates the subscription and
// appends the ledger row in one transaction. The duplicate-active check is
// re-run inside the transaction to close the race between intent creation
// and settlement.
func (s *Service) settleNewSubscription(ctx context.Context, payment *models.SubscriptionPayment, ev *Event) error {
	settings, err := s.repo.PaymentSettings()
	if err != nil {
		return err
	}

	now := time.Now()
	var owner *models.User
	var plan *models.SubscriptionPlan
	var invoiceNumber string

	err = s.repo.WithTx(func(r Repository) error {
		p, err := r.GetSubscriptionPaymentByPublicID(payment.PublicID)
		if err != nil {
			return err
		}
		if p.Status == models.PaymentStatusPaid {
			return nil
		}

		if existing, err := r.GetActiveSubscription(p.OwnerID); err == nil {
			// Another settlement won the race; do not create a duplicate.
			p.Status = models.PaymentStatusCancelled
			p.SetMetadata(map[string]string{
				models.MetaCancelReason: fmt.Sprintf("active subscription %d already exists at settlement", existing.ID),
			})
			return r.SaveSubscriptionPayment(p)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		plan, err = r.GetPlan(p.PlanID)
		if err != nil {
			return err
		}
		usage, err := r.CurrentUsage(p.OwnerID)
		if err != nil {
			return err
		}

		p.Status = models.PaymentStatusPaid
		p.PaidAt = &now
		if err := r.SaveSubscriptionPayment(p); err != nil {
			return err
		}

		sub := &models.Subscription{
			OwnerID:         p.OwnerID,
			PlanID:          plan.ID,
			Status:          models.SubscriptionStatusActive,
			BillingCycle:    p.BillingCycle,
			Amount:          p.Amount,
			StartDate:       now,
			NextBillingDate: models.NextBillingDateFor(p.BillingCycle, now),
			PaymentID:       p.PublicID,
			UsedBookings:    usage.Bookings,
			UsedStaff:       usage.Staff,
			UsedLocations:   usage.Locations,
			MaxBookings:     plan.MaxBookings,
			MaxStaff:        plan.MaxStaff,
			MaxLocations:    plan.MaxLocations,
		}
		if err := r.CreateSubscription(sub); err != nil {
			return err
		}

		entry := buildLedgerEntry(sub.ID, p.Amount, settings.TaxRate, models.BillingHistoryStatusPaid,
			fmt.Sprintf("Subscription to %s plan (%s)", plan.Name, p.BillingCycle), ev.IntentID, now)
		invoiceNumber = entry.InvoiceNumber
		if err := r.CreateBillingHistory(entry); err != nil {
			return err
		}

		owner, err = r.GetUser(p.OwnerID)
		return err
	})
	if err != nil || owner == nil || plan == nil {
		return err
	}

	s.dispatchSettlement(ctx, owner, payment.PublicID, invoiceNumber, plan.Name, payment.BillingCycle,
		payment.Amount, settings.Currency, "Your subscription is now active.")
	return nil
}

// settlePlanChange mutates the existing subscription in place; the
// subscription id is stable across plan changes.
func (s *Service) settlePlanChange(ctx context.Context, payment *models.SubscriptionPayment, ev *Event) error {
	settings, err := s.repo.PaymentSettings()
	if err != nil {
		return err
	}

	upgradeType, rawSubID, _ := payment.IsPlanChange()
	subID, err := strconv.ParseUint(rawSubID, 10, 64)
	if err != nil {
		return fmt.Errorf("payment %s carries invalid subscription id %q", payment.PublicID, rawSubID)
	}

	now := time.Now()
	var owner *models.User
	var plan *models.SubscriptionPlan
	var updated *models.Subscription
	var invoiceNumber string

	err = s.repo.WithTx(func(r Repository) error {
		p, err := r.GetSubscriptionPaymentByPublicID(payment.PublicID)
		if err != nil {
			return err
		}
		if p.Status == models.PaymentStatusPaid {
			return nil
		}

		sub, err := r.GetSubscription(uint(subID))
		if err != nil {
			return fmt.Errorf("plan change target subscription %d: %w", subID, err)
		}
		plan, err = r.GetPlan(p.PlanID)
		if err != nil {
			return err
		}

		p.Status = models.PaymentStatusPaid
		p.PaidAt = &now
		if err := r.SaveSubscriptionPayment(p); err != nil {
			return err
		}

		sub.PlanID = plan.ID
		sub.Amount = p.Amount
		sub.BillingCycle = p.BillingCycle
		sub.NextBillingDate = models.NextBillingDateFor(p.BillingCycle, now)
		sub.PaymentID = p.PublicID
		sub.MaxBookings = plan.MaxBookings
		sub.MaxStaff = plan.MaxStaff
		sub.MaxLocations = plan.MaxLocations
		if err := r.SaveSubscription(sub); err != nil {
			return err
		}
		updated = sub

		verb := "Upgraded"
		if upgradeType == models.UpgradeTypeDowngrade {
			verb = "Downgraded"
		}
		entry := buildLedgerEntry(sub.ID, p.Amount, settings.TaxRate, models.BillingHistoryStatusPaid,
			fmt.Sprintf("%s to %s plan (%s)", verb, plan.Name, p.BillingCycle), ev.IntentID, now)
		invoiceNumber = entry.InvoiceNumber
		if err := r.CreateBillingHistory(entry); err != nil {
			return err
		}

		owner, err = r.GetUser(p.OwnerID)
		return err
	})
	if err != nil || owner == nil || plan == nil {
		return err
	}

	if updated != nil {
		if exceeded := entitlements.ExceededDimensions(updated); len(exceeded) > 0 {
			log.Warnf("[Billing] subscription %d now exceeds plan limits for %v; creation blocked until usage drops",
				updated.ID, exceeded)
		}
	}

	s.dispatchSettlement(ctx, owner, payment.PublicID, invoiceNumber, plan.Name, payment.BillingCycle,
		payment.Amount, settings.Currency, "Your plan change is complete.")
	return nil
}

func (s *Service) settleAppointmentPayment(ctx context.Context, payment *models.Payment) error {
	if payment.Status == models.PaymentStatusPaid {
		return nil
	}

	now := time.Now()
	var booked *models.Appointment
	err := s.repo.WithTx(func(r Repository) error {
		p, err := r.GetPaymentByIntentID(payment.StripePaymentIntentID)
		if err != nil {
			return err
		}
		if p.Status == models.PaymentStatusPaid {
			return nil
		}

		p.Status = models.PaymentStatusPaid
		p.PaymentDate = &now
		if err := r.SavePayment(p); err != nil {
			return err
		}

		appointment, err := r.GetAppointment(p.AppointmentID)
		if err != nil {
			return fmt.Errorf("appointment %d for payment %d: %w", p.AppointmentID, p.ID, err)
		}
		appointment.Status = models.AppointmentStatusBooked
		if err := r.SaveAppointment(appointment); err != nil {
			return err
		}
		booked = appointment
		return nil
	})
	if err != nil {
		return err
	}

	if booked != nil {
		dispatchBestEffort("booking usage counter", func() error {
			salon, err := s.repo.GetSalon(booked.SalonID)
			if err != nil {
				return err
			}
			sub, err := s.repo.GetActiveSubscription(salon.OwnerID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil
				}
				return err
			}
			return counter.AddBookingUsage(sub.ID)
		})
	}

	dispatchBestEffort("appointment payment notification", func() error {
		return s.dispatcher.NotifyUser(ctx, payment.UserID, models.NotificationTypeAppointment,
			"Your payment was received and your appointment is booked.", payment.AppointmentID)
	})
	return nil
}

// handlePaymentSettledNegatively covers failed and canceled intents. A failed
// appointment payment leaves no reserved slot.
func (s *Service) handlePaymentSettledNegatively(ctx context.Context, ev *Event, status string) error {
	_ = ctx

	if payment, err := s.repo.GetSubscriptionPaymentByIntentID(ev.IntentID); err == nil {
		if payment.Status != models.PaymentStatusPending {
			return nil
		}
		return s.repo.WithTx(func(r Repository) error {
			p, err := r.GetSubscriptionPaymentByPublicID(payment.PublicID)
			if err != nil {
				return err
			}
			if p.Status != models.PaymentStatusPending {
				return nil
			}
			p.Status = status
			return r.SaveSubscriptionPayment(p)
		})
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if payment, err := s.repo.GetPaymentByIntentID(ev.IntentID); err == nil {
		if payment.Status != models.PaymentStatusPending {
			return nil
		}
		return s.repo.WithTx(func(r Repository) error {
			p, err := r.GetPaymentByIntentID(ev.IntentID)
			if err != nil {
				return err
			}
			if p.Status != models.PaymentStatusPending {
				return nil
			}
			p.Status = status
			if err := r.SavePayment(p); err != nil {
				return err
			}
			appointment, err := r.GetAppointment(p.AppointmentID)
			if err != nil {
				return err
			}
			appointment.Status = models.AppointmentStatusCancelled
			return r.SaveAppointment(appointment)
		})
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	log.Warnf("[Billing] %s for unknown intent %s, ignoring", ev.Kind, ev.IntentID)
	return nil
}

func (s *Service) handleChargeRefunded(ctx context.Context, ev *Event) error {
	_ = ctx

	if ev.IntentID == "" {
		log.Warnf("[Billing] charge_refunded event %s carries no intent reference, ignoring", ev.ID)
		return nil
	}

	if payment, err := s.repo.GetSubscriptionPaymentByIntentID(ev.IntentID); err == nil {
		if payment.Status == models.PaymentStatusRefunded {
			return nil
		}
		if payment.Status != models.PaymentStatusPaid {
			// Refund observed before the success event was recorded. Delivery
			// order is not guaranteed; reject the delivery so the gateway
			// redelivers it after the success event lands.
			log.Warnf("[Billing] refund for payment %s in status %s, waiting for it to settle",
				payment.PublicID, payment.Status)
			return fmt.Errorf("refund for %s payment %s: %w", payment.Status, payment.PublicID, ErrEventOutOfOrder)
		}

		subscription, _ := s.findSubscriptionForPayment(payment)
		now := time.Now()
		return s.repo.WithTx(func(r Repository) error {
			p, err := r.GetSubscriptionPaymentByPublicID(payment.PublicID)
			if err != nil {
				return err
			}
			if p.Status == models.PaymentStatusRefunded {
				return nil
			}
			p.Status = models.PaymentStatusRefunded
			p.SetMetadata(map[string]string{models.MetaRefundID: ev.ChargeID})
			if err := r.SaveSubscriptionPayment(p); err != nil {
				return err
			}
			if subscription != nil {
				entry := buildLedgerEntry(subscription.ID, -p.Amount, 0, models.BillingHistoryStatusRefunded,
					"Subscription payment refunded by gateway", ev.ChargeID, now)
				return r.CreateBillingHistory(entry)
			}
			return nil
		})
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if payment, err := s.repo.GetPaymentByIntentID(ev.IntentID); err == nil {
		if payment.Status == models.PaymentStatusRefunded {
			return nil
		}
		return s.repo.WithTx(func(r Repository) error {
			p, err := r.GetPaymentByIntentID(ev.IntentID)
			if err != nil {
				return err
			}
			p.Status = models.PaymentStatusRefunded
			if err := r.SavePayment(p); err != nil {
				return err
			}
			appointment, err := r.GetAppointment(p.AppointmentID)
			if err != nil {
				return err
			}
			appointment.Status = models.AppointmentStatusCancelled
			return r.SaveAppointment(appointment)
		})
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	log.Warnf("[Billing] charge_refunded for unknown intent %s, ignoring", ev.IntentID)
	return nil
}

func (s *Service) dispatchSettlement(ctx context.Context, owner *models.User, paymentID, invoiceNumber, planName, cycle string, amount float64, currency, introLine string) {
	dispatchBestEffort("invoice email", func() error {
		return s.dispatcher.SendInvoiceEmail(ctx, InvoiceEmail{
			RecipientEmail: owner.Email,
			RecipientName:  owner.Name,
			PaymentID:      paymentID,
			InvoiceNumber:  invoiceNumber,
			PlanName:       planName,
			BillingCycle:   cycle,
			Amount:         amount,
			Currency:       currency,
			IntroLine:      introLine,
		})
	})
	dispatchBestEffort("settlement notification", func() error {
		return s.dispatcher.NotifyUser(ctx, owner.ID, models.NotificationTypePayment, introLine, 0)
	})
}
