package payments

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"github.com/marcwilhelm/SalonOwl/internal/pkg/mail"
)

// InvoiceEmail is the data handed to the invoice renderer/mailer. The engine
// supplies the data; the mail layer produces the markup.
type InvoiceEmail struct {
	RecipientEmail string
	RecipientName  string
	PaymentID      string
	InvoiceNumber  string
	PlanName       string
	BillingCycle   string
	Amount         float64
	Currency       string
	Subject        string
	IntroLine      string
}

// Dispatcher requests invoice emails and user notifications after settlement.
// Delivery mechanics live outside the billing core; every call site treats
// failures as best-effort (logged, never propagated into a transaction).
type Dispatcher interface {
	SendInvoiceEmail(ctx context.Context, inv InvoiceEmail) error
	NotifyUser(ctx context.Context, userID uint, notificationType, content string, referenceID uint) error
}

type smtpDispatcher struct {
	repo Repository
}

// NewDispatcher returns the SMTP + notification-row dispatcher.
func NewDispatcher(repo Repository) Dispatcher {
	return &smtpDispatcher{repo: repo}
}

func (d *smtpDispatcher) SendInvoiceEmail(ctx context.Context, inv InvoiceEmail) error {
	_ = ctx
	subject := inv.Subject
	if subject == "" {
		subject = fmt.Sprintf("SalonOwl invoice %s", inv.InvoiceNumber)
	}
	return mail.SendMail(inv.RecipientEmail, subject, mail.RenderInvoiceBody(mail.InvoiceData{
		RecipientName: inv.RecipientName,
		PaymentID:     inv.PaymentID,
		InvoiceNumber: inv.InvoiceNumber,
		PlanName:      inv.PlanName,
		BillingCycle:  inv.BillingCycle,
		Amount:        inv.Amount,
		Currency:      inv.Currency,
		IntroLine:     inv.IntroLine,
	}))
}

func (d *smtpDispatcher) NotifyUser(ctx context.Context, userID uint, notificationType, content string, referenceID uint) error {
	_ = ctx
	return d.repo.CreateNotification(userID, notificationType, content, referenceID)
}

// dispatchBestEffort runs fn and logs instead of returning its error. Used
// for every side effect that follows a committed financial state change.
func dispatchBestEffort(what string, fn func() error) {
	if err := fn(); err != nil {
		log.Warnf("[Billing] best-effort %s failed: %v", what, err)
	}
}
