package payments

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marcwilhelm/SalonOwl/app/models"
	"gorm.io/gorm"
)

// mockRepository is an in-memory Repository for service and webhook tests.
// WithTx simply runs fn against the same instance; transactional atomicity is
// the database's job, the tests assert the state transitions.
type mockRepository struct {
	mu sync.Mutex

	plans         map[uint]*models.SubscriptionPlan
	users         map[uint]*models.User
	subscriptions map[uint]*models.Subscription
	nextSubID     uint
	subPayments   map[string]*models.SubscriptionPayment
	payments      map[string]*models.Payment
	appointments  map[uint]*models.Appointment
	salons        map[uint]*models.Salon
	ledger        []*models.BillingHistory
	webhookEvents map[string]*models.BillingWebhookEvent
	nextEventID   uint
	notifications []string
	settings      *models.PaymentSettings
	usage         UsageCounts
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		plans:         map[uint]*models.SubscriptionPlan{},
		users:         map[uint]*models.User{},
		subscriptions: map[uint]*models.Subscription{},
		nextSubID:     1,
		subPayments:   map[string]*models.SubscriptionPayment{},
		payments:      map[string]*models.Payment{},
		appointments:  map[uint]*models.Appointment{},
		salons:        map[uint]*models.Salon{},
		webhookEvents: map[string]*models.BillingWebhookEvent{},
		nextEventID:   1,
		settings: &models.PaymentSettings{
			StripeEnabled:       true,
			StripeSecretKey:     "sk_test_123",
			StripeWebhookSecret: "whsec_test",
			Currency:            "usd",
			TaxRate:             0,
			RefundWindowDays:    10,
		},
	}
}

func (m *mockRepository) WithTx(fn func(Repository) error) error {
	return fn(m)
}

func (m *mockRepository) GetPlan(id uint) (*models.SubscriptionPlan, error) {
	if p, ok := m.plans[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockRepository) GetUser(id uint) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockRepository) GetActiveSubscription(ownerID uint) (*models.Subscription, error) {
	for _, sub := range m.subscriptions {
		if sub.OwnerID == ownerID && sub.Status == models.SubscriptionStatusActive {
			return sub, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockRepository) GetSubscription(id uint) (*models.Subscription, error) {
	if sub, ok := m.subscriptions[id]; ok {
		return sub, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockRepository) CreateSubscription(sub *models.Subscription) error {
	sub.ID = m.nextSubID
	m.nextSubID++
	m.subscriptions[sub.ID] = sub
	return nil
}

func (m *mockRepository) SaveSubscription(sub *models.Subscription) error {
	m.subscriptions[sub.ID] = sub
	return nil
}

func (m *mockRepository) CurrentUsage(ownerID uint) (*UsageCounts, error) {
	usage := m.usage
	return &usage, nil
}

func (m *mockRepository) CreateSubscriptionPayment(p *models.SubscriptionPayment) error {
	if _, exists := m.subPayments[p.PublicID]; exists {
		return errors.New("duplicate public id")
	}
	p.ID = uint(len(m.subPayments) + 1)
	m.subPayments[p.PublicID] = p
	return nil
}

func (m *mockRepository) SaveSubscriptionPayment(p *models.SubscriptionPayment) error {
	m.subPayments[p.PublicID] = p
	return nil
}

func (m *mockRepository) GetSubscriptionPaymentByPublicID(publicID string) (*models.SubscriptionPayment, error) {
	if p, ok := m.subPayments[publicID]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockRepository) GetSubscriptionPaymentByIntentID(intentID string) (*models.SubscriptionPayment, error) {
	for _, p := range m.subPayments {
		if p.StripePaymentIntentID == intentID {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockRepository) ListExpiredPendingPayments(now time.Time, limit int) ([]models.SubscriptionPayment, error) {
	var rows []models.SubscriptionPayment
	for _, p := range m.subPayments {
		if p.Status == models.PaymentStatusPending && p.ExpiresAt.Before(now) {
			rows = append(rows, *p)
		}
		if len(rows) >= limit {
			break
		}
	}
	return rows, nil
}

func (m *mockRepository) GetPaymentByIntentID(intentID string) (*models.Payment, error) {
	if p, ok := m.payments[intentID]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockRepository) SavePayment(p *models.Payment) error {
	m.payments[p.StripePaymentIntentID] = p
	return nil
}

func (m *mockRepository) GetAppointment(id uint) (*models.Appointment, error) {
	if a, ok := m.appointments[id]; ok {
		return a, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockRepository) SaveAppointment(a *models.Appointment) error {
	m.appointments[a.ID] = a
	return nil
}

func (m *mockRepository) GetSalon(id uint) (*models.Salon, error) {
	if s, ok := m.salons[id]; ok {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockRepository) CreateBillingHistory(h *models.BillingHistory) error {
	h.ID = uint(len(m.ledger) + 1)
	m.ledger = append(m.ledger, h)
	return nil
}

func (m *mockRepository) PaymentSettings() (*models.PaymentSettings, error) {
	cp := *m.settings
	return &cp, nil
}

func (m *mockRepository) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.webhookEvents[event.ProviderEventID]; ok {
		return false, existing, nil
	}
	event.ID = m.nextEventID
	m.nextEventID++
	m.webhookEvents[event.ProviderEventID] = event
	return true, event, nil
}

func (m *mockRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	for _, ev := range m.webhookEvents {
		if ev.ID == id {
			ev.ProcessedAt = &now
			ev.ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *mockRepository) DeleteWebhookEvent(id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, ev := range m.webhookEvents {
		if ev.ID == id {
			delete(m.webhookEvents, key)
			return nil
		}
	}
	return nil
}

func (m *mockRepository) CreateNotification(userID uint, notificationType, content string, referenceID uint) error {
	m.notifications = append(m.notifications, fmt.Sprintf("%d:%s", userID, notificationType))
	return nil
}

// fakeGateway records calls; responses and errors are configurable per test.
type fakeGateway struct {
	createIntentCalls []IntentParams
	cancelCalls       []string
	refundCalls       []RefundParams

	intentErr error
	cancelErr error
	refundErr error

	nextIntentID string
	nextRefundID string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		nextIntentID: "pi_test_1",
		nextRefundID: "re_test_1",
	}
}

func (g *fakeGateway) CreateIntent(ctx context.Context, params IntentParams) (*Intent, error) {
	g.createIntentCalls = append(g.createIntentCalls, params)
	if g.intentErr != nil {
		return nil, g.intentErr
	}
	return &Intent{ID: g.nextIntentID, ClientSecret: g.nextIntentID + "_secret"}, nil
}

func (g *fakeGateway) CancelIntent(ctx context.Context, intentID string) error {
	g.cancelCalls = append(g.cancelCalls, intentID)
	return g.cancelErr
}

func (g *fakeGateway) CreateRefund(ctx context.Context, params RefundParams) (string, error) {
	g.refundCalls = append(g.refundCalls, params)
	if g.refundErr != nil {
		return "", g.refundErr
	}
	return g.nextRefundID, nil
}

// fakeDispatcher records side-effect requests.
type fakeDispatcher struct {
	invoices      []InvoiceEmail
	notifications []string
	sendErr       error
}

func (d *fakeDispatcher) SendInvoiceEmail(ctx context.Context, inv InvoiceEmail) error {
	d.invoices = append(d.invoices, inv)
	return d.sendErr
}

func (d *fakeDispatcher) NotifyUser(ctx context.Context, userID uint, notificationType, content string, referenceID uint) error {
	d.notifications = append(d.notifications, fmt.Sprintf("%d:%s", userID, notificationType))
	return nil
}

// newTestService wires a service with the in-memory repository, a recording
// gateway and dispatcher, and a seeded owner + two plans.
func newTestService() (*Service, *mockRepository, *fakeGateway, *fakeDispatcher) {
	repo := newMockRepository()
	gw := newFakeGateway()
	dispatcher := &fakeDispatcher{}

	repo.users[1] = &models.User{ID: 1, Name: "Dana", Email: "dana@example.com", Role: models.ROLE_OWNER, Status: models.STATUS_ACTIVE}
	repo.plans[1] = &models.SubscriptionPlan{
		ID: 1, Name: "Starter", PriceMonthly: 29, PriceYearly: 290,
		MaxBookings: 100, MaxStaff: 3, MaxLocations: 1, IsActive: true,
	}
	repo.plans[2] = &models.SubscriptionPlan{
		ID: 2, Name: "Pro", PriceMonthly: 59, PriceYearly: 590,
		MaxBookings: 1000, MaxStaff: 15, MaxLocations: 5, IsActive: true,
	}

	svc := NewService(repo, func(cfg GatewayConfig) Gateway { return gw }, dispatcher)
	return svc, repo, gw, dispatcher
}
