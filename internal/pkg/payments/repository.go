package payments

import (
	"time"

	"github.com/marcwilhelm/SalonOwl/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the DB operations used by the billing engine. WithTx
// runs fn against a transaction-bound repository; every settlement event does
// all of its writes inside a single WithTx call.
type Repository interface {
	WithTx(fn func(Repository) error) error

	GetPlan(id uint) (*models.SubscriptionPlan, error)
	GetUser(id uint) (*models.User, error)

	GetActiveSubscription(ownerID uint) (*models.Subscription, error)
	GetSubscription(id uint) (*models.Subscription, error)
	CreateSubscription(sub *models.Subscription) error
	SaveSubscription(sub *models.Subscription) error
	CurrentUsage(ownerID uint) (*UsageCounts, error)

	CreateSubscriptionPayment(p *models.SubscriptionPayment) error
	SaveSubscriptionPayment(p *models.SubscriptionPayment) error
	GetSubscriptionPaymentByPublicID(publicID string) (*models.SubscriptionPayment, error)
	GetSubscriptionPaymentByIntentID(intentID string) (*models.SubscriptionPayment, error)
	ListExpiredPendingPayments(now time.Time, limit int) ([]models.SubscriptionPayment, error)

	GetPaymentByIntentID(intentID string) (*models.Payment, error)
	SavePayment(p *models.Payment) error
	GetAppointment(id uint) (*models.Appointment, error)
	SaveAppointment(a *models.Appointment) error
	GetSalon(id uint) (*models.Salon, error)

	CreateBillingHistory(h *models.BillingHistory) error

	PaymentSettings() (*models.PaymentSettings, error)
	CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
	DeleteWebhookEvent(id uint) error

	CreateNotification(userID uint, notificationType, content string, referenceID uint) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(fn func(Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

func (r *gormRepository) GetPlan(id uint) (*models.SubscriptionPlan, error) {
	return models.GetPlan(r.db, id)
}

func (r *gormRepository) GetUser(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) GetActiveSubscription(ownerID uint) (*models.Subscription, error) {
	return models.GetActiveSubscriptionByOwner(r.db, ownerID)
}

func (r *gormRepository) GetSubscription(id uint) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.First(&sub, id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) CreateSubscription(sub *models.Subscription) error {
	return r.db.Create(sub).Error
}

func (r *gormRepository) SaveSubscription(sub *models.Subscription) error {
	return r.db.Save(sub).Error
}

func (r *gormRepository) CurrentUsage(ownerID uint) (*UsageCounts, error) {
	usage := &UsageCounts{}

	var locations int64
	if err := r.db.Model(&models.Salon{}).Where("owner_id = ?", ownerID).Count(&locations).Error; err != nil {
		return nil, err
	}
	usage.Locations = int(locations)

	var staff int64
	if err := r.db.Model(&models.StaffMember{}).Where("owner_id = ?", ownerID).Count(&staff).Error; err != nil {
		return nil, err
	}
	usage.Staff = int(staff)

	var bookings int64
	err := r.db.Model(&models.Appointment{}).
		Joins("JOIN salons ON salons.id = appointments.salon_id").
		Where("salons.owner_id = ? AND appointments.status = ?", ownerID, models.AppointmentStatusBooked).
		Count(&bookings).Error
	if err != nil {
		return nil, err
	}
	usage.Bookings = int(bookings)

	return usage, nil
}

func (r *gormRepository) CreateSubscriptionPayment(p *models.SubscriptionPayment) error {
	return r.db.Create(p).Error
}

func (r *gormRepository) SaveSubscriptionPayment(p *models.SubscriptionPayment) error {
	return r.db.Save(p).Error
}

func (r *gormRepository) GetSubscriptionPaymentByPublicID(publicID string) (*models.SubscriptionPayment, error) {
	var p models.SubscriptionPayment
	if err := r.db.Where("public_id = ?", publicID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) GetSubscriptionPaymentByIntentID(intentID string) (*models.SubscriptionPayment, error) {
	var p models.SubscriptionPayment
	if err := r.db.Where("stripe_payment_intent_id = ?", intentID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) ListExpiredPendingPayments(now time.Time, limit int) ([]models.SubscriptionPayment, error) {
	var rows []models.SubscriptionPayment
	err := r.db.Where("status = ? AND expires_at < ?", models.PaymentStatusPending, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *gormRepository) GetPaymentByIntentID(intentID string) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.Where("stripe_payment_intent_id = ?", intentID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) SavePayment(p *models.Payment) error {
	return r.db.Save(p).Error
}

func (r *gormRepository) GetAppointment(id uint) (*models.Appointment, error) {
	var a models.Appointment
	if err := r.db.First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *gormRepository) SaveAppointment(a *models.Appointment) error {
	return r.db.Save(a).Error
}

func (r *gormRepository) GetSalon(id uint) (*models.Salon, error) {
	var s models.Salon
	if err := r.db.First(&s, id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *gormRepository) CreateBillingHistory(h *models.BillingHistory) error {
	return r.db.Create(h).Error
}

func (r *gormRepository) PaymentSettings() (*models.PaymentSettings, error) {
	return models.LoadPaymentSettings(r.db)
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider_event_id"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.BillingWebhookEvent
	if err := r.db.Where("provider_event_id = ?", event.ProviderEventID).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (r *gormRepository) DeleteWebhookEvent(id uint) error {
	return r.db.Delete(&models.BillingWebhookEvent{}, id).Error
}

func (r *gormRepository) CreateNotification(userID uint, notificationType, content string, referenceID uint) error {
	return models.CreateNotification(r.db, userID, notificationType, content, referenceID)
}
