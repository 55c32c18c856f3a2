package repository

import (
	"github.com/marcwilhelm/SalonOwl/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, error)
	Update(user *models.User) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
}

// PlanRepository defines the interface for subscription plan lookups
type PlanRepository interface {
	GetByID(id uint) (*models.SubscriptionPlan, error)
	ListActive() ([]models.SubscriptionPlan, error)
	Create(plan *models.SubscriptionPlan) error
	Update(plan *models.SubscriptionPlan) error
}

// SettingRepository defines the interface for settings-related operations
type SettingRepository interface {
	GetValue(key string) (string, error)
	SetValue(key, value string) error
	PaymentSettings() (*models.PaymentSettings, error)
}

// Repositories holds all repository instances
type Repositories struct {
	User    UserRepository
	Plan    PlanRepository
	Setting SettingRepository
}

// NewRepositories creates all repositories backed by the given DB handle
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:    NewUserRepository(db),
		Plan:    NewPlanRepository(db),
		Setting: NewSettingRepository(db),
	}
}
