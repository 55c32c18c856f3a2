package repository

import (
	"github.com/marcwilhelm/SalonOwl/app/models"
	"gorm.io/gorm"
)

// settingRepository implements the SettingRepository interface
type settingRepository struct {
	db *gorm.DB
}

// NewSettingRepository creates a new setting repository instance
func NewSettingRepository(db *gorm.DB) SettingRepository {
	return &settingRepository{db: db}
}

// GetValue retrieves a specific setting value by key
func (r *settingRepository) GetValue(key string) (string, error) {
	var setting models.Setting
	// Correct column is `setting_key` (see gorm tag in models.Setting)
	err := r.db.Where("setting_key = ?", key).First(&setting).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil // Return empty string for non-existent settings
		}
		return "", err
	}
	return setting.Value, nil
}

// SetValue sets a specific setting value by key
func (r *settingRepository) SetValue(key, value string) error {
	return models.SaveSetting(r.db, key, value, "string")
}

// PaymentSettings loads the payment gateway configuration. Always reads the
// settings table so key rotations are picked up without a restart.
func (r *settingRepository) PaymentSettings() (*models.PaymentSettings, error) {
	return models.LoadPaymentSettings(r.db)
}
