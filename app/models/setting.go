package models

import (
	"strconv"
	"time"

	"gorm.io/gorm"
)

// Setting represents a system setting stored as a key/value row.
type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"column:setting_key;size:255;not null;uniqueIndex" json:"key" validate:"required,min=1,max=255"`
	Value     string    `gorm:"type:text" json:"value"`
	Type      string    `gorm:"size:50;not null" json:"type" validate:"required"` // string, boolean, integer, float
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Setting keys consumed by the billing engine.
const (
	SettingStripeEnabled       = "stripe_enabled"
	SettingStripeSecretKey     = "stripe_secret_key"
	SettingStripeWebhookSecret = "stripe_webhook_secret"
	SettingPaymentCurrency     = "payment_currency"
	SettingPaymentTaxRate      = "payment_tax_rate"
	SettingRefundWindowDays    = "refund_window_days"
)

// PaymentSettings is the integration configuration for the payment gateway.
// It is loaded fresh from the settings table on every billing operation so
// key rotations take effect without a restart.
type PaymentSettings struct {
	StripeEnabled       bool
	StripeSecretKey     string
	StripeWebhookSecret string
	Currency            string
	TaxRate             float64
	RefundWindowDays    int
}

// LoadPaymentSettings reads the payment-related settings rows and applies
// defaults for keys that were never configured.
func LoadPaymentSettings(db *gorm.DB) (*PaymentSettings, error) {
	ps := &PaymentSettings{
		Currency:         "usd",
		RefundWindowDays: 10,
	}

	var settings []Setting
	err := db.Where("setting_key IN ?", []string{
		SettingStripeEnabled,
		SettingStripeSecretKey,
		SettingStripeWebhookSecret,
		SettingPaymentCurrency,
		SettingPaymentTaxRate,
		SettingRefundWindowDays,
	}).Find(&settings).Error
	if err != nil {
		return nil, err
	}

	for _, s := range settings {
		switch s.Key {
		case SettingStripeEnabled:
			ps.StripeEnabled = s.Value == "true"
		case SettingStripeSecretKey:
			ps.StripeSecretKey = s.Value
		case SettingStripeWebhookSecret:
			ps.StripeWebhookSecret = s.Value
		case SettingPaymentCurrency:
			if s.Value != "" {
				ps.Currency = s.Value
			}
		case SettingPaymentTaxRate:
			if rate, err := strconv.ParseFloat(s.Value, 64); err == nil && rate >= 0 {
				ps.TaxRate = rate
			}
		case SettingRefundWindowDays:
			if days, err := strconv.Atoi(s.Value); err == nil && days > 0 {
				ps.RefundWindowDays = days
			}
		}
	}

	return ps, nil
}

// SaveSetting upserts a single settings row.
func SaveSetting(db *gorm.DB, key, value, settingType string) error {
	var existing Setting
	err := db.Where("setting_key = ?", key).First(&existing).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return db.Create(&Setting{Key: key, Value: value, Type: settingType}).Error
		}
		return err
	}
	existing.Value = value
	existing.Type = settingType
	return db.Save(&existing).Error
}
