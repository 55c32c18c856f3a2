package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/marcwilhelm/SalonOwl/app/models"
	"github.com/marcwilhelm/SalonOwl/internal/pkg/cache"
	"gorm.io/gorm"
)

const planCacheTTL = 10 * time.Minute

// planRepository implements the PlanRepository interface with a redis
// read-through cache. Plans are effectively immutable reference data, so a
// short TTL is enough to keep admin edits visible.
type planRepository struct {
	db *gorm.DB
}

// NewPlanRepository creates a new plan repository instance
func NewPlanRepository(db *gorm.DB) PlanRepository {
	return &planRepository{db: db}
}

func planCacheKey(id uint) string {
	return fmt.Sprintf("plan:%d", id)
}

// GetByID retrieves a plan, preferring the cache
func (r *planRepository) GetByID(id uint) (*models.SubscriptionPlan, error) {
	if cached, err := cache.Get(planCacheKey(id)); err == nil && cached != "" {
		var plan models.SubscriptionPlan
		if err := json.Unmarshal([]byte(cached), &plan); err == nil {
			return &plan, nil
		}
	}

	plan, err := models.GetPlan(r.db, id)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(plan); err == nil {
		_ = cache.Set(planCacheKey(id), string(raw), planCacheTTL)
	}
	return plan, nil
}

// ListActive returns all plans currently offered
func (r *planRepository) ListActive() ([]models.SubscriptionPlan, error) {
	var plans []models.SubscriptionPlan
	err := r.db.Where("is_active = ?", true).Order("price_monthly ASC").Find(&plans).Error
	return plans, err
}

// Create stores a new plan
func (r *planRepository) Create(plan *models.SubscriptionPlan) error {
	return r.db.Create(plan).Error
}

// Update saves plan changes and invalidates the cache entry
func (r *planRepository) Update(plan *models.SubscriptionPlan) error {
	if err := r.db.Save(plan).Error; err != nil {
		return err
	}
	_ = cache.Delete(planCacheKey(plan.ID))
	return nil
}
