package listings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/svillega/lastbite-backend/pkg/db/models"
)

// Repository persists listings. The quantity_remaining counter is never
// written here; only the inventory ledger mutates it.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, listing *models.Listing) (*models.Listing, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	ListActive(ctx context.Context, now time.Time, limit int) ([]models.Listing, error)
	ListByRestaurant(ctx context.Context, restaurantID uuid.UUID, limit int) ([]models.Listing, error)
	Deactivate(ctx context.Context, id uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a listings repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, listing *models.Listing) (*models.Listing, error) {
	if err := r.db.WithContext(ctx).Create(listing).Error; err != nil {
		return nil, err
	}
	return listing, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&listing).Error
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *repository) ListActive(ctx context.Context, now time.Time, limit int) ([]models.Listing, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.Listing
	err := r.db.WithContext(ctx).
		Where("active = ? AND sold_out = ? AND pickup_end > ?", true, false, now).
		Order("pickup_start ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListByRestaurant(ctx context.Context, restaurantID uuid.UUID, limit int) ([]models.Listing, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.Listing
	err := r.db.WithContext(ctx).
		Where("restaurant_id = ?", restaurantID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// Deactivate soft-retires a listing. Rows are never hard-deleted while
// orders reference them.
func (r *repository) Deactivate(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Listing{}).
		Where("id = ? AND active = ?", id, true).
		Update("active", false)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
