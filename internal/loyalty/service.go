package loyalty

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/svillega/lastbite-backend/pkg/db"
	"github.com/svillega/lastbite-backend/pkg/db/models"
	pkgerrors "github.com/svillega/lastbite-backend/pkg/errors"
)

// DefaultPointsPerOrder matches the config default for deployments that do
// not tune the loyalty rate.
const DefaultPointsPerOrder = 1

// Awarder grants loyalty credits inside the caller's transaction. Award is
// idempotent per order: the unique order index absorbs replays.
type Awarder interface {
	Award(ctx context.Context, tx *gorm.DB, buyerID, orderID uuid.UUID, points int) (bool, error)
}

// Service awards and sums loyalty credits.
type Service struct {
	db *gorm.DB
}

// NewService builds the loyalty service bound to the provided DB.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Award inserts a credit for the order. Returns false without error when the
// order already has a credit, so replayed payment signals award at most once.
func (s *Service) Award(ctx context.Context, tx *gorm.DB, buyerID, orderID uuid.UUID, points int) (bool, error) {
	if tx == nil {
		tx = s.db
	}
	if buyerID == uuid.Nil || orderID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "buyer and order ids required")
	}
	if points <= 0 {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "points must be positive")
	}

	credit := &models.LoyaltyCredit{
		ID:      uuid.New(),
		BuyerID: buyerID,
		OrderID: orderID,
		Points:  points,
	}
	if err := tx.WithContext(ctx).Create(credit).Error; err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_loyalty_credits_order") {
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert loyalty credit")
	}
	return true, nil
}

// Balance sums the buyer's accumulated points.
func (s *Service) Balance(ctx context.Context, buyerID uuid.UUID) (int, error) {
	if buyerID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	var total int64
	err := s.db.WithContext(ctx).Model(&models.LoyaltyCredit{}).
		Where("buyer_id = ?", buyerID).
		Select("COALESCE(SUM(points), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum loyalty credits")
	}
	return int(total), nil
}
