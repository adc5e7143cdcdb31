package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/svillega/lastbite-backend/pkg/db/models"
	pkgerrors "github.com/svillega/lastbite-backend/pkg/errors"
	"github.com/svillega/lastbite-backend/pkg/metrics"
)

// Reserver decrements listing stock inside the caller's transaction.
type Reserver interface {
	Reserve(ctx context.Context, tx *gorm.DB, listingID uuid.UUID, qty int) (*Snapshot, error)
}

// Releaser returns reserved stock when an order dies before redemption.
type Releaser interface {
	Release(ctx context.Context, tx *gorm.DB, listingID uuid.UUID, qty int) error
}

// Snapshot freezes the listing fields an order needs at reservation time.
type Snapshot struct {
	ListingID          uuid.UUID
	RestaurantID       uuid.UUID
	Title              string
	Currency           string
	PriceCents         int
	OriginalPriceCents int
	Remaining          int
	SoldOut            bool
	PickupStart        time.Time
	PickupEnd          time.Time
}

// Ledger owns the quantity_remaining counter. Both mutations are single
// conditional statements, so the precondition and the write commit together.
type Ledger struct {
	metrics *metrics.ReconcileMetrics
	now     func() time.Time
}

// NewLedger builds the inventory ledger. Metrics may be nil.
func NewLedger(m *metrics.ReconcileMetrics) *Ledger {
	return &Ledger{metrics: m, now: time.Now}
}

// Reserve atomically decrements quantity_remaining by qty. The listing must
// be active, not sold out, and inside its pickup window. A conditional UPDATE
// guards the counter: zero rows affected after the preconditions passed means
// a concurrent reservation won the remaining stock.
func (l *Ledger) Reserve(ctx context.Context, tx *gorm.DB, listingID uuid.UUID, qty int) (*Snapshot, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory reserve")
	}
	if listingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing id required")
	}
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var listing models.Listing
	if err := tx.WithContext(ctx).Where("id = ?", listingID).First(&listing).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			l.count("not_found")
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
	}

	now := l.now().UTC()
	if !listing.Active {
		l.count("unavailable")
		return nil, pkgerrors.New(pkgerrors.CodeUnavailable, "listing is no longer available")
	}
	if !now.Before(listing.PickupEnd) {
		l.count("unavailable")
		return nil, pkgerrors.New(pkgerrors.CodeUnavailable, "pickup window has closed")
	}
	if listing.QuantityRemaining < qty {
		l.count("insufficient_stock")
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough bags left").
			WithDetails(map[string]any{"remaining": listing.QuantityRemaining})
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE listings
		SET quantity_remaining = quantity_remaining - ?,
			sold_out = (quantity_remaining - ? = 0),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND quantity_remaining >= ?
	`, qty, qty, listingID, qty)
	if res.Error != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve inventory")
	}
	if res.RowsAffected == 0 {
		// Preconditions passed on our read but another transaction consumed
		// the stock in between.
		l.count("insufficient_stock")
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough bags left")
	}

	var remaining int
	if err := tx.WithContext(ctx).Model(&models.Listing{}).
		Where("id = ?", listingID).
		Select("quantity_remaining").
		Scan(&remaining).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload listing quantity")
	}
	if remaining < 0 {
		// Never auto-repaired: abort the transaction and surface loudly.
		l.count("consistency_violation")
		return nil, pkgerrors.New(pkgerrors.CodeConsistency, "listing stock went negative")
	}

	l.count("success")
	return &Snapshot{
		ListingID:          listing.ID,
		RestaurantID:       listing.RestaurantID,
		Title:              listing.Title,
		Currency:           string(listing.Currency),
		PriceCents:         listing.PriceCents,
		OriginalPriceCents: listing.OriginalPriceCents,
		Remaining:          remaining,
		SoldOut:            remaining == 0,
		PickupStart:        listing.PickupStart,
		PickupEnd:          listing.PickupEnd,
	}, nil
}

// Release returns qty units to the listing and clears the sold-out flag.
// Callers guarantee single-call discipline by conditioning their own status
// update on the order's prior state before releasing.
func (l *Ledger) Release(ctx context.Context, tx *gorm.DB, listingID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory release")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE listings
		SET quantity_remaining = quantity_remaining + ?,
			sold_out = FALSE,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND quantity_remaining + ? <= quantity_total
	`, qty, listingID, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release inventory")
	}
	if res.RowsAffected == 0 {
		// Releasing more than was ever reserved would push the counter past
		// quantity_total; that means a double release.
		l.count("consistency_violation")
		return pkgerrors.New(pkgerrors.CodeConsistency, "release would exceed listing capacity")
	}
	if l.metrics != nil {
		l.metrics.AddReleased(qty)
	}
	return nil
}

func (l *Ledger) count(outcome string) {
	if l.metrics != nil {
		l.metrics.IncReservation(outcome)
	}
}
