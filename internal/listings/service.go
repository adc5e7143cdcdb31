package listings

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/svillega/lastbite-backend/pkg/db/models"
	"github.com/svillega/lastbite-backend/pkg/enums"
	pkgerrors "github.com/svillega/lastbite-backend/pkg/errors"
)

// CreateInput carries the fields a restaurant supplies for a new listing.
type CreateInput struct {
	RestaurantID       uuid.UUID
	Title              string
	Description        *string
	Currency           enums.Currency
	OriginalPriceCents int
	PriceCents         int
	Quantity           int
	PickupStart        time.Time
	PickupEnd          time.Time
}

// Service owns listing lifecycle outside the reservation counter.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Listing, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	Browse(ctx context.Context, limit int) ([]models.Listing, error)
	ListForRestaurant(ctx context.Context, restaurantID uuid.UUID, limit int) ([]models.Listing, error)
	Deactivate(ctx context.Context, restaurantID, id uuid.UUID) error
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds the listings service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("listings repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Listing, error) {
	if input.RestaurantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "restaurant context missing")
	}
	if input.Title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if input.PriceCents < 0 || input.OriginalPriceCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "prices must not be negative")
	}
	if input.PriceCents > input.OriginalPriceCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discounted price exceeds original price")
	}
	if !input.PickupEnd.After(input.PickupStart) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pickup window must end after it starts")
	}
	if !input.PickupEnd.After(s.now()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pickup window already closed")
	}
	currency := input.Currency
	if currency == "" {
		currency = enums.CurrencyEUR
	}
	if !currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency")
	}

	listing := &models.Listing{
		ID:                 uuid.New(),
		RestaurantID:       input.RestaurantID,
		Title:              input.Title,
		Description:        input.Description,
		Currency:           currency,
		OriginalPriceCents: input.OriginalPriceCents,
		PriceCents:         input.PriceCents,
		QuantityTotal:      input.Quantity,
		QuantityRemaining:  input.Quantity,
		PickupStart:        input.PickupStart,
		PickupEnd:          input.PickupEnd,
		Active:             true,
	}
	created, err := s.repo.Create(ctx, listing)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create listing")
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing id required")
	}
	listing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
	}
	return listing, nil
}

func (s *service) Browse(ctx context.Context, limit int) ([]models.Listing, error) {
	rows, err := s.repo.ListActive(ctx, s.now().UTC(), limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "browse listings")
	}
	return rows, nil
}

func (s *service) ListForRestaurant(ctx context.Context, restaurantID uuid.UUID, limit int) ([]models.Listing, error) {
	if restaurantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "restaurant context missing")
	}
	rows, err := s.repo.ListByRestaurant(ctx, restaurantID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list restaurant listings")
	}
	return rows, nil
}

func (s *service) Deactivate(ctx context.Context, restaurantID, id uuid.UUID) error {
	listing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if listing.RestaurantID != restaurantID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "listing does not belong to restaurant")
	}
	done, err := s.repo.Deactivate(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate listing")
	}
	if !done {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "listing already deactivated")
	}
	return nil
}
