package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/svillega/lastbite-backend/api/responses"
	"github.com/svillega/lastbite-backend/api/validators"
	listingssvc "github.com/svillega/lastbite-backend/internal/listings"
	"github.com/svillega/lastbite-backend/pkg/db/models"
	"github.com/svillega/lastbite-backend/pkg/enums"
	pkgerrors "github.com/svillega/lastbite-backend/pkg/errors"
	"github.com/svillega/lastbite-backend/pkg/logger"
)

const (
	defaultListingPageSize = 20
	maxListingPageSize     = 100
)

type listingView struct {
	ID                 uuid.UUID      `json:"id"`
	RestaurantID       uuid.UUID      `json:"restaurant_id"`
	Title              string         `json:"title"`
	Description        *string        `json:"description,omitempty"`
	Currency           enums.Currency `json:"currency"`
	OriginalPriceCents int            `json:"original_price_cents"`
	PriceCents         int            `json:"price_cents"`
	QuantityTotal      int            `json:"quantity_total"`
	QuantityRemaining  int            `json:"quantity_remaining"`
	PickupStart        time.Time      `json:"pickup_start"`
	PickupEnd          time.Time      `json:"pickup_end"`
	Active             bool           `json:"active"`
	SoldOut            bool           `json:"sold_out"`
}

func newListingView(listing *models.Listing) listingView {
	return listingView{
		ID:                 listing.ID,
		RestaurantID:       listing.RestaurantID,
		Title:              listing.Title,
		Description:        listing.Description,
		Currency:           listing.Currency,
		OriginalPriceCents: listing.OriginalPriceCents,
		PriceCents:         listing.PriceCents,
		QuantityTotal:      listing.QuantityTotal,
		QuantityRemaining:  listing.QuantityRemaining,
		PickupStart:        listing.PickupStart,
		PickupEnd:          listing.PickupEnd,
		Active:             listing.Active,
		SoldOut:            listing.SoldOut,
	}
}

func newListingViews(listings []models.Listing) []listingView {
	views := make([]listingView, 0, len(listings))
	for i := range listings {
		views = append(views, newListingView(&listings[i]))
	}
	return views
}

// BrowseListings returns active surprise bags with stock remaining.
func BrowseListings(svc listingssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listings service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", defaultListingPageSize, 1, maxListingPageSize)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.Browse(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"listings": newListingViews(rows)})
	}
}

// GetListing returns one listing by id.
func GetListing(svc listingssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listings service unavailable"))
			return
		}

		listingID, err := pathUUID(r, "listingID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listing, err := svc.Get(r.Context(), listingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newListingView(listing))
	}
}

// CreateListing publishes a new surprise bag for the caller's restaurant.
func CreateListing(svc listingssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listings service unavailable"))
			return
		}

		restaurantID, err := restaurantIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createListingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listing, err := svc.Create(r.Context(), listingssvc.CreateInput{
			RestaurantID:       restaurantID,
			Title:              validators.SanitizeString(payload.Title, 200),
			Description:        payload.Description,
			Currency:           enums.Currency(payload.Currency),
			OriginalPriceCents: payload.OriginalPriceCents,
			PriceCents:         payload.PriceCents,
			Quantity:           payload.Quantity,
			PickupStart:        payload.PickupStart,
			PickupEnd:          payload.PickupEnd,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newListingView(listing))
	}
}

// ListRestaurantListings returns the caller restaurant's own listings,
// inactive ones included.
func ListRestaurantListings(svc listingssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listings service unavailable"))
			return
		}

		restaurantID, err := restaurantIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", defaultListingPageSize, 1, maxListingPageSize)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListForRestaurant(r.Context(), restaurantID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"listings": newListingViews(rows)})
	}
}

// DeactivateListing pulls a listing from the storefront. Reserved and paid
// orders against it are unaffected.
func DeactivateListing(svc listingssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listings service unavailable"))
			return
		}

		restaurantID, err := restaurantIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listingID, err := pathUUID(r, "listingID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Deactivate(r.Context(), restaurantID, listingID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deactivated"})
	}
}

type createListingRequest struct {
	Title              string    `json:"title" validate:"required,min=1,max=200"`
	Description        *string   `json:"description,omitempty" validate:"omitempty,max=2000"`
	Currency           string    `json:"currency" validate:"omitempty,oneof=EUR USD"`
	OriginalPriceCents int       `json:"original_price_cents" validate:"required,min=0"`
	PriceCents         int       `json:"price_cents" validate:"min=0"`
	Quantity           int       `json:"quantity" validate:"required,min=1"`
	PickupStart        time.Time `json:"pickup_start" validate:"required"`
	PickupEnd          time.Time `json:"pickup_end" validate:"required"`
}
