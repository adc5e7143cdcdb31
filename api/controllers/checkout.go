package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/svillega/lastbite-backend/api/responses"
	"github.com/svillega/lastbite-backend/api/validators"
	checkoutsvc "github.com/svillega/lastbite-backend/internal/checkout"
	pkgerrors "github.com/svillega/lastbite-backend/pkg/errors"
	"github.com/svillega/lastbite-backend/pkg/logger"
)

// Checkout reserves bags and opens a provider payment session for the buyer.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		buyerID, err := buyerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Execute(r.Context(), buyerID, checkoutsvc.Input{
			ListingID:  payload.ListingID,
			Quantity:   payload.Quantity,
			BuyerEmail: validators.SanitizeString(payload.BuyerEmail, 254),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

type checkoutRequest struct {
	ListingID  uuid.UUID `json:"listing_id" validate:"required,uuid4"`
	Quantity   int       `json:"quantity" validate:"required,min=1"`
	BuyerEmail string    `json:"buyer_email" validate:"omitempty,email"`
}
