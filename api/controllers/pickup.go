package controllers

import (
	"net/http"

	"github.com/svillega/lastbite-backend/api/responses"
	"github.com/svillega/lastbite-backend/api/validators"
	pickupsvc "github.com/svillega/lastbite-backend/internal/pickup"
	pkgerrors "github.com/svillega/lastbite-backend/pkg/errors"
	"github.com/svillega/lastbite-backend/pkg/logger"
)

// PickupScan redeems an order by its code at the counter.
func PickupScan(svc *pickupsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pickup service unavailable"))
			return
		}

		restaurantID, err := restaurantIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload pickupScanRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		redemption, err := svc.Redeem(r.Context(), restaurantID, validators.SanitizeString(payload.Code, 32))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, redemption)
	}
}

type pickupScanRequest struct {
	Code string `json:"code" validate:"required"`
}
