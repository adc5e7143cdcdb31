package controllers

import (
	"net/http"

	"github.com/svillega/lastbite-backend/api/responses"
	"github.com/svillega/lastbite-backend/internal/reconcile"
	pkgerrors "github.com/svillega/lastbite-backend/pkg/errors"
	"github.com/svillega/lastbite-backend/pkg/logger"
)

// PaymentReturn lands the buyer's browser after the hosted payment page.
// The leg in the path is a hint only; the coordinator confirms the real
// outcome with the provider before the order moves. The response is a 302
// into the app deep link so mobile clients resume where they left off.
func PaymentReturn(coord *reconcile.Coordinator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if coord == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconcile coordinator unavailable"))
			return
		}

		leg := pathParam(r, "leg")
		switch leg {
		case reconcile.LegSuccess, reconcile.LegCancel, reconcile.LegFailure:
		default:
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "unknown return leg"))
			return
		}

		orderID, err := queryUUID(r, "order")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := coord.ApplyRedirect(r.Context(), orderID, leg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		http.Redirect(w, r, result.DeepLink, http.StatusFound)
	}
}
