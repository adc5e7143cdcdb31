package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/svillega/lastbite-backend/api/responses"
	pkgerrors "github.com/svillega/lastbite-backend/pkg/errors"
	"github.com/svillega/lastbite-backend/pkg/logger"
)

type loyaltyBalancer interface {
	Balance(ctx context.Context, buyerID uuid.UUID) (int, error)
}

// LoyaltyBalance returns the buyer's accumulated points.
func LoyaltyBalance(svc loyaltyBalancer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "loyalty service unavailable"))
			return
		}

		buyerID, err := buyerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		points, err := svc.Balance(r.Context(), buyerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int{"points": points})
	}
}
