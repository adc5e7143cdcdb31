package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/svillega/lastbite-backend/api/responses"
	pkgerrors "github.com/svillega/lastbite-backend/pkg/errors"
	"github.com/svillega/lastbite-backend/pkg/gateway"
	"github.com/svillega/lastbite-backend/pkg/logger"
)

// maxWebhookBody caps the payload read so a bad actor cannot stream
// unbounded bytes into memory.
const maxWebhookBody = 1 << 20

type gatewayWebhookService interface {
	Process(ctx context.Context, body []byte) error
}

type signatureVerifier interface {
	VerifySignature(body []byte, header string) bool
}

// GatewayWebhook ingests payment provider events. The signature check runs
// before anything else touches the payload: an unverified body never reaches
// the service.
func GatewayWebhook(svc gatewayWebhookService, verifier signatureVerifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gateway client unavailable"))
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		header := r.Header.Get(gateway.SignatureHeader)
		if header == "" || !verifier.VerifySignature(body, header) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature"))
			return
		}

		if err := svc.Process(ctx, body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}
