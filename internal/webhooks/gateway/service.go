package gatewaywebhook

import (
	"context"
	"encoding/json"

	pkgerrors "github.com/svillega/lastbite-backend/pkg/errors"
	"github.com/svillega/lastbite-backend/pkg/gateway"
	"github.com/svillega/lastbite-backend/pkg/logger"
)

// IdempotencyScope namespaces gateway event marks in redis.
const IdempotencyScope = "gateway_webhook"

type eventApplier interface {
	HandleEvent(ctx context.Context, evt gateway.Event) error
}

// ServiceParams configure the webhook service.
type ServiceParams struct {
	Guard       *IdempotencyGuard
	Coordinator eventApplier
	Logger      *logger.Logger
}

// Service parses verified webhook bodies and hands them to the reconciliation
// coordinator exactly once per event id. Signature verification happens at
// the HTTP edge, before the body reaches this service.
type Service struct {
	guard       *IdempotencyGuard
	coordinator eventApplier
	logg        *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard required")
	}
	if params.Coordinator == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reconcile coordinator required")
	}
	return &Service{
		guard:       params.Guard,
		coordinator: params.Coordinator,
		logg:        params.Logger,
	}, nil
}

// Process handles one verified webhook delivery. Duplicates are acked
// silently. When the coordinator fails, the idempotency mark is cleared so
// the provider's retry gets a clean attempt.
func (s *Service) Process(ctx context.Context, body []byte) error {
	var evt gateway.Event
	if err := json.Unmarshal(body, &evt); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse webhook body")
	}
	if evt.EventID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "event id missing")
	}
	if evt.Type == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "event type missing")
	}

	seen, err := s.guard.CheckAndMark(ctx, evt.EventID)
	if err != nil {
		// Redis being down must not drop payments; the coordinator's CAS
		// absorbs the duplicate risk.
		if s.logg != nil {
			s.logg.Warn(ctx, "webhook idempotency check failed, processing anyway")
		}
	} else if seen {
		if s.logg != nil {
			logCtx := s.logg.WithField(ctx, "event_id", evt.EventID)
			s.logg.Info(logCtx, "duplicate webhook delivery skipped")
		}
		return nil
	}

	if err := s.coordinator.HandleEvent(ctx, evt); err != nil {
		if delErr := s.guard.Delete(ctx, evt.EventID); delErr != nil && s.logg != nil {
			s.logg.Error(ctx, "failed to clear webhook idempotency mark", delErr)
		}
		return err
	}
	return nil
}
