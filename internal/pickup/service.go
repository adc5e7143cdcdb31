package pickup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/svillega/lastbite-backend/internal/orders"
	"github.com/svillega/lastbite-backend/pkg/enums"
	pkgerrors "github.com/svillega/lastbite-backend/pkg/errors"
	"github.com/svillega/lastbite-backend/pkg/metrics"
	"github.com/svillega/lastbite-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service redeems orders at the counter. A redemption code is single-use:
// the paid/ready -> redeemed CAS guarantees a second scan fails no matter how
// the scans interleave.
type Service struct {
	tx      txRunner
	repo    orders.Repository
	outbox  outboxEmitter
	metrics *metrics.ReconcileMetrics
	now     func() time.Time
}

// NewService builds the pickup service. Metrics may be nil.
func NewService(tx txRunner, repo orders.Repository, emitter outboxEmitter, m *metrics.ReconcileMetrics) (*Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &Service{tx: tx, repo: repo, outbox: emitter, metrics: m, now: time.Now}, nil
}

// Redemption is what the restaurant's scanner screen shows after a scan.
type Redemption struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	Quantity    int               `json:"quantity"`
	Status      enums.OrderStatus `json:"status"`
	RedeemedAt  time.Time         `json:"redeemed_at"`
}

// Redeem scans a redemption code on behalf of a restaurant. A code that
// belongs to another restaurant's order is rejected as forbidden.
func (s *Service) Redeem(ctx context.Context, restaurantID uuid.UUID, code string) (*Redemption, error) {
	if restaurantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "restaurant context missing")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "redemption code required")
	}

	var redemption Redemption
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByRedemptionCode(ctx, code)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "unknown redemption code")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by code")
		}
		if order.RestaurantID != restaurantID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another restaurant")
		}

		switch order.Status {
		case enums.OrderStatusPaid, enums.OrderStatusReady:
		case enums.OrderStatusRedeemed:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already redeemed")
		default:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not redeemable")
		}

		now := s.now().UTC()
		moved, err := repo.UpdateStatus(ctx, order.ID,
			[]enums.OrderStatus{enums.OrderStatusPaid, enums.OrderStatusReady},
			enums.OrderStatusRedeemed, map[string]any{"redeemed_at": now})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order redeemed")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already redeemed")
		}

		if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderRedeemed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor: &outbox.ActorRef{
				RestaurantID: &restaurantID,
				Role:         enums.RoleRestaurant.String(),
			},
			Data: outbox.OrderEventData{
				OrderID:      order.ID,
				OrderNumber:  order.OrderNumber,
				BuyerID:      order.BuyerID,
				ListingID:    order.ListingID,
				RestaurantID: order.RestaurantID,
				Quantity:     order.Quantity,
				TotalCents:   order.TotalCents,
				Currency:     order.Currency.String(),
				Status:       enums.OrderStatusRedeemed.String(),
			},
			Version: 1,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue order.redeemed event")
		}

		redemption = Redemption{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Quantity:    order.Quantity,
			Status:      enums.OrderStatusRedeemed,
			RedeemedAt:  now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncTransition(enums.OrderStatusRedeemed.String())
	}
	return &redemption, nil
}
