package orders

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/svillega/lastbite-backend/pkg/enums"
	pkgerrors "github.com/svillega/lastbite-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service covers the order reads and the restaurant-side ready transition.
// Terminal transitions flow through the reconciliation coordinator instead.
type Service interface {
	Get(ctx context.Context, buyerID, orderID uuid.UUID) (*OrderView, error)
	ListForBuyer(ctx context.Context, buyerID uuid.UUID, limit int) ([]OrderView, error)
	MarkReady(ctx context.Context, restaurantID, orderID uuid.UUID) (*OrderView, error)
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService builds the order service with the required dependencies.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) Get(ctx context.Context, buyerID, orderID uuid.UUID) (*OrderView, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to buyer")
	}
	view := NewOrderView(order)
	return &view, nil
}

func (s *service) ListForBuyer(ctx context.Context, buyerID uuid.UUID, limit int) ([]OrderView, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	rows, err := s.repo.ListByBuyer(ctx, buyerID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	views := make([]OrderView, 0, len(rows))
	for i := range rows {
		views = append(views, NewOrderView(&rows[i]))
	}
	return views, nil
}

// MarkReady moves a paid order to ready when the restaurant has the bag
// packed. The CAS conditions on paid so a concurrent refund cannot be
// overwritten.
func (s *service) MarkReady(ctx context.Context, restaurantID, orderID uuid.UUID) (*OrderView, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if restaurantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "restaurant context missing")
	}

	var view OrderView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.RestaurantID != restaurantID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to restaurant")
		}
		if order.Status == enums.OrderStatusReady {
			view = NewOrderView(order)
			return nil
		}
		if !CanTransition(order.Status, enums.OrderStatusReady) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be marked ready in current state")
		}

		moved, err := repo.UpdateStatus(ctx, order.ID, []enums.OrderStatus{enums.OrderStatusPaid}, enums.OrderStatusReady, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed state concurrently")
		}
		order.Status = enums.OrderStatusReady
		view = NewOrderView(order)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}
