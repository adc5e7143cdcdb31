package checkout

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/svillega/lastbite-backend/internal/inventory"
	"github.com/svillega/lastbite-backend/internal/orders"
	"github.com/svillega/lastbite-backend/pkg/config"
	"github.com/svillega/lastbite-backend/pkg/db/models"
	"github.com/svillega/lastbite-backend/pkg/enums"
	pkgerrors "github.com/svillega/lastbite-backend/pkg/errors"
	"github.com/svillega/lastbite-backend/pkg/gateway"
	"github.com/svillega/lastbite-backend/pkg/logger"
)

// MaxBagsPerOrder caps a single reservation so one buyer cannot sweep a
// listing in one call.
const MaxBagsPerOrder = 10

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockLedger interface {
	Reserve(ctx context.Context, tx *gorm.DB, listingID uuid.UUID, qty int) (*inventory.Snapshot, error)
	Release(ctx context.Context, tx *gorm.DB, listingID uuid.UUID, qty int) error
}

type checkoutGateway interface {
	CreateCheckout(ctx context.Context, params gateway.CheckoutParams) (*gateway.CheckoutSession, error)
}

// Input is the buyer's reservation request.
type Input struct {
	ListingID  uuid.UUID
	Quantity   int
	BuyerEmail string
}

// Result hands the client everything it needs to continue the purchase.
type Result struct {
	OrderID        uuid.UUID `json:"order_id"`
	OrderNumber    string    `json:"order_number"`
	TotalCents     int       `json:"total_cents"`
	Currency       string    `json:"currency"`
	ExpiresAt      time.Time `json:"expires_at"`
	PaymentPageURL string    `json:"payment_page_url"`
}

// Service turns a reservation request into a pending order plus a provider
// checkout session.
type Service interface {
	Execute(ctx context.Context, buyerID uuid.UUID, input Input) (*Result, error)
}

type service struct {
	tx      txRunner
	repo    orders.Repository
	ledger  stockLedger
	gw      checkoutGateway
	cfg     config.CheckoutConfig
	baseURL string
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds the checkout service.
func NewService(
	tx txRunner,
	repo orders.Repository,
	ledger stockLedger,
	gw checkoutGateway,
	cfg config.CheckoutConfig,
	publicBaseURL string,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if gw == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	return &service{
		tx:      tx,
		repo:    repo,
		ledger:  ledger,
		gw:      gw,
		cfg:     cfg,
		baseURL: publicBaseURL,
		logg:    logg,
		now:     time.Now,
	}, nil
}

// Execute reserves stock, writes the pending order and payment in one
// transaction, then opens the provider checkout session. A gateway failure
// after commit compensates: the stock goes back and the order is removed, so
// the buyer can simply retry.
func (s *service) Execute(ctx context.Context, buyerID uuid.UUID, input Input) (*Result, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.ListingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing id required")
	}
	if input.Quantity < 1 || input.Quantity > MaxBagsPerOrder {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("quantity must be between 1 and %d", MaxBagsPerOrder))
	}

	now := s.now().UTC()
	orderNumber, err := orders.NewOrderNumber(now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
	}
	redemptionCode, err := orders.NewRedemptionCode()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate redemption code")
	}

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		snap, err := s.ledger.Reserve(ctx, tx, input.ListingID, input.Quantity)
		if err != nil {
			return err
		}

		subtotal := snap.PriceCents * input.Quantity
		fee, err := PlatformFeeCents(subtotal, s.cfg.PlatformFeePercent)
		if err != nil {
			return err
		}

		order = &models.Order{
			ID:               uuid.New(),
			OrderNumber:      orderNumber,
			BuyerID:          buyerID,
			ListingID:        snap.ListingID,
			RestaurantID:     snap.RestaurantID,
			Quantity:         input.Quantity,
			Currency:         enums.Currency(snap.Currency),
			SubtotalCents:    subtotal,
			PlatformFeeCents: fee,
			TotalCents:       subtotal + fee,
			PickupStart:      snap.PickupStart,
			PickupEnd:        snap.PickupEnd,
			RedemptionCode:   redemptionCode,
			Status:           enums.OrderStatusPending,
		}
		if _, err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		payment := &models.Payment{
			ID:          uuid.New(),
			OrderID:     order.ID,
			AmountCents: order.TotalCents,
			Currency:    order.Currency,
			Method:      enums.PaymentMethodUnknown,
			Status:      enums.PaymentStatusPending,
		}
		if _, err := repo.CreatePayment(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}
		order.Payment = payment
		return nil
	})
	if err != nil {
		return nil, err
	}

	session, err := s.gw.CreateCheckout(ctx, gateway.CheckoutParams{
		AmountCents:     order.TotalCents,
		Currency:        order.Currency,
		OrderRef:        order.OrderNumber,
		RedirectTargets: s.redirectTargets(order.ID),
		BuyerEmail:      input.BuyerEmail,
		Metadata:        map[string]string{"order_id": order.ID.String()},
	})
	if err != nil {
		s.compensate(ctx, order)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open checkout session")
	}

	if err := s.repo.UpdatePayment(ctx, order.Payment.ID, map[string]any{
		"provider_session_id": session.SessionID,
	}); err != nil {
		// The session exists and carries the order reference, so webhook
		// correlation still works; surface the failure without compensating.
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record provider session")
	}

	return &Result{
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		TotalCents:     order.TotalCents,
		Currency:       order.Currency.String(),
		ExpiresAt:      now.Add(s.cfg.PendingOrderTTL),
		PaymentPageURL: session.RedirectURL,
	}, nil
}

// compensate undoes a committed reservation after the gateway refused to open
// a session. Failures here leave the pending order for the expiry sweep.
func (s *service) compensate(ctx context.Context, order *models.Order) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.ledger.Release(ctx, tx, order.ListingID, order.Quantity); err != nil {
			return err
		}
		return s.repo.WithTx(tx).Delete(ctx, order.ID)
	})
	if err != nil && s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"order_id":   order.ID.String(),
			"listing_id": order.ListingID.String(),
		})
		s.logg.Error(ctx, "checkout compensation failed", err)
	}
}

func (s *service) redirectTargets(orderID uuid.UUID) gateway.RedirectTargets {
	query := url.Values{"order": []string{orderID.String()}}.Encode()
	build := func(leg string) string {
		return fmt.Sprintf("%s/api/v1/payments/return/%s?%s", s.baseURL, leg, query)
	}
	return gateway.RedirectTargets{
		SuccessURL: build("success"),
		CancelURL:  build("cancel"),
		FailureURL: build("failure"),
	}
}
