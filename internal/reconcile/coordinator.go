package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/svillega/lastbite-backend/internal/orders"
	"github.com/svillega/lastbite-backend/pkg/db/models"
	"github.com/svillega/lastbite-backend/pkg/enums"
	pkgerrors "github.com/svillega/lastbite-backend/pkg/errors"
	"github.com/svillega/lastbite-backend/pkg/gateway"
	"github.com/svillega/lastbite-backend/pkg/metrics"
	"github.com/svillega/lastbite-backend/pkg/outbox"
)

// Redirect legs a buyer can come back on.
const (
	LegSuccess = "success"
	LegCancel  = "cancel"
	LegFailure = "failure"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockLedger interface {
	Release(ctx context.Context, tx *gorm.DB, listingID uuid.UUID, qty int) error
}

type statusPoller interface {
	GetCheckoutStatus(ctx context.Context, sessionID string) (*gateway.StatusResult, error)
}

type loyaltyAwarder interface {
	Award(ctx context.Context, tx *gorm.DB, buyerID, orderID uuid.UUID, points int) (bool, error)
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Options tunes coordinator behavior from config.
type Options struct {
	StatusPolls     int
	LoyaltyPoints   int
	DeepLinkBaseURL string
}

// Coordinator applies payment outcomes to orders. Redirects, webhooks, buyer
// cancels and the expiry sweep all race toward the same terminal states; every
// transition here is a status CAS, so whichever signal lands first wins and
// the rest collapse into no-ops.
type Coordinator struct {
	tx      txRunner
	repo    orders.Repository
	ledger  stockLedger
	gw      statusPoller
	loyalty loyaltyAwarder
	outbox  outboxEmitter
	metrics *metrics.ReconcileMetrics
	opts    Options
	now     func() time.Time
}

// NewCoordinator builds the coordinator. Metrics may be nil.
func NewCoordinator(
	tx txRunner,
	repo orders.Repository,
	ledger stockLedger,
	gw statusPoller,
	loyalty loyaltyAwarder,
	emitter outboxEmitter,
	m *metrics.ReconcileMetrics,
	opts Options,
) (*Coordinator, error) {
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
		return nil, fmt.Errorf("gateway status poller required")
	}
	if loyalty == nil {
		return nil, fmt.Errorf("loyalty awarder required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if opts.StatusPolls < 1 {
		opts.StatusPolls = 1
	}
	if opts.LoyaltyPoints < 1 {
		opts.LoyaltyPoints = 1
	}
	return &Coordinator{
		tx:      tx,
		repo:    repo,
		ledger:  ledger,
		gw:      gw,
		loyalty: loyalty,
		outbox:  emitter,
		metrics: m,
		opts:    opts,
		now:     time.Now,
	}, nil
}

// HandleEvent applies one verified webhook event. Replays and out-of-order
// deliveries return nil so the provider stops retrying; only transport-level
// failures propagate.
func (c *Coordinator) HandleEvent(ctx context.Context, evt gateway.Event) error {
	switch evt.Type {
	case gateway.EventPaymentSucceeded, gateway.EventPaymentFailed, gateway.EventRefundSucceeded:
	default:
		// Unknown event types are acked, never errored: the provider adds
		// types without coordination.
		c.countEvent(evt.Type, "ignored")
		return nil
	}

	order, err := c.repo.FindByOrderNumber(ctx, evt.Payload.OrderRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.countEvent(evt.Type, "unknown_order")
			return pkgerrors.New(pkgerrors.CodeNotFound, "event references unknown order")
		}
		c.countEvent(evt.Type, "error")
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order for event")
	}

	var applied bool
	switch evt.Type {
	case gateway.EventPaymentSucceeded:
		applied, err = c.applyPaid(ctx, order, settlement{
			method:    evt.Payload.Method,
			cardBrand: evt.Payload.CardBrand,
			cardLast4: evt.Payload.CardLast4,
		})
	case gateway.EventPaymentFailed:
		applied, err = c.applyCancelled(ctx, order,
			[]enums.OrderStatus{enums.OrderStatusPending},
			enums.CancelActorGateway, failureReason(evt.Payload.FailureReason, "payment failed"))
	case gateway.EventRefundSucceeded:
		applied, err = c.applyRefunded(ctx, order)
	}
	if err != nil {
		c.countEvent(evt.Type, "error")
		return err
	}
	if applied {
		c.countEvent(evt.Type, "applied")
	} else {
		c.countEvent(evt.Type, "duplicate")
	}
	return nil
}

// RedirectResult tells the API layer where to send the buyer's browser.
type RedirectResult struct {
	OrderID  uuid.UUID         `json:"order_id"`
	Status   enums.OrderStatus `json:"status"`
	DeepLink string            `json:"deep_link"`
}

// ApplyRedirect reconciles an order when the buyer lands back from the
// payment page. The redirect is a hint, not an authority: the success and
// failure legs poll the provider for the real status before applying
// anything. Orders already settled just report where they ended up.
func (c *Coordinator) ApplyRedirect(ctx context.Context, orderID uuid.UUID, leg string) (*RedirectResult, error) {
	order, err := c.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusPending {
		return c.result(order.ID, order.Status), nil
	}

	switch leg {
	case LegCancel:
		if _, err := c.applyCancelled(ctx, order,
			[]enums.OrderStatus{enums.OrderStatusPending},
			enums.CancelActorBuyer, "buyer cancelled at checkout"); err != nil {
			return nil, err
		}
	case LegSuccess, LegFailure:
		status, err := c.pollStatus(ctx, order)
		if err != nil {
			return nil, err
		}
		switch {
		case status == nil:
			// Still pending at the provider; the webhook will settle it.
		case status.Status == gateway.CheckoutStatusSucceeded:
			if _, err := c.applyPaid(ctx, order, settlement{
				method:    status.Method,
				cardBrand: status.CardBrand,
				cardLast4: status.CardLast4,
			}); err != nil {
				return nil, err
			}
		case status.Status == gateway.CheckoutStatusFailed:
			if _, err := c.applyCancelled(ctx, order,
				[]enums.OrderStatus{enums.OrderStatusPending},
				enums.CancelActorGateway, failureReason(status.FailureReason, "payment failed")); err != nil {
				return nil, err
			}
		}
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown redirect leg")
	}

	// Re-read: a webhook may have landed while we were polling.
	order, err = c.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return c.result(order.ID, order.Status), nil
}

// Cancel is the buyer-initiated cancellation. Pending and paid orders can be
// cancelled; everything terminal is a conflict.
func (c *Coordinator) Cancel(ctx context.Context, orderID, buyerID uuid.UUID) (*RedirectResult, error) {
	order, err := c.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to buyer")
	}
	if order.Status.IsTerminal() || order.Status == enums.OrderStatusReady {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled")
	}

	applied, err := c.applyCancelled(ctx, order,
		[]enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusPaid},
		enums.CancelActorBuyer, "cancelled by buyer")
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order changed state concurrently")
	}
	return c.result(order.ID, enums.OrderStatusCancelled), nil
}

type settlement struct {
	method    enums.PaymentMethod
	cardBrand string
	cardLast4 string
}

// applyPaid moves pending -> paid, awards loyalty and queues the order.paid
// event, all in one transaction. Returns false when the order already left
// pending, which covers both replays and late success after cancellation.
func (c *Coordinator) applyPaid(ctx context.Context, order *models.Order, settle settlement) (bool, error) {
	if order.Payment == nil {
		return false, pkgerrors.New(pkgerrors.CodeConsistency, "order has no payment record")
	}
	var applied bool
	err := c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := c.repo.WithTx(tx)
		moved, err := repo.UpdateStatus(ctx, order.ID,
			[]enums.OrderStatus{enums.OrderStatusPending}, enums.OrderStatusPaid, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
		}
		if !moved {
			return nil
		}

		now := c.now().UTC()
		extra := map[string]any{"paid_at": now}
		if settle.method != "" {
			extra["method"] = settle.method
		}
		if settle.cardBrand != "" {
			extra["card_brand"] = settle.cardBrand
		}
		if settle.cardLast4 != "" {
			extra["card_last4"] = settle.cardLast4
		}
		if _, err := repo.UpdatePaymentStatus(ctx, order.Payment.ID,
			[]enums.PaymentStatus{enums.PaymentStatusPending}, enums.PaymentStatusPaid, extra); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment paid")
		}

		if _, err := c.loyalty.Award(ctx, tx, order.BuyerID, order.ID, c.opts.LoyaltyPoints); err != nil {
			return err
		}
		if err := c.outbox.EmitIfNotExists(ctx, tx, c.orderEvent(order, enums.EventOrderPaid, enums.OrderStatusPaid)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue order.paid event")
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if applied {
		c.countTransition(enums.OrderStatusPaid)
	}
	return applied, nil
}

// applyCancelled moves the order to cancelled, puts the bags back and fails
// the payment. Returns false when another signal already settled the order.
func (c *Coordinator) applyCancelled(ctx context.Context, order *models.Order, from []enums.OrderStatus, actor enums.CancelActor, reason string) (bool, error) {
	var applied bool
	err := c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := c.repo.WithTx(tx)
		now := c.now().UTC()
		moved, err := repo.UpdateStatus(ctx, order.ID, from, enums.OrderStatusCancelled, map[string]any{
			"cancelled_at":  now,
			"cancel_reason": reason,
			"cancel_actor":  actor,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order cancelled")
		}
		if !moved {
			return nil
		}

		if err := c.ledger.Release(ctx, tx, order.ListingID, order.Quantity); err != nil {
			return err
		}
		if order.Payment != nil {
			if _, err := repo.UpdatePaymentStatus(ctx, order.Payment.ID,
				[]enums.PaymentStatus{enums.PaymentStatusPending, enums.PaymentStatusPaid},
				enums.PaymentStatusFailed, map[string]any{
					"failed_at":      now,
					"failure_reason": reason,
				}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment failed")
			}
		}
		if err := c.outbox.EmitIfNotExists(ctx, tx, c.orderEvent(order, enums.EventOrderCancelled, enums.OrderStatusCancelled)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue order.cancelled event")
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if applied {
		c.countTransition(enums.OrderStatusCancelled)
	}
	return applied, nil
}

// Expire moves a stale pending order to expired and returns its stock. The
// expiry sweep calls this per order; a payment settling mid-sweep wins the
// CAS and the expiry collapses to a no-op.
func (c *Coordinator) Expire(ctx context.Context, order *models.Order) (bool, error) {
	var applied bool
	err := c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := c.repo.WithTx(tx)
		now := c.now().UTC()
		moved, err := repo.UpdateStatus(ctx, order.ID,
			[]enums.OrderStatus{enums.OrderStatusPending}, enums.OrderStatusExpired, map[string]any{
				"cancelled_at":  now,
				"cancel_reason": "payment window elapsed",
				"cancel_actor":  enums.CancelActorSystem,
			})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order expired")
		}
		if !moved {
			return nil
		}

		if err := c.ledger.Release(ctx, tx, order.ListingID, order.Quantity); err != nil {
			return err
		}
		if order.Payment != nil {
			if _, err := repo.UpdatePaymentStatus(ctx, order.Payment.ID,
				[]enums.PaymentStatus{enums.PaymentStatusPending},
				enums.PaymentStatusFailed, map[string]any{
					"failed_at":      now,
					"failure_reason": "payment window elapsed",
				}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment failed")
			}
		}
		if err := c.outbox.EmitIfNotExists(ctx, tx, c.orderEvent(order, enums.EventOrderExpired, enums.OrderStatusExpired)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue order.expired event")
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if applied {
		c.countTransition(enums.OrderStatusExpired)
	}
	return applied, nil
}

// applyRefunded settles a provider-side refund: paid or ready orders move to
// refunded and the stock returns to the listing.
func (c *Coordinator) applyRefunded(ctx context.Context, order *models.Order) (bool, error) {
	var applied bool
	err := c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := c.repo.WithTx(tx)
		moved, err := repo.UpdateStatus(ctx, order.ID,
			[]enums.OrderStatus{enums.OrderStatusPaid, enums.OrderStatusReady},
			enums.OrderStatusRefunded, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order refunded")
		}
		if !moved {
			return nil
		}

		if err := c.ledger.Release(ctx, tx, order.ListingID, order.Quantity); err != nil {
			return err
		}
		if order.Payment != nil {
			if _, err := repo.UpdatePaymentStatus(ctx, order.Payment.ID,
				[]enums.PaymentStatus{enums.PaymentStatusPaid},
				enums.PaymentStatusRefunded, nil); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment refunded")
			}
		}
		if err := c.outbox.EmitIfNotExists(ctx, tx, c.orderEvent(order, enums.EventOrderRefunded, enums.OrderStatusRefunded)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue order.refunded event")
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if applied {
		c.countTransition(enums.OrderStatusRefunded)
	}
	return applied, nil
}

var errStatusPending = errors.New("checkout status still pending")

// pollStatus asks the provider for the session's status, retrying a few times
// with backoff while the provider still reports pending. A nil result means
// the session had not settled within the poll budget.
func (c *Coordinator) pollStatus(ctx context.Context, order *models.Order) (*gateway.StatusResult, error) {
	if order.Payment == nil || order.Payment.ProviderSessionID == nil {
		return nil, nil
	}
	sessionID := *order.Payment.ProviderSessionID

	var result *gateway.StatusResult
	backoff := retry.WithMaxRetries(uint64(c.opts.StatusPolls-1), retry.NewExponential(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		res, err := c.gw.GetCheckoutStatus(ctx, sessionID)
		if err != nil {
			return retry.RetryableError(err)
		}
		if res.Status == gateway.CheckoutStatusPending {
			return retry.RetryableError(errStatusPending)
		}
		result = res
		return nil
	})
	if err != nil {
		if errors.Is(err, errStatusPending) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "poll checkout status")
	}
	return result, nil
}

func (c *Coordinator) loadOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := c.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (c *Coordinator) orderEvent(order *models.Order, typ enums.OutboxEventType, status enums.OrderStatus) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     typ,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data: outbox.OrderEventData{
			OrderID:      order.ID,
			OrderNumber:  order.OrderNumber,
			BuyerID:      order.BuyerID,
			ListingID:    order.ListingID,
			RestaurantID: order.RestaurantID,
			Quantity:     order.Quantity,
			TotalCents:   order.TotalCents,
			Currency:     order.Currency.String(),
			Status:       status.String(),
		},
		Version: 1,
	}
}

func (c *Coordinator) result(orderID uuid.UUID, status enums.OrderStatus) *RedirectResult {
	return &RedirectResult{
		OrderID:  orderID,
		Status:   status,
		DeepLink: c.deepLink(status, orderID),
	}
}

func (c *Coordinator) deepLink(status enums.OrderStatus, orderID uuid.UUID) string {
	base := strings.TrimRight(c.opts.DeepLinkBaseURL, "/")
	return fmt.Sprintf("%s/%s?order=%s", base, status, orderID)
}

func (c *Coordinator) countEvent(eventType, outcome string) {
	if c.metrics != nil {
		c.metrics.IncWebhookEvent(eventType, outcome)
	}
}

func (c *Coordinator) countTransition(to enums.OrderStatus) {
	if c.metrics != nil {
		c.metrics.IncTransition(to.String())
	}
}

func failureReason(provided, fallback string) string {
	if strings.TrimSpace(provided) != "" {
		return provided
	}
	return fallback
}
