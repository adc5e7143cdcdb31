package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/svillega/lastbite-backend/pkg/db/models"
	"github.com/svillega/lastbite-backend/pkg/enums"
)

// OrderView is the public order summary returned by the API. The redemption
// code is included only for the buyer's own orders.
type OrderView struct {
	ID               uuid.UUID           `json:"id"`
	OrderNumber      string              `json:"order_number"`
	ListingID        uuid.UUID           `json:"listing_id"`
	RestaurantID     uuid.UUID           `json:"restaurant_id"`
	Quantity         int                 `json:"quantity"`
	Currency         enums.Currency      `json:"currency"`
	SubtotalCents    int                 `json:"subtotal_cents"`
	PlatformFeeCents int                 `json:"platform_fee_cents"`
	TotalCents       int                 `json:"total_cents"`
	PickupStart      time.Time           `json:"pickup_start"`
	PickupEnd        time.Time           `json:"pickup_end"`
	RedemptionCode   string              `json:"redemption_code,omitempty"`
	Status           enums.OrderStatus   `json:"status"`
	PaymentStatus    enums.PaymentStatus `json:"payment_status,omitempty"`
	RedeemedAt       *time.Time          `json:"redeemed_at,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
}

// NewOrderView projects a persisted order into its API shape.
func NewOrderView(order *models.Order) OrderView {
	view := OrderView{
		ID:               order.ID,
		OrderNumber:      order.OrderNumber,
		ListingID:        order.ListingID,
		RestaurantID:     order.RestaurantID,
		Quantity:         order.Quantity,
		Currency:         order.Currency,
		SubtotalCents:    order.SubtotalCents,
		PlatformFeeCents: order.PlatformFeeCents,
		TotalCents:       order.TotalCents,
		PickupStart:      order.PickupStart,
		PickupEnd:        order.PickupEnd,
		RedemptionCode:   order.RedemptionCode,
		Status:           order.Status,
		RedeemedAt:       order.RedeemedAt,
		CreatedAt:        order.CreatedAt,
	}
	if order.Payment != nil {
		view.PaymentStatus = order.Payment.Status
	}
	return view
}

// Redacted strips the redemption code for restaurant-facing responses.
func (v OrderView) Redacted() OrderView {
	v.RedemptionCode = ""
	return v
}
