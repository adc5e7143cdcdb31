package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/svillega/lastbite-backend/pkg/enums"
)

// Order is one reservation-turned-transaction. Pricing and the pickup window
// are frozen from the listing at creation time and never re-read.
type Order struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber      string             `gorm:"column:order_number;uniqueIndex;not null"`
	BuyerID          uuid.UUID          `gorm:"column:buyer_id;type:uuid;not null"`
	ListingID        uuid.UUID          `gorm:"column:listing_id;type:uuid;not null"`
	RestaurantID     uuid.UUID          `gorm:"column:restaurant_id;type:uuid;not null"`
	Quantity         int                `gorm:"column:quantity;not null"`
	Currency         enums.Currency     `gorm:"column:currency;type:text;not null;default:'EUR'"`
	SubtotalCents    int                `gorm:"column:subtotal_cents;not null"`
	PlatformFeeCents int                `gorm:"column:platform_fee_cents;not null"`
	TotalCents       int                `gorm:"column:total_cents;not null"`
	PickupStart      time.Time          `gorm:"column:pickup_start;not null"`
	PickupEnd        time.Time          `gorm:"column:pickup_end;not null"`
	RedemptionCode   string             `gorm:"column:redemption_code;uniqueIndex;not null"`
	Status           enums.OrderStatus  `gorm:"column:status;type:text;not null;default:'pending'"`
	ArrivedAt        *time.Time         `gorm:"column:arrived_at"`
	RedeemedAt       *time.Time         `gorm:"column:redeemed_at"`
	CancelledAt      *time.Time         `gorm:"column:cancelled_at"`
	CancelReason     *string            `gorm:"column:cancel_reason"`
	CancelActor      *enums.CancelActor `gorm:"column:cancel_actor;type:text"`
	Payment          *Payment           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
