package models

import (
	"time"

	"github.com/google/uuid"
)

// LoyaltyCredit is an immutable credit awarded when an order is paid. The
// unique order_id index is what makes the award idempotent under replayed
// success signals.
type LoyaltyCredit struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID   uuid.UUID `gorm:"column:buyer_id;type:uuid;not null;index"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;uniqueIndex:ux_loyalty_credits_order;not null"`
	Points    int       `gorm:"column:points;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
