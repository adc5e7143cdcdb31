package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/svillega/lastbite-backend/pkg/enums"
)

// Listing is a time-boxed, quantity-limited surprise-bag offer. The remaining
// counter is mutated exclusively by the inventory ledger.
type Listing struct {
	ID                 uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	RestaurantID       uuid.UUID      `gorm:"column:restaurant_id;type:uuid;not null"`
	Title              string         `gorm:"column:title;not null"`
	Description        *string        `gorm:"column:description"`
	Currency           enums.Currency `gorm:"column:currency;type:text;not null;default:'EUR'"`
	OriginalPriceCents int            `gorm:"column:original_price_cents;not null"`
	PriceCents         int            `gorm:"column:price_cents;not null"`
	QuantityTotal      int            `gorm:"column:quantity_total;not null"`
	QuantityRemaining  int            `gorm:"column:quantity_remaining;not null"`
	PickupStart        time.Time      `gorm:"column:pickup_start;not null"`
	PickupEnd          time.Time      `gorm:"column:pickup_end;not null"`
	Active             bool           `gorm:"column:active;not null;default:true"`
	SoldOut            bool           `gorm:"column:sold_out;not null;default:false"`
	CreatedAt          time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
