package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/svillega/lastbite-backend/pkg/enums"
)

// Payment tracks the externally-confirmed attempt for one order. A
// provider-side retry reuses the same record.
type Payment struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           uuid.UUID           `gorm:"column:order_id;type:uuid;uniqueIndex;not null"`
	AmountCents       int                 `gorm:"column:amount_cents;not null"`
	Currency          enums.Currency      `gorm:"column:currency;type:text;not null;default:'EUR'"`
	Method            enums.PaymentMethod `gorm:"column:method;type:text;not null;default:'unknown'"`
	Status            enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	ProviderSessionID *string             `gorm:"column:provider_session_id"`
	CardBrand         *string             `gorm:"column:card_brand"`
	CardLast4         *string             `gorm:"column:card_last4"`
	PaidAt            *time.Time          `gorm:"column:paid_at"`
	FailedAt          *time.Time          `gorm:"column:failed_at"`
	FailureReason     *string             `gorm:"column:failure_reason"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
