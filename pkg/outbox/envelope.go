package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActorRef identifies who produced the event.
type ActorRef struct {
	UserID       uuid.UUID  `json:"userId"`
	RestaurantID *uuid.UUID `json:"restaurantId,omitempty"`
	Role         string     `json:"role,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// OrderEventData is the payload carried by every order.* event.
type OrderEventData struct {
	OrderID      uuid.UUID `json:"orderId"`
	OrderNumber  string    `json:"orderNumber"`
	BuyerID      uuid.UUID `json:"buyerId"`
	ListingID    uuid.UUID `json:"listingId"`
	RestaurantID uuid.UUID `json:"restaurantId"`
	Quantity     int       `json:"quantity"`
	TotalCents   int       `json:"totalCents"`
	Currency     string    `json:"currency"`
	Status       string    `json:"status"`
}
