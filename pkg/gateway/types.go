package gateway

import "github.com/svillega/lastbite-backend/pkg/enums"

// CheckoutStatus is the provider status normalized to three values.
type CheckoutStatus string

const (
	CheckoutStatusSucceeded CheckoutStatus = "succeeded"
	CheckoutStatusFailed    CheckoutStatus = "failed"
	CheckoutStatusPending   CheckoutStatus = "pending"
)

// RedirectTargets are the three URLs the provider sends the buyer back to.
type RedirectTargets struct {
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
	FailureURL string `json:"failure_url"`
}

// CheckoutParams describes a checkout session to open with the provider.
// AmountCents is in minor currency units. Metadata must carry the order
// reference so webhook events can be correlated back.
type CheckoutParams struct {
	AmountCents     int
	Currency        enums.Currency
	OrderRef        string
	RedirectTargets RedirectTargets
	BuyerEmail      string
	Metadata        map[string]string
	IdempotencyKey  string
}

// CheckoutSession is the provider's handle for an opened checkout.
type CheckoutSession struct {
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

// StatusResult is the normalized answer to a status poll, with the
// payment-method metadata the provider exposes once a charge settles.
type StatusResult struct {
	Status        CheckoutStatus      `json:"status"`
	Method        enums.PaymentMethod `json:"method"`
	CardBrand     string              `json:"card_brand,omitempty"`
	CardLast4     string              `json:"card_last4,omitempty"`
	FailureReason string              `json:"failure_reason,omitempty"`
}

// Event is the envelope the provider posts to the webhook endpoint.
type Event struct {
	EventID   string       `json:"event_id"`
	Type      string       `json:"type"`
	Timestamp int64        `json:"timestamp"`
	Payload   EventPayload `json:"payload"`
}

// EventPayload carries the order correlation and settlement metadata.
type EventPayload struct {
	SessionID     string              `json:"session_id"`
	OrderRef      string              `json:"order_ref"`
	Method        enums.PaymentMethod `json:"method,omitempty"`
	CardBrand     string              `json:"card_brand,omitempty"`
	CardLast4     string              `json:"card_last4,omitempty"`
	FailureReason string              `json:"failure_reason,omitempty"`
}

// Normalized event types dispatched by the reconciliation coordinator.
const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
	EventRefundSucceeded  = "refund.succeeded"
)
