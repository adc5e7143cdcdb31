package enums

// PaymentMethod is the normalized instrument reported by the gateway.
type PaymentMethod string

const (
	PaymentMethodCard    PaymentMethod = "card"
	PaymentMethodWallet  PaymentMethod = "wallet"
	PaymentMethodUnknown PaymentMethod = "unknown"
)

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	switch p {
	case PaymentMethodCard, PaymentMethodWallet, PaymentMethodUnknown:
		return true
	default:
		return false
	}
}
