package enums

// CancelActor records who drove an order into a failure terminal state.
type CancelActor string

const (
	CancelActorBuyer   CancelActor = "buyer"
	CancelActorGateway CancelActor = "gateway"
	CancelActorSystem  CancelActor = "system"
)

// String implements fmt.Stringer.
func (c CancelActor) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CancelActor.
func (c CancelActor) IsValid() bool {
	switch c {
	case CancelActorBuyer, CancelActorGateway, CancelActorSystem:
		return true
	default:
		return false
	}
}
