package orders

import "github.com/svillega/lastbite-backend/pkg/enums"

// transitions is the closed set of legal order status moves. Everything not
// listed is a conflict; terminal states have no outgoing edges.
var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending: {
		enums.OrderStatusPaid,
		enums.OrderStatusCancelled,
		enums.OrderStatusExpired,
	},
	enums.OrderStatusPaid: {
		enums.OrderStatusReady,
		enums.OrderStatusRedeemed,
		enums.OrderStatusCancelled,
		enums.OrderStatusRefunded,
	},
	enums.OrderStatusReady: {
		enums.OrderStatusRedeemed,
		enums.OrderStatusRefunded,
	},
}

// CanTransition reports whether from -> to is a legal order move.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
