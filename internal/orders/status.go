package orders

import "github.com/imrishuroy/go-storefront-checkout/internal/models"

// transitions lists the statuses reachable from each status. DELIVERED and
// CANCELLED are terminal.
var transitions = map[string][]string{
	models.StatusOrderPlaced: {models.StatusConfirmed, models.StatusCancelled},
	models.StatusConfirmed:   {models.StatusShipped, models.StatusCancelled},
	models.StatusShipped:     {models.StatusDelivered, models.StatusCancelled},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
