package models

// Order statuses
const (
	StatusOrderPlaced = "ORDER_PLACED"
	StatusConfirmed   = "CONFIRMED"
	StatusShipped     = "SHIPPED"
	StatusDelivered   = "DELIVERED"
	StatusCancelled   = "CANCELLED"
)

// ActiveStatuses are the statuses that pin an order's shipping address.
var ActiveStatuses = []string{StatusOrderPlaced, StatusConfirmed, StatusShipped}

// KnownStatus reports whether s is an order status.
func KnownStatus(s string) bool {
	switch s {
	case StatusOrderPlaced, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}
