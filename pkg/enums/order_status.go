package enums

import "fmt"

// OrderStatus tracks the fulfillment lifecycle of an order. The same enum
// backs both the retail (retailer→wholesaler) and supply
// (wholesaler→supplier) families; the transition validator decides which
// values apply to which family.
type OrderStatus string

const (
	OrderStatusPending                 OrderStatus = "pending"
	OrderStatusAccepted                OrderStatus = "accepted"
	OrderStatusRejected                OrderStatus = "rejected"
	OrderStatusProcessing              OrderStatus = "processing"
	OrderStatusConfirmed               OrderStatus = "confirmed"
	OrderStatusInProduction            OrderStatus = "in_production"
	OrderStatusReadyForDelivery        OrderStatus = "ready_for_delivery"
	OrderStatusAssignedToTransporter   OrderStatus = "assigned_to_transporter"
	OrderStatusAcceptedByTransporter   OrderStatus = "accepted_by_transporter"
	OrderStatusRejectedByTransporter   OrderStatus = "rejected_by_transporter"
	OrderStatusCancelledByTransporter  OrderStatus = "cancelled_by_transporter"
	OrderStatusInTransit               OrderStatus = "in_transit"
	OrderStatusDelivered               OrderStatus = "delivered"
	OrderStatusCertified               OrderStatus = "certified"
	OrderStatusDisputed                OrderStatus = "disputed"
	OrderStatusReturnToWholesaler      OrderStatus = "return_to_wholesaler"
	OrderStatusReturnRequested         OrderStatus = "return_requested"
	OrderStatusReturnAccepted          OrderStatus = "return_accepted"
	OrderStatusReturnRejected          OrderStatus = "return_rejected"
	OrderStatusReturnInTransit         OrderStatus = "return_in_transit"
	OrderStatusReturnedToSupplier      OrderStatus = "returned_to_supplier"
	OrderStatusCancelledByWholesaler   OrderStatus = "cancelled_by_wholesaler"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusAccepted,
	OrderStatusRejected,
	OrderStatusProcessing,
	OrderStatusConfirmed,
	OrderStatusInProduction,
	OrderStatusReadyForDelivery,
	OrderStatusAssignedToTransporter,
	OrderStatusAcceptedByTransporter,
	OrderStatusRejectedByTransporter,
	OrderStatusCancelledByTransporter,
	OrderStatusInTransit,
	OrderStatusDelivered,
	OrderStatusCertified,
	OrderStatusDisputed,
	OrderStatusReturnToWholesaler,
	OrderStatusReturnRequested,
	OrderStatusReturnAccepted,
	OrderStatusReturnRejected,
	OrderStatusReturnInTransit,
	OrderStatusReturnedToSupplier,
	OrderStatusCancelledByWholesaler,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
