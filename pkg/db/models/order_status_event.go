package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tradebridge-io/tradebridge-backend/pkg/enums"
)

// OrderStatusEvent is the append-only audit trail of status transitions.
// Rows are inserted in the same transaction as the order mutation and are
// never updated or deleted. Actor columns are nil for system-driven
// transitions such as offer expiry.
type OrderStatusEvent struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    uuid.UUID         `gorm:"column:order_id;type:uuid;not null"`
	FromStatus enums.OrderStatus `gorm:"column:from_status;type:order_status;not null"`
	ToStatus   enums.OrderStatus `gorm:"column:to_status;type:order_status;not null"`
	ActorID    *uuid.UUID        `gorm:"column:actor_id;type:uuid"`
	ActorRole  *enums.ActorRole  `gorm:"column:actor_role;type:actor_role"`
	Reason     *string           `gorm:"column:reason"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
}
