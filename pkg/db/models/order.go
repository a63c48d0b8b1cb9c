package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tradebridge-io/tradebridge-backend/pkg/enums"
	"github.com/tradebridge-io/tradebridge-backend/pkg/types"
)

// Order is the aggregate root for both order families. The active transporter
// assignment is embedded on the row so claims can be resolved with a single
// conditional UPDATE; resolved offers move into the order_assignments history.
type Order struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber       int64             `gorm:"column:order_number;not null"`
	Family            enums.OrderFamily `gorm:"column:family;type:order_family;not null"`
	RetailerStoreID   *uuid.UUID        `gorm:"column:retailer_store_id;type:uuid"`
	WholesalerStoreID uuid.UUID         `gorm:"column:wholesaler_store_id;type:uuid;not null"`
	SupplierStoreID   *uuid.UUID        `gorm:"column:supplier_store_id;type:uuid"`
	Status            enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`
	TotalCents        int64             `gorm:"column:total_cents;not null"`
	FinalCents        int64             `gorm:"column:final_cents;not null"`

	// Version guards every write; see Repository.UpdateOrderGuarded.
	Version int64 `gorm:"column:version;not null;default:1"`

	AssignmentMode       *enums.AssignmentMode `gorm:"column:assignment_mode;type:assignment_mode"`
	TransporterID        *uuid.UUID            `gorm:"column:transporter_id;type:uuid"`
	AssignedAt           *time.Time            `gorm:"column:assigned_at"`
	AssignmentExpiresAt  *time.Time            `gorm:"column:assignment_expires_at"`
	AssignmentReturnLeg  bool                  `gorm:"column:assignment_return_leg;not null;default:false"`
	AssignmentPrevStatus *enums.OrderStatus    `gorm:"column:assignment_prev_status;type:order_status"`

	CancellationDetails *types.CancellationDetails `gorm:"column:cancellation_details;type:jsonb;serializer:json"`
	ReturnDetails       *types.ReturnDetails       `gorm:"column:return_details;type:jsonb;serializer:json"`
	DisputeDetails      *types.DisputeDetails      `gorm:"column:dispute_details;type:jsonb;serializer:json"`

	Items       []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Assignments []OrderAssignment `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// ParticipantRole returns the role the given store plays on this order, or
// false when the store is not a participant.
func (o *Order) ParticipantRole(storeID uuid.UUID) (enums.ActorRole, bool) {
	if o.RetailerStoreID != nil && *o.RetailerStoreID == storeID {
		return enums.ActorRoleRetailer, true
	}
	if o.WholesalerStoreID == storeID {
		return enums.ActorRoleWholesaler, true
	}
	if o.SupplierStoreID != nil && *o.SupplierStoreID == storeID {
		return enums.ActorRoleSupplier, true
	}
	return "", false
}

// HasActiveAssignment reports whether a non-expired offer is embedded on the
// order at the given instant.
func (o *Order) HasActiveAssignment(now time.Time) bool {
	if o.AssignmentMode == nil || o.AssignmentExpiresAt == nil {
		return false
	}
	return now.Before(*o.AssignmentExpiresAt)
}
