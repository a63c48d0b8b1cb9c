package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tradebridge-io/tradebridge-backend/pkg/enums"
)

// OrderAssignment is the append-only history of transporter offers. A row is
// written when an offer resolves (accept/reject/cancel) or expires; the live
// offer itself lives on the order row.
type OrderAssignment struct {
	ID            uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID       uuid.UUID               `gorm:"column:order_id;type:uuid;not null"`
	TransporterID *uuid.UUID              `gorm:"column:transporter_id;type:uuid"`
	Mode          enums.AssignmentMode    `gorm:"column:mode;type:assignment_mode;not null"`
	Outcome       enums.AssignmentOutcome `gorm:"column:outcome;type:assignment_outcome;not null"`
	Reason        *string                 `gorm:"column:reason"`
	ReturnLeg     bool                    `gorm:"column:return_leg;not null;default:false"`
	AssignedAt    time.Time               `gorm:"column:assigned_at;not null"`
	ResolvedAt    *time.Time              `gorm:"column:resolved_at"`
	CreatedAt     time.Time               `gorm:"column:created_at;autoCreateTime"`
}
