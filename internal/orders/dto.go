package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/tradebridge-io/tradebridge-backend/pkg/db/models"
	"github.com/tradebridge-io/tradebridge-backend/pkg/enums"
	"github.com/tradebridge-io/tradebridge-backend/pkg/types"
)

// ListFilter is the repository-level predicate for order lists. Exactly one
// of the store columns is matched depending on the caller's role.
type ListFilter struct {
	RetailerStoreID   *uuid.UUID
	WholesalerStoreID *uuid.UUID
	SupplierStoreID   *uuid.UUID
	Family            *enums.OrderFamily
	Status            *enums.OrderStatus
}

// ListQuery is the service-level list request.
type ListQuery struct {
	Family *enums.OrderFamily
	Status *enums.OrderStatus
	Limit  int
	Cursor string
}

// UpdateStatusInput carries one status transition request.
type UpdateStatusInput struct {
	Status enums.OrderStatus
	Reason string

	// Assignment fields, required when Status is assigned_to_transporter
	// (and for the dispute return leg).
	AssignmentMode *enums.AssignmentMode
	TransporterID  *uuid.UUID
	TTLMinutes     int
}

// DisputeInput opens a dispute on a delivered retail order.
type DisputeInput struct {
	Reason string
}

// HandleReturnInput resolves a retail return sitting at the wholesaler.
type HandleReturnInput struct {
	Action enums.ReturnAction
	Reason string
}

// OrderItemView is one line item on the detail projection.
type OrderItemView struct {
	ID             uuid.UUID  `json:"id"`
	ProductID      *uuid.UUID `json:"productId,omitempty"`
	Name           string     `json:"name"`
	Qty            int        `json:"qty"`
	UnitPriceCents int64      `json:"unitPriceCents"`
	TotalCents     int64      `json:"totalCents"`
}

// AssignmentView is the active transporter offer embedded on an order.
type AssignmentView struct {
	Mode          enums.AssignmentMode `json:"mode"`
	TransporterID *uuid.UUID           `json:"transporterId,omitempty"`
	AssignedAt    *time.Time           `json:"assignedAt,omitempty"`
	ExpiresAt     *time.Time           `json:"expiresAt,omitempty"`
	ReturnLeg     bool                 `json:"returnLeg"`
}

// AssignmentHistoryView is one resolved offer from the audit trail.
type AssignmentHistoryView struct {
	ID            uuid.UUID               `json:"id"`
	TransporterID *uuid.UUID              `json:"transporterId,omitempty"`
	Mode          enums.AssignmentMode    `json:"mode"`
	Outcome       enums.AssignmentOutcome `json:"outcome"`
	Reason        string                  `json:"reason,omitempty"`
	ReturnLeg     bool                    `json:"returnLeg"`
	AssignedAt    time.Time               `json:"assignedAt"`
	ResolvedAt    *time.Time              `json:"resolvedAt,omitempty"`
}

// StatusEventView is one entry of the append-only transition trail. A nil
// actor means the transition was system-driven (offer expiry).
type StatusEventView struct {
	ID         uuid.UUID         `json:"id"`
	FromStatus enums.OrderStatus `json:"fromStatus"`
	ToStatus   enums.OrderStatus `json:"toStatus"`
	ActorID    *uuid.UUID        `json:"actorId,omitempty"`
	ActorRole  *enums.ActorRole  `json:"actorRole,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// OrderSummary is the list projection.
type OrderSummary struct {
	ID          uuid.UUID         `json:"id"`
	OrderNumber int64             `json:"orderNumber"`
	Family      enums.OrderFamily `json:"family"`
	Status      enums.OrderStatus `json:"status"`
	TotalCents  int64             `json:"totalCents"`
	Total       string            `json:"total"`
	FinalCents  int64             `json:"finalCents"`
	Final       string            `json:"final"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// OrderList is a cursor page of summaries.
type OrderList struct {
	Items      []OrderSummary `json:"items"`
	NextCursor string         `json:"nextCursor,omitempty"`
}

// OrderDetail is the full projection returned by single-order reads and by
// every successful transition.
type OrderDetail struct {
	OrderSummary

	RetailerStoreID   *uuid.UUID `json:"retailerStoreId,omitempty"`
	WholesalerStoreID uuid.UUID  `json:"wholesalerStoreId"`
	SupplierStoreID   *uuid.UUID `json:"supplierStoreId,omitempty"`

	Assignment *AssignmentView `json:"assignment,omitempty"`

	Cancellation *types.CancellationDetails `json:"cancellation,omitempty"`
	Return       *types.ReturnDetails       `json:"return,omitempty"`
	Dispute      *types.DisputeDetails      `json:"dispute,omitempty"`

	Items       []OrderItemView         `json:"items"`
	StatusTrail []StatusEventView       `json:"statusTrail,omitempty"`
	Assignments []AssignmentHistoryView `json:"assignments,omitempty"`

	UpdatedAt time.Time `json:"updatedAt"`
}

func toSummary(o *models.Order) OrderSummary {
	return OrderSummary{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		Family:      o.Family,
		Status:      o.Status,
		TotalCents:  o.TotalCents,
		Total:       types.FormatCents(o.TotalCents),
		FinalCents:  o.FinalCents,
		Final:       types.FormatCents(o.FinalCents),
		CreatedAt:   o.CreatedAt,
	}
}

func toDetail(o *models.Order, trail []models.OrderStatusEvent, history []models.OrderAssignment) *OrderDetail {
	detail := &OrderDetail{
		OrderSummary:      toSummary(o),
		RetailerStoreID:   o.RetailerStoreID,
		WholesalerStoreID: o.WholesalerStoreID,
		SupplierStoreID:   o.SupplierStoreID,
		Cancellation:      o.CancellationDetails,
		Return:            o.ReturnDetails,
		Dispute:           o.DisputeDetails,
		UpdatedAt:         o.UpdatedAt,
	}

	if o.AssignmentMode != nil {
		detail.Assignment = &AssignmentView{
			Mode:          *o.AssignmentMode,
			TransporterID: o.TransporterID,
			AssignedAt:    o.AssignedAt,
			ExpiresAt:     o.AssignmentExpiresAt,
			ReturnLeg:     o.AssignmentReturnLeg,
		}
	}

	detail.Items = make([]OrderItemView, 0, len(o.Items))
	for _, item := range o.Items {
		detail.Items = append(detail.Items, OrderItemView{
			ID:             item.ID,
			ProductID:      item.ProductID,
			Name:           item.Name,
			Qty:            item.Qty,
			UnitPriceCents: item.UnitPriceCents,
			TotalCents:     item.TotalCents,
		})
	}

	for _, ev := range trail {
		detail.StatusTrail = append(detail.StatusTrail, StatusEventView{
			ID:         ev.ID,
			FromStatus: ev.FromStatus,
			ToStatus:   ev.ToStatus,
			ActorID:    ev.ActorID,
			ActorRole:  ev.ActorRole,
			Reason:     derefString(ev.Reason),
			CreatedAt:  ev.CreatedAt,
		})
	}

	for _, row := range history {
		detail.Assignments = append(detail.Assignments, AssignmentHistoryView{
			ID:            row.ID,
			TransporterID: row.TransporterID,
			Mode:          row.Mode,
			Outcome:       row.Outcome,
			Reason:        derefString(row.Reason),
			ReturnLeg:     row.ReturnLeg,
			AssignedAt:    row.AssignedAt,
			ResolvedAt:    row.ResolvedAt,
		})
	}

	return detail
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
