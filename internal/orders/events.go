package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/tradebridge-io/tradebridge-backend/pkg/enums"
)

// Event payloads published through the outbox. Consumers (notifications,
// analytics) unmarshal these from the envelope's data field.

type statusChangedPayload struct {
	OrderID     uuid.UUID         `json:"orderId"`
	OrderNumber int64             `json:"orderNumber"`
	Family      enums.OrderFamily `json:"family"`
	FromStatus  enums.OrderStatus `json:"fromStatus"`
	ToStatus    enums.OrderStatus `json:"toStatus"`
	Reason      string            `json:"reason,omitempty"`
}

type assignmentPayload struct {
	OrderID       uuid.UUID            `json:"orderId"`
	OrderNumber   int64                `json:"orderNumber"`
	Family        enums.OrderFamily    `json:"family"`
	Mode          enums.AssignmentMode `json:"mode"`
	TransporterID *uuid.UUID           `json:"transporterId,omitempty"`
	ReturnLeg     bool                 `json:"returnLeg"`
	ExpiresAt     *time.Time           `json:"expiresAt,omitempty"`
	Reason        string               `json:"reason,omitempty"`
}

type disputePayload struct {
	OrderID     uuid.UUID `json:"orderId"`
	OrderNumber int64     `json:"orderNumber"`
	Reason      string    `json:"reason"`
	DisputedBy  uuid.UUID `json:"disputedBy"`
}

type returnPayload struct {
	OrderID     uuid.UUID         `json:"orderId"`
	OrderNumber int64             `json:"orderNumber"`
	Family      enums.OrderFamily `json:"family"`
	Status      enums.OrderStatus `json:"status"`
	Reason      string            `json:"reason,omitempty"`
}

type refundPayload struct {
	OrderID     uuid.UUID `json:"orderId"`
	OrderNumber int64     `json:"orderNumber"`
	AmountCents int64     `json:"amountCents"`
	Currency    string    `json:"currency"`
}
