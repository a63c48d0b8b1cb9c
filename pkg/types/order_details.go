package types

import (
	"time"

	"github.com/google/uuid"
)

// CancellationDetails is written once when an order leaves the active flow
// through a cancellation or rejection edge. It is never cleared.
type CancellationDetails struct {
	CancelledBy    uuid.UUID `json:"cancelled_by"`
	CancelledRole  string    `json:"cancelled_role"`
	CancelledAt    time.Time `json:"cancelled_at"`
	Reason         string    `json:"reason"`
	PreviousStatus string    `json:"previous_status"`
}

// ReturnDetails records the single open return attempt on an order. Prior
// attempts are preserved: fields are only ever filled in, never overwritten.
type ReturnDetails struct {
	ReturnedBy            uuid.UUID  `json:"returned_by"`
	ReturnedRole          string     `json:"returned_role"`
	ReturnRequestedAt     time.Time  `json:"return_requested_at"`
	ReturnReason          string     `json:"return_reason"`
	ReturnAcceptedAt      *time.Time `json:"return_accepted_at,omitempty"`
	ReturnRejectedAt      *time.Time `json:"return_rejected_at,omitempty"`
	ReturnRejectionReason *string    `json:"return_rejection_reason,omitempty"`
	ReturnReceivedAt      *time.Time `json:"return_received_at,omitempty"`
}

// Resolved reports whether the return reached a verdict.
func (r *ReturnDetails) Resolved() bool {
	if r == nil {
		return false
	}
	return r.ReturnAcceptedAt != nil || r.ReturnRejectedAt != nil
}

// DisputeDetails records a retailer-raised dispute against a delivered order.
type DisputeDetails struct {
	DisputedBy      uuid.UUID  `json:"disputed_by"`
	DisputedRole    string     `json:"disputed_role"`
	DisputedAt      time.Time  `json:"disputed_at"`
	Reason          string     `json:"reason"`
	Resolved        bool       `json:"resolved"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	ResolutionNotes *string    `json:"resolution_notes,omitempty"`
}
