package orders

import (
	"fmt"

	pkgerrors "github.com/tradebridge-io/tradebridge-backend/pkg/errors"

	"github.com/tradebridge-io/tradebridge-backend/pkg/enums"
)

// rule is one allowed edge out of a status. EffectiveNext, when set, is the
// status actually persisted instead of the requested one (the dispute return
// leg is requested as assigned_to_transporter but lands on
// return_to_wholesaler).
type rule struct {
	Role            enums.ActorRole
	Next            enums.OrderStatus
	EffectiveNext   enums.OrderStatus
	RequiresReason  bool
	RequiresExpired bool
	ReturnLeg       bool
}

// Transition is the resolved outcome of a validated request.
type Transition struct {
	// Effective is the status to persist. Usually the requested status.
	Effective enums.OrderStatus
	// ReturnLeg marks transporter work created by this transition as a
	// return journey rather than a forward delivery.
	ReturnLeg bool
}

// Request carries everything the validator needs to resolve one edge.
type Request struct {
	Family    enums.OrderFamily
	Current   enums.OrderStatus
	Requested enums.OrderStatus
	Role      enums.ActorRole
	Reason    string
	// AssignmentExpired must be true for a wholesaler to re-offer an order
	// that is still sitting in assigned_to_transporter.
	AssignmentExpired bool
}

var retailRules = map[enums.OrderStatus][]rule{
	enums.OrderStatusPending: {
		{Role: enums.ActorRoleWholesaler, Next: enums.OrderStatusAccepted},
		{Role: enums.ActorRoleWholesaler, Next: enums.OrderStatusRejected, RequiresReason: true},
		{Role: enums.ActorRoleWholesaler, Next: enums.OrderStatusCancelledByWholesaler, RequiresReason: true},
	},
	enums.OrderStatusAccepted: {
		{Role: enums.ActorRoleWholesaler, Next: enums.OrderStatusProcessing},
		{Role: enums.ActorRoleWholesaler, Next: enums.OrderStatusCancelledByWholesaler, RequiresReason: true},
	},
	enums.OrderStatusProcessing: {
		{Role: enums.ActorRoleWholesaler, Next: enums.OrderStatusAssignedToTransporter},
		{Role: enums.ActorRoleWholesaler, Next: enums.OrderStatusCancelledByWholesaler, RequiresReason: true},
	},
	enums.OrderStatusAssignedToTransporter: {
		{Role: enums.ActorRoleTransporter, Next: enums.OrderStatusAcceptedByTransporter},
		{Role: enums.ActorRoleTransporter, Next: enums.OrderStatusRejectedByTransporter, RequiresReason: true},
		{Role: enums.ActorRoleWholesaler, Next: enums.OrderStatusAssignedToTransporter, RequiresExpired: true},
	},
	enums.OrderStatusRejectedByTransporter: {
		{Role: enums.ActorRoleWholesaler, Next: enums.OrderStatusAssignedToTransporter},
	},
	enums.OrderStatusCancelledByTransporter: {
		{Role: enums.ActorRoleWholesaler, Next: enums.OrderStatusAssignedToTransporter},
	},
	enums.OrderStatusAcceptedByTransporter: {
		{Role: enums.ActorRoleTransporter, Next: enums.OrderStatusInTransit},
		{Role: enums.ActorRoleTransporter, Next: enums.OrderStatusCancelledByTransporter, RequiresReason: true},
	},
	enums.OrderStatusInTransit: {
		{Role: enums.ActorRoleTransporter, Next: enums.OrderStatusDelivered},
	},
	enums.OrderStatusDelivered: {
		{Role: enums.ActorRoleRetailer, Next: enums.OrderStatusCertified},
		{Role: enums.ActorRoleRetailer, Next: enums.OrderStatusDisputed, RequiresReason: true},
	},
	enums.OrderStatusDisputed: {
		{
			Role:          enums.ActorRoleWholesaler,
			Next:          enums.OrderStatusAssignedToTransporter,
			EffectiveNext: enums.OrderStatusReturnToWholesaler,
			ReturnLeg:     true,
		},
	},
	enums.OrderStatusReturnToWholesaler: {
		{Role: enums.ActorRoleWholesaler, Next: enums.OrderStatusReturnAccepted},
		{Role: enums.ActorRoleWholesaler, Next: enums.OrderStatusReturnRejected, RequiresReason: true},
	},
	enums.OrderStatusReturnRejected: {
		{Role: enums.ActorRoleWholesaler, Next: enums.OrderStatusAssignedToTransporter},
	},
}

var supplyRules = map[enums.OrderStatus][]rule{
	enums.OrderStatusPending: {
		{Role: enums.ActorRoleSupplier, Next: enums.OrderStatusConfirmed},
		{Role: enums.ActorRoleSupplier, Next: enums.OrderStatusRejected, RequiresReason: true},
		{Role: enums.ActorRoleWholesaler, Next: enums.OrderStatusCancelledByWholesaler, RequiresReason: true},
	},
	enums.OrderStatusConfirmed: {
		{Role: enums.ActorRoleSupplier, Next: enums.OrderStatusInProduction},
		{Role: enums.ActorRoleWholesaler, Next: enums.OrderStatusCancelledByWholesaler, RequiresReason: true},
	},
	enums.OrderStatusInProduction: {
		{Role: enums.ActorRoleSupplier, Next: enums.OrderStatusReadyForDelivery},
	},
	enums.OrderStatusReadyForDelivery: {
		{Role: enums.ActorRoleSupplier, Next: enums.OrderStatusAssignedToTransporter},
	},
	enums.OrderStatusAssignedToTransporter: {
		{Role: enums.ActorRoleTransporter, Next: enums.OrderStatusAcceptedByTransporter},
		{Role: enums.ActorRoleTransporter, Next: enums.OrderStatusRejectedByTransporter, RequiresReason: true},
		{Role: enums.ActorRoleSupplier, Next: enums.OrderStatusAssignedToTransporter, RequiresExpired: true},
	},
	enums.OrderStatusRejectedByTransporter: {
		{Role: enums.ActorRoleSupplier, Next: enums.OrderStatusAssignedToTransporter},
	},
	enums.OrderStatusCancelledByTransporter: {
		{Role: enums.ActorRoleSupplier, Next: enums.OrderStatusAssignedToTransporter},
	},
	enums.OrderStatusAcceptedByTransporter: {
		{Role: enums.ActorRoleTransporter, Next: enums.OrderStatusInTransit},
		{Role: enums.ActorRoleTransporter, Next: enums.OrderStatusCancelledByTransporter, RequiresReason: true},
	},
	enums.OrderStatusInTransit: {
		{Role: enums.ActorRoleTransporter, Next: enums.OrderStatusDelivered},
	},
	enums.OrderStatusDelivered: {
		{Role: enums.ActorRoleWholesaler, Next: enums.OrderStatusCertified},
		{Role: enums.ActorRoleWholesaler, Next: enums.OrderStatusReturnRequested, RequiresReason: true},
	},
	enums.OrderStatusReturnRequested: {
		{Role: enums.ActorRoleTransporter, Next: enums.OrderStatusReturnAccepted},
	},
	enums.OrderStatusReturnAccepted: {
		{Role: enums.ActorRoleTransporter, Next: enums.OrderStatusReturnInTransit},
	},
	enums.OrderStatusReturnInTransit: {
		{Role: enums.ActorRoleTransporter, Next: enums.OrderStatusReturnedToSupplier},
	},
}

// Forward chains used to name the step a caller skipped over.
var retailChain = []enums.OrderStatus{
	enums.OrderStatusPending,
	enums.OrderStatusAccepted,
	enums.OrderStatusProcessing,
	enums.OrderStatusAssignedToTransporter,
	enums.OrderStatusAcceptedByTransporter,
	enums.OrderStatusInTransit,
	enums.OrderStatusDelivered,
	enums.OrderStatusCertified,
}

var supplyChain = []enums.OrderStatus{
	enums.OrderStatusPending,
	enums.OrderStatusConfirmed,
	enums.OrderStatusInProduction,
	enums.OrderStatusReadyForDelivery,
	enums.OrderStatusAssignedToTransporter,
	enums.OrderStatusAcceptedByTransporter,
	enums.OrderStatusInTransit,
	enums.OrderStatusDelivered,
	enums.OrderStatusCertified,
}

func rulesFor(family enums.OrderFamily) map[enums.OrderStatus][]rule {
	if family == enums.OrderFamilySupply {
		return supplyRules
	}
	return retailRules
}

func chainFor(family enums.OrderFamily) []enums.OrderStatus {
	if family == enums.OrderFamilySupply {
		return supplyChain
	}
	return retailChain
}

// IsTerminal reports whether a status has no outgoing edges for the family.
func IsTerminal(family enums.OrderFamily, status enums.OrderStatus) bool {
	return len(rulesFor(family)[status]) == 0
}

// TransitionDenial is the details payload attached to a STATE_CONFLICT
// response when a transition is refused.
type TransitionDenial struct {
	CurrentStatus   enums.OrderStatus `json:"current_status"`
	RequestedStatus enums.OrderStatus `json:"requested_status"`
	RequiredStatus  enums.OrderStatus `json:"required_status,omitempty"`
}

// Validate resolves a requested transition against the family's table. On
// success it returns the transition to persist; otherwise a coded error the
// HTTP layer renders as-is.
func Validate(req Request) (Transition, *pkgerrors.Error) {
	edges, known := rulesFor(req.Family)[req.Current]
	if !known || len(edges) == 0 {
		return Transition{}, pkgerrors.
			New(pkgerrors.CodeStateConflict, fmt.Sprintf("order in terminal status %s", req.Current)).
			WithDetails(TransitionDenial{CurrentStatus: req.Current, RequestedStatus: req.Requested})
	}

	var matched *rule
	roleMismatch := false
	for i := range edges {
		if edges[i].Next != req.Requested {
			continue
		}
		if !roleAllowed(edges[i].Role, req.Role) {
			roleMismatch = true
			continue
		}
		matched = &edges[i]
		break
	}

	if matched == nil {
		if roleMismatch {
			return Transition{}, pkgerrors.New(
				pkgerrors.CodeForbidden,
				fmt.Sprintf("role %s may not move order from %s to %s", req.Role, req.Current, req.Requested),
			)
		}
		denial := TransitionDenial{
			CurrentStatus:   req.Current,
			RequestedStatus: req.Requested,
			RequiredStatus:  requiredStepFor(req.Family, req.Current, req.Requested),
		}
		msg := fmt.Sprintf("cannot move order from %s to %s", req.Current, req.Requested)
		if denial.RequiredStatus != "" {
			msg = fmt.Sprintf("cannot move order from %s to %s: order must reach %s first",
				req.Current, req.Requested, denial.RequiredStatus)
		}
		return Transition{}, pkgerrors.New(pkgerrors.CodeStateConflict, msg).WithDetails(denial)
	}

	if matched.RequiresReason && req.Reason == "" {
		return Transition{}, pkgerrors.
			New(pkgerrors.CodeValidation, fmt.Sprintf("a reason is required to move an order to %s", req.Requested)).
			WithDetails(map[string]string{"reason": "required"})
	}

	if matched.RequiresExpired && !req.AssignmentExpired {
		return Transition{}, pkgerrors.
			New(pkgerrors.CodeAssignmentConflict, "current transporter offer has not expired").
			WithDetails(TransitionDenial{CurrentStatus: req.Current, RequestedStatus: req.Requested})
	}

	effective := matched.Next
	if matched.EffectiveNext != "" {
		effective = matched.EffectiveNext
	}
	return Transition{Effective: effective, ReturnLeg: matched.ReturnLeg}, nil
}

// roleAllowed lets admins act on any edge.
func roleAllowed(required, actual enums.ActorRole) bool {
	return actual == required || actual == enums.ActorRoleAdmin
}

// requiredStepFor names the next happy-path step when the caller tried to
// jump ahead on the family's forward chain. Returns "" when the requested
// status is not ahead of current on that chain.
func requiredStepFor(family enums.OrderFamily, current, requested enums.OrderStatus) enums.OrderStatus {
	chain := chainFor(family)
	curIdx, reqIdx := -1, -1
	for i, s := range chain {
		if s == current {
			curIdx = i
		}
		if s == requested {
			reqIdx = i
		}
	}
	if curIdx == -1 || reqIdx == -1 || reqIdx <= curIdx+1 {
		return ""
	}
	return chain[curIdx+1]
}
