package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradebridge-io/tradebridge-backend/pkg/config"
	"github.com/tradebridge-io/tradebridge-backend/pkg/db/models"
	"github.com/tradebridge-io/tradebridge-backend/pkg/enums"
	pkgerrors "github.com/tradebridge-io/tradebridge-backend/pkg/errors"
	"github.com/tradebridge-io/tradebridge-backend/pkg/logger"
	"github.com/tradebridge-io/tradebridge-backend/pkg/outbox"
	"github.com/tradebridge-io/tradebridge-backend/pkg/pagination"
	"github.com/tradebridge-io/tradebridge-backend/pkg/types"
)

// Service is the order fulfillment facade. Every mutation validates the
// transition, persists it under a version guard, appends the audit trail and
// queues outbox events, all in one transaction.
type Service interface {
	GetOrder(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDetail, error)
	ListOrders(ctx context.Context, actor Actor, query ListQuery) (*OrderList, error)
	UpdateStatus(ctx context.Context, actor Actor, orderID uuid.UUID, input UpdateStatusInput) (*OrderDetail, error)
	RaiseDispute(ctx context.Context, actor Actor, orderID uuid.UUID, input DisputeInput) (*OrderDetail, error)
	HandleReturn(ctx context.Context, actor Actor, orderID uuid.UUID, input HandleReturnInput) (*OrderDetail, error)
}

type service struct {
	runner  txRunner
	repo    Repository
	outbox  outboxEmitter
	refunds RefundIssuer
	logg    *logger.Logger
	cfg     config.AssignmentConfig
	now     func() time.Time
}

// NewService wires the order service. refunds may be nil when no billing
// backend is configured.
func NewService(
	runner txRunner,
	repo Repository,
	emitter outboxEmitter,
	refunds RefundIssuer,
	logg *logger.Logger,
	cfg config.AssignmentConfig,
) Service {
	return &service{
		runner:  runner,
		repo:    repo,
		outbox:  emitter,
		refunds: refunds,
		logg:    logg,
		cfg:     cfg,
		now:     time.Now,
	}
}

func (s *service) GetOrder(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDetail, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if _, aerr := s.resolveRole(order, actor); aerr != nil {
		return nil, aerr
	}
	return s.loadDetail(ctx, order)
}

func (s *service) ListOrders(ctx context.Context, actor Actor, query ListQuery) (*OrderList, error) {
	filter := ListFilter{Family: query.Family, Status: query.Status}

	switch actor.Role {
	case enums.ActorRoleAdmin:
		// admins see everything
	case enums.ActorRoleRetailer:
		filter.RetailerStoreID = actor.StoreID
	case enums.ActorRoleWholesaler:
		filter.WholesalerStoreID = actor.StoreID
	case enums.ActorRoleSupplier:
		filter.SupplierStoreID = actor.StoreID
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "role may not list orders")
	}
	if actor.Role != enums.ActorRoleAdmin && actor.StoreID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "actor has no store")
	}

	cursor, err := pagination.ParseCursor(query.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(query.Limit)
	rows, err := s.repo.ListOrders(ctx, filter, limit+1, cursor)
	if err != nil {
		return nil, err
	}
	return BuildOrderList(rows, limit), nil
}

func (s *service) UpdateStatus(ctx context.Context, actor Actor, orderID uuid.UUID, input UpdateStatusInput) (*OrderDetail, error) {
	detail, err := s.transitionOnce(ctx, actor, orderID, input)
	if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeConflict {
		// lost the version guard to a concurrent writer; re-read and retry once
		s.logg.Warn(s.logg.WithOrderID(ctx, orderID.String()), "order version conflict, retrying transition")
		detail, err = s.transitionOnce(ctx, actor, orderID, input)
	}
	return detail, err
}

func (s *service) RaiseDispute(ctx context.Context, actor Actor, orderID uuid.UUID, input DisputeInput) (*OrderDetail, error) {
	return s.UpdateStatus(ctx, actor, orderID, UpdateStatusInput{
		Status: enums.OrderStatusDisputed,
		Reason: input.Reason,
	})
}

func (s *service) HandleReturn(ctx context.Context, actor Actor, orderID uuid.UUID, input HandleReturnInput) (*OrderDetail, error) {
	status := enums.OrderStatusReturnAccepted
	if input.Action == enums.ReturnActionReject {
		status = enums.OrderStatusReturnRejected
	}
	return s.UpdateStatus(ctx, actor, orderID, UpdateStatusInput{
		Status: status,
		Reason: input.Reason,
	})
}

func (s *service) transitionOnce(ctx context.Context, actor Actor, orderID uuid.UUID, input UpdateStatusInput) (*OrderDetail, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	role, aerr := s.resolveRole(order, actor)
	if aerr != nil {
		return nil, aerr
	}

	now := s.now().UTC()
	expired := order.AssignmentMode != nil && !order.HasActiveAssignment(now)

	transition, verr := Validate(Request{
		Family:            order.Family,
		Current:           order.Status,
		Requested:         input.Status,
		Role:              role,
		Reason:            input.Reason,
		AssignmentExpired: expired,
	})
	if verr != nil {
		return nil, verr
	}

	effects, eerr := s.buildEffects(order, actor, role, input, transition, now)
	if eerr != nil {
		return nil, eerr
	}

	txErr := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		var rows int64
		var uerr error
		if effects.useFreeClaim {
			rows, uerr = txRepo.ClaimFreeAssignment(ctx, order.ID, actor.ID, now, effects.updates)
		} else {
			rows, uerr = txRepo.UpdateOrderGuarded(ctx, order.ID, order.Version, effects.updates)
		}
		if uerr != nil {
			return uerr
		}
		if rows == 0 {
			if effects.useFreeClaim {
				return pkgerrors.New(pkgerrors.CodeAssignmentConflict, "offer already claimed or expired").
					WithDetails(map[string]string{"order_id": order.ID.String()})
			}
			return pkgerrors.New(pkgerrors.CodeConflict, "order was modified concurrently")
		}

		for i := range effects.history {
			if err := txRepo.AppendAssignment(ctx, &effects.history[i]); err != nil {
				return err
			}
		}

		eventRole := role
		event := &models.OrderStatusEvent{
			OrderID:    order.ID,
			FromStatus: order.Status,
			ToStatus:   transition.Effective,
			ActorID:    ptrUUID(actor.ID),
			ActorRole:  &eventRole,
			Reason:     optString(input.Reason),
		}
		if err := txRepo.AppendStatusEvent(ctx, event); err != nil {
			return err
		}

		actorRef := &outbox.ActorRef{ActorID: actor.ID, StoreID: actor.StoreID, Role: role.String()}
		for _, domainEvent := range effects.events {
			domainEvent.Actor = actorRef
			domainEvent.OccurredAt = now
			if err := s.outbox.Emit(ctx, tx, domainEvent); err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	if effects.needsRefund && s.refunds != nil {
		if err := s.refunds.IssueRefund(ctx, order); err != nil {
			// the refund_requested outbox event is already durable
			s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "refund hook failed", err)
		}
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":    order.ID.String(),
		"from_status": order.Status.String(),
		"to_status":   transition.Effective.String(),
	})
	s.logg.Info(logCtx, "order transitioned")

	fresh, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.loadDetail(ctx, fresh)
}

type transitionEffects struct {
	updates map[string]any
	history []models.OrderAssignment
	events  []outbox.DomainEvent
	// useFreeClaim swaps the version guard for the free-pool claim predicate
	// (unclaimed free offers, forward or return); first accept wins, expiry
	// wins at commit.
	useFreeClaim bool
	needsRefund  bool
}

func (s *service) buildEffects(
	order *models.Order,
	actor Actor,
	role enums.ActorRole,
	input UpdateStatusInput,
	transition Transition,
	now time.Time,
) (*transitionEffects, *pkgerrors.Error) {
	effects := &transitionEffects{
		updates: map[string]any{
			"status": transition.Effective,
			// incremented in SQL: claim predicates do not carry the version, so
			// a value computed from the pre-transaction read could write a
			// stale number and let a concurrent guarded update slip through
			"version":    gorm.Expr("version + 1"),
			"updated_at": now,
		},
	}

	statusEvent := outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data: statusChangedPayload{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Family:      order.Family,
			FromStatus:  order.Status,
			ToStatus:    transition.Effective,
			Reason:      input.Reason,
		},
	}

	switch transition.Effective {
	case enums.OrderStatusAssignedToTransporter:
		if err := s.applyOfferCreation(effects, order, input, transition, now); err != nil {
			return nil, err
		}

	case enums.OrderStatusReturnToWholesaler:
		// dispute return leg: the wholesaler books a transporter directly,
		// there is no pending-accept phase to expire, so only a specific
		// assignment can carry this edge
		if input.AssignmentMode == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "assignment_mode is required").
				WithDetails(map[string]string{"assignment_mode": "required"})
		}
		if *input.AssignmentMode != enums.AssignmentModeSpecific {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "a dispute return leg requires a specific transporter").
				WithDetails(map[string]string{"assignment_mode": "must be specific"})
		}
		if input.TransporterID == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "transporter_id is required for a specific assignment").
				WithDetails(map[string]string{"transporter_id": "required"})
		}
		effects.updates["assignment_mode"] = *input.AssignmentMode
		effects.updates["transporter_id"] = input.TransporterID
		effects.updates["assigned_at"] = now
		effects.updates["assignment_expires_at"] = nil
		effects.updates["assignment_return_leg"] = true
		effects.updates["assignment_prev_status"] = nil
		effects.events = append(effects.events, outbox.DomainEvent{
			EventType:     enums.EventTransporterAssigned,
			AggregateType: enums.AggregateAssignment,
			AggregateID:   order.ID,
			Data: assignmentPayload{
				OrderID:       order.ID,
				OrderNumber:   order.OrderNumber,
				Family:        order.Family,
				Mode:          *input.AssignmentMode,
				TransporterID: input.TransporterID,
				ReturnLeg:     true,
			},
		})

	case enums.OrderStatusReturnRequested:
		// supply return: the order enters the free returns pool
		expiresAt := now.Add(s.offerTTL(input.TTLMinutes))
		effects.updates["assignment_mode"] = enums.AssignmentModeFree
		effects.updates["transporter_id"] = nil
		effects.updates["assigned_at"] = now
		effects.updates["assignment_expires_at"] = expiresAt
		effects.updates["assignment_return_leg"] = true
		effects.updates["assignment_prev_status"] = order.Status
		// set-once: re-requesting after an expired pickup offer keeps the
		// original request record
		if order.ReturnDetails == nil {
			effects.updates["return_details"] = &types.ReturnDetails{
				ReturnedBy:        actor.ID,
				ReturnedRole:      role.String(),
				ReturnRequestedAt: now,
				ReturnReason:      input.Reason,
			}
		}
		effects.events = append(effects.events, outbox.DomainEvent{
			EventType:     enums.EventReturnRequested,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: returnPayload{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				Family:      order.Family,
				Status:      transition.Effective,
				Reason:      input.Reason,
			},
		})

	case enums.OrderStatusAcceptedByTransporter:
		if !order.HasActiveAssignment(now) {
			return nil, pkgerrors.New(pkgerrors.CodeAssignmentConflict, "transporter offer has expired").
				WithDetails(map[string]string{"order_id": order.ID.String()})
		}
		// an unclaimed free offer resolves under the pool predicate so the
		// losing acceptor sees an assignment conflict, not a version conflict
		if *order.AssignmentMode == enums.AssignmentModeFree && order.TransporterID == nil {
			effects.useFreeClaim = true
		}
		effects.updates["transporter_id"] = actor.ID
		effects.updates["assignment_expires_at"] = nil
		effects.updates["assignment_prev_status"] = nil
		effects.history = append(effects.history, resolvedAssignment(order, ptrUUID(actor.ID), enums.AssignmentOutcomeAccepted, "", now))
		effects.events = append(effects.events, assignmentResolvedEvent(order, enums.EventAssignmentAccepted, ptrUUID(actor.ID), ""))

	case enums.OrderStatusRejectedByTransporter:
		effects.history = append(effects.history, resolvedAssignment(order, ptrUUID(actor.ID), enums.AssignmentOutcomeRejected, input.Reason, now))
		effects.events = append(effects.events, assignmentResolvedEvent(order, enums.EventAssignmentRejected, ptrUUID(actor.ID), input.Reason))
		clearAssignment(effects.updates)

	case enums.OrderStatusCancelledByTransporter:
		effects.history = append(effects.history, resolvedAssignment(order, ptrUUID(actor.ID), enums.AssignmentOutcomeCancelled, input.Reason, now))
		clearAssignment(effects.updates)

	case enums.OrderStatusCancelledByWholesaler, enums.OrderStatusRejected:
		effects.updates["cancellation_details"] = &types.CancellationDetails{
			CancelledBy:    actor.ID,
			CancelledRole:  role.String(),
			CancelledAt:    now,
			Reason:         input.Reason,
			PreviousStatus: order.Status.String(),
		}
		if order.AssignmentMode != nil {
			effects.history = append(effects.history, resolvedAssignment(order, order.TransporterID, enums.AssignmentOutcomeCancelled, input.Reason, now))
			clearAssignment(effects.updates)
		}
		effects.events = append(effects.events, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: statusChangedPayload{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				Family:      order.Family,
				FromStatus:  order.Status,
				ToStatus:    transition.Effective,
				Reason:      input.Reason,
			},
		})

	case enums.OrderStatusDisputed:
		effects.updates["dispute_details"] = &types.DisputeDetails{
			DisputedBy:   actor.ID,
			DisputedRole: role.String(),
			DisputedAt:   now,
			Reason:       input.Reason,
		}
		effects.events = append(effects.events, outbox.DomainEvent{
			EventType:     enums.EventDisputeRaised,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: disputePayload{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				Reason:      input.Reason,
				DisputedBy:  actor.ID,
			},
		})

	case enums.OrderStatusCertified:
		effects.events = append(effects.events, outbox.DomainEvent{
			EventType:     enums.EventOrderCertified,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: statusChangedPayload{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				Family:      order.Family,
				FromStatus:  order.Status,
				ToStatus:    transition.Effective,
			},
		})

	case enums.OrderStatusReturnAccepted:
		if order.Family == enums.OrderFamilyRetail {
			s.applyRetailReturnVerdict(effects, order, actor, input, now, true)
		} else {
			// supply: a transporter claims the return from the free pool
			if !order.HasActiveAssignment(now) {
				return nil, pkgerrors.New(pkgerrors.CodeAssignmentConflict, "return offer has expired").
					WithDetails(map[string]string{"order_id": order.ID.String()})
			}
			effects.useFreeClaim = true
			effects.updates["transporter_id"] = actor.ID
			effects.updates["assignment_expires_at"] = nil
			effects.updates["assignment_prev_status"] = nil
			if rd := order.ReturnDetails; rd != nil && rd.ReturnAcceptedAt == nil {
				updated := *rd
				updated.ReturnAcceptedAt = &now
				effects.updates["return_details"] = &updated
			}
			effects.history = append(effects.history, resolvedAssignment(order, ptrUUID(actor.ID), enums.AssignmentOutcomeAccepted, "", now))
			effects.events = append(effects.events, assignmentResolvedEvent(order, enums.EventAssignmentAccepted, ptrUUID(actor.ID), ""))
		}

	case enums.OrderStatusReturnRejected:
		s.applyRetailReturnVerdict(effects, order, actor, input, now, false)

	case enums.OrderStatusReturnedToSupplier:
		if rd := order.ReturnDetails; rd != nil {
			updated := *rd
			updated.ReturnReceivedAt = &now
			effects.updates["return_details"] = &updated
		}
		clearAssignment(effects.updates)
		effects.events = append(effects.events, outbox.DomainEvent{
			EventType:     enums.EventReturnResolved,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: returnPayload{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				Family:      order.Family,
				Status:      transition.Effective,
			},
		})
	}

	effects.events = append(effects.events, statusEvent)
	return effects, nil
}

// applyOfferCreation stages a new transporter offer, including the re-offer
// edge after a rejection, cancellation or expiry.
func (s *service) applyOfferCreation(
	effects *transitionEffects,
	order *models.Order,
	input UpdateStatusInput,
	transition Transition,
	now time.Time,
) *pkgerrors.Error {
	if input.AssignmentMode == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "assignment_mode is required").
			WithDetails(map[string]string{"assignment_mode": "required"})
	}
	mode := *input.AssignmentMode
	if mode == enums.AssignmentModeSpecific && input.TransporterID == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "transporter_id is required for a specific assignment").
			WithDetails(map[string]string{"transporter_id": "required"})
	}

	// restore target on expiry: re-offers keep the original one
	prevStatus := order.Status
	if order.Status == enums.OrderStatusAssignedToTransporter {
		if order.AssignmentPrevStatus != nil {
			prevStatus = *order.AssignmentPrevStatus
		}
		// the stale offer is history now
		effects.history = append(effects.history, resolvedAssignment(order, order.TransporterID, enums.AssignmentOutcomeExpired, "", now))
	}

	var transporterID *uuid.UUID
	if mode == enums.AssignmentModeSpecific {
		transporterID = input.TransporterID
	}

	expiresAt := now.Add(s.offerTTL(input.TTLMinutes))
	effects.updates["assignment_mode"] = mode
	effects.updates["transporter_id"] = transporterID
	effects.updates["assigned_at"] = now
	effects.updates["assignment_expires_at"] = expiresAt
	effects.updates["assignment_return_leg"] = transition.ReturnLeg
	effects.updates["assignment_prev_status"] = prevStatus

	effects.events = append(effects.events, outbox.DomainEvent{
		EventType:     enums.EventTransporterAssigned,
		AggregateType: enums.AggregateAssignment,
		AggregateID:   order.ID,
		Data: assignmentPayload{
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			Family:        order.Family,
			Mode:          mode,
			TransporterID: transporterID,
			ReturnLeg:     transition.ReturnLeg,
			ExpiresAt:     &expiresAt,
		},
	})
	return nil
}

// applyRetailReturnVerdict resolves a disputed retail order's return once the
// goods are back at the wholesaler. Accepting closes the dispute and triggers
// the refund; rejecting leaves it open for a redo shipment.
func (s *service) applyRetailReturnVerdict(
	effects *transitionEffects,
	order *models.Order,
	actor Actor,
	input UpdateStatusInput,
	now time.Time,
	accepted bool,
) {
	if dd := order.DisputeDetails; dd != nil {
		updated := *dd
		if accepted {
			updated.Resolved = true
			updated.ResolvedAt = &now
		}
		if input.Reason != "" {
			updated.ResolutionNotes = optString(input.Reason)
		}
		effects.updates["dispute_details"] = &updated
	}

	// the verdict is part of the return record, not just the dispute; the
	// requester side is carried over from the dispute that opened the return
	rd := types.ReturnDetails{}
	if order.ReturnDetails != nil {
		rd = *order.ReturnDetails
	}
	if dd := order.DisputeDetails; dd != nil && rd.ReturnedBy == uuid.Nil {
		rd.ReturnedBy = dd.DisputedBy
		rd.ReturnedRole = dd.DisputedRole
		rd.ReturnRequestedAt = dd.DisputedAt
		rd.ReturnReason = dd.Reason
	}
	if accepted {
		rd.ReturnAcceptedAt = &now
	} else {
		rd.ReturnRejectedAt = &now
		rd.ReturnRejectionReason = optString(input.Reason)
	}
	effects.updates["return_details"] = &rd

	if order.AssignmentMode != nil {
		// the return leg is complete either way
		effects.history = append(effects.history, resolvedAssignment(order, order.TransporterID, enums.AssignmentOutcomeAccepted, "", now))
		clearAssignment(effects.updates)
	}

	effects.events = append(effects.events, outbox.DomainEvent{
		EventType:     enums.EventReturnResolved,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data: returnPayload{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Family:      order.Family,
			Status:      effectiveStatus(effects),
			Reason:      input.Reason,
		},
	})

	if accepted {
		effects.needsRefund = true
		effects.events = append(effects.events, outbox.DomainEvent{
			EventType:     enums.EventRefundRequested,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: refundPayload{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				AmountCents: order.FinalCents,
				Currency:    "USD",
			},
		})
	}
}

func (s *service) resolveRole(order *models.Order, actor Actor) (enums.ActorRole, *pkgerrors.Error) {
	switch actor.Role {
	case enums.ActorRoleAdmin:
		return enums.ActorRoleAdmin, nil

	case enums.ActorRoleTransporter:
		if order.TransporterID == nil || *order.TransporterID != actor.ID {
			// free-pool pickups are the one edge a stranger may take
			if order.AssignmentMode != nil && *order.AssignmentMode == enums.AssignmentModeFree && order.TransporterID == nil {
				return enums.ActorRoleTransporter, nil
			}
			return "", pkgerrors.New(pkgerrors.CodeForbidden, "order is not assigned to this transporter")
		}
		return enums.ActorRoleTransporter, nil

	default:
		if actor.StoreID == nil {
			return "", pkgerrors.New(pkgerrors.CodeForbidden, "actor has no store")
		}
		role, ok := order.ParticipantRole(*actor.StoreID)
		if !ok {
			return "", pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if role != actor.Role {
			return "", pkgerrors.New(pkgerrors.CodeForbidden, "store does not hold this role on the order")
		}
		return role, nil
	}
}

func (s *service) offerTTL(minutes int) time.Duration {
	if minutes <= 0 {
		return s.cfg.DefaultTTL()
	}
	ttl := time.Duration(minutes) * time.Minute
	if ttl > s.cfg.MaxTTL() {
		return s.cfg.MaxTTL()
	}
	return ttl
}

func (s *service) loadDetail(ctx context.Context, order *models.Order) (*OrderDetail, error) {
	trail, err := s.repo.ListStatusEvents(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	history, err := s.repo.ListAssignments(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return toDetail(order, trail, history), nil
}

// BuildOrderList turns a limit+1 row fetch into a cursor page.
func BuildOrderList(rows []models.Order, limit int) *OrderList {
	list := &OrderList{Items: make([]OrderSummary, 0, len(rows))}
	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}
	for i := range rows {
		list.Items = append(list.Items, toSummary(&rows[i]))
	}
	if hasMore && len(rows) > 0 {
		last := rows[len(rows)-1]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return list
}

func resolvedAssignment(order *models.Order, transporterID *uuid.UUID, outcome enums.AssignmentOutcome, reason string, now time.Time) models.OrderAssignment {
	mode := enums.AssignmentModeSpecific
	if order.AssignmentMode != nil {
		mode = *order.AssignmentMode
	}
	assignedAt := now
	if order.AssignedAt != nil {
		assignedAt = *order.AssignedAt
	}
	return models.OrderAssignment{
		OrderID:       order.ID,
		TransporterID: transporterID,
		Mode:          mode,
		Outcome:       outcome,
		Reason:        optString(reason),
		ReturnLeg:     order.AssignmentReturnLeg,
		AssignedAt:    assignedAt,
		ResolvedAt:    &now,
	}
}

func assignmentResolvedEvent(order *models.Order, eventType enums.OutboxEventType, transporterID *uuid.UUID, reason string) outbox.DomainEvent {
	mode := enums.AssignmentModeSpecific
	if order.AssignmentMode != nil {
		mode = *order.AssignmentMode
	}
	return outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateAssignment,
		AggregateID:   order.ID,
		Data: assignmentPayload{
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			Family:        order.Family,
			Mode:          mode,
			TransporterID: transporterID,
			ReturnLeg:     order.AssignmentReturnLeg,
			Reason:        reason,
		},
	}
}

func clearAssignment(updates map[string]any) {
	updates["assignment_mode"] = nil
	updates["transporter_id"] = nil
	updates["assigned_at"] = nil
	updates["assignment_expires_at"] = nil
	updates["assignment_return_leg"] = false
	updates["assignment_prev_status"] = nil
}

func effectiveStatus(effects *transitionEffects) enums.OrderStatus {
	if s, ok := effects.updates["status"].(enums.OrderStatus); ok {
		return s
	}
	return ""
}

func ptrUUID(id uuid.UUID) *uuid.UUID {
	return &id
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
