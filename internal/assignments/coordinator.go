package assignments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradebridge-io/tradebridge-backend/internal/orders"
	"github.com/tradebridge-io/tradebridge-backend/pkg/db/models"
	"github.com/tradebridge-io/tradebridge-backend/pkg/enums"
	pkgerrors "github.com/tradebridge-io/tradebridge-backend/pkg/errors"
	"github.com/tradebridge-io/tradebridge-backend/pkg/logger"
	"github.com/tradebridge-io/tradebridge-backend/pkg/outbox"
	"github.com/tradebridge-io/tradebridge-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Coordinator is the transporter-facing side of order assignment: accepting
// directed offers, claiming open ones, and listing pools. Claims are plain
// conditional updates, so the first transporter to commit wins and a claim
// racing the expiry sweep loses at commit time.
type Coordinator struct {
	runner txRunner
	repo   orders.Repository
	orders orders.Service
	outbox outboxEmitter
	logg   *logger.Logger
	now    func() time.Time
}

func NewCoordinator(
	runner txRunner,
	repo orders.Repository,
	orderSvc orders.Service,
	emitter outboxEmitter,
	logg *logger.Logger,
) *Coordinator {
	return &Coordinator{
		runner: runner,
		repo:   repo,
		orders: orderSvc,
		outbox: emitter,
		logg:   logg,
		now:    time.Now,
	}
}

// Accept claims an offer for the transporter. Directed offers may only be
// taken by their addressee; free offers go to whoever commits first.
func (c *Coordinator) Accept(ctx context.Context, transporterID, orderID uuid.UUID) (*orders.OrderDetail, error) {
	order, err := c.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	now := c.now().UTC()
	if order.AssignmentMode == nil || !order.HasActiveAssignment(now) {
		return nil, pkgerrors.New(pkgerrors.CodeAssignmentConflict, "no open transporter offer on this order").
			WithDetails(map[string]string{"order_id": orderID.String()})
	}

	free := *order.AssignmentMode == enums.AssignmentModeFree && order.TransporterID == nil
	if !free && (order.TransporterID == nil || *order.TransporterID != transporterID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "offer is directed at another transporter")
	}

	nextStatus := enums.OrderStatusAcceptedByTransporter
	if order.Status == enums.OrderStatusReturnRequested {
		nextStatus = enums.OrderStatusReturnAccepted
	}

	updates := map[string]any{
		"status": nextStatus,
		// the claim predicate does not carry the version, so the increment
		// must happen in SQL; a number computed from the pre-transaction read
		// could be stale after an expiry re-offer
		"version":                gorm.Expr("version + 1"),
		"transporter_id":         transporterID,
		"assignment_expires_at":  nil,
		"assignment_prev_status": nil,
		"updated_at":             now,
	}
	if nextStatus == enums.OrderStatusReturnAccepted {
		if rd := order.ReturnDetails; rd != nil && rd.ReturnAcceptedAt == nil {
			updated := *rd
			updated.ReturnAcceptedAt = &now
			updates["return_details"] = &updated
		}
	}

	txErr := c.runner.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := c.repo.WithTx(tx)

		var rows int64
		var cerr error
		if free {
			rows, cerr = txRepo.ClaimFreeAssignment(ctx, orderID, transporterID, now, updates)
		} else {
			rows, cerr = txRepo.ClaimSpecificAssignment(ctx, orderID, transporterID, now, updates)
		}
		if cerr != nil {
			return cerr
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeAssignmentConflict, "offer already claimed or expired").
				WithDetails(map[string]string{"order_id": orderID.String()})
		}

		if err := txRepo.AppendAssignment(ctx, &models.OrderAssignment{
			OrderID:       orderID,
			TransporterID: &transporterID,
			Mode:          *order.AssignmentMode,
			Outcome:       enums.AssignmentOutcomeAccepted,
			ReturnLeg:     order.AssignmentReturnLeg,
			AssignedAt:    assignedAtOr(order, now),
			ResolvedAt:    &now,
		}); err != nil {
			return err
		}

		role := enums.ActorRoleTransporter
		if err := txRepo.AppendStatusEvent(ctx, &models.OrderStatusEvent{
			OrderID:    orderID,
			FromStatus: order.Status,
			ToStatus:   nextStatus,
			ActorID:    &transporterID,
			ActorRole:  &role,
		}); err != nil {
			return err
		}

		return c.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAssignmentAccepted,
			AggregateType: enums.AggregateAssignment,
			AggregateID:   orderID,
			Actor:         &outbox.ActorRef{ActorID: transporterID, Role: enums.ActorRoleTransporter.String()},
			OccurredAt:    now,
			Data: map[string]any{
				"orderId":       orderID,
				"orderNumber":   order.OrderNumber,
				"family":        order.Family,
				"mode":          *order.AssignmentMode,
				"transporterId": transporterID,
				"returnLeg":     order.AssignmentReturnLeg,
			},
		})
	})
	if txErr != nil {
		return nil, txErr
	}

	logCtx := c.logg.WithFields(ctx, map[string]any{
		"order_id":       orderID.String(),
		"transporter_id": transporterID.String(),
		"mode":           order.AssignmentMode.String(),
	})
	c.logg.Info(logCtx, "transporter claimed assignment")

	actor := orders.Actor{ID: transporterID, Role: enums.ActorRoleTransporter}
	return c.orders.GetOrder(ctx, actor, orderID)
}

// Reject declines a directed offer. It rides the regular transition path so
// the version guard and audit trail behave exactly like any other status move.
func (c *Coordinator) Reject(ctx context.Context, transporterID, orderID uuid.UUID, reason string) (*orders.OrderDetail, error) {
	actor := orders.Actor{ID: transporterID, Role: enums.ActorRoleTransporter}
	return c.orders.UpdateStatus(ctx, actor, orderID, orders.UpdateStatusInput{
		Status: enums.OrderStatusRejectedByTransporter,
		Reason: reason,
	})
}

// FreePool lists open offers any transporter may claim, newest first.
// returnLeg selects between the delivery pool and the returns pool.
func (c *Coordinator) FreePool(ctx context.Context, returnLeg bool, limit int, cursorStr string) (*orders.OrderList, error) {
	cursor, err := pagination.ParseCursor(cursorStr)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	normalized := pagination.NormalizeLimit(limit)
	rows, err := c.repo.ListFreePool(ctx, c.now().UTC(), returnLeg, normalized+1, cursor)
	if err != nil {
		return nil, err
	}
	return orders.BuildOrderList(rows, normalized), nil
}

// Queue lists the transporter's own active orders: pending directed offers
// plus everything they are currently carrying.
func (c *Coordinator) Queue(ctx context.Context, transporterID uuid.UUID, limit int, cursorStr string) (*orders.OrderList, error) {
	cursor, err := pagination.ParseCursor(cursorStr)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	normalized := pagination.NormalizeLimit(limit)
	rows, err := c.repo.ListTransporterQueue(ctx, transporterID, normalized+1, cursor)
	if err != nil {
		return nil, err
	}
	return orders.BuildOrderList(rows, normalized), nil
}

func assignedAtOr(order *models.Order, fallback time.Time) time.Time {
	if order.AssignedAt != nil {
		return *order.AssignedAt
	}
	return fallback
}
