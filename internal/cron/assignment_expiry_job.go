package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/tradebridge-io/tradebridge-backend/internal/orders"
	"github.com/tradebridge-io/tradebridge-backend/pkg/db/models"
	"github.com/tradebridge-io/tradebridge-backend/pkg/enums"
	"github.com/tradebridge-io/tradebridge-backend/pkg/logger"
	"github.com/tradebridge-io/tradebridge-backend/pkg/metrics"
	"github.com/tradebridge-io/tradebridge-backend/pkg/outbox"
)

const expirySweepBatchSize = 100

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// AssignmentExpiryJob reverts orders whose transporter offer lapsed: the
// order goes back to the status it held before the offer, the offer moves
// into history as expired, and downstream consumers are notified. Each order
// is reverted under its version guard, so a transporter accept that commits
// first always wins.
type AssignmentExpiryJob struct {
	runner  txRunner
	repo    orders.Repository
	outbox  outboxEmitter
	metrics *metrics.CronJobMetrics
	logg    *logger.Logger
	now     func() time.Time
}

func NewAssignmentExpiryJob(
	runner txRunner,
	repo orders.Repository,
	emitter outboxEmitter,
	jobMetrics *metrics.CronJobMetrics,
	logg *logger.Logger,
) *AssignmentExpiryJob {
	return &AssignmentExpiryJob{
		runner:  runner,
		repo:    repo,
		outbox:  emitter,
		metrics: jobMetrics,
		logg:    logg,
		now:     time.Now,
	}
}

func (j *AssignmentExpiryJob) Name() string {
	return "assignment-expiry-sweep"
}

func (j *AssignmentExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()

	expired, err := j.repo.ListExpiredAssignments(ctx, now, expirySweepBatchSize)
	if err != nil {
		return err
	}
	if len(expired) == 0 {
		return nil
	}

	swept := 0
	var errs error
	for i := range expired {
		order := &expired[i]
		if err := j.sweepOne(ctx, order, now); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
			continue
		}
		swept++
	}

	j.metrics.AddSwept(j.Name(), swept)
	if swept > 0 {
		logCtx := j.logg.WithFields(ctx, map[string]any{"swept": swept, "candidates": len(expired)})
		j.logg.Info(logCtx, "expired assignments reverted")
	}
	return errs
}

func (j *AssignmentExpiryJob) sweepOne(ctx context.Context, order *models.Order, now time.Time) error {
	if order.AssignmentPrevStatus == nil || order.AssignmentMode == nil {
		j.logg.Warn(j.logg.WithOrderID(ctx, order.ID.String()), "expired offer has no restore status, skipping")
		return nil
	}
	restore := *order.AssignmentPrevStatus

	return j.runner.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := j.repo.WithTx(tx)

		updates := map[string]any{
			"status":                 restore,
			"version":                gorm.Expr("version + 1"),
			"assignment_mode":        nil,
			"transporter_id":         nil,
			"assigned_at":            nil,
			"assignment_expires_at":  nil,
			"assignment_return_leg":  false,
			"assignment_prev_status": nil,
			"updated_at":             now,
		}
		rows, err := txRepo.UpdateOrderGuarded(ctx, order.ID, order.Version, updates)
		if err != nil {
			return err
		}
		if rows == 0 {
			// claimed or re-offered since we listed it; nothing to revert
			return nil
		}

		assignedAt := now
		if order.AssignedAt != nil {
			assignedAt = *order.AssignedAt
		}
		if err := txRepo.AppendAssignment(ctx, &models.OrderAssignment{
			OrderID:       order.ID,
			TransporterID: order.TransporterID,
			Mode:          *order.AssignmentMode,
			Outcome:       enums.AssignmentOutcomeExpired,
			ReturnLeg:     order.AssignmentReturnLeg,
			AssignedAt:    assignedAt,
			ResolvedAt:    &now,
		}); err != nil {
			return err
		}

		reason := "transporter offer expired"
		if err := txRepo.AppendStatusEvent(ctx, &models.OrderStatusEvent{
			OrderID:    order.ID,
			FromStatus: order.Status,
			ToStatus:   restore,
			Reason:     &reason,
		}); err != nil {
			return err
		}

		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAssignmentExpired,
			AggregateType: enums.AggregateAssignment,
			AggregateID:   order.ID,
			OccurredAt:    now,
			Data: map[string]any{
				"orderId":        order.ID,
				"orderNumber":    order.OrderNumber,
				"family":         order.Family,
				"mode":           *order.AssignmentMode,
				"transporterId":  order.TransporterID,
				"returnLeg":      order.AssignmentReturnLeg,
				"revertedStatus": restore,
			},
		})
	})
}
