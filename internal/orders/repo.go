package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/tradebridge-io/tradebridge-backend/pkg/db"
	"github.com/tradebridge-io/tradebridge-backend/pkg/db/models"
	"github.com/tradebridge-io/tradebridge-backend/pkg/enums"
	pkgerrors "github.com/tradebridge-io/tradebridge-backend/pkg/errors"
	"github.com/tradebridge-io/tradebridge-backend/pkg/pagination"
)

type repo struct {
	db *gorm.DB
}

// NewRepository builds the GORM-backed order repository.
func NewRepository(client *dbpkg.Client) Repository {
	return &repo{db: client.DB()}
}

// NewRepositoryWithDB is used by tests to run against an arbitrary handle.
func NewRepositoryWithDB(db *gorm.DB) Repository {
	return &repo{db: db}
}

func (r *repo) WithTx(tx *gorm.DB) Repository {
	return &repo{db: tx}
}

// Statuses in which an unclaimed offer can sit. Everything else either has no
// offer or has an accepted transporter attached.
var offerStatuses = []enums.OrderStatus{
	enums.OrderStatusAssignedToTransporter,
	enums.OrderStatusReturnRequested,
}

var transporterQueueStatuses = []enums.OrderStatus{
	enums.OrderStatusAssignedToTransporter,
	enums.OrderStatusAcceptedByTransporter,
	enums.OrderStatusInTransit,
	enums.OrderStatusReturnToWholesaler,
	enums.OrderStatusReturnAccepted,
	enums.OrderStatusReturnInTransit,
}

func (r *repo) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	return &order, nil
}

func (r *repo) UpdateOrderGuarded(ctx context.Context, orderID uuid.UUID, version int64, updates map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND version = ?", orderID, version).
		Updates(updates)
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "updating order")
	}
	return res.RowsAffected, nil
}

func (r *repo) AppendStatusEvent(ctx context.Context, event *models.OrderStatusEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "appending status event")
	}
	return nil
}

func (r *repo) AppendAssignment(ctx context.Context, row *models.OrderAssignment) error {
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "appending assignment record")
	}
	return nil
}

func (r *repo) ClaimSpecificAssignment(ctx context.Context, orderID, transporterID uuid.UUID, now time.Time, updates map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ? AND transporter_id = ? AND assignment_expires_at > ?",
			orderID, enums.OrderStatusAssignedToTransporter, transporterID, now).
		Updates(updates)
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "claiming assignment")
	}
	return res.RowsAffected, nil
}

func (r *repo) ClaimFreeAssignment(ctx context.Context, orderID, transporterID uuid.UUID, now time.Time, updates map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status IN ? AND assignment_mode = ? AND transporter_id IS NULL AND assignment_expires_at > ?",
			orderID, offerStatuses, enums.AssignmentModeFree, now).
		Updates(updates)
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "claiming free assignment")
	}
	return res.RowsAffected, nil
}

func (r *repo) ListExpiredAssignments(ctx context.Context, now time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("status IN ? AND assignment_expires_at IS NOT NULL AND assignment_expires_at <= ?", offerStatuses, now).
		Order("assignment_expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing expired assignments")
	}
	return rows, nil
}

func (r *repo) ListOrders(ctx context.Context, filter ListFilter, limit int, cursor *pagination.Cursor) ([]models.Order, error) {
	q := r.db.WithContext(ctx).Model(&models.Order{})

	switch {
	case filter.RetailerStoreID != nil:
		q = q.Where("retailer_store_id = ?", *filter.RetailerStoreID)
	case filter.WholesalerStoreID != nil:
		q = q.Where("wholesaler_store_id = ?", *filter.WholesalerStoreID)
	case filter.SupplierStoreID != nil:
		q = q.Where("supplier_store_id = ?", *filter.SupplierStoreID)
	}
	if filter.Family != nil {
		q = q.Where("family = ?", *filter.Family)
	}
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}

	var rows []models.Order
	err := applyCursor(q, cursor).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing orders")
	}
	return rows, nil
}

func (r *repo) ListFreePool(ctx context.Context, now time.Time, returnLeg bool, limit int, cursor *pagination.Cursor) ([]models.Order, error) {
	q := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("status IN ? AND assignment_mode = ? AND transporter_id IS NULL AND assignment_expires_at > ? AND assignment_return_leg = ?",
			offerStatuses, enums.AssignmentModeFree, now, returnLeg)

	var rows []models.Order
	err := applyCursor(q, cursor).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing free pool")
	}
	return rows, nil
}

func (r *repo) ListTransporterQueue(ctx context.Context, transporterID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Order, error) {
	q := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("transporter_id = ? AND status IN ?", transporterID, transporterQueueStatuses)

	var rows []models.Order
	err := applyCursor(q, cursor).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing transporter queue")
	}
	return rows, nil
}

func (r *repo) ListStatusEvents(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusEvent, error) {
	var rows []models.OrderStatusEvent
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing status events")
	}
	return rows, nil
}

func (r *repo) ListAssignments(ctx context.Context, orderID uuid.UUID) ([]models.OrderAssignment, error) {
	var rows []models.OrderAssignment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing assignment history")
	}
	return rows, nil
}

func applyCursor(q *gorm.DB, cursor *pagination.Cursor) *gorm.DB {
	if cursor == nil {
		return q
	}
	return q.Where(
		"(created_at < ?) OR (created_at = ? AND id < ?)",
		cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
	)
}
