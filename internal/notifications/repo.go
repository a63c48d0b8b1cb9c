package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/tradebridge-io/tradebridge-backend/pkg/db"
	"github.com/tradebridge-io/tradebridge-backend/pkg/db/models"
	pkgerrors "github.com/tradebridge-io/tradebridge-backend/pkg/errors"
	"github.com/tradebridge-io/tradebridge-backend/pkg/pagination"
)

// Repository persists in-app notifications.
type Repository interface {
	Insert(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, storeID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Notification, error)
	CountUnread(ctx context.Context, storeID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, storeID, notificationID uuid.UUID) (int64, error)
	MarkAllRead(ctx context.Context, storeID uuid.UUID) error
}

type repo struct {
	db *gorm.DB
}

func NewRepository(client *dbpkg.Client) Repository {
	return &repo{db: client.DB()}
}

// NewRepositoryWithDB is used by tests to run against an arbitrary handle.
func NewRepositoryWithDB(db *gorm.DB) Repository {
	return &repo{db: db}
}

func (r *repo) Insert(ctx context.Context, notification *models.Notification) error {
	if err := r.db.WithContext(ctx).Create(notification).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "inserting notification")
	}
	return nil
}

func (r *repo) List(ctx context.Context, storeID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Notification, error) {
	q := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("store_id = ?", storeID)

	if cursor != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Notification
	err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing notifications")
	}
	return rows, nil
}

func (r *repo) CountUnread(ctx context.Context, storeID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("store_id = ? AND read_at IS NULL", storeID).
		Count(&count).Error
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "counting unread notifications")
	}
	return count, nil
}

func (r *repo) MarkRead(ctx context.Context, storeID, notificationID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND store_id = ? AND read_at IS NULL", notificationID, storeID).
		Update("read_at", time.Now().UTC())
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "marking notification read")
	}
	return res.RowsAffected, nil
}

func (r *repo) MarkAllRead(ctx context.Context, storeID uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("store_id = ? AND read_at IS NULL", storeID).
		Update("read_at", time.Now().UTC()).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marking notifications read")
	}
	return nil
}
