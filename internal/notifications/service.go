package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tradebridge-io/tradebridge-backend/pkg/db/models"
	"github.com/tradebridge-io/tradebridge-backend/pkg/enums"
	pkgerrors "github.com/tradebridge-io/tradebridge-backend/pkg/errors"
	"github.com/tradebridge-io/tradebridge-backend/pkg/pagination"
)

// View is the API projection of a notification.
type View struct {
	ID        uuid.UUID              `json:"id"`
	Type      enums.NotificationType `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Link      *string                `json:"link,omitempty"`
	ReadAt    *time.Time             `json:"readAt,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

// Page is a cursor page of notifications plus the unread badge count.
type Page struct {
	Items       []View `json:"items"`
	UnreadCount int64  `json:"unreadCount"`
	NextCursor  string `json:"nextCursor,omitempty"`
}

// Service is the store-facing notification surface.
type Service interface {
	List(ctx context.Context, storeID uuid.UUID, limit int, cursorStr string) (*Page, error)
	MarkRead(ctx context.Context, storeID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, storeID uuid.UUID) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) List(ctx context.Context, storeID uuid.UUID, limit int, cursorStr string) (*Page, error) {
	cursor, err := pagination.ParseCursor(cursorStr)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	normalized := pagination.NormalizeLimit(limit)
	rows, err := s.repo.List(ctx, storeID, normalized+1, cursor)
	if err != nil {
		return nil, err
	}

	unread, err := s.repo.CountUnread(ctx, storeID)
	if err != nil {
		return nil, err
	}

	page := &Page{Items: make([]View, 0, len(rows)), UnreadCount: unread}
	hasMore := len(rows) > normalized
	if hasMore {
		rows = rows[:normalized]
	}
	for _, row := range rows {
		page.Items = append(page.Items, toView(row))
	}
	if hasMore && len(rows) > 0 {
		last := rows[len(rows)-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}

func (s *service) MarkRead(ctx context.Context, storeID, notificationID uuid.UUID) error {
	rows, err := s.repo.MarkRead(ctx, storeID, notificationID)
	if err != nil {
		return err
	}
	if rows == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, storeID uuid.UUID) error {
	return s.repo.MarkAllRead(ctx, storeID)
}

func toView(n models.Notification) View {
	return View{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Link:      n.Link,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}
