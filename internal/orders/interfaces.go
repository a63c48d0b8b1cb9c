package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradebridge-io/tradebridge-backend/pkg/db/models"
	"github.com/tradebridge-io/tradebridge-backend/pkg/enums"
	"github.com/tradebridge-io/tradebridge-backend/pkg/outbox"
	"github.com/tradebridge-io/tradebridge-backend/pkg/pagination"
)

// Actor is the authenticated caller acting on an order.
type Actor struct {
	ID      uuid.UUID
	StoreID *uuid.UUID
	Role    enums.ActorRole
}

// Repository is the persistence surface for orders. Implementations must be
// safe to rebind onto a transaction via WithTx.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// UpdateOrderGuarded applies updates only when the stored version still
	// matches. Returns the number of rows changed; zero means the guard lost.
	UpdateOrderGuarded(ctx context.Context, orderID uuid.UUID, version int64, updates map[string]any) (int64, error)

	AppendStatusEvent(ctx context.Context, event *models.OrderStatusEvent) error
	AppendAssignment(ctx context.Context, row *models.OrderAssignment) error

	// ClaimSpecificAssignment atomically accepts an offer addressed to one
	// transporter. The predicate re-checks status, addressee and expiry so a
	// stale accept can never win.
	ClaimSpecificAssignment(ctx context.Context, orderID, transporterID uuid.UUID, now time.Time, updates map[string]any) (int64, error)
	// ClaimFreeAssignment atomically claims an open offer from the free pool.
	ClaimFreeAssignment(ctx context.Context, orderID, transporterID uuid.UUID, now time.Time, updates map[string]any) (int64, error)

	ListExpiredAssignments(ctx context.Context, now time.Time, limit int) ([]models.Order, error)
	ListOrders(ctx context.Context, filter ListFilter, limit int, cursor *pagination.Cursor) ([]models.Order, error)
	ListFreePool(ctx context.Context, now time.Time, returnLeg bool, limit int, cursor *pagination.Cursor) ([]models.Order, error)
	ListTransporterQueue(ctx context.Context, transporterID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Order, error)
	ListStatusEvents(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusEvent, error)
	ListAssignments(ctx context.Context, orderID uuid.UUID) ([]models.OrderAssignment, error)
}

// txRunner abstracts db.Client.WithTx for tests.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// outboxEmitter abstracts the outbox service for tests.
type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// RefundIssuer is invoked after a disputed retail order's return is accepted.
// Implementations talk to the billing system; failures are logged, not fatal,
// because the refund_requested event is already durable in the outbox.
type RefundIssuer interface {
	IssueRefund(ctx context.Context, order *models.Order) error
}
