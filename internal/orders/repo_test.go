package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tradebridge-io/tradebridge-backend/pkg/db/models"
	"github.com/tradebridge-io/tradebridge-backend/pkg/enums"
	pkgerrors "github.com/tradebridge-io/tradebridge-backend/pkg/errors"
	"github.com/tradebridge-io/tradebridge-backend/pkg/pagination"
)

const testSchema = `
CREATE TABLE orders (
	id TEXT PRIMARY KEY,
	order_number INTEGER NOT NULL,
	family TEXT NOT NULL,
	retailer_store_id TEXT,
	wholesaler_store_id TEXT NOT NULL,
	supplier_store_id TEXT,
	status TEXT NOT NULL DEFAULT 'pending',
	total_cents INTEGER NOT NULL,
	final_cents INTEGER NOT NULL,
	version INTEGER NOT NULL DEFAULT 1,
	assignment_mode TEXT,
	transporter_id TEXT,
	assigned_at DATETIME,
	assignment_expires_at DATETIME,
	assignment_return_leg BOOLEAN NOT NULL DEFAULT 0,
	assignment_prev_status TEXT,
	cancellation_details TEXT,
	return_details TEXT,
	dispute_details TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE TABLE order_items (
	id TEXT PRIMARY KEY,
	order_id TEXT NOT NULL,
	product_id TEXT,
	name TEXT NOT NULL,
	qty INTEGER NOT NULL,
	unit_price_cents INTEGER NOT NULL,
	total_cents INTEGER NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE TABLE order_assignments (
	id TEXT PRIMARY KEY,
	order_id TEXT NOT NULL,
	transporter_id TEXT,
	mode TEXT NOT NULL,
	outcome TEXT NOT NULL,
	reason TEXT,
	return_leg BOOLEAN NOT NULL DEFAULT 0,
	assigned_at DATETIME NOT NULL,
	resolved_at DATETIME,
	created_at DATETIME NOT NULL
);
CREATE TABLE order_status_events (
	id TEXT PRIMARY KEY,
	order_id TEXT NOT NULL,
	from_status TEXT NOT NULL,
	to_status TEXT NOT NULL,
	actor_id TEXT,
	actor_role TEXT,
	reason TEXT,
	created_at DATETIME NOT NULL
);
`

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Exec(testSchema).Error)
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, mutate func(*models.Order)) *models.Order {
	t.Helper()

	wholesalerStore := uuid.New()
	retailerStore := uuid.New()
	order := &models.Order{
		ID:                uuid.New(),
		OrderNumber:       time.Now().UnixNano(),
		Family:            enums.OrderFamilyRetail,
		RetailerStoreID:   &retailerStore,
		WholesalerStoreID: wholesalerStore,
		Status:            enums.OrderStatusPending,
		TotalCents:        50000,
		FinalCents:        50000,
		Version:           1,
	}
	if mutate != nil {
		mutate(order)
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestRepo_FindOrder(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepositoryWithDB(db)
	ctx := context.Background()

	order := seedOrder(t, db, nil)
	item := &models.OrderItem{
		ID:             uuid.New(),
		OrderID:        order.ID,
		Name:           "pallet of glassware",
		Qty:            4,
		UnitPriceCents: 12500,
		TotalCents:     50000,
	}
	require.NoError(t, db.Create(item).Error)

	found, err := repo.FindOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "pallet of glassware", found.Items[0].Name)

	_, err = repo.FindOrder(ctx, uuid.New())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestRepo_UpdateOrderGuarded(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepositoryWithDB(db)
	ctx := context.Background()

	order := seedOrder(t, db, nil)

	rows, err := repo.UpdateOrderGuarded(ctx, order.ID, order.Version, map[string]any{
		"status":     enums.OrderStatusAccepted,
		"version":    gorm.Expr("version + 1"),
		"updated_at": time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	// stale version loses the guard
	rows, err = repo.UpdateOrderGuarded(ctx, order.ID, order.Version, map[string]any{
		"status":  enums.OrderStatusRejected,
		"version": gorm.Expr("version + 1"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)

	fresh, err := repo.FindOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusAccepted, fresh.Status)
	assert.Equal(t, order.Version+1, fresh.Version)
}

func TestRepo_ClaimSpecificAssignment(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepositoryWithDB(db)
	ctx := context.Background()

	transporterID := uuid.New()
	now := time.Now().UTC()
	order := seedOrder(t, db, func(o *models.Order) {
		mode := enums.AssignmentModeSpecific
		assignedAt := now.Add(-time.Minute)
		expiresAt := now.Add(30 * time.Minute)
		prev := enums.OrderStatusProcessing
		o.Status = enums.OrderStatusAssignedToTransporter
		o.AssignmentMode = &mode
		o.TransporterID = &transporterID
		o.AssignedAt = &assignedAt
		o.AssignmentExpiresAt = &expiresAt
		o.AssignmentPrevStatus = &prev
	})

	updates := map[string]any{
		"status":                 enums.OrderStatusAcceptedByTransporter,
		"version":                gorm.Expr("version + 1"),
		"assignment_expires_at":  nil,
		"assignment_prev_status": nil,
		"updated_at":             now,
	}

	// a different transporter cannot take a directed offer
	rows, err := repo.ClaimSpecificAssignment(ctx, order.ID, uuid.New(), now, updates)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)

	rows, err = repo.ClaimSpecificAssignment(ctx, order.ID, transporterID, now, updates)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	// the status predicate makes a second accept a no-op
	rows, err = repo.ClaimSpecificAssignment(ctx, order.ID, transporterID, now, updates)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)
}

func TestRepo_ClaimSpecificAssignment_ExpiredOfferLoses(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepositoryWithDB(db)
	ctx := context.Background()

	transporterID := uuid.New()
	now := time.Now().UTC()
	order := seedOrder(t, db, func(o *models.Order) {
		mode := enums.AssignmentModeSpecific
		assignedAt := now.Add(-2 * time.Hour)
		expiresAt := now.Add(-time.Hour)
		o.Status = enums.OrderStatusAssignedToTransporter
		o.AssignmentMode = &mode
		o.TransporterID = &transporterID
		o.AssignedAt = &assignedAt
		o.AssignmentExpiresAt = &expiresAt
	})

	rows, err := repo.ClaimSpecificAssignment(ctx, order.ID, transporterID, now, map[string]any{
		"status": enums.OrderStatusAcceptedByTransporter,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)
}

func TestRepo_ClaimFreeAssignment_FirstAcceptWins(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepositoryWithDB(db)
	ctx := context.Background()

	now := time.Now().UTC()
	order := seedOrder(t, db, func(o *models.Order) {
		mode := enums.AssignmentModeFree
		assignedAt := now.Add(-time.Minute)
		expiresAt := now.Add(30 * time.Minute)
		o.Status = enums.OrderStatusAssignedToTransporter
		o.AssignmentMode = &mode
		o.AssignedAt = &assignedAt
		o.AssignmentExpiresAt = &expiresAt
	})

	first := uuid.New()
	second := uuid.New()

	rows, err := repo.ClaimFreeAssignment(ctx, order.ID, first, now, map[string]any{
		"status":         enums.OrderStatusAcceptedByTransporter,
		"transporter_id": first,
		"version":        gorm.Expr("version + 1"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	rows, err = repo.ClaimFreeAssignment(ctx, order.ID, second, now, map[string]any{
		"status":         enums.OrderStatusAcceptedByTransporter,
		"transporter_id": second,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows, "second claim must lose")

	fresh, err := repo.FindOrder(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, fresh.TransporterID)
	assert.Equal(t, first, *fresh.TransporterID)
}

func TestRepo_ClaimFreeAssignmentAdvancesVersion(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepositoryWithDB(db)
	ctx := context.Background()

	// the offer was re-issued after an expiry, so the row's version has moved
	// past what a claimant read before the sweep
	now := time.Now().UTC()
	order := seedOrder(t, db, func(o *models.Order) {
		mode := enums.AssignmentModeFree
		assignedAt := now.Add(-time.Minute)
		expiresAt := now.Add(30 * time.Minute)
		o.Status = enums.OrderStatusAssignedToTransporter
		o.Version = 4
		o.AssignmentMode = &mode
		o.AssignedAt = &assignedAt
		o.AssignmentExpiresAt = &expiresAt
	})
	staleVersion := order.Version - 1

	transporterID := uuid.New()
	rows, err := repo.ClaimFreeAssignment(ctx, order.ID, transporterID, now, map[string]any{
		"status":         enums.OrderStatusAcceptedByTransporter,
		"version":        gorm.Expr("version + 1"),
		"transporter_id": transporterID,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	// the claim must bump the row version even though it never read it, so a
	// writer still holding the pre-claim version loses its guard
	fresh, err := repo.FindOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.Version+1, fresh.Version)

	rows, err = repo.UpdateOrderGuarded(ctx, order.ID, staleVersion, map[string]any{
		"status": enums.OrderStatusCancelledByWholesaler,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)

	rows, err = repo.UpdateOrderGuarded(ctx, order.ID, order.Version, map[string]any{
		"status": enums.OrderStatusCancelledByWholesaler,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)
}

func TestRepo_ListExpiredAssignments(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepositoryWithDB(db)
	ctx := context.Background()

	now := time.Now().UTC()

	expired := seedOrder(t, db, func(o *models.Order) {
		mode := enums.AssignmentModeFree
		assignedAt := now.Add(-2 * time.Hour)
		expiresAt := now.Add(-time.Hour)
		o.Status = enums.OrderStatusAssignedToTransporter
		o.AssignmentMode = &mode
		o.AssignedAt = &assignedAt
		o.AssignmentExpiresAt = &expiresAt
	})
	// still live
	seedOrder(t, db, func(o *models.Order) {
		mode := enums.AssignmentModeFree
		assignedAt := now.Add(-time.Minute)
		expiresAt := now.Add(time.Hour)
		o.Status = enums.OrderStatusAssignedToTransporter
		o.AssignmentMode = &mode
		o.AssignedAt = &assignedAt
		o.AssignmentExpiresAt = &expiresAt
	})
	// accepted orders never expire
	seedOrder(t, db, func(o *models.Order) {
		mode := enums.AssignmentModeSpecific
		transporterID := uuid.New()
		assignedAt := now.Add(-3 * time.Hour)
		o.Status = enums.OrderStatusInTransit
		o.AssignmentMode = &mode
		o.TransporterID = &transporterID
		o.AssignedAt = &assignedAt
	})

	rows, err := repo.ListExpiredAssignments(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, expired.ID, rows[0].ID)
}

func TestRepo_ListFreePool(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepositoryWithDB(db)
	ctx := context.Background()

	now := time.Now().UTC()

	open := seedOrder(t, db, func(o *models.Order) {
		mode := enums.AssignmentModeFree
		assignedAt := now.Add(-time.Minute)
		expiresAt := now.Add(time.Hour)
		o.Status = enums.OrderStatusAssignedToTransporter
		o.AssignmentMode = &mode
		o.AssignedAt = &assignedAt
		o.AssignmentExpiresAt = &expiresAt
	})
	// expired offers are invisible
	seedOrder(t, db, func(o *models.Order) {
		mode := enums.AssignmentModeFree
		assignedAt := now.Add(-2 * time.Hour)
		expiresAt := now.Add(-time.Hour)
		o.Status = enums.OrderStatusAssignedToTransporter
		o.AssignmentMode = &mode
		o.AssignedAt = &assignedAt
		o.AssignmentExpiresAt = &expiresAt
	})
	// directed offers are invisible
	seedOrder(t, db, func(o *models.Order) {
		mode := enums.AssignmentModeSpecific
		transporterID := uuid.New()
		assignedAt := now.Add(-time.Minute)
		expiresAt := now.Add(time.Hour)
		o.Status = enums.OrderStatusAssignedToTransporter
		o.AssignmentMode = &mode
		o.TransporterID = &transporterID
		o.AssignedAt = &assignedAt
		o.AssignmentExpiresAt = &expiresAt
	})

	// return legs live in their own pool
	returnLeg := seedOrder(t, db, func(o *models.Order) {
		mode := enums.AssignmentModeFree
		assignedAt := now.Add(-time.Minute)
		expiresAt := now.Add(time.Hour)
		o.Status = enums.OrderStatusReturnRequested
		o.AssignmentMode = &mode
		o.AssignedAt = &assignedAt
		o.AssignmentExpiresAt = &expiresAt
		o.AssignmentReturnLeg = true
	})

	rows, err := repo.ListFreePool(ctx, now, false, pagination.DefaultLimit, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, open.ID, rows[0].ID)

	returns, err := repo.ListFreePool(ctx, now, true, pagination.DefaultLimit, nil)
	require.NoError(t, err)
	require.Len(t, returns, 1)
	assert.Equal(t, returnLeg.ID, returns[0].ID)
}

func TestRepo_ListOrdersCursorPagination(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepositoryWithDB(db)
	ctx := context.Background()

	store := uuid.New()
	base := time.Now().UTC().Add(-time.Hour)
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		o := seedOrder(t, db, func(o *models.Order) {
			o.WholesalerStoreID = store
			o.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		})
		ids = append(ids, o.ID)
	}

	filter := ListFilter{WholesalerStoreID: &store}

	page1, err := repo.ListOrders(ctx, filter, 2, nil)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, ids[2], page1[0].ID)
	assert.Equal(t, ids[1], page1[1].ID)

	cursor := &pagination.Cursor{CreatedAt: page1[1].CreatedAt, ID: page1[1].ID}
	page2, err := repo.ListOrders(ctx, filter, 2, cursor)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, ids[0], page2[0].ID)
}

func TestRepo_AppendAndListAuditTrail(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepositoryWithDB(db)
	ctx := context.Background()

	order := seedOrder(t, db, nil)
	actorID := uuid.New()
	actorRole := enums.ActorRoleWholesaler

	require.NoError(t, repo.AppendStatusEvent(ctx, &models.OrderStatusEvent{
		ID:         uuid.New(),
		OrderID:    order.ID,
		FromStatus: enums.OrderStatusPending,
		ToStatus:   enums.OrderStatusAccepted,
		ActorID:    &actorID,
		ActorRole:  &actorRole,
	}))

	transporterID := uuid.New()
	resolvedAt := time.Now().UTC()
	require.NoError(t, repo.AppendAssignment(ctx, &models.OrderAssignment{
		ID:            uuid.New(),
		OrderID:       order.ID,
		TransporterID: &transporterID,
		Mode:          enums.AssignmentModeSpecific,
		Outcome:       enums.AssignmentOutcomeRejected,
		AssignedAt:    resolvedAt.Add(-time.Hour),
		ResolvedAt:    &resolvedAt,
	}))

	trail, err := repo.ListStatusEvents(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, enums.OrderStatusAccepted, trail[0].ToStatus)

	history, err := repo.ListAssignments(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, enums.AssignmentOutcomeRejected, history[0].Outcome)
}
